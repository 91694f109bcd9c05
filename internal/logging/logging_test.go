package logging

import (
	"testing"

	"github.com/tradingctl/controlplane/internal/config"
)

func TestNewBuildsJSONHandlerWhenConfigured(t *testing.T) {
	logger := New(config.LoggingConfig{Level: "debug", Format: "json"})
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	if !logger.Enabled(nil, -4) {
		t.Error("expected debug level enabled")
	}
}

func TestNewDefaultsToTextHandler(t *testing.T) {
	logger := New(config.LoggingConfig{Level: "info", Format: ""})
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	if logger.Enabled(nil, -4) {
		t.Error("expected debug level disabled at info")
	}
}
