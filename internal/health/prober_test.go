package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProbeRecordsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := testTracker()
	tr.Register("c1", "binance", "spot")
	p := NewProber()

	if err := p.Probe(context.Background(), tr, "c1", srv.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, _ := tr.Get("c1")
	if m.TotalMessages != 1 {
		t.Fatalf("expected 1 successful probe, got %d", m.TotalMessages)
	}
}

func TestProbeRecordsFailureOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := testTracker()
	tr.Register("c1", "binance", "spot")
	p := NewProber()

	if err := p.Probe(context.Background(), tr, "c1", srv.URL); err == nil {
		t.Fatal("expected error for 500 response")
	}
	m, _ := tr.Get("c1")
	if m.TotalErrors != 1 {
		t.Fatalf("expected 1 recorded failure, got %d", m.TotalErrors)
	}
}
