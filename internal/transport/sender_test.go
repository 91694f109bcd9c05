package transport

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/tradingctl/controlplane/internal/pool"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendResolvesOnMatchingClientID(t *testing.T) {
	s := NewRunnerSender(testLogger())
	runner := pool.NewRunner("conn-a", "wss://example.invalid", "binance", "spot", pool.BinancePolicy{}, testLogger())
	s.Attach(runner)

	resultCh := make(chan error, 1)
	var gotStatus string
	go func() {
		report, err := s.Send(context.Background(), "conn-a", []byte("clientId=tc_abc_123&symbol=1"))
		if err == nil {
			gotStatus = string(report.Status)
		}
		resultCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	s.handleMessage([]byte(`{"client_order_id":"tc_abc_123","status":"FILLED","filled_qty":"1","filled_price":"100"}`))

	if err := <-resultCh; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotStatus != "FILLED" {
		t.Fatalf("expected FILLED status, got %q", gotStatus)
	}
}

func TestSendTimesOutWithoutResponse(t *testing.T) {
	s := NewRunnerSender(testLogger())
	runner := pool.NewRunner("conn-a", "wss://example.invalid", "binance", "spot", pool.BinancePolicy{}, testLogger())
	s.Attach(runner)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Send(ctx, "conn-a", []byte("clientId=tc_abc_999"))
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestSendUnknownConnectionFails(t *testing.T) {
	s := NewRunnerSender(testLogger())
	_, err := s.Send(context.Background(), "ghost", []byte("clientId=tc_x"))
	if err == nil {
		t.Fatal("expected error for unknown connection")
	}
}

func TestSendMissingClientIDFails(t *testing.T) {
	s := NewRunnerSender(testLogger())
	runner := pool.NewRunner("conn-a", "wss://example.invalid", "binance", "spot", pool.BinancePolicy{}, testLogger())
	s.Attach(runner)

	_, err := s.Send(context.Background(), "conn-a", []byte("symbol=1"))
	if err == nil {
		t.Fatal("expected error for missing clientId")
	}
}
