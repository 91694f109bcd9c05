package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/tradingctl/controlplane/internal/health"
	"github.com/tradingctl/controlplane/internal/pool"
	"github.com/tradingctl/controlplane/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMetrics struct {
	all []types.ConnectionMetrics
}

func (f fakeMetrics) All(exchange, marketType string) []types.ConnectionMetrics { return f.all }

type fakeSender struct {
	mu        sync.Mutex
	responses map[string]types.ExecutionReport
	errs      map[string]error
	calls     int
}

func (s *fakeSender) Send(ctx context.Context, connID string, payload []byte) (types.ExecutionReport, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if err, ok := s.errs[connID]; ok {
		return types.ExecutionReport{}, err
	}
	return s.responses[connID], nil
}

func conn(id string, score float64) types.ConnectionMetrics {
	return types.ConnectionMetrics{ID: id, HealthScore: score}
}

func newTestExecutor(sender Sender, connections []types.ConnectionMetrics) *Executor {
	signers := NewSignerRegistry()
	signers.Register("binance", BinanceSigner{Secret: "s3cr3t"})
	selector := pool.NewSelector(fakeMetrics{all: connections})
	metrics := health.NewTracker(testLogger())
	for _, c := range connections {
		metrics.Register(c.ID, "binance", "spot")
	}
	return New(signers, selector, metrics, sender, testLogger())
}

func TestExecuteHappyPathPicksBestResponse(t *testing.T) {
	sender := &fakeSender{
		responses: map[string]types.ExecutionReport{
			"a": {Status: types.RespNew},
			"b": {Status: types.RespFilled},
		},
	}
	ex := newTestExecutor(sender, []types.ConnectionMetrics{conn("a", 90), conn("b", 90)})

	result := ex.Execute(context.Background(), Command{
		ID: "cmd-1", Exchange: "binance", Symbol: 1, Side: types.Buy,
		OrderType: types.OrderTypeLimit, Quantity: "1", TIF: types.TIFGTC,
		ConcurrentSendCount: 2, OrderTimeout: time.Second, MaxRetryAttempts: 1,
	})

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Response.Status != types.RespFilled {
		t.Fatalf("expected Filled chosen over New, got %s", result.Response.Status)
	}
}

func TestExecuteDuplicateClientIDFails(t *testing.T) {
	sender := &fakeSender{responses: map[string]types.ExecutionReport{"a": {Status: types.RespFilled}}}
	ex := newTestExecutor(sender, []types.ConnectionMetrics{conn("a", 90)})
	frozen := ex.now()
	ex.now = func() time.Time { return frozen }

	cmd := Command{ID: "cmd-1", Exchange: "binance", Symbol: 1, Side: types.Buy, OrderType: types.OrderTypeLimit,
		Quantity: "1", TIF: types.TIFGTC, ConcurrentSendCount: 1, OrderTimeout: time.Second, MaxRetryAttempts: 1}

	first := ex.Execute(context.Background(), cmd)
	if !first.Success {
		t.Fatalf("expected first call to succeed, got %+v", first)
	}

	second := ex.Execute(context.Background(), cmd)
	if second.Success {
		t.Fatal("expected duplicate order id to fail")
	}
	if second.Error != "Duplicate order" {
		t.Fatalf("expected Duplicate order error, got %q", second.Error)
	}
}

func TestExecuteNoSignerFails(t *testing.T) {
	sender := &fakeSender{}
	ex := newTestExecutor(sender, nil)
	result := ex.Execute(context.Background(), Command{ID: "cmd-1", Exchange: "unknown", ConcurrentSendCount: 1, MaxRetryAttempts: 1})
	if result.Success || result.Error != "No signer for unknown" {
		t.Fatalf("expected no-signer failure, got %+v", result)
	}
}

func TestExecuteNoHealthyConnectionsFails(t *testing.T) {
	sender := &fakeSender{}
	ex := newTestExecutor(sender, nil)
	result := ex.Execute(context.Background(), Command{ID: "cmd-1", Exchange: "binance", ConcurrentSendCount: 1, MaxRetryAttempts: 1})
	if result.Success || result.Error != "No healthy connections" {
		t.Fatalf("expected no-healthy-connections failure, got %+v", result)
	}
}

func TestExecuteRetriesOnFailureUpToMaxAttempts(t *testing.T) {
	sender := &fakeSender{errs: map[string]error{"a": errors.New("timeout")}}
	ex := newTestExecutor(sender, []types.ConnectionMetrics{conn("a", 90)})

	result := ex.Execute(context.Background(), Command{
		ID: "cmd-1", Exchange: "binance", ConcurrentSendCount: 1, OrderTimeout: 50 * time.Millisecond, MaxRetryAttempts: 2,
	})
	if result.Success {
		t.Fatal("expected failure since sender always errors")
	}
	if sender.calls < 2 {
		t.Fatalf("expected at least 2 attempts, got %d", sender.calls)
	}
}

func TestSignerDeterminism(t *testing.T) {
	s := BinanceSigner{Secret: "s3cr3t"}
	params := map[string]string{"b": "2", "a": "1"}
	sig1, _ := s.Sign(params, "POST", "/order", "")
	sig2, _ := s.Sign(params, "POST", "/order", "")
	if sig1 != sig2 {
		t.Fatal("expected deterministic signature for identical params")
	}
}

func TestOKXSignerUsesTimestampMethodPathBody(t *testing.T) {
	s := OKXSigner{Secret: "s3cr3t"}
	sig1, _ := s.Sign(map[string]string{"timestamp": "1000"}, "POST", "/order", "body")
	sig2, _ := s.Sign(map[string]string{"timestamp": "2000"}, "POST", "/order", "body")
	if sig1 == sig2 {
		t.Fatal("expected different signatures for different timestamps")
	}
}
