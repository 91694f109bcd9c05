package pipeline

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradingctl/controlplane/internal/arb"
	"github.com/tradingctl/controlplane/internal/order"
	"github.com/tradingctl/controlplane/internal/risk"
	"github.com/tradingctl/controlplane/pkg/types"
)

func newTestProcessor() *Processor {
	chain := risk.NewDefaultChain(risk.DefaultConfig())
	pre := NewPreChain(DefaultPreConfig(chain, idGen), testLogger())
	post := NewPostChain(PostConfig{Positions: newMemBook(), Logger: testLogger()}, testLogger())
	return NewProcessor(pre, post, risk.NewState(risk.DefaultConfig()), order.NewManager(testLogger()), arb.NewCoordinator(), testLogger())
}

func TestProcessorHandleTradingEventCreatesAndEnqueuesOrder(t *testing.T) {
	p := newTestProcessor()
	now := time.Now().UTC()
	sig := types.Signal{Kind: types.SignalAdaptiveSpreadDeviation, SymbolID: 1, Timestamp: now}
	event := types.TradingEvent{Kind: types.EventOpenPosition, Symbol: 1, Side: types.Buy, Quantity: decimal.NewFromInt(10)}

	o, reason := p.HandleTradingEvent(sig, event, "")
	if o == nil {
		t.Fatalf("expected order, got veto: %s", reason)
	}
	if got := p.orders.Get(o.ClientOrderID); got == nil {
		t.Fatal("expected order registered in manager")
	}
	if id, ok := p.orders.Dequeue(); !ok || id != o.ClientOrderID {
		t.Fatalf("expected enqueued order to be dequeued, got %q ok=%v", id, ok)
	}
}

func TestProcessorHandleTradingEventVetoReturnsNoOrder(t *testing.T) {
	p := newTestProcessor()
	stale := time.Now().UTC().Add(-time.Second)
	sig := types.Signal{Kind: types.SignalAdaptiveSpreadDeviation, SymbolID: 1, Timestamp: stale}
	event := types.TradingEvent{Kind: types.EventOpenPosition, Symbol: 1, Side: types.Buy, Quantity: decimal.NewFromInt(10)}

	o, reason := p.HandleTradingEvent(sig, event, "")
	if o != nil {
		t.Fatal("expected veto for stale signal")
	}
	if reason == "" {
		t.Fatal("expected a veto reason")
	}
}

func TestProcessorHandleExecutionReportRunsPostChain(t *testing.T) {
	p := newTestProcessor()
	report := types.ExecutionReport{ClientOrderID: "unknown-order", Status: types.RespFilled}
	p.HandleExecutionReport(report)
}

func TestProcessorHandleTradingEventVetoCancelsArbitragePair(t *testing.T) {
	p := newTestProcessor()
	pair := &types.ArbitragePair{ID: "pair-1", ExpectedProfit: decimal.NewFromInt(1)}
	p.arb.Create(pair)

	stale := time.Now().UTC().Add(-time.Second)
	sig := types.Signal{Kind: types.SignalAdaptiveSpreadDeviation, SymbolID: 1, Timestamp: stale}
	event := types.TradingEvent{Kind: types.EventOpenPosition, Symbol: 1, Side: types.Buy, Quantity: decimal.NewFromInt(10)}

	o, reason := p.HandleTradingEvent(sig, event, "pair-1")
	if o != nil {
		t.Fatalf("expected veto, got order")
	}
	if reason == "" {
		t.Fatal("expected veto reason")
	}
	got := p.arb.Get("pair-1")
	if got.State != types.ArbCancelled {
		t.Fatalf("expected pair cancelled after veto, got %s", got.State)
	}
}
