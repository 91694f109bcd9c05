package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradingctl/controlplane/pkg/types"
)

func TestAgeVetoScenario(t *testing.T) {
	state := NewState(DefaultConfig())
	chain := NewDefaultChain(DefaultConfig())

	sig := types.Signal{
		SymbolID:  42,
		Timestamp: time.Now().Add(-500 * time.Millisecond),
	}
	result := chain.Evaluate(sig, state)
	if !result.Vetoed {
		t.Fatal("expected veto for a stale signal")
	}
	if result.VetoRule != "SignalAge" {
		t.Fatalf("expected SignalAge to veto, got %s", result.VetoRule)
	}
}

func TestPendingOrdersVetoScenario(t *testing.T) {
	state := NewState(DefaultConfig())
	chain := NewDefaultChain(DefaultConfig())

	q := state.Quota(7)
	q.PendingOrders = 3

	sig := types.Signal{SymbolID: 7, Timestamp: time.Now()}
	result := chain.Evaluate(sig, state)
	if !result.Vetoed {
		t.Fatal("expected veto when pending_orders already at cap")
	}
	if result.VetoRule != "PendingOrders" {
		t.Fatalf("expected PendingOrders to veto, got %s", result.VetoRule)
	}
}

func TestDailyTradesRuleIsSoft(t *testing.T) {
	state := NewState(DefaultConfig())
	chain := NewChain()
	chain.Register(DailyTradesRule{})

	q := state.Quota(1)
	q.DailyTrades = q.MaxDailyTrades + 1

	result := chain.Evaluate(types.Signal{SymbolID: 1, Timestamp: time.Now()}, state)
	if result.Vetoed {
		t.Fatal("soft rule must never veto the chain")
	}
	if len(result.SoftVetoes) != 1 {
		t.Fatalf("expected one soft veto recorded, got %v", result.SoftVetoes)
	}
}

func TestProcessExecutionRecomputesExposureAndRiskLevel(t *testing.T) {
	state := NewState(DefaultConfig())

	report := types.ExecutionReport{
		Symbol:         1,
		Side:           types.Buy,
		Status:         types.RespFilled,
		FilledQuantity: decimal.NewFromInt(10),
		FilledPrice:    decimal.NewFromInt(100),
	}
	state.ProcessExecution(report, decimal.Zero)

	global := state.Global()
	if !global.TotalExposure.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected total exposure 1000, got %v", global.TotalExposure)
	}
	if global.RiskLevel != types.RiskCritical {
		t.Fatalf("expected risk level critical at this exposure magnitude, got %v", global.RiskLevel)
	}
	if global.DailyTrades != 1 {
		t.Fatalf("expected one daily trade recorded, got %d", global.DailyTrades)
	}
}

func TestDailyResetSchedulerResetsOncePerDay(t *testing.T) {
	state := NewState(DefaultConfig())
	q := state.Quota(1)
	q.DailyTrades = 5
	state.global.DailyTrades = 5

	sched := &DailyResetScheduler{state: state, logger: discardLogger()}
	sched.maybeReset()

	if state.Global().DailyTrades != 0 {
		t.Fatalf("expected daily trades reset to 0, got %d", state.Global().DailyTrades)
	}

	// A second call on the same UTC day must not reset again (no-op).
	state.global.DailyTrades = 9
	sched.maybeReset()
	if state.Global().DailyTrades != 9 {
		t.Fatal("expected no reset on the same UTC day")
	}
}
