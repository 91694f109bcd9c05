package risk

import (
	"time"

	"github.com/tradingctl/controlplane/pkg/types"
)

// SignalAgeRule vetoes signals older than MaxAge (default 100ms, critical).
type SignalAgeRule struct {
	MaxAge time.Duration
	Now    func() time.Time
}

func (r SignalAgeRule) Name() string      { return "SignalAge" }
func (r SignalAgeRule) IsCritical() bool  { return true }

func (r SignalAgeRule) Check(signal types.Signal, state *State) (bool, error) {
	now := r.Now
	if now == nil {
		now = nowFunc
	}
	age := now().Sub(signal.Timestamp)
	return age <= r.MaxAge, nil
}

// PositionLimitRule vetoes when the symbol's current position already exceeds
// its MaxPosition quota (critical).
type PositionLimitRule struct{ MaxLots int64 }

func (r PositionLimitRule) Name() string     { return "PositionLimit" }
func (r PositionLimitRule) IsCritical() bool { return true }

func (r PositionLimitRule) Check(signal types.Signal, state *State) (bool, error) {
	q := state.Quota(signal.SymbolID)
	return q.CurrentPosition.Abs().LessThanOrEqual(q.MaxPosition), nil
}

// CapitalLimitRule vetoes when a symbol's used capital would exceed the cap (critical).
type CapitalLimitRule struct{}

func (r CapitalLimitRule) Name() string     { return "CapitalLimit" }
func (r CapitalLimitRule) IsCritical() bool { return true }

func (r CapitalLimitRule) Check(signal types.Signal, state *State) (bool, error) {
	q := state.Quota(signal.SymbolID)
	projected := q.CurrentCapital.Add(signal.Notional)
	return projected.Abs().LessThanOrEqual(q.MaxCapital), nil
}

// PendingOrdersRule vetoes when the symbol already has too many pending orders (critical).
type PendingOrdersRule struct{}

func (r PendingOrdersRule) Name() string     { return "PendingOrders" }
func (r PendingOrdersRule) IsCritical() bool { return true }

func (r PendingOrdersRule) Check(signal types.Signal, state *State) (bool, error) {
	q := state.Quota(signal.SymbolID)
	return q.PendingOrders < q.MaxPendingOrders, nil
}

// TotalExposureRule is the critical check at Max (§4.5). Its Warn field is not
// read; the soft warn threshold is checked by TotalExposureWarnRule.
type TotalExposureRule struct {
	Max  float64
	Warn float64
}

func (r TotalExposureRule) Name() string { return "TotalExposure" }

// IsCritical reports the critical threshold; the chain treats a failed Warn
// check as soft because the warn variant is registered separately — see
// NewDefaultChain, which wires a TotalExposureRule and a TotalExposureWarnRule
// for the two thresholds rather than one rule with mixed criticality.
func (r TotalExposureRule) IsCritical() bool { return true }

func (r TotalExposureRule) Check(signal types.Signal, state *State) (bool, error) {
	global := state.Global()
	exposure, _ := global.TotalExposure.Float64()
	return exposure < r.Max, nil
}

// TotalExposureWarnRule is the non-critical companion that fires at the
// lower "warn" threshold (§4.5: "soft for warn").
type TotalExposureWarnRule struct {
	Warn float64
}

func (r TotalExposureWarnRule) Name() string     { return "TotalExposureWarn" }
func (r TotalExposureWarnRule) IsCritical() bool { return false }

func (r TotalExposureWarnRule) Check(signal types.Signal, state *State) (bool, error) {
	global := state.Global()
	exposure, _ := global.TotalExposure.Float64()
	return exposure < r.Warn, nil
}

// CooldownRule vetoes if a trade happened within MinSeconds of the last one (critical).
type CooldownRule struct {
	MinSeconds int
	Now        func() time.Time
}

func (r CooldownRule) Name() string     { return "Cooldown" }
func (r CooldownRule) IsCritical() bool { return true }

func (r CooldownRule) Check(signal types.Signal, state *State) (bool, error) {
	q := state.Quota(signal.SymbolID)
	if q.LastTradeTime.IsZero() {
		return true, nil
	}
	now := r.Now
	if now == nil {
		now = nowFunc
	}
	min := r.MinSeconds
	if min == 0 {
		min = 60
	}
	return now().Sub(q.LastTradeTime) >= time.Duration(min)*time.Second, nil
}

// DailyTradesRule is soft: it never stops the pipeline, only records a soft veto.
type DailyTradesRule struct{}

func (r DailyTradesRule) Name() string     { return "DailyTrades" }
func (r DailyTradesRule) IsCritical() bool { return false }

func (r DailyTradesRule) Check(signal types.Signal, state *State) (bool, error) {
	q := state.Quota(signal.SymbolID)
	max := q.MaxDailyTrades
	if max == 0 {
		max = 1000
	}
	return q.DailyTrades < max, nil
}

// NewDefaultChain builds the built-in rule chain with the defaults from cfg,
// in the registration order specified by §4.5.
func NewDefaultChain(cfg Config) *Chain {
	chain := NewChain()
	chain.Register(SignalAgeRule{MaxAge: time.Duration(cfg.SignalAgeMillis) * time.Millisecond})
	chain.Register(PositionLimitRule{})
	chain.Register(CapitalLimitRule{})
	chain.Register(PendingOrdersRule{})
	chain.Register(TotalExposureRule{Max: cfg.TotalExposureMax})
	chain.Register(TotalExposureWarnRule{Warn: cfg.TotalExposureWarn})
	chain.Register(CooldownRule{MinSeconds: cfg.CooldownSeconds})
	chain.Register(DailyTradesRule{})
	return chain
}

