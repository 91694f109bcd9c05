package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradingctl/controlplane/pkg/types"
)

// Config holds the configurable defaults for the built-in rules (§4.5).
// Every field maps to a rule's threshold so operators can retune without
// a code change.
type Config struct {
	SignalAgeMillis        int64
	PositionLimitPerSymbol decimal.Decimal
	CapitalLimitPerSymbol  decimal.Decimal
	MaxPendingOrders       int
	TotalExposureMax       float64
	TotalExposureWarn      float64
	CooldownSeconds        int
	DailyTradesPerSymbol   int
}

// DefaultConfig returns the defaults named in §4.5.
func DefaultConfig() Config {
	return Config{
		SignalAgeMillis:        100,
		PositionLimitPerSymbol: decimal.NewFromInt(100),
		CapitalLimitPerSymbol:  decimal.NewFromInt(5000),
		MaxPendingOrders:       3,
		TotalExposureMax:       0.03,
		TotalExposureWarn:      0.025,
		CooldownSeconds:        60,
		DailyTradesPerSymbol:   1000,
	}
}

// State is the risk state owned by the pre/post processor: per-symbol
// quotas plus the global aggregate (§3). All mutation happens from the
// single pre/post task; the mutex makes reads from other goroutines safe.
type State struct {
	mu      sync.RWMutex
	cfg     Config
	quotas  map[uint32]*types.RiskQuota
	global  types.GlobalRiskState
	now     func() time.Time
}

// NewState creates risk state seeded with the given config.
func NewState(cfg Config) *State {
	return &State{
		cfg:    cfg,
		quotas: make(map[uint32]*types.RiskQuota),
		now:    nowFunc,
	}
}

// Quota returns the quota record for symbol, creating one from defaults if absent.
func (s *State) Quota(symbol uint32) *types.RiskQuota {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quotaLocked(symbol)
}

func (s *State) quotaLocked(symbol uint32) *types.RiskQuota {
	q, ok := s.quotas[symbol]
	if !ok {
		q = &types.RiskQuota{
			Symbol:             symbol,
			MaxPosition:        s.cfg.PositionLimitPerSymbol,
			MaxCapital:         s.cfg.CapitalLimitPerSymbol,
			MaxPendingOrders:   s.cfg.MaxPendingOrders,
			MaxDailyTrades:     s.cfg.DailyTradesPerSymbol,
			MinCooldownSeconds: s.cfg.CooldownSeconds,
		}
		s.quotas[symbol] = q
	}
	return q
}

// Global returns a copy of the current global risk state.
func (s *State) Global() types.GlobalRiskState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.global
}

// Restrict sets or clears the global_restricted flag (§7's policy-limit error:
// set by an external operator; until cleared, all pre-pipelines veto).
func (s *State) Restrict(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global.GlobalRestricted = true
	s.global.RestrictedReason = reason
}

// ClearRestriction lifts the global restriction.
func (s *State) ClearRestriction() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global.GlobalRestricted = false
	s.global.RestrictedReason = ""
}

// ProcessSignal increments pending_orders for the target symbol and adds the
// signal's notional to exposure (§4.5).
func (s *State) ProcessSignal(sig types.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.quotaLocked(sig.SymbolID)
	q.PendingOrders++
	q.CurrentCapital = q.CurrentCapital.Add(sig.Notional)
	s.global.TotalCapitalUsed = s.global.TotalCapitalUsed.Add(sig.Notional)
}

// ProcessExecution updates position/capital by side, daily trade counters,
// pending-order counters, recomputes total exposure, and re-derives the
// risk level (§4.5).
func (s *State) ProcessExecution(report types.ExecutionReport, positionNotional decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.quotaLocked(report.Symbol)

	switch report.Side {
	case types.Buy:
		q.CurrentPosition = q.CurrentPosition.Add(report.FilledQuantity)
		q.CurrentCapital = q.CurrentCapital.Add(report.FilledQuantity.Mul(report.FilledPrice))
	case types.Sell:
		q.CurrentPosition = q.CurrentPosition.Sub(report.FilledQuantity)
		q.CurrentCapital = q.CurrentCapital.Sub(report.FilledQuantity.Mul(report.FilledPrice))
	}

	if report.Status == types.RespFilled {
		q.DailyTrades++
		s.global.DailyTrades++
		q.LastTradeTime = s.now()
	}

	orderState := responseToState(report.Status)
	if orderState.Terminal() && q.PendingOrders > 0 {
		q.PendingOrders--
	}

	s.recomputeExposureLocked()
}

func responseToState(status types.ResponseStatus) types.OrderState {
	switch status {
	case types.RespFilled:
		return types.StateFilled
	case types.RespCancelled:
		return types.StateCancelled
	case types.RespExpired:
		return types.StateExpired
	case types.RespRejected:
		return types.StateRejected
	default:
		return types.StateAcknowledged
	}
}

// recomputeExposureLocked recomputes total_exposure = sum(|capital_used|)
// across all symbol quotas and re-derives the risk level (§4.5, §3).
func (s *State) recomputeExposureLocked() {
	total := decimal.Zero
	for _, q := range s.quotas {
		total = total.Add(q.CurrentCapital.Abs())
	}
	s.global.TotalCapitalUsed = total

	ratio := 0.0
	if s.cfg.TotalExposureMax > 0 {
		f, _ := total.Float64()
		ratio = f
	}
	s.global.TotalExposure = total

	switch {
	case ratio < 0.015:
		s.global.RiskLevel = types.RiskLow
	case ratio < 0.025:
		s.global.RiskLevel = types.RiskMedium
	case ratio < 0.03:
		s.global.RiskLevel = types.RiskHigh
	default:
		s.global.RiskLevel = types.RiskCritical
	}
}

// ResetDaily clears daily counters. Should be invoked once per UTC day — see
// the scheduler in daily_reset.go, which guards against the "missed tick"
// bug named in §9.
func (s *State) ResetDaily() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global.DailyTrades = 0
	s.global.DailyPnL = decimal.Zero
	for _, q := range s.quotas {
		q.DailyTrades = 0
	}
}
