package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ArbitragePairState is one of the nine states of an arbitrage pair (§4.8).
type ArbitragePairState string

const (
	ArbCreated        ArbitragePairState = "CREATED"
	ArbMakerPending   ArbitragePairState = "MAKER_PENDING"
	ArbMakerFilled    ArbitragePairState = "MAKER_FILLED"
	ArbTakerPending   ArbitragePairState = "TAKER_PENDING"
	ArbBothPending    ArbitragePairState = "BOTH_PENDING"
	ArbCompleted      ArbitragePairState = "COMPLETED"
	ArbPartialSuccess ArbitragePairState = "PARTIAL_SUCCESS"
	ArbFailed         ArbitragePairState = "FAILED"
	ArbCancelled      ArbitragePairState = "CANCELLED"
)

// Terminal reports whether the pair's lifecycle has ended.
func (s ArbitragePairState) Terminal() bool {
	switch s {
	case ArbCompleted, ArbPartialSuccess, ArbFailed, ArbCancelled:
		return true
	default:
		return false
	}
}

// ArbitragePair tracks a maker/taker leg pair. Member orders are referenced
// by client_order_id only — the order manager remains the single owner.
type ArbitragePair struct {
	ID            string
	MakerOrderID  string
	TakerOrderID  string
	Symbol        uint32
	Quantity      decimal.Decimal
	MakerPrice    decimal.Decimal
	TakerPrice    decimal.Decimal
	ExpectedProfit decimal.Decimal
	ActualProfit  *decimal.Decimal

	State       ArbitragePairState
	CreatedAt   time.Time
	CompletedAt *time.Time

	MakerStatus *OrderState
	TakerStatus *OrderState
}

// Position is the per-(exchange,symbol) holding owned by the pre/post processor.
type Position struct {
	ExchangeID    uint32
	Symbol        uint32
	Quantity      decimal.Decimal
	AvgPrice      decimal.Decimal
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
}

// RiskLevel is the coarse classification of global exposure (§4.5).
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskQuota is the per-symbol limit set plus live counters (§3).
type RiskQuota struct {
	Symbol uint32

	MaxPosition       decimal.Decimal
	MaxCapital        decimal.Decimal
	MaxPendingOrders  int
	MaxDailyTrades    int
	MinCooldownSeconds int

	CurrentPosition decimal.Decimal
	CurrentCapital  decimal.Decimal
	PendingOrders   int
	DailyTrades     int
	LastTradeTime   time.Time
}

// GlobalRiskState is the aggregate risk view recomputed on every execution
// report (§3, §4.5).
type GlobalRiskState struct {
	TotalExposure     decimal.Decimal
	TotalCapitalUsed  decimal.Decimal
	TotalPositions    int
	DailyTrades       int
	DailyPnL          decimal.Decimal
	RiskLevel         RiskLevel
	GlobalRestricted  bool
	RestrictedReason  string
}

// ConnectionMetrics is the per-connection health record owned by the health
// tracker (§3, §4.9).
type ConnectionMetrics struct {
	ID                 string
	Exchange           string
	MarketType         string
	HealthScore        float64 // clamped to [0, 100]
	RTTMillis          float64 // EWMA, alpha = 0.1
	SuccessRate        float64 // percentage, 0..100
	TotalMessages      uint64
	TotalErrors        uint64
	ConsecutiveFailures int
	LastUpdate         time.Time
}

// Healthy reports whether the connection meets the §4.9 health bar (score
// >= 50, fewer than 5 consecutive failures). The selector's fan-out filter
// does not call it; it uses a lower floor of 30.
func (m ConnectionMetrics) Healthy() bool {
	return m.HealthScore >= 50 && m.ConsecutiveFailures < 5
}
