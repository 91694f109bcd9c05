// Package types defines shared data structures used across all processes.
//
// This package is the common vocabulary for the control plane — signals,
// trading events, orders, positions, and risk state. It has no dependency
// on any internal package, so it can be imported by every layer: the
// signal collector, the pre/post processor, and the trading engine.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalKind is the dense integer discriminant of a Signal variant. Values
// are stable across the wire codec (C1) and index directly into the signal
// table (C2), so they must never be renumbered.
type SignalKind uint32

const (
	SignalAdaptiveSpreadDeviation SignalKind = iota
	SignalFixedSpreadDeviation
	SignalFundingRateDirection
	SignalRealTimeFundingRisk
	SignalOrderResponse

	// NumSignalKinds bounds the dense signal table; keep it last.
	NumSignalKinds
)

func (k SignalKind) String() string {
	switch k {
	case SignalAdaptiveSpreadDeviation:
		return "AdaptiveSpreadDeviation"
	case SignalFixedSpreadDeviation:
		return "FixedSpreadDeviation"
	case SignalFundingRateDirection:
		return "FundingRateDirection"
	case SignalRealTimeFundingRisk:
		return "RealTimeFundingRisk"
	case SignalOrderResponse:
		return "OrderResponse"
	default:
		return "Unknown"
	}
}

// FundingDirection is a small enum payload field carried by funding signals.
type FundingDirection uint32

const (
	FundingNeutral FundingDirection = iota
	FundingPositive
	FundingNegative
)

// Signal is a tagged variant over the fixed enumeration of signal kinds.
// Exactly one of the payload fields is meaningful for a given Kind; the
// wire codec (C1) encodes only the fields relevant to Kind. Signals are
// immutable once constructed.
type Signal struct {
	Kind       SignalKind
	ExchangeID uint32
	SymbolID   uint32
	Timestamp  time.Time // millisecond resolution on the wire

	// AdaptiveSpreadDeviation / FixedSpreadDeviation payload.
	Percentile float64
	Spread     float64
	Threshold  float64

	// FundingRateDirection / RealTimeFundingRisk payload.
	Rate      float64
	Direction FundingDirection

	// OrderResponse payload: provenance back-reference for risk accounting.
	ClientOrderID string
	Notional      decimal.Decimal
}

// SignalStatus is the per-kind slot in the signal table (C2).
type SignalStatus struct {
	LastSignal     *Signal
	TriggerIndices []int // ordered, no duplicates; valid indices into the trigger registry
	LastUpdated    time.Time
}

// TradingEventKind is the dense tag for TradingEvent variants.
type TradingEventKind uint32

const (
	EventOpenPosition TradingEventKind = iota
	EventClosePosition
	EventHedgePosition
	EventCancelOrder
	EventModifyOrder
)

func (k TradingEventKind) String() string {
	switch k {
	case EventOpenPosition:
		return "OpenPosition"
	case EventClosePosition:
		return "ClosePosition"
	case EventHedgePosition:
		return "HedgePosition"
	case EventCancelOrder:
		return "CancelOrder"
	case EventModifyOrder:
		return "ModifyOrder"
	default:
		return "Unknown"
	}
}

// TriggerPriority classifies how urgently a trigger's event should be acted on.
type TriggerPriority int

const (
	PriorityLow TriggerPriority = iota
	PriorityMedium
	PriorityHigh
)

// TradingEvent is the high-level instruction a trigger emits. Price is
// optional (nil) for market orders. ExchangeIDs lists the target exchanges;
// the built-in triggers set exactly one, and the pre-pipeline uses the first.
type TradingEvent struct {
	Kind        TradingEventKind
	Symbol      uint32
	ExchangeIDs []uint32
	Side        Side
	Quantity    decimal.Decimal
	Price       *decimal.Decimal
	TriggerType string // name of the trigger that emitted this event
	Reason      string
	Timestamp   time.Time

	// Set when this event affects an existing order (cancel/modify).
	TargetClientOrderID string
}

// EventMessage wraps a TradingEvent with the sequencing metadata the wire
// format appends (§4.1): a monotonically increasing sequence id and an
// independent envelope timestamp.
type EventMessage struct {
	Event      TradingEvent
	SequenceID uint64
	Timestamp  time.Time
}

// Side is BUY or SELL, shared by signals, events and orders.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}
