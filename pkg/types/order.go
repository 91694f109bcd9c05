package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderType is the execution semantics requested for an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// TimeInForce controls how long a resting order stays live.
type TimeInForce string

const (
	TIFGTC TimeInForce = "GTC" // good-til-cancelled
	TIFIOC TimeInForce = "IOC" // immediate-or-cancel
	TIFFOK TimeInForce = "FOK" // fill-or-kill
)

// OrderState is one of the 11 states of the order lifecycle (§4.6).
type OrderState string

const (
	StateCreated         OrderState = "CREATED"
	StateValidated       OrderState = "VALIDATED"
	StateSubmitting      OrderState = "SUBMITTING"
	StateSubmitted       OrderState = "SUBMITTED"
	StateAcknowledged    OrderState = "ACKNOWLEDGED"
	StatePartiallyFilled OrderState = "PARTIALLY_FILLED"
	StateFilled          OrderState = "FILLED"
	StateCancelled       OrderState = "CANCELLED"
	StateRejected        OrderState = "REJECTED"
	StateExpired         OrderState = "EXPIRED"
	StateFailed          OrderState = "FAILED"
)

// Terminal reports whether the state ends the order's lifecycle.
func (s OrderState) Terminal() bool {
	switch s {
	case StateFilled, StateCancelled, StateRejected, StateExpired, StateFailed:
		return true
	default:
		return false
	}
}

// Active reports whether the state counts towards exposure/pending accounting.
func (s OrderState) Active() bool {
	switch s {
	case StateSubmitting, StateSubmitted, StateAcknowledged, StatePartiallyFilled:
		return true
	default:
		return false
	}
}

// Cancellable reports whether a Cancel event is a legal transition from this state.
func (s OrderState) Cancellable() bool {
	switch s {
	case StateCreated, StateValidated, StateSubmitting, StateSubmitted, StateAcknowledged, StatePartiallyFilled:
		return true
	default:
		return false
	}
}

// TransitionEvent is the dense tag for state-machine events (§4.6).
type TransitionEvent string

const (
	EvValidate      TransitionEvent = "VALIDATE"
	EvSubmit        TransitionEvent = "SUBMIT"
	EvSubmitSuccess TransitionEvent = "SUBMIT_SUCCESS"
	EvSubmitFailed  TransitionEvent = "SUBMIT_FAILED"
	EvAcknowledge   TransitionEvent = "ACKNOWLEDGE"
	EvReject        TransitionEvent = "REJECT"
	EvPartialFill   TransitionEvent = "PARTIAL_FILL"
	EvFill          TransitionEvent = "FILL"
	EvCancel        TransitionEvent = "CANCEL"
	EvExpire        TransitionEvent = "EXPIRE"
	EvSystemError   TransitionEvent = "SYSTEM_ERROR"
)

// TransitionRecord is an immutable entry in an order's state history.
type TransitionRecord struct {
	From      OrderState
	To        OrderState
	Event     TransitionEvent
	Timestamp time.Time
	Reason    string // carried by SubmitFailed/Reject/SystemError
}

// Fill is one execution against an order.
type Fill struct {
	TradeID     string
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	Fee         decimal.Decimal
	FeeCurrency string
	Timestamp   time.Time
}

// Order is the central mutable entity owned exclusively by the order manager.
type Order struct {
	ClientOrderID   string // deterministic, idempotent
	ExchangeOrderID string // set on SubmitSuccess
	SignalID        string // provenance

	Symbol      uint32
	ExchangeID  uint32
	Side        Side
	OrderType   OrderType
	TIF         TimeInForce
	Price       *decimal.Decimal // nil for market orders
	Quantity    decimal.Decimal

	ExecutedQuantity decimal.Decimal
	ExecutedPrice    decimal.Decimal // volume-weighted average
	RemainingQuantity decimal.Decimal

	State     OrderState
	Priority  int // 0..=10
	MaxRetry  int
	RetryCount int

	ArbitrageID   string // optional
	HedgeOrderID  string // optional
	IsHedge       bool

	CreatedAt   time.Time
	UpdatedAt   time.Time
	SubmittedAt time.Time
	FilledAt    time.Time

	History []TransitionRecord
	Fills   []Fill
}

// ExecutionReport is what the trading engine returns after fan-out, and
// what the order manager / risk state consume to update lifecycle and
// exposure (§4.5, §4.7).
type ExecutionReport struct {
	ClientOrderID   string
	ExchangeOrderID string
	Symbol          uint32
	ExchangeID      uint32
	Side            Side
	Status          ResponseStatus
	FilledQuantity  decimal.Decimal // incremental quantity filled by this report
	FilledPrice     decimal.Decimal
	Fee             decimal.Decimal
	FeeCurrency     string
	TradeID         string
	Error           string
	Timestamp       time.Time
}

// ResponseStatus is the exchange-reported status used both by the executor's
// best-response selection (§4.12) and by execution-report processing (§4.5).
type ResponseStatus string

const (
	RespNew             ResponseStatus = "NEW"
	RespPartiallyFilled ResponseStatus = "PARTIALLY_FILLED"
	RespFilled          ResponseStatus = "FILLED"
	RespCancelled       ResponseStatus = "CANCELLED"
	RespExpired         ResponseStatus = "EXPIRED"
	RespRejected        ResponseStatus = "REJECTED"
)

// responseRank orders statuses for best-response selection (§4.12 step 6):
// Filled > PartiallyFilled > New > Cancelled > Expired > Rejected.
var responseRank = map[ResponseStatus]int{
	RespFilled:          6,
	RespPartiallyFilled: 5,
	RespNew:             4,
	RespCancelled:       3,
	RespExpired:         2,
	RespRejected:        1,
}

// Rank returns the priority used to pick the best of several concurrent
// responses to the same order. Higher is better.
func (s ResponseStatus) Rank() int { return responseRank[s] }

// Successful reports whether status means the order is resting or executing.
func (s ResponseStatus) Successful() bool {
	switch s {
	case RespNew, RespPartiallyFilled, RespFilled:
		return true
	default:
		return false
	}
}
