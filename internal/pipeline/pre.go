// Package pipeline implements the pre/post pipeline (C9): the five-step
// pre chain that turns a dispatched TradingEvent into a prioritized Order,
// and the five-step post chain that folds an ExecutionReport back into
// shared state. Every step is `(Context) -> Context`; a step that
// short-circuits sets should_continue=false and every later step becomes a
// no-op.
package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradingctl/controlplane/internal/risk"
	"github.com/tradingctl/controlplane/pkg/types"
)

// defaultSignalAge is the staleness cutoff from §4.4 step 1.
const defaultSignalAge = 100 * time.Millisecond

// defaultPositionCap is the single-symbol quantity cap from §4.4 step 3.
var defaultPositionCap = decimal.NewFromInt(100)

const (
	priorityArbitrage = 10
	priorityHedge     = 8
	priorityMarket    = 5
)

// PreContext carries the pre-pipeline's working state (§4.4). Signal is the
// originating signal that caused the dispatcher to fire (carried for
// staleness and risk-rule evaluation); Event is the TradingEvent the
// dispatcher emitted, which already carries symbol/side/quantity/price —
// the pre-pipeline sources the constructed order from it rather than
// re-deriving those fields from the raw signal.
type PreContext struct {
	Signal              types.Signal
	Event               types.TradingEvent
	Risk                *risk.State
	ShouldContinue      bool
	VetoReason          string
	Priority            int
	Order               *types.Order
	PositionCapOverride *decimal.Decimal // per-call override of defaultPositionCap, nil uses default
	ArbitrageID         string           // set by the caller when this leg belongs to an arbitrage pair
}

// PreStep is one link in the pre chain.
type PreStep func(ctx *PreContext, cfg PreConfig, now time.Time)

// PreConfig holds the tunables a step may need (§4.4 notes signal age and
// position cap are both configurable).
type PreConfig struct {
	MaxSignalAge       time.Duration
	PositionCapDefault decimal.Decimal
	RuleChain          *risk.Chain
	IDGenerator        func(event types.TradingEvent) string
}

// DefaultPreConfig wires the built-in defaults named in §4.4/§4.5.
func DefaultPreConfig(chain *risk.Chain, idGen func(types.TradingEvent) string) PreConfig {
	return PreConfig{
		MaxSignalAge:       defaultSignalAge,
		PositionCapDefault: defaultPositionCap,
		RuleChain:          chain,
		IDGenerator:        idGen,
	}
}

// PreChain runs the mandatory five pre-steps in order (§4.4).
type PreChain struct {
	cfg    PreConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewPreChain builds the pre chain.
func NewPreChain(cfg PreConfig, logger *slog.Logger) *PreChain {
	return &PreChain{
		cfg:    cfg,
		logger: logger.With("component", "pre_pipeline"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run executes the chain against the originating signal, the event the
// dispatcher derived from it, and risk state — returning the constructed
// order or nil if any step vetoed (§4.4's "pre-pipeline result is
// Some(Order) only if all steps pass").
func (c *PreChain) Run(signal types.Signal, event types.TradingEvent, riskState *risk.State, arbitrageID string) (*types.Order, string) {
	ctx := &PreContext{Signal: signal, Event: event, Risk: riskState, ShouldContinue: true, ArbitrageID: arbitrageID}
	now := c.now()

	steps := []PreStep{
		checkSignalAge,
		checkRiskControl,
		checkPositionLimit,
		constructOrder,
		assignPriority,
	}
	for _, step := range steps {
		step(ctx, c.cfg, now)
		if !ctx.ShouldContinue {
			c.logger.Debug("pre-pipeline veto", "reason", ctx.VetoReason, "symbol", signal.SymbolID)
			return nil, ctx.VetoReason
		}
	}
	return ctx.Order, ""
}

// checkSignalAge is §4.4 step 1.
func checkSignalAge(ctx *PreContext, cfg PreConfig, now time.Time) {
	if !ctx.ShouldContinue {
		return
	}
	age := now.Sub(ctx.Signal.Timestamp)
	if age > cfg.MaxSignalAge {
		ctx.ShouldContinue = false
		ctx.VetoReason = fmt.Sprintf("signal age %s exceeds max %s", age, cfg.MaxSignalAge)
	}
}

// checkRiskControl is §4.4 step 2: invoke the rule chain; a veto stops the
// pipeline.
func checkRiskControl(ctx *PreContext, cfg PreConfig, now time.Time) {
	if !ctx.ShouldContinue || cfg.RuleChain == nil {
		return
	}
	result := cfg.RuleChain.Evaluate(ctx.Signal, ctx.Risk)
	if result.Vetoed {
		ctx.ShouldContinue = false
		ctx.VetoReason = fmt.Sprintf("risk veto: %s (%s)", result.VetoRule, result.VetoReason)
	}
}

// checkPositionLimit is §4.4 step 3: |pos + qty| <= per-symbol cap.
func checkPositionLimit(ctx *PreContext, cfg PreConfig, now time.Time) {
	if !ctx.ShouldContinue {
		return
	}
	cap := cfg.PositionCapDefault
	if ctx.PositionCapOverride != nil {
		cap = *ctx.PositionCapOverride
	}

	quota := ctx.Risk.Quota(ctx.Event.Symbol)
	signed := ctx.Event.Quantity
	if ctx.Event.Side == types.Sell {
		signed = signed.Neg()
	}
	projected := quota.CurrentPosition.Add(signed).Abs()
	if projected.GreaterThan(cap) {
		ctx.ShouldContinue = false
		ctx.VetoReason = fmt.Sprintf("position limit exceeded: projected %s > cap %s", projected, cap)
	}
}

// constructOrder is §4.4 step 4: materialize the Order from the event with
// a deterministic id.
func constructOrder(ctx *PreContext, cfg PreConfig, now time.Time) {
	if !ctx.ShouldContinue {
		return
	}
	if cfg.IDGenerator == nil {
		ctx.ShouldContinue = false
		ctx.VetoReason = "no id generator configured"
		return
	}

	var exchangeID uint32
	if len(ctx.Event.ExchangeIDs) > 0 {
		exchangeID = ctx.Event.ExchangeIDs[0]
	}

	orderType := types.OrderTypeLimit
	if ctx.Event.Price == nil {
		orderType = types.OrderTypeMarket
	}

	ctx.Order = &types.Order{
		ClientOrderID: cfg.IDGenerator(ctx.Event),
		SignalID:      fmt.Sprintf("%d:%d", ctx.Signal.Kind, ctx.Signal.Timestamp.UnixMilli()),
		Symbol:        ctx.Event.Symbol,
		ExchangeID:    exchangeID,
		Side:          ctx.Event.Side,
		OrderType:     orderType,
		TIF:           types.TIFGTC,
		Price:         ctx.Event.Price,
		Quantity:      ctx.Event.Quantity,
		State:         types.StateCreated,
		MaxRetry:      3,
		IsHedge:       ctx.Event.Kind == types.EventHedgePosition,
		ArbitrageID:   ctx.ArbitrageID,
	}
	if ctx.Event.Kind == types.EventCancelOrder || ctx.Event.Kind == types.EventModifyOrder {
		ctx.Order.HedgeOrderID = ctx.Event.TargetClientOrderID
	}
}

// assignPriority is §4.4 step 5: Arbitrage=10, Hedge=8, Market=5. An order
// with an ArbitrageID gets Arbitrage, since a TradingEvent's Kind alone
// doesn't distinguish an arbitrage leg from a plain directional order; a
// HedgePosition event gets Hedge; everything else gets Market.
func assignPriority(ctx *PreContext, cfg PreConfig, now time.Time) {
	if !ctx.ShouldContinue {
		return
	}
	priority := priorityMarket
	switch {
	case ctx.ArbitrageID != "":
		priority = priorityArbitrage
	case ctx.Event.Kind == types.EventHedgePosition:
		priority = priorityHedge
	}
	ctx.Priority = priority
	if ctx.Order != nil {
		ctx.Order.Priority = priority
	}
}
