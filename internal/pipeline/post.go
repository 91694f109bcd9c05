package pipeline

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradingctl/controlplane/internal/arb"
	"github.com/tradingctl/controlplane/internal/order"
	"github.com/tradingctl/controlplane/internal/risk"
	"github.com/tradingctl/controlplane/pkg/types"
)

// PostContext carries the post-pipeline's working state (§4.4). Steps are
// side-effecting on shared state but never fail the pipeline — errors are
// logged and swallowed, since post-processing is best-effort accounting.
type PostContext struct {
	Report         types.ExecutionReport
	Risk           *risk.State
	Orders         *order.Manager
	Arb            *arb.Coordinator
	ShouldContinue bool

	// position, recomputed by update_position and read by calculate_pnl.
	position *types.Position
	pnl      decimal.Decimal
}

// PositionBook is the minimal position-lookup surface update_position and
// calculate_pnl need; a real book lives behind the pre/post processor and
// satisfies this interface.
type PositionBook interface {
	Get(exchangeID, symbol uint32) *types.Position
	Put(p *types.Position)
}

// PostStep is one link in the post chain.
type PostStep func(ctx *PostContext, cfg PostConfig, now time.Time)

// PostConfig bundles the collaborators the post chain's steps need.
type PostConfig struct {
	Positions PositionBook
	Persist   func(snapshot PersistSnapshot) error
	Logger    *slog.Logger
}

// PersistSnapshot is the best-effort state handed to the persist() hook
// (§6: "called at most every 60s, bound to an external snapshot sink").
type PersistSnapshot struct {
	Report   types.ExecutionReport
	Position *types.Position
	PnL      decimal.Decimal
	At       time.Time
}

// PostChain runs the five mandatory post-steps in order (§4.4):
// update_position -> update_risk_quota -> check_hedge_trigger ->
// calculate_pnl -> persist_state.
type PostChain struct {
	cfg    PostConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewPostChain builds the post chain.
func NewPostChain(cfg PostConfig, logger *slog.Logger) *PostChain {
	return &PostChain{
		cfg:    cfg,
		logger: logger.With("component", "post_pipeline"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run executes the chain against report. It never returns an error: every
// step logs and swallows its own failures.
func (c *PostChain) Run(report types.ExecutionReport, riskState *risk.State, orders *order.Manager, arbCoord *arb.Coordinator) {
	ctx := &PostContext{Report: report, Risk: riskState, Orders: orders, Arb: arbCoord, ShouldContinue: true}
	now := c.now()

	steps := []PostStep{
		c.updatePosition,
		c.updateRiskQuota,
		c.checkHedgeTrigger,
		c.calculatePnL,
		c.persistState,
	}
	for _, step := range steps {
		step(ctx, c.cfg, now)
	}
}

// updatePosition is §4.4 post-step 1: fold the fill into the exchange/symbol
// position book.
func (c *PostChain) updatePosition(ctx *PostContext, cfg PostConfig, now time.Time) {
	if cfg.Positions == nil {
		return
	}
	pos := cfg.Positions.Get(ctx.Report.ExchangeID, ctx.Report.Symbol)
	if pos == nil {
		pos = &types.Position{ExchangeID: ctx.Report.ExchangeID, Symbol: ctx.Report.Symbol}
	}

	switch ctx.Report.Side {
	case types.Buy:
		newQty := pos.Quantity.Add(ctx.Report.FilledQuantity)
		if newQty.IsPositive() {
			numerator := pos.Quantity.Mul(pos.AvgPrice).Add(ctx.Report.FilledQuantity.Mul(ctx.Report.FilledPrice))
			pos.AvgPrice = numerator.Div(newQty)
		}
		pos.Quantity = newQty
	case types.Sell:
		pos.Quantity = pos.Quantity.Sub(ctx.Report.FilledQuantity)
	}

	cfg.Positions.Put(pos)
	ctx.position = pos
}

// updateRiskQuota is §4.4 post-step 2.
func (c *PostChain) updateRiskQuota(ctx *PostContext, cfg PostConfig, now time.Time) {
	if ctx.Risk == nil {
		return
	}
	ctx.Risk.ProcessExecution(ctx.Report, ctx.Report.FilledQuantity.Mul(ctx.Report.FilledPrice))
}

// checkHedgeTrigger is §4.4 post-step 3: surface arbitrage pairs left in
// PartialSuccess so a hedge leg can be scheduled (§4.8).
func (c *PostChain) checkHedgeTrigger(ctx *PostContext, cfg PostConfig, now time.Time) {
	if ctx.Arb == nil {
		return
	}
	orderState := responseToOrderState(ctx.Report.Status)
	if ctx.Orders != nil {
		if pair := ctx.Arb.GetByOrder(ctx.Orders, ctx.Report.ClientOrderID); pair != nil {
			o := ctx.Orders.Get(ctx.Report.ClientOrderID)
			if o.IsHedge {
				_ = ctx.Arb.UpdateTakerStatus(pair.ID, orderState)
			} else {
				_ = ctx.Arb.UpdateMakerStatus(pair.ID, orderState)
			}
		}
	}
	hedgeRequired := ctx.Arb.GetHedgeRequiredPairs()
	if len(hedgeRequired) > 0 {
		c.logger.Info("hedge required", "pairs", len(hedgeRequired))
	}
}

func responseToOrderState(status types.ResponseStatus) types.OrderState {
	switch status {
	case types.RespFilled:
		return types.StateFilled
	case types.RespPartiallyFilled:
		return types.StatePartiallyFilled
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

// calculatePnL is §4.4 post-step 4: realized PnL delta for this fill,
// against the position's average price before this fill was folded in.
func (c *PostChain) calculatePnL(ctx *PostContext, cfg PostConfig, now time.Time) {
	if ctx.position == nil || ctx.Report.Status != types.RespFilled && ctx.Report.Status != types.RespPartiallyFilled {
		return
	}
	if ctx.Report.Side == types.Sell {
		delta := ctx.Report.FilledQuantity.Mul(ctx.Report.FilledPrice.Sub(ctx.position.AvgPrice))
		ctx.position.RealizedPnL = ctx.position.RealizedPnL.Add(delta)
		ctx.pnl = delta
	}
}

// persistState is §4.4 post-step 5: best-effort external snapshot hook.
func (c *PostChain) persistState(ctx *PostContext, cfg PostConfig, now time.Time) {
	if cfg.Persist == nil {
		return
	}
	if err := cfg.Persist(PersistSnapshot{
		Report:   ctx.Report,
		Position: ctx.position,
		PnL:      ctx.pnl,
		At:       now,
	}); err != nil {
		c.logger.Warn("persist snapshot failed", "error", err)
	}
}
