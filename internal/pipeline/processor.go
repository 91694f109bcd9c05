package pipeline

import (
	"log/slog"

	"github.com/tradingctl/controlplane/internal/arb"
	"github.com/tradingctl/controlplane/internal/order"
	"github.com/tradingctl/controlplane/internal/risk"
	"github.com/tradingctl/controlplane/pkg/types"
)

// Processor is the pre/post processor's single root type (C9): it owns the
// pre chain, the post chain, and the order/risk/arb state they share, and is
// the process's entire unit of concurrency (§5: "strictly single-threaded").
// A bus-attached receive loop calls HandleTradingEvent for every dispatched
// event and HandleExecutionReport for every executor response.
type Processor struct {
	pre    *PreChain
	post   *PostChain
	risk   *risk.State
	orders *order.Manager
	arb    *arb.Coordinator
	logger *slog.Logger
}

// NewProcessor wires a Processor from its already-constructed collaborators.
func NewProcessor(pre *PreChain, post *PostChain, riskState *risk.State, orders *order.Manager, arbCoord *arb.Coordinator, logger *slog.Logger) *Processor {
	return &Processor{
		pre:    pre,
		post:   post,
		risk:   riskState,
		orders: orders,
		arb:    arbCoord,
		logger: logger.With("component", "processor"),
	}
}

// HandleTradingEvent runs the pre chain for one dispatched event. On success
// it registers and enqueues the constructed order; on veto it returns
// (nil, reason).
func (p *Processor) HandleTradingEvent(signal types.Signal, event types.TradingEvent, arbitrageID string) (*types.Order, string) {
	o, reason := p.pre.Run(signal, event, p.risk, arbitrageID)
	if o == nil {
		if reason != "" {
			p.logger.Info("pre chain vetoed event", "reason", reason, "symbol", event.Symbol)
		}
		// A vetoed leg never produces an order, so it will never report an
		// execution for the post chain to derive a terminal pair state from.
		// Cancel the pair outright rather than leaving it stranded pending.
		if arbitrageID != "" {
			if err := p.arb.Cancel(arbitrageID); err != nil {
				p.logger.Warn("failed to cancel arbitrage pair after veto", "arbitrage_id", arbitrageID, "error", err)
			}
		}
		return nil, reason
	}
	p.orders.Create(o)
	p.orders.Enqueue(o.ClientOrderID, o.Priority)
	return o, ""
}

// HandleExecutionReport runs the post chain for one executor response.
func (p *Processor) HandleExecutionReport(report types.ExecutionReport) {
	p.post.Run(report, p.risk, p.orders, p.arb)
}
