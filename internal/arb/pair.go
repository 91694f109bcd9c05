// Package arb implements the arbitrage coordinator (C8): maker/taker pair
// tracking and joint-state resolution per §4.8. Pair state is a pure
// function of the two member order states; the coordinator holds no hidden
// memory beyond the last-observed leg states.
package arb

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradingctl/controlplane/internal/order"
	"github.com/tradingctl/controlplane/pkg/types"
)

// ErrUnknownPair is returned by lookups that miss.
var ErrUnknownPair = errors.New("arb: unknown pair id")

// slippageFeeReserve is the stub factor applied to expected_profit on
// entering Completed (§4.8).
const slippageFeeReserve = "0.95"

// Coordinator tracks every open ArbitragePair and recomputes joint state on
// each leg update (§4.8). It never mutates Order records directly; callers
// feed it leg states observed from the order manager.
type Coordinator struct {
	mu    sync.RWMutex
	pairs map[string]*types.ArbitragePair
	now   func() time.Time
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		pairs: make(map[string]*types.ArbitragePair),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a new pair in state Created.
func (c *Coordinator) Create(p *types.ArbitragePair) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p.State = types.ArbCreated
	p.CreatedAt = c.now()
	c.pairs[p.ID] = p
}

// Get returns the pair for id, or nil if unknown.
func (c *Coordinator) Get(id string) *types.ArbitragePair {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pairs[id]
}

// UpdateMakerStatus records the maker leg's latest order state and
// recomputes the pair's joint state.
func (c *Coordinator) UpdateMakerStatus(id string, state types.OrderState) error {
	return c.updateLeg(id, &state, nil)
}

// UpdateTakerStatus records the taker leg's latest order state and
// recomputes the pair's joint state.
func (c *Coordinator) UpdateTakerStatus(id string, state types.OrderState) error {
	return c.updateLeg(id, nil, &state)
}

func (c *Coordinator) updateLeg(id string, maker, taker *types.OrderState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pairs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPair, id)
	}
	if p.State.Terminal() {
		return nil
	}
	if maker != nil {
		p.MakerStatus = maker
	}
	if taker != nil {
		p.TakerStatus = taker
	}

	next := resolveJointState(p.State, p.MakerStatus, p.TakerStatus)
	if next == p.State {
		return nil
	}
	p.State = next

	if next.Terminal() {
		now := c.now()
		p.CompletedAt = &now
	}
	if next == types.ArbCompleted {
		factor, _ := decimal.NewFromString(slippageFeeReserve)
		actual := p.ExpectedProfit.Mul(factor)
		p.ActualProfit = &actual
	}
	return nil
}

// resolveJointState implements the §4.8 decision table over the four boolean
// flags. Combinations the table leaves "otherwise unchanged" fall through to
// advancePendingState, which still moves the pair between the pending states.
func resolveJointState(current types.ArbitragePairState, maker, taker *types.OrderState) types.ArbitragePairState {
	filled := func(s *types.OrderState) bool { return s != nil && *s == types.StateFilled }
	failed := func(s *types.OrderState) bool {
		if s == nil {
			return false
		}
		switch *s {
		case types.StateRejected, types.StateFailed, types.StateCancelled, types.StateExpired:
			return true
		default:
			return false
		}
	}

	mFill, tFill := filled(maker), filled(taker)
	mFail, tFail := failed(maker), failed(taker)

	switch {
	case mFill && tFill:
		return types.ArbCompleted
	case mFill && !tFill && tFail:
		return types.ArbPartialSuccess
	case !mFill && tFill && mFail:
		return types.ArbPartialSuccess
	case !mFill && !tFill && mFail && tFail:
		return types.ArbFailed
	case mFill && !tFill && !tFail:
		return types.ArbMakerFilled
	default:
		return advancePendingState(current, maker, taker)
	}
}

// advancePendingState handles the non-terminal bookkeeping the decision
// table leaves as "otherwise unchanged" for flag combinations, while still
// reflecting legs moving into flight (Created -> MakerPending/TakerPending
// -> BothPending).
func advancePendingState(current types.ArbitragePairState, maker, taker *types.OrderState) types.ArbitragePairState {
	makerInFlight := maker != nil && *maker != types.StateCreated
	takerInFlight := taker != nil && *taker != types.StateCreated

	switch {
	case makerInFlight && takerInFlight:
		return types.ArbBothPending
	case makerInFlight:
		return types.ArbMakerPending
	case takerInFlight:
		return types.ArbTakerPending
	default:
		return current
	}
}

// GetByOrder resolves a pair from a bare client_order_id, the only handle an
// ExecutionReport carries. The order manager remains the single owner of the
// order-id-to-arbitrage-id mapping (§9); this composes that lookup with Get
// rather than keeping a second index in the coordinator.
func (c *Coordinator) GetByOrder(orders *order.Manager, orderID string) *types.ArbitragePair {
	if orders == nil {
		return nil
	}
	o := orders.Get(orderID)
	if o == nil || o.ArbitrageID == "" {
		return nil
	}
	return c.Get(o.ArbitrageID)
}

// Cancel abandons a non-terminal pair outright — used when a pair's
// remaining leg will never produce an execution report to derive a terminal
// state from (e.g. the pre-pipeline vetoes the second leg's order before it
// is ever submitted). A no-op on an already-terminal or unknown pair.
func (c *Coordinator) Cancel(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pairs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPair, id)
	}
	if p.State.Terminal() {
		return nil
	}
	p.State = types.ArbCancelled
	now := c.now()
	p.CompletedAt = &now
	return nil
}

// GetHedgeRequiredPairs returns every PartialSuccess pair, for the
// post-pipeline to schedule a hedge leg against (§4.8).
func (c *Coordinator) GetHedgeRequiredPairs() []*types.ArbitragePair {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*types.ArbitragePair
	for _, p := range c.pairs {
		if p.State == types.ArbPartialSuccess {
			out = append(out, p)
		}
	}
	return out
}

// Cleanup removes terminal pairs completed more than keepFor ago.
func (c *Coordinator) Cleanup(keepFor time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.now().Add(-keepFor)
	removed := 0
	for id, p := range c.pairs {
		if p.CompletedAt == nil || p.CompletedAt.After(cutoff) {
			continue
		}
		delete(c.pairs, id)
		removed++
	}
	return removed
}
