package order

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tradingctl/controlplane/pkg/types"
)

// ErrOverfill guards the §9 open question about over-fill detection: the
// spec notes the source recomputes remaining_quantity as quantity minus
// total executed with "no room for over-fill detection" and recommends
// failing loudly instead.
var ErrOverfill = errors.New("order: fill would exceed order quantity")

// ErrUnknownOrder is returned by lookups that miss.
var ErrUnknownOrder = errors.New("order: unknown client_order_id")

// Manager owns every Order exclusively (§3 Ownership). All other components
// refer to orders by client_order_id. The manager is driven from the single
// pre/post processor task (§5); the mutex makes the exported methods safe
// to call from other goroutines.
type Manager struct {
	mu sync.RWMutex

	byClientID   map[string]*types.Order
	byExchangeID map[string]string   // exchange_order_id -> client_order_id
	bySymbol     map[uint32][]string // symbol -> ordered client_order_ids

	active  []string // ordered client_order_ids in an active state
	pending []string

	queue *PriorityQueue

	avgFillTime   time.Duration
	filledCount   int

	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates an empty order manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		byClientID:   make(map[string]*types.Order),
		byExchangeID: make(map[string]string),
		bySymbol:     make(map[uint32][]string),
		queue:        NewPriorityQueue(),
		logger:       logger.With("component", "order_manager"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a newly constructed order (state Created) and indexes it.
func (m *Manager) Create(o *types.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o.CreatedAt = m.now()
	o.UpdatedAt = o.CreatedAt
	o.RemainingQuantity = o.Quantity
	m.byClientID[o.ClientOrderID] = o
	m.bySymbol[o.Symbol] = append(m.bySymbol[o.Symbol], o.ClientOrderID)
}

// Get returns the order for id, or nil if unknown.
func (m *Manager) Get(clientOrderID string) *types.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byClientID[clientOrderID]
}

// GetByExchangeID resolves an exchange_order_id back to the owning order.
func (m *Manager) GetByExchangeID(exchangeOrderID string) *types.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	clientID, ok := m.byExchangeID[exchangeOrderID]
	if !ok {
		return nil
	}
	return m.byClientID[clientID]
}

// BySymbol returns the ordered client_order_ids for symbol.
func (m *Manager) BySymbol(symbol uint32) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.bySymbol[symbol]))
	copy(out, m.bySymbol[symbol])
	return out
}

// Enqueue pushes an order onto the priority queue and tracks it as pending.
func (m *Manager) Enqueue(clientOrderID string, priority int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue.Push(clientOrderID, priority)
	m.pending = append(m.pending, clientOrderID)
}

// Dequeue pops the next order id to submit.
func (m *Manager) Dequeue() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Pop()
}

// Transition applies a state-machine event to the order, updating the
// active-set bookkeeping and the exchange-id index as a side effect.
func (m *Manager) Transition(clientOrderID string, event types.TransitionEvent, reason string, exchangeOrderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.byClientID[clientOrderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, clientOrderID)
	}

	wasActive := o.State.Active()

	if err := Apply(o, event, reason, m.now()); err != nil {
		return err
	}

	if event == types.EvSubmitSuccess && exchangeOrderID != "" {
		o.ExchangeOrderID = exchangeOrderID
		m.byExchangeID[exchangeOrderID] = clientOrderID
	}

	if o.State == types.StateFilled {
		o.FilledAt = m.now()
		m.filledCount++
		m.avgFillTime = recomputeAvgFillTime(m.avgFillTime, o.FilledAt.Sub(o.CreatedAt), m.filledCount)
	}

	nowActive := o.State.Active()
	if nowActive && !wasActive {
		m.active = append(m.active, clientOrderID)
	} else if !nowActive && wasActive {
		m.active = removeString(m.active, clientOrderID)
	}
	if o.State.Terminal() {
		m.pending = removeString(m.pending, clientOrderID)
	}

	return nil
}

// recomputeAvgFillTime implements the running-mean update from §4.7:
// avg <- (avg*(n-1) + new) / n.
func recomputeAvgFillTime(avg time.Duration, newSample time.Duration, n int) time.Duration {
	if n <= 0 {
		return newSample
	}
	total := avg*time.Duration(n-1) + newSample
	return total / time.Duration(n)
}

// AvgFillTime returns the running mean fill duration across all Filled orders.
func (m *Manager) AvgFillTime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.avgFillTime
}

// ApplyFill records a partial or full fill: updates the volume-weighted
// executed price, executed/remaining quantities, and appends a Fill record.
// It fails loudly on over-fill per §9's guidance rather than silently
// clamping remaining_quantity to zero.
func (m *Manager) ApplyFill(clientOrderID string, fill types.Fill, isFinal bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.byClientID[clientOrderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, clientOrderID)
	}

	newExecuted := o.ExecutedQuantity.Add(fill.Quantity)
	if newExecuted.GreaterThan(o.Quantity) {
		return fmt.Errorf("%w: order %s executed %s + fill %s > quantity %s",
			ErrOverfill, clientOrderID, o.ExecutedQuantity, fill.Quantity, o.Quantity)
	}

	// Volume-weighted average: (old_qty*old_price + fill_qty*fill_price) / new_qty.
	if newExecuted.IsPositive() {
		numerator := o.ExecutedQuantity.Mul(o.ExecutedPrice).Add(fill.Quantity.Mul(fill.Price))
		o.ExecutedPrice = numerator.Div(newExecuted)
	}
	o.ExecutedQuantity = newExecuted
	o.RemainingQuantity = o.Quantity.Sub(o.ExecutedQuantity)
	o.Fills = append(o.Fills, fill)

	event := types.EvPartialFill
	if isFinal || o.RemainingQuantity.IsZero() {
		event = types.EvFill
	}

	wasActive := o.State.Active()
	if err := Apply(o, event, "", m.now()); err != nil {
		return err
	}
	if o.State == types.StateFilled {
		o.FilledAt = m.now()
		m.filledCount++
		m.avgFillTime = recomputeAvgFillTime(m.avgFillTime, o.FilledAt.Sub(o.CreatedAt), m.filledCount)
	}
	nowActive := o.State.Active()
	if nowActive && !wasActive {
		m.active = append(m.active, clientOrderID)
	} else if !nowActive && wasActive {
		m.active = removeString(m.active, clientOrderID)
		if o.State.Terminal() {
			m.pending = removeString(m.pending, clientOrderID)
		}
	}

	return nil
}

// CanRetry reports whether a Failed order may be re-submitted (§4.7).
func (m *Manager) CanRetry(clientOrderID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.byClientID[clientOrderID]
	if !ok || o.State != types.StateFailed {
		return false
	}
	return o.RetryCount < o.MaxRetry
}

// Retry increments retry_count and re-enqueues the order at its original priority.
func (m *Manager) Retry(clientOrderID string) error {
	m.mu.Lock()
	o, ok := m.byClientID[clientOrderID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownOrder, clientOrderID)
	}
	if o.RetryCount >= o.MaxRetry {
		m.mu.Unlock()
		return fmt.Errorf("order: %s has exhausted retries (%d/%d)", clientOrderID, o.RetryCount, o.MaxRetry)
	}
	o.RetryCount++
	priority := o.Priority
	m.pending = append(m.pending, clientOrderID)
	m.mu.Unlock()

	m.queue.Push(clientOrderID, priority)
	return nil
}

// Cleanup removes terminal orders whose UpdatedAt is older than horizon,
// purging their fills and state-machine history (§4.7, default 24h).
func (m *Manager) Cleanup(horizon time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-horizon)
	removed := 0
	for id, o := range m.byClientID {
		if !o.State.Terminal() || o.UpdatedAt.After(cutoff) {
			continue
		}
		delete(m.byClientID, id)
		if o.ExchangeOrderID != "" {
			delete(m.byExchangeID, o.ExchangeOrderID)
		}
		m.bySymbol[o.Symbol] = removeString(m.bySymbol[o.Symbol], id)
		removed++
	}
	return removed
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
