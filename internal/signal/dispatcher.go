package signal

import "github.com/tradingctl/controlplane/pkg/types"

// Dispatcher implements C4: on each inbound signal it updates the table,
// enumerates the subscribed triggers in index order, and collects the
// trading events they emit.
type Dispatcher struct {
	table    *Table
	registry *Registry
}

// NewDispatcher wires a table and registry together.
func NewDispatcher(table *Table, registry *Registry) *Dispatcher {
	return &Dispatcher{table: table, registry: registry}
}

// Dispatch processes one inbound signal and returns the events emitted by
// subscribed triggers, in trigger-index order.
func (d *Dispatcher) Dispatch(s types.Signal) []types.TradingEvent {
	d.table.Update(s)

	indices := d.table.TriggersFor(s.Kind)
	if len(indices) == 0 {
		return nil
	}

	events := make([]types.TradingEvent, 0, len(indices))
	for _, idx := range indices {
		trig := d.registry.At(idx)
		if trig == nil {
			continue
		}
		if evt := trig.Evaluate(d.table, s); evt != nil {
			events = append(events, *evt)
		}
	}
	return events
}
