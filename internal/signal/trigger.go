package signal

import "github.com/tradingctl/controlplane/pkg/types"

// Trigger is the capability contract §4.3 requires: pure, non-blocking,
// and never mutating the table it reads.
type Trigger interface {
	Name() string
	Priority() types.TriggerPriority
	Evaluate(table *Table, incoming types.Signal) *types.TradingEvent
}

// Registry is an ordered collection of named triggers. Register returns the
// assigned dense index, which is what the table's TriggerIndices reference.
type Registry struct {
	triggers []Trigger
}

// NewRegistry creates an empty trigger registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a trigger and returns its assigned index.
func (r *Registry) Register(t Trigger) int {
	r.triggers = append(r.triggers, t)
	return len(r.triggers) - 1
}

// At returns the trigger at idx, or nil if out of range.
func (r *Registry) At(idx int) Trigger {
	if idx < 0 || idx >= len(r.triggers) {
		return nil
	}
	return r.triggers[idx]
}

// Len returns the number of registered triggers.
func (r *Registry) Len() int { return len(r.triggers) }
