// Package signal implements the latest-value signal table (C2), the
// trigger registry (C3), and the dispatcher that connects inbound signals
// to trigger evaluation and outbound trading events (C4).
//
// The table and dispatcher are accessed only from the signal collector's
// single main task (§5) — no locking is needed, matching the teacher's
// single-threaded risk manager loop.
package signal

import (
	"time"

	"github.com/tradingctl/controlplane/pkg/types"
)

// Clock returns the current time; tests substitute a fixed clock.
type Clock func() time.Time

// Table is the fixed-size ordered collection indexed by signal kind (§4.2).
type Table struct {
	slots []types.SignalStatus
	now   Clock
}

// NewTable creates an empty table sized to the fixed signal kind enumeration.
func NewTable(now Clock) *Table {
	if now == nil {
		now = time.Now
	}
	return &Table{
		slots: make([]types.SignalStatus, types.NumSignalKinds),
		now:   now,
	}
}

// Update writes the latest signal into its kind's slot and stamps
// LastUpdated. O(1). Per §9's open question, this implementation does not
// compare timestamps — a late-arriving older signal overwrites a newer one,
// matching the spec's documented (if questionable) source behavior.
func (t *Table) Update(s types.Signal) {
	slot := &t.slots[s.Kind]
	sig := s
	slot.LastSignal = &sig
	slot.LastUpdated = t.now()
}

// GetLast returns the most recent signal for kind, or nil if none arrived yet.
func (t *Table) GetLast(kind types.SignalKind) *types.Signal {
	if int(kind) >= len(t.slots) {
		return nil
	}
	return t.slots[kind].LastSignal
}

// GetStatus returns the full per-kind status record.
func (t *Table) GetStatus(kind types.SignalKind) types.SignalStatus {
	if int(kind) >= len(t.slots) {
		return types.SignalStatus{}
	}
	return t.slots[kind]
}

// RegisterTrigger subscribes triggerIdx to kind. Idempotent: registering the
// same index twice for the same kind is a no-op.
func (t *Table) RegisterTrigger(kind types.SignalKind, triggerIdx int) {
	slot := &t.slots[kind]
	for _, existing := range slot.TriggerIndices {
		if existing == triggerIdx {
			return
		}
	}
	slot.TriggerIndices = append(slot.TriggerIndices, triggerIdx)
}

// TriggersFor returns the ordered sequence of trigger indices subscribed to kind.
func (t *Table) TriggersFor(kind types.SignalKind) []int {
	if int(kind) >= len(t.slots) {
		return nil
	}
	return t.slots[kind].TriggerIndices
}
