// Package order implements the order state machine (C6) and the order
// manager (C7): book indices, the priority queue, fill accounting, and
// retry policy.
package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/tradingctl/controlplane/pkg/types"
)

// ErrInvalidTransition is returned when a (state, event) pair has no edge
// in the transition table (§4.6). The order is left unchanged.
var ErrInvalidTransition = errors.New("order: invalid transition")

// transitionTable maps (from, event) -> to, mirroring §4.6 exactly. Entries
// for Cancel and Expire are expanded per-state in Apply rather than listed
// here, since they apply to whole state classes (cancellable / active).
var transitionTable = map[types.OrderState]map[types.TransitionEvent]types.OrderState{
	types.StateCreated: {
		types.EvValidate: types.StateValidated,
	},
	types.StateValidated: {
		types.EvSubmit: types.StateSubmitting,
	},
	types.StateSubmitting: {
		types.EvSubmitSuccess: types.StateSubmitted,
		types.EvSubmitFailed:  types.StateFailed,
	},
	types.StateSubmitted: {
		types.EvAcknowledge: types.StateAcknowledged,
		types.EvReject:      types.StateRejected,
	},
	types.StateAcknowledged: {
		types.EvPartialFill: types.StatePartiallyFilled,
		types.EvFill:        types.StateFilled,
	},
	types.StatePartiallyFilled: {
		types.EvPartialFill: types.StatePartiallyFilled,
		types.EvFill:        types.StateFilled,
	},
}

// Apply validates and performs a single transition on order, appending an
// immutable history record on success. reason carries the event-specific
// text for SubmitFailed/Reject/SystemError.
func Apply(o *types.Order, event types.TransitionEvent, reason string, now time.Time) error {
	from := o.State
	var to types.OrderState
	var matched bool

	switch event {
	case types.EvCancel:
		if from.Cancellable() {
			to, matched = types.StateCancelled, true
		}
	case types.EvExpire:
		if from.Active() {
			to, matched = types.StateExpired, true
		}
	case types.EvSystemError:
		if !from.Terminal() {
			to, matched = types.StateFailed, true
		}
	default:
		if edges, ok := transitionTable[from]; ok {
			if target, ok := edges[event]; ok {
				to, matched = target, true
			}
		}
	}

	if !matched {
		return fmt.Errorf("%w: state=%s event=%s", ErrInvalidTransition, from, event)
	}

	o.State = to
	o.UpdatedAt = now
	o.History = append(o.History, types.TransitionRecord{
		From:      from,
		To:        to,
		Event:     event,
		Timestamp: now,
		Reason:    reason,
	})
	return nil
}
