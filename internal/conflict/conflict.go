// Package conflict decides whether a cart mutation may proceed or must
// wait for the user to resolve a kitchen conflict. It enforces the
// central invariant of the cart subsystem: a cart is single-kitchen at
// all times.
//
// The resolver is a pure state machine; clearing the remote cart and
// replaying the suspended mutation are side effects owned by the engine.
package conflict

import (
	"kitchencart/internal/model"
)

// State is the resolver's position in the conflict lifecycle.
type State string

const (
	// StateClear means no conflict is outstanding; mutations proceed.
	StateClear State = "clear"
	// StatePendingConfirmation means an add was suspended and a user
	// decision is required before any conflicting add can proceed.
	StatePendingConfirmation State = "pending_confirmation"
)

// Request describes the mutation under evaluation.
type Request struct {
	Action    model.MutationAction
	KitchenID string
	ItemID    string
	Quantity  int
	Source    model.MutationSource

	// Force bypasses the conflict check. Set only by the engine when
	// replaying a suspended action after a user-confirmed clear; it is
	// never client-settable.
	Force bool
}

// Result is the outcome of evaluating a mutation.
type Result struct {
	// Blocked reports that the mutation was suspended pending a user
	// decision. When false the mutation may reach the backend.
	Blocked bool
	// Pending is the suspended action when Blocked.
	Pending *model.PendingCartAction
	// PastKitchen is the cached record that triggered the conflict,
	// for the confirmation prompt.
	PastKitchen *model.PastKitchenRecord
}

// Resolver tracks at most one pending conflict for a single cart owner.
// Not safe for concurrent use; the engine serializes access.
type Resolver struct {
	state       State
	pending     *model.PendingCartAction
	pastKitchen *model.PastKitchenRecord
}

// NewResolver returns a resolver in the Clear state.
func NewResolver() *Resolver {
	return &Resolver{state: StateClear}
}

// State returns the current state.
func (r *Resolver) State() State {
	return r.state
}

// Pending returns the suspended action, or nil when none.
func (r *Resolver) Pending() *model.PendingCartAction {
	return r.pending
}

// PastKitchen returns the cached record behind the pending conflict.
func (r *Resolver) PastKitchen() *model.PastKitchenRecord {
	return r.pastKitchen
}

// Evaluate runs the conflict check for a mutation against the cached
// past-kitchen record. A conflict arises only for an unforced add whose
// target kitchen differs from a non-empty cached record. Everything else
// proceeds: removes, matching kitchens, an empty or absent cache (the
// fail-open path for storage degradation), and forced replays.
//
// While a conflict is pending, further conflicting adds return the same
// pending decision rather than stacking new ones.
func (r *Resolver) Evaluate(cached *model.PastKitchenRecord, req Request) Result {
	if req.Action != model.ActionAdd || req.Force {
		return Result{}
	}
	if cached == nil || cached.ItemCount <= 0 || cached.KitchenID == req.KitchenID {
		return Result{}
	}

	if r.state != StatePendingConfirmation {
		r.state = StatePendingConfirmation
		r.pending = &model.PendingCartAction{
			ItemID:    req.ItemID,
			KitchenID: req.KitchenID,
			Action:    req.Action,
			Quantity:  req.Quantity,
			Source:    req.Source,
		}
		r.pastKitchen = cached
	}
	return Result{Blocked: true, Pending: r.pending, PastKitchen: r.pastKitchen}
}

// Resolve terminates a pending conflict. With proceed=true it returns the
// suspended action for the caller to replay (after clearing the cart);
// with proceed=false the action is discarded with no side effects. Either
// way the resolver returns to Clear.
func (r *Resolver) Resolve(proceed bool) (*model.PendingCartAction, error) {
	if r.state != StatePendingConfirmation {
		return nil, model.NewConflictStateError("no kitchen conflict is pending")
	}

	pending := r.pending
	r.state = StateClear
	r.pending = nil
	r.pastKitchen = nil

	if !proceed {
		return nil, nil
	}
	return pending, nil
}
