// Package engine implements cart reconciliation: optimistic mutations
// against a remote authoritative cart, kitchen-conflict gating, rollback
// on failure, and the derived past-kitchen cache.
//
// One Engine instance owns the cart state for one owner. All consumers
// (REST handlers, SSE stream, MCP tools) read the same published state
// instead of re-deriving it.
package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"kitchencart/internal/backend"
	"kitchencart/internal/cache"
	"kitchencart/internal/conflict"
	"kitchencart/internal/model"
)

// Mutation is one requested cart change.
type Mutation struct {
	ItemID    string
	KitchenID string
	Action    model.MutationAction
	Quantity  int
	Source    model.MutationSource
}

// State is the engine's published view of the cart. Snapshot is the
// optimistic projection: the last accepted server snapshot plus any
// in-flight deltas. Consumers must treat it as display state, never as
// ground truth.
type State struct {
	Snapshot    *model.CartSnapshot      `json:"snapshot"`
	InFlight    []string                 `json:"in_flight,omitempty"`
	Pending     *model.PendingCartAction `json:"pending_action,omitempty"`
	PastKitchen *model.PastKitchenRecord `json:"past_kitchen,omitempty"`
	Navigate    *model.NavigationIntent  `json:"navigate,omitempty"`
}

// Engine reconciles one owner's cart. Safe for concurrent use; network
// I/O happens outside the lock so mutations for different items can be
// in flight concurrently.
type Engine struct {
	owner  backend.Owner
	client backend.Client
	cache  *cache.PastKitchens
	logger *slog.Logger

	mu         sync.Mutex
	snapshot   *model.CartSnapshot // last accepted server snapshot
	projection *model.CartSnapshot // snapshot + optimistic deltas
	inFlight   map[string]bool
	resolver   *conflict.Resolver

	// generation invalidates responses that were in flight when the cart
	// was cleared or adopted wholesale. A response whose generation no
	// longer matches is dropped, not applied.
	generation uint64

	subMu  sync.Mutex
	subs   map[int]chan State
	nextID int
}

// New creates an engine for one cart owner.
func New(owner backend.Owner, client backend.Client, kitchens *cache.PastKitchens, logger *slog.Logger) *Engine {
	return &Engine{
		owner:      owner,
		client:     client,
		cache:      kitchens,
		logger:     logger,
		snapshot:   model.EmptySnapshot(),
		projection: model.EmptySnapshot(),
		inFlight:   make(map[string]bool),
		resolver:   conflict.NewResolver(),
		subs:       make(map[int]chan State),
	}
}

// State returns the current published state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked(nil)
}

// Refresh fetches the authoritative cart and adopts it wholesale.
// The past-kitchen cache follows the fetch result: written when the cart
// has items, cleared when it comes back empty.
func (e *Engine) Refresh(ctx context.Context) (State, error) {
	e.mu.Lock()
	gen := e.generation
	e.mu.Unlock()

	snap, err := e.client.CartDetails(ctx, e.owner)
	if err != nil {
		return e.State(), err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return e.stateLocked(nil), nil
	}
	e.adoptLocked(snap)
	state := e.stateLocked(nil)
	e.publish(state)
	return state, nil
}

// Mutate applies one add or remove with optimistic local effect.
//
// Protocol: reject if the item already has a mutation in flight, gate
// cross-kitchen adds through the conflict resolver, apply the optimistic
// delta, call the backend, then either adopt the returned snapshot or
// roll the delta back. No automatic retry on failure.
func (e *Engine) Mutate(ctx context.Context, m Mutation) (State, error) {
	return e.mutate(ctx, m, false)
}

func (e *Engine) mutate(ctx context.Context, m Mutation, force bool) (State, error) {
	if m.Quantity <= 0 {
		m.Quantity = 1
	}

	e.mu.Lock()
	if e.inFlight[m.ItemID] {
		e.mu.Unlock()
		return e.State(), model.NewMutationInFlightError(m.ItemID)
	}

	res := e.resolver.Evaluate(e.cache.Load(e.owner.Key()), conflict.Request{
		Action:    m.Action,
		KitchenID: m.KitchenID,
		ItemID:    m.ItemID,
		Quantity:  m.Quantity,
		Source:    m.Source,
		Force:     force,
	})
	if res.Blocked {
		state := e.stateLocked(nil)
		e.publish(state)
		e.mu.Unlock()
		return state, model.NewConflictPendingError(res.PastKitchen.Name)
	}

	// Optimistic delta. Remember enough to revert this line exactly.
	priorQty := e.projection.QuantityOf(m.ItemID)
	existed := hasLine(e.projection, m.ItemID)
	e.applyDeltaLocked(m)
	e.inFlight[m.ItemID] = true
	gen := e.generation
	e.publish(e.stateLocked(nil))
	e.mu.Unlock()

	snap, err := e.client.Mutate(ctx, backend.MutationRequest{
		Owner:     e.owner,
		KitchenID: m.KitchenID,
		ItemID:    m.ItemID,
		Action:    m.Action,
		Quantity:  m.Quantity,
		Source:    m.Source,
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, m.ItemID)

	if gen != e.generation {
		// Cart was cleared or reset while this call was in flight.
		// The response is no longer relevant; drop it.
		e.logger.Debug("dropping stale mutation response",
			slog.String("item_id", m.ItemID))
		state := e.stateLocked(nil)
		e.publish(state)
		return state, nil
	}

	if err != nil {
		e.revertDeltaLocked(m.ItemID, priorQty, existed)
		e.logger.Warn("cart mutation failed, rolled back",
			slog.String("item_id", m.ItemID),
			slog.String("action", string(m.Action)),
			slog.String("error", err.Error()))
		state := e.stateLocked(nil)
		e.publish(state)
		return state, err
	}

	e.adoptLocked(snap)

	var nav *model.NavigationIntent
	if m.Action == model.ActionAdd {
		nav = &model.NavigationIntent{KitchenID: m.KitchenID, ItemID: m.ItemID}
	}
	state := e.stateLocked(nav)
	e.publish(state)
	return state, nil
}

// PendingConflict returns the suspended action and the cached record
// that triggered it, or nils when no conflict is pending.
func (e *Engine) PendingConflict() (*model.PendingCartAction, *model.PastKitchenRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolver.Pending(), e.resolver.PastKitchen()
}

// ConfirmConflict executes the clear-and-proceed path: clear the remote
// cart, clear the cache, adopt an empty cart, then replay the suspended
// add with the conflict check bypassed.
//
// A failed clear leaves the conflict pending so the user can retry;
// nothing is replayed against a cart that still holds the old kitchen.
func (e *Engine) ConfirmConflict(ctx context.Context) (State, error) {
	e.mu.Lock()
	pending := e.resolver.Pending()
	e.mu.Unlock()
	if pending == nil {
		return e.State(), model.NewConflictStateError("no kitchen conflict is pending")
	}

	if err := e.client.ClearCart(ctx, e.owner); err != nil {
		return e.State(), err
	}

	e.mu.Lock()
	e.cache.Clear(e.owner.Key())
	e.generation++
	e.adoptLocked(model.EmptySnapshot())
	replay, err := e.resolver.Resolve(true)
	if err != nil {
		e.mu.Unlock()
		return e.State(), err
	}
	e.publish(e.stateLocked(nil))
	e.mu.Unlock()

	return e.mutate(ctx, Mutation{
		ItemID:    replay.ItemID,
		KitchenID: replay.KitchenID,
		Action:    replay.Action,
		Quantity:  replay.Quantity,
		Source:    replay.Source,
	}, true)
}

// CancelConflict discards the pending action. No server call is made
// and the cart and cache are left exactly as they were.
func (e *Engine) CancelConflict() (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.resolver.Resolve(false); err != nil {
		return e.stateLocked(nil), err
	}
	state := e.stateLocked(nil)
	e.publish(state)
	return state, nil
}

// Clear empties the remote cart and the past-kitchen cache. Responses to
// mutations still in flight at clear time are dropped on arrival.
func (e *Engine) Clear(ctx context.Context) (State, error) {
	if err := e.client.ClearCart(ctx, e.owner); err != nil {
		return e.State(), err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache.Clear(e.owner.Key())
	e.generation++
	e.adoptLocked(model.EmptySnapshot())
	state := e.stateLocked(nil)
	e.publish(state)
	return state, nil
}

// Subscribe registers a consumer for published states. The returned
// cancel function must be called to release the subscription. Slow
// consumers miss intermediate states rather than blocking mutations.
func (e *Engine) Subscribe() (<-chan State, func()) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	id := e.nextID
	e.nextID++
	ch := make(chan State, 16)
	e.subs[id] = ch
	return ch, func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		if sub, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(sub)
		}
	}
}

// === internal, callers hold e.mu ===

// adoptLocked replaces both the accepted snapshot and the projection
// with a server snapshot, and brings the past-kitchen cache in line.
// The snapshot fully supersedes any optimistic state: last snapshot wins.
func (e *Engine) adoptLocked(snap *model.CartSnapshot) {
	e.snapshot = snap
	e.projection = snap.Clone()

	if snap.IsEmpty() {
		e.cache.Clear(e.owner.Key())
		return
	}
	rec := model.PastKitchenFromSnapshot(snap)
	e.cache.Save(e.owner.Key(), rec)
}

// applyDeltaLocked applies the optimistic local change for a mutation.
// A remove never takes a line below zero; zero-quantity lines may exist
// transiently in the projection until the next snapshot replaces them.
func (e *Engine) applyDeltaLocked(m Mutation) {
	for i := range e.projection.Lines {
		if e.projection.Lines[i].ItemID != m.ItemID {
			continue
		}
		if m.Action == model.ActionAdd {
			e.projection.Lines[i].Quantity += m.Quantity
		} else {
			e.projection.Lines[i].Quantity = max(0, e.projection.Lines[i].Quantity-m.Quantity)
		}
		return
	}
	if m.Action == model.ActionAdd {
		e.projection.Lines = append(e.projection.Lines, model.CartLine{
			ItemID:    m.ItemID,
			KitchenID: m.KitchenID,
			Quantity:  m.Quantity,
		})
	}
}

// revertDeltaLocked undoes one line's optimistic change so the published
// state matches the pre-mutation state exactly.
func (e *Engine) revertDeltaLocked(itemID string, priorQty int, existed bool) {
	if !existed {
		lines := e.projection.Lines[:0]
		for _, line := range e.projection.Lines {
			if line.ItemID != itemID {
				lines = append(lines, line)
			}
		}
		e.projection.Lines = lines
		return
	}
	for i := range e.projection.Lines {
		if e.projection.Lines[i].ItemID == itemID {
			e.projection.Lines[i].Quantity = priorQty
			return
		}
	}
}

func (e *Engine) stateLocked(nav *model.NavigationIntent) State {
	inFlight := make([]string, 0, len(e.inFlight))
	for id := range e.inFlight {
		inFlight = append(inFlight, id)
	}
	sort.Strings(inFlight)
	if len(inFlight) == 0 {
		inFlight = nil
	}
	return State{
		Snapshot:    e.projection.Clone(),
		InFlight:    inFlight,
		Pending:     e.resolver.Pending(),
		PastKitchen: e.resolver.PastKitchen(),
		Navigate:    nav,
	}
}

func (e *Engine) publish(state State) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- state:
		default:
		}
	}
}

func hasLine(s *model.CartSnapshot, itemID string) bool {
	for _, line := range s.Lines {
		if line.ItemID == itemID {
			return true
		}
	}
	return false
}
