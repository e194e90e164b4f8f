package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"kitchencart/internal/backend"
	"kitchencart/internal/cache"
	"kitchencart/internal/model"
	"kitchencart/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOwner() backend.Owner {
	return backend.Owner{SessionID: "sess-1"}
}

func line(itemID, kitchenID string, qty int) model.CartLine {
	return model.CartLine{ItemID: itemID, KitchenID: kitchenID, Quantity: qty, Available: true}
}

func snapshotFor(kitchenID, kitchenName string, lines ...model.CartLine) *model.CartSnapshot {
	return &model.CartSnapshot{
		KitchenID:   kitchenID,
		KitchenName: kitchenName,
		KitchenOpen: true,
		Lines:       lines,
	}
}

// newTestEngine wires an engine over a memory store so tests can inspect
// the past-kitchen cache directly.
func newTestEngine(t *testing.T, mock *backend.Mock) (*Engine, *cache.PastKitchens) {
	t.Helper()
	kitchens := cache.New(storage.NewMemoryStore(), testLogger())
	return New(testOwner(), mock, kitchens, testLogger()), kitchens
}

func addMutation(itemID, kitchenID string) Mutation {
	return Mutation{
		ItemID:    itemID,
		KitchenID: kitchenID,
		Action:    model.ActionAdd,
		Quantity:  1,
		Source:    model.SourceMenu,
	}
}

func TestMutateAddAdoptsSnapshotAndCache(t *testing.T) {
	mock := &backend.Mock{
		MutateFunc: func(ctx context.Context, req backend.MutationRequest) (*model.CartSnapshot, error) {
			return snapshotFor("k1", "Tandoor House",
				line("x1", "k1", 2), line("x2", "k1", 1)), nil
		},
	}
	e, kitchens := newTestEngine(t, mock)

	state, err := e.Mutate(context.Background(), addMutation("x1", "k1"))
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}

	if state.Snapshot.TotalItemCount() != 3 {
		t.Fatalf("item count = %d, want 3", state.Snapshot.TotalItemCount())
	}
	if state.Navigate == nil || state.Navigate.KitchenID != "k1" || state.Navigate.ItemID != "x1" {
		t.Fatalf("navigate = %+v, want intent for k1/x1", state.Navigate)
	}
	if len(state.InFlight) != 0 {
		t.Fatalf("in flight = %v, want empty after completion", state.InFlight)
	}

	// Cache item count derives from the accepted snapshot, not a
	// locally incremented counter.
	rec := kitchens.Load("sess-1")
	if rec == nil || rec.ItemCount != 3 || rec.KitchenID != "k1" {
		t.Fatalf("cache record = %+v, want k1 with count 3", rec)
	}
}

func TestConflictGatingBlocksWithoutBackendCall(t *testing.T) {
	backendCalled := false
	mock := &backend.Mock{
		MutateFunc: func(ctx context.Context, req backend.MutationRequest) (*model.CartSnapshot, error) {
			backendCalled = true
			return snapshotFor("k2", "Noodle Bar", line("y1", "k2", 1)), nil
		},
	}
	e, kitchens := newTestEngine(t, mock)
	kitchens.Save("sess-1", model.PastKitchenRecord{KitchenID: "k1", Name: "Tandoor House", ItemCount: 2})

	state, err := e.Mutate(context.Background(), addMutation("y1", "k2"))
	if !errors.Is(err, model.ErrConflictPending) {
		t.Fatalf("error = %v, want conflict pending", err)
	}
	if backendCalled {
		t.Fatal("backend must not be called while a conflict is unresolved")
	}
	if state.Pending == nil || state.Pending.ItemID != "y1" {
		t.Fatalf("pending = %+v, want suspended add for y1", state.Pending)
	}
	if state.PastKitchen == nil || state.PastKitchen.Name != "Tandoor House" {
		t.Fatalf("past kitchen = %+v, want Tandoor House", state.PastKitchen)
	}
	if state.Snapshot.TotalItemCount() != 0 {
		t.Fatal("no optimistic delta may be applied while a conflict is pending")
	}
}

func TestCancelConflictLeavesEverythingUnchanged(t *testing.T) {
	clearCalled := false
	mock := &backend.Mock{
		MutateFunc: func(ctx context.Context, req backend.MutationRequest) (*model.CartSnapshot, error) {
			return snapshotFor("k1", "Tandoor House", line("x1", "k1", 1)), nil
		},
		ClearCartFunc: func(ctx context.Context, owner backend.Owner) error {
			clearCalled = true
			return nil
		},
	}
	e, kitchens := newTestEngine(t, mock)

	// Establish cart: x1 from k1.
	if _, err := e.Mutate(context.Background(), addMutation("x1", "k1")); err != nil {
		t.Fatalf("setup mutate: %v", err)
	}
	before := e.State()
	recBefore := kitchens.Load("sess-1")

	// Cross-kitchen add suspends, then the user declines.
	if _, err := e.Mutate(context.Background(), addMutation("y1", "k2")); !errors.Is(err, model.ErrConflictPending) {
		t.Fatalf("error = %v, want conflict pending", err)
	}
	after, err := e.CancelConflict()
	if err != nil {
		t.Fatalf("CancelConflict: %v", err)
	}

	if clearCalled {
		t.Fatal("cancel must not call the backend")
	}
	if !reflect.DeepEqual(before.Snapshot, after.Snapshot) {
		t.Fatalf("snapshot changed on cancel:\nbefore %+v\nafter  %+v", before.Snapshot, after.Snapshot)
	}
	if after.Pending != nil {
		t.Fatal("pending action must be discarded on cancel")
	}
	if rec := kitchens.Load("sess-1"); !reflect.DeepEqual(rec, recBefore) {
		t.Fatalf("cache record changed on cancel: %+v -> %+v", recBefore, rec)
	}
}

func TestConfirmConflictClearsAndReplays(t *testing.T) {
	var clearedAt, replayedAt int
	var cacheAtReplay *model.PastKitchenRecord
	seq := 0

	var kitchens *cache.PastKitchens
	mock := &backend.Mock{
		MutateFunc: func(ctx context.Context, req backend.MutationRequest) (*model.CartSnapshot, error) {
			if req.KitchenID == "k1" {
				return snapshotFor("k1", "Tandoor House", line("x1", "k1", 1)), nil
			}
			seq++
			replayedAt = seq
			cacheAtReplay = kitchens.Load("sess-1")
			return snapshotFor("k2", "Noodle Bar", line("y1", "k2", 1)), nil
		},
		ClearCartFunc: func(ctx context.Context, owner backend.Owner) error {
			seq++
			clearedAt = seq
			return nil
		},
	}
	var e *Engine
	e, kitchens = newTestEngine(t, mock)

	if _, err := e.Mutate(context.Background(), addMutation("x1", "k1")); err != nil {
		t.Fatalf("setup mutate: %v", err)
	}
	if _, err := e.Mutate(context.Background(), addMutation("y1", "k2")); !errors.Is(err, model.ErrConflictPending) {
		t.Fatalf("error = %v, want conflict pending", err)
	}

	state, err := e.ConfirmConflict(context.Background())
	if err != nil {
		t.Fatalf("ConfirmConflict: %v", err)
	}

	if clearedAt == 0 || replayedAt == 0 || clearedAt > replayedAt {
		t.Fatalf("clear at %d, replay at %d, want clear before replay", clearedAt, replayedAt)
	}
	// Cache was empty when the replayed add hit the backend.
	if cacheAtReplay != nil {
		t.Fatalf("cache at replay = %+v, want nil (cleared before replay)", cacheAtReplay)
	}

	if state.Snapshot.KitchenID != "k2" || state.Snapshot.QuantityOf("y1") != 1 {
		t.Fatalf("snapshot = %+v, want only y1 qty 1 for k2", state.Snapshot)
	}
	if state.Snapshot.QuantityOf("x1") != 0 {
		t.Fatal("old kitchen's items must not survive a confirmed clear")
	}
	if rec := kitchens.Load("sess-1"); rec == nil || rec.KitchenID != "k2" || rec.ItemCount != 1 {
		t.Fatalf("cache record = %+v, want k2 with count 1", rec)
	}
}

func TestConfirmConflictClearFailureKeepsPending(t *testing.T) {
	mock := &backend.Mock{
		MutateFunc: func(ctx context.Context, req backend.MutationRequest) (*model.CartSnapshot, error) {
			return snapshotFor("k1", "Tandoor House", line("x1", "k1", 1)), nil
		},
		ClearCartFunc: func(ctx context.Context, owner backend.Owner) error {
			return model.NewUpstreamError("OrderAPI", errors.New("boom"))
		},
	}
	e, _ := newTestEngine(t, mock)

	if _, err := e.Mutate(context.Background(), addMutation("x1", "k1")); err != nil {
		t.Fatalf("setup mutate: %v", err)
	}
	if _, err := e.Mutate(context.Background(), addMutation("y1", "k2")); !errors.Is(err, model.ErrConflictPending) {
		t.Fatalf("error = %v, want conflict pending", err)
	}

	if _, err := e.ConfirmConflict(context.Background()); !errors.Is(err, model.ErrUpstreamError) {
		t.Fatalf("error = %v, want upstream error", err)
	}

	// The conflict stays armed so the user can retry the confirm.
	pending, _ := e.PendingConflict()
	if pending == nil || pending.ItemID != "y1" {
		t.Fatalf("pending = %+v, want y1 still suspended after failed clear", pending)
	}
}

func TestRollbackOnFailureIsExact(t *testing.T) {
	fail := false
	mock := &backend.Mock{
		CartDetailsFunc: func(ctx context.Context, owner backend.Owner) (*model.CartSnapshot, error) {
			return snapshotFor("k1", "Tandoor House", line("x1", "k1", 1)), nil
		},
		MutateFunc: func(ctx context.Context, req backend.MutationRequest) (*model.CartSnapshot, error) {
			if fail {
				return nil, model.NewUpstreamError("OrderAPI", errors.New("timeout"))
			}
			return snapshotFor("k1", "Tandoor House", line("x1", "k1", 1)), nil
		},
	}
	e, _ := newTestEngine(t, mock)

	if _, err := e.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	before := e.State()

	fail = true
	// Failed add of a new line: the appended optimistic line must vanish.
	if _, err := e.Mutate(context.Background(), addMutation("x2", "k1")); !errors.Is(err, model.ErrUpstreamError) {
		t.Fatalf("error = %v, want upstream error", err)
	}
	if after := e.State(); !reflect.DeepEqual(before, after) {
		t.Fatalf("state after rollback differs:\nbefore %+v\nafter  %+v", before, after)
	}

	// Failed increment of an existing line: quantity must revert exactly.
	if _, err := e.Mutate(context.Background(), addMutation("x1", "k1")); !errors.Is(err, model.ErrUpstreamError) {
		t.Fatalf("error = %v, want upstream error", err)
	}
	if after := e.State(); !reflect.DeepEqual(before, after) {
		t.Fatalf("state after rollback differs:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestInFlightMutationRejectsSecond(t *testing.T) {
	release := make(chan struct{})
	mock := &backend.Mock{
		MutateFunc: func(ctx context.Context, req backend.MutationRequest) (*model.CartSnapshot, error) {
			<-release
			return snapshotFor("k1", "Tandoor House", line("x1", "k1", 1)), nil
		},
	}
	e, _ := newTestEngine(t, mock)

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Mutate(context.Background(), addMutation("x1", "k1"))
	}()

	// Wait for the first mutation to be marked in flight.
	deadline := time.After(2 * time.Second)
	for {
		state := e.State()
		if len(state.InFlight) == 1 && state.InFlight[0] == "x1" {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first mutation never became in flight")
		case <-time.After(time.Millisecond):
		}
	}

	_, err := e.Mutate(context.Background(), addMutation("x1", "k1"))
	if !errors.Is(err, model.ErrMutationInFlight) {
		t.Fatalf("error = %v, want mutation in flight", err)
	}

	close(release)
	<-done
}

func TestSingleKitchenInvariant(t *testing.T) {
	// Scripted backend: echoes a cart that accumulates accepted adds.
	held := map[string]int{}
	mock := &backend.Mock{}
	mock.MutateFunc = func(ctx context.Context, req backend.MutationRequest) (*model.CartSnapshot, error) {
		held[req.ItemID]++
		lines := make([]model.CartLine, 0, len(held))
		for id, qty := range held {
			lines = append(lines, line(id, req.KitchenID, qty))
		}
		return snapshotFor(req.KitchenID, "Tandoor House", lines...), nil
	}
	e, _ := newTestEngine(t, mock)

	for _, itemID := range []string{"x1", "x2", "x1", "x3"} {
		state, err := e.Mutate(context.Background(), addMutation(itemID, "k1"))
		if err != nil {
			t.Fatalf("Mutate(%s): %v", itemID, err)
		}
		for _, l := range state.Snapshot.Lines {
			if l.KitchenID != "k1" {
				t.Fatalf("line %s has kitchen %s, want k1", l.ItemID, l.KitchenID)
			}
		}
	}

	// A second kitchen is gated, so the invariant holds by construction.
	if _, err := e.Mutate(context.Background(), addMutation("y1", "k2")); !errors.Is(err, model.ErrConflictPending) {
		t.Fatalf("error = %v, want conflict pending for second kitchen", err)
	}
}

func TestStaleResponseDroppedAfterClear(t *testing.T) {
	release := make(chan struct{})
	mock := &backend.Mock{
		MutateFunc: func(ctx context.Context, req backend.MutationRequest) (*model.CartSnapshot, error) {
			<-release
			return snapshotFor("k1", "Tandoor House", line("x1", "k1", 5)), nil
		},
		ClearCartFunc: func(ctx context.Context, owner backend.Owner) error {
			return nil
		},
	}
	e, _ := newTestEngine(t, mock)

	done := make(chan State)
	go func() {
		state, _ := e.Mutate(context.Background(), addMutation("x1", "k1"))
		done <- state
	}()

	deadline := time.After(2 * time.Second)
	for len(e.State().InFlight) == 0 {
		select {
		case <-deadline:
			t.Fatal("mutation never became in flight")
		case <-time.After(time.Millisecond):
		}
	}

	if _, err := e.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	close(release)
	state := <-done

	if !state.Snapshot.IsEmpty() {
		t.Fatalf("snapshot = %+v, want empty (stale response dropped)", state.Snapshot)
	}
	if !e.State().Snapshot.IsEmpty() {
		t.Fatal("published state must stay empty after stale response arrives")
	}
}

func TestRefreshEmptyCartClearsCache(t *testing.T) {
	mock := &backend.Mock{
		CartDetailsFunc: func(ctx context.Context, owner backend.Owner) (*model.CartSnapshot, error) {
			return model.EmptySnapshot(), nil
		},
	}
	e, kitchens := newTestEngine(t, mock)
	kitchens.Save("sess-1", model.PastKitchenRecord{KitchenID: "k1", Name: "Tandoor House", ItemCount: 2})

	if _, err := e.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rec := kitchens.Load("sess-1"); rec != nil {
		t.Fatalf("cache record = %+v, want nil after empty fetch", rec)
	}
}

func TestSubscribeReceivesPublishedStates(t *testing.T) {
	mock := &backend.Mock{
		MutateFunc: func(ctx context.Context, req backend.MutationRequest) (*model.CartSnapshot, error) {
			return snapshotFor("k1", "Tandoor House", line("x1", "k1", 1)), nil
		},
	}
	e, _ := newTestEngine(t, mock)

	ch, cancel := e.Subscribe()
	if _, err := e.Mutate(context.Background(), addMutation("x1", "k1")); err != nil {
		t.Fatalf("Mutate: %v", err)
	}

	sawFinal := false
	for !sawFinal {
		select {
		case state := <-ch:
			if len(state.InFlight) == 0 && state.Snapshot.QuantityOf("x1") == 1 {
				sawFinal = true
			}
		case <-time.After(2 * time.Second):
			t.Fatal("never received the post-mutation state")
		}
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel must be closed after cancel")
	}
}

func TestManagerKeysByOwner(t *testing.T) {
	m := NewManager(&backend.Mock{}, cache.New(storage.NewMemoryStore(), testLogger()), testLogger())

	anon := backend.Owner{SessionID: "sess-1"}
	if m.Engine(anon) != m.Engine(anon) {
		t.Fatal("same owner must get the same engine")
	}

	// Authenticated identity wins over the device session.
	authed := backend.Owner{SessionID: "sess-1", UserID: "user-7"}
	if m.Engine(anon) == m.Engine(authed) {
		t.Fatal("authenticated owner must get a separate engine")
	}
	sameUser := backend.Owner{SessionID: "sess-2", UserID: "user-7"}
	if m.Engine(authed) != m.Engine(sameUser) {
		t.Fatal("same user on another device must share the engine")
	}
}
