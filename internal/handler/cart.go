package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"kitchencart/internal/availability"
	"kitchencart/internal/clientinfo"
	"kitchencart/internal/engine"
	"kitchencart/internal/model"
)

// addItemRequest is the body for POST /cart/items.
type addItemRequest struct {
	KitchenID string `json:"kitchen_id"`
	ItemID    string `json:"item_id"`
	Quantity  int    `json:"quantity,omitempty"`
	Source    string `json:"source,omitempty"`
}

// annotate recomputes per-line orderability for response time. Never
// cached: the serving window is compared against the current clock on
// every render.
func annotate(state *engine.State) {
	if state.Snapshot == nil {
		return
	}
	availability.AnnotateLines(state.Snapshot.Lines, state.Snapshot.KitchenOpen, time.Now())
}

// handleGetCart returns the authoritative cart, freshly fetched.
// GET /cart
func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eng, err := h.engineFor(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	state, err := eng.Refresh(ctx)
	if err != nil {
		h.writeCartError(w, state, err)
		return
	}

	annotate(&state)
	h.writeJSON(w, http.StatusOK, state)
}

// handleAddItem adds one item to the cart.
// POST /cart/items
func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.KitchenID == "" {
		h.writeError(w, model.NewValidationError("kitchen_id", "required"))
		return
	}
	if req.ItemID == "" {
		h.writeError(w, model.NewValidationError("item_id", "required"))
		return
	}

	// The mutation source comes from the body when set, otherwise from
	// the Food-Client header the app attaches to every request.
	source := model.MutationSource(req.Source)
	if source == "" {
		source = clientinfo.FromContext(ctx).Source
	}

	eng, err := h.engineFor(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "adding cart item",
		slog.String("kitchen_id", req.KitchenID),
		slog.String("item_id", req.ItemID),
		slog.Int("quantity", req.Quantity),
		slog.String("source", string(source)),
	)

	state, err := eng.Mutate(ctx, engine.Mutation{
		ItemID:    req.ItemID,
		KitchenID: req.KitchenID,
		Action:    model.ActionAdd,
		Quantity:  req.Quantity,
		Source:    source,
	})
	if err != nil {
		h.writeCartError(w, state, err)
		return
	}

	annotate(&state)
	h.writeJSON(w, http.StatusOK, state)
}

// handleRemoveItem removes one item from the cart. The backend clamps
// quantities at zero, so removing an absent item is a no-op.
// DELETE /cart/items/{itemID}?kitchen_id=...&quantity=...
func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	itemID := r.PathValue("itemID")
	if itemID == "" {
		h.writeError(w, model.NewValidationError("item_id", "required"))
		return
	}
	kitchenID := r.URL.Query().Get("kitchen_id")
	if kitchenID == "" {
		h.writeError(w, model.NewValidationError("kitchen_id", "required"))
		return
	}
	quantity, _ := strconv.Atoi(r.URL.Query().Get("quantity"))

	eng, err := h.engineFor(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "removing cart item",
		slog.String("kitchen_id", kitchenID),
		slog.String("item_id", itemID),
	)

	state, err := eng.Mutate(ctx, engine.Mutation{
		ItemID:    itemID,
		KitchenID: kitchenID,
		Action:    model.ActionRemove,
		Quantity:  quantity,
		Source:    clientinfo.FromContext(ctx).Source,
	})
	if err != nil {
		h.writeCartError(w, state, err)
		return
	}

	annotate(&state)
	h.writeJSON(w, http.StatusOK, state)
}

// handleConfirmConflict clears the cart and replays the suspended add.
// POST /cart/conflict/confirm
func (h *Handler) handleConfirmConflict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eng, err := h.engineFor(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "confirming kitchen conflict")

	state, err := eng.ConfirmConflict(ctx)
	if err != nil {
		h.writeCartError(w, state, err)
		return
	}

	annotate(&state)
	h.writeJSON(w, http.StatusOK, state)
}

// handleCancelConflict discards the suspended add, leaving the cart as is.
// POST /cart/conflict/cancel
func (h *Handler) handleCancelConflict(w http.ResponseWriter, r *http.Request) {
	eng, err := h.engineFor(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	state, err := eng.CancelConflict()
	if err != nil {
		h.writeCartError(w, state, err)
		return
	}

	annotate(&state)
	h.writeJSON(w, http.StatusOK, state)
}

// handleClearCart empties the cart and the past-kitchen cache.
// POST /cart/clear
func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eng, err := h.engineFor(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "clearing cart")

	state, err := eng.Clear(ctx)
	if err != nil {
		h.writeCartError(w, state, err)
		return
	}

	annotate(&state)
	h.writeJSON(w, http.StatusOK, state)
}

// handleGetKitchen returns the cached past-kitchen summary. Advisory:
// UI surfaces use it to pre-populate before a fresh cart fetch lands.
// GET /cart/kitchen
func (h *Handler) handleGetKitchen(w http.ResponseWriter, r *http.Request) {
	owner, err := h.resolveOwner(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	rec := h.kitchens.Load(owner.Key())
	h.writeJSON(w, http.StatusOK, struct {
		PastKitchen *model.PastKitchenRecord `json:"past_kitchen"`
	}{PastKitchen: rec})
}
