// Package handler provides HTTP handlers for the cart service API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"kitchencart/internal/auth"
	"kitchencart/internal/backend"
	"kitchencart/internal/cache"
	"kitchencart/internal/engine"
	"kitchencart/internal/model"
)

// SessionHeader carries the anonymous device session id. The server
// mints one on first contact and echoes it so the client can persist it.
const SessionHeader = "X-Session-ID"

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	manager  *engine.Manager
	kitchens *cache.PastKitchens
	verifier *auth.Verifier
	logger   *slog.Logger
}

// New creates a new Handler.
// The verifier may be nil to disable bearer-token auth (for testing).
func New(manager *engine.Manager, kitchens *cache.PastKitchens, verifier *auth.Verifier, logger *slog.Logger) *Handler {
	return &Handler{
		manager:  manager,
		kitchens: kitchens,
		verifier: verifier,
		logger:   logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// REST transport - cart operations
	mux.HandleFunc("GET /cart", h.handleGetCart)
	mux.HandleFunc("POST /cart/items", h.handleAddItem)
	mux.HandleFunc("DELETE /cart/items/{itemID}", h.handleRemoveItem)
	mux.HandleFunc("POST /cart/conflict/confirm", h.handleConfirmConflict)
	mux.HandleFunc("POST /cart/conflict/cancel", h.handleCancelConflict)
	mux.HandleFunc("POST /cart/clear", h.handleClearCart)
	mux.HandleFunc("GET /cart/kitchen", h.handleGetKitchen)
	mux.HandleFunc("GET /cart/stream", h.handleStream)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// resolveOwner determines whose cart the request operates on. The JWT
// user id wins when present; anonymous requests are keyed by the session
// header, minted and echoed if the client has none yet.
func (h *Handler) resolveOwner(w http.ResponseWriter, r *http.Request) (backend.Owner, error) {
	var userID string
	if h.verifier != nil {
		var err error
		userID, err = h.verifier.UserID(r)
		if err != nil {
			return backend.Owner{}, err
		}
	}

	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	w.Header().Set(SessionHeader, sessionID)

	return backend.Owner{SessionID: sessionID, UserID: userID}, nil
}

// engineFor resolves the owner and returns their engine.
func (h *Handler) engineFor(w http.ResponseWriter, r *http.Request) (*engine.Engine, error) {
	owner, err := h.resolveOwner(w, r)
	if err != nil {
		return nil, err
	}
	return h.manager.Engine(owner), nil
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	apiErr := h.asAPIError(err)
	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// writeCartError sends an error response carrying the engine state, so a
// 409 conflict delivers the pending action and past kitchen the client
// needs to render the confirmation prompt.
func (h *Handler) writeCartError(w http.ResponseWriter, state engine.State, err error) {
	apiErr := h.asAPIError(err)
	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
		PendingAction: state.Pending,
		PastKitchen:   state.PastKitchen,
	})
}

func (h *Handler) asAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		apiErr = &model.APIError{
			Code:       "INTERNAL_ERROR",
			Message:    "an internal error occurred",
			StatusCode: http.StatusInternalServerError,
		}
		h.logger.Error("internal error", slog.String("error", err.Error()))
	}
	return apiErr
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error         errorBody                `json:"error"`
	PendingAction *model.PendingCartAction `json:"pending_action,omitempty"`
	PastKitchen   *model.PastKitchenRecord `json:"past_kitchen,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v interface{}) error {
	// Limit request body size to prevent DoS
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}
