// MCP transport handler using the official MCP Go SDK.
// Exposes cart operations as MCP tools for agent-driven ordering clients.
package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"kitchencart/internal/availability"
	"kitchencart/internal/backend"
	"kitchencart/internal/engine"
	"kitchencart/internal/model"
)

// === MCP Tool Input Types ===
// MCP requests carry no HTTP headers, so the session id travels in the
// tool input instead of X-Session-ID.

// AddCartItemInput is the input schema for the add_cart_item tool.
type AddCartItemInput struct {
	SessionID string `json:"session_id" jsonschema:"cart session id,required"`
	KitchenID string `json:"kitchen_id" jsonschema:"kitchen the item belongs to,required"`
	ItemID    string `json:"item_id" jsonschema:"item to add,required"`
	Quantity  int    `json:"quantity,omitempty" jsonschema:"quantity to add, default 1"`
}

// RemoveCartItemInput is the input schema for the remove_cart_item tool.
type RemoveCartItemInput struct {
	SessionID string `json:"session_id" jsonschema:"cart session id,required"`
	KitchenID string `json:"kitchen_id" jsonschema:"kitchen the item belongs to,required"`
	ItemID    string `json:"item_id" jsonschema:"item to remove,required"`
	Quantity  int    `json:"quantity,omitempty" jsonschema:"quantity to remove, default 1"`
}

// SessionInput identifies the cart for tools without other parameters.
type SessionInput struct {
	SessionID string `json:"session_id" jsonschema:"cart session id,required"`
}

// ResolveConflictInput is the input schema for resolve_kitchen_conflict.
type ResolveConflictInput struct {
	SessionID string `json:"session_id" jsonschema:"cart session id,required"`
	Proceed   bool   `json:"proceed" jsonschema:"true to clear the cart and replay the blocked add, false to keep the current cart,required"`
}

// NewMCPServer creates an MCP server with cart tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "kitchencart",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Cart operations for the food ordering service. " +
				"A cart holds items from one kitchen at a time; adding from a " +
				"second kitchen suspends the add until resolve_kitchen_conflict.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_cart_item",
		Description: "Add an item to the cart. May return a pending kitchen conflict instead of applying the add.",
	}, h.mcpAddCartItem)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_cart_item",
		Description: "Remove an item from the cart. Removing below zero is a no-op.",
	}, h.mcpRemoveCartItem)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_cart",
		Description: "Get the current cart state, freshly fetched from the ordering backend.",
	}, h.mcpGetCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_cart",
		Description: "Empty the cart and forget the cart's kitchen.",
	}, h.mcpClearCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resolve_kitchen_conflict",
		Description: "Resolve a pending kitchen conflict: proceed clears the cart and replays the blocked add, cancel keeps the cart unchanged.",
	}, h.mcpResolveConflict)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpEngine(sessionID string) (*engine.Engine, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	return h.manager.Engine(backend.Owner{SessionID: sessionID}), nil
}

// mcpState annotates availability the same way REST responses do.
func mcpState(state engine.State) *engine.State {
	if state.Snapshot != nil {
		availability.AnnotateLines(state.Snapshot.Lines, state.Snapshot.KitchenOpen, time.Now())
	}
	return &state
}

func (h *Handler) mcpAddCartItem(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input AddCartItemInput,
) (*mcp.CallToolResult, *engine.State, error) {
	eng, err := h.mcpEngine(input.SessionID)
	if err != nil {
		return nil, nil, err
	}

	state, err := eng.Mutate(ctx, engine.Mutation{
		ItemID:    input.ItemID,
		KitchenID: input.KitchenID,
		Action:    model.ActionAdd,
		Quantity:  input.Quantity,
		Source:    model.SourceSuggestion,
	})
	if err != nil {
		// A pending conflict is a normal outcome for an agent: return the
		// state carrying the pending action so it can resolve it.
		if state.Pending != nil {
			return nil, mcpState(state), nil
		}
		return nil, nil, h.mcpError(err)
	}
	return nil, mcpState(state), nil
}

func (h *Handler) mcpRemoveCartItem(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input RemoveCartItemInput,
) (*mcp.CallToolResult, *engine.State, error) {
	eng, err := h.mcpEngine(input.SessionID)
	if err != nil {
		return nil, nil, err
	}

	state, err := eng.Mutate(ctx, engine.Mutation{
		ItemID:    input.ItemID,
		KitchenID: input.KitchenID,
		Action:    model.ActionRemove,
		Quantity:  input.Quantity,
		Source:    model.SourceSuggestion,
	})
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, mcpState(state), nil
}

func (h *Handler) mcpGetCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, *engine.State, error) {
	eng, err := h.mcpEngine(input.SessionID)
	if err != nil {
		return nil, nil, err
	}

	state, err := eng.Refresh(ctx)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, mcpState(state), nil
}

func (h *Handler) mcpClearCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, *engine.State, error) {
	eng, err := h.mcpEngine(input.SessionID)
	if err != nil {
		return nil, nil, err
	}

	state, err := eng.Clear(ctx)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, mcpState(state), nil
}

func (h *Handler) mcpResolveConflict(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ResolveConflictInput,
) (*mcp.CallToolResult, *engine.State, error) {
	eng, err := h.mcpEngine(input.SessionID)
	if err != nil {
		return nil, nil, err
	}

	var state engine.State
	if input.Proceed {
		state, err = eng.ConfirmConflict(ctx)
	} else {
		state, err = eng.CancelConflict()
	}
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, mcpState(state), nil
}

// mcpError converts engine errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	if apiErr, ok := err.(*model.APIError); ok {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
