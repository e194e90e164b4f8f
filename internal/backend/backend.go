// Package backend defines the interface to the ordering backend that
// owns cart state. The engine talks to the backend exclusively through
// this interface; the concrete REST client lives in orderapi.
package backend

import (
	"context"

	"kitchencart/internal/model"
)

// Owner identifies whose cart a request operates on. UserID is set for
// authenticated users; SessionID is always set and covers anonymous
// carts.
type Owner struct {
	SessionID string
	UserID    string
}

// Key returns the stable identifier for this owner's cart state.
// Authenticated identity wins over the device session.
func (o Owner) Key() string {
	if o.UserID != "" {
		return o.UserID
	}
	return o.SessionID
}

// MutationRequest describes a single add or remove against the cart.
type MutationRequest struct {
	Owner     Owner
	KitchenID string
	ItemID    string
	Action    model.MutationAction
	Quantity  int
	Source    model.MutationSource
}

// Client abstracts the ordering backend's cart operations.
//
// Mutate and CartDetails both return the full authoritative cart
// snapshot; the backend never returns deltas. All methods map backend
// failures to model.APIError.
type Client interface {
	// Mutate applies one add or remove and returns the resulting cart.
	Mutate(ctx context.Context, req MutationRequest) (*model.CartSnapshot, error)

	// CartDetails fetches the current cart without modifying it.
	CartDetails(ctx context.Context, owner Owner) (*model.CartSnapshot, error)

	// ClearCart empties the owner's cart.
	ClearCart(ctx context.Context, owner Owner) error
}
