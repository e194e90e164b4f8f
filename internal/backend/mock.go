package backend

import (
	"context"

	"kitchencart/internal/model"
)

// Mock implements Client for testing.
// Each method can be configured via function fields.
type Mock struct {
	MutateFunc      func(ctx context.Context, req MutationRequest) (*model.CartSnapshot, error)
	CartDetailsFunc func(ctx context.Context, owner Owner) (*model.CartSnapshot, error)
	ClearCartFunc   func(ctx context.Context, owner Owner) error
}

// Mutate calls the configured MutateFunc or returns an error.
func (m *Mock) Mutate(ctx context.Context, req MutationRequest) (*model.CartSnapshot, error) {
	if m.MutateFunc != nil {
		return m.MutateFunc(ctx, req)
	}
	return nil, model.NewInternalError(nil)
}

// CartDetails calls the configured CartDetailsFunc or returns an empty cart.
func (m *Mock) CartDetails(ctx context.Context, owner Owner) (*model.CartSnapshot, error) {
	if m.CartDetailsFunc != nil {
		return m.CartDetailsFunc(ctx, owner)
	}
	return model.EmptySnapshot(), nil
}

// ClearCart calls the configured ClearCartFunc or succeeds.
func (m *Mock) ClearCart(ctx context.Context, owner Owner) error {
	if m.ClearCartFunc != nil {
		return m.ClearCartFunc(ctx, owner)
	}
	return nil
}

// Verify Mock implements Client interface at compile time.
var _ Client = (*Mock)(nil)
