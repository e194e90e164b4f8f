package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kitchencart/internal/backend"
	"kitchencart/internal/model"
	"kitchencart/internal/transport"
)

// apiPath is the base path for the ordering backend's cart endpoints.
const apiPath = "/api/v1"

// userAgent identifies this client to the backend.
// Required: the backend's CDN rate-limits requests without a User-Agent.
const userAgent = "kitchencart/1.0"

// Config holds ordering-backend client configuration.
type Config struct {
	BaseURL string
	APIKey  string

	// HTTPClient overrides the default client. Used by tests to point at
	// an httptest server without the browser-fingerprint transport.
	HTTPClient *http.Client
}

// Client implements backend.Client against the ordering backend's REST
// cart endpoints. All four endpoints are POST and all return the full
// cart state in the same envelope.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// New creates an ordering-backend client with the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("backend API key is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Browser TLS fingerprint transport avoids JA3-based rate
		// limiting at the backend's CDN. See internal/transport.
		httpClient = &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport.NewBrowserTransport(30 * time.Second),
		}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
	}, nil
}

// Mutate applies one add or remove and returns the resulting cart.
func (c *Client) Mutate(ctx context.Context, req backend.MutationRequest) (*model.CartSnapshot, error) {
	path := "/cart/add-item"
	if req.Action == model.ActionRemove {
		path = "/cart/remove-item"
	}

	body := MutateRequest{
		SessionID: req.Owner.SessionID,
		UserID:    req.Owner.UserID,
		KitchenID: req.KitchenID,
		ItemID:    req.ItemID,
		Quantity:  req.Quantity,
		Source:    string(req.Source),
	}

	resp, err := c.doCartRequest(ctx, path, body)
	if err != nil {
		return nil, err
	}
	return ToSnapshot(resp), nil
}

// CartDetails fetches the current cart without modifying it.
func (c *Client) CartDetails(ctx context.Context, owner backend.Owner) (*model.CartSnapshot, error) {
	resp, err := c.doCartRequest(ctx, "/cart/details", OwnerRequest{
		SessionID: owner.SessionID,
		UserID:    owner.UserID,
	})
	if err != nil {
		return nil, err
	}
	return ToSnapshot(resp), nil
}

// ClearCart empties the owner's cart.
func (c *Client) ClearCart(ctx context.Context, owner backend.Owner) error {
	_, err := c.doCartRequest(ctx, "/cart/clear", OwnerRequest{
		SessionID: owner.SessionID,
		UserID:    owner.UserID,
	})
	return err
}

// doCartRequest executes one POST against a cart endpoint and decodes
// the standard cart envelope.
func (c *Client) doCartRequest(ctx context.Context, path string, body interface{}) (*CartResponse, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiPath+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewUpstreamError("OrderAPI", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, c.parseErrorResponse(resp.StatusCode, respBody)
	}

	var cartResp CartResponse
	if err := json.Unmarshal(respBody, &cartResp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &cartResp, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-API-Key", c.apiKey)
}

// parseErrorResponse converts a backend error to APIError.
func (c *Client) parseErrorResponse(statusCode int, body []byte) error {
	var backendErr ErrorResponse
	json.Unmarshal(body, &backendErr) // Best effort parse

	switch statusCode {
	case 404:
		return model.NewNotFoundError("cart")
	case 401, 403:
		return model.NewUnauthorizedError("OrderAPI authentication failed")
	case 400:
		msg := backendErr.Message
		if msg == "" {
			msg = "invalid request"
		}
		return model.NewValidationError("request", msg)
	case 429:
		return model.NewRateLimitError("OrderAPI")
	default:
		return model.NewUpstreamError("OrderAPI",
			fmt.Errorf("status %d: %s - %s", statusCode, backendErr.Code, backendErr.Message))
	}
}

// Verify Client implements backend.Client at compile time.
var _ backend.Client = (*Client)(nil)
