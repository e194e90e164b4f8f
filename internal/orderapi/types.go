// Package orderapi implements the REST client for the ordering backend's
// cart endpoints. All backend-specific wire types, transforms, and HTTP
// client logic live here.
package orderapi

// === Backend API Response Types ===

// CartResponse is the body every cart endpoint returns. The backend
// always replies with the full cart state; there are no delta responses.
type CartResponse struct {
	Status            string       `json:"status"`
	Message           string       `json:"message,omitempty"`
	KitchenID         string       `json:"kitchen_id"`
	KitchenName       string       `json:"kitchen_name"`
	KitchenStatus     string       `json:"kitchen_status"` // "open" or "closed"
	CartDetails       []CartItem   `json:"cart_details"`
	ExistingCart      []CartItem   `json:"existingCartDetails"`
	TotalItemCount    int          `json:"total_item_count"`
	BillingDetails    BillingBlock `json:"billing_details"`
	DeliveryAddressID string       `json:"delivery_address_id,omitempty"`
}

// CartItem is one row of cart_details[] / existingCartDetails[].
type CartItem struct {
	ItemID          string  `json:"item_id"`
	KitchenID       string  `json:"kitchen_id"`
	ItemName        string  `json:"item_name"`
	Price           string  `json:"price"`          // minor units as string, "8900"
	OriginalPrice   string  `json:"original_price"` // pre-discount, same format
	DiscountPercent float64 `json:"discount_percent"`
	DiscountActive  bool    `json:"discount_active"`
	Bogof           bool    `json:"bogof"`
	Quantity        int     `json:"quantity"`
	Image           string  `json:"image,omitempty"`
	Availability    bool    `json:"availability"`
	StartTime       string  `json:"start_time,omitempty"` // "HH:MM"
	EndTime         string  `json:"end_time,omitempty"`
}

// BillingBlock contains the server-computed price breakdown.
// All fields are decimal strings in major units (e.g., "12.50").
// Note the unit mismatch with CartItem.Price, which is minor units.
type BillingBlock struct {
	Subtotal    string `json:"subtotal"`
	DeliveryFee string `json:"delivery_fee"`
	Tax         string `json:"tax"`
	Total       string `json:"total"`
}

// ErrorResponse is the backend's error envelope.
type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// === Backend API Request Types ===

// MutateRequest is sent to the add-item and remove-item endpoints.
type MutateRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
	KitchenID string `json:"kitchen_id"`
	ItemID    string `json:"item_id"`
	Quantity  int    `json:"quantity"`
	Source    string `json:"source,omitempty"`
}

// OwnerRequest identifies the cart for the details and clear endpoints.
type OwnerRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
}
