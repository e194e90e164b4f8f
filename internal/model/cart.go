// Package model defines the cart session data structures and error types
// shared across the service.
package model

// === Enums ===

// MutationAction identifies the direction of a cart mutation.
type MutationAction string

const (
	ActionAdd    MutationAction = "add"
	ActionRemove MutationAction = "remove"
)

// MutationSource records which surface originated a mutation.
// The ordering backend uses it for attribution; the engine passes it through.
type MutationSource string

const (
	SourceItemList   MutationSource = "ITEMLIST"
	SourceMenu       MutationSource = "MENU"
	SourceSuggestion MutationSource = "SUGGESTION"
)

// === Cart Types ===

// CartLine is one item row in a cart. All amounts are in minor currency
// units (cents). Quantity 0 means "not in cart" - such lines only exist
// transiently in the optimistic local view, never in a server snapshot.
type CartLine struct {
	ItemID            string  `json:"item_id"`
	KitchenID         string  `json:"kitchen_id"`
	Name              string  `json:"name"`
	UnitPrice         int64   `json:"unit_price"`
	OriginalUnitPrice int64   `json:"original_unit_price,omitempty"`
	DiscountPercent   float64 `json:"discount_percent,omitempty"`
	DiscountActive    bool    `json:"discount_active,omitempty"`
	BuyOneGetOneFree  bool    `json:"buy_one_get_one_free,omitempty"`
	Quantity          int     `json:"quantity"`
	ImageURL          string  `json:"image_url,omitempty"`

	// Serving window as "HH:MM" clock strings from the backend.
	// Empty means the item is served all day (static flag only).
	Available bool   `json:"available"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`

	// Orderable is derived from the serving window and kitchen state at
	// response time. It is never persisted - recomputed on every response.
	Orderable bool `json:"orderable"`
}

// Billing holds the server-computed price breakdown in minor units.
// The engine displays these values; it never computes pricing itself.
type Billing struct {
	Subtotal    int64 `json:"subtotal"`
	DeliveryFee int64 `json:"delivery_fee"`
	Tax         int64 `json:"tax"`
	Total       int64 `json:"total"`
}

// CartSnapshot is the authoritative, server-returned cart state.
// The engine only ever replaces snapshots wholesale; a local projection
// with optimistic deltas applied is never passed off as a snapshot.
//
// Invariant: all lines in a non-empty snapshot share one KitchenID.
type CartSnapshot struct {
	KitchenID         string     `json:"kitchen_id"`
	KitchenName       string     `json:"kitchen_name"`
	KitchenOpen       bool       `json:"kitchen_open"`
	Lines             []CartLine `json:"lines"`
	Billing           Billing    `json:"billing"`
	DeliveryAddressID string     `json:"delivery_address_id,omitempty"`
}

// TotalItemCount returns the sum of quantities across all lines.
func (s *CartSnapshot) TotalItemCount() int {
	total := 0
	for _, line := range s.Lines {
		total += line.Quantity
	}
	return total
}

// IsEmpty reports whether the cart holds no items.
func (s *CartSnapshot) IsEmpty() bool {
	return s.TotalItemCount() == 0
}

// QuantityOf returns the current quantity of an item, or 0 if absent.
func (s *CartSnapshot) QuantityOf(itemID string) int {
	for _, line := range s.Lines {
		if line.ItemID == itemID {
			return line.Quantity
		}
	}
	return 0
}

// Clone returns a deep copy. Used to keep rollback state isolated from
// the live projection.
func (s *CartSnapshot) Clone() *CartSnapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Lines = make([]CartLine, len(s.Lines))
	copy(out.Lines, s.Lines)
	return &out
}

// EmptySnapshot returns a snapshot representing an empty cart.
func EmptySnapshot() *CartSnapshot {
	return &CartSnapshot{Lines: []CartLine{}}
}

// === Derived / Transient Types ===

// PastKitchenRecord is the persisted summary of the kitchen currently
// owning the cart. Advisory: used to pre-populate conflict checks and UI
// summaries before a fresh fetch completes. Always written as a complete
// record so readers never observe mismatched fields.
type PastKitchenRecord struct {
	KitchenID string `json:"kitchen_id"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	ItemCount int    `json:"item_count"`
}

// PastKitchenFromSnapshot derives the cache record from an accepted
// snapshot. ItemCount is recomputed from line quantities rather than
// incremented locally, so the record cannot drift from server state.
func PastKitchenFromSnapshot(s *CartSnapshot) PastKitchenRecord {
	image := ""
	if len(s.Lines) > 0 {
		image = s.Lines[0].ImageURL
	}
	return PastKitchenRecord{
		KitchenID: s.KitchenID,
		Name:      s.KitchenName,
		Image:     image,
		ItemCount: s.TotalItemCount(),
	}
}

// PendingCartAction is the mutation suspended by a kitchen conflict.
// It exists only between conflict detection and user resolution, and is
// discarded on cancel.
type PendingCartAction struct {
	ItemID    string         `json:"item_id"`
	KitchenID string         `json:"kitchen_id"`
	Action    MutationAction `json:"action"`
	Quantity  int            `json:"quantity"`
	Source    MutationSource `json:"source,omitempty"`
}

// NavigationIntent is emitted after a successful add so the client can
// route the user to the kitchen's item list. Routing itself is owned by
// the navigation collaborator.
type NavigationIntent struct {
	KitchenID string `json:"kitchen_id"`
	ItemID    string `json:"item_id"`
}
