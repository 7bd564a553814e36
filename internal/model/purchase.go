package model

import "time"

// Purchase is the immutable record produced when a list's purchased items are
// consolidated. ListID is a weak reference: the source list may be tombstoned
// or gone while the purchase stays fully readable, so the list's name,
// description, recurring flag and metadata are embedded at consolidation time.
type Purchase struct {
	ID              int64          `json:"id"`
	OwnerID         int64          `json:"owner_id"`
	ListID          *int64         `json:"list_id"`
	ListName        string         `json:"list_name"`
	ListDescription string         `json:"list_description"`
	ListRecurring   bool           `json:"list_recurring"`
	ListMetadata    Metadata       `json:"list_metadata"`
	Metadata        Metadata       `json:"metadata"`
	Items           []PurchaseItem `json:"items,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	DeletedAt       *time.Time     `json:"deleted_at,omitempty"`
}

// PurchaseItem is a frozen snapshot of a list item, detached from live editing.
type PurchaseItem struct {
	ID         int64     `json:"id"`
	PurchaseID int64     `json:"purchase_id"`
	ProductID  int64     `json:"product_id"`
	Quantity   float64   `json:"quantity"`
	Unit       string    `json:"unit"`
	Purchased  bool      `json:"purchased"`
	Metadata   Metadata  `json:"metadata"`
	CreatedAt  time.Time `json:"created_at"`
}
