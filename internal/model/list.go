package model

import "time"

type List struct {
	ID              int64      `json:"id"`
	OwnerID         int64      `json:"owner_id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Recurring       bool       `json:"recurring"`
	Metadata        Metadata   `json:"metadata"`
	SharedWith      []int64    `json:"shared_with,omitempty"`
	Items           []ListItem `json:"items,omitempty"`
	LastPurchasedAt *time.Time `json:"last_purchased_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// ListItem ties one product to one list. At most one active row exists per
// (list, product); adding the same product twice is a conflict, not an upsert.
type ListItem struct {
	ID              int64      `json:"id"`
	ListID          int64      `json:"list_id"`
	ProductID       int64      `json:"product_id"`
	Quantity        float64    `json:"quantity"`
	Unit            string     `json:"unit"`
	Purchased       bool       `json:"purchased"`
	LastPurchasedAt *time.Time `json:"last_purchased_at"`
	Metadata        Metadata   `json:"metadata"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}
