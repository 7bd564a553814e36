package model

import "time"

// Product is an owned catalog entry. PantryID, when set, names the pantry that
// purchased quantities of this product are folded into.
type Product struct {
	ID         int64      `json:"id"`
	OwnerID    int64      `json:"owner_id"`
	CategoryID *int64     `json:"category_id"`
	PantryID   *int64     `json:"pantry_id"`
	Name       string     `json:"name"`
	Metadata   Metadata   `json:"metadata"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}
