package model

import "time"

type Pantry struct {
	ID          int64      `json:"id"`
	OwnerID     int64      `json:"owner_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Metadata    Metadata   `json:"metadata"`
	SharedWith  []int64    `json:"shared_with,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// PantryItem holds on-hand stock of one product. At most one active row exists
// per (pantry, product); merges sum into it instead of duplicating.
type PantryItem struct {
	ID        int64      `json:"id"`
	PantryID  int64      `json:"pantry_id"`
	ProductID int64      `json:"product_id"`
	Quantity  float64    `json:"quantity"`
	Unit      string     `json:"unit"`
	Metadata  Metadata   `json:"metadata"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}
