package store

import (
	"database/sql"
	"fmt"

	"github.com/larderhq/larder/internal/model"
)

type PantryStore struct {
	db DBTX
}

func NewPantryStore(db DBTX) *PantryStore {
	return &PantryStore{db: db}
}

func scanPantry(scanner interface{ Scan(...any) error }) (*model.Pantry, error) {
	var p model.Pantry
	var deletedAt sql.NullTime

	err := scanner.Scan(
		&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.Metadata,
		&p.CreatedAt, &p.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		p.DeletedAt = &deletedAt.Time
	}
	return &p, nil
}

const pantryCols = `id, owner_id, name, description, metadata, created_at, updated_at, deleted_at`

func (s *PantryStore) Create(ownerID int64, name, description string, meta model.Metadata) (*model.Pantry, error) {
	result, err := s.db.Exec(
		`INSERT INTO pantries (owner_id, name, description, metadata) VALUES (?, ?, ?, ?)`,
		ownerID, name, description, meta,
	)
	if err != nil {
		return nil, fmt.Errorf("insert pantry: %w", mapUnique(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *PantryStore) GetByID(id int64) (*model.Pantry, error) {
	row := s.db.QueryRow(`SELECT `+pantryCols+` FROM pantries WHERE id = ? AND deleted_at IS NULL`, id)
	p, err := scanPantry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pantry: %w", err)
	}
	return p, nil
}

func (s *PantryStore) ListForUser(userID int64) ([]model.Pantry, error) {
	rows, err := s.db.Query(
		`SELECT `+pantryCols+` FROM pantries
		 WHERE deleted_at IS NULL
		   AND (owner_id = ? OR id IN (SELECT pantry_id FROM pantry_shares WHERE user_id = ?))
		 ORDER BY name ASC`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pantries: %w", err)
	}
	defer rows.Close()

	var pantries []model.Pantry
	for rows.Next() {
		p, err := scanPantry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pantry: %w", err)
		}
		pantries = append(pantries, *p)
	}
	return pantries, rows.Err()
}

func (s *PantryStore) Update(id int64, name, description string, meta model.Metadata) (*model.Pantry, error) {
	_, err := s.db.Exec(
		`UPDATE pantries SET name = ?, description = ?, metadata = ?, updated_at = datetime('now')
		 WHERE id = ? AND deleted_at IS NULL`,
		name, description, meta, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update pantry: %w", mapUnique(err))
	}
	return s.GetByID(id)
}

// SoftDelete tombstones the pantry and all of its active items.
func (s *PantryStore) SoftDelete(id int64) error {
	_, err := s.db.Exec(
		`UPDATE pantries SET deleted_at = datetime('now') WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete pantry: %w", err)
	}
	_, err = s.db.Exec(
		`UPDATE pantry_items SET deleted_at = datetime('now') WHERE pantry_id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete pantry items: %w", err)
	}
	return nil
}

// --- Sharing ---

func (s *PantryStore) Share(pantryID, userID int64) error {
	_, err := s.db.Exec(
		`INSERT INTO pantry_shares (pantry_id, user_id) VALUES (?, ?)`,
		pantryID, userID,
	)
	if err != nil {
		return fmt.Errorf("share pantry: %w", mapUnique(err))
	}
	return nil
}

func (s *PantryStore) Revoke(pantryID, userID int64) error {
	_, err := s.db.Exec(
		`DELETE FROM pantry_shares WHERE pantry_id = ? AND user_id = ?`,
		pantryID, userID,
	)
	if err != nil {
		return fmt.Errorf("revoke pantry share: %w", err)
	}
	return nil
}

func (s *PantryStore) IsShared(pantryID, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM pantry_shares WHERE pantry_id = ? AND user_id = ?`,
		pantryID, userID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is shared: %w", err)
	}
	return true, nil
}

func (s *PantryStore) SharedWith(pantryID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT user_id FROM pantry_shares WHERE pantry_id = ? ORDER BY created_at ASC`,
		pantryID,
	)
	if err != nil {
		return nil, fmt.Errorf("shared with: %w", err)
	}
	defer rows.Close()

	var users []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan shared user: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// --- Item methods ---

func scanPantryItem(scanner interface{ Scan(...any) error }) (*model.PantryItem, error) {
	var item model.PantryItem
	var deletedAt sql.NullTime

	err := scanner.Scan(
		&item.ID, &item.PantryID, &item.ProductID, &item.Quantity, &item.Unit,
		&item.Metadata, &item.CreatedAt, &item.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		item.DeletedAt = &deletedAt.Time
	}
	return &item, nil
}

const pantryItemCols = `id, pantry_id, product_id, quantity, unit, metadata, created_at, updated_at, deleted_at`

func (s *PantryStore) CreateItem(pantryID, productID int64, quantity float64, unit string, meta model.Metadata) (*model.PantryItem, error) {
	result, err := s.db.Exec(
		`INSERT INTO pantry_items (pantry_id, product_id, quantity, unit, metadata) VALUES (?, ?, ?, ?, ?)`,
		pantryID, productID, quantity, unit, meta,
	)
	if err != nil {
		return nil, fmt.Errorf("insert pantry item: %w", mapUnique(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetItemByID(id)
}

func (s *PantryStore) GetItemByID(id int64) (*model.PantryItem, error) {
	row := s.db.QueryRow(`SELECT `+pantryItemCols+` FROM pantry_items WHERE id = ? AND deleted_at IS NULL`, id)
	item, err := scanPantryItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pantry item: %w", err)
	}
	return item, nil
}

// GetItemByProduct returns the single active item for (pantry, product).
func (s *PantryStore) GetItemByProduct(pantryID, productID int64) (*model.PantryItem, error) {
	row := s.db.QueryRow(
		`SELECT `+pantryItemCols+` FROM pantry_items WHERE pantry_id = ? AND product_id = ? AND deleted_at IS NULL`,
		pantryID, productID,
	)
	item, err := scanPantryItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pantry item by product: %w", err)
	}
	return item, nil
}

func (s *PantryStore) ItemsByPantry(pantryID int64) ([]model.PantryItem, error) {
	rows, err := s.db.Query(
		`SELECT `+pantryItemCols+` FROM pantry_items WHERE pantry_id = ? AND deleted_at IS NULL ORDER BY created_at ASC`,
		pantryID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pantry items: %w", err)
	}
	defer rows.Close()

	var items []model.PantryItem
	for rows.Next() {
		item, err := scanPantryItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pantry item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *PantryStore) UpdateItem(id int64, quantity float64, unit string, meta model.Metadata) (*model.PantryItem, error) {
	_, err := s.db.Exec(
		`UPDATE pantry_items SET quantity = ?, unit = ?, metadata = ?, updated_at = datetime('now')
		 WHERE id = ? AND deleted_at IS NULL`,
		quantity, unit, meta, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update pantry item: %w", err)
	}
	return s.GetItemByID(id)
}

func (s *PantryStore) SoftDeleteItem(id int64) error {
	_, err := s.db.Exec(
		`UPDATE pantry_items SET deleted_at = datetime('now') WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete pantry item: %w", err)
	}
	return nil
}
