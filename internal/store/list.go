package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/larderhq/larder/internal/model"
)

type ListStore struct {
	db DBTX
}

func NewListStore(db DBTX) *ListStore {
	return &ListStore{db: db}
}

func scanList(scanner interface{ Scan(...any) error }) (*model.List, error) {
	var l model.List
	var recurring int
	var lastPurchasedAt, deletedAt sql.NullTime

	err := scanner.Scan(
		&l.ID, &l.OwnerID, &l.Name, &l.Description, &recurring, &l.Metadata,
		&lastPurchasedAt, &l.CreatedAt, &l.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Recurring = recurring != 0
	if lastPurchasedAt.Valid {
		l.LastPurchasedAt = &lastPurchasedAt.Time
	}
	if deletedAt.Valid {
		l.DeletedAt = &deletedAt.Time
	}
	return &l, nil
}

const listCols = `id, owner_id, name, description, recurring, metadata, last_purchased_at, created_at, updated_at, deleted_at`

func (s *ListStore) Create(ownerID int64, name, description string, recurring bool, meta model.Metadata) (*model.List, error) {
	result, err := s.db.Exec(
		`INSERT INTO lists (owner_id, name, description, recurring, metadata) VALUES (?, ?, ?, ?, ?)`,
		ownerID, name, description, boolInt(recurring), meta,
	)
	if err != nil {
		return nil, fmt.Errorf("insert list: %w", mapUnique(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

// GetByID returns the list only while it is active.
func (s *ListStore) GetByID(id int64) (*model.List, error) {
	row := s.db.QueryRow(`SELECT `+listCols+` FROM lists WHERE id = ? AND deleted_at IS NULL`, id)
	l, err := scanList(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}
	return l, nil
}

// GetByIDAnyState also returns tombstoned lists, for the restore path that
// reads a retired list's fields through a purchase's weak reference.
func (s *ListStore) GetByIDAnyState(id int64) (*model.List, error) {
	row := s.db.QueryRow(`SELECT `+listCols+` FROM lists WHERE id = ?`, id)
	l, err := scanList(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get list any state: %w", err)
	}
	return l, nil
}

// ListForUser returns active lists the user owns or is shared on.
func (s *ListStore) ListForUser(userID int64) ([]model.List, error) {
	rows, err := s.db.Query(
		`SELECT `+listCols+` FROM lists
		 WHERE deleted_at IS NULL
		   AND (owner_id = ? OR id IN (SELECT list_id FROM list_shares WHERE user_id = ?))
		 ORDER BY name ASC`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	defer rows.Close()

	var lists []model.List
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		lists = append(lists, *l)
	}
	return lists, rows.Err()
}

func (s *ListStore) Update(id int64, name, description string, recurring bool, meta model.Metadata) (*model.List, error) {
	_, err := s.db.Exec(
		`UPDATE lists SET name = ?, description = ?, recurring = ?, metadata = ?, updated_at = datetime('now')
		 WHERE id = ? AND deleted_at IS NULL`,
		name, description, boolInt(recurring), meta, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update list: %w", mapUnique(err))
	}
	return s.GetByID(id)
}

func (s *ListStore) SetLastPurchased(id int64, t time.Time) error {
	_, err := s.db.Exec(
		`UPDATE lists SET last_purchased_at = ?, updated_at = datetime('now') WHERE id = ? AND deleted_at IS NULL`,
		t.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set last purchased: %w", err)
	}
	return nil
}

// SoftDelete tombstones the list row only. Used by the retirement rule: the
// list's items stay active so the purchase history remains traversable.
func (s *ListStore) SoftDelete(id int64) error {
	_, err := s.db.Exec(
		`UPDATE lists SET deleted_at = datetime('now') WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	return nil
}

// SoftDeleteWithItems tombstones the list and all of its active items. Used by
// the explicit delete operation so no orphaned items survive the list.
func (s *ListStore) SoftDeleteWithItems(id int64) error {
	if err := s.SoftDelete(id); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`UPDATE list_items SET deleted_at = datetime('now') WHERE list_id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete list items: %w", err)
	}
	return nil
}

// --- Sharing ---

func (s *ListStore) Share(listID, userID int64) error {
	_, err := s.db.Exec(
		`INSERT INTO list_shares (list_id, user_id) VALUES (?, ?)`,
		listID, userID,
	)
	if err != nil {
		return fmt.Errorf("share list: %w", mapUnique(err))
	}
	return nil
}

func (s *ListStore) Revoke(listID, userID int64) error {
	_, err := s.db.Exec(
		`DELETE FROM list_shares WHERE list_id = ? AND user_id = ?`,
		listID, userID,
	)
	if err != nil {
		return fmt.Errorf("revoke list share: %w", err)
	}
	return nil
}

func (s *ListStore) IsShared(listID, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM list_shares WHERE list_id = ? AND user_id = ?`,
		listID, userID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is shared: %w", err)
	}
	return true, nil
}

func (s *ListStore) SharedWith(listID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT user_id FROM list_shares WHERE list_id = ? ORDER BY created_at ASC`,
		listID,
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

func scanListItem(scanner interface{ Scan(...any) error }) (*model.ListItem, error) {
	var item model.ListItem
	var purchased int
	var lastPurchasedAt, deletedAt sql.NullTime

	err := scanner.Scan(
		&item.ID, &item.ListID, &item.ProductID, &item.Quantity, &item.Unit,
		&purchased, &lastPurchasedAt, &item.Metadata,
		&item.CreatedAt, &item.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Purchased = purchased != 0
	if lastPurchasedAt.Valid {
		item.LastPurchasedAt = &lastPurchasedAt.Time
	}
	if deletedAt.Valid {
		item.DeletedAt = &deletedAt.Time
	}
	return &item, nil
}

const listItemCols = `id, list_id, product_id, quantity, unit, purchased, last_purchased_at, metadata, created_at, updated_at, deleted_at`

func (s *ListStore) CreateItem(listID, productID int64, quantity float64, unit string, meta model.Metadata) (*model.ListItem, error) {
	result, err := s.db.Exec(
		`INSERT INTO list_items (list_id, product_id, quantity, unit, metadata) VALUES (?, ?, ?, ?, ?)`,
		listID, productID, quantity, unit, meta,
	)
	if err != nil {
		return nil, fmt.Errorf("insert list item: %w", mapUnique(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetItemByID(id)
}

func (s *ListStore) GetItemByID(id int64) (*model.ListItem, error) {
	row := s.db.QueryRow(`SELECT `+listItemCols+` FROM list_items WHERE id = ? AND deleted_at IS NULL`, id)
	item, err := scanListItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get list item: %w", err)
	}
	return item, nil
}

func (s *ListStore) GetItemByProduct(listID, productID int64) (*model.ListItem, error) {
	row := s.db.QueryRow(
		`SELECT `+listItemCols+` FROM list_items WHERE list_id = ? AND product_id = ? AND deleted_at IS NULL`,
		listID, productID,
	)
	item, err := scanListItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get list item by product: %w", err)
	}
	return item, nil
}

func (s *ListStore) ItemsByList(listID int64) ([]model.ListItem, error) {
	rows, err := s.db.Query(
		`SELECT `+listItemCols+` FROM list_items WHERE list_id = ? AND deleted_at IS NULL ORDER BY created_at ASC`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []model.ListItem
	for rows.Next() {
		item, err := scanListItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *ListStore) UpdateItem(id int64, quantity float64, unit string, meta model.Metadata) (*model.ListItem, error) {
	_, err := s.db.Exec(
		`UPDATE list_items SET quantity = ?, unit = ?, metadata = ?, updated_at = datetime('now')
		 WHERE id = ? AND deleted_at IS NULL`,
		quantity, unit, meta, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update list item: %w", err)
	}
	return s.GetItemByID(id)
}

func (s *ListStore) SetItemPurchased(id int64, purchased bool) (*model.ListItem, error) {
	_, err := s.db.Exec(
		`UPDATE list_items SET purchased = ?, updated_at = datetime('now') WHERE id = ? AND deleted_at IS NULL`,
		boolInt(purchased), id,
	)
	if err != nil {
		return nil, fmt.Errorf("set item purchased: %w", err)
	}
	return s.GetItemByID(id)
}

func (s *ListStore) SoftDeleteItem(id int64) error {
	_, err := s.db.Exec(
		`UPDATE list_items SET deleted_at = datetime('now') WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete list item: %w", err)
	}
	return nil
}

// ResetItems clears the purchased flag on every active item of the list,
// leaving quantities and units untouched.
func (s *ListStore) ResetItems(listID int64) error {
	_, err := s.db.Exec(
		`UPDATE list_items SET purchased = 0, updated_at = datetime('now') WHERE list_id = ? AND deleted_at IS NULL`,
		listID,
	)
	if err != nil {
		return fmt.Errorf("reset items: %w", err)
	}
	return nil
}

// StampPurchased sets last_purchased_at on every active purchased item.
func (s *ListStore) StampPurchased(listID int64, t time.Time) error {
	_, err := s.db.Exec(
		`UPDATE list_items SET last_purchased_at = ?, updated_at = datetime('now')
		 WHERE list_id = ? AND purchased = 1 AND deleted_at IS NULL`,
		t.UTC(), listID,
	)
	if err != nil {
		return fmt.Errorf("stamp purchased items: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
