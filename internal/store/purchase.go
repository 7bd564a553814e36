package store

import (
	"database/sql"
	"fmt"

	"github.com/larderhq/larder/internal/model"
)

type PurchaseStore struct {
	db DBTX
}

func NewPurchaseStore(db DBTX) *PurchaseStore {
	return &PurchaseStore{db: db}
}

func scanPurchase(scanner interface{ Scan(...any) error }) (*model.Purchase, error) {
	var p model.Purchase
	var listID sql.NullInt64
	var listRecurring int
	var deletedAt sql.NullTime

	err := scanner.Scan(
		&p.ID, &p.OwnerID, &listID, &p.ListName, &p.ListDescription, &listRecurring,
		&p.ListMetadata, &p.Metadata, &p.CreatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	if listID.Valid {
		p.ListID = &listID.Int64
	}
	p.ListRecurring = listRecurring != 0
	if deletedAt.Valid {
		p.DeletedAt = &deletedAt.Time
	}
	return &p, nil
}

const purchaseCols = `id, owner_id, list_id, list_name, list_description, list_recurring, list_metadata, metadata, created_at, deleted_at`

// Create inserts the purchase row with the source list's fields embedded so
// the record stays resolvable after the list is tombstoned or gone.
func (s *PurchaseStore) Create(ownerID int64, listID *int64, listName, listDescription string, listRecurring bool, listMeta, meta model.Metadata) (*model.Purchase, error) {
	result, err := s.db.Exec(
		`INSERT INTO purchases (owner_id, list_id, list_name, list_description, list_recurring, list_metadata, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ownerID, nullInt64(listID), listName, listDescription, boolInt(listRecurring), listMeta, meta,
	)
	if err != nil {
		return nil, fmt.Errorf("insert purchase: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

// GetByID returns the active purchase with its snapshot items loaded.
func (s *PurchaseStore) GetByID(id int64) (*model.Purchase, error) {
	row := s.db.QueryRow(`SELECT `+purchaseCols+` FROM purchases WHERE id = ? AND deleted_at IS NULL`, id)
	p, err := scanPurchase(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get purchase: %w", err)
	}

	p.Items, err = s.ItemsByPurchase(id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PurchaseStore) ListForOwner(ownerID int64) ([]model.Purchase, error) {
	rows, err := s.db.Query(
		`SELECT `+purchaseCols+` FROM purchases WHERE owner_id = ? AND deleted_at IS NULL ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []model.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		purchases = append(purchases, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range purchases {
		items, err := s.ItemsByPurchase(purchases[i].ID)
		if err != nil {
			return nil, err
		}
		purchases[i].Items = items
	}
	return purchases, nil
}

func (s *PurchaseStore) SoftDelete(id int64) error {
	_, err := s.db.Exec(
		`UPDATE purchases SET deleted_at = datetime('now') WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete purchase: %w", err)
	}
	return nil
}

// --- Snapshot item methods. Purchase items are append-only: there is no
// update or delete path once a snapshot is committed. ---

func scanPurchaseItem(scanner interface{ Scan(...any) error }) (*model.PurchaseItem, error) {
	var item model.PurchaseItem
	var purchased int

	err := scanner.Scan(
		&item.ID, &item.PurchaseID, &item.ProductID, &item.Quantity, &item.Unit,
		&purchased, &item.Metadata, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Purchased = purchased != 0
	return &item, nil
}

const purchaseItemCols = `id, purchase_id, product_id, quantity, unit, purchased, metadata, created_at`

func (s *PurchaseStore) AddItem(purchaseID, productID int64, quantity float64, unit string, purchased bool, meta model.Metadata) (*model.PurchaseItem, error) {
	result, err := s.db.Exec(
		`INSERT INTO purchase_items (purchase_id, product_id, quantity, unit, purchased, metadata)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		purchaseID, productID, quantity, unit, boolInt(purchased), meta,
	)
	if err != nil {
		return nil, fmt.Errorf("insert purchase item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+purchaseItemCols+` FROM purchase_items WHERE id = ?`, id)
	return scanPurchaseItem(row)
}

func (s *PurchaseStore) ItemsByPurchase(purchaseID int64) ([]model.PurchaseItem, error) {
	rows, err := s.db.Query(
		`SELECT `+purchaseItemCols+` FROM purchase_items WHERE purchase_id = ? ORDER BY created_at ASC, id ASC`,
		purchaseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list purchase items: %w", err)
	}
	defer rows.Close()

	var items []model.PurchaseItem
	for rows.Next() {
		item, err := scanPurchaseItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}
