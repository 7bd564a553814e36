package store

import (
	"database/sql"
	"fmt"

	"github.com/larderhq/larder/internal/model"
)

type ProductStore struct {
	db DBTX
}

func NewProductStore(db DBTX) *ProductStore {
	return &ProductStore{db: db}
}

func scanProduct(scanner interface{ Scan(...any) error }) (*model.Product, error) {
	var p model.Product
	var categoryID, pantryID sql.NullInt64
	var deletedAt sql.NullTime

	err := scanner.Scan(
		&p.ID, &p.OwnerID, &categoryID, &pantryID, &p.Name, &p.Metadata,
		&p.CreatedAt, &p.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	if categoryID.Valid {
		p.CategoryID = &categoryID.Int64
	}
	if pantryID.Valid {
		p.PantryID = &pantryID.Int64
	}
	if deletedAt.Valid {
		p.DeletedAt = &deletedAt.Time
	}
	return &p, nil
}

const productCols = `id, owner_id, category_id, pantry_id, name, metadata, created_at, updated_at, deleted_at`

func (s *ProductStore) Create(ownerID int64, name string, categoryID, pantryID *int64, meta model.Metadata) (*model.Product, error) {
	result, err := s.db.Exec(
		`INSERT INTO products (owner_id, name, category_id, pantry_id, metadata) VALUES (?, ?, ?, ?, ?)`,
		ownerID, name, nullInt64(categoryID), nullInt64(pantryID), meta,
	)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", mapUnique(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

// GetByID returns the product only while it is active.
func (s *ProductStore) GetByID(id int64) (*model.Product, error) {
	row := s.db.QueryRow(`SELECT `+productCols+` FROM products WHERE id = ? AND deleted_at IS NULL`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *ProductStore) ListForOwner(ownerID int64) ([]model.Product, error) {
	rows, err := s.db.Query(
		`SELECT `+productCols+` FROM products WHERE owner_id = ? AND deleted_at IS NULL ORDER BY name ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *ProductStore) Update(id int64, name string, categoryID, pantryID *int64, meta model.Metadata) (*model.Product, error) {
	_, err := s.db.Exec(
		`UPDATE products SET name = ?, category_id = ?, pantry_id = ?, metadata = ?, updated_at = datetime('now')
		 WHERE id = ? AND deleted_at IS NULL`,
		name, nullInt64(categoryID), nullInt64(pantryID), meta, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", mapUnique(err))
	}
	return s.GetByID(id)
}

func (s *ProductStore) SoftDelete(id int64) error {
	_, err := s.db.Exec(
		`UPDATE products SET deleted_at = datetime('now') WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
