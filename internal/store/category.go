package store

import (
	"database/sql"
	"fmt"

	"github.com/larderhq/larder/internal/model"
)

type CategoryStore struct {
	db DBTX
}

func NewCategoryStore(db DBTX) *CategoryStore {
	return &CategoryStore{db: db}
}

func scanCategory(scanner interface{ Scan(...any) error }) (*model.Category, error) {
	var c model.Category
	var deletedAt sql.NullTime

	err := scanner.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Metadata, &c.CreatedAt, &c.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		c.DeletedAt = &deletedAt.Time
	}
	return &c, nil
}

const categoryCols = `id, owner_id, name, metadata, created_at, updated_at, deleted_at`

func (s *CategoryStore) Create(ownerID int64, name string, meta model.Metadata) (*model.Category, error) {
	result, err := s.db.Exec(
		`INSERT INTO categories (owner_id, name, metadata) VALUES (?, ?, ?)`,
		ownerID, name, meta,
	)
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", mapUnique(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *CategoryStore) GetByID(id int64) (*model.Category, error) {
	row := s.db.QueryRow(`SELECT `+categoryCols+` FROM categories WHERE id = ? AND deleted_at IS NULL`, id)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (s *CategoryStore) ListForOwner(ownerID int64) ([]model.Category, error) {
	rows, err := s.db.Query(
		`SELECT `+categoryCols+` FROM categories WHERE owner_id = ? AND deleted_at IS NULL ORDER BY name ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

func (s *CategoryStore) Update(id int64, name string, meta model.Metadata) (*model.Category, error) {
	_, err := s.db.Exec(
		`UPDATE categories SET name = ?, metadata = ?, updated_at = datetime('now') WHERE id = ? AND deleted_at IS NULL`,
		name, meta, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update category: %w", mapUnique(err))
	}
	return s.GetByID(id)
}

func (s *CategoryStore) SoftDelete(id int64) error {
	_, err := s.db.Exec(
		`UPDATE categories SET deleted_at = datetime('now') WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}
