package store

import (
	"database/sql"
	"fmt"

	"github.com/larderhq/larder/internal/apperr"
)

// Tables with a per-owner unique name. Guards the table name reaching SQL.
var uniqueNameTables = map[string]bool{
	"categories": true,
	"products":   true,
	"pantries":   true,
	"lists":      true,
}

// EnsureUniqueName fails with Conflict if an active row of table already uses
// name for this owner. excludeID skips the row being renamed; pass 0 on create.
func EnsureUniqueName(db DBTX, table string, ownerID int64, name string, excludeID int64) error {
	if !uniqueNameTables[table] {
		return fmt.Errorf("ensure unique name: unknown table %q", table)
	}

	var id int64
	err := db.QueryRow(
		`SELECT id FROM `+table+` WHERE owner_id = ? AND name = ? AND deleted_at IS NULL`,
		ownerID, name,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ensure unique name: %w", err)
	}
	if id != excludeID {
		return fmt.Errorf("%w: name %q already in use", apperr.ErrConflict, name)
	}
	return nil
}

// NameTaken reports whether an active row of table uses name for this owner.
// Used by the restore engine to try name candidates.
func NameTaken(db DBTX, table string, ownerID int64, name string) (bool, error) {
	if !uniqueNameTables[table] {
		return false, fmt.Errorf("name taken: unknown table %q", table)
	}

	var id int64
	err := db.QueryRow(
		`SELECT id FROM `+table+` WHERE owner_id = ? AND name = ? AND deleted_at IS NULL`,
		ownerID, name,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("name taken: %w", err)
	}
	return true, nil
}
