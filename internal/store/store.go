// Package store implements durable storage for all entities. Stores follow a
// common shape: a scanX helper, an xCols constant, and create-then-reselect
// writes. Every store works over DBTX so the engines can run the same queries
// inside or outside a transaction.
package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/larderhq/larder/internal/apperr"
)

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx.
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// mapUnique converts sqlite UNIQUE violations into the Conflict signal. The
// application-level name checks run first, but the partial unique indexes are
// the backstop for the check-then-write race window.
func mapUnique(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", apperr.ErrConflict, err)
	}
	return err
}
