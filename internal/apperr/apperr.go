// Package apperr defines the failure taxonomy shared by the engines and the
// HTTP layer. Engines wrap these sentinels with context; handlers match them
// with errors.Is to pick a status code. Anything not wrapping a sentinel is
// treated as an internal error.
package apperr

import "errors"

var (
	// ErrBadRequest marks invalid input: empty-list purchase, restoring a
	// recurring purchase, revoking a user that was never shared.
	ErrBadRequest = errors.New("bad request")

	// ErrNotFound covers both missing entities and entities the actor may
	// not see. The two cases are deliberately indistinguishable so that
	// existence is never leaked.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks duplicate names, duplicate products in a list, and
	// duplicate share targets.
	ErrConflict = errors.New("conflict")
)
