// Package list implements the list lifecycle engine: create, partial update,
// delete, reset, sharing, and the item operations. Every mutating operation
// runs inside a single transaction; access checks collapse "missing" and
// "not yours" into the same not-found signal.
package list

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/larderhq/larder/internal/apperr"
	"github.com/larderhq/larder/internal/database"
	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/store"
)

// Notifier delivers share notifications. Delivery is best-effort: failures are
// logged and never fail the share.
type Notifier interface {
	NotifyShared(email, resourceName string) error
}

type Service struct {
	db       *sql.DB
	notifier Notifier
	logger   *slog.Logger
}

func NewService(db *sql.DB, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{db: db, notifier: notifier, logger: logger}
}

// loadForActor fetches an active list and verifies the actor may touch it.
// Owners always pass; shared users pass unless ownerOnly is set. Everyone else
// gets not-found, never forbidden.
func loadForActor(tx store.DBTX, listID, actorID int64, ownerOnly bool) (*model.List, error) {
	ls := store.NewListStore(tx)
	l, err := ls.GetByID(listID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("%w: list %d", apperr.ErrNotFound, listID)
	}
	if l.OwnerID == actorID {
		return l, nil
	}
	if ownerOnly {
		return nil, fmt.Errorf("%w: list %d", apperr.ErrNotFound, listID)
	}
	shared, err := ls.IsShared(listID, actorID)
	if err != nil {
		return nil, err
	}
	if !shared {
		return nil, fmt.Errorf("%w: list %d", apperr.ErrNotFound, listID)
	}
	return l, nil
}

func (s *Service) Create(ownerID int64, name, description string, recurring bool, meta model.Metadata) (*model.List, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: list name is required", apperr.ErrBadRequest)
	}

	var created *model.List
	err := database.WithTx(s.db, func(tx *sql.Tx) error {
		if err := store.EnsureUniqueName(tx, "lists", ownerID, name, 0); err != nil {
			return err
		}
		var err error
		created, err = store.NewListStore(tx).Create(ownerID, name, description, recurring, meta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get returns the list with its items and share set, for the owner or a
// shared user.
func (s *Service) Get(listID, actorID int64) (*model.List, error) {
	l, err := loadForActor(s.db, listID, actorID, false)
	if err != nil {
		return nil, err
	}

	ls := store.NewListStore(s.db)
	if l.Items, err = ls.ItemsByList(listID); err != nil {
		return nil, err
	}
	if l.SharedWith, err = ls.SharedWith(listID); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) ListForUser(actorID int64) ([]model.List, error) {
	return store.NewListStore(s.db).ListForUser(actorID)
}

// UpdateParams carries the optional fields of a partial update. Nil fields are
// left untouched.
type UpdateParams struct {
	Name        *string
	Description *string
	Recurring   *bool
	Metadata    model.Metadata
}

func (s *Service) Update(listID, actorID int64, p UpdateParams) (*model.List, error) {
	var updated *model.List
	err := database.WithTx(s.db, func(tx *sql.Tx) error {
		l, err := loadForActor(tx, listID, actorID, false)
		if err != nil {
			return err
		}

		name := l.Name
		if p.Name != nil {
			name = strings.TrimSpace(*p.Name)
			if name == "" {
				return fmt.Errorf("%w: list name is required", apperr.ErrBadRequest)
			}
			if name != l.Name {
				if err := store.EnsureUniqueName(tx, "lists", l.OwnerID, name, listID); err != nil {
					return err
				}
			}
		}
		description := l.Description
		if p.Description != nil {
			description = *p.Description
		}
		recurring := l.Recurring
		if p.Recurring != nil {
			recurring = *p.Recurring
		}
		meta := l.Metadata
		if p.Metadata != nil {
			meta = p.Metadata
		}

		updated, err = store.NewListStore(tx).Update(listID, name, description, recurring, meta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete soft-deletes the list and its items. Owner only.
func (s *Service) Delete(listID, actorID int64) error {
	return database.WithTx(s.db, func(tx *sql.Tx) error {
		if _, err := loadForActor(tx, listID, actorID, true); err != nil {
			return err
		}
		return store.NewListStore(tx).SoftDeleteWithItems(listID)
	})
}

// Reset clears the purchased flag on every item so a recurring list can be
// used again. Quantities and units are untouched.
func (s *Service) Reset(listID, actorID int64) error {
	return database.WithTx(s.db, func(tx *sql.Tx) error {
		if _, err := loadForActor(tx, listID, actorID, false); err != nil {
			return err
		}
		return store.NewListStore(tx).ResetItems(listID)
	})
}

// Share grants a user access to the list and sends a best-effort notification
// after the share is committed.
func (s *Service) Share(listID, actorID, targetUserID int64) error {
	var listName, targetEmail string
	err := database.WithTx(s.db, func(tx *sql.Tx) error {
		l, err := loadForActor(tx, listID, actorID, true)
		if err != nil {
			return err
		}
		if targetUserID == l.OwnerID {
			return fmt.Errorf("%w: cannot share a list with its owner", apperr.ErrBadRequest)
		}

		target, err := store.NewUserStore(tx).GetByID(targetUserID)
		if err != nil {
			return err
		}
		if target == nil {
			return fmt.Errorf("%w: user %d", apperr.ErrNotFound, targetUserID)
		}

		ls := store.NewListStore(tx)
		shared, err := ls.IsShared(listID, targetUserID)
		if err != nil {
			return err
		}
		if shared {
			return fmt.Errorf("%w: list already shared with user %d", apperr.ErrConflict, targetUserID)
		}

		listName = l.Name
		targetEmail = target.Email
		return ls.Share(listID, targetUserID)
	})
	if err != nil {
		return err
	}

	// Notification sits outside the atomic boundary.
	if s.notifier != nil {
		if err := s.notifier.NotifyShared(targetEmail, listName); err != nil {
			s.logger.Warn("share notification failed", "list_id", listID, "error", err)
		}
	}
	return nil
}

func (s *Service) Revoke(listID, actorID, targetUserID int64) error {
	return database.WithTx(s.db, func(tx *sql.Tx) error {
		if _, err := loadForActor(tx, listID, actorID, true); err != nil {
			return err
		}

		ls := store.NewListStore(tx)
		shared, err := ls.IsShared(listID, targetUserID)
		if err != nil {
			return err
		}
		if !shared {
			return fmt.Errorf("%w: list is not shared with user %d", apperr.ErrBadRequest, targetUserID)
		}
		return ls.Revoke(listID, targetUserID)
	})
}

// --- Item operations ---

func (s *Service) AddItem(listID, actorID, productID int64, quantity float64, unit string, meta model.Metadata) (*model.ListItem, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", apperr.ErrBadRequest)
	}
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return nil, fmt.Errorf("%w: unit is required", apperr.ErrBadRequest)
	}

	var item *model.ListItem
	err := database.WithTx(s.db, func(tx *sql.Tx) error {
		if _, err := loadForActor(tx, listID, actorID, false); err != nil {
			return err
		}

		product, err := store.NewProductStore(tx).GetByID(productID)
		if err != nil {
			return err
		}
		if product == nil {
			return fmt.Errorf("%w: product %d", apperr.ErrNotFound, productID)
		}

		ls := store.NewListStore(tx)
		existing, err := ls.GetItemByProduct(listID, productID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: product %d is already on the list", apperr.ErrConflict, productID)
		}

		item, err = ls.CreateItem(listID, productID, quantity, unit, meta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ItemParams carries the optional fields of a partial item update.
type ItemParams struct {
	Quantity *float64
	Unit     *string
	Metadata model.Metadata
}

func (s *Service) UpdateItem(listID, itemID, actorID int64, p ItemParams) (*model.ListItem, error) {
	var updated *model.ListItem
	err := database.WithTx(s.db, func(tx *sql.Tx) error {
		if _, err := loadForActor(tx, listID, actorID, false); err != nil {
			return err
		}

		ls := store.NewListStore(tx)
		item, err := ls.GetItemByID(itemID)
		if err != nil {
			return err
		}
		if item == nil || item.ListID != listID {
			return fmt.Errorf("%w: item %d", apperr.ErrNotFound, itemID)
		}

		quantity := item.Quantity
		if p.Quantity != nil {
			if *p.Quantity <= 0 {
				return fmt.Errorf("%w: quantity must be positive", apperr.ErrBadRequest)
			}
			quantity = *p.Quantity
		}
		unit := item.Unit
		if p.Unit != nil {
			unit = strings.TrimSpace(*p.Unit)
			if unit == "" {
				return fmt.Errorf("%w: unit is required", apperr.ErrBadRequest)
			}
		}
		meta := item.Metadata
		if p.Metadata != nil {
			meta = p.Metadata
		}

		updated, err = ls.UpdateItem(itemID, quantity, unit, meta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) RemoveItem(listID, itemID, actorID int64) error {
	return database.WithTx(s.db, func(tx *sql.Tx) error {
		if _, err := loadForActor(tx, listID, actorID, false); err != nil {
			return err
		}

		ls := store.NewListStore(tx)
		item, err := ls.GetItemByID(itemID)
		if err != nil {
			return err
		}
		if item == nil || item.ListID != listID {
			return fmt.Errorf("%w: item %d", apperr.ErrNotFound, itemID)
		}
		return ls.SoftDeleteItem(itemID)
	})
}

func (s *Service) SetItemPurchased(listID, itemID, actorID int64, purchased bool) (*model.ListItem, error) {
	var updated *model.ListItem
	err := database.WithTx(s.db, func(tx *sql.Tx) error {
		if _, err := loadForActor(tx, listID, actorID, false); err != nil {
			return err
		}

		ls := store.NewListStore(tx)
		item, err := ls.GetItemByID(itemID)
		if err != nil {
			return err
		}
		if item == nil || item.ListID != listID {
			return fmt.Errorf("%w: item %d", apperr.ErrNotFound, itemID)
		}

		updated, err = ls.SetItemPurchased(itemID, purchased)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
