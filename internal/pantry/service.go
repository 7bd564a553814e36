// Package pantry implements pantry management and the merge engine that folds
// a list's purchased items into pantry stock.
package pantry

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/larderhq/larder/internal/apperr"
	"github.com/larderhq/larder/internal/database"
	"github.com/larderhq/larder/internal/list"
	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/store"
)

type Service struct {
	db       *sql.DB
	notifier list.Notifier
	logger   *slog.Logger
}

func NewService(db *sql.DB, notifier list.Notifier, logger *slog.Logger) *Service {
	return &Service{db: db, notifier: notifier, logger: logger}
}

func loadForActor(tx store.DBTX, pantryID, actorID int64, ownerOnly bool) (*model.Pantry, error) {
	ps := store.NewPantryStore(tx)
	p, err := ps.GetByID(pantryID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: pantry %d", apperr.ErrNotFound, pantryID)
	}
	if p.OwnerID == actorID {
		return p, nil
	}
	if ownerOnly {
		return nil, fmt.Errorf("%w: pantry %d", apperr.ErrNotFound, pantryID)
	}
	shared, err := ps.IsShared(pantryID, actorID)
	if err != nil {
		return nil, err
	}
	if !shared {
		return nil, fmt.Errorf("%w: pantry %d", apperr.ErrNotFound, pantryID)
	}
	return p, nil
}

func (s *Service) Create(ownerID int64, name, description string, meta model.Metadata) (*model.Pantry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: pantry name is required", apperr.ErrBadRequest)
	}

	var created *model.Pantry
	err := database.WithTx(s.db, func(tx *sql.Tx) error {
		if err := store.EnsureUniqueName(tx, "pantries", ownerID, name, 0); err != nil {
			return err
		}
		var err error
		created, err = store.NewPantryStore(tx).Create(ownerID, name, description, meta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) Get(pantryID, actorID int64) (*model.Pantry, error) {
	p, err := loadForActor(s.db, pantryID, actorID, false)
	if err != nil {
		return nil, err
	}
	p.SharedWith, err = store.NewPantryStore(s.db).SharedWith(pantryID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ListForUser(actorID int64) ([]model.Pantry, error) {
	return store.NewPantryStore(s.db).ListForUser(actorID)
}

// UpdateParams carries the optional fields of a partial update.
type UpdateParams struct {
	Name        *string
	Description *string
	Metadata    model.Metadata
}

func (s *Service) Update(pantryID, actorID int64, p UpdateParams) (*model.Pantry, error) {
	var updated *model.Pantry
	err := database.WithTx(s.db, func(tx *sql.Tx) error {
		existing, err := loadForActor(tx, pantryID, actorID, false)
		if err != nil {
			return err
		}

		name := existing.Name
		if p.Name != nil {
			name = strings.TrimSpace(*p.Name)
			if name == "" {
				return fmt.Errorf("%w: pantry name is required", apperr.ErrBadRequest)
			}
			if name != existing.Name {
				if err := store.EnsureUniqueName(tx, "pantries", existing.OwnerID, name, pantryID); err != nil {
					return err
				}
			}
		}
		description := existing.Description
		if p.Description != nil {
			description = *p.Description
		}
		meta := existing.Metadata
		if p.Metadata != nil {
			meta = p.Metadata
		}

		updated, err = store.NewPantryStore(tx).Update(pantryID, name, description, meta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) Delete(pantryID, actorID int64) error {
	return database.WithTx(s.db, func(tx *sql.Tx) error {
		if _, err := loadForActor(tx, pantryID, actorID, true); err != nil {
			return err
		}
		return store.NewPantryStore(tx).SoftDelete(pantryID)
	})
}

func (s *Service) Share(pantryID, actorID, targetUserID int64) error {
	var pantryName, targetEmail string
	err := database.WithTx(s.db, func(tx *sql.Tx) error {
		p, err := loadForActor(tx, pantryID, actorID, true)
		if err != nil {
			return err
		}
		if targetUserID == p.OwnerID {
			return fmt.Errorf("%w: cannot share a pantry with its owner", apperr.ErrBadRequest)
		}

		target, err := store.NewUserStore(tx).GetByID(targetUserID)
		if err != nil {
			return err
		}
		if target == nil {
			return fmt.Errorf("%w: user %d", apperr.ErrNotFound, targetUserID)
		}

		ps := store.NewPantryStore(tx)
		shared, err := ps.IsShared(pantryID, targetUserID)
		if err != nil {
			return err
		}
		if shared {
			return fmt.Errorf("%w: pantry already shared with user %d", apperr.ErrConflict, targetUserID)
		}

		pantryName = p.Name
		targetEmail = target.Email
		return ps.Share(pantryID, targetUserID)
	})
	if err != nil {
		return err
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyShared(targetEmail, pantryName); err != nil {
			s.logger.Warn("share notification failed", "pantry_id", pantryID, "error", err)
		}
	}
	return nil
}

func (s *Service) Revoke(pantryID, actorID, targetUserID int64) error {
	return database.WithTx(s.db, func(tx *sql.Tx) error {
		if _, err := loadForActor(tx, pantryID, actorID, true); err != nil {
			return err
		}

		ps := store.NewPantryStore(tx)
		shared, err := ps.IsShared(pantryID, targetUserID)
		if err != nil {
			return err
		}
		if !shared {
			return fmt.Errorf("%w: pantry is not shared with user %d", apperr.ErrBadRequest, targetUserID)
		}
		return ps.Revoke(pantryID, targetUserID)
	})
}

func (s *Service) Items(pantryID, actorID int64) ([]model.PantryItem, error) {
	if _, err := loadForActor(s.db, pantryID, actorID, false); err != nil {
		return nil, err
	}
	return store.NewPantryStore(s.db).ItemsByPantry(pantryID)
}

// ItemParams carries the optional fields of a partial pantry item update.
type ItemParams struct {
	Quantity *float64
	Unit     *string
	Metadata model.Metadata
}

func (s *Service) UpdateItem(pantryID, itemID, actorID int64, p ItemParams) (*model.PantryItem, error) {
	var updated *model.PantryItem
	err := database.WithTx(s.db, func(tx *sql.Tx) error {
		if _, err := loadForActor(tx, pantryID, actorID, false); err != nil {
			return err
		}

		ps := store.NewPantryStore(tx)
		item, err := ps.GetItemByID(itemID)
		if err != nil {
			return err
		}
		if item == nil || item.PantryID != pantryID {
			return fmt.Errorf("%w: pantry item %d", apperr.ErrNotFound, itemID)
		}

		quantity := item.Quantity
		if p.Quantity != nil {
			if *p.Quantity < 0 {
				return fmt.Errorf("%w: quantity cannot be negative", apperr.ErrBadRequest)
			}
			quantity = *p.Quantity
		}
		unit := item.Unit
		if p.Unit != nil {
			unit = strings.TrimSpace(*p.Unit)
		}
		meta := item.Metadata
		if p.Metadata != nil {
			meta = p.Metadata
		}

		updated, err = ps.UpdateItem(itemID, quantity, unit, meta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) RemoveItem(pantryID, itemID, actorID int64) error {
	return database.WithTx(s.db, func(tx *sql.Tx) error {
		if _, err := loadForActor(tx, pantryID, actorID, false); err != nil {
			return err
		}

		ps := store.NewPantryStore(tx)
		item, err := ps.GetItemByID(itemID)
		if err != nil {
			return err
		}
		if item == nil || item.PantryID != pantryID {
			return fmt.Errorf("%w: pantry item %d", apperr.ErrNotFound, itemID)
		}
		return ps.SoftDeleteItem(itemID)
	})
}

// MoveToPantry folds a list's purchased items into pantry stock. Owner only.
// For each purchased item whose product names a pantry: an existing stock row
// for that product gains the item's quantity (the unit is replaced only by a
// differing, non-empty incoming unit; metadata is shallow-merged with incoming
// keys winning), otherwise a new stock row is created. Items whose product has
// no pantry, or whose pantry has been deleted, are skipped silently. The list
// itself is left untouched: no retirement, no flag changes.
func (s *Service) MoveToPantry(listID, ownerID int64) ([]model.PantryItem, error) {
	var touched []model.PantryItem
	err := database.WithTx(s.db, func(tx *sql.Tx) error {
		ls := store.NewListStore(tx)

		l, err := ls.GetByID(listID)
		if err != nil {
			return err
		}
		if l == nil || l.OwnerID != ownerID {
			return fmt.Errorf("%w: list %d", apperr.ErrNotFound, listID)
		}

		items, err := ls.ItemsByList(listID)
		if err != nil {
			return err
		}

		prods := store.NewProductStore(tx)
		ps := store.NewPantryStore(tx)
		for _, item := range items {
			if !item.Purchased {
				continue
			}

			product, err := prods.GetByID(item.ProductID)
			if err != nil {
				return err
			}
			if product == nil || product.PantryID == nil {
				// No storage destination for this product.
				continue
			}

			// The product may still point at a pantry that has since been
			// tombstoned; treat that like having no destination at all.
			dest, err := ps.GetByID(*product.PantryID)
			if err != nil {
				return err
			}
			if dest == nil {
				continue
			}

			existing, err := ps.GetItemByProduct(*product.PantryID, item.ProductID)
			if err != nil {
				return err
			}

			var result *model.PantryItem
			if existing != nil {
				unit := existing.Unit
				if item.Unit != "" && item.Unit != existing.Unit {
					unit = item.Unit
				}
				result, err = ps.UpdateItem(existing.ID, existing.Quantity+item.Quantity, unit, existing.Metadata.Merge(item.Metadata))
			} else {
				result, err = ps.CreateItem(*product.PantryID, item.ProductID, item.Quantity, item.Unit, item.Metadata)
			}
			if err != nil {
				return err
			}
			touched = append(touched, *result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("moved purchased items to pantry", "list_id", listID, "touched", len(touched))
	return touched, nil
}
