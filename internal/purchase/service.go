// Package purchase implements the consolidation and restore engines: turning
// a list's purchased items into an immutable purchase record, and rebuilding
// a fresh list from that record later.
package purchase

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/larderhq/larder/internal/apperr"
	"github.com/larderhq/larder/internal/database"
	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/store"
)

type Service struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewService(db *sql.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Purchase consolidates a list's purchased items into a new purchase record.
// The actor must own the list or be shared on it. Non-recurring lists are
// retired: the list row is tombstoned while its items stay attached for
// history. Recurring lists survive untouched, purchased flags included.
// The whole operation commits atomically or not at all. The second return
// value is everyone on the list (owner plus shared users), read inside the
// same transaction so notification fan-out sees the committed share set.
func (s *Service) Purchase(listID, actorID int64, meta model.Metadata) (*model.Purchase, []int64, error) {
	var created *model.Purchase
	var recipients []int64
	err := database.WithTx(s.db, func(tx *sql.Tx) error {
		ls := store.NewListStore(tx)

		l, err := ls.GetByID(listID)
		if err != nil {
			return err
		}
		if l == nil {
			return fmt.Errorf("%w: list %d", apperr.ErrNotFound, listID)
		}
		if l.OwnerID != actorID {
			shared, err := ls.IsShared(listID, actorID)
			if err != nil {
				return err
			}
			if !shared {
				return fmt.Errorf("%w: list %d", apperr.ErrNotFound, listID)
			}
		}

		sharedWith, err := ls.SharedWith(listID)
		if err != nil {
			return err
		}
		recipients = append([]int64{l.OwnerID}, sharedWith...)

		items, err := ls.ItemsByList(listID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return fmt.Errorf("%w: list has no items", apperr.ErrBadRequest)
		}

		var purchased []model.ListItem
		for _, item := range items {
			if item.Purchased {
				purchased = append(purchased, item)
			}
		}
		if len(purchased) == 0 {
			return fmt.Errorf("%w: no items are marked purchased", apperr.ErrBadRequest)
		}

		now := time.Now().UTC()
		if err := ls.StampPurchased(listID, now); err != nil {
			return err
		}

		if meta == nil {
			meta = model.Metadata{}
		}
		ps := store.NewPurchaseStore(tx)
		p, err := ps.Create(actorID, &l.ID, l.Name, l.Description, l.Recurring, l.Metadata, meta)
		if err != nil {
			return err
		}

		for _, item := range purchased {
			if _, err := ps.AddItem(p.ID, item.ProductID, item.Quantity, item.Unit, true, item.Metadata); err != nil {
				return err
			}
		}

		if err := ls.SetLastPurchased(listID, now); err != nil {
			return err
		}

		if !l.Recurring {
			if err := ls.SoftDelete(listID); err != nil {
				return err
			}
		}

		created, err = ps.GetByID(p.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("list purchased", "list_id", listID, "purchase_id", created.ID, "items", len(created.Items))
	return created, recipients, nil
}

// Restore rebuilds a new, editable list from a historical purchase. The
// original list's fields are read through the weak reference when its row
// still exists (tombstoned or not) and otherwise from the copy embedded on
// the purchase. Recurring sources are not restorable: they never left the
// active state. Snapshot items whose product has since been deleted are
// skipped silently.
func (s *Service) Restore(purchaseID, actorID int64) (*model.List, error) {
	var restored *model.List
	err := database.WithTx(s.db, func(tx *sql.Tx) error {
		ps := store.NewPurchaseStore(tx)
		p, err := ps.GetByID(purchaseID)
		if err != nil {
			return err
		}
		if p == nil || p.OwnerID != actorID {
			return fmt.Errorf("%w: purchase %d", apperr.ErrNotFound, purchaseID)
		}

		name, description, recurring, meta := p.ListName, p.ListDescription, p.ListRecurring, p.ListMetadata
		if p.ListID != nil {
			src, err := store.NewListStore(tx).GetByIDAnyState(*p.ListID)
			if err != nil {
				return err
			}
			if src != nil {
				name, description, recurring, meta = src.Name, src.Description, src.Recurring, src.Metadata
			}
		}
		if name == "" {
			return fmt.Errorf("%w: purchase %d has no resolvable list", apperr.ErrNotFound, purchaseID)
		}
		if recurring {
			return fmt.Errorf("%w: recurring lists cannot be restored", apperr.ErrBadRequest)
		}

		freeName, err := nextFreeName(tx, actorID, name)
		if err != nil {
			return err
		}

		ls := store.NewListStore(tx)
		newList, err := ls.Create(actorID, freeName, description, false, meta)
		if err != nil {
			return err
		}

		prods := store.NewProductStore(tx)
		for _, item := range p.Items {
			product, err := prods.GetByID(item.ProductID)
			if err != nil {
				return err
			}
			if product == nil {
				// Product deleted since the purchase; restored lists
				// never reference deleted products.
				continue
			}
			if _, err := ls.CreateItem(newList.ID, item.ProductID, item.Quantity, item.Unit, item.Metadata); err != nil {
				return err
			}
		}

		restored, err = ls.GetByID(newList.ID)
		if err != nil {
			return err
		}
		restored.Items, err = ls.ItemsByList(newList.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("purchase restored", "purchase_id", purchaseID, "list_id", restored.ID, "items", len(restored.Items))
	return restored, nil
}

// nextFreeName tries the original name, then "name (1)", "name (2)", ... until
// no active list of the owner uses it.
func nextFreeName(tx store.DBTX, ownerID int64, name string) (string, error) {
	candidate := name
	for i := 1; ; i++ {
		taken, err := store.NameTaken(tx, "lists", ownerID, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s (%d)", name, i)
	}
}

// Get returns a purchase with its snapshot items. Owner only.
func (s *Service) Get(purchaseID, actorID int64) (*model.Purchase, error) {
	p, err := store.NewPurchaseStore(s.db).GetByID(purchaseID)
	if err != nil {
		return nil, err
	}
	if p == nil || p.OwnerID != actorID {
		return nil, fmt.Errorf("%w: purchase %d", apperr.ErrNotFound, purchaseID)
	}
	return p, nil
}

func (s *Service) ListForUser(actorID int64) ([]model.Purchase, error) {
	return store.NewPurchaseStore(s.db).ListForOwner(actorID)
}

// Delete tombstones a purchase record. Owner only; the snapshots themselves
// stay immutable.
func (s *Service) Delete(purchaseID, actorID int64) error {
	return database.WithTx(s.db, func(tx *sql.Tx) error {
		ps := store.NewPurchaseStore(tx)
		p, err := ps.GetByID(purchaseID)
		if err != nil {
			return err
		}
		if p == nil || p.OwnerID != actorID {
			return fmt.Errorf("%w: purchase %d", apperr.ErrNotFound, purchaseID)
		}
		return ps.SoftDelete(purchaseID)
	})
}
