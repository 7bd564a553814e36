package list

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/larderhq/larder/internal/apperr"
	"github.com/larderhq/larder/internal/database"
	"github.com/larderhq/larder/internal/model"
	"github.com/larderhq/larder/internal/store"
)

func setupService(t *testing.T) (*Service, *sql.DB, int64, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	us := store.NewUserStore(db)
	owner, err := us.Create("owner@example.com", "Owner", "hash")
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	friend, err := us.Create("friend@example.com", "Friend", "hash")
	if err != nil {
		t.Fatalf("create friend: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(db, nil, logger), db, owner.ID, friend.ID
}

func TestCreateValidation(t *testing.T) {
	svc, _, ownerID, _ := setupService(t)

	if _, err := svc.Create(ownerID, "  ", "", false, nil); !errors.Is(err, apperr.ErrBadRequest) {
		t.Errorf("blank name: got %v, want ErrBadRequest", err)
	}

	if _, err := svc.Create(ownerID, "Groceries", "", false, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ownerID, "Groceries", "", false, nil); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate name: got %v, want ErrConflict", err)
	}
}

func TestUpdatePartial(t *testing.T) {
	svc, _, ownerID, _ := setupService(t)

	l, _ := svc.Create(ownerID, "Groceries", "weekly", true, model.Metadata{"store": "co-op"})
	other, _ := svc.Create(ownerID, "Hardware", "", false, nil)

	desc := "monthly"
	updated, err := svc.Update(l.ID, ownerID, UpdateParams{Description: &desc})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Groceries" || updated.Description != "monthly" || !updated.Recurring {
		t.Errorf("partial update touched unrelated fields: %+v", updated)
	}

	// Renaming onto another active list's name conflicts.
	name := "Hardware"
	if _, err := svc.Update(l.ID, ownerID, UpdateParams{Name: &name}); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("rename onto taken name: got %v, want ErrConflict", err)
	}

	// Renaming to its own name is a no-op, not a conflict.
	own := "Hardware"
	if _, err := svc.Update(other.ID, ownerID, UpdateParams{Name: &own}); err != nil {
		t.Errorf("rename to own name: %v", err)
	}
}

func TestAccessCollapsesToNotFound(t *testing.T) {
	svc, _, ownerID, friendID := setupService(t)

	l, _ := svc.Create(ownerID, "Groceries", "", false, nil)

	if _, err := svc.Get(l.ID, friendID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("stranger get: got %v, want ErrNotFound", err)
	}
	if _, err := svc.Get(999, ownerID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing list: got %v, want ErrNotFound", err)
	}

	if err := svc.Share(l.ID, ownerID, friendID); err != nil {
		t.Fatalf("share: %v", err)
	}
	got, err := svc.Get(l.ID, friendID)
	if err != nil {
		t.Fatalf("shared get: %v", err)
	}
	if got.ID != l.ID {
		t.Errorf("got list %d, want %d", got.ID, l.ID)
	}
}

func TestDeleteOwnerOnly(t *testing.T) {
	svc, _, ownerID, friendID := setupService(t)

	l, _ := svc.Create(ownerID, "Groceries", "", false, nil)
	if err := svc.Share(l.ID, ownerID, friendID); err != nil {
		t.Fatalf("share: %v", err)
	}

	// A shared user can read but not delete.
	if err := svc.Delete(l.ID, friendID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("shared user delete: got %v, want ErrNotFound", err)
	}
	if err := svc.Delete(l.ID, ownerID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := svc.Get(l.ID, ownerID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get after delete: got %v, want ErrNotFound", err)
	}
}

func TestShareRules(t *testing.T) {
	svc, _, ownerID, friendID := setupService(t)

	l, _ := svc.Create(ownerID, "Groceries", "", false, nil)

	if err := svc.Share(l.ID, ownerID, ownerID); !errors.Is(err, apperr.ErrBadRequest) {
		t.Errorf("share with owner: got %v, want ErrBadRequest", err)
	}
	if err := svc.Share(l.ID, ownerID, 999); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("share with missing user: got %v, want ErrNotFound", err)
	}

	if err := svc.Share(l.ID, ownerID, friendID); err != nil {
		t.Fatalf("share: %v", err)
	}
	if err := svc.Share(l.ID, ownerID, friendID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("re-share: got %v, want ErrConflict", err)
	}

	// Only the owner manages the share set.
	if err := svc.Share(l.ID, friendID, friendID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("shared user sharing: got %v, want ErrNotFound", err)
	}

	if err := svc.Revoke(l.ID, ownerID, friendID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := svc.Revoke(l.ID, ownerID, friendID); !errors.Is(err, apperr.ErrBadRequest) {
		t.Errorf("revoke not-shared: got %v, want ErrBadRequest", err)
	}
}

func TestAddItemValidation(t *testing.T) {
	svc, db, ownerID, _ := setupService(t)

	l, _ := svc.Create(ownerID, "Groceries", "", false, nil)
	milk, err := store.NewProductStore(db).Create(ownerID, "Milk", nil, nil, nil)
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	if _, err := svc.AddItem(l.ID, ownerID, milk.ID, 0, "liters", nil); !errors.Is(err, apperr.ErrBadRequest) {
		t.Errorf("zero quantity: got %v, want ErrBadRequest", err)
	}
	if _, err := svc.AddItem(l.ID, ownerID, milk.ID, 1, "  ", nil); !errors.Is(err, apperr.ErrBadRequest) {
		t.Errorf("blank unit: got %v, want ErrBadRequest", err)
	}
	if _, err := svc.AddItem(l.ID, ownerID, 999, 1, "liters", nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing product: got %v, want ErrNotFound", err)
	}

	if _, err := svc.AddItem(l.ID, ownerID, milk.ID, 2, "liters", nil); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if _, err := svc.AddItem(l.ID, ownerID, milk.ID, 1, "liters", nil); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate product: got %v, want ErrConflict", err)
	}
}

func TestItemLifecycle(t *testing.T) {
	svc, db, ownerID, _ := setupService(t)

	l, _ := svc.Create(ownerID, "Groceries", "", true, nil)
	milk, _ := store.NewProductStore(db).Create(ownerID, "Milk", nil, nil, nil)

	item, err := svc.AddItem(l.ID, ownerID, milk.ID, 2, "liters", nil)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}

	qty := 3.0
	updated, err := svc.UpdateItem(l.ID, item.ID, ownerID, ItemParams{Quantity: &qty})
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if updated.Quantity != 3 || updated.Unit != "liters" {
		t.Errorf("partial item update = %v %s, want 3 liters", updated.Quantity, updated.Unit)
	}

	purchased, err := svc.SetItemPurchased(l.ID, item.ID, ownerID, true)
	if err != nil {
		t.Fatalf("set purchased: %v", err)
	}
	if !purchased.Purchased {
		t.Error("expected purchased flag set")
	}

	if err := svc.Reset(l.ID, ownerID); err != nil {
		t.Fatalf("reset: %v", err)
	}
	got, _ := svc.Get(l.ID, ownerID)
	if len(got.Items) != 1 || got.Items[0].Purchased {
		t.Error("expected purchased flag cleared after reset")
	}

	if err := svc.RemoveItem(l.ID, item.ID, ownerID); err != nil {
		t.Fatalf("remove item: %v", err)
	}
	got, _ = svc.Get(l.ID, ownerID)
	if len(got.Items) != 0 {
		t.Errorf("expected no items after removal, got %d", len(got.Items))
	}

	// Items are addressed through their list.
	if err := svc.RemoveItem(999, item.ID, ownerID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("remove via wrong list: got %v, want ErrNotFound", err)
	}
}

type recordingNotifier struct {
	emails []string
	names  []string
	err    error
}

func (n *recordingNotifier) NotifyShared(email, resourceName string) error {
	n.emails = append(n.emails, email)
	n.names = append(n.names, resourceName)
	return n.err
}

func TestShareNotifies(t *testing.T) {
	svc, db, ownerID, friendID := setupService(t)

	notifier := &recordingNotifier{}
	svc = NewService(db, notifier, slog.New(slog.NewTextHandler(io.Discard, nil)))

	l, _ := svc.Create(ownerID, "Groceries", "", false, nil)
	if err := svc.Share(l.ID, ownerID, friendID); err != nil {
		t.Fatalf("share: %v", err)
	}

	if len(notifier.emails) != 1 || notifier.emails[0] != "friend@example.com" {
		t.Errorf("notified %v, want [friend@example.com]", notifier.emails)
	}
	if notifier.names[0] != "Groceries" {
		t.Errorf("notified name %q, want Groceries", notifier.names[0])
	}
}

func TestShareSurvivesNotifierFailure(t *testing.T) {
	svc, db, ownerID, friendID := setupService(t)

	notifier := &recordingNotifier{err: errors.New("postmark down")}
	svc = NewService(db, notifier, slog.New(slog.NewTextHandler(io.Discard, nil)))

	l, _ := svc.Create(ownerID, "Groceries", "", false, nil)
	if err := svc.Share(l.ID, ownerID, friendID); err != nil {
		t.Fatalf("share must not fail on notification error: %v", err)
	}

	got, err := svc.Get(l.ID, friendID)
	if err != nil || got == nil {
		t.Fatalf("expected share committed despite notifier failure: %v", err)
	}
}
