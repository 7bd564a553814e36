package purchase

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

type fixture struct {
	svc     *Service
	db      *sql.DB
	lists   *store.ListStore
	prods   *store.ProductStore
	ownerID int64
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	owner, err := store.NewUserStore(db).Create("owner@example.com", "Owner", "hash")
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		svc:     NewService(db, logger),
		db:      db,
		lists:   store.NewListStore(db),
		prods:   store.NewProductStore(db),
		ownerID: owner.ID,
	}
}

// seedList creates a list with milk (purchased) and eggs (unpurchased).
func (f *fixture) seedList(t *testing.T, name string, recurring bool) (*model.List, *model.Product, *model.Product) {
	t.Helper()
	l, err := f.lists.Create(f.ownerID, name, "weekly run", recurring, model.Metadata{"store": "co-op"})
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	milk, err := f.prods.Create(f.ownerID, name+" milk", nil, nil, nil)
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	eggs, err := f.prods.Create(f.ownerID, name+" eggs", nil, nil, nil)
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	i1, err := f.lists.CreateItem(l.ID, milk.ID, 2, "liters", model.Metadata{"brand": "local"})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if _, err := f.lists.CreateItem(l.ID, eggs.ID, 12, "pieces", nil); err != nil {
		t.Fatalf("create item: %v", err)
	}
	if _, err := f.lists.SetItemPurchased(i1.ID, true); err != nil {
		t.Fatalf("set purchased: %v", err)
	}
	return l, milk, eggs
}

func (f *fixture) purchaseCount(t *testing.T) int {
	t.Helper()
	purchases, err := f.svc.ListForUser(f.ownerID)
	if err != nil {
		t.Fatalf("list purchases: %v", err)
	}
	return len(purchases)
}

func TestPurchaseEmptyList(t *testing.T) {
	f := setup(t)
	l, _ := f.lists.Create(f.ownerID, "Empty", "", false, nil)

	_, _, err := f.svc.Purchase(l.ID, f.ownerID, nil)
	if !errors.Is(err, apperr.ErrBadRequest) {
		t.Errorf("empty list: got %v, want ErrBadRequest", err)
	}
	if n := f.purchaseCount(t); n != 0 {
		t.Errorf("expected no purchase rows, got %d", n)
	}

	// The list must be untouched by the failed attempt.
	got, _ := f.lists.GetByID(l.ID)
	if got == nil {
		t.Error("list must survive a failed purchase")
	}
}

func TestPurchaseNothingMarked(t *testing.T) {
	f := setup(t)
	l, _ := f.lists.Create(f.ownerID, "Groceries", "", false, nil)
	milk, _ := f.prods.Create(f.ownerID, "Milk", nil, nil, nil)
	if _, err := f.lists.CreateItem(l.ID, milk.ID, 1, "liter", nil); err != nil {
		t.Fatalf("create item: %v", err)
	}

	_, _, err := f.svc.Purchase(l.ID, f.ownerID, nil)
	if !errors.Is(err, apperr.ErrBadRequest) {
		t.Errorf("nothing purchased: got %v, want ErrBadRequest", err)
	}
	if n := f.purchaseCount(t); n != 0 {
		t.Errorf("expected no purchase rows, got %d", n)
	}
}

func TestPurchaseSnapshotsOnlyPurchasedItems(t *testing.T) {
	f := setup(t)
	l, milk, _ := f.seedList(t, "Groceries", true)

	p, _, err := f.svc.Purchase(l.ID, f.ownerID, model.Metadata{"total": "12.80"})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if len(p.Items) != 1 {
		t.Fatalf("expected 1 snapshot item, got %d", len(p.Items))
	}
	if p.Items[0].ProductID != milk.ID {
		t.Errorf("snapshot product = %d, want %d", p.Items[0].ProductID, milk.ID)
	}
	if p.Items[0].Quantity != 2 || p.Items[0].Unit != "liters" {
		t.Errorf("snapshot = %v %s, want 2 liters", p.Items[0].Quantity, p.Items[0].Unit)
	}
	if p.Items[0].Metadata["brand"] != "local" {
		t.Errorf("snapshot metadata = %v, want brand local", p.Items[0].Metadata)
	}
	if p.Metadata["total"] != "12.80" {
		t.Errorf("purchase metadata = %v, want total 12.80", p.Metadata)
	}
	if p.ListName != "Groceries" || !p.ListRecurring {
		t.Errorf("embedded list copy = %q recurring=%v", p.ListName, p.ListRecurring)
	}
}

func TestPurchaseRecurringListSurvives(t *testing.T) {
	f := setup(t)
	l, milk, _ := f.seedList(t, "Groceries", true)

	if _, _, err := f.svc.Purchase(l.ID, f.ownerID, nil); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	got, err := f.lists.GetByID(l.ID)
	if err != nil {
		t.Fatalf("get list: %v", err)
	}
	if got == nil {
		t.Fatal("recurring list must stay active")
	}
	if got.LastPurchasedAt == nil {
		t.Error("expected last_purchased_at stamped on the list")
	}

	// Purchased flags are kept; reset is a separate, explicit step.
	item, _ := f.lists.GetItemByProduct(l.ID, milk.ID)
	if !item.Purchased {
		t.Error("purchased flag must survive on a recurring list")
	}
	if item.LastPurchasedAt == nil {
		t.Error("expected last_purchased_at stamped on the purchased item")
	}
}

func TestPurchaseRetiresNonRecurringList(t *testing.T) {
	f := setup(t)
	l, milk, _ := f.seedList(t, "Groceries", false)

	if _, _, err := f.svc.Purchase(l.ID, f.ownerID, nil); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	got, _ := f.lists.GetByID(l.ID)
	if got != nil {
		t.Fatal("non-recurring list must be retired")
	}
	any, _ := f.lists.GetByIDAnyState(l.ID)
	if any == nil || any.DeletedAt == nil {
		t.Fatal("expected tombstoned list row")
	}

	// Retirement leaves the items attached for history.
	item, _ := f.lists.GetItemByProduct(l.ID, milk.ID)
	if item == nil {
		t.Error("retired list items must stay active")
	}
}

func TestPurchaseAccess(t *testing.T) {
	f := setup(t)
	l, _, _ := f.seedList(t, "Groceries", true)

	friend, _ := store.NewUserStore(f.db).Create("friend@example.com", "Friend", "hash")

	if _, _, err := f.svc.Purchase(l.ID, friend.ID, nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("stranger purchase: got %v, want ErrNotFound", err)
	}

	if err := f.lists.Share(l.ID, friend.ID); err != nil {
		t.Fatalf("share: %v", err)
	}
	p, audience, err := f.svc.Purchase(l.ID, friend.ID, nil)
	if err != nil {
		t.Fatalf("shared user purchase: %v", err)
	}
	// The purchase record belongs to whoever checked out.
	if p.OwnerID != friend.ID {
		t.Errorf("purchase owner = %d, want %d", p.OwnerID, friend.ID)
	}
	// Everyone on the list hears about the checkout, owner first.
	if len(audience) != 2 || audience[0] != f.ownerID || audience[1] != friend.ID {
		t.Errorf("audience = %v, want [%d %d]", audience, f.ownerID, friend.ID)
	}
}

func TestRestore(t *testing.T) {
	f := setup(t)
	l, milk, _ := f.seedList(t, "Groceries", false)

	p, _, err := f.svc.Purchase(l.ID, f.ownerID, nil)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}

	restored, err := f.svc.Restore(p.ID, f.ownerID)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Name != "Groceries" {
		t.Errorf("restored name = %q, want Groceries", restored.Name)
	}
	if restored.Recurring {
		t.Error("restored lists are never recurring")
	}
	if len(restored.Items) != 1 {
		t.Fatalf("expected 1 restored item, got %d", len(restored.Items))
	}
	if restored.Items[0].ProductID != milk.ID || restored.Items[0].Purchased {
		t.Errorf("restored item = %+v, want unpurchased milk", restored.Items[0])
	}
}

func TestRestoreNameCollision(t *testing.T) {
	f := setup(t)
	l, _, _ := f.seedList(t, "Groceries", false)
	p, _, _ := f.svc.Purchase(l.ID, f.ownerID, nil)

	// Occupy the original name again.
	if _, err := f.lists.Create(f.ownerID, "Groceries", "", false, nil); err != nil {
		t.Fatalf("recreate list: %v", err)
	}

	restored, err := f.svc.Restore(p.ID, f.ownerID)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Name != "Groceries (1)" {
		t.Errorf("restored name = %q, want %q", restored.Name, "Groceries (1)")
	}

	restored2, err := f.svc.Restore(p.ID, f.ownerID)
	if err != nil {
		t.Fatalf("second restore: %v", err)
	}
	if restored2.Name != "Groceries (2)" {
		t.Errorf("second restored name = %q, want %q", restored2.Name, "Groceries (2)")
	}
}

func TestRestoreRecurringSource(t *testing.T) {
	f := setup(t)
	l, _, _ := f.seedList(t, "Groceries", true)
	p, _, _ := f.svc.Purchase(l.ID, f.ownerID, nil)

	if _, err := f.svc.Restore(p.ID, f.ownerID); !errors.Is(err, apperr.ErrBadRequest) {
		t.Errorf("restore recurring: got %v, want ErrBadRequest", err)
	}
}

func TestRestoreSkipsDeletedProducts(t *testing.T) {
	f := setup(t)
	l, milk, _ := f.seedList(t, "Groceries", false)
	p, _, _ := f.svc.Purchase(l.ID, f.ownerID, nil)

	if err := f.prods.SoftDelete(milk.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}

	restored, err := f.svc.Restore(p.ID, f.ownerID)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(restored.Items) != 0 {
		t.Errorf("expected deleted product skipped, got %d items", len(restored.Items))
	}
}

func TestRestoreUsesCurrentListFields(t *testing.T) {
	f := setup(t)
	l, _, _ := f.seedList(t, "Groceries", false)
	p, _, _ := f.svc.Purchase(l.ID, f.ownerID, nil)

	// Rename the tombstoned source row; the restore reads through the weak
	// reference while the row still exists.
	if _, err := f.db.Exec(`UPDATE lists SET name = 'Renamed' WHERE id = ?`, l.ID); err != nil {
		t.Fatalf("rename source: %v", err)
	}

	restored, err := f.svc.Restore(p.ID, f.ownerID)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Name != "Renamed" {
		t.Errorf("restored name = %q, want Renamed", restored.Name)
	}
}

func TestRestoreFallsBackToEmbeddedCopy(t *testing.T) {
	f := setup(t)
	l, _, _ := f.seedList(t, "Groceries", false)
	p, _, _ := f.svc.Purchase(l.ID, f.ownerID, nil)

	// Hard-delete the source row to sever the weak reference.
	if _, err := f.db.Exec(`UPDATE purchases SET list_id = NULL WHERE id = ?`, p.ID); err != nil {
		t.Fatalf("clear reference: %v", err)
	}
	if _, err := f.db.Exec(`DELETE FROM list_items WHERE list_id = ?`, l.ID); err != nil {
		t.Fatalf("purge items: %v", err)
	}
	if _, err := f.db.Exec(`DELETE FROM lists WHERE id = ?`, l.ID); err != nil {
		t.Fatalf("purge source: %v", err)
	}

	restored, err := f.svc.Restore(p.ID, f.ownerID)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Name != "Groceries" {
		t.Errorf("restored name = %q, want embedded Groceries", restored.Name)
	}
	if restored.Description != "weekly run" {
		t.Errorf("restored description = %q, want embedded copy", restored.Description)
	}
}

func TestPurchaseOwnerOnlyReads(t *testing.T) {
	f := setup(t)
	l, _, _ := f.seedList(t, "Groceries", true)
	p, _, _ := f.svc.Purchase(l.ID, f.ownerID, nil)

	friend, _ := store.NewUserStore(f.db).Create("friend@example.com", "Friend", "hash")

	if _, err := f.svc.Get(p.ID, friend.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("stranger get: got %v, want ErrNotFound", err)
	}
	if _, err := f.svc.Restore(p.ID, friend.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("stranger restore: got %v, want ErrNotFound", err)
	}
	if err := f.svc.Delete(p.ID, friend.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("stranger delete: got %v, want ErrNotFound", err)
	}

	if err := f.svc.Delete(p.ID, f.ownerID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := f.svc.Get(p.ID, f.ownerID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get after delete: got %v, want ErrNotFound", err)
	}
}
