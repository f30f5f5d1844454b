package sqlite_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/artpar/tollgate/adapters/sqlite"
	"github.com/artpar/tollgate/domain/subscription"
	"github.com/artpar/tollgate/domain/tier"
)

func setupTestDB(t *testing.T) (*sqlite.DB, func()) {
	t.Helper()

	// Create temp file for test database
	f, err := os.CreateTemp("", "tollgate-test-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	path := f.Name()
	f.Close()

	db, err := sqlite.Open(path)
	if err != nil {
		os.Remove(path)
		t.Fatalf("open database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		os.Remove(path)
		t.Fatalf("migrate: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.Remove(path)
	}

	return db, cleanup
}

// -----------------------------------------------------------------------------
// SubscriptionStore Tests
// -----------------------------------------------------------------------------

func TestSubscriptionStore_GetByUser_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewSubscriptionStore(db)

	_, err := store.GetByUser(context.Background(), "nobody")
	if !errors.Is(err, sqlite.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSubscriptionStore_UpsertAndGet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewSubscriptionStore(db)
	ctx := context.Background()

	start := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	rec := subscription.Record{
		ID:                 "sub-1",
		UserID:             "user-1",
		BillingCustomerID:  "cus_123",
		TierID:             tier.Pro,
		Status:             subscription.StatusActive,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   start.AddDate(0, 1, 0),
	}

	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := store.GetByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TierID != tier.Pro {
		t.Errorf("TierID = %s, want pro", got.TierID)
	}
	if got.Status != subscription.StatusActive {
		t.Errorf("Status = %s, want active", got.Status)
	}
	if got.BillingCustomerID != "cus_123" {
		t.Errorf("BillingCustomerID = %s, want cus_123", got.BillingCustomerID)
	}
	if !got.CurrentPeriodStart.Equal(start) {
		t.Errorf("CurrentPeriodStart = %v, want %v", got.CurrentPeriodStart, start)
	}
}

func TestSubscriptionStore_UpsertReplacesRow(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewSubscriptionStore(db)
	ctx := context.Background()

	rec := subscription.Record{
		ID:     "sub-1",
		UserID: "user-1",
		TierID: tier.Pro,
		Status: subscription.StatusActive,
	}
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Cancellation arrives as a status update, never a delete.
	rec.Status = subscription.StatusCanceled
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := store.GetByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != subscription.StatusCanceled {
		t.Errorf("Status = %s, want canceled", got.Status)
	}
}

func TestSubscriptionStore_SetBillingCustomer_CreatesBareRecord(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewSubscriptionStore(db)
	ctx := context.Background()

	if err := store.SetBillingCustomer(ctx, "user-2", "cus_456"); err != nil {
		t.Fatalf("set billing customer: %v", err)
	}

	got, err := store.GetByUser(ctx, "user-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.BillingCustomerID != "cus_456" {
		t.Errorf("BillingCustomerID = %s, want cus_456", got.BillingCustomerID)
	}
	if got.Status != subscription.StatusNone {
		t.Errorf("Status = %s, want none for bare record", got.Status)
	}
	if got.TierID != tier.Free {
		t.Errorf("TierID = %s, want free for bare record", got.TierID)
	}
}

func TestSubscriptionStore_SetBillingCustomer_KeepsExistingTier(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewSubscriptionStore(db)
	ctx := context.Background()

	rec := subscription.Record{
		ID:     "sub-1",
		UserID: "user-1",
		TierID: tier.Pro,
		Status: subscription.StatusActive,
	}
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.SetBillingCustomer(ctx, "user-1", "cus_789"); err != nil {
		t.Fatalf("set billing customer: %v", err)
	}

	got, err := store.GetByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TierID != tier.Pro || got.Status != subscription.StatusActive {
		t.Errorf("linking a customer must not touch tier/status, got %s/%s", got.TierID, got.Status)
	}
	if got.BillingCustomerID != "cus_789" {
		t.Errorf("BillingCustomerID = %s, want cus_789", got.BillingCustomerID)
	}
}

func TestSubscriptionStore_UnknownStatusReadsAsNone(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, user_id, tier_id, status, created_at, updated_at)
		VALUES ('sub-x', 'user-x', 'pro', 'incomplete_expired', ?, ?)
	`, now, now)
	if err != nil {
		t.Fatalf("seed row: %v", err)
	}

	store := sqlite.NewSubscriptionStore(db)
	got, err := store.GetByUser(ctx, "user-x")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != subscription.StatusNone {
		t.Errorf("Status = %s, want none for unrecognized stored value", got.Status)
	}
}
