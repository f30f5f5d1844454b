package sqlite_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/artpar/tollgate/adapters/sqlite"
	"github.com/artpar/tollgate/domain/tier"
	"github.com/artpar/tollgate/domain/usage"
)

const testKey = usage.PeriodKey("cal:2026-08")

func TestUsageStore_PeekEmptyIsZero(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewUsageStore(db)

	count, err := store.Peek(context.Background(), "user-1", "ai_move", testKey)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0 for missing row", count)
	}
}

func TestUsageStore_PeekIsIdempotent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewUsageStore(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.IncrementIfAllowed(ctx, "user-1", "ai_move", testKey, 100); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	first, err := store.Peek(ctx, "user-1", "ai_move", testKey)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	second, err := store.Peek(ctx, "user-1", "ai_move", testKey)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if first != 3 || second != 3 {
		t.Errorf("peek = %d then %d, want 3 both times", first, second)
	}
}

func TestUsageStore_IncrementUpToLimit(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewUsageStore(db)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		res, err := store.IncrementIfAllowed(ctx, "user-1", "ai_move", testKey, 3)
		if err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
		if !res.Accepted || res.NewCount != i {
			t.Errorf("increment %d = %+v", i, res)
		}
	}

	// At limit: rejected, count unchanged.
	res, err := store.IncrementIfAllowed(ctx, "user-1", "ai_move", testKey, 3)
	if err != nil {
		t.Fatalf("increment at limit: %v", err)
	}
	if res.Accepted {
		t.Error("expected rejection at limit")
	}
	if res.NewCount != 3 {
		t.Errorf("NewCount = %d, want 3", res.NewCount)
	}

	count, _ := store.Peek(ctx, "user-1", "ai_move", testKey)
	if count != 3 {
		t.Errorf("stored count = %d, want 3 after rejection", count)
	}
}

func TestUsageStore_ZeroLimitNeverAccepts(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewUsageStore(db)
	ctx := context.Background()

	res, err := store.IncrementIfAllowed(ctx, "user-1", "ai_move", testKey, 0)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if res.Accepted || res.NewCount != 0 {
		t.Errorf("result = %+v, want rejected with count 0", res)
	}

	count, _ := store.Peek(ctx, "user-1", "ai_move", testKey)
	if count != 0 {
		t.Errorf("stored count = %d, want 0", count)
	}
}

func TestUsageStore_UnlimitedStillRecords(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewUsageStore(db)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		res, err := store.IncrementIfAllowed(ctx, "user-1", "ai_move", testKey, tier.Unlimited)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if !res.Accepted || res.NewCount != i {
			t.Errorf("increment %d = %+v", i, res)
		}
	}
}

func TestUsageStore_PeriodIsolation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewUsageStore(db)
	ctx := context.Background()

	oldKey := usage.PeriodKey("cal:2026-07")
	for i := 0; i < 4; i++ {
		if _, err := store.IncrementIfAllowed(ctx, "user-1", "ai_move", oldKey, 100); err != nil {
			t.Fatalf("increment old period: %v", err)
		}
	}

	res, err := store.IncrementIfAllowed(ctx, "user-1", "ai_move", testKey, 100)
	if err != nil {
		t.Fatalf("increment new period: %v", err)
	}
	if res.NewCount != 1 {
		t.Errorf("new period NewCount = %d, want 1 (fresh row)", res.NewCount)
	}

	oldCount, _ := store.Peek(ctx, "user-1", "ai_move", oldKey)
	if oldCount != 4 {
		t.Errorf("old period count = %d, want 4", oldCount)
	}
}

// Atomicity: N concurrent increments against limit L accept exactly
// min(N, L) and the stored count never exceeds L.
func TestUsageStore_ConcurrentIncrementsRespectLimit(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewUsageStore(db)
	ctx := context.Background()

	const workers = 25
	const limit = 10

	var accepted atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			res, err := store.IncrementIfAllowed(ctx, "user-1", "ai_move", testKey, limit)
			if err != nil {
				t.Errorf("increment: %v", err)
				return
			}
			if res.Accepted {
				accepted.Add(1)
			}
			if res.NewCount > limit {
				t.Errorf("NewCount %d exceeds limit %d", res.NewCount, limit)
			}
		}()
	}
	wg.Wait()

	if accepted.Load() != limit {
		t.Errorf("accepted = %d, want exactly %d", accepted.Load(), limit)
	}

	count, err := store.Peek(ctx, "user-1", "ai_move", testKey)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if count != limit {
		t.Errorf("final count = %d, want %d", count, limit)
	}
}

func TestUsageStore_ListByUser(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewUsageStore(db)
	ctx := context.Background()

	if _, err := store.IncrementIfAllowed(ctx, "user-1", "ai_move", testKey, 100); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if _, err := store.IncrementIfAllowed(ctx, "user-1", "game_import", testKey, 100); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if _, err := store.IncrementIfAllowed(ctx, "user-2", "ai_move", testKey, 100); err != nil {
		t.Fatalf("increment other user: %v", err)
	}

	counters, err := store.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(counters) != 2 {
		t.Fatalf("len = %d, want 2", len(counters))
	}
	for _, c := range counters {
		if c.UserID != "user-1" {
			t.Errorf("leaked counter for %s", c.UserID)
		}
	}
}
