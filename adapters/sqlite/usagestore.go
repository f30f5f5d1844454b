package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/artpar/tollgate/domain/tier"
	"github.com/artpar/tollgate/domain/usage"
	"github.com/artpar/tollgate/ports"
)

// UsageStore implements ports.UsageStore using SQLite. The conditional
// increment is a single upsert statement so concurrent callers are
// linearized by the database, never by application code.
type UsageStore struct {
	db *DB
}

// NewUsageStore creates a new SQLite usage store.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

// Peek returns the current count for a counter row, 0 when none exists.
func (s *UsageStore) Peek(ctx context.Context, userID string, resource tier.Resource, key usage.PeriodKey) (int64, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT count FROM usage_counters
		WHERE user_id = ? AND resource = ? AND period_key = ?
	`, userID, string(resource), string(key))

	var count int64
	err := row.Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// IncrementIfAllowed atomically increments the counter unless the new
// count would exceed limit.
//
// The whole check-and-increment is one statement: the upsert's conflict
// arm only fires while count < limit, and RETURNING reports the committed
// value. No rows returned means the limit check failed and nothing was
// written. A cancelled context therefore either commits the increment or
// leaves the row untouched.
func (s *UsageStore) IncrementIfAllowed(ctx context.Context, userID string, resource tier.Resource, key usage.PeriodKey, limit int64) (usage.IncrementResult, error) {
	now := time.Now().UTC()

	if limit == tier.Unlimited {
		// Unlimited resources skip the check but still record the count
		// for analytics.
		row := s.db.QueryRowContext(ctx, `
			INSERT INTO usage_counters (user_id, resource, period_key, count, updated_at)
			VALUES (?, ?, ?, 1, ?)
			ON CONFLICT(user_id, resource, period_key) DO UPDATE SET
				count = count + 1,
				updated_at = excluded.updated_at
			RETURNING count
		`, userID, string(resource), string(key), now)

		var count int64
		if err := row.Scan(&count); err != nil {
			return usage.IncrementResult{}, err
		}
		return usage.IncrementResult{Accepted: true, NewCount: count}, nil
	}

	if limit <= 0 {
		// A zero quota can never accept; the count is untouched.
		count, err := s.Peek(ctx, userID, resource, key)
		if err != nil {
			return usage.IncrementResult{}, err
		}
		return usage.IncrementResult{Accepted: false, NewCount: count}, nil
	}

	// The insert arm is safe unconditionally: a fresh row starts at 1,
	// and limit >= 1 here.
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO usage_counters (user_id, resource, period_key, count, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(user_id, resource, period_key) DO UPDATE SET
			count = count + 1,
			updated_at = excluded.updated_at
		WHERE usage_counters.count < ?
		RETURNING count
	`, userID, string(resource), string(key), now, limit)

	var count int64
	err := row.Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		// Conflict arm declined: already at or over the limit.
		current, peekErr := s.Peek(ctx, userID, resource, key)
		if peekErr != nil {
			return usage.IncrementResult{}, peekErr
		}
		return usage.IncrementResult{Accepted: false, NewCount: current}, nil
	}
	if err != nil {
		return usage.IncrementResult{}, err
	}

	return usage.IncrementResult{Accepted: true, NewCount: count}, nil
}

// ListByUser returns all counter rows for a user across periods.
func (s *UsageStore) ListByUser(ctx context.Context, userID string) ([]usage.Counter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, resource, period_key, count, updated_at
		FROM usage_counters
		WHERE user_id = ?
		ORDER BY period_key, resource
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counters []usage.Counter
	for rows.Next() {
		var c usage.Counter
		var resource, key string
		if err := rows.Scan(&c.UserID, &resource, &key, &c.Count, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Resource = tier.Resource(resource)
		c.PeriodKey = usage.PeriodKey(key)
		counters = append(counters, c)
	}

	return counters, rows.Err()
}

// Cleanup removes counter rows for periods last touched before the cutoff.
// Retention policy; counters are otherwise never deleted.
func (s *UsageStore) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM usage_counters WHERE updated_at < ?
	`, olderThan)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
