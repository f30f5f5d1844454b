package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/artpar/tollgate/domain/subscription"
	"github.com/artpar/tollgate/domain/tier"
	"github.com/artpar/tollgate/ports"
)

// SubscriptionStore implements ports.SubscriptionStore using SQLite.
type SubscriptionStore struct {
	db *DB
}

// NewSubscriptionStore creates a new SQLite subscription store.
func NewSubscriptionStore(db *DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// GetByUser retrieves the subscription record for a user.
func (s *SubscriptionStore) GetByUser(ctx context.Context, userID string) (subscription.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, billing_customer_id, tier_id, status,
		       current_period_start, current_period_end, created_at, updated_at
		FROM subscriptions
		WHERE user_id = ?
	`, userID)
	return scanRecord(row)
}

// GetByBillingCustomer retrieves the record linked to a billing customer.
func (s *SubscriptionStore) GetByBillingCustomer(ctx context.Context, customerID string) (subscription.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, billing_customer_id, tier_id, status,
		       current_period_start, current_period_end, created_at, updated_at
		FROM subscriptions
		WHERE billing_customer_id = ?
	`, customerID)
	return scanRecord(row)
}

// Upsert creates or replaces the record for rec.UserID. Rows are never
// hard-deleted; cancellations arrive as status updates through here.
func (s *SubscriptionStore) Upsert(ctx context.Context, rec subscription.Record) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (
			id, user_id, billing_customer_id, tier_id, status,
			current_period_start, current_period_end, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			billing_customer_id = excluded.billing_customer_id,
			tier_id = excluded.tier_id,
			status = excluded.status,
			current_period_start = excluded.current_period_start,
			current_period_end = excluded.current_period_end,
			updated_at = excluded.updated_at
	`,
		rec.ID, rec.UserID, nullString(rec.BillingCustomerID),
		string(rec.TierID), string(rec.Status),
		nullTime(rec.CurrentPeriodStart), nullTime(rec.CurrentPeriodEnd),
		rec.CreatedAt, rec.UpdatedAt,
	)
	return err
}

// SetBillingCustomer links a billing customer id, creating a bare record
// when the user has never touched billing before.
func (s *SubscriptionStore) SetBillingCustomer(ctx context.Context, userID, customerID string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (
			id, user_id, billing_customer_id, tier_id, status, created_at, updated_at
		) VALUES (?, ?, ?, 'free', 'none', ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			billing_customer_id = excluded.billing_customer_id,
			updated_at = excluded.updated_at
	`, userID, userID, customerID, now, now)
	return err
}

func scanRecord(row *sql.Row) (subscription.Record, error) {
	var rec subscription.Record
	var tierID, status string
	var customerID sql.NullString
	var periodStart, periodEnd sql.NullTime

	err := row.Scan(
		&rec.ID, &rec.UserID, &customerID, &tierID, &status,
		&periodStart, &periodEnd, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return subscription.Record{}, ErrNotFound
	}
	if err != nil {
		return subscription.Record{}, err
	}

	rec.TierID = tier.ID(tierID)
	// Unrecognized stored statuses degrade to none; the resolver treats
	// that as not entitled.
	rec.Status, _ = subscription.ParseStatus(status)
	if customerID.Valid {
		rec.BillingCustomerID = customerID.String
	}
	if periodStart.Valid {
		rec.CurrentPeriodStart = periodStart.Time
	}
	if periodEnd.Valid {
		rec.CurrentPeriodEnd = periodEnd.Time
	}

	return rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// Ensure interface compliance.
var _ ports.SubscriptionStore = (*SubscriptionStore)(nil)
