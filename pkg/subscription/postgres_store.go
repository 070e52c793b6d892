package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/meterkit/pkg/pg"
)

// PostgresStore persists subscription records in the subscriptions table.
// Update runs inside a transaction holding a SELECT ... FOR UPDATE row lock,
// which provides the per-account serialization the lifecycle and downgrade
// services depend on.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed subscription store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("subscription: pgx pool is required")
	}
	return &PostgresStore{pool: pool}
}

const recordColumns = `account_id, plan_id, status, period_start, period_end,
	trial_ends_at, referred_by, cancelled_at, created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, accountID uuid.UUID) (*Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM subscriptions WHERE account_id = $1`,
		accountID,
	)
	return scanRecord(row)
}

func (s *PostgresStore) Create(ctx context.Context, r *Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscriptions (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.AccountID, r.PlanID, string(r.Status), r.PeriodStart.UTC(), tsPtr(r.PeriodEnd),
		tsPtr(r.TrialEndsAt), r.ReferredBy, tsPtr(r.CancelledAt), r.CreatedAt.UTC(), r.UpdatedAt.UTC(),
	)
	if pg.IsDuplicateKeyError(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *PostgresStore) Update(ctx context.Context, accountID uuid.UUID, fn UpdateFunc) (*Record, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM subscriptions WHERE account_id = $1 FOR UPDATE`,
		accountID,
	)
	r, err := scanRecord(row)
	if err != nil {
		return nil, err
	}

	changed, err := fn(r)
	if err != nil {
		return nil, err
	}
	if !changed {
		return r, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE subscriptions
		SET plan_id = $2, status = $3, period_start = $4, period_end = $5,
			trial_ends_at = $6, cancelled_at = $7, updated_at = $8
		WHERE account_id = $1`,
		r.AccountID, r.PlanID, string(r.Status), r.PeriodStart.UTC(), tsPtr(r.PeriodEnd),
		tsPtr(r.TrialEndsAt), tsPtr(r.CancelledAt), r.UpdatedAt.UTC(),
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) ListDueForExpiry(ctx context.Context, now time.Time) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+` FROM subscriptions
		WHERE status IN ('trial', 'active')
			AND period_end IS NOT NULL
			AND period_end <= $1
		ORDER BY period_end`,
		now.UTC(),
	)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func (s *PostgresStore) ListExpiringWithin(ctx context.Context, now time.Time, days int) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+` FROM subscriptions
		WHERE status IN ('trial', 'active')
			AND period_end IS NOT NULL
			AND period_end > $1
			AND period_end < $2
		ORDER BY period_end`,
		now.UTC(), now.UTC().AddDate(0, 0, days),
	)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func (s *PostgresStore) TryMarkWarned(ctx context.Context, accountID uuid.UUID, thresholdDays int, periodEnd time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO subscription_warnings (account_id, threshold_days, period_end, sent_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (account_id, threshold_days, period_end) DO NOTHING`,
		accountID, thresholdDays, periodEnd.UTC(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		r      Record
		status string
	)
	err := row.Scan(&r.AccountID, &r.PlanID, &status, &r.PeriodStart, &r.PeriodEnd,
		&r.TrialEndsAt, &r.ReferredBy, &r.CancelledAt, &r.CreatedAt, &r.UpdatedAt)
	if pg.IsNotFoundError(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Status = Status(status)
	return &r, nil
}

func collectRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return out, nil
}

// tsPtr normalizes optional timestamps to UTC for storage.
func tsPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
