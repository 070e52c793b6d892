package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/meterkit/pkg/pg"
	"github.com/dmitrymomot/meterkit/pkg/plans"
)

// PostgresStore persists usage counters in the usage_counters table.
// The uniqueness constraint on (account_id, feature, period_start) lets both
// the increment and the reset rely on upsert semantics instead of
// application-level read-modify-write.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed usage store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("usage: pgx pool is required")
	}
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Find(ctx context.Context, accountID uuid.UUID, feature plans.FeatureType, periodStart time.Time) (*Counter, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT account_id, feature, period_start, period_end, used, limit_count
		FROM usage_counters
		WHERE account_id = $1 AND feature = $2 AND period_start = $3`,
		accountID, string(feature), periodStart.UTC(),
	)

	c, err := scanCounter(row)
	if pg.IsNotFoundError(err) {
		return nil, ErrCounterNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Increment is a single-statement atomic upsert: the row is created with
// used=1 on first use, and concurrent increments serialize on the row so no
// update is ever lost.
func (s *PostgresStore) Increment(ctx context.Context, c Counter) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO usage_counters (account_id, feature, period_start, period_end, used, limit_count)
		VALUES ($1, $2, $3, $4, 1, $5)
		ON CONFLICT (account_id, feature, period_start)
		DO UPDATE SET used = usage_counters.used + 1`,
		c.AccountID, string(c.Feature), c.PeriodStart.UTC(), c.PeriodEnd.UTC(), c.Limit,
	)
	return err
}

func (s *PostgresStore) CreateBatch(ctx context.Context, counters []Counter) error {
	batch := &pgx.Batch{}
	for _, c := range counters {
		batch.Queue(`
			INSERT INTO usage_counters (account_id, feature, period_start, period_end, used, limit_count)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (account_id, feature, period_start) DO NOTHING`,
			c.AccountID, string(c.Feature), c.PeriodStart.UTC(), c.PeriodEnd.UTC(), c.Used, c.Limit,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range counters {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]Counter, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT account_id, feature, period_start, period_end, used, limit_count
		FROM usage_counters
		WHERE account_id = $1
		ORDER BY period_start DESC, feature`,
		accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Counter
	for rows.Next() {
		c, err := scanCounter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanCounter(row pgx.Row) (*Counter, error) {
	var (
		c       Counter
		feature string
	)
	if err := row.Scan(&c.AccountID, &feature, &c.PeriodStart, &c.PeriodEnd, &c.Used, &c.Limit); err != nil {
		return nil, err
	}
	c.Feature = plans.FeatureType(feature)
	return &c, nil
}
