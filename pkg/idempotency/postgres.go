package idempotency

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDeduper claims references with an insert-if-absent into the
// processed_references table. Unlike the Redis deduper it is durable across
// cache flushes, which matters when the dedup decision guards money movement.
type PostgresDeduper struct {
	pool *pgxpool.Pool
}

// NewPostgresDeduper creates a Postgres-backed deduper.
func NewPostgresDeduper(pool *pgxpool.Pool) *PostgresDeduper {
	if pool == nil {
		panic("idempotency: pgx pool is required")
	}
	return &PostgresDeduper{pool: pool}
}

func (d *PostgresDeduper) MarkProcessed(ctx context.Context, reference string) (bool, error) {
	tag, err := d.pool.Exec(ctx, `
		INSERT INTO processed_references (reference, processed_at)
		VALUES ($1, now())
		ON CONFLICT (reference) DO NOTHING`,
		reference,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (d *PostgresDeduper) Release(ctx context.Context, reference string) error {
	_, err := d.pool.Exec(ctx, `DELETE FROM processed_references WHERE reference = $1`, reference)
	return err
}
