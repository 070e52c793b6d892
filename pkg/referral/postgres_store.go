package referral

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/meterkit/pkg/pg"
	"github.com/dmitrymomot/meterkit/pkg/plans"
)

// PostgresStore persists earnings in referral_earnings and balances in
// referral_balances. The unique index on (referrer_id, referee_id,
// cycle_index) is what makes the earning cap safe under concurrent payment
// confirmations for the same referee.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed referral store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("referral: pgx pool is required")
	}
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CountForPair(ctx context.Context, referrerID, refereeID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM referral_earnings
		WHERE referrer_id = $1 AND referee_id = $2`,
		referrerID, refereeID,
	).Scan(&count)
	return count, err
}

func (s *PostgresStore) Append(ctx context.Context, e Earning) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO referral_earnings
			(id, referrer_id, referee_id, plan_id, amount, currency, cycle_index, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.ReferrerID, e.RefereeID, e.PlanID,
		e.Amount.Amount, e.Amount.Currency, e.CycleIndex, e.CreatedAt.UTC(),
	)
	if pg.IsDuplicateKeyError(err) {
		return ErrDuplicateCycle
	}
	return err
}

func (s *PostgresStore) ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]Earning, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, referrer_id, referee_id, plan_id, amount, currency, cycle_index, created_at
		FROM referral_earnings
		WHERE referrer_id = $1
		ORDER BY created_at DESC`,
		referrerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Earning
	for rows.Next() {
		var e Earning
		if err := rows.Scan(&e.ID, &e.ReferrerID, &e.RefereeID, &e.PlanID,
			&e.Amount.Amount, &e.Amount.Currency, &e.CycleIndex, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Credit(ctx context.Context, accountID uuid.UUID, amount plans.Money) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO referral_balances (account_id, currency, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, currency)
		DO UPDATE SET amount = referral_balances.amount + EXCLUDED.amount`,
		accountID, amount.Currency, amount.Amount,
	)
	return err
}

func (s *PostgresStore) Balance(ctx context.Context, accountID uuid.UUID, currency string) (int64, error) {
	var amount int64
	err := s.pool.QueryRow(ctx, `
		SELECT amount FROM referral_balances
		WHERE account_id = $1 AND currency = $2`,
		accountID, currency,
	).Scan(&amount)
	if pg.IsNotFoundError(err) {
		return 0, nil
	}
	return amount, err
}
