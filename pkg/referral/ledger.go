package referral

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/logger"
	"github.com/dmitrymomot/meterkit/pkg/plans"
)

// Config carries the externally configurable referral program parameters.
type Config struct {
	// CommissionPercent is the share of each confirmed payment credited to
	// the referrer, in whole percent.
	CommissionPercent int `env:"REFERRAL_COMMISSION_PERCENT" envDefault:"10"`

	// EarningWindow caps how many billing cycles of one referee generate
	// commission for the referrer.
	EarningWindow int `env:"REFERRAL_EARNING_WINDOW" envDefault:"3"`
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if c.CommissionPercent < 0 || c.CommissionPercent > 100 {
		return errors.Join(ErrInvalidConfig, errors.New("commission percent must be 0-100"))
	}
	if c.EarningWindow < 1 {
		return errors.Join(ErrInvalidConfig, errors.New("earning window must be at least 1"))
	}
	return nil
}

// Ledger accrues referral commissions from confirmed payments. Eligibility
// and the earning cap are decided here, against the plan catalog and a
// durable count of prior earnings, never against in-memory state.
type Ledger struct {
	store   Store
	catalog *plans.Catalog
	cfg     Config
	log     *slog.Logger
	now     func() time.Time
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithLogger sets the ledger's logger.
func WithLogger(log *slog.Logger) LedgerOption {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLedger creates a referral ledger.
// Panics if required dependencies are nil to fail fast during initialization.
func NewLedger(store Store, catalog *plans.Catalog, cfg Config, opts ...LedgerOption) (*Ledger, error) {
	if store == nil {
		panic("referral: Store is required")
	}
	if catalog == nil {
		panic("referral: plan catalog is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &Ledger{
		store:   store,
		catalog: catalog,
		cfg:     cfg,
		log:     slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// RecordPayment accrues one commission for a confirmed payment by a referred
// account. Non-eligible plans and pairs that already filled the earning
// window are documented no-ops, not errors. A concurrent confirmation racing
// for the same cycle loses on the storage uniqueness constraint and is also
// treated as a no-op.
func (l *Ledger) RecordPayment(ctx context.Context, referrerID, refereeID uuid.UUID, planID string, amount plans.Money) error {
	plan, ok := l.catalog.Get(planID)
	if !ok || !plan.CommissionEligible {
		l.log.LogAttrs(ctx, slog.LevelDebug, "plan not commission-eligible, skipping referral accrual",
			logger.PlanID(planID),
			slog.String("referee_id", refereeID.String()),
		)
		return nil
	}

	count, err := l.store.CountForPair(ctx, referrerID, refereeID)
	if err != nil {
		return errors.Join(ErrFailedToAccrue, err)
	}
	if count >= l.cfg.EarningWindow {
		l.log.LogAttrs(ctx, slog.LevelInfo, "referral earning window closed",
			slog.String("referrer_id", referrerID.String()),
			slog.String("referee_id", refereeID.String()),
			slog.Int("earned_cycles", count),
		)
		return nil
	}

	earning := Earning{
		ID:         uuid.New(),
		ReferrerID: referrerID,
		RefereeID:  refereeID,
		PlanID:     planID,
		Amount: plans.Money{
			Amount:   amount.Amount * int64(l.cfg.CommissionPercent) / 100,
			Currency: amount.Currency,
		},
		CycleIndex: count + 1,
		CreatedAt:  l.now(),
	}

	if err := l.store.Append(ctx, earning); err != nil {
		if errors.Is(err, ErrDuplicateCycle) {
			l.log.LogAttrs(ctx, slog.LevelInfo, "concurrent referral accrual detected, skipping",
				slog.String("referrer_id", referrerID.String()),
				slog.String("referee_id", refereeID.String()),
				slog.Int("cycle_index", earning.CycleIndex),
			)
			return nil
		}
		return errors.Join(ErrFailedToAccrue, err)
	}

	if err := l.store.Credit(ctx, referrerID, earning.Amount); err != nil {
		return errors.Join(ErrFailedToCredit, err)
	}

	l.log.LogAttrs(ctx, slog.LevelInfo, "referral commission accrued",
		slog.String("referrer_id", referrerID.String()),
		slog.String("referee_id", refereeID.String()),
		logger.PlanID(planID),
		slog.Int("cycle_index", earning.CycleIndex),
		slog.Int64("amount", earning.Amount.Amount),
	)
	return nil
}

// Earnings returns a referrer's accrued earnings, newest first.
func (l *Ledger) Earnings(ctx context.Context, referrerID uuid.UUID) ([]Earning, error) {
	return l.store.ListByReferrer(ctx, referrerID)
}

// Balance returns a referrer's withdrawable balance in the given currency.
func (l *Ledger) Balance(ctx context.Context, referrerID uuid.UUID, currency string) (plans.Money, error) {
	amount, err := l.store.Balance(ctx, referrerID, currency)
	if err != nil {
		return plans.Money{}, err
	}
	return plans.Money{Amount: amount, Currency: currency}, nil
}
