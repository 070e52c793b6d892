package downgrade

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/audit"
	"github.com/dmitrymomot/meterkit/pkg/logger"
	"github.com/dmitrymomot/meterkit/pkg/notification"
	"github.com/dmitrymomot/meterkit/pkg/plans"
	"github.com/dmitrymomot/meterkit/pkg/subscription"
)

// ActionAutoDowngrade is the audit action recorded for every applied expiry.
const ActionAutoDowngrade = "subscription.auto_downgrade"

var errRecordNotDue = errors.New("subscription is not due for downgrade")

// UsageResetter reinitializes usage counters for the free plan after a
// downgrade. Implemented by usage.Ledger.
type UsageResetter interface {
	ResetForNewPlan(ctx context.Context, accountID uuid.UUID, newPlanID string, periodStart time.Time) error
}

// Service consumes expiry events and moves lapsed subscriptions to the free
// plan, which has no expiry and is therefore the terminal safe state.
//
// Processing is idempotent: the current record state decides whether anything
// happens, never the freshness of the event. A retried or overlapping scan
// delivering the same expiry twice finds the account already off the expired
// plan and does nothing, so no duplicate audit entries or usage resets occur.
type Service struct {
	store    subscription.Store
	usage    UsageResetter
	auditor  *audit.Logger
	notifier notification.Notifier
	log      *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier enables downgrade notices to the account.
func WithNotifier(n notification.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets the service's logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the auto-downgrade service.
// Panics if required dependencies are nil to fail fast during initialization.
func NewService(store subscription.Store, usage UsageResetter, auditor *audit.Logger, opts ...Option) *Service {
	if store == nil {
		panic("downgrade: subscription store is required")
	}
	if usage == nil {
		panic("downgrade: UsageResetter is required")
	}
	if auditor == nil {
		panic("downgrade: audit logger is required")
	}

	s := &Service{
		store:    store,
		usage:    usage,
		auditor:  auditor,
		notifier: notification.NoopNotifier{},
		log:      slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleExpiry transitions one lapsed subscription to the free plan and
// resets its usage counters. Safe to call any number of times for the same
// account: only the call that actually applies the transition logs, resets,
// and notifies.
func (s *Service) HandleExpiry(ctx context.Context, accountID uuid.UUID) error {
	now := s.now()

	var (
		priorPlan   string
		priorStatus subscription.Status
		lapsedAt    time.Time
	)
	_, err := s.store.Update(ctx, accountID, func(r *subscription.Record) (bool, error) {
		if r.Status != subscription.StatusTrial && r.Status != subscription.StatusActive {
			return false, errRecordNotDue
		}
		if !r.IsExpiredAt(now) {
			return false, errRecordNotDue
		}

		priorPlan = r.PlanID
		priorStatus = r.Status
		lapsedAt = *r.PeriodEnd

		r.PlanID = plans.FreePlanID
		r.Status = subscription.StatusActive
		r.PeriodStart = now
		r.PeriodEnd = nil
		r.TrialEndsAt = nil
		r.UpdatedAt = now
		return true, nil
	})
	if errors.Is(err, errRecordNotDue) {
		s.log.LogAttrs(ctx, slog.LevelInfo, "expiry event is stale, skipping",
			logger.AccountID(accountID.String()),
		)
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.usage.ResetForNewPlan(ctx, accountID, plans.FreePlanID, now); err != nil {
		// Counters snapshot lazily from the free plan on first use; the
		// record change is already durable, so report without undoing it.
		s.log.LogAttrs(ctx, slog.LevelError, "failed to reset usage after downgrade",
			logger.AccountID(accountID.String()),
			logger.Error(err),
		)
	}

	if err := s.auditor.Log(ctx, accountID, ActionAutoDowngrade, map[string]any{
		"prior_plan":   priorPlan,
		"prior_status": string(priorStatus),
		"reason":       "billing period expired without renewal",
	}); err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "failed to write downgrade audit entry",
			logger.AccountID(accountID.String()),
			logger.Error(err),
		)
	}

	if err := s.notifier.Notify(ctx, accountID, notification.KindSubscriptionExpired, map[string]any{
		"plan_id":    priorPlan,
		"period_end": lapsedAt,
	}); err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "failed to send expiry notice",
			logger.AccountID(accountID.String()),
			logger.Error(err),
		)
	}

	if err := s.notifier.Notify(ctx, accountID, notification.KindAutoDowngrade, map[string]any{
		"prior_plan": priorPlan,
		"new_plan":   plans.FreePlanID,
	}); err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "failed to send downgrade notice",
			logger.AccountID(accountID.String()),
			logger.Error(err),
		)
	}

	s.log.LogAttrs(ctx, slog.LevelInfo, "subscription downgraded to free plan",
		logger.AccountID(accountID.String()),
		slog.String("prior_plan", priorPlan),
		slog.String("prior_status", string(priorStatus)),
	)
	return nil
}
