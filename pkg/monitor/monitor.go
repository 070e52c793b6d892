package monitor

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/meterkit/pkg/logger"
	"github.com/dmitrymomot/meterkit/pkg/notification"
	"github.com/dmitrymomot/meterkit/pkg/subscription"
)

// Source is the slice of the subscription store the monitor reads.
type Source interface {
	ListDueForExpiry(ctx context.Context, now time.Time) ([]subscription.Record, error)
	ListExpiringWithin(ctx context.Context, now time.Time, days int) ([]subscription.Record, error)
	TryMarkWarned(ctx context.Context, accountID uuid.UUID, thresholdDays int, periodEnd time.Time) (bool, error)
}

// ExpiryHandler consumes expiry events. Implemented by downgrade.Service.
// Handlers must be idempotent: overlapping scans on different instances may
// deliver the same expiry more than once.
type ExpiryHandler interface {
	HandleExpiry(ctx context.Context, accountID uuid.UUID) error
}

// Stats summarizes one scan run.
type Stats struct {
	Expired int // expiry events handled successfully
	Warned  int // warning notifications sent
	Failed  int // records that errored and will be retried next cycle
}

// Monitor periodically scans subscription records for expiries and
// approaching deadlines. Scanning rather than per-record timers keeps all
// state externally inspectable and survives restarts; the cost is a bounded
// detection latency equal to the scan interval, which is fine for billing.
//
// Multiple instances may scan concurrently without coordination: expiry
// handling is idempotent and warning markers are claimed atomically.
type Monitor struct {
	source   Source
	handler  ExpiryHandler
	notifier notification.Notifier
	cfg      Config
	log      *slog.Logger
	now      func() time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithNotifier enables advance-warning notifications.
func WithNotifier(n notification.Notifier) Option {
	return func(m *Monitor) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithLogger sets the monitor's logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Monitor) {
		if log != nil {
			m.log = log
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates an expiration monitor.
// Panics if required dependencies are nil to fail fast during initialization.
func New(source Source, handler ExpiryHandler, cfg Config, opts ...Option) *Monitor {
	if source == nil {
		panic("monitor: Source is required")
	}
	if handler == nil {
		panic("monitor: ExpiryHandler is required")
	}

	m := &Monitor{
		source:   source,
		handler:  handler,
		notifier: notification.NoopNotifier{},
		cfg:      cfg,
		log:      slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start runs the fixed-interval scan loop and schedules the daily sweep,
// blocking until the context is cancelled. An immediate scan runs on start
// so a freshly deployed instance does not wait a full interval.
func (m *Monitor) Start(ctx context.Context) error {
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(m.cfg.DailySweepSchedule, func() {
		if _, err := m.Sweep(ctx); err != nil {
			m.log.LogAttrs(ctx, slog.LevelError, "daily sweep failed",
				logger.Error(err),
			)
		}
	}); err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	ticker := time.NewTicker(m.cfg.ScanInterval)
	defer ticker.Stop()

	m.runScan(ctx)

	for {
		select {
		case <-ctx.Done():
			m.log.InfoContext(ctx, "expiration monitor shutting down")
			return ctx.Err()
		case <-ticker.C:
			m.runScan(ctx)
		}
	}
}

func (m *Monitor) runScan(ctx context.Context) {
	stats, err := m.Scan(ctx)
	if err != nil {
		m.log.LogAttrs(ctx, slog.LevelError, "scan failed",
			logger.Error(err),
		)
		return
	}
	if stats.Expired > 0 || stats.Warned > 0 || stats.Failed > 0 {
		m.log.LogAttrs(ctx, slog.LevelInfo, "scan completed",
			slog.Int("expired", stats.Expired),
			slog.Int("warned", stats.Warned),
			slog.Int("failed", stats.Failed),
		)
	}
}

// Scan processes one pass: every lapsed subscription is handed to the expiry
// handler and every record inside a warning threshold gets its advance
// warning. One failing account never aborts the batch; it is counted and
// retried on the next cycle.
func (m *Monitor) Scan(ctx context.Context) (Stats, error) {
	var stats Stats
	now := m.now()

	due, err := m.source.ListDueForExpiry(ctx, now)
	if err != nil {
		return stats, errors.Join(ErrScanFailed, err)
	}
	for _, rec := range due {
		if err := m.handler.HandleExpiry(ctx, rec.AccountID); err != nil {
			stats.Failed++
			m.log.LogAttrs(ctx, slog.LevelError, "failed to handle expiry, will retry next cycle",
				logger.AccountID(rec.AccountID.String()),
				logger.Error(err),
			)
			continue
		}
		stats.Expired++
	}

	warned, failed := m.emitWarnings(ctx, now)
	stats.Warned += warned
	stats.Failed += failed

	return stats, nil
}

// Sweep is the broader daily pass. It runs the same idempotent logic as
// Scan; running it concurrently with interval scans is safe by design.
func (m *Monitor) Sweep(ctx context.Context) (Stats, error) {
	m.log.InfoContext(ctx, "daily sweep started")
	return m.Scan(ctx)
}

func (m *Monitor) emitWarnings(ctx context.Context, now time.Time) (warned, failed int) {
	thresholds := slices.Clone(m.cfg.WarningThresholds)
	if len(thresholds) == 0 {
		return 0, 0
	}
	// Largest first so a record deep inside several windows claims them all
	// in one pass instead of one per scan.
	slices.SortFunc(thresholds, func(a, b int) int { return b - a })

	upcoming, err := m.source.ListExpiringWithin(ctx, now, thresholds[0])
	if err != nil {
		m.log.LogAttrs(ctx, slog.LevelError, "failed to list expiring subscriptions",
			logger.Error(err),
		)
		return 0, 1
	}

	for _, rec := range upcoming {
		if rec.PeriodEnd == nil {
			continue
		}
		days := rec.DaysRemainingAt(now)

		for _, threshold := range thresholds {
			if days > threshold {
				continue
			}

			first, err := m.source.TryMarkWarned(ctx, rec.AccountID, threshold, *rec.PeriodEnd)
			if err != nil {
				failed++
				m.log.LogAttrs(ctx, slog.LevelError, "failed to claim warning marker",
					logger.AccountID(rec.AccountID.String()),
					logger.ThresholdDays(threshold),
					logger.Error(err),
				)
				continue
			}
			if !first {
				continue
			}

			if err := m.notifier.Notify(ctx, rec.AccountID, notification.KindExpiryWarning, map[string]any{
				"plan_id":        rec.PlanID,
				"days_remaining": days,
				"threshold_days": threshold,
				"period_end":     rec.PeriodEnd,
			}); err != nil {
				m.log.LogAttrs(ctx, slog.LevelError, "failed to send expiry warning",
					logger.AccountID(rec.AccountID.String()),
					logger.Error(err),
				)
			}
			warned++
		}
	}
	return warned, failed
}
