package notification

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/logger"
)

// Kind identifies the notification template to deliver.
type Kind string

const (
	KindExpiryWarning       Kind = "expiry_warning"
	KindSubscriptionExpired Kind = "subscription_expired"
	KindAutoDowngrade       Kind = "auto_downgrade"
)

// Notifier dispatches a notification to an account. Actual delivery
// (push, email) is an external concern; the metering engine only ever talks
// to this interface.
type Notifier interface {
	Notify(ctx context.Context, accountID uuid.UUID, kind Kind, payload map[string]any) error
}

// NoopNotifier discards every notification. Useful for tests and for
// deployments that handle messaging elsewhere.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, uuid.UUID, Kind, map[string]any) error {
	return nil
}

// LogNotifier writes notifications to the structured log. Handy in
// development and as a delivery audit trail alongside a real channel.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a notifier that logs at info level.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, accountID uuid.UUID, kind Kind, payload map[string]any) error {
	n.log.LogAttrs(ctx, slog.LevelInfo, "notification dispatched",
		logger.AccountID(accountID.String()),
		slog.String("kind", string(kind)),
		slog.Any("payload", payload),
	)
	return nil
}

// MultiNotifier fans a notification out to several channels with best-effort
// semantics: a failing channel is logged and skipped so one broken transport
// never blocks the rest.
type MultiNotifier struct {
	notifiers []Notifier
	log       *slog.Logger
}

// NewMultiNotifier creates a best-effort fan-out over the given notifiers.
func NewMultiNotifier(log *slog.Logger, notifiers ...Notifier) *MultiNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &MultiNotifier{notifiers: notifiers, log: log}
}

func (m *MultiNotifier) Notify(ctx context.Context, accountID uuid.UUID, kind Kind, payload map[string]any) error {
	for i, n := range m.notifiers {
		if err := n.Notify(ctx, accountID, kind, payload); err != nil {
			m.log.LogAttrs(ctx, slog.LevelError, "failed to deliver notification",
				logger.AccountID(accountID.String()),
				slog.String("kind", string(kind)),
				slog.Int("notifier_index", i),
				logger.Error(err),
			)
			continue
		}
	}
	return nil
}
