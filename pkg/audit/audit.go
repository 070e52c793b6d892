package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/logger"
)

// Event is a single append-only audit entry. The downgrade service records
// one per applied expiry so the plan history of every account stays
// reconstructable.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	AccountID uuid.UUID      `json:"account_id"`
	Action    string         `json:"action"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store persists audit events. Events are append-only, never mutated.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]Event, error)
}

// Logger writes audit events to a store and mirrors them to the structured
// log. A store failure is reported to the caller; audit gaps should be loud.
type Logger struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

// LoggerOption configures a Logger.
type LoggerOption func(*Logger)

// WithLogger sets the slog mirror target.
func WithLogger(log *slog.Logger) LoggerOption {
	return func(l *Logger) {
		if log != nil {
			l.log = log
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) LoggerOption {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLogger creates an audit logger over the given store.
func NewLogger(store Store, opts ...LoggerOption) *Logger {
	if store == nil {
		panic("audit: Store is required")
	}
	l := &Logger{
		store: store,
		log:   slog.Default(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log appends an audit event for the account.
func (l *Logger) Log(ctx context.Context, accountID uuid.UUID, action string, metadata map[string]any) error {
	event := Event{
		ID:        uuid.New(),
		AccountID: accountID,
		Action:    action,
		Metadata:  metadata,
		CreatedAt: l.now(),
	}

	if err := l.store.Append(ctx, event); err != nil {
		return err
	}

	l.log.LogAttrs(ctx, slog.LevelInfo, "audit event recorded",
		logger.AccountID(accountID.String()),
		slog.String("action", action),
		slog.Any("metadata", metadata),
	)
	return nil
}
