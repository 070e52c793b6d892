package billing

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/logger"
	"github.com/dmitrymomot/meterkit/pkg/plans"
	"github.com/dmitrymomot/meterkit/pkg/usage"
)

// Descriptor declares what a route requires before its handler runs. It
// replaces nested runtime handler wrapping with a statically inspectable
// middleware chain: the enforcement order and failure paths are visible at
// the route table, not buried in decorators.
type Descriptor struct {
	// Plans restricts the route to accounts on one of the listed plans.
	// Empty means any plan.
	Plans []string

	// Feature meters the route against this feature's quota. The check runs
	// before the handler; the increment runs after it, only when the handler
	// reports success.
	Feature plans.FeatureType
}

// Gate evaluates capability descriptors against the subscription and usage
// services.
type Gate struct {
	subs  SubscriptionReader
	meter Meter
	log   *slog.Logger
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithGateLogger sets the gate's logger.
func WithGateLogger(log *slog.Logger) GateOption {
	return func(g *Gate) {
		if log != nil {
			g.log = log
		}
	}
}

// NewGate creates a capability gate.
func NewGate(subs SubscriptionReader, meter Meter, opts ...GateOption) *Gate {
	if subs == nil {
		panic("billing: SubscriptionReader is required")
	}
	if meter == nil {
		panic("billing: Meter is required")
	}
	g := &Gate{subs: subs, meter: meter, log: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Require returns middleware enforcing the descriptor. Evaluation order:
// authenticated account, subscription access, plan membership, feature
// quota. A storage failure during the quota check denies the request (fail
// closed) rather than letting unmetered usage through.
func (g *Gate) Require(desc Descriptor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID, ok := AccountIDFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			status, err := g.subs.GetStatus(r.Context(), accountID)
			if err != nil {
				writeError(w, http.StatusServiceUnavailable, "subscription lookup failed")
				return
			}
			if !status.HasAccess {
				writeError(w, http.StatusPaymentRequired, "subscription expired")
				return
			}

			if len(desc.Plans) > 0 && !slices.Contains(desc.Plans, status.PlanID) {
				writeError(w, http.StatusForbidden, "plan does not include this capability")
				return
			}

			if desc.Feature == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, info, err := g.meter.CanConsume(r.Context(), accountID, desc.Feature)
			if err != nil {
				writeError(w, http.StatusServiceUnavailable, "usage check failed")
				return
			}
			if !allowed {
				writeJSON(w, http.StatusPaymentRequired, map[string]any{
					"error": "plan limit reached",
					"usage": info,
				})
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status < 300 {
				// The resource was created; count it. A failed increment is
				// not surfaced to the client because the write already
				// happened; the missed count is reconciled from logs.
				if err := g.meter.Increment(r.Context(), accountID, desc.Feature); err != nil {
					g.log.LogAttrs(r.Context(), slog.LevelError, "failed to record usage after successful request",
						logger.AccountID(accountID.String()),
						logger.Feature(desc.Feature),
						logger.Error(err),
						logger.Component("billing.gate"),
					)
				}
			}
		})
	}
}

// Meter is the usage slice the gate consumes. Implemented by usage.Ledger.
type Meter interface {
	CanConsume(ctx context.Context, accountID uuid.UUID, feature plans.FeatureType) (bool, usage.Info, error)
	Increment(ctx context.Context, accountID uuid.UUID, feature plans.FeatureType) error
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
