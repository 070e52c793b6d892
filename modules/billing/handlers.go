package billing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/plans"
	"github.com/dmitrymomot/meterkit/pkg/subscription"
	"github.com/dmitrymomot/meterkit/pkg/usage"
)

// SubscriptionReader exposes the read-only subscription view.
// Implemented by subscription.Lifecycle.
type SubscriptionReader interface {
	GetStatus(ctx context.Context, accountID uuid.UUID) (subscription.StatusInfo, error)
}

// PaymentConfirmer applies de-duplicated payment confirmations.
// Implemented by subscription.Lifecycle.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, event subscription.PaymentEvent) error
}

// UsageReader exposes the per-feature usage snapshot.
// Implemented by usage.Ledger.
type UsageReader interface {
	Snapshot(ctx context.Context, accountID uuid.UUID) (map[plans.FeatureType]usage.Info, error)
}

func handleGetStatus(subs SubscriptionReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := AccountIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		status, err := subs.GetStatus(r.Context(), accountID)
		if errors.Is(err, subscription.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no subscription for account")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load subscription")
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func handleGetUsage(meter UsageReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := AccountIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		snapshot, err := meter.Snapshot(r.Context(), accountID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load usage")
			return
		}
		writeJSON(w, http.StatusOK, snapshot)
	}
}

// paymentWebhookPayload is the normalized confirmation the gateway adapter
// posts after verifying the provider's signature.
type paymentWebhookPayload struct {
	AccountID        uuid.UUID `json:"account_id"`
	PlanID           string    `json:"plan_id"`
	AmountMinorUnits int64     `json:"amount_minor_units"`
	Currency         string    `json:"currency"`
	PaymentReference string    `json:"payment_reference"`
	ConfirmedAt      time.Time `json:"confirmed_at"`
}

func handlePaymentWebhook(payments PaymentConfirmer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload paymentWebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}

		err := payments.ConfirmPayment(r.Context(), subscription.PaymentEvent{
			AccountID:   payload.AccountID,
			PlanID:      payload.PlanID,
			Amount:      plans.Money{Amount: payload.AmountMinorUnits, Currency: payload.Currency},
			Reference:   payload.PaymentReference,
			ConfirmedAt: payload.ConfirmedAt,
		})
		switch {
		case errors.Is(err, subscription.ErrMissingPaymentRef),
			errors.Is(err, subscription.ErrMissingAccountID):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, subscription.ErrInvalidState):
			// Terminal: retrying cannot succeed, so acknowledge to stop the
			// gateway's redelivery loop.
			writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
		case err != nil:
			// Transient: a non-2xx tells the gateway to retry later.
			writeError(w, http.StatusInternalServerError, "failed to process confirmation")
		default:
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
