package subscription

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/plans"
)

// PaymentEvent is an opaque payment confirmation from the gateway webhook.
// The engine treats the gateway protocol as an external concern; all it needs
// is the account, the plan paid for, the amount, and a stable reference for
// de-duplication across webhook redeliveries.
type PaymentEvent struct {
	AccountID   uuid.UUID
	PlanID      string
	Amount      plans.Money
	Reference   string
	ConfirmedAt time.Time
}

// Validate checks the event carries the fields de-duplication and the
// transition depend on.
func (e PaymentEvent) Validate() error {
	if e.Reference == "" {
		return ErrMissingPaymentRef
	}
	if e.AccountID == uuid.Nil {
		return ErrMissingAccountID
	}
	return nil
}
