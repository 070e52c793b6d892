package referral

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/plans"
)

// Earning is one referral commission accrued for one paid billing cycle of a
// referred account. Rows are append-only; for a given (referrer, referee)
// pair the cycle index runs 1..earning-window and never exceeds it.
type Earning struct {
	ID         uuid.UUID
	ReferrerID uuid.UUID
	RefereeID  uuid.UUID
	PlanID     string
	Amount     plans.Money
	CycleIndex int // 1-based count of paid cycles attributed to this referee
	CreatedAt  time.Time
}
