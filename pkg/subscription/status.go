package subscription

// Status represents the current state of a subscription.
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// transition is a directed edge in the subscription state machine.
type transition struct {
	from Status
	to   Status
}

// validTransitions defines every allowed state change. Cancelled is terminal:
// the record keeps read access until period end but never transitions again.
var validTransitions = map[transition]bool{
	{StatusTrial, StatusActive}:     true, // trial converted to paid
	{StatusTrial, StatusExpired}:    true, // trial lapsed without conversion
	{StatusTrial, StatusCancelled}:  true,
	{StatusActive, StatusActive}:    true, // renewal or plan change
	{StatusActive, StatusExpired}:   true, // period lapsed
	{StatusActive, StatusCancelled}: true,
	{StatusExpired, StatusActive}:   true, // re-subscription
}

// CanTransition reports whether a state change is allowed.
func CanTransition(from, to Status) bool {
	return validTransitions[transition{from, to}]
}
