package usage

import "errors"

var (
	ErrCounterNotFound    = errors.New("usage counter not found")
	ErrNoSubscription     = errors.New("account has no subscription record")
	ErrFailedToReadUsage  = errors.New("failed to read usage counter")
	ErrFailedToIncrement  = errors.New("failed to increment usage counter")
	ErrFailedToResetUsage = errors.New("failed to reset usage counters")
)
