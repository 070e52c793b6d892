package subscription

import "errors"

var (
	ErrNotFound              = errors.New("subscription not found")
	ErrAlreadyExists         = errors.New("subscription already exists")
	ErrInvalidState          = errors.New("invalid subscription state transition")
	ErrTrialNotAvailable     = errors.New("plan has no trial period")
	ErrMissingPaymentRef     = errors.New("payment reference is required")
	ErrMissingAccountID      = errors.New("account id is required")
	ErrFailedToSave          = errors.New("failed to save subscription")
	ErrFailedToMarkReference = errors.New("failed to mark payment reference as processed")
)
