package referral

import "errors"

var (
	ErrDuplicateCycle  = errors.New("referral earning for this cycle already recorded")
	ErrFailedToAccrue  = errors.New("failed to accrue referral earning")
	ErrFailedToCredit  = errors.New("failed to credit referrer balance")
	ErrInvalidConfig   = errors.New("invalid referral configuration")
	ErrNegativeBalance = errors.New("withdrawal exceeds balance")
)
