package plans

import "errors"

var (
	ErrInvalidPeriod            = errors.New("invalid billing period")
	ErrInvalidPlanConfiguration = errors.New("invalid plan configuration")
	ErrFreePlanMissing          = errors.New("catalog must define the free plan")
	ErrFailedToLoadPlans        = errors.New("failed to load plan catalog")
)
