package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// AccountID records the account identifier under the key "account_id".
// If id is nil, it returns an empty Attr.
func AccountID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("account_id", id)
}

// PlanID records a plan identifier under the key "plan_id".
func PlanID(id string) slog.Attr {
	return slog.String("plan_id", id)
}

// Feature records a metered feature type under the key "feature".
func Feature(name any) slog.Attr {
	return slog.Any("feature", name)
}

// PaymentReference records the gateway reference under the key "payment_reference".
func PaymentReference(ref string) slog.Attr {
	return slog.String("payment_reference", ref)
}

// ThresholdDays records a warning threshold under the key "threshold_days".
func ThresholdDays(days int) slog.Attr {
	return slog.Int("threshold_days", days)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
