package monitor

import "time"

// Config carries the externally configurable scan parameters.
type Config struct {
	// ScanInterval is how often the fixed-interval scan runs.
	ScanInterval time.Duration `env:"MONITOR_SCAN_INTERVAL" envDefault:"5m"`

	// WarningThresholds lists the days-remaining marks that trigger advance
	// warnings. Each threshold fires at most once per record per period.
	WarningThresholds []int `env:"MONITOR_WARNING_DAYS" envDefault:"7,3,1" envSeparator:","`

	// DailySweepSchedule is a cron expression for the broader daily sweep
	// that catches records missed while no instance was scanning.
	DailySweepSchedule string `env:"MONITOR_DAILY_SWEEP" envDefault:"0 3 * * *"`
}
