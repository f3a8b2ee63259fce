// Package monitor polls CPE optical receive power and alerts technicians
// when a device crosses the warning or critical threshold.
package monitor

import (
	"time"

	"github.com/alijaya/ispportal/internal/settings"
)

// Tier is a severity level.
type Tier string

const (
	TierWarning  Tier = "WARNING"
	TierCritical Tier = "CRITICAL"
)

// Thresholds are dBm cutoffs plus the minimum re-notification interval.
type Thresholds struct {
	Warning  float64
	Critical float64
	Interval time.Duration
}

// ThresholdsFrom reads rx_power_warning, rx_power_critical and
// rx_power_notification_interval (milliseconds).
func ThresholdsFrom(snap settings.Snapshot) Thresholds {
	interval := snap.Int(settings.KeyRXNotifyInterval, settings.DefaultRXInterval)
	if interval <= 0 {
		interval = settings.DefaultRXInterval
	}
	return Thresholds{
		Warning:  snap.Float(settings.KeyRXWarning, settings.DefaultRXWarning),
		Critical: snap.Float(settings.KeyRXCritical, settings.DefaultRXCritical),
		Interval: time.Duration(interval) * time.Millisecond,
	}
}

// Classify checks the critical cutoff first so a value below both is only
// reported as critical. ok is false for healthy values.
func Classify(value float64, th Thresholds) (Tier, bool) {
	switch {
	case value <= th.Critical:
		return TierCritical, true
	case value <= th.Warning:
		return TierWarning, true
	}
	return "", false
}

// Threshold returns the cutoff that produced the tier.
func (th Thresholds) Threshold(tier Tier) float64 {
	if tier == TierCritical {
		return th.Critical
	}
	return th.Warning
}
