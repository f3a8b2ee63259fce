package monitor

import (
	"context"
	"fmt"

	"github.com/alijaya/ispportal/internal/metrics"
	"github.com/alijaya/ispportal/internal/notify"
	"github.com/alijaya/ispportal/internal/telemetry"
	"github.com/rs/zerolog"
)

// Dispatcher delivers a formatted alert to the technicians.
type Dispatcher interface {
	NotifyRecipients(ctx context.Context, message string, priority notify.Priority) bool
}

// Report summarises one CheckAndNotify pass.
type Report struct {
	Checked    int `json:"checked"`
	NoData     int `json:"noData"`
	Healthy    int `json:"healthy"`
	Sent       int `json:"sent"`
	Suppressed int `json:"suppressed"`
	Failed     int `json:"failed"`
	Errors     int `json:"errors"`
}

type outcome int

const (
	outcomeNoData outcome = iota
	outcomeHealthy
	outcomeSent
	outcomeSuppressed
	outcomeFailed
)

// Notifier evaluates devices against thresholds and sends deduplicated alerts.
type Notifier struct {
	cache    Cache
	dispatch Dispatcher
	format   func(string) string
	clock    Clock
	logger   zerolog.Logger
}

// NewNotifier builds a Notifier. format decorates the alert body with the
// company header and footer; nil sends it as is.
func NewNotifier(cache Cache, dispatch Dispatcher, format func(string) string, clock Clock, logger zerolog.Logger) *Notifier {
	if format == nil {
		format = func(s string) string { return s }
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Notifier{
		cache:    cache,
		dispatch: dispatch,
		format:   format,
		clock:    clock,
		logger:   logger,
	}
}

// CheckAndNotify evaluates every device in order. A failing device is logged
// and counted, the rest of the batch still runs.
func (n *Notifier) CheckAndNotify(ctx context.Context, devices []telemetry.Tree, th Thresholds) Report {
	var report Report

	for _, device := range devices {
		if ctx.Err() != nil {
			break
		}
		report.Checked++

		result, err := n.checkDevice(ctx, device, th)
		if err != nil {
			report.Errors++
			n.logger.Error().Err(err).Str("device", telemetry.ID(device)).Msg("error processing device")
			continue
		}

		switch result {
		case outcomeNoData:
			report.NoData++
		case outcomeHealthy:
			report.Healthy++
		case outcomeSent:
			report.Sent++
		case outcomeSuppressed:
			report.Suppressed++
		case outcomeFailed:
			report.Failed++
		}
	}
	return report
}

func (n *Notifier) checkDevice(ctx context.Context, device telemetry.Tree, th Thresholds) (result outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	deviceID := telemetry.ID(device)
	if deviceID == "" {
		deviceID = telemetry.SerialNumber(device)
	}
	value, ok, err := telemetry.ResolveFloat(device, telemetry.RXPowerPaths)
	if !ok {
		return outcomeNoData, nil
	}
	if err != nil {
		return outcomeNoData, fmt.Errorf("rx power: %w", err)
	}

	tier, alert := Classify(value, th)
	if !alert {
		return outcomeHealthy, nil
	}

	now := n.clock.Now()
	last, seen, err := n.cache.Last(ctx, deviceID, tier)
	if err != nil {
		return outcomeFailed, fmt.Errorf("notification cache: %w", err)
	}
	if seen && now.Sub(last) < th.Interval {
		metrics.IncNotification(string(tier), metrics.NotifySuppressed)
		return outcomeSuppressed, nil
	}

	serial := telemetry.SerialNumber(device)
	message := n.format(BuildMessage(tier, serial, telemetry.Phone(device), value, th.Threshold(tier)))

	priority := notify.PriorityNormal
	if tier == TierCritical {
		priority = notify.PriorityHigh
	}

	if !n.dispatch.NotifyRecipients(ctx, message, priority) {
		metrics.IncNotification(string(tier), metrics.NotifyFailed)
		n.logger.Warn().Str("device", serial).Str("tier", string(tier)).Msg("rx power alert not delivered")
		return outcomeFailed, nil
	}

	if err := n.cache.Mark(ctx, deviceID, tier, now); err != nil {
		n.logger.Warn().Err(err).Str("device", deviceID).Msg("failed to record notification")
	}
	metrics.IncNotification(string(tier), metrics.NotifySent)
	n.logger.Info().
		Str("device", serial).
		Str("tier", string(tier)).
		Float64("rx_power", value).
		Msg("rx power alert sent")
	return outcomeSent, nil
}
