package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "ispportal_"

	ResultSuccess = "success"
	ResultError   = "error"

	NotifySent       = "sent"
	NotifySuppressed = "suppressed"
	NotifyFailed     = "failed"
)

var (
	registerOnce sync.Once

	// Registry holds every portal collector; served at /metrics.
	Registry = prometheus.NewRegistry()

	monitorCycles        prometheus.Counter
	monitorSkippedCycles prometheus.Counter
	monitorCycleLatency  prometheus.Histogram
	devicesChecked       prometheus.Counter
	deviceErrors         prometheus.Counter
	rxNotifications      *prometheus.CounterVec
	acsRequests          *prometheus.CounterVec
	messagesSent         *prometheus.CounterVec
)

// Init registers portal metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		monitorCycles = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "rx_monitor_cycles_total",
			Help: "Completed RX power poll cycles",
		})
		monitorSkippedCycles = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "rx_monitor_skipped_cycles_total",
			Help: "Poll cycles skipped because the previous one was still running",
		})
		monitorCycleLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "rx_monitor_cycle_seconds",
			Help:    "RX power poll cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		})
		devicesChecked = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "rx_monitor_devices_checked_total",
			Help: "Devices evaluated by the RX power monitor",
		})
		deviceErrors = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "rx_monitor_device_errors_total",
			Help: "Devices that failed evaluation",
		})
		rxNotifications = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rx_notifications_total",
				Help: "RX power notifications by tier and result",
			},
			[]string{"tier", "result"},
		)
		acsRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "acs_requests_total",
				Help: "ACS API requests by operation and result",
			},
			[]string{"op", "result"},
		)
		messagesSent = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "whatsapp_messages_total",
				Help: "Outbound WhatsApp messages by result",
			},
			[]string{"result"},
		)

		Registry.MustRegister(
			monitorCycles,
			monitorSkippedCycles,
			monitorCycleLatency,
			devicesChecked,
			deviceErrors,
			rxNotifications,
			acsRequests,
			messagesSent,
		)
	})
}

// ObserveCycle records one finished poll cycle.
func ObserveCycle(duration time.Duration, checked, failed int) {
	if monitorCycles == nil {
		return
	}
	monitorCycles.Inc()
	monitorCycleLatency.Observe(duration.Seconds())
	devicesChecked.Add(float64(checked))
	deviceErrors.Add(float64(failed))
}

func IncSkippedCycle() {
	if monitorSkippedCycles != nil {
		monitorSkippedCycles.Inc()
	}
}

func IncNotification(tier, result string) {
	if rxNotifications != nil {
		rxNotifications.WithLabelValues(tier, result).Inc()
	}
}

func IncACSRequest(op string, err error) {
	if acsRequests != nil {
		acsRequests.WithLabelValues(op, result(err)).Inc()
	}
}

func IncMessage(err error) {
	if messagesSent != nil {
		messagesSent.WithLabelValues(result(err)).Inc()
	}
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
