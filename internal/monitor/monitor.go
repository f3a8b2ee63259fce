package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alijaya/ispportal/internal/metrics"
	"github.com/alijaya/ispportal/internal/settings"
	"github.com/alijaya/ispportal/internal/telemetry"
	"github.com/rs/zerolog"
)

// DefaultStartDelay postpones the first cycle after startup.
const DefaultStartDelay = 10 * time.Second

var ErrCycleRunning = errors.New("rx power check already running")

// DeviceSource lists the devices to evaluate.
type DeviceSource interface {
	ListDevices(ctx context.Context) ([]telemetry.Tree, error)
}

// SourceFactory builds a DeviceSource from the settings of the current cycle.
type SourceFactory func(snap settings.Snapshot) DeviceSource

// pruner is implemented by caches that need explicit eviction.
type pruner interface {
	Prune(now time.Time, interval time.Duration) int
}

// Status is the monitor state shown in the admin panel.
type Status struct {
	Enabled    bool       `json:"enabled"`
	Running    bool       `json:"running"`
	Scheduled  bool       `json:"scheduled"`
	Warning    float64    `json:"warningThreshold"`
	Critical   float64    `json:"criticalThreshold"`
	IntervalMS int64      `json:"intervalMs"`
	LastRun    *time.Time `json:"lastRun,omitempty"`
	LastError  string     `json:"lastError,omitempty"`
	LastReport Report     `json:"lastReport"`
}

// Monitor runs the notifier on a schedule.
type Monitor struct {
	settings   settings.Provider
	sources    SourceFactory
	notifier   *Notifier
	cache      Cache
	clock      Clock
	logger     zerolog.Logger
	startDelay time.Duration

	running atomic.Bool

	mu         sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	wg         sync.WaitGroup
	lastRun    time.Time
	lastReport Report
	lastErr    string
}

// Options configures a Monitor.
type Options struct {
	Settings   settings.Provider
	Sources    SourceFactory
	Notifier   *Notifier
	Cache      Cache
	Clock      Clock
	Logger     zerolog.Logger
	StartDelay time.Duration
}

func New(opts Options) *Monitor {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.StartDelay <= 0 {
		opts.StartDelay = DefaultStartDelay
	}
	return &Monitor{
		settings:   opts.Settings,
		sources:    opts.Sources,
		notifier:   opts.Notifier,
		cache:      opts.Cache,
		clock:      opts.Clock,
		logger:     opts.Logger,
		startDelay: opts.StartDelay,
	}
}

// Start schedules the first cycle after the start delay and then one cycle
// per rx_power_notification_interval. A tick that lands while a cycle is
// still running is skipped. Calling Start twice is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	th := ThresholdsFrom(m.settings.Snapshot())
	m.logger.Info().
		Dur("start_delay", m.startDelay).
		Dur("interval", th.Interval).
		Msg("RX power monitor started")

	go m.loop(ctx, m.done)
}

// Stop cancels the schedule and waits for an in-flight cycle to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.wg.Wait()
	m.logger.Info().Msg("RX power monitor stopped")
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := m.clock.NewTimer(m.startDelay)
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C():
			m.trigger(ctx)
			timer = m.clock.NewTimer(ThresholdsFrom(m.settings.Snapshot()).Interval)
		}
	}
}

// trigger launches a cycle in the background unless one is running.
func (m *Monitor) trigger(ctx context.Context) {
	if !m.running.CompareAndSwap(false, true) {
		metrics.IncSkippedCycle()
		m.logger.Warn().Msg("previous RX power check still running, skipping this cycle")
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.running.Store(false)
		if _, err := m.cycle(ctx); err != nil {
			m.logger.Error().Err(err).Msg("RX power check failed")
		}
	}()
}

// RunOnce runs a cycle now and returns its report. It fails with
// ErrCycleRunning when a cycle is already in progress.
func (m *Monitor) RunOnce(ctx context.Context) (Report, error) {
	if !m.running.CompareAndSwap(false, true) {
		return Report{}, ErrCycleRunning
	}
	defer m.running.Store(false)
	return m.cycle(ctx)
}

func (m *Monitor) cycle(ctx context.Context) (Report, error) {
	start := m.clock.Now()
	snap := m.settings.Snapshot()

	if !snap.Bool(settings.KeyRXNotifyEnable, true) {
		m.logger.Debug().Msg("RX power notifications disabled, skipping check")
		return Report{}, nil
	}

	th := ThresholdsFrom(snap)
	if p, ok := m.cache.(pruner); ok {
		if removed := p.Prune(start, th.Interval); removed > 0 {
			m.logger.Debug().Int("removed", removed).Msg("pruned notification cache")
		}
	}

	devices, err := m.sources(snap).ListDevices(ctx)
	if err != nil {
		err = fmt.Errorf("list devices: %w", err)
		m.record(start, Report{}, err)
		return Report{}, err
	}

	m.logger.Info().
		Int("devices", len(devices)).
		Float64("warning", th.Warning).
		Float64("critical", th.Critical).
		Msg("checking RX power")

	report := m.notifier.CheckAndNotify(ctx, devices, th)
	m.record(start, report, nil)
	metrics.ObserveCycle(m.clock.Now().Sub(start), report.Checked, report.Errors)

	m.logger.Info().
		Int("checked", report.Checked).
		Int("sent", report.Sent).
		Int("suppressed", report.Suppressed).
		Int("failed", report.Failed).
		Int("errors", report.Errors).
		Msg("RX power check finished")
	return report, nil
}

func (m *Monitor) record(at time.Time, report Report, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRun = at
	m.lastReport = report
	m.lastErr = ""
	if err != nil {
		m.lastErr = err.Error()
	}
}

// Status reports the current thresholds and the result of the last cycle.
func (m *Monitor) Status() Status {
	snap := m.settings.Snapshot()
	th := ThresholdsFrom(snap)

	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		Enabled:    snap.Bool(settings.KeyRXNotifyEnable, true),
		Running:    m.running.Load(),
		Scheduled:  m.cancel != nil,
		Warning:    th.Warning,
		Critical:   th.Critical,
		IntervalMS: th.Interval.Milliseconds(),
		LastError:  m.lastErr,
		LastReport: m.lastReport,
	}
	if !m.lastRun.IsZero() {
		last := m.lastRun
		st.LastRun = &last
	}
	return st
}
