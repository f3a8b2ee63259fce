package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alijaya/ispportal/internal/notify"
	"github.com/alijaya/ispportal/internal/telemetry"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{deadline: c.now.Add(d), ch: make(chan time.Time, 1)}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and fires due timers.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	var pending []*fakeTimer
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.deadline.After(now) {
			due = append(due, t)
		} else {
			pending = append(pending, t)
		}
	}
	c.timers = pending
	c.mu.Unlock()

	for _, t := range due {
		t.fire(now)
	}
}

// Waiting returns the number of armed timers.
func (c *fakeClock) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.isStopped() {
			n++
		}
	}
	return n
}

type fakeTimer struct {
	mu       sync.Mutex
	deadline time.Time
	ch       chan time.Time
	stopped  bool
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (t *fakeTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *fakeTimer) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	t.ch <- now
}

type sentMessage struct {
	message  string
	priority notify.Priority
}

type fakeDispatcher struct {
	mu     sync.Mutex
	fail   bool
	sent   []sentMessage
	signal chan struct{}
	block  chan struct{}
}

func (f *fakeDispatcher) NotifyRecipients(_ context.Context, message string, priority notify.Priority) bool {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{message, priority})
	f.mu.Unlock()
	if f.signal != nil {
		f.signal <- struct{}{}
	}
	return !f.fail
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeSource struct {
	mu      sync.Mutex
	devices []telemetry.Tree
	err     error
	calls   int
}

func (f *fakeSource) ListDevices(context.Context) ([]telemetry.Tree, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.devices, f.err
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type failingCache struct{}

func (failingCache) Last(context.Context, string, Tier) (time.Time, bool, error) {
	return time.Time{}, false, errors.New("cache down")
}

func (failingCache) Mark(context.Context, string, Tier, time.Time) error {
	return errors.New("cache down")
}
