package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alijaya/ispportal/internal/settings"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu   sync.Mutex
	fail map[string]bool
	sent []string
	text []string
}

func (f *fakeSender) Send(_ context.Context, to, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[to] {
		return errors.New("gateway unreachable")
	}
	f.sent = append(f.sent, to)
	f.text = append(f.text, text)
	return nil
}

type memLog struct {
	attempts []Attempt
}

func (m *memLog) Record(_ context.Context, a Attempt) {
	m.attempts = append(m.attempts, a)
}

func provider(values map[string]interface{}) settings.Provider {
	return settings.Static(settings.FromMap(values))
}

func TestMarkPriority(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		priority Priority
		want     string
	}{
		{
			name:     "after header block",
			message:  "🏢 *ACME*\n\nbody line\nfooter",
			priority: PriorityHigh,
			want:     "🏢 *ACME*\n\n🚨 *PENTING*\nbody line\nfooter",
		},
		{
			name:     "short message is prefixed",
			message:  "one\ntwo",
			priority: PriorityHigh,
			want:     "🚨 *PENTING*\none\ntwo",
		},
		{
			name:     "normal untouched",
			message:  "a\nb\nc",
			priority: PriorityNormal,
			want:     "a\nb\nc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MarkPriority(tt.message, tt.priority))
		})
	}
}

func TestNotifyRecipientsIsolatesFailures(t *testing.T) {
	sender := &fakeSender{fail: map[string]bool{"1203630@g.us": true, "62811111111@s.whatsapp.net": true}}
	log := &memLog{}
	d := NewDispatcher(sender, provider(map[string]interface{}{
		settings.KeyTechnicianGroupID: "1203630@g.us",
		settings.KeyTechnicianNumbers: []interface{}{"0811111111", "0822-2222-222", "abc"},
	}), log, zerolog.Nop())

	ok := d.NotifyRecipients(context.Background(), "alert", PriorityNormal)

	assert.True(t, ok)
	assert.Equal(t, []string{"628222222222@s.whatsapp.net"}, sender.sent)
	require.Len(t, log.attempts, 3)
	assert.Error(t, log.attempts[0].Err)
	assert.Error(t, log.attempts[1].Err)
	assert.NoError(t, log.attempts[2].Err)
}

func TestNotifyRecipientsAllFail(t *testing.T) {
	sender := &fakeSender{fail: map[string]bool{"1203630@g.us": true}}
	d := NewDispatcher(sender, provider(map[string]interface{}{
		settings.KeyTechnicianGroupID: "1203630@g.us",
	}), nil, zerolog.Nop())

	assert.False(t, d.NotifyRecipients(context.Background(), "alert", PriorityHigh))
}

func TestNotifyRecipientsNoneConfigured(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, provider(nil), nil, zerolog.Nop())

	assert.False(t, d.NotifyRecipients(context.Background(), "alert", PriorityNormal))
	assert.Empty(t, sender.sent)
}

func TestNotifyRecipientsGroupOnly(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, provider(map[string]interface{}{
		settings.KeyTechnicianGroupID: "1203630@g.us",
	}), nil, zerolog.Nop())

	assert.True(t, d.NotifyRecipients(context.Background(), "h\n\nbody", PriorityHigh))
	assert.Equal(t, []string{"h\n\n🚨 *PENTING*\nbody"}, sender.text)
}

func TestSendGroup(t *testing.T) {
	sender := &fakeSender{fail: map[string]bool{"62833@s.whatsapp.net": true}}
	d := NewDispatcher(sender, provider(nil), nil, zerolog.Nop())

	start := time.Now()
	results := d.SendGroup(context.Background(), []string{"0811", " ", "0833", "0844"}, "promo", 10*time.Millisecond)

	require.Len(t, results, 3)
	assert.Equal(t, Result{Number: "62811", Success: true}, results[0])
	assert.False(t, results[1].Success)
	assert.Equal(t, "gateway unreachable", results[1].Error)
	assert.True(t, results[2].Success)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSendGroupStopsOnCancel(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, provider(nil), nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := d.SendGroup(ctx, []string{"0811", "0822"}, "x", time.Second)
	assert.Len(t, results, 1)
}
