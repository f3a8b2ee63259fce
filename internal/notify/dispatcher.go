// Package notify fans technician alerts out to the technician group and to
// each technician number.
package notify

import (
	"context"
	"strings"
	"time"

	"github.com/alijaya/ispportal/internal/settings"
	"github.com/alijaya/ispportal/internal/whatsapp"
	"github.com/rs/zerolog"
)

// Priority of a technician message.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"

	importantMarker = "🚨 *PENTING*"

	// DefaultSendDelay spaces out sequential sends to one gateway.
	DefaultSendDelay = 500 * time.Millisecond
)

// Recipients of technician messages.
type Recipients struct {
	GroupID string
	Numbers []string
}

// RecipientsFrom reads technician_group_id and technician_numbers.
func RecipientsFrom(snap settings.Snapshot) Recipients {
	return Recipients{
		GroupID: snap.String(settings.KeyTechnicianGroupID, ""),
		Numbers: snap.Strings(settings.KeyTechnicianNumbers),
	}
}

// Attempt is one delivery attempt, recorded in the notification log.
type Attempt struct {
	Recipient string
	Message   string
	Priority  Priority
	Err       error
	At        time.Time
}

// Log persists delivery attempts.
type Log interface {
	Record(ctx context.Context, attempt Attempt)
}

type nopLog struct{}

func (nopLog) Record(context.Context, Attempt) {}

// Dispatcher sends technician messages.
type Dispatcher struct {
	sender   whatsapp.Sender
	settings settings.Provider
	log      Log
	logger   zerolog.Logger
	now      func() time.Time
}

func NewDispatcher(sender whatsapp.Sender, provider settings.Provider, log Log, logger zerolog.Logger) *Dispatcher {
	if log == nil {
		log = nopLog{}
	}
	return &Dispatcher{
		sender:   sender,
		settings: provider,
		log:      log,
		logger:   logger,
		now:      time.Now,
	}
}

// MarkPriority inserts the important marker after the header block when the
// message has one, otherwise prepends it.
func MarkPriority(message string, priority Priority) string {
	if priority != PriorityHigh {
		return message
	}
	lines := strings.Split(message, "\n")
	if len(lines) > 2 {
		marked := make([]string, 0, len(lines)+1)
		marked = append(marked, lines[:2]...)
		marked = append(marked, importantMarker)
		marked = append(marked, lines[2:]...)
		return strings.Join(marked, "\n")
	}
	return importantMarker + "\n" + message
}

// NotifyRecipients sends a formatted message to the configured technician
// group and numbers. Every recipient is tried; it returns true when at
// least one delivery succeeded.
func (d *Dispatcher) NotifyRecipients(ctx context.Context, message string, priority Priority) bool {
	return d.NotifyTo(ctx, RecipientsFrom(d.settings.Snapshot()), message, priority)
}

// NotifyTo is NotifyRecipients with explicit recipients.
func (d *Dispatcher) NotifyTo(ctx context.Context, to Recipients, message string, priority Priority) bool {
	message = MarkPriority(message, priority)
	delivered := false

	if to.GroupID != "" {
		if d.deliver(ctx, to.GroupID, message, priority) {
			delivered = true
		}
	}

	for _, number := range to.Numbers {
		jid := whatsapp.FormatJID(number)
		if jid == "" {
			d.logger.Warn().Str("number", number).Msg("skipping invalid technician number")
			continue
		}
		if d.deliver(ctx, jid, message, priority) {
			delivered = true
		}
	}

	if to.GroupID == "" && len(to.Numbers) == 0 {
		d.logger.Warn().Msg("no technician group or numbers configured")
	}
	return delivered
}

// Result of one send in SendGroup.
type Result struct {
	Number  string `json:"number"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SendGroup sends the same message to several numbers in order, waiting
// delay between sends. Blank numbers are skipped.
func (d *Dispatcher) SendGroup(ctx context.Context, numbers []string, message string, delay time.Duration) []Result {
	var results []Result
	for _, number := range numbers {
		if strings.TrimSpace(number) == "" {
			continue
		}
		if len(results) > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(delay):
			}
		}

		jid := whatsapp.FormatJID(number)
		err := d.sender.Send(ctx, jid, message)
		d.log.Record(ctx, Attempt{Recipient: jid, Message: message, Priority: PriorityNormal, Err: err, At: d.now()})

		res := Result{Number: whatsapp.NormalizePhone(number), Success: err == nil}
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results
}

func (d *Dispatcher) deliver(ctx context.Context, to, message string, priority Priority) bool {
	err := d.sender.Send(ctx, to, message)
	d.log.Record(ctx, Attempt{Recipient: to, Message: message, Priority: priority, Err: err, At: d.now()})
	if err != nil {
		d.logger.Error().Err(err).Str("to", to).Msg("failed to notify technician")
		return false
	}
	d.logger.Info().Str("to", to).Msg("technician notified")
	return true
}
