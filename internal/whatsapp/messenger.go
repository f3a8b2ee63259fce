package whatsapp

import (
	"context"

	"github.com/alijaya/ispportal/internal/settings"
)

// Messenger decorates messages with the company header and footer from the
// operator settings before handing them to a Sender.
type Messenger struct {
	sender   Sender
	settings settings.Provider
}

func NewMessenger(sender Sender, provider settings.Provider) *Messenger {
	return &Messenger{sender: sender, settings: provider}
}

// Format applies the current header and footer.
func (m *Messenger) Format(message string) string {
	snap := m.settings.Snapshot()
	return Decorate(
		snap.String(settings.KeyCompanyHeader, settings.DefaultCompanyHeader),
		snap.String(settings.KeyFooterInfo, settings.DefaultFooterInfo),
		message,
	)
}

// SendFormatted decorates and sends a message to one recipient.
func (m *Messenger) SendFormatted(ctx context.Context, to, message string) error {
	return m.sender.Send(ctx, FormatJID(to), m.Format(message))
}

// Send passes an already formatted message through.
func (m *Messenger) Send(ctx context.Context, to, text string) error {
	return m.sender.Send(ctx, FormatJID(to), text)
}
