package whatsapp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatJID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"081234567890", "6281234567890@s.whatsapp.net"},
		{"+62 812-3456-7890", "6281234567890@s.whatsapp.net"},
		{"6281234567890@s.whatsapp.net", "6281234567890@s.whatsapp.net"},
		{"120363025246125888@g.us", "120363025246125888@g.us"},
		{"  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatJID(tt.in))
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "6281234567890", NormalizePhone("081234567890"))
	assert.Equal(t, "6281234567890", NormalizePhone("6281234567890"))
	assert.Equal(t, "6281234567890", NormalizePhone("81234567890"))
	assert.Equal(t, "", NormalizePhone("n/a"))
	assert.Equal(t, "081234567890", LocalPhone("+6281234567890"))
	assert.Equal(t, "081234567890", LocalPhone("081234567890"))
}

func TestDecorate(t *testing.T) {
	got := Decorate("ACME NET", "Internet Tanpa Batas", "Halo")
	assert.Equal(t, "🏢 *ACME NET*\n\nHalo\n\nInternet Tanpa Batas", got)
	assert.Equal(t, "Halo", Decorate("", "", "Halo"))
}
