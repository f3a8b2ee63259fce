package whatsapp

import (
	"strings"
)

const (
	userSuffix  = "@s.whatsapp.net"
	groupSuffix = "@g.us"
)

// IsGroup reports whether the address is a group chat id.
func IsGroup(address string) bool {
	return strings.HasSuffix(address, groupSuffix)
}

// NormalizePhone strips formatting and converts a local number to the
// international 62 form: "0812-3456" becomes "628123456".
func NormalizePhone(number string) string {
	digits := onlyDigits(number)
	if digits == "" {
		return ""
	}
	digits = strings.TrimPrefix(digits, "0")
	if !strings.HasPrefix(digits, "62") {
		digits = "62" + digits
	}
	return digits
}

// LocalPhone converts 62xxx back to 0xxx, the form used in device tags.
func LocalPhone(number string) string {
	digits := onlyDigits(number)
	if strings.HasPrefix(digits, "62") {
		return "0" + digits[2:]
	}
	return digits
}

// FormatJID turns a phone number into a personal chat id. Group ids and
// addresses that already carry a suffix pass through.
func FormatJID(address string) string {
	address = strings.TrimSpace(address)
	if IsGroup(address) || strings.HasSuffix(address, userSuffix) {
		return address
	}
	digits := onlyDigits(address)
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(digits, "0") {
		digits = "62" + digits[1:]
	}
	return digits + userSuffix
}

// Decorate wraps a message in the company header and footer.
func Decorate(header, footer, message string) string {
	var b strings.Builder
	if header != "" {
		b.WriteString("🏢 *")
		b.WriteString(header)
		b.WriteString("*\n\n")
	}
	b.WriteString(message)
	if footer != "" {
		b.WriteString("\n\n")
		b.WriteString(footer)
	}
	return b.String()
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
