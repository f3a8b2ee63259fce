package voucher

import (
	"fmt"
	"strings"
)

// Message renders created vouchers for delivery over WhatsApp.
func Message(batch *Batch, company string) string {
	vouchers := batch.Created()
	onlyVoucher := batch.Type == TypeVoucher
	kind := "User & Password"
	if onlyVoucher {
		kind = "Voucher Saja"
	}

	var b strings.Builder
	b.WriteString("🎫 *Voucher Hotspot*\n\n")
	fmt.Fprintf(&b, "📋 *Profile:* %s\n", batch.Profile)
	fmt.Fprintf(&b, "📊 *Total:* %d voucher\n", len(vouchers))
	fmt.Fprintf(&b, "🎯 *Tipe:* %s\n\n", kind)

	for i, v := range vouchers {
		fmt.Fprintf(&b, "*%d.* \n", i+1)
		if onlyVoucher {
			fmt.Fprintf(&b, "🎫 Voucher: `%s`\n\n", v.Username)
		} else {
			fmt.Fprintf(&b, "👤 Username: `%s`\n", v.Username)
			fmt.Fprintf(&b, "🔑 Password: `%s`\n\n", v.Password)
		}
	}

	b.WriteString("📝 *Cara Penggunaan:*\n")
	b.WriteString("1. Hubungkan ke WiFi hotspot\n")
	b.WriteString("2. Buka browser\n")
	if onlyVoucher {
		b.WriteString("3. Masukkan voucher di kolom username dan password\n")
	} else {
		b.WriteString("3. Masukkan username & password\n")
	}
	b.WriteString("4. Klik login untuk mulai browsing\n\n")
	b.WriteString("⏰ Voucher berlaku sesuai profile yang dipilih\n")
	b.WriteString("📞 Hubungi admin jika ada kendala\n\n")
	if company == "" {
		company = "ISP System"
	}
	fmt.Fprintf(&b, "_Generated by %s_", company)
	return b.String()
}
