package monitor

import (
	"fmt"
	"strconv"
)

func formatDBm(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// BuildMessage renders the technician alert body for one device.
func BuildMessage(tier Tier, serial, phone string, value, threshold float64) string {
	if tier == TierCritical {
		return fmt.Sprintf("🚨 *RX POWER CRITICAL ALERT*\n\n"+
			"Device: %s\n"+
			"Phone: %s\n"+
			"RX Power: %s dBm\n"+
			"Threshold: %s dBm\n\n"+
			"⚠️ RX Power sudah melewati batas kritis!\n"+
			"Segera lakukan pengecekan dan perbaikan.",
			serial, phone, formatDBm(value), formatDBm(threshold))
	}
	return fmt.Sprintf("⚠️ *RX POWER WARNING*\n\n"+
		"Device: %s\n"+
		"Phone: %s\n"+
		"RX Power: %s dBm\n"+
		"Threshold: %s dBm\n\n"+
		"📊 RX Power mendekati batas peringatan.\n"+
		"Monitor dan siapkan tindakan jika diperlukan.",
		serial, phone, formatDBm(value), formatDBm(threshold))
}
