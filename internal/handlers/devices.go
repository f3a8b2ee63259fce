package handlers

import (
	"time"

	"github.com/alijaya/ispportal/internal/genieacs"
	"github.com/alijaya/ispportal/internal/telemetry"
)

// DeviceView is the flattened device record shown to admins and customers.
type DeviceView struct {
	ID string `json:"id"`
	telemetry.DeviceInfo
	Phone          string     `json:"phone"`
	Tags           []string   `json:"tags"`
	Online         bool       `json:"isOnline"`
	Status         string     `json:"status"`
	LastInform     *time.Time `json:"lastInform,omitempty"`
	MinutesAgo     int        `json:"minutesAgo"`
	RXPower        string     `json:"rxPower"`
	Temperature    string     `json:"temperature"`
	Uptime         string     `json:"uptime"`
	PPPoEIP        string     `json:"pppoeIP"`
	PPPUsername    string     `json:"pppUsername"`
	ConnectionType string     `json:"connectionType"`
	DNSServers     string     `json:"dnsServers"`
	SSID           string     `json:"ssid"`
	SSID5G         string     `json:"ssid5G"`
	UserConnected  string     `json:"userConnected"`
}

func withUnit(v, unit string) string {
	if v == telemetry.NotAvailable {
		return v
	}
	return v + unit
}

func viewDevice(tree telemetry.Tree, now time.Time) DeviceView {
	status := genieacs.DeviceStatus(tree, now)
	tags := telemetry.Tags(tree)
	if tags == nil {
		tags = []string{}
	}
	return DeviceView{
		ID:             telemetry.ID(tree),
		DeviceInfo:     telemetry.BasicInfo(tree),
		Phone:          telemetry.Phone(tree),
		Tags:           tags,
		Online:         status.Online,
		Status:         status.Status,
		LastInform:     status.LastInform,
		MinutesAgo:     status.MinutesAgo,
		RXPower:        withUnit(telemetry.Resolve(tree, telemetry.RXPowerPaths), " dBm"),
		Temperature:    withUnit(telemetry.Resolve(tree, telemetry.TemperaturePaths), "°C"),
		Uptime:         telemetry.FormatUptime(telemetry.Resolve(tree, telemetry.UptimePaths)),
		PPPoEIP:        telemetry.Resolve(tree, telemetry.PPPoEIPPaths),
		PPPUsername:    telemetry.Resolve(tree, telemetry.PPPUsernamePaths),
		ConnectionType: telemetry.ResolveOr(tree, telemetry.ConnectionTypePaths, "PPPoE"),
		DNSServers:     telemetry.ResolveOr(tree, telemetry.DNSServerPaths, "8.8.8.8, 8.8.4.4"),
		SSID:           telemetry.Resolve(tree, telemetry.SSIDPaths),
		SSID5G:         telemetry.Resolve(tree, telemetry.SSID5GPaths),
		UserConnected:  telemetry.ResolveOr(tree, telemetry.UserConnectedPaths, "0"),
	}
}
