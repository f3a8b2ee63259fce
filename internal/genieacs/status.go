package genieacs

import (
	"time"

	"github.com/alijaya/ispportal/internal/telemetry"
)

// OnlineWindow is how recent the last inform must be for a device to count
// as online.
const OnlineWindow = 15 * time.Minute

const (
	StatusOnline  = "Online"
	StatusOffline = "Offline"
)

type Status struct {
	Online     bool       `json:"online"`
	Status     string     `json:"status"`
	LastInform *time.Time `json:"lastInform,omitempty"`
	MinutesAgo int        `json:"minutesAgo"`
}

// DeviceStatus reports whether the device informed within OnlineWindow.
// A device that never informed is offline.
func DeviceStatus(tree telemetry.Tree, now time.Time) Status {
	last, ok := telemetry.LastInform(tree)
	if !ok {
		return Status{Status: StatusOffline, MinutesAgo: -1}
	}

	age := now.Sub(last)
	status := Status{
		Online:     age < OnlineWindow,
		LastInform: &last,
		MinutesAgo: int(age / time.Minute),
	}
	if status.Online {
		status.Status = StatusOnline
	} else {
		status.Status = StatusOffline
	}
	return status
}

// Summary aggregates online state over a device list.
type Summary struct {
	Total      int     `json:"total"`
	Online     int     `json:"online"`
	Offline    int     `json:"offline"`
	Percentage float64 `json:"percentage"`
}

func Summarize(devices []telemetry.Tree, now time.Time) Summary {
	s := Summary{Total: len(devices)}
	for _, device := range devices {
		if DeviceStatus(device, now).Online {
			s.Online++
		}
	}
	s.Offline = s.Total - s.Online
	if s.Total > 0 {
		s.Percentage = float64(s.Online*10000/s.Total) / 100
	}
	return s
}
