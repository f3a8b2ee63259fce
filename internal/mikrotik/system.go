package mikrotik

import "context"

// Resource is the /system/resource snapshot.
type Resource struct {
	Uptime       string `json:"uptime"`
	Version      string `json:"version"`
	BoardName    string `json:"board_name"`
	Architecture string `json:"architecture"`
	CPUCount     int    `json:"cpu_count"`
	CPULoad      int    `json:"cpu_load"`
	FreeMemory   int64  `json:"free_memory"`
	TotalMemory  int64  `json:"total_memory"`
	FreeHDD      int64  `json:"free_hdd"`
	TotalHDD     int64  `json:"total_hdd"`
}

// MemoryUsage is the used share of RAM in percent.
func (r Resource) MemoryUsage() float64 {
	if r.TotalMemory == 0 {
		return 0
	}
	return float64(r.TotalMemory-r.FreeMemory) * 100 / float64(r.TotalMemory)
}

// Interface carries the byte and packet counters used for traffic stats.
type Interface struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Running   bool   `json:"running"`
	Disabled  bool   `json:"disabled"`
	RxBytes   int64  `json:"rx_bytes"`
	TxBytes   int64  `json:"tx_bytes"`
	RxPackets int64  `json:"rx_packets"`
	TxPackets int64  `json:"tx_packets"`
}

func (c *Client) Resource(ctx context.Context) (*Resource, error) {
	records, err := c.Execute(ctx, "/system/resource/print")
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	r := records[0]
	return &Resource{
		Uptime:       r["uptime"],
		Version:      r["version"],
		BoardName:    r["board-name"],
		Architecture: r["architecture-name"],
		CPUCount:     r.Int("cpu-count"),
		CPULoad:      r.Int("cpu-load"),
		FreeMemory:   r.Int64("free-memory"),
		TotalMemory:  r.Int64("total-memory"),
		FreeHDD:      r.Int64("free-hdd-space"),
		TotalHDD:     r.Int64("total-hdd-space"),
	}, nil
}

func (c *Client) Interfaces(ctx context.Context) ([]Interface, error) {
	records, err := c.Execute(ctx, "/interface/print")
	if err != nil {
		return nil, err
	}
	out := make([]Interface, 0, len(records))
	for _, r := range records {
		out = append(out, Interface{
			ID:        r[".id"],
			Name:      r["name"],
			Type:      r["type"],
			Running:   r.Bool("running"),
			Disabled:  r.Bool("disabled"),
			RxBytes:   r.Int64("rx-byte"),
			TxBytes:   r.Int64("tx-byte"),
			RxPackets: r.Int64("rx-packet"),
			TxPackets: r.Int64("tx-packet"),
		})
	}
	return out, nil
}
