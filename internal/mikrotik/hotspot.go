package mikrotik

import "context"

type HotspotActive struct {
	ID              string `json:"id"`
	Server          string `json:"server"`
	User            string `json:"user"`
	Address         string `json:"address"`
	MACAddress      string `json:"mac_address"`
	Uptime          string `json:"uptime"`
	SessionTimeLeft string `json:"session_time_left,omitempty"`
	BytesIn         int64  `json:"bytes_in"`
	BytesOut        int64  `json:"bytes_out"`
}

type HotspotUser struct {
	ID          string `json:"id"`
	Server      string `json:"server,omitempty"`
	Name        string `json:"name"`
	Password    string `json:"password,omitempty"`
	Profile     string `json:"profile"`
	LimitUptime string `json:"limit_uptime,omitempty"`
	Comment     string `json:"comment,omitempty"`
	Disabled    bool   `json:"disabled"`
	Uptime      string `json:"uptime,omitempty"`
	BytesIn     int64  `json:"bytes_in"`
	BytesOut    int64  `json:"bytes_out"`
}

func (u HotspotUser) args() []string {
	var args []string
	args = attr(args, "server", u.Server)
	args = attr(args, "name", u.Name)
	args = attr(args, "password", u.Password)
	args = attr(args, "profile", u.Profile)
	args = attr(args, "limit-uptime", u.LimitUptime)
	args = attr(args, "comment", u.Comment)
	return append(args, "=disabled="+yesNo(u.Disabled))
}

type HotspotProfile struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	RateLimit      string `json:"rate_limit,omitempty"`
	SharedUsers    string `json:"shared_users,omitempty"`
	SessionTimeout string `json:"session_timeout,omitempty"`
}

func (c *Client) HotspotActive(ctx context.Context) ([]HotspotActive, error) {
	records, err := c.Execute(ctx, "/ip/hotspot/active/print")
	if err != nil {
		return nil, err
	}
	out := make([]HotspotActive, 0, len(records))
	for _, r := range records {
		out = append(out, HotspotActive{
			ID:              r[".id"],
			Server:          r["server"],
			User:            r["user"],
			Address:         r["address"],
			MACAddress:      r["mac-address"],
			Uptime:          r["uptime"],
			SessionTimeLeft: r["session-time-left"],
			BytesIn:         r.Int64("bytes-in"),
			BytesOut:        r.Int64("bytes-out"),
		})
	}
	return out, nil
}

func (c *Client) HotspotUsers(ctx context.Context) ([]HotspotUser, error) {
	records, err := c.Execute(ctx, "/ip/hotspot/user/print")
	if err != nil {
		return nil, err
	}
	out := make([]HotspotUser, 0, len(records))
	for _, r := range records {
		out = append(out, HotspotUser{
			ID:          r[".id"],
			Server:      r["server"],
			Name:        r["name"],
			Password:    r["password"],
			Profile:     r["profile"],
			LimitUptime: r["limit-uptime"],
			Comment:     r["comment"],
			Disabled:    r.Bool("disabled"),
			Uptime:      r["uptime"],
			BytesIn:     r.Int64("bytes-in"),
			BytesOut:    r.Int64("bytes-out"),
		})
	}
	return out, nil
}

// AddHotspotUser creates a hotspot user and returns its id.
func (c *Client) AddHotspotUser(ctx context.Context, u HotspotUser) (string, error) {
	reply, err := c.Run(ctx, "/ip/hotspot/user/add", u.args()...)
	if err != nil {
		return "", err
	}
	return reply.Done["ret"], nil
}

func (c *Client) UpdateHotspotUser(ctx context.Context, id string, u HotspotUser) error {
	_, err := c.Run(ctx, "/ip/hotspot/user/set", append([]string{"=.id=" + id}, u.args()...)...)
	return err
}

func (c *Client) RemoveHotspotUser(ctx context.Context, id string) error {
	_, err := c.Run(ctx, "/ip/hotspot/user/remove", "=.id="+id)
	return err
}

func (c *Client) HotspotProfiles(ctx context.Context) ([]HotspotProfile, error) {
	records, err := c.Execute(ctx, "/ip/hotspot/user/profile/print")
	if err != nil {
		return nil, err
	}
	out := make([]HotspotProfile, 0, len(records))
	for _, r := range records {
		out = append(out, HotspotProfile{
			ID:             r[".id"],
			Name:           r["name"],
			RateLimit:      r["rate-limit"],
			SharedUsers:    r["shared-users"],
			SessionTimeout: r["session-timeout"],
		})
	}
	return out, nil
}
