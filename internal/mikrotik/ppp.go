package mikrotik

import (
	"context"
	"strings"
)

// ActiveSession is a connected PPP client.
type ActiveSession struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Service   string `json:"service"`
	CallerID  string `json:"caller_id"`
	Address   string `json:"address"`
	Uptime    string `json:"uptime"`
	Encoding  string `json:"encoding"`
	SessionID string `json:"session_id"`
}

func activeFromRecord(r Record) ActiveSession {
	return ActiveSession{
		ID:        r[".id"],
		Name:      r["name"],
		Service:   r["service"],
		CallerID:  r["caller-id"],
		Address:   r["address"],
		Uptime:    r["uptime"],
		Encoding:  r["encoding"],
		SessionID: r["session-id"],
	}
}

// Secret is a PPP account.
type Secret struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Password      string `json:"password,omitempty"`
	Service       string `json:"service"`
	Profile       string `json:"profile"`
	LocalAddress  string `json:"local_address,omitempty"`
	RemoteAddress string `json:"remote_address,omitempty"`
	Comment       string `json:"comment,omitempty"`
	Disabled      bool   `json:"disabled"`
	LastLoggedOut string `json:"last_logged_out,omitempty"`
}

func secretFromRecord(r Record) Secret {
	return Secret{
		ID:            r[".id"],
		Name:          r["name"],
		Password:      r["password"],
		Service:       r["service"],
		Profile:       r["profile"],
		LocalAddress:  r["local-address"],
		RemoteAddress: r["remote-address"],
		Comment:       r["comment"],
		Disabled:      r.Bool("disabled"),
		LastLoggedOut: r["last-logged-out"],
	}
}

func (s Secret) args() []string {
	var args []string
	args = attr(args, "name", s.Name)
	args = attr(args, "password", s.Password)
	args = attr(args, "service", s.Service)
	args = attr(args, "profile", s.Profile)
	args = attr(args, "local-address", s.LocalAddress)
	args = attr(args, "remote-address", s.RemoteAddress)
	args = attr(args, "comment", s.Comment)
	return append(args, "=disabled="+yesNo(s.Disabled))
}

// Profile is a PPP profile.
type Profile struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	LocalAddress  string `json:"local_address,omitempty"`
	RemoteAddress string `json:"remote_address,omitempty"`
	RateLimit     string `json:"rate_limit,omitempty"`
	OnlyOne       string `json:"only_one,omitempty"`
}

func (c *Client) ActiveSessions(ctx context.Context) ([]ActiveSession, error) {
	records, err := c.Execute(ctx, "/ppp/active/print")
	if err != nil {
		return nil, err
	}
	sessions := make([]ActiveSession, 0, len(records))
	for _, r := range records {
		sessions = append(sessions, activeFromRecord(r))
	}
	return sessions, nil
}

func (c *Client) Secrets(ctx context.Context) ([]Secret, error) {
	records, err := c.Execute(ctx, "/ppp/secret/print")
	if err != nil {
		return nil, err
	}
	secrets := make([]Secret, 0, len(records))
	for _, r := range records {
		secrets = append(secrets, secretFromRecord(r))
	}
	return secrets, nil
}

// AddSecret creates a PPP account and returns its id. Service defaults to
// pppoe.
func (c *Client) AddSecret(ctx context.Context, s Secret) (string, error) {
	if s.Service == "" {
		s.Service = "pppoe"
	}
	reply, err := c.Run(ctx, "/ppp/secret/add", s.args()...)
	if err != nil {
		return "", err
	}
	return reply.Done["ret"], nil
}

// UpdateSecret sets the non-empty fields of s on secret id.
func (c *Client) UpdateSecret(ctx context.Context, id string, s Secret) error {
	_, err := c.Run(ctx, "/ppp/secret/set", append([]string{"=.id=" + id}, s.args()...)...)
	return err
}

func (c *Client) RemoveSecret(ctx context.Context, id string) error {
	_, err := c.Run(ctx, "/ppp/secret/remove", "=.id="+id)
	return err
}

func (c *Client) Profiles(ctx context.Context) ([]Profile, error) {
	records, err := c.Execute(ctx, "/ppp/profile/print")
	if err != nil {
		return nil, err
	}
	profiles := make([]Profile, 0, len(records))
	for _, r := range records {
		profiles = append(profiles, Profile{
			ID:            r[".id"],
			Name:          r["name"],
			LocalAddress:  r["local-address"],
			RemoteAddress: r["remote-address"],
			RateLimit:     r["rate-limit"],
			OnlyOne:       r["only-one"],
		})
	}
	return profiles, nil
}

// DisconnectActive removes the active session of a PPP user, forcing the
// client to redial.
func (c *Client) DisconnectActive(ctx context.Context, name string) error {
	records, err := c.Execute(ctx, "/ppp/active/print", "?name="+name)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return ErrNotFound
	}
	_, err = c.Run(ctx, "/ppp/active/remove", "=.id="+records[0][".id"])
	return err
}

// FindSecretByPhone returns the PPP account whose name or comment carries
// the customer's phone number.
func (c *Client) FindSecretByPhone(ctx context.Context, phone string) (*Secret, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, ErrNotFound
	}
	secrets, err := c.Secrets(ctx)
	if err != nil {
		return nil, err
	}
	for i := range secrets {
		if strings.Contains(secrets[i].Name, phone) || strings.Contains(secrets[i].Comment, phone) {
			return &secrets[i], nil
		}
	}
	return nil, ErrNotFound
}
