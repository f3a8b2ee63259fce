package mikrotik

import (
	"sync"

	"github.com/alijaya/ispportal/internal/settings"
	"github.com/rs/zerolog"
)

// Provider hands out a shared Client for the router in the current
// settings, replacing it when address or credentials change.
type Provider struct {
	settings settings.Provider
	logger   zerolog.Logger

	mu      sync.Mutex
	current *Client
}

func NewProvider(s settings.Provider, logger zerolog.Logger) *Provider {
	return &Provider{settings: s, logger: logger}
}

func (p *Provider) Client() *Client {
	cfg := ConfigFromSettings(p.settings.Snapshot())

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil && p.current.config.Address == cfg.Address &&
		p.current.config.Username == cfg.Username && p.current.config.Password == cfg.Password {
		return p.current
	}
	if p.current != nil {
		p.current.Close()
		p.logger.Info().Str("address", cfg.Address).Msg("router settings changed, reconnecting")
	}
	p.current = NewClient(cfg, p.logger)
	return p.current
}

// Close drops the shared connection.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	return p.current.Close()
}
