// Package whatsapp delivers portal messages over an HTTP WhatsApp gateway.
package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alijaya/ispportal/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	ProviderUltramsg = "ultramsg"
	ProviderProxRad  = "proxrad"
	ProviderFonnte   = "fonnte"

	ultramsgAPIBase = "https://api.ultramsg.com"
	proxRadAPIBase  = "http://proxsms.com/api"
	fonnteAPIBase   = "https://api.fonnte.com"
)

var ErrNotConfigured = errors.New("WhatsApp not configured")

// Sender delivers one text message to a personal or group chat id.
type Sender interface {
	Send(ctx context.Context, address, text string) error
}

// GatewayConfig selects and authenticates a gateway.
type GatewayConfig struct {
	Provider   string
	InstanceID string
	Token      string
	// APIURL overrides the provider base URL.
	APIURL string
}

// Gateway is a Sender backed by an HTTP gateway provider.
type Gateway struct {
	config GatewayConfig
	client *http.Client
	logger zerolog.Logger
}

func NewGateway(config GatewayConfig, logger zerolog.Logger) *Gateway {
	if config.Provider == "" {
		config.Provider = ProviderUltramsg
	}
	return &Gateway{
		config: config,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Configured reports whether credentials are present for the provider.
func (g *Gateway) Configured() bool {
	switch g.config.Provider {
	case ProviderUltramsg:
		return g.config.InstanceID != "" && g.config.Token != ""
	default:
		return g.config.Token != ""
	}
}

// Send posts a text message. Personal chat ids are reduced to the bare
// international number the gateways expect.
func (g *Gateway) Send(ctx context.Context, address, text string) error {
	err := g.send(ctx, address, text)
	metrics.IncMessage(err)
	if err != nil {
		g.logger.Warn().Err(err).Str("to", address).Msg("whatsapp send failed")
	}
	return err
}

func (g *Gateway) send(ctx context.Context, address, text string) error {
	if !g.Configured() {
		return ErrNotConfigured
	}
	to := strings.TrimSuffix(FormatJID(address), userSuffix)
	if to == "" {
		return fmt.Errorf("invalid recipient %q", address)
	}

	switch g.config.Provider {
	case ProviderProxRad:
		return g.sendProxRad(ctx, to, text)
	case ProviderFonnte:
		return g.sendFonnte(ctx, to, text)
	case ProviderUltramsg:
		return g.sendUltramsg(ctx, to, text)
	}
	return fmt.Errorf("unknown WhatsApp provider %q", g.config.Provider)
}

func (g *Gateway) baseURL(def string) string {
	if g.config.APIURL != "" {
		return strings.TrimRight(g.config.APIURL, "/")
	}
	return def
}

func (g *Gateway) sendUltramsg(ctx context.Context, to, text string) error {
	apiURL := fmt.Sprintf("%s/%s/messages/chat", g.baseURL(ultramsgAPIBase), g.config.InstanceID)

	data := url.Values{}
	data.Set("token", g.config.Token)
	data.Set("to", to)
	data.Set("body", text)

	body, status, err := g.postForm(ctx, apiURL, data, nil)
	if err != nil {
		return err
	}
	if status >= 400 {
		return fmt.Errorf("Ultramsg error (%d): %s", status, string(body))
	}

	var resp struct {
		Sent  string `json:"sent"`
		Error string `json:"error"`
		ID    string `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err == nil {
		if resp.Error != "" {
			return fmt.Errorf("Ultramsg error: %s", resp.Error)
		}
		if resp.Sent == "false" {
			return fmt.Errorf("message not sent: %s", string(body))
		}
	}
	return nil
}

func (g *Gateway) sendProxRad(ctx context.Context, to, text string) error {
	data := url.Values{}
	data.Set("secret", g.config.Token)
	data.Set("account", g.config.InstanceID)
	data.Set("recipient", to)
	data.Set("type", "text")
	data.Set("message", text)
	data.Set("priority", "1")

	body, status, err := g.postForm(ctx, g.baseURL(proxRadAPIBase)+"/send/whatsapp", data, nil)
	if err != nil {
		return err
	}

	var resp struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.Status != 200 {
		return fmt.Errorf("proxsms error: %s", resp.Message)
	}
	if status >= 400 {
		return fmt.Errorf("proxsms HTTP error (%d): %s", status, string(body))
	}
	return nil
}

func (g *Gateway) sendFonnte(ctx context.Context, to, text string) error {
	data := url.Values{}
	data.Set("target", to)
	data.Set("message", text)

	headers := map[string]string{"Authorization": g.config.Token}
	body, status, err := g.postForm(ctx, g.baseURL(fonnteAPIBase)+"/send", data, headers)
	if err != nil {
		return err
	}
	if status >= 400 {
		return fmt.Errorf("fonnte HTTP error (%d): %s", status, string(body))
	}

	var resp struct {
		Status bool   `json:"status"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && !resp.Status {
		return fmt.Errorf("fonnte error: %s", resp.Reason)
	}
	return nil
}

func (g *Gateway) postForm(ctx context.Context, apiURL string, data url.Values, headers map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
