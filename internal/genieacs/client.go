// Package genieacs talks to the GenieACS NBI: device queries, tags and
// parameter tasks.
package genieacs

import (
	"bytes"
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
	"github.com/alijaya/ispportal/internal/settings"
	"github.com/alijaya/ispportal/internal/telemetry"
	"github.com/rs/zerolog"
)

const (
	DefaultTimeout = 10 * time.Second

	wlanObject = "InternetGatewayDevice.LANDevice.1.WLANConfiguration"
)

var ErrDeviceNotFound = errors.New("device not found")

// Config holds the NBI endpoint and credentials.
type Config struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
}

// Client is a GenieACS NBI client.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	logger   zerolog.Logger
}

func New(config Config, logger zerolog.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL:  normalizeURL(config.URL),
		username: config.Username,
		password: config.Password,
		http:     &http.Client{Timeout: config.Timeout},
		logger:   logger,
	}
}

// FromSettings builds a client from the operator settings.
func FromSettings(snap settings.Snapshot, logger zerolog.Logger) *Client {
	return New(Config{
		URL:      snap.String(settings.KeyGenieACSURL, settings.DefaultGenieACSURL),
		Username: snap.String(settings.KeyGenieACSUsername, ""),
		Password: snap.String(settings.KeyGenieACSPassword, ""),
	}, logger)
}

func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = settings.DefaultGenieACSURL
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	return strings.TrimRight(raw, "/")
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListDevices returns every device record known to the ACS.
func (c *Client) ListDevices(ctx context.Context) ([]telemetry.Tree, error) {
	var devices []telemetry.Tree
	if err := c.do(ctx, "list_devices", http.MethodGet, "/devices/", nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// Query runs an NBI query such as {"_tags": "0812..."}.
func (c *Client) Query(ctx context.Context, query map[string]interface{}) ([]telemetry.Tree, error) {
	raw, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	path := "/devices/?query=" + url.QueryEscape(string(raw))

	var devices []telemetry.Tree
	if err := c.do(ctx, "query_devices", http.MethodGet, path, nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// GetDevice fetches one device by its ACS id.
func (c *Client) GetDevice(ctx context.Context, id string) (telemetry.Tree, error) {
	devices, err := c.Query(ctx, map[string]interface{}{"_id": id})
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, ErrDeviceNotFound
	}
	return devices[0], nil
}

// FindByTag returns the first device carrying tag.
func (c *Client) FindByTag(ctx context.Context, tag string) (telemetry.Tree, error) {
	devices, err := c.Query(ctx, map[string]interface{}{"_tags": tag})
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, ErrDeviceNotFound
	}
	return devices[0], nil
}

// FindByPhone looks a customer device up by the phone number tag. Tags may be
// stored as 08..., 62... or +62..., so each form is tried before falling back
// to a digit match over all devices.
func (c *Client) FindByPhone(ctx context.Context, phone string) (telemetry.Tree, error) {
	for _, tag := range PhoneVariants(phone) {
		device, err := c.FindByTag(ctx, tag)
		if err == nil {
			return device, nil
		}
		if !errors.Is(err, ErrDeviceNotFound) {
			return nil, err
		}
	}

	want := national(phone)
	if len(want) < minPhoneDigits {
		return nil, ErrDeviceNotFound
	}
	devices, err := c.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	for _, device := range devices {
		for _, tag := range telemetry.Tags(device) {
			if phoneMatches(national(tag), want) {
				return device, nil
			}
		}
	}
	return nil, ErrDeviceNotFound
}

// PhoneVariants lists the tag spellings of a phone number, input form first.
func PhoneVariants(phone string) []string {
	phone = strings.TrimSpace(phone)
	d := digits(phone)
	if d == "" {
		return nil
	}

	var local, intl string
	switch {
	case strings.HasPrefix(d, "62"):
		intl, local = d, "0"+d[2:]
	case strings.HasPrefix(d, "0"):
		local, intl = d, "62"+d[1:]
	default:
		local, intl = "0"+d, "62"+d
	}

	seen := map[string]bool{}
	var out []string
	for _, v := range []string{phone, local, intl, "+" + intl} {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// minPhoneDigits keeps short numeric tags such as "olt-2" from matching.
const minPhoneDigits = 8

func phoneMatches(tag, want string) bool {
	if len(tag) < minPhoneDigits {
		return false
	}
	return tag == want || strings.HasSuffix(tag, want) || strings.HasSuffix(want, tag)
}

// national strips the 62 country code or the trunk 0.
func national(s string) string {
	d := digits(s)
	if strings.HasPrefix(d, "62") {
		return d[2:]
	}
	return strings.TrimPrefix(d, "0")
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SetParameterValues queues a setParameterValues task and asks the ACS to
// open a connection request.
func (c *Client) SetParameterValues(ctx context.Context, id string, values []ParameterValue) error {
	if len(values) == 0 {
		return nil
	}
	return c.task(ctx, "set_parameters", id, map[string]interface{}{
		"name":            "setParameterValues",
		"parameterValues": values,
	})
}

func (c *Client) Reboot(ctx context.Context, id string) error {
	return c.task(ctx, "reboot", id, map[string]interface{}{"name": "reboot"})
}

func (c *Client) FactoryReset(ctx context.Context, id string) error {
	return c.task(ctx, "factory_reset", id, map[string]interface{}{"name": "factoryReset"})
}

// RefreshObject asks the device to re-report the subtree rooted at object.
func (c *Client) RefreshObject(ctx context.Context, id, object string) error {
	return c.task(ctx, "refresh_object", id, map[string]interface{}{
		"name":       "refreshObject",
		"objectName": object,
	})
}

// RefreshWLAN refreshes the wireless configuration subtree.
func (c *Client) RefreshWLAN(ctx context.Context, id string) error {
	return c.RefreshObject(ctx, id, wlanObject)
}

func (c *Client) AddTag(ctx context.Context, id, tag string) error {
	path := "/devices/" + url.PathEscape(id) + "/tags/" + url.PathEscape(tag)
	return c.do(ctx, "add_tag", http.MethodPost, path, nil, nil)
}

func (c *Client) RemoveTag(ctx context.Context, id, tag string) error {
	path := "/devices/" + url.PathEscape(id) + "/tags/" + url.PathEscape(tag)
	return c.do(ctx, "remove_tag", http.MethodDelete, path, nil, nil)
}

// ReplaceTag swaps oldTag for newTag. The new tag is added first so the
// device is never left untagged.
func (c *Client) ReplaceTag(ctx context.Context, id, oldTag, newTag string) error {
	if err := c.AddTag(ctx, id, newTag); err != nil {
		return err
	}
	if oldTag == "" || oldTag == newTag {
		return nil
	}
	return c.RemoveTag(ctx, id, oldTag)
}

func (c *Client) task(ctx context.Context, op, id string, body interface{}) error {
	path := "/devices/" + url.PathEscape(id) + "/tasks?connection_request"
	return c.do(ctx, op, http.MethodPost, path, body, nil)
}

// do sends one request. path may carry a query string.
func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) (err error) {
	defer func() {
		metrics.IncACSRequest(op, err)
		if err != nil {
			c.logger.Warn().Err(err).Str("op", op).Msg("ACS request failed")
		}
	}()

	endpoint := c.baseURL + path

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", op, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrDeviceNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: ACS returned status %d: %s", op, resp.StatusCode, truncate(string(raw), 200))
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
