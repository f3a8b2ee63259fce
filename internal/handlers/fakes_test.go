package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alijaya/ispportal/internal/database"
	"github.com/alijaya/ispportal/internal/genieacs"
	"github.com/alijaya/ispportal/internal/middleware"
	"github.com/alijaya/ispportal/internal/mikrotik"
	"github.com/alijaya/ispportal/internal/monitor"
	"github.com/alijaya/ispportal/internal/notify"
	"github.com/alijaya/ispportal/internal/otp"
	"github.com/alijaya/ispportal/internal/settings"
	"github.com/alijaya/ispportal/internal/telemetry"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func device(id, phone string, informed time.Duration, rx float64) telemetry.Tree {
	return telemetry.Tree{
		"_id":         id,
		"_tags":       []interface{}{phone},
		"_lastInform": testNow.Add(-informed).Format(time.RFC3339),
		"VirtualParameters": map[string]interface{}{
			"RXPower": map[string]interface{}{"_value": rx, "_type": "xsd:string"},
		},
		"InternetGatewayDevice": map[string]interface{}{
			"LANDevice": map[string]interface{}{
				"1": map[string]interface{}{
					"WLANConfiguration": map[string]interface{}{
						"1": map[string]interface{}{
							"SSID": map[string]interface{}{"_value": "HOME"},
						},
					},
				},
			},
		},
	}
}

type call struct {
	op   string
	id   string
	args []string
}

type fakeACS struct {
	mu      sync.Mutex
	devices []telemetry.Tree
	calls   []call
	listed  int
	fail    error
}

func (f *fakeACS) record(op, id string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: op, id: id, args: args})
	return f.fail
}

func (f *fakeACS) ListDevices(context.Context) ([]telemetry.Tree, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed++
	return f.devices, f.fail
}

func (f *fakeACS) GetDevice(_ context.Context, id string) (telemetry.Tree, error) {
	for _, d := range f.devices {
		if telemetry.ID(d) == id {
			return d, nil
		}
	}
	return nil, genieacs.ErrDeviceNotFound
}

func (f *fakeACS) FindByPhone(_ context.Context, phone string) (telemetry.Tree, error) {
	for _, d := range f.devices {
		for _, v := range genieacs.PhoneVariants(phone) {
			if telemetry.Phone(d) == v {
				return d, nil
			}
		}
	}
	return nil, genieacs.ErrDeviceNotFound
}

func (f *fakeACS) Reboot(_ context.Context, id string) error { return f.record("reboot", id) }
func (f *fakeACS) FactoryReset(_ context.Context, id string) error {
	return f.record("factoryReset", id)
}
func (f *fakeACS) UpdateSSID(_ context.Context, id, ssid string) error {
	return f.record("ssid", id, ssid)
}
func (f *fakeACS) UpdatePassword(_ context.Context, id, pw string) error {
	return f.record("password", id, pw)
}
func (f *fakeACS) AddTag(_ context.Context, id, tag string) error {
	return f.record("addTag", id, tag)
}
func (f *fakeACS) RemoveTag(_ context.Context, id, tag string) error {
	return f.record("removeTag", id, tag)
}
func (f *fakeACS) ReplaceTag(_ context.Context, id, oldTag, newTag string) error {
	return f.record("replaceTag", id, oldTag, newTag)
}

type fakeRouter struct {
	configured bool
	sessions   []mikrotik.ActiveSession
	secrets    []mikrotik.Secret
	hotspot    []mikrotik.HotspotUser
	calls      []call
}

func (f *fakeRouter) record(op, id string, args ...string) {
	f.calls = append(f.calls, call{op: op, id: id, args: args})
}

func (f *fakeRouter) Configured() bool { return f.configured }
func (f *fakeRouter) ActiveSessions(context.Context) ([]mikrotik.ActiveSession, error) {
	return f.sessions, nil
}
func (f *fakeRouter) Secrets(context.Context) ([]mikrotik.Secret, error) { return f.secrets, nil }
func (f *fakeRouter) AddSecret(_ context.Context, s mikrotik.Secret) (string, error) {
	f.record("addSecret", "", s.Name, s.Password, s.Profile)
	return "*9", nil
}
func (f *fakeRouter) UpdateSecret(_ context.Context, id string, s mikrotik.Secret) error {
	f.record("updateSecret", id, s.Name, s.Password, s.Profile)
	return nil
}
func (f *fakeRouter) RemoveSecret(_ context.Context, id string) error {
	f.record("removeSecret", id)
	return nil
}
func (f *fakeRouter) Profiles(context.Context) ([]mikrotik.Profile, error) {
	return []mikrotik.Profile{{Name: "10M"}}, nil
}
func (f *fakeRouter) DisconnectActive(_ context.Context, name string) error {
	for _, s := range f.sessions {
		if s.Name == name {
			f.record("disconnect", s.ID, name)
			return nil
		}
	}
	return mikrotik.ErrNotFound
}
func (f *fakeRouter) FindSecretByPhone(_ context.Context, phone string) (*mikrotik.Secret, error) {
	for _, s := range f.secrets {
		if s.Comment == phone {
			return &s, nil
		}
	}
	return nil, mikrotik.ErrNotFound
}
func (f *fakeRouter) HotspotActive(context.Context) ([]mikrotik.HotspotActive, error) {
	return []mikrotik.HotspotActive{{User: "HSP1"}}, nil
}
func (f *fakeRouter) HotspotUsers(context.Context) ([]mikrotik.HotspotUser, error) {
	return f.hotspot, nil
}
func (f *fakeRouter) AddHotspotUser(_ context.Context, u mikrotik.HotspotUser) (string, error) {
	f.record("addHotspot", "", u.Name, u.Password, u.Profile)
	f.hotspot = append(f.hotspot, u)
	return "*A", nil
}
func (f *fakeRouter) UpdateHotspotUser(_ context.Context, id string, u mikrotik.HotspotUser) error {
	f.record("updateHotspot", id, u.Name, u.Profile)
	return nil
}
func (f *fakeRouter) RemoveHotspotUser(_ context.Context, id string) error {
	f.record("removeHotspot", id)
	return nil
}
func (f *fakeRouter) HotspotProfiles(context.Context) ([]mikrotik.HotspotProfile, error) {
	return nil, nil
}
func (f *fakeRouter) Resource(context.Context) (*mikrotik.Resource, error) {
	return &mikrotik.Resource{CPULoad: 12, TotalMemory: 1000, FreeMemory: 250}, nil
}
func (f *fakeRouter) Interfaces(context.Context) ([]mikrotik.Interface, error) {
	return []mikrotik.Interface{{Name: "ether1", RxBytes: 100, TxBytes: 50}}, nil
}

type sent struct {
	to      string
	message string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sent
}

func (f *fakeMessenger) SendFormatted(_ context.Context, to, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{to: to, message: message})
	return nil
}

type fakeNotifier struct {
	messages   []string
	priorities []notify.Priority
	result     bool
}

func (f *fakeNotifier) NotifyRecipients(_ context.Context, message string, priority notify.Priority) bool {
	f.messages = append(f.messages, message)
	f.priorities = append(f.priorities, priority)
	return f.result
}

type fakeMonitor struct {
	runErr error
	runs   int
}

func (f *fakeMonitor) Status() monitor.Status {
	return monitor.Status{Enabled: true, Warning: -25, Critical: -27, IntervalMS: 300000}
}

func (f *fakeMonitor) RunOnce(context.Context) (monitor.Report, error) {
	f.runs++
	return monitor.Report{Checked: 2, Sent: 1}, f.runErr
}

type memCache struct {
	values map[string][]byte
}

func (m *memCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	v, found := m.values[key]
	if !found {
		return database.ErrCacheMiss
	}
	return json.Unmarshal(v, dest)
}

func (m *memCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = data
	return nil
}

type harness struct {
	t         *testing.T
	app       *fiber.App
	deps      *Deps
	store     *settings.Store
	acs       *fakeACS
	router    *fakeRouter
	messenger *fakeMessenger
	notifier  *fakeNotifier
	monitor   *fakeMonitor
	otpSent   *fakeMessenger
}

func newHarness(t *testing.T, values map[string]interface{}) *harness {
	t.Helper()
	store := settings.NewStore(filepath.Join(t.TempDir(), "settings.json"), zerolog.Nop())
	if len(values) > 0 {
		require.NoError(t, store.Update(values))
	}

	h := &harness{
		t:         t,
		store:     store,
		acs:       &fakeACS{},
		router:    &fakeRouter{configured: true},
		messenger: &fakeMessenger{},
		notifier:  &fakeNotifier{result: true},
		monitor:   &fakeMonitor{},
		otpSent:   &fakeMessenger{},
	}
	h.deps = &Deps{
		Settings: store,
		Auth:     middleware.NewAuth("test-secret", time.Hour, nil),
		ACS:      func(settings.Snapshot) Devices { return h.acs },
		Router:   func() Router { return h.router },
		OTP: otp.NewService(otp.Options{
			Sender:   h.otpSent,
			Settings: store,
			Now:      func() time.Time { return testNow },
			Logger:   zerolog.Nop(),
		}),
		Messenger: h.messenger,
		Notifier:  h.notifier,
		Monitor:   h.monitor,
		Logger:    zerolog.Nop(),
		Now:       func() time.Time { return testNow },
	}
	h.app = fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zerolog.Nop())})
	Register(h.app, h.deps)
	return h
}

func (h *harness) token(claims middleware.Claims) string {
	h.t.Helper()
	token, _, err := h.deps.Auth.GenerateToken(claims)
	require.NoError(h.t, err)
	return token
}

func (h *harness) adminToken() string {
	return h.token(middleware.Claims{Role: middleware.RoleAdmin, Username: "admin"})
}

// do sends a JSON request and decodes the JSON response.
func (h *harness) do(method, path, token string, body interface{}) (int, map[string]interface{}) {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	if len(raw) > 0 {
		require.NoError(h.t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}
