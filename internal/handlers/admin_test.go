package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/alijaya/ispportal/internal/backup"
	"github.com/alijaya/ispportal/internal/database"
	"github.com/alijaya/ispportal/internal/models"
	"github.com/alijaya/ispportal/internal/monitor"
	"github.com/alijaya/ispportal/internal/notify"
	"github.com/alijaya/ispportal/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAdminRoutesRequireAdmin(t *testing.T) {
	h := newHarness(t, nil)
	status, _ := h.do(http.MethodGet, "/api/admin/devices", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAdminDashboardCachesSummary(t *testing.T) {
	h := newHarness(t, nil)
	h.acs.devices = append(h.acs.devices,
		device("a", "081100000001", time.Minute, -20),
		device("b", "081100000002", 14*time.Minute, -20),
		device("c", "081100000003", 2*time.Hour, -20),
	)
	cache := &memCache{values: map[string][]byte{}}
	h.deps.Cache = cache
	token := h.adminToken()

	status, body := h.do(http.MethodGet, "/api/admin/dashboard", token, nil)
	require.Equal(t, http.StatusOK, status)
	out := body["data"].(map[string]interface{})
	devices := out["devices"].(map[string]interface{})
	assert.Equal(t, float64(3), devices["total"])
	assert.Equal(t, float64(2), devices["online"])
	assert.Equal(t, float64(1), devices["offline"])
	assert.Equal(t, 66.66, devices["percentage"])
	assert.Equal(t, false, out["cached"])
	assert.NotNil(t, out["rxMonitor"])
	assert.Contains(t, cache.values, database.CacheKeyDeviceSummary)

	status, body = h.do(http.MethodGet, "/api/admin/dashboard", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["data"].(map[string]interface{})["cached"])
	assert.Equal(t, 1, h.acs.listed)
}

func TestAdminListDevices(t *testing.T) {
	h := newHarness(t, nil)
	h.acs.devices = append(h.acs.devices,
		device("z-offline", "081100000001", time.Hour, -20),
		device("a-online", "081100000002", time.Minute, -20),
	)
	token := h.adminToken()

	status, body := h.do(http.MethodGet, "/api/admin/devices", token, nil)
	require.Equal(t, http.StatusOK, status)
	list := body["data"].([]interface{})
	require.Len(t, list, 2)
	assert.Equal(t, "a-online", list[0].(map[string]interface{})["id"])

	status, body = h.do(http.MethodGet, "/api/admin/devices?status=offline", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])
}

func TestAdminDeviceActions(t *testing.T) {
	h := newHarness(t, nil)
	h.acs.devices = append(h.acs.devices, device("00259E-HG8245-ABC", "081100000001", time.Minute, -20))
	token := h.adminToken()

	status, _ := h.do(http.MethodGet, "/api/admin/devices/00259E-HG8245-ABC", token, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = h.do(http.MethodGet, "/api/admin/devices/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = h.do(http.MethodPost, "/api/admin/devices/00259E-HG8245-ABC/restart", token, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = h.do(http.MethodPost, "/api/admin/devices/00259E-HG8245-ABC/factory-reset", token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = h.do(http.MethodPost, "/api/admin/devices/00259E-HG8245-ABC/wifi", token, map[string]string{"password": "1234567"})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = h.do(http.MethodPost, "/api/admin/devices/00259E-HG8245-ABC/wifi", token, map[string]string{"ssid": "KANTOR", "password": "12345678"})
	assert.Equal(t, http.StatusOK, status)

	ops := []string{}
	for _, c := range h.acs.calls {
		ops = append(ops, c.op)
	}
	assert.Equal(t, []string{"reboot", "factoryReset", "ssid", "password"}, ops)
}

func TestAdminDeviceActionUpstreamFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.acs.fail = errors.New("connection refused")
	status, body := h.do(http.MethodPost, "/api/admin/devices/x/restart", h.adminToken(), nil)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, false, body["success"])
}

func TestAdminTags(t *testing.T) {
	h := newHarness(t, nil)
	token := h.adminToken()

	status, _ := h.do(http.MethodPost, "/api/admin/devices/dev%2F1/tags", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = h.do(http.MethodPost, "/api/admin/devices/dev%2F1/tags", token, map[string]string{"tag": "081100000001"})
	require.Equal(t, http.StatusOK, status)
	status, _ = h.do(http.MethodPut, "/api/admin/devices/dev%2F1/tags/081100000001", token, map[string]string{"tag": "081100000009"})
	require.Equal(t, http.StatusOK, status)
	status, _ = h.do(http.MethodDelete, "/api/admin/devices/dev%2F1/tags/081100000009", token, nil)
	require.Equal(t, http.StatusOK, status)

	require.Len(t, h.acs.calls, 3)
	assert.Equal(t, call{op: "addTag", id: "dev/1", args: []string{"081100000001"}}, h.acs.calls[0])
	assert.Equal(t, call{op: "replaceTag", id: "dev/1", args: []string{"081100000001", "081100000009"}}, h.acs.calls[1])
	assert.Equal(t, call{op: "removeTag", id: "dev/1", args: []string{"081100000009"}}, h.acs.calls[2])
}

func TestSettingsGetMasksSecrets(t *testing.T) {
	h := newHarness(t, map[string]interface{}{
		settings.KeyGenieACSPassword: "acs-pass",
		settings.KeyRXWarning:        -24,
	})

	status, body := h.do(http.MethodGet, "/api/admin/settings", h.adminToken(), nil)
	require.Equal(t, http.StatusOK, status)
	values := body["settings"].(map[string]interface{})
	assert.Equal(t, "********", values[settings.KeyGenieACSPassword])
	assert.Equal(t, float64(-24), values[settings.KeyRXWarning])
}

func TestSettingsUpdate(t *testing.T) {
	h := newHarness(t, map[string]interface{}{settings.KeyGenieACSPassword: "acs-pass"})
	token := h.adminToken()

	status, _ := h.do(http.MethodPost, "/api/admin/settings", token, map[string]interface{}{settings.KeyRXCritical: "very low"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = h.do(http.MethodPost, "/api/admin/settings", token, map[string]interface{}{
		settings.KeyRXCritical:       "-29",
		settings.KeyGenieACSPassword: "********",
		settings.KeyAdminPassword:    "baru123",
	})
	require.Equal(t, http.StatusOK, status)

	snap := h.store.Snapshot()
	assert.Equal(t, -29.0, snap.Float(settings.KeyRXCritical, 0))
	assert.Equal(t, "acs-pass", snap.String(settings.KeyGenieACSPassword, ""))
	stored := snap.String(settings.KeyAdminPassword, "")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored), []byte("baru123")))

	raw, err := os.ReadFile(h.store.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "baru123")
}

func TestMonitorEndpoints(t *testing.T) {
	h := newHarness(t, nil)
	token := h.adminToken()

	status, body := h.do(http.MethodGet, "/api/admin/monitor", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(-27), body["data"].(map[string]interface{})["criticalThreshold"])

	status, body = h.do(http.MethodPost, "/api/admin/monitor/run", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["data"].(map[string]interface{})["sent"])

	h.monitor.runErr = monitor.ErrCycleRunning
	status, _ = h.do(http.MethodPost, "/api/admin/monitor/run", token, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestTestNotification(t *testing.T) {
	h := newHarness(t, nil)
	token := h.adminToken()

	status, _ := h.do(http.MethodPost, "/api/admin/notifications/test", token, map[string]string{"priority": "high"})
	require.Equal(t, http.StatusOK, status)
	require.Len(t, h.notifier.messages, 1)
	assert.Contains(t, h.notifier.messages[0], "TEST NOTIFIKASI")
	assert.Equal(t, notify.PriorityHigh, h.notifier.priorities[0])

	h.notifier.result = false
	status, _ = h.do(http.MethodPost, "/api/admin/notifications/test", token, map[string]string{"message": "halo"})
	assert.Equal(t, http.StatusBadGateway, status)

	status, _ = h.do(http.MethodGet, "/api/admin/notifications", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

type fakeBackup struct {
	err error
}

func (f *fakeBackup) Run(context.Context) (*backup.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &backup.Result{File: "settings-20240501-120000.json", Size: 42, Host: "10.0.0.5"}, nil
}

func TestSettingsBackup(t *testing.T) {
	h := newHarness(t, nil)
	token := h.adminToken()

	status, _ := h.do(http.MethodPost, "/api/admin/settings/backup", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	h.deps.Backup = &fakeBackup{err: backup.ErrNotConfigured}
	status, _ = h.do(http.MethodPost, "/api/admin/settings/backup", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	h.deps.Backup = &fakeBackup{}
	status, body := h.do(http.MethodPost, "/api/admin/settings/backup", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "settings-20240501-120000.json", body["data"].(map[string]interface{})["file"])
}

type fakeAudit struct {
	entries []models.AuditLog
	entity  string
}

func (f *fakeAudit) Record(_ context.Context, entry models.AuditLog) {
	f.entries = append(f.entries, entry)
}

func (f *fakeAudit) Recent(_ context.Context, entity string, _ int) ([]models.AuditLog, error) {
	f.entity = entity
	return f.entries, nil
}

func TestAuditLogListing(t *testing.T) {
	h := newHarness(t, nil)
	token := h.adminToken()

	status, _ := h.do(http.MethodGet, "/api/admin/audit", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	trail := &fakeAudit{entries: []models.AuditLog{{Actor: "admin", Action: "delete", Entity: "pppoe"}}}
	h.deps.Audit = trail
	status, body := h.do(http.MethodGet, "/api/admin/audit?entity=pppoe", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)
	assert.Equal(t, "pppoe", trail.entity)
}
