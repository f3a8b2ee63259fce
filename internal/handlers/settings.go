package handlers

import (
	"errors"
	"math"

	"github.com/alijaya/ispportal/internal/backup"
	"github.com/alijaya/ispportal/internal/monitor"
	"github.com/alijaya/ispportal/internal/notify"
	"github.com/alijaya/ispportal/internal/settings"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

const maskedValue = "********"

var numericSettings = []string{
	settings.KeyRXWarning,
	settings.KeyRXCritical,
	settings.KeyRXNotifyInterval,
	settings.KeyMikrotikPort,
	settings.KeyOTPLength,
	settings.KeyOTPExpiryMinutes,
	settings.KeyWebPort,
	settings.KeyBackupFTPPort,
	settings.KeyBackupRetention,
}

// SettingsHandler serves the settings file, the RX monitor and test
// notifications.
type SettingsHandler struct {
	deps *Deps
}

func NewSettingsHandler(deps *Deps) *SettingsHandler {
	return &SettingsHandler{deps: deps}
}

func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success":  true,
		"settings": h.deps.Settings.Snapshot().Public(),
	})
}

// Update merges the posted keys. Masked secrets are left untouched and a new
// admin password is stored as a bcrypt hash.
func (h *SettingsHandler) Update(c *fiber.Ctx) error {
	var values map[string]interface{}
	if err := c.BodyParser(&values); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	for k, v := range values {
		if s, isString := v.(string); isString && s == maskedValue {
			delete(values, k)
		}
	}
	if len(values) == 0 {
		return fail(c, fiber.StatusBadRequest, "No settings to update")
	}

	posted := settings.FromMap(values)
	for _, key := range numericSettings {
		if posted.Has(key) && math.IsNaN(posted.Float(key, math.NaN())) {
			return fail(c, fiber.StatusBadRequest, key+" must be a number")
		}
	}

	if pw, isString := values[settings.KeyAdminPassword].(string); isString && pw != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		values[settings.KeyAdminPassword] = string(hash)
	}

	if err := h.deps.Settings.Update(values); err != nil {
		if errors.Is(err, settings.ErrInvalidSetting) {
			return fail(c, fiber.StatusBadRequest, err.Error())
		}
		return err
	}
	return success(c, "Settings saved")
}

func (h *SettingsHandler) MonitorStatus(c *fiber.Ctx) error {
	if h.deps.Monitor == nil {
		return fail(c, fiber.StatusServiceUnavailable, "RX power monitor not running")
	}
	return respond(c, h.deps.Monitor.Status())
}

// RunMonitor triggers one RX power check and waits for its report.
func (h *SettingsHandler) RunMonitor(c *fiber.Ctx) error {
	if h.deps.Monitor == nil {
		return fail(c, fiber.StatusServiceUnavailable, "RX power monitor not running")
	}
	report, err := h.deps.Monitor.RunOnce(c.UserContext())
	if errors.Is(err, monitor.ErrCycleRunning) {
		return fail(c, fiber.StatusConflict, err.Error())
	}
	if err != nil {
		return upstreamError(c, h.deps.Logger, err, "RX power check failed")
	}
	return respond(c, report)
}

type testNotificationRequest struct {
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

// TestNotification sends a message to the configured technicians.
func (h *SettingsHandler) TestNotification(c *fiber.Ctx) error {
	var req testNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Message == "" {
		req.Message = "🔔 *TEST NOTIFIKASI*\n\nPesan uji dari panel admin."
	}
	priority := notify.PriorityNormal
	if req.Priority == string(notify.PriorityHigh) {
		priority = notify.PriorityHigh
	}

	if h.deps.Notifier == nil || !h.deps.Notifier.NotifyRecipients(c.UserContext(), req.Message, priority) {
		return fail(c, fiber.StatusBadGateway, "No technician could be reached")
	}
	return success(c, "Notification sent")
}

func (h *SettingsHandler) Notifications(c *fiber.Ctx) error {
	if h.deps.Notifications == nil {
		return fail(c, fiber.StatusServiceUnavailable, "Database not enabled")
	}
	entries, err := h.deps.Notifications.Recent(c.UserContext(), c.QueryInt("limit", 100))
	if err != nil {
		return err
	}
	return respond(c, entries)
}

// Backup uploads the settings file to the configured FTP server.
func (h *SettingsHandler) Backup(c *fiber.Ctx) error {
	if h.deps.Backup == nil {
		return fail(c, fiber.StatusServiceUnavailable, "Backup not enabled")
	}
	result, err := h.deps.Backup.Run(c.UserContext())
	if errors.Is(err, backup.ErrNotConfigured) {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		h.deps.Logger.Error().Err(err).Msg("settings backup failed")
		return fail(c, fiber.StatusBadGateway, "Backup failed: "+err.Error())
	}
	return respond(c, result)
}

// AuditLog lists recent admin changes, optionally filtered by ?entity=.
func (h *SettingsHandler) AuditLog(c *fiber.Ctx) error {
	if h.deps.Audit == nil {
		return fail(c, fiber.StatusServiceUnavailable, "Database not enabled")
	}
	entries, err := h.deps.Audit.Recent(c.UserContext(), c.Query("entity"), c.QueryInt("limit", 100))
	if err != nil {
		return err
	}
	return respond(c, entries)
}

func (h *SettingsHandler) BackupHistory(c *fiber.Ctx) error {
	if h.deps.Backups == nil {
		return fail(c, fiber.StatusServiceUnavailable, "Database not enabled")
	}
	entries, err := h.deps.Backups.Recent(c.UserContext(), c.QueryInt("limit", 30))
	if err != nil {
		return err
	}
	return respond(c, entries)
}
