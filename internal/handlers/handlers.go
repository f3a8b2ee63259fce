// Package handlers is the JSON API of the portal: admin, customer and
// auth endpoints over the ACS, the router and the RX power monitor.
package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/alijaya/ispportal/internal/backup"
	"github.com/alijaya/ispportal/internal/genieacs"
	"github.com/alijaya/ispportal/internal/middleware"
	"github.com/alijaya/ispportal/internal/mikrotik"
	"github.com/alijaya/ispportal/internal/models"
	"github.com/alijaya/ispportal/internal/monitor"
	"github.com/alijaya/ispportal/internal/notify"
	"github.com/alijaya/ispportal/internal/settings"
	"github.com/alijaya/ispportal/internal/telemetry"
	"github.com/alijaya/ispportal/internal/voucher"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// Devices is the ACS surface used by the web layer.
type Devices interface {
	ListDevices(ctx context.Context) ([]telemetry.Tree, error)
	GetDevice(ctx context.Context, id string) (telemetry.Tree, error)
	FindByPhone(ctx context.Context, phone string) (telemetry.Tree, error)
	Reboot(ctx context.Context, id string) error
	FactoryReset(ctx context.Context, id string) error
	UpdateSSID(ctx context.Context, id, ssid string) error
	UpdatePassword(ctx context.Context, id, password string) error
	AddTag(ctx context.Context, id, tag string) error
	RemoveTag(ctx context.Context, id, tag string) error
	ReplaceTag(ctx context.Context, id, oldTag, newTag string) error
}

// Router is the RouterOS surface used by the web layer.
type Router interface {
	voucher.Router
	Configured() bool
	ActiveSessions(ctx context.Context) ([]mikrotik.ActiveSession, error)
	Secrets(ctx context.Context) ([]mikrotik.Secret, error)
	AddSecret(ctx context.Context, s mikrotik.Secret) (string, error)
	UpdateSecret(ctx context.Context, id string, s mikrotik.Secret) error
	RemoveSecret(ctx context.Context, id string) error
	Profiles(ctx context.Context) ([]mikrotik.Profile, error)
	DisconnectActive(ctx context.Context, name string) error
	FindSecretByPhone(ctx context.Context, phone string) (*mikrotik.Secret, error)
	HotspotActive(ctx context.Context) ([]mikrotik.HotspotActive, error)
	UpdateHotspotUser(ctx context.Context, id string, u mikrotik.HotspotUser) error
	RemoveHotspotUser(ctx context.Context, id string) error
	HotspotProfiles(ctx context.Context) ([]mikrotik.HotspotProfile, error)
	Resource(ctx context.Context) (*mikrotik.Resource, error)
	Interfaces(ctx context.Context) ([]mikrotik.Interface, error)
}

// SettingsStore reads and merges the operator settings file.
type SettingsStore interface {
	settings.Provider
	Update(values map[string]interface{}) error
}

type OTP interface {
	Begin(ctx context.Context, phone string) (time.Time, error)
	Resend(ctx context.Context, phone string) (time.Time, error)
	Verify(ctx context.Context, phone, code string) error
}

// Messenger delivers one decorated WhatsApp message.
type Messenger interface {
	SendFormatted(ctx context.Context, to, message string) error
}

type Notifier interface {
	NotifyRecipients(ctx context.Context, message string, priority notify.Priority) bool
}

type Monitor interface {
	Status() monitor.Status
	RunOnce(ctx context.Context) (monitor.Report, error)
}

// JSONCache caches computed responses. Optional.
type JSONCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// VoucherStore records and lists voucher batches. Optional.
type VoucherStore interface {
	voucher.Recorder
	Recent(ctx context.Context, limit int) ([]models.VoucherBatch, error)
	Get(ctx context.Context, id string) (*models.VoucherBatch, error)
}

// Backup copies the settings file off the box. Optional.
type Backup interface {
	Run(ctx context.Context) (*backup.Result, error)
}

// BackupHistory lists recorded backup runs. Optional.
type BackupHistory interface {
	Recent(ctx context.Context, limit int) ([]models.BackupLog, error)
}

// AuditTrail records and lists admin audit entries. Optional.
type AuditTrail interface {
	middleware.AuditSink
	Recent(ctx context.Context, entity string, limit int) ([]models.AuditLog, error)
}

// NotificationHistory lists logged deliveries. Optional.
type NotificationHistory interface {
	Recent(ctx context.Context, limit int) ([]models.NotificationLog, error)
}

// Deps wires handlers to their collaborators.
type Deps struct {
	Settings      SettingsStore
	Auth          *middleware.Auth
	ACS           func(settings.Snapshot) Devices
	Router        func() Router
	OTP           OTP
	Messenger     Messenger
	Notifier      Notifier
	Monitor       Monitor
	Cache         JSONCache
	Vouchers      VoucherStore
	Notifications NotificationHistory
	Backup        Backup
	Backups       BackupHistory
	Audit         AuditTrail
	Logger        zerolog.Logger
	Now           func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deps) acs() Devices {
	return d.ACS(d.Settings.Snapshot())
}

// ErrorHandler renders errors returned by handlers.
func ErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
		}
		if code >= fiber.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		}
		return c.Status(code).JSON(fiber.Map{
			"success": false,
			"message": err.Error(),
		})
	}
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

func success(c *fiber.Ctx, message string) error {
	return c.JSON(fiber.Map{
		"success": true,
		"message": message,
	})
}

func respond(c *fiber.Ctx, v interface{}) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    v,
	})
}

// upstreamError maps collaborator errors onto HTTP statuses.
func upstreamError(c *fiber.Ctx, log zerolog.Logger, err error, message string) error {
	switch {
	case errors.Is(err, genieacs.ErrDeviceNotFound):
		return fail(c, fiber.StatusNotFound, "Device not found")
	case errors.Is(err, mikrotik.ErrNotFound):
		return fail(c, fiber.StatusNotFound, "Entry not found")
	case errors.Is(err, mikrotik.ErrNotConnected):
		return fail(c, fiber.StatusServiceUnavailable, "MikroTik not configured")
	}
	var trap *mikrotik.Error
	if errors.As(err, &trap) {
		return fail(c, fiber.StatusBadRequest, trap.Message)
	}
	log.Error().Err(err).Str("path", c.Path()).Msg(message)
	return fail(c, fiber.StatusBadGateway, message)
}
