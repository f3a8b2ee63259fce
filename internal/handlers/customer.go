package handlers

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/alijaya/ispportal/internal/middleware"
	"github.com/alijaya/ispportal/internal/settings"
	"github.com/alijaya/ispportal/internal/telemetry"
	"github.com/gofiber/fiber/v2"
)

// Customer confirmation texts.
const (
	msgSSIDChanged     = "✅ *SSID WiFi Berhasil Diubah*\n\nSSID baru: %s\n\nPerangkat Anda akan terhubung ulang dalam beberapa saat."
	msgPasswordChanged = "✅ *Password WiFi Berhasil Diubah*\n\nSilakan sambungkan ulang perangkat Anda dengan password baru."
	msgRestarting      = "🔄 *Perangkat Sedang Direstart*\n\nInternet akan kembali normal dalam 2-5 menit."
)

type CustomerHandler struct {
	deps   *Deps
	random func() float64
}

func NewCustomerHandler(deps *Deps) *CustomerHandler {
	return &CustomerHandler{deps: deps, random: rand.Float64}
}

// device loads the caller's device, by ID from the token when known.
func (h *CustomerHandler) device(c *fiber.Ctx) (telemetry.Tree, Devices, error) {
	claims := middleware.CurrentClaims(c)
	acs := h.deps.acs()
	if claims.DeviceID != "" {
		tree, err := acs.GetDevice(c.UserContext(), claims.DeviceID)
		return tree, acs, err
	}
	tree, err := acs.FindByPhone(c.UserContext(), claims.Phone)
	return tree, acs, err
}

func (h *CustomerHandler) confirm(ctx context.Context, phone, message string) {
	if h.deps.Messenger == nil {
		return
	}
	if err := h.deps.Messenger.SendFormatted(ctx, phone, message); err != nil {
		h.deps.Logger.Warn().Err(err).Str("phone", phone).Msg("failed to send customer confirmation")
	}
}

func (h *CustomerHandler) Dashboard(c *fiber.Ctx) error {
	tree, _, err := h.device(c)
	if err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to load device information")
	}
	snap := h.deps.Settings.Snapshot()
	return c.JSON(fiber.Map{
		"success": true,
		"phone":   middleware.CurrentClaims(c).Phone,
		"device":  viewDevice(tree, h.deps.now()),
		"company": snap.String(settings.KeyCompanyHeader, settings.DefaultCompanyHeader),
		"footer":  snap.String(settings.KeyFooterInfo, settings.DefaultFooterInfo),
	})
}

// Device returns the device record with its WiFi clients.
func (h *CustomerHandler) Device(c *fiber.Ctx) error {
	tree, _, err := h.device(c)
	if err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to get device info")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"device":  viewDevice(tree, h.deps.now()),
		"hosts":   telemetry.ConnectedHosts(tree),
	})
}

func (h *CustomerHandler) Status(c *fiber.Ctx) error {
	tree, _, err := h.device(c)
	if err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to load device status")
	}
	view := viewDevice(tree, h.deps.now())
	return respond(c, fiber.Map{
		"isOnline":       view.Online,
		"status":         view.Status,
		"lastInform":     view.LastInform,
		"rxPower":        view.RXPower,
		"temperature":    view.Temperature,
		"uptime":         view.Uptime,
		"pppoeIP":        view.PPPoEIP,
		"pppUsername":    view.PPPUsername,
		"connectionType": view.ConnectionType,
		"dnsServers":     view.DNSServers,
	})
}

// SpeedResult is one simulated measurement.
type SpeedResult struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// simulateSpeed estimates throughput bands from the optical signal level.
func simulateSpeed(testType string, rxPower float64, random func() float64) SpeedResult {
	var download, upload, ping float64
	switch {
	case rxPower > -20:
		download, upload, ping = 80+random()*20, 40+random()*15, 10+random()*10
	case rxPower > -25:
		download, upload, ping = 60+random()*20, 30+random()*15, 15+random()*10
	case rxPower > -30:
		download, upload, ping = 30+random()*20, 15+random()*10, 20+random()*15
	default:
		download, upload, ping = 10+random()*15, 5+random()*10, 30+random()*20
	}
	vary := func(v float64) float64 { return v * (1 + (random()-0.5)*0.1) }

	switch testType {
	case "ping":
		return SpeedResult{Type: "ping", Value: math.Round(vary(ping)), Unit: "ms"}
	case "download":
		return SpeedResult{Type: "download", Value: math.Round(vary(download)*10) / 10, Unit: "Mbps"}
	case "upload":
		return SpeedResult{Type: "upload", Value: math.Round(vary(upload)*10) / 10, Unit: "Mbps"}
	}
	return SpeedResult{Type: "unknown"}
}

// SpeedTest answers ?type=ping|download|upload for online devices.
func (h *CustomerHandler) SpeedTest(c *fiber.Ctx) error {
	tree, _, err := h.device(c)
	if err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to run speed test")
	}
	if !viewDevice(tree, h.deps.now()).Online {
		return fail(c, fiber.StatusBadRequest, "Device is offline")
	}

	rx, found, err := telemetry.ResolveFloat(tree, telemetry.RXPowerPaths)
	if !found || err != nil {
		rx = -25
	}
	result := simulateSpeed(c.Query("type", "download"), rx, h.random)
	return respond(c, result)
}

type ssidRequest struct {
	SSID string `json:"ssid"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

func (h *CustomerHandler) ChangeSSID(c *fiber.Ctx) error {
	var req ssidRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if n := len([]rune(req.SSID)); n < 3 || n > 32 {
		return fail(c, fiber.StatusBadRequest, "SSID must be between 3-32 characters")
	}

	tree, acs, err := h.device(c)
	if err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to change SSID")
	}
	if err := acs.UpdateSSID(c.UserContext(), telemetry.ID(tree), req.SSID); err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to change SSID")
	}

	phone := middleware.CurrentClaims(c).Phone
	h.deps.Logger.Info().Str("phone", phone).Str("ssid", req.SSID).Msg("customer changed SSID")
	h.confirm(c.UserContext(), phone, fmt.Sprintf(msgSSIDChanged, req.SSID))
	return success(c, "SSID changed successfully")
}

func (h *CustomerHandler) ChangePassword(c *fiber.Ctx) error {
	var req passwordRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if len(req.Password) < 8 {
		return fail(c, fiber.StatusBadRequest, "Password must be at least 8 characters")
	}

	tree, acs, err := h.device(c)
	if err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to change password")
	}
	if err := acs.UpdatePassword(c.UserContext(), telemetry.ID(tree), req.Password); err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to change password")
	}

	phone := middleware.CurrentClaims(c).Phone
	h.deps.Logger.Info().Str("phone", phone).Msg("customer changed WiFi password")
	h.confirm(c.UserContext(), phone, msgPasswordChanged)
	return success(c, "WiFi password changed successfully")
}

func (h *CustomerHandler) Restart(c *fiber.Ctx) error {
	tree, acs, err := h.device(c)
	if err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to restart device")
	}
	if err := acs.Reboot(c.UserContext(), telemetry.ID(tree)); err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to restart device")
	}

	phone := middleware.CurrentClaims(c).Phone
	h.deps.Logger.Info().Str("phone", phone).Msg("customer restarted device")
	h.confirm(c.UserContext(), phone, msgRestarting)
	return success(c, "Device restart initiated")
}
