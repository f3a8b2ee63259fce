package handlers

import (
	"net/url"
	"sort"

	"github.com/alijaya/ispportal/internal/database"
	"github.com/alijaya/ispportal/internal/genieacs"
	"github.com/alijaya/ispportal/internal/telemetry"
	"github.com/gofiber/fiber/v2"
)

// AdminHandler serves ACS device management.
type AdminHandler struct {
	deps *Deps
}

func NewAdminHandler(deps *Deps) *AdminHandler {
	return &AdminHandler{deps: deps}
}

func param(c *fiber.Ctx, name string) string {
	raw := c.Params(name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// Dashboard returns device totals, cached briefly when Redis is enabled.
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	ctx := c.UserContext()
	var summary genieacs.Summary
	if h.deps.Cache != nil {
		if err := h.deps.Cache.GetJSON(ctx, database.CacheKeyDeviceSummary, &summary); err == nil {
			return h.dashboard(c, summary, true)
		}
	}

	devices, err := h.deps.acs().ListDevices(ctx)
	if err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to get stats")
	}
	summary = genieacs.Summarize(devices, h.deps.now())

	if h.deps.Cache != nil {
		if err := h.deps.Cache.SetJSON(ctx, database.CacheKeyDeviceSummary, summary, database.CacheTTLDeviceSummary); err != nil {
			h.deps.Logger.Warn().Err(err).Msg("failed to cache device summary")
		}
	}
	return h.dashboard(c, summary, false)
}

func (h *AdminHandler) dashboard(c *fiber.Ctx, summary genieacs.Summary, cached bool) error {
	out := fiber.Map{
		"devices": summary,
		"cached":  cached,
	}
	if h.deps.Monitor != nil {
		out["rxMonitor"] = h.deps.Monitor.Status()
	}
	return respond(c, out)
}

// ListDevices returns every device, optionally filtered by ?status=online|offline.
func (h *AdminHandler) ListDevices(c *fiber.Ctx) error {
	devices, err := h.deps.acs().ListDevices(c.UserContext())
	if err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to list devices")
	}

	now := h.deps.now()
	filter := c.Query("status")
	views := make([]DeviceView, 0, len(devices))
	for _, d := range devices {
		v := viewDevice(d, now)
		if (filter == "online" && !v.Online) || (filter == "offline" && v.Online) {
			continue
		}
		views = append(views, v)
	}
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].Online != views[j].Online {
			return views[i].Online
		}
		return views[i].ID < views[j].ID
	})
	return c.JSON(fiber.Map{
		"success": true,
		"total":   len(views),
		"data":    views,
	})
}

func (h *AdminHandler) GetDevice(c *fiber.Ctx) error {
	tree, err := h.deps.acs().GetDevice(c.UserContext(), param(c, "id"))
	if err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to get device")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    viewDevice(tree, h.deps.now()),
		"hosts":   telemetry.ConnectedHosts(tree),
	})
}

func (h *AdminHandler) Restart(c *fiber.Ctx) error {
	id := param(c, "id")
	if err := h.deps.acs().Reboot(c.UserContext(), id); err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to restart device")
	}
	h.deps.Logger.Info().Str("device", id).Msg("device restart requested")
	return success(c, "Device restart initiated")
}

func (h *AdminHandler) FactoryReset(c *fiber.Ctx) error {
	id := param(c, "id")
	if err := h.deps.acs().FactoryReset(c.UserContext(), id); err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to factory reset device")
	}
	h.deps.Logger.Warn().Str("device", id).Msg("device factory reset requested")
	return success(c, "Factory reset initiated")
}

type wifiRequest struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

// UpdateWiFi changes the SSID, the passphrase, or both.
func (h *AdminHandler) UpdateWiFi(c *fiber.Ctx) error {
	var req wifiRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.SSID == "" && req.Password == "" {
		return fail(c, fiber.StatusBadRequest, "SSID or password is required")
	}
	if n := len([]rune(req.SSID)); req.SSID != "" && (n < 3 || n > 32) {
		return fail(c, fiber.StatusBadRequest, "SSID must be between 3-32 characters")
	}
	if n := len(req.Password); req.Password != "" && (n < 8 || n > 63) {
		return fail(c, fiber.StatusBadRequest, "Password must be between 8-63 characters")
	}

	id := param(c, "id")
	acs := h.deps.acs()
	if req.SSID != "" {
		if err := acs.UpdateSSID(c.UserContext(), id, req.SSID); err != nil {
			return upstreamError(c, h.deps.Logger, err, "Failed to change SSID")
		}
	}
	if req.Password != "" {
		if err := acs.UpdatePassword(c.UserContext(), id, req.Password); err != nil {
			return upstreamError(c, h.deps.Logger, err, "Failed to change password")
		}
	}
	h.deps.Logger.Info().Str("device", id).Bool("ssid", req.SSID != "").Bool("password", req.Password != "").Msg("admin changed WiFi")
	return success(c, "WiFi settings updated")
}

type tagRequest struct {
	Tag string `json:"tag"`
}

func (h *AdminHandler) AddTag(c *fiber.Ctx) error {
	var req tagRequest
	if err := c.BodyParser(&req); err != nil || req.Tag == "" {
		return fail(c, fiber.StatusBadRequest, "Tag is required")
	}
	id := param(c, "id")
	if err := h.deps.acs().AddTag(c.UserContext(), id, req.Tag); err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to add tag")
	}
	h.deps.Logger.Info().Str("device", id).Str("tag", req.Tag).Msg("tag added")
	return success(c, "Tag added successfully")
}

func (h *AdminHandler) UpdateTag(c *fiber.Ctx) error {
	var req tagRequest
	if err := c.BodyParser(&req); err != nil || req.Tag == "" {
		return fail(c, fiber.StatusBadRequest, "New tag is required")
	}
	id, oldTag := param(c, "id"), param(c, "tag")
	if err := h.deps.acs().ReplaceTag(c.UserContext(), id, oldTag, req.Tag); err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to update tag")
	}
	h.deps.Logger.Info().Str("device", id).Str("old", oldTag).Str("new", req.Tag).Msg("tag updated")
	return success(c, "Tag updated successfully")
}

func (h *AdminHandler) RemoveTag(c *fiber.Ctx) error {
	id, tag := param(c, "id"), param(c, "tag")
	if err := h.deps.acs().RemoveTag(c.UserContext(), id, tag); err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to remove tag")
	}
	h.deps.Logger.Info().Str("device", id).Str("tag", tag).Msg("tag removed")
	return success(c, "Tag removed successfully")
}
