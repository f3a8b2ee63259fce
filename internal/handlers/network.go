package handlers

import (
	"errors"

	"github.com/alijaya/ispportal/internal/mikrotik"
	"github.com/alijaya/ispportal/internal/settings"
	"github.com/alijaya/ispportal/internal/voucher"
	"github.com/gofiber/fiber/v2"
)

// NetworkHandler serves PPPoE, hotspot and traffic data from the router.
type NetworkHandler struct {
	deps *Deps
}

func NewNetworkHandler(deps *Deps) *NetworkHandler {
	return &NetworkHandler{deps: deps}
}

// router writes a 503 and reports false when no router is configured.
func (h *NetworkHandler) router(c *fiber.Ctx) (Router, bool) {
	if h.deps.Router != nil {
		if r := h.deps.Router(); r.Configured() {
			return r, true
		}
	}
	_ = fail(c, fiber.StatusServiceUnavailable, "MikroTik not configured")
	return nil, false
}

func (h *NetworkHandler) list(c *fiber.Ctx, items interface{}, count int, err error, message string) error {
	if err != nil {
		return upstreamError(c, h.deps.Logger, err, message)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"total":   count,
		"data":    items,
	})
}

func (h *NetworkHandler) ActiveSessions(c *fiber.Ctx) error {
	r, ok := h.router(c)
	if !ok {
		return nil
	}
	sessions, err := r.ActiveSessions(c.UserContext())
	return h.list(c, sessions, len(sessions), err, "Failed to get PPPoE sessions")
}

func (h *NetworkHandler) Secrets(c *fiber.Ctx) error {
	r, ok := h.router(c)
	if !ok {
		return nil
	}
	secrets, err := r.Secrets(c.UserContext())
	return h.list(c, secrets, len(secrets), err, "Failed to get PPPoE secrets")
}

func (h *NetworkHandler) Profiles(c *fiber.Ctx) error {
	r, ok := h.router(c)
	if !ok {
		return nil
	}
	profiles, err := r.Profiles(c.UserContext())
	return h.list(c, profiles, len(profiles), err, "Failed to get PPPoE profiles")
}

type secretRequest struct {
	Name          string `json:"name"`
	Password      string `json:"password"`
	Service       string `json:"service"`
	Profile       string `json:"profile"`
	LocalAddress  string `json:"local_address"`
	RemoteAddress string `json:"remote_address"`
	Comment       string `json:"comment"`
	Disabled      *bool  `json:"disabled"`
}

// apply overlays the non-empty request fields on s.
func (req secretRequest) apply(s mikrotik.Secret) mikrotik.Secret {
	if req.Name != "" {
		s.Name = req.Name
	}
	if req.Password != "" {
		s.Password = req.Password
	}
	if req.Service != "" {
		s.Service = req.Service
	}
	if req.Profile != "" {
		s.Profile = req.Profile
	}
	if req.LocalAddress != "" {
		s.LocalAddress = req.LocalAddress
	}
	if req.RemoteAddress != "" {
		s.RemoteAddress = req.RemoteAddress
	}
	if req.Comment != "" {
		s.Comment = req.Comment
	}
	if req.Disabled != nil {
		s.Disabled = *req.Disabled
	}
	return s
}

func findSecret(secrets []mikrotik.Secret, name string) (mikrotik.Secret, bool) {
	for _, s := range secrets {
		if s.Name == name {
			return s, true
		}
	}
	return mikrotik.Secret{}, false
}

func (h *NetworkHandler) AddSecret(c *fiber.Ctx) error {
	r, ok := h.router(c)
	if !ok {
		return nil
	}
	var req secretRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Name == "" || req.Password == "" || req.Profile == "" {
		return fail(c, fiber.StatusBadRequest, "Username, password, and profile are required")
	}
	id, err := r.AddSecret(c.UserContext(), req.apply(mikrotik.Secret{}))
	if err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to add PPPoE user")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "PPPoE user added successfully",
		"id":      id,
	})
}

func (h *NetworkHandler) UpdateSecret(c *fiber.Ctx) error {
	r, ok := h.router(c)
	if !ok {
		return nil
	}
	var req secretRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	secrets, err := r.Secrets(c.UserContext())
	if err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to update PPPoE user")
	}
	existing, found := findSecret(secrets, param(c, "name"))
	if !found {
		return fail(c, fiber.StatusNotFound, "PPPoE user not found")
	}
	if err := r.UpdateSecret(c.UserContext(), existing.ID, req.apply(existing)); err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to update PPPoE user")
	}
	return success(c, "PPPoE user updated successfully")
}

func (h *NetworkHandler) RemoveSecret(c *fiber.Ctx) error {
	r, ok := h.router(c)
	if !ok {
		return nil
	}
	name := param(c, "name")
	secrets, err := r.Secrets(c.UserContext())
	if err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to delete PPPoE user")
	}
	existing, found := findSecret(secrets, name)
	if !found {
		return fail(c, fiber.StatusNotFound, "PPPoE user not found")
	}
	if err := r.RemoveSecret(c.UserContext(), existing.ID); err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to delete PPPoE user")
	}
	// a live session would otherwise outlast its account
	if err := r.DisconnectActive(c.UserContext(), name); err != nil && !errors.Is(err, mikrotik.ErrNotFound) {
		h.deps.Logger.Warn().Err(err).Str("name", name).Msg("failed to disconnect removed PPPoE user")
	}
	return success(c, "PPPoE user deleted successfully")
}

func (h *NetworkHandler) Disconnect(c *fiber.Ctx) error {
	r, ok := h.router(c)
	if !ok {
		return nil
	}
	name := param(c, "name")
	if err := r.DisconnectActive(c.UserContext(), name); err != nil {
		if errors.Is(err, mikrotik.ErrNotFound) {
			return fail(c, fiber.StatusNotFound, "User is not connected")
		}
		return upstreamError(c, h.deps.Logger, err, "Failed to disconnect user")
	}
	h.deps.Logger.Info().Str("name", name).Msg("PPPoE session disconnected")
	return success(c, "User "+name+" disconnected")
}

func (h *NetworkHandler) HotspotActive(c *fiber.Ctx) error {
	r, ok := h.router(c)
	if !ok {
		return nil
	}
	active, err := r.HotspotActive(c.UserContext())
	return h.list(c, active, len(active), err, "Failed to get hotspot sessions")
}

func (h *NetworkHandler) HotspotUsers(c *fiber.Ctx) error {
	r, ok := h.router(c)
	if !ok {
		return nil
	}
	users, err := r.HotspotUsers(c.UserContext())
	return h.list(c, users, len(users), err, "Failed to get hotspot users")
}

func (h *NetworkHandler) HotspotProfiles(c *fiber.Ctx) error {
	r, ok := h.router(c)
	if !ok {
		return nil
	}
	profiles, err := r.HotspotProfiles(c.UserContext())
	return h.list(c, profiles, len(profiles), err, "Failed to get hotspot profiles")
}

type hotspotUserRequest struct {
	Server      string `json:"server"`
	Name        string `json:"name"`
	Password    string `json:"password"`
	Profile     string `json:"profile"`
	LimitUptime string `json:"limit_uptime"`
	Comment     string `json:"comment"`
	Disabled    *bool  `json:"disabled"`
}

func (req hotspotUserRequest) apply(u mikrotik.HotspotUser) mikrotik.HotspotUser {
	if req.Server != "" {
		u.Server = req.Server
	}
	if req.Name != "" {
		u.Name = req.Name
	}
	if req.Password != "" {
		u.Password = req.Password
	}
	if req.Profile != "" {
		u.Profile = req.Profile
	}
	if req.LimitUptime != "" {
		u.LimitUptime = req.LimitUptime
	}
	if req.Comment != "" {
		u.Comment = req.Comment
	}
	if req.Disabled != nil {
		u.Disabled = *req.Disabled
	}
	return u
}

func findHotspotUser(users []mikrotik.HotspotUser, name string) (mikrotik.HotspotUser, bool) {
	for _, u := range users {
		if u.Name == name {
			return u, true
		}
	}
	return mikrotik.HotspotUser{}, false
}

func (h *NetworkHandler) AddHotspotUser(c *fiber.Ctx) error {
	r, ok := h.router(c)
	if !ok {
		return nil
	}
	var req hotspotUserRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Name == "" || req.Password == "" || req.Profile == "" {
		return fail(c, fiber.StatusBadRequest, "Username, password, and profile are required")
	}
	id, err := r.AddHotspotUser(c.UserContext(), req.apply(mikrotik.HotspotUser{}))
	if err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to add hotspot user")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Hotspot user added successfully",
		"id":      id,
	})
}

func (h *NetworkHandler) UpdateHotspotUser(c *fiber.Ctx) error {
	r, ok := h.router(c)
	if !ok {
		return nil
	}
	var req hotspotUserRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	users, err := r.HotspotUsers(c.UserContext())
	if err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to update hotspot user")
	}
	existing, found := findHotspotUser(users, param(c, "name"))
	if !found {
		return fail(c, fiber.StatusNotFound, "Hotspot user not found")
	}
	if err := r.UpdateHotspotUser(c.UserContext(), existing.ID, req.apply(existing)); err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to update hotspot user")
	}
	return success(c, "Hotspot user updated successfully")
}

func (h *NetworkHandler) RemoveHotspotUser(c *fiber.Ctx) error {
	r, ok := h.router(c)
	if !ok {
		return nil
	}
	users, err := r.HotspotUsers(c.UserContext())
	if err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to delete hotspot user")
	}
	existing, found := findHotspotUser(users, param(c, "name"))
	if !found {
		return fail(c, fiber.StatusNotFound, "Hotspot user not found")
	}
	if err := r.RemoveHotspotUser(c.UserContext(), existing.ID); err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to delete hotspot user")
	}
	return success(c, "Hotspot user deleted successfully")
}

type voucherRequest struct {
	voucher.Request
	SendTo string `json:"sendTo"`
}

// GenerateVouchers creates a batch of hotspot users and optionally sends the
// list to a WhatsApp number.
func (h *NetworkHandler) GenerateVouchers(c *fiber.Ctx) error {
	r, ok := h.router(c)
	if !ok {
		return nil
	}
	var req voucherRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	var recorder voucher.Recorder
	if h.deps.Vouchers != nil {
		recorder = h.deps.Vouchers
	}
	batch, err := voucher.NewGenerator(r, recorder, h.deps.Logger).Generate(c.UserContext(), req.Request)
	if errors.Is(err, voucher.ErrInvalidRequest) {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to generate vouchers")
	}

	company := h.deps.Settings.Snapshot().String(settings.KeyCompanyHeader, settings.DefaultCompanyHeader)
	message := voucher.Message(batch, company)
	sent := false
	if req.SendTo != "" && h.deps.Messenger != nil && len(batch.Created()) > 0 {
		if err := h.deps.Messenger.SendFormatted(c.UserContext(), req.SendTo, message); err != nil {
			h.deps.Logger.Warn().Err(err).Str("to", req.SendTo).Msg("failed to send vouchers")
		} else {
			sent = true
		}
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"message":  "Vouchers generated",
		"batch":    batch,
		"created":  len(batch.Created()),
		"failed":   batch.FailedCount(),
		"text":     message,
		"whatsapp": sent,
	})
}

func (h *NetworkHandler) VoucherBatches(c *fiber.Ctx) error {
	if h.deps.Vouchers == nil {
		return fail(c, fiber.StatusServiceUnavailable, "Database not enabled")
	}
	batches, err := h.deps.Vouchers.Recent(c.UserContext(), c.QueryInt("limit", 50))
	if err != nil {
		return err
	}
	return respond(c, batches)
}

func (h *NetworkHandler) VoucherBatch(c *fiber.Ctx) error {
	if h.deps.Vouchers == nil {
		return fail(c, fiber.StatusServiceUnavailable, "Database not enabled")
	}
	batch, err := h.deps.Vouchers.Get(c.UserContext(), param(c, "id"))
	if err != nil {
		return fail(c, fiber.StatusNotFound, "Voucher batch not found")
	}
	return respond(c, batch)
}

// Traffic combines router resources, interface counters and session counts.
func (h *NetworkHandler) Traffic(c *fiber.Ctx) error {
	r, ok := h.router(c)
	if !ok {
		return nil
	}
	ctx := c.UserContext()
	resource, err := r.Resource(ctx)
	if err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to get traffic stats")
	}
	interfaces, err := r.Interfaces(ctx)
	if err != nil {
		return upstreamError(c, h.deps.Logger, err, "Failed to get traffic stats")
	}

	pppoe, hotspot := 0, 0
	if sessions, err := r.ActiveSessions(ctx); err == nil {
		pppoe = len(sessions)
	}
	if active, err := r.HotspotActive(ctx); err == nil {
		hotspot = len(active)
	}

	return respond(c, fiber.Map{
		"resource":    resource,
		"memoryUsage": resource.MemoryUsage(),
		"interfaces":  interfaces,
		"activeConnections": fiber.Map{
			"pppoe":   pppoe,
			"hotspot": hotspot,
			"total":   pppoe + hotspot,
		},
	})
}
