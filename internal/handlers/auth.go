package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/alijaya/ispportal/internal/middleware"
	"github.com/alijaya/ispportal/internal/otp"
	"github.com/alijaya/ispportal/internal/settings"
	"github.com/alijaya/ispportal/internal/telemetry"
	"github.com/gofiber/fiber/v2"
)

const minPhoneDigits = 10

type AuthHandler struct {
	deps *Deps
}

func NewAuthHandler(deps *Deps) *AuthHandler {
	return &AuthHandler{deps: deps}
}

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type phoneRequest struct {
	Phone string `json:"phone"`
}

type verifyRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
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

func (h *AuthHandler) issue(c *fiber.Ctx, claims middleware.Claims) error {
	token, expiresAt, err := h.deps.Auth.GenerateToken(claims)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to generate token")
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"token":     token,
		"expiresAt": expiresAt,
		"role":      claims.Role,
	})
}

// AdminLogin checks the credentials from the settings file.
func (h *AuthHandler) AdminLogin(c *fiber.Ctx) error {
	var req adminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return fail(c, fiber.StatusBadRequest, "Username and password are required")
	}

	snap := h.deps.Settings.Snapshot()
	username := snap.String(settings.KeyAdminUsername, settings.DefaultAdminUsername)
	password := snap.String(settings.KeyAdminPassword, settings.DefaultAdminPassword)
	if req.Username != username || !middleware.CheckPassword(password, req.Password) {
		h.deps.Logger.Warn().Str("username", req.Username).Str("ip", c.IP()).Msg("admin login failed")
		return fail(c, fiber.StatusUnauthorized, "Invalid credentials")
	}

	h.deps.Logger.Info().Str("username", req.Username).Msg("admin login")
	return h.issue(c, middleware.Claims{Role: middleware.RoleAdmin, Username: req.Username})
}

// lookupCustomer reports the customer's device ID, empty when the number is
// only known to the router.
func (h *AuthHandler) lookupCustomer(ctx context.Context, phone string) (string, bool) {
	device, err := h.deps.acs().FindByPhone(ctx, phone)
	if err == nil {
		return telemetry.ID(device), true
	}

	if h.deps.Router != nil {
		if router := h.deps.Router(); router.Configured() {
			if secret, err := router.FindSecretByPhone(ctx, phone); err == nil && secret != nil {
				return "", true
			}
		}
	}
	return "", false
}

// CustomerLogin starts an OTP login or signs the customer in directly.
func (h *AuthHandler) CustomerLogin(c *fiber.Ctx) error {
	var req phoneRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	phone := digits(req.Phone)
	if len(phone) < minPhoneDigits {
		return fail(c, fiber.StatusBadRequest, "Nomor telepon tidak valid")
	}

	deviceID, found := h.lookupCustomer(c.UserContext(), phone)
	if !found {
		h.deps.Logger.Warn().Str("phone", phone).Msg("customer login failed, phone not found")
		return fail(c, fiber.StatusNotFound, "Nomor pelanggan tidak ditemukan")
	}

	snap := h.deps.Settings.Snapshot()
	if snap.Bool(settings.KeyCustomerOTPEnabled, false) && h.deps.OTP != nil {
		expiresAt, err := h.deps.OTP.Begin(c.UserContext(), phone)
		if err != nil {
			h.deps.Logger.Error().Err(err).Str("phone", phone).Msg("failed to send OTP")
			return fail(c, fiber.StatusBadGateway, "Gagal mengirim kode OTP. Silakan coba lagi.")
		}
		return c.JSON(fiber.Map{
			"success":     true,
			"otpRequired": true,
			"expiresAt":   expiresAt,
			"otpLength":   snap.Int(settings.KeyOTPLength, settings.DefaultOTPLength),
		})
	}

	h.deps.Logger.Info().Str("phone", phone).Msg("customer login")
	return h.issue(c, middleware.Claims{Role: middleware.RoleCustomer, Phone: phone, DeviceID: deviceID})
}

// VerifyOTP completes an OTP login.
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	phone := digits(req.Phone)
	if phone == "" || req.Code == "" || h.deps.OTP == nil {
		return fail(c, fiber.StatusBadRequest, "Phone and code are required")
	}

	err := h.deps.OTP.Verify(c.UserContext(), phone, strings.TrimSpace(req.Code))
	switch {
	case errors.Is(err, otp.ErrNoPending):
		return fail(c, fiber.StatusBadRequest, "Session expired. Please login again.")
	case errors.Is(err, otp.ErrExpired):
		return fail(c, fiber.StatusUnauthorized, "OTP expired. Please login again.")
	case errors.Is(err, otp.ErrTooManyAttempts):
		return fail(c, fiber.StatusTooManyRequests, "Too many attempts. Please login again.")
	case errors.Is(err, otp.ErrInvalidCode):
		return fail(c, fiber.StatusUnauthorized, "Invalid OTP. Please try again.")
	case err != nil:
		return err
	}

	deviceID, _ := h.lookupCustomer(c.UserContext(), phone)
	h.deps.Logger.Info().Str("phone", phone).Msg("customer OTP verified")
	return h.issue(c, middleware.Claims{Role: middleware.RoleCustomer, Phone: phone, DeviceID: deviceID})
}

func (h *AuthHandler) ResendOTP(c *fiber.Ctx) error {
	var req phoneRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	phone := digits(req.Phone)
	if phone == "" || h.deps.OTP == nil {
		return fail(c, fiber.StatusBadRequest, "Phone is required")
	}

	expiresAt, err := h.deps.OTP.Resend(c.UserContext(), phone)
	if errors.Is(err, otp.ErrNoPending) {
		return fail(c, fiber.StatusBadRequest, "Session expired. Please login again.")
	}
	if err != nil {
		h.deps.Logger.Error().Err(err).Str("phone", phone).Msg("failed to resend OTP")
		return fail(c, fiber.StatusBadGateway, "Failed to resend OTP. Please try again.")
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "OTP sent successfully",
		"expiresAt": expiresAt.Format(time.RFC3339),
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.deps.Auth.Revoke(c); err != nil {
		return err
	}
	return success(c, "Logged out successfully")
}

// Me echoes the caller's claims.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return respond(c, middleware.CurrentClaims(c))
}
