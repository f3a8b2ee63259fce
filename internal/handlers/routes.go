package handlers

import (
	"time"

	"github.com/alijaya/ispportal/internal/middleware"
	"github.com/gofiber/fiber/v2"
)

// Register mounts the API under /api.
func Register(app *fiber.App, deps *Deps) {
	authHandler := NewAuthHandler(deps)
	customerHandler := NewCustomerHandler(deps)
	adminHandler := NewAdminHandler(deps)
	networkHandler := NewNetworkHandler(deps)
	settingsHandler := NewSettingsHandler(deps)

	api := app.Group("/api")

	// Auth routes share one per-IP rate limit
	auth := api.Group("/auth", middleware.RateLimiter(20, time.Minute))
	auth.Post("/admin/login", authHandler.AdminLogin)
	auth.Post("/customer/login", authHandler.CustomerLogin)
	auth.Post("/customer/verify", authHandler.VerifyOTP)
	auth.Post("/customer/resend", authHandler.ResendOTP)
	auth.Post("/logout", deps.Auth.Required(), authHandler.Logout)
	auth.Get("/me", deps.Auth.Required(), authHandler.Me)

	customer := api.Group("/customer", deps.Auth.CustomerRequired())
	customer.Get("/dashboard", customerHandler.Dashboard)
	customer.Get("/device", customerHandler.Device)
	customer.Get("/status", customerHandler.Status)
	customer.Get("/speedtest", customerHandler.SpeedTest)
	customer.Post("/ssid", customerHandler.ChangeSSID)
	customer.Post("/password", customerHandler.ChangePassword)
	customer.Post("/restart", customerHandler.Restart)

	var audit middleware.AuditSink
	if deps.Audit != nil {
		audit = deps.Audit
	}
	admin := api.Group("/admin", deps.Auth.AdminRequired(), middleware.Audit(deps.Logger, audit))
	admin.Get("/dashboard", adminHandler.Dashboard)

	admin.Get("/devices", adminHandler.ListDevices)
	admin.Get("/devices/:id", adminHandler.GetDevice)
	admin.Post("/devices/:id/restart", adminHandler.Restart)
	admin.Post("/devices/:id/factory-reset", adminHandler.FactoryReset)
	admin.Post("/devices/:id/wifi", adminHandler.UpdateWiFi)
	admin.Post("/devices/:id/tags", adminHandler.AddTag)
	admin.Put("/devices/:id/tags/:tag", adminHandler.UpdateTag)
	admin.Delete("/devices/:id/tags/:tag", adminHandler.RemoveTag)

	admin.Get("/pppoe/active", networkHandler.ActiveSessions)
	admin.Get("/pppoe/secrets", networkHandler.Secrets)
	admin.Post("/pppoe/secrets", networkHandler.AddSecret)
	admin.Put("/pppoe/secrets/:name", networkHandler.UpdateSecret)
	admin.Delete("/pppoe/secrets/:name", networkHandler.RemoveSecret)
	admin.Post("/pppoe/secrets/:name/disconnect", networkHandler.Disconnect)
	admin.Get("/pppoe/profiles", networkHandler.Profiles)

	admin.Get("/hotspot/active", networkHandler.HotspotActive)
	admin.Get("/hotspot/users", networkHandler.HotspotUsers)
	admin.Post("/hotspot/users", networkHandler.AddHotspotUser)
	admin.Put("/hotspot/users/:name", networkHandler.UpdateHotspotUser)
	admin.Delete("/hotspot/users/:name", networkHandler.RemoveHotspotUser)
	admin.Get("/hotspot/profiles", networkHandler.HotspotProfiles)
	admin.Post("/hotspot/vouchers", networkHandler.GenerateVouchers)
	admin.Get("/hotspot/vouchers", networkHandler.VoucherBatches)
	admin.Get("/hotspot/vouchers/:id", networkHandler.VoucherBatch)

	admin.Get("/traffic", networkHandler.Traffic)

	admin.Get("/settings", settingsHandler.Get)
	admin.Post("/settings", settingsHandler.Update)
	admin.Post("/settings/backup", settingsHandler.Backup)
	admin.Get("/settings/backups", settingsHandler.BackupHistory)
	admin.Get("/monitor", settingsHandler.MonitorStatus)
	admin.Post("/monitor/run", settingsHandler.RunMonitor)
	admin.Post("/notifications/test", settingsHandler.TestNotification)
	admin.Get("/notifications", settingsHandler.Notifications)
	admin.Get("/audit", settingsHandler.AuditLog)
}
