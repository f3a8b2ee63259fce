package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/alijaya/ispportal/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// AuditSink stores audit entries. Record must not block the request for long.
type AuditSink interface {
	Record(ctx context.Context, entry models.AuditLog)
}

// Audit logs successful state-changing admin requests and hands them to sink
// when one is given.
func Audit(log zerolog.Logger, sink AuditSink) fiber.Handler {
	return func(c *fiber.Ctx) error {
		method := c.Method()
		if method == fiber.MethodGet || method == fiber.MethodHead || method == fiber.MethodOptions {
			return c.Next()
		}

		err := c.Next()

		status := c.Response().StatusCode()
		claims := CurrentClaims(c)
		if err != nil || status < 200 || status >= 400 || claims == nil {
			return err
		}

		entry := models.AuditLog{
			Actor:     claims.Subject,
			Role:      claims.Role,
			Action:    auditAction(method),
			Entity:    entityFromPath(c.Path()),
			Method:    method,
			Path:      c.Path(),
			Status:    status,
			IPAddress: c.IP(),
			UserAgent: c.Get(fiber.HeaderUserAgent),
			CreatedAt: time.Now().UTC(),
		}
		log.Info().
			Str("actor", entry.Actor).
			Str("role", entry.Role).
			Str("action", entry.Action).
			Str("entity", entry.Entity).
			Str("path", entry.Path).
			Str("ip", entry.IPAddress).
			Msg("audit")
		if sink != nil {
			sink.Record(c.UserContext(), entry)
		}
		return nil
	}
}

func auditAction(method string) string {
	switch method {
	case fiber.MethodPost:
		return "create"
	case fiber.MethodPut, fiber.MethodPatch:
		return "update"
	case fiber.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}

// entityFromPath takes the segment after the role prefix, so
// /api/admin/pppoe/secrets/*1 yields "pppoe".
func entityFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if (p == "admin" || p == "customer") && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	if len(parts) > 0 {
		return parts[len(parts)-1]
	}
	return ""
}
