package middleware

import (
	"crypto/subtle"

	"github.com/technicaldee/locallift/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const investorLocal = "investor_id"

// RequireIdentity ensures the upstream gateway attached an authenticated
// investor identity. This service performs no authentication itself; it
// trusts the X-Investor-Id assertion placed by the API layer in front of it.
func RequireIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get("X-Investor-Id")
		if id == "" {
			return response.Unauthorized(c, "Missing identity assertion")
		}
		c.Locals(investorLocal, id)
		return c.Next()
	}
}

// InvestorID returns the asserted investor identity ("" if absent).
func InvestorID(c *fiber.Ctx) string {
	if id, ok := c.Locals(investorLocal).(string); ok {
		return id
	}
	return ""
}

// RequireAdmin gates operator routes (sweeps, halt clearing) behind a shared
// admin key header.
func RequireAdmin(adminKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if adminKey == "" {
			return response.Unauthorized(c, "Admin routes disabled")
		}
		got := c.Get("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(adminKey)) != 1 {
			return response.Unauthorized(c, "Unauthorized")
		}
		return c.Next()
	}
}
