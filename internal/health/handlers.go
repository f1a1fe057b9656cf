package health

import (
	"context"
	"strconv"
	"time"

	"github.com/technicaldee/locallift/internal/middleware"
	"github.com/technicaldee/locallift/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Handlers holds dependencies for health endpoints.
type Handlers struct {
	Rdb      *redis.Client
	DB       *gorm.DB
	Pinger   DBPinger
	AdminKey string
}

// Root GET /. Minimal liveness summary.
func (h *Handlers) Root(c *fiber.Ctx) error {
	result := CollectHealth(context.Background(), h.Rdb, h.Pinger)
	return c.JSON(fiber.Map{
		"service": "locallift-ledger",
		"status":  result.Status,
	})
}

// JSON GET /health/json. Full health snapshot.
func (h *Handlers) JSON(c *fiber.Ctx) error {
	result := CollectHealth(context.Background(), h.Rdb, h.Pinger)
	return c.JSON(fiber.Map{
		"service":      "locallift-ledger",
		"status":       result.Status,
		"runtime":      result.Runtime,
		"traffic":      result.Traffic,
		"dependencies": result.Dependencies,
	})
}

// Audit GET /health/audit. Read-only custody invariant verification over
// the persisted tables.
func (h *Handlers) Audit(c *fiber.Ctx) error {
	if h.DB == nil {
		return response.Error(c, "Database not configured", fiber.StatusServiceUnavailable, nil)
	}
	report, err := Audit(c.Context(), h.DB)
	if err != nil {
		return err
	}
	if !report.Clean {
		return response.Error(c, "Custody invariant violations detected", fiber.StatusInternalServerError, report)
	}
	return response.Success(c, "Custody invariants hold", report, nil)
}

// Reset GET /health/reset. Clears traffic stats in Redis. Requires query
// key matching the admin key.
func (h *Handlers) Reset(c *fiber.Ctx) error {
	key := c.Query("key")
	if key == "" || key != h.AdminKey {
		return response.Error(c, "Unauthorized", fiber.StatusForbidden, nil)
	}
	if h.Rdb == nil {
		return response.Error(c, "Redis not configured", fiber.StatusServiceUnavailable, nil)
	}
	ctx := context.Background()
	keys := []string{middleware.KeyReqTotal, middleware.KeyReqErrors, middleware.KeyResTime, middleware.KeyResCount, middleware.KeyStartTime, middleware.KeyLastReq}
	if err := h.Rdb.Del(ctx, keys...).Err(); err != nil {
		return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
	}
	if err := h.Rdb.Set(ctx, middleware.KeyStartTime, strconv.FormatInt(time.Now().UnixMilli(), 10), 0).Err(); err != nil {
		return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Stats reset successfully", fiber.Map{"success": true}, nil)
}
