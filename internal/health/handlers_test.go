package health

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/technicaldee/locallift/internal/domain"
	"github.com/technicaldee/locallift/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupHealthHandlers(t *testing.T) (*Handlers, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return &Handlers{
		Rdb:      rdb,
		DB:       nil,
		AdminKey: "test-admin-key",
	}, mr
}

func TestReset_Unauthorized(t *testing.T) {
	h, _ := setupHealthHandlers(t)
	app := fiber.New()
	app.Get("/health/reset", h.Reset)

	// No key
	resp, err := app.Test(httptest.NewRequest("GET", "/health/reset", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, "Unauthorized", out["error"].(map[string]interface{})["message"])

	// Wrong key
	resp2, err := app.Test(httptest.NewRequest("GET", "/health/reset?key=wrong", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp2.StatusCode)
}

func TestReset_Success(t *testing.T) {
	h, _ := setupHealthHandlers(t)
	app := fiber.New()
	app.Get("/health/reset", h.Reset)

	ctx := context.Background()
	require.NoError(t, h.Rdb.Set(ctx, middleware.KeyReqTotal, "5", 0).Err())
	resp, err := app.Test(httptest.NewRequest("GET", "/health/reset?key=test-admin-key", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "Stats reset successfully", out["message"])
	// Redis keys cleared; start_time set
	_, err = h.Rdb.Get(ctx, middleware.KeyReqTotal).Result()
	assert.Error(t, err)
	_, err = h.Rdb.Get(ctx, middleware.KeyStartTime).Result()
	assert.NoError(t, err)
}

func TestJSON_ReturnsStructure(t *testing.T) {
	h, _ := setupHealthHandlers(t)
	app := fiber.New()
	app.Get("/health/json", h.JSON)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/json", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "locallift-ledger", out["service"])
	assert.Contains(t, out, "status")
	assert.Contains(t, out, "runtime")
	assert.Contains(t, out, "traffic")
	assert.Contains(t, out, "dependencies")
}

func TestAuditEndpoint(t *testing.T) {
	h, _ := setupHealthHandlers(t)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.FundingPool{}, &domain.Investment{}, &domain.EscrowAccount{}))
	h.DB = db

	app := fiber.New()
	app.Get("/health/audit", h.Audit)

	// Clean ledger
	resp, err := app.Test(httptest.NewRequest("GET", "/health/audit", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Corrupt one pool: escrow disagrees with the ledger total
	pool := &domain.FundingPool{
		BusinessID:      "biz_1",
		Purpose:         "inventory",
		TargetAmount:    1000,
		CurrentAmount:   400,
		InterestRateBps: 1000,
		DurationSeconds: 3600,
		OpenedAt:        time.Now(),
		Status:          domain.PoolStatusOpen,
	}
	require.NoError(t, db.Create(pool).Error)
	require.NoError(t, db.Create(&domain.EscrowAccount{PoolID: pool.PoolID, HeldAmount: 1}).Error)

	resp2, err := app.Test(httptest.NewRequest("GET", "/health/audit", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp2.StatusCode)
	body, _ := io.ReadAll(resp2.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "error", out["status"])
}

func TestAuditEndpoint_NoDatabase(t *testing.T) {
	h, _ := setupHealthHandlers(t)
	app := fiber.New()
	app.Get("/health/audit", h.Audit)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/audit", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
