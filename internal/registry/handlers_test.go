package registry

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/technicaldee/locallift/internal/middleware"
	"github.com/technicaldee/locallift/internal/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRegistryAPI(t *testing.T) *fiber.App {
	svc := setupRegistry(t)
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	handlers := &Handlers{Service: svc}
	group := app.Group("/api/v1/business", middleware.RequireIdentity())
	group.Post("/register", handlers.Register)
	group.Post("/deactivate", handlers.Deactivate)
	group.Get("/:id", handlers.Get)
	return app
}

func registerReq(t *testing.T, app *fiber.App, payload interface{}) (int, map[string]interface{}) {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", "/api/v1/business/register", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Investor-Id", "owner_1")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return resp.StatusCode, out
}

func TestRegisterAPI(t *testing.T) {
	app := setupRegistryAPI(t)

	status, body := registerReq(t, app, fiber.Map{
		"id":             "biz_1",
		"custody_wallet": "0xabc123",
	})
	assert.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "success", body["status"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "biz_1", data["id"])
	assert.Equal(t, true, data["active"])
}

func TestRegisterAPI_Duplicate(t *testing.T) {
	app := setupRegistryAPI(t)

	status, _ := registerReq(t, app, fiber.Map{"id": "biz_1", "custody_wallet": "0xabc123"})
	require.Equal(t, fiber.StatusCreated, status)

	status, body := registerReq(t, app, fiber.Map{"id": "biz_1", "custody_wallet": "0xother"})
	assert.Equal(t, fiber.StatusConflict, status)
	errObj := body["error"].(map[string]interface{})
	assert.Equal(t, string(apperr.CodeAlreadyExists), errObj["code"])
}

func TestRegisterAPI_InvalidWallet(t *testing.T) {
	app := setupRegistryAPI(t)

	status, body := registerReq(t, app, fiber.Map{
		"id":             "biz_1",
		"custody_wallet": "0x0000000000000000000000000000000000000000",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	errObj := body["error"].(map[string]interface{})
	assert.Equal(t, string(apperr.CodeInvalidWallet), errObj["code"])
}

func TestBusinessGetAPI(t *testing.T) {
	app := setupRegistryAPI(t)

	status, _ := registerReq(t, app, fiber.Map{"id": "biz_1", "custody_wallet": "0xabc123"})
	require.Equal(t, fiber.StatusCreated, status)

	req := httptest.NewRequest("GET", "/api/v1/business/biz_1", nil)
	req.Header.Set("X-Investor-Id", "alice")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Missing identity assertion is rejected before the handler runs.
	req = httptest.NewRequest("GET", "/api/v1/business/biz_1", nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
