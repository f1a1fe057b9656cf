package pool

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/technicaldee/locallift/internal/domain"
	"github.com/technicaldee/locallift/internal/middleware"
	"github.com/technicaldee/locallift/internal/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminKey = "test-admin-key"

func setupPoolAPI(t *testing.T) (*fiber.App, *Service) {
	svc, _, _ := setupLedger(t)

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	handlers := &Handlers{Service: svc}
	group := app.Group("/api/v1/pools", middleware.RequireIdentity())
	group.Post("/create", handlers.Create)
	group.Post("/invest", handlers.Invest)
	group.Post("/cancel", handlers.Cancel)
	group.Post("/release-principal", handlers.ReleasePrincipal)
	group.Post("/settle-repayment", handlers.SettleRepayment)
	group.Post("/mark-defaulted", handlers.MarkDefaulted)
	group.Post("/sweep-expired", middleware.RequireAdmin(testAdminKey), handlers.SweepExpired)
	group.Post("/clear-halt", middleware.RequireAdmin(testAdminKey), handlers.ClearHalt)
	group.Get("/:id", handlers.Get)
	return app, svc
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}, headers map[string]string) (*http.Response, map[string]interface{}) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var parsed map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &parsed))
	}
	return resp, parsed
}

func asInvestor(id string) map[string]string {
	return map[string]string{"X-Investor-Id": id}
}

func errorCode(t *testing.T, body map[string]interface{}) string {
	errObj, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "expected error envelope, got %v", body)
	code, _ := errObj["code"].(string)
	return code
}

func TestPoolAPI_RequiresIdentity(t *testing.T) {
	app, _ := setupPoolAPI(t)

	resp, body := doJSON(t, app, "POST", "/api/v1/pools/create", fiber.Map{
		"business_id": "biz_1",
	}, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "error", body["status"])
}

func TestPoolAPI_CreateAndInvest(t *testing.T) {
	app, _ := setupPoolAPI(t)

	resp, body := doJSON(t, app, "POST", "/api/v1/pools/create", fiber.Map{
		"business_id":       "biz_1",
		"target_amount":     1000,
		"duration_seconds":  3600,
		"interest_rate_bps": 1000,
		"purpose":           "New oven",
	}, asInvestor("owner_1"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	data := body["data"].(map[string]interface{})
	poolID := data["pool_id"].(string)
	assert.Equal(t, domain.PoolStatusOpen, data["status"])

	resp, body = doJSON(t, app, "POST", "/api/v1/pools/invest", fiber.Map{
		"pool_id": poolID,
		"amount":  400,
	}, asInvestor("alice"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	inv := body["data"].(map[string]interface{})
	assert.Equal(t, "alice", inv["investor_id"])
	assert.Equal(t, float64(400), inv["amount"])

	resp, body = doJSON(t, app, "GET", "/api/v1/pools/"+poolID, nil, asInvestor("alice"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	snapshot := body["data"].(map[string]interface{})
	assert.Equal(t, float64(400), snapshot["current_amount"])
}

func TestPoolAPI_InvestErrorEnvelope(t *testing.T) {
	app, svc := setupPoolAPI(t)
	pool := mustCreatePool(t, svc, 1000)

	resp, body := doJSON(t, app, "POST", "/api/v1/pools/invest", fiber.Map{
		"pool_id": pool.PoolID.String(),
		"amount":  1500,
	}, asInvestor("alice"))
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, string(apperr.CodeExceedsCapacity), errorCode(t, body))

	resp, body = doJSON(t, app, "POST", "/api/v1/pools/invest", fiber.Map{
		"pool_id": "not-a-uuid",
		"amount":  100,
	}, asInvestor("alice"))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "error", body["status"])
}

func TestPoolAPI_GetUnknownPool(t *testing.T) {
	app, _ := setupPoolAPI(t)

	resp, body := doJSON(t, app, "GET", "/api/v1/pools/00000000-0000-0000-0000-000000000001", nil, asInvestor("alice"))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(apperr.CodeNotFound), errorCode(t, body))
}

func TestPoolAPI_AdminRoutesRequireKey(t *testing.T) {
	app, _ := setupPoolAPI(t)

	resp, _ := doJSON(t, app, "POST", "/api/v1/pools/sweep-expired", nil, asInvestor("alice"))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	headers := asInvestor("alice")
	headers["X-Admin-Key"] = "wrong"
	resp, _ = doJSON(t, app, "POST", "/api/v1/pools/sweep-expired", nil, headers)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	headers["X-Admin-Key"] = testAdminKey
	resp, body := doJSON(t, app, "POST", "/api/v1/pools/sweep-expired", nil, headers)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["cancelled"])
}

func TestPoolAPI_FullLifecycle(t *testing.T) {
	app, _ := setupPoolAPI(t)

	_, body := doJSON(t, app, "POST", "/api/v1/pools/create", fiber.Map{
		"business_id":       "biz_1",
		"target_amount":     300,
		"duration_seconds":  2592000,
		"interest_rate_bps": 1000,
		"purpose":           "Stock",
	}, asInvestor("owner_1"))
	poolID := body["data"].(map[string]interface{})["pool_id"].(string)

	resp, _ := doJSON(t, app, "POST", "/api/v1/pools/invest", fiber.Map{
		"pool_id": poolID, "amount": 100,
	}, asInvestor("alice"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp, _ = doJSON(t, app, "POST", "/api/v1/pools/invest", fiber.Map{
		"pool_id": poolID, "amount": 200,
	}, asInvestor("bob"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body = doJSON(t, app, "POST", "/api/v1/pools/release-principal", fiber.Map{
		"pool_id": poolID,
	}, asInvestor("owner_1"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(293), data["released_amount"])
	assert.Equal(t, float64(7), data["platform_fee"])

	resp, body = doJSON(t, app, "POST", "/api/v1/pools/settle-repayment", fiber.Map{
		"pool_id":                poolID,
		"total_repayment_amount": 333,
		"batch_id":               "batch-http",
	}, asInvestor("owner_1"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	disbursements := body["data"].(map[string]interface{})["disbursements"].([]interface{})
	var total float64
	for _, d := range disbursements {
		total += d.(map[string]interface{})["amount"].(float64)
	}
	assert.Equal(t, float64(333), total)

	resp, body = doJSON(t, app, "GET", "/api/v1/pools/"+poolID, nil, asInvestor("alice"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.PoolStatusCompleted, body["data"].(map[string]interface{})["status"])
}

func TestPoolAPI_CancelAndStateErrors(t *testing.T) {
	app, svc := setupPoolAPI(t)
	pool := mustCreatePool(t, svc, 1000)
	_, err := svc.Invest(context.Background(), pool.PoolID, "alice", 100)
	require.NoError(t, err)

	resp, _ := doJSON(t, app, "POST", "/api/v1/pools/cancel", fiber.Map{
		"pool_id": pool.PoolID.String(),
	}, asInvestor("owner_1"))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Cancelled pools reject further transitions with 409.
	resp, body := doJSON(t, app, "POST", "/api/v1/pools/release-principal", fiber.Map{
		"pool_id": pool.PoolID.String(),
	}, asInvestor("owner_1"))
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, string(apperr.CodeInvalidPoolState), errorCode(t, body))
}

// Confirms the snapshot never leaks investor identities through the pool view.
func TestPoolAPI_SnapshotOmitsInvestors(t *testing.T) {
	app, svc := setupPoolAPI(t)
	pool := mustCreatePool(t, svc, 1000)
	_, err := svc.Invest(context.Background(), pool.PoolID, "alice", 100)
	require.NoError(t, err)

	_, body := doJSON(t, app, "GET", "/api/v1/pools/"+pool.PoolID.String(), nil, asInvestor("bob"))
	raw, err := json.Marshal(body["data"])
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "alice")
}
