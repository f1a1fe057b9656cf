package pool

import (
	"github.com/technicaldee/locallift/internal/middleware"
	"github.com/technicaldee/locallift/internal/pkg/apperr"
	"github.com/technicaldee/locallift/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
}

// Create POST /api/v1/pools/create
func (h *Handlers) Create(c *fiber.Ctx) error {
	var body struct {
		BusinessID      string `json:"business_id"`
		TargetAmount    int64  `json:"target_amount"`
		DurationSeconds int64  `json:"duration_seconds"`
		InterestRateBps int64  `json:"interest_rate_bps"`
		Purpose         string `json:"purpose"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	if body.BusinessID == "" {
		return response.Error(c, "Missing required fields", 400, nil)
	}

	pool, err := h.Service.CreatePool(c.Context(), body.BusinessID, body.TargetAmount, body.DurationSeconds, body.InterestRateBps, body.Purpose)
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Pool created", pool, nil)
}

// Invest POST /api/v1/pools/invest. Investor identity comes from the
// upstream assertion, never the request body.
func (h *Handlers) Invest(c *fiber.Ctx) error {
	var body struct {
		PoolID string `json:"pool_id"`
		Amount int64  `json:"amount"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	poolID, err := uuid.Parse(body.PoolID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for pool_id", 400, nil)
	}
	investorID := middleware.InvestorID(c)
	if investorID == "" {
		return response.Unauthorized(c, "Missing identity assertion")
	}

	inv, err := h.Service.Invest(c.Context(), poolID, investorID, body.Amount)
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Investment recorded", inv, nil)
}

// Cancel POST /api/v1/pools/cancel
func (h *Handlers) Cancel(c *fiber.Ctx) error {
	poolID, err := parsePoolID(c)
	if err != nil {
		return err
	}
	if err := h.Service.Cancel(c.Context(), poolID); err != nil {
		return err
	}
	return response.Success(c, "Pool cancelled, investors refunded", fiber.Map{"pool_id": poolID}, nil)
}

// ReleasePrincipal POST /api/v1/pools/release-principal
func (h *Handlers) ReleasePrincipal(c *fiber.Ctx) error {
	poolID, err := parsePoolID(c)
	if err != nil {
		return err
	}
	released, fee, err := h.Service.ReleasePrincipal(c.Context(), poolID)
	if err != nil {
		return err
	}
	return response.Success(c, "Principal released to business", fiber.Map{
		"pool_id":         poolID,
		"released_amount": released,
		"platform_fee":    fee,
	}, nil)
}

// SettleRepayment POST /api/v1/pools/settle-repayment
func (h *Handlers) SettleRepayment(c *fiber.Ctx) error {
	var body struct {
		PoolID               string `json:"pool_id"`
		TotalRepaymentAmount int64  `json:"total_repayment_amount"`
		BatchID              string `json:"batch_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	poolID, err := uuid.Parse(body.PoolID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for pool_id", 400, nil)
	}

	batch, err := h.Service.SettleRepayment(c.Context(), poolID, body.TotalRepaymentAmount, body.BatchID)
	if err != nil {
		return err
	}
	return response.Success(c, "Repayment settled", fiber.Map{
		"pool_id":       poolID,
		"disbursements": batch,
	}, nil)
}

// MarkDefaulted POST /api/v1/pools/mark-defaulted
func (h *Handlers) MarkDefaulted(c *fiber.Ctx) error {
	poolID, err := parsePoolID(c)
	if err != nil {
		return err
	}
	if err := h.Service.MarkDefaulted(c.Context(), poolID); err != nil {
		return err
	}
	return response.Success(c, "Pool marked defaulted", fiber.Map{"pool_id": poolID}, nil)
}

// SweepExpired POST /api/v1/pools/sweep-expired (admin)
func (h *Handlers) SweepExpired(c *fiber.Ctx) error {
	swept, err := h.Service.SweepExpired(c.Context())
	if err != nil {
		return err
	}
	return response.Success(c, "Expired pools swept", fiber.Map{"cancelled": swept}, nil)
}

// ClearHalt POST /api/v1/pools/clear-halt (admin)
func (h *Handlers) ClearHalt(c *fiber.Ctx) error {
	poolID, err := parsePoolID(c)
	if err != nil {
		return err
	}
	if err := h.Service.ClearHalt(c.Context(), poolID); err != nil {
		return err
	}
	return response.Success(c, "Escrow halt cleared", fiber.Map{"pool_id": poolID}, nil)
}

// Get GET /api/v1/pools/:id. Investor-visible snapshot: totals and status,
// never other investors' identities.
func (h *Handlers) Get(c *fiber.Ctx) error {
	poolID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for pool id", 400, nil)
	}
	pool, err := h.Service.Get(c.Context(), poolID)
	if err != nil {
		return err
	}
	return response.Success(c, "Pool fetched", pool, nil)
}

func parsePoolID(c *fiber.Ctx) (uuid.UUID, error) {
	var body struct {
		PoolID string `json:"pool_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return uuid.Nil, apperr.New(apperr.CodeInvalidParameters, "missing required fields")
	}
	poolID, err := uuid.Parse(body.PoolID)
	if err != nil {
		return uuid.Nil, apperr.New(apperr.CodeInvalidParameters, "invalid UUID format for pool_id")
	}
	return poolID, nil
}
