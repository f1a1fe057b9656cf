package registry

import (
	"github.com/technicaldee/locallift/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *Service
}

// Register POST /api/v1/business/register
func (h *Handlers) Register(c *fiber.Ctx) error {
	var body struct {
		ID            string `json:"id"`
		CustodyWallet string `json:"custody_wallet"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	if body.ID == "" || body.CustodyWallet == "" {
		return response.Error(c, "Missing required fields", 400, nil)
	}

	business, err := h.Service.Register(c.Context(), body.ID, body.CustodyWallet)
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Business registered", business, nil)
}

// Deactivate POST /api/v1/business/deactivate
func (h *Handlers) Deactivate(c *fiber.Ctx) error {
	var body struct {
		ID string `json:"id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", 400, nil)
	}
	if body.ID == "" {
		return response.Error(c, "Missing required fields", 400, nil)
	}

	if err := h.Service.Deactivate(c.Context(), body.ID); err != nil {
		return err
	}
	return response.Success(c, "Business deactivated", fiber.Map{"id": body.ID}, nil)
}

// Get GET /api/v1/business/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id := c.Params("id")
	business, err := h.Service.Get(c.Context(), id)
	if err != nil {
		return err
	}
	return response.Success(c, "Business fetched", business, nil)
}
