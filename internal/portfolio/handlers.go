package portfolio

import (
	"github.com/technicaldee/locallift/internal/middleware"
	"github.com/technicaldee/locallift/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *Service
}

// Get GET /api/v1/investors/:id/portfolio. Investors may only read their
// own portfolio.
func (h *Handlers) Get(c *fiber.Ctx) error {
	requested := c.Params("id")
	if asserted := middleware.InvestorID(c); asserted != requested {
		return response.Error(c, "Forbidden", fiber.StatusForbidden, nil)
	}

	positions, stats, err := h.Service.Portfolio(c.Context(), requested)
	if err != nil {
		return err
	}
	return response.Success(c, "Portfolio fetched", fiber.Map{
		"positions": positions,
		"stats":     stats,
	}, nil)
}
