package deals

import (
	dealsvc "portfel-backend/internal/application/deals"
	possvc "portfel-backend/internal/application/positions"
	"portfel-backend/internal/interfaces/handlers/views"
	"portfel-backend/internal/middleware"
	"portfel-backend/internal/pkg/response"
	"portfel-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

const msgPortfolioNotFound = "Portfolio not found or does not belong to the user."

type Handlers struct {
	Service   *dealsvc.Service
	Positions *possvc.Service
}

// GET /api/v1/portfolios/:id/deals
func (h *Handlers) List(c *fiber.Ctx) error {
	owner, ok := middleware.OwnerID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := validation.PathUUID(c.Params("id"), "portfolio", msgPortfolioNotFound)
	if err != nil {
		return response.FromError(c, err)
	}
	data, err := h.Service.List(c.UserContext(), owner, id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Deals fetched successfully", data, fiber.Map{"count": len(data)})
}

// POST /api/v1/portfolios/:id/deals
func (h *Handlers) Record(c *fiber.Ctx) error {
	owner, ok := middleware.OwnerID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := validation.PathUUID(c.Params("id"), "portfolio", msgPortfolioNotFound)
	if err != nil {
		return response.FromError(c, err)
	}
	var body struct {
		AssetID    string                   `json:"asset_id"`
		Type       string                   `json:"type"`
		Quantity   validation.DecimalString `json:"quantity"`
		Price      validation.DecimalString `json:"price"`
		Commission validation.DecimalString `json:"commission"`
		Tax        validation.DecimalString `json:"tax"`
		Date       string                   `json:"date"`
		Address    string                   `json:"address"`
		Status     string                   `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}

	res, err := h.Positions.RecordDeal(c.UserContext(), owner, possvc.DealRequest{
		PortfolioID: id.String(),
		AssetID:     body.AssetID,
		Type:        body.Type,
		Quantity:    string(body.Quantity),
		Price:       string(body.Price),
		Commission:  string(body.Commission),
		Tax:         string(body.Tax),
		Address:     body.Address,
		Status:      body.Status,
		Date:        body.Date,
	})
	if err != nil {
		return response.FromError(c, err)
	}

	data := fiber.Map{
		"deal":      dealsvc.Format(res.Deal),
		"portfolio": views.FromPortfolio(res.Portfolio),
		"holding":   nil,
	}
	if res.Holding != nil {
		data["holding"] = views.FromHolding(*res.Holding)
	}
	return response.SuccessCreated(c, "Deal recorded successfully", data, nil)
}
