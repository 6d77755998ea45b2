package positions

import (
	possvc "portfel-backend/internal/application/positions"
	"portfel-backend/internal/interfaces/handlers/views"
	"portfel-backend/internal/middleware"
	"portfel-backend/internal/pkg/response"
	"portfel-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *possvc.Service
}

// POST /api/v1/portfolio-assets. 201 when the holding was created, 200 when it grew.
func (h *Handlers) Apply(c *fiber.Ctx) error {
	owner, ok := middleware.OwnerID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var body struct {
		Portfolio   string                   `json:"portfolio"`
		PortfolioID string                   `json:"portfolio_id"`
		AssetID     string                   `json:"asset_id"`
		Quantity    validation.DecimalString `json:"quantity"`
		Price       validation.DecimalString `json:"price"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if body.Portfolio == "" {
		body.Portfolio = body.PortfolioID
	}

	res, err := h.Service.ApplyPositionChange(c.UserContext(), owner, possvc.ChangeRequest{
		PortfolioID: body.Portfolio,
		AssetID:     body.AssetID,
		Quantity:    string(body.Quantity),
		Price:       string(body.Price),
	})
	if err != nil {
		return response.FromError(c, err)
	}

	data := fiber.Map{
		"holding":   views.FromHolding(res.Holding),
		"portfolio": views.FromPortfolio(res.Portfolio),
		"created":   res.Created,
	}
	if res.Created {
		return response.SuccessCreated(c, "Position created successfully", data, nil)
	}
	return response.Success(c, "Position updated successfully", data, nil)
}

// DELETE /api/v1/portfolio-assets/:id
func (h *Handlers) Remove(c *fiber.Ctx) error {
	owner, ok := middleware.OwnerID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := validation.PathUUID(c.Params("id"), "holding", "Holding not found.")
	if err != nil {
		return response.FromError(c, err)
	}
	if _, err := h.Service.RemovePosition(c.UserContext(), owner, id); err != nil {
		return response.FromError(c, err)
	}
	return response.NoContent(c)
}
