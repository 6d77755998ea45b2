package portfolios

import (
	portfoliosvc "portfel-backend/internal/application/portfolios"
	"portfel-backend/internal/interfaces/handlers/views"
	"portfel-backend/internal/middleware"
	"portfel-backend/internal/pkg/response"
	"portfel-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

const msgNotFound = "Portfolio not found or does not belong to the user."

type Handlers struct {
	Service *portfoliosvc.Service
}

type nameBody struct {
	Name string `json:"name"`
}

// POST /api/v1/portfolios
func (h *Handlers) Create(c *fiber.Ctx) error {
	owner, ok := middleware.OwnerID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var body nameBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	p, err := h.Service.Create(c.UserContext(), owner, body.Name)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Portfolio created successfully", views.FromPortfolio(*p), nil)
}

// GET /api/v1/portfolios
func (h *Handlers) List(c *fiber.Ctx) error {
	owner, ok := middleware.OwnerID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	list, err := h.Service.List(c.UserContext(), owner)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Portfolios fetched successfully", views.FromPortfolios(list), fiber.Map{"count": len(list)})
}

// GET /api/v1/portfolios/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	owner, ok := middleware.OwnerID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := validation.PathUUID(c.Params("id"), "portfolio", msgNotFound)
	if err != nil {
		return response.FromError(c, err)
	}
	p, err := h.Service.Get(c.UserContext(), owner, id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Portfolio fetched successfully", views.FromPortfolio(*p), nil)
}

// PATCH /api/v1/portfolios/:id
func (h *Handlers) Rename(c *fiber.Ctx) error {
	owner, ok := middleware.OwnerID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := validation.PathUUID(c.Params("id"), "portfolio", msgNotFound)
	if err != nil {
		return response.FromError(c, err)
	}
	var body nameBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	p, err := h.Service.Rename(c.UserContext(), owner, id, body.Name)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Portfolio updated successfully", views.FromPortfolio(*p), nil)
}

// DELETE /api/v1/portfolios/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	owner, ok := middleware.OwnerID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := validation.PathUUID(c.Params("id"), "portfolio", msgNotFound)
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.Delete(c.UserContext(), owner, id); err != nil {
		return response.FromError(c, err)
	}
	return response.NoContent(c)
}

// POST /api/v1/portfolios/:id/recompute
func (h *Handlers) Recompute(c *fiber.Ctx) error {
	owner, ok := middleware.OwnerID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := validation.PathUUID(c.Params("id"), "portfolio", msgNotFound)
	if err != nil {
		return response.FromError(c, err)
	}
	p, err := h.Service.Recompute(c.UserContext(), owner, id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Portfolio recomputed successfully", views.FromPortfolio(*p), nil)
}
