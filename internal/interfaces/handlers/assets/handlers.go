package assets

import (
	assetsvc "portfel-backend/internal/application/assets"
	"portfel-backend/internal/interfaces/handlers/views"
	"portfel-backend/internal/pkg/response"
	"portfel-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

const (
	msgNotFound     = "Asset not found."
	msgTypeNotFound = "Asset type not found."
)

type Handlers struct {
	Service *assetsvc.Service
}

// GET /api/v1/assets?asset_type=&currency=&exchange=&market=&country=&search=
func (h *Handlers) List(c *fiber.Ctx) error {
	filter := assetsvc.ListFilter{
		Currency: c.Query("currency"),
		Exchange: c.Query("exchange"),
		Market:   c.Query("market"),
		Country:  c.Query("country"),
		Search:   c.Query("search"),
	}
	if raw := c.Query("asset_type"); raw != "" {
		f := validation.Fields{}
		id := f.UUID("asset_type", raw)
		if err := f.Err(); err != nil {
			return response.FromError(c, err)
		}
		filter.AssetTypeID = &id
	}
	list, err := h.Service.List(c.UserContext(), filter)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Assets fetched successfully", views.FromAssets(list), fiber.Map{"count": len(list)})
}

// GET /api/v1/assets/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := validation.PathUUID(c.Params("id"), "asset", msgNotFound)
	if err != nil {
		return response.FromError(c, err)
	}
	a, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Asset fetched successfully", views.FromAsset(*a), nil)
}

// POST /api/v1/assets (admin)
func (h *Handlers) Create(c *fiber.Ctx) error {
	var body struct {
		Ticker        string                   `json:"ticker"`
		ISIN          string                   `json:"isin"`
		Company       string                   `json:"company"`
		Country       string                   `json:"country"`
		Region        string                   `json:"region"`
		Exchange      string                   `json:"exchange"`
		Market        string                   `json:"market"`
		TradingType   string                   `json:"trading_type"`
		Currency      string                   `json:"currency"`
		Description   string                   `json:"description"`
		ManagementFee validation.DecimalString `json:"management_fee"`
		DividendYield validation.DecimalString `json:"dividend_yield"`
		PERatio       validation.DecimalString `json:"pe_ratio"`
		PBRatio       validation.DecimalString `json:"pb_ratio"`
		Beta          validation.DecimalString `json:"beta"`
		AssetTypeID   string                   `json:"asset_type_id"`
		CurrentPrice  validation.DecimalString `json:"current_price"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	a, err := h.Service.Create(c.UserContext(), assetsvc.CreateRequest{
		Ticker:        body.Ticker,
		ISIN:          body.ISIN,
		Company:       body.Company,
		Country:       body.Country,
		Region:        body.Region,
		Exchange:      body.Exchange,
		Market:        body.Market,
		TradingType:   body.TradingType,
		Currency:      body.Currency,
		Description:   body.Description,
		ManagementFee: string(body.ManagementFee),
		DividendYield: string(body.DividendYield),
		PERatio:       string(body.PERatio),
		PBRatio:       string(body.PBRatio),
		Beta:          string(body.Beta),
		AssetTypeID:   body.AssetTypeID,
		CurrentPrice:  string(body.CurrentPrice),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Asset created successfully", views.FromAsset(*a), nil)
}

// PATCH /api/v1/assets/:id/price (admin). {"current_price": null} clears the price.
func (h *Handlers) UpdatePrice(c *fiber.Ctx) error {
	id, err := validation.PathUUID(c.Params("id"), "asset", msgNotFound)
	if err != nil {
		return response.FromError(c, err)
	}
	var body struct {
		CurrentPrice *validation.DecimalString `json:"current_price"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	var price *string
	if body.CurrentPrice != nil {
		s := string(*body.CurrentPrice)
		price = &s
	}
	a, err := h.Service.UpdatePrice(c.UserContext(), id, price)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Asset price updated successfully", views.FromAsset(*a), nil)
}

// DELETE /api/v1/assets/:id (admin)
func (h *Handlers) Delete(c *fiber.Ctx) error {
	id, err := validation.PathUUID(c.Params("id"), "asset", msgNotFound)
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.Delete(c.UserContext(), id); err != nil {
		return response.FromError(c, err)
	}
	return response.NoContent(c)
}

// GET /api/v1/asset-types?ordering=risk_level
func (h *Handlers) ListTypes(c *fiber.Ctx) error {
	list, err := h.Service.ListTypes(c.UserContext(), c.Query("ordering"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Asset types fetched successfully", views.FromAssetTypes(list), fiber.Map{"count": len(list)})
}

// GET /api/v1/asset-types/:id
func (h *Handlers) GetType(c *fiber.Ctx) error {
	id, err := validation.PathUUID(c.Params("id"), "asset_type", msgTypeNotFound)
	if err != nil {
		return response.FromError(c, err)
	}
	t, err := h.Service.GetType(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Asset type fetched successfully", views.FromAssetType(*t), nil)
}

// POST /api/v1/asset-types (admin)
func (h *Handlers) CreateType(c *fiber.Ctx) error {
	var body struct {
		Name      string `json:"name"`
		RiskLevel int    `json:"risk_level"`
		Liquidity int    `json:"liquidity"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	t, err := h.Service.CreateType(c.UserContext(), body.Name, body.RiskLevel, body.Liquidity)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Asset type created successfully", views.FromAssetType(*t), nil)
}
