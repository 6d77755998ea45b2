package deals

import (
	"context"
	"time"

	"portfel-backend/internal/application/aggregation"
	"portfel-backend/internal/domain"
	"portfel-backend/internal/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

// FormattedDeal is one row of the deal log with its asset resolved.
type FormattedDeal struct {
	DealID     uuid.UUID      `json:"deal_id"`
	Type       string         `json:"type"`
	AssetID    uuid.UUID      `json:"asset_id"`
	Ticker     *string        `json:"ticker"`
	Company    *string        `json:"company"`
	Quantity   string         `json:"quantity"`
	Price      string         `json:"price"`
	Total      string         `json:"total"`
	Commission string         `json:"commission"`
	Tax        string         `json:"tax"`
	Date       time.Time      `json:"date"`
	Address    string         `json:"address"`
	Status     string         `json:"status"`
	Meta       datatypes.JSON `json:"meta,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// List returns the deal log of an owned portfolio, newest first.
func (s *Service) List(ctx context.Context, owner, portfolioID uuid.UUID) ([]FormattedDeal, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&domain.Portfolio{}).
		Where("portfolio_id = ? AND owner_id = ?", portfolioID, owner).
		Count(&n).Error; err != nil {
		return nil, apperr.Wrap(err, "find portfolio")
	}
	if n == 0 {
		return nil, apperr.NotFoundField("portfolio", "Portfolio not found or does not belong to the user.")
	}

	var rows []domain.Deal
	if err := s.DB.WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("date DESC").
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, apperr.Wrap(err, "list deals")
	}
	if len(rows) == 0 {
		return []FormattedDeal{}, nil
	}

	assetIDs := map[uuid.UUID]bool{}
	for _, d := range rows {
		assetIDs[d.AssetID] = true
	}
	ids := make([]uuid.UUID, 0, len(assetIDs))
	for id := range assetIDs {
		ids = append(ids, id)
	}
	var assets []domain.Asset
	if err := s.DB.WithContext(ctx).Where("asset_id IN ?", ids).Select("asset_id, ticker, company").Find(&assets).Error; err != nil {
		return nil, apperr.Wrap(err, "load deal assets")
	}
	byID := make(map[uuid.UUID]domain.Asset, len(assets))
	for _, a := range assets {
		byID[a.AssetID] = a
	}

	out := make([]FormattedDeal, len(rows))
	for i, d := range rows {
		out[i] = Format(d)
		if a, ok := byID[d.AssetID]; ok {
			ticker, company := a.Ticker, a.Company
			out[i].Ticker = &ticker
			out[i].Company = &company
		}
	}
	return out, nil
}

// Format renders a deal with fixed-precision decimals. Asset fields are taken from d.Asset
// when it is loaded.
func Format(d domain.Deal) FormattedDeal {
	kind := "sell"
	if d.IsBuy {
		kind = "buy"
	}
	fd := FormattedDeal{
		DealID:     d.DealID,
		Type:       kind,
		AssetID:    d.AssetID,
		Quantity:   d.Quantity.StringFixed(aggregation.PricePlaces),
		Price:      d.Price.StringFixed(aggregation.PricePlaces),
		Total:      d.Total.StringFixed(aggregation.MoneyPlaces),
		Commission: d.Commission.StringFixed(aggregation.MoneyPlaces),
		Tax:        d.Tax.StringFixed(aggregation.MoneyPlaces),
		Date:       d.Date,
		Address:    d.Address,
		Status:     d.Status,
		Meta:       d.Meta,
		CreatedAt:  d.CreatedAt,
	}
	if d.Asset.AssetID != uuid.Nil {
		ticker, company := d.Asset.Ticker, d.Asset.Company
		fd.Ticker = &ticker
		fd.Company = &company
	}
	return fd
}
