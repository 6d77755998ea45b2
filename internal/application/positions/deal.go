package positions

import (
	"context"

	"portfel-backend/internal/application/aggregation"
	"portfel-backend/internal/domain"
	"portfel-backend/internal/pkg/apperr"
	"portfel-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Deal types accepted by RecordDeal.
const (
	DealBuy  = "buy"
	DealSell = "sell"
)

// DealRequest records a user-entered deal. The holding is updated in the same transaction.
type DealRequest struct {
	PortfolioID string
	AssetID     string
	Type        string
	Quantity    string
	Price       string
	Commission  string
	Tax         string
	Address     string
	Status      string
	Date        string
}

// DealResult is the stored deal (Asset preloaded), the holding after it (nil once closed) and
// the refreshed portfolio.
type DealResult struct {
	Deal      domain.Deal
	Holding   *domain.Holding
	Portfolio domain.Portfolio
}

// RecordDeal appends a deal and applies it to the holding: buys go through the weighted-average
// path, sells reduce the quantity and close the holding at zero. Selling more than is held fails.
func (s *Service) RecordDeal(ctx context.Context, owner uuid.UUID, req DealRequest) (*DealResult, error) {
	f := validation.Fields{}
	portfolioID := f.UUID("portfolio", req.PortfolioID)
	assetID := f.UUID("asset_id", req.AssetID)
	kind := normalizeType(req.Type)
	if kind != DealBuy && kind != DealSell {
		f["type"] = "type must be buy or sell"
	}
	qty := positiveQuantity(f, req.Quantity)
	price := f.NonNegativeDecimal("price", req.Price)
	commission := f.OptionalNonNegativeDecimal("commission", req.Commission)
	tax := f.OptionalNonNegativeDecimal("tax", req.Tax)
	totalInRange(f, qty, price)
	given := f.OptionalTime("date", req.Date)
	if err := f.Err(); err != nil {
		return nil, err
	}
	date := s.now()
	if given != nil {
		date = given.UTC()
	}
	status := req.Status
	if status == "" {
		status = domain.DealStatusExecuted
	}

	var res DealResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		portfolio, err := lockOwnedPortfolio(tx, owner, portfolioID)
		if err != nil {
			return err
		}
		asset, err := findAsset(tx, assetID)
		if err != nil {
			return err
		}

		var holding *domain.Holding
		if kind == DealBuy {
			holding, _, err = applyBuy(tx, portfolio, asset, qty, price)
		} else {
			holding, err = applySell(tx, portfolio, asset, qty)
		}
		if err != nil {
			return err
		}

		deal := domain.Deal{
			PortfolioID: portfolio.PortfolioID,
			AssetID:     asset.AssetID,
			IsBuy:       kind == DealBuy,
			Quantity:    qty,
			Price:       price.Round(aggregation.PricePlaces),
			Total:       aggregation.DealTotal(qty, price),
			Commission:  commission.Round(aggregation.MoneyPlaces),
			Tax:         tax.Round(aggregation.MoneyPlaces),
			Date:        date,
			Address:     req.Address,
			Status:      status,
			Meta:        meta(map[string]string{"source": SourceDeal}),
		}
		if err := tx.Omit(clause.Associations).Create(&deal).Error; err != nil {
			return err
		}

		if err := s.Aggregates.RecomputeTx(ctx, tx, portfolio); err != nil {
			return err
		}
		if err := tx.Preload("Asset").First(&res.Deal, "deal_id = ?", deal.DealID).Error; err != nil {
			return err
		}
		if holding != nil {
			var h domain.Holding
			if err := tx.Preload("Asset").First(&h, "holding_id = ?", holding.HoldingID).Error; err != nil {
				return err
			}
			res.Holding = &h
		}
		res.Portfolio = *portfolio
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(err, "record deal")
	}

	log.Info().
		Str("portfolio_id", res.Portfolio.PortfolioID.String()).
		Str("deal_id", res.Deal.DealID.String()).
		Str("type", kind).
		Str("ticker", res.Deal.Asset.Ticker).
		Bool("closed", res.Holding == nil).
		Msg("deal recorded")
	return &res, nil
}
