package positions

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"portfel-backend/internal/application/aggregation"
	"portfel-backend/internal/domain"
	"portfel-backend/internal/infrastructure/database"
	"portfel-backend/internal/pkg/apperr"
	"portfel-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	msgPortfolioNotFound = "Portfolio not found or does not belong to the user."
	msgAssetNotFound     = "Asset not found."
	msgHoldingNotFound   = "Holding not found."
)

// Deal sources recorded in Deal.Meta.
const (
	SourcePositionChange  = "position_change"
	SourcePositionRemoved = "position_removed"
	SourceDeal            = "deal"
)

// Service is the single write path for holdings and deals. Every mutation runs in one
// transaction that holds the portfolio row lock and ends with the aggregate recompute, so
// concurrent changes to one portfolio serialize and commits never carry stale aggregates.
type Service struct {
	DB         *gorm.DB
	Aggregates *aggregation.Service
	Now        func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// ChangeRequest is a buy intent; Quantity and Price are decimal strings.
type ChangeRequest struct {
	PortfolioID string
	AssetID     string
	Quantity    string
	Price       string
}

// ChangeResult is the holding after the change (Asset preloaded) and the refreshed portfolio.
type ChangeResult struct {
	Holding   domain.Holding
	Portfolio domain.Portfolio
	Created   bool
}

// ApplyPositionChange adds Quantity units at Price to the owner's position, creating the
// holding on first buy, and appends the matching buy deal.
func (s *Service) ApplyPositionChange(ctx context.Context, owner uuid.UUID, req ChangeRequest) (*ChangeResult, error) {
	f := validation.Fields{}
	portfolioID := f.UUID("portfolio", req.PortfolioID)
	assetID := f.UUID("asset_id", req.AssetID)
	qty := positiveQuantity(f, req.Quantity)
	price := f.NonNegativeDecimal("price", req.Price)
	totalInRange(f, qty, price)
	if err := f.Err(); err != nil {
		return nil, err
	}

	var res ChangeResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		portfolio, err := lockOwnedPortfolio(tx, owner, portfolioID)
		if err != nil {
			return err
		}
		asset, err := findAsset(tx, assetID)
		if err != nil {
			return err
		}

		holding, created, err := applyBuy(tx, portfolio, asset, qty, price)
		if err != nil {
			return err
		}
		deal := domain.Deal{
			PortfolioID: portfolio.PortfolioID,
			AssetID:     asset.AssetID,
			IsBuy:       true,
			Quantity:    qty,
			Price:       price.Round(aggregation.PricePlaces),
			Total:       aggregation.DealTotal(qty, price),
			Commission:  decimal.Zero,
			Tax:         decimal.Zero,
			Date:        s.now(),
			Status:      domain.DealStatusExecuted,
			Meta:        meta(map[string]string{"source": SourcePositionChange}),
		}
		if err := tx.Omit(clause.Associations).Create(&deal).Error; err != nil {
			return err
		}

		if err := s.Aggregates.RecomputeTx(ctx, tx, portfolio); err != nil {
			return err
		}
		if err := tx.Preload("Asset").First(&res.Holding, "holding_id = ?", holding.HoldingID).Error; err != nil {
			return err
		}
		res.Portfolio = *portfolio
		res.Created = created
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(err, "apply position change")
	}

	log.Info().
		Str("portfolio_id", res.Portfolio.PortfolioID.String()).
		Str("holding_id", res.Holding.HoldingID.String()).
		Str("ticker", res.Holding.Asset.Ticker).
		Bool("created", res.Created).
		Msg("position changed")
	return &res, nil
}

// RemovePosition closes a holding: it records a sell deal for the whole quantity priced at the
// average cost (a proxy for the unknown sale price), deletes the holding and recomputes. The
// deal and the delete commit together or not at all.
func (s *Service) RemovePosition(ctx context.Context, owner, holdingID uuid.UUID) (*domain.Portfolio, error) {
	var portfolio *domain.Portfolio
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var probe domain.Holding
		if err := tx.Select("holding_id", "portfolio_id").First(&probe, "holding_id = ?", holdingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundField("holding", msgHoldingNotFound)
			}
			return err
		}
		p, err := lockOwnedPortfolio(tx, owner, probe.PortfolioID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return apperr.NotFoundField("holding", msgHoldingNotFound)
			}
			return err
		}

		// Re-read under the lock; a concurrent removal may have won.
		var holding domain.Holding
		if err := tx.First(&holding, "holding_id = ?", holdingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundField("holding", msgHoldingNotFound)
			}
			return err
		}

		deal := domain.Deal{
			PortfolioID: p.PortfolioID,
			AssetID:     holding.AssetID,
			IsBuy:       false,
			Quantity:    holding.Quantity,
			Price:       holding.AveragePrice,
			Total:       aggregation.DealTotal(holding.Quantity, holding.AveragePrice),
			Commission:  decimal.Zero,
			Tax:         decimal.Zero,
			Date:        s.now(),
			Status:      domain.DealStatusClosed,
			Meta:        meta(map[string]string{"source": SourcePositionRemoved, "price_basis": "average_price"}),
		}
		if err := tx.Omit(clause.Associations).Create(&deal).Error; err != nil {
			return err
		}
		if err := tx.Delete(&domain.Holding{}, "holding_id = ?", holding.HoldingID).Error; err != nil {
			return err
		}
		if err := s.Aggregates.RecomputeTx(ctx, tx, p); err != nil {
			return err
		}
		portfolio = p
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(err, "remove position")
	}

	log.Info().
		Str("portfolio_id", portfolio.PortfolioID.String()).
		Str("holding_id", holdingID.String()).
		Msg("position removed")
	return portfolio, nil
}

// lockOwnedPortfolio takes the row lock that serializes all mutations of one portfolio.
// A foreign portfolio is reported exactly like a missing one.
func lockOwnedPortfolio(tx *gorm.DB, owner, portfolioID uuid.UUID) (*domain.Portfolio, error) {
	var p domain.Portfolio
	err := database.ForUpdate(tx).
		Where("portfolio_id = ? AND owner_id = ?", portfolioID, owner).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundField("portfolio", msgPortfolioNotFound)
		}
		return nil, err
	}
	return &p, nil
}

func findAsset(tx *gorm.DB, assetID uuid.UUID) (*domain.Asset, error) {
	var a domain.Asset
	if err := tx.First(&a, "asset_id = ?", assetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundField("asset_id", msgAssetNotFound)
		}
		return nil, err
	}
	return &a, nil
}

// applyBuy is the holding half of a buy: get-or-create, then weighted-average cost.
func applyBuy(tx *gorm.DB, portfolio *domain.Portfolio, asset *domain.Asset, qty, price decimal.Decimal) (*domain.Holding, bool, error) {
	var holding domain.Holding
	err := tx.Where("portfolio_id = ? AND asset_id = ?", portfolio.PortfolioID, asset.AssetID).First(&holding).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		holding = domain.Holding{
			PortfolioID:  portfolio.PortfolioID,
			AssetID:      asset.AssetID,
			Quantity:     qty,
			AveragePrice: price.Round(aggregation.PricePlaces),
			TotalValue:   decimal.Zero,
		}
		if err := tx.Omit(clause.Associations).Create(&holding).Error; err != nil {
			return nil, false, err
		}
		return &holding, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	holding.AveragePrice = aggregation.WeightedAverage(holding.Quantity, holding.AveragePrice, qty, price)
	holding.Quantity = holding.Quantity.Add(qty).Round(aggregation.PricePlaces)
	if err := tx.Model(&domain.Holding{}).
		Where("holding_id = ?", holding.HoldingID).
		Updates(map[string]interface{}{
			"quantity":      holding.Quantity,
			"average_price": holding.AveragePrice,
		}).Error; err != nil {
		return nil, false, err
	}
	return &holding, false, nil
}

// applySell reduces a holding by qty; the average cost is unchanged. A holding sold down to
// zero is deleted and nil is returned.
func applySell(tx *gorm.DB, portfolio *domain.Portfolio, asset *domain.Asset, qty decimal.Decimal) (*domain.Holding, error) {
	var holding domain.Holding
	err := tx.Where("portfolio_id = ? AND asset_id = ?", portfolio.PortfolioID, asset.AssetID).First(&holding).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.InvalidField("asset_id", "No position in this asset to sell.")
	}
	if err != nil {
		return nil, err
	}
	if qty.GreaterThan(holding.Quantity) {
		return nil, apperr.InvalidField("quantity", "Quantity exceeds the position ("+holding.Quantity.String()+").")
	}

	remaining := holding.Quantity.Sub(qty)
	if remaining.IsZero() {
		if err := tx.Delete(&domain.Holding{}, "holding_id = ?", holding.HoldingID).Error; err != nil {
			return nil, err
		}
		return nil, nil
	}
	holding.Quantity = remaining
	if err := tx.Model(&domain.Holding{}).
		Where("holding_id = ?", holding.HoldingID).
		Update("quantity", remaining).Error; err != nil {
		return nil, err
	}
	return &holding, nil
}

func positiveQuantity(f validation.Fields, raw string) decimal.Decimal {
	qty := f.PositiveDecimal("quantity", raw)
	if _, bad := f["quantity"]; bad {
		return qty
	}
	qty = qty.Round(aggregation.PricePlaces)
	if !qty.IsPositive() {
		f["quantity"] = "quantity must be positive"
	}
	return qty
}

// maxTotalDigits is the integer width of the numeric(20,2) deal total.
const maxTotalDigits = 18

// totalInRange rejects a quantity and price whose deal total would not fit the stored column.
func totalInRange(f validation.Fields, qty, price decimal.Decimal) {
	if len(f) > 0 {
		return
	}
	if validation.IntegerDigits(aggregation.DealTotal(qty, price)) > maxTotalDigits {
		f["quantity"] = "quantity * price is out of range"
	}
}

func meta(m map[string]string) datatypes.JSON {
	b, _ := json.Marshal(m)
	return datatypes.JSON(b)
}

func normalizeType(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
