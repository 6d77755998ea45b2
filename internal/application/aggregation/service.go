package aggregation

import (
	"context"
	"errors"
	"fmt"

	"portfel-backend/internal/application/pricing"
	"portfel-backend/internal/domain"
	"portfel-backend/internal/infrastructure/database"
	"portfel-backend/internal/pkg/apperr"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service persists Compute's result for a portfolio. It is the only writer of the
// portfolio's derived fields and of the holdings' cached market values.
type Service struct {
	DB     *gorm.DB
	Prices pricing.Feed
}

func (s *Service) feed() pricing.Feed {
	if s.Prices == nil {
		return pricing.ReferenceFeed{}
	}
	return s.Prices
}

// Recompute locks the portfolio row and rewrites its aggregate in a transaction of its own.
func (s *Service) Recompute(ctx context.Context, portfolioID uuid.UUID) (*domain.Portfolio, error) {
	var portfolio domain.Portfolio
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := database.ForUpdate(tx).Where("portfolio_id = ?", portfolioID).First(&portfolio).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundField("portfolio", "Portfolio not found")
			}
			return err
		}
		return s.RecomputeTx(ctx, tx, &portfolio)
	})
	if err != nil {
		return nil, apperr.Wrap(err, "recompute portfolio")
	}
	return &portfolio, nil
}

// RecomputeTx recomputes inside the caller's transaction. The caller must already hold the
// portfolio row lock. portfolio is updated in place.
func (s *Service) RecomputeTx(ctx context.Context, tx *gorm.DB, portfolio *domain.Portfolio) error {
	var holdings []domain.Holding
	if err := tx.Preload("Asset").
		Where("portfolio_id = ?", portfolio.PortfolioID).
		Order("created_at").
		Find(&holdings).Error; err != nil {
		return err
	}

	positions := make([]Position, len(holdings))
	for i, h := range holdings {
		price, err := s.feed().CurrentPrice(ctx, h.Asset)
		if err != nil {
			return fmt.Errorf("price for %s: %w", h.Asset.Ticker, err)
		}
		positions[i] = Position{
			HoldingID:    h.HoldingID,
			Quantity:     h.Quantity,
			AveragePrice: h.AveragePrice,
			StoredValue:  h.TotalValue,
			CurrentPrice: price,
		}
	}

	snap := Compute(positions)
	for i, p := range positions {
		if p.StoredValue.Equal(snap.MarketValues[i]) {
			continue
		}
		if err := tx.Model(&domain.Holding{}).
			Where("holding_id = ?", p.HoldingID).
			Update("total_value", snap.MarketValues[i]).Error; err != nil {
			return err
		}
	}

	if err := tx.Model(&domain.Portfolio{}).
		Where("portfolio_id = ?", portfolio.PortfolioID).
		Updates(map[string]interface{}{
			"total_value":   snap.TotalValue,
			"profit_loss":   snap.ProfitLoss,
			"yield_percent": snap.YieldPercent,
			"annual_yield":  snap.AnnualYield,
		}).Error; err != nil {
		return err
	}
	portfolio.TotalValue = snap.TotalValue
	portfolio.ProfitLoss = snap.ProfitLoss
	portfolio.YieldPercent = snap.YieldPercent
	portfolio.AnnualYield = snap.AnnualYield

	log.Debug().
		Str("portfolio_id", portfolio.PortfolioID.String()).
		Int("holdings", len(holdings)).
		Str("total_value", snap.TotalValue.StringFixed(MoneyPlaces)).
		Bool("has_prices", snap.HasPrices).
		Msg("portfolio aggregate recomputed")
	return nil
}

// RecomputeHolders recomputes every portfolio holding assetID.
func (s *Service) RecomputeHolders(ctx context.Context, assetID uuid.UUID) (int, error) {
	var ids []uuid.UUID
	if err := s.DB.WithContext(ctx).Model(&domain.Holding{}).
		Where("asset_id = ?", assetID).
		Distinct("portfolio_id").
		Pluck("portfolio_id", &ids).Error; err != nil {
		return 0, apperr.Wrap(err, "list asset holders")
	}
	return s.recomputeEach(ctx, ids)
}

// RecomputeAll recomputes every portfolio. Failures are collected, not fatal.
func (s *Service) RecomputeAll(ctx context.Context) (int, error) {
	var ids []uuid.UUID
	if err := s.DB.WithContext(ctx).Model(&domain.Portfolio{}).Pluck("portfolio_id", &ids).Error; err != nil {
		return 0, apperr.Wrap(err, "list portfolios")
	}
	return s.recomputeEach(ctx, ids)
}

func (s *Service) recomputeEach(ctx context.Context, ids []uuid.UUID) (int, error) {
	var errs []error
	done := 0
	for _, id := range ids {
		if _, err := s.Recompute(ctx, id); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue // deleted meanwhile
			}
			log.Error().Err(err).Str("portfolio_id", id.String()).Msg("recompute failed")
			errs = append(errs, err)
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}
