package assets

import (
	"context"
	"errors"
	"strings"

	"portfel-backend/internal/application/aggregation"
	"portfel-backend/internal/application/pricing"
	"portfel-backend/internal/domain"
	"portfel-backend/internal/pkg/apperr"
	"portfel-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const msgNotFound = "Asset not found."

// CacheInvalidator drops a cached quote; satisfied by *pricing.CachedFeed.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, ticker string) error
}

// Service manages the shared asset reference data and its prices.
type Service struct {
	DB         *gorm.DB
	Aggregates *aggregation.Service
	Cache      CacheInvalidator
}

// CreateRequest registers an instrument. CurrentPrice, the ratios and AssetTypeID may be blank.
type CreateRequest struct {
	Ticker        string
	ISIN          string
	Company       string
	Country       string
	Region        string
	Exchange      string
	Market        string
	TradingType   string
	Currency      string
	Description   string
	ManagementFee string
	DividendYield string
	PERatio       string
	PBRatio       string
	Beta          string
	AssetTypeID   string
	CurrentPrice  string
}

// Create adds an asset; tickers are unique and stored upper-case.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Asset, error) {
	f := validation.Fields{}
	ticker := strings.ToUpper(f.Required("ticker", req.Ticker))
	currency := strings.ToUpper(f.Required("currency", req.Currency))
	var price decimal.NullDecimal
	if strings.TrimSpace(req.CurrentPrice) != "" {
		d := f.NonNegativeDecimal("current_price", req.CurrentPrice)
		price = decimal.NewNullDecimal(d.Round(aggregation.PricePlaces))
	}
	fee := f.OptionalDecimal("management_fee", req.ManagementFee, false)
	dividend := f.OptionalDecimal("dividend_yield", req.DividendYield, false)
	pe := f.OptionalDecimal("pe_ratio", req.PERatio, true)
	pb := f.OptionalDecimal("pb_ratio", req.PBRatio, true)
	beta := f.OptionalDecimal("beta", req.Beta, true)
	f.Within("management_fee", fee, 3)
	f.Within("dividend_yield", dividend, 3)
	f.Within("pe_ratio", pe, 8)
	f.Within("pb_ratio", pb, 8)
	f.Within("beta", beta, 3)
	var typeID *uuid.UUID
	if strings.TrimSpace(req.AssetTypeID) != "" {
		if id := f.UUID("asset_type_id", req.AssetTypeID); id != uuid.Nil {
			typeID = &id
		}
	}
	if err := f.Err(); err != nil {
		return nil, err
	}

	if typeID != nil {
		var n int64
		if err := s.DB.WithContext(ctx).Model(&domain.AssetType{}).Where("asset_type_id = ?", *typeID).Count(&n).Error; err != nil {
			return nil, apperr.Wrap(err, "check asset type")
		}
		if n == 0 {
			return nil, apperr.Invalid(map[string]string{"asset_type_id": "Asset type not found"})
		}
	}

	var n int64
	if err := s.DB.WithContext(ctx).Model(&domain.Asset{}).Where("ticker = ?", ticker).Count(&n).Error; err != nil {
		return nil, apperr.Wrap(err, "check ticker")
	}
	if n > 0 {
		return nil, apperr.NewConflict("Asset with ticker " + ticker + " already exists.")
	}

	a := domain.Asset{
		Ticker:        ticker,
		ISIN:          strings.TrimSpace(req.ISIN),
		Company:       strings.TrimSpace(req.Company),
		Country:       strings.TrimSpace(req.Country),
		Region:        strings.TrimSpace(req.Region),
		Exchange:      strings.TrimSpace(req.Exchange),
		Market:        strings.TrimSpace(req.Market),
		TradingType:   strings.TrimSpace(req.TradingType),
		Currency:      currency,
		Description:   strings.TrimSpace(req.Description),
		ManagementFee: ratio(fee),
		DividendYield: ratio(dividend),
		PERatio:       ratio(pe),
		PBRatio:       ratio(pb),
		Beta:          ratio(beta),
		AssetTypeID:   typeID,
		CurrentPrice:  price,
	}
	if err := s.DB.WithContext(ctx).Omit("AssetType").Create(&a).Error; err != nil {
		return nil, apperr.Wrap(err, "create asset")
	}
	log.Info().Str("asset_id", a.AssetID.String()).Str("ticker", a.Ticker).Msg("asset created")
	return s.Get(ctx, a.AssetID)
}

// ListFilter narrows List. Zero fields match everything; Search is a case-insensitive
// substring match on ticker, ISIN, company and description.
type ListFilter struct {
	AssetTypeID *uuid.UUID
	Currency    string
	Exchange    string
	Market      string
	Country     string
	Search      string
}

// List returns assets ordered by ticker.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]domain.Asset, error) {
	q := s.DB.WithContext(ctx).Preload("AssetType").Order("ticker")
	if filter.AssetTypeID != nil {
		q = q.Where("asset_type_id = ?", *filter.AssetTypeID)
	}
	if v := strings.TrimSpace(filter.Currency); v != "" {
		q = q.Where("currency = ?", strings.ToUpper(v))
	}
	if v := strings.TrimSpace(filter.Exchange); v != "" {
		q = q.Where("exchange = ?", v)
	}
	if v := strings.TrimSpace(filter.Market); v != "" {
		q = q.Where("market = ?", v)
	}
	if v := strings.TrimSpace(filter.Country); v != "" {
		q = q.Where("country = ?", v)
	}
	if v := strings.TrimSpace(filter.Search); v != "" {
		like := "%" + strings.ToLower(v) + "%"
		q = q.Where("LOWER(ticker) LIKE ? OR LOWER(isin) LIKE ? OR LOWER(company) LIKE ? OR LOWER(description) LIKE ?",
			like, like, like, like)
	}
	var out []domain.Asset
	if err := q.Find(&out).Error; err != nil {
		return nil, apperr.Wrap(err, "list assets")
	}
	return out, nil
}

// Get returns one asset.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	var a domain.Asset
	if err := s.DB.WithContext(ctx).Preload("AssetType").First(&a, "asset_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundField("asset", msgNotFound)
		}
		return nil, apperr.Wrap(err, "get asset")
	}
	return &a, nil
}

// UpdatePrice sets the asset's current price (nil clears it) and recomputes every portfolio
// holding the asset.
func (s *Service) UpdatePrice(ctx context.Context, id uuid.UUID, price *string) (*domain.Asset, error) {
	var next decimal.NullDecimal
	if price != nil && strings.TrimSpace(*price) != "" {
		f := validation.Fields{}
		d := f.NonNegativeDecimal("current_price", *price)
		if err := f.Err(); err != nil {
			return nil, err
		}
		next = decimal.NewNullDecimal(d.Round(aggregation.PricePlaces))
	}

	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.setPrice(ctx, a, next); err != nil {
		return nil, err
	}
	if s.Cache != nil {
		if err := s.Cache.Invalidate(ctx, a.Ticker); err != nil {
			log.Warn().Err(err).Str("ticker", a.Ticker).Msg("price cache invalidation failed")
		}
	}
	if _, err := s.Aggregates.RecomputeHolders(ctx, a.AssetID); err != nil {
		return nil, apperr.Wrap(err, "recompute holders")
	}
	return a, nil
}

// Delete removes an asset that no holding or deal references.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a domain.Asset
		if err := tx.First(&a, "asset_id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundField("asset", msgNotFound)
			}
			return err
		}
		var n int64
		if err := tx.Model(&domain.Holding{}).Where("asset_id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.NewConflict("Asset is held in portfolios and cannot be deleted.")
		}
		if err := tx.Model(&domain.Deal{}).Where("asset_id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.NewConflict("Asset has recorded deals and cannot be deleted.")
		}
		return tx.Delete(&domain.Asset{}, "asset_id = ?", id).Error
	})
	if err != nil {
		return apperr.Wrap(err, "delete asset")
	}
	log.Info().Str("asset_id", id.String()).Msg("asset deleted")
	return nil
}

// RefreshPrices asks feed for every asset's price and stores the ones that changed. Assets the
// feed cannot quote keep their price. It returns the ids of the assets whose price changed.
func (s *Service) RefreshPrices(ctx context.Context, feed pricing.Feed) ([]uuid.UUID, error) {
	list, err := s.List(ctx, ListFilter{})
	if err != nil {
		return nil, err
	}
	var changed []uuid.UUID
	var errs []error
	for i := range list {
		a := &list[i]
		price, err := feed.CurrentPrice(ctx, *a)
		if err != nil {
			if errors.Is(err, pricing.ErrQuoteUnavailable) {
				log.Warn().Err(err).Str("ticker", a.Ticker).Msg("quote unavailable, keeping stored price")
				continue
			}
			errs = append(errs, err)
			continue
		}
		if !price.Valid {
			continue
		}
		price = decimal.NewNullDecimal(price.Decimal.Round(aggregation.PricePlaces))
		if a.CurrentPrice.Valid && a.CurrentPrice.Decimal.Equal(price.Decimal) {
			continue
		}
		if err := s.setPrice(ctx, a, price); err != nil {
			errs = append(errs, err)
			continue
		}
		changed = append(changed, a.AssetID)
	}
	log.Info().Int("assets", len(list)).Int("changed", len(changed)).Msg("asset prices refreshed")
	return changed, errors.Join(errs...)
}

func ratio(d decimal.NullDecimal) decimal.NullDecimal {
	if !d.Valid {
		return d
	}
	return decimal.NewNullDecimal(d.Decimal.Round(aggregation.MoneyPlaces))
}

func (s *Service) setPrice(ctx context.Context, a *domain.Asset, price decimal.NullDecimal) error {
	if err := s.DB.WithContext(ctx).Model(&domain.Asset{}).
		Where("asset_id = ?", a.AssetID).
		Update("current_price", price).Error; err != nil {
		return apperr.Wrap(err, "update price")
	}
	a.CurrentPrice = price
	log.Info().Str("ticker", a.Ticker).Str("price", price.Decimal.StringFixed(aggregation.PricePlaces)).Bool("known", price.Valid).Msg("asset price set")
	return nil
}
