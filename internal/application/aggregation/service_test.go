package aggregation

import (
	"context"
	"errors"
	"testing"

	"portfel-backend/internal/application/pricing"
	"portfel-backend/internal/domain"
	"portfel-backend/internal/infrastructure/database"
	"portfel-backend/internal/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupAggregationTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := database.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return &Service{DB: db}, db
}

func seedAsset(t *testing.T, db *gorm.DB, ticker string, current *string) domain.Asset {
	a := domain.Asset{Ticker: ticker, Currency: "RUB"}
	if current != nil {
		a.CurrentPrice = decimal.NewNullDecimal(d(*current))
	}
	require.NoError(t, db.Create(&a).Error)
	return a
}

func seedHolding(t *testing.T, db *gorm.DB, p domain.Portfolio, a domain.Asset, qty, avg string) domain.Holding {
	h := domain.Holding{PortfolioID: p.PortfolioID, AssetID: a.AssetID, Quantity: d(qty), AveragePrice: d(avg)}
	require.NoError(t, db.Omit("Asset").Create(&h).Error)
	return h
}

func seedPortfolio(t *testing.T, db *gorm.DB) domain.Portfolio {
	p := domain.Portfolio{OwnerID: uuid.New(), Name: "main"}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func strp(s string) *string { return &s }

func TestRecompute_NotFound(t *testing.T) {
	svc, _ := setupAggregationTest(t)
	_, err := svc.Recompute(context.Background(), uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRecompute_EmptyPortfolioResets(t *testing.T) {
	svc, db := setupAggregationTest(t)
	p := seedPortfolio(t, db)
	require.NoError(t, db.Model(&domain.Portfolio{}).Where("portfolio_id = ?", p.PortfolioID).
		Updates(map[string]interface{}{"total_value": d("12.34"), "profit_loss": d("5"), "yield_percent": d("1.5")}).Error)

	got, err := svc.Recompute(context.Background(), p.PortfolioID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", got.TotalValue.StringFixed(2))
	assert.Equal(t, "0.00", got.ProfitLoss.StringFixed(2))
	assert.Equal(t, "0.0000", got.YieldPercent.StringFixed(4))
	assert.Equal(t, "0.0000", got.AnnualYield.StringFixed(4))

	var stored domain.Portfolio
	require.NoError(t, db.First(&stored, "portfolio_id = ?", p.PortfolioID).Error)
	assert.True(t, stored.TotalValue.IsZero())
	assert.True(t, stored.ProfitLoss.IsZero())
	assert.True(t, stored.YieldPercent.IsZero())
}

func TestRecompute_PersistsAggregatesAndHealsHoldingCache(t *testing.T) {
	svc, db := setupAggregationTest(t)
	p := seedPortfolio(t, db)
	x := seedAsset(t, db, "X", strp("110"))
	y := seedAsset(t, db, "Y", strp("20.005"))
	hx := seedHolding(t, db, p, x, "10", "100")
	hy := seedHolding(t, db, p, y, "1", "20")
	require.NoError(t, db.Model(&domain.Holding{}).Where("holding_id = ?", hx.HoldingID).Update("total_value", d("1")).Error)

	got, err := svc.Recompute(context.Background(), p.PortfolioID)
	require.NoError(t, err)
	// 1100.00 + round(20.005) = 1100.00 + 20.01
	assert.Equal(t, "1120.01", got.TotalValue.StringFixed(2))
	assert.Equal(t, "100.01", got.ProfitLoss.StringFixed(2))
	assert.Equal(t, "9.8049", got.YieldPercent.StringFixed(4))

	var stored domain.Holding
	require.NoError(t, db.First(&stored, "holding_id = ?", hx.HoldingID).Error)
	assert.Equal(t, "1100.00", stored.TotalValue.StringFixed(2))
	require.NoError(t, db.First(&stored, "holding_id = ?", hy.HoldingID).Error)
	assert.Equal(t, "20.01", stored.TotalValue.StringFixed(2))
}

func TestRecompute_Idempotent(t *testing.T) {
	svc, db := setupAggregationTest(t)
	p := seedPortfolio(t, db)
	seedHolding(t, db, p, seedAsset(t, db, "X", strp("110")), "10", "100")
	seedHolding(t, db, p, seedAsset(t, db, "Y", strp("3.3333")), "7", "4.1")

	first, err := svc.Recompute(context.Background(), p.PortfolioID)
	require.NoError(t, err)
	second, err := svc.Recompute(context.Background(), p.PortfolioID)
	require.NoError(t, err)
	assert.True(t, first.TotalValue.Equal(second.TotalValue))
	assert.True(t, first.ProfitLoss.Equal(second.ProfitLoss))
	assert.True(t, first.YieldPercent.Equal(second.YieldPercent))
	assert.True(t, first.AnnualYield.Equal(second.AnnualYield))
}

func TestRecompute_NoPricesSuppressesProfitLoss(t *testing.T) {
	svc, db := setupAggregationTest(t)
	p := seedPortfolio(t, db)
	seedHolding(t, db, p, seedAsset(t, db, "X", nil), "10", "100")

	got, err := svc.Recompute(context.Background(), p.PortfolioID)
	require.NoError(t, err)
	assert.True(t, got.TotalValue.IsZero())
	assert.Equal(t, "0.00", got.ProfitLoss.StringFixed(2))
	assert.Equal(t, "0.0000", got.YieldPercent.StringFixed(4))
}

func TestRecompute_UsesConfiguredFeed(t *testing.T) {
	svc, db := setupAggregationTest(t)
	p := seedPortfolio(t, db)
	seedHolding(t, db, p, seedAsset(t, db, "X", nil), "2", "50")
	svc.Prices = pricing.FeedFunc(func(_ context.Context, a domain.Asset) (decimal.NullDecimal, error) {
		return decimal.NewNullDecimal(d("75")), nil
	})

	got, err := svc.Recompute(context.Background(), p.PortfolioID)
	require.NoError(t, err)
	assert.Equal(t, "150.00", got.TotalValue.StringFixed(2))
	assert.Equal(t, "50.0000", got.YieldPercent.StringFixed(4))
}

func TestRecompute_FeedErrorLeavesAggregateUntouched(t *testing.T) {
	svc, db := setupAggregationTest(t)
	p := seedPortfolio(t, db)
	seedHolding(t, db, p, seedAsset(t, db, "X", strp("110")), "10", "100")
	_, err := svc.Recompute(context.Background(), p.PortfolioID)
	require.NoError(t, err)

	svc.Prices = pricing.FeedFunc(func(context.Context, domain.Asset) (decimal.NullDecimal, error) {
		return decimal.NullDecimal{}, errors.New("feed down")
	})
	_, err = svc.Recompute(context.Background(), p.PortfolioID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInternal)

	var stored domain.Portfolio
	require.NoError(t, db.First(&stored, "portfolio_id = ?", p.PortfolioID).Error)
	assert.Equal(t, "1100.00", stored.TotalValue.StringFixed(2))
}

func TestRecomputeHoldersAndAll(t *testing.T) {
	svc, db := setupAggregationTest(t)
	x := seedAsset(t, db, "X", strp("110"))
	y := seedAsset(t, db, "Y", strp("1"))
	p1 := seedPortfolio(t, db)
	p2 := seedPortfolio(t, db)
	p3 := seedPortfolio(t, db)
	seedHolding(t, db, p1, x, "1", "100")
	seedHolding(t, db, p2, x, "2", "100")
	seedHolding(t, db, p3, y, "3", "1")

	n, err := svc.RecomputeHolders(context.Background(), x.AssetID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var stored domain.Portfolio
	require.NoError(t, db.First(&stored, "portfolio_id = ?", p3.PortfolioID).Error)
	assert.True(t, stored.TotalValue.IsZero())

	n, err = svc.RecomputeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, db.First(&stored, "portfolio_id = ?", p3.PortfolioID).Error)
	assert.Equal(t, "3.00", stored.TotalValue.StringFixed(2))
}
