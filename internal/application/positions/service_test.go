package positions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"portfel-backend/internal/application/aggregation"
	"portfel-backend/internal/domain"
	"portfel-backend/internal/infrastructure/database"
	"portfel-backend/internal/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

func setupPositionsTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := database.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	agg := &aggregation.Service{DB: db}
	return &Service{DB: db, Aggregates: agg, Now: func() time.Time { return fixedNow }}, db
}

func seedAsset(t *testing.T, db *gorm.DB, ticker string) domain.Asset {
	a := domain.Asset{Ticker: ticker, Currency: "RUB"}
	require.NoError(t, db.Create(&a).Error)
	return a
}

func seedPortfolio(t *testing.T, db *gorm.DB, owner uuid.UUID) domain.Portfolio {
	p := domain.Portfolio{OwnerID: owner, Name: "main"}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func setPrice(t *testing.T, db *gorm.DB, a domain.Asset, price string) {
	require.NoError(t, db.Model(&domain.Asset{}).Where("asset_id = ?", a.AssetID).
		Update("current_price", decimal.RequireFromString(price)).Error)
}

func buy(p domain.Portfolio, a domain.Asset, qty, price string) ChangeRequest {
	return ChangeRequest{PortfolioID: p.PortfolioID.String(), AssetID: a.AssetID.String(), Quantity: qty, Price: price}
}

func deals(t *testing.T, db *gorm.DB, p domain.Portfolio) []domain.Deal {
	var out []domain.Deal
	require.NoError(t, db.Where("portfolio_id = ?", p.PortfolioID).Order("created_at").Find(&out).Error)
	return out
}

// First buy creates the holding; a price makes the aggregate show the gain.
func TestApplyPositionChange_FirstBuyCreatesHolding(t *testing.T) {
	svc, db := setupPositionsTest(t)
	ctx := context.Background()
	owner := uuid.New()
	p := seedPortfolio(t, db, owner)
	x := seedAsset(t, db, "X")

	res, err := svc.ApplyPositionChange(ctx, owner, buy(p, x, "10", "100.00"))
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "10.0000", res.Holding.Quantity.StringFixed(4))
	assert.Equal(t, "100.0000", res.Holding.AveragePrice.StringFixed(4))
	assert.Equal(t, "X", res.Holding.Asset.Ticker)
	// no price yet: value and P/L suppressed
	assert.True(t, res.Portfolio.TotalValue.IsZero())
	assert.True(t, res.Portfolio.ProfitLoss.IsZero())

	ds := deals(t, db, p)
	require.Len(t, ds, 1)
	assert.True(t, ds[0].IsBuy)
	assert.Equal(t, "1000.00", ds[0].Total.StringFixed(2))
	assert.True(t, ds[0].Commission.IsZero())
	assert.True(t, ds[0].Tax.IsZero())
	assert.True(t, ds[0].Date.Equal(fixedNow))
	var m map[string]string
	require.NoError(t, json.Unmarshal(ds[0].Meta, &m))
	assert.Equal(t, SourcePositionChange, m["source"])

	setPrice(t, db, x, "110")
	got, err := svc.Aggregates.Recompute(ctx, p.PortfolioID)
	require.NoError(t, err)
	assert.Equal(t, "1100.00", got.TotalValue.StringFixed(2))
	assert.Equal(t, "100.00", got.ProfitLoss.StringFixed(2))
	assert.Equal(t, "10.0000", got.YieldPercent.StringFixed(4))
}

// A second buy moves the weighted average.
func TestApplyPositionChange_SecondBuyMovesAverage(t *testing.T) {
	svc, db := setupPositionsTest(t)
	ctx := context.Background()
	owner := uuid.New()
	p := seedPortfolio(t, db, owner)
	x := seedAsset(t, db, "X")
	setPrice(t, db, x, "110")

	_, err := svc.ApplyPositionChange(ctx, owner, buy(p, x, "10", "100.00"))
	require.NoError(t, err)
	res, err := svc.ApplyPositionChange(ctx, owner, buy(p, x, "5", "80.00"))
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, "15.0000", res.Holding.Quantity.StringFixed(4))
	assert.Equal(t, "93.3333", res.Holding.AveragePrice.StringFixed(4))
	assert.Equal(t, "1650.00", res.Holding.TotalValue.StringFixed(2))
	assert.Equal(t, "1650.00", res.Portfolio.TotalValue.StringFixed(2))
	// cost basis 15*93.3333 = 1399.9995 -> 1400.00
	assert.Equal(t, "250.00", res.Portfolio.ProfitLoss.StringFixed(2))
	assert.Equal(t, "17.8571", res.Portfolio.YieldPercent.StringFixed(4))

	var count int64
	require.NoError(t, db.Model(&domain.Holding{}).Where("portfolio_id = ?", p.PortfolioID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

// Removal writes a closing sell at average cost and resets the portfolio.
func TestRemovePosition_ClosesAtAverageCost(t *testing.T) {
	svc, db := setupPositionsTest(t)
	ctx := context.Background()
	owner := uuid.New()
	p := seedPortfolio(t, db, owner)
	x := seedAsset(t, db, "X")
	setPrice(t, db, x, "110")
	_, err := svc.ApplyPositionChange(ctx, owner, buy(p, x, "10", "100.00"))
	require.NoError(t, err)
	res, err := svc.ApplyPositionChange(ctx, owner, buy(p, x, "5", "80.00"))
	require.NoError(t, err)

	got, err := svc.RemovePosition(ctx, owner, res.Holding.HoldingID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", got.TotalValue.StringFixed(2))
	assert.Equal(t, "0.00", got.ProfitLoss.StringFixed(2))
	assert.Equal(t, "0.0000", got.YieldPercent.StringFixed(4))

	ds := deals(t, db, p)
	require.Len(t, ds, 3)
	closing := ds[2]
	assert.False(t, closing.IsBuy)
	assert.Equal(t, "15.0000", closing.Quantity.StringFixed(4))
	assert.Equal(t, "93.3333", closing.Price.StringFixed(4))
	assert.Equal(t, "1400.00", closing.Total.StringFixed(2))
	assert.Equal(t, domain.DealStatusClosed, closing.Status)

	var count int64
	require.NoError(t, db.Model(&domain.Holding{}).Where("holding_id = ?", res.Holding.HoldingID).Count(&count).Error)
	assert.Zero(t, count)

	var stored domain.Portfolio
	require.NoError(t, db.First(&stored, "portfolio_id = ?", p.PortfolioID).Error)
	assert.True(t, stored.TotalValue.IsZero())
	assert.True(t, stored.YieldPercent.IsZero())
}

// Concurrent buys on one (portfolio, asset) never lose an update. SQLite's single
// connection serializes them; the row lock itself is exercised by TestConcurrentBuys_Postgres.
func TestApplyPositionChange_ConcurrentBuysSerialize(t *testing.T) {
	svc, db := setupPositionsTest(t)
	ctx := context.Background()
	owner := uuid.New()
	p := seedPortfolio(t, db, owner)
	x := seedAsset(t, db, "X")

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.ApplyPositionChange(ctx, owner, buy(p, x, fmt.Sprint(i+1), "100"))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var h domain.Holding
	require.NoError(t, db.First(&h, "portfolio_id = ? AND asset_id = ?", p.PortfolioID, x.AssetID).Error)
	assert.Equal(t, "36.0000", h.Quantity.StringFixed(4)) // 1+2+...+8
	assert.Equal(t, "100.0000", h.AveragePrice.StringFixed(4))
	assert.Len(t, deals(t, db, p), n)
}

func TestApplyPositionChange_WeightedAverageInvariant(t *testing.T) {
	svc, db := setupPositionsTest(t)
	ctx := context.Background()
	owner := uuid.New()
	p := seedPortfolio(t, db, owner)
	x := seedAsset(t, db, "X")

	qs := []string{"4", "6", "10"}
	ps := []string{"12.5", "15", "9.75"}
	var res *ChangeResult
	var err error
	num, den := decimal.Zero, decimal.Zero
	for i := range qs {
		res, err = svc.ApplyPositionChange(ctx, owner, buy(p, x, qs[i], ps[i]))
		require.NoError(t, err)
		num = num.Add(decimal.RequireFromString(qs[i]).Mul(decimal.RequireFromString(ps[i])))
		den = den.Add(decimal.RequireFromString(qs[i]))
	}
	assert.Equal(t, den.StringFixed(4), res.Holding.Quantity.StringFixed(4))
	assert.Equal(t, num.Div(den).Round(4).StringFixed(4), res.Holding.AveragePrice.StringFixed(4))
	assert.Equal(t, "11.8750", res.Holding.AveragePrice.StringFixed(4))
}

func TestApplyPositionChange_InvalidInput(t *testing.T) {
	svc, db := setupPositionsTest(t)
	owner := uuid.New()
	p := seedPortfolio(t, db, owner)
	x := seedAsset(t, db, "X")

	cases := []struct {
		name  string
		req   ChangeRequest
		field string
	}{
		{"zero quantity", buy(p, x, "0", "1"), "quantity"},
		{"negative quantity", buy(p, x, "-2", "1"), "quantity"},
		{"below precision", buy(p, x, "0.00001", "1"), "quantity"},
		{"malformed quantity", buy(p, x, "ten", "1"), "quantity"},
		{"missing quantity", buy(p, x, "", "1"), "quantity"},
		{"negative price", buy(p, x, "1", "-0.01"), "price"},
		{"malformed price", buy(p, x, "1", "1e3"), "price"},
		{"bad portfolio id", ChangeRequest{PortfolioID: "x", AssetID: x.AssetID.String(), Quantity: "1", Price: "1"}, "portfolio"},
		{"missing asset id", ChangeRequest{PortfolioID: p.PortfolioID.String(), Quantity: "1", Price: "1"}, "asset_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ApplyPositionChange(context.Background(), owner, tc.req)
			require.Error(t, err)
			var ae *apperr.Error
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, apperr.InvalidInput, ae.Kind)
			assert.Contains(t, ae.Fields, tc.field)
		})
	}
	assert.Empty(t, deals(t, db, p))
}

func TestApplyPositionChange_ZeroPriceAllowed(t *testing.T) {
	svc, db := setupPositionsTest(t)
	owner := uuid.New()
	p := seedPortfolio(t, db, owner)
	x := seedAsset(t, db, "X")

	res, err := svc.ApplyPositionChange(context.Background(), owner, buy(p, x, "3", "0"))
	require.NoError(t, err)
	assert.True(t, res.Holding.AveragePrice.IsZero())
}

func TestApplyPositionChange_NotFound(t *testing.T) {
	svc, db := setupPositionsTest(t)
	owner := uuid.New()
	p := seedPortfolio(t, db, owner)
	x := seedAsset(t, db, "X")
	ctx := context.Background()

	// someone else's portfolio looks exactly like a missing one
	_, err := svc.ApplyPositionChange(ctx, uuid.New(), buy(p, x, "1", "1"))
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, apperr.NotFound, ae.Kind)
	assert.Contains(t, ae.Fields, "portfolio")

	_, err = svc.ApplyPositionChange(ctx, owner, buy(domain.Portfolio{PortfolioID: uuid.New()}, x, "1", "1"))
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, apperr.NotFound, ae.Kind)
	assert.Contains(t, ae.Fields, "portfolio")

	_, err = svc.ApplyPositionChange(ctx, owner, buy(p, domain.Asset{AssetID: uuid.New()}, "1", "1"))
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, apperr.NotFound, ae.Kind)
	assert.Contains(t, ae.Fields, "asset_id")

	assert.Empty(t, deals(t, db, p))
}

func TestRemovePosition_NotOwned(t *testing.T) {
	svc, db := setupPositionsTest(t)
	ctx := context.Background()
	owner := uuid.New()
	p := seedPortfolio(t, db, owner)
	x := seedAsset(t, db, "X")
	res, err := svc.ApplyPositionChange(ctx, owner, buy(p, x, "1", "1"))
	require.NoError(t, err)

	_, err = svc.RemovePosition(ctx, uuid.New(), res.Holding.HoldingID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.RemovePosition(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	var count int64
	require.NoError(t, db.Model(&domain.Holding{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Len(t, deals(t, db, p), 1)
}

func TestRemovePosition_DealFailureKeepsHolding(t *testing.T) {
	svc, db := setupPositionsTest(t)
	ctx := context.Background()
	owner := uuid.New()
	p := seedPortfolio(t, db, owner)
	x := seedAsset(t, db, "X")
	res, err := svc.ApplyPositionChange(ctx, owner, buy(p, x, "2", "50"))
	require.NoError(t, err)

	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_deals", func(tx *gorm.DB) {
		if tx.Statement.Table == "deals" {
			_ = tx.AddError(errors.New("deals table unavailable"))
		}
	}))

	_, err = svc.RemovePosition(ctx, owner, res.Holding.HoldingID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInternal)

	var h domain.Holding
	require.NoError(t, db.First(&h, "holding_id = ?", res.Holding.HoldingID).Error)
	assert.Equal(t, "2.0000", h.Quantity.StringFixed(4))
	assert.Len(t, deals(t, db, p), 1)
}
