//go:build integration

package positions

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"portfel-backend/internal/application/aggregation"
	"portfel-backend/internal/domain"
	"portfel-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run with: DATABASE_URL=postgres://... go test -tags=integration ./internal/application/positions/... -run TestConcurrentBuys_Postgres -v
func TestConcurrentBuys_Postgres(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	db, err := database.Open(url)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(16)

	svc := &Service{DB: db, Aggregates: &aggregation.Service{DB: db}}
	ctx := context.Background()
	owner := uuid.New()
	asset := domain.Asset{
		Ticker:       "IT" + uuid.NewString()[:8],
		Currency:     "RUB",
		CurrentPrice: decimal.NewNullDecimal(decimal.NewFromInt(110)),
	}
	require.NoError(t, db.Create(&asset).Error)
	p := domain.Portfolio{OwnerID: owner, Name: "concurrency"}
	require.NoError(t, db.Create(&p).Error)
	t.Cleanup(func() {
		db.Where("portfolio_id = ?", p.PortfolioID).Delete(&domain.Deal{})
		db.Where("portfolio_id = ?", p.PortfolioID).Delete(&domain.Holding{})
		db.Delete(&domain.Portfolio{}, "portfolio_id = ?", p.PortfolioID)
		db.Delete(&domain.Asset{}, "asset_id = ?", asset.AssetID)
	})

	const n = 12
	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := svc.ApplyPositionChange(ctx, owner, buy(p, asset, fmt.Sprint(i+1), "100"))
			errs <- err
		}(i)
	}
	close(start)
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("concurrent buys did not finish")
	}
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var h domain.Holding
	require.NoError(t, db.First(&h, "portfolio_id = ? AND asset_id = ?", p.PortfolioID, asset.AssetID).Error)
	assert.Equal(t, "78.0000", h.Quantity.StringFixed(4)) // 1+2+...+12
	assert.Equal(t, "100.0000", h.AveragePrice.StringFixed(4))

	var dealCount int64
	require.NoError(t, db.Model(&domain.Deal{}).Where("portfolio_id = ?", p.PortfolioID).Count(&dealCount).Error)
	assert.Equal(t, int64(n), dealCount)

	var stored domain.Portfolio
	require.NoError(t, db.First(&stored, "portfolio_id = ?", p.PortfolioID).Error)
	assert.Equal(t, "8580.00", stored.TotalValue.StringFixed(2))
	assert.Equal(t, "780.00", stored.ProfitLoss.StringFixed(2))
}
