package reconcile

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"portfel-backend/internal/application/aggregation"
	"portfel-backend/internal/application/assets"
	"portfel-backend/internal/application/pricing"
	"portfel-backend/internal/domain"
	"portfel-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJob_RefreshesPricesThenRecomputes(t *testing.T) {
	db, err := database.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	agg := &aggregation.Service{DB: db}
	as := &assets.Service{DB: db, Aggregates: agg}

	a := domain.Asset{Ticker: "X", Currency: "RUB"}
	require.NoError(t, db.Create(&a).Error)
	p := domain.Portfolio{OwnerID: uuid.New(), Name: "p"}
	require.NoError(t, db.Create(&p).Error)
	h := domain.Holding{PortfolioID: p.PortfolioID, AssetID: a.AssetID,
		Quantity: decimal.NewFromInt(4), AveragePrice: decimal.NewFromInt(25)}
	require.NoError(t, db.Omit("Asset").Create(&h).Error)

	job := &Job{
		Assets:     as,
		Aggregates: agg,
		Feed: pricing.FeedFunc(func(context.Context, domain.Asset) (decimal.NullDecimal, error) {
			return decimal.NewNullDecimal(decimal.NewFromInt(30)), nil
		}),
		Timeout: time.Minute,
		Log:     zerolog.Nop(),
	}
	assert.Equal(t, "portfolio_reconcile", job.Name())
	require.NoError(t, job.Run())

	var got domain.Portfolio
	require.NoError(t, db.First(&got, "portfolio_id = ?", p.PortfolioID).Error)
	assert.Equal(t, "120.00", got.TotalValue.StringFixed(2))
	assert.Equal(t, "20.00", got.ProfitLoss.StringFixed(2))
	assert.Equal(t, "20.0000", got.YieldPercent.StringFixed(4))
}

func TestJob_WithoutFeedOnlyRecomputes(t *testing.T) {
	db, err := database.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	agg := &aggregation.Service{DB: db}

	p := domain.Portfolio{OwnerID: uuid.New(), Name: "p", TotalValue: decimal.NewFromInt(999)}
	require.NoError(t, db.Create(&p).Error)

	job := &Job{Aggregates: agg, Log: zerolog.Nop()}
	require.NoError(t, job.Run())

	var got domain.Portfolio
	require.NoError(t, db.First(&got, "portfolio_id = ?", p.PortfolioID).Error)
	assert.True(t, got.TotalValue.IsZero())
}

type countingTask struct {
	runs atomic.Int32
	err  error
}

func (c *countingTask) Run() error   { c.runs.Add(1); return c.err }
func (c *countingTask) Name() string { return "counting" }

func TestScheduler_RunsTasks(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	ok := &countingTask{}
	failing := &countingTask{err: errors.New("boom")}
	require.NoError(t, s.Add("@every 1s", ok))
	require.NoError(t, s.Add("* * * * * *", failing))
	assert.Equal(t, 2, s.Entries())

	s.Start()
	assert.Eventually(t, func() bool { return ok.runs.Load() > 0 && failing.runs.Load() > 0 }, 5*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestScheduler_RejectsBadSpec(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	assert.Error(t, s.Add("every now and then", &countingTask{}))
	assert.Error(t, s.Add("*/5 * * * *", &countingTask{})) // five fields: seconds are required
	assert.Zero(t, s.Entries())
}
