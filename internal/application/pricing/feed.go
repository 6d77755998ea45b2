package pricing

import (
	"context"
	"errors"

	"portfel-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// ErrQuoteUnavailable is returned by feeds that cannot answer for an asset right now.
var ErrQuoteUnavailable = errors.New("quote unavailable")

// Feed supplies an asset's current market price. A null result means no price is known.
type Feed interface {
	CurrentPrice(ctx context.Context, asset domain.Asset) (decimal.NullDecimal, error)
}

// ReferenceFeed reads the price stored on the asset row.
type ReferenceFeed struct{}

func (ReferenceFeed) CurrentPrice(_ context.Context, asset domain.Asset) (decimal.NullDecimal, error) {
	return asset.CurrentPrice, nil
}

// FeedFunc adapts a function to Feed.
type FeedFunc func(ctx context.Context, asset domain.Asset) (decimal.NullDecimal, error)

func (f FeedFunc) CurrentPrice(ctx context.Context, asset domain.Asset) (decimal.NullDecimal, error) {
	return f(ctx, asset)
}
