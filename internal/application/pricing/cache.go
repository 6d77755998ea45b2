package pricing

import (
	"context"
	"errors"
	"time"

	"portfel-backend/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const cacheKeyPrefix = "price:"

// CachedFeed keeps Next's answers in Redis for TTL. Unknown prices are never cached.
type CachedFeed struct {
	Rdb  *redis.Client
	Next Feed
	TTL  time.Duration
}

func (c *CachedFeed) CurrentPrice(ctx context.Context, asset domain.Asset) (decimal.NullDecimal, error) {
	if c.Rdb == nil {
		return c.Next.CurrentPrice(ctx, asset)
	}
	key := cacheKeyPrefix + asset.Ticker

	s, err := c.Rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		if d, perr := decimal.NewFromString(s); perr == nil {
			return decimal.NewNullDecimal(d), nil
		}
		log.Warn().Str("key", key).Str("value", s).Msg("dropping malformed cached price")
		c.Rdb.Del(ctx, key)
	case !errors.Is(err, redis.Nil):
		// Redis trouble degrades to the underlying feed.
		log.Warn().Err(err).Str("key", key).Msg("price cache read failed")
	}

	price, err := c.Next.CurrentPrice(ctx, asset)
	if err != nil || !price.Valid {
		return price, err
	}
	if err := c.Rdb.Set(ctx, key, price.Decimal.String(), c.TTL).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("price cache write failed")
	}
	return price, nil
}

// Invalidate drops the cached price for ticker.
func (c *CachedFeed) Invalidate(ctx context.Context, ticker string) error {
	if c.Rdb == nil {
		return nil
	}
	return c.Rdb.Del(ctx, cacheKeyPrefix+ticker).Err()
}
