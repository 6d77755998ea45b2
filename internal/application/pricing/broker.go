package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"portfel-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// BrokerFeed queries a broker quote API: GET {BaseURL}/quotes/{ticker} -> {"price":"123.45"}.
type BrokerFeed struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// NewBrokerFeed returns a feed with an 8s HTTP timeout.
func NewBrokerFeed(baseURL, token string) *BrokerFeed {
	return &BrokerFeed{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: 8 * time.Second},
	}
}

type brokerQuote struct {
	Ticker string              `json:"ticker"`
	Price  decimal.NullDecimal `json:"price"`
}

func (b *BrokerFeed) CurrentPrice(ctx context.Context, asset domain.Asset) (decimal.NullDecimal, error) {
	ticker := strings.ToUpper(strings.TrimSpace(asset.Ticker))
	if ticker == "" {
		return decimal.NullDecimal{}, nil
	}
	endpoint := b.BaseURL + "/quotes/" + url.PathEscape(ticker)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	req.Header.Set("Accept", "application/json")
	if b.Token != "" {
		req.Header.Set("Authorization", "Bearer "+b.Token)
	}

	resp, err := b.Client.Do(req)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("broker %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return decimal.NullDecimal{}, nil
	case resp.StatusCode != http.StatusOK:
		return decimal.NullDecimal{}, fmt.Errorf("broker %s: http %d: %w", ticker, resp.StatusCode, ErrQuoteUnavailable)
	}

	var q brokerQuote
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("broker %s: decode: %w", ticker, err)
	}
	if q.Price.Valid && q.Price.Decimal.IsNegative() {
		return decimal.NullDecimal{}, fmt.Errorf("broker %s: negative price %s: %w", ticker, q.Price.Decimal, ErrQuoteUnavailable)
	}
	return q.Price, nil
}
