package views

import (
	"time"

	"portfel-backend/internal/application/aggregation"
	"portfel-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AssetType struct {
	AssetTypeID uuid.UUID `json:"asset_type_id"`
	Name        string    `json:"name"`
	RiskLevel   int       `json:"risk_level"`
	Liquidity   int       `json:"liquidity"`
}

// Asset is the wire form of domain.Asset. A null price means no quote is known; null ratios
// were never provided.
type Asset struct {
	AssetID       uuid.UUID  `json:"asset_id"`
	Ticker        string     `json:"ticker"`
	ISIN          string     `json:"isin"`
	Company       string     `json:"company"`
	Country       string     `json:"country"`
	Region        string     `json:"region"`
	Exchange      string     `json:"exchange"`
	Market        string     `json:"market"`
	TradingType   string     `json:"trading_type"`
	Currency      string     `json:"currency"`
	Description   string     `json:"description"`
	ManagementFee *string    `json:"management_fee"`
	DividendYield *string    `json:"dividend_yield"`
	PERatio       *string    `json:"pe_ratio"`
	PBRatio       *string    `json:"pb_ratio"`
	Beta          *string    `json:"beta"`
	AssetTypeID   *uuid.UUID `json:"asset_type_id"`
	AssetType     *AssetType `json:"asset_type,omitempty"`
	CurrentPrice  *string    `json:"current_price"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type Holding struct {
	HoldingID    uuid.UUID `json:"holding_id"`
	PortfolioID  uuid.UUID `json:"portfolio_id"`
	Asset        Asset     `json:"asset"`
	Quantity     string    `json:"quantity"`
	AveragePrice string    `json:"average_price"`
	TotalValue   string    `json:"total_value"`
}

type Portfolio struct {
	PortfolioID  uuid.UUID `json:"portfolio_id"`
	Name         string    `json:"name"`
	TotalValue   string    `json:"total_value"`
	ProfitLoss   string    `json:"profit_loss"`
	YieldPercent string    `json:"yield_percent"`
	AnnualYield  string    `json:"annual_yield"`
	Holdings     []Holding `json:"holdings,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func money(d decimal.Decimal) string { return d.StringFixed(aggregation.MoneyPlaces) }
func fourPlaces(d decimal.Decimal) string { return d.StringFixed(aggregation.PricePlaces) }

func nullable(d decimal.NullDecimal, places int32) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.StringFixed(places)
	return &s
}

func FromAssetType(t domain.AssetType) AssetType {
	return AssetType{AssetTypeID: t.AssetTypeID, Name: t.Name, RiskLevel: t.RiskLevel, Liquidity: t.Liquidity}
}

func FromAssetTypes(list []domain.AssetType) []AssetType {
	out := make([]AssetType, len(list))
	for i, t := range list {
		out[i] = FromAssetType(t)
	}
	return out
}

func FromAsset(a domain.Asset) Asset {
	v := Asset{
		AssetID:       a.AssetID,
		Ticker:        a.Ticker,
		ISIN:          a.ISIN,
		Company:       a.Company,
		Country:       a.Country,
		Region:        a.Region,
		Exchange:      a.Exchange,
		Market:        a.Market,
		TradingType:   a.TradingType,
		Currency:      a.Currency,
		Description:   a.Description,
		ManagementFee: nullable(a.ManagementFee, aggregation.MoneyPlaces),
		DividendYield: nullable(a.DividendYield, aggregation.MoneyPlaces),
		PERatio:       nullable(a.PERatio, aggregation.MoneyPlaces),
		PBRatio:       nullable(a.PBRatio, aggregation.MoneyPlaces),
		Beta:          nullable(a.Beta, aggregation.MoneyPlaces),
		AssetTypeID:   a.AssetTypeID,
		CurrentPrice:  nullable(a.CurrentPrice, aggregation.PricePlaces),
		UpdatedAt:     a.UpdatedAt,
	}
	if a.AssetType != nil {
		t := FromAssetType(*a.AssetType)
		v.AssetType = &t
	}
	return v
}

func FromAssets(list []domain.Asset) []Asset {
	out := make([]Asset, len(list))
	for i, a := range list {
		out[i] = FromAsset(a)
	}
	return out
}

func FromHolding(h domain.Holding) Holding {
	return Holding{
		HoldingID:    h.HoldingID,
		PortfolioID:  h.PortfolioID,
		Asset:        FromAsset(h.Asset),
		Quantity:     fourPlaces(h.Quantity),
		AveragePrice: fourPlaces(h.AveragePrice),
		TotalValue:   money(h.TotalValue),
	}
}

// FromPortfolio renders aggregates; holdings are included when loaded.
func FromPortfolio(p domain.Portfolio) Portfolio {
	v := Portfolio{
		PortfolioID:  p.PortfolioID,
		Name:         p.Name,
		TotalValue:   money(p.TotalValue),
		ProfitLoss:   money(p.ProfitLoss),
		YieldPercent: p.YieldPercent.StringFixed(aggregation.YieldPlaces),
		AnnualYield:  p.AnnualYield.StringFixed(aggregation.YieldPlaces),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if len(p.Holdings) > 0 {
		v.Holdings = make([]Holding, len(p.Holdings))
		for i, h := range p.Holdings {
			v.Holdings[i] = FromHolding(h)
		}
	}
	return v
}

func FromPortfolios(list []domain.Portfolio) []Portfolio {
	out := make([]Portfolio, len(list))
	for i, p := range list {
		out[i] = FromPortfolio(p)
	}
	return out
}
