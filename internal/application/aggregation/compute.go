package aggregation

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fixed fractional precision of stored values. Rounding is half away from zero.
const (
	MoneyPlaces = 2
	PricePlaces = 4
	YieldPlaces = 4
)

var hundred = decimal.NewFromInt(100)

// Position is one holding as seen by the aggregate formula.
type Position struct {
	HoldingID    uuid.UUID
	Quantity     decimal.Decimal
	AveragePrice decimal.Decimal
	StoredValue  decimal.Decimal
	CurrentPrice decimal.NullDecimal
}

// Snapshot is the portfolio-level result of Compute. MarketValues is aligned with the input.
type Snapshot struct {
	TotalValue   decimal.Decimal
	CostBasis    decimal.Decimal
	ProfitLoss   decimal.Decimal
	YieldPercent decimal.Decimal
	AnnualYield  decimal.Decimal
	HasPrices    bool
	MarketValues []decimal.Decimal
}

// Empty is the aggregate of a portfolio without holdings.
func Empty() Snapshot {
	return Snapshot{
		TotalValue:   decimal.Zero,
		CostBasis:    decimal.Zero,
		ProfitLoss:   decimal.Zero,
		YieldPercent: decimal.Zero,
		AnnualYield:  decimal.Zero,
	}
}

// Compute reduces a holding set to the portfolio aggregate. Each holding's market value is
// quantity*price rounded to cents (zero without a price); cost basis accumulates unrounded and is
// rounded once. A single holding with a known price enables profit/loss and yield; with no known
// prices at all they are reported as zero rather than as a total loss.
func Compute(positions []Position) Snapshot {
	snap := Empty()
	if len(positions) == 0 {
		return snap
	}

	snap.MarketValues = make([]decimal.Decimal, len(positions))
	market := decimal.Zero
	cost := decimal.Zero
	for i, p := range positions {
		value := decimal.Zero
		if p.CurrentPrice.Valid {
			value = p.Quantity.Mul(p.CurrentPrice.Decimal).Round(MoneyPlaces)
			snap.HasPrices = true
		}
		snap.MarketValues[i] = value
		market = market.Add(value)
		cost = cost.Add(p.Quantity.Mul(p.AveragePrice))
	}

	snap.TotalValue = market.Round(MoneyPlaces)
	snap.CostBasis = cost.Round(MoneyPlaces)
	if !snap.HasPrices {
		return snap
	}

	snap.ProfitLoss = snap.TotalValue.Sub(snap.CostBasis)
	if snap.CostBasis.IsPositive() {
		snap.YieldPercent = snap.ProfitLoss.Div(snap.CostBasis).Mul(hundred).Round(YieldPlaces)
	}
	return snap
}

// WeightedAverage returns the cost basis per unit after adding qty units at price to a
// position of oldQty units at oldAvg. A non-positive resulting quantity falls back to price.
func WeightedAverage(oldQty, oldAvg, qty, price decimal.Decimal) decimal.Decimal {
	newQty := oldQty.Add(qty)
	if !newQty.IsPositive() {
		return price.Round(PricePlaces)
	}
	return oldAvg.Mul(oldQty).Add(price.Mul(qty)).Div(newQty).Round(PricePlaces)
}

// DealTotal is quantity*price rounded to cents.
func DealTotal(qty, price decimal.Decimal) decimal.Decimal {
	return qty.Mul(price).Round(MoneyPlaces)
}
