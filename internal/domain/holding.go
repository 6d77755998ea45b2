package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Holding is a portfolio's position in one asset. (portfolio_id, asset_id) is unique.
type Holding struct {
	HoldingID    uuid.UUID       `gorm:"column:holding_id;type:uuid;primaryKey" json:"holding_id"`
	PortfolioID  uuid.UUID       `gorm:"column:portfolio_id;type:uuid;not null;uniqueIndex:idx_holdings_portfolio_asset" json:"portfolio_id"`
	AssetID      uuid.UUID       `gorm:"column:asset_id;type:uuid;not null;uniqueIndex:idx_holdings_portfolio_asset" json:"asset_id"`
	Asset        Asset           `gorm:"foreignKey:AssetID;references:AssetID;constraint:OnDelete:RESTRICT" json:"asset"`
	Quantity     decimal.Decimal `gorm:"column:quantity;type:numeric(20,4);not null;default:0" json:"quantity"`
	AveragePrice decimal.Decimal `gorm:"column:average_price;type:numeric(20,4);not null;default:0" json:"average_price"`
	TotalValue   decimal.Decimal `gorm:"column:total_value;type:numeric(20,2);not null;default:0" json:"total_value"`
	CreatedAt    time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Holding) TableName() string {
	return "holdings"
}

// BeforeCreate: never insert zero UUID for primary key; generate random when not set.
func (h *Holding) BeforeCreate(tx *gorm.DB) error {
	if h.HoldingID == uuid.Nil {
		h.HoldingID = uuid.New()
	}
	return nil
}
