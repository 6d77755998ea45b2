package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Deal is an append-only record of one position change.
type Deal struct {
	DealID      uuid.UUID       `gorm:"column:deal_id;type:uuid;primaryKey" json:"deal_id"`
	PortfolioID uuid.UUID       `gorm:"column:portfolio_id;type:uuid;not null;index" json:"portfolio_id"`
	AssetID     uuid.UUID       `gorm:"column:asset_id;type:uuid;not null;index" json:"asset_id"`
	Asset       Asset           `gorm:"foreignKey:AssetID;references:AssetID;constraint:OnDelete:RESTRICT" json:"asset"`
	IsBuy       bool            `gorm:"column:is_buy;not null" json:"is_buy"`
	Quantity    decimal.Decimal `gorm:"column:quantity;type:numeric(20,4);not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(20,4);not null" json:"price"`
	Total       decimal.Decimal `gorm:"column:total;type:numeric(20,2);not null" json:"total"`
	Commission  decimal.Decimal `gorm:"column:commission;type:numeric(20,2);not null;default:0" json:"commission"`
	Tax         decimal.Decimal `gorm:"column:tax;type:numeric(20,2);not null;default:0" json:"tax"`
	Date        time.Time       `gorm:"column:date;not null;index" json:"date"`
	Address     string          `gorm:"column:address" json:"address"`
	Status      string          `gorm:"column:status;type:varchar(32)" json:"status"`
	Meta        datatypes.JSON  `gorm:"column:meta" json:"meta,omitempty"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"created_at"`
}

func (Deal) TableName() string {
	return "deals"
}

func (d *Deal) BeforeCreate(tx *gorm.DB) error {
	if d.DealID == uuid.Nil {
		d.DealID = uuid.New()
	}
	return nil
}

// Deal status values.
const (
	DealStatusExecuted = "executed"
	DealStatusClosed   = "closed"
)
