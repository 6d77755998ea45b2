package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Asset is shared reference data. CurrentPrice is owned by the price feed and only read
// by the ledger engines.
type Asset struct {
	AssetID       uuid.UUID           `gorm:"column:asset_id;type:uuid;primaryKey" json:"asset_id"`
	Ticker        string              `gorm:"column:ticker;type:varchar(32);not null;uniqueIndex" json:"ticker"`
	ISIN          string              `gorm:"column:isin;type:varchar(32)" json:"isin"`
	Company       string              `gorm:"column:company" json:"company"`
	Country       string              `gorm:"column:country" json:"country"`
	Region        string              `gorm:"column:region" json:"region"`
	Exchange      string              `gorm:"column:exchange;type:varchar(64)" json:"exchange"`
	Market        string              `gorm:"column:market" json:"market"`
	TradingType   string              `gorm:"column:trading_type" json:"trading_type"`
	Currency      string              `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Description   string              `gorm:"column:description;type:text" json:"description"`
	ManagementFee decimal.NullDecimal `gorm:"column:management_fee;type:numeric(5,2)" json:"management_fee"`
	DividendYield decimal.NullDecimal `gorm:"column:dividend_yield;type:numeric(5,2)" json:"dividend_yield"`
	PERatio       decimal.NullDecimal `gorm:"column:pe_ratio;type:numeric(10,2)" json:"pe_ratio"`
	PBRatio       decimal.NullDecimal `gorm:"column:pb_ratio;type:numeric(10,2)" json:"pb_ratio"`
	Beta          decimal.NullDecimal `gorm:"column:beta;type:numeric(5,2)" json:"beta"`
	AssetTypeID   *uuid.UUID          `gorm:"column:asset_type_id;type:uuid;index" json:"asset_type_id"`
	AssetType     *AssetType          `gorm:"foreignKey:AssetTypeID;references:AssetTypeID" json:"asset_type,omitempty"`
	CurrentPrice  decimal.NullDecimal `gorm:"column:current_price;type:numeric(20,4)" json:"current_price"`
	CreatedAt     time.Time           `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"column:updated_at" json:"updated_at"`
}

func (Asset) TableName() string {
	return "assets"
}

func (a *Asset) BeforeCreate(tx *gorm.DB) error {
	if a.AssetID == uuid.Nil {
		a.AssetID = uuid.New()
	}
	return nil
}
