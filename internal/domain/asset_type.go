package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AssetType classifies instruments (shares, bonds, funds). RiskLevel and Liquidity are small
// ordinal scales, 0 being the lowest risk and the highest liquidity.
type AssetType struct {
	AssetTypeID uuid.UUID `gorm:"column:asset_type_id;type:uuid;primaryKey" json:"asset_type_id"`
	Name        string    `gorm:"column:name;not null;uniqueIndex" json:"name"`
	RiskLevel   int       `gorm:"column:risk_level;not null;default:0" json:"risk_level"`
	Liquidity   int       `gorm:"column:liquidity;not null;default:0" json:"liquidity"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (AssetType) TableName() string {
	return "asset_types"
}

func (t *AssetType) BeforeCreate(tx *gorm.DB) error {
	if t.AssetTypeID == uuid.Nil {
		t.AssetTypeID = uuid.New()
	}
	return nil
}
