package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Portfolio belongs to one owner. TotalValue, ProfitLoss, YieldPercent and AnnualYield are
// derived from the holding set and written only by the aggregation engine.
type Portfolio struct {
	PortfolioID  uuid.UUID       `gorm:"column:portfolio_id;type:uuid;primaryKey" json:"portfolio_id"`
	OwnerID      uuid.UUID       `gorm:"column:owner_id;type:uuid;not null;index" json:"owner_id"`
	Name         string          `gorm:"column:name;not null" json:"name"`
	TotalValue   decimal.Decimal `gorm:"column:total_value;type:numeric(20,2);not null;default:0" json:"total_value"`
	ProfitLoss   decimal.Decimal `gorm:"column:profit_loss;type:numeric(20,2);not null;default:0" json:"profit_loss"`
	YieldPercent decimal.Decimal `gorm:"column:yield_percent;type:numeric(12,4);not null;default:0" json:"yield_percent"`
	AnnualYield  decimal.Decimal `gorm:"column:annual_yield;type:numeric(12,4);not null;default:0" json:"annual_yield"`
	Holdings     []Holding       `gorm:"foreignKey:PortfolioID;constraint:OnDelete:CASCADE" json:"holdings,omitempty"`
	Deals        []Deal          `gorm:"foreignKey:PortfolioID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt    time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Portfolio) TableName() string {
	return "portfolios"
}

func (p *Portfolio) BeforeCreate(tx *gorm.DB) error {
	if p.PortfolioID == uuid.Nil {
		p.PortfolioID = uuid.New()
	}
	return nil
}
