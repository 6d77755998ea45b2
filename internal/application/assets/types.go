package assets

import (
	"context"
	"errors"
	"strings"

	"portfel-backend/internal/domain"
	"portfel-backend/internal/pkg/apperr"
	"portfel-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const msgTypeNotFound = "Asset type not found."

// Ordinal scales stored on AssetType.
const (
	MaxRiskLevel = 2
	MaxLiquidity = 2
)

// typeOrderings maps accepted ordering keys to columns; a leading "-" sorts descending.
var typeOrderings = map[string]string{
	"name":       "name",
	"risk_level": "risk_level",
	"liquidity":  "liquidity",
}

// ListTypes returns asset types ordered by name, or by ordering ("risk_level", "-liquidity", ...).
func (s *Service) ListTypes(ctx context.Context, ordering string) ([]domain.AssetType, error) {
	ordering = strings.TrimSpace(ordering)
	desc := strings.HasPrefix(ordering, "-")
	col, ok := typeOrderings[strings.TrimPrefix(ordering, "-")]
	if !ok {
		if ordering != "" {
			return nil, apperr.InvalidField("ordering", "ordering must be one of name, risk_level, liquidity")
		}
		col = "name"
	}
	if desc {
		col += " DESC"
	}
	var out []domain.AssetType
	if err := s.DB.WithContext(ctx).Order(col).Order("name").Find(&out).Error; err != nil {
		return nil, apperr.Wrap(err, "list asset types")
	}
	return out, nil
}

// GetType returns one asset type.
func (s *Service) GetType(ctx context.Context, id uuid.UUID) (*domain.AssetType, error) {
	var t domain.AssetType
	if err := s.DB.WithContext(ctx).First(&t, "asset_type_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundField("asset_type", msgTypeNotFound)
		}
		return nil, apperr.Wrap(err, "get asset type")
	}
	return &t, nil
}

// CreateType adds an asset type. Names are unique.
func (s *Service) CreateType(ctx context.Context, name string, riskLevel, liquidity int) (*domain.AssetType, error) {
	f := validation.Fields{}
	name = f.Required("name", name)
	if riskLevel < 0 || riskLevel > MaxRiskLevel {
		f["risk_level"] = "risk_level must be between 0 and 2"
	}
	if liquidity < 0 || liquidity > MaxLiquidity {
		f["liquidity"] = "liquidity must be between 0 and 2"
	}
	if err := f.Err(); err != nil {
		return nil, err
	}

	var n int64
	if err := s.DB.WithContext(ctx).Model(&domain.AssetType{}).Where("name = ?", name).Count(&n).Error; err != nil {
		return nil, apperr.Wrap(err, "check asset type")
	}
	if n > 0 {
		return nil, apperr.NewConflict("Asset type " + name + " already exists.")
	}
	t := domain.AssetType{Name: name, RiskLevel: riskLevel, Liquidity: liquidity}
	if err := s.DB.WithContext(ctx).Create(&t).Error; err != nil {
		return nil, apperr.Wrap(err, "create asset type")
	}
	log.Info().Str("asset_type_id", t.AssetTypeID.String()).Str("name", t.Name).Msg("asset type created")
	return &t, nil
}
