package portfolios

import (
	"context"
	"errors"
	"strings"

	"portfel-backend/internal/application/aggregation"
	"portfel-backend/internal/domain"
	"portfel-backend/internal/infrastructure/database"
	"portfel-backend/internal/pkg/apperr"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	msgNotFound    = "Portfolio not found or does not belong to the user."
	maxNameLength  = 255
	defaultOrderBy = "created_at"
)

// Service manages portfolios of a single owner.
type Service struct {
	DB         *gorm.DB
	Aggregates *aggregation.Service
}

// Create adds an empty portfolio with zeroed aggregates.
func (s *Service) Create(ctx context.Context, owner uuid.UUID, name string) (*domain.Portfolio, error) {
	name, err := validName(name)
	if err != nil {
		return nil, err
	}
	p := domain.Portfolio{
		OwnerID:      owner,
		Name:         name,
		TotalValue:   decimal.Zero,
		ProfitLoss:   decimal.Zero,
		YieldPercent: decimal.Zero,
		AnnualYield:  decimal.Zero,
	}
	if err := s.DB.WithContext(ctx).Omit("Holdings", "Deals").Create(&p).Error; err != nil {
		return nil, apperr.Wrap(err, "create portfolio")
	}
	log.Info().Str("portfolio_id", p.PortfolioID.String()).Str("owner_id", owner.String()).Msg("portfolio created")
	return &p, nil
}

// List returns the owner's portfolios, oldest first, without holdings.
func (s *Service) List(ctx context.Context, owner uuid.UUID) ([]domain.Portfolio, error) {
	var out []domain.Portfolio
	if err := s.DB.WithContext(ctx).
		Where("owner_id = ?", owner).
		Order(defaultOrderBy).
		Find(&out).Error; err != nil {
		return nil, apperr.Wrap(err, "list portfolios")
	}
	return out, nil
}

// Get returns one portfolio with its holdings and their assets.
func (s *Service) Get(ctx context.Context, owner, id uuid.UUID) (*domain.Portfolio, error) {
	var p domain.Portfolio
	err := s.DB.WithContext(ctx).
		Preload("Holdings", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("Holdings.Asset").
		Where("portfolio_id = ? AND owner_id = ?", id, owner).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundField("portfolio", msgNotFound)
		}
		return nil, apperr.Wrap(err, "get portfolio")
	}
	return &p, nil
}

// Rename changes the portfolio name.
func (s *Service) Rename(ctx context.Context, owner, id uuid.UUID, name string) (*domain.Portfolio, error) {
	name, err := validName(name)
	if err != nil {
		return nil, err
	}
	res := s.DB.WithContext(ctx).Model(&domain.Portfolio{}).
		Where("portfolio_id = ? AND owner_id = ?", id, owner).
		Update("name", name)
	if res.Error != nil {
		return nil, apperr.Wrap(res.Error, "rename portfolio")
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFoundField("portfolio", msgNotFound)
	}
	return s.Get(ctx, owner, id)
}

// Delete removes the portfolio together with its deals and holdings.
func (s *Service) Delete(ctx context.Context, owner, id uuid.UUID) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p domain.Portfolio
		if err := database.ForUpdate(tx).
			Where("portfolio_id = ? AND owner_id = ?", id, owner).
			First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundField("portfolio", msgNotFound)
			}
			return err
		}
		if err := tx.Where("portfolio_id = ?", id).Delete(&domain.Deal{}).Error; err != nil {
			return err
		}
		if err := tx.Where("portfolio_id = ?", id).Delete(&domain.Holding{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Portfolio{}, "portfolio_id = ?", id).Error
	})
	if err != nil {
		return apperr.Wrap(err, "delete portfolio")
	}
	log.Info().Str("portfolio_id", id.String()).Msg("portfolio deleted")
	return nil
}

// Recompute refreshes the aggregates of an owned portfolio.
func (s *Service) Recompute(ctx context.Context, owner, id uuid.UUID) (*domain.Portfolio, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&domain.Portfolio{}).
		Where("portfolio_id = ? AND owner_id = ?", id, owner).
		Count(&n).Error; err != nil {
		return nil, apperr.Wrap(err, "find portfolio")
	}
	if n == 0 {
		return nil, apperr.NotFoundField("portfolio", msgNotFound)
	}
	if _, err := s.Aggregates.Recompute(ctx, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, owner, id)
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.InvalidField("name", "name is required")
	}
	if len([]rune(name)) > maxNameLength {
		return "", apperr.InvalidField("name", "name is too long")
	}
	return name, nil
}
