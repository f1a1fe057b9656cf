package registry

import (
	"context"
	"strings"

	"github.com/technicaldee/locallift/internal/domain"
	"github.com/technicaldee/locallift/internal/pkg/apperr"

	"gorm.io/gorm"
)

// Service is the business registry: the gate for pool creation. It maps a
// business identifier to its custody wallet and active flag and carries no
// financial logic.
type Service struct {
	DB *gorm.DB
}

// Register creates a business. The id is the caller's stable identifier.
func (s *Service) Register(ctx context.Context, id, custodyWallet string) (*domain.Business, error) {
	if invalidWallet(custodyWallet) {
		return nil, apperr.New(apperr.CodeInvalidWallet, "custody wallet must be a non-zero address")
	}

	business := &domain.Business{
		ID:            id,
		CustodyWallet: custodyWallet,
		Active:        true,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.Business
		if err := tx.Where("id = ?", id).First(&existing).Error; err == nil {
			return apperr.New(apperr.CodeAlreadyExists, "business %s already registered", id)
		} else if err != gorm.ErrRecordNotFound {
			return err
		}
		return tx.Create(business).Error
	})
	if err != nil {
		return nil, err
	}
	return business, nil
}

// Deactivate flips the active flag off. Idempotent on an already-inactive
// business; existing pools continue to completion.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var business domain.Business
		if err := tx.Where("id = ?", id).First(&business).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.New(apperr.CodeNotFound, "business %s not found", id)
			}
			return err
		}
		if !business.Active {
			return nil
		}
		return tx.Model(&business).Update("active", false).Error
	})
}

// Get returns a business by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Business, error) {
	var business domain.Business
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&business).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.New(apperr.CodeNotFound, "business %s not found", id)
		}
		return nil, err
	}
	return &business, nil
}

// invalidWallet rejects empty and zero/null addresses (e.g. 0x000...0).
func invalidWallet(wallet string) bool {
	w := strings.TrimSpace(wallet)
	if w == "" {
		return true
	}
	stripped := strings.TrimPrefix(strings.ToLower(w), "0x")
	if stripped == "" {
		return true
	}
	for _, r := range stripped {
		if r != '0' {
			return false
		}
	}
	return true
}
