package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/transport"
)

type AddressService struct {
	Repo *repo.GormRepo
}

func (s *AddressService) List(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	return s.Repo.ListAddresses(ctx, userID)
}

func (s *AddressService) Create(ctx context.Context, userID uuid.UUID, req transport.CreateAddressRequest) (*models.Address, error) {
	addr := &models.Address{
		UserID:     userID,
		FullName:   strings.TrimSpace(req.FullName),
		Phone:      strings.TrimSpace(req.Phone),
		Line1:      strings.TrimSpace(req.Line1),
		Line2:      strings.TrimSpace(req.Line2),
		City:       strings.TrimSpace(req.City),
		PostalCode: strings.TrimSpace(req.PostalCode),
		Country:    strings.TrimSpace(req.Country),
		IsDefault:  req.IsDefault,
	}

	var missing []string
	for field, v := range map[string]string{
		"full_name":   addr.FullName,
		"line1":       addr.Line1,
		"city":        addr.City,
		"postal_code": addr.PostalCode,
	} {
		if v == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: required %s", ErrValidation, strings.Join(missing, ", "))
	}

	if err := s.Repo.CreateAddress(ctx, addr); err != nil {
		return nil, err
	}
	return addr, nil
}

func (s *AddressService) Delete(ctx context.Context, userID, addressID uuid.UUID) error {
	err := s.Repo.DeleteAddress(ctx, addressID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("address %s: %w", addressID, ErrNotFound)
	}
	return err
}
