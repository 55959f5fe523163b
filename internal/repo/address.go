package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
)

// FindAddress returns the address only when it belongs to userID.
func (r *GormRepo) FindAddress(ctx context.Context, addressID, userID uuid.UUID) (*models.Address, error) {
	var addr models.Address
	err := r.conn(ctx).Where("id = ? AND user_id = ?", addressID, userID).First(&addr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

func (r *GormRepo) ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var out []models.Address
	if err := r.conn(ctx).Where("user_id = ?", userID).
		Order("is_default DESC").Order("created_at").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAddress stores addr. The user's first address becomes the default, and a
// new default clears the flag on the others.
func (r *GormRepo) CreateAddress(ctx context.Context, addr *models.Address) error {
	return r.Transaction(ctx, func(ctx context.Context) error {
		tx := r.conn(ctx)

		var count int64
		if err := tx.Model(&models.Address{}).Where("user_id = ?", addr.UserID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			addr.IsDefault = true
		}
		if addr.IsDefault && count > 0 {
			if err := tx.Model(&models.Address{}).
				Where("user_id = ? AND is_default = ?", addr.UserID, true).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(addr).Error
	})
}

func (r *GormRepo) DeleteAddress(ctx context.Context, addressID, userID uuid.UUID) error {
	res := r.conn(ctx).Where("id = ? AND user_id = ?", addressID, userID).Delete(&models.Address{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
