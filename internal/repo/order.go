package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
)

// CreateOrder inserts the order with its items inside a savepoint, so a clash on
// the order number leaves the enclosing transaction usable for another attempt.
// Other unique violations are returned as they are.
func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	err := r.Transaction(ctx, func(ctx context.Context) error {
		return r.conn(ctx).Create(order).Error
	})
	if err == nil || !isUniqueViolation(err) {
		return err
	}

	taken, lookupErr := r.orderNumberTaken(ctx, order.OrderNumber)
	if lookupErr != nil {
		return errors.Join(err, lookupErr)
	}
	if taken {
		return ErrDuplicateOrderNumber
	}
	return err
}

func (r *GormRepo) orderNumberTaken(ctx context.Context, number string) (bool, error) {
	var n int64
	if err := r.conn(ctx).Model(&models.Order{}).Where("order_number = ?", number).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, userID uuid.UUID, offset, limit int) (int64, []models.Order, error) {
	var total int64
	if err := r.conn(ctx).Model(&models.Order{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	orders := make([]models.Order, 0, limit)
	if err := r.conn(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&orders).Error; err != nil {
		return 0, nil, err
	}
	return total, orders, nil
}

func (r *GormRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.conn(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("product_id") }).
		Where("id = ?", id).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderStatus moves the order from one status to another. It fails with
// ErrStatusChanged when the stored status is no longer from.
func (r *GormRepo) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) error {
	res := r.conn(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}
