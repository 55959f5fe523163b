package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/storefront/internal/models"
)

// GetCart returns the user's cart with items ordered by product id, or nil when
// the user has never added anything.
func (r *GormRepo) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return r.loadCart(r.conn(ctx), userID)
}

// LockCart is GetCart holding the cart row lock until the transaction ends.
// Item writers take the same lock, so the lines read stay the cart's contents.
func (r *GormRepo) LockCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return r.loadCart(r.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), userID)
}

func (r *GormRepo) loadCart(tx *gorm.DB, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := tx.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("product_id") }).
		Preload("Items.Product").
		Where("user_id = ?", userID).
		First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *GormRepo) GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart := models.Cart{UserID: userID}
	err := r.conn(ctx).Where("user_id = ?", userID).FirstOrCreate(&cart).Error
	if isUniqueViolation(err) {
		// created by a concurrent request
		err = r.conn(ctx).Where("user_id = ?", userID).First(&cart).Error
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// UpsertCartItem adds qty of a product to the cart, incrementing an existing line.
func (r *GormRepo) UpsertCartItem(ctx context.Context, cartID, productID uuid.UUID, qty uint) (*models.CartItem, error) {
	item := models.CartItem{CartID: cartID, ProductID: productID, Quantity: qty}

	err := r.Transaction(ctx, func(ctx context.Context) error {
		tx := r.conn(ctx)
		if err := lockCartRow(tx, cartID); err != nil {
			return err
		}
		res := tx.Model(&models.CartItem{}).
			Where("cart_id = ? AND product_id = ?", cartID, productID).
			Update("quantity", gorm.Expr("quantity + ?", qty))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return tx.Where("cart_id = ? AND product_id = ?", cartID, productID).First(&item).Error
		}
		return tx.Create(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// DecrementCartItem removes one unit of a product from the cart. The line is
// deleted when its last unit goes.
func (r *GormRepo) DecrementCartItem(ctx context.Context, cartID, productID uuid.UUID) (bool, *models.CartItem, error) {
	var item models.CartItem
	deleted := false

	err := r.Transaction(ctx, func(ctx context.Context) error {
		tx := r.conn(ctx)
		if err := lockCartRow(tx, cartID); err != nil {
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("cart_id = ? AND product_id = ?", cartID, productID).
			First(&item).Error; err != nil {
			return err
		}
		if item.Quantity > 1 {
			if err := tx.Model(&item).Update("quantity", gorm.Expr("quantity - 1")).Error; err != nil {
				return err
			}
			return tx.Where("id = ?", item.ID).First(&item).Error
		}
		if err := tx.Delete(&item).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return deleted, &item, nil
}

// ClearCart deletes every item of the cart. The cart row stays.
func (r *GormRepo) ClearCart(ctx context.Context, cartID uuid.UUID) error {
	return r.conn(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}

// DeleteCartItems deletes the given lines of the cart and nothing else.
func (r *GormRepo) DeleteCartItems(ctx context.Context, cartID uuid.UUID, itemIDs []uuid.UUID) error {
	if len(itemIDs) == 0 {
		return nil
	}
	return r.conn(ctx).Where("cart_id = ? AND id IN ?", cartID, itemIDs).Delete(&models.CartItem{}).Error
}

func lockCartRow(tx *gorm.DB, cartID uuid.UUID) error {
	var cart models.Cart
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", cartID).
		First(&cart).Error
}
