package repo

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/storefront/internal/models"
)

func (r *GormRepo) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.conn(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *GormRepo) ListActiveProducts(ctx context.Context, offset, limit int) (int64, []models.Product, error) {
	q := r.conn(ctx).Model(&models.Product{}).Where("active = ?", true)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	items := make([]models.Product, 0, limit)
	if err := r.conn(ctx).Where("active = ?", true).
		Order("name ASC").Order("id ASC").
		Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

// SearchProductsByName is the database fallback used when no search cluster
// is configured. It matches active products by case-insensitive substring.
func (r *GormRepo) SearchProductsByName(ctx context.Context, q string, offset, limit int) (int64, []models.Product, error) {
	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
	where := "active = ? AND (LOWER(name) LIKE ? ESCAPE '\\' OR LOWER(description) LIKE ? ESCAPE '\\')"

	var total int64
	if err := r.conn(ctx).Model(&models.Product{}).Where(where, true, pattern, pattern).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	items := make([]models.Product, 0, limit)
	if err := r.conn(ctx).Where(where, true, pattern, pattern).
		Order("name ASC").
		Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *GormRepo) CreateProduct(ctx context.Context, prod *models.Product) error {
	return r.conn(ctx).Create(prod).Error
}

// PatchProduct applies the non-empty column updates and returns the fresh row.
func (r *GormRepo) PatchProduct(ctx context.Context, id uuid.UUID, updates map[string]any) (*models.Product, error) {
	var prod models.Product
	err := r.Transaction(ctx, func(ctx context.Context) error {
		tx := r.conn(ctx)
		if err := tx.Where("id = ?", id).First(&prod).Error; err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&prod).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&prod).Error
	})
	if err != nil {
		return nil, err
	}
	return &prod, nil
}

// LockProducts reads the given products ordered by id, taking row locks on
// backends that support them. A fixed lock order keeps two checkouts over the
// same products from deadlocking.
func (r *GormRepo) LockProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	return r.findProducts(r.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), ids)
}

// FindProducts loads the products with the given ids, ordered by id.
func (r *GormRepo) FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	return r.findProducts(r.conn(ctx), ids)
}

func (r *GormRepo) findProducts(tx *gorm.DB, ids []uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	if len(ids) == 0 {
		return products, nil
	}
	if err := tx.Where("id IN ?", ids).Order("id").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// DecrementStock takes qty units off an active product. The update only applies
// when enough stock is left, so concurrent callers can never drive it negative.
func (r *GormRepo) DecrementStock(ctx context.Context, id uuid.UUID, qty uint) error {
	res := r.conn(ctx).Model(&models.Product{}).
		Where("id = ? AND active = ? AND stock >= ?", id, true, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}
