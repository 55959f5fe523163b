package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
	ErrStatusChanged        = errors.New("order status changed")
)

type GormRepo struct {
	DB *gorm.DB
}

type txKey struct{}

// conn returns the transaction stored in ctx, or the base handle outside one.
func (r *GormRepo) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return r.DB.WithContext(ctx)
}

// Transaction runs fn in a transaction. Repo calls made with the ctx passed to
// fn join it. Called inside another transaction it opens a savepoint.
func (r *GormRepo) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (r *GormRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
