package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/transport"
)

type CartService struct {
	Repo *repo.GormRepo
}

// GetCart prices the cart with live catalog data. A user without a cart gets
// an empty view.
func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*transport.CartView, error) {
	cart, err := s.Repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := &transport.CartView{Items: []transport.CartLine{}, Total: decimal.Zero}
	if cart == nil {
		return view, nil
	}
	view.CartID = &cart.ID

	for _, it := range cart.Items {
		line := transport.CartLine{ProductID: it.ProductID, Quantity: it.Quantity}
		if it.Product != nil {
			line.Name = it.Product.Name
			line.Price = it.Product.Price
			line.LineTotal = it.Product.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
			line.Available = it.Product.Active && it.Product.Stock >= it.Quantity
		}
		view.Total = view.Total.Add(line.LineTotal)
		view.Items = append(view.Items, line)
	}
	return view, nil
}

func (s *CartService) AddToCart(ctx context.Context, userID uuid.UUID, req transport.AddToCartRequest) (*models.CartItem, error) {
	if req.ProductID == uuid.Nil {
		return nil, fmt.Errorf("ID product must be not nil: %w", ErrValidation)
	}
	if req.Quantity == 0 {
		return nil, fmt.Errorf("quantity must be more than zero: %w", ErrValidation)
	}

	var item *models.CartItem
	err := s.Repo.Transaction(ctx, func(ctx context.Context) error {
		p, err := s.Repo.GetProduct(ctx, req.ProductID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("product not found: %w", ErrNotFound)
		}
		if err != nil {
			return err
		}
		if !p.Active {
			return fmt.Errorf("product is not available: %w", ErrValidation)
		}

		cart, err := s.Repo.GetOrCreateCart(ctx, userID)
		if err != nil {
			return err
		}
		item, err = s.Repo.UpsertCartItem(ctx, cart.ID, req.ProductID, req.Quantity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *CartService) RemoveOne(ctx context.Context, userID, productID uuid.UUID) (*transport.RemoveFromCartResponse, error) {
	if productID == uuid.Nil {
		return nil, fmt.Errorf("ID product must be not nil: %w", ErrValidation)
	}

	cart, err := s.Repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, fmt.Errorf("product not found: %w", ErrNotFound)
	}

	deleted, item, err := s.Repo.DecrementCartItem(ctx, cart.ID, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product not found: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	resp := &transport.RemoveFromCartResponse{ProductID: productID, Deleted: deleted}
	if !deleted {
		resp.Quantity = item.Quantity
	}
	return resp, nil
}

func (s *CartService) Clear(ctx context.Context, userID uuid.UUID) error {
	cart, err := s.Repo.GetCart(ctx, userID)
	if err != nil || cart == nil {
		return err
	}
	return s.Repo.ClearCart(ctx, cart.ID)
}
