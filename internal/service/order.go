package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
)

type OrderStatusChangedEvent struct {
	Type      string             `json:"type"`
	OrderID   uuid.UUID          `json:"order_id"`
	From      models.OrderStatus `json:"from"`
	To        models.OrderStatus `json:"to"`
	ChangedAt time.Time          `json:"changed_at"`
}

type OrderService struct {
	Repo   *repo.GormRepo
	Events Publisher
	Topic  string
}

func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, offset, limit int) (int64, []models.Order, error) {
	return s.Repo.ListOrders(ctx, userID, offset, limit)
}

// GetOrder returns the order only to its owner.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.Repo.GetOrder(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return order, nil
}

// UpdateStatus moves an order along its lifecycle. Moves the lifecycle does not
// allow, and moves racing another update, are conflicts.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, to models.OrderStatus) (*models.Order, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}

	order, err := s.Repo.GetOrder(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	from := order.Status
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: cannot move order from %s to %s", ErrConflict, from, to)
	}
	if err := s.Repo.UpdateOrderStatus(ctx, orderID, from, to); err != nil {
		if errors.Is(err, repo.ErrStatusChanged) {
			return nil, fmt.Errorf("%w: order status changed concurrently", ErrConflict)
		}
		return nil, err
	}
	order.Status = to

	if s.Events != nil && s.Topic != "" {
		ev := OrderStatusChangedEvent{Type: "order_status_changed", OrderID: orderID, From: from, To: to, ChangedAt: time.Now().UTC()}
		if err := s.Events.PublishEvent(context.WithoutCancel(ctx), s.Topic, orderID.String(), ev); err != nil {
			logging.FromContext(ctx).Warn("publish_order_status_failed", "order_id", orderID, "error", err)
		}
	}
	return order, nil
}
