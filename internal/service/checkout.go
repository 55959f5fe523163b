package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
)

const (
	defaultNumberAttempts = 5
	defaultPublishTimeout = 2 * time.Second
)

type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// CartReader must hold the cart row lock until the transaction ends.
type CartReader interface {
	LockCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
}

// AddressReader must only return addresses owned by userID.
type AddressReader interface {
	FindAddress(ctx context.Context, addressID, userID uuid.UUID) (*models.Address, error)
}

type ProductStore interface {
	LockProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	DecrementStock(ctx context.Context, id uuid.UUID, qty uint) error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	DeleteCartItems(ctx context.Context, cartID uuid.UUID, itemIDs []uuid.UUID) error
}

type CheckoutRepo interface {
	Transactor
	CartReader
	AddressReader
	ProductStore
	OrderStore
}

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type PlaceOrderInput struct {
	UserID            uuid.UUID
	ShippingAddressID string
	Notes             *string
}

type Placement struct {
	OrderID     uuid.UUID
	OrderNumber string
	Total       decimal.Decimal
}

type OrderPlacedEvent struct {
	Type        string           `json:"type"`
	OrderID     uuid.UUID        `json:"order_id"`
	OrderNumber string           `json:"order_number"`
	UserID      uuid.UUID        `json:"user_id"`
	Total       decimal.Decimal  `json:"total_amount"`
	Items       []OrderEventItem `json:"items"`
	PlacedAt    time.Time        `json:"placed_at"`
}

type OrderEventItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  uint      `json:"quantity"`
}

type CheckoutService struct {
	Repo   CheckoutRepo
	Events Publisher
	Topic  string

	Now       func() time.Time
	NewNumber func(now time.Time) string

	MaxNumberAttempts int
	Timeout           time.Duration
	// PublishTimeout bounds one order_placed publish.
	PublishTimeout time.Duration

	publishing sync.WaitGroup
}

func (s *CheckoutService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *CheckoutService) newNumber() string {
	if s.NewNumber != nil {
		return s.NewNumber(s.now())
	}
	return NewOrderNumber(s.now())
}

// PlaceOrder turns the user's live cart into a PENDING order. The order, the
// stock decrements and the cart clear commit together or not at all. Every
// failure is a *CheckoutError.
func (s *CheckoutService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*Placement, error) {
	l := logging.FromContext(ctx).With("component", "checkout", "user_id", in.UserID)

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	var order *models.Order
	err := s.Repo.Transaction(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.placeInTx(ctx, in)
		return err
	})
	if err != nil {
		ce := classifyStorageError(err)
		if ce.Retryable() {
			l.Error("place_order_error", "error_kind", ce.Kind, "reason", storageReason(err), "error", err)
		} else {
			l.Warn("place_order_rejected", "error_kind", ce.Kind, "product_id", ce.ProductID, "reason", ce.Message)
		}
		return nil, ce
	}

	l.Info("order_placed", "order_id", order.ID, "order_number", order.OrderNumber, "total", order.TotalAmount.StringFixed(2))
	s.publishPlaced(ctx, order)

	return &Placement{OrderID: order.ID, OrderNumber: order.OrderNumber, Total: order.TotalAmount}, nil
}

// placeInTx does every read before the first write, so a validation failure
// rolls back a transaction that has not changed anything.
func (s *CheckoutService) placeInTx(ctx context.Context, in PlaceOrderInput) (*models.Order, error) {
	cart, err := s.Repo.LockCart(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, emptyCartError()
	}

	addrID, err := uuid.Parse(strings.TrimSpace(in.ShippingAddressID))
	if err != nil {
		return nil, addressNotFoundError()
	}
	addr, err := s.Repo.FindAddress(ctx, addrID, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("read address: %w", err)
	}
	if addr == nil {
		return nil, addressNotFoundError()
	}

	lines := make([]models.CartItem, len(cart.Items))
	copy(lines, cart.Items)
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].ProductID.String() < lines[j].ProductID.String()
	})

	ids := make([]uuid.UUID, len(lines))
	for i := range lines {
		ids[i] = lines[i].ProductID
	}
	products, err := s.Repo.LockProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("read products: %w", err)
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		p, ok := byID[line.ProductID]
		switch {
		case !ok:
			return nil, productUnavailableError(line.ProductID, "", "no longer available")
		case !p.Active:
			return nil, productUnavailableError(p.ID, p.Name, "no longer available")
		case p.Stock < line.Quantity:
			return nil, productUnavailableError(p.ID, p.Name, "out of stock")
		}

		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		items = append(items, models.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    line.Quantity,
			Price:       p.Price,
		})
	}

	order := &models.Order{
		UserID:            in.UserID,
		ShippingAddressID: addr.ID,
		Shipping:          models.SnapshotOf(addr),
		TotalAmount:       total,
		Status:            models.OrderStatusPending,
		Notes:             cleanNotes(in.Notes),
		Items:             items,
	}
	if err := s.createWithFreshNumber(ctx, order); err != nil {
		return nil, err
	}

	for _, it := range items {
		if err := s.Repo.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
			if errors.Is(err, repo.ErrInsufficientStock) {
				return nil, productUnavailableError(it.ProductID, it.ProductName, "out of stock")
			}
			return nil, fmt.Errorf("decrement stock: %w", err)
		}
	}

	ordered := make([]uuid.UUID, len(lines))
	for i := range lines {
		ordered[i] = lines[i].ID
	}
	if err := s.Repo.DeleteCartItems(ctx, cart.ID, ordered); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}
	return order, nil
}

func (s *CheckoutService) createWithFreshNumber(ctx context.Context, order *models.Order) error {
	attempts := s.MaxNumberAttempts
	if attempts <= 0 {
		attempts = defaultNumberAttempts
	}

	for i := 1; i <= attempts; i++ {
		order.OrderNumber = s.newNumber()
		err := s.Repo.CreateOrder(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repo.ErrDuplicateOrderNumber) {
			return fmt.Errorf("create order: %w", err)
		}
		logging.FromContext(ctx).Warn("order_number_taken", "order_number", order.OrderNumber, "attempt", i)
	}
	return fmt.Errorf("create order after %d attempts: %w", attempts, repo.ErrDuplicateOrderNumber)
}

func (s *CheckoutService) publishPlaced(ctx context.Context, order *models.Order) {
	if s.Events == nil || s.Topic == "" {
		return
	}

	ev := OrderPlacedEvent{
		Type:        "order_placed",
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Total:       order.TotalAmount,
		Items:       make([]OrderEventItem, 0, len(order.Items)),
		PlacedAt:    order.CreatedAt,
	}
	for _, it := range order.Items {
		ev.Items = append(ev.Items, OrderEventItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	timeout := s.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	l := logging.FromContext(ctx)

	// the order is committed, a lost event must not fail or slow the request
	s.publishing.Add(1)
	go func() {
		defer s.publishing.Done()
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := s.Events.PublishEvent(pctx, s.Topic, order.ID.String(), ev); err != nil {
			l.Warn("publish_order_placed_failed", "order_id", order.ID, "error", err)
		}
	}()
}

// Wait blocks until every order_placed publish started so far has returned.
func (s *CheckoutService) Wait() {
	s.publishing.Wait()
}

func cleanNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	v := strings.TrimSpace(*notes)
	if v == "" {
		return nil
	}
	return &v
}
