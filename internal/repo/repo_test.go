package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/db/dbtest"
	"github.com/Skotchmaster/storefront/internal/models"
)

func newRepo(t *testing.T) *GormRepo {
	t.Helper()
	return &GormRepo{DB: dbtest.Open(t)}
}

func seedProduct(t *testing.T, r *GormRepo, name string, price int64, stock uint) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Price: decimal.NewFromInt(price), Stock: stock, Active: true}
	require.NoError(t, r.CreateProduct(context.Background(), p))
	return p
}

func TestTransaction_RollbackOnError(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := r.Transaction(ctx, func(ctx context.Context) error {
		require.NoError(t, r.CreateProduct(ctx, &models.Product{Name: "ghost", Price: decimal.NewFromInt(1), Active: true}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	total, _, err := r.ListActiveProducts(ctx, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestTransaction_NestedSavepoint(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	err := r.Transaction(ctx, func(ctx context.Context) error {
		require.NoError(t, r.CreateProduct(ctx, &models.Product{Name: "kept", Price: decimal.NewFromInt(1), Active: true}))
		inner := r.Transaction(ctx, func(ctx context.Context) error {
			require.NoError(t, r.CreateProduct(ctx, &models.Product{Name: "dropped", Price: decimal.NewFromInt(1), Active: true}))
			return errors.New("inner")
		})
		require.Error(t, inner)
		return nil
	})
	require.NoError(t, err)

	_, items, err := r.ListActiveProducts(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "kept", items[0].Name)
}

func TestDecrementStock(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	p := seedProduct(t, r, "mug", 500, 3)

	require.NoError(t, r.DecrementStock(ctx, p.ID, 2))
	require.ErrorIs(t, r.DecrementStock(ctx, p.ID, 2), ErrInsufficientStock)

	got, err := r.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Stock)

	_, err = r.PatchProduct(ctx, p.ID, map[string]any{"active": false})
	require.NoError(t, err)
	require.ErrorIs(t, r.DecrementStock(ctx, p.ID, 1), ErrInsufficientStock)
}

func TestLockProducts_OrderedByID(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	a := seedProduct(t, r, "a", 1, 1)
	b := seedProduct(t, r, "b", 1, 1)
	c := seedProduct(t, r, "c", 1, 1)

	got, err := r.LockProducts(ctx, []uuid.UUID{c.ID, a.ID, b.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].ID.String(), got[i].ID.String())
	}

	none, err := r.LockProducts(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCart_UpsertDecrementClear(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	p := seedProduct(t, r, "tea", 300, 10)

	cart, err := r.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, cart)

	created, err := r.GetOrCreateCart(ctx, userID)
	require.NoError(t, err)
	again, err := r.GetOrCreateCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	_, err = r.UpsertCartItem(ctx, created.ID, p.ID, 2)
	require.NoError(t, err)
	item, err := r.UpsertCartItem(ctx, created.ID, p.ID, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 5, item.Quantity)

	deleted, item, err := r.DecrementCartItem(ctx, created.ID, p.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.EqualValues(t, 4, item.Quantity)

	cart, err = r.GetCart(ctx, userID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	require.NotNil(t, cart.Items[0].Product)
	assert.Equal(t, "tea", cart.Items[0].Product.Name)

	require.NoError(t, r.ClearCart(ctx, cart.ID))
	cart, err = r.GetCart(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, cart)
	assert.Empty(t, cart.Items)
}

func TestAddress_DefaultsAndOwnership(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	owner, stranger := uuid.New(), uuid.New()

	first := &models.Address{UserID: owner, FullName: "A", Line1: "1 Main", City: "Riga", PostalCode: "LV-1001"}
	require.NoError(t, r.CreateAddress(ctx, first))
	assert.True(t, first.IsDefault)

	second := &models.Address{UserID: owner, FullName: "A", Line1: "2 Side", City: "Riga", PostalCode: "LV-1002", IsDefault: true}
	require.NoError(t, r.CreateAddress(ctx, second))

	list, err := r.ListAddresses(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.False(t, list[1].IsDefault)

	got, err := r.FindAddress(ctx, first.ID, stranger)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.Error(t, r.DeleteAddress(ctx, first.ID, stranger))
	require.NoError(t, r.DeleteAddress(ctx, first.ID, owner))
}

func TestCreateOrder_DuplicateNumber(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	mk := func() *models.Order {
		return &models.Order{
			OrderNumber:       "ORD-20260101-abc-000000",
			UserID:            uuid.New(),
			ShippingAddressID: uuid.New(),
			TotalAmount:       decimal.NewFromInt(10),
			Status:            models.OrderStatusPending,
		}
	}
	require.NoError(t, r.CreateOrder(ctx, mk()))

	err := r.Transaction(ctx, func(ctx context.Context) error {
		err := r.CreateOrder(ctx, mk())
		require.ErrorIs(t, err, ErrDuplicateOrderNumber)

		retry := mk()
		retry.OrderNumber = "ORD-20260101-abc-000001"
		return r.CreateOrder(ctx, retry)
	})
	require.NoError(t, err)
}

func TestUpdateOrderStatus_GuardsCurrentStatus(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	o := &models.Order{
		OrderNumber:       "ORD-1",
		UserID:            uuid.New(),
		ShippingAddressID: uuid.New(),
		TotalAmount:       decimal.NewFromInt(10),
		Status:            models.OrderStatusPending,
		Items:             []models.OrderItem{{ProductID: uuid.New(), ProductName: "x", Quantity: 1, Price: decimal.NewFromInt(10)}},
	}
	require.NoError(t, r.CreateOrder(ctx, o))

	require.NoError(t, r.UpdateOrderStatus(ctx, o.ID, models.OrderStatusPending, models.OrderStatusConfirmed))
	require.ErrorIs(t, r.UpdateOrderStatus(ctx, o.ID, models.OrderStatusPending, models.OrderStatusCancelled), ErrStatusChanged)

	got, err := r.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, got.Status)
	require.Len(t, got.Items, 1)
}

func TestPing(t *testing.T) {
	r := newRepo(t)
	require.NoError(t, r.Ping(context.Background()))
}

func TestCreateOrder_OtherUniqueViolationIsNotANumberClash(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	first := &models.Order{
		OrderNumber:       "ORD-FIRST",
		UserID:            uuid.New(),
		ShippingAddressID: uuid.New(),
		TotalAmount:       decimal.NewFromInt(5),
		Status:            models.OrderStatusPending,
	}
	require.NoError(t, r.CreateOrder(ctx, first))

	sameID := &models.Order{
		ID:                first.ID,
		OrderNumber:       "ORD-SECOND",
		UserID:            uuid.New(),
		ShippingAddressID: uuid.New(),
		TotalAmount:       decimal.NewFromInt(5),
		Status:            models.OrderStatusPending,
	}
	err := r.CreateOrder(ctx, sameID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateOrderNumber)
}

func TestLockCartAndDeleteCartItems(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	user := uuid.New()
	a := seedProduct(t, r, "A", 1, 5)
	b := seedProduct(t, r, "B", 1, 5)

	none, err := r.LockCart(ctx, user)
	require.NoError(t, err)
	assert.Nil(t, none)

	cart, err := r.GetOrCreateCart(ctx, user)
	require.NoError(t, err)
	itemA, err := r.UpsertCartItem(ctx, cart.ID, a.ID, 1)
	require.NoError(t, err)
	_, err = r.UpsertCartItem(ctx, cart.ID, b.ID, 2)
	require.NoError(t, err)

	err = r.Transaction(ctx, func(ctx context.Context) error {
		locked, err := r.LockCart(ctx, user)
		require.NoError(t, err)
		require.Len(t, locked.Items, 2)
		require.NotNil(t, locked.Items[0].Product)
		return r.DeleteCartItems(ctx, cart.ID, []uuid.UUID{itemA.ID})
	})
	require.NoError(t, err)

	left, err := r.GetCart(ctx, user)
	require.NoError(t, err)
	require.Len(t, left.Items, 1)
	assert.Equal(t, b.ID, left.Items[0].ProductID)

	require.NoError(t, r.DeleteCartItems(ctx, cart.ID, nil))
}
