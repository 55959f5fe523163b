package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"                 json:"id"`
	Name        string          `gorm:"not null"                             json:"name"`
	Description string          `gorm:"not null;default:''"                  json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null"          json:"price"`
	Stock       uint            `gorm:"not null;default:0;check:stock >= 0"  json:"stock"`
	Active      bool            `gorm:"not null"                             json:"active"`
	CreatedAt   time.Time       `                                            json:"created_at"`
	UpdatedAt   time.Time       `                                            json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (Product) TableName() string {
	return "products"
}

type Cart struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"          json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Items     []CartItem `gorm:"foreignKey:CartID"             json:"items"`
	CreatedAt time.Time  `                                     json:"created_at"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (Cart) TableName() string {
	return "carts"
}

type CartItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"                           json:"id"`
	CartID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_cart_product;not null" json:"cart_id"`
	ProductID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_cart_product;not null" json:"product_id"`
	Quantity  uint      `gorm:"not null;default:1;check:quantity > 0"          json:"quantity"`
	Product   *Product  `gorm:"foreignKey:ProductID"                           json:"product,omitempty"`
}

func (c *CartItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (CartItem) TableName() string {
	return "cart_items"
}

type Address struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"    json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	FullName   string    `gorm:"not null"                json:"full_name"`
	Phone      string    `gorm:"not null;default:''"     json:"phone"`
	Line1      string    `gorm:"not null"                json:"line1"`
	Line2      string    `gorm:"not null;default:''"     json:"line2"`
	City       string    `gorm:"not null"                json:"city"`
	PostalCode string    `gorm:"not null"                json:"postal_code"`
	Country    string    `gorm:"not null;default:''"     json:"country"`
	IsDefault  bool      `gorm:"not null;default:false"  json:"is_default"`
	CreatedAt  time.Time `                               json:"created_at"`
}

func (a *Address) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (Address) TableName() string {
	return "addresses"
}

// ShippingSnapshot is the copy of an address stored on the order it was used for.
type ShippingSnapshot struct {
	FullName   string `gorm:"column:ship_full_name;not null;default:''"   json:"full_name"`
	Phone      string `gorm:"column:ship_phone;not null;default:''"       json:"phone"`
	Line1      string `gorm:"column:ship_line1;not null;default:''"       json:"line1"`
	Line2      string `gorm:"column:ship_line2;not null;default:''"       json:"line2"`
	City       string `gorm:"column:ship_city;not null;default:''"        json:"city"`
	PostalCode string `gorm:"column:ship_postal_code;not null;default:''" json:"postal_code"`
	Country    string `gorm:"column:ship_country;not null;default:''"     json:"country"`
}

func SnapshotOf(a *Address) ShippingSnapshot {
	return ShippingSnapshot{
		FullName:   a.FullName,
		Phone:      a.Phone,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

type Order struct {
	ID                uuid.UUID        `gorm:"type:uuid;primaryKey"              json:"id"`
	OrderNumber       string           `gorm:"uniqueIndex;not null"              json:"order_number"`
	UserID            uuid.UUID        `gorm:"type:uuid;index;not null"          json:"user_id"`
	ShippingAddressID uuid.UUID        `gorm:"type:uuid;not null"                json:"shipping_address_id"`
	Shipping          ShippingSnapshot `gorm:"embedded"                          json:"shipping"`
	TotalAmount       decimal.Decimal  `gorm:"type:numeric(12,2);not null"       json:"total_amount"`
	Status            OrderStatus      `gorm:"type:varchar(20);not null;index"   json:"status"`
	Notes             *string          `                                         json:"notes,omitempty"`
	Items             []OrderItem      `gorm:"foreignKey:OrderID"                json:"items"`
	CreatedAt         time.Time        `                                         json:"created_at"`
	UpdatedAt         time.Time        `                                         json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (Order) TableName() string {
	return "orders"
}

type OrderItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"              json:"id"`
	OrderID     uuid.UUID       `gorm:"type:uuid;index;not null"          json:"order_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null"                json:"product_id"`
	ProductName string          `gorm:"not null;default:''"               json:"product_name"`
	Quantity    uint            `gorm:"not null;check:quantity > 0"       json:"quantity"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null"       json:"price"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (OrderItem) TableName() string {
	return "order_items"
}

// All lists every table in migration order.
func All() []any {
	return []any{&Product{}, &Cart{}, &CartItem{}, &Address{}, &Order{}, &OrderItem{}}
}
