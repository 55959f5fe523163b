package transport

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/models"
)

type CheckoutRequest struct {
	ShippingAddressID string `json:"shipping_address_id" form:"shipping_address_id"`
	Notes             string `json:"notes"               form:"notes"`
}

type CheckoutResponse struct {
	Success     bool      `json:"success"`
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Total       string    `json:"total_amount"`
}

type CheckoutFailure struct {
	Success   bool       `json:"success"`
	ErrorKind string     `json:"error_kind"`
	Message   string     `json:"message"`
	ProductID *uuid.UUID `json:"product_id,omitempty"`
	Retryable bool       `json:"retryable"`
}

type AddToCartRequest struct {
	ProductID uuid.UUID `json:"product_id" form:"product_id"`
	Quantity  uint      `json:"quantity"   form:"quantity"`
}

type RemoveFromCartResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Deleted   bool      `json:"deleted"`
	Quantity  uint      `json:"quantity"`
}

type CartLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  uint            `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
	Available bool            `json:"available"`
}

type CartView struct {
	CartID *uuid.UUID      `json:"cart_id,omitempty"`
	Items  []CartLine      `json:"items"`
	Total  decimal.Decimal `json:"total"`
}

type CreateProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       uint            `json:"stock"`
	Active      *bool           `json:"active"`
}

type PatchProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *uint            `json:"stock"`
	Active      *bool            `json:"active"`
}

type CreateAddressRequest struct {
	FullName   string `json:"full_name"   form:"full_name"`
	Phone      string `json:"phone"       form:"phone"`
	Line1      string `json:"line1"       form:"line1"`
	Line2      string `json:"line2"       form:"line2"`
	City       string `json:"city"        form:"city"`
	PostalCode string `json:"postal_code" form:"postal_code"`
	Country    string `json:"country"     form:"country"`
	IsDefault  bool   `json:"is_default"  form:"is_default"`
}

type UpdateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status"`
}

type PageMeta struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

func NewPageMeta(page, offset, limit int, total int64) PageMeta {
	pages := int64(0)
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return PageMeta{
		Page:       page,
		Size:       limit,
		Total:      total,
		TotalPages: pages,
		HasPrev:    page > 1,
		HasNext:    int64(offset+limit) < total,
	}
}
