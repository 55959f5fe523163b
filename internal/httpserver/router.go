package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	middleware "github.com/Skotchmaster/storefront/internal/middleware/auth"
)

type Deps struct {
	CheckoutHandler *CheckoutHTTP
	CartHandler     *CartHTTP
	CatalogHandler  *CatalogHTTP
	AddressHandler  *AddressHTTP
	OrderHandler    *OrderHTTP

	Auth *middleware.AutoRefreshMiddleware
	CSRF echo.MiddlewareFunc

	// Ready reports whether the database answers.
	Ready func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready == nil {
			return c.NoContent(http.StatusOK)
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := d.Ready(ctx); err != nil {
			logging.FromContext(ctx).Error("readiness_failed", "status", 503, "error", err)
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})

	protected := []echo.MiddlewareFunc{d.Auth.RequireAuth}
	if d.CSRF != nil {
		protected = append(protected, d.CSRF)
	}
	admin := []echo.MiddlewareFunc{d.Auth.RequireAdmin}
	if d.CSRF != nil {
		admin = append(admin, d.CSRF)
	}

	e.POST("/checkout", d.CheckoutHandler.PlaceOrder, protected...)

	cart := e.Group("/cart", protected...)
	cart.GET("", d.CartHandler.GetCart)
	cart.POST("", d.CartHandler.AddToCart)
	cart.DELETE("", d.CartHandler.Clear)
	cart.DELETE("/items/:product_id", d.CartHandler.RemoveOne)

	catalog := e.Group("/catalog/products")
	catalog.GET("", d.CatalogHandler.GetProducts)
	catalog.GET("/search", d.CatalogHandler.SearchProducts)
	catalog.GET("/:id", d.CatalogHandler.GetProduct)
	catalog.POST("", d.CatalogHandler.CreateProduct, admin...)
	catalog.PATCH("/:id", d.CatalogHandler.PatchProduct, admin...)

	addresses := e.Group("/addresses", protected...)
	addresses.GET("", d.AddressHandler.List)
	addresses.POST("", d.AddressHandler.Create)
	addresses.DELETE("/:id", d.AddressHandler.Delete)

	orders := e.Group("/orders")
	orders.GET("", d.OrderHandler.ListOrders, protected...)
	orders.GET("/:id", d.OrderHandler.GetOrder, protected...)
	orders.PATCH("/:id/status", d.OrderHandler.UpdateStatus, admin...)
}
