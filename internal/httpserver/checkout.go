package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/transport"
)

type CheckoutHTTP struct {
	Svc *service.CheckoutService
}

// PlaceOrder accepts the checkout form (or the same fields as JSON).
// Validation failures are 422 and transient failures 503.
func (h *CheckoutHTTP) PlaceOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.place_order")

	uid, err := userID(c)
	if err != nil {
		l.Warn("place_order_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("place_order_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	in := service.PlaceOrderInput{UserID: uid, ShippingAddressID: req.ShippingAddressID}
	if req.Notes != "" {
		in.Notes = &req.Notes
	}

	res, err := h.Svc.PlaceOrder(ctx, in)
	if err != nil {
		var ce *service.CheckoutError
		if !errors.As(err, &ce) {
			l.Error("place_order_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}

		body := transport.CheckoutFailure{
			ErrorKind: string(ce.Kind),
			Message:   ce.Message,
			Retryable: ce.Retryable(),
		}
		if ce.Kind == service.KindProductUnavailable {
			body.ProductID = &ce.ProductID
		}

		status := http.StatusUnprocessableEntity
		if ce.Retryable() {
			status = http.StatusServiceUnavailable
			c.Response().Header().Set("Retry-After", "1")
		}
		return c.JSON(status, body)
	}

	return c.JSON(http.StatusCreated, transport.CheckoutResponse{
		Success:     true,
		OrderID:     res.OrderID,
		OrderNumber: res.OrderNumber,
		Total:       res.Total.StringFixed(2),
	})
}
