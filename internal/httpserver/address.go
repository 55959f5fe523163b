package httpserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/transport"
)

type AddressHTTP struct {
	Svc *service.AddressService
}

func (h *AddressHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "address.list")

	uid, err := userID(c)
	if err != nil {
		l.Warn("list_addresses_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	list, err := h.Svc.List(ctx, uid)
	if err != nil {
		return serviceError(l, "list_addresses_error", err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *AddressHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "address.create")

	uid, err := userID(c)
	if err != nil {
		l.Warn("create_address_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.CreateAddressRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_address_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	addr, err := h.Svc.Create(ctx, uid, req)
	if err != nil {
		return serviceError(l, "create_address_error", err)
	}
	return c.JSON(http.StatusCreated, addr)
}

func (h *AddressHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "address.delete")

	uid, err := userID(c)
	if err != nil {
		l.Warn("delete_address_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("delete_address_error", "status", 400, "reason", "id not a uuid", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id not a uuid")
	}

	if err := h.Svc.Delete(ctx, uid, id); err != nil {
		return serviceError(l, "delete_address_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}
