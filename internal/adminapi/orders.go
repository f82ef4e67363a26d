package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"

	"github.com/talkincode/storefront/internal/apperr"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/relations"
	"github.com/talkincode/storefront/internal/webserver"
)

type orderPayload struct {
	Title string           `json:"title"`
	Date  interface{}      `json:"date"` // date string in any common layout, or epoch milliseconds
	Items domain.LineItems `json:"items"`
}

func registerOrderRoutes() {
	webserver.ApiGET("/customers/:id/orders", listOrders)
	webserver.ApiPOST("/customers/:id/orders", attachOrder, gated("id")...)
	webserver.ApiDELETE("/customers/:id/orders/:orderId", detachOrder, gated("id")...)
}

// @Summary list the orders of a customer
// @Tags Orders
// @Param id path int true "Customer ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/customers/{id}/orders [get]
func listOrders(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	orders, err := GetRelations(c).ListOrders(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, map[string]interface{}{"orders": orders})
}

// parseOrderDate accepts what clients commonly send for a date. A missing
// date is the zero time.
func parseOrderDate(v interface{}) (time.Time, error) {
	switch d := v.(type) {
	case nil:
		return time.Time{}, nil
	case string:
		if strings.TrimSpace(d) == "" {
			return time.Time{}, nil
		}
		t, err := dateparse.ParseAny(d)
		if err != nil {
			return time.Time{}, apperr.Wrap(apperr.KindInvalidInput, err, "Invalid date")
		}
		return t, nil
	case float64:
		return time.UnixMilli(int64(d)), nil
	default:
		return time.Time{}, apperr.InvalidInput("Invalid date")
	}
}

// @Summary add an order to a customer
// @Tags Orders
// @Param id path int true "Customer ID"
// @Param order body adminapi.orderPayload true "Order information"
// @Success 201 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/customers/{id}/orders [post]
func attachOrder(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var payload orderPayload
	if err := bindPayload(c, &payload); err != nil {
		return err
	}
	date, err := parseOrderDate(payload.Date)
	if err != nil {
		return err
	}

	order, err := GetRelations(c).AttachOrder(c.Request().Context(), id, relations.OrderDraft{
		Title: payload.Title,
		Date:  date,
		Items: payload.Items,
	})
	if err != nil {
		return err
	}
	return created(c, map[string]interface{}{"order": order})
}

// @Summary remove an order from a customer
// @Tags Orders
// @Param id path int true "Customer ID"
// @Param orderId path int true "Order ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /api/customers/{id}/orders/{orderId} [delete]
func detachOrder(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	orderID, err := parseIDParam(c, "orderId")
	if err != nil {
		return apperr.NotFound("Order not found for the customer")
	}
	if err := GetRelations(c).DetachOrder(c.Request().Context(), id, orderID); err != nil {
		return err
	}
	return message(c, http.StatusOK, "Order deleted successfully")
}
