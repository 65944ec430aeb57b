package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"lunchdesk/internal/common"
	"lunchdesk/internal/models"
	"lunchdesk/internal/services"
)

// OrderHandlers serves the employee side of daily ordering.
type OrderHandlers struct {
	orderService services.CorporateOrderService
}

// NewOrderHandlers creates a new order handlers instance
func NewOrderHandlers(orderService services.CorporateOrderService) *OrderHandlers {
	return &OrderHandlers{
		orderService: orderService,
	}
}

// SubmitMyOrder handles POST /corporate-orders/my-order/:employeeId
func (h *OrderHandlers) SubmitMyOrder(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return common.SendAppError(c, err)
	}
	employeeID, err := common.ParamUUID(c, "employeeId")
	if err != nil {
		return common.SendAppError(c, err)
	}

	var req models.SubmitOrderRequest
	if err := bindBody(c, &req); err != nil {
		return common.SendAppError(c, err)
	}

	result, err := h.orderService.SubmitOrder(c.Request().Context(), id, employeeID, &req)
	if err != nil {
		return common.SendAppError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// GetMyOrder handles GET /corporate-orders/my-order/:employeeId
func (h *OrderHandlers) GetMyOrder(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return common.SendAppError(c, err)
	}
	employeeID, err := common.ParamUUID(c, "employeeId")
	if err != nil {
		return common.SendAppError(c, err)
	}

	order, err := h.orderService.GetMyOrder(c.Request().Context(), id, employeeID)
	if err != nil {
		return common.SendAppError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}
