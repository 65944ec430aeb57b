package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"lunchdesk/internal/common"
	"lunchdesk/internal/models"
	"lunchdesk/internal/services"
)

// ApprovalHandlers serves the manager review endpoints.
type ApprovalHandlers struct {
	approvalService services.ApprovalService
}

func NewApprovalHandlers(approvalService services.ApprovalService) *ApprovalHandlers {
	return &ApprovalHandlers{approvalService: approvalService}
}

// GetPending handles GET /corporate-orders/pending/:managerId
func (h *ApprovalHandlers) GetPending(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return common.SendAppError(c, err)
	}
	managerID, err := common.ParamUUID(c, "managerId")
	if err != nil {
		return common.SendAppError(c, err)
	}

	agg, err := h.approvalService.GetPendingAggregate(c.Request().Context(), id, managerID)
	if err != nil {
		return common.SendAppError(c, err)
	}
	return c.JSON(http.StatusOK, agg)
}

// ValidateApproval handles POST /corporate-orders/validate-approval/:orderId.
// A failed check is a 200 with success=false and the reason in message.
func (h *ApprovalHandlers) ValidateApproval(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return common.SendAppError(c, err)
	}
	orderID, err := common.ParamUUID(c, "orderId")
	if err != nil {
		return common.SendAppError(c, err)
	}

	result, err := h.approvalService.ValidateApproval(c.Request().Context(), id, orderID)
	if err != nil {
		return common.SendAppError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// PaymentStatus handles GET /corporate-orders/payment-status/:orderId?managerId=
func (h *ApprovalHandlers) PaymentStatus(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return common.SendAppError(c, err)
	}
	orderID, err := common.ParamUUID(c, "orderId")
	if err != nil {
		return common.SendAppError(c, err)
	}
	managerID, err := common.ValidateUUID(c.QueryParam("managerId"), "managerId")
	if err != nil {
		return common.SendAppError(c, err)
	}

	status, err := h.approvalService.PaymentStatus(c.Request().Context(), id, orderID, managerID)
	if err != nil {
		return common.SendAppError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

// Approve handles POST /corporate-orders/:orderId/approve
func (h *ApprovalHandlers) Approve(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return common.SendAppError(c, err)
	}
	orderID, err := common.ParamUUID(c, "orderId")
	if err != nil {
		return common.SendAppError(c, err)
	}

	var req models.ApproveOrderRequest
	if err := bindBody(c, &req); err != nil {
		return common.SendAppError(c, err)
	}

	outcome, err := h.approvalService.Approve(c.Request().Context(), id, orderID, &req)
	if err != nil {
		return common.SendAppError(c, err)
	}
	return c.JSON(http.StatusOK, outcome)
}

// Reject handles POST /corporate-orders/:orderId/reject
func (h *ApprovalHandlers) Reject(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return common.SendAppError(c, err)
	}
	orderID, err := common.ParamUUID(c, "orderId")
	if err != nil {
		return common.SendAppError(c, err)
	}

	var req models.RejectOrderRequest
	if err := bindBody(c, &req); err != nil {
		return common.SendAppError(c, err)
	}

	result, err := h.approvalService.Reject(c.Request().Context(), id, orderID, &req)
	if err != nil {
		return common.SendAppError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// RejectSubOrder handles POST /corporate-orders/sub-orders/:subOrderId/reject
func (h *ApprovalHandlers) RejectSubOrder(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return common.SendAppError(c, err)
	}
	subOrderID, err := common.ParamUUID(c, "subOrderId")
	if err != nil {
		return common.SendAppError(c, err)
	}

	var req models.RejectOrderRequest
	if err := bindBody(c, &req); err != nil {
		return common.SendAppError(c, err)
	}

	so, err := h.approvalService.RejectSubOrder(c.Request().Context(), id, subOrderID, &req)
	if err != nil {
		return common.SendAppError(c, err)
	}
	return c.JSON(http.StatusOK, so)
}

// BulkReject handles POST /corporate-orders/sub-orders/bulk-reject
func (h *ApprovalHandlers) BulkReject(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return common.SendAppError(c, err)
	}

	var req models.BulkRejectRequest
	if err := bindBody(c, &req); err != nil {
		return common.SendAppError(c, err)
	}

	result, err := h.approvalService.BulkReject(c.Request().Context(), id, &req)
	if err != nil {
		return common.SendAppError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
