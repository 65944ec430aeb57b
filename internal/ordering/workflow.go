package ordering

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"lunchdesk/internal/apperrors"
	"lunchdesk/internal/models"
)

var orderTransitions = map[models.AggregatedOrderStatus][]models.AggregatedOrderStatus{
	models.OrderPendingApproval: {models.OrderApproved, models.OrderRejected, models.OrderCancelled},
}

var subOrderTransitions = map[models.SubOrderStatus][]models.SubOrderStatus{
	models.SubOrderPending: {models.SubOrderConfirmed, models.SubOrderRejected, models.SubOrderCancelled},
	// A rejected order may be replaced by a fresh same-day submission.
	models.SubOrderRejected: {models.SubOrderPending},
}

func CanTransitionOrder(from, to models.AggregatedOrderStatus) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func CanTransitionSubOrder(from, to models.SubOrderStatus) bool {
	for _, s := range subOrderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateForApproval is the dry run performed before any payment choice is
// offered. It fails when the order is not awaiting approval or when nothing
// in it is left to confirm.
func ValidateForApproval(order *models.CorporateOrder, subOrders []models.SubOrder) error {
	if order.Status != models.OrderPendingApproval {
		return apperrors.ApprovalValidation(
			fmt.Sprintf("order is %s and can no longer be approved", strings.ToLower(string(order.Status))))
	}
	pending := 0
	for _, so := range subOrders {
		if so.Status == models.SubOrderPending {
			pending++
		}
	}
	if pending == 0 {
		return apperrors.ApprovalValidation("order has no pending employee orders to approve")
	}
	return nil
}

// ValidateApproveRequest checks the approval payload before any network or
// database work: a payment method is required, card payments need a
// tokenized payment method id, and a delivery address is always required.
func ValidateApproveRequest(req *models.ApproveOrderRequest) error {
	if req.ManagerID == uuid.Nil {
		return apperrors.Validation("manager_id", "manager is required")
	}
	switch req.PaymentMethod {
	case models.PaymentWallet:
	case models.PaymentStripeDirect:
		if req.PaymentMethodID == nil || strings.TrimSpace(*req.PaymentMethodID) == "" {
			return apperrors.Validation("payment_method_id", "select a card to pay with")
		}
	case "":
		return apperrors.Validation("payment_method", "select a payment method")
	default:
		return apperrors.Validation("payment_method", fmt.Sprintf("unsupported payment method %q", req.PaymentMethod))
	}
	if req.DeliveryAddressID == uuid.Nil {
		return apperrors.Validation("delivery_address_id", "select a delivery address")
	}
	return nil
}

func ValidateRejection(managerID uuid.UUID, reason string) error {
	if managerID == uuid.Nil {
		return apperrors.Validation("manager_id", "manager is required")
	}
	if strings.TrimSpace(reason) == "" {
		return apperrors.Validation("reason", "a rejection reason is required")
	}
	return nil
}

// PartitionRejectable splits ids into those that can be rejected and those
// to skip: unknown ids and sub-orders not in PENDING are skipped. Duplicate
// ids are collapsed.
func PartitionRejectable(ids []uuid.UUID, subOrders []models.SubOrder) (rejectable, skipped []uuid.UUID) {
	byID := make(map[uuid.UUID]models.SubOrderStatus, len(subOrders))
	for _, so := range subOrders {
		byID[so.ID] = so.Status
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if status, ok := byID[id]; ok && CanTransitionSubOrder(status, models.SubOrderRejected) {
			rejectable = append(rejectable, id)
		} else {
			skipped = append(skipped, id)
		}
	}
	return rejectable, skipped
}

// SelectableForBulk returns the sub-orders "select all" may pick: every
// visible sub-order that is not already REJECTED.
func SelectableForBulk(views []models.EmployeeOrderView) []uuid.UUID {
	var ids []uuid.UUID
	for _, v := range views {
		if v.Status == models.SubOrderRejected || v.Status == models.SubOrderCancelled {
			continue
		}
		ids = append(ids, v.SubOrderID)
	}
	return ids
}
