package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lunchdesk/internal/apperrors"
	"lunchdesk/internal/caching"
	"lunchdesk/internal/common"
	"lunchdesk/internal/events"
	"lunchdesk/internal/models"
	"lunchdesk/internal/ordering"
	"lunchdesk/internal/repositories"
)

// ApprovalService drives an organization's daily order through manager
// review.
type ApprovalService interface {
	GetPendingAggregate(ctx context.Context, caller common.Identity, managerID uuid.UUID) (*models.AggregatedOrder, error)
	ValidateApproval(ctx context.Context, caller common.Identity, orderID uuid.UUID) (*models.ApprovalValidation, error)
	PaymentStatus(ctx context.Context, caller common.Identity, orderID, managerID uuid.UUID) (*models.PaymentStatus, error)
	Approve(ctx context.Context, caller common.Identity, orderID uuid.UUID, req *models.ApproveOrderRequest) (*models.PaymentOutcome, error)
	Reject(ctx context.Context, caller common.Identity, orderID uuid.UUID, req *models.RejectOrderRequest) (*models.RejectOrderResult, error)
	RejectSubOrder(ctx context.Context, caller common.Identity, subOrderID uuid.UUID, req *models.RejectOrderRequest) (*models.SubOrder, error)
	BulkReject(ctx context.Context, caller common.Identity, req *models.BulkRejectRequest) (*models.BulkRejectResult, error)
}

type approvalService struct {
	store     repositories.Store
	cache     caching.CacheService
	cards     CardPaymentService
	publisher events.Publisher
	pricing   ordering.Pricing
	location  *time.Location
	lockTTL   time.Duration
	now       func() time.Time
	log       *zap.Logger
}

// NewApprovalService creates a new approval service instance
func NewApprovalService(store repositories.Store, cache caching.CacheService, cards CardPaymentService, publisher events.Publisher,
	pricing ordering.Pricing, location *time.Location, lockTTL time.Duration, log *zap.Logger) ApprovalService {
	return &approvalService{
		store:     store,
		cache:     cache,
		cards:     cards,
		publisher: publisher,
		pricing:   pricing,
		location:  location,
		lockTTL:   lockTTL,
		now:       time.Now,
		log:       log,
	}
}

// requireManager checks that the caller is a manager and is the manager the
// request names.
func requireManager(caller common.Identity, managerID uuid.UUID) error {
	if !caller.IsManager() {
		return apperrors.Forbidden("Only managers can review corporate orders")
	}
	if managerID != uuid.Nil && managerID != caller.UserID {
		return apperrors.Forbidden("You can only act as yourself")
	}
	return nil
}

func (s *approvalService) loadOrder(ctx context.Context, store repositories.Store, orgID, orderID uuid.UUID, forUpdate bool) (*models.CorporateOrder, []models.SubOrder, error) {
	var (
		order *models.CorporateOrder
		err   error
	)
	if forUpdate {
		order, err = store.CorporateOrders().GetForUpdate(ctx, orgID, orderID)
	} else {
		order, err = store.CorporateOrders().GetByID(ctx, orgID, orderID)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil, apperrors.NotFound("corporate order")
		}
		return nil, nil, apperrors.Internal("load corporate order", err)
	}

	subOrders, err := store.SubOrders().ListByCorporateOrder(ctx, order.ID)
	if err != nil {
		return nil, nil, apperrors.Internal("list sub-orders", err)
	}
	return order, subOrders, nil
}

func (s *approvalService) loadOrganization(ctx context.Context, store repositories.Store, orgID uuid.UUID) (*models.Organization, error) {
	org, err := store.Organizations().GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.NotFound("organization")
		}
		return nil, apperrors.Internal("load organization", err)
	}
	return org, nil
}

// GetPendingAggregate returns the earliest order awaiting approval that has
// not yet passed its delivery date.
func (s *approvalService) GetPendingAggregate(ctx context.Context, caller common.Identity, managerID uuid.UUID) (*models.AggregatedOrder, error) {
	if err := requireManager(caller, managerID); err != nil {
		return nil, err
	}
	org, err := s.loadOrganization(ctx, s.store, caller.OrganizationID)
	if err != nil {
		return nil, err
	}
	today := startOfDay(s.now().In(ordering.Location(org, s.location)))

	order, err := s.store.CorporateOrders().NextPending(ctx, org.ID, today)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.NotFound("pending order")
		}
		return nil, apperrors.Internal("load pending order", err)
	}
	subOrders, err := s.store.SubOrders().ListByCorporateOrder(ctx, order.ID)
	if err != nil {
		return nil, apperrors.Internal("list sub-orders", err)
	}

	agg := ordering.AggregateOrder(order, subOrders, s.pricing)
	return &agg, nil
}

// ValidateApproval is the dry run that must pass before a manager may choose
// a payment method. A failed check is reported in the result, not as an error.
func (s *approvalService) ValidateApproval(ctx context.Context, caller common.Identity, orderID uuid.UUID) (*models.ApprovalValidation, error) {
	if err := requireManager(caller, uuid.Nil); err != nil {
		return nil, err
	}
	order, subOrders, err := s.loadOrder(ctx, s.store, caller.OrganizationID, orderID, false)
	if err != nil {
		return nil, err
	}
	org, err := s.loadOrganization(ctx, s.store, caller.OrganizationID)
	if err != nil {
		return nil, err
	}

	total := ordering.AggregateOrder(order, subOrders, s.pricing).TotalAmount
	out := &models.ApprovalValidation{
		Success:          true,
		TotalAmount:      total,
		WalletBalance:    org.WalletBalance,
		CanPayWithWallet: org.WalletBalance.GreaterThanOrEqual(total),
	}
	if err := ordering.ValidateForApproval(order, subOrders); err != nil {
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			return nil, err
		}
		out.Success = false
		out.Message = appErr.Message
	}
	return out, nil
}

func (s *approvalService) PaymentStatus(ctx context.Context, caller common.Identity, orderID, managerID uuid.UUID) (*models.PaymentStatus, error) {
	if err := requireManager(caller, managerID); err != nil {
		return nil, err
	}
	order, subOrders, err := s.loadOrder(ctx, s.store, caller.OrganizationID, orderID, false)
	if err != nil {
		return nil, err
	}
	org, err := s.loadOrganization(ctx, s.store, caller.OrganizationID)
	if err != nil {
		return nil, err
	}

	total := ordering.AggregateOrder(order, subOrders, s.pricing).TotalAmount
	return &models.PaymentStatus{
		OrderID:          order.ID,
		TotalAmount:      total,
		WalletBalance:    org.WalletBalance,
		CanPayWithWallet: org.WalletBalance.GreaterThanOrEqual(total),
		HasStoredCard:    org.HasStoredCard(),
		Selection:        ordering.SelectPayment(total, org.WalletBalance, org.HasStoredCard()),
	}, nil
}

// Approve pays for the order and confirms its pending sub-orders. A card is
// charged before the transaction and refunded if the transaction fails; a
// wallet is debited inside it.
func (s *approvalService) Approve(ctx context.Context, caller common.Identity, orderID uuid.UUID, req *models.ApproveOrderRequest) (*models.PaymentOutcome, error) {
	if req == nil {
		return nil, apperrors.Validation("body", "approval request is required")
	}
	if err := requireManager(caller, req.ManagerID); err != nil {
		return nil, err
	}
	if err := ordering.ValidateApproveRequest(req); err != nil {
		return nil, err
	}

	lockKey := caching.ApprovalLockKey(orderID)
	token, ok, err := s.cache.AcquireLock(ctx, lockKey, s.lockTTL)
	switch {
	case err != nil:
		s.log.Warn("approval lock unavailable, relying on database guards",
			zap.String("order_id", orderID.String()), zap.Error(err))
	case !ok:
		return nil, apperrors.Conflict("This order is already being processed")
	default:
		defer func() {
			if err := s.cache.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
				s.log.Warn("failed to release approval lock", zap.String("order_id", orderID.String()), zap.Error(err))
			}
		}()
	}

	orgID := caller.OrganizationID
	if _, err := s.store.Addresses().GetByID(ctx, orgID, req.DeliveryAddressID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.Validation("delivery_address_id", "delivery address does not belong to this organization")
		}
		return nil, apperrors.Internal("load delivery address", err)
	}

	order, subOrders, err := s.loadOrder(ctx, s.store, orgID, orderID, false)
	if err != nil {
		return nil, err
	}
	if err := ordering.ValidateForApproval(order, subOrders); err != nil {
		return nil, err
	}
	total := ordering.AggregateOrder(order, subOrders, s.pricing).TotalAmount

	var charge *ChargeResult
	if req.PaymentMethod == models.PaymentStripeDirect {
		org, err := s.loadOrganization(ctx, s.store, orgID)
		if err != nil {
			return nil, err
		}
		charge, err = s.cards.Charge(ctx, ChargeRequest{
			OrderID:         order.ID,
			AttemptID:       uuid.New(),
			OrganizationID:  orgID,
			Amount:          total,
			PaymentMethodID: *req.PaymentMethodID,
			CustomerID:      org.StripeCustomerID,
		})
		if err != nil {
			s.log.Warn("card payment failed", zap.String("order_id", order.ID.String()), zap.Error(err))
			return nil, err
		}
	}

	approvedAt := s.now().UTC()
	var confirmed int64
	err = s.store.InTx(ctx, func(tx repositories.Store) error {
		locked, current, err := s.loadOrder(ctx, tx, orgID, orderID, true)
		if err != nil {
			return err
		}
		if err := ordering.ValidateForApproval(locked, current); err != nil {
			return err
		}
		lockedTotal := ordering.AggregateOrder(locked, current, s.pricing).TotalAmount
		if !lockedTotal.Equal(total) {
			return apperrors.ApprovalValidation("The order changed while it was being approved. Review it and try again.")
		}

		if req.PaymentMethod == models.PaymentWallet {
			if err := tx.Organizations().DebitWallet(ctx, orgID, total); err != nil {
				if errors.Is(err, repositories.ErrInsufficientFunds) {
					return apperrors.Payment("Insufficient wallet balance", err)
				}
				return apperrors.Internal("debit wallet", err)
			}
		}

		approval := repositories.Approval{
			ManagerID:            caller.UserID,
			ApprovedAt:           approvedAt,
			PaymentMethod:        req.PaymentMethod,
			DeliveryAddressID:    req.DeliveryAddressID,
			DeliveryInstructions: req.DeliveryInstructions,
			Notes:                req.Notes,
			TotalAmount:          total,
		}
		if charge != nil {
			approval.PaymentReference = &charge.Reference
		}
		moved, err := tx.CorporateOrders().MarkApproved(ctx, orderID, approval)
		if err != nil {
			return apperrors.Internal("approve order", err)
		}
		if !moved {
			return apperrors.Conflict("Order is no longer pending approval")
		}

		confirmed, err = tx.SubOrders().ConfirmPending(ctx, orderID)
		if err != nil {
			return apperrors.Internal("confirm sub-orders", err)
		}
		for _, so := range current {
			if so.Status != models.SubOrderPending {
				continue
			}
			if err := tx.Employees().DebitBudget(ctx, so.EmployeeID, so.TotalAmount); err != nil {
				return apperrors.Internal(fmt.Sprintf("debit budget of employee %s", so.EmployeeID), err)
			}
		}
		return nil
	})
	if err != nil {
		if charge != nil {
			s.refund(ctx, order.ID, charge.Reference)
		}
		return nil, err
	}

	if req.PaymentMethod == models.PaymentWallet {
		if err := s.cache.DeleteOrganization(ctx, orgID); err != nil {
			s.log.Warn("organization cache invalidation failed", zap.String("organization_id", orgID.String()), zap.Error(err))
		}
	}

	s.log.Info("corporate order approved",
		zap.String("order_id", orderID.String()),
		zap.String("organization_id", orgID.String()),
		zap.String("manager_id", caller.UserID.String()),
		zap.String("payment_method", string(req.PaymentMethod)),
		zap.String("total", total.StringFixed(2)),
		zap.Int64("confirmed", confirmed))

	event := models.NewOrderEvent(models.EventCorporateOrderApproved, orgID, orderID, caller.UserID)
	event.TotalAmount = total
	publishEvent(ctx, s.publisher, s.log, event)

	outcome := &models.PaymentOutcome{
		OrderID:        orderID,
		PaymentMethod:  req.PaymentMethod,
		AmountCharged:  total,
		ApprovedBy:     caller.UserID,
		ApprovedAt:     approvedAt,
		ConfirmedCount: int(confirmed),
	}
	if req.PaymentMethod == models.PaymentStripeDirect {
		outcome.PaymentMethodID = req.PaymentMethodID
		outcome.PaymentReference = &charge.Reference
	}
	return outcome, nil
}

func (s *approvalService) refund(ctx context.Context, orderID uuid.UUID, reference string) {
	if err := s.cards.Refund(context.WithoutCancel(ctx), reference); err != nil {
		s.log.Error("refund after failed approval did not go through",
			zap.String("order_id", orderID.String()),
			zap.String("payment_reference", reference),
			zap.Error(err))
		return
	}
	s.log.Info("card payment refunded after failed approval",
		zap.String("order_id", orderID.String()),
		zap.String("payment_reference", reference))
}

func (s *approvalService) Reject(ctx context.Context, caller common.Identity, orderID uuid.UUID, req *models.RejectOrderRequest) (*models.RejectOrderResult, error) {
	if req == nil {
		return nil, apperrors.Validation("body", "rejection request is required")
	}
	if err := requireManager(caller, req.ManagerID); err != nil {
		return nil, err
	}
	if err := ordering.ValidateRejection(req.ManagerID, req.Reason); err != nil {
		return nil, err
	}

	rej := repositories.Rejection{
		ManagerID:  caller.UserID,
		Reason:     req.Reason,
		Notes:      req.Notes,
		RejectedAt: s.now().UTC(),
	}
	var rejected []uuid.UUID
	err := s.store.InTx(ctx, func(tx repositories.Store) error {
		order, err := tx.CorporateOrders().GetForUpdate(ctx, caller.OrganizationID, orderID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return apperrors.NotFound("corporate order")
			}
			return apperrors.Internal("load corporate order", err)
		}
		if !ordering.CanTransitionOrder(order.Status, models.OrderRejected) {
			return apperrors.Conflict(fmt.Sprintf("Order is %s and can no longer be rejected", order.Status))
		}
		moved, err := tx.CorporateOrders().MarkRejected(ctx, orderID, rej)
		if err != nil {
			return apperrors.Internal("reject order", err)
		}
		if !moved {
			return apperrors.Conflict("Order is no longer pending approval")
		}
		rejected, err = tx.SubOrders().RejectPending(ctx, orderID, rej)
		if err != nil {
			return apperrors.Internal("reject sub-orders", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("corporate order rejected",
		zap.String("order_id", orderID.String()),
		zap.String("manager_id", caller.UserID.String()),
		zap.Int("sub_orders", len(rejected)))

	event := models.NewOrderEvent(models.EventCorporateOrderRejected, caller.OrganizationID, orderID, caller.UserID)
	event.SubOrderIDs = rejected
	event.Reason = req.Reason
	publishEvent(ctx, s.publisher, s.log, event)

	return &models.RejectOrderResult{
		OrderID:           orderID,
		Status:            models.OrderRejected,
		RejectedSubOrders: rejected,
		RejectedBy:        caller.UserID,
		RejectedAt:        rej.RejectedAt,
	}, nil
}

// RejectSubOrder rejects one employee's order and leaves the rest of the
// day's order untouched.
func (s *approvalService) RejectSubOrder(ctx context.Context, caller common.Identity, subOrderID uuid.UUID, req *models.RejectOrderRequest) (*models.SubOrder, error) {
	if req == nil {
		return nil, apperrors.Validation("body", "rejection request is required")
	}
	if err := requireManager(caller, req.ManagerID); err != nil {
		return nil, err
	}
	if err := ordering.ValidateRejection(req.ManagerID, req.Reason); err != nil {
		return nil, err
	}

	so, err := s.store.SubOrders().GetByID(ctx, caller.OrganizationID, subOrderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.NotFound("sub-order")
		}
		return nil, apperrors.Internal("load sub-order", err)
	}
	if !ordering.CanTransitionSubOrder(so.Status, models.SubOrderRejected) {
		return nil, apperrors.Conflict(fmt.Sprintf("Sub-order is %s and cannot be rejected", so.Status))
	}

	rej := repositories.Rejection{
		ManagerID:  caller.UserID,
		Reason:     req.Reason,
		Notes:      req.Notes,
		RejectedAt: s.now().UTC(),
	}
	err = s.store.InTx(ctx, func(tx repositories.Store) error {
		moved, err := tx.SubOrders().Reject(ctx, caller.OrganizationID, []uuid.UUID{subOrderID}, rej)
		if err != nil {
			return apperrors.Internal("reject sub-order", err)
		}
		if len(moved) == 0 {
			return apperrors.Conflict("Sub-order is no longer pending")
		}
		_, err = refreshOrderTotal(ctx, tx, so.CorporateOrderID, s.pricing)
		return err
	})
	if err != nil {
		return nil, err
	}

	so.Status = models.SubOrderRejected
	so.RejectedBy = &rej.ManagerID
	so.RejectionReason = &rej.Reason

	event := models.NewOrderEvent(models.EventSubOrderRejected, caller.OrganizationID, so.CorporateOrderID, caller.UserID)
	event.SubOrderIDs = []uuid.UUID{so.ID}
	event.Reason = req.Reason
	event.TotalAmount = so.TotalAmount
	publishEvent(ctx, s.publisher, s.log, event)

	return so, nil
}

// BulkReject rejects the pending sub-orders among req.SubOrderIDs with one
// shared reason. Ids that are not pending are reported as skipped; ids from
// another organization fail the whole request.
func (s *approvalService) BulkReject(ctx context.Context, caller common.Identity, req *models.BulkRejectRequest) (*models.BulkRejectResult, error) {
	if req == nil {
		return nil, apperrors.Validation("body", "rejection request is required")
	}
	if err := requireManager(caller, req.ManagerID); err != nil {
		return nil, err
	}
	if err := ordering.ValidateRejection(req.ManagerID, req.Reason); err != nil {
		return nil, err
	}
	if len(req.SubOrderIDs) == 0 {
		return nil, apperrors.Validation("sub_order_ids", "select at least one sub-order")
	}

	subOrders, err := s.store.SubOrders().ListByIDs(ctx, caller.OrganizationID, req.SubOrderIDs)
	if err != nil {
		return nil, apperrors.Internal("load sub-orders", err)
	}
	known := make(map[uuid.UUID]models.SubOrder, len(subOrders))
	for _, so := range subOrders {
		known[so.ID] = so
	}
	for _, id := range req.SubOrderIDs {
		if _, ok := known[id]; !ok {
			return nil, &apperrors.AppError{
				Code:    apperrors.CodeForbidden,
				Message: "One or more sub-orders do not belong to your organization",
				Details: map[string]string{"sub_order_id": id.String()},
			}
		}
	}

	rejectable, skipped := ordering.PartitionRejectable(req.SubOrderIDs, subOrders)
	result := &models.BulkRejectResult{Rejected: []uuid.UUID{}, Skipped: skipped}
	if result.Skipped == nil {
		result.Skipped = []uuid.UUID{}
	}
	if len(rejectable) == 0 {
		return result, nil
	}

	rej := repositories.Rejection{
		ManagerID:  caller.UserID,
		Reason:     req.Reason,
		Notes:      req.Notes,
		RejectedAt: s.now().UTC(),
	}
	refreshed := map[uuid.UUID]struct{}{}
	err = s.store.InTx(ctx, func(tx repositories.Store) error {
		moved, err := tx.SubOrders().Reject(ctx, caller.OrganizationID, rejectable, rej)
		if err != nil {
			return apperrors.Internal("reject sub-orders", err)
		}
		if moved != nil {
			result.Rejected = moved
		}

		for _, id := range moved {
			orderID := known[id].CorporateOrderID
			if _, done := refreshed[orderID]; done {
				continue
			}
			if _, err := refreshOrderTotal(ctx, tx, orderID, s.pricing); err != nil {
				return err
			}
			refreshed[orderID] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	movedSet := make(map[uuid.UUID]struct{}, len(result.Rejected))
	for _, id := range result.Rejected {
		movedSet[id] = struct{}{}
	}
	for _, id := range rejectable {
		if _, ok := movedSet[id]; !ok {
			result.Skipped = append(result.Skipped, id)
		}
	}

	byOrder := map[uuid.UUID][]uuid.UUID{}
	for _, id := range result.Rejected {
		orderID := known[id].CorporateOrderID
		byOrder[orderID] = append(byOrder[orderID], id)
	}
	for orderID, ids := range byOrder {
		event := models.NewOrderEvent(models.EventSubOrderRejected, caller.OrganizationID, orderID, caller.UserID)
		event.SubOrderIDs = ids
		event.Reason = req.Reason
		publishEvent(ctx, s.publisher, s.log, event)
	}

	s.log.Info("sub-orders rejected in bulk",
		zap.String("manager_id", caller.UserID.String()),
		zap.Int("rejected", len(result.Rejected)),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}
