package client

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lunchdesk/internal/apperrors"
	"lunchdesk/internal/common"
	"lunchdesk/internal/models"
	"lunchdesk/internal/ordering"
)

// ApprovalAPI is the part of the API the manager's approval view uses.
type ApprovalAPI interface {
	GetPendingOrder(ctx context.Context, managerID uuid.UUID) (*models.AggregatedOrder, error)
	ValidateApproval(ctx context.Context, orderID uuid.UUID) (*models.ApprovalValidation, error)
	PaymentStatus(ctx context.Context, orderID, managerID uuid.UUID) (*models.PaymentStatus, error)
	ListAddresses(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationAddress, error)
	Approve(ctx context.Context, orderID uuid.UUID, req *models.ApproveOrderRequest) (*models.PaymentOutcome, error)
	Reject(ctx context.Context, orderID uuid.UUID, req *models.RejectOrderRequest) (*models.RejectOrderResult, error)
	RejectSubOrder(ctx context.Context, subOrderID uuid.UUID, req *models.RejectOrderRequest) (*models.SubOrder, error)
	BulkReject(ctx context.Context, req *models.BulkRejectRequest) (*models.BulkRejectResult, error)
}

// PaymentChoice is the payment step offered once an order has passed
// validation.
type PaymentChoice struct {
	OrderID       uuid.UUID
	TotalAmount   decimal.Decimal
	WalletBalance decimal.Decimal
	HasStoredCard bool
	Selection     models.PaymentSelection
	Addresses     []models.OrganizationAddress
	// AddressID is the preselected delivery address, or uuid.Nil when the
	// manager has to pick one.
	AddressID uuid.UUID
}

// ApprovalInput is what the manager picked on the payment step.
type ApprovalInput struct {
	Method               models.PaymentMethod
	PaymentMethodID      *string
	DeliveryAddressID    uuid.UUID
	DeliveryInstructions *string
	Notes                *string
}

// ApprovalFlow drives the manager's review of the organization's pending
// order. State changes are only ever taken from a reload after a mutation.
type ApprovalFlow struct {
	api     ApprovalAPI
	session *Session
	log     *zap.Logger

	mu       sync.Mutex
	state    ViewState
	err      error
	order    *models.AggregatedOrder
	selected map[uuid.UUID]struct{}
	inFlight map[uuid.UUID]struct{}
}

func NewApprovalFlow(api ApprovalAPI, session *Session, log *zap.Logger) *ApprovalFlow {
	return &ApprovalFlow{
		api:      api,
		session:  session,
		log:      log.Named("approval"),
		state:    StateIdle,
		selected: make(map[uuid.UUID]struct{}),
		inFlight: make(map[uuid.UUID]struct{}),
	}
}

// Load fetches the pending order and clears the selection.
func (f *ApprovalFlow) Load(ctx context.Context) error {
	identity, err := f.manager()
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.state = StateLoading
	f.err = nil
	f.mu.Unlock()

	order, err := f.api.GetPendingOrder(ctx, identity.UserID)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = make(map[uuid.UUID]struct{})
	if err != nil {
		f.state = StateError
		f.err = err
		return err
	}
	f.order = order
	f.state = StateLoaded
	return nil
}

func (f *ApprovalFlow) State() ViewState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *ApprovalFlow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Order is the pending order as of the last load, or nil when there is none.
func (f *ApprovalFlow) Order() *models.AggregatedOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.order
}

// Toggle flips the selection of a sub-order and reports whether it is now
// selected. REJECTED sub-orders cannot be selected.
func (f *ApprovalFlow) Toggle(subOrderID uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.selected[subOrderID]; ok {
		delete(f.selected, subOrderID)
		return false
	}
	if !f.selectable(subOrderID) {
		return false
	}
	f.selected[subOrderID] = struct{}{}
	return true
}

// SelectAll selects every sub-order that is not already REJECTED.
func (f *ApprovalFlow) SelectAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = make(map[uuid.UUID]struct{})
	if f.order == nil {
		return
	}
	for _, id := range ordering.SelectableForBulk(f.order.SubOrders) {
		f.selected[id] = struct{}{}
	}
}

func (f *ApprovalFlow) ClearSelection() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = make(map[uuid.UUID]struct{})
}

// Selected returns the selected sub-orders in display order.
func (f *ApprovalFlow) Selected() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selectedIDs()
}

// BeginApproval validates the pending order and, only when validation
// passes, gathers what the payment step needs.
func (f *ApprovalFlow) BeginApproval(ctx context.Context) (*PaymentChoice, error) {
	identity, err := f.manager()
	if err != nil {
		return nil, err
	}
	orderID, err := f.pendingOrderID()
	if err != nil {
		return nil, err
	}
	if err := f.begin(orderID); err != nil {
		return nil, err
	}
	defer f.end(orderID)

	validation, err := f.api.ValidateApproval(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !validation.Success {
		msg := validation.Message
		if msg == "" {
			msg = "This order cannot be approved"
		}
		return nil, apperrors.ApprovalValidation(msg)
	}

	status, err := f.api.PaymentStatus(ctx, orderID, identity.UserID)
	if err != nil {
		return nil, err
	}
	addresses, err := f.api.ListAddresses(ctx, identity.OrganizationID)
	if err != nil {
		return nil, err
	}

	choice := &PaymentChoice{
		OrderID:       orderID,
		TotalAmount:   status.TotalAmount,
		WalletBalance: status.WalletBalance,
		HasStoredCard: status.HasStoredCard,
		Selection:     status.Selection,
		Addresses:     addresses,
	}
	if id, ok := ordering.DefaultAddress(addresses); ok {
		choice.AddressID = id
	}
	return choice, nil
}

// Finalize approves the order on the chosen rail and reloads. A failed
// payment leaves the order pending.
func (f *ApprovalFlow) Finalize(ctx context.Context, choice *PaymentChoice, input ApprovalInput) (*models.PaymentOutcome, error) {
	if choice == nil {
		return nil, apperrors.Validation("payment_method", "validate the order before choosing a payment method")
	}
	identity, err := f.manager()
	if err != nil {
		return nil, err
	}

	req, err := ordering.BuildApproveRequest(identity.UserID, choice.Selection, input.Method,
		input.PaymentMethodID, input.DeliveryAddressID, input.DeliveryInstructions, input.Notes)
	if err != nil {
		return nil, err
	}

	if err := f.begin(choice.OrderID); err != nil {
		return nil, err
	}
	defer f.end(choice.OrderID)

	outcome, err := f.api.Approve(ctx, choice.OrderID, req)
	if err != nil {
		return nil, err
	}
	f.reload(ctx)
	return outcome, nil
}

// Reject rejects the whole pending order.
func (f *ApprovalFlow) Reject(ctx context.Context, reason string, notes *string) (*models.RejectOrderResult, error) {
	identity, err := f.manager()
	if err != nil {
		return nil, err
	}
	if err := ordering.ValidateRejection(identity.UserID, reason); err != nil {
		return nil, err
	}
	orderID, err := f.pendingOrderID()
	if err != nil {
		return nil, err
	}
	if err := f.begin(orderID); err != nil {
		return nil, err
	}
	defer f.end(orderID)

	res, err := f.api.Reject(ctx, orderID, &models.RejectOrderRequest{
		ManagerID: identity.UserID,
		Reason:    reason,
		Notes:     notes,
	})
	if err != nil {
		return nil, err
	}
	f.reload(ctx)
	return res, nil
}

// RejectSubOrder rejects one employee's order and leaves the others alone.
func (f *ApprovalFlow) RejectSubOrder(ctx context.Context, subOrderID uuid.UUID, reason string, notes *string) (*models.SubOrder, error) {
	identity, err := f.manager()
	if err != nil {
		return nil, err
	}
	if err := ordering.ValidateRejection(identity.UserID, reason); err != nil {
		return nil, err
	}
	if err := f.begin(subOrderID); err != nil {
		return nil, err
	}
	defer f.end(subOrderID)

	res, err := f.api.RejectSubOrder(ctx, subOrderID, &models.RejectOrderRequest{
		ManagerID: identity.UserID,
		Reason:    reason,
		Notes:     notes,
	})
	if err != nil {
		return nil, err
	}
	f.reload(ctx)
	return res, nil
}

// BulkReject rejects the selected sub-orders with one shared reason.
func (f *ApprovalFlow) BulkReject(ctx context.Context, reason string, notes *string) (*models.BulkRejectResult, error) {
	identity, err := f.manager()
	if err != nil {
		return nil, err
	}
	if err := ordering.ValidateRejection(identity.UserID, reason); err != nil {
		return nil, err
	}
	orderID, err := f.pendingOrderID()
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	ids := f.selectedIDs()
	f.mu.Unlock()
	if len(ids) == 0 {
		return nil, apperrors.Validation("sub_order_ids", "select at least one order to reject")
	}

	if err := f.begin(orderID); err != nil {
		return nil, err
	}
	defer f.end(orderID)

	res, err := f.api.BulkReject(ctx, &models.BulkRejectRequest{
		SubOrderIDs: ids,
		ManagerID:   identity.UserID,
		Reason:      reason,
		Notes:       notes,
	})
	if err != nil {
		return nil, err
	}
	f.reload(ctx)
	return res, nil
}

func (f *ApprovalFlow) reload(ctx context.Context) {
	if err := f.Load(ctx); err != nil {
		f.log.Warn("reload after mutation failed", zap.Error(err))
	}
}

func (f *ApprovalFlow) manager() (common.Identity, error) {
	identity, ok := f.session.Identity()
	if !ok {
		return common.Identity{}, apperrors.Unauthenticated("Not signed in")
	}
	if !identity.IsManager() {
		return common.Identity{}, apperrors.Forbidden(accountStatusMessage)
	}
	return identity, nil
}

func (f *ApprovalFlow) pendingOrderID() (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.order == nil {
		return uuid.Nil, apperrors.NotFound("pending order")
	}
	return f.order.OrderID, nil
}

// begin marks target as having a mutation in flight.
func (f *ApprovalFlow) begin(target uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.inFlight[target]; busy {
		return apperrors.Conflict("This order is already being updated")
	}
	f.inFlight[target] = struct{}{}
	return nil
}

func (f *ApprovalFlow) end(target uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.inFlight, target)
}

// selectable must be called with f.mu held.
func (f *ApprovalFlow) selectable(subOrderID uuid.UUID) bool {
	if f.order == nil {
		return false
	}
	for _, id := range ordering.SelectableForBulk(f.order.SubOrders) {
		if id == subOrderID {
			return true
		}
	}
	return false
}

// selectedIDs must be called with f.mu held.
func (f *ApprovalFlow) selectedIDs() []uuid.UUID {
	if f.order == nil || len(f.selected) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(f.selected))
	for _, v := range f.order.SubOrders {
		if v.Status == models.SubOrderRejected {
			continue
		}
		if _, ok := f.selected[v.SubOrderID]; ok {
			ids = append(ids, v.SubOrderID)
		}
	}
	return ids
}
