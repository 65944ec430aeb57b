package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lunchdesk/internal/apperrors"
	"lunchdesk/internal/models"
	"lunchdesk/internal/ordering"
)

// ViewState is the lifecycle of a view's data.
type ViewState string

const (
	StateIdle    ViewState = "idle"
	StateLoading ViewState = "loading"
	StateLoaded  ViewState = "loaded"
	StateError   ViewState = "error"
)

// CheckoutAPI is the part of the API the employee checkout uses.
type CheckoutAPI interface {
	GetOrganization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)
	GetMyOrder(ctx context.Context, employeeID uuid.UUID) (*models.MyOrder, error)
	SubmitMyOrder(ctx context.Context, employeeID uuid.UUID, req *models.SubmitOrderRequest) (*models.SubmitOrderResult, error)
}

// CheckoutFlow drives an employee's cart submission for the day.
type CheckoutFlow struct {
	api      CheckoutAPI
	session  *Session
	location *time.Location
	now      func() time.Time
	log      *zap.Logger

	mu         sync.Mutex
	state      ViewState
	err        error
	org        *models.Organization
	myOrder    *models.MyOrder
	scheduler  *ordering.Scheduler
	submitting bool
}

// NewCheckoutFlow creates a checkout flow. location is used when the
// organization has no timezone of its own.
func NewCheckoutFlow(api CheckoutAPI, session *Session, location *time.Location, log *zap.Logger) *CheckoutFlow {
	return &CheckoutFlow{
		api:      api,
		session:  session,
		location: location,
		now:      time.Now,
		log:      log.Named("checkout"),
		state:    StateIdle,
	}
}

// Load fetches the organization's ordering settings and the caller's active
// order.
func (f *CheckoutFlow) Load(ctx context.Context) error {
	identity, ok := f.session.Identity()
	if !ok {
		return apperrors.Unauthenticated("Not signed in")
	}

	f.mu.Lock()
	f.state = StateLoading
	f.err = nil
	f.mu.Unlock()

	org, err := f.api.GetOrganization(ctx, identity.OrganizationID)
	if err != nil {
		return f.fail(err)
	}
	myOrder, err := f.api.GetMyOrder(ctx, identity.UserID)
	if err != nil {
		return f.fail(err)
	}

	scheduler, err := ordering.SchedulerFor(org)
	if err != nil {
		f.log.Warn("invalid cutoff in organization settings, using default",
			zap.String("organization_id", org.ID.String()),
			zap.String("cutoff", org.OrderCutoffTime),
			zap.Error(err))
		scheduler = ordering.DefaultScheduler()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.org = org
	f.myOrder = myOrder
	f.scheduler = scheduler
	f.state = StateLoaded
	return nil
}

func (f *CheckoutFlow) fail(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = StateError
	f.err = err
	return err
}

func (f *CheckoutFlow) State() ViewState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Err is the error of the last failed load.
func (f *CheckoutFlow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// MyOrder is the caller's active order as of the last load. Its SubOrder is
// nil when there is none.
func (f *CheckoutFlow) MyOrder() *models.MyOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.myOrder
}

// DeliveryInfo evaluates the cutoff schedule against the current time.
func (f *CheckoutFlow) DeliveryInfo() (models.DeliveryInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scheduler == nil {
		return models.DeliveryInfo{}, false
	}
	return f.scheduler.DeliveryInfo(f.localNow()), true
}

// Options reports the default action for cart and whether "add" may be
// offered.
func (f *CheckoutFlow) Options(cart []models.CartItem) (models.OrderAction, bool) {
	f.mu.Lock()
	existing, remaining := f.existing()
	f.mu.Unlock()
	return ordering.Options(ordering.CartTotal(cart), existing, remaining)
}

// Submit sends the cart with the chosen action, or the default one when
// action is empty, and reloads. Nothing is sent when ordering is closed, the
// cart is empty or the action does not fit the budget.
func (f *CheckoutFlow) Submit(ctx context.Context, cart []models.CartItem, action models.OrderAction) (*models.SubmitOrderResult, error) {
	identity, ok := f.session.Identity()
	if !ok || identity.UserID == uuid.Nil {
		return nil, apperrors.Unauthenticated("Sign in to place an order")
	}
	if f.State() != StateLoaded {
		if err := f.Load(ctx); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return nil, apperrors.Conflict("An order submission is already in progress")
	}
	if _, err := f.scheduler.RequireOpen(f.localNow()); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	if len(cart) == 0 {
		f.mu.Unlock()
		return nil, apperrors.Validation("items", "Your cart is empty")
	}
	existing, remaining := f.existing()
	resolution, err := ordering.ResolveOrderAction(cart, existing, remaining, action)
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.submitting = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.submitting = false
		f.mu.Unlock()
	}()

	res, err := f.api.SubmitMyOrder(ctx, identity.UserID, &models.SubmitOrderRequest{
		Items:  cart,
		Action: resolution.Action,
	})
	if err != nil {
		return nil, err
	}

	if err := f.Load(ctx); err != nil {
		f.log.Warn("reload after submit failed", zap.Error(err))
	}
	return res, nil
}

// existing must be called with f.mu held.
func (f *CheckoutFlow) existing() (*models.SubOrder, decimal.Decimal) {
	if f.myOrder == nil {
		return nil, decimal.Zero
	}
	return f.myOrder.SubOrder, f.myOrder.BudgetRemaining
}

// localNow must be called with f.mu held.
func (f *CheckoutFlow) localNow() time.Time {
	return f.now().In(ordering.Location(f.org, f.location))
}
