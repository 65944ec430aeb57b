package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lunchdesk/internal/apperrors"
	"lunchdesk/internal/common"
	"lunchdesk/internal/events"
	"lunchdesk/internal/models"
	"lunchdesk/internal/ordering"
	"lunchdesk/internal/repositories"
)

// CorporateOrderService handles employee order submission for the day.
type CorporateOrderService interface {
	SubmitOrder(ctx context.Context, caller common.Identity, employeeID uuid.UUID, req *models.SubmitOrderRequest) (*models.SubmitOrderResult, error)
	GetMyOrder(ctx context.Context, caller common.Identity, employeeID uuid.UUID) (*models.MyOrder, error)
}

type corporateOrderService struct {
	store     repositories.Store
	orgs      OrganizationService
	publisher events.Publisher
	pricing   ordering.Pricing
	location  *time.Location
	now       func() time.Time
	log       *zap.Logger
}

// NewCorporateOrderService creates a new corporate order service instance
func NewCorporateOrderService(store repositories.Store, orgs OrganizationService, publisher events.Publisher, pricing ordering.Pricing, location *time.Location, log *zap.Logger) CorporateOrderService {
	return &corporateOrderService{
		store:     store,
		orgs:      orgs,
		publisher: publisher,
		pricing:   pricing,
		location:  location,
		now:       time.Now,
		log:       log,
	}
}

// orderingContext is what every employee-facing call needs before touching
// the order itself.
type orderingContext struct {
	employee  *models.Employee
	title     *models.JobTitle
	org       *models.Organization
	scheduler *ordering.Scheduler
	now       time.Time
}

func (s *corporateOrderService) load(ctx context.Context, caller common.Identity, employeeID uuid.UUID) (*orderingContext, error) {
	if employeeID == uuid.Nil {
		return nil, apperrors.Validation("employee_id", "employee identity is required")
	}

	employee, err := s.store.Employees().GetByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.NotFound("employee")
		}
		return nil, apperrors.Internal("load employee", err)
	}
	if !caller.CanActFor(employee.ID, employee.OrganizationID) {
		return nil, apperrors.Forbidden("You cannot act on behalf of this employee")
	}
	if !employee.IsActive() {
		return nil, apperrors.Forbidden(fmt.Sprintf("Your account is %s. Contact your manager to order.", employee.Status))
	}

	var title *models.JobTitle
	if employee.JobTitleID != nil {
		title, err = s.store.Employees().GetJobTitle(ctx, *employee.JobTitleID)
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.Internal("load job title", err)
		}
	}

	org, err := s.orgs.Settings(ctx, employee.OrganizationID)
	if err != nil {
		return nil, err
	}

	scheduler, err := ordering.SchedulerFor(org)
	if err != nil {
		s.log.Warn("organization cutoff is malformed, using default",
			zap.String("organization_id", org.ID.String()),
			zap.String("order_cutoff_time", org.OrderCutoffTime))
		scheduler = ordering.DefaultScheduler()
	}

	return &orderingContext{
		employee:  employee,
		title:     title,
		org:       org,
		scheduler: scheduler,
		now:       s.now().In(ordering.Location(org, s.location)),
	}, nil
}

// SubmitOrder places or updates the employee's order for the current delivery
// date. The existing order is locked for the duration of the transaction so
// that concurrent submissions serialize.
func (s *corporateOrderService) SubmitOrder(ctx context.Context, caller common.Identity, employeeID uuid.UUID, req *models.SubmitOrderRequest) (*models.SubmitOrderResult, error) {
	oc, err := s.load(ctx, caller, employeeID)
	if err != nil {
		return nil, err
	}

	info, err := oc.scheduler.RequireOpen(oc.now)
	if err != nil {
		return nil, err
	}
	if req == nil || len(req.Items) == 0 {
		return nil, apperrors.Validation("items", "cart is empty")
	}

	budget := ordering.EffectiveBudget(oc.employee, oc.title)
	var (
		result  *models.SubOrder
		action  models.OrderAction
		orderID uuid.UUID
	)
	err = s.store.InTx(ctx, func(tx repositories.Store) error {
		corp, err := tx.CorporateOrders().EnsurePending(ctx, oc.org.ID, info.DeliveryDate)
		if err != nil {
			return apperrors.Internal("open daily order", err)
		}
		orderID = corp.ID

		existing, err := tx.SubOrders().FindActive(ctx, oc.employee.ID, info.DeliveryDate, true)
		if err != nil {
			if !errors.Is(err, repositories.ErrNotFound) {
				return apperrors.Internal("load existing order", err)
			}
			existing = nil
		}

		res, err := ordering.ResolveOrderAction(req.Items, existing, budget, req.Action)
		if err != nil {
			return err
		}
		action = res.Action

		if existing != nil {
			existing.CorporateOrderID = corp.ID
			existing.RestaurantOrders = res.RestaurantOrders
			existing.TotalAmount = res.Total
			if err := tx.SubOrders().Replace(ctx, existing); err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return apperrors.Conflict("today's order can no longer be changed")
				}
				return apperrors.Internal("update order", err)
			}
			result = existing
		} else {
			so := &models.SubOrder{
				ID:               uuid.New(),
				CorporateOrderID: corp.ID,
				EmployeeID:       oc.employee.ID,
				OrganizationID:   oc.org.ID,
				DeliveryDate:     info.DeliveryDate,
				Status:           models.SubOrderPending,
				RestaurantOrders: res.RestaurantOrders,
				TotalAmount:      res.Total,
			}
			if err := tx.SubOrders().Create(ctx, so); err != nil {
				if errors.Is(err, repositories.ErrDuplicate) {
					return apperrors.Conflict("an order for this day was submitted at the same time, reload and try again")
				}
				return apperrors.Internal("create order", err)
			}
			result = so
		}

		_, err = refreshOrderTotal(ctx, tx, corp.ID, s.pricing)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("employee order submitted",
		zap.String("employee_id", oc.employee.ID.String()),
		zap.String("organization_id", oc.org.ID.String()),
		zap.String("order_id", orderID.String()),
		zap.String("action", string(action)),
		zap.String("total", result.TotalAmount.StringFixed(2)))

	event := models.NewOrderEvent(models.EventSubOrderSubmitted, oc.org.ID, orderID, caller.UserID)
	event.SubOrderIDs = []uuid.UUID{result.ID}
	event.TotalAmount = result.TotalAmount
	publishEvent(ctx, s.publisher, s.log, event)

	return &models.SubmitOrderResult{
		SubOrder:     result,
		Action:       action,
		DeliveryInfo: info,
	}, nil
}

// GetMyOrder returns the employee's active order for the current delivery
// date, or for today while today's order awaits approval after the cutoff.
// SubOrder is nil when there is none.
func (s *corporateOrderService) GetMyOrder(ctx context.Context, caller common.Identity, employeeID uuid.UUID) (*models.MyOrder, error) {
	oc, err := s.load(ctx, caller, employeeID)
	if err != nil {
		return nil, err
	}

	info := oc.scheduler.DeliveryInfo(oc.now)
	out := &models.MyOrder{
		DeliveryInfo:    info,
		BudgetRemaining: ordering.EffectiveBudget(oc.employee, oc.title),
	}

	for _, day := range oc.scheduler.OrderDates(oc.now) {
		so, err := s.store.SubOrders().FindActive(ctx, oc.employee.ID, day, false)
		switch {
		case err == nil:
			out.SubOrder = so
			return out, nil
		case errors.Is(err, repositories.ErrNotFound):
		default:
			return nil, apperrors.Internal("load order", err)
		}
	}
	return out, nil
}
