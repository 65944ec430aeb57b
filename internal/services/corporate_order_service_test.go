package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"lunchdesk/internal/apperrors"
	"lunchdesk/internal/common"
	"lunchdesk/internal/models"
	"lunchdesk/internal/ordering"
	"lunchdesk/internal/repositories"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decEq(s string) interface{} {
	want := dec(s)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(want) })
}

func sameInstant(want time.Time) interface{} {
	return mock.MatchedBy(func(t time.Time) bool { return t.Equal(want) })
}

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("load %s: %v", name, err))
	}
	return loc
}

var london = mustLoad("Europe/London")

type CorporateOrderServiceTestSuite struct {
	suite.Suite
	store     *MockStore
	orgs      *MockOrganizationService
	publisher *MockPublisher
	service   *corporateOrderService
	ctx       context.Context

	org      *models.Organization
	employee *models.Employee
	caller   common.Identity
	corp     *models.CorporateOrder
	today    time.Time
}

func (suite *CorporateOrderServiceTestSuite) SetupTest() {
	suite.store = NewMockStore()
	for _, m := range suite.store.mocks() {
		m.Test(suite.T())
	}
	suite.orgs = new(MockOrganizationService)
	suite.orgs.Test(suite.T())
	suite.publisher = new(MockPublisher)
	suite.publisher.Test(suite.T())

	pricing := ordering.Pricing{TaxRate: dec("0.20"), DeliveryFeePerRestaurant: dec("2.50")}
	suite.service = NewCorporateOrderService(suite.store, suite.orgs, suite.publisher, pricing, london, zap.NewNop()).(*corporateOrderService)
	suite.setNow(time.Date(2026, 10, 14, 10, 30, 0, 0, london))
	suite.ctx = context.Background()

	suite.org = &models.Organization{
		ID:                    uuid.New(),
		OrderCutoffTime:       "11:00:00",
		DeliveryWindowMinutes: 60,
		Timezone:              "Europe/London",
	}
	suite.employee = &models.Employee{
		ID:                   uuid.New(),
		OrganizationID:       suite.org.ID,
		FirstName:            "Ada",
		LastName:             "Lovelace",
		Role:                 models.RoleEmployee,
		DailyBudgetLimit:     dec("30"),
		DailyBudgetRemaining: dec("30"),
		Status:               models.EmployeeStatusActive,
	}
	suite.caller = common.Identity{UserID: suite.employee.ID, OrganizationID: suite.org.ID, Role: models.RoleEmployee}
	suite.today = time.Date(2026, 10, 14, 0, 0, 0, 0, london)
	suite.corp = &models.CorporateOrder{
		ID:             uuid.New(),
		OrganizationID: suite.org.ID,
		DeliveryDate:   suite.today,
		Status:         models.OrderPendingApproval,
	}
}

func (suite *CorporateOrderServiceTestSuite) TearDownTest() {
	for _, m := range suite.store.mocks() {
		m.AssertExpectations(suite.T())
	}
	suite.orgs.AssertExpectations(suite.T())
	suite.publisher.AssertExpectations(suite.T())
}

func TestCorporateOrderServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CorporateOrderServiceTestSuite))
}

func (suite *CorporateOrderServiceTestSuite) setNow(now time.Time) {
	suite.service.now = func() time.Time { return now }
}

func (suite *CorporateOrderServiceTestSuite) expectLoad() {
	suite.store.Emps.On("GetByID", mock.Anything, suite.employee.ID).Return(suite.employee, nil).Once()
	suite.orgs.On("Settings", mock.Anything, suite.org.ID).Return(suite.org, nil).Once()
}

func cart(price string, qty int) []models.CartItem {
	return []models.CartItem{{
		MenuItemID:     uuid.New(),
		RestaurantID:   uuid.New(),
		RestaurantName: "Pizza Place",
		Name:           "Margherita",
		Quantity:       qty,
		Price:          dec(price),
	}}
}

func (suite *CorporateOrderServiceTestSuite) existing(total string) *models.SubOrder {
	return &models.SubOrder{
		ID:               uuid.New(),
		CorporateOrderID: suite.corp.ID,
		EmployeeID:       suite.employee.ID,
		OrganizationID:   suite.org.ID,
		DeliveryDate:     suite.today,
		Status:           models.SubOrderPending,
		TotalAmount:      dec(total),
		RestaurantOrders: []models.RestaurantOrder{{
			RestaurantID:   uuid.New(),
			RestaurantName: "Sushi Bar",
			MenuItems:      []models.MenuItem{{ID: uuid.New(), Name: "Roll", Quantity: 1, UnitPrice: dec(total), TotalPrice: dec(total)}},
		}},
	}
}

func (suite *CorporateOrderServiceTestSuite) TestSubmitOrder_CreatesFirstOrderOfTheDay() {
	suite.expectLoad()
	suite.store.Corporate.On("EnsurePending", mock.Anything, suite.org.ID, sameInstant(suite.today)).Return(suite.corp, nil).Once()
	suite.store.Subs.On("FindActive", mock.Anything, suite.employee.ID, sameInstant(suite.today), true).Return(nil, repositories.ErrNotFound).Once()
	suite.store.Subs.On("Create", mock.Anything, mock.MatchedBy(func(so *models.SubOrder) bool {
		return so.CorporateOrderID == suite.corp.ID && so.Status == models.SubOrderPending && so.TotalAmount.Equal(dec("18"))
	})).Return(nil).Once()
	suite.store.Subs.On("ListByCorporateOrder", mock.Anything, suite.corp.ID).Return([]models.SubOrder{*suite.existing("18")}, nil).Once()
	// 18 + 20% tax + one restaurant delivery fee.
	suite.store.Corporate.On("UpdateTotal", mock.Anything, suite.corp.ID, decEq("24.10")).Return(nil).Once()
	suite.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e models.OrderEvent) bool {
		return e.Type == models.EventSubOrderSubmitted && e.OrderID == suite.corp.ID
	})).Return(nil).Once()

	res, err := suite.service.SubmitOrder(suite.ctx, suite.caller, suite.employee.ID, &models.SubmitOrderRequest{Items: cart("9.00", 2)})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ActionReplace, res.Action)
	assert.True(suite.T(), res.DeliveryInfo.CanOrder)
	assert.True(suite.T(), res.SubOrder.TotalAmount.Equal(dec("18")))
	assert.Equal(suite.T(), 1, suite.store.Transactions)
}

func (suite *CorporateOrderServiceTestSuite) TestSubmitOrder_AddsToExistingWithinBudget() {
	existing := suite.existing("10.00")
	suite.expectLoad()
	suite.store.Corporate.On("EnsurePending", mock.Anything, suite.org.ID, mock.Anything).Return(suite.corp, nil).Once()
	suite.store.Subs.On("FindActive", mock.Anything, suite.employee.ID, mock.Anything, true).Return(existing, nil).Once()
	suite.store.Subs.On("Replace", mock.Anything, mock.MatchedBy(func(so *models.SubOrder) bool {
		return so.ID == existing.ID && so.TotalAmount.Equal(dec("25")) && len(so.RestaurantOrders) == 2
	})).Return(nil).Once()
	suite.store.Subs.On("ListByCorporateOrder", mock.Anything, suite.corp.ID).Return([]models.SubOrder{}, nil).Once()
	suite.store.Corporate.On("UpdateTotal", mock.Anything, suite.corp.ID, mock.Anything).Return(nil).Once()
	suite.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

	res, err := suite.service.SubmitOrder(suite.ctx, suite.caller, suite.employee.ID, &models.SubmitOrderRequest{Items: cart("15.00", 1)})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ActionAdd, res.Action)
	assert.Equal(suite.T(), existing.ID, res.SubOrder.ID)
}

func (suite *CorporateOrderServiceTestSuite) TestSubmitOrder_AddOverBudgetRollsBack() {
	suite.expectLoad()
	suite.store.Corporate.On("EnsurePending", mock.Anything, suite.org.ID, mock.Anything).Return(suite.corp, nil).Once()
	suite.store.Subs.On("FindActive", mock.Anything, suite.employee.ID, mock.Anything, true).Return(suite.existing("20.00"), nil).Once()

	_, err := suite.service.SubmitOrder(suite.ctx, suite.caller, suite.employee.ID,
		&models.SubmitOrderRequest{Items: cart("15.00", 1), Action: models.ActionAdd})
	assert.Equal(suite.T(), apperrors.CodeBudgetExceeded, apperrors.CodeOf(err))
	assert.Equal(suite.T(), 1, suite.store.RolledBack)
	suite.publisher.AssertNotCalled(suite.T(), "Publish", mock.Anything, mock.Anything)
}

func (suite *CorporateOrderServiceTestSuite) TestSubmitOrder_JobTitleCapsBudget() {
	titleID := uuid.New()
	suite.employee.JobTitleID = &titleID
	suite.expectLoad()
	suite.store.Emps.On("GetJobTitle", mock.Anything, titleID).Return(&models.JobTitle{ID: titleID, DailyBudgetLimit: dec("15")}, nil).Once()
	suite.store.Corporate.On("EnsurePending", mock.Anything, suite.org.ID, mock.Anything).Return(suite.corp, nil).Once()
	suite.store.Subs.On("FindActive", mock.Anything, suite.employee.ID, mock.Anything, true).Return(nil, repositories.ErrNotFound).Once()

	_, err := suite.service.SubmitOrder(suite.ctx, suite.caller, suite.employee.ID, &models.SubmitOrderRequest{Items: cart("20.00", 1)})
	assert.Equal(suite.T(), apperrors.CodeBudgetExceeded, apperrors.CodeOf(err))
}

func (suite *CorporateOrderServiceTestSuite) TestSubmitOrder_AfterCutoffIsClosed() {
	suite.setNow(time.Date(2026, 10, 16, 11, 0, 1, 0, london))
	suite.expectLoad()

	_, err := suite.service.SubmitOrder(suite.ctx, suite.caller, suite.employee.ID, &models.SubmitOrderRequest{Items: cart("9.00", 1)})
	require.Error(suite.T(), err)
	assert.Equal(suite.T(), apperrors.CodeCutoffClosed, apperrors.CodeOf(err))
	assert.Contains(suite.T(), err.Error(), "11:00 AM")
	assert.Zero(suite.T(), suite.store.Transactions)
}

func (suite *CorporateOrderServiceTestSuite) TestGetMyOrder_CutoffUsesOrganizationTimezone() {
	// 15:30 in London is 10:30 in New York, still before the 11:00 cutoff there.
	suite.org.Timezone = "America/New_York"
	suite.setNow(time.Date(2026, 10, 14, 15, 30, 0, 0, london))
	suite.expectLoad()
	suite.store.Subs.On("FindActive", mock.Anything, suite.employee.ID, mock.Anything, false).Return(nil, repositories.ErrNotFound).Once()

	out, err := suite.service.GetMyOrder(suite.ctx, suite.caller, suite.employee.ID)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), out.DeliveryInfo.CanOrder)
	assert.Equal(suite.T(), "America/New_York", out.DeliveryInfo.DeliveryDate.Location().String())
}

func (suite *CorporateOrderServiceTestSuite) TestSubmitOrder_EmptyCart() {
	suite.expectLoad()

	_, err := suite.service.SubmitOrder(suite.ctx, suite.caller, suite.employee.ID, &models.SubmitOrderRequest{})
	assert.Equal(suite.T(), apperrors.CodeValidation, apperrors.CodeOf(err))
}

func (suite *CorporateOrderServiceTestSuite) TestSubmitOrder_SuspendedEmployee() {
	suite.employee.Status = models.EmployeeStatusSuspended
	suite.store.Emps.On("GetByID", mock.Anything, suite.employee.ID).Return(suite.employee, nil).Once()

	_, err := suite.service.SubmitOrder(suite.ctx, suite.caller, suite.employee.ID, &models.SubmitOrderRequest{Items: cart("9.00", 1)})
	require.Error(suite.T(), err)
	assert.Equal(suite.T(), apperrors.CodeForbidden, apperrors.CodeOf(err))
	assert.Contains(suite.T(), err.Error(), "suspended")
}

func (suite *CorporateOrderServiceTestSuite) TestSubmitOrder_CannotActForColleague() {
	colleague := common.Identity{UserID: uuid.New(), OrganizationID: suite.org.ID, Role: models.RoleEmployee}
	suite.store.Emps.On("GetByID", mock.Anything, suite.employee.ID).Return(suite.employee, nil).Once()

	_, err := suite.service.SubmitOrder(suite.ctx, colleague, suite.employee.ID, &models.SubmitOrderRequest{Items: cart("9.00", 1)})
	assert.Equal(suite.T(), apperrors.CodeForbidden, apperrors.CodeOf(err))
}

func (suite *CorporateOrderServiceTestSuite) TestSubmitOrder_MissingEmployeeIdentity() {
	_, err := suite.service.SubmitOrder(suite.ctx, suite.caller, uuid.Nil, &models.SubmitOrderRequest{Items: cart("9.00", 1)})
	assert.Equal(suite.T(), apperrors.CodeValidation, apperrors.CodeOf(err))
}

func (suite *CorporateOrderServiceTestSuite) TestSubmitOrder_ConcurrentInsertIsConflict() {
	suite.expectLoad()
	suite.store.Corporate.On("EnsurePending", mock.Anything, suite.org.ID, mock.Anything).Return(suite.corp, nil).Once()
	suite.store.Subs.On("FindActive", mock.Anything, suite.employee.ID, mock.Anything, true).Return(nil, repositories.ErrNotFound).Once()
	suite.store.Subs.On("Create", mock.Anything, mock.Anything).Return(repositories.ErrDuplicate).Once()

	_, err := suite.service.SubmitOrder(suite.ctx, suite.caller, suite.employee.ID, &models.SubmitOrderRequest{Items: cart("9.00", 1)})
	assert.Equal(suite.T(), apperrors.CodeConflict, apperrors.CodeOf(err))
	assert.Equal(suite.T(), 1, suite.store.RolledBack)
}

func (suite *CorporateOrderServiceTestSuite) TestSubmitOrder_ConfirmedOrderIsConflict() {
	confirmed := suite.existing("10.00")
	confirmed.Status = models.SubOrderConfirmed
	suite.expectLoad()
	suite.store.Corporate.On("EnsurePending", mock.Anything, suite.org.ID, mock.Anything).Return(suite.corp, nil).Once()
	suite.store.Subs.On("FindActive", mock.Anything, suite.employee.ID, mock.Anything, true).Return(confirmed, nil).Once()

	_, err := suite.service.SubmitOrder(suite.ctx, suite.caller, suite.employee.ID, &models.SubmitOrderRequest{Items: cart("5.00", 1)})
	assert.Equal(suite.T(), apperrors.CodeConflict, apperrors.CodeOf(err))
}

func (suite *CorporateOrderServiceTestSuite) TestSubmitOrder_PublishFailureDoesNotFailSubmission() {
	suite.expectLoad()
	suite.store.Corporate.On("EnsurePending", mock.Anything, suite.org.ID, mock.Anything).Return(suite.corp, nil).Once()
	suite.store.Subs.On("FindActive", mock.Anything, suite.employee.ID, mock.Anything, true).Return(nil, repositories.ErrNotFound).Once()
	suite.store.Subs.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	suite.store.Subs.On("ListByCorporateOrder", mock.Anything, suite.corp.ID).Return([]models.SubOrder{}, nil).Once()
	suite.store.Corporate.On("UpdateTotal", mock.Anything, suite.corp.ID, mock.Anything).Return(nil).Once()
	suite.publisher.On("Publish", mock.Anything, mock.Anything).Return(fmt.Errorf("broker unavailable")).Once()

	res, err := suite.service.SubmitOrder(suite.ctx, suite.caller, suite.employee.ID, &models.SubmitOrderRequest{Items: cart("9.00", 1)})
	require.NoError(suite.T(), err)
	assert.NotNil(suite.T(), res.SubOrder)
}

func (suite *CorporateOrderServiceTestSuite) TestGetMyOrder_NoOrderYet() {
	suite.expectLoad()
	suite.store.Subs.On("FindActive", mock.Anything, suite.employee.ID, sameInstant(suite.today), false).Return(nil, repositories.ErrNotFound).Once()

	out, err := suite.service.GetMyOrder(suite.ctx, suite.caller, suite.employee.ID)
	require.NoError(suite.T(), err)
	assert.Nil(suite.T(), out.SubOrder)
	assert.True(suite.T(), out.BudgetRemaining.Equal(dec("30")))
	assert.True(suite.T(), out.DeliveryInfo.CanOrder)
}

func (suite *CorporateOrderServiceTestSuite) TestGetMyOrder_AfterCutoffShowsTodaysOrder() {
	suite.setNow(time.Date(2026, 10, 14, 14, 0, 0, 0, london))
	existing := suite.existing("12.00")
	suite.expectLoad()
	suite.store.Subs.On("FindActive", mock.Anything, suite.employee.ID, sameInstant(suite.today), false).Return(existing, nil).Once()

	out, err := suite.service.GetMyOrder(suite.ctx, suite.caller, suite.employee.ID)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), out.DeliveryInfo.CanOrder)
	require.NotNil(suite.T(), out.SubOrder)
	assert.Equal(suite.T(), existing.ID, out.SubOrder.ID)
}

func (suite *CorporateOrderServiceTestSuite) TestGetMyOrder_AfterCutoffWithoutTodaysOrder() {
	suite.setNow(time.Date(2026, 10, 14, 14, 0, 0, 0, london))
	tomorrow := time.Date(2026, 10, 15, 0, 0, 0, 0, london)
	suite.expectLoad()
	suite.store.Subs.On("FindActive", mock.Anything, suite.employee.ID, sameInstant(suite.today), false).Return(nil, repositories.ErrNotFound).Once()
	suite.store.Subs.On("FindActive", mock.Anything, suite.employee.ID, sameInstant(tomorrow), false).Return(nil, repositories.ErrNotFound).Once()

	out, err := suite.service.GetMyOrder(suite.ctx, suite.caller, suite.employee.ID)
	require.NoError(suite.T(), err)
	assert.Nil(suite.T(), out.SubOrder)
	assert.True(suite.T(), tomorrow.Equal(out.DeliveryInfo.DeliveryDate))
}

func (suite *CorporateOrderServiceTestSuite) TestGetMyOrder_ManagerMayViewEmployee() {
	manager := common.Identity{UserID: uuid.New(), OrganizationID: suite.org.ID, Role: models.RoleManager}
	existing := suite.existing("12.00")
	suite.expectLoad()
	suite.store.Subs.On("FindActive", mock.Anything, suite.employee.ID, mock.Anything, false).Return(existing, nil).Once()

	out, err := suite.service.GetMyOrder(suite.ctx, manager, suite.employee.ID)
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), out.SubOrder)
	assert.Equal(suite.T(), existing.ID, out.SubOrder.ID)
}
