package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"lunchdesk/internal/common"
	"lunchdesk/internal/models"
	"lunchdesk/internal/repositories"
)

type MockOrganizationRepository struct {
	mock.Mock
}

func (m *MockOrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

func (m *MockOrganizationRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

func (m *MockOrganizationRepository) UpdateSettings(ctx context.Context, org *models.Organization) error {
	args := m.Called(ctx, org)
	return args.Error(0)
}

func (m *MockOrganizationRepository) DebitWallet(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}

type MockEmployeeRepository struct {
	mock.Mock
}

func (m *MockEmployeeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Employee), args.Error(1)
}

func (m *MockEmployeeRepository) GetJobTitle(ctx context.Context, id uuid.UUID) (*models.JobTitle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JobTitle), args.Error(1)
}

func (m *MockEmployeeRepository) DebitBudget(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}

func (m *MockEmployeeRepository) ResetDailyBudgets(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockCorporateOrderRepository struct {
	mock.Mock
}

func (m *MockCorporateOrderRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.CorporateOrder, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CorporateOrder), args.Error(1)
}

func (m *MockCorporateOrderRepository) GetForUpdate(ctx context.Context, orgID, id uuid.UUID) (*models.CorporateOrder, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CorporateOrder), args.Error(1)
}

func (m *MockCorporateOrderRepository) EnsurePending(ctx context.Context, orgID uuid.UUID, deliveryDate time.Time) (*models.CorporateOrder, error) {
	args := m.Called(ctx, orgID, deliveryDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CorporateOrder), args.Error(1)
}

func (m *MockCorporateOrderRepository) NextPending(ctx context.Context, orgID uuid.UUID, from time.Time) (*models.CorporateOrder, error) {
	args := m.Called(ctx, orgID, from)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CorporateOrder), args.Error(1)
}

func (m *MockCorporateOrderRepository) UpdateTotal(ctx context.Context, id uuid.UUID, total decimal.Decimal) error {
	args := m.Called(ctx, id, total)
	return args.Error(0)
}

func (m *MockCorporateOrderRepository) MarkApproved(ctx context.Context, id uuid.UUID, a repositories.Approval) (bool, error) {
	args := m.Called(ctx, id, a)
	return args.Bool(0), args.Error(1)
}

func (m *MockCorporateOrderRepository) MarkRejected(ctx context.Context, id uuid.UUID, r repositories.Rejection) (bool, error) {
	args := m.Called(ctx, id, r)
	return args.Bool(0), args.Error(1)
}

func (m *MockCorporateOrderRepository) ExpireStale(ctx context.Context, before time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type MockSubOrderRepository struct {
	mock.Mock
}

func (m *MockSubOrderRepository) FindActive(ctx context.Context, employeeID uuid.UUID, deliveryDate time.Time, forUpdate bool) (*models.SubOrder, error) {
	args := m.Called(ctx, employeeID, deliveryDate, forUpdate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubOrder), args.Error(1)
}

func (m *MockSubOrderRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.SubOrder, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubOrder), args.Error(1)
}

func (m *MockSubOrderRepository) Create(ctx context.Context, so *models.SubOrder) error {
	args := m.Called(ctx, so)
	return args.Error(0)
}

func (m *MockSubOrderRepository) Replace(ctx context.Context, so *models.SubOrder) error {
	args := m.Called(ctx, so)
	return args.Error(0)
}

func (m *MockSubOrderRepository) ListByCorporateOrder(ctx context.Context, corporateOrderID uuid.UUID) ([]models.SubOrder, error) {
	args := m.Called(ctx, corporateOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SubOrder), args.Error(1)
}

func (m *MockSubOrderRepository) ListByIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) ([]models.SubOrder, error) {
	args := m.Called(ctx, orgID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SubOrder), args.Error(1)
}

func (m *MockSubOrderRepository) ConfirmPending(ctx context.Context, corporateOrderID uuid.UUID) (int64, error) {
	args := m.Called(ctx, corporateOrderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSubOrderRepository) RejectPending(ctx context.Context, corporateOrderID uuid.UUID, rej repositories.Rejection) ([]uuid.UUID, error) {
	args := m.Called(ctx, corporateOrderID, rej)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockSubOrderRepository) Reject(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID, rej repositories.Rejection) ([]uuid.UUID, error) {
	args := m.Called(ctx, orgID, ids, rej)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockSubOrderRepository) CancelPendingByOrders(ctx context.Context, corporateOrderIDs []uuid.UUID) (int64, error) {
	args := m.Called(ctx, corporateOrderIDs)
	return args.Get(0).(int64), args.Error(1)
}

type MockAddressRepository struct {
	mock.Mock
}

func (m *MockAddressRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationAddress, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OrganizationAddress), args.Error(1)
}

func (m *MockAddressRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.OrganizationAddress, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrganizationAddress), args.Error(1)
}

// MockStore hands out the same repository mocks inside and outside a
// transaction. Transactions counts InTx calls and RolledBack those whose fn
// failed.
type MockStore struct {
	Orgs      *MockOrganizationRepository
	Emps      *MockEmployeeRepository
	Corporate *MockCorporateOrderRepository
	Subs      *MockSubOrderRepository
	Addrs     *MockAddressRepository

	Transactions int
	RolledBack   int
	PingErr      error
}

func NewMockStore() *MockStore {
	return &MockStore{
		Orgs:      new(MockOrganizationRepository),
		Emps:      new(MockEmployeeRepository),
		Corporate: new(MockCorporateOrderRepository),
		Subs:      new(MockSubOrderRepository),
		Addrs:     new(MockAddressRepository),
	}
}

func (m *MockStore) Organizations() repositories.OrganizationRepository     { return m.Orgs }
func (m *MockStore) Employees() repositories.EmployeeRepository             { return m.Emps }
func (m *MockStore) CorporateOrders() repositories.CorporateOrderRepository { return m.Corporate }
func (m *MockStore) SubOrders() repositories.SubOrderRepository             { return m.Subs }
func (m *MockStore) Addresses() repositories.AddressRepository              { return m.Addrs }

func (m *MockStore) InTx(ctx context.Context, fn func(repositories.Store) error) error {
	m.Transactions++
	if err := fn(m); err != nil {
		m.RolledBack++
		return err
	}
	return nil
}

func (m *MockStore) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MockStore) mocks() []*mock.Mock {
	return []*mock.Mock{&m.Orgs.Mock, &m.Emps.Mock, &m.Corporate.Mock, &m.Subs.Mock, &m.Addrs.Mock}
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetOrganization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

func (m *MockCacheService) SetOrganization(ctx context.Context, org *models.Organization, ttl time.Duration) error {
	args := m.Called(ctx, org, ttl)
	return args.Error(0)
}

func (m *MockCacheService) DeleteOrganization(ctx context.Context, orgID uuid.UUID) error {
	args := m.Called(ctx, orgID)
	return args.Error(0)
}

func (m *MockCacheService) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockCacheService) ReleaseLock(ctx context.Context, key, token string) error {
	args := m.Called(ctx, key, token)
	return args.Error(0)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event models.OrderEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockCardPaymentService struct {
	mock.Mock
}

func (m *MockCardPaymentService) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ChargeResult), args.Error(1)
}

func (m *MockCardPaymentService) Refund(ctx context.Context, reference string) error {
	args := m.Called(ctx, reference)
	return args.Error(0)
}

type MockOrganizationService struct {
	mock.Mock
}

func (m *MockOrganizationService) Settings(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

func (m *MockOrganizationService) GetSettings(ctx context.Context, caller common.Identity, orgID uuid.UUID) (*models.Organization, error) {
	args := m.Called(ctx, caller, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

func (m *MockOrganizationService) UpdateSettings(ctx context.Context, caller common.Identity, orgID uuid.UUID, update *models.OrganizationSettingsUpdate) (*models.Organization, error) {
	args := m.Called(ctx, caller, orgID, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

func (m *MockOrganizationService) ListAddresses(ctx context.Context, caller common.Identity, orgID uuid.UUID) ([]models.OrganizationAddress, error) {
	args := m.Called(ctx, caller, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OrganizationAddress), args.Error(1)
}
