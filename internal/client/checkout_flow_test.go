package client

import (
	"context"
	"net/http"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lunchdesk/internal/apperrors"
	"lunchdesk/internal/models"
)

var london, _ = time.LoadLocation("Europe/London")

type checkoutFixture struct {
	fs       *fakeServer
	flow     *CheckoutFlow
	session  *Session
	myOrder  string
	existing *models.SubOrder
}

// newCheckoutFixture serves an organization with an 11:00 cutoff and the
// given existing order, with the clock at now.
func newCheckoutFixture(t *testing.T, existing *models.SubOrder, remaining string, now time.Time) *checkoutFixture {
	t.Helper()
	fs, api, session := newFakeServer(t)
	session.SignIn("token", employee())

	fs.on(http.MethodGet, "/organizations/"+orgID.String(), http.StatusOK, models.Organization{
		ID:                    orgID,
		Name:                  "Acme",
		OrderCutoffTime:       "11:00:00",
		DeliveryWindowMinutes: 60,
		Timezone:              "Europe/London",
	})
	myOrder := "/corporate-orders/my-order/" + employeeID.String()
	fs.on(http.MethodGet, myOrder, http.StatusOK, models.MyOrder{
		SubOrder:        existing,
		BudgetRemaining: dec(remaining),
	})

	flow := NewCheckoutFlow(api, session, time.UTC, zap.NewNop())
	flow.now = func() time.Time { return now }
	return &checkoutFixture{fs: fs, flow: flow, session: session, myOrder: myOrder, existing: existing}
}

func pendingOrder(total string) *models.SubOrder {
	return &models.SubOrder{
		ID:          uuid.New(),
		EmployeeID:  employeeID,
		Status:      models.SubOrderPending,
		TotalAmount: dec(total),
	}
}

func cartOf(price string) []models.CartItem {
	return []models.CartItem{{
		MenuItemID:     uuid.New(),
		RestaurantID:   uuid.New(),
		RestaurantName: "Pho Corner",
		Name:           "Pho Bo",
		Quantity:       1,
		Price:          dec(price),
	}}
}

// Wednesday morning, before the cutoff.
var beforeCutoff = time.Date(2026, 10, 14, 10, 59, 59, 0, london)

func TestCheckoutFlow_LoadAndOptions(t *testing.T) {
	tests := []struct {
		name          string
		existing      *models.SubOrder
		cart          string
		wantAction    models.OrderAction
		wantAddOption bool
	}{
		{"no existing order", nil, "15", models.ActionReplace, false},
		{"combined over budget", pendingOrder("20"), "15", models.ActionReplace, false},
		{"combined within budget", pendingOrder("10"), "15", models.ActionAdd, true},
		{"combined exactly budget", pendingOrder("15"), "15", models.ActionAdd, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newCheckoutFixture(t, tt.existing, "30", beforeCutoff)
			require.NoError(t, fx.flow.Load(context.Background()))
			assert.Equal(t, StateLoaded, fx.flow.State())

			action, add := fx.flow.Options(cartOf(tt.cart))
			assert.Equal(t, tt.wantAction, action)
			assert.Equal(t, tt.wantAddOption, add)
		})
	}
}

func TestCheckoutFlow_DeliveryInfo(t *testing.T) {
	fx := newCheckoutFixture(t, nil, "30", beforeCutoff)
	_, ok := fx.flow.DeliveryInfo()
	assert.False(t, ok)

	require.NoError(t, fx.flow.Load(context.Background()))
	info, ok := fx.flow.DeliveryInfo()
	require.True(t, ok)
	assert.True(t, info.CanOrder)
	assert.Equal(t, "11:00 AM", info.FormattedCutoffTime)
	assert.Equal(t, 14, info.DeliveryDate.Day())
}

func TestCheckoutFlow_SubmitDefaultsToAddAndReloads(t *testing.T) {
	fx := newCheckoutFixture(t, pendingOrder("10"), "30", beforeCutoff)
	fx.fs.on(http.MethodPost, fx.myOrder, http.StatusOK, models.SubmitOrderResult{Action: models.ActionAdd})

	res, err := fx.flow.Submit(context.Background(), cartOf("15"), "")
	require.NoError(t, err)
	assert.Equal(t, models.ActionAdd, res.Action)

	var sent models.SubmitOrderRequest
	fx.fs.lastBody(http.MethodPost, fx.myOrder, &sent)
	assert.Equal(t, models.ActionAdd, sent.Action)
	require.Len(t, sent.Items, 1)
	assert.Equal(t, "Pho Bo", sent.Items[0].Name)

	// Loaded on demand before submitting, then reloaded afterwards.
	assert.Equal(t, 2, fx.fs.count(http.MethodGet, fx.myOrder))
	assert.Equal(t, StateLoaded, fx.flow.State())
}

func TestCheckoutFlow_SubmitBlockedAfterCutoff(t *testing.T) {
	friday := time.Date(2026, 10, 16, 11, 0, 1, 0, london)
	fx := newCheckoutFixture(t, nil, "30", friday)
	require.NoError(t, fx.flow.Load(context.Background()))

	info, _ := fx.flow.DeliveryInfo()
	assert.False(t, info.CanOrder)
	assert.Equal(t, time.Monday, info.DeliveryDate.Weekday())

	_, err := fx.flow.Submit(context.Background(), cartOf("15"), "")
	assert.True(t, apperrors.Is(err, apperrors.CodeCutoffClosed))
	assert.Equal(t, 0, fx.fs.count(http.MethodPost, fx.myOrder))
}

func TestCheckoutFlow_SubmitRejectedLocally(t *testing.T) {
	tests := []struct {
		name     string
		existing *models.SubOrder
		cart     []models.CartItem
		action   models.OrderAction
		wantCode apperrors.Code
	}{
		{"empty cart", nil, nil, "", apperrors.CodeValidation},
		{"add over budget", pendingOrder("20"), cartOf("15"), models.ActionAdd, apperrors.CodeBudgetExceeded},
		{"replace over budget", nil, cartOf("45"), models.ActionReplace, apperrors.CodeBudgetExceeded},
		{"already approved", &models.SubOrder{ID: uuid.New(), Status: models.SubOrderConfirmed, TotalAmount: dec("10")}, cartOf("5"), "", apperrors.CodeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newCheckoutFixture(t, tt.existing, "30", beforeCutoff)
			require.NoError(t, fx.flow.Load(context.Background()))

			_, err := fx.flow.Submit(context.Background(), tt.cart, tt.action)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
			assert.Equal(t, 0, fx.fs.count(http.MethodPost, fx.myOrder))
		})
	}
}

func TestCheckoutFlow_SubmitRequiresIdentity(t *testing.T) {
	fx := newCheckoutFixture(t, nil, "30", beforeCutoff)
	fx.session.SignOut()

	_, err := fx.flow.Submit(context.Background(), cartOf("15"), "")
	assert.True(t, apperrors.Is(err, apperrors.CodeUnauthenticated))
	assert.Equal(t, 0, fx.fs.count(http.MethodPost, fx.myOrder))
}

func TestCheckoutFlow_LoadError(t *testing.T) {
	fx := newCheckoutFixture(t, nil, "30", beforeCutoff)
	fx.fs.onError(http.MethodGet, fx.myOrder, http.StatusInternalServerError, "INTERNAL", "An unexpected error occurred", nil)

	err := fx.flow.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateError, fx.flow.State())
	assert.Equal(t, err, fx.flow.Err())
}

func TestCheckoutFlow_ServerRefusalSurfaces(t *testing.T) {
	fx := newCheckoutFixture(t, nil, "30", beforeCutoff)
	fx.fs.onError(http.MethodPost, fx.myOrder, http.StatusUnprocessableEntity, "CUTOFF_CLOSED",
		"Ordering for today closed at 11:00 AM", map[string]string{"cutoff_time": "11:00 AM"})

	_, err := fx.flow.Submit(context.Background(), cartOf("15"), "")
	assert.True(t, apperrors.Is(err, apperrors.CodeCutoffClosed))
	// No reload after a refused submission.
	assert.Equal(t, 1, fx.fs.count(http.MethodGet, fx.myOrder))
}
