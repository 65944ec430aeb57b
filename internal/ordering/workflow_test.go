package ordering

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lunchdesk/internal/apperrors"
	"lunchdesk/internal/models"
)

func TestTransitions(t *testing.T) {
	assert.True(t, CanTransitionOrder(models.OrderPendingApproval, models.OrderApproved))
	assert.True(t, CanTransitionOrder(models.OrderPendingApproval, models.OrderRejected))
	assert.False(t, CanTransitionOrder(models.OrderApproved, models.OrderRejected))
	assert.False(t, CanTransitionOrder(models.OrderRejected, models.OrderPendingApproval))

	assert.True(t, CanTransitionSubOrder(models.SubOrderPending, models.SubOrderConfirmed))
	assert.True(t, CanTransitionSubOrder(models.SubOrderRejected, models.SubOrderPending))
	assert.False(t, CanTransitionSubOrder(models.SubOrderConfirmed, models.SubOrderRejected))
	assert.False(t, CanTransitionSubOrder(models.SubOrderCancelled, models.SubOrderPending))
}

func TestValidateForApproval(t *testing.T) {
	pending := &models.CorporateOrder{Status: models.OrderPendingApproval}

	err := ValidateForApproval(pending, []models.SubOrder{
		{Status: models.SubOrderRejected},
		{Status: models.SubOrderPending},
	})
	assert.NoError(t, err)

	err = ValidateForApproval(pending, []models.SubOrder{{Status: models.SubOrderRejected}})
	assert.Equal(t, apperrors.CodeApprovalValidation, apperrors.CodeOf(err))

	err = ValidateForApproval(pending, nil)
	assert.Equal(t, apperrors.CodeApprovalValidation, apperrors.CodeOf(err))

	approved := &models.CorporateOrder{Status: models.OrderApproved}
	err = ValidateForApproval(approved, []models.SubOrder{{Status: models.SubOrderPending}})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeApprovalValidation, apperrors.CodeOf(err))
	assert.Contains(t, err.Error(), "approved")
}

func TestValidateApproveRequest(t *testing.T) {
	pm := "pm_card_visa"
	blank := "  "
	manager := uuid.New()
	address := uuid.New()

	tests := []struct {
		name  string
		req   models.ApproveOrderRequest
		field string
	}{
		{name: "wallet ok", req: models.ApproveOrderRequest{ManagerID: manager, PaymentMethod: models.PaymentWallet, DeliveryAddressID: address}},
		{name: "card ok", req: models.ApproveOrderRequest{ManagerID: manager, PaymentMethod: models.PaymentStripeDirect, PaymentMethodID: &pm, DeliveryAddressID: address}},
		{name: "missing manager", req: models.ApproveOrderRequest{PaymentMethod: models.PaymentWallet, DeliveryAddressID: address}, field: "manager_id"},
		{name: "missing method", req: models.ApproveOrderRequest{ManagerID: manager, DeliveryAddressID: address}, field: "payment_method"},
		{name: "unknown method", req: models.ApproveOrderRequest{ManagerID: manager, PaymentMethod: "invoice", DeliveryAddressID: address}, field: "payment_method"},
		{name: "card without id", req: models.ApproveOrderRequest{ManagerID: manager, PaymentMethod: models.PaymentStripeDirect, DeliveryAddressID: address}, field: "payment_method_id"},
		{name: "card with blank id", req: models.ApproveOrderRequest{ManagerID: manager, PaymentMethod: models.PaymentStripeDirect, PaymentMethodID: &blank, DeliveryAddressID: address}, field: "payment_method_id"},
		{name: "missing address", req: models.ApproveOrderRequest{ManagerID: manager, PaymentMethod: models.PaymentWallet}, field: "delivery_address_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateApproveRequest(&tt.req)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperrors.CodeValidation, appErr.Code)
			assert.Contains(t, appErr.Details, tt.field)
		})
	}
}

func TestValidateRejection(t *testing.T) {
	assert.NoError(t, ValidateRejection(uuid.New(), "over budget"))
	assert.Error(t, ValidateRejection(uuid.Nil, "over budget"))
	assert.Error(t, ValidateRejection(uuid.New(), "   "))
}

func TestPartitionRejectable(t *testing.T) {
	pending := models.SubOrder{ID: uuid.New(), Status: models.SubOrderPending}
	rejected := models.SubOrder{ID: uuid.New(), Status: models.SubOrderRejected}
	confirmed := models.SubOrder{ID: uuid.New(), Status: models.SubOrderConfirmed}
	unknown := uuid.New()

	rejectable, skipped := PartitionRejectable(
		[]uuid.UUID{pending.ID, rejected.ID, pending.ID, confirmed.ID, unknown},
		[]models.SubOrder{pending, rejected, confirmed},
	)
	assert.Equal(t, []uuid.UUID{pending.ID}, rejectable)
	assert.Equal(t, []uuid.UUID{rejected.ID, confirmed.ID, unknown}, skipped)
}

func TestSelectableForBulk_ExcludesRejected(t *testing.T) {
	views := []models.EmployeeOrderView{
		{SubOrderID: uuid.New(), Status: models.SubOrderPending},
		{SubOrderID: uuid.New(), Status: models.SubOrderRejected},
		{SubOrderID: uuid.New(), Status: models.SubOrderConfirmed},
		{SubOrderID: uuid.New(), Status: models.SubOrderPending},
	}
	ids := SelectableForBulk(views)
	assert.Equal(t, []uuid.UUID{views[0].SubOrderID, views[2].SubOrderID, views[3].SubOrderID}, ids)
	assert.NotContains(t, ids, views[1].SubOrderID)
}
