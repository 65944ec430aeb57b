package ordering

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lunchdesk/internal/apperrors"
	"lunchdesk/internal/models"
)

func TestSelectPayment_ScenarioE_InsufficientWallet(t *testing.T) {
	sel := SelectPayment(dec("120.00"), dec("100.00"), true)

	assert.Equal(t, models.PaymentStripeDirect, sel.DefaultMethod)
	wallet, ok := sel.Option(models.PaymentWallet)
	require.True(t, ok)
	assert.False(t, wallet.Enabled)
	assert.Equal(t, "Insufficient wallet balance", wallet.Notice)

	card, ok := sel.Option(models.PaymentStripeDirect)
	require.True(t, ok)
	assert.True(t, card.Enabled)
}

func TestSelectPayment_WalletCoversTotal(t *testing.T) {
	sel := SelectPayment(dec("80.00"), dec("80.00"), false)
	assert.Equal(t, models.PaymentWallet, sel.DefaultMethod)

	wallet, _ := sel.Option(models.PaymentWallet)
	assert.True(t, wallet.Enabled)
	assert.Empty(t, wallet.Notice)
	card, _ := sel.Option(models.PaymentStripeDirect)
	assert.True(t, card.Enabled)
	assert.Equal(t, noticeNewCard, card.Notice)
}

func TestDefaultAddress(t *testing.T) {
	a := models.OrganizationAddress{ID: uuid.New(), IsDefault: true}
	b := models.OrganizationAddress{ID: uuid.New()}
	c := models.OrganizationAddress{ID: uuid.New(), IsDefault: true}

	id, ok := DefaultAddress([]models.OrganizationAddress{b, a})
	assert.True(t, ok)
	assert.Equal(t, a.ID, id)

	_, ok = DefaultAddress([]models.OrganizationAddress{a, c})
	assert.False(t, ok)

	_, ok = DefaultAddress(nil)
	assert.False(t, ok)
}

func TestBuildApproveRequest(t *testing.T) {
	manager := uuid.New()
	address := uuid.New()
	pm := "pm_123"
	short := SelectPayment(dec("120"), dec("100"), false)

	// Both rails produce the same payload shape.
	req, err := BuildApproveRequest(manager, short, models.PaymentStripeDirect, &pm, address, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStripeDirect, req.PaymentMethod)
	require.NotNil(t, req.PaymentMethodID)
	assert.Equal(t, pm, *req.PaymentMethodID)
	assert.Equal(t, address, req.DeliveryAddressID)

	_, err = BuildApproveRequest(manager, short, models.PaymentWallet, nil, address, nil, nil)
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))

	enough := SelectPayment(dec("120"), dec("500"), false)
	req, err = BuildApproveRequest(manager, enough, models.PaymentWallet, &pm, address, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, req.PaymentMethodID)

	_, err = BuildApproveRequest(manager, enough, models.PaymentStripeDirect, nil, address, nil, nil)
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
}
