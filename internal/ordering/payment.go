package ordering

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lunchdesk/internal/apperrors"
	"lunchdesk/internal/models"
)

const (
	noticeInsufficientBalance = "Insufficient wallet balance"
	noticeStoredCard          = "Charge the saved card"
	noticeNewCard             = "Enter card details"
)

// SelectPayment lists the payment rails for an approval of total. The wallet
// is enabled and pre-selected only when it covers the whole total; otherwise
// the card is pre-selected and the wallet is shown disabled.
func SelectPayment(total, walletBalance decimal.Decimal, hasStoredCard bool) models.PaymentSelection {
	walletOK := walletBalance.GreaterThanOrEqual(total)

	wallet := models.PaymentOption{Method: models.PaymentWallet, Enabled: walletOK}
	if !walletOK {
		wallet.Notice = noticeInsufficientBalance
	}
	card := models.PaymentOption{Method: models.PaymentStripeDirect, Enabled: true, Notice: noticeNewCard}
	if hasStoredCard {
		card.Notice = noticeStoredCard
	}

	sel := models.PaymentSelection{Options: []models.PaymentOption{wallet, card}}
	if walletOK {
		sel.DefaultMethod = models.PaymentWallet
	} else {
		sel.DefaultMethod = models.PaymentStripeDirect
	}
	return sel
}

// DefaultAddress auto-selects a delivery address when exactly one of the
// organization's addresses is marked default.
func DefaultAddress(addresses []models.OrganizationAddress) (uuid.UUID, bool) {
	var found uuid.UUID
	count := 0
	for _, a := range addresses {
		if a.IsDefault {
			found = a.ID
			count++
		}
	}
	if count == 1 {
		return found, true
	}
	return uuid.Nil, false
}

// BuildApproveRequest assembles the single approve payload both rails
// converge on and validates it. The wallet rail never carries a payment
// method id.
func BuildApproveRequest(managerID uuid.UUID, sel models.PaymentSelection, method models.PaymentMethod, paymentMethodID *string, addressID uuid.UUID, instructions, notes *string) (*models.ApproveOrderRequest, error) {
	req := &models.ApproveOrderRequest{
		ManagerID:            managerID,
		PaymentMethod:        method,
		DeliveryAddressID:    addressID,
		DeliveryInstructions: instructions,
		Notes:                notes,
	}
	if method == models.PaymentStripeDirect {
		req.PaymentMethodID = paymentMethodID
	}
	if err := ValidateApproveRequest(req); err != nil {
		return nil, err
	}
	if opt, ok := sel.Option(method); ok && !opt.Enabled {
		return nil, insufficientWallet()
	}
	return req, nil
}

func insufficientWallet() error {
	return apperrors.Validation("payment_method", noticeInsufficientBalance)
}
