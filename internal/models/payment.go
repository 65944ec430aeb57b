package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentWallet       PaymentMethod = "wallet"
	PaymentStripeDirect PaymentMethod = "stripe_direct"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case PaymentWallet, PaymentStripeDirect:
		return m, nil
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

func (m *PaymentMethod) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*m = ""
		return nil
	}
	parsed, err := ParsePaymentMethod(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ApproveOrderRequest is the body of POST /corporate-orders/{orderId}/approve.
type ApproveOrderRequest struct {
	ManagerID            uuid.UUID     `json:"manager_id"`
	PaymentMethod        PaymentMethod `json:"payment_method"`
	PaymentMethodID      *string       `json:"payment_method_id,omitempty"`
	DeliveryAddressID    uuid.UUID     `json:"delivery_address_id"`
	DeliveryInstructions *string       `json:"delivery_instructions,omitempty" validate:"omitempty,max=500"`
	Notes                *string       `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// RejectOrderRequest is shared by whole-order and single sub-order rejection.
type RejectOrderRequest struct {
	ManagerID uuid.UUID `json:"manager_id"`
	Reason    string    `json:"reason" validate:"max=500"`
	Notes     *string   `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type BulkRejectRequest struct {
	SubOrderIDs []uuid.UUID `json:"sub_order_ids"`
	ManagerID   uuid.UUID   `json:"manager_id"`
	Reason      string      `json:"reason" validate:"max=500"`
	Notes       *string     `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// RejectOrderResult reports a whole-order rejection.
type RejectOrderResult struct {
	OrderID           uuid.UUID             `json:"order_id"`
	Status            AggregatedOrderStatus `json:"status"`
	RejectedSubOrders []uuid.UUID           `json:"rejected_sub_orders"`
	RejectedBy        uuid.UUID             `json:"rejected_by"`
	RejectedAt        time.Time             `json:"rejected_at"`
}

type BulkRejectResult struct {
	Rejected []uuid.UUID `json:"rejected"`
	Skipped  []uuid.UUID `json:"skipped"`
}

// ApprovalValidation is the outcome of the pre-approval dry run.
type ApprovalValidation struct {
	Success          bool            `json:"success"`
	Message          string          `json:"message,omitempty"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	WalletBalance    decimal.Decimal `json:"wallet_balance"`
	CanPayWithWallet bool            `json:"can_pay_with_wallet"`
}

type PaymentOption struct {
	Method  PaymentMethod `json:"method"`
	Enabled bool          `json:"enabled"`
	Notice  string        `json:"notice,omitempty"`
}

// PaymentSelection lists the payment rails for an approval and the one
// selected by default.
type PaymentSelection struct {
	Options       []PaymentOption `json:"options"`
	DefaultMethod PaymentMethod   `json:"default_method"`
}

// Option returns the option for method, if offered.
func (p PaymentSelection) Option(method PaymentMethod) (PaymentOption, bool) {
	for _, opt := range p.Options {
		if opt.Method == method {
			return opt, true
		}
	}
	return PaymentOption{}, false
}

type PaymentStatus struct {
	OrderID          uuid.UUID        `json:"order_id"`
	TotalAmount      decimal.Decimal  `json:"total_amount"`
	WalletBalance    decimal.Decimal  `json:"wallet_balance"`
	CanPayWithWallet bool             `json:"can_pay_with_wallet"`
	HasStoredCard    bool             `json:"has_stored_card"`
	Selection        PaymentSelection `json:"selection"`
}

// PaymentOutcome is returned by a successful approval.
type PaymentOutcome struct {
	OrderID          uuid.UUID       `json:"order_id"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	PaymentMethodID  *string         `json:"payment_method_id,omitempty"`
	PaymentReference *string         `json:"payment_reference,omitempty"`
	AmountCharged    decimal.Decimal `json:"amount_charged"`
	ApprovedBy       uuid.UUID       `json:"approved_by"`
	ApprovedAt       time.Time       `json:"approved_at"`
	ConfirmedCount   int             `json:"confirmed_count"`
}
