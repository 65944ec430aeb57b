package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultOrderCutoffTime       = "11:00:00"
	DefaultDeliveryWindowMinutes = 60
)

type Organization struct {
	ID                     uuid.UUID       `json:"id" db:"id"`
	Name                   string          `json:"name" db:"name"`
	WalletBalance          decimal.Decimal `json:"wallet_balance" db:"wallet_balance"`
	OrderCutoffTime        string          `json:"order_cutoff_time" db:"order_cutoff_time"`
	DeliveryWindowMinutes  int             `json:"default_delivery_time_window_minutes" db:"default_delivery_time_window"`
	AutoApproveEmployees   bool            `json:"auto_approve_employees" db:"auto_approve_employees"`
	Timezone               string          `json:"timezone" db:"timezone"`
	StripeCustomerID       *string         `json:"stripe_customer_id,omitempty" db:"stripe_customer_id"`
	DefaultPaymentMethodID *string         `json:"default_payment_method_id,omitempty" db:"default_payment_method_id"`
	CreatedAt              time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at" db:"updated_at"`
}

// DeliveryWindow is the length of the delivery slot that follows the cutoff.
func (o *Organization) DeliveryWindow() time.Duration {
	if o.DeliveryWindowMinutes <= 0 {
		return DefaultDeliveryWindowMinutes * time.Minute
	}
	return time.Duration(o.DeliveryWindowMinutes) * time.Minute
}

func (o *Organization) HasStoredCard() bool {
	return o.DefaultPaymentMethodID != nil && *o.DefaultPaymentMethodID != ""
}

// OrganizationSettingsUpdate is the body of PUT /organizations/{orgId}.
// Nil fields are left unchanged.
type OrganizationSettingsUpdate struct {
	OrderCutoffTime       *string `json:"order_cutoff_time,omitempty"`
	DeliveryWindowMinutes *int    `json:"default_delivery_time_window_minutes,omitempty" validate:"omitempty,min=1,max=720"`
	AutoApproveEmployees  *bool   `json:"auto_approve_employees,omitempty"`
	Timezone              *string `json:"timezone,omitempty"`
}

type OrganizationAddress struct {
	ID             uuid.UUID `json:"id" db:"id"`
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`
	Label          string    `json:"label" db:"label"`
	Line1          string    `json:"line1" db:"line1"`
	Line2          *string   `json:"line2,omitempty" db:"line2"`
	City           string    `json:"city" db:"city"`
	Postcode       string    `json:"postcode" db:"postcode"`
	IsDefault      bool      `json:"is_default" db:"is_default"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
