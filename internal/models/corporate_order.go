package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubOrderStatus is the lifecycle state of one employee's order for a day.
type SubOrderStatus string

const (
	SubOrderPending   SubOrderStatus = "PENDING"
	SubOrderConfirmed SubOrderStatus = "CONFIRMED"
	SubOrderRejected  SubOrderStatus = "REJECTED"
	SubOrderCancelled SubOrderStatus = "CANCELLED"
)

func ParseSubOrderStatus(s string) (SubOrderStatus, error) {
	switch st := SubOrderStatus(s); st {
	case SubOrderPending, SubOrderConfirmed, SubOrderRejected, SubOrderCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown sub-order status %q", s)
}

func (s *SubOrderStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseSubOrderStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// IsActive reports whether the sub-order counts towards the
// one-order-per-employee-per-day rule.
func (s SubOrderStatus) IsActive() bool {
	return s != SubOrderCancelled
}

// IsBillable reports whether the sub-order contributes to the amount the
// organization pays.
func (s SubOrderStatus) IsBillable() bool {
	return s == SubOrderPending || s == SubOrderConfirmed
}

// AggregatedOrderStatus is the lifecycle state of an organization's daily order.
type AggregatedOrderStatus string

const (
	OrderPendingApproval AggregatedOrderStatus = "PENDING_APPROVAL"
	OrderApproved        AggregatedOrderStatus = "APPROVED"
	OrderRejected        AggregatedOrderStatus = "REJECTED"
	OrderCancelled       AggregatedOrderStatus = "CANCELLED"
)

func ParseAggregatedOrderStatus(s string) (AggregatedOrderStatus, error) {
	switch st := AggregatedOrderStatus(s); st {
	case OrderPendingApproval, OrderApproved, OrderRejected, OrderCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

func (s *AggregatedOrderStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseAggregatedOrderStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// CorporateOrder is the persisted organization-level order for one delivery
// date. Its line items live in the sub-orders that reference it.
type CorporateOrder struct {
	ID                   uuid.UUID             `json:"id" db:"id"`
	OrganizationID       uuid.UUID             `json:"organization_id" db:"organization_id"`
	DeliveryDate         time.Time             `json:"delivery_date" db:"delivery_date"`
	Status               AggregatedOrderStatus `json:"status" db:"status"`
	TotalAmount          decimal.Decimal       `json:"total_amount" db:"total_amount"`
	ApprovedBy           *uuid.UUID            `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt           *time.Time            `json:"approved_at,omitempty" db:"approved_at"`
	RejectedBy           *uuid.UUID            `json:"rejected_by,omitempty" db:"rejected_by"`
	RejectedAt           *time.Time            `json:"rejected_at,omitempty" db:"rejected_at"`
	RejectionReason      *string               `json:"rejection_reason,omitempty" db:"rejection_reason"`
	Notes                *string               `json:"notes,omitempty" db:"notes"`
	PaymentMethod        *PaymentMethod        `json:"payment_method,omitempty" db:"payment_method"`
	PaymentReference     *string               `json:"payment_reference,omitempty" db:"payment_reference"`
	DeliveryAddressID    *uuid.UUID            `json:"delivery_address_id,omitempty" db:"delivery_address_id"`
	DeliveryInstructions *string               `json:"delivery_instructions,omitempty" db:"delivery_instructions"`
	CreatedAt            time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at" db:"updated_at"`
}

// SubOrder is one employee's order for one delivery date.
type SubOrder struct {
	ID               uuid.UUID         `json:"id" db:"id"`
	CorporateOrderID uuid.UUID         `json:"corporate_order_id" db:"corporate_order_id"`
	EmployeeID       uuid.UUID         `json:"employee_id" db:"employee_id"`
	OrganizationID   uuid.UUID         `json:"organization_id" db:"organization_id"`
	DeliveryDate     time.Time         `json:"delivery_date" db:"delivery_date"`
	Status           SubOrderStatus    `json:"status" db:"status"`
	RestaurantOrders []RestaurantOrder `json:"restaurant_orders" db:"restaurant_orders"`
	TotalAmount      decimal.Decimal   `json:"total_amount" db:"total_amount"`
	RejectedBy       *uuid.UUID        `json:"rejected_by,omitempty" db:"rejected_by"`
	RejectionReason  *string           `json:"rejection_reason,omitempty" db:"rejection_reason"`
	Notes            *string           `json:"notes,omitempty" db:"notes"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" db:"updated_at"`

	// Populated by joins for the manager view.
	EmployeeName string `json:"employee_name,omitempty" db:"-"`
	JobTitle     string `json:"job_title,omitempty" db:"-"`
}

// ItemCount is the number of units across all restaurants.
func (s *SubOrder) ItemCount() int {
	count := 0
	for _, ro := range s.RestaurantOrders {
		count += ro.ItemCount()
	}
	return count
}

type RestaurantOrder struct {
	RestaurantID        uuid.UUID  `json:"restaurant_id"`
	RestaurantName      string     `json:"restaurant_name"`
	MenuItems           []MenuItem `json:"menu_items"`
	SpecialInstructions string     `json:"special_instructions,omitempty"`
}

func (r *RestaurantOrder) ItemCount() int {
	count := 0
	for _, item := range r.MenuItems {
		count += item.Quantity
	}
	return count
}

func (r *RestaurantOrder) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.MenuItems {
		total = total.Add(item.TotalPrice)
	}
	return total
}

type MenuItem struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Quantity       int             `json:"quantity"`
	SelectedAddons []Addon         `json:"selected_addons,omitempty"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	TotalPrice     decimal.Decimal `json:"total_price"`
}

type Addon struct {
	ID    uuid.UUID       `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}
