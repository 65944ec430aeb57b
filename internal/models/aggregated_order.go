package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregatedOrder is the manager's view of an organization's daily order. It
// is rebuilt from live sub-orders on every read.
type AggregatedOrder struct {
	OrderID        uuid.UUID             `json:"order_id"`
	OrganizationID uuid.UUID             `json:"organization_id"`
	Date           time.Time             `json:"date"`
	Status         AggregatedOrderStatus `json:"status"`
	SubOrders      []EmployeeOrderView   `json:"sub_orders"`
	Restaurants    []RestaurantRollup    `json:"restaurants"`
	Subtotal       decimal.Decimal       `json:"subtotal"`
	Tax            decimal.Decimal       `json:"tax"`
	DeliveryFee    decimal.Decimal       `json:"delivery_fee"`
	TotalAmount    decimal.Decimal       `json:"total_amount"`
	TotalEmployees int                   `json:"total_employees"`
	TotalItems     int                   `json:"total_items"`
}

type RestaurantRollup struct {
	RestaurantID   uuid.UUID       `json:"restaurant_id"`
	RestaurantName string          `json:"restaurant_name"`
	EmployeeCount  int             `json:"employee_count"`
	ItemCount      int             `json:"item_count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

// EmployeeOrderView is one row of the manager's drill-down.
type EmployeeOrderView struct {
	SubOrderID   uuid.UUID         `json:"sub_order_id"`
	EmployeeID   uuid.UUID         `json:"employee_id"`
	EmployeeName string            `json:"employee_name"`
	JobTitle     string            `json:"job_title"`
	Status       SubOrderStatus    `json:"status"`
	Restaurants  []RestaurantOrder `json:"restaurants"`
	ItemCount    int               `json:"item_count"`
	TotalAmount  decimal.Decimal   `json:"total_amount"`
}
