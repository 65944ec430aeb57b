package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderAction string

const (
	ActionReplace OrderAction = "replace"
	ActionAdd     OrderAction = "add"
)

// CartItem is one line of an employee's checkout cart.
type CartItem struct {
	MenuItemID          uuid.UUID       `json:"menu_item_id" validate:"required"`
	RestaurantID        uuid.UUID       `json:"restaurant_id" validate:"required"`
	RestaurantName      string          `json:"restaurant_name" validate:"required"`
	Name                string          `json:"name" validate:"required"`
	Quantity            int             `json:"quantity" validate:"min=1,max=100"`
	Price               decimal.Decimal `json:"price"`
	DiscountPrice       decimal.Decimal `json:"discount_price"`
	IsDiscounted        bool            `json:"is_discounted"`
	SelectedAddons      []Addon         `json:"selected_addons,omitempty"`
	SpecialInstructions string          `json:"special_instructions,omitempty" validate:"max=500"`
}

// SubmitOrderRequest is the body of POST /corporate-orders/my-order/{employeeId}.
// An empty Action lets the server pick the default.
type SubmitOrderRequest struct {
	Items  []CartItem  `json:"items" validate:"dive"`
	Action OrderAction `json:"action,omitempty" validate:"omitempty,oneof=replace add"`
}

// SubmitOrderResult reports what the server did with a submission.
type SubmitOrderResult struct {
	SubOrder     *SubOrder    `json:"sub_order"`
	Action       OrderAction  `json:"action"`
	DeliveryInfo DeliveryInfo `json:"delivery_info"`
}

// MyOrder is the response of GET /corporate-orders/my-order/{employeeId}.
// SubOrder is nil when the employee has no active order for the delivery date.
type MyOrder struct {
	SubOrder        *SubOrder       `json:"sub_order"`
	DeliveryInfo    DeliveryInfo    `json:"delivery_info"`
	BudgetRemaining decimal.Decimal `json:"budget_remaining"`
}
