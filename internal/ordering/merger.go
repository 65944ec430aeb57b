package ordering

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"lunchdesk/internal/apperrors"
	"lunchdesk/internal/models"
)

// Resolution is the outcome of reconciling a cart with the employee's
// existing order for the day.
type Resolution struct {
	Action           models.OrderAction       `json:"action"`
	DefaultAction    models.OrderAction       `json:"default_action"`
	AddAvailable     bool                     `json:"add_available"`
	RestaurantOrders []models.RestaurantOrder `json:"restaurant_orders"`
	CartTotal        decimal.Decimal          `json:"cart_total"`
	CombinedTotal    decimal.Decimal          `json:"combined_total"`
	Total            decimal.Decimal          `json:"total"`
}

// UnitPrice is the per-unit price of a cart line: the discounted price when
// flagged and positive, otherwise the list price, plus every selected add-on.
func UnitPrice(item models.CartItem) decimal.Decimal {
	base := item.Price
	if item.IsDiscounted && item.DiscountPrice.IsPositive() {
		base = item.DiscountPrice
	}
	for _, addon := range item.SelectedAddons {
		base = base.Add(addon.Price)
	}
	return base
}

// LinePrice is UnitPrice multiplied by quantity.
func LinePrice(item models.CartItem) decimal.Decimal {
	return UnitPrice(item).Mul(decimal.NewFromInt(int64(item.Quantity)))
}

func CartTotal(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(LinePrice(item))
	}
	return total
}

// Options reports which actions are available for a cart of cartTotal
// against existing. "add" is offered only when an active, still pending
// order exists and the combined total fits the remaining budget.
func Options(cartTotal decimal.Decimal, existing *models.SubOrder, budgetRemaining decimal.Decimal) (models.OrderAction, bool) {
	if existing == nil || existing.Status != models.SubOrderPending {
		return models.ActionReplace, false
	}
	combined := cartTotal.Add(existing.TotalAmount)
	if combined.LessThanOrEqual(budgetRemaining) {
		return models.ActionAdd, true
	}
	return models.ActionReplace, false
}

// ResolveOrderAction decides between replacing and adding to the existing
// order and produces the line items and total to submit. An empty requested
// action takes the default.
func ResolveOrderAction(cart []models.CartItem, existing *models.SubOrder, budgetRemaining decimal.Decimal, requested models.OrderAction) (*Resolution, error) {
	if len(cart) == 0 {
		return nil, apperrors.Validation("items", "cart is empty")
	}
	for _, item := range cart {
		if item.Quantity <= 0 {
			return nil, apperrors.Validation("quantity", "quantity must be positive")
		}
		if item.Price.IsNegative() {
			return nil, apperrors.Validation("price", "price must not be negative")
		}
	}
	if existing != nil && existing.Status == models.SubOrderConfirmed {
		return nil, apperrors.Conflict("today's order has already been approved")
	}
	if existing != nil && existing.Status == models.SubOrderCancelled {
		existing = nil
	}

	cartTotal := CartTotal(cart)
	defaultAction, addAvailable := Options(cartTotal, existing, budgetRemaining)

	res := &Resolution{
		DefaultAction: defaultAction,
		AddAvailable:  addAvailable,
		CartTotal:     cartTotal,
		CombinedTotal: cartTotal,
	}
	if existing != nil {
		res.CombinedTotal = cartTotal.Add(existing.TotalAmount)
	}

	action := requested
	if action == "" {
		action = defaultAction
	}

	incoming := GroupByRestaurant(cart)
	switch action {
	case models.ActionAdd:
		if !addAvailable {
			return nil, apperrors.BudgetExceeded(res.CombinedTotal.StringFixed(2), budgetRemaining.StringFixed(2))
		}
		res.RestaurantOrders = MergeRestaurantOrders(existing.RestaurantOrders, incoming)
	case models.ActionReplace:
		if cartTotal.GreaterThan(budgetRemaining) {
			return nil, apperrors.BudgetExceeded(cartTotal.StringFixed(2), budgetRemaining.StringFixed(2))
		}
		res.RestaurantOrders = incoming
	default:
		return nil, apperrors.Validation("action", "action must be replace or add")
	}

	res.Action = action
	res.Total = RestaurantOrdersTotal(res.RestaurantOrders)
	return res, nil
}

// EffectiveBudget caps the employee's remaining daily budget by the job
// title's daily limit, when one is set.
func EffectiveBudget(employee *models.Employee, title *models.JobTitle) decimal.Decimal {
	remaining := employee.DailyBudgetRemaining
	if title != nil && title.DailyBudgetLimit.IsPositive() && title.DailyBudgetLimit.LessThan(remaining) {
		return title.DailyBudgetLimit
	}
	return remaining
}

// GroupByRestaurant converts cart lines into restaurant orders, keeping the
// order in which restaurants first appear in the cart.
func GroupByRestaurant(cart []models.CartItem) []models.RestaurantOrder {
	var orders []models.RestaurantOrder
	index := make(map[string]int)

	for _, item := range cart {
		key := item.RestaurantID.String()
		i, ok := index[key]
		if !ok {
			orders = append(orders, models.RestaurantOrder{
				RestaurantID:   item.RestaurantID,
				RestaurantName: item.RestaurantName,
			})
			i = len(orders) - 1
			index[key] = i
		}
		ro := &orders[i]
		ro.SpecialInstructions = joinInstructions(ro.SpecialInstructions, item.SpecialInstructions)
		ro.MenuItems = mergeItem(ro.MenuItems, models.MenuItem{
			ID:             item.MenuItemID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			SelectedAddons: item.SelectedAddons,
			UnitPrice:      UnitPrice(item),
			TotalPrice:     LinePrice(item),
		})
	}
	return orders
}

// MergeRestaurantOrders adds incoming into a copy of existing. Lines for the
// same menu item with the same add-ons and unit price are combined.
func MergeRestaurantOrders(existing, incoming []models.RestaurantOrder) []models.RestaurantOrder {
	merged := make([]models.RestaurantOrder, len(existing))
	for i, ro := range existing {
		merged[i] = ro
		merged[i].MenuItems = append([]models.MenuItem(nil), ro.MenuItems...)
	}

	for _, in := range incoming {
		pos := -1
		for i := range merged {
			if merged[i].RestaurantID == in.RestaurantID {
				pos = i
				break
			}
		}
		if pos < 0 {
			merged = append(merged, in)
			continue
		}
		target := &merged[pos]
		target.SpecialInstructions = joinInstructions(target.SpecialInstructions, in.SpecialInstructions)
		for _, item := range in.MenuItems {
			target.MenuItems = mergeItem(target.MenuItems, item)
		}
	}
	return merged
}

func RestaurantOrdersTotal(orders []models.RestaurantOrder) decimal.Decimal {
	total := decimal.Zero
	for i := range orders {
		total = total.Add(orders[i].Total())
	}
	return total
}

func mergeItem(items []models.MenuItem, item models.MenuItem) []models.MenuItem {
	for i := range items {
		if items[i].ID == item.ID && items[i].UnitPrice.Equal(item.UnitPrice) && addonKey(items[i].SelectedAddons) == addonKey(item.SelectedAddons) {
			items[i].Quantity += item.Quantity
			items[i].TotalPrice = items[i].UnitPrice.Mul(decimal.NewFromInt(int64(items[i].Quantity)))
			return items
		}
	}
	return append(items, item)
}

func addonKey(addons []models.Addon) string {
	ids := make([]string, 0, len(addons))
	for _, a := range addons {
		ids = append(ids, a.ID.String())
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

func joinInstructions(current, next string) string {
	next = strings.TrimSpace(next)
	if next == "" {
		return current
	}
	if current == "" {
		return next
	}
	for _, part := range strings.Split(current, "; ") {
		if part == next {
			return current
		}
	}
	return current + "; " + next
}
