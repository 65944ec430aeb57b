package ordering

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lunchdesk/internal/models"
)

// Pricing holds the organization-level charges applied on top of the
// employees' line items.
type Pricing struct {
	TaxRate                  decimal.Decimal
	DeliveryFeePerRestaurant decimal.Decimal
}

type rollupAcc struct {
	rollup    models.RestaurantRollup
	employees map[uuid.UUID]struct{}
}

// Aggregate builds the manager view of a day's sub-orders. CANCELLED
// sub-orders are dropped. REJECTED ones stay visible in SubOrders but do not
// contribute to rollups, totals or the employee count. The result does not
// depend on the order of subOrders.
func Aggregate(subOrders []models.SubOrder, pricing Pricing) models.AggregatedOrder {
	agg := models.AggregatedOrder{
		Subtotal:    decimal.Zero,
		Tax:         decimal.Zero,
		DeliveryFee: decimal.Zero,
		TotalAmount: decimal.Zero,
		SubOrders:   []models.EmployeeOrderView{},
		Restaurants: []models.RestaurantRollup{},
	}
	byRestaurant := make(map[uuid.UUID]*rollupAcc)

	for _, so := range subOrders {
		if !so.Status.IsActive() {
			continue
		}
		agg.SubOrders = append(agg.SubOrders, models.EmployeeOrderView{
			SubOrderID:   so.ID,
			EmployeeID:   so.EmployeeID,
			EmployeeName: so.EmployeeName,
			JobTitle:     so.JobTitle,
			Status:       so.Status,
			Restaurants:  so.RestaurantOrders,
			ItemCount:    so.ItemCount(),
			TotalAmount:  so.TotalAmount,
		})

		if !so.Status.IsBillable() {
			continue
		}
		agg.TotalEmployees++
		agg.TotalItems += so.ItemCount()
		agg.Subtotal = agg.Subtotal.Add(so.TotalAmount)

		for _, ro := range so.RestaurantOrders {
			acc, ok := byRestaurant[ro.RestaurantID]
			if !ok {
				acc = &rollupAcc{
					rollup: models.RestaurantRollup{
						RestaurantID:   ro.RestaurantID,
						RestaurantName: ro.RestaurantName,
						TotalAmount:    decimal.Zero,
					},
					employees: make(map[uuid.UUID]struct{}),
				}
				byRestaurant[ro.RestaurantID] = acc
			}
			if preferName(ro.RestaurantName, acc.rollup.RestaurantName) {
				acc.rollup.RestaurantName = ro.RestaurantName
			}
			acc.employees[so.EmployeeID] = struct{}{}
			acc.rollup.ItemCount += ro.ItemCount()
			acc.rollup.TotalAmount = acc.rollup.TotalAmount.Add(ro.Total())
		}
	}

	for _, acc := range byRestaurant {
		acc.rollup.EmployeeCount = len(acc.employees)
		agg.Restaurants = append(agg.Restaurants, acc.rollup)
	}
	sort.Slice(agg.Restaurants, func(i, j int) bool {
		a, b := agg.Restaurants[i], agg.Restaurants[j]
		if a.RestaurantName != b.RestaurantName {
			return a.RestaurantName < b.RestaurantName
		}
		return a.RestaurantID.String() < b.RestaurantID.String()
	})
	sort.Slice(agg.SubOrders, func(i, j int) bool {
		a, b := agg.SubOrders[i], agg.SubOrders[j]
		an, bn := strings.ToLower(a.EmployeeName), strings.ToLower(b.EmployeeName)
		if an != bn {
			return an < bn
		}
		return a.SubOrderID.String() < b.SubOrderID.String()
	})

	agg.Tax = agg.Subtotal.Mul(pricing.TaxRate).Round(2)
	agg.DeliveryFee = pricing.DeliveryFeePerRestaurant.Mul(decimal.NewFromInt(int64(len(agg.Restaurants))))
	agg.TotalAmount = agg.Subtotal.Add(agg.Tax).Add(agg.DeliveryFee)
	return agg
}

// preferName reports whether candidate should replace current as a
// restaurant's display name. The smallest non-empty name wins.
func preferName(candidate, current string) bool {
	if candidate == "" {
		return false
	}
	return current == "" || candidate < current
}

// AggregateOrder aggregates subOrders and stamps the result with order's
// identity, date and status.
func AggregateOrder(order *models.CorporateOrder, subOrders []models.SubOrder, pricing Pricing) models.AggregatedOrder {
	agg := Aggregate(subOrders, pricing)
	agg.OrderID = order.ID
	agg.OrganizationID = order.OrganizationID
	agg.Date = order.DeliveryDate
	agg.Status = order.Status
	return agg
}
