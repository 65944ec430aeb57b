package models

import "github.com/shopspring/decimal"

func init() {
	// Amounts travel as plain JSON numbers in the organization's base currency.
	decimal.MarshalJSONWithoutQuotes = true
}

// SumAmounts adds amounts exactly; the result does not depend on order.
func SumAmounts(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
