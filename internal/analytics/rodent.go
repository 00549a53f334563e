package analytics

import (
	"github.com/shopspring/decimal"
)

// RodentOrder is one order from a restaurant with a rodent violation.
type RodentOrder struct {
	OrderID              string  `json:"order_id"`
	RestaurantName       string  `json:"restaurant_name"`
	Cost                 float64 `json:"cost"`
	ViolationDescription string  `json:"violation_description"`
	InspectionDate       *string `json:"inspection_date"`
	CAMIS                string  `json:"camis"`
}

// RodentOrders is the rodent-violation exposure of the matched orders.
type RodentOrders struct {
	TotalRodentRevenue float64       `json:"total_rodent_revenue"`
	OrderCount         int           `json:"order_count"`
	UniqueRestaurants  int           `json:"unique_restaurants"`
	Orders             []RodentOrder `json:"orders"`
}

// RodentOrders returns matched orders in w whose restaurant has at least one
// rodent violation, each carrying that restaurant's most recent one.
func (e *Engine) RodentOrders(w Window) RodentOrders {
	sel := e.selectOrders(w)

	out := RodentOrders{Orders: []RodentOrder{}}
	total := decimal.Zero
	seen := make(map[string]struct{})
	for _, m := range sel.matched {
		if m.rest.rodent == nil {
			continue
		}
		total = total.Add(m.order.Cost)
		seen[m.rest.camis] = struct{}{}
		out.Orders = append(out.Orders, RodentOrder{
			OrderID:              m.order.OrderID,
			RestaurantName:       m.order.RestaurantName,
			Cost:                 money(m.order.Cost),
			ViolationDescription: m.rest.rodent.ViolationDescription,
			InspectionDate:       dateString(m.rest.rodent.InspectionDate),
			CAMIS:                m.rest.camis,
		})
	}

	out.TotalRodentRevenue = money(total)
	out.OrderCount = len(out.Orders)
	out.UniqueRestaurants = len(seen)
	return out
}
