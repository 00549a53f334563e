package matcher

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sells-group/orderrisk/internal/model"
)

// UnmatchedName summarizes the orders for one raw restaurant name that has no
// mapping entry.
type UnmatchedName struct {
	RestaurantName string  `json:"restaurant_name"`
	OrderCount     int     `json:"order_count"`
	Revenue        float64 `json:"revenue"`
}

// Unmatched lists raw restaurant names r cannot resolve, by revenue
// descending then name ascending.
func Unmatched(orders []model.Order, r Resolver) []UnmatchedName {
	type acc struct {
		count   int
		revenue decimal.Decimal
	}
	byName := make(map[string]*acc)
	for _, o := range orders {
		if _, ok := r.Resolve(o.RestaurantName); ok {
			continue
		}
		a := byName[o.RestaurantName]
		if a == nil {
			a = &acc{}
			byName[o.RestaurantName] = a
		}
		a.count++
		a.revenue = a.revenue.Add(o.Cost)
	}

	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := byName[names[i]].revenue, byName[names[j]].revenue
		if !ri.Equal(rj) {
			return ri.GreaterThan(rj)
		}
		return names[i] < names[j]
	})

	out := make([]UnmatchedName, 0, len(names))
	for _, n := range names {
		a := byName[n]
		out = append(out, UnmatchedName{
			RestaurantName: n,
			OrderCount:     a.count,
			Revenue:        a.revenue.Round(2).InexactFloat64(),
		})
	}
	return out
}
