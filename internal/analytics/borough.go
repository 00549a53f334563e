package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sells-group/orderrisk/internal/model"
)

// BoroughRevenue is the matched revenue of one borough.
type BoroughRevenue struct {
	Borough              model.Borough `json:"borough"`
	Revenue              float64       `json:"revenue"`
	OrderCount           int           `json:"order_count"`
	Percentage           float64       `json:"percentage"`
	TopViolationCategory *string       `json:"top_violation_category"`
}

// BoroughBreakdown splits matched revenue by borough.
type BoroughBreakdown struct {
	TotalRevenue        float64            `json:"total_revenue"`
	MatchedRevenue      float64            `json:"matched_revenue"`
	Boroughs            []BoroughRevenue   `json:"boroughs"`
	ViolationCategories map[string]float64 `json:"violation_categories"`
}

type boroughTally struct {
	revenue    decimal.Decimal
	count      int
	categories map[string]decimal.Decimal
}

// BoroughBreakdown groups matched orders in w by borough, sorted by revenue
// descending and then by name.
func (e *Engine) BoroughBreakdown(w Window) BoroughBreakdown {
	sel := e.selectOrders(w)

	tallies := make(map[model.Borough]*boroughTally)
	overall := make(map[string]decimal.Decimal, len(boroughCategories))

	for _, m := range sel.matched {
		t, ok := tallies[m.rest.borough]
		if !ok {
			t = &boroughTally{categories: make(map[string]decimal.Decimal)}
			tallies[m.rest.borough] = t
		}
		t.revenue = t.revenue.Add(m.order.Cost)
		t.count++
		for _, c := range boroughCategories {
			if m.rest.inCategory(c) {
				t.categories[c] = t.categories[c].Add(m.order.Cost)
				overall[c] = overall[c].Add(m.order.Cost)
			}
		}
	}

	out := BoroughBreakdown{
		TotalRevenue:        money(sel.total),
		MatchedRevenue:      money(sel.matchedTotal),
		Boroughs:            make([]BoroughRevenue, 0, len(tallies)),
		ViolationCategories: make(map[string]float64, len(boroughCategories)),
	}
	for b, t := range tallies {
		out.Boroughs = append(out.Boroughs, BoroughRevenue{
			Borough:              b,
			Revenue:              money(t.revenue),
			OrderCount:           t.count,
			Percentage:           percentage(t.revenue, sel.matchedTotal),
			TopViolationCategory: topCategory(t.categories),
		})
	}
	sort.Slice(out.Boroughs, func(i, j int) bool {
		a, b := out.Boroughs[i], out.Boroughs[j]
		if a.Revenue != b.Revenue {
			return a.Revenue > b.Revenue
		}
		return a.Borough < b.Borough
	})
	for _, c := range boroughCategories {
		out.ViolationCategories[c] = money(overall[c])
	}
	return out
}

// topCategory picks the category with the most revenue. Ties go to the
// earlier entry of boroughCategories; no positive revenue gives nil.
func topCategory(revenue map[string]decimal.Decimal) *string {
	var best *string
	bestRevenue := decimal.Zero
	for _, c := range boroughCategories {
		if r := revenue[c]; r.GreaterThan(bestRevenue) {
			name := c
			best, bestRevenue = &name, r
		}
	}
	return best
}
