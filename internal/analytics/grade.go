package analytics

import (
	"github.com/shopspring/decimal"

	"github.com/sells-group/orderrisk/internal/model"
)

// GradeRevenue is the revenue attributed to one inspection grade.
type GradeRevenue struct {
	Grade      model.Grade `json:"grade"`
	Revenue    float64     `json:"revenue"`
	OrderCount int         `json:"order_count"`
	Percentage float64     `json:"percentage"`
}

// RevenueByGrade buckets matched orders by their restaurant's latest grade.
// Unmatched fields cover matched orders whose restaurant has no grade;
// unresolved fields cover orders with no mapping at all.
type RevenueByGrade struct {
	TotalRevenue         float64        `json:"total_revenue"`
	MatchedRevenue       float64        `json:"matched_revenue"`
	GradedRevenue        float64        `json:"graded_revenue"`
	Grades               []GradeRevenue `json:"grades"`
	UnmatchedRevenue     float64        `json:"unmatched_revenue"`
	UnmatchedOrderCount  int            `json:"unmatched_order_count"`
	UnresolvedRevenue    float64        `json:"unresolved_revenue"`
	UnresolvedOrderCount int            `json:"unresolved_order_count"`
}

// RevenueByGrade groups matched orders in w by latest grade. Percentages are
// of graded revenue, so they sum to 100 across the reported grades.
func (e *Engine) RevenueByGrade(w Window) RevenueByGrade {
	sel := e.selectOrders(w)

	revenue := make(map[model.Grade]decimal.Decimal)
	counts := make(map[model.Grade]int)
	graded, ungraded := decimal.Zero, decimal.Zero
	ungradedCount := 0

	for _, m := range sel.matched {
		g := m.rest.latestGrade
		if g == "" {
			ungraded = ungraded.Add(m.order.Cost)
			ungradedCount++
			continue
		}
		revenue[g] = revenue[g].Add(m.order.Cost)
		counts[g]++
		graded = graded.Add(m.order.Cost)
	}

	out := RevenueByGrade{
		TotalRevenue:         money(sel.total),
		MatchedRevenue:       money(sel.matchedTotal),
		GradedRevenue:        money(graded),
		Grades:               []GradeRevenue{},
		UnmatchedRevenue:     money(ungraded),
		UnmatchedOrderCount:  ungradedCount,
		UnresolvedRevenue:    money(sel.unmatchedTotal),
		UnresolvedOrderCount: sel.unmatchedCount,
	}
	for _, g := range model.Grades {
		if counts[g] == 0 {
			continue
		}
		out.Grades = append(out.Grades, GradeRevenue{
			Grade:      g,
			Revenue:    money(revenue[g]),
			OrderCount: counts[g],
			Percentage: percentage(revenue[g], graded),
		})
	}
	return out
}
