package analytics

import (
	"github.com/sells-group/orderrisk/internal/model"
)

// Summary combines the headline figures of every other query.
type Summary struct {
	TotalOrders           int                       `json:"total_orders"`
	TotalRevenue          float64                   `json:"total_revenue"`
	MatchedOrders         int                       `json:"matched_orders"`
	MatchedRevenue        float64                   `json:"matched_revenue"`
	UnmatchedOrders       int                       `json:"unmatched_orders"`
	UnmatchedRevenue      float64                   `json:"unmatched_revenue"`
	RodentRevenue         float64                   `json:"rodent_revenue"`
	RodentOrderCount      int                       `json:"rodent_order_count"`
	RodentRestaurantCount int                       `json:"rodent_restaurant_count"`
	RevenueAtRisk         float64                   `json:"revenue_at_risk"`
	RiskOrderCount        int                       `json:"risk_order_count"`
	GradeBreakdown        map[model.Grade]float64   `json:"grade_breakdown"`
	BoroughBreakdown      map[model.Borough]float64 `json:"borough_breakdown"`
	TopWatchlist          []WatchlistEntry          `json:"top_watchlist"`
}

// Summary composes the other queries for w.
func (e *Engine) Summary(w Window) Summary {
	sel := e.selectOrders(w)
	rodent := e.RodentOrders(w)
	rar := e.RevenueAtRisk(w)
	grades := e.RevenueByGrade(w)
	boroughs := e.BoroughBreakdown(w)
	watch := e.watchlist(w, DefaultTopN)

	s := Summary{
		TotalOrders:           len(sel.all),
		TotalRevenue:          money(sel.total),
		MatchedOrders:         len(sel.matched),
		MatchedRevenue:        money(sel.matchedTotal),
		UnmatchedOrders:       sel.unmatchedCount,
		UnmatchedRevenue:      money(sel.unmatchedTotal),
		RodentRevenue:         rodent.TotalRodentRevenue,
		RodentOrderCount:      rodent.OrderCount,
		RodentRestaurantCount: rodent.UniqueRestaurants,
		RevenueAtRisk:         rar.TotalRevenueAtRisk,
		RiskOrderCount:        rar.OrderCount,
		GradeBreakdown:        make(map[model.Grade]float64, len(grades.Grades)),
		BoroughBreakdown:      make(map[model.Borough]float64, len(boroughs.Boroughs)),
		TopWatchlist:          watch.Restaurants,
	}
	for _, g := range grades.Grades {
		s.GradeBreakdown[g.Grade] = g.Revenue
	}
	for _, b := range boroughs.Boroughs {
		s.BoroughBreakdown[b.Borough] = b.Revenue
	}
	return s
}
