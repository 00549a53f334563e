package report

import (
	"fmt"
	"strings"

	"github.com/sells-group/orderrisk/internal/analytics"
)

// lines renders the report as plain text lines for the PDF export.
func (r *Report) lines() []string {
	var out []string
	add := func(format string, args ...any) {
		out = append(out, fmt.Sprintf(format, args...))
	}

	add("Health Risk Revenue Report")
	add("Window: %s    Generated: %s", windowLabel(r.Window), r.GeneratedAt.Format("2006-01-02 15:04 MST"))
	add("")

	s := r.Summary
	add("SUMMARY")
	add("Orders: %d (%s)    Matched: %d (%s)    Unmatched: %d (%s)",
		s.TotalOrders, usd(s.TotalRevenue), s.MatchedOrders, usd(s.MatchedRevenue),
		s.UnmatchedOrders, usd(s.UnmatchedRevenue))
	add("Rodent exposure: %s across %d orders at %d restaurants",
		usd(s.RodentRevenue), s.RodentOrderCount, s.RodentRestaurantCount)
	add("Revenue at risk: %s across %d orders", usd(s.RevenueAtRisk), s.RiskOrderCount)
	add("")

	add("REVENUE BY GRADE")
	for _, g := range r.RevenueByGrade.Grades {
		add("  %-3s %12s  %5d orders  %6.2f%%", g.Grade, usd(g.Revenue), g.OrderCount, g.Percentage)
	}
	add("  Ungraded: %s (%d orders)    No mapping: %s (%d orders)",
		usd(r.RevenueByGrade.UnmatchedRevenue), r.RevenueByGrade.UnmatchedOrderCount,
		usd(r.RevenueByGrade.UnresolvedRevenue), r.RevenueByGrade.UnresolvedOrderCount)
	add("")

	add("REVENUE AT RISK")
	for _, key := range riskOrder {
		add("  %-20s %12s  %5d orders", key, usd(r.RevenueAtRisk.Breakdown[key]), r.RevenueAtRisk.RiskCategories[key])
	}
	add("")

	add("BOROUGHS")
	for _, b := range r.BoroughBreakdown.Boroughs {
		top := "-"
		if b.TopViolationCategory != nil {
			top = *b.TopViolationCategory
		}
		add("  %-14s %12s  %5d orders  %6.2f%%  top: %s", b.Borough, usd(b.Revenue), b.OrderCount, b.Percentage, top)
	}
	add("")

	add("WATCHLIST (%s)", usd(r.Watchlist.TotalWatchlistRevenue))
	for _, e := range r.Watchlist.Restaurants {
		add("  %2d. %s [%s]  %s  %d orders", e.Rank, e.RestaurantName, e.CAMIS, usd(e.Revenue), e.OrderCount)
		add("      %s", strings.Join(e.RiskFlags, "; "))
	}
	add("")

	add("RODENT ORDERS (%d)", r.RodentOrders.OrderCount)
	for _, o := range r.RodentOrders.Orders {
		date := "unknown"
		if o.InspectionDate != nil {
			date = *o.InspectionDate
		}
		add("  #%s %s  %s  %s", o.OrderID, o.RestaurantName, usd(o.Cost), date)
	}
	return out
}

var riskOrder = []string{
	analytics.RiskClosed, analytics.RiskGradeC, analytics.RiskGradePending, analytics.RiskCriticalViolation,
}

func usd(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func windowLabel(w analytics.Window) string {
	if w.Start.IsZero() && w.End.IsZero() {
		return "all orders"
	}
	return fmt.Sprintf("%s to %s", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}
