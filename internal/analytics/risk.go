package analytics

import (
	"github.com/shopspring/decimal"
)

// RevenueAtRisk is revenue from restaurants showing any health-risk signal.
// Breakdown and RiskCategories count an order under every category that
// applies; the totals count it once.
type RevenueAtRisk struct {
	TotalRevenueAtRisk float64            `json:"total_revenue_at_risk"`
	OrderCount         int                `json:"order_count"`
	Breakdown          map[string]float64 `json:"breakdown"`
	RiskCategories     map[string]int     `json:"risk_categories"`
}

// RevenueAtRisk computes revenue at risk for matched orders in w.
func (e *Engine) RevenueAtRisk(w Window) RevenueAtRisk {
	sel := e.selectOrders(w)

	revenue := make(map[string]decimal.Decimal, len(riskKeys))
	counts := make(map[string]int, len(riskKeys))
	total := decimal.Zero
	atRisk := 0

	for _, m := range sel.matched {
		flagged := false
		for _, key := range riskKeys {
			if !m.rest.atRisk(key) {
				continue
			}
			flagged = true
			revenue[key] = revenue[key].Add(m.order.Cost)
			counts[key]++
		}
		if flagged {
			total = total.Add(m.order.Cost)
			atRisk++
		}
	}

	out := RevenueAtRisk{
		TotalRevenueAtRisk: money(total),
		OrderCount:         atRisk,
		Breakdown:          make(map[string]float64, len(riskKeys)),
		RiskCategories:     make(map[string]int, len(riskKeys)),
	}
	for _, key := range riskKeys {
		out.Breakdown[key] = money(revenue[key])
		out.RiskCategories[key] = counts[key]
	}
	return out
}
