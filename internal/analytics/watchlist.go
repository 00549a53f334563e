package analytics

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/orderrisk/internal/model"
)

// DefaultTopN is the watchlist length when the caller does not choose one.
const DefaultTopN = 10

// WatchlistEntry is one ranked restaurant.
type WatchlistEntry struct {
	Rank               int          `json:"rank"`
	RestaurantName     string       `json:"restaurant_name"`
	CAMIS              string       `json:"camis"`
	Revenue            float64      `json:"revenue"`
	OrderCount         int          `json:"order_count"`
	LatestGrade        *model.Grade `json:"latest_grade"`
	CriticalViolations int          `json:"critical_violations"`
	RodentViolations   int          `json:"rodent_violations"`
	LastInspectionDate *string      `json:"last_inspection_date"`
	RiskFlags          []string     `json:"risk_flags"`
}

// Watchlist is the top revenue restaurants with at least one risk flag.
type Watchlist struct {
	Restaurants           []WatchlistEntry `json:"restaurants"`
	TotalWatchlistRevenue float64          `json:"total_watchlist_revenue"`
}

type watchTally struct {
	rest    *restaurant
	revenue decimal.Decimal
	count   int
	named   *model.Order
}

// Watchlist ranks flagged restaurants by matched revenue in w, highest
// first with CAMIS ascending on ties, and returns the first topN.
func (e *Engine) Watchlist(w Window, topN int) (Watchlist, error) {
	if topN < 1 {
		return Watchlist{}, eris.Wrapf(model.ErrInvalidParameter, "top_n must be >= 1, got %d", topN)
	}
	return e.watchlist(w, topN), nil
}

// watchlist builds the ranking for a topN already known to be positive.
func (e *Engine) watchlist(w Window, topN int) Watchlist {
	sel := e.selectOrders(w)

	tallies := make(map[string]*watchTally)
	for _, m := range sel.matched {
		if !m.rest.flagged() {
			continue
		}
		t, ok := tallies[m.rest.camis]
		if !ok {
			t = &watchTally{rest: m.rest}
			tallies[m.rest.camis] = t
		}
		t.revenue = t.revenue.Add(m.order.Cost)
		t.count++
		if laterOrder(m.order, t.named) {
			t.named = m.order
		}
	}

	ranked := make([]*watchTally, 0, len(tallies))
	for _, t := range tallies {
		ranked = append(ranked, t)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if c := ranked[i].revenue.Cmp(ranked[j].revenue); c != 0 {
			return c > 0
		}
		return ranked[i].rest.camis < ranked[j].rest.camis
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	out := Watchlist{Restaurants: make([]WatchlistEntry, 0, len(ranked))}
	total := decimal.Zero
	for i, t := range ranked {
		total = total.Add(t.revenue)
		out.Restaurants = append(out.Restaurants, WatchlistEntry{
			Rank:               i + 1,
			RestaurantName:     t.named.RestaurantName,
			CAMIS:              t.rest.camis,
			Revenue:            money(t.revenue),
			OrderCount:         t.count,
			LatestGrade:        gradePtr(t.rest.latestGrade),
			CriticalViolations: t.rest.criticalCount,
			RodentViolations:   t.rest.rodentCount,
			LastInspectionDate: dateString(t.rest.lastInspection),
			RiskFlags:          riskFlags(t.rest),
		})
	}
	out.TotalWatchlistRevenue = money(total)
	return out
}

// laterOrder reports whether o should replace cur as the order that names a
// restaurant: the latest dated order wins, and without dates the last one
// in source order does.
func laterOrder(o, cur *model.Order) bool {
	if cur == nil {
		return true
	}
	switch {
	case o.OrderDate == nil && cur.OrderDate == nil:
		return true
	case o.OrderDate == nil:
		return false
	case cur.OrderDate == nil:
		return true
	default:
		return !o.OrderDate.Before(*cur.OrderDate)
	}
}

func riskFlags(r *restaurant) []string {
	flags := []string{}
	if r.criticalCount > 0 {
		flags = append(flags, fmt.Sprintf("%d critical violations", r.criticalCount))
	}
	if r.rodentCount > 0 {
		flags = append(flags, fmt.Sprintf("%d rodent violations", r.rodentCount))
	}
	if r.closed {
		flags = append(flags, "closure history")
	}
	if r.gradeC() || r.gradePending() {
		flags = append(flags, "grade "+string(r.latestGrade))
	}
	return flags
}

func gradePtr(g model.Grade) *model.Grade {
	if g == "" {
		return nil
	}
	return &g
}
