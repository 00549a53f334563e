package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/orderrisk/internal/matcher"
	"github.com/sells-group/orderrisk/internal/model"
)

// restaurant is everything the engine derives from one CAMIS's inspection
// records. It depends only on the inspection snapshot, never on orders or
// the window.
type restaurant struct {
	camis   string
	borough model.Borough

	latestGrade    model.Grade // "" when no record carries a grade
	lastInspection time.Time

	criticalCount int
	rodentCount   int
	closed        bool

	rodent *model.InspectionRecord // most recent rodent record
}

func (r *restaurant) gradeC() bool       { return r.latestGrade == model.GradeC }
func (r *restaurant) gradePending() bool { return r.latestGrade.Pending() }

func (r *restaurant) inCategory(category string) bool {
	switch category {
	case CategoryRodent:
		return r.rodentCount > 0
	case CategoryCritical:
		return r.criticalCount > 0
	case CategoryClosed:
		return r.closed
	case CategoryGradePending:
		return r.gradePending()
	}
	return false
}

func (r *restaurant) atRisk(key string) bool {
	switch key {
	case RiskClosed:
		return r.closed
	case RiskGradeC:
		return r.gradeC()
	case RiskGradePending:
		return r.gradePending()
	case RiskCriticalViolation:
		return r.criticalCount > 0
	}
	return false
}

// flagged reports whether any watchlist flag applies.
func (r *restaurant) flagged() bool {
	return r.criticalCount > 0 || r.rodentCount > 0 || r.closed || r.gradeC() || r.gradePending()
}

func newRestaurant(entry model.MappingEntry, records []model.InspectionRecord) *restaurant {
	r := &restaurant{camis: entry.CAMIS}

	var (
		latest, latestGraded *model.InspectionRecord
	)
	for i := range records {
		rec := &records[i]

		// Strictly-after keeps the first record in source order on ties.
		if latest == nil || rec.InspectionDate.After(latest.InspectionDate) {
			latest = rec
		}
		if rec.Grade != "" && (latestGraded == nil || rec.InspectionDate.After(latestGraded.InspectionDate)) {
			latestGraded = rec
		}
		if rec.InspectionDate.After(r.lastInspection) {
			r.lastInspection = rec.InspectionDate
		}
		if rec.Critical {
			r.criticalCount++
		}
		if IsClosure(rec.Action) {
			r.closed = true
		}
		if IsRodent(rec.ViolationDescription) {
			r.rodentCount++
			if r.rodent == nil || newerRodent(rec, r.rodent) {
				r.rodent = rec
			}
		}
	}

	if latestGraded != nil {
		r.latestGrade = latestGraded.Grade
	}

	r.borough = model.BoroughUnknown
	switch {
	case latest != nil && latest.Boro != "" && latest.Boro != model.BoroughUnknown:
		r.borough = latest.Boro
	case entry.Boro != "":
		r.borough = model.ParseBorough(string(entry.Boro))
	}
	return r
}

// newerRodent orders rodent records by date, then by description.
func newerRodent(a, b *model.InspectionRecord) bool {
	if !a.InspectionDate.Equal(b.InspectionDate) {
		return a.InspectionDate.After(b.InspectionDate)
	}
	return a.ViolationDescription > b.ViolationDescription
}

// match is one order resolved to a restaurant.
type match struct {
	order *model.Order
	rest  *restaurant
}

// Engine answers analytics queries over one order set, one resolution
// table, and one inspection snapshot. It never mutates its inputs, so a
// single Engine may serve concurrent queries.
type Engine struct {
	orders   []model.Order
	hasDates bool

	// resolved[i] is the restaurant for orders[i], or nil when unmatched.
	resolved    []*restaurant
	restaurants map[string]*restaurant
}

// New resolves every order once and derives per-restaurant facts from the
// inspection index.
func New(orders *model.OrderSet, resolver matcher.Resolver, index model.InspectionIndex) *Engine {
	e := &Engine{restaurants: make(map[string]*restaurant)}
	if orders != nil {
		e.orders = orders.Orders
		e.hasDates = orders.HasDates
	}
	e.resolved = make([]*restaurant, len(e.orders))

	for i := range e.orders {
		entry, ok := resolver.Resolve(e.orders[i].RestaurantName)
		if !ok || entry.CAMIS == "" {
			continue
		}
		r, seen := e.restaurants[entry.CAMIS]
		if !seen {
			r = newRestaurant(entry, index[entry.CAMIS])
			e.restaurants[entry.CAMIS] = r
		}
		e.resolved[i] = r
	}
	return e
}

// selection is the part of the order set inside one window.
type selection struct {
	all     []*model.Order
	matched []match

	total          decimal.Decimal
	matchedTotal   decimal.Decimal
	unmatchedTotal decimal.Decimal
	unmatchedCount int
}

// inWindow reports whether o counts for w. A dataset without order dates,
// and an individual order without one, falls inside every window.
func (e *Engine) inWindow(o *model.Order, w Window) bool {
	if !e.hasDates || o.OrderDate == nil {
		return true
	}
	return w.Contains(*o.OrderDate)
}

func (e *Engine) selectOrders(w Window) selection {
	var s selection
	for i := range e.orders {
		o := &e.orders[i]
		if !e.inWindow(o, w) {
			continue
		}
		s.all = append(s.all, o)
		s.total = s.total.Add(o.Cost)

		r := e.resolved[i]
		if r == nil {
			s.unmatchedTotal = s.unmatchedTotal.Add(o.Cost)
			s.unmatchedCount++
			continue
		}
		s.matched = append(s.matched, match{order: o, rest: r})
		s.matchedTotal = s.matchedTotal.Add(o.Cost)
	}
	return s
}
