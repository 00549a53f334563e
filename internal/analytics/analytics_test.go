package analytics

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/orderrisk/internal/matcher"
	"github.com/sells-group/orderrisk/internal/model"
)

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func order(id, name, cost string) model.Order {
	return model.Order{OrderID: id, RestaurantName: name, Cost: decimal.RequireFromString(cost)}
}

func datedOrder(id, name, cost, day string) model.Order {
	o := order(id, name, cost)
	d := date(day)
	o.OrderDate = &d
	return o
}

func newEngine(orders []model.Order, hasDates bool, mapping map[string]model.MappingEntry, records []model.InspectionRecord) *Engine {
	m := matcher.New(mapping)
	set := &model.OrderSet{Orders: orders, HasDates: hasDates}
	return New(set, m.BuildTable(orders), model.GroupByCAMIS(records))
}

func TestEndToEndScenario(t *testing.T) {
	e := newEngine(
		[]model.Order{order("1", "Joe's Pizza - CLOSED", "25.0")},
		false,
		map[string]model.MappingEntry{"JOE'S PIZZA": {CAMIS: "111", Boro: "BROOKLYN"}},
		[]model.InspectionRecord{{
			CAMIS:                "111",
			InspectionDate:       date("2024-01-01"),
			Grade:                model.GradeC,
			ViolationDescription: "Mice observed",
			Critical:             true,
		}},
	)

	rodent := e.RodentOrders(All)
	assert.Equal(t, 25.0, rodent.TotalRodentRevenue)
	assert.Equal(t, 1, rodent.OrderCount)
	assert.Equal(t, 1, rodent.UniqueRestaurants)
	require.Len(t, rodent.Orders, 1)
	assert.Equal(t, "Mice observed", rodent.Orders[0].ViolationDescription)
	assert.Equal(t, "2024-01-01", *rodent.Orders[0].InspectionDate)

	grades := e.RevenueByGrade(All)
	require.Len(t, grades.Grades, 1)
	assert.Equal(t, GradeRevenue{Grade: model.GradeC, Revenue: 25.0, OrderCount: 1, Percentage: 100.0}, grades.Grades[0])

	rar := e.RevenueAtRisk(All)
	assert.Equal(t, 25.0, rar.TotalRevenueAtRisk)
	assert.Equal(t, 1, rar.OrderCount)
	assert.Equal(t, 25.0, rar.Breakdown[RiskGradeC])
	assert.Equal(t, 25.0, rar.Breakdown[RiskCriticalViolation])
	// "- CLOSED" in the order name is delivery platform text, not a closure.
	assert.Equal(t, 0.0, rar.Breakdown[RiskClosed])
	assert.Equal(t, 0, rar.RiskCategories[RiskClosed])

	boroughs := e.BoroughBreakdown(All)
	require.Len(t, boroughs.Boroughs, 1)
	assert.Equal(t, model.BoroughBrooklyn, boroughs.Boroughs[0].Borough)
	assert.Equal(t, 100.0, boroughs.Boroughs[0].Percentage)
	require.NotNil(t, boroughs.Boroughs[0].TopViolationCategory)
	assert.Equal(t, CategoryRodent, *boroughs.Boroughs[0].TopViolationCategory)
}

func TestOrderNameNeverTriggersRisk(t *testing.T) {
	e := newEngine(
		[]model.Order{order("1", "Closed Kitchen (Rat Alley) - CLOSED", "10")},
		false,
		map[string]model.MappingEntry{"CLOSED KITCHEN": {CAMIS: "9"}},
		[]model.InspectionRecord{{CAMIS: "9", InspectionDate: date("2024-01-01"), Grade: model.GradeA, Action: "NO VIOLATIONS"}},
	)

	rar := e.RevenueAtRisk(All)
	assert.Zero(t, rar.OrderCount)
	assert.Zero(t, e.RodentOrders(All).OrderCount)

	w, err := e.Watchlist(All, 10)
	require.NoError(t, err)
	assert.Empty(t, w.Restaurants)
}

func TestClosureFromInspectionAction(t *testing.T) {
	e := newEngine(
		[]model.Order{order("1", "Noodle Bar", "12.50")},
		false,
		map[string]model.MappingEntry{"NOODLE BAR": {CAMIS: "5"}},
		[]model.InspectionRecord{
			{CAMIS: "5", InspectionDate: date("2023-01-01"), Action: "Establishment re-closed by DOHMH."},
			{CAMIS: "5", InspectionDate: date("2024-01-01"), Action: "Establishment re-opened by DOHMH.", Grade: model.GradeA},
		},
	)

	rar := e.RevenueAtRisk(All)
	assert.Equal(t, 12.5, rar.Breakdown[RiskClosed])
	assert.Equal(t, 1, rar.RiskCategories[RiskClosed])
	assert.Equal(t, 0, rar.RiskCategories[RiskGradeC])

	w, err := e.Watchlist(All, 10)
	require.NoError(t, err)
	require.Len(t, w.Restaurants, 1)
	assert.Equal(t, []string{"closure history"}, w.Restaurants[0].RiskFlags)
	assert.Equal(t, model.GradeA, *w.Restaurants[0].LatestGrade)
}

func TestIsRodent(t *testing.T) {
	tests := []struct {
		desc string
		want bool
	}{
		{"Evidence of mice or live mice present", true},
		{"Live roaches and RATS present", true},
		{"Rodent droppings observed", true},
		{"MOUSE found in storage", true},
		{"Conditions conducive to VERMIN", true},
		{"Food contact surface not properly washed", false},
		// Plain substring match: "rat" inside a longer word still counts.
		{"Hot food item not held at or above 140 degrees; temperature", true},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRodent(tt.desc))
		})
	}
}

func TestMostRecentRodentRecord(t *testing.T) {
	e := newEngine(
		[]model.Order{order("1", "A", "5")},
		false,
		map[string]model.MappingEntry{"A": {CAMIS: "1"}},
		[]model.InspectionRecord{
			{CAMIS: "1", InspectionDate: date("2023-05-01"), ViolationDescription: "OLD MICE"},
			{CAMIS: "1", InspectionDate: date("2024-02-01"), ViolationDescription: "A RODENT"},
			{CAMIS: "1", InspectionDate: date("2024-02-01"), ViolationDescription: "B VERMIN"},
			{CAMIS: "1", InspectionDate: date("2024-03-01"), ViolationDescription: "NO PESTS"},
		},
	)

	r := e.RodentOrders(All)
	require.Len(t, r.Orders, 1)
	assert.Equal(t, "B VERMIN", r.Orders[0].ViolationDescription)
	assert.Equal(t, "2024-02-01", *r.Orders[0].InspectionDate)
}

func TestLatestGrade(t *testing.T) {
	records := []model.InspectionRecord{
		{CAMIS: "1", InspectionDate: date("2022-01-01"), Grade: model.GradeA},
		{CAMIS: "1", InspectionDate: date("2024-01-01"), Grade: model.GradeB},
		{CAMIS: "1", InspectionDate: date("2024-01-01"), Grade: model.GradeC},
		// Newer but ungraded; does not replace the latest grade.
		{CAMIS: "1", InspectionDate: date("2024-06-01")},
	}
	r := newRestaurant(model.MappingEntry{CAMIS: "1"}, records)
	assert.Equal(t, model.GradeB, r.latestGrade)
	assert.Equal(t, date("2024-06-01"), r.lastInspection)
}

func TestBoroughFallback(t *testing.T) {
	tests := []struct {
		name    string
		entry   model.MappingEntry
		records []model.InspectionRecord
		want    model.Borough
	}{
		{"latest record wins", model.MappingEntry{CAMIS: "1", Boro: "QUEENS"}, []model.InspectionRecord{
			{CAMIS: "1", InspectionDate: date("2020-01-01"), Boro: model.BoroughBronx},
			{CAMIS: "1", InspectionDate: date("2024-01-01"), Boro: model.BoroughManhattan},
		}, model.BoroughManhattan},
		{"mapping when no records", model.MappingEntry{CAMIS: "1", Boro: "Staten Island"}, nil, model.BoroughStatenIsland},
		{"unknown record falls back", model.MappingEntry{CAMIS: "1", Boro: "QUEENS"}, []model.InspectionRecord{
			{CAMIS: "1", Boro: model.BoroughUnknown},
		}, model.BoroughQueens},
		{"nothing known", model.MappingEntry{CAMIS: "1"}, nil, model.BoroughUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newRestaurant(tt.entry, tt.records).borough)
		})
	}
}

func TestUnmatchedOrders(t *testing.T) {
	e := newEngine(
		[]model.Order{
			order("1", "Known", "10"),
			order("2", "Mystery Place", "7.25"),
		},
		false,
		map[string]model.MappingEntry{"KNOWN": {CAMIS: "1"}},
		[]model.InspectionRecord{{CAMIS: "1", InspectionDate: date("2024-01-01"), Grade: model.GradeA, ViolationDescription: "MICE", Critical: true}},
	)

	s := e.Summary(All)
	assert.Equal(t, 2, s.TotalOrders)
	assert.Equal(t, 17.25, s.TotalRevenue)
	assert.Equal(t, 1, s.MatchedOrders)
	assert.Equal(t, 10.0, s.MatchedRevenue)
	assert.Equal(t, 1, s.UnmatchedOrders)
	assert.Equal(t, 7.25, s.UnmatchedRevenue)
	assert.Equal(t, 10.0, s.RodentRevenue)
	assert.Equal(t, 10.0, s.RevenueAtRisk)

	g := e.RevenueByGrade(All)
	assert.Equal(t, 7.25, g.UnresolvedRevenue)
	assert.Equal(t, 1, g.UnresolvedOrderCount)
	assert.Equal(t, 0.0, g.UnmatchedRevenue)

	b := e.BoroughBreakdown(All)
	assert.Equal(t, 17.25, b.TotalRevenue)
	assert.Equal(t, 10.0, b.MatchedRevenue)
}

func TestMatchedWithoutGrade(t *testing.T) {
	e := newEngine(
		[]model.Order{order("1", "Graded", "30"), order("2", "New Spot", "10")},
		false,
		map[string]model.MappingEntry{"GRADED": {CAMIS: "1"}, "NEW SPOT": {CAMIS: "2"}},
		[]model.InspectionRecord{{CAMIS: "1", InspectionDate: date("2024-01-01"), Grade: model.GradeA}},
	)

	g := e.RevenueByGrade(All)
	assert.Equal(t, 40.0, g.MatchedRevenue)
	assert.Equal(t, 30.0, g.GradedRevenue)
	assert.Equal(t, 10.0, g.UnmatchedRevenue)
	assert.Equal(t, 1, g.UnmatchedOrderCount)
	require.Len(t, g.Grades, 1)
	assert.Equal(t, 100.0, g.Grades[0].Percentage)
}

func TestDateWindowFiltering(t *testing.T) {
	orders := []model.Order{
		datedOrder("1", "A", "10", "2024-01-01"),
		datedOrder("2", "A", "20", "2024-01-15"),
		datedOrder("3", "A", "40", "2024-02-01"),
		order("4", "A", "80"),
	}
	mapping := map[string]model.MappingEntry{"A": {CAMIS: "1"}}
	records := []model.InspectionRecord{{CAMIS: "1", InspectionDate: date("2024-01-01"), Grade: model.GradeC}}

	w, err := NewWindow(date("2024-01-01"), date("2024-01-15"))
	require.NoError(t, err)

	dated := newEngine(orders, true, mapping, records)
	s := dated.Summary(w)
	assert.Equal(t, 3, s.TotalOrders, "bounds are inclusive and undated orders are kept")
	assert.Equal(t, 110.0, s.TotalRevenue)

	undated := newEngine(orders, false, mapping, records)
	assert.Equal(t, 4, undated.Summary(w).TotalOrders)
}

func TestWatchlistRanking(t *testing.T) {
	orders := []model.Order{
		order("1", "Alpha", "10"),
		order("2", "Beta", "30"),
		order("3", "Gamma", "30"),
		order("4", "Delta", "100"),
		order("5", "Alpha", "5"),
	}
	mapping := map[string]model.MappingEntry{
		"ALPHA": {CAMIS: "300"},
		"BETA":  {CAMIS: "200"},
		"GAMMA": {CAMIS: "100"},
		"DELTA": {CAMIS: "400"},
	}
	records := []model.InspectionRecord{
		{CAMIS: "300", InspectionDate: date("2024-01-01"), Grade: model.GradeP},
		{CAMIS: "200", InspectionDate: date("2024-01-01"), Critical: true},
		{CAMIS: "200", InspectionDate: date("2024-02-01"), Critical: true, ViolationDescription: "MICE"},
		{CAMIS: "100", InspectionDate: date("2024-01-01"), Grade: model.GradeZ},
		{CAMIS: "400", InspectionDate: date("2024-01-01"), Grade: model.GradeA},
	}
	e := newEngine(orders, false, mapping, records)

	w, err := e.Watchlist(All, 10)
	require.NoError(t, err)
	require.Len(t, w.Restaurants, 3)

	assert.Equal(t, []string{"100", "200", "300"}, []string{
		w.Restaurants[0].CAMIS, w.Restaurants[1].CAMIS, w.Restaurants[2].CAMIS,
	})
	for i, r := range w.Restaurants {
		assert.Equal(t, i+1, r.Rank)
	}

	beta := w.Restaurants[1]
	assert.Equal(t, "Beta", beta.RestaurantName)
	assert.Equal(t, 2, beta.CriticalViolations)
	assert.Equal(t, 1, beta.RodentViolations)
	assert.Nil(t, beta.LatestGrade)
	assert.Equal(t, "2024-02-01", *beta.LastInspectionDate)
	assert.Equal(t, []string{"2 critical violations", "1 rodent violations"}, beta.RiskFlags)

	alpha := w.Restaurants[2]
	assert.Equal(t, 15.0, alpha.Revenue)
	assert.Equal(t, 2, alpha.OrderCount)
	assert.Equal(t, []string{"grade P"}, alpha.RiskFlags)
	assert.Equal(t, 75.0, w.TotalWatchlistRevenue)

	top, err := e.Watchlist(All, 1)
	require.NoError(t, err)
	require.Len(t, top.Restaurants, 1)
	assert.Equal(t, 30.0, top.TotalWatchlistRevenue)
}

func TestWatchlistDisplayName(t *testing.T) {
	orders := []model.Order{
		datedOrder("1", "Joe's Pizza", "10", "2024-03-01"),
		datedOrder("2", "JOE'S PIZZA - CLOSED", "10", "2024-01-01"),
	}
	e := newEngine(orders, true,
		map[string]model.MappingEntry{"JOE'S PIZZA": {CAMIS: "1"}},
		[]model.InspectionRecord{{CAMIS: "1", Grade: model.GradeC, InspectionDate: date("2024-01-01")}},
	)
	w, err := e.Watchlist(All, 5)
	require.NoError(t, err)
	require.Len(t, w.Restaurants, 1)
	assert.Equal(t, "Joe's Pizza", w.Restaurants[0].RestaurantName)
}

func TestWatchlistInvalidTopN(t *testing.T) {
	e := newEngine(nil, false, nil, nil)
	for _, n := range []int{0, -3} {
		_, err := e.Watchlist(All, n)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrInvalidParameter)
	}
}

func TestEmptyInputs(t *testing.T) {
	e := New(nil, matcher.Table{}, nil)

	assert.Equal(t, RodentOrders{Orders: []RodentOrder{}}, e.RodentOrders(All))
	g := e.RevenueByGrade(All)
	assert.Empty(t, g.Grades)
	assert.NotNil(t, g.Grades)

	rar := e.RevenueAtRisk(All)
	assert.Len(t, rar.Breakdown, 4)
	assert.Zero(t, rar.OrderCount)

	b := e.BoroughBreakdown(All)
	assert.Empty(t, b.Boroughs)
	assert.Len(t, b.ViolationCategories, 4)

	s := e.Summary(All)
	assert.Zero(t, s.TotalOrders)
	assert.Empty(t, s.TopWatchlist)
}

func TestMoneyRounding(t *testing.T) {
	assert.Equal(t, 0.13, money(decimal.RequireFromString("0.125")))
	assert.Equal(t, -0.13, money(decimal.RequireFromString("-0.125")))
	assert.Equal(t, 33.33, percentage(decimal.NewFromInt(1), decimal.NewFromInt(3)))
	assert.Equal(t, 0.0, percentage(decimal.NewFromInt(1), decimal.Zero))
}

// randomFixture builds a reproducible order set over a handful of
// restaurants with mixed grades, flags and boroughs.
func randomFixture(seed uint64) ([]model.Order, map[string]model.MappingEntry, []model.InspectionRecord) {
	rng := rand.New(rand.NewPCG(seed, seed*7+1))
	boroughs := []model.Borough{model.BoroughManhattan, model.BoroughBrooklyn, model.BoroughQueens, model.BoroughBronx, ""}
	descriptions := []string{"", "Evidence of mice", "Food not cold held", "Rat activity", "Plumbing not maintained"}
	actions := []string{"Violations were cited", "Establishment Closed by DOHMH", "No violations"}
	grades := []model.Grade{"", model.GradeA, model.GradeB, model.GradeC, model.GradeZ, model.GradeP, model.GradeN}

	mapping := make(map[string]model.MappingEntry)
	var records []model.InspectionRecord
	for i := range 12 {
		camis := fmt.Sprintf("%03d", i)
		mapping[fmt.Sprintf("PLACE %d", i)] = model.MappingEntry{CAMIS: camis, Boro: boroughs[rng.IntN(len(boroughs))]}
		for range rng.IntN(5) {
			records = append(records, model.InspectionRecord{
				CAMIS:                camis,
				Boro:                 boroughs[rng.IntN(len(boroughs))],
				InspectionDate:       date("2023-01-01").AddDate(0, 0, rng.IntN(400)),
				Action:               actions[rng.IntN(len(actions))],
				ViolationDescription: descriptions[rng.IntN(len(descriptions))],
				Critical:             rng.IntN(3) == 0,
				Grade:                grades[rng.IntN(len(grades))],
			})
		}
	}

	orders := make([]model.Order, 200)
	for i := range orders {
		name := fmt.Sprintf("Place %d", rng.IntN(15)) // 12-14 are unmapped
		if rng.IntN(4) == 0 {
			name += " - CLOSED"
		}
		cost := decimal.New(int64(rng.IntN(5000)+1), -2)
		orders[i] = model.Order{OrderID: fmt.Sprint(i), RestaurantName: name, Cost: cost}
	}
	return orders, mapping, records
}

func TestAggregationProperties(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			orders, mapping, records := randomFixture(seed)
			e := newEngine(orders, false, mapping, records)
			s := e.Summary(All)

			// Grade buckets plus ungraded add up to matched revenue.
			g := e.RevenueByGrade(All)
			sum := 0.0
			pct := 0.0
			for _, gr := range g.Grades {
				sum += gr.Revenue
				pct += gr.Percentage
			}
			assert.InDelta(t, s.MatchedRevenue, sum+g.UnmatchedRevenue, 0.01*float64(len(g.Grades)+1))
			if len(g.Grades) > 0 {
				assert.InDelta(t, 100.0, pct, 0.1)
			}

			// Risk totals count each order once.
			rar := e.RevenueAtRisk(All)
			perCategory := 0
			for _, n := range rar.RiskCategories {
				perCategory += n
			}
			assert.LessOrEqual(t, rar.OrderCount, perCategory)
			distinct := 0
			for _, m := range e.selectOrders(All).matched {
				if m.rest.atRisk(RiskClosed) || m.rest.atRisk(RiskGradeC) ||
					m.rest.atRisk(RiskGradePending) || m.rest.atRisk(RiskCriticalViolation) {
					distinct++
				}
			}
			assert.Equal(t, distinct, rar.OrderCount)

			// Watchlist is ordered and only holds flagged restaurants.
			w, err := e.Watchlist(All, 100)
			require.NoError(t, err)
			assert.True(t, sort.SliceIsSorted(w.Restaurants, func(i, j int) bool {
				a, b := w.Restaurants[i], w.Restaurants[j]
				if a.Revenue != b.Revenue {
					return a.Revenue > b.Revenue
				}
				return a.CAMIS < b.CAMIS
			}))
			for _, r := range w.Restaurants {
				assert.NotEmpty(t, r.RiskFlags)
			}

			// Rodent revenue is the cost of orders from rodent restaurants.
			want := decimal.Zero
			for _, m := range e.selectOrders(All).matched {
				for _, rec := range records {
					if rec.CAMIS == m.rest.camis && IsRodent(rec.ViolationDescription) {
						want = want.Add(m.order.Cost)
						break
					}
				}
			}
			assert.Equal(t, money(want), e.RodentOrders(All).TotalRodentRevenue)

			// Boroughs partition matched revenue.
			b := e.BoroughBreakdown(All)
			boroughSum := 0.0
			for _, br := range b.Boroughs {
				boroughSum += br.Revenue
			}
			assert.InDelta(t, s.MatchedRevenue, boroughSum, 0.01*float64(len(b.Boroughs)))

			assert.Equal(t, s.TotalRevenue, round2(s.MatchedRevenue+s.UnmatchedRevenue))
		})
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func TestDeterministicOutput(t *testing.T) {
	orders, mapping, records := randomFixture(42)
	first := newEngine(orders, false, mapping, records)
	second := newEngine(orders, false, mapping, records)

	a, err := json.Marshal(first.Summary(All))
	require.NoError(t, err)
	b, err := json.Marshal(second.Summary(All))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	c, err := json.Marshal(first.BoroughBreakdown(All))
	require.NoError(t, err)
	d, err := json.Marshal(first.BoroughBreakdown(All))
	require.NoError(t, err)
	assert.Equal(t, string(c), string(d))
}

func TestSummaryTopWatchlistCapsAtDefault(t *testing.T) {
	var (
		orders  []model.Order
		records []model.InspectionRecord
	)
	mapping := make(map[string]model.MappingEntry)
	for i := range DefaultTopN + 3 {
		name := fmt.Sprintf("Spot %02d", i)
		camis := fmt.Sprintf("%03d", i)
		orders = append(orders, order(strconv.Itoa(i), name, strconv.Itoa(10+i)))
		mapping[strings.ToUpper(name)] = model.MappingEntry{CAMIS: camis}
		records = append(records, model.InspectionRecord{CAMIS: camis, InspectionDate: date("2024-01-01"), Grade: model.GradeC})
	}
	e := newEngine(orders, false, mapping, records)

	s := e.Summary(All)
	require.Len(t, s.TopWatchlist, DefaultTopN)

	w, err := e.Watchlist(All, DefaultTopN)
	require.NoError(t, err)
	assert.Equal(t, w.Restaurants, s.TopWatchlist)
	assert.Equal(t, "012", s.TopWatchlist[0].CAMIS)
}
