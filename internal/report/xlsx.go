package report

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// WriteXLSX renders r as a workbook with one sheet per query.
func (r *Report) WriteXLSX(w io.Writer) error {
	f := xlsx.NewFile()

	sheets := []struct {
		name string
		fill func(*xlsx.Sheet)
	}{
		{"Summary", r.summarySheet},
		{"Grades", r.gradeSheet},
		{"Revenue at Risk", r.riskSheet},
		{"Boroughs", r.boroughSheet},
		{"Watchlist", r.watchlistSheet},
		{"Rodent Orders", r.rodentSheet},
	}
	for _, s := range sheets {
		sheet, err := f.AddSheet(s.name)
		if err != nil {
			return eris.Wrapf(err, "report: add sheet %s", s.name)
		}
		s.fill(sheet)
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write xlsx")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values ...any) {
	row := sheet.AddRow()
	for _, v := range values {
		cell := row.AddCell()
		switch v := v.(type) {
		case string:
			cell.SetString(v)
		case int:
			cell.SetInt(v)
		case float64:
			cell.SetFloat(v)
		case nil:
		default:
			cell.SetValue(v)
		}
	}
}

func (r *Report) summarySheet(sheet *xlsx.Sheet) {
	s := r.Summary
	addRow(sheet, "Metric", "Value")
	addRow(sheet, "Window", windowLabel(r.Window))
	addRow(sheet, "Generated at", r.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"))
	addRow(sheet, "Total orders", s.TotalOrders)
	addRow(sheet, "Total revenue", s.TotalRevenue)
	addRow(sheet, "Matched orders", s.MatchedOrders)
	addRow(sheet, "Matched revenue", s.MatchedRevenue)
	addRow(sheet, "Unmatched orders", s.UnmatchedOrders)
	addRow(sheet, "Unmatched revenue", s.UnmatchedRevenue)
	addRow(sheet, "Rodent revenue", s.RodentRevenue)
	addRow(sheet, "Rodent orders", s.RodentOrderCount)
	addRow(sheet, "Rodent restaurants", s.RodentRestaurantCount)
	addRow(sheet, "Revenue at risk", s.RevenueAtRisk)
	addRow(sheet, "Orders at risk", s.RiskOrderCount)
}

func (r *Report) gradeSheet(sheet *xlsx.Sheet) {
	addRow(sheet, "Grade", "Revenue", "Orders", "Percentage")
	for _, g := range r.RevenueByGrade.Grades {
		addRow(sheet, string(g.Grade), g.Revenue, g.OrderCount, g.Percentage)
	}
	addRow(sheet, "Ungraded", r.RevenueByGrade.UnmatchedRevenue, r.RevenueByGrade.UnmatchedOrderCount)
	addRow(sheet, "No mapping", r.RevenueByGrade.UnresolvedRevenue, r.RevenueByGrade.UnresolvedOrderCount)
}

func (r *Report) riskSheet(sheet *xlsx.Sheet) {
	addRow(sheet, "Category", "Revenue", "Orders")
	for _, key := range riskOrder {
		addRow(sheet, key, r.RevenueAtRisk.Breakdown[key], r.RevenueAtRisk.RiskCategories[key])
	}
	addRow(sheet, "Total (deduplicated)", r.RevenueAtRisk.TotalRevenueAtRisk, r.RevenueAtRisk.OrderCount)
}

func (r *Report) boroughSheet(sheet *xlsx.Sheet) {
	addRow(sheet, "Borough", "Revenue", "Orders", "Percentage", "Top violation category")
	for _, b := range r.BoroughBreakdown.Boroughs {
		top := ""
		if b.TopViolationCategory != nil {
			top = *b.TopViolationCategory
		}
		addRow(sheet, string(b.Borough), b.Revenue, b.OrderCount, b.Percentage, top)
	}
}

func (r *Report) watchlistSheet(sheet *xlsx.Sheet) {
	addRow(sheet, "Rank", "Restaurant", "CAMIS", "Revenue", "Orders", "Latest grade",
		"Critical violations", "Rodent violations", "Last inspection", "Risk flags")
	for _, e := range r.Watchlist.Restaurants {
		grade, last := "", ""
		if e.LatestGrade != nil {
			grade = string(*e.LatestGrade)
		}
		if e.LastInspectionDate != nil {
			last = *e.LastInspectionDate
		}
		addRow(sheet, e.Rank, e.RestaurantName, e.CAMIS, e.Revenue, e.OrderCount, grade,
			e.CriticalViolations, e.RodentViolations, last, strings.Join(e.RiskFlags, "; "))
	}
}

func (r *Report) rodentSheet(sheet *xlsx.Sheet) {
	addRow(sheet, "Order", "Restaurant", "Cost", "Violation", "Inspection date", "CAMIS")
	for _, o := range r.RodentOrders.Orders {
		date := ""
		if o.InspectionDate != nil {
			date = *o.InspectionDate
		}
		addRow(sheet, o.OrderID, o.RestaurantName, o.Cost, o.ViolationDescription, date, o.CAMIS)
	}
}
