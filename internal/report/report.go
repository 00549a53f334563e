// Package report bundles every analytics query into one document and renders
// it as JSON, PDF or XLSX.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/orderrisk/internal/analytics"
	"github.com/sells-group/orderrisk/internal/model"
)

// Analyzer is the query surface a report is assembled from.
type Analyzer interface {
	Summary(w analytics.Window) analytics.Summary
	RodentOrders(w analytics.Window) analytics.RodentOrders
	RevenueByGrade(w analytics.Window) analytics.RevenueByGrade
	RevenueAtRisk(w analytics.Window) analytics.RevenueAtRisk
	BoroughBreakdown(w analytics.Window) analytics.BoroughBreakdown
	Watchlist(w analytics.Window, topN int) (analytics.Watchlist, error)
}

// Report is the composite of all analytics for one window.
type Report struct {
	Window           analytics.Window           `json:"window"`
	GeneratedAt      time.Time                  `json:"generated_at"`
	Summary          analytics.Summary          `json:"summary"`
	RodentOrders     analytics.RodentOrders     `json:"rodent_orders"`
	RevenueByGrade   analytics.RevenueByGrade   `json:"revenue_by_grade"`
	RevenueAtRisk    analytics.RevenueAtRisk    `json:"revenue_at_risk"`
	BoroughBreakdown analytics.BoroughBreakdown `json:"borough_breakdown"`
	Watchlist        analytics.Watchlist        `json:"watchlist"`
}

// Assemble runs every query for w. generatedAt is stamped on the report
// only; the analytics never see it.
func Assemble(a Analyzer, w analytics.Window, topN int, generatedAt time.Time) (*Report, error) {
	watch, err := a.Watchlist(w, topN)
	if err != nil {
		return nil, err
	}
	return &Report{
		Window:           w,
		GeneratedAt:      generatedAt.UTC(),
		Summary:          a.Summary(w),
		RodentOrders:     a.RodentOrders(w),
		RevenueByGrade:   a.RevenueByGrade(w),
		RevenueAtRisk:    a.RevenueAtRisk(w),
		BoroughBreakdown: a.BoroughBreakdown(w),
		Watchlist:        watch,
	}, nil
}

// Format is an export format.
type Format string

// Export formats.
const (
	FormatJSON Format = "json"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJSON, FormatPDF, FormatXLSX:
		return f, nil
	}
	return "", eris.Wrapf(model.ErrInvalidParameter, "unknown report format %q", s)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/json"
}

// Filename is the download name for a report covering days days.
func Filename(days int, f Format) string {
	return fmt.Sprintf("rat_challenge_report_%ddays.%s", days, f)
}

// Write renders r in format f.
func (r *Report) Write(w io.Writer, f Format) error {
	switch f {
	case FormatJSON:
		return r.WriteJSON(w)
	case FormatPDF:
		return r.WritePDF(w)
	case FormatXLSX:
		return r.WriteXLSX(w)
	}
	return eris.Wrapf(model.ErrInvalidParameter, "unknown report format %q", f)
}

// WriteJSON writes r as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return eris.Wrap(err, "report: encode json")
	}
	return nil
}
