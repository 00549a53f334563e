// Package orders loads the food-delivery order table.
package orders

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/orderrisk/internal/fetcher"
	"github.com/sells-group/orderrisk/internal/model"
)

// Opener resolves an order source (path or URL) to a reader.
type Opener interface {
	Open(ctx context.Context, source string) (io.ReadCloser, error)
}

// RequiredColumns must all be present in the order header.
var RequiredColumns = []string{
	"order_id", "customer_id", "restaurant_name", "cuisine_type",
	"cost_of_the_order", "day_of_the_week", "rating",
	"food_preparation_time", "delivery_time",
}

const dateColumn = "order_date"

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"01/02/2006",
}

// Load opens source and parses it. Any failure to produce an order table is
// reported as model.ErrDataUnavailable.
func Load(ctx context.Context, opener Opener, source string) (*model.OrderSet, error) {
	rc, err := opener.Open(ctx, source)
	if err != nil {
		return nil, model.Unavailable(err, "orders: open "+source)
	}
	defer rc.Close() //nolint:errcheck

	set, err := Parse(ctx, rc)
	if err != nil {
		return nil, model.Unavailable(err, "orders: parse "+source)
	}

	zap.L().Info("orders: loaded",
		zap.String("source", source),
		zap.Int("orders", set.Len()),
		zap.Bool("has_dates", set.HasDates),
	)
	return set, nil
}

// Parse reads an order CSV. Rows whose cost is missing, non-numeric or
// negative are dropped with a warning; a missing required column is an error.
func Parse(ctx context.Context, r io.Reader) (*model.OrderSet, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{LazyQuotes: true})

	header, ok := <-rowCh
	if !ok {
		if err := <-errCh; err != nil {
			return nil, err
		}
		return nil, eris.New("orders: empty input")
	}
	cols := fetcher.HeaderIndex(header)
	if err := checkColumns(cols); err != nil {
		return nil, err
	}
	_, hasDates := cols[dateColumn]

	set := &model.OrderSet{HasDates: hasDates}
	var dropped, badDates int
	for row := range rowCh {
		o, ok := parseRow(row, cols)
		if !ok {
			dropped++
			continue
		}
		if hasDates {
			raw := getCol(row, cols, dateColumn)
			if d, ok := parseDate(raw); ok {
				o.OrderDate = &d
			} else if raw != "" {
				badDates++
			}
		}
		set.Orders = append(set.Orders, o)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}

	if dropped > 0 {
		zap.L().Warn("orders: dropped rows with invalid cost", zap.Int("rows", dropped))
	}
	if badDates > 0 {
		zap.L().Warn("orders: unparseable order_date, treated as undated", zap.Int("rows", badDates))
	}
	return set, nil
}

func checkColumns(cols map[string]int) error {
	var missing []string
	for _, c := range RequiredColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("orders: missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

func parseRow(row []string, cols map[string]int) (model.Order, bool) {
	cost, err := decimal.NewFromString(getCol(row, cols, "cost_of_the_order"))
	if err != nil || cost.IsNegative() {
		return model.Order{}, false
	}

	o := model.Order{
		OrderID:         getCol(row, cols, "order_id"),
		CustomerID:      getCol(row, cols, "customer_id"),
		RestaurantName:  strings.TrimSpace(trimQuotes(getCol(row, cols, "restaurant_name"))),
		CuisineType:     getCol(row, cols, "cuisine_type"),
		Cost:            cost,
		DayOfWeek:       getCol(row, cols, "day_of_the_week"),
		PrepMinutes:     parseIntOr(getCol(row, cols, "food_preparation_time"), 0),
		DeliveryMinutes: parseIntOr(getCol(row, cols, "delivery_time"), 0),
	}
	if v, err := strconv.Atoi(getCol(row, cols, "rating")); err == nil {
		o.Rating = &v
	}
	return o, true
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// getCol returns the trimmed value of a named column, or "" when the column
// is absent or the row is short.
func getCol(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func trimQuotes(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

func parseIntOr(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
