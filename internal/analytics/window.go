package analytics

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/orderrisk/internal/model"
)

const dateLayout = time.DateOnly

// Window is an inclusive range of calendar days. A zero Start or End leaves
// that side open; the zero Window admits every order.
type Window struct {
	Start time.Time
	End   time.Time
}

// All is the unbounded window.
var All = Window{}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewWindow returns the window [start, end]. start after end is an invalid
// parameter.
func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: day(start), End: day(end)}
	if w.Start.After(w.End) {
		return Window{}, eris.Wrapf(model.ErrInvalidParameter,
			"start %s is after end %s", w.Start.Format(dateLayout), w.End.Format(dateLayout))
	}
	return w, nil
}

// LastDays returns the window of the days calendar days ending on now's date.
func LastDays(now time.Time, days int) (Window, error) {
	if days < 1 {
		return Window{}, eris.Wrapf(model.ErrInvalidParameter, "days must be >= 1, got %d", days)
	}
	end := day(now)
	return Window{Start: end.AddDate(0, 0, -(days - 1)), End: end}, nil
}

// ParseWindow builds a window from query parameters: either days, or both
// start and end as YYYY-MM-DD. With neither, defaultDays ending at now is
// used.
func ParseWindow(now time.Time, days, start, end string, defaultDays int) (Window, error) {
	days, start, end = strings.TrimSpace(days), strings.TrimSpace(start), strings.TrimSpace(end)

	switch {
	case days != "" && (start != "" || end != ""):
		return Window{}, eris.Wrap(model.ErrInvalidParameter, "use either days or start/end, not both")
	case days != "":
		n, err := strconv.Atoi(days)
		if err != nil {
			return Window{}, eris.Wrapf(model.ErrInvalidParameter, "days %q is not an integer", days)
		}
		return LastDays(now, n)
	case start != "" || end != "":
		if start == "" || end == "" {
			return Window{}, eris.Wrap(model.ErrInvalidParameter, "start and end must be given together")
		}
		s, err := time.Parse(dateLayout, start)
		if err != nil {
			return Window{}, eris.Wrapf(model.ErrInvalidParameter, "start %q is not YYYY-MM-DD", start)
		}
		e, err := time.Parse(dateLayout, end)
		if err != nil {
			return Window{}, eris.Wrapf(model.ErrInvalidParameter, "end %q is not YYYY-MM-DD", end)
		}
		return NewWindow(s, e)
	default:
		return LastDays(now, defaultDays)
	}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	d := day(t)
	if !w.Start.IsZero() && d.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && d.After(w.End) {
		return false
	}
	return true
}

// Days returns the number of calendar days covered, or 0 for an open window.
func (w Window) Days() int {
	if w.Start.IsZero() || w.End.IsZero() {
		return 0
	}
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// MarshalJSON writes {"start": "YYYY-MM-DD"|null, "end": ...}.
func (w Window) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Start *string `json:"start"`
		End   *string `json:"end"`
	}{dateString(w.Start), dateString(w.End)})
}

func dateString(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}
