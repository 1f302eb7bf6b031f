package analytics

import (
	"fmt"
	"strings"
	"time"

	appErrors "github.com/hamdibenjarrar/DinarWise/customErrors"
)

type RangeKind string

const (
	Week  RangeKind = "week"
	Month RangeKind = "month"
	Year  RangeKind = "year"
	All   RangeKind = "all"
)

type Granularity string

const (
	Daily   Granularity = "day"
	Monthly Granularity = "month"
)

// ParseRange validates a user-supplied range. An empty value means month.
func ParseRange(s string) (RangeKind, error) {
	switch kind := RangeKind(strings.ToLower(strings.TrimSpace(s))); kind {
	case "":
		return Month, nil
	case Week, Month, Year, All:
		return kind, nil
	default:
		return "", appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("invalid range '%s', must be week, month, year or all", s),
		}
	}
}

// Window is an inclusive calendar interval with the bucket size used for charts.
// Start is the first instant of the first day; End the last instant of the last day.
type Window struct {
	Kind        RangeKind   `json:"range"`
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end"`
	Granularity Granularity `json:"granularity"`
}

// ResolveWindow returns the window of kind that contains now, in now's location.
// Unknown kinds resolve like All.
func ResolveWindow(kind RangeKind, now time.Time) Window {
	today := startOfDay(now)

	switch kind {
	case Week:
		offset := (int(today.Weekday()) + 6) % 7
		start := today.AddDate(0, 0, -offset)
		return Window{Kind: Week, Start: start, End: endOfDay(start.AddDate(0, 0, 6)), Granularity: Daily}
	case Month:
		start := startOfMonth(now)
		return Window{Kind: Month, Start: start, End: endOfDay(start.AddDate(0, 1, -1)), Granularity: Daily}
	case Year:
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		return Window{Kind: Year, Start: start, End: endOfDay(start.AddDate(1, 0, -1)), Granularity: Monthly}
	default:
		// the month one year back through the current month: 13 monthly buckets
		start := startOfMonth(now).AddDate(-1, 0, 0)
		end := endOfDay(startOfMonth(now).AddDate(0, 1, -1))
		return Window{Kind: All, Start: start, End: end, Granularity: Monthly}
	}
}

// Contains reports whether t falls inside the window, ignoring time of day.
func (w Window) Contains(t time.Time) bool {
	d := startOfDay(t.In(w.Start.Location()))
	return !d.Before(w.Start) && !d.After(startOfDay(w.End))
}

// Buckets returns the start of every bucket in chronological order.
func (w Window) Buckets() []time.Time {
	var out []time.Time
	if w.Granularity == Monthly {
		for m := startOfMonth(w.Start); !m.After(w.End); m = m.AddDate(0, 1, 0) {
			out = append(out, m)
		}
		return out
	}
	for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// bucketKey maps t to the start of the bucket that holds it.
func (w Window) bucketKey(t time.Time) time.Time {
	t = t.In(w.Start.Location())
	if w.Granularity == Monthly {
		return startOfMonth(t)
	}
	return startOfDay(t)
}

// NominalDays is the fixed day count used for daily averages: 7 for a week,
// the length of the month for a month and 365 otherwise.
func NominalDays(w Window) int {
	switch w.Kind {
	case Week:
		return 7
	case Month:
		return startOfMonth(w.Start).AddDate(0, 1, -1).Day()
	default:
		return 365
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
