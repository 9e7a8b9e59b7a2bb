package statistics

import (
	"fmt"
	"time"
)

// TimeFilter names a calendar window relative to "now"
type TimeFilter string

const (
	FilterDay   TimeFilter = "day"
	FilterWeek  TimeFilter = "week"
	FilterMonth TimeFilter = "month"
	FilterYear  TimeFilter = "year"
	FilterAll   TimeFilter = "all"
)

// ParseTimeFilter validates a filter coming from a query string
func ParseTimeFilter(s string) (TimeFilter, error) {
	switch f := TimeFilter(s); f {
	case FilterDay, FilterWeek, FilterMonth, FilterYear, FilterAll:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown time filter %q", ErrInvalidInput, s)
}

// Window is a half-open [Start, End) interval. An unbounded window admits every date.
type Window struct {
	Start   time.Time
	End     time.Time
	Bounded bool
}

// Unbounded returns the window used by FilterAll
func Unbounded() Window {
	return Window{}
}

// NewWindow builds a bounded window; end must be after start.
func NewWindow(start, end time.Time) (Window, error) {
	if !end.After(start) {
		return Window{}, fmt.Errorf("%w: window end %s is not after start %s",
			ErrInvalidInput, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Window{Start: start, End: end, Bounded: true}, nil
}

// WindowFor maps a filter onto the calendar period containing now, in now's location.
// Weeks start on Monday.
func WindowFor(filter TimeFilter, now time.Time) (Window, error) {
	y, m, d := now.Date()
	loc := now.Location()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)

	switch filter {
	case FilterDay:
		return NewWindow(today, today.AddDate(0, 0, 1))
	case FilterWeek:
		offset := (int(today.Weekday()) + 6) % 7
		start := today.AddDate(0, 0, -offset)
		return NewWindow(start, start.AddDate(0, 0, 7))
	case FilterMonth:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return NewWindow(start, start.AddDate(0, 1, 0))
	case FilterYear:
		start := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		return NewWindow(start, start.AddDate(1, 0, 0))
	case FilterAll:
		return Unbounded(), nil
	}
	return Window{}, fmt.Errorf("%w: unknown time filter %q", ErrInvalidInput, filter)
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	if !w.Bounded {
		return true
	}
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w Window) validate() error {
	if w.Bounded && !w.End.After(w.Start) {
		return fmt.Errorf("%w: window end is not after start", ErrInvalidInput)
	}
	return nil
}
