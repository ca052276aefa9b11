package crawl

import (
	"fmt"
	"time"
)

// Window is a closed civil date range [Start, End] used as one request unit.
type Window struct {
	Start time.Time
	End   time.Time
}

// String renders the window for logs.
func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}

// Days counts the inclusive span.
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// windowsBetween splits [start, end] into consecutive windows at most maxDays
// apart (maxDays+1 civil days inclusive). start and end are civil dates at
// UTC midnight; an inverted range yields nothing.
func windowsBetween(start, end time.Time, maxDays int) []Window {
	var windows []Window
	cur := start
	for !cur.After(end) {
		wEnd := cur.AddDate(0, 0, maxDays)
		if wEnd.After(end) {
			wEnd = end
		}
		windows = append(windows, Window{Start: cur, End: wEnd})
		cur = wEnd.AddDate(0, 0, 1)
	}
	return windows
}

// civilDate truncates t to its UTC calendar date.
func civilDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
