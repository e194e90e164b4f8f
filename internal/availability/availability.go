// Package availability computes whether a menu item is orderable at a
// point in time. The result is derived on every evaluation and never
// cached, because it depends on wall-clock time.
package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"kitchencart/internal/model"
)

// Window is the serving-window view of a menu item.
// StartTime/EndTime are "HH:MM" 24-hour clock strings; both empty means
// the item is served all day and only the static flag applies.
type Window struct {
	Available bool
	StartTime string
	EndTime   string
}

// IsOrderable reports whether an item can be ordered at now.
//
// Rules, in order:
//  1. A closed kitchen makes everything unorderable, regardless of flags.
//  2. Without a serving window, the static availability flag decides.
//  3. With a window, the item is orderable iff the flag is set and now
//     falls within [start, end], compared in minutes since midnight.
//
// Windows with start > end (crossing midnight) are compared as-is and
// therefore never match; the upstream menu data does not use them.
func IsOrderable(w Window, kitchenOpen bool, now time.Time) bool {
	if !kitchenOpen {
		return false
	}
	if w.StartTime == "" || w.EndTime == "" {
		return w.Available
	}

	start, err := parseClock(w.StartTime)
	if err != nil {
		// Malformed window degrades to the static flag
		return w.Available
	}
	end, err := parseClock(w.EndTime)
	if err != nil {
		return w.Available
	}

	current := now.Hour()*60 + now.Minute()
	return w.Available && start <= current && current <= end
}

// AnnotateLines recomputes the Orderable field of every cart line from
// its serving window and the kitchen's open state. Called on each
// response pass; the field is never persisted.
func AnnotateLines(lines []model.CartLine, kitchenOpen bool, now time.Time) {
	for i := range lines {
		lines[i].Orderable = IsOrderable(Window{
			Available: lines[i].Available,
			StartTime: lines[i].StartTime,
			EndTime:   lines[i].EndTime,
		}, kitchenOpen, now)
	}
}

// parseClock converts an "HH:MM" string to minutes since midnight.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("malformed clock string %q", s)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("malformed hours in %q", s)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("malformed minutes in %q", s)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("clock value out of range %q", s)
	}
	return hours*60 + minutes, nil
}
