package availability

import (
	"testing"
	"time"

	"kitchencart/internal/model"
)

// at builds a wall-clock time for a given HH:MM on an arbitrary day.
func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 14, hour, minute, 0, 0, time.UTC)
}

func TestIsOrderable_WindowBoundaries(t *testing.T) {
	window := Window{Available: true, StartTime: "09:00", EndTime: "11:00"}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before window", at(8, 59), false},
		{"at window start", at(9, 0), true},
		{"inside window", at(10, 59), true},
		{"at window end", at(11, 0), true},
		{"after window", at(11, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsOrderable(window, true, tt.now)
			if got != tt.want {
				t.Errorf("IsOrderable(%s) = %v, want %v", tt.now.Format("15:04"), got, tt.want)
			}
		})
	}
}

func TestIsOrderable_ClosedKitchenWins(t *testing.T) {
	window := Window{Available: true, StartTime: "09:00", EndTime: "11:00"}
	if IsOrderable(window, false, at(10, 0)) {
		t.Error("closed kitchen should make item unorderable regardless of window")
	}
	if IsOrderable(Window{Available: true}, false, at(10, 0)) {
		t.Error("closed kitchen should override the static flag too")
	}
}

func TestIsOrderable_NoWindowUsesFlag(t *testing.T) {
	if !IsOrderable(Window{Available: true}, true, at(3, 0)) {
		t.Error("available item without window should be orderable")
	}
	if IsOrderable(Window{Available: false}, true, at(12, 0)) {
		t.Error("unavailable item without window should not be orderable")
	}
	// Only one bound set is treated as no window
	if !IsOrderable(Window{Available: true, StartTime: "09:00"}, true, at(3, 0)) {
		t.Error("window with missing end should fall back to the flag")
	}
}

func TestIsOrderable_FlagFalseInsideWindow(t *testing.T) {
	window := Window{Available: false, StartTime: "09:00", EndTime: "11:00"}
	if IsOrderable(window, true, at(10, 0)) {
		t.Error("flagged-off item should not be orderable inside its window")
	}
}

func TestIsOrderable_MidnightCrossingNeverMatches(t *testing.T) {
	// start > end is compared as-is: no wraparound
	window := Window{Available: true, StartTime: "22:00", EndTime: "02:00"}
	for _, now := range []time.Time{at(23, 0), at(1, 0), at(12, 0)} {
		if IsOrderable(window, true, now) {
			t.Errorf("midnight-crossing window matched at %s", now.Format("15:04"))
		}
	}
}

func TestIsOrderable_MalformedWindowFallsBackToFlag(t *testing.T) {
	tests := []struct {
		name   string
		window Window
		want   bool
	}{
		{"garbage start", Window{Available: true, StartTime: "late", EndTime: "11:00"}, true},
		{"garbage end", Window{Available: true, StartTime: "09:00", EndTime: "early"}, true},
		{"out of range", Window{Available: true, StartTime: "25:00", EndTime: "26:00"}, true},
		{"garbage and flag off", Window{Available: false, StartTime: "??", EndTime: "!!"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsOrderable(tt.window, true, at(10, 0))
			if got != tt.want {
				t.Errorf("IsOrderable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnnotateLines(t *testing.T) {
	lines := []model.CartLine{
		{ItemID: "breakfast", Available: true, StartTime: "06:00", EndTime: "10:30"},
		{ItemID: "all-day", Available: true},
		{ItemID: "disabled", Available: false},
	}

	AnnotateLines(lines, true, at(9, 0))

	if !lines[0].Orderable {
		t.Error("breakfast item should be orderable at 09:00")
	}
	if !lines[1].Orderable {
		t.Error("all-day item should be orderable")
	}
	if lines[2].Orderable {
		t.Error("disabled item should not be orderable")
	}

	// Re-annotating later in the day flips the windowed item
	AnnotateLines(lines, true, at(14, 0))
	if lines[0].Orderable {
		t.Error("breakfast item should not be orderable at 14:00")
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:00", 540, false},
		{"23:59", 1439, false},
		{"9:30", 570, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := parseClock(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseClock(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("parseClock(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
