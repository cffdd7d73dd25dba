package shift

import (
	"testing"
	"time"

	"github.com/angelmondragon/containerflow/pkg/enums"
)

func TestClassifierPragueVectors(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []struct {
		utc  string
		want enums.Shift
	}{
		{utc: "2024-01-15T05:00:00Z", want: enums.ShiftMorning},
		{utc: "2024-01-15T13:00:00Z", want: enums.ShiftEvening},
		{utc: "2024-01-15T21:00:00Z", want: enums.ShiftNight},
		{utc: "2024-07-15T04:00:00Z", want: enums.ShiftMorning},
		{utc: "2024-01-15T04:59:59Z", want: enums.ShiftNight},
		{utc: "2024-07-15T03:59:59Z", want: enums.ShiftNight},
		{utc: "2024-07-15T12:00:00Z", want: enums.ShiftEvening},
		{utc: "2024-07-15T19:59:00Z", want: enums.ShiftEvening},
		{utc: "2024-07-15T20:00:00Z", want: enums.ShiftNight},
	}
	for _, tc := range cases {
		ts, err := time.Parse(time.RFC3339, tc.utc)
		if err != nil {
			t.Fatalf("parse %s: %v", tc.utc, err)
		}
		if got := c.Of(ts); got != tc.want {
			t.Fatalf("Of(%s) = %s, want %s", tc.utc, got, tc.want)
		}
	}
}

func TestClassifierZeroTime(t *testing.T) {
	c := NewForLocation(nil)
	if got := c.Of(time.Time{}); got != enums.ShiftUnknown {
		t.Fatalf("expected unknown for zero time, got %s", got)
	}
}

func TestForHourIsTotal(t *testing.T) {
	counts := map[enums.Shift]int{}
	for h := 0; h < 24; h++ {
		counts[ForHour(h)]++
	}
	if counts[enums.ShiftMorning] != 8 || counts[enums.ShiftEvening] != 8 || counts[enums.ShiftNight] != 8 {
		t.Fatalf("unexpected hour distribution %v", counts)
	}
}

func TestDayUsesLocalCalendar(t *testing.T) {
	c, err := New(DefaultTimezone)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// 23:30 UTC on Jan 15 is already Jan 16 in Prague.
	ts := time.Date(2024, 1, 15, 23, 30, 0, 0, time.UTC)
	if got := c.Day(ts); got != "2024-01-16" {
		t.Fatalf("expected 2024-01-16, got %s", got)
	}
}

func TestNewRejectsUnknownZone(t *testing.T) {
	if _, err := New("Nowhere/Land"); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}
