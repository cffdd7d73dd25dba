// Package shift maps instants to the plant's fixed working shifts.
package shift

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/angelmondragon/containerflow/pkg/enums"
)

// DefaultTimezone is the plant's civil timezone.
const DefaultTimezone = "Europe/Prague"

const (
	morningStart = 6
	eveningStart = 14
	nightStart   = 22
)

// Classifier buckets instants by local clock hour in a fixed timezone.
type Classifier struct {
	loc *time.Location
}

// New loads the named IANA timezone. An empty name selects DefaultTimezone.
func New(timezone string) (*Classifier, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Classifier{loc: loc}, nil
}

// NewForLocation wraps an already resolved location.
func NewForLocation(loc *time.Location) *Classifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Classifier{loc: loc}
}

// Location is the timezone used for classification and local display.
func (c *Classifier) Location() *time.Location {
	return c.loc
}

// Local converts t to plant civil time.
func (c *Classifier) Local(t time.Time) time.Time {
	return t.In(c.loc)
}

// Of returns the shift for t. The zero time maps to ShiftUnknown.
func (c *Classifier) Of(t time.Time) enums.Shift {
	if t.IsZero() {
		return enums.ShiftUnknown
	}
	return ForHour(t.In(c.loc).Hour())
}

// Day is the plant-local calendar date of t as YYYY-MM-DD.
func (c *Classifier) Day(t time.Time) string {
	return t.In(c.loc).Format(time.DateOnly)
}

// ForHour buckets a local clock hour (0-23).
func ForHour(hour int) enums.Shift {
	switch {
	case hour >= morningStart && hour < eveningStart:
		return enums.ShiftMorning
	case hour >= eveningStart && hour < nightStart:
		return enums.ShiftEvening
	default:
		return enums.ShiftNight
	}
}
