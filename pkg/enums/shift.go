package enums

// Shift is a fixed plant-local time-of-day bucket.
type Shift string

const (
	ShiftMorning Shift = "Morning"
	ShiftEvening Shift = "Evening"
	ShiftNight   Shift = "Night"
	ShiftUnknown Shift = "Unknown"
)

// Shifts lists the reportable shifts in display order.
var Shifts = []Shift{ShiftMorning, ShiftEvening, ShiftNight}

// TimeRange is the human label for the shift's local hours.
func (s Shift) TimeRange() string {
	switch s {
	case ShiftMorning:
		return "Morning (6:00-14:00)"
	case ShiftEvening:
		return "Evening (14:00-22:00)"
	case ShiftNight:
		return "Night (22:00-6:00)"
	default:
		return "Unknown"
	}
}

func (s Shift) IsValid() bool {
	for _, candidate := range Shifts {
		if candidate == s {
			return true
		}
	}
	return false
}
