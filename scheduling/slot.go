package scheduling

import (
	"time"

	"github.com/ridgeline-services/crm-server/cmd/models"
)

// Config carries the slot grid settings. The defaults match the booking
// rules used by the dashboard: appointments start on a 30-minute grid and
// run for one hour, within office hours.
type Config struct {
	GridMinutes     int
	DurationMinutes int
	DayStartHour    int
	DayEndHour      int
}

func DefaultConfig() Config {
	return Config{
		GridMinutes:     30,
		DurationMinutes: 60,
		DayStartHour:    8,
		DayEndHour:      18,
	}
}

func (c Config) grid() time.Duration {
	if c.GridMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.GridMinutes) * time.Minute
}

func (c Config) duration() time.Duration {
	if c.DurationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.DurationMinutes) * time.Minute
}

// RoundToGrid floors an instant to the most recent grid boundary, zeroing
// seconds and sub-seconds. Rounding is always downward so a user-entered
// time is never pushed into a later slot. Idempotent.
func (c Config) RoundToGrid(t time.Time) time.Time {
	t = t.UTC()
	grid := c.GridMinutes
	if grid <= 0 {
		grid = 30
	}
	minute := t.Minute() - t.Minute()%grid
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, time.UTC)
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two half-open intervals intersect. Touching
// endpoints do not overlap: [13:00,14:00) and [14:00,15:00) are compatible.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// DeriveSlot produces the fixed-duration slot starting at a grid-aligned
// instant. Callers are expected to round first.
func (c Config) DeriveSlot(start time.Time) Interval {
	return Interval{Start: start, End: start.Add(c.duration())}
}

// IsAvailable checks a candidate slot against the scheduled appointments.
// excludeID skips one appointment so a reschedule never conflicts with
// itself; pass 0 when creating. Cancelled and completed appointments must
// already be filtered out of existing.
func IsAvailable(candidate Interval, existing []models.Appointment, excludeID uint) bool {
	for _, appt := range existing {
		if excludeID != 0 && appt.ID == excludeID {
			continue
		}
		if candidate.Overlaps(Interval{Start: appt.StartTime, End: appt.EndTime}) {
			return false
		}
	}
	return true
}

// FreeSlots lists the open slots on a given day within office hours,
// stepping the grid and skipping starts already in the past.
func (c Config) FreeSlots(day time.Time, existing []models.Appointment, now time.Time) []Interval {
	day = day.UTC()
	windowStart := time.Date(day.Year(), day.Month(), day.Day(), c.DayStartHour, 0, 0, 0, time.UTC)
	windowEnd := time.Date(day.Year(), day.Month(), day.Day(), c.DayEndHour, 0, 0, 0, time.UTC)

	var slots []Interval
	for t := windowStart; !t.Add(c.duration()).After(windowEnd); t = t.Add(c.grid()) {
		if t.Before(now) {
			continue
		}
		slot := c.DeriveSlot(t)
		if IsAvailable(slot, existing, 0) {
			slots = append(slots, slot)
		}
	}
	return slots
}
