package scheduling

import (
	"testing"
	"time"

	"github.com/ridgeline-services/crm-server/cmd/models"
)

func TestRoundToGrid_Floors(t *testing.T) {
	cfg := DefaultConfig()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		in   time.Time
		want time.Time
	}{
		{day.Add(13*time.Hour + 17*time.Minute), day.Add(13 * time.Hour)},
		{day.Add(13*time.Hour + 31*time.Minute), day.Add(13*time.Hour + 30*time.Minute)},
		{day.Add(1*time.Hour + 15*time.Minute), day.Add(1 * time.Hour)},
		{day.Add(1*time.Hour + 44*time.Minute), day.Add(1*time.Hour + 30*time.Minute)},
		{day.Add(1 * time.Hour), day.Add(1 * time.Hour)},
		{day.Add(9*time.Hour + 59*time.Minute + 59*time.Second), day.Add(9*time.Hour + 30*time.Minute)},
	}

	for _, tc := range cases {
		got := cfg.RoundToGrid(tc.in)
		if !got.Equal(tc.want) {
			t.Errorf("RoundToGrid(%s) = %s, want %s", tc.in.Format(time.RFC3339), got.Format(time.RFC3339), tc.want.Format(time.RFC3339))
		}
	}
}

func TestRoundToGrid_Idempotent(t *testing.T) {
	cfg := DefaultConfig()
	in := time.Date(2026, 3, 10, 13, 17, 42, 123456789, time.UTC)

	once := cfg.RoundToGrid(in)
	twice := cfg.RoundToGrid(once)
	if !once.Equal(twice) {
		t.Fatalf("rounding twice changed the result: %s vs %s", once, twice)
	}
	if once.After(in) {
		t.Fatalf("rounded time %s is after input %s", once, in)
	}
	if in.Sub(once) >= 30*time.Minute {
		t.Fatalf("rounded time %s is more than a grid step before input %s", once, in)
	}
}

func TestRoundToGrid_CustomGrid(t *testing.T) {
	cfg := Config{GridMinutes: 15, DurationMinutes: 45}
	in := time.Date(2026, 3, 10, 13, 52, 0, 0, time.UTC)

	got := cfg.RoundToGrid(in)
	want := time.Date(2026, 3, 10, 13, 45, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("RoundToGrid on 15-minute grid = %s, want %s", got, want)
	}
}

func TestDeriveSlot_FixedDuration(t *testing.T) {
	cfg := DefaultConfig()
	start := time.Date(2026, 3, 10, 13, 30, 0, 0, time.UTC)

	slot := cfg.DeriveSlot(start)
	if !slot.Start.Equal(start) {
		t.Fatalf("slot start moved: %s", slot.Start)
	}
	if slot.End.Sub(slot.Start) != time.Hour {
		t.Fatalf("slot duration = %s, want 1h", slot.End.Sub(slot.Start))
	}
}

func TestIntervalOverlaps(t *testing.T) {
	at := func(h, m int) time.Time {
		return time.Date(2026, 3, 10, h, m, 0, 0, time.UTC)
	}

	cases := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"identical", Interval{at(13, 0), at(14, 0)}, Interval{at(13, 0), at(14, 0)}, true},
		{"partial", Interval{at(13, 0), at(14, 0)}, Interval{at(13, 30), at(14, 30)}, true},
		{"contained", Interval{at(13, 0), at(15, 0)}, Interval{at(13, 30), at(14, 0)}, true},
		{"touching end to start", Interval{at(13, 0), at(14, 0)}, Interval{at(14, 0), at(15, 0)}, false},
		{"touching start to end", Interval{at(14, 0), at(15, 0)}, Interval{at(13, 0), at(14, 0)}, false},
		{"disjoint", Interval{at(9, 0), at(10, 0)}, Interval{at(14, 0), at(15, 0)}, false},
	}

	for _, tc := range cases {
		if got := tc.a.Overlaps(tc.b); got != tc.want {
			t.Errorf("%s: Overlaps = %v, want %v", tc.name, got, tc.want)
		}
		if got := tc.b.Overlaps(tc.a); got != tc.want {
			t.Errorf("%s (reversed): Overlaps = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsAvailable(t *testing.T) {
	at := func(h, m int) time.Time {
		return time.Date(2026, 3, 10, h, m, 0, 0, time.UTC)
	}
	existing := []models.Appointment{
		{StartTime: at(9, 0), EndTime: at(10, 0), Status: models.AppointmentStatusScheduled},
	}
	existing[0].ID = 7

	if IsAvailable(Interval{at(9, 30), at(10, 30)}, existing, 0) {
		t.Fatal("overlapping candidate reported available")
	}
	if !IsAvailable(Interval{at(10, 0), at(11, 0)}, existing, 0) {
		t.Fatal("back-to-back candidate reported unavailable")
	}
	// An appointment never conflicts with itself during a reschedule.
	if !IsAvailable(Interval{at(9, 30), at(10, 30)}, existing, 7) {
		t.Fatal("excluded appointment still blocked its own reschedule")
	}
}

func TestFreeSlots(t *testing.T) {
	cfg := Config{GridMinutes: 30, DurationMinutes: 60, DayStartHour: 9, DayEndHour: 12}
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time {
		return time.Date(2026, 3, 10, h, m, 0, 0, time.UTC)
	}

	booked := []models.Appointment{
		{StartTime: at(9, 30), EndTime: at(10, 30), Status: models.AppointmentStatusScheduled},
	}

	slots := cfg.FreeSlots(day, booked, day)
	// Window 09:00-12:00, 1h slots on a 30m grid: 09:00, 09:30, 10:00,
	// 10:30, 11:00. The 09:30-10:30 booking blocks 09:00, 09:30 and 10:00.
	want := []time.Time{at(10, 30), at(11, 0)}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d: %+v", len(want), len(slots), slots)
	}
	for i := range want {
		if !slots[i].Start.Equal(want[i]) {
			t.Errorf("slot %d = %s, want %s", i, slots[i].Start, want[i])
		}
	}
}

func TestFreeSlots_SkipsPast(t *testing.T) {
	cfg := Config{GridMinutes: 30, DurationMinutes: 60, DayStartHour: 9, DayEndHour: 11}
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	now := day.Add(9*time.Hour + 31*time.Minute)

	slots := cfg.FreeSlots(day, nil, now)
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
	if !slots[0].Start.Equal(day.Add(10 * time.Hour)) {
		t.Fatalf("expected slot 10:00, got %s", slots[0].Start)
	}
}
