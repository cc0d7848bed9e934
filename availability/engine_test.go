package availability

import (
	"testing"
	"time"

	"github.com/clearbook/scheduling-engine/models"
	"github.com/clearbook/scheduling-engine/timeslot"
)

// Monday 2025-06-02 in America/New_York (EDT, UTC-4).
var (
	nyLoc, _ = time.LoadLocation("America/New_York")
	monday   = time.Date(2025, time.June, 2, 0, 0, 0, 0, nyLoc)
)

func nyUTC(h, m int) time.Time {
	return time.Date(2025, time.June, 2, h, m, 0, 0, nyLoc).UTC()
}

func baseProfile() models.AvailabilityProfile {
	return models.AvailabilityProfile{
		TimeZone: "America/New_York",
		WeeklyHours: []models.WeeklyHour{
			{DayOfWeek: models.DayOfWeek(time.Monday), StartTime: "09:00", EndTime: "17:00"},
		},
		SlotGranularity: models.Duration{Minutes: 30},
	}
}

func baseType() models.AppointmentType {
	return models.AppointmentType{Duration: models.Duration{Minutes: 30}}
}

func baseQuery() Query {
	return Query{
		Profile: baseProfile(),
		Type:    baseType(),
		From:    monday.UTC(),
		To:      monday.AddDate(0, 0, 1).UTC(),
		Now:     nyUTC(0, 0),
	}
}

func containsSlot(slots []timeslot.Interval, start time.Time) bool {
	for _, s := range slots {
		if s.Start.Equal(start) {
			return true
		}
	}
	return false
}

func TestFreeIntervalsPlainDay(t *testing.T) {
	free, err := FreeIntervals(baseQuery())
	if err != nil {
		t.Fatal(err)
	}
	want := timeslot.Set{{Start: nyUTC(9, 0), End: nyUTC(17, 0)}}
	if len(free) != 1 || !free[0].Start.Equal(want[0].Start) || !free[0].End.Equal(want[0].End) {
		t.Errorf("FreeIntervals() = %v, want %v", free, want)
	}
}

func TestFreeIntervalsBookedSlotExcluded(t *testing.T) {
	q := baseQuery()
	q.Booked = []timeslot.Interval{{Start: nyUTC(10, 0), End: nyUTC(10, 30)}}

	free, err := FreeIntervals(q)
	if err != nil {
		t.Fatal(err)
	}
	slots := Slots(free, 30*time.Minute, 30*time.Minute, nyLoc)

	if containsSlot(slots, nyUTC(10, 0)) {
		t.Error("booked 10:00 slot should not be offered")
	}
	if !containsSlot(slots, nyUTC(9, 30)) || !containsSlot(slots, nyUTC(10, 30)) {
		t.Errorf("neighboring slots should survive, got %v", slots)
	}
	// 9:00-17:00 with one 30-min hole yields 15 slots.
	if len(slots) != 15 {
		t.Errorf("got %d slots, want 15", len(slots))
	}
}

func TestFreeIntervalsBuffers(t *testing.T) {
	q := baseQuery()
	q.Profile.BufferBefore = models.Duration{Minutes: 15}
	q.Profile.BufferAfter = models.Duration{Minutes: 15}
	q.Booked = []timeslot.Interval{{Start: nyUTC(12, 0), End: nyUTC(13, 0)}}

	free, err := FreeIntervals(q)
	if err != nil {
		t.Fatal(err)
	}
	slots := Slots(free, 30*time.Minute, 30*time.Minute, nyLoc)

	// The buffered hole is 11:45-13:15, so 11:30 and 13:00 starts are gone
	// and the next valid start after the hole is 13:30.
	for _, banned := range []time.Time{nyUTC(11, 30), nyUTC(12, 0), nyUTC(12, 30), nyUTC(13, 0)} {
		if containsSlot(slots, banned) {
			t.Errorf("slot at %v should be blocked by buffers", banned.In(nyLoc))
		}
	}
	if !containsSlot(slots, nyUTC(11, 0)) || !containsSlot(slots, nyUTC(13, 30)) {
		t.Errorf("slots outside the buffered window should remain, got %v", slots)
	}
}

func TestFreeIntervalsTypeBufferOverridesProfile(t *testing.T) {
	q := baseQuery()
	q.Profile.BufferAfter = models.Duration{Minutes: 30}
	q.Type.BufferAfter = models.Duration{Minutes: 5}
	q.Booked = []timeslot.Interval{{Start: nyUTC(12, 0), End: nyUTC(12, 55)}}

	free, err := FreeIntervals(q)
	if err != nil {
		t.Fatal(err)
	}
	slots := Slots(free, 30*time.Minute, 30*time.Minute, nyLoc)
	// With the 5-minute type buffer the hole ends 13:00, so 13:00 is free.
	if !containsSlot(slots, nyUTC(13, 0)) {
		t.Errorf("type-level buffer should override the profile's, got %v", slots)
	}
}

func TestFreeIntervalsMinimumNotice(t *testing.T) {
	q := baseQuery()
	q.Profile.MinimumNotice = models.Duration{Hours: 2}
	q.Now = nyUTC(9, 0)

	free, err := FreeIntervals(q)
	if err != nil {
		t.Fatal(err)
	}
	if len(free) == 0 {
		t.Fatal("expected availability after the notice window")
	}
	if free[0].Start.Before(nyUTC(11, 0)) {
		t.Errorf("first free start %v is inside the 2h notice window", free[0].Start.In(nyLoc))
	}
}

func TestFreeIntervalsHorizon(t *testing.T) {
	q := baseQuery()
	q.Profile.MaxHorizonDays = 3
	q.From = monday.UTC()
	q.To = monday.AddDate(0, 0, 14).UTC()
	q.Now = monday.UTC()

	free, err := FreeIntervals(q)
	if err != nil {
		t.Fatal(err)
	}
	horizon := monday.AddDate(0, 0, 3).UTC()
	for _, iv := range free {
		if iv.End.After(horizon) {
			t.Errorf("interval %v extends past the %v horizon", iv, horizon)
		}
	}
}

func TestFreeIntervalsClosedException(t *testing.T) {
	q := baseQuery()
	q.Profile.Exceptions = []models.DateException{{Date: "2025-06-02", Closed: true}}

	free, err := FreeIntervals(q)
	if err != nil {
		t.Fatal(err)
	}
	if len(free) != 0 {
		t.Errorf("closed exception should empty the day, got %v", free)
	}
}

func TestFreeIntervalsFullDayOverride(t *testing.T) {
	q := baseQuery()
	q.Profile.Exceptions = []models.DateException{{
		Date: "2025-06-02", FullDayOverride: true, StartTime: "13:00", EndTime: "15:00",
	}}

	free, err := FreeIntervals(q)
	if err != nil {
		t.Fatal(err)
	}
	want := timeslot.Interval{Start: nyUTC(13, 0), End: nyUTC(15, 0)}
	if len(free) != 1 || !free[0].Start.Equal(want.Start) || !free[0].End.Equal(want.End) {
		t.Errorf("FreeIntervals() = %v, want only %v", free, want)
	}
}

func TestFreeIntervalsOpenExceptionAddsHours(t *testing.T) {
	q := baseQuery()
	q.Profile.Exceptions = []models.DateException{{
		Date: "2025-06-02", StartTime: "18:00", EndTime: "20:00",
	}}

	free, err := FreeIntervals(q)
	if err != nil {
		t.Fatal(err)
	}
	if len(free) != 2 {
		t.Fatalf("expected weekly hours plus the extra evening window, got %v", free)
	}
	if !free[1].Start.Equal(nyUTC(18, 0)) || !free[1].End.Equal(nyUTC(20, 0)) {
		t.Errorf("extra window = %v", free[1])
	}
}

func TestFreeIntervalsHoliday(t *testing.T) {
	q := baseQuery()
	q.Profile.Holidays = []models.Holiday{{Date: "2025-06-02"}}

	free, err := FreeIntervals(q)
	if err != nil {
		t.Fatal(err)
	}
	if len(free) != 0 {
		t.Errorf("holiday should empty the day, got %v", free)
	}
}

func TestFreeIntervalsDailyLimit(t *testing.T) {
	q := baseQuery()
	q.Type.DailyBookingLimit = 2
	q.DailyCounts = map[string]int{"2025-06-02": 2}

	free, err := FreeIntervals(q)
	if err != nil {
		t.Fatal(err)
	}
	if len(free) != 0 {
		t.Errorf("day at its booking limit should offer nothing, got %v", free)
	}
}

func TestFreeIntervalsKeepsSlotCountAcrossDST(t *testing.T) {
	// Spring-forward Sunday: 2025-03-09. Hosts working 09:00-17:00 local
	// still offer eight hours of slots; the gap is before their day starts.
	loc, _ := time.LoadLocation("America/New_York")
	day := time.Date(2025, time.March, 9, 0, 0, 0, 0, loc)

	q := Query{
		Profile: models.AvailabilityProfile{
			TimeZone: "America/New_York",
			WeeklyHours: []models.WeeklyHour{
				{DayOfWeek: models.DayOfWeek(time.Sunday), StartTime: "09:00", EndTime: "17:00"},
			},
			SlotGranularity: models.Duration{Minutes: 30},
		},
		Type: baseType(),
		From: day.UTC(),
		To:   day.AddDate(0, 0, 1).UTC(),
		Now:  day.UTC(),
	}
	free, err := FreeIntervals(q)
	if err != nil {
		t.Fatal(err)
	}
	slots := Slots(free, 30*time.Minute, 30*time.Minute, loc)
	if len(slots) != 16 {
		t.Errorf("got %d slots on transition day, want 16", len(slots))
	}
}

func TestCollective(t *testing.T) {
	hostA := baseQuery()
	hostA.Profile.WeeklyHours = []models.WeeklyHour{
		{DayOfWeek: models.DayOfWeek(time.Monday), StartTime: "09:00", EndTime: "12:00"},
	}
	hostB := baseQuery()
	hostB.Profile.WeeklyHours = []models.WeeklyHour{
		{DayOfWeek: models.DayOfWeek(time.Monday), StartTime: "10:00", EndTime: "13:00"},
	}
	hostA.Type.Duration = models.Duration{Hours: 1}
	hostB.Type.Duration = models.Duration{Hours: 1}

	free, err := Collective([]Query{hostA, hostB})
	if err != nil {
		t.Fatal(err)
	}
	if len(free) != 1 || !free[0].Start.Equal(nyUTC(10, 0)) || !free[0].End.Equal(nyUTC(12, 0)) {
		t.Fatalf("Collective() = %v, want [10:00,12:00)", free)
	}

	slots := Slots(free, time.Hour, 30*time.Minute, nyLoc)
	// Starts 10:00, 10:30, 11:00 all fit a one-hour meeting before 12:00.
	for _, want := range []time.Time{nyUTC(10, 0), nyUTC(10, 30), nyUTC(11, 0)} {
		if !containsSlot(slots, want) {
			t.Errorf("missing collective slot at %v", want.In(nyLoc))
		}
	}
	if containsSlot(slots, nyUTC(11, 30)) {
		t.Error("11:30 start does not fit a one-hour meeting before 12:00")
	}
}

func TestCollectiveBusyHostEmptiesIntersection(t *testing.T) {
	hostA := baseQuery()
	hostB := baseQuery()
	hostB.Booked = []timeslot.Interval{{Start: nyUTC(9, 0), End: nyUTC(17, 0)}}

	free, err := Collective([]Query{hostA, hostB})
	if err != nil {
		t.Fatal(err)
	}
	if len(free) != 0 {
		t.Errorf("fully booked host should empty the intersection, got %v", free)
	}
}

func TestEffectiveBuffers(t *testing.T) {
	tests := []struct {
		name       string
		profile    models.AvailabilityProfile
		apptType   models.AppointmentType
		wantBefore time.Duration
		wantAfter  time.Duration
	}{
		{
			name:       "profile buffers apply when type has none",
			profile:    models.AvailabilityProfile{BufferBefore: models.Duration{Minutes: 15}, BufferAfter: models.Duration{Minutes: 10}},
			wantBefore: 15 * time.Minute,
			wantAfter:  10 * time.Minute,
		},
		{
			name:       "type buffers override the profile per side",
			profile:    models.AvailabilityProfile{BufferBefore: models.Duration{Minutes: 15}, BufferAfter: models.Duration{Minutes: 10}},
			apptType:   models.AppointmentType{BufferAfter: models.Duration{Minutes: 5}},
			wantBefore: 15 * time.Minute,
			wantAfter:  5 * time.Minute,
		},
		{
			name: "no buffers anywhere",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, after := EffectiveBuffers(tt.profile, tt.apptType)
			if before != tt.wantBefore || after != tt.wantAfter {
				t.Errorf("EffectiveBuffers() = (%v, %v), want (%v, %v)", before, after, tt.wantBefore, tt.wantAfter)
			}
		})
	}
}
