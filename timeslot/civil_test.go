package timeslot

import (
	"testing"
	"time"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("LoadLocation(%s): %v", name, err)
	}
	return loc
}

func TestParseClock(t *testing.T) {
	ct, err := ParseClock("09:30")
	if err != nil {
		t.Fatalf("ParseClock: %v", err)
	}
	if ct.Hour != 9 || ct.Minute != 30 {
		t.Errorf("got %v", ct)
	}
	if ct.Minutes() != 570 {
		t.Errorf("Minutes() = %d", ct.Minutes())
	}
	if _, err := ParseClock("25:00"); err == nil {
		t.Error("expected error for 25:00")
	}
	if _, err := ParseClock("9:30:00"); err == nil {
		t.Error("expected error for seconds")
	}
}

func TestResolveLocal(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	tests := []struct {
		name  string
		year  int
		month time.Month
		day   int
		clock ClockTime
		want  time.Time
	}{
		{
			// 2025-03-09 02:00-03:00 does not exist in New York.
			name:  "spring forward gap rolls to gap end",
			year:  2025, month: time.March, day: 9,
			clock: ClockTime{Hour: 2, Minute: 30},
			want:  time.Date(2025, time.March, 9, 7, 0, 0, 0, time.UTC), // 03:00 EDT
		},
		{
			// 2025-11-02 01:30 happens twice; first occurrence is EDT (UTC-4).
			name:  "fall back ambiguity picks earlier offset",
			year:  2025, month: time.November, day: 2,
			clock: ClockTime{Hour: 1, Minute: 30},
			want:  time.Date(2025, time.November, 2, 5, 30, 0, 0, time.UTC), // 01:30 EDT
		},
		{
			name:  "plain time",
			year:  2025, month: time.June, day: 2,
			clock: ClockTime{Hour: 9, Minute: 0},
			want:  time.Date(2025, time.June, 2, 13, 0, 0, 0, time.UTC), // 09:00 EDT
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveLocal(tt.year, tt.month, tt.day, tt.clock, ny)
			if !got.Equal(tt.want) {
				t.Errorf("ResolveLocal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDayBounds(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	// Spring-forward day is 23 hours long.
	short := DayBounds(2025, time.March, 9, ny)
	if d := short.Duration(); d != 23*time.Hour {
		t.Errorf("spring-forward day length = %v, want 23h", d)
	}

	// Fall-back day is 25 hours long.
	long := DayBounds(2025, time.November, 2, ny)
	if d := long.Duration(); d != 25*time.Hour {
		t.Errorf("fall-back day length = %v, want 25h", d)
	}

	// A 9-17 working day always spans 8 wall-clock hours even when the UTC
	// offset changes underneath it.
	start := ResolveLocal(2025, time.March, 9, ClockTime{Hour: 9}, ny)
	end := ResolveLocal(2025, time.March, 9, ClockTime{Hour: 17}, ny)
	if d := end.Sub(start); d != 8*time.Hour {
		t.Errorf("9-17 on transition day = %v, want 8h", d)
	}
}

func TestRoundUpToGranularity(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	tests := []struct {
		name string
		in   time.Time
		gran time.Duration
		want time.Time
	}{
		{
			name: "already on boundary unchanged",
			in:   time.Date(2025, time.June, 2, 14, 30, 0, 0, time.UTC), // 10:30 EDT
			gran: 30 * time.Minute,
			want: time.Date(2025, time.June, 2, 14, 30, 0, 0, time.UTC),
		},
		{
			name: "rounds up within the hour",
			in:   time.Date(2025, time.June, 2, 14, 40, 0, 0, time.UTC), // 10:40 EDT
			gran: 30 * time.Minute,
			want: time.Date(2025, time.June, 2, 15, 0, 0, 0, time.UTC), // 11:00 EDT
		},
		{
			name: "boundary is local not UTC",
			// 10:10 EDT = 14:10 UTC; next local 15-min boundary is 10:15 EDT,
			// not 14:15 UTC plus offset drift.
			in:   time.Date(2025, time.June, 2, 14, 10, 0, 0, time.UTC),
			gran: 15 * time.Minute,
			want: time.Date(2025, time.June, 2, 14, 15, 0, 0, time.UTC),
		},
		{
			name: "zero granularity is identity",
			in:   time.Date(2025, time.June, 2, 14, 7, 0, 0, time.UTC),
			gran: 0,
			want: time.Date(2025, time.June, 2, 14, 7, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundUpToGranularity(tt.in, tt.gran, ny)
			if !got.Equal(tt.want) {
				t.Errorf("RoundUpToGranularity() = %v, want %v", got, tt.want)
			}
		})
	}
}
