package booking

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/clearbook/scheduling-engine/models"
	"github.com/clearbook/scheduling-engine/timeslot"
)

func existingAppt(id uint, start, end time.Time) models.Appointment {
	return models.Appointment{
		Model:     gorm.Model{ID: id},
		StartTime: start,
		EndTime:   end,
		Status:    models.StatusConfirmed,
	}
}

// The commit re-check must agree with the availability engine: existing
// appointments are expanded by (before, after) and the slot conflicts only
// if it overlaps the expanded interval.
func TestConflictsBuffered(t *testing.T) {
	day := time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }
	// Existing booking 14:00-15:00 UTC (10:00-11:00 in New York).
	booked := []models.Appointment{existingAppt(7, at(14, 0), at(15, 0))}

	tests := []struct {
		name          string
		slot          timeslot.Interval
		before, after time.Duration
		exclude       uint
		want          bool
	}{
		{
			// The engine offers the slot right after an existing booking
			// when only a pre-buffer is set; commit must accept it.
			name:   "pre-buffer does not block the following slot",
			slot:   timeslot.Interval{Start: at(15, 0), End: at(16, 0)},
			before: time.Hour,
			want:   false,
		},
		{
			name:   "pre-buffer blocks the preceding slot",
			slot:   timeslot.Interval{Start: at(12, 30), End: at(13, 30)},
			before: time.Hour,
			want:   true,
		},
		{
			name:   "slot ending exactly at the expanded start is free",
			slot:   timeslot.Interval{Start: at(12, 0), End: at(13, 0)},
			before: time.Hour,
			want:   false,
		},
		{
			name:  "post-buffer blocks the following slot",
			slot:  timeslot.Interval{Start: at(15, 30), End: at(16, 30)},
			after: time.Hour,
			want:  true,
		},
		{
			name: "direct overlap without buffers",
			slot: timeslot.Interval{Start: at(14, 30), End: at(15, 30)},
			want: true,
		},
		{
			// Rescheduling: the appointment being moved never conflicts
			// with its own replacement.
			name:    "excluded appointment is ignored",
			slot:    timeslot.Interval{Start: at(14, 30), End: at(15, 30)},
			exclude: 7,
			want:    false,
		},
		{
			name:    "exclusion leaves other appointments in force",
			slot:    timeslot.Interval{Start: at(14, 30), End: at(15, 30)},
			exclude: 99,
			want:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := conflictsBuffered(booked, tt.slot, tt.before, tt.after, tt.exclude)
			if got != tt.want {
				t.Errorf("conflictsBuffered(%v, before=%v, after=%v, exclude=%d) = %v, want %v",
					tt.slot, tt.before, tt.after, tt.exclude, got, tt.want)
			}
		})
	}
}
