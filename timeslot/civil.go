package timeslot

import (
	"fmt"
	"time"
)

// ClockTime is a wall-clock time of day, "HH:MM" in 24h format, the same
// representation working-hour rows store.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (ct ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", ct.Hour, ct.Minute)
}

// Minutes returns the offset from midnight.
func (ct ClockTime) Minutes() int { return ct.Hour*60 + ct.Minute }

// ResolveLocal converts a civil date + clock time in loc to a UTC instant,
// handling both DST edge cases:
//
//   - A time that does not exist (spring-forward gap) rolls forward to the
//     first valid instant after the gap.
//   - A time that occurs twice (fall-back overlap) resolves to the earlier
//     offset, i.e. the first occurrence.
func ResolveLocal(year int, month time.Month, day int, ct ClockTime, loc *time.Location) time.Time {
	t := time.Date(year, month, day, ct.Hour, ct.Minute, 0, 0, loc)

	// time.Date normalizes nonexistent times by shifting them; detect the
	// shift by reading the wall clock back. When the requested time fell in a
	// spring-forward gap, fold forward: take the first civil time at or after
	// the requested one that actually exists, i.e. the end of the gap.
	if t.Hour() != ct.Hour || t.Minute() != ct.Minute {
		for i := 1; i <= 180; i++ {
			mins := ct.Minutes() + i
			h, m := mins/60, mins%60
			candidate := time.Date(year, month, day, h, m, 0, 0, loc)
			if candidate.Hour() == h && candidate.Minute() == m {
				t = candidate
				break
			}
		}
	}

	// For fall-back overlaps Go's time.Date already picks the earlier offset
	// (first occurrence), which is the documented behavior here.
	return t.UTC()
}

// DayBounds returns the [midnight, next midnight) UTC interval for a civil
// date in loc. DST transitions make this 23 or 25 hours long on change days.
func DayBounds(year int, month time.Month, day int, loc *time.Location) Interval {
	start := time.Date(year, month, day, 0, 0, 0, 0, loc)
	end := time.Date(year, month, day+1, 0, 0, 0, 0, loc)
	return Interval{Start: start.UTC(), End: end.UTC()}
}

// RoundUpToGranularity rounds t up to the next granularity boundary measured
// in loc's wall clock, so slot starts land on local top-of-hour and the like
// even across DST shifts. A t already on a boundary is returned unchanged.
func RoundUpToGranularity(t time.Time, granularity time.Duration, loc *time.Location) time.Time {
	if granularity <= 0 {
		return t
	}
	local := t.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	elapsed := local.Sub(midnight)
	rem := elapsed % granularity
	if rem == 0 {
		return t
	}
	return midnight.Add(elapsed - rem + granularity).UTC()
}
