package availability

import (
	"fmt"
	"time"

	"github.com/clearbook/scheduling-engine/models"
	"github.com/clearbook/scheduling-engine/timeslot"
)

// Query carries everything the rules engine needs, pre-loaded so the
// computation itself is pure and lock-free. A stale Busy list can only
// produce a false-positive free slot; booking arbitration re-validates at
// commit time.
type Query struct {
	Profile models.AvailabilityProfile
	Type    models.AppointmentType
	From    time.Time // UTC, inclusive
	To      time.Time // UTC, exclusive
	Now     time.Time // injected clock for notice/horizon math

	// Confirmed appointments for the host inside (and around) the window,
	// not yet buffer-expanded.
	Booked []timeslot.Interval

	// Opaque busy blocks pulled from external calendars.
	ExternalBusy []timeslot.Interval

	// Confirmed bookings of this appointment type per host-local civil day
	// ("2006-01-02" in the profile timezone), for the daily limit.
	DailyCounts map[string]int
}

// FreeIntervals computes the ordered, non-overlapping free intervals of at
// least the appointment duration inside [From, To).
func FreeIntervals(q Query) (timeslot.Set, error) {
	loc, err := time.LoadLocation(q.Profile.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("profile %d: bad timezone %q: %w", q.Profile.ID, q.Profile.TimeZone, err)
	}
	duration := q.Type.Duration.ToDuration()
	if duration <= 0 {
		return nil, fmt.Errorf("appointment type %d: non-positive duration", q.Type.ID)
	}

	open, err := expandWeekly(q.Profile, q.From, q.To, loc)
	if err != nil {
		return nil, err
	}

	open, err = applyExceptions(open, q.Profile, q.From, q.To, loc)
	if err != nil {
		return nil, err
	}

	// Subtract booked appointments expanded by the effective buffers, plus
	// external busy blocks.
	before, after := EffectiveBuffers(q.Profile, q.Type)
	var busy []timeslot.Interval
	for _, iv := range q.Booked {
		busy = append(busy, iv.Expand(before, after))
	}
	busy = append(busy, q.ExternalBusy...)
	open = timeslot.Subtract(open, timeslot.Normalize(busy))

	// Notice window and booking horizon, both measured from now.
	window := timeslot.Interval{Start: q.From, End: q.To}
	notice := q.Now.Add(q.Profile.MinimumNotice.ToDuration())
	if notice.After(window.Start) {
		window.Start = notice
	}
	if q.Profile.MaxHorizonDays > 0 {
		horizon := q.Now.AddDate(0, 0, q.Profile.MaxHorizonDays)
		if horizon.Before(window.End) {
			window.End = horizon
		}
	}
	open = timeslot.Intersect(open, timeslot.Set{window})

	// Round interval starts up to the granularity in the profile timezone
	// and drop fragments shorter than the duration.
	granularity := q.Profile.SlotGranularity.ToDuration()
	rounded := make(timeslot.Set, 0, len(open))
	for _, iv := range open {
		start := timeslot.RoundUpToGranularity(iv.Start, granularity, loc)
		if iv.End.Sub(start) >= duration {
			rounded = append(rounded, timeslot.Interval{Start: start, End: iv.End})
		}
	}

	// Daily booking limit, per host-local calendar day.
	if q.Type.DailyBookingLimit > 0 {
		kept := rounded[:0]
		for _, iv := range rounded {
			day := iv.Start.In(loc).Format("2006-01-02")
			if q.DailyCounts[day] >= q.Type.DailyBookingLimit {
				continue
			}
			kept = append(kept, iv)
		}
		rounded = kept
	}

	return timeslot.FilterMinDuration(timeslot.Normalize(rounded), duration), nil
}

// Slots expands free intervals into concrete bookable [start, start+duration)
// slots, stepping by granularity in the profile's timezone.
func Slots(free timeslot.Set, duration, granularity time.Duration, loc *time.Location) []timeslot.Interval {
	if granularity <= 0 {
		granularity = duration
	}
	var out []timeslot.Interval
	for _, iv := range free {
		start := timeslot.RoundUpToGranularity(iv.Start, granularity, loc)
		for !start.Add(duration).After(iv.End) {
			out = append(out, timeslot.Interval{Start: start, End: start.Add(duration)})
			start = timeslot.RoundUpToGranularity(start.Add(granularity), granularity, loc)
		}
	}
	return out
}

// expandWeekly projects the recurring weekly hours onto every civil day the
// query window touches, in the profile's timezone.
func expandWeekly(profile models.AvailabilityProfile, from, to time.Time, loc *time.Location) (timeslot.Set, error) {
	byDay := make(map[models.DayOfWeek][]models.WeeklyHour)
	for _, wh := range profile.WeeklyHours {
		byDay[wh.DayOfWeek] = append(byDay[wh.DayOfWeek], wh)
	}

	var open []timeslot.Interval
	local := from.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	for day.Before(to.In(loc)) {
		y, m, d := day.Date()
		for _, wh := range byDay[models.DayOfWeek(day.Weekday())] {
			iv, err := clockInterval(y, m, d, wh.StartTime, wh.EndTime, loc)
			if err != nil {
				return nil, fmt.Errorf("profile %d weekly hours: %w", profile.ID, err)
			}
			open = append(open, iv)
		}
		day = day.AddDate(0, 0, 1)
	}

	return timeslot.Intersect(timeslot.Normalize(open), timeslot.Set{{Start: from, End: to}}), nil
}

// applyExceptions removes holidays and closed exception dates, then layers
// open exceptions on top. Open exceptions add hours unless flagged as a
// full-day override, in which case they replace that day's recurring hours.
func applyExceptions(open timeslot.Set, profile models.AvailabilityProfile, from, to time.Time, loc *time.Location) (timeslot.Set, error) {
	var closedDays []timeslot.Interval
	var extra []timeslot.Interval

	for _, h := range profile.Holidays {
		iv, err := dayInterval(h.Date, loc)
		if err != nil {
			return nil, fmt.Errorf("profile %d holiday: %w", profile.ID, err)
		}
		closedDays = append(closedDays, iv)
	}

	for _, ex := range profile.Exceptions {
		dayIv, err := dayInterval(ex.Date, loc)
		if err != nil {
			return nil, fmt.Errorf("profile %d exception: %w", profile.ID, err)
		}
		switch {
		case ex.Closed:
			closedDays = append(closedDays, dayIv)
		case ex.FullDayOverride:
			closedDays = append(closedDays, dayIv)
			fallthrough
		default:
			y, m, d, err := parseCivilDate(ex.Date)
			if err != nil {
				return nil, fmt.Errorf("profile %d exception: %w", profile.ID, err)
			}
			iv, err := clockInterval(y, m, d, ex.StartTime, ex.EndTime, loc)
			if err != nil {
				return nil, fmt.Errorf("profile %d exception hours: %w", profile.ID, err)
			}
			extra = append(extra, iv)
		}
	}

	open = timeslot.Subtract(open, timeslot.Normalize(closedDays))
	open = timeslot.Union(open, timeslot.Intersect(timeslot.Normalize(extra), timeslot.Set{{Start: from, End: to}}))
	return open, nil
}

// EffectiveBuffers resolves the buffers applied around existing bookings:
// the appointment type's buffers when set, else the profile's. Booking
// arbitration uses the same resolution for its commit-time overlap check.
func EffectiveBuffers(profile models.AvailabilityProfile, t models.AppointmentType) (before, after time.Duration) {
	before = profile.BufferBefore.ToDuration()
	after = profile.BufferAfter.ToDuration()
	if d := t.BufferBefore.ToDuration(); d > 0 {
		before = d
	}
	if d := t.BufferAfter.ToDuration(); d > 0 {
		after = d
	}
	return before, after
}

func parseCivilDate(s string) (int, time.Month, int, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t.Year(), t.Month(), t.Day(), nil
}

func dayInterval(date string, loc *time.Location) (timeslot.Interval, error) {
	y, m, d, err := parseCivilDate(date)
	if err != nil {
		return timeslot.Interval{}, err
	}
	return timeslot.DayBounds(y, m, d, loc), nil
}

func clockInterval(y int, m time.Month, d int, startClock, endClock string, loc *time.Location) (timeslot.Interval, error) {
	sc, err := timeslot.ParseClock(startClock)
	if err != nil {
		return timeslot.Interval{}, err
	}
	ec, err := timeslot.ParseClock(endClock)
	if err != nil {
		return timeslot.Interval{}, err
	}
	return timeslot.Interval{
		Start: timeslot.ResolveLocal(y, m, d, sc, loc),
		End:   timeslot.ResolveLocal(y, m, d, ec, loc),
	}, nil
}
