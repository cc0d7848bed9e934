package availability

import (
	"time"

	"github.com/clearbook/scheduling-engine/timeslot"
)

// Collective intersects the independent free-interval sets of every required
// host for a collective appointment type. A window survives only if every
// host is free across it and it still fits the appointment duration.
//
// The merge is a single boundary sweep over all hosts' intervals, so it stays
// O(H·K log(H·K)) instead of degrading to pairwise products as pools grow.
func Collective(queries []Query) (timeslot.Set, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	sets := make([]timeslot.Set, 0, len(queries))
	var duration time.Duration
	for _, q := range queries {
		free, err := FreeIntervals(q)
		if err != nil {
			return nil, err
		}
		if len(free) == 0 {
			return nil, nil // one fully busy host empties the intersection
		}
		sets = append(sets, free)
		if d := q.Type.Duration.ToDuration(); d > duration {
			duration = d
		}
	}

	return timeslot.FilterMinDuration(timeslot.IntersectAll(sets), duration), nil
}
