package routing

import (
	"math"
	"sort"
	"time"

	"github.com/clearbook/scheduling-engine/errs"
	"github.com/clearbook/scheduling-engine/models"
)

// Candidate is one pool member with its load inside the fairness window.
type Candidate struct {
	HostID         uint
	Assignments    int     // confirmed bookings in the current fairness window
	Weight         float64 // weighted policy; <=0 treated as 1
	LastAssignedAt time.Time

	DailyCap    int // 0 = uncapped
	WeeklyCap   int
	DailyCount  int
	WeeklyCount int
}

func (c Candidate) weight() float64 {
	if c.Weight <= 0 {
		return 1
	}
	return c.Weight
}

// normalizedLoad is the fairness metric: raw assignments for round_robin,
// weight-normalized for weighted.
func (c Candidate) normalizedLoad(weighted bool) float64 {
	if !weighted {
		return float64(c.Assignments)
	}
	return float64(c.Assignments) / c.weight()
}

// remainingCapacity is the headroom under the tightest configured cap, or
// +Inf when uncapped.
func (c Candidate) remainingCapacity() float64 {
	rem := math.Inf(1)
	if c.DailyCap > 0 {
		rem = math.Min(rem, float64(c.DailyCap-c.DailyCount))
	}
	if c.WeeklyCap > 0 {
		rem = math.Min(rem, float64(c.WeeklyCap-c.WeeklyCount))
	}
	return rem
}

func (c Candidate) atCapacity() bool {
	return c.remainingCapacity() <= 0
}

// Select picks the host that serves the next booking under the appointment
// type's routing policy. Collective types have no single-host selection and
// must go through the intersection engine instead.
func Select(apptType models.AppointmentType, candidates []Candidate) (uint, error) {
	policy := apptType.Routing
	switch policy {
	case models.RoutingFixed:
		if apptType.FixedHostID == 0 {
			return 0, &errs.NoAvailableHostError{PoolSize: 0, Policy: string(policy)}
		}
		return apptType.FixedHostID, nil

	case models.RoutingRoundRobin, models.RoutingWeighted:
		if len(candidates) == 0 {
			return 0, &errs.NoAvailableHostError{PoolSize: 0, Policy: string(policy)}
		}
		weighted := policy == models.RoutingWeighted
		best := pickLeastLoaded(candidates, weighted)
		return best.HostID, nil

	case models.RoutingCapacity:
		eligible := make([]Candidate, 0, len(candidates))
		for _, c := range candidates {
			if !c.atCapacity() {
				eligible = append(eligible, c)
			}
		}
		if len(eligible) == 0 {
			if !apptType.SoftCap {
				return 0, &errs.NoAvailableHostError{PoolSize: len(candidates), Policy: string(policy)}
			}
			// Soft cap: overflow to the least-loaded host regardless of cap.
			if len(candidates) == 0 {
				return 0, &errs.NoAvailableHostError{PoolSize: 0, Policy: string(policy)}
			}
			return pickLeastLoaded(candidates, false).HostID, nil
		}
		sort.SliceStable(eligible, func(i, j int) bool {
			ri, rj := eligible[i].remainingCapacity(), eligible[j].remainingCapacity()
			if ri != rj {
				return ri > rj
			}
			return eligible[i].LastAssignedAt.Before(eligible[j].LastAssignedAt)
		})
		return eligible[0].HostID, nil

	default:
		return 0, &errs.NoAvailableHostError{PoolSize: len(candidates), Policy: string(policy)}
	}
}

// pickLeastLoaded returns the candidate with the lowest (normalized) load,
// breaking ties by the longest time since last assignment, then by host ID
// for determinism.
func pickLeastLoaded(candidates []Candidate, weighted bool) Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		cl, bl := c.normalizedLoad(weighted), best.normalizedLoad(weighted)
		switch {
		case cl < bl:
			best = c
		case cl == bl && c.LastAssignedAt.Before(best.LastAssignedAt):
			best = c
		case cl == bl && c.LastAssignedAt.Equal(best.LastAssignedAt) && c.HostID < best.HostID:
			best = c
		}
	}
	return best
}
