package timeslot

import (
	"sort"
	"time"
)

// Interval is a closed-open [Start, End) range of UTC instants. A zero-length
// or inverted interval is treated as empty everywhere in this package.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// IsEmpty reports whether the interval contains no instants.
func (iv Interval) IsEmpty() bool {
	return !iv.End.After(iv.Start)
}

// Duration returns End - Start, or zero for empty intervals.
func (iv Interval) Duration() time.Duration {
	if iv.IsEmpty() {
		return 0
	}
	return iv.End.Sub(iv.Start)
}

// Contains reports whether t falls inside [Start, End).
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Overlaps reports whether the two intervals share at least one instant.
func (iv Interval) Overlaps(other Interval) bool {
	if iv.IsEmpty() || other.IsEmpty() {
		return false
	}
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Intersect returns the overlap of two intervals, empty if disjoint.
func (iv Interval) Intersect(other Interval) Interval {
	start := iv.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := iv.End
	if other.End.Before(end) {
		end = other.End
	}
	if !end.After(start) {
		return Interval{}
	}
	return Interval{Start: start, End: end}
}

// Expand grows the interval by before/after buffers. Used to pad confirmed
// appointments before subtracting them from availability.
func (iv Interval) Expand(before, after time.Duration) Interval {
	if iv.IsEmpty() {
		return iv
	}
	return Interval{Start: iv.Start.Add(-before), End: iv.End.Add(after)}
}

// Set is an ordered sequence of non-overlapping intervals. Operations return
// normalized sets (sorted by start, merged, no empties).
type Set []Interval

// Normalize sorts the intervals and merges any that touch or overlap.
func Normalize(ivs []Interval) Set {
	out := make(Set, 0, len(ivs))
	for _, iv := range ivs {
		if !iv.IsEmpty() {
			out = append(out, iv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })

	merged := out[:0]
	for _, iv := range out {
		if n := len(merged); n > 0 && !iv.Start.After(merged[n-1].End) {
			if iv.End.After(merged[n-1].End) {
				merged[n-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Union merges two normalized sets.
func Union(a, b Set) Set {
	return Normalize(append(append([]Interval{}, a...), b...))
}

// Intersect returns the instants present in both sets. Both inputs must be
// normalized; the result is normalized.
func Intersect(a, b Set) Set {
	var out Set
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if iv := a[i].Intersect(b[j]); !iv.IsEmpty() {
			out = append(out, iv)
		}
		if a[i].End.Before(b[j].End) {
			i++
		} else {
			j++
		}
	}
	return out
}

// Subtract removes every instant of b from a. Both inputs must be normalized.
func Subtract(a, b Set) Set {
	var out Set
	j := 0
	for _, iv := range a {
		cur := iv
		for j < len(b) && !b[j].End.After(cur.Start) {
			j++
		}
		k := j
		for k < len(b) && b[k].Start.Before(cur.End) {
			hole := b[k]
			if hole.Start.After(cur.Start) {
				out = append(out, Interval{Start: cur.Start, End: hole.Start})
			}
			if hole.End.Before(cur.End) {
				cur.Start = hole.End
			} else {
				cur = Interval{}
				break
			}
			k++
		}
		if !cur.IsEmpty() {
			out = append(out, cur)
		}
	}
	return out
}

// IntersectAll intersects H normalized sets with a sweep over all interval
// boundaries, keeping the ranges covered by every set. It stays O(total
// boundaries x log) via the sort rather than pairwise set products.
func IntersectAll(sets []Set) Set {
	if len(sets) == 0 {
		return nil
	}
	if len(sets) == 1 {
		return Normalize(sets[0])
	}

	type edge struct {
		at    time.Time
		delta int
	}
	var edges []edge
	for _, s := range sets {
		for _, iv := range s {
			if iv.IsEmpty() {
				continue
			}
			edges = append(edges, edge{iv.Start, +1}, edge{iv.End, -1})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].at.Equal(edges[j].at) {
			// Close before open at the same instant: [a,t) and [t,b) do not overlap.
			return edges[i].delta < edges[j].delta
		}
		return edges[i].at.Before(edges[j].at)
	})

	need := len(sets)
	depth := 0
	var out Set
	var openAt time.Time
	for _, e := range edges {
		if depth == need {
			if e.at.After(openAt) {
				out = append(out, Interval{Start: openAt, End: e.at})
			}
		}
		depth += e.delta
		if depth == need {
			openAt = e.at
		}
	}
	return Normalize(out)
}

// FilterMinDuration drops intervals shorter than d.
func FilterMinDuration(s Set, d time.Duration) Set {
	out := make(Set, 0, len(s))
	for _, iv := range s {
		if iv.Duration() >= d {
			out = append(out, iv)
		}
	}
	return out
}
