package timeslot

import (
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2025, time.March, 3, h, m, 0, 0, time.UTC)
}

func iv(sh, sm, eh, em int) Interval {
	return Interval{Start: at(sh, sm), End: at(eh, em)}
}

func equalSets(a, b Set) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Start.Equal(b[i].Start) || !a[i].End.Equal(b[i].End) {
			return false
		}
	}
	return true
}

func TestIntervalBasics(t *testing.T) {
	if !(Interval{Start: at(10, 0), End: at(10, 0)}).IsEmpty() {
		t.Error("zero-length interval should be empty")
	}
	if !(Interval{Start: at(11, 0), End: at(10, 0)}).IsEmpty() {
		t.Error("inverted interval should be empty")
	}

	slot := iv(10, 0, 11, 0)
	if !slot.Contains(at(10, 0)) {
		t.Error("start instant should be contained")
	}
	if slot.Contains(at(11, 0)) {
		t.Error("end instant should not be contained")
	}

	// Back-to-back intervals share no instant.
	if slot.Overlaps(iv(11, 0, 12, 0)) {
		t.Error("[10,11) and [11,12) should not overlap")
	}
	if !slot.Overlaps(iv(10, 59, 12, 0)) {
		t.Error("[10,11) and [10:59,12) should overlap")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []Interval
		want Set
	}{
		{
			name: "sorts and merges overlap",
			in:   []Interval{iv(12, 0, 13, 0), iv(9, 0, 10, 30), iv(10, 0, 11, 0)},
			want: Set{iv(9, 0, 11, 0), iv(12, 0, 13, 0)},
		},
		{
			name: "merges touching",
			in:   []Interval{iv(9, 0, 10, 0), iv(10, 0, 11, 0)},
			want: Set{iv(9, 0, 11, 0)},
		},
		{
			name: "drops empties",
			in:   []Interval{iv(9, 0, 9, 0), iv(11, 0, 10, 0), iv(12, 0, 13, 0)},
			want: Set{iv(12, 0, 13, 0)},
		},
		{
			name: "contained interval absorbed",
			in:   []Interval{iv(9, 0, 12, 0), iv(10, 0, 11, 0)},
			want: Set{iv(9, 0, 12, 0)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if !equalSets(got, tt.want) {
				t.Errorf("Normalize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIntersect(t *testing.T) {
	a := Set{iv(9, 0, 12, 0), iv(14, 0, 17, 0)}
	b := Set{iv(10, 0, 15, 0)}
	want := Set{iv(10, 0, 12, 0), iv(14, 0, 15, 0)}
	if got := Intersect(a, b); !equalSets(got, want) {
		t.Errorf("Intersect() = %v, want %v", got, want)
	}

	if got := Intersect(a, Set{iv(12, 0, 14, 0)}); len(got) != 0 {
		t.Errorf("disjoint Intersect() = %v, want empty", got)
	}
}

func TestSubtract(t *testing.T) {
	tests := []struct {
		name string
		a, b Set
		want Set
	}{
		{
			name: "hole in the middle",
			a:    Set{iv(9, 0, 17, 0)},
			b:    Set{iv(10, 0, 10, 30)},
			want: Set{iv(9, 0, 10, 0), iv(10, 30, 17, 0)},
		},
		{
			name: "hole clips the start",
			a:    Set{iv(9, 0, 17, 0)},
			b:    Set{iv(8, 0, 9, 30)},
			want: Set{iv(9, 30, 17, 0)},
		},
		{
			name: "hole swallows whole interval",
			a:    Set{iv(9, 0, 10, 0), iv(11, 0, 12, 0)},
			b:    Set{iv(8, 30, 10, 30)},
			want: Set{iv(11, 0, 12, 0)},
		},
		{
			name: "multiple holes",
			a:    Set{iv(9, 0, 17, 0)},
			b:    Set{iv(10, 0, 11, 0), iv(12, 0, 13, 0)},
			want: Set{iv(9, 0, 10, 0), iv(11, 0, 12, 0), iv(13, 0, 17, 0)},
		},
		{
			name: "nothing to remove",
			a:    Set{iv(9, 0, 10, 0)},
			b:    nil,
			want: Set{iv(9, 0, 10, 0)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Subtract(tt.a, tt.b)
			if !equalSets(got, tt.want) {
				t.Errorf("Subtract() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIntersectAll(t *testing.T) {
	tests := []struct {
		name string
		sets []Set
		want Set
	}{
		{
			name: "two hosts",
			sets: []Set{
				{iv(9, 0, 12, 0)},
				{iv(10, 0, 13, 0)},
			},
			want: Set{iv(10, 0, 12, 0)},
		},
		{
			name: "three hosts fragmented",
			sets: []Set{
				{iv(9, 0, 12, 0), iv(13, 0, 17, 0)},
				{iv(10, 0, 15, 0)},
				{iv(9, 30, 11, 0), iv(13, 30, 18, 0)},
			},
			want: Set{iv(10, 0, 11, 0), iv(13, 30, 15, 0)},
		},
		{
			name: "touching intervals do not count as overlap",
			sets: []Set{
				{iv(9, 0, 10, 0)},
				{iv(10, 0, 11, 0)},
			},
			want: nil,
		},
		{
			name: "one empty host kills everything",
			sets: []Set{
				{iv(9, 0, 17, 0)},
				nil,
			},
			want: nil,
		},
		{
			name: "single set normalizes",
			sets: []Set{{iv(10, 0, 11, 0), iv(9, 0, 10, 0)}},
			want: Set{iv(9, 0, 11, 0)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IntersectAll(tt.sets)
			if !equalSets(got, tt.want) {
				t.Errorf("IntersectAll() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterMinDuration(t *testing.T) {
	s := Set{iv(9, 0, 9, 20), iv(10, 0, 11, 0)}
	got := FilterMinDuration(s, 30*time.Minute)
	if !equalSets(got, Set{iv(10, 0, 11, 0)}) {
		t.Errorf("FilterMinDuration() = %v", got)
	}
}

func TestExpand(t *testing.T) {
	got := iv(10, 0, 11, 0).Expand(10*time.Minute, 5*time.Minute)
	want := iv(9, 50, 11, 5)
	if !got.Start.Equal(want.Start) || !got.End.Equal(want.End) {
		t.Errorf("Expand() = %v, want %v", got, want)
	}
}
