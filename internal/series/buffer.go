// Package series holds the in-memory sensor history shown on the dashboard.
package series

import (
	"sort"
	"time"
)

// Reading is one converted sensor sample.
type Reading struct {
	Time  time.Time
	Value float64
}

// Buffer is an append-only pair of parallel timestamp/value slices.
// Both slices always have the same length. A positive maxLen evicts the
// oldest readings once exceeded; zero keeps everything.
//
// Buffer is not safe for concurrent use; Store serialises access.
type Buffer struct {
	timestamps []time.Time
	values     []float64
	maxLen     int
}

// NewBuffer creates an empty buffer. maxLen <= 0 means unbounded.
func NewBuffer(maxLen int) *Buffer {
	if maxLen < 0 {
		maxLen = 0
	}
	return &Buffer{maxLen: maxLen}
}

// Append adds readings in the order given and returns how many were added.
func (b *Buffer) Append(readings ...Reading) int {
	for _, r := range readings {
		b.timestamps = append(b.timestamps, r.Time)
		b.values = append(b.values, r.Value)
	}
	b.evict()
	return len(readings)
}

func (b *Buffer) evict() {
	if b.maxLen == 0 || len(b.values) <= b.maxLen {
		return
	}
	drop := len(b.values) - b.maxLen
	// copy so the dropped prefix does not pin the backing arrays
	b.timestamps = append([]time.Time(nil), b.timestamps[drop:]...)
	b.values = append([]float64(nil), b.values[drop:]...)
}

// Len returns the number of readings held.
func (b *Buffer) Len() int {
	return len(b.values)
}

// Last returns the newest reading.
func (b *Buffer) Last() (Reading, bool) {
	n := len(b.values)
	if n == 0 {
		return Reading{}, false
	}
	return Reading{Time: b.timestamps[n-1], Value: b.values[n-1]}, true
}

// Snapshot copies the buffer contents.
func (b *Buffer) Snapshot() Snapshot {
	return Snapshot{
		Timestamps: append([]time.Time(nil), b.timestamps...),
		Values:     append([]float64(nil), b.values...),
	}
}

// Snapshot is a point-in-time copy of a Buffer, safe to read without locks.
type Snapshot struct {
	Timestamps []time.Time `json:"timestamps"`
	Values     []float64   `json:"values"`
}

// Len returns the number of readings in the snapshot.
func (s Snapshot) Len() int {
	return len(s.Values)
}

// Empty reports whether either slice is empty.
func (s Snapshot) Empty() bool {
	return len(s.Timestamps) == 0 || len(s.Values) == 0
}

// Readings returns the snapshot as Reading values.
func (s Snapshot) Readings() []Reading {
	out := make([]Reading, 0, len(s.Values))
	for i := range s.Values {
		out = append(out, Reading{Time: s.Timestamps[i], Value: s.Values[i]})
	}
	return out
}

// NewerThan returns the readings strictly after cutoff, sorted by time.
// Readings sharing a timestamp keep their input order and only the first is
// kept, so overlapping lastN windows never duplicate a sample.
func NewerThan(readings []Reading, cutoff time.Time) []Reading {
	out := make([]Reading, 0, len(readings))
	for _, r := range readings {
		if cutoff.IsZero() || r.Time.After(cutoff) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })

	deduped := out[:0]
	for _, r := range out {
		if n := len(deduped); n > 0 && r.Time.Equal(deduped[n-1].Time) {
			continue
		}
		deduped = append(deduped, r)
	}
	return deduped
}
