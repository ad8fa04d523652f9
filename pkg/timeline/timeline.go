// Package timeline lays analysis buffers out on the shared timeline.
package timeline

import (
	"math"
)

// SilenceThreshold is the magnitude below which a timeline sample is
// considered empty when merging.
const SilenceThreshold = 1e-10

// Timeline is a mono signal positioned on the shared timeline.
type Timeline struct {
	Samples []float64
	// Origin is the index in Samples of the timeline position zero.
	// It is positive once something was placed before zero.
	Origin     int
	SampleRate float64
}

func New(sampleRate float64) *Timeline {
	return &Timeline{SampleRate: sampleRate}
}

// Index converts a timeline position in seconds into an index in Samples
// (which may be out of range).
func (t *Timeline) Index(position float64) int {
	return int(math.Round(position*t.SampleRate)) + t.Origin
}

// Position converts a (possibly fractional) index in Samples into seconds.
func (t *Timeline) Position(index float64) float64 {
	return (index - float64(t.Origin)) / t.SampleRate
}

// Start returns the timeline position of the first sample in seconds.
func (t *Timeline) Start() float64 {
	return t.Position(0)
}

// End returns the timeline position right after the last sample in seconds.
func (t *Timeline) End() float64 {
	return t.Position(float64(len(t.Samples)))
}

func (t *Timeline) Clone() *Timeline {
	cpy := *t
	cpy.Samples = make([]float64, len(t.Samples))
	copy(cpy.Samples, t.Samples)
	return &cpy
}

// grow makes sure the indexes [from, to) exist, shifting the origin if needed,
// and returns the index of from after the growth.
func (t *Timeline) grow(from, to int) int {
	if from < 0 {
		prefix := -from
		grown := make([]float64, prefix+len(t.Samples))
		copy(grown[prefix:], t.Samples)
		t.Samples = grown
		t.Origin += prefix
		to += prefix
		from = 0
	}
	if to > len(t.Samples) {
		t.Samples = append(t.Samples, make([]float64, to-len(t.Samples))...)
	}
	return from
}

// Write places the samples at the position, overwriting whatever was there.
func (t *Timeline) Write(position float64, samples []float64) {
	if len(samples) == 0 {
		return
	}
	from := t.Index(position)
	from = t.grow(from, from+len(samples))
	copy(t.Samples[from:], samples)
}

// Merge places the samples at the position, averaging them with the
// existing content where both are non-silent.
func (t *Timeline) Merge(position float64, samples []float64) {
	if len(samples) == 0 {
		return
	}
	from := t.Index(position)
	from = t.grow(from, from+len(samples))
	dst := t.Samples[from : from+len(samples)]
	for i, v := range samples {
		if math.Abs(dst[i]) < SilenceThreshold {
			dst[i] = v
			continue
		}
		if math.Abs(v) < SilenceThreshold {
			continue
		}
		dst[i] = (dst[i] + v) / 2
	}
}

// Segment returns a copy of the samples within [position, position+length)
// in samples, zero-filled where the timeline has no content.
func (t *Timeline) Segment(position float64, length int) []float64 {
	out := make([]float64, max(length, 0))
	from := t.Index(position)
	for i := range out {
		idx := from + i
		if idx >= 0 && idx < len(t.Samples) {
			out[i] = t.Samples[idx]
		}
	}
	return out
}
