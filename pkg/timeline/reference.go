package timeline

import (
	"fmt"

	"github.com/xaionaro-go/audiosync/pkg/model"
)

// BuildReference lays the clips of the reference track out using the
// creation-time gaps between consecutive clips: the first clip starts at
// zero, every next one starts after the end of the previous one plus the gap
// (clamped to be non-negative). If either clip of a pair lacks a creation
// time the gap is zero and a warning is returned.
//
// clips must be in chronological order; buffers[i] is the analysis buffer of
// clips[i] at sampleRate, nil for clips that could not be decoded (they are skipped).
// The returned offsets (seconds) are aligned with clips; placed[i] is false
// for the skipped ones.
func BuildReference(
	clips []*model.Clip,
	buffers [][]float64,
	sampleRate float64,
) (tl *Timeline, offsets []float64, placed []bool, warnings []string) {
	tl = New(sampleRate)
	offsets = make([]float64, len(clips))
	placed = make([]bool, len(clips))

	prev := -1
	for idx, c := range clips {
		if buffers[idx] == nil {
			continue
		}
		if prev >= 0 {
			p := clips[prev]
			prevDuration := duration(p, buffers[prev], sampleRate)
			var gap float64
			switch {
			case c.CreationTime == nil:
				warnings = append(warnings, fmt.Sprintf("reference clip '%s' has no creation time; placed right after '%s'", c, p))
			case p.CreationTime == nil:
				warnings = append(warnings, fmt.Sprintf("reference clip '%s' has no creation time; '%s' is placed right after it", p, c))
			default:
				gap = c.CreationTime.Sub(*p.CreationTime).Seconds() - prevDuration
				if gap < 0 {
					gap = 0
				}
			}
			offsets[idx] = offsets[prev] + prevDuration + gap
		}
		tl.Write(offsets[idx], buffers[idx])
		placed[idx] = true
		prev = idx
	}
	return tl, offsets, placed, warnings
}

func duration(c *model.Clip, buffer []float64, sampleRate float64) float64 {
	if c.Duration > 0 {
		return c.Duration
	}
	return float64(len(buffer)) / sampleRate
}

// Placed is an analysis buffer with its timeline position.
type Placed struct {
	Offset  float64
	Samples []float64
}

// Enhanced returns a copy of the reference timeline with the given buffers merged in.
func Enhanced(reference *Timeline, placed []Placed) *Timeline {
	tl := reference.Clone()
	for _, p := range placed {
		tl.Merge(p.Offset, p.Samples)
	}
	return tl
}
