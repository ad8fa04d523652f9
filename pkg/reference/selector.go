// Package reference chooses the track that anchors the shared timeline.
package reference

import (
	"errors"
	"fmt"

	"github.com/xaionaro-go/audiosync/pkg/model"
)

var ErrNoUsableReference = errors.New("no usable reference track")

type Reason int

const (
	ReasonUndefined = Reason(iota)
	// ReasonPinned: the user pinned the track.
	ReasonPinned
	// ReasonCoverage: the widest creation-time coverage.
	ReasonCoverage
	// ReasonSummedDuration: no creation times; the greatest summed duration.
	ReasonSummedDuration
)

func (r Reason) String() string {
	switch r {
	case ReasonUndefined:
		return "<undefined>"
	case ReasonPinned:
		return "pinned"
	case ReasonCoverage:
		return "coverage"
	case ReasonSummedDuration:
		return "summed_duration"
	default:
		return fmt.Sprintf("<unknown_%d>", int(r))
	}
}

type Selection struct {
	Index    int
	Reason   Reason
	Warnings []string
}

// Coverage returns max(creation_time+duration) - min(creation_time) in
// seconds across the clips having a creation time.
func Coverage(track *model.Track) (float64, bool) {
	var (
		start, end float64
		found      bool
	)
	for _, c := range track.Clips {
		if c.CreationTime == nil {
			continue
		}
		clipStart := float64(c.CreationTime.UnixNano()) / 1e9
		clipEnd := clipStart + c.Duration
		if !found {
			start, end, found = clipStart, clipEnd, true
			continue
		}
		start = min(start, clipStart)
		end = max(end, clipEnd)
	}
	return end - start, found
}

// Select picks the reference track: the pinned one, otherwise the one with
// the widest coverage, otherwise the one with the greatest summed duration.
// Ties go to the lower index. Tracks without clips are never selected.
func Select(tracks []*model.Track) (Selection, error) {
	if len(tracks) == 0 {
		return Selection{}, fmt.Errorf("%w: there are no tracks", ErrNoUsableReference)
	}

	var sel Selection
	pinned := -1
	for idx, t := range tracks {
		if !t.PinnedReference {
			continue
		}
		if pinned >= 0 {
			sel.Warnings = append(sel.Warnings, fmt.Sprintf("several tracks are pinned as the reference; using '%s'", tracks[pinned].Name))
			break
		}
		pinned = idx
	}
	if pinned >= 0 {
		if len(tracks[pinned].Clips) == 0 {
			return Selection{}, fmt.Errorf("%w: the pinned track '%s' has no clips", ErrNoUsableReference, tracks[pinned].Name)
		}
		sel.Index = pinned
		sel.Reason = ReasonPinned
		return sel, nil
	}

	bestIdx := -1
	var bestCoverage float64
	for idx, t := range tracks {
		if len(t.Clips) == 0 {
			continue
		}
		coverage, ok := Coverage(t)
		if !ok {
			continue
		}
		if bestIdx < 0 || coverage > bestCoverage {
			bestIdx, bestCoverage = idx, coverage
		}
	}
	if bestIdx >= 0 {
		sel.Index = bestIdx
		sel.Reason = ReasonCoverage
		return sel, nil
	}

	var bestDuration float64
	for idx, t := range tracks {
		if len(t.Clips) == 0 {
			continue
		}
		if d := t.SummedDuration(); bestIdx < 0 || d > bestDuration {
			bestIdx, bestDuration = idx, d
		}
	}
	if bestIdx < 0 {
		return Selection{}, fmt.Errorf("%w: no track has clips", ErrNoUsableReference)
	}
	sel.Index = bestIdx
	sel.Reason = ReasonSummedDuration
	return sel, nil
}
