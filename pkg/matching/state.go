// Package matching places the clips of the non-reference tracks on the
// shared timeline: a correlation pass against the reference timeline, a
// second pass against the reference enhanced with the clips placed by the
// first pass, and a creation-time fallback for whatever is still unplaced.
package matching

import (
	"fmt"

	"github.com/xaionaro-go/audiosync/pkg/model"
)

// State is the placement state of one clip.
type State struct {
	Placement model.Placement
	// Offset is the timeline offset in seconds.
	Offset float64
	// Confidence is the best correlation confidence seen so far; it never decreases.
	Confidence float64
	// Scored is true once a correlation produced a result for the clip.
	Scored bool
}

func (s State) String() string {
	return fmt.Sprintf("%s@%.4fs(%.2f)", s.Placement, s.Offset, s.Confidence)
}

type Event interface {
	fmt.Stringer
	apply(State) State
}

// Pass1Result is the correlation of the clip against the reference timeline.
type Pass1Result struct {
	Offset     float64
	Confidence float64
	GoodMatch  float64
}

func (ev Pass1Result) String() string {
	return fmt.Sprintf("Pass1Result(%.4fs, %.2f)", ev.Offset, ev.Confidence)
}

func (ev Pass1Result) apply(s State) State {
	if s.Placement != model.PlacementUnplaced {
		return s
	}
	s.Offset = ev.Offset
	s.Confidence = ev.Confidence
	s.Scored = true
	if ev.Confidence >= ev.GoodMatch {
		s.Placement = model.PlacementPass1Matched
	} else {
		s.Placement = model.PlacementPass1Failed
	}
	return s
}

// Pass2Result is the correlation of the clip against the enhanced timeline.
type Pass2Result struct {
	Offset     float64
	Confidence float64
	GoodMatch  float64
}

func (ev Pass2Result) String() string {
	return fmt.Sprintf("Pass2Result(%.4fs, %.2f)", ev.Offset, ev.Confidence)
}

func (ev Pass2Result) apply(s State) State {
	switch s.Placement {
	case model.PlacementUnplaced, model.PlacementPass1Failed:
	default:
		return s
	}
	// on a tie the first pass result is kept
	if !s.Scored || ev.Confidence > s.Confidence {
		s.Offset = ev.Offset
		s.Confidence = ev.Confidence
		s.Scored = true
	}
	if s.Confidence >= ev.GoodMatch {
		s.Placement = model.PlacementPass2Matched
	} else {
		s.Placement = model.PlacementPass1Failed
	}
	return s
}

// Finalize resolves the clips no pass could place.
type Finalize struct {
	// Fallback is the offset derived from the creation time; nil if the
	// clip (or the reference) has no usable metadata.
	Fallback *float64
}

func (ev Finalize) String() string {
	if ev.Fallback == nil {
		return "Finalize(<no metadata>)"
	}
	return fmt.Sprintf("Finalize(%.4fs)", *ev.Fallback)
}

func (ev Finalize) apply(s State) State {
	switch s.Placement {
	case model.PlacementUnplaced, model.PlacementPass1Failed:
	default:
		return s
	}
	switch {
	case ev.Fallback != nil:
		s.Placement = model.PlacementMetadataFallback
		s.Offset = *ev.Fallback
	case s.Scored:
		s.Placement = model.PlacementLowConfidence
	}
	return s
}

// Transition returns the state after the event. It has no side effects.
func Transition(s State, ev Event) State {
	return ev.apply(s)
}
