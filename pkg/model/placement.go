package model

import (
	"encoding/json"
	"fmt"
)

// Placement tells how a clip got its timeline offset.
type Placement int

const (
	PlacementUnplaced = Placement(iota)
	// PlacementReference: a clip of the reference track, placed by metadata gaps.
	PlacementReference
	PlacementPass1Matched
	PlacementPass1Failed
	PlacementPass2Matched
	PlacementMetadataFallback
	// PlacementLowConfidence: no pass reached the good-match threshold and
	// no metadata was available; the best correlation is used.
	PlacementLowConfidence
	EndOfPlacement
)

var placementNames = map[Placement]string{
	PlacementUnplaced:         "unplaced",
	PlacementReference:        "reference",
	PlacementPass1Matched:     "pass1_matched",
	PlacementPass1Failed:      "pass1_failed",
	PlacementPass2Matched:     "pass2_matched",
	PlacementMetadataFallback: "metadata_fallback",
	PlacementLowConfidence:    "low_confidence",
}

func (p Placement) String() string {
	if name, ok := placementNames[p]; ok {
		return name
	}
	return fmt.Sprintf("<unknown_%d>", int(p))
}

// IsFinal returns true if the clip has a usable timeline offset.
func (p Placement) IsFinal() bool {
	switch p {
	case PlacementReference, PlacementPass1Matched, PlacementPass2Matched,
		PlacementMetadataFallback, PlacementLowConfidence:
		return true
	default:
		return false
	}
}

func ParsePlacement(s string) (Placement, error) {
	for p, name := range placementNames {
		if name == s {
			return p, nil
		}
	}
	return PlacementUnplaced, fmt.Errorf("unknown placement %q", s)
}

func (p Placement) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Placement) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("unable to unmarshal placement: %w", err)
	}
	v, err := ParsePlacement(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}
