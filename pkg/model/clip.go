package model

import (
	"fmt"
	"time"
)

// Clip is one source recording segment.
type Clip struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	Name string `json:"name"`

	ModTime      time.Time  `json:"mod_time"`
	CreationTime *time.Time `json:"creation_time,omitempty"`

	// Duration is in seconds.
	Duration   float64 `json:"duration_s"`
	SampleRate uint32  `json:"sample_rate"`
	Channels   uint32  `json:"channels"`
	IsVideo    bool    `json:"is_video"`

	// Analysis is nil until an analysis run placed the clip.
	Analysis *ClipAnalysis `json:"analysis,omitempty"`
}

// SourceID identifies the content of the clip: the path and the modification time.
func (c *Clip) SourceID() string {
	return fmt.Sprintf("%s@%d", c.Path, c.ModTime.UnixNano())
}

// End returns the end of the clip on the timeline, if placed.
func (c *Clip) End() (float64, bool) {
	if c.Analysis == nil || !c.Analysis.Placement.IsFinal() {
		return 0, false
	}
	return c.Analysis.TimelineOffset + c.Duration, true
}

func (c *Clip) String() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// Clone returns a deep copy.
func (c *Clip) Clone() *Clip {
	if c == nil {
		return nil
	}
	cpy := *c
	if c.CreationTime != nil {
		ct := *c.CreationTime
		cpy.CreationTime = &ct
	}
	cpy.Analysis = c.Analysis.Clone()
	return &cpy
}

type ClipAnalysis struct {
	// TimelineOffset is in seconds on the shared timeline.
	TimelineOffset float64   `json:"timeline_offset_s"`
	Confidence     float64   `json:"confidence"`
	Placement      Placement `json:"placement"`

	// Drift is nil if not measured.
	Drift          *DriftEstimate `json:"drift,omitempty"`
	DriftCorrected bool           `json:"drift_corrected"`
}

func (a *ClipAnalysis) Clone() *ClipAnalysis {
	if a == nil {
		return nil
	}
	cpy := *a
	if a.Drift != nil {
		d := *a.Drift
		cpy.Drift = &d
	}
	return &cpy
}

type DriftEstimate struct {
	// PPM is positive when the clip's clock runs fast relative to the reference.
	PPM      float64 `json:"drift_ppm"`
	RSquared float64 `json:"drift_r_squared"`
	// Windows is the number of windows the regression was fit on.
	Windows      int  `json:"windows"`
	Inherited    bool `json:"inherited,omitempty"`
	Inconclusive bool `json:"inconclusive,omitempty"`
}
