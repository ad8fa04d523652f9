package drift

import (
	"fmt"

	"github.com/xaionaro-go/audiosync/pkg/model"
)

// Inherit copies the drift of the longest conclusively measured clip of the
// track to the placed clips that have no measurement of their own. It
// returns a warning per clip that could not get any drift value.
func Inherit(track *model.Track) []string {
	var source *model.Clip
	for _, c := range track.Clips {
		a := c.Analysis
		if a == nil || a.Drift == nil || a.Drift.Inherited || a.Drift.Inconclusive {
			continue
		}
		if source == nil || c.Duration > source.Duration {
			source = c
		}
	}

	var warnings []string
	for _, c := range track.Clips {
		a := c.Analysis
		if a == nil || !a.Placement.IsFinal() || a.Placement == model.PlacementReference || a.Drift != nil {
			continue
		}
		if source == nil {
			warnings = append(warnings, fmt.Sprintf("'%s' is too short to measure the drift and no other clip of '%s' has a conclusive measurement", c, track.Name))
			continue
		}
		a.Drift = &model.DriftEstimate{
			PPM:       source.Analysis.Drift.PPM,
			RSquared:  source.Analysis.Drift.RSquared,
			Windows:   source.Analysis.Drift.Windows,
			Inherited: true,
		}
	}
	return warnings
}
