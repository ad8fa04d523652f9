package model

// Track is the ordered collection of clips recorded by one device.
type Track struct {
	Name        string `json:"name"`
	IsReference bool   `json:"is_reference"`
	// PinnedReference is the user override of the reference selection.
	PinnedReference bool    `json:"pinned_reference,omitempty"`
	Clips           []*Clip `json:"clips"`
}

// TotalDuration returns max(offset+duration) across the placed clips.
func (t *Track) TotalDuration() float64 {
	var total float64
	for _, c := range t.Clips {
		if end, ok := c.End(); ok && end > total {
			total = end
		}
	}
	return total
}

// SummedDuration returns the sum of clip durations.
func (t *Track) SummedDuration() float64 {
	var sum float64
	for _, c := range t.Clips {
		sum += c.Duration
	}
	return sum
}

func (t *Track) Clone() *Track {
	if t == nil {
		return nil
	}
	cpy := *t
	cpy.Clips = make([]*Clip, len(t.Clips))
	for i, c := range t.Clips {
		cpy.Clips[i] = c.Clone()
	}
	return &cpy
}

func CloneTracks(tracks []*Track) []*Track {
	out := make([]*Track, len(tracks))
	for i, t := range tracks {
		out[i] = t.Clone()
	}
	return out
}
