package syncer

import (
	"context"
)

type ShiftResult struct {
	// Lag is the position of the first comparison sample within the reference
	// signal, in samples with sub-sample precision: reference[t+Lag] ~ comparison[t].
	// A negative lag means the comparison starts before the reference.
	Lag float64

	// Confidence is the ratio between the correlation peak magnitude and the
	// mean magnitude of the whole correlation function. Zero means no usable
	// correlation (e.g. digital silence on either side).
	Confidence float64
}

// Offset converts the lag to seconds.
func (r ShiftResult) Offset(sampleRate float64) float64 {
	return r.Lag / sampleRate
}

type Syncer interface {
	// CalculateShiftBetween returns, for each comparison track, where it is
	// located within the reference track and how confident the match is.
	CalculateShiftBetween(
		ctx context.Context,
		referenceTrack []float64,
		comparisonTracks ...[]float64,
	) ([]ShiftResult, error)
}

// LagRange is an inclusive range of lags in samples. The zero value means
// unbounded.
type LagRange struct {
	From    int
	To      int
	Bounded bool
}

// Unbounded is the range of all the lags.
var Unbounded = LagRange{}

// Around returns the lags within [center-radius, center+radius]; a radius
// <= 0 means unbounded.
func Around(center, radius int) LagRange {
	if radius <= 0 {
		return Unbounded
	}
	return LagRange{From: center - radius, To: center + radius, Bounded: true}
}

// Clamp intersects the range with [from, to]. An empty intersection
// collapses to the nearest end of [from, to].
func (r LagRange) Clamp(from, to int) (int, int) {
	if !r.Bounded {
		return from, to
	}
	lo, hi := max(from, r.From), min(to, r.To)
	if lo > hi {
		if r.To < from {
			return from, from
		}
		return to, to
	}
	return lo, hi
}

type Factory interface {
	// NewSyncer returns a Syncer that only considers the lags within the range.
	NewSyncer(lags LagRange) (Syncer, error)
}
