// Package xcorr implements the one-shot audio synchronization algorithm:
// FFT-based cross-correlation with a peak-to-mean confidence score and
// parabolic sub-sample refinement.
//
// The correlation theorem is used: both signals are zero-padded to a power of
// two of at least n1+n2-1 samples (so the circular correlation equals the
// linear one), transformed, multiplied (one by the conjugate of the other)
// and transformed back. Optionally the cross-power spectrum is band limited
// and/or whitened (GCC-PHAT).
package xcorr

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audiosync/pkg/fft"
	"github.com/xaionaro-go/audiosync/pkg/fft/implementations/godsp"
	"github.com/xaionaro-go/audiosync/pkg/syncer"
)

type Syncer struct {
	Backend fft.Backend
	// Lags bounds the searched lags.
	Lags      syncer.LagRange
	Weighting Weighting
	// SampleRate, MinFreq and MaxFreq configure optional band limiting.
	// Zero frequencies mean no limit.
	SampleRate float64
	MinFreq    float64
	MaxFreq    float64
}

var _ syncer.Syncer = (*Syncer)(nil)

// NewSyncer initializes a new one-shot cross-correlation syncer searching
// the lags within [-maxLag, maxLag] (zero means unbounded).
// A nil backend means go-dsp.
func NewSyncer(
	backend fft.Backend,
	maxLag int,
) (*Syncer, error) {
	if maxLag < 0 {
		return nil, fmt.Errorf("maxLag must not be negative: got %d", maxLag)
	}
	if backend == nil {
		backend = godsp.New()
	}
	return &Syncer{
		Backend: backend,
		Lags:    syncer.Around(0, maxLag),
	}, nil
}

func (s *Syncer) CalculateShiftBetween(
	ctx context.Context,
	referenceTrack []float64,
	comparisonTracks ...[]float64,
) ([]syncer.ShiftResult, error) {
	if len(referenceTrack) == 0 {
		return nil, fmt.Errorf("the reference track is empty")
	}

	// the reference spectrum only depends on the FFT size
	refSpectra := map[int][]complex128{}

	results := make([]syncer.ShiftResult, len(comparisonTracks))
	for i, comparisonTrack := range comparisonTracks {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if len(comparisonTrack) == 0 {
			logger.Debugf(ctx, "comparison track %d is empty", i)
			continue
		}

		n1 := len(referenceTrack)
		n2 := len(comparisonTrack)
		n := fft.NextPowerOfTwo(n1 + n2 - 1)

		fref, ok := refSpectra[n]
		if !ok {
			var err error
			fref, err = s.Backend.Forward(fft.RealToComplex(referenceTrack, n))
			if err != nil {
				return nil, fmt.Errorf("unable to transform the reference track: %w", err)
			}
			refSpectra[n] = fref
		}

		fcomp, err := s.Backend.Forward(fft.RealToComplex(comparisonTrack, n))
		if err != nil {
			return nil, fmt.Errorf("unable to transform comparison track %d: %w", i, err)
		}

		cross, err := CrossPowerSpectrum(fref, fcomp, s.Weighting, s.SampleRate, s.MinFreq, s.MaxFreq)
		if err != nil {
			return nil, fmt.Errorf("unable to compute the cross-power spectrum of track %d: %w", i, err)
		}

		corr, err := s.Backend.Inverse(cross)
		if err != nil {
			return nil, fmt.Errorf("unable to transform back the correlation of track %d: %w", i, err)
		}

		results[i] = FindPeak(corr, n1, n2, s.Lags)
	}
	return results, nil
}

// Factory creates Syncers sharing the same backend and weighting.
type Factory struct {
	Backend   fft.Backend
	Weighting Weighting
}

var _ syncer.Factory = (*Factory)(nil)

func (f *Factory) NewSyncer(lags syncer.LagRange) (syncer.Syncer, error) {
	if lags.Bounded && lags.From > lags.To {
		return nil, fmt.Errorf("invalid lag range: [%d, %d]", lags.From, lags.To)
	}
	s, err := NewSyncer(f.Backend, 0)
	if err != nil {
		return nil, err
	}
	s.Lags = lags
	s.Weighting = f.Weighting
	return s, nil
}
