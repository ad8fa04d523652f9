// Package drift measures and compensates the sample clock drift between the
// devices.
//
// A clip recorded by a device whose clock runs fast by ε contains (1+ε)
// samples per reference second, so its content drifts away from the
// reference linearly with time. The drift is measured by correlating windows
// of the clip against the reference around their expected positions and
// fitting a line through the measured offsets.
package drift

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audiosync/pkg/model"
	"github.com/xaionaro-go/audiosync/pkg/syncer"
	"github.com/xaionaro-go/audiosync/pkg/syncer/implementations/xcorr"
	"github.com/xaionaro-go/audiosync/pkg/timeline"
	"gonum.org/v1/gonum/stat"
)

// ErrTooShort means the clip (or its overlap with the reference) does not fit
// the minimal amount of windows.
var ErrTooShort = errors.New("too short to measure the drift")

// silenceEnergy is the mean squared amplitude below which a window is skipped.
const silenceEnergy = 1e-10

// Measurement is the offset deviation of one window.
type Measurement struct {
	// Position is the start of the window within the clip in seconds.
	Position float64
	// Deviation is the measured position minus the expected one, in seconds.
	Deviation  float64
	Confidence float64
}

type Estimator struct {
	Syncer syncer.Syncer
	Config model.AnalysisConfig
}

// NewEstimator returns an estimator using the given syncer; nil means the
// default cross-correlation.
func NewEstimator(s syncer.Syncer, cfg model.AnalysisConfig) (*Estimator, error) {
	if s == nil {
		var err error
		s, err = xcorr.NewSyncer(nil, 0)
		if err != nil {
			return nil, fmt.Errorf("unable to initialize the syncer: %w", err)
		}
	}
	return &Estimator{Syncer: s, Config: cfg}, nil
}

// Estimate measures the drift of the clip placed at offset (seconds) on the
// reference timeline. The clip must be sampled at the timeline rate.
func (e *Estimator) Estimate(
	ctx context.Context,
	reference *timeline.Timeline,
	clip []float64,
	offset float64,
) (_ *model.DriftEstimate, _err error) {
	logger.Tracef(ctx, "Estimate(%.3f)", offset)
	defer func() { logger.Tracef(ctx, "/Estimate(%.3f): %v", offset, _err) }()

	measurements, err := e.Measure(ctx, reference, clip, offset)
	if err != nil {
		return nil, err
	}
	if len(measurements) < e.Config.DriftMinWindows {
		return nil, fmt.Errorf("%w: %d usable windows, need %d", ErrTooShort, len(measurements), e.Config.DriftMinWindows)
	}
	return Fit(measurements, reference.SampleRate, e.Config.DriftMinRSquared), nil
}

// Measure correlates every non-silent window of the clip within
// ±(window/2) around its expected position.
func (e *Estimator) Measure(
	ctx context.Context,
	reference *timeline.Timeline,
	clip []float64,
	offset float64,
) ([]Measurement, error) {
	rate := reference.SampleRate
	window := int(math.Round(e.Config.DriftWindow.Seconds() * rate))
	stride := int(math.Round(e.Config.DriftStride.Seconds() * rate))
	if window <= 0 || stride <= 0 {
		return nil, fmt.Errorf("the window (%d) and the stride (%d) must be at least one sample", window, stride)
	}
	margin := window / 2

	var result []Measurement
	for start := 0; start+window <= len(clip); start += stride {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		segment := clip[start : start+window]
		if isSilent(segment) {
			logger.Tracef(ctx, "window at %d is silent", start)
			continue
		}
		expected := offset + float64(start)/rate
		refSegment := reference.Segment(expected-float64(margin)/rate, window+2*margin)
		if isSilent(refSegment) {
			logger.Tracef(ctx, "window at %d is outside of the reference", start)
			continue
		}

		results, err := e.Syncer.CalculateShiftBetween(ctx, refSegment, segment)
		if err != nil {
			return nil, fmt.Errorf("unable to correlate the window at %d: %w", start, err)
		}
		res := results[0]
		deviation := res.Lag - float64(margin)
		if math.Abs(deviation) > float64(margin) || res.Confidence < e.Config.LowMatchConfidence {
			logger.Debugf(ctx, "window at %d is unreliable: deviation %.2f samples, confidence %.2f", start, deviation, res.Confidence)
			continue
		}
		result = append(result, Measurement{
			Position:   float64(start) / rate,
			Deviation:  deviation / rate,
			Confidence: res.Confidence,
		})
	}
	return result, nil
}

// Fit computes the drift from the measurements with an ordinary least
// squares fit of the deviation over the position. If all deviations are
// within half a sample of each other the clocks agree within the measurement
// resolution and the estimate is conclusive regardless of R².
func Fit(
	measurements []Measurement,
	sampleRate float64,
	minRSquared float64,
) *model.DriftEstimate {
	xs := make([]float64, len(measurements))
	ys := make([]float64, len(measurements))
	minY, maxY := math.Inf(1), math.Inf(-1)
	for i, m := range measurements {
		xs[i] = m.Position
		ys[i] = m.Deviation
		minY = math.Min(minY, m.Deviation)
		maxY = math.Max(maxY, m.Deviation)
	}

	alpha, slope := stat.LinearRegression(xs, ys, nil, false)
	rSquared := stat.RSquared(xs, ys, nil, alpha, slope)
	if math.IsNaN(rSquared) || rSquared < 0 {
		rSquared = 0
	}
	rSquared = math.Min(rSquared, 1)

	stable := maxY-minY < 0.5/sampleRate
	return &model.DriftEstimate{
		PPM:          SlopeToPPM(slope),
		RSquared:     rSquared,
		Windows:      len(measurements),
		Inconclusive: !stable && rSquared <= minRSquared,
	}
}

// SlopeToPPM converts the slope of the deviation over the clip position to
// the clock rate difference in parts per million. A positive value means the
// clip's clock runs fast.
func SlopeToPPM(slope float64) float64 {
	return -slope / (1 + slope) * 1e6
}

func isSilent(samples []float64) bool {
	if len(samples) == 0 {
		return true
	}
	var energy float64
	for _, v := range samples {
		energy += v * v
	}
	return energy/float64(len(samples)) < silenceEnergy
}
