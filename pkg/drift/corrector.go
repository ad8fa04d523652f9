package drift

import (
	"fmt"
	"math"

	"github.com/xaionaro-go/audiosync/pkg/audio/resampler"
	"github.com/xaionaro-go/audiosync/pkg/model"
)

// Correct compensates the drift of the samples: a clip recorded ppm parts
// per million fast is shrunk to round(len/(1+ppm·1e-6)) samples.
func Correct(samples []float64, ppm float64) ([]float64, error) {
	factor := 1 + ppm*1e-6
	if !(factor > 0) {
		return nil, fmt.Errorf("invalid drift: %v ppm", ppm)
	}
	// float64 positions and no latency: out[i] = samples(i*factor)
	out, err := resampler.Resample(samples, factor, 1)
	if err != nil {
		return nil, fmt.Errorf("unable to resample: %w", err)
	}
	return out, nil
}

// ShouldCorrect tells if the estimate is worth applying.
func ShouldCorrect(est *model.DriftEstimate, thresholdPPM float64) bool {
	return est != nil && !est.Inconclusive && math.Abs(est.PPM) >= thresholdPPM
}
