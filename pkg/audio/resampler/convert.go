package resampler

import (
	"fmt"
	"math"
	"sync"

	soxr "github.com/tphakala/go-audio-resampler"
)

// ConvertQuality is the preset used by Convert.
var ConvertQuality = soxr.QualityHigh

// latencyImpulseLength is the length of the impulse used to measure the
// filter latency of a conversion; the impulse is in its middle.
const latencyImpulseLength = 1 << 16

type ratePair struct {
	in  float64
	out float64
}

// alignment is how to undo the filter latency of a conversion: the input
// is prefixed with Pad zeros and the first Trim output samples are dropped
// (a negative Trim prefixes the output with zeros).
type alignment struct {
	Pad  int
	Trim int
}

var alignments sync.Map // ratePair -> alignment

// Convert changes the sample rate of a whole buffer with the libsoxr-grade
// converter of github.com/tphakala/go-audio-resampler. The filter latency
// is cut off, so the output sample i matches the input position
// i*inRate/outRate (within half an input sample when downsampling and half
// an output sample when upsampling), and the output has
// round(len(samples)*outRate/inRate) samples (as Resample does).
//
// Equal rates produce a copy of the samples.
func Convert(samples []float64, inRate, outRate float64) ([]float64, error) {
	if !(inRate > 0) || math.IsInf(inRate, 0) {
		return nil, fmt.Errorf("input sample rate must be positive: got %v", inRate)
	}
	if !(outRate > 0) || math.IsInf(outRate, 0) {
		return nil, fmt.Errorf("output sample rate must be positive: got %v", outRate)
	}
	if inRate == outRate {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out, nil
	}
	length := int(math.Round(float64(len(samples)) * outRate / inRate))
	if len(samples) == 0 || length == 0 {
		return []float64{}, nil
	}

	align, err := convertAlignment(inRate, outRate)
	if err != nil {
		return nil, err
	}
	input := samples
	if align.Pad > 0 {
		input = make([]float64, align.Pad+len(samples))
		copy(input[align.Pad:], samples)
	}
	converted, err := soxr.ResampleMono(input, inRate, outRate, ConvertQuality)
	if err != nil {
		return nil, fmt.Errorf("unable to convert %v Hz to %v Hz: %w", inRate, outRate, err)
	}
	out := make([]float64, length)
	switch {
	case align.Trim < 0:
		copy(out[min(-align.Trim, length):], converted)
	case align.Trim < len(converted):
		copy(out, converted[align.Trim:])
	}
	return out, nil
}

// convertAlignment measures (once per pair of rates) how late the converter
// is. The latency is the centroid of the response to an impulse minus where
// the impulse belongs; for a linear-phase band-limited filter the centroid
// is exact even between output samples. The fractional part is then
// minimized by prefixing the input with zeros.
func convertAlignment(inRate, outRate float64) (alignment, error) {
	k := ratePair{in: inRate, out: outRate}
	if v, ok := alignments.Load(k); ok {
		return v.(alignment), nil
	}

	const at = latencyImpulseLength / 2
	ratio := outRate / inRate
	impulse := make([]float64, latencyImpulseLength)
	impulse[at] = 1
	response, err := soxr.ResampleMono(impulse, inRate, outRate, ConvertQuality)
	if err != nil {
		return alignment{}, fmt.Errorf("unable to convert %v Hz to %v Hz: %w", inRate, outRate, err)
	}
	var sum, moment float64
	for i, v := range response {
		sum += v
		moment += float64(i) * v
	}
	if !(math.Abs(sum) > 1e-9) {
		return alignment{}, fmt.Errorf("the converter of %v Hz to %v Hz has no DC response", inRate, outRate)
	}
	latency := moment/sum - at*ratio

	best := alignment{Trim: int(math.Round(latency))}
	bestErr := math.Abs(latency - math.Round(latency))
	// each zero of the prefix delays the output by ratio output samples
	for pad := 1; float64(pad)*ratio <= 1; pad++ {
		delayed := latency + float64(pad)*ratio
		if e := math.Abs(delayed - math.Round(delayed)); e < bestErr {
			best, bestErr = alignment{Pad: pad, Trim: int(math.Round(delayed))}, e
		}
	}
	alignments.Store(k, best)
	return best, nil
}
