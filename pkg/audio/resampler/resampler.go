// Package resampler implements band-limited sample rate conversion of mono
// float64 buffers using a polyphase windowed-sinc filter bank.
//
// For every output sample the fractional input position is split into an
// integer index and a phase. The filter bank holds the interpolation kernel
// pre-evaluated at Phases+1 evenly spaced phases; the two nearest phases are
// convolved with the input and linearly blended, which keeps the timing error
// far below what a nearest-phase lookup would introduce. When downsampling,
// the kernel cutoff is lowered to the output Nyquist frequency (and the kernel
// widened accordingly) to avoid aliasing. Being tabulated by phase rather
// than by a rational ratio, it handles arbitrary ratios such as the ones of
// clock drift correction.
//
// Convert does the fixed sample rate conversions (e.g. 48 kHz to 8 kHz)
// with github.com/tphakala/go-audio-resampler instead.
package resampler

import (
	"fmt"
	"math"
)

const (
	// DefaultZeroCrossings is the number of sinc zero crossings on each
	// side of the kernel center at unity cutoff.
	DefaultZeroCrossings = 16

	// DefaultPhases is the number of fractional positions the kernel is
	// tabulated at.
	DefaultPhases = 256
)

type Resampler struct {
	InRate  float64
	OutRate float64

	ratio     float64
	halfWidth int
	phases    int
	// table[phase] holds the kernel taps for input offsets
	// -halfWidth+1 .. halfWidth relative to floor(position).
	table [][]float64
}

// New builds a resampler converting from inRate to outRate (both in Hz,
// fractional rates are allowed).
func New(
	inRate, outRate float64,
) (*Resampler, error) {
	return NewWithQuality(inRate, outRate, DefaultZeroCrossings, DefaultPhases)
}

func NewWithQuality(
	inRate, outRate float64,
	zeroCrossings, phases int,
) (*Resampler, error) {
	if !(inRate > 0) || math.IsInf(inRate, 0) {
		return nil, fmt.Errorf("input sample rate must be positive: got %v", inRate)
	}
	if !(outRate > 0) || math.IsInf(outRate, 0) {
		return nil, fmt.Errorf("output sample rate must be positive: got %v", outRate)
	}
	if zeroCrossings <= 0 {
		return nil, fmt.Errorf("the number of zero crossings must be positive: got %d", zeroCrossings)
	}
	if phases <= 0 {
		return nil, fmt.Errorf("the number of phases must be positive: got %d", phases)
	}

	r := &Resampler{
		InRate:  inRate,
		OutRate: outRate,
		ratio:   outRate / inRate,
		phases:  phases,
	}
	cutoff := math.Min(1, r.ratio)
	r.halfWidth = int(math.Ceil(float64(zeroCrossings) / cutoff))

	taps := 2 * r.halfWidth
	r.table = make([][]float64, phases+1)
	for phase := 0; phase <= phases; phase++ {
		frac := float64(phase) / float64(phases)
		row := make([]float64, taps)
		for tapIdx := range row {
			t := float64(tapIdx-r.halfWidth+1) - frac
			row[tapIdx] = kernel(t, cutoff, float64(r.halfWidth))
		}
		r.table[phase] = row
	}
	return r, nil
}

func kernel(t, cutoff, halfWidth float64) float64 {
	if math.Abs(t) >= halfWidth {
		return 0
	}
	return cutoff * sinc(cutoff*t) * blackman(t/halfWidth)
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// blackman is the Blackman window evaluated at u in [-1, 1].
func blackman(u float64) float64 {
	return 0.42 + 0.5*math.Cos(math.Pi*u) + 0.08*math.Cos(2*math.Pi*u)
}

// OutputLength returns the amount of samples Resample produces for inLen input samples.
func (r *Resampler) OutputLength(inLen int) int {
	return int(math.Round(float64(inLen) * r.ratio))
}

// Resample converts the whole buffer. Samples outside of the input are treated as silence.
func (r *Resampler) Resample(in []float64) []float64 {
	outLen := r.OutputLength(len(in))
	out := make([]float64, outLen)
	if r.InRate == r.OutRate {
		copy(out, in)
		return out
	}

	step := 1 / r.ratio
	for outIdx := range out {
		pos := float64(outIdx) * step
		base := math.Floor(pos)
		scaled := (pos - base) * float64(r.phases)
		phase := int(scaled)
		if phase >= r.phases {
			phase = r.phases - 1
		}
		alpha := scaled - float64(phase)

		start := int(base) - r.halfWidth + 1
		lo := r.table[phase]
		hi := r.table[phase+1]
		var accLo, accHi float64
		for tapIdx := range lo {
			inIdx := start + tapIdx
			if inIdx < 0 || inIdx >= len(in) {
				continue
			}
			v := in[inIdx]
			accLo += v * lo[tapIdx]
			accHi += v * hi[tapIdx]
		}
		out[outIdx] = accLo + alpha*(accHi-accLo)
	}
	return out
}

// Resample converts samples from inRate to outRate with the default quality.
func Resample(
	samples []float64,
	inRate, outRate float64,
) ([]float64, error) {
	r, err := New(inRate, outRate)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a resampler from %v to %v: %w", inRate, outRate, err)
	}
	return r.Resample(samples), nil
}
