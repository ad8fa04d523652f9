package xcorr

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/xaionaro-go/audiosync/pkg/syncer"
)

type Weighting int

const (
	// WeightingNone is the plain cross-correlation.
	WeightingNone = Weighting(iota)

	// WeightingPHAT whitens the cross-power spectrum (Phase Transform), so only
	// the phase contributes to the peak. It sharpens the peak in reverberant
	// rooms at the cost of being more sensitive to uncorrelated noise.
	WeightingPHAT
)

func (w Weighting) String() string {
	switch w {
	case WeightingNone:
		return "none"
	case WeightingPHAT:
		return "phat"
	default:
		return fmt.Sprintf("<unknown_%d>", int(w))
	}
}

// PHATThreshold is the fraction of the strongest cross-power bin below which
// bins are zeroed instead of whitened (60dB down).
const PHATThreshold = 0.001

// CrossPowerSpectrum computes fref * conj(fcomp), optionally band limited to
// [minFreq, maxFreq] Hz (zero means no limit) and PHAT-weighted.
// The inverse transform of the result at index k is sum_t ref[t+k]*comp[t].
func CrossPowerSpectrum(
	fref, fcomp []complex128,
	weighting Weighting,
	sampleRate, minFreq, maxFreq float64,
) ([]complex128, error) {
	if len(fref) != len(fcomp) {
		return nil, fmt.Errorf("fref and fcomp must have same length: %d != %d", len(fref), len(fcomp))
	}
	n := len(fref)

	binMin := 0
	binMax := n / 2
	if minFreq > 0 || maxFreq > 0 {
		if sampleRate <= 0 {
			return nil, fmt.Errorf("sample rate is required for band limiting: got %v", sampleRate)
		}
		if minFreq > 0 {
			binMin = int(minFreq * float64(n) / sampleRate)
		}
		if maxFreq > 0 && maxFreq < sampleRate/2 {
			binMax = int(maxFreq * float64(n) / sampleRate)
		}
	}

	res := make([]complex128, n)
	for i := 0; i < n; i++ {
		idx := i
		if i > n/2 {
			idx = n - i
		}
		if idx < binMin || idx > binMax {
			continue
		}
		res[i] = fref[i] * cmplx.Conj(fcomp[i])
	}

	if weighting != WeightingPHAT {
		return res, nil
	}

	maxMag := 0.0
	for _, v := range res {
		maxMag = math.Max(maxMag, cmplx.Abs(v))
	}
	threshold := maxMag * PHATThreshold
	for i, v := range res {
		mag := cmplx.Abs(v)
		if mag > threshold && mag > 1e-12 {
			res[i] = v / complex(mag, 0)
		} else {
			res[i] = 0
		}
	}
	return res, nil
}

// FindPeak locates the correlation peak.
//
// corr is the circular correlation of length n >= refLen+compLen-1 as returned by
// the inverse transform of CrossPowerSpectrum: the lag L >= 0 is stored at
// index L and the lag L < 0 at index n+L. The valid lags are
// [-(compLen-1), refLen-1]; the peak is searched within the intersection of
// them with lags.
//
// Magnitudes are absolute values, so a polarity-inverted signal still
// produces a peak. The first maximum in ascending lag order wins, and the
// mean is a sequential sum over all valid lags, so the result is reproducible
// bit for bit.
//
// The peak is refined with a parabola through the peak and its two
// neighbours: delta = 0.5*(a-c)/(a-2b+c).
func FindPeak(
	corr []complex128,
	refLen, compLen int,
	lags syncer.LagRange,
) syncer.ShiftResult {
	n := len(corr)
	if refLen <= 0 || compLen <= 0 || n < refLen+compLen-1 {
		return syncer.ShiftResult{}
	}

	firstLag := -(compLen - 1)
	lastLag := refLen - 1
	magnitude := func(lag int) float64 {
		idx := lag
		if idx < 0 {
			idx += n
		}
		return math.Abs(real(corr[idx]))
	}

	var sum float64
	for lag := firstLag; lag <= lastLag; lag++ {
		sum += magnitude(lag)
	}
	mean := sum / float64(lastLag-firstLag+1)
	if !(mean > 0) {
		return syncer.ShiftResult{}
	}

	searchFrom, searchTo := lags.Clamp(firstLag, lastLag)

	peakLag := searchFrom
	peak := -1.0
	for lag := searchFrom; lag <= searchTo; lag++ {
		if v := magnitude(lag); v > peak {
			peak = v
			peakLag = lag
		}
	}

	shift := float64(peakLag)
	if peakLag > firstLag && peakLag < lastLag {
		a := magnitude(peakLag - 1)
		c := magnitude(peakLag + 1)
		if peak >= a && peak >= c {
			denom := a - 2*peak + c
			if math.Abs(denom) > 1e-12 {
				shift += 0.5 * (a - c) / denom
			}
		}
	}

	return syncer.ShiftResult{
		Lag:        shift,
		Confidence: peak / mean,
	}
}
