package xcorr

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/audiosync/pkg/fft"
	"github.com/xaionaro-go/audiosync/pkg/fft/implementations/fourier"
	"github.com/xaionaro-go/audiosync/pkg/fft/implementations/godsp"
	"github.com/xaionaro-go/audiosync/pkg/fft/implementations/gonum"
	"github.com/xaionaro-go/audiosync/pkg/syncer"
)

func noise(seed int64, n int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64()
	}
	return out
}

func scaled(in []float64, gain float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = v * gain
	}
	return out
}

// bandLimited returns a sum of sines evaluated at t0, t0+1, ...
func bandLimited(seed int64, n int, t0 float64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	type partial struct{ freq, phase float64 }
	partials := make([]partial, 30)
	for i := range partials {
		partials[i] = partial{
			freq:  0.005 + rng.Float64()*0.095,
			phase: rng.Float64() * 2 * math.Pi,
		}
	}
	out := make([]float64, n)
	for i := range out {
		t := t0 + float64(i)
		for _, p := range partials {
			out[i] += math.Sin(2*math.Pi*p.freq*t + p.phase)
		}
	}
	return out
}

func TestSyncer_CalculateShiftBetween(t *testing.T) {
	s, err := NewSyncer(nil, 0)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("ahead by 10", func(t *testing.T) {
		ref := make([]float64, 1000)
		ref[500] = 1.0

		comp := make([]float64, 1000)
		comp[490] = 1.0 // the event is at 490 in comp and at 500 in ref

		results, err := s.CalculateShiftBetween(ctx, ref, comp)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.InDelta(t, 10.0, results[0].Lag, 0.01)
		assert.Greater(t, results[0].Confidence, 100.0)
	})

	t.Run("delayed by 10", func(t *testing.T) {
		ref := make([]float64, 1000)
		ref[500] = 1.0

		comp := make([]float64, 1000)
		comp[510] = 1.0

		results, err := s.CalculateShiftBetween(ctx, ref, comp)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.InDelta(t, -10.0, results[0].Lag, 0.01)
	})

	t.Run("noise excerpt with gain", func(t *testing.T) {
		ref := noise(1, 8000)
		comp := scaled(ref[3000:5000], 0.3)

		results, err := s.CalculateShiftBetween(ctx, ref, comp)
		require.NoError(t, err)
		assert.InDelta(t, 3000.0, results[0].Lag, 0.5)
		assert.Greater(t, results[0].Confidence, 10.0)
		assert.InDelta(t, 3000.0/8000, results[0].Offset(8000), 1.0/8000)
	})

	t.Run("comparison starts before the reference", func(t *testing.T) {
		full := noise(2, 6000)
		ref := full[500:]
		comp := full[:2000]

		results, err := s.CalculateShiftBetween(ctx, ref, comp)
		require.NoError(t, err)
		assert.InDelta(t, -500.0, results[0].Lag, 0.5)
		assert.Greater(t, results[0].Confidence, 10.0)
	})

	t.Run("sub-sample shift", func(t *testing.T) {
		ref := bandLimited(3, 4000, 0)
		comp := bandLimited(3, 1500, 1000.3)

		results, err := s.CalculateShiftBetween(ctx, ref, comp)
		require.NoError(t, err)
		assert.InDelta(t, 1000.3, results[0].Lag, 0.2)
	})

	t.Run("several comparison tracks", func(t *testing.T) {
		ref := noise(4, 8000)
		results, err := s.CalculateShiftBetween(ctx, ref, ref[100:1100], ref[7000:], nil)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.InDelta(t, 100.0, results[0].Lag, 0.5)
		assert.InDelta(t, 7000.0, results[1].Lag, 0.5)
		assert.Zero(t, results[2].Confidence)
	})

	t.Run("silence", func(t *testing.T) {
		ref := noise(5, 4000)
		comp := make([]float64, 1000)

		results, err := s.CalculateShiftBetween(ctx, ref, comp)
		require.NoError(t, err)
		assert.Zero(t, results[0].Confidence)
	})

	t.Run("empty reference", func(t *testing.T) {
		_, err := s.CalculateShiftBetween(ctx, nil, []float64{1})
		assert.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.CalculateShiftBetween(ctx, noise(6, 100), noise(7, 10))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSyncer_MaxLag(t *testing.T) {
	ref := noise(10, 8000)
	comp := ref[3000:5000]

	unbounded, err := NewSyncer(nil, 0)
	require.NoError(t, err)
	bounded, err := NewSyncer(nil, 1000)
	require.NoError(t, err)

	results, err := unbounded.CalculateShiftBetween(context.Background(), ref, comp)
	require.NoError(t, err)
	assert.InDelta(t, 3000.0, results[0].Lag, 0.5)

	results, err = bounded.CalculateShiftBetween(context.Background(), ref, comp)
	require.NoError(t, err)
	assert.LessOrEqual(t, math.Abs(results[0].Lag), 1001.0)
	assert.Less(t, results[0].Confidence, 10.0)
}

func TestFactory_LagRange(t *testing.T) {
	ref := noise(11, 8000)
	// a strong match at lag 500 and a weak one at lag 3000
	comp := ref[500:1500]
	weak := scaled(comp, 0.2)
	copy(ref[3000:4000], weak)

	f := &Factory{}
	s, err := f.NewSyncer(syncer.Unbounded)
	require.NoError(t, err)
	results, err := s.CalculateShiftBetween(context.Background(), ref, comp)
	require.NoError(t, err)
	assert.InDelta(t, 500.0, results[0].Lag, 0.5)

	// the window is not symmetric around lag zero
	s, err = f.NewSyncer(syncer.Around(3000, 200))
	require.NoError(t, err)
	results, err = s.CalculateShiftBetween(context.Background(), ref, comp)
	require.NoError(t, err)
	assert.InDelta(t, 3000.0, results[0].Lag, 0.5)

	_, err = f.NewSyncer(syncer.LagRange{From: 10, To: 5, Bounded: true})
	assert.Error(t, err)
}

func TestLagRange_Clamp(t *testing.T) {
	from, to := syncer.Unbounded.Clamp(-10, 100)
	assert.Equal(t, [2]int{-10, 100}, [2]int{from, to})
	from, to = syncer.Around(50, 20).Clamp(-10, 100)
	assert.Equal(t, [2]int{30, 70}, [2]int{from, to})
	from, to = syncer.Around(95, 20).Clamp(-10, 100)
	assert.Equal(t, [2]int{75, 100}, [2]int{from, to})
	from, to = syncer.Around(500, 20).Clamp(-10, 100)
	assert.Equal(t, [2]int{100, 100}, [2]int{from, to})
	from, to = syncer.Around(-500, 20).Clamp(-10, 100)
	assert.Equal(t, [2]int{-10, -10}, [2]int{from, to})
}

func TestSyncer_Deterministic(t *testing.T) {
	ref := noise(20, 16000)
	comp := scaled(ref[1234:9000], 2)

	s, err := NewSyncer(nil, 0)
	require.NoError(t, err)

	first, err := s.CalculateShiftBetween(context.Background(), ref, comp)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := s.CalculateShiftBetween(context.Background(), ref, comp)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSyncer_Backends(t *testing.T) {
	ref := noise(30, 4096)
	comp := ref[700:1700]
	for _, backend := range []fft.Backend{godsp.New(), fourier.New(), gonum.New()} {
		t.Run(backend.String(), func(t *testing.T) {
			s, err := NewSyncer(backend, 0)
			require.NoError(t, err)
			results, err := s.CalculateShiftBetween(context.Background(), ref, comp)
			require.NoError(t, err)
			assert.InDelta(t, 700.0, results[0].Lag, 0.5)
			assert.Greater(t, results[0].Confidence, 10.0)
		})
	}
}

func TestSyncer_PHAT(t *testing.T) {
	ref := noise(40, 8000)
	comp := scaled(ref[2500:4500], 0.1)

	f := &Factory{Weighting: WeightingPHAT}
	s, err := f.NewSyncer(syncer.Unbounded)
	require.NoError(t, err)
	results, err := s.CalculateShiftBetween(context.Background(), ref, comp)
	require.NoError(t, err)
	assert.InDelta(t, 2500.0, results[0].Lag, 0.5)
	assert.Greater(t, results[0].Confidence, 10.0)
}

func TestFindPeak_Parabola(t *testing.T) {
	// a symmetric peak between lags 2 and 3
	corr := make([]complex128, 8)
	corr[1] = 1
	corr[2] = 3
	corr[3] = 3
	corr[4] = 1
	res := FindPeak(corr, 5, 1, syncer.Unbounded)
	assert.InDelta(t, 2.5, res.Lag, 1e-9)

	// an inverted polarity peak is found as well
	corr = make([]complex128, 8)
	corr[3] = -5
	res = FindPeak(corr, 5, 1, syncer.Unbounded)
	assert.InDelta(t, 3.0, res.Lag, 1e-9)
	assert.InDelta(t, 5.0, res.Confidence, 1e-9)
}

func BenchmarkSyncer_CalculateShiftBetween(b *testing.B) {
	ref := noise(50, 8000*60)
	comp := ref[8000*10 : 8000*40]
	s, err := NewSyncer(nil, 0)
	require.NoError(b, err)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := s.CalculateShiftBetween(context.Background(), ref, comp)
		require.NoError(b, err)
	}
}
