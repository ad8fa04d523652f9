package resampler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq, rate float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / rate)
	}
	return out
}

func TestResampler(t *testing.T) {
	t.Run("Identity", func(t *testing.T) {
		in := sine(440, 8000, 1000)
		out, err := Resample(in, 8000, 8000)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("Downsample_48000_to_8000", func(t *testing.T) {
		in := sine(440, 48000, 48000)
		out, err := Resample(in, 48000, 8000)
		require.NoError(t, err)
		require.Len(t, out, 8000)

		expected := sine(440, 8000, 8000)
		// skip the edges where the kernel runs out of input
		for i := 200; i < len(out)-200; i++ {
			assert.InDelta(t, expected[i], out[i], 0.01, "sample %d", i)
		}
	})

	t.Run("Downsample_rejects_above_nyquist", func(t *testing.T) {
		// 6 kHz is above the 4 kHz output Nyquist frequency
		in := sine(6000, 48000, 48000)
		out, err := Resample(in, 48000, 8000)
		require.NoError(t, err)
		var peak float64
		for i := 200; i < len(out)-200; i++ {
			peak = math.Max(peak, math.Abs(out[i]))
		}
		assert.Less(t, peak, 0.05)
	})

	t.Run("Upsample_8000_to_44100", func(t *testing.T) {
		in := sine(300, 8000, 8000)
		out, err := Resample(in, 8000, 44100)
		require.NoError(t, err)
		require.Len(t, out, 44100)

		expected := sine(300, 44100, 44100)
		for i := 1000; i < len(out)-1000; i++ {
			assert.InDelta(t, expected[i], out[i], 0.01, "sample %d", i)
		}
	})

	t.Run("Fractional_stretch", func(t *testing.T) {
		const eps = 100e-6
		in := sine(250, 8000, 80000)
		out, err := Resample(in, 1+eps, 1)
		require.NoError(t, err)
		assert.Equal(t, int(math.Round(80000/(1+eps))), len(out))

		// out[i] must equal the input signal evaluated at i*(1+eps)
		for _, i := range []int{1000, 40000, 79000} {
			want := math.Sin(2 * math.Pi * 250 * float64(i) * (1 + eps) / 8000)
			assert.InDelta(t, want, out[i], 0.01, "sample %d", i)
		}
	})

	t.Run("Invalid_rates", func(t *testing.T) {
		_, err := New(0, 8000)
		assert.Error(t, err)
		_, err = New(8000, -1)
		assert.Error(t, err)
		_, err = NewWithQuality(8000, 16000, 0, 16)
		assert.Error(t, err)
	})
}

func BenchmarkResampler_48000_to_8000(b *testing.B) {
	in := sine(440, 48000, 48000)
	r, err := New(48000, 8000)
	require.NoError(b, err)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Resample(in)
	}
}
