package wav

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndDecode(t *testing.T) {
	dir := t.TempDir()
	samples := make([]float64, 4800)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/48000)
	}

	for _, bitDepth := range []int{16, 24} {
		path := filepath.Join(dir, "tone.wav")
		require.NoError(t, WriteMono(path, samples, 48000, bitDepth))

		d := &Decoder{}
		require.True(t, d.Supports(path))
		decoded, err := d.Decode(context.Background(), path)
		require.NoError(t, err)
		assert.EqualValues(t, 48000, decoded.SampleRate)
		assert.EqualValues(t, 1, decoded.Channels)
		require.Len(t, decoded.Samples, len(samples))
		for i := range samples {
			assert.InDelta(t, samples[i], decoded.Samples[i], 1e-3)
		}
		assert.InDelta(t, 0.1, decoded.Duration(), 1e-9)
	}
}

func TestWriteMono_Invalid(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, WriteMono(filepath.Join(dir, "a.wav"), []float64{0}, 48000, 12))
	assert.Error(t, WriteMono(filepath.Join(dir, "a.wav"), []float64{0}, 0, 16))
}

func TestDecode_Missing(t *testing.T) {
	_, err := (&Decoder{}).Decode(context.Background(), filepath.Join(t.TempDir(), "nope.wav"))
	assert.Error(t, err)
}
