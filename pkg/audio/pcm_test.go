package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeSample(t *testing.T) {
	for format := PCMFormatU8; format <= PCMFormatFloat64BE; format++ {
		t.Run(format.String(), func(t *testing.T) {
			buf := make([]byte, format.Size())
			for _, v := range []float64{-0.5, 0, 0.25, 0.75} {
				EncodeSample(format, buf, v)
				assert.InDelta(t, v, DecodeSample(format, buf), 0.01)
			}
		})
	}
}

func TestToMono(t *testing.T) {
	t.Run("stereo_s16le", func(t *testing.T) {
		data := make([]byte, 2*2*2)
		EncodeSample(PCMFormatS16LE, data[0:], 0.5)
		EncodeSample(PCMFormatS16LE, data[2:], -0.5)
		EncodeSample(PCMFormatS16LE, data[4:], 0.25)
		EncodeSample(PCMFormatS16LE, data[6:], 0.25)

		mono, err := ToMono(PCMFormatS16LE, 2, data)
		require.NoError(t, err)
		require.Len(t, mono, 2)
		assert.InDelta(t, 0.0, mono[0], 1e-4)
		assert.InDelta(t, 0.25, mono[1], 1e-4)
	})

	t.Run("truncated_frame", func(t *testing.T) {
		_, err := ToMono(PCMFormatS16LE, 2, make([]byte, 3))
		assert.Error(t, err)
	})

	t.Run("undefined_format", func(t *testing.T) {
		_, err := ToMono(PCMFormatUndefined, 1, make([]byte, 4))
		assert.Error(t, err)
	})
}

func TestMixDown(t *testing.T) {
	assert.Equal(t, []float64{0.5, 1}, MixDown([]float64{0, 1, 1, 1}, 2))
	assert.Equal(t, []float64{0.1, 0.2}, MixDown([]float64{0.1, 0.2}, 1))
}
