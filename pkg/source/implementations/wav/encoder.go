package wav

import (
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteMono writes the samples (expected within [-1, 1], clipped otherwise)
// as a mono integer PCM WAV file.
func WriteMono(
	path string,
	samples []float64,
	sampleRate int,
	bitDepth int,
) (_err error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive: got %d", sampleRate)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create '%s': %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil && _err == nil {
			_err = fmt.Errorf("unable to close '%s': %w", path, err)
		}
	}()

	maxValue := float64(int64(1)<<(bitDepth-1)) - 1
	data := make([]int, len(samples))
	for i, v := range samples {
		v = math.Max(-1, math.Min(1, v))
		data[i] = int(math.Round(v * maxValue))
	}

	enc := wav.NewEncoder(f, sampleRate, bitDepth, 1, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("unable to write the samples into '%s': %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("unable to finalize '%s': %w", path, err)
	}
	return nil
}
