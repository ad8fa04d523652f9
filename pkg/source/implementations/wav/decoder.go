// Package wav decodes and encodes RIFF/WAVE PCM files with github.com/go-audio/wav.
package wav

import (
	"context"
	"fmt"
	"os"

	"github.com/go-audio/wav"
	"github.com/xaionaro-go/audiosync/pkg/audio"
	"github.com/xaionaro-go/audiosync/pkg/source"
)

const (
	Priority = 100

	wavFormatPCM = 1
)

type Decoder struct{}

var _ source.Decoder = (*Decoder)(nil)

func init() {
	source.RegisterDecoder(Priority, &Decoder{})
}

func (*Decoder) Supports(path string) bool {
	return source.HasExtension(path, ".wav")
}

func (*Decoder) Decode(
	ctx context.Context,
	path string,
) (*source.Decoded, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("'%s' is not a valid WAV file", path)
	}
	if d.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("unsupported WAV audio format %d (only integer PCM is supported)", d.WavAudioFormat)
	}
	if d.NumChans == 0 || d.SampleRate == 0 {
		return nil, fmt.Errorf("invalid WAV header: %d channels at %d Hz", d.NumChans, d.SampleRate)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("unable to read the PCM data of '%s': %w", path, err)
	}

	interleaved := make([]float64, len(buf.Data))
	bitDepth := int(d.BitDepth)
	switch {
	case bitDepth == 8:
		// 8-bit WAV is unsigned
		for i, v := range buf.Data {
			interleaved[i] = (float64(v) - 128) / 128
		}
	case bitDepth > 8 && bitDepth <= 32:
		fullScale := float64(int64(1) << (bitDepth - 1))
		for i, v := range buf.Data {
			interleaved[i] = float64(v) / fullScale
		}
	default:
		return nil, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}

	return &source.Decoded{
		Samples:    audio.MixDown(interleaved, audio.Channel(d.NumChans)),
		SampleRate: audio.SampleRate(d.SampleRate),
		Channels:   audio.Channel(d.NumChans),
	}, nil
}
