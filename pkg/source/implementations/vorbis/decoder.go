// Package vorbis decodes Ogg Vorbis files with github.com/jfreymuth/oggvorbis.
package vorbis

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jfreymuth/oggvorbis"
	"github.com/xaionaro-go/audiosync/pkg/audio"
	"github.com/xaionaro-go/audiosync/pkg/source"
)

const Priority = 100

type Decoder struct{}

var _ source.Decoder = (*Decoder)(nil)

func init() {
	source.RegisterDecoder(Priority, &Decoder{})
}

func (*Decoder) Supports(path string) bool {
	return source.HasExtension(path, ".ogg")
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
	return DecodeReader(bufio.NewReader(f))
}

// DecodeReader decodes a whole Ogg Vorbis stream.
func DecodeReader(r io.Reader) (*source.Decoded, error) {
	data, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to decode the vorbis stream: %w", err)
	}
	if format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid vorbis stream format: %d channels at %d Hz", format.Channels, format.SampleRate)
	}

	interleaved := make([]float64, len(data))
	for i, v := range data {
		interleaved[i] = float64(v)
	}
	return &source.Decoded{
		Samples:    audio.MixDown(interleaved, audio.Channel(format.Channels)),
		SampleRate: audio.SampleRate(format.SampleRate),
		Channels:   audio.Channel(format.Channels),
	}, nil
}
