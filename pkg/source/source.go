// Package source is the boundary to media decoding: it turns files into mono
// float64 samples and provides the metadata the analysis relies on.
package source

import (
	"context"
	"time"

	"github.com/xaionaro-go/audiosync/pkg/audio"
)

// Decoded is a decoded recording mixed down to mono.
type Decoded struct {
	Samples    []float64
	SampleRate audio.SampleRate
	// Channels is the amount of channels of the original recording.
	Channels audio.Channel
}

// Duration returns the duration in seconds.
func (d *Decoded) Duration() float64 {
	if d.SampleRate == 0 {
		return 0
	}
	return float64(len(d.Samples)) / float64(d.SampleRate)
}

type FileInfo struct {
	ModTime time.Time
	Size    int64
}

type AudioSource interface {
	// Decode returns the full-resolution samples of the file.
	Decode(ctx context.Context, path string) (*Decoded, error)

	// ProbeCreationTime returns the recording start time if known.
	// It returns (nil, nil) if the file has no such metadata.
	ProbeCreationTime(ctx context.Context, path string) (*time.Time, error)

	Stat(ctx context.Context, path string) (FileInfo, error)
}

// Decoder is a format-specific decoder registered for automatic selection.
type Decoder interface {
	Supports(path string) bool
	Decode(ctx context.Context, path string) (*Decoded, error)
}

// MetadataProber is a source of creation timestamps registered for automatic selection.
type MetadataProber interface {
	ProbeCreationTime(ctx context.Context, path string) (*time.Time, error)
}
