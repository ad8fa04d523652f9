// Package ffmpeg decodes any container ffmpeg understands (video files
// included) and probes creation timestamps with ffprobe. Both binaries are
// executed as external processes.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audiosync/pkg/audio"
	"github.com/xaionaro-go/audiosync/pkg/source"
	"github.com/xaionaro-go/datacounter"
)

const (
	// Priority is lower than the native decoders: ffmpeg is the fallback.
	Priority = 10

	// ProberPriority is the priority of the creation-time prober.
	ProberPriority = 100
)

type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
}

var (
	_ source.Decoder        = (*FFmpeg)(nil)
	_ source.MetadataProber = (*FFmpeg)(nil)
)

func init() {
	source.RegisterDecoder(Priority, New())
	source.RegisterMetadataProber(ProberPriority, &prober{New()})
}

// prober is registered separately, since the registry is keyed by type.
type prober struct {
	*FFmpeg
}

func New() *FFmpeg {
	return &FFmpeg{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
	}
}

func (*FFmpeg) Supports(path string) bool {
	return source.IsSupported(path)
}

func (f *FFmpeg) Decode(
	ctx context.Context,
	path string,
) (_ *source.Decoded, _err error) {
	logger.Tracef(ctx, "Decode(%s)", path)
	defer func() { logger.Tracef(ctx, "/Decode(%s): %v", path, _err) }()

	info, err := f.probe(ctx, path)
	if err != nil {
		return nil, err
	}
	stream := info.audioStream()
	if stream == nil {
		return nil, fmt.Errorf("'%s' has no audio stream", path)
	}
	sampleRate, err := strconv.ParseUint(stream.SampleRate, 10, 32)
	if err != nil || sampleRate == 0 {
		return nil, fmt.Errorf("unable to parse the sample rate '%s' of '%s': %v", stream.SampleRate, path, err)
	}

	cmd := exec.CommandContext(ctx, f.FFmpegPath,
		"-v", "error",
		"-i", path,
		"-vn",
		"-ac", "1",
		"-ar", strconv.FormatUint(sampleRate, 10),
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"pipe:1",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("unable to get the stdout of ffmpeg: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("unable to start ffmpeg: %w", err)
	}

	counter := datacounter.NewReaderCounter(stdout)
	raw, readErr := io.ReadAll(counter)
	waitErr := cmd.Wait()
	logger.Debugf(ctx, "read %d bytes of PCM from ffmpeg for '%s'", counter.Count(), path)
	if readErr != nil {
		return nil, fmt.Errorf("unable to read the ffmpeg output: %w", readErr)
	}
	if waitErr != nil {
		return nil, fmt.Errorf("ffmpeg failed for '%s': %w: %s", path, waitErr, lastLines(stderr.String(), 20))
	}

	// a killed process may leave a partial sample
	raw = raw[:len(raw)-len(raw)%int(audio.PCMFormatFloat32LE.Size())]
	samples, err := audio.ToMono(audio.PCMFormatFloat32LE, 1, raw)
	if err != nil {
		return nil, fmt.Errorf("unable to parse the PCM output: %w", err)
	}

	channels := stream.Channels
	if channels <= 0 {
		channels = 1
	}
	return &source.Decoded{
		Samples:    samples,
		SampleRate: audio.SampleRate(sampleRate),
		Channels:   audio.Channel(channels),
	}, nil
}

func (f *FFmpeg) ProbeCreationTime(
	ctx context.Context,
	path string,
) (*time.Time, error) {
	info, err := f.probe(ctx, path)
	if err != nil {
		return nil, err
	}
	return info.creationTime(), nil
}

func (f *FFmpeg) probe(
	ctx context.Context,
	path string,
) (*probeOutput, error) {
	cmd := exec.CommandContext(ctx, f.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed for '%s': %w", path, err)
	}
	return parseProbeOutput(out)
}

type probeTags struct {
	CreationTime string `json:"creation_time"`
}

type probeStream struct {
	CodecType  string    `json:"codec_type"`
	SampleRate string    `json:"sample_rate"`
	Channels   int       `json:"channels"`
	Tags       probeTags `json:"tags"`
}

type probeOutput struct {
	Format struct {
		Duration string    `json:"duration"`
		Tags     probeTags `json:"tags"`
	} `json:"format"`
	Streams []probeStream `json:"streams"`
}

func parseProbeOutput(b []byte) (*probeOutput, error) {
	var out probeOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("unable to parse the ffprobe output: %w", err)
	}
	return &out, nil
}

func (p *probeOutput) audioStream() *probeStream {
	for i := range p.Streams {
		if p.Streams[i].CodecType == "audio" {
			return &p.Streams[i]
		}
	}
	return nil
}

// creationTime checks the container tags first and the stream tags next.
func (p *probeOutput) creationTime() *time.Time {
	candidates := []string{p.Format.Tags.CreationTime}
	for _, s := range p.Streams {
		candidates = append(candidates, s.Tags.CreationTime)
	}
	for _, c := range candidates {
		if ts, ok := ParseTimestamp(c); ok {
			return &ts
		}
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006:01:02 15:04:05",
}

// ParseTimestamp parses the creation_time formats seen in the wild.
// Timestamps without a zone are treated as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
