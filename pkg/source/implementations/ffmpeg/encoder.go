package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/datacounter"
)

// Format is an output container ffmpeg can encode the stitched tracks into.
type Format string

const (
	FormatAIFF = Format("aiff")
	FormatFLAC = Format("flac")
	FormatMP3  = Format("mp3")
)

// Formats is the list of the supported output formats.
var Formats = []Format{FormatAIFF, FormatFLAC, FormatMP3}

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, supported := range Formats {
		if f == supported {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format: '%s'", s)
}

// Extension returns the file extension (with the dot) of the format.
func (f Format) Extension() string {
	if f == FormatAIFF {
		return ".aif"
	}
	return "." + string(f)
}

// encodeArgs returns the ffmpeg arguments converting mono f32le PCM from
// stdin into the file at path.
func encodeArgs(
	path string,
	format Format,
	sampleRate uint32,
	bitDepth int,
) ([]string, error) {
	args := []string{
		"-v", "error",
		"-y",
		"-f", "f32le",
		"-ar", strconv.FormatUint(uint64(sampleRate), 10),
		"-ac", "1",
		"-i", "pipe:0",
	}
	switch format {
	case FormatAIFF:
		switch bitDepth {
		case 16, 24, 32:
		default:
			return nil, fmt.Errorf("unsupported bit depth for %s: %d", format, bitDepth)
		}
		args = append(args, "-acodec", fmt.Sprintf("pcm_s%dbe", bitDepth), "-f", "aiff")
	case FormatFLAC:
		switch bitDepth {
		case 16:
			args = append(args, "-acodec", "flac", "-sample_fmt", "s16")
		case 24:
			args = append(args, "-acodec", "flac", "-sample_fmt", "s32", "-bits_per_raw_sample", "24")
		default:
			return nil, fmt.Errorf("unsupported bit depth for %s: %d", format, bitDepth)
		}
		args = append(args, "-f", "flac")
	case FormatMP3:
		// the bit depth has no meaning for a lossy codec
		args = append(args, "-acodec", "libmp3lame", "-b:a", "320k", "-f", "mp3")
	default:
		return nil, fmt.Errorf("unsupported output format: '%s'", format)
	}
	return append(args, path), nil
}

// Encode writes the mono samples (expected within [-1, 1]) into path in
// the given format.
func (f *FFmpeg) Encode(
	ctx context.Context,
	path string,
	format Format,
	samples []float64,
	sampleRate uint32,
	bitDepth int,
) (_err error) {
	logger.Tracef(ctx, "Encode(%s, %s)", path, format)
	defer func() { logger.Tracef(ctx, "/Encode(%s, %s): %v", path, format, _err) }()

	if sampleRate == 0 {
		return fmt.Errorf("sample rate must be positive")
	}
	args, err := encodeArgs(path, format, sampleRate, bitDepth)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, f.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("unable to get the stdin of ffmpeg: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("unable to start ffmpeg: %w", err)
	}

	counter := datacounter.NewWriterCounter(stdin)
	writeErr := writePCM(counter, samples)
	closeErr := stdin.Close()
	waitErr := cmd.Wait()
	logger.Debugf(ctx, "wrote %d bytes of PCM to ffmpeg for '%s'", counter.Count(), path)
	if waitErr != nil {
		return fmt.Errorf("ffmpeg failed for '%s': %w: %s", path, waitErr, lastLines(stderr.String(), 20))
	}
	if writeErr != nil {
		return fmt.Errorf("unable to write the PCM into ffmpeg: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("unable to close the stdin of ffmpeg: %w", closeErr)
	}
	return nil
}

func writePCM(w io.Writer, samples []float64) error {
	bw := bufio.NewWriterSize(w, 1<<16)
	var b [4]byte
	for _, v := range samples {
		v = math.Max(-1, math.Min(1, v))
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(float32(v)))
		if _, err := bw.Write(b[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
