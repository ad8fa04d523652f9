package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/audiosync/pkg/model"
	"github.com/xaionaro-go/audiosync/pkg/project"
	"github.com/xaionaro-go/audiosync/pkg/source/implementations/ffmpeg"
	"github.com/xaionaro-go/audiosync/pkg/source/implementations/wav"
	"github.com/xaionaro-go/audiosync/pkg/stitch"
)

const formatWAV = "wav"

type syncOutput struct {
	Project      *project.Project `json:"project"`
	SampleRate   uint32           `json:"sample_rate"`
	Duration     float64          `json:"duration_s"`
	Files        []string         `json:"files"`
	FailedTracks []string         `json:"failed_tracks,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
}

type exportOptions struct {
	// Format is "wav" or one of ffmpeg.Formats.
	Format   string
	BitDepth int
}

func (opts exportOptions) validate() error {
	if opts.Format == formatWAV {
		return nil
	}
	_, err := ffmpeg.ParseFormat(opts.Format)
	return err
}

func setupSync(flags *pflag.FlagSet, common *commonFlags) runFunc {
	savePath := flags.String("save", envString("SAVE", ""), "save the project to this file")
	outputDir := flags.String("output-dir", envString("OUTPUT_DIR", "."), "the directory to write the stitched tracks to")
	bitDepth := flags.Int("bit-depth", envInt("BIT_DEPTH", model.DefaultExportBitDepth), "the bit depth of the exported tracks: 16, 24 or 32")
	format := flags.String("format", envString("FORMAT", formatWAV), "the format of the exported tracks: wav, aiff, flac or mp3 (all but wav require ffmpeg)")
	return func(ctx context.Context, args []string) error {
		s, err := newSession(ctx, common, args)
		if err != nil {
			return err
		}
		cfg := common.AnalysisConfig(s.Project.Config)
		if s.Project.Config == nil || flags.Changed("bit-depth") || envString("BIT_DEPTH", "") != "" {
			cfg.ExportBitDepth = *bitDepth
		}
		opts := exportOptions{
			Format:   strings.ToLower(strings.TrimSpace(*format)),
			BitDepth: cfg.ExportBitDepth,
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if err := opts.validate(); err != nil {
			return err
		}
		if err := s.Analyze(ctx, cfg, common); err != nil {
			return err
		}

		result, stitchErr := s.Engine.Stitch(ctx, s.Project.Tracks, cfg, newProgressPrinter(common.JSON))
		if result == nil {
			return fmt.Errorf("unable to stitch the tracks: %w", stitchErr)
		}
		files, err := exportTracks(ctx, *outputDir, result, opts)
		if err != nil {
			return err
		}
		// saved after the stitching, so the drift correction flags are recorded
		if err := s.Save(ctx, *savePath, common); err != nil {
			return err
		}

		warnings := append(s.Warnings, result.Warnings...)
		if common.JSON {
			if err := printJSON(syncOutput{
				Project:      s.Project,
				SampleRate:   result.SampleRate,
				Duration:     result.Duration(),
				Files:        files,
				FailedTracks: result.Failed,
				Warnings:     warnings,
			}); err != nil {
				return err
			}
		} else {
			fmt.Println(renderAnalysisReport(s.Project, warnings))
			fmt.Println(renderExport(result, files))
		}
		if stitchErr != nil {
			return fmt.Errorf("unable to stitch %d track(s): %w", len(result.Failed), stitchErr)
		}
		return nil
	}
}

func exportTracks(
	ctx context.Context,
	dir string,
	result *stitch.Result,
	opts exportOptions,
) ([]string, error) {
	ext := "." + formatWAV
	var encoder *ffmpeg.FFmpeg
	var format ffmpeg.Format
	if opts.Format != "" && opts.Format != formatWAV {
		var err error
		format, err = ffmpeg.ParseFormat(opts.Format)
		if err != nil {
			return nil, err
		}
		encoder = ffmpeg.New()
		ext = format.Extension()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create the output directory '%s': %w", dir, err)
	}
	used := map[string]int{}
	var files []string
	for _, t := range result.Tracks {
		name := fileName(t.Name)
		used[name]++
		if n := used[name]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		path := filepath.Join(dir, name+ext)
		var err error
		if encoder != nil {
			err = encoder.Encode(ctx, path, format, t.Samples, result.SampleRate, opts.BitDepth)
		} else {
			err = wav.WriteMono(path, t.Samples, int(result.SampleRate), opts.BitDepth)
		}
		if err != nil {
			return files, fmt.Errorf("unable to export track '%s': %w", t.Name, err)
		}
		logger.Debugf(ctx, "track '%s' is written to '%s'", t.Name, path)
		files = append(files, path)
	}
	return files, nil
}

func fileName(trackName string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(trackName))
	if name == "" || name == "." || name == ".." {
		return "track"
	}
	return name
}
