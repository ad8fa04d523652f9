// Package stitch renders every track into one continuous full-resolution
// buffer: the clips are laid out at their timeline offsets and the gaps
// between them are filled with silence.
package stitch

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/audiosync/pkg/audio/resampler"
	"github.com/xaionaro-go/audiosync/pkg/drift"
	"github.com/xaionaro-go/audiosync/pkg/model"
	"github.com/xaionaro-go/audiosync/pkg/progress"
	"github.com/xaionaro-go/audiosync/pkg/source"
	"golang.org/x/sync/errgroup"
)

// OverlapTolerance is the amount of samples two consecutive clips may
// overlap by due to rounding; the later clip wins.
const OverlapTolerance = 1

type OverlapError struct {
	Track string
	ClipA string
	ClipB string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("clips '%s' and '%s' of track '%s' overlap", e.ClipA, e.ClipB, e.Track)
}

type TrackAudio struct {
	Name    string
	Samples []float64
}

type Result struct {
	SampleRate uint32
	Tracks     []TrackAudio
	Warnings   []string

	// Failed is the names of the tracks that could not be rendered.
	Failed []string
}

// Duration returns the length of the stitched tracks in seconds.
func (r *Result) Duration() float64 {
	if len(r.Tracks) == 0 || r.SampleRate == 0 {
		return 0
	}
	return float64(len(r.Tracks[0].Samples)) / float64(r.SampleRate)
}

// MostCommonSampleRate returns the sample rate of the majority of the clips;
// ties go to the higher rate. Zero means no clip has a known rate.
func MostCommonSampleRate(tracks []*model.Track) uint32 {
	counts := map[uint32]int{}
	for _, t := range tracks {
		for _, c := range t.Clips {
			if c.SampleRate > 0 {
				counts[c.SampleRate]++
			}
		}
	}
	var (
		best      uint32
		bestCount int
	)
	for rate, count := range counts {
		if count > bestCount || (count == bestCount && rate > best) {
			best, bestCount = rate, count
		}
	}
	return best
}

type rendered struct {
	clip      *model.Clip
	samples   []float64
	corrected bool
}

// Stitch renders the tracks. It sets DriftCorrected of every placed clip.
//
// A track that fails to render (e.g. it has overlapping clips, reported as
// *OverlapError) is left out of Result.Tracks and listed in Result.Failed;
// the other tracks are still returned together with the accumulated errors.
// The result is nil only if the rendering could not start or was cancelled.
func Stitch(
	ctx context.Context,
	tracks []*model.Track,
	cfg model.AnalysisConfig,
	src source.AudioSource,
	sink progress.Sink,
) (_ *Result, _err error) {
	logger.Tracef(ctx, "Stitch")
	defer func() { logger.Tracef(ctx, "/Stitch: %v", _err) }()

	rate := cfg.ExportSampleRate
	if rate == 0 {
		rate = MostCommonSampleRate(tracks)
	}
	if rate == 0 {
		return nil, fmt.Errorf("unable to determine the export sample rate: no clip has a known sample rate")
	}
	logger.Debugf(ctx, "export sample rate: %d", rate)

	var (
		total    float64
		clipsNum int
		warnings []string
	)
	for _, t := range tracks {
		total = math.Max(total, t.TotalDuration())
		for _, c := range t.Clips {
			if _, ok := c.End(); ok {
				clipsNum++
			} else {
				warnings = append(warnings, fmt.Sprintf("'%s' of track '%s' is not placed; skipped", c, t.Name))
			}
		}
	}

	reporter := progress.NewReporter(sink, progress.StageStitch, clipsNum)
	result := &Result{SampleRate: rate}
	var mErr *multierror.Error
	length := int(math.Round(total * float64(rate)))
	for _, t := range tracks {
		samples, err := renderTrack(ctx, t, cfg, src, float64(rate), reporter)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warnf(ctx, "unable to render track '%s': %v", t.Name, err)
			mErr = multierror.Append(mErr, err)
			result.Failed = append(result.Failed, t.Name)
			continue
		}
		length = max(length, len(samples))
		result.Tracks = append(result.Tracks, TrackAudio{Name: t.Name, Samples: samples})
	}

	for i := range result.Tracks {
		if pad := length - len(result.Tracks[i].Samples); pad > 0 {
			result.Tracks[i].Samples = append(result.Tracks[i].Samples, make([]float64, pad)...)
		}
	}
	result.Warnings = warnings
	reporter.Complete(ctx, "stitched %d of %d tracks", len(result.Tracks), len(tracks))
	return result, mErr.ErrorOrNil()
}

func renderTrack(
	ctx context.Context,
	track *model.Track,
	cfg model.AnalysisConfig,
	src source.AudioSource,
	rate float64,
	reporter *progress.Reporter,
) ([]float64, error) {
	var placed []*model.Clip
	for _, c := range track.Clips {
		if _, ok := c.End(); ok {
			placed = append(placed, c)
		}
	}
	sort.SliceStable(placed, func(i, j int) bool {
		return placed[i].Analysis.TimelineOffset < placed[j].Analysis.TimelineOffset
	})

	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	clips := make([]rendered, len(placed))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(parallelism)
	for idx, c := range placed {
		idx, c := idx, c
		eg.Go(func() error {
			r, err := renderClip(egCtx, c, cfg, src, rate)
			if err != nil {
				return err
			}
			clips[idx] = r
			reporter.Step(egCtx, "stitched '%s'", c)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var (
		mErr    *multierror.Error
		out     []float64
		prevEnd int
	)
	for idx, r := range clips {
		r.clip.Analysis.DriftCorrected = r.corrected

		start := int(math.Round(r.clip.Analysis.TimelineOffset * rate))
		if start < 0 {
			return nil, fmt.Errorf("'%s' starts before the timeline: %v", r.clip, r.clip.Analysis.TimelineOffset)
		}
		if idx > 0 && start < prevEnd-OverlapTolerance {
			mErr = multierror.Append(mErr, &OverlapError{
				Track: track.Name,
				ClipA: clips[idx-1].clip.ID,
				ClipB: r.clip.ID,
			})
		}
		end := start + len(r.samples)
		if end > len(out) {
			out = append(out, make([]float64, end-len(out))...)
		}
		copy(out[start:], r.samples)
		prevEnd = max(prevEnd, end)
	}
	if err := mErr.ErrorOrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

func renderClip(
	ctx context.Context,
	c *model.Clip,
	cfg model.AnalysisConfig,
	src source.AudioSource,
	rate float64,
) (rendered, error) {
	if err := ctx.Err(); err != nil {
		return rendered{}, err
	}
	decoded, err := src.Decode(ctx, c.Path)
	if err != nil {
		return rendered{}, fmt.Errorf("unable to decode '%s': %w", c.Path, err)
	}
	if decoded.SampleRate == 0 {
		return rendered{}, fmt.Errorf("'%s' has no sample rate", c.Path)
	}

	samples, err := resampler.Convert(decoded.Samples, float64(decoded.SampleRate), rate)
	if err != nil {
		return rendered{}, fmt.Errorf("unable to resample '%s': %w", c.Path, err)
	}

	r := rendered{clip: c, samples: samples}
	if cfg.DriftCorrection && drift.ShouldCorrect(c.Analysis.Drift, cfg.DriftThresholdPPM) {
		logger.Debugf(ctx, "correcting the drift of '%s': %.3f ppm", c, c.Analysis.Drift.PPM)
		r.samples, err = drift.Correct(samples, c.Analysis.Drift.PPM)
		if err != nil {
			return rendered{}, fmt.Errorf("unable to correct the drift of '%s': %w", c.Path, err)
		}
		r.corrected = true
	}
	return r, nil
}
