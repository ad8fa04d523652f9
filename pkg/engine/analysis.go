package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"

	"github.com/davecgh/go-spew/spew"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audiosync/pkg/drift"
	"github.com/xaionaro-go/audiosync/pkg/matching"
	"github.com/xaionaro-go/audiosync/pkg/model"
	"github.com/xaionaro-go/audiosync/pkg/progress"
	"github.com/xaionaro-go/audiosync/pkg/reference"
	"github.com/xaionaro-go/audiosync/pkg/syncer"
	"github.com/xaionaro-go/audiosync/pkg/timeline"
	"golang.org/x/sync/errgroup"
)

type analysisRun struct {
	*Engine
	cfg    model.AnalysisConfig
	sink   progress.Sink
	result *model.SyncResult

	// buffers holds the analysis buffers of the decoded clips.
	buffers map[*model.Clip][]float64
}

// RunAnalysis places every clip of the tracks on the shared timeline. On
// success the tracks are updated (clips are reordered chronologically and
// get their Analysis); on failure or cancellation they are left as is.
func (e *Engine) RunAnalysis(
	ctx context.Context,
	tracks []*model.Track,
	cfg model.AnalysisConfig,
	sink progress.Sink,
) (_ *model.SyncResult, _err error) {
	logger.Tracef(ctx, "RunAnalysis")
	defer func() { logger.Tracef(ctx, "/RunAnalysis: %v", _err) }()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger.Tracef(ctx, "config: %s", spew.Sdump(cfg))

	r := &analysisRun{
		Engine: e,
		cfg:    cfg,
		sink:   sink,
		result: &model.SyncResult{
			AnalysisSampleRate: cfg.AnalysisSampleRate,
			ClipOffsets:        map[string]float64{},
		},
		buffers: map[*model.Clip][]float64{},
	}

	snap, originals := snapshot(tracks)
	if err := r.run(ctx, snap); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	commit(tracks, snap, originals)
	return r.result, nil
}

func (r *analysisRun) warn(warnings ...string) {
	r.result.Warnings = append(r.result.Warnings, warnings...)
}

func (r *analysisRun) parallelism() int {
	if r.cfg.Parallelism > 0 {
		return r.cfg.Parallelism
	}
	return runtime.GOMAXPROCS(0)
}

func (r *analysisRun) run(ctx context.Context, tracks []*model.Track) error {
	for _, t := range tracks {
		t.IsReference = false
		for _, c := range t.Clips {
			c.Analysis = nil
		}
		t.Clips = timeline.SortChronologically(t.Clips)
	}

	if err := r.decode(ctx, tracks); err != nil {
		return err
	}

	// the same tracks without the clips that could not be decoded
	usable := make([]*model.Track, len(tracks))
	for i, t := range tracks {
		cpy := *t
		cpy.Clips = nil
		for _, c := range t.Clips {
			if _, ok := r.buffers[c]; ok {
				cpy.Clips = append(cpy.Clips, c)
			}
		}
		usable[i] = &cpy
	}

	sel, err := reference.Select(usable)
	if err != nil {
		return fmt.Errorf("unable to select the reference track: %w", err)
	}
	logger.Debugf(ctx, "reference track: #%d '%s' (%s)", sel.Index, tracks[sel.Index].Name, sel.Reason)
	r.warn(sel.Warnings...)
	tracks[sel.Index].IsReference = true
	r.result.ReferenceTrackIndex = sel.Index

	refTimeline, anchors := r.buildReference(usable[sel.Index])

	var items []*matching.Item
	for i, t := range usable {
		if i == sel.Index {
			continue
		}
		for _, c := range t.Clips {
			items = append(items, &matching.Item{Clip: c, Samples: r.buffers[c]})
		}
	}
	pipeline := &matching.Pipeline{
		SyncerFactory: r.syncerFactory,
		Config:        r.cfg,
		Sink:          r.sink,
	}
	warnings, err := pipeline.Run(ctx, refTimeline, anchors, items)
	if err != nil {
		return fmt.Errorf("unable to place the clips: %w", err)
	}
	r.warn(warnings...)
	for _, item := range items {
		item.Clip.Analysis = &model.ClipAnalysis{
			TimelineOffset: item.State.Offset,
			Confidence:     item.State.Confidence,
			Placement:      item.State.Placement,
		}
	}

	// measured regardless of DriftCorrection, which only controls the stitching
	if err := r.measureDrift(ctx, usable, sel.Index, refTimeline); err != nil {
		return err
	}

	r.warnOverlaps(tracks)
	r.normalize(tracks)
	return nil
}

// warnOverlaps reports the clips placed over a previous clip of the same
// track; such a track cannot be stitched.
func (r *analysisRun) warnOverlaps(tracks []*model.Track) {
	tolerance := 1 / float64(r.cfg.AnalysisSampleRate)
	for _, t := range tracks {
		var placed []*model.Clip
		for _, c := range t.Clips {
			if _, ok := c.End(); ok {
				placed = append(placed, c)
			}
		}
		sort.SliceStable(placed, func(i, j int) bool {
			return placed[i].Analysis.TimelineOffset < placed[j].Analysis.TimelineOffset
		})
		// prev is the clip reaching the furthest so far
		var (
			prev    *model.Clip
			prevEnd float64
		)
		for _, c := range placed {
			if prev != nil {
				if overlap := prevEnd - c.Analysis.TimelineOffset; overlap > tolerance {
					r.warn(fmt.Sprintf("'%s' overlaps '%s' of track '%s' by %.3f s; the track cannot be exported", c, prev, t.Name, overlap))
				}
			}
			if end, _ := c.End(); prev == nil || end > prevEnd {
				prev, prevEnd = c, end
			}
		}
	}
}

type decodeResult struct {
	samples []float64
	err     error
}

func (r *analysisRun) decode(ctx context.Context, tracks []*model.Track) error {
	var clips []*model.Clip
	for _, t := range tracks {
		clips = append(clips, t.Clips...)
	}
	results := make([]decodeResult, len(clips))
	reporter := progress.NewReporter(r.sink, progress.StageDecode, len(clips))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.parallelism())
	for idx, c := range clips {
		idx, c := idx, c
		eg.Go(func() error {
			samples, err := r.loadClip(egCtx, c)
			if err != nil && egCtx.Err() != nil {
				return egCtx.Err()
			}
			results[idx] = decodeResult{samples: samples, err: err}
			reporter.Step(egCtx, "decoded '%s'", c)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for idx, c := range clips {
		res := results[idx]
		if res.err != nil {
			logger.Warnf(ctx, "unable to decode '%s': %v", c.Path, res.err)
			r.result.ExcludedClips = append(r.result.ExcludedClips, clipKey(c))
			r.warn(fmt.Sprintf("'%s' is excluded: %v", c.Path, res.err))
			continue
		}
		r.buffers[c] = res.samples
	}
	reporter.Complete(ctx, "decoded %d of %d clips", len(r.buffers), len(clips))
	return nil
}

// loadClip fetches the analysis buffer and refreshes the clip properties derived from the file.
func (r *analysisRun) loadClip(ctx context.Context, c *model.Clip) ([]float64, error) {
	info, err := r.source.Stat(ctx, c.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to stat: %w", err)
	}
	entry, err := r.cache.GetOrBuild(ctx, c.Path, info.ModTime, r.cfg.AnalysisSampleRate)
	if err != nil {
		return nil, err
	}
	if len(entry.Samples) == 0 {
		return nil, fmt.Errorf("no audio")
	}
	c.ModTime = info.ModTime
	c.Duration = entry.Duration
	c.SampleRate = uint32(entry.SourceSampleRate)
	c.Channels = uint32(entry.SourceChannels)
	return entry.Samples, nil
}

func (r *analysisRun) buildReference(track *model.Track) (*timeline.Timeline, []matching.Anchor) {
	buffers := make([][]float64, len(track.Clips))
	for i, c := range track.Clips {
		buffers[i] = r.buffers[c]
	}
	tl, offsets, placed, warnings := timeline.BuildReference(track.Clips, buffers, float64(r.cfg.AnalysisSampleRate))
	r.warn(warnings...)

	var anchors []matching.Anchor
	for i, c := range track.Clips {
		if !placed[i] {
			continue
		}
		c.Analysis = &model.ClipAnalysis{
			TimelineOffset: offsets[i],
			Placement:      model.PlacementReference,
		}
		if c.CreationTime != nil {
			anchors = append(anchors, matching.Anchor{Offset: offsets[i], CreationTime: *c.CreationTime})
		}
	}
	return tl, anchors
}

func (r *analysisRun) measureDrift(
	ctx context.Context,
	tracks []*model.Track,
	refIndex int,
	refTimeline *timeline.Timeline,
) error {
	s, err := r.syncerFactory.NewSyncer(syncer.Unbounded)
	if err != nil {
		return fmt.Errorf("unable to initialize a syncer: %w", err)
	}
	estimator, err := drift.NewEstimator(s, r.cfg)
	if err != nil {
		return err
	}

	var clips []*model.Clip
	for i, t := range tracks {
		if i == refIndex {
			continue
		}
		for _, c := range t.Clips {
			if c.Analysis != nil && c.Analysis.Placement.IsFinal() {
				clips = append(clips, c)
			}
		}
	}

	warnings := make([]string, len(clips))
	reporter := progress.NewReporter(r.sink, progress.StageDrift, len(clips))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.parallelism())
	for idx, c := range clips {
		idx, c := idx, c
		eg.Go(func() error {
			est, err := estimator.Estimate(egCtx, refTimeline, r.buffers[c], c.Analysis.TimelineOffset)
			switch {
			case err == nil:
				c.Analysis.Drift = est
				if est.Inconclusive {
					warnings[idx] = fmt.Sprintf("the drift of '%s' is inconclusive (R² %.2f over %d windows); it will not be corrected", c, est.RSquared, est.Windows)
				}
			case errors.Is(err, drift.ErrTooShort):
				logger.Debugf(egCtx, "'%s': %v", c, err)
			case egCtx.Err() != nil:
				return egCtx.Err()
			default:
				warnings[idx] = fmt.Sprintf("unable to measure the drift of '%s': %v", c, err)
			}
			reporter.Step(egCtx, "measured the drift of '%s'", c)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("unable to measure the drift: %w", err)
	}
	for _, w := range warnings {
		if w != "" {
			r.warn(w)
		}
	}

	for i, t := range tracks {
		if i == refIndex {
			continue
		}
		r.warn(drift.Inherit(t)...)
	}

	for _, c := range clips {
		if drift.ShouldCorrect(c.Analysis.Drift, r.cfg.DriftThresholdPPM) {
			r.result.DriftDetected = true
		}
	}
	reporter.Complete(ctx, "drift measured")
	return nil
}

// normalize shifts the timeline so the earliest clip starts at zero and fills in the result.
func (r *analysisRun) normalize(tracks []*model.Track) {
	minOffset := math.Inf(1)
	for _, t := range tracks {
		for _, c := range t.Clips {
			if c.Analysis != nil && c.Analysis.Placement.IsFinal() {
				minOffset = math.Min(minOffset, c.Analysis.TimelineOffset)
			}
		}
	}
	if math.IsInf(minOffset, 1) {
		return
	}

	var (
		confidenceSum float64
		placed        int
	)
	for _, t := range tracks {
		for _, c := range t.Clips {
			if c.Analysis == nil || !c.Analysis.Placement.IsFinal() {
				continue
			}
			c.Analysis.TimelineOffset -= minOffset
			r.result.ClipOffsets[clipKey(c)] = c.Analysis.TimelineOffset
			if !t.IsReference {
				confidenceSum += c.Analysis.Confidence
				placed++
			}
		}
		r.result.TotalTimeline = math.Max(r.result.TotalTimeline, t.TotalDuration())
	}
	if placed > 0 {
		r.result.AvgConfidence = confidenceSum / float64(placed)
	}
}
