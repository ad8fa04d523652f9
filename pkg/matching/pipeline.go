package matching

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audiosync/pkg/model"
	"github.com/xaionaro-go/audiosync/pkg/progress"
	"github.com/xaionaro-go/audiosync/pkg/syncer"
	"github.com/xaionaro-go/audiosync/pkg/timeline"
	"golang.org/x/sync/errgroup"
)

// Anchor is a reference clip with a known creation time.
type Anchor struct {
	Offset       float64
	CreationTime time.Time
}

// Item is a clip to be placed together with its analysis buffer.
type Item struct {
	Clip    *model.Clip
	Samples []float64
	State   State
}

type Pipeline struct {
	SyncerFactory syncer.Factory
	Config        model.AnalysisConfig
	Sink          progress.Sink
}

// Run places the items, updating their State. The returned warnings are in
// the order of the items.
func (p *Pipeline) Run(
	ctx context.Context,
	reference *timeline.Timeline,
	anchors []Anchor,
	items []*Item,
) (_ []string, _err error) {
	logger.Tracef(ctx, "Run(%d items)", len(items))
	defer func() { logger.Tracef(ctx, "/Run(%d items): %v", len(items), _err) }()

	good := p.Config.GoodMatchConfidence

	err := p.pass(ctx, progress.StagePass1, reference, items, func(item *Item, offset, confidence float64) {
		item.State = Transition(item.State, Pass1Result{Offset: offset, Confidence: confidence, GoodMatch: good})
	})
	if err != nil {
		return nil, fmt.Errorf("pass 1 failed: %w", err)
	}

	var (
		failed []*Item
		placed []timeline.Placed
	)
	for _, item := range items {
		switch item.State.Placement {
		case model.PlacementPass1Matched:
			placed = append(placed, timeline.Placed{Offset: item.State.Offset, Samples: item.Samples})
		case model.PlacementPass1Failed:
			failed = append(failed, item)
		}
	}
	logger.Debugf(ctx, "pass 1: %d matched, %d failed", len(placed), len(failed))

	enhanced := reference
	if len(failed) > 0 && len(placed) > 0 {
		enhanced = timeline.Enhanced(reference, placed)
	}
	err = p.pass(ctx, progress.StagePass2, enhanced, failed, func(item *Item, offset, confidence float64) {
		item.State = Transition(item.State, Pass2Result{Offset: offset, Confidence: confidence, GoodMatch: good})
	})
	if err != nil {
		return nil, fmt.Errorf("pass 2 failed: %w", err)
	}

	var warnings []string
	for _, item := range items {
		var fallback *float64
		if item.Clip.CreationTime != nil {
			if offset, ok := FallbackOffset(anchors, *item.Clip.CreationTime); ok {
				fallback = &offset
			}
		}
		item.State = Transition(item.State, Finalize{Fallback: fallback})
		if w := p.warning(item); w != "" {
			warnings = append(warnings, w)
		}
	}
	return warnings, nil
}

func (p *Pipeline) warning(item *Item) string {
	s := item.State
	switch s.Placement {
	case model.PlacementMetadataFallback:
		if !s.Scored {
			return fmt.Sprintf("'%s' could not be correlated; placed by its creation time", item.Clip)
		}
		return fmt.Sprintf("'%s' has no reliable match (best confidence %.2f); placed by its creation time", item.Clip, s.Confidence)
	case model.PlacementLowConfidence:
		w := fmt.Sprintf("'%s' has no reliable match and no creation time; placed at its best correlation (confidence %.2f)", item.Clip, s.Confidence)
		if s.Confidence < p.Config.LowMatchConfidence {
			w += fmt.Sprintf(", which is below %.2f: the placement is likely wrong", p.Config.LowMatchConfidence)
		}
		return w
	case model.PlacementUnplaced:
		return fmt.Sprintf("'%s' could not be placed", item.Clip)
	}
	return ""
}

func (p *Pipeline) parallelism() int {
	if p.Config.Parallelism > 0 {
		return p.Config.Parallelism
	}
	return runtime.GOMAXPROCS(0)
}

func (p *Pipeline) pass(
	ctx context.Context,
	stage progress.Stage,
	tl *timeline.Timeline,
	items []*Item,
	apply func(item *Item, offset, confidence float64),
) error {
	reporter := progress.NewReporter(p.Sink, stage, len(items))
	if len(items) == 0 {
		reporter.Complete(ctx, "%s: nothing to match", stage)
		return ctx.Err()
	}

	// lags are relative to the first sample of the timeline, so the window
	// is centered on its zero
	lags := syncer.Unbounded
	if p.Config.MaxOffset > 0 {
		lags = syncer.Around(tl.Origin, int(math.Ceil(p.Config.MaxOffset*tl.SampleRate)))
	}
	s, err := p.SyncerFactory.NewSyncer(lags)
	if err != nil {
		return fmt.Errorf("unable to initialize a syncer: %w", err)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.parallelism())
	for _, item := range items {
		item := item
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			if len(item.Samples) == 0 {
				reporter.Step(egCtx, "%s: skipped empty '%s'", stage, item.Clip)
				return nil
			}
			results, err := s.CalculateShiftBetween(egCtx, tl.Samples, item.Samples)
			if err != nil {
				return fmt.Errorf("unable to correlate '%s': %w", item.Clip, err)
			}
			offset := tl.Position(results[0].Lag)
			confidence := results[0].Confidence
			logger.Debugf(egCtx, "%s: '%s' at %.4fs with confidence %.2f", stage, item.Clip, offset, confidence)
			apply(item, offset, confidence)
			reporter.Step(egCtx, "%s: '%s' confidence %.2f", stage, item.Clip, confidence)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	reporter.Complete(ctx, "%s complete", stage)
	return nil
}

// FallbackOffset places a creation time relative to the anchors: to the
// latest anchor starting at or before it, or to the earliest anchor if all
// of them start later.
func FallbackOffset(anchors []Anchor, creationTime time.Time) (float64, bool) {
	if len(anchors) == 0 {
		return 0, false
	}
	sorted := make([]Anchor, len(anchors))
	copy(sorted, anchors)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreationTime.Before(sorted[j].CreationTime)
	})

	anchor := sorted[0]
	for _, a := range sorted {
		if a.CreationTime.After(creationTime) {
			break
		}
		anchor = a
	}
	return anchor.Offset + creationTime.Sub(anchor.CreationTime).Seconds(), true
}
