package engine

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audiosync/pkg/model"
	"github.com/xaionaro-go/audiosync/pkg/progress"
	"github.com/xaionaro-go/audiosync/pkg/stitch"
)

// Stitch renders the analyzed tracks at full resolution and updates the
// DriftCorrected flags of the clips. Tracks that fail to render (e.g. due to
// overlapping clips) do not prevent the others from being returned: in that
// case both the partial result and the error are returned.
func (e *Engine) Stitch(
	ctx context.Context,
	tracks []*model.Track,
	cfg model.AnalysisConfig,
	sink progress.Sink,
) (_ *stitch.Result, _err error) {
	logger.Tracef(ctx, "Stitch")
	defer func() { logger.Tracef(ctx, "/Stitch: %v", _err) }()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	snap, originals := snapshot(tracks)
	result, err := stitch.Stitch(ctx, snap, cfg, e.source, sink)
	if result == nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	commit(tracks, snap, originals)
	return result, err
}
