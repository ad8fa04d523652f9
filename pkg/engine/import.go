package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/google/uuid"
	"github.com/xaionaro-go/audiosync/pkg/grouping"
	"github.com/xaionaro-go/audiosync/pkg/model"
	"github.com/xaionaro-go/audiosync/pkg/source"
	"github.com/xaionaro-go/audiosync/pkg/timeline"
	"golang.org/x/sync/errgroup"
)

// ImportFiles turns the files into clips grouped into one track per
// recording device. Unsupported and unreadable files are skipped with a
// warning. Durations and sample rates are filled in by the analysis.
func (e *Engine) ImportFiles(
	ctx context.Context,
	paths []string,
) (_ []*model.Track, _ []string, _err error) {
	logger.Tracef(ctx, "ImportFiles(%d)", len(paths))
	defer func() { logger.Tracef(ctx, "/ImportFiles(%d): %v", len(paths), _err) }()

	var (
		warnings  []string
		supported []string
	)
	for _, path := range paths {
		if !source.IsSupported(path) {
			warnings = append(warnings, fmt.Sprintf("'%s' is not a supported media file; skipped", path))
			continue
		}
		supported = append(supported, path)
	}

	clips := make(map[string]*model.Clip, len(supported))
	clipWarnings := make([]string, len(supported))
	probed := make([]*model.Clip, len(supported))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for idx, path := range supported {
		idx, path := idx, path
		eg.Go(func() error {
			clip, warning := e.probe(egCtx, path)
			if err := egCtx.Err(); err != nil {
				return err
			}
			probed[idx], clipWarnings[idx] = clip, warning
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	for idx, path := range supported {
		if clipWarnings[idx] != "" {
			warnings = append(warnings, clipWarnings[idx])
		}
		if probed[idx] != nil {
			clips[path] = probed[idx]
		}
	}

	var tracks []*model.Track
	for _, g := range grouping.Group(supported) {
		track := &model.Track{Name: g.Name}
		for _, path := range g.Paths {
			if c, ok := clips[path]; ok {
				track.Clips = append(track.Clips, c)
			}
		}
		if len(track.Clips) == 0 {
			continue
		}
		track.Clips = timeline.SortChronologically(track.Clips)
		tracks = append(tracks, track)
	}
	return tracks, warnings, nil
}

func (e *Engine) probe(ctx context.Context, path string) (*model.Clip, string) {
	info, err := e.source.Stat(ctx, path)
	if err != nil {
		return nil, fmt.Sprintf("unable to read '%s': %v; skipped", path, err)
	}
	clip := &model.Clip{
		ID:      uuid.NewString(),
		Path:    path,
		Name:    filepath.Base(path),
		ModTime: info.ModTime,
		IsVideo: source.IsVideoFile(path),
	}

	ct, err := e.source.ProbeCreationTime(ctx, path)
	if err != nil {
		return clip, fmt.Sprintf("unable to get the creation time of '%s': %v", path, err)
	}
	if ct != nil {
		utc := ct.In(time.UTC)
		clip.CreationTime = &utc
	}
	return clip, ""
}
