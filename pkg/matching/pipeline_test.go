package matching

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/audiosync/pkg/model"
	"github.com/xaionaro-go/audiosync/pkg/progress"
	"github.com/xaionaro-go/audiosync/pkg/syncer/implementations/xcorr"
	"github.com/xaionaro-go/audiosync/pkg/timeline"
)

const testRate = 1000.0

func noise(seed int64, n int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64()
	}
	return out
}

func newPipeline() *Pipeline {
	cfg := model.DefaultAnalysisConfig()
	cfg.Parallelism = 2
	return &Pipeline{
		SyncerFactory: &xcorr.Factory{},
		Config:        cfg,
	}
}

func TestPipeline_Run(t *testing.T) {
	master := noise(1, 30*testRate)
	ref := timeline.New(testRate)
	ref.Write(0, master[:10*testRate])

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ct := base.Add(42 * time.Second)
	anchors := []Anchor{{Offset: 0, CreationTime: base}}

	items := []*Item{
		// overlaps the reference
		{Clip: &model.Clip{ID: "a"}, Samples: master[8*testRate : 20*testRate]},
		// overlaps only "a"
		{Clip: &model.Clip{ID: "b"}, Samples: master[15*testRate : 25*testRate]},
		{Clip: &model.Clip{ID: "silent-with-metadata", CreationTime: &ct}, Samples: make([]float64, 3*testRate)},
		{Clip: &model.Clip{ID: "silent"}, Samples: make([]float64, 3*testRate)},
		{Clip: &model.Clip{ID: "empty"}},
	}

	var events []progress.Event
	p := newPipeline()
	p.Sink = progress.SinkFunc(func(_ context.Context, ev progress.Event) {
		events = append(events, ev)
	})

	warnings, err := p.Run(context.Background(), ref, anchors, items)
	require.NoError(t, err)

	assert.Equal(t, model.PlacementPass1Matched, items[0].State.Placement)
	assert.InDelta(t, 8.0, items[0].State.Offset, 1e-3)

	assert.Equal(t, model.PlacementPass2Matched, items[1].State.Placement)
	assert.InDelta(t, 15.0, items[1].State.Offset, 1e-3)
	assert.GreaterOrEqual(t, items[1].State.Confidence, p.Config.GoodMatchConfidence)

	assert.Equal(t, model.PlacementMetadataFallback, items[2].State.Placement)
	assert.Equal(t, 42.0, items[2].State.Offset)
	assert.Zero(t, items[2].State.Confidence)

	assert.Equal(t, model.PlacementLowConfidence, items[3].State.Placement)
	assert.Equal(t, model.PlacementUnplaced, items[4].State.Placement)

	require.Len(t, warnings, 3)
	assert.Contains(t, warnings[0], "silent-with-metadata")
	assert.Contains(t, warnings[0], "creation time")
	assert.Contains(t, warnings[1], "'silent'")
	assert.Contains(t, warnings[1], "likely wrong")
	assert.Contains(t, warnings[2], "'empty' could not be placed")

	var completions []progress.Stage
	for _, ev := range events {
		if ev.Done == ev.Total {
			completions = append(completions, ev.Stage)
		}
	}
	assert.Contains(t, completions, progress.StagePass1)
	assert.Contains(t, completions, progress.StagePass2)
}

func TestPipeline_Cancel(t *testing.T) {
	master := noise(2, 10*testRate)
	ref := timeline.New(testRate)
	ref.Write(0, master)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []*Item{{Clip: &model.Clip{ID: "a"}, Samples: master[:testRate]}}
	_, err := newPipeline().Run(ctx, ref, nil, items)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_MaxOffset(t *testing.T) {
	master := noise(3, 20*testRate)
	ref := timeline.New(testRate)
	ref.Write(0, master)

	items := []*Item{{Clip: &model.Clip{ID: "far"}, Samples: master[15*testRate : 17*testRate]}}
	p := newPipeline()
	p.Config.MaxOffset = 5
	_, err := p.Run(context.Background(), ref, nil, items)
	require.NoError(t, err)
	assert.Equal(t, model.PlacementLowConfidence, items[0].State.Placement)
	assert.LessOrEqual(t, items[0].State.Offset, 5.0+1.0/testRate)
}

func TestPipeline_MaxOffsetAroundShiftedOrigin(t *testing.T) {
	content := noise(5, 40*testRate)
	clip := noise(6, 2*testRate)
	// a strong copy out of ±5s and a weaker one within it
	copy(content[2*testRate:], clip)
	for i, v := range clip {
		content[13*testRate+i] += 0.7 * v
	}
	ref := timeline.New(testRate)
	ref.Write(-10, content)
	require.Equal(t, 10*int(testRate), ref.Origin)

	items := []*Item{{Clip: &model.Clip{ID: "near"}, Samples: clip}}
	p := newPipeline()
	p.Config.MaxOffset = 5
	_, err := p.Run(context.Background(), ref, nil, items)
	require.NoError(t, err)
	assert.Equal(t, model.PlacementPass1Matched, items[0].State.Placement)
	assert.InDelta(t, 3.0, items[0].State.Offset, 1e-3)

	// unbounded, the strongest copy wins
	items = []*Item{{Clip: &model.Clip{ID: "far"}, Samples: clip}}
	_, err = newPipeline().Run(context.Background(), ref, nil, items)
	require.NoError(t, err)
	assert.InDelta(t, -8.0, items[0].State.Offset, 1e-3)
}

func TestFallbackOffset(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	anchors := []Anchor{
		{Offset: 100, CreationTime: base.Add(time.Hour)},
		{Offset: 0, CreationTime: base},
	}

	_, ok := FallbackOffset(nil, base)
	assert.False(t, ok)

	for name, tc := range map[string]struct {
		at     time.Time
		expect float64
	}{
		"after_first":      {base.Add(10 * time.Second), 10},
		"after_second":     {base.Add(time.Hour + 5*time.Second), 105},
		"before_all":       {base.Add(-20 * time.Second), -20},
		"exactly_at_start": {base.Add(time.Hour), 100},
	} {
		t.Run(name, func(t *testing.T) {
			offset, ok := FallbackOffset(anchors, tc.at)
			require.True(t, ok)
			assert.InDelta(t, tc.expect, offset, 1e-9)
		})
	}
}
