package stitch

import (
	"context"
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/audiosync/pkg/model"
	"github.com/xaionaro-go/audiosync/pkg/source/implementations/memory"
)

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func placedClip(id string, offset float64, duration float64, rate uint32) *model.Clip {
	return &model.Clip{
		ID:         id,
		Path:       "/" + id + ".wav",
		Duration:   duration,
		SampleRate: rate,
		Analysis: &model.ClipAnalysis{
			TimelineOffset: offset,
			Placement:      model.PlacementPass1Matched,
		},
	}
}

func TestStitch(t *testing.T) {
	src := memory.New()
	src.Add("/a.wav", memory.File{Samples: constant(100, 1), SampleRate: 100})
	src.Add("/b.wav", memory.File{Samples: constant(50, 2), SampleRate: 100})
	src.Add("/c.wav", memory.File{Samples: constant(200, 3), SampleRate: 100})

	tracks := []*model.Track{
		{Name: "ref", Clips: []*model.Clip{
			placedClip("a", 0, 1, 100),
			placedClip("b", 1.5, 0.5, 100),
			{ID: "lost", Path: "/lost.wav", Duration: 3},
		}},
		{Name: "cam", Clips: []*model.Clip{
			placedClip("c", 0.5, 2, 100),
		}},
	}

	res, err := Stitch(context.Background(), tracks, model.DefaultAnalysisConfig(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), res.SampleRate)
	require.Len(t, res.Tracks, 2)
	assert.Len(t, res.Tracks[0].Samples, 250)
	assert.Len(t, res.Tracks[1].Samples, 250)
	assert.Equal(t, 2.5, res.Duration())

	ref := res.Tracks[0].Samples
	assert.Equal(t, 1.0, ref[0])
	assert.Equal(t, 1.0, ref[99])
	assert.Equal(t, 0.0, ref[120])
	assert.Equal(t, 2.0, ref[150])
	assert.Equal(t, 0.0, ref[249])

	cam := res.Tracks[1].Samples
	assert.Equal(t, 0.0, cam[49])
	assert.Equal(t, 3.0, cam[50])
	assert.Equal(t, 3.0, cam[249])

	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "lost")
}

func TestStitch_Overlap(t *testing.T) {
	src := memory.New()
	for _, id := range []string{"a", "b", "c", "d"} {
		src.Add("/"+id+".wav", memory.File{Samples: constant(100, 1), SampleRate: 100})
	}
	tracks := []*model.Track{
		{Name: "one", Clips: []*model.Clip{placedClip("a", 0, 1, 100), placedClip("b", 0.5, 1, 100)}},
		{Name: "two", Clips: []*model.Clip{placedClip("c", 0, 1, 100), placedClip("d", 0.2, 1, 100)}},
	}

	res, err := Stitch(context.Background(), tracks, model.DefaultAnalysisConfig(), src, nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Empty(t, res.Tracks)
	assert.Equal(t, []string{"one", "two"}, res.Failed)

	var mErr *multierror.Error
	require.True(t, errors.As(err, &mErr))
	require.Len(t, mErr.Errors, 2)

	var overlap *OverlapError
	require.True(t, errors.As(mErr.Errors[0], &overlap))
	assert.Equal(t, OverlapError{Track: "one", ClipA: "a", ClipB: "b"}, *overlap)
	require.True(t, errors.As(mErr.Errors[1], &overlap))
	assert.Equal(t, "two", overlap.Track)
}

func TestStitch_OverlapKeepsOtherTracks(t *testing.T) {
	src := memory.New()
	src.Add("/a.wav", memory.File{Samples: constant(100, 1), SampleRate: 100})
	src.Add("/b.wav", memory.File{Samples: constant(100, 2), SampleRate: 100})
	src.Add("/c.wav", memory.File{Samples: constant(100, 3), SampleRate: 100})
	tracks := []*model.Track{
		{Name: "broken", Clips: []*model.Clip{placedClip("a", 0, 1, 100), placedClip("b", 0.5, 1, 100)}},
		{Name: "clean", Clips: []*model.Clip{placedClip("c", 0.2, 1, 100)}},
	}

	res, err := Stitch(context.Background(), tracks, model.DefaultAnalysisConfig(), src, nil)
	var mErr *multierror.Error
	require.True(t, errors.As(err, &mErr))
	require.Len(t, mErr.Errors, 1)
	var overlap *OverlapError
	require.True(t, errors.As(mErr.Errors[0], &overlap))
	assert.Equal(t, "broken", overlap.Track)

	require.NotNil(t, res)
	assert.Equal(t, []string{"broken"}, res.Failed)
	require.Len(t, res.Tracks, 1)
	assert.Equal(t, "clean", res.Tracks[0].Name)
	// padded up to the end of the whole timeline
	assert.Len(t, res.Tracks[0].Samples, 150)
	assert.Zero(t, res.Tracks[0].Samples[19])
	assert.Equal(t, 3.0, res.Tracks[0].Samples[20])
	assert.Equal(t, 3.0, res.Tracks[0].Samples[119])
	assert.Zero(t, res.Tracks[0].Samples[120])
}

func TestStitch_RoundingIsNotAnOverlap(t *testing.T) {
	src := memory.New()
	src.Add("/a.wav", memory.File{Samples: constant(101, 1), SampleRate: 100})
	src.Add("/b.wav", memory.File{Samples: constant(100, 2), SampleRate: 100})
	tracks := []*model.Track{
		{Name: "one", Clips: []*model.Clip{placedClip("a", 0, 1, 100), placedClip("b", 1, 1, 100)}},
	}
	res, err := Stitch(context.Background(), tracks, model.DefaultAnalysisConfig(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.Tracks[0].Samples[100])
}

func TestStitch_DriftCorrection(t *testing.T) {
	src := memory.New()
	src.Add("/a.wav", memory.File{Samples: constant(100000, 1), SampleRate: 1000})
	clip := placedClip("a", 0, 100, 1000)
	clip.Analysis.Drift = &model.DriftEstimate{PPM: 100, RSquared: 0.99, Windows: 5}
	tracks := []*model.Track{{Name: "one", Clips: []*model.Clip{clip}}}

	cfg := model.DefaultAnalysisConfig()
	res, err := Stitch(context.Background(), tracks, cfg, src, nil)
	require.NoError(t, err)
	assert.True(t, clip.Analysis.DriftCorrected)
	// shrunk by 10 samples, then padded up to the timeline length
	assert.Len(t, res.Tracks[0].Samples, 100000)
	assert.Equal(t, 0.0, res.Tracks[0].Samples[99995])

	cfg.DriftCorrection = false
	_, err = Stitch(context.Background(), tracks, cfg, src, nil)
	require.NoError(t, err)
	assert.False(t, clip.Analysis.DriftCorrected)

	clip.Analysis.Drift.Inconclusive = true
	cfg.DriftCorrection = true
	_, err = Stitch(context.Background(), tracks, cfg, src, nil)
	require.NoError(t, err)
	assert.False(t, clip.Analysis.DriftCorrected)
}

func TestStitch_Resample(t *testing.T) {
	src := memory.New()
	src.Add("/a.wav", memory.File{Samples: constant(4410, 0.5), SampleRate: 44100})
	src.Add("/b.wav", memory.File{Samples: constant(4800, 0.5), SampleRate: 48000})
	src.Add("/c.wav", memory.File{Samples: constant(4800, 0.5), SampleRate: 48000})
	tracks := []*model.Track{
		{Name: "one", Clips: []*model.Clip{placedClip("a", 0, 0.1, 44100)}},
		{Name: "two", Clips: []*model.Clip{placedClip("b", 0, 0.1, 48000), placedClip("c", 0.2, 0.1, 48000)}},
	}
	res, err := Stitch(context.Background(), tracks, model.DefaultAnalysisConfig(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(48000), res.SampleRate)
	assert.Len(t, res.Tracks[0].Samples, 14400)
	assert.InDelta(t, 0.5, res.Tracks[0].Samples[2400], 0.01)
}

func TestMostCommonSampleRate(t *testing.T) {
	clip := func(rate uint32) *model.Clip { return &model.Clip{SampleRate: rate} }
	assert.Equal(t, uint32(48000), MostCommonSampleRate([]*model.Track{
		{Clips: []*model.Clip{clip(44100), clip(48000)}},
	}))
	assert.Equal(t, uint32(44100), MostCommonSampleRate([]*model.Track{
		{Clips: []*model.Clip{clip(44100), clip(48000), clip(44100), clip(0)}},
	}))
	assert.Zero(t, MostCommonSampleRate(nil))
}

func TestStitch_Cancel(t *testing.T) {
	src := memory.New()
	src.Add("/a.wav", memory.File{Samples: constant(100, 1), SampleRate: 100})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Stitch(ctx, []*model.Track{{Name: "one", Clips: []*model.Clip{placedClip("a", 0, 1, 100)}}}, model.DefaultAnalysisConfig(), src, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
