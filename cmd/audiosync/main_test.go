package main

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/audiosync/pkg/model"
	"github.com/xaionaro-go/audiosync/pkg/project"
	"github.com/xaionaro-go/audiosync/pkg/source/implementations/wav"
	"github.com/xaionaro-go/audiosync/pkg/stitch"
)

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "00:00:00.000", formatTimestamp(0))
	assert.Equal(t, "01:02:03.456", formatTimestamp(3723.456))
	assert.Equal(t, "-00:00:01.500", formatTimestamp(-1.5))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "GH01", fileName("GH01"))
	assert.Equal(t, "a_b", fileName("a/b"))
	assert.Equal(t, "track", fileName("  "))
	assert.Equal(t, "track", fileName(".."))
}

func TestCommonFlags_AnalysisConfig(t *testing.T) {
	t.Setenv(envPrefix+"MAX_OFFSET", "12.5")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	common := addCommonFlags(flags)
	require.NoError(t, flags.Parse([]string{"--no-drift-correction"}))

	cfg := common.AnalysisConfig(nil)
	assert.Equal(t, 12.5, cfg.MaxOffset)
	assert.False(t, cfg.DriftCorrection)

	// a saved config keeps its values unless the flag is given explicitly
	saved := model.DefaultAnalysisConfig()
	saved.MaxOffset = 60
	cfg = common.AnalysisConfig(&saved)
	assert.Equal(t, 60.0, cfg.MaxOffset)
	assert.False(t, cfg.DriftCorrection)
}

func TestPinReference(t *testing.T) {
	tracks := []*model.Track{{Name: "Zoom"}, {Name: "GH"}}
	require.NoError(t, pinReference(tracks, "gh"))
	assert.False(t, tracks[0].PinnedReference)
	assert.True(t, tracks[1].PinnedReference)

	err := pinReference(tracks, "Tascam")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GH, Zoom")
}

func TestExpandPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.wav", "b.MP4", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	paths, err := expandPaths([]string{dir})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.wav"), filepath.Join(dir, "b.MP4")}, paths)

	// explicitly given files are passed as is, the import reports them
	paths, err = expandPaths([]string{filepath.Join(dir, "notes.txt")})
	require.NoError(t, err)
	assert.Len(t, paths, 1)

	_, err = expandPaths([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func noise(seed int64, n int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Max(-1, math.Min(1, rng.NormFloat64()*0.2))
	}
	return out
}

func TestAnalyzeAndSync(t *testing.T) {
	const rate = 8000
	dir := t.TempDir()
	full := noise(1, rate*20)
	require.NoError(t, wav.WriteMono(filepath.Join(dir, "zoom_001.wav"), full, rate, 16))
	require.NoError(t, wav.WriteMono(filepath.Join(dir, "cam_001.wav"), full[rate*5:rate*12], rate, 16))

	ctx := context.Background()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	common := addCommonFlags(flags)
	require.NoError(t, flags.Parse([]string{"--json", "--no-drift-correction", "--store", filepath.Join(dir, "library")}))

	s, err := newSession(ctx, common, []string{dir})
	require.NoError(t, err)
	require.Len(t, s.Project.Tracks, 2)

	cfg := common.AnalysisConfig(nil)
	cfg.ExportBitDepth = 16
	require.NoError(t, s.Analyze(ctx, cfg, common))
	require.NotNil(t, s.Project.Result)

	var cam *model.Clip
	for _, tr := range s.Project.Tracks {
		if tr.Name == "cam" {
			cam = tr.Clips[0]
		}
	}
	require.NotNil(t, cam)
	require.NotNil(t, cam.Analysis)
	assert.InDelta(t, 5.0, cam.Analysis.TimelineOffset, 0.01)

	result, err := s.Engine.Stitch(ctx, s.Project.Tracks, cfg, nil)
	require.NoError(t, err)
	outDir := filepath.Join(dir, "out")
	files, err := exportTracks(ctx, outDir, result, exportOptions{Format: formatWAV, BitDepth: cfg.ExportBitDepth})
	require.NoError(t, err)
	assert.Len(t, files, 2)
	for _, f := range files {
		assert.FileExists(t, f)
	}

	projectPath := filepath.Join(dir, "session"+project.FileExtension)
	require.NoError(t, s.Save(ctx, projectPath, common))
	loaded, err := loadProject(ctx, projectPath, common)
	require.NoError(t, err)
	assert.Equal(t, s.Project.ID, loaded.ID)
	assert.Equal(t, "session", loaded.Name)

	fromLibrary, err := loadProject(ctx, s.Project.ID.String(), common)
	require.NoError(t, err)
	assert.Equal(t, s.Project.ID, fromLibrary.ID)

	report := renderAnalysisReport(loaded, nil)
	assert.True(t, strings.Contains(report, "cam_001.wav"))
	assert.True(t, strings.Contains(report, "zoom_001.wav"))
}

func TestSyncFlags(t *testing.T) {
	t.Setenv(envPrefix+"BIT_DEPTH", "16")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	setupSync(flags, addCommonFlags(flags))
	require.NoError(t, flags.Parse(nil))
	bitDepth, err := flags.GetInt("bit-depth")
	require.NoError(t, err)
	assert.Equal(t, 16, bitDepth)
	format, err := flags.GetString("format")
	require.NoError(t, err)
	assert.Equal(t, formatWAV, format)

	require.NoError(t, flags.Parse([]string{"--bit-depth", "32", "--format", "flac"}))
	bitDepth, err = flags.GetInt("bit-depth")
	require.NoError(t, err)
	assert.Equal(t, 32, bitDepth)
}

func TestExportOptions(t *testing.T) {
	assert.NoError(t, exportOptions{Format: formatWAV, BitDepth: 16}.validate())
	assert.NoError(t, exportOptions{Format: "aiff", BitDepth: 24}.validate())
	assert.Error(t, exportOptions{Format: "wma", BitDepth: 24}.validate())
}

func TestExportTracks_BitDepth(t *testing.T) {
	ctx := context.Background()
	result := &stitch.Result{
		SampleRate: 8000,
		Tracks:     []stitch.TrackAudio{{Name: "zoom", Samples: noise(2, 800)}},
	}
	for _, bitDepth := range []int{16, 24, 32} {
		dir := t.TempDir()
		files, err := exportTracks(ctx, dir, result, exportOptions{Format: formatWAV, BitDepth: bitDepth})
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, filepath.Join(dir, "zoom.wav"), files[0])

		decoded, err := (&wav.Decoder{}).Decode(ctx, files[0])
		require.NoError(t, err)
		assert.EqualValues(t, 8000, decoded.SampleRate)
		assert.Len(t, decoded.Samples, 800)
		assert.InDelta(t, result.Tracks[0].Samples[10], decoded.Samples[10], 1e-3)
	}

	_, err := exportTracks(ctx, t.TempDir(), result, exportOptions{Format: formatWAV, BitDepth: 8})
	assert.Error(t, err)
}
