package project

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/xaionaro-go/audiosync/pkg/model"
)

type v2Clip struct {
	FilePath              string   `json:"file_path"`
	Name                  string   `json:"name"`
	OriginalSR            uint32   `json:"original_sr"`
	OriginalChannels      uint32   `json:"original_channels"`
	DurationS             float64  `json:"duration_s"`
	IsVideo               bool     `json:"is_video"`
	CreationTime          *float64 `json:"creation_time"`
	TimelineOffsetSamples int64    `json:"timeline_offset_samples"`
	TimelineOffsetS       float64  `json:"timeline_offset_s"`
	Confidence            float64  `json:"confidence"`
	Analyzed              bool     `json:"analyzed"`
	DriftPPM              float64  `json:"drift_ppm"`
	DriftConfidence       float64  `json:"drift_confidence"`
	DriftCorrected        bool     `json:"drift_corrected"`
}

type v2Track struct {
	Name        string   `json:"name"`
	Clips       []v2Clip `json:"clips"`
	IsReference bool     `json:"is_reference"`
}

type v2Result struct {
	ReferenceTrackIndex int              `json:"reference_track_index"`
	TotalTimelineS      float64          `json:"total_timeline_s"`
	SampleRate          uint32           `json:"sample_rate"`
	ClipOffsets         map[string]int64 `json:"clip_offsets"`
	AvgConfidence       float64          `json:"avg_confidence"`
	DriftDetected       bool             `json:"drift_detected"`
	Warnings            []string         `json:"warnings"`
}

type v2Config struct {
	MaxOffsetS        *float64 `json:"max_offset_s"`
	ExportBitDepth    int      `json:"export_bit_depth"`
	ExportSR          *uint32  `json:"export_sr"`
	DriftCorrection   *bool    `json:"drift_correction"`
	DriftThresholdPPM *float64 `json:"drift_threshold_ppm"`
}

type v2Project struct {
	AppVersion string    `json:"app_version"`
	SavedAt    string    `json:"saved_at"`
	Tracks     []v2Track `json:"tracks"`
	Config     *v2Config `json:"config"`
	Result     *v2Result `json:"result"`
}

// migrateV2 converts the flat clip schema: clips get fresh ids, the
// placement is inferred from the track role and the confidence, and the
// result offsets (samples keyed by clip name) become seconds keyed by id.
func migrateV2(b []byte) (*Project, error) {
	var old v2Project
	if err := json.Unmarshal(b, &old); err != nil {
		return nil, fmt.Errorf("unable to parse the version 2 project: %w", err)
	}

	p := &Project{
		SchemaVersion: SchemaVersion,
		ID:            uuid.New(),
		AppVersion:    old.AppVersion,
	}
	if ts, err := time.Parse(time.RFC3339Nano, old.SavedAt); err == nil {
		p.SavedAt = ts.UTC()
	}

	idByName := map[string]string{}
	for _, ot := range old.Tracks {
		t := &model.Track{Name: ot.Name, IsReference: ot.IsReference}
		for _, oc := range ot.Clips {
			c := migrateV2Clip(oc, ot.IsReference)
			if _, dup := idByName[c.Name]; dup {
				idByName[c.Name] = ""
			} else {
				idByName[c.Name] = c.ID
			}
			t.Clips = append(t.Clips, c)
		}
		p.Tracks = append(p.Tracks, t)
	}

	if old.Config != nil {
		cfg := model.DefaultAnalysisConfig()
		if old.Config.MaxOffsetS != nil {
			cfg.MaxOffset = *old.Config.MaxOffsetS
		}
		if old.Config.ExportBitDepth != 0 {
			cfg.ExportBitDepth = old.Config.ExportBitDepth
		}
		if old.Config.ExportSR != nil {
			cfg.ExportSampleRate = *old.Config.ExportSR
		}
		if old.Config.DriftCorrection != nil {
			cfg.DriftCorrection = *old.Config.DriftCorrection
		}
		if old.Config.DriftThresholdPPM != nil {
			cfg.DriftThresholdPPM = *old.Config.DriftThresholdPPM
		}
		p.Config = &cfg
	}

	if r := old.Result; r != nil {
		res := &model.SyncResult{
			ReferenceTrackIndex: r.ReferenceTrackIndex,
			TotalTimeline:       r.TotalTimelineS,
			AnalysisSampleRate:  r.SampleRate,
			ClipOffsets:         map[string]float64{},
			AvgConfidence:       r.AvgConfidence,
			DriftDetected:       r.DriftDetected,
			Warnings:            r.Warnings,
		}
		if r.SampleRate > 0 {
			for name, samples := range r.ClipOffsets {
				// ambiguous names cannot be mapped to a clip
				if id := idByName[name]; id != "" {
					res.ClipOffsets[id] = float64(samples) / float64(r.SampleRate)
				}
			}
		}
		p.Result = res
	}
	return p, nil
}

func migrateV2Clip(oc v2Clip, reference bool) *model.Clip {
	c := &model.Clip{
		ID:         uuid.NewString(),
		Path:       oc.FilePath,
		Name:       oc.Name,
		Duration:   oc.DurationS,
		SampleRate: oc.OriginalSR,
		Channels:   oc.OriginalChannels,
		IsVideo:    oc.IsVideo,
	}
	if oc.CreationTime != nil {
		sec, frac := math.Modf(*oc.CreationTime)
		ct := time.Unix(int64(sec), int64(frac*1e9)).UTC()
		c.CreationTime = &ct
	}
	if !oc.Analyzed {
		return c
	}

	placement := model.PlacementLowConfidence
	switch {
	case reference:
		placement = model.PlacementReference
	case oc.Confidence >= model.DefaultGoodMatchConfidence:
		placement = model.PlacementPass1Matched
	}
	c.Analysis = &model.ClipAnalysis{
		TimelineOffset: oc.TimelineOffsetS,
		Confidence:     oc.Confidence,
		Placement:      placement,
		DriftCorrected: oc.DriftCorrected,
	}
	if oc.DriftPPM != 0 || oc.DriftConfidence != 0 {
		c.Analysis.Drift = &model.DriftEstimate{
			PPM:      oc.DriftPPM,
			RSquared: oc.DriftConfidence,
		}
	}
	return c
}
