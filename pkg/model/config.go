package model

import (
	"fmt"
	"time"
)

const (
	DefaultAnalysisSampleRate  = 8000
	DefaultGoodMatchConfidence = 10.0
	DefaultLowMatchConfidence  = 3.0
	DefaultDriftWindow         = 30 * time.Second
	DefaultDriftStride         = 15 * time.Second
	DefaultDriftMinWindows     = 3
	DefaultDriftMinRSquared    = 0.3
	DefaultDriftThresholdPPM   = 0.3
	DefaultExportBitDepth      = 24
)

// AnalysisConfig is the set of per-run parameters.
type AnalysisConfig struct {
	// MaxOffset bounds the correlation search to ±MaxOffset seconds; zero means unbounded.
	MaxOffset       float64 `json:"max_offset_s"`
	DriftCorrection bool    `json:"drift_correction"`

	AnalysisSampleRate uint32 `json:"analysis_sample_rate"`

	// GoodMatchConfidence is the confidence at or above which a correlation is trusted.
	GoodMatchConfidence float64 `json:"good_match_confidence"`
	// LowMatchConfidence is the confidence below which a correlation-placed clip is reported as weak.
	LowMatchConfidence float64 `json:"low_match_confidence"`

	DriftWindow     time.Duration `json:"drift_window"`
	DriftStride     time.Duration `json:"drift_stride"`
	DriftMinWindows int           `json:"drift_min_windows"`
	// DriftMinRSquared is the R² at or below which a drift estimate is inconclusive.
	DriftMinRSquared float64 `json:"drift_min_r_squared"`
	// DriftThresholdPPM is the smallest |ppm| worth correcting.
	DriftThresholdPPM float64 `json:"drift_threshold_ppm"`

	// ExportSampleRate is the stitching rate; zero means the most common clip rate.
	ExportSampleRate uint32 `json:"export_sample_rate"`
	ExportBitDepth   int    `json:"export_bit_depth"`

	// Parallelism limits the amount of clips processed concurrently; zero means GOMAXPROCS.
	Parallelism int `json:"parallelism"`
}

func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		DriftCorrection:     true,
		AnalysisSampleRate:  DefaultAnalysisSampleRate,
		GoodMatchConfidence: DefaultGoodMatchConfidence,
		LowMatchConfidence:  DefaultLowMatchConfidence,
		DriftWindow:         DefaultDriftWindow,
		DriftStride:         DefaultDriftStride,
		DriftMinWindows:     DefaultDriftMinWindows,
		DriftMinRSquared:    DefaultDriftMinRSquared,
		DriftThresholdPPM:   DefaultDriftThresholdPPM,
		ExportBitDepth:      DefaultExportBitDepth,
	}
}

func (cfg AnalysisConfig) Validate() error {
	if cfg.MaxOffset < 0 {
		return fmt.Errorf("max offset must not be negative: got %v", cfg.MaxOffset)
	}
	if cfg.AnalysisSampleRate == 0 {
		return fmt.Errorf("analysis sample rate must be positive")
	}
	if cfg.GoodMatchConfidence <= 0 {
		return fmt.Errorf("good match confidence must be positive: got %v", cfg.GoodMatchConfidence)
	}
	if cfg.LowMatchConfidence < 0 || cfg.LowMatchConfidence > cfg.GoodMatchConfidence {
		return fmt.Errorf("low match confidence must be within [0, %v]: got %v", cfg.GoodMatchConfidence, cfg.LowMatchConfidence)
	}
	if cfg.DriftWindow <= 0 || cfg.DriftStride <= 0 {
		return fmt.Errorf("drift window and stride must be positive: got %v and %v", cfg.DriftWindow, cfg.DriftStride)
	}
	if cfg.DriftMinWindows < 2 {
		return fmt.Errorf("a drift regression needs at least 2 windows: got %d", cfg.DriftMinWindows)
	}
	if cfg.DriftMinRSquared < 0 || cfg.DriftMinRSquared >= 1 {
		return fmt.Errorf("drift R² threshold must be within [0, 1): got %v", cfg.DriftMinRSquared)
	}
	if cfg.DriftThresholdPPM < 0 {
		return fmt.Errorf("drift threshold must not be negative: got %v", cfg.DriftThresholdPPM)
	}
	switch cfg.ExportBitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("unsupported export bit depth: %d", cfg.ExportBitDepth)
	}
	if cfg.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative: got %d", cfg.Parallelism)
	}
	return nil
}
