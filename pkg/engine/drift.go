package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audiosync/pkg/analysiscache"
	"github.com/xaionaro-go/audiosync/pkg/drift"
	"github.com/xaionaro-go/audiosync/pkg/model"
	"github.com/xaionaro-go/audiosync/pkg/syncer"
	"github.com/xaionaro-go/audiosync/pkg/timeline"
)

// DriftReport is the outcome of a pairwise drift measurement.
type DriftReport struct {
	// Offset is the position of the target within the reference in seconds.
	Offset        float64 `json:"offset_s"`
	Confidence    float64 `json:"confidence"`
	DriftPPM      float64 `json:"drift_ppm"`
	DriftRSquared float64 `json:"drift_r_squared"`
	Windows       int     `json:"windows"`
	Inconclusive  bool    `json:"inconclusive"`
}

// MeasureDrift aligns the target file against the reference file and
// measures the clock drift between them.
func (e *Engine) MeasureDrift(
	ctx context.Context,
	referencePath string,
	targetPath string,
	cfg model.AnalysisConfig,
) (_ *DriftReport, _err error) {
	logger.Tracef(ctx, "MeasureDrift(%s, %s)", referencePath, targetPath)
	defer func() { logger.Tracef(ctx, "/MeasureDrift(%s, %s): %v", referencePath, targetPath, _err) }()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ref, err := e.load(ctx, referencePath, cfg.AnalysisSampleRate)
	if err != nil {
		return nil, err
	}
	target, err := e.load(ctx, targetPath, cfg.AnalysisSampleRate)
	if err != nil {
		return nil, err
	}

	rate := float64(cfg.AnalysisSampleRate)
	s, err := e.syncerFactory.NewSyncer(syncer.Around(0, int(math.Ceil(cfg.MaxOffset*rate))))
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a syncer: %w", err)
	}
	results, err := s.CalculateShiftBetween(ctx, ref.Samples, target.Samples)
	if err != nil {
		return nil, fmt.Errorf("unable to correlate '%s' with '%s': %w", targetPath, referencePath, err)
	}
	report := &DriftReport{
		Offset:     results[0].Offset(rate),
		Confidence: results[0].Confidence,
	}
	if report.Confidence < cfg.GoodMatchConfidence {
		logger.Warnf(ctx, "'%s' matches '%s' weakly (confidence %.2f)", targetPath, referencePath, report.Confidence)
	}

	tl := timeline.New(rate)
	tl.Write(0, ref.Samples)
	// windows are searched within their own segments, so the syncer is unbounded
	windowSyncer, err := e.syncerFactory.NewSyncer(syncer.Unbounded)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a syncer: %w", err)
	}
	estimator, err := drift.NewEstimator(windowSyncer, cfg)
	if err != nil {
		return nil, err
	}
	est, err := estimator.Estimate(ctx, tl, target.Samples, report.Offset)
	if err != nil {
		return nil, fmt.Errorf("unable to estimate the drift: %w", err)
	}
	report.DriftPPM = est.PPM
	report.DriftRSquared = est.RSquared
	report.Windows = est.Windows
	report.Inconclusive = est.Inconclusive
	return report, nil
}

func (e *Engine) load(
	ctx context.Context,
	path string,
	sampleRate uint32,
) (*analysiscache.Entry, error) {
	info, err := e.source.Stat(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("unable to stat '%s': %w", path, err)
	}
	entry, err := e.cache.GetOrBuild(ctx, path, info.ModTime, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("unable to load '%s': %w", path, err)
	}
	return entry, nil
}
