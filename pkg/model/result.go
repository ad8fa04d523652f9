package model

// SyncResult is the output of one analysis run.
type SyncResult struct {
	ReferenceTrackIndex int `json:"reference_track_index"`
	// TotalTimeline is the span in seconds covering every placed clip;
	// the earliest clip starts at zero.
	TotalTimeline      float64            `json:"total_timeline_s"`
	AnalysisSampleRate uint32             `json:"analysis_sample_rate"`
	ClipOffsets        map[string]float64 `json:"clip_offsets"`
	// AvgConfidence is the mean confidence across the placed non-reference clips.
	AvgConfidence float64  `json:"avg_confidence"`
	DriftDetected bool     `json:"drift_detected"`
	ExcludedClips []string `json:"excluded_clips,omitempty"`
	Warnings      []string `json:"warnings"`
}
