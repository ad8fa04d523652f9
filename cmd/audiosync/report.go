package main

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/xaionaro-go/audiosync/pkg/engine"
	"github.com/xaionaro-go/audiosync/pkg/model"
	"github.com/xaionaro-go/audiosync/pkg/project"
	"github.com/xaionaro-go/audiosync/pkg/stitch"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#A40000"))
	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)
	trackStyle = lipgloss.NewStyle().
			Bold(true)
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#A40000")).
			Padding(0, 1)
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AA00"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A40000"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// formatTimestamp renders seconds as [-]HH:MM:SS.mmm.
func formatTimestamp(seconds float64) string {
	sign := ""
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	ms := int64(math.Round(seconds * 1000))
	return fmt.Sprintf("%s%02d:%02d:%02d.%03d", sign, ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}

func placementIcon(p model.Placement) string {
	switch p {
	case model.PlacementReference:
		return okStyle.Render("★")
	case model.PlacementPass1Matched, model.PlacementPass2Matched:
		return okStyle.Render("✓")
	case model.PlacementMetadataFallback, model.PlacementLowConfidence:
		return warnStyle.Render("~")
	default:
		return failStyle.Render("✗")
	}
}

func renderAnalysisReport(p *project.Project, importWarnings []string) string {
	var b strings.Builder

	title := "audiosync"
	if p.Name != "" {
		title += " - " + p.Name
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	clips := 0
	for _, t := range p.Tracks {
		clips += len(t.Clips)
	}
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("%d track(s), %d clip(s), project %s", len(p.Tracks), clips, p.ID)))
	b.WriteString("\n\n")

	for _, t := range p.Tracks {
		b.WriteString(renderTrack(t))
		b.WriteString("\n")
	}

	if r := p.Result; r != nil {
		var summary strings.Builder
		fmt.Fprintf(&summary, "Timeline:       %s\n", formatTimestamp(r.TotalTimeline))
		fmt.Fprintf(&summary, "Avg confidence: %.1f\n", r.AvgConfidence)
		drift := "no"
		if r.DriftDetected {
			drift = "yes"
		}
		fmt.Fprintf(&summary, "Drift detected: %s", drift)
		if len(r.ExcludedClips) > 0 {
			fmt.Fprintf(&summary, "\nExcluded clips: %d", len(r.ExcludedClips))
		}
		b.WriteString(boxStyle.Render(summary.String()))
		b.WriteString("\n")
		b.WriteString(renderWarnings(append(importWarnings, r.Warnings...)))
	} else {
		b.WriteString(renderWarnings(importWarnings))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTrack(t *model.Track) string {
	var b strings.Builder
	name := t.Name
	if t.IsReference {
		name += " (reference)"
	}
	b.WriteString(trackStyle.Render(name))
	b.WriteString("\n")
	for _, c := range t.Clips {
		if c.Analysis == nil {
			fmt.Fprintf(&b, " %s %s\n   %s\n", dimStyle.Render("○"), c, dimStyle.Render("not analyzed"))
			continue
		}
		a := c.Analysis
		details := fmt.Sprintf("at %s, %s, confidence %.1f", formatTimestamp(a.TimelineOffset), a.Placement, a.Confidence)
		if d := a.Drift; d != nil {
			switch {
			case d.Inconclusive:
				details += ", drift inconclusive"
			default:
				details += fmt.Sprintf(", drift %+.1f ppm (R² %.2f)", d.PPM, d.RSquared)
			}
			if d.Inherited {
				details += " inherited"
			}
			if a.DriftCorrected {
				details += ", corrected"
			}
		}
		fmt.Fprintf(&b, " %s %s (%s)\n   %s\n", placementIcon(a.Placement), c, formatTimestamp(c.Duration), details)
	}
	return b.String()
}

func renderWarnings(warnings []string) string {
	if len(warnings) == 0 {
		return ""
	}
	var b strings.Builder
	for _, w := range warnings {
		b.WriteString(warnStyle.Render("! " + w))
		b.WriteString("\n")
	}
	return b.String()
}

func renderExport(result *stitch.Result, files []string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Export"))
	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("%d Hz, %s", result.SampleRate, formatTimestamp(result.Duration()))))
	b.WriteString("\n")
	for _, f := range files {
		fmt.Fprintf(&b, " %s %s\n", okStyle.Render("✓"), f)
	}
	for _, name := range result.Failed {
		fmt.Fprintf(&b, " %s track '%s' is not exported\n", failStyle.Render("✗"), name)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderDriftReport(referencePath, targetPath string, r *engine.DriftReport) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Drift"))
	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("%s relative to %s", filepath.Base(targetPath), filepath.Base(referencePath))))
	b.WriteString("\n")

	var content strings.Builder
	fmt.Fprintf(&content, "Offset:     %s (confidence %.1f)\n", formatTimestamp(r.Offset), r.Confidence)
	if r.Inconclusive {
		fmt.Fprintf(&content, "Drift:      %s", warnStyle.Render("inconclusive"))
	} else {
		fmt.Fprintf(&content, "Drift:      %+.2f ppm (R² %.3f)", r.DriftPPM, r.DriftRSquared)
	}
	fmt.Fprintf(&content, "\nWindows:    %d", r.Windows)
	if !r.Inconclusive && r.DriftPPM != 0 {
		// time to accumulate one frame (1/30 s) of error
		hours := (1.0 / 30) / math.Abs(r.DriftPPM*1e-6) / 3600
		fmt.Fprintf(&content, "\nOne frame:  after %.1f h", hours)
	}
	b.WriteString(boxStyle.Render(content.String()))
	return b.String()
}

func renderLibrary(location string, list []project.Summary) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Projects"))
	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render(location))
	b.WriteString("\n")
	if len(list) == 0 {
		b.WriteString(dimStyle.Render(" (empty)"))
		return b.String()
	}
	for _, s := range list {
		name := s.Name
		if name == "" {
			name = dimStyle.Render("<unnamed>")
		}
		fmt.Fprintf(&b, " %s  %s  %s\n", s.ID, s.SavedAt.Local().Format(time.DateTime), name)
	}
	return strings.TrimRight(b.String(), "\n")
}
