package video

import (
	"context"
	"sort"
)

// GenerateRequest carries everything one segment generation needs.
type GenerateRequest struct {
	Prompt          string
	SeedImage       []byte
	SeedImageMIME   string
	DurationSeconds int
	FPS             int
	Resolution      string
	RequestID       string
}

// Segment is a generated clip hosted by the provider.
type Segment struct {
	URL          string
	PredictionID string
}

// Generator produces one video segment per call.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Segment, error)
	// SupportedDurations lists the segment lengths, in seconds, the backing
	// model accepts. An empty list means any positive duration.
	SupportedDurations() []int
	// Configured reports whether credentials are present for remote calls.
	Configured() bool
}

// ClampDuration returns the supported duration closest to requested, picking
// the shorter one on a tie.
func ClampDuration(requested int, supported []int) int {
	if len(supported) == 0 {
		if requested <= 0 {
			return 1
		}
		return requested
	}
	sorted := append([]int(nil), supported...)
	sort.Ints(sorted)
	best := sorted[0]
	for _, d := range sorted[1:] {
		if abs(d-requested) < abs(best-requested) {
			best = d
		}
	}
	return best
}

// ResolutionForWidth maps a target width onto the provider's named tiers.
func ResolutionForWidth(width int) string {
	switch {
	case width <= 0:
		return ""
	case width <= 480:
		return "480p"
	case width <= 720:
		return "720p"
	default:
		return "1080p"
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
