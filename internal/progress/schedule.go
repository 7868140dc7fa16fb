// Package progress maps pipeline checkpoints to stage labels and a fixed,
// nominal countdown. The numbers are a schedule, not a measurement.
package progress

import (
	"time"

	"manifest/internal/domain"
)

// Key identifies a checkpoint independently of its display label.
type Key string

const (
	KeyInitializing    Key = "initializing"
	KeyEnhancingPrompt Key = "enhancing_prompt"
	KeyGenerateFirst   Key = "generate_first"
	KeyDownloadFirst   Key = "download_first"
	KeyTrimPreview     Key = "trim_preview"
	KeyExtractFrame    Key = "extract_frame"
	KeyGenerateSecond  Key = "generate_second"
	KeyDownloadSecond  Key = "download_second"
	KeyMerge           Key = "merge"
	KeyPublish         Key = "publish"
	KeyPreviewReady    Key = "preview_ready"
	KeyComplete        Key = "complete"
)

// Checkpoint is one row of a mode's schedule.
type Checkpoint struct {
	Key       Key
	Label     string
	Remaining int
}

var previewSchedule = []Checkpoint{
	{Key: KeyInitializing, Label: "Initializing", Remaining: 75},
	{Key: KeyEnhancingPrompt, Label: "Enhancing prompt", Remaining: 70},
	{Key: KeyGenerateFirst, Label: "Generating first segment", Remaining: 60},
	{Key: KeyDownloadFirst, Label: "Downloading first segment", Remaining: 12},
	{Key: KeyTrimPreview, Label: "Creating preview", Remaining: 8},
	{Key: KeyPublish, Label: "Publishing video", Remaining: 2},
	{Key: KeyPreviewReady, Label: "Preview ready", Remaining: 0},
}

var fullSchedule = []Checkpoint{
	{Key: KeyInitializing, Label: "Initializing", Remaining: 180},
	{Key: KeyEnhancingPrompt, Label: "Enhancing prompt", Remaining: 170},
	{Key: KeyGenerateFirst, Label: "Generating first segment", Remaining: 160},
	{Key: KeyDownloadFirst, Label: "Downloading first segment", Remaining: 100},
	{Key: KeyExtractFrame, Label: "Extracting continuity frame", Remaining: 95},
	{Key: KeyGenerateSecond, Label: "Generating second segment", Remaining: 90},
	{Key: KeyDownloadSecond, Label: "Downloading second segment", Remaining: 30},
	{Key: KeyMerge, Label: "Merging segments with crossfade", Remaining: 20},
	{Key: KeyPublish, Label: "Publishing video", Remaining: 5},
	{Key: KeyComplete, Label: "Complete", Remaining: 0},
}

// Schedule returns a copy of the ordered checkpoint table for mode.
func Schedule(mode domain.Mode) []Checkpoint {
	src := previewSchedule
	if mode == domain.ModeFull {
		src = fullSchedule
	}
	out := make([]Checkpoint, len(src))
	copy(out, src)
	return out
}

// Lookup returns the checkpoint with key in mode's schedule.
func Lookup(mode domain.Mode, key Key) (Checkpoint, bool) {
	for _, cp := range Schedule(mode) {
		if cp.Key == key {
			return cp, true
		}
	}
	return Checkpoint{}, false
}

// Final returns the last checkpoint of mode's schedule.
func Final(mode domain.Mode) Checkpoint {
	s := Schedule(mode)
	return s[len(s)-1]
}

// Apply stamps cp onto job: stage label, nominal remaining seconds and the
// completion time derived from now.
func Apply(job *domain.GenerationJob, cp Checkpoint, now time.Time) {
	job.ProgressStage = cp.Label
	job.EstimatedRemainingSeconds = cp.Remaining
	job.EstimatedCompletionTime = now.Add(time.Duration(cp.Remaining) * time.Second)
	job.Touch(now)
}
