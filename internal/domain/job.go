package domain

import "time"

// Mode selects the generation path for a job.
type Mode string

const (
	ModePreview Mode = "preview"
	ModeFull    Mode = "full"
)

// Valid reports whether m is a supported mode.
func (m Mode) Valid() bool {
	return m == ModePreview || m == ModeFull
}

// SegmentCount is the number of provider calls the mode makes.
func (m Mode) SegmentCount() int {
	if m == ModeFull {
		return 2
	}
	return 1
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSucceeded  JobStatus = "succeeded"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// CanTransition reports whether moving from s to next is a legal step.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return next == JobStatusProcessing
	case JobStatusProcessing:
		return next == JobStatusProcessing || next.Terminal()
	default:
		return false
	}
}

// MergeStrategy records how the two segments of a full-mode job were joined.
type MergeStrategy string

const (
	MergeStrategyCrossfade MergeStrategy = "crossfade"
	MergeStrategyConcat    MergeStrategy = "concat"
)

// GenerationJob is the in-memory record of one submission.
type GenerationJob struct {
	ID              string
	Prompt          string
	EnhancedPrompt  string
	Mode            Mode
	SourceImagePath string
	SourceImageMIME string
	Status          JobStatus
	ProgressStage   string

	EstimatedRemainingSeconds int
	EstimatedCompletionTime   time.Time

	SegmentCount        int
	FinalArtifactPath   string
	FinalArtifactURL    string
	MergeStrategy       MergeStrategy
	MergeFallbackReason string
	ErrorMessage        string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Touch stamps UpdatedAt.
func (j *GenerationJob) Touch(now time.Time) {
	j.UpdatedAt = now
}

// MarkSucceeded moves the job to its terminal success state.
func (j *GenerationJob) MarkSucceeded(artifactPath string, segments int, now time.Time) {
	j.Status = JobStatusSucceeded
	j.FinalArtifactPath = artifactPath
	j.SegmentCount = segments
	j.ErrorMessage = ""
	j.EstimatedRemainingSeconds = 0
	j.EstimatedCompletionTime = now
	j.Touch(now)
}

// MarkFailed moves the job to its terminal failure state.
func (j *GenerationJob) MarkFailed(err error, now time.Time) {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	j.Status = JobStatusFailed
	j.ErrorMessage = msg
	j.ProgressStage = StageFailed
	j.FinalArtifactPath = ""
	j.FinalArtifactURL = ""
	j.EstimatedRemainingSeconds = 0
	j.EstimatedCompletionTime = now
	j.Touch(now)
}

// StageFailed is the progress label of every failed job.
const StageFailed = "Failed"
