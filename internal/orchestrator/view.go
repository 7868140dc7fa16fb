package orchestrator

import (
	"time"

	"manifest/internal/domain"
)

// StatusView is the read-only snapshot handed to pollers.
type StatusView struct {
	ID                        string
	Status                    domain.JobStatus
	Stage                     string
	Prompt                    string
	EnhancedPrompt            string
	Mode                      domain.Mode
	EstimatedRemainingSeconds int
	EstimatedCompletionTime   time.Time
	SegmentCount              int
	HasArtifact               bool
	ArtifactURL               string
	MergeStrategy             domain.MergeStrategy
	MergeFallbackReason       string
	Error                     string
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

func newStatusView(j *domain.GenerationJob) StatusView {
	return StatusView{
		ID:                        j.ID,
		Status:                    j.Status,
		Stage:                     j.ProgressStage,
		Prompt:                    j.Prompt,
		EnhancedPrompt:            j.EnhancedPrompt,
		Mode:                      j.Mode,
		EstimatedRemainingSeconds: j.EstimatedRemainingSeconds,
		EstimatedCompletionTime:   j.EstimatedCompletionTime,
		SegmentCount:              j.SegmentCount,
		HasArtifact:               j.Status == domain.JobStatusSucceeded && j.FinalArtifactPath != "",
		ArtifactURL:               j.FinalArtifactURL,
		MergeStrategy:             j.MergeStrategy,
		MergeFallbackReason:       j.MergeFallbackReason,
		Error:                     j.ErrorMessage,
		CreatedAt:                 j.CreatedAt,
		UpdatedAt:                 j.UpdatedAt,
	}
}
