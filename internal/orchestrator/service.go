// Package orchestrator accepts generation submissions and drives each job
// through its mode's linear pipeline in the background.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"manifest/internal/domain"
	"manifest/internal/infra"
	"manifest/internal/media"
	"manifest/internal/progress"
	"manifest/internal/providers/prompt"
	"manifest/internal/providers/video"
	"manifest/internal/storage"
)

// MediaPipeline is the subset of media operations a job run needs.
type MediaPipeline interface {
	Download(ctx context.Context, url, destPath string) error
	ExtractLastFrame(ctx context.Context, videoPath, imagePath string) error
	MergeWithCrossfade(ctx context.Context, clip1, clip2, outPath string, xfadeSeconds float64, fps, width int) (media.MergeResult, error)
	Trim(ctx context.Context, input, output string, durationSeconds float64, fps, width int) error
}

// Workspace owns the per-job directories on local disk.
type Workspace interface {
	JobDir(jobID string) (string, error)
	SaveSource(ctx context.Context, jobID, ext string, data []byte) (string, error)
	Open(path string) (*os.File, error)
}

// PaymentLedger redeems checkout sessions for full-mode renders.
type PaymentLedger interface {
	Consume(ctx context.Context, sessionID string) error
	Release(sessionID string)
}

// ModeParams are the provider and media parameters of one mode.
type ModeParams struct {
	SegmentSeconds   int
	FPS              int
	Width            int
	CrossfadeSeconds float64
	PreviewSeconds   float64
}

type Options struct {
	Store     domain.JobRepository
	Generator video.Generator
	Enhancer  prompt.Enhancer
	Media     MediaPipeline
	Workspace Workspace
	// Publisher is optional; without one artifacts are served from disk only.
	Publisher storage.Publisher
	// Payments is optional; nil disables payment enforcement.
	Payments PaymentLedger

	Preview ModeParams
	Full    ModeParams

	MaxConcurrentJobs int
	MaxQueuedJobs     int

	Clock  func() time.Time
	NewID  func() string
	Logger *infra.Logger
}

type Service struct {
	store     domain.JobRepository
	generator video.Generator
	enhancer  prompt.Enhancer
	media     MediaPipeline
	workspace Workspace
	publisher storage.Publisher
	payments  PaymentLedger
	preview   ModeParams
	full      ModeParams

	admission *admission
	validate  *validator.Validate
	now       func() time.Time
	newID     func() string
	logger    *infra.Logger

	runCtx   context.Context
	stopRuns context.CancelFunc
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// SubmitRequest is one upload as received by the driving layer.
type SubmitRequest struct {
	Image       []byte
	ContentType string
	Prompt      string
	Mode        domain.Mode
	SessionID   string
}

type SubmitResult struct {
	JobID  string
	Status domain.JobStatus
}

var errShuttingDown = errors.New("service is shutting down")

func New(opts Options) (*Service, error) {
	switch {
	case opts.Store == nil:
		return nil, errors.New("orchestrator: job store is required")
	case opts.Generator == nil:
		return nil, errors.New("orchestrator: video generator is required")
	case opts.Media == nil:
		return nil, errors.New("orchestrator: media pipeline is required")
	case opts.Workspace == nil:
		return nil, errors.New("orchestrator: workspace is required")
	}
	enhancer := opts.Enhancer
	if enhancer == nil {
		enhancer = prompt.NewStaticEnhancer()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}
	runCtx, stop := context.WithCancel(context.Background())
	return &Service{
		store:     opts.Store,
		generator: opts.Generator,
		enhancer:  enhancer,
		media:     opts.Media,
		workspace: opts.Workspace,
		publisher: opts.Publisher,
		payments:  opts.Payments,
		preview:   opts.Preview,
		full:      opts.Full,
		admission: newAdmission(opts.MaxConcurrentJobs, opts.MaxQueuedJobs),
		validate:  newValidator(),
		now:       clock,
		newID:     newID,
		logger:    infra.OrNop(opts.Logger),
		runCtx:    runCtx,
		stopRuns:  stop,
	}, nil
}

// Submit validates the request, records a Queued job and schedules its run.
// Every rejection happens before any job is created.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	contentType := strings.ToLower(strings.TrimSpace(req.ContentType))
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	sub := domain.Submission{
		Prompt:      strings.TrimSpace(req.Prompt),
		Mode:        req.Mode,
		ContentType: contentType,
		ImageBytes:  len(req.Image),
		SessionID:   strings.TrimSpace(req.SessionID),
	}
	if err := validateSubmission(s.validate, &sub); err != nil {
		return SubmitResult{}, err
	}
	if sniffed := http.DetectContentType(req.Image); sniffed != sub.ContentType {
		return SubmitResult{}, &ValidationError{Fields: map[string]string{
			"file": fmt.Sprintf("file content is %s, not %s", sniffed, sub.ContentType),
		}}
	}
	if !s.generator.Configured() {
		return SubmitResult{}, fmt.Errorf("%w: video provider credentials are not set", domain.ErrConfiguration)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return SubmitResult{}, fmt.Errorf("%w: %w", domain.ErrCapacity, errShuttingDown)
	}

	redeemed := false
	if sub.Mode == domain.ModeFull && s.payments != nil {
		if err := s.payments.Consume(ctx, sub.SessionID); err != nil {
			return SubmitResult{}, err
		}
		redeemed = true
	}
	undo := func() {
		if redeemed {
			s.payments.Release(sub.SessionID)
		}
	}

	if !s.admission.tryAdmit() {
		undo()
		return SubmitResult{}, fmt.Errorf("%w: %d jobs in flight", domain.ErrCapacity, s.admission.inFlight())
	}

	id := s.newID()
	sourcePath, err := s.workspace.SaveSource(ctx, id, domain.ImageExtension(sub.ContentType), req.Image)
	if err != nil {
		s.admission.cancel()
		undo()
		return SubmitResult{}, fmt.Errorf("save upload: %w", err)
	}

	now := s.now()
	job := &domain.GenerationJob{
		ID:              id,
		Prompt:          sub.Prompt,
		Mode:            sub.Mode,
		SourceImagePath: sourcePath,
		SourceImageMIME: sub.ContentType,
		Status:          domain.JobStatusQueued,
		CreatedAt:       now,
	}
	first := progress.Schedule(sub.Mode)[0]
	progress.Apply(job, first, now)
	job.ProgressStage = stageQueued
	if err := s.store.Create(job); err != nil {
		s.admission.cancel()
		undo()
		return SubmitResult{}, fmt.Errorf("create job: %w", err)
	}

	s.logger.Info().
		Str("job_id", id).
		Str("mode", string(sub.Mode)).
		Int("in_flight", s.admission.inFlight()).
		Msg("orchestrator: job accepted")

	s.wg.Add(1)
	go s.execute(id, sub.Mode)

	return SubmitResult{JobID: id, Status: domain.JobStatusQueued}, nil
}

// GetStatus returns a snapshot of the job.
func (s *Service) GetStatus(id string) (StatusView, error) {
	job, err := s.store.Get(id)
	if err != nil {
		return StatusView{}, err
	}
	return newStatusView(job), nil
}

// GetArtifact opens the produced clip of a Succeeded job. The caller closes
// the file.
func (s *Service) GetArtifact(id string) (*os.File, string, error) {
	job, err := s.store.Get(id)
	if err != nil {
		return nil, "", err
	}
	if job.Status != domain.JobStatusSucceeded || job.FinalArtifactPath == "" {
		return nil, "", fmt.Errorf("%w: job %s has no artifact yet", domain.ErrNotFound, id)
	}
	f, err := s.workspace.Open(job.FinalArtifactPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: artifact for job %s is missing", domain.ErrNotFound, id)
		}
		return nil, "", err
	}
	return f, "video/mp4", nil
}

// GetSourceImage opens the uploaded seed image of a job.
func (s *Service) GetSourceImage(id string) (*os.File, string, error) {
	job, err := s.store.Get(id)
	if err != nil {
		return nil, "", err
	}
	f, err := s.workspace.Open(job.SourceImagePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: image for job %s is missing", domain.ErrNotFound, id)
		}
		return nil, "", err
	}
	return f, job.SourceImageMIME, nil
}

// Shutdown stops accepting submissions and waits for running jobs. When ctx
// ends first the remaining runs are cancelled; they still record a terminal
// Failed state before Shutdown returns.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.stopRuns()
		return nil
	case <-ctx.Done():
		s.stopRuns()
		<-done
		return ctx.Err()
	}
}

// Wait blocks until every scheduled job has reached a terminal state.
func (s *Service) Wait() {
	s.wg.Wait()
}
