package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"manifest/internal/domain"
	"manifest/internal/media"
	"manifest/internal/progress"
	"manifest/internal/providers/video"
)

const stageQueued = "Queued"

const (
	segment1File = "segment1.mp4"
	segment2File = "segment2.mp4"
	frameFile    = "continuity.png"
	previewFile  = "preview.mp4"
	finalFile    = "final.mp4"
)

// run carries the state one job accumulates across its steps.
type run struct {
	s      *Service
	id     string
	mode   domain.Mode
	params ModeParams
	dir    string

	source     string
	sourceMIME string
	prompt     string
	enhanced   string
	segment1   string
	segment2   string
	artifact   string
	url        string
	segments   int
	merge      media.MergeResult
}

func (s *Service) execute(id string, mode domain.Mode) {
	defer s.wg.Done()

	if err := s.admission.acquire(s.runCtx); err != nil {
		s.admission.cancel()
		s.fail(id, fmt.Errorf("job not started: %w", err))
		return
	}
	defer s.admission.release()

	r := &run{s: s, id: id, mode: mode, params: s.paramsFor(mode)}
	if err := r.exec(s.runCtx); err != nil {
		s.fail(id, err)
		return
	}
	s.succeed(r)
}

func (s *Service) paramsFor(mode domain.Mode) ModeParams {
	if mode == domain.ModeFull {
		return s.full
	}
	return s.preview
}

// exec runs every step of the job's mode in order, stopping at the first
// error. A panicking step is reported as an error.
func (r *run) exec(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.s.logger.Error().
				Str("job_id", r.id).
				Str("stack", string(debug.Stack())).
				Msgf("orchestrator: step panicked: %v", rec)
			err = fmt.Errorf("internal error: %v", rec)
		}
	}()

	for _, st := range r.steps() {
		if err := r.checkpoint(st.key); err != nil {
			return err
		}
		if st.do == nil {
			continue
		}
		if err := st.do(ctx); err != nil {
			r.s.logger.Warn().
				Err(err).
				Str("job_id", r.id).
				Str("mode", string(r.mode)).
				Str("stage", string(st.key)).
				Msg("orchestrator: step failed")
			return err
		}
	}
	return nil
}

type step struct {
	key progress.Key
	do  func(context.Context) error
}

func (r *run) steps() []step {
	steps := []step{
		{key: progress.KeyInitializing, do: r.initialize},
		{key: progress.KeyEnhancingPrompt, do: r.enhancePrompt},
		{key: progress.KeyGenerateFirst, do: r.generateFirst},
		{key: progress.KeyDownloadFirst, do: r.downloadFirst},
	}
	if r.mode == domain.ModeFull {
		steps = append(steps,
			step{key: progress.KeyExtractFrame, do: r.extractFrame},
			step{key: progress.KeyGenerateSecond, do: r.generateSecond},
			step{key: progress.KeyDownloadSecond, do: r.downloadSecond},
			step{key: progress.KeyMerge, do: r.mergeSegments},
		)
	} else {
		steps = append(steps, step{key: progress.KeyTrimPreview, do: r.trimPreview})
	}
	return append(steps, step{key: progress.KeyPublish, do: r.publish})
}

// checkpoint moves the job to the named checkpoint and marks it Processing.
func (r *run) checkpoint(key progress.Key) error {
	cp, ok := progress.Lookup(r.mode, key)
	if !ok {
		return fmt.Errorf("no checkpoint %q for mode %s", key, r.mode)
	}
	_, err := r.s.store.Update(r.id, func(j *domain.GenerationJob) error {
		j.Status = domain.JobStatusProcessing
		progress.Apply(j, cp, r.s.now())
		return nil
	})
	if err != nil {
		return fmt.Errorf("record progress: %w", err)
	}
	r.s.logger.Debug().
		Str("job_id", r.id).
		Str("mode", string(r.mode)).
		Str("stage", cp.Label).
		Int("eta_seconds", cp.Remaining).
		Msg("orchestrator: checkpoint")
	return nil
}

func (r *run) initialize(context.Context) error {
	job, err := r.s.store.Get(r.id)
	if err != nil {
		return err
	}
	dir, err := r.s.workspace.JobDir(r.id)
	if err != nil {
		return err
	}
	r.dir = dir
	r.source = job.SourceImagePath
	r.sourceMIME = job.SourceImageMIME
	r.prompt = job.Prompt
	return nil
}

func (r *run) enhancePrompt(ctx context.Context) error {
	r.enhanced = r.s.enhancer.Enhance(ctx, r.prompt)
	if r.enhanced == "" {
		r.enhanced = r.prompt
	}
	_, err := r.s.store.Update(r.id, func(j *domain.GenerationJob) error {
		j.EnhancedPrompt = r.enhanced
		j.Touch(r.s.now())
		return nil
	})
	return err
}

func (r *run) generate(ctx context.Context, seedPath, seedMIME string) (string, error) {
	seed, err := os.ReadFile(seedPath)
	if err != nil {
		return "", fmt.Errorf("read seed image: %w", err)
	}
	seg, err := r.s.generator.Generate(ctx, video.GenerateRequest{
		Prompt:          r.enhanced,
		SeedImage:       seed,
		SeedImageMIME:   seedMIME,
		DurationSeconds: video.ClampDuration(r.params.SegmentSeconds, r.s.generator.SupportedDurations()),
		FPS:             r.params.FPS,
		Resolution:      video.ResolutionForWidth(r.params.Width),
		RequestID:       r.id,
	})
	r.segments++
	if err != nil {
		return "", err
	}
	return seg.URL, nil
}

func (r *run) generateFirst(ctx context.Context) (err error) {
	r.segment1, err = r.generate(ctx, r.source, r.sourceMIME)
	return err
}

func (r *run) downloadFirst(ctx context.Context) error {
	return r.s.media.Download(ctx, r.segment1, r.path(segment1File))
}

func (r *run) extractFrame(ctx context.Context) error {
	return r.s.media.ExtractLastFrame(ctx, r.path(segment1File), r.path(frameFile))
}

// generateSecond seeds the second segment with the last frame of the first
// so the two clips join without a visual jump.
func (r *run) generateSecond(ctx context.Context) (err error) {
	r.segment2, err = r.generate(ctx, r.path(frameFile), "image/png")
	return err
}

func (r *run) downloadSecond(ctx context.Context) error {
	return r.s.media.Download(ctx, r.segment2, r.path(segment2File))
}

func (r *run) mergeSegments(ctx context.Context) error {
	out := r.path(finalFile)
	res, err := r.s.media.MergeWithCrossfade(ctx, r.path(segment1File), r.path(segment2File), out,
		r.params.CrossfadeSeconds, r.params.FPS, r.params.Width)
	if err != nil {
		return err
	}
	if res.Strategy == domain.MergeStrategyConcat {
		r.s.logger.Warn().
			Str("job_id", r.id).
			Str("strategy", string(res.Strategy)).
			Str("reason", res.FallbackReason).
			Msg("orchestrator: crossfade failed, segments concatenated")
	}
	r.merge = res
	r.artifact = out
	return nil
}

func (r *run) trimPreview(ctx context.Context) error {
	out := r.path(previewFile)
	if err := r.s.media.Trim(ctx, r.path(segment1File), out, r.params.PreviewSeconds, r.params.FPS, r.params.Width); err != nil {
		return err
	}
	r.artifact = out
	return nil
}

// publish uploads the artifact when a publisher is configured. The local
// copy stays authoritative, so upload failures only lose the remote URL.
func (r *run) publish(ctx context.Context) error {
	if _, err := os.Stat(r.artifact); err != nil {
		return fmt.Errorf("artifact missing: %w", err)
	}
	if r.s.publisher == nil {
		return nil
	}
	url, err := r.s.publisher.Publish(ctx, r.id, r.artifact)
	if err != nil {
		r.s.logger.Warn().Err(err).Str("job_id", r.id).Msg("orchestrator: publish failed, serving local artifact")
		return nil
	}
	r.url = url
	return nil
}

func (r *run) path(name string) string {
	return filepath.Join(r.dir, name)
}

func (s *Service) succeed(r *run) {
	final := progress.Final(r.mode)
	_, err := s.store.Update(r.id, func(j *domain.GenerationJob) error {
		now := s.now()
		progress.Apply(j, final, now)
		j.MarkSucceeded(r.artifact, r.segments, now)
		j.FinalArtifactURL = r.url
		if r.mode == domain.ModeFull {
			j.MergeStrategy = r.merge.Strategy
			j.MergeFallbackReason = r.merge.FallbackReason
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", r.id).Msg("orchestrator: record success failed")
		s.fail(r.id, err)
		return
	}
	s.logger.Info().
		Str("job_id", r.id).
		Str("mode", string(r.mode)).
		Int("segments", r.segments).
		Str("strategy", string(r.merge.Strategy)).
		Msg("orchestrator: job succeeded")
}

func (s *Service) fail(id string, cause error) {
	_, err := s.store.Update(id, func(j *domain.GenerationJob) error {
		if j.Status == domain.JobStatusQueued {
			j.Status = domain.JobStatusProcessing
		}
		return nil
	})
	if err == nil {
		_, err = s.store.Update(id, func(j *domain.GenerationJob) error {
			j.MarkFailed(cause, s.now())
			return nil
		})
	}
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", id).Msg("orchestrator: record failure failed")
		return
	}
	s.logger.Error().Err(cause).Str("job_id", id).Msg("orchestrator: job failed")
}
