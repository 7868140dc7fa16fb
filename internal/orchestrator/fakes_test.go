package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"manifest/internal/domain"
	"manifest/internal/infra"
	"manifest/internal/jobstore"
	"manifest/internal/media"
	"manifest/internal/providers/video"
	"manifest/internal/storage"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	jpegBytes = append([]byte{0xff, 0xd8, 0xff, 0xe0}, make([]byte, 64)...)
	frameData = []byte("\x89PNG\r\n\x1a\nlast-frame")
)

type fakeGenerator struct {
	mu         sync.Mutex
	configured bool
	durations  []int
	requests   []video.GenerateRequest
	failOn     int
	block      chan struct{}
}

func (g *fakeGenerator) Generate(ctx context.Context, req video.GenerateRequest) (*video.Segment, error) {
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	n := len(g.requests)
	if n == g.failOn {
		return nil, fmt.Errorf("%w: prediction %d failed: NSFW content", domain.ErrProvider, n)
	}
	return &video.Segment{URL: fmt.Sprintf("https://provider.test/seg%d.mp4", n)}, nil
}

func (g *fakeGenerator) SupportedDurations() []int { return g.durations }

func (g *fakeGenerator) Configured() bool { return g.configured }

func (g *fakeGenerator) calls() []video.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]video.GenerateRequest(nil), g.requests...)
}

type fakeMedia struct {
	mu        sync.Mutex
	ops       []string
	merge     media.MergeResult
	mergeErr  error
	trimPanic bool
	trimArgs  []float64
}

func (m *fakeMedia) record(op string) {
	m.mu.Lock()
	m.ops = append(m.ops, op)
	m.mu.Unlock()
}

func (m *fakeMedia) Download(_ context.Context, url, dest string) error {
	m.record("download " + filepath.Base(url))
	return os.WriteFile(dest, []byte(url), 0o644)
}

func (m *fakeMedia) ExtractLastFrame(_ context.Context, videoPath, imagePath string) error {
	m.record("extract " + filepath.Base(videoPath))
	return os.WriteFile(imagePath, frameData, 0o644)
}

func (m *fakeMedia) MergeWithCrossfade(_ context.Context, clip1, clip2, out string, xfade float64, fps, width int) (media.MergeResult, error) {
	m.record(fmt.Sprintf("merge %s+%s x=%.1f", filepath.Base(clip1), filepath.Base(clip2), xfade))
	if m.mergeErr != nil {
		return media.MergeResult{}, m.mergeErr
	}
	if err := os.WriteFile(out, []byte("merged"), 0o644); err != nil {
		return media.MergeResult{}, err
	}
	res := m.merge
	if res.Strategy == "" {
		res.Strategy = domain.MergeStrategyCrossfade
	}
	return res, nil
}

func (m *fakeMedia) Trim(_ context.Context, in, out string, seconds float64, fps, width int) error {
	m.record("trim " + filepath.Base(in))
	if m.trimPanic {
		panic("encoder exploded")
	}
	m.mu.Lock()
	m.trimArgs = []float64{seconds, float64(fps), float64(width)}
	m.mu.Unlock()
	return os.WriteFile(out, []byte("preview"), 0o644)
}

func (m *fakeMedia) history() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ops...)
}

type fakeLedger struct {
	mu       sync.Mutex
	err      error
	consumed []string
	released []string
}

func (l *fakeLedger) Consume(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.consumed = append(l.consumed, id)
	return nil
}

func (l *fakeLedger) Release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = append(l.released, id)
}

type fakePublisher struct {
	err error
}

func (p fakePublisher) Publish(_ context.Context, jobID, localPath string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return "https://cdn.test/jobs/" + jobID + "/" + filepath.Base(localPath), nil
}

// snapshot is what a poller could observe after one store write.
type snapshot struct {
	status domain.JobStatus
	stage  string
	eta    int
}

// recordingStore wraps the real store and keeps every published version.
type recordingStore struct {
	*jobstore.Store
	mu      sync.Mutex
	history map[string][]snapshot
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Store: jobstore.New(), history: map[string][]snapshot{}}
}

func (r *recordingStore) Create(job *domain.GenerationJob) error {
	if err := r.Store.Create(job); err != nil {
		return err
	}
	r.add(job)
	return nil
}

func (r *recordingStore) Update(id string, fn func(*domain.GenerationJob) error) (*domain.GenerationJob, error) {
	job, err := r.Store.Update(id, fn)
	if err == nil {
		r.add(job)
	}
	return job, err
}

func (r *recordingStore) add(job *domain.GenerationJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[job.ID] = append(r.history[job.ID], snapshot{status: job.Status, stage: job.ProgressStage, eta: job.EstimatedRemainingSeconds})
}

func (r *recordingStore) snapshots(id string) []snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]snapshot(nil), r.history[id]...)
}

type harness struct {
	svc       *Service
	store     *recordingStore
	generator *fakeGenerator
	media     *fakeMedia
	ledger    *fakeLedger
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	fs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	h := &harness{
		store:     newRecordingStore(),
		generator: &fakeGenerator{configured: true, durations: []int{5, 10}},
		media:     &fakeMedia{},
	}
	nop := infra.OrNop(nil)
	opts := Options{
		Store:     h.store,
		Generator: h.generator,
		Enhancer:  staticText("enhanced prompt"),
		Media:     h.media,
		Workspace: fs,
		Preview:   ModeParams{SegmentSeconds: 7, FPS: 24, Width: 480, PreviewSeconds: 4},
		Full:      ModeParams{SegmentSeconds: 10, FPS: 24, Width: 720, CrossfadeSeconds: 1},

		MaxConcurrentJobs: 4,
		MaxQueuedJobs:     4,
		Logger:            nop,
	}
	if mutate != nil {
		mutate(&opts)
	}
	if l, ok := opts.Payments.(*fakeLedger); ok {
		h.ledger = l
	}
	svc, err := New(opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	h.svc = svc
	return h
}

type staticText string

func (s staticText) Enhance(context.Context, string) string { return string(s) }

var errBoom = errors.New("boom")
