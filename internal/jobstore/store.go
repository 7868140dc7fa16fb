// Package jobstore keeps generation jobs in process memory for the lifetime
// of the process. Records are never evicted.
//
// Visibility contract: Get returns a private copy, and Update applies its
// mutation to a copy that is published in one step under the shard lock, so
// a reader never observes a half-applied checkpoint. Once a record is
// terminal every further Update fails with domain.ErrTerminal.
package jobstore

import (
	"fmt"
	"hash/fnv"
	"sync"

	"manifest/internal/domain"
)

const shardCount = 32

type shard struct {
	mu   sync.RWMutex
	jobs map[string]*domain.GenerationJob
}

// Store is a sharded, concurrency-safe job map.
type Store struct {
	shards [shardCount]*shard
}

// New returns an empty Store.
func New() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i] = &shard{jobs: make(map[string]*domain.GenerationJob)}
	}
	return s
}

func (s *Store) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[h.Sum32()%shardCount]
}

// Create inserts a new record. The store keeps its own copy.
func (s *Store) Create(job *domain.GenerationJob) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("jobstore: job id is required")
	}
	sh := s.shardFor(job.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.jobs[job.ID]; ok {
		return fmt.Errorf("jobstore: %s: %w", job.ID, domain.ErrDuplicate)
	}
	cp := *job
	sh.jobs[job.ID] = &cp
	return nil
}

// Get returns a snapshot of the record.
func (s *Store) Get(id string) (*domain.GenerationJob, error) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	job, ok := sh.jobs[id]
	if !ok {
		return nil, fmt.Errorf("jobstore: job %s: %w", id, domain.ErrNotFound)
	}
	cp := *job
	return &cp, nil
}

// Update applies fn to a copy of the record and publishes the result if fn
// succeeds and the outcome respects the job lifecycle. It returns a snapshot
// of the published record.
func (s *Store) Update(id string, fn func(*domain.GenerationJob) error) (*domain.GenerationJob, error) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	current, ok := sh.jobs[id]
	if !ok {
		return nil, fmt.Errorf("jobstore: job %s: %w", id, domain.ErrNotFound)
	}
	if current.Status.Terminal() {
		return nil, fmt.Errorf("jobstore: job %s is %s: %w", id, current.Status, domain.ErrTerminal)
	}
	next := *current
	if err := fn(&next); err != nil {
		return nil, err
	}
	if err := checkTransition(current, &next); err != nil {
		return nil, fmt.Errorf("jobstore: job %s: %w", id, err)
	}
	next.ID = current.ID
	sh.jobs[id] = &next
	out := next
	return &out, nil
}

// Len returns the number of records held.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.jobs)
		sh.mu.RUnlock()
	}
	return n
}

func checkTransition(prev, next *domain.GenerationJob) error {
	if prev.Status != next.Status && !prev.Status.CanTransition(next.Status) {
		return fmt.Errorf("illegal transition %s -> %s", prev.Status, next.Status)
	}
	switch next.Status {
	case domain.JobStatusSucceeded:
		if next.FinalArtifactPath == "" || next.ErrorMessage != "" {
			return fmt.Errorf("succeeded job needs an artifact and no error")
		}
	case domain.JobStatusFailed:
		if next.ErrorMessage == "" || next.FinalArtifactPath != "" {
			return fmt.Errorf("failed job needs an error and no artifact")
		}
	default:
		if next.FinalArtifactPath != "" || next.ErrorMessage != "" {
			return fmt.Errorf("non-terminal job cannot carry an artifact or error")
		}
	}
	return nil
}

var _ domain.JobRepository = (*Store)(nil)
