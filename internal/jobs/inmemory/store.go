package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/mcardoso/agronota/internal/jobs"
)

// Store keeps job state in memory for the status endpoint. Safe for
// concurrent use.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.ReindexJob
}

// NewStore creates an empty in-memory job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*jobs.ReindexJob)}
}

// SaveJob stores a copy of the job, keyed by its ID.
func (s *Store) SaveJob(_ context.Context, job *jobs.ReindexJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy
	return nil
}

// GetJob returns a copy of the job or an error when unknown.
func (s *Store) GetJob(_ context.Context, jobID string) (*jobs.ReindexJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs returns copies of the jobs matching the filter.
func (s *Store) ListJobs(_ context.Context, filter jobs.JobFilter) ([]*jobs.ReindexJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.ReindexJob
	for _, job := range s.jobs {
		if filter.MovementID != 0 && job.MovementID != filter.MovementID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		jobCopy := *job
		result = append(result, &jobCopy)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.ReindexJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

var _ jobs.JobStore = (*Store)(nil)
