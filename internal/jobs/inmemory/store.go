package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/akuvvet/Automatisierung/internal/jobs"
)

// Store keeps reconciliation jobs in memory for the lifetime of the API
// process. Callers always get copies.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.ReconcileJob
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*jobs.ReconcileJob),
	}
}

// SaveJob stores a copy of job, replacing any earlier state of the same id.
func (s *Store) SaveJob(ctx context.Context, job *jobs.ReconcileJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.ReconcileJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs returns jobs newest first, filtered by status and paginated.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ReconcileJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*jobs.ReconcileJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		jobCopy := *job
		result = append(result, &jobCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].JobID < result[j].JobID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.ReconcileJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// UpdateJobStatus sets the status of a job; an empty errorMsg keeps the
// previous error text.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	return nil
}

var _ jobs.JobStore = (*Store)(nil)
