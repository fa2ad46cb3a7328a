package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcardoso/agronota/internal/jobs"
)

func TestPublishAssignsDefaults(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, store)
	defer q.Close()

	job := &jobs.ReindexJob{MovementID: 7}
	require.NoError(t, q.PublishReindex(context.Background(), job))

	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, jobs.JobStatusPending, job.Status)
	assert.Equal(t, 3, job.MaxRetries)
	assert.False(t, job.CreatedAt.IsZero())

	saved, err := store.GetJob(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, uint(7), saved.MovementID)
}

func TestQueueProcessesJobs(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, store)
	defer q.Close()

	var mu sync.Mutex
	seen := make(map[uint]bool)
	done := make(chan struct{}, 3)
	require.NoError(t, q.Start(context.Background(), func(_ context.Context, j jobs.Job) error {
		rj := j.(*jobs.ReindexJob)
		mu.Lock()
		seen[rj.MovementID] = true
		mu.Unlock()
		done <- struct{}{}
		return nil
	}))

	for _, id := range []uint{1, 2, 3} {
		require.NoError(t, q.PublishReindex(context.Background(), &jobs.ReindexJob{MovementID: id}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job not processed in time")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 3)
}

func TestFailedJobEndsUpFailedAfterRetries(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, store)
	defer q.Close()

	calls := make(chan struct{}, 8)
	require.NoError(t, q.Start(context.Background(), func(context.Context, jobs.Job) error {
		calls <- struct{}{}
		return errors.New("embed failed")
	}))

	job := &jobs.ReindexJob{MovementID: 1, MaxRetries: 1}
	require.NoError(t, q.PublishReindex(context.Background(), job))

	// Initial attempt plus one retry after ~1s backoff.
	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(5 * time.Second):
			t.Fatal("expected job attempt")
		}
	}

	require.Eventually(t, func() bool {
		saved, err := store.GetJob(context.Background(), job.JobID)
		return err == nil && saved.Status == jobs.JobStatusFailed
	}, 3*time.Second, 50*time.Millisecond)

	saved, err := store.GetJob(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, "embed failed", saved.Error)
}

func TestPublishAfterStop(t *testing.T) {
	q := NewQueue(1, NewStore())
	require.NoError(t, q.Stop(context.Background()))

	err := q.PublishReindex(context.Background(), &jobs.ReindexJob{MovementID: 1})
	assert.Error(t, err)
}

func TestListJobsFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.SaveJob(ctx, &jobs.ReindexJob{JobID: "a", MovementID: 1, Status: jobs.JobStatusCompleted}))
	require.NoError(t, store.SaveJob(ctx, &jobs.ReindexJob{JobID: "b", MovementID: 2, Status: jobs.JobStatusFailed}))
	require.NoError(t, store.SaveJob(ctx, &jobs.ReindexJob{JobID: "c", MovementID: 1, Status: jobs.JobStatusFailed}))

	byMovement, err := store.ListJobs(ctx, jobs.JobFilter{MovementID: 1})
	require.NoError(t, err)
	assert.Len(t, byMovement, 2)

	failed, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusFailed})
	require.NoError(t, err)
	assert.Len(t, failed, 2)
}
