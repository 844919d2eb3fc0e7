package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestQueueProcessesAndStopsCleanly(t *testing.T) {
	defer goleak.VerifyNone(t)

	var handled int32
	done := make(chan struct{}, 3)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&handled, 1)
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "job", Type: "noop"}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job not processed")
		}
	}
	q.Stop()

	assert.Equal(t, int32(3), atomic.LoadInt32(&handled))
	stats := q.Stats()
	assert.False(t, stats.Running)
	assert.Equal(t, uint64(3), stats.Processed)
}

func TestQueueRetriesWithBackoffAndReportsOutcomes(t *testing.T) {
	defer goleak.VerifyNone(t)

	var attempts int32
	var mu sync.Mutex
	var outcomes []string
	done := make(chan struct{})
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{
		Workers:    1,
		MaxRetries: 3,
		RetryDelay: 5 * time.Millisecond,
		Observe: func(queue, outcome string) {
			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
			if outcome == OutcomeDone {
				close(done)
			}
		},
	})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "r1", Type: "flaky"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	q.Stop()

	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{OutcomeRetry, OutcomeRetry, OutcomeDone}, outcomes)
}

func TestQueueHandsExhaustedJobsToOnDead(t *testing.T) {
	defer goleak.VerifyNone(t)

	dead := make(chan Job, 1)
	q := NewQueue("dead", func(context.Context, Job) error {
		return errors.New("permanent")
	}, QueueConfig{
		Workers:    1,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		OnDead:     func(job Job, err error) { dead <- job },
	})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "d1", Type: "broken", Key: "k"}))
	select {
	case job := <-dead:
		assert.Equal(t, "d1", job.ID)
		assert.Equal(t, 2, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job never reached OnDead")
	}
	q.Stop()

	assert.Equal(t, uint64(1), q.Stats().Dead)
}

func TestQueueCoalescesPendingKeys(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	q := NewQueue("dedup", func(ctx context.Context, job Job) error {
		started <- struct{}{}
		<-release
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())

	require.NoError(t, q.TryEnqueue(Job{ID: "a", Key: "local:1.jpg"}))
	<-started
	assert.ErrorIs(t, q.TryEnqueue(Job{ID: "b", Key: "local:1.jpg"}), ErrDuplicateJob)
	require.NoError(t, q.TryEnqueue(Job{ID: "c", Key: "local:2.jpg"}))

	close(release)
	q.Stop()
}

func TestTryEnqueueFailsWhenBufferFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewQueue("full", func(ctx context.Context, job Job) error {
		started <- struct{}{}
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())

	require.NoError(t, q.TryEnqueue(Job{ID: "1"}))
	<-started
	require.NoError(t, q.TryEnqueue(Job{ID: "2"}))
	assert.ErrorIs(t, q.TryEnqueue(Job{ID: "3"}), ErrQueueFull)

	close(block)
	q.Stop()
}

func TestEnqueueBeforeStartFails(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})

	assert.ErrorIs(t, q.Enqueue(Job{ID: "x"}), ErrNotRunning)
	assert.ErrorIs(t, q.TryEnqueue(Job{ID: "x"}), ErrNotRunning)
}

func TestBackoffDoublesUpToCap(t *testing.T) {
	q := NewQueue("backoff", nil, QueueConfig{RetryDelay: time.Second, MaxRetryDelay: 5 * time.Second})

	assert.Equal(t, time.Second, q.backoff(1))
	assert.Equal(t, 2*time.Second, q.backoff(2))
	assert.Equal(t, 4*time.Second, q.backoff(3))
	assert.Equal(t, 5*time.Second, q.backoff(4))
}
