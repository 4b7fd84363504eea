// Package jobs provides the bounded background-job queue that batch tasks
// run on: a fixed worker pool draining a fixed-capacity channel. A dequeued
// job always runs to completion; there is no cancellation.
package jobs

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrQueueFull   = errors.New("job queue is full")
	ErrQueueClosed = errors.New("job queue is closed")
)

type Job func(ctx context.Context)

type Queue struct {
	jobs    chan Job
	workers int
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewQueue(size, workers int, logger *zap.Logger) *Queue {
	return &Queue{
		jobs:    make(chan Job, size),
		workers: workers,
		logger:  logger,
	}
}

// Start launches the worker pool. ctx is handed to jobs for their outbound
// calls; it does not cancel a job that has already been dequeued.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func(worker int) {
			defer q.wg.Done()
			for job := range q.jobs {
				job(ctx)
			}
			q.logger.Debug("Worker stopped", zap.Int("worker", worker))
		}(i)
	}
}

// Enqueue schedules a job without blocking. A full queue is reported to the
// caller before any work is accepted.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes intake, drains queued jobs, and waits for the workers.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
}
