package push

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fathima-sithara/dm-service/internal/metrics"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

var (
	ErrQueueFull   = errors.New("push queue full")
	ErrQueueClosed = errors.New("push queue closed")
)

// LocalQueue buffers jobs and delivers them on a bounded worker pool.
type LocalQueue struct {
	d       Dispatcher
	jobs    chan Job
	timeout time.Duration
	log     *zap.SugaredLogger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewLocalQueue(d Dispatcher, workers, size int, timeout time.Duration, log *zap.SugaredLogger) *LocalQueue {
	q := &LocalQueue{
		d:       d,
		jobs:    make(chan Job, size),
		timeout: timeout,
		log:     log,
		done:    make(chan struct{}),
	}
	go q.run(workers)
	return q
}

func (q *LocalQueue) Submit(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		metrics.PushResults.WithLabelValues("dropped").Inc()
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (q *LocalQueue) Close() error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	<-q.done
	return nil
}

func (q *LocalQueue) run(workers int) {
	defer close(q.done)
	p := pool.New().WithMaxGoroutines(workers)
	for job := range q.jobs {
		job := job
		p.Go(func() { Deliver(q.d, job, q.timeout, q.log) })
	}
	p.Wait()
}

// Deliver runs one job and records the outcome. Failures are only logged.
func Deliver(d Dispatcher, job Job, timeout time.Duration, log *zap.SugaredLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	res, err := d.Dispatch(ctx, job.UserID, job.Notification)
	if err != nil {
		metrics.PushResults.WithLabelValues("failed").Inc()
		log.Warnw("push delivery failed", "user_id", job.UserID, "tag", job.Notification.Tag, "err", err)
		return
	}
	metrics.PushResults.WithLabelValues(res.String()).Inc()
	log.Debugw("push dispatched", "user_id", job.UserID, "result", res.String())
}
