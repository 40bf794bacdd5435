package chat

import (
	"context"
	"fmt"
	"sync"

	apperrors "dibs-assistant/internal/common/errors"
	"dibs-assistant/internal/common/logger"
	"dibs-assistant/internal/common/metrics"
	"dibs-assistant/internal/models"
)

// Task is a detached unit of persistence work.
type Task struct {
	Name string
	Role models.Role
	Run  func(ctx context.Context) error
}

// ErrorSink receives every task failure, including tasks dropped before they
// ran. It is called from worker goroutines and from Submit.
type ErrorSink func(task Task, err error)

// Queue runs persistence tasks on a fixed set of workers, detached from the
// request that submitted them. Submit never blocks and a task's failure or
// panic only ever reaches the sink.
type Queue struct {
	tasks  chan Task
	sink   ErrorSink
	logger logger.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueue starts workers goroutines reading from a buffer of size tasks.
// A nil sink logs failures.
func NewQueue(workers, size int, sink ErrorSink, log logger.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	if size < 0 {
		size = 0
	}
	q := &Queue{
		tasks:  make(chan Task, size),
		sink:   sink,
		logger: log,
	}
	if q.sink == nil {
		q.sink = q.logFailure
	}

	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker()
	}
	return q
}

// Submit enqueues t and reports whether it was accepted. A full or closed
// queue drops the task and reports it to the sink.
func (q *Queue) Submit(t Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.drop(t)
		return false
	}
	select {
	case q.tasks <- t:
		return true
	default:
		q.drop(t)
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish or for ctx
// to expire.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("persistence queue drain: %w", ctx.Err())
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for t := range q.tasks {
		q.run(t)
	}
}

func (q *Queue) run(t Task) {
	defer func() {
		if r := recover(); r != nil {
			q.fail(t, apperrors.NewInternalError(fmt.Errorf("panic in %s: %v", t.Name, r)))
		}
	}()

	if err := t.Run(context.Background()); err != nil {
		q.fail(t, err)
	}
}

func (q *Queue) fail(t Task, err error) {
	metrics.ChatPersistenceFailures.WithLabelValues(string(t.Role)).Inc()
	q.sink(t, err)
}

func (q *Queue) drop(t Task) {
	metrics.ChatPersistenceDropped.Inc()
	q.sink(t, apperrors.NewPersistenceQueueFullError(t.Name))
}

func (q *Queue) logFailure(t Task, err error) {
	std := apperrors.AsStandard(err)
	q.logger.Warn("persistence task failed", map[string]interface{}{
		"task":      t.Name,
		"role":      string(t.Role),
		"errorCode": string(std.Code),
		"error":     err.Error(),
	})
}
