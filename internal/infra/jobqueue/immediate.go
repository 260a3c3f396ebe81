package jobqueue

import (
	"context"
	"errors"
	"sync"

	"github.com/yanqian/zephyre/internal/domain/session"
)

// ErrNoHandler is returned by Enqueue before a consumer has been attached.
var ErrNoHandler = errors.New("job queue has no handler")

// Handler executes a job.
type Handler func(ctx context.Context, name string, payload map[string]any)

// HandlerQueue is a session.JobQueue whose consumer is attached after construction.
type HandlerQueue interface {
	session.JobQueue
	SetHandler(handler Handler)
	Close()
}

// ImmediateQueue runs each job on its own goroutine in this process.
type ImmediateQueue struct {
	mu      sync.RWMutex
	handler Handler
	wg      sync.WaitGroup
}

// NewImmediateQueue constructs the queue.
func NewImmediateQueue() *ImmediateQueue {
	return &ImmediateQueue{}
}

// SetHandler replaces the handler used for queued jobs.
func (q *ImmediateQueue) SetHandler(handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = handler
}

// Enqueue invokes the handler asynchronously, detached from the caller's cancellation.
func (q *ImmediateQueue) Enqueue(ctx context.Context, name string, payload any) error {
	typed, ok := payload.(map[string]any)
	if !ok {
		typed = map[string]any{}
	}
	q.mu.RLock()
	handler := q.handler
	q.mu.RUnlock()
	if handler == nil {
		return ErrNoHandler
	}
	jobCtx := context.WithoutCancel(ctx)
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		handler(jobCtx, name, typed)
	}()
	return nil
}

// Close waits for in-flight jobs.
func (q *ImmediateQueue) Close() {
	q.wg.Wait()
}

var _ HandlerQueue = (*ImmediateQueue)(nil)
