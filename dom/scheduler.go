package dom

import (
	"context"
	"sync"
)

// Scheduler runs tasks later on the goroutine that owns the document.
type Scheduler interface {
	Schedule(task func())
}

// Queue is a manually drained Scheduler. Tests and offline recordings drive
// it with RunPending.
type Queue struct {
	mu    sync.Mutex
	tasks []func()
}

func (q *Queue) Schedule(task func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
}

// RunPending runs queued tasks, including tasks they schedule, until the
// queue is empty. It returns the number of tasks run.
func (q *Queue) RunPending() int {
	ran := 0
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return ran
		}
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()
		task()
		ran++
	}
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Loop is a Scheduler backed by a goroutine running Run. Other goroutines
// touch the document through Do.
type Loop struct {
	mu    sync.Mutex
	tasks []func()
	wake  chan struct{}
}

// NewLoop creates an idle loop. Call Run to start processing.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

func (l *Loop) Schedule(task func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, task)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run processes tasks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.mu.Lock()
		tasks := l.tasks
		l.tasks = nil
		l.mu.Unlock()

		for _, t := range tasks {
			t()
		}
		if len(tasks) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Do runs fn on the loop and waits for it to return.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Schedule(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
