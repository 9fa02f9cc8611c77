package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/steward-ai/steward/internal/observability"
)

// Task is one background lifecycle unit of work.
type Task struct {
	Name string
	Run  func(ctx context.Context)
}

// TaskQueue runs lifecycle tasks on a single background worker. The queue is
// bounded; when full, new tasks are dropped and counted rather than blocking
// the turn loop.
type TaskQueue struct {
	tasks   chan Task
	logger  *slog.Logger
	metrics *observability.Metrics

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewTaskQueue starts a queue with the given capacity. A capacity below one
// falls back to 64.
func NewTaskQueue(capacity int, logger *slog.Logger, metrics *observability.Metrics) *TaskQueue {
	if capacity < 1 {
		capacity = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	q := &TaskQueue{
		tasks:   make(chan Task, capacity),
		logger:  logger.With("component", "memory.queue"),
		metrics: metrics,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go q.worker()
	return q
}

// Enqueue submits a task without blocking. It reports whether the task was
// accepted; a full queue drops the task.
func (q *TaskQueue) Enqueue(task Task) bool {
	select {
	case <-q.stop:
		return false
	default:
	}
	select {
	case q.tasks <- task:
		return true
	default:
		q.logger.Warn("task queue full, dropping task", "task", task.Name)
		if q.metrics != nil {
			q.metrics.BackgroundTasksDropped.Inc()
		}
		return false
	}
}

// Close stops the worker after draining queued tasks.
func (q *TaskQueue) Close() {
	q.stopOnce.Do(func() { close(q.stop) })
	<-q.done
}

func (q *TaskQueue) worker() {
	defer close(q.done)
	for {
		select {
		case task := <-q.tasks:
			q.run(task)
		case <-q.stop:
			// Drain what is already queued, then exit.
			for {
				select {
				case task := <-q.tasks:
					q.run(task)
				default:
					return
				}
			}
		}
	}
}

func (q *TaskQueue) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("background task panicked", "task", task.Name, "panic", r)
		}
	}()
	task.Run(context.Background())
}
