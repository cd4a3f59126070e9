package services

import (
	"context"
	"sync"
	"time"

	"github.com/skillmatch/skillmatch-backend/internal/logger"
)

// TaskRunner executes deferred work (cache write-throughs, embedding
// regeneration) after the triggering response has been sent. Tasks get a
// context detached from the request so they survive the request lifecycle;
// Drain blocks shutdown until in-flight tasks finish.
type TaskRunner interface {
	Submit(name string, fn func(ctx context.Context))
	Start(ctx context.Context)
	Drain(timeout time.Duration)
}

type deferredTask struct {
	name string
	fn   func(ctx context.Context)
}

type taskRunner struct {
	log     *logger.Logger
	queue   chan deferredTask
	workers int

	startOnce sync.Once
	wg        sync.WaitGroup
	pending   sync.WaitGroup
}

func NewTaskRunner(baseLog *logger.Logger, workers, queueSize int) TaskRunner {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &taskRunner{
		log:     baseLog.With("service", "TaskRunner"),
		queue:   make(chan deferredTask, queueSize),
		workers: workers,
	}
}

func (t *taskRunner) Start(ctx context.Context) {
	t.startOnce.Do(func() {
		for i := 0; i < t.workers; i++ {
			t.wg.Add(1)
			go t.loop(ctx)
		}
		t.log.Info("Task runner started", "workers", t.workers)
	})
}

func (t *taskRunner) loop(ctx context.Context) {
	defer t.wg.Done()
	for {
		select {
		case <-ctx.Done():
			// Drain what is already queued before exiting.
			for {
				select {
				case task := <-t.queue:
					t.run(task)
				default:
					return
				}
			}
		case task := <-t.queue:
			t.run(task)
		}
	}
}

func (t *taskRunner) run(task deferredTask) {
	defer t.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("Deferred task panicked", "task", task.name, "panic", r)
		}
	}()

	// Deferred work gets its own deadline, not the request's.
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	start := time.Now()
	task.fn(ctx)
	t.log.Debug("Deferred task complete", "task", task.name, "elapsed", time.Since(start).String())
}

func (t *taskRunner) Submit(name string, fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	t.pending.Add(1)
	select {
	case t.queue <- deferredTask{name: name, fn: fn}:
	default:
		// Queue full: run inline rather than drop. Deferred work must
		// complete even under load; the caller eats the latency.
		t.log.Warn("Task queue full, running inline", "task", name)
		t.run(deferredTask{name: name, fn: fn})
	}
}

func (t *taskRunner) Drain(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		t.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.log.Warn("Task runner drain timed out", "timeout", timeout.String())
	}
}
