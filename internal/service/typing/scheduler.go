// Package typing simulates the assistant "thinking" before it answers: a reply is
// a delayed task that can be cancelled before it fires.
package typing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs delayed tasks against a Clock.
type Scheduler struct {
	clock  Clock
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler; a nil clock means SystemClock.
func NewScheduler(clock Clock, logger *zap.Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{clock: clock, logger: logger}
}

// Task is a pending delayed call.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	fired  atomic.Bool
}

// Cancel stops the task. If the delay has not elapsed yet fn never runs.
func (t *Task) Cancel() { t.cancel() }

// Done is closed once the task either ran or was cancelled.
func (t *Task) Done() <-chan struct{} { return t.done }

// Fired reports whether fn was invoked.
func (t *Task) Fired() bool { return t.fired.Load() }

// Schedule 在延迟 d 之后调用 fn；父 ctx 取消或调用 Task.Cancel 都会放弃执行。
func (s *Scheduler) Schedule(parent context.Context, d time.Duration, fn func(ctx context.Context)) *Task {
	ctx, cancel := context.WithCancel(parent)
	task := &Task{cancel: cancel, done: make(chan struct{})}
	timer := s.clock.NewTimer(d)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(task.done)
		defer cancel()

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Debug("delayed task cancelled", zap.Duration("delay", d))
			return
		case <-timer.C():
		}

		if ctx.Err() != nil {
			return
		}
		task.fired.Store(true)
		fn(ctx)
	}()

	return task
}

// Wait blocks until every scheduled task has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
