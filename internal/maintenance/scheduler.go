package maintenance

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is a named unit of scheduled work.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

type scheduleTicker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

type tickerFactory func(time.Duration) scheduleTicker

// StartTask runs the task on a fixed interval under the named distributed
// lock and returns a stop function. The lock spans the whole execution; a
// tick that loses the lock race is skipped.
func StartTask(ctx context.Context, logger *slog.Logger, locker Locker, task Task, interval, lockTTL time.Duration) func() {
	return startTaskWithTicker(ctx, logger, locker, task, interval, lockTTL, func(d time.Duration) scheduleTicker {
		return timeTicker{ticker: time.NewTicker(d)}
	})
}

func startTaskWithTicker(
	ctx context.Context,
	logger *slog.Logger,
	locker Locker,
	task Task,
	interval, lockTTL time.Duration,
	newTicker tickerFactory,
) func() {
	if task == nil || interval <= 0 {
		return func() {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if lockTTL <= 0 {
		lockTTL = interval
	}
	workerCtx, cancel := context.WithCancel(ctx)
	ticker := newTicker(interval)
	done := make(chan struct{})
	go func() {
		defer func() {
			ticker.Stop()
			close(done)
		}()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C():
				runLocked(workerCtx, logger, locker, task, lockTTL)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

func runLocked(ctx context.Context, logger *slog.Logger, locker Locker, task Task, lockTTL time.Duration) {
	if locker == nil {
		if err := task.Run(ctx); err != nil {
			logger.Error("scheduled task failed", "task", task.Name(), "error", err)
		}
		return
	}
	release, acquired, err := locker.Acquire(ctx, task.Name(), lockTTL)
	if err != nil {
		logger.Error("lock acquisition failed", "task", task.Name(), "error", err)
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := release(ctx); err != nil {
			logger.Warn("lock release failed", "task", task.Name(), "error", err)
		}
	}()
	if err := task.Run(ctx); err != nil {
		logger.Error("scheduled task failed", "task", task.Name(), "error", err)
	}
}
