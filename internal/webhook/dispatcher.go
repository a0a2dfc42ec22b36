package webhook

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/email-validator/internal/metrics"
	"github.com/ignite/email-validator/internal/pkg/logger"
)

// DefaultTaskTimeout bounds a single detached task.
const DefaultTaskTimeout = 60 * time.Second

// Task is a unit of detached work. It must honour ctx.
type Task func(ctx context.Context) error

// Dispatcher runs tasks in the background, detached from the request that
// submitted them. Each task gets its own timeout and panic boundary.
// Close stops intake and waits for running tasks.
type Dispatcher struct {
	timeout time.Duration
	metrics *metrics.Metrics

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	inFlight atomic.Int64
	failures atomic.Int64

	// base is cancelled when Close gives up waiting.
	base   context.Context
	cancel context.CancelFunc
}

// NewDispatcher returns a dispatcher applying timeout to every task.
func NewDispatcher(timeout time.Duration, m *metrics.Metrics) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	base, cancel := context.WithCancel(context.Background())
	return &Dispatcher{timeout: timeout, metrics: m, base: base, cancel: cancel}
}

// Submit starts task in a new goroutine. It returns ErrShuttingDown once
// Close has been called.
func (d *Dispatcher) Submit(name string, task Task) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrShuttingDown
	}
	d.wg.Add(1)
	d.mu.Unlock()

	d.inFlight.Add(1)
	d.metrics.TaskStarted()
	go d.run(name, task)
	return nil
}

func (d *Dispatcher) run(name string, task Task) {
	start := time.Now()
	defer func() {
		d.inFlight.Add(-1)
		d.metrics.TaskFinished()
		d.wg.Done()
	}()

	ctx, cancel := context.WithTimeout(d.base, d.timeout)
	defer cancel()

	if err := d.safeRun(ctx, task); err != nil {
		d.failures.Add(1)
		logger.Error("detached task failed", "task", name, "error", err, "duration", time.Since(start).String())
		return
	}
	logger.Debug("detached task finished", "task", name, "duration", time.Since(start).String())
}

func (d *Dispatcher) safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task(ctx)
}

// InFlight returns the number of running tasks.
func (d *Dispatcher) InFlight() int64 { return d.inFlight.Load() }

// Failures returns the number of tasks that returned an error or panicked.
func (d *Dispatcher) Failures() int64 { return d.failures.Load() }

// Close stops accepting tasks and waits for running ones. If ctx expires
// first, running tasks are cancelled and ctx's error is returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		logger.Warn("dispatcher drain timed out", "in_flight", d.InFlight())
		d.cancel()
		return ctx.Err()
	}
}
