// Package scheduler implements the dispatch queue that serializes access to
// the upstream collection API. Every upstream call is admitted through a
// single Dispatcher, which enforces a concurrency ceiling and an
// at-most-N-per-window rate ceiling simultaneously.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Errors returned by the dispatcher.
var (
	// ErrTimeout is returned when a task exceeds the dispatcher's hard
	// execution timeout.
	ErrTimeout = errors.New("dispatch timeout")

	// ErrClosed is returned when submitting to a closed dispatcher.
	ErrClosed = errors.New("dispatcher closed")
)

// Func is the unit of work admitted by the dispatcher. The passed context
// is cancelled when the task's execution timeout elapses.
type Func func(ctx context.Context) (json.RawMessage, error)

// Config holds the dispatcher configuration. All values are fixed at
// construction.
type Config struct {
	// Concurrency is the maximum number of tasks executing simultaneously.
	Concurrency int

	// IntervalCap is the maximum number of tasks dispatched per window.
	IntervalCap int

	// Interval is the window length. The window resets at fixed
	// boundaries, not per request.
	Interval time.Duration

	// Timeout is the hard per-task execution bound. It should be longer
	// than the upstream client's own network timeout.
	Timeout time.Duration

	// QueueSize bounds the admission queue. Submit blocks when full.
	QueueSize int
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency: 4,
		IntervalCap: 40,
		Interval:    1 * time.Second,
		Timeout:     15 * time.Second,
		QueueSize:   256,
	}
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1 (got %d)", c.Concurrency)
	}
	if c.IntervalCap < 1 {
		return fmt.Errorf("interval_cap must be >= 1 (got %d)", c.IntervalCap)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive (got %v)", c.Interval)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive (got %v)", c.Timeout)
	}
	return nil
}

type result struct {
	payload json.RawMessage
	err     error
}

type task struct {
	id         uuid.UUID
	fn         Func
	enqueuedAt time.Time
	result     chan result
}

// Dispatcher admits tasks in FIFO order, runs at most Concurrency of them
// at once, and begins no more than IntervalCap of them within any window.
type Dispatcher struct {
	cfg    Config
	logger zerolog.Logger

	queue chan *task
	slots chan struct{}
	done  chan struct{}

	// Rolling window state, mutated only by the admission loop.
	mu          sync.Mutex
	windowStart time.Time
	count       int

	closeOnce sync.Once
}

// New creates a dispatcher and starts its admission loop.
func New(cfg Config, logger zerolog.Logger) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler config: %w", err)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}

	d := &Dispatcher{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan *task, cfg.QueueSize),
		slots:  make(chan struct{}, cfg.Concurrency),
		done:   make(chan struct{}),
	}
	go d.admissionLoop()

	return d, nil
}

// Submit enqueues fn and blocks until it resolves, the caller's context is
// cancelled, or the dispatcher closes. Tasks begin execution in submission
// order, subject to a free concurrency slot and window capacity.
func (d *Dispatcher) Submit(ctx context.Context, fn Func) (json.RawMessage, error) {
	t := &task{
		id:         uuid.New(),
		fn:         fn,
		enqueuedAt: time.Now(),
		result:     make(chan result, 1),
	}

	select {
	case d.queue <- t:
		queueDepth.Set(float64(len(d.queue)))
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.done:
		return nil, ErrClosed
	}

	select {
	case res := <-t.result:
		return res.payload, res.err
	case <-ctx.Done():
		// The task may still run to completion; its result is dropped.
		return nil, ctx.Err()
	case <-d.done:
		return nil, ErrClosed
	}
}

// Close stops the admission loop. Tasks already executing run to
// completion; queued tasks and blocked Submit calls resolve with ErrClosed.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.done)
	})
}

// admissionLoop is the single consumer of the queue. Serializing admission
// here keeps begin-execution order strictly FIFO.
func (d *Dispatcher) admissionLoop() {
	for {
		select {
		case <-d.done:
			return
		case t := <-d.queue:
			queueDepth.Set(float64(len(d.queue)))

			// Concurrency slot first, then window capacity: a task
			// should not consume window budget while it has no slot
			// to run in.
			select {
			case d.slots <- struct{}{}:
			case <-d.done:
				return
			}
			if !d.admitWindow() {
				<-d.slots
				return
			}

			queueWait.Observe(time.Since(t.enqueuedAt).Seconds())
			dispatchedTotal.Inc()
			go d.run(t)
		}
	}
}

// admitWindow blocks until the current window has dispatch capacity.
// Returns false if the dispatcher closed while waiting.
func (d *Dispatcher) admitWindow() bool {
	for {
		d.mu.Lock()
		now := time.Now()
		if now.Sub(d.windowStart) >= d.cfg.Interval {
			d.windowStart = now
			d.count = 0
		}
		if d.count < d.cfg.IntervalCap {
			d.count++
			d.mu.Unlock()
			return true
		}
		wait := d.windowStart.Add(d.cfg.Interval).Sub(now)
		d.mu.Unlock()

		throttledTotal.Inc()
		d.logger.Debug().
			Dur("wait", wait).
			Int("interval_cap", d.cfg.IntervalCap).
			Msg("Window full, delaying dispatch")

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-d.done:
			timer.Stop()
			return false
		}
	}
}

// run executes one admitted task under the hard timeout and releases the
// concurrency slot when the task resolves, even if its work is still
// in flight.
func (d *Dispatcher) run(t *task) {
	defer func() { <-d.slots }()

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	inner := make(chan result, 1)
	go func() {
		payload, err := t.fn(ctx)
		inner <- result{payload: payload, err: err}
	}()

	select {
	case res := <-inner:
		t.result <- res
	case <-ctx.Done():
		timeoutsTotal.Inc()
		d.logger.Warn().
			Str("task_id", t.id.String()).
			Dur("timeout", d.cfg.Timeout).
			Msg("Task exceeded dispatch timeout")
		t.result <- result{err: fmt.Errorf("%w after %v", ErrTimeout, d.cfg.Timeout)}
	}
}
