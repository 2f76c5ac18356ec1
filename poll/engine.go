// Package poll runs the periodic engines that watch the marketplace backend
// and react to advertisement changes.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrBusy is returned when a cycle is requested while another is in flight.
var ErrBusy = errors.New("poll cycle already in progress")

// State is the lifecycle phase of an Engine.
type State int32

const (
	Stopped State = iota
	Initializing
	Idle
	Polling
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Initializing:
		return "initializing"
	case Idle:
		return "idle"
	case Polling:
		return "polling"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Config parameterizes an Engine.
type Config[T any] struct {
	// Name identifies the engine in logs and metrics.
	Name string
	// Fetch returns the current items. It is retried under Retry.
	Fetch func(ctx context.Context) ([]T, error)
	// Pending reports whether an item still needs Act, given known state.
	Pending func(item T) bool
	// Act performs the side effect for one item. Errors are logged and the cycle continues.
	Act func(ctx context.Context, item T) error
	// Seed, when set, receives the first fetch on first start instead of Act.
	Seed func(items []T)
	// Key names an item in logs.
	Key func(item T) string

	Retry   RetryPolicy
	Logger  *slog.Logger
	Metrics *Metrics
}

// Engine runs fetch-diff-act cycles on a schedule. At most one cycle runs at a time.
type Engine[T any] struct {
	cfg Config[T]

	busy        atomic.Bool
	phase       atomic.Int32 // Idle, Initializing or Polling
	initialized bool         // guarded by cycleMu
	cycleMu     sync.Mutex   // held for the duration of a cycle

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// New creates a stopped engine.
func New[T any](cfg Config[T]) *Engine[T] {
	if cfg.Key == nil {
		cfg.Key = func(item T) string { return fmt.Sprint(item) }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	e := &Engine[T]{cfg: cfg}
	e.phase.Store(int32(Idle))
	return e
}

// Name returns the engine's configured name.
func (e *Engine[T]) Name() string { return e.cfg.Name }

// State reports the current lifecycle phase.
func (e *Engine[T]) State() State {
	if p := State(e.phase.Load()); p != Idle {
		return p
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return Stopped
	}
	return Idle
}

// Start triggers an immediate cycle and then one every interval until Stop or
// ctx is done. Calling Start on a running engine only logs.
func (e *Engine[T]) Start(ctx context.Context, interval time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.cfg.Logger.Info("Poll engine already running", "engine", e.cfg.Name)
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	e.running = true
	e.stop = make(chan struct{})

	e.cfg.Logger.Info("Poll engine starting", "engine", e.cfg.Name, "interval", interval.String())

	// Cycles outlive Stop and ctx cancellation; only scheduling is cancelled.
	cycleCtx := context.WithoutCancel(ctx)
	go e.loop(ctx, cycleCtx, interval, e.stop)
}

// Stop cancels the schedule. An in-flight cycle runs to completion. Idempotent.
func (e *Engine[T]) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked(e.stop)
}

func (e *Engine[T]) stopLocked(stop chan struct{}) {
	if !e.running || e.stop != stop {
		return
	}
	close(e.stop)
	e.running = false
	e.cfg.Logger.Info("Poll engine stopped", "engine", e.cfg.Name)
}

// Wait blocks until no cycle is in flight or ctx is done.
func (e *Engine[T]) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.cycleMu.Lock()
		defer e.cycleMu.Unlock()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine[T]) loop(ctx, cycleCtx context.Context, interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	go e.tick(cycleCtx)

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			e.mu.Lock()
			e.stopLocked(stop)
			e.mu.Unlock()
			return
		case <-ticker.C:
			go e.tick(cycleCtx)
		}
	}
}

// tick runs one scheduled cycle, logging instead of returning errors or panicking.
func (e *Engine[T]) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.cfg.Metrics.cycle(e.cfg.Name, "failed")
			e.cfg.Logger.Error("Poll cycle panicked, waiting for next tick", "engine", e.cfg.Name, "panic", r)
		}
	}()
	err := e.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrBusy):
		e.cfg.Logger.Warn("Skipping tick, previous cycle still running", "engine", e.cfg.Name)
	case err != nil:
		e.cfg.Logger.Error("Poll cycle failed, waiting for next tick", "engine", e.cfg.Name, "error", err)
	}
}

// acquire claims the engine for one cycle. The returned func releases it.
func (e *Engine[T]) acquire() (func(), bool) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, false
	}
	e.cycleMu.Lock()
	return func() {
		e.phase.Store(int32(Idle))
		e.cycleMu.Unlock()
		e.busy.Store(false)
	}, true
}

// RunOnce runs initialization (first time only) and one cycle, unless a
// cycle is already in flight, in which case it returns ErrBusy.
func (e *Engine[T]) RunOnce(ctx context.Context) error {
	release, ok := e.acquire()
	if !ok {
		e.cfg.Metrics.cycle(e.cfg.Name, "skipped")
		return ErrBusy
	}
	defer release()

	logger := e.cfg.Logger.With("engine", e.cfg.Name, "cycle_id", uuid.NewString())

	if !e.initialized {
		e.initialize(ctx, logger)
		e.initialized = true
	}

	e.phase.Store(int32(Polling))
	if err := e.cycle(ctx, logger); err != nil {
		e.cfg.Metrics.cycle(e.cfg.Name, "failed")
		return err
	}
	e.cfg.Metrics.cycle(e.cfg.Name, "ok")
	return nil
}

// Initialize performs first-start seeding without running a cycle.
// It is a no-op after the first call or for engines without Seed.
func (e *Engine[T]) Initialize(ctx context.Context) error {
	release, ok := e.acquire()
	if !ok {
		return ErrBusy
	}
	defer release()

	if !e.initialized {
		e.initialize(ctx, e.cfg.Logger.With("engine", e.cfg.Name))
		e.initialized = true
	}
	return nil
}

func (e *Engine[T]) initialize(ctx context.Context, logger *slog.Logger) {
	if e.cfg.Seed == nil {
		return
	}
	e.phase.Store(int32(Initializing))

	items, err := Retry(ctx, e.cfg.Retry, logger, e.cfg.Name+".seed", e.cfg.Fetch)
	if err != nil {
		// Degraded start: every item will look new on the next cycle.
		logger.Error("Seed fetch failed after retries, starting with empty known set", "error", err)
		return
	}
	e.cfg.Seed(items)
	logger.Info("Known state seeded", "items", len(items))
}

func (e *Engine[T]) cycle(ctx context.Context, logger *slog.Logger) error {
	startTime := time.Now()

	items, err := Retry(ctx, e.cfg.Retry, logger, e.cfg.Name+".fetch", e.cfg.Fetch)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	var acted, failed int
	for _, item := range items {
		if !e.cfg.Pending(item) {
			continue
		}
		key := e.cfg.Key(item)
		if err := e.cfg.Act(ctx, item); err != nil {
			failed++
			e.cfg.Metrics.item(e.cfg.Name, "failed")
			logger.Warn("Item processing failed", "item", key, "error", err)
			continue
		}
		acted++
		e.cfg.Metrics.item(e.cfg.Name, "ok")
		logger.Info("Item processed", "item", key)
	}

	logger.Info("Poll cycle completed",
		"fetched", len(items),
		"acted", acted,
		"failed", failed,
		"duration_ms", time.Since(startTime).Milliseconds())
	return nil
}
