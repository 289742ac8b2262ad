package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/uniedit/imagegen/internal/port/outbound"
)

// ErrRunnerStopped is returned when work is scheduled after Stop.
var ErrRunnerStopped = errors.New("task runner stopped")

// Config contains runner configuration.
type Config struct {
	MaxConcurrent int           `json:"max_concurrent" yaml:"max_concurrent"`
	RunTimeout    time.Duration `json:"run_timeout" yaml:"run_timeout"`
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrent: 10,
		RunTimeout:    5 * time.Minute,
	}
}

// Runner executes background work with bounded concurrency.
type Runner struct {
	mu      sync.RWMutex
	stopped bool

	logger    *zap.Logger
	config    *Config
	semaphore chan struct{}

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner creates a new task runner.
func NewRunner(logger *zap.Logger, config *Config) *Runner {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		logger:    logger.Named("task-runner"),
		config:    config,
		semaphore: make(chan struct{}, config.MaxConcurrent),
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// Go schedules fn. Work waits for a free slot before running.
func (r *Runner) Go(fn func(ctx context.Context)) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return ErrRunnerStopped
	}

	r.wg.Add(1)
	go r.run(fn)
	return nil
}

func (r *Runner) run(fn func(ctx context.Context)) {
	defer r.wg.Done()

	select {
	case <-r.baseCtx.Done():
		return
	case r.semaphore <- struct{}{}:
		defer func() { <-r.semaphore }()
	}

	ctx := r.baseCtx
	if r.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.RunTimeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("task panicked", zap.String("panic", fmt.Sprint(rec)))
		}
	}()

	fn(ctx)
}

// Stop refuses new work and waits for scheduled work to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	r.logger.Info("stopping task runner")
	r.wg.Wait()
	r.cancel()
	r.logger.Info("task runner stopped")
}

// Compile-time interface check
var _ outbound.GenerationRunnerPort = (*Runner)(nil)
