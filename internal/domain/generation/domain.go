package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/uniedit/imagegen/internal/model"
	"github.com/uniedit/imagegen/internal/port/inbound"
	"github.com/uniedit/imagegen/internal/port/outbound"
	"github.com/uniedit/imagegen/internal/utils/requestctx"
)

// Domain implements the generation task lifecycle.
type Domain struct {
	provider  outbound.GenerationProviderPort
	store     outbound.GenerationTaskStorePort
	publisher outbound.ArtifactPublisherPort
	runner    outbound.GenerationRunnerPort
	recorder  outbound.GenerationRecorderPort
	config    *Config
	logger    *zap.Logger
}

// NewDomain creates a new generation domain.
// store, publisher, runner and recorder are optional.
func NewDomain(
	provider outbound.GenerationProviderPort,
	store outbound.GenerationTaskStorePort,
	publisher outbound.ArtifactPublisherPort,
	runner outbound.GenerationRunnerPort,
	recorder outbound.GenerationRecorderPort,
	config *Config,
	logger *zap.Logger,
) *Domain {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Domain{
		provider:  provider,
		store:     store,
		publisher: publisher,
		runner:    runner,
		recorder:  recorder,
		config:    config,
		logger:    logger.Named("generation"),
	}
}

// NewTask creates a submitted task for req and stores its first snapshot.
func (d *Domain) NewTask(ctx context.Context, req *model.GenerationRequest) *Task {
	task := newTask(req)
	d.save(ctx, task)
	return task
}

// Submit creates a task and runs it against the provider.
// The returned task is terminal unless ctx ends the provider call early,
// in which case it has failed with a transport error.
func (d *Domain) Submit(ctx context.Context, req *model.GenerationRequest, cfg model.ProviderConfig) *Task {
	task := d.NewTask(ctx, req)
	d.Run(ctx, task, cfg)
	return task
}

// Run moves a submitted task through running to a terminal state.
// Failures are attached to the task, never returned.
func (d *Domain) Run(ctx context.Context, task *Task, cfg model.ProviderConfig) {
	if task == nil || task.State() != model.TaskStateSubmitted {
		return
	}

	start := time.Now()
	task.start()
	d.save(ctx, task)

	log := d.logger.With(
		zap.String("task_id", task.ID()),
		zap.String("model", task.Options().Model),
	)
	if reqID := requestctx.RequestID(ctx); reqID != "" {
		log = log.With(zap.String("request_id", reqID))
	}

	if strings.TrimSpace(cfg.APIKey) == "" {
		d.finishFailed(ctx, log, task, NewConfigurationError("api_key is required"), start)
		return
	}

	if d.provider == nil {
		d.finishFailed(ctx, log, task, NewConfigurationError("no provider configured"), start)
		return
	}

	raw, err := d.provider.Submit(ctx, task.Prompt(), task.Options(), cfg.APIKey, Endpoint(cfg))
	if err != nil {
		d.finishFailed(ctx, log, task, Classify(err), start)
		return
	}

	artifact, err := Decode(raw, task.Options().OutputFormat, task.WantsPublicOutput())
	if err != nil {
		d.finishFailed(ctx, log, task, Classify(err), start)
		return
	}

	if artifact.Public && d.publisher != nil {
		url, err := d.publisher.Publish(ctx, task.ID(), artifact)
		if err != nil {
			log.Warn("Failed to publish artifact", zap.Error(err))
		} else {
			task.setMetadata(MetadataPublicURL, url)
		}
	}

	task.succeed(artifact)
	d.save(ctx, task)
	d.record(task, "", start)

	log.Info("Image generated",
		zap.Int("bytes", artifact.Size()),
		zap.Duration("duration", time.Since(start)),
	)
}

// Wait polls task until it is terminal or timeout elapses.
//
// A terminal task is returned immediately. On timeout the task keeps its last
// observed state and a timeout error is returned; the task may be waited on
// again. Non-positive pollInterval or timeout use the configured defaults.
func (d *Domain) Wait(ctx context.Context, task *Task, pollInterval, timeout time.Duration) (*Task, error) {
	if task == nil {
		return nil, ErrTaskNotFound
	}
	if task.IsTerminal() {
		return task, nil
	}

	if pollInterval <= 0 {
		pollInterval = d.config.PollInterval
	}
	if timeout <= 0 {
		timeout = d.config.WaitTimeout
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return task, ctx.Err()
		case <-deadline.C:
			if d.recorder != nil {
				d.recorder.RecordWaitTimeout()
			}
			d.logger.Debug("Wait timed out",
				zap.String("task_id", task.ID()),
				zap.String("state", task.State().String()),
				zap.Duration("timeout", timeout),
			)
			return task, NewTimeoutError(task.ID(), task.State())
		case <-ticker.C:
			d.poll(ctx, task)
			if task.IsTerminal() {
				return task, nil
			}
		}
	}
}

// Get loads a task from the task store.
func (d *Domain) Get(ctx context.Context, id string) (*Task, error) {
	if d.store == nil {
		return nil, ErrTaskNotFound
	}
	rec, err := d.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", ErrTaskStore, id, err)
	}
	if rec == nil {
		return nil, ErrTaskNotFound
	}
	return ReconstructTask(rec), nil
}

// Release drops a task whose terminal result has been handed to the caller.
func (d *Domain) Release(ctx context.Context, id string) error {
	if d.store == nil {
		return nil
	}
	if err := d.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: delete %s: %w", ErrTaskStore, id, err)
	}
	return nil
}

// --- Host operations ---

// Generate submits a request and waits for its terminal state.
func (d *Domain) Generate(ctx context.Context, req *model.GenerationRequest, pollInterval, timeout time.Duration) (*model.GenerationTaskRecord, error) {
	task := d.Submit(ctx, req, d.config.Provider)

	task, err := d.Wait(ctx, task, pollInterval, timeout)
	if err != nil {
		return task.Record(), err
	}

	rec := task.Record()
	if err := d.Release(ctx, task.ID()); err != nil {
		d.logger.Warn("Failed to release task", zap.String("task_id", task.ID()), zap.Error(err))
	}
	return rec, nil
}

// Enqueue registers a request and runs it on the background runner.
func (d *Domain) Enqueue(ctx context.Context, req *model.GenerationRequest) (*model.GenerationTaskRecord, error) {
	if d.runner == nil || d.store == nil {
		return nil, ErrAsyncUnavailable
	}

	task := d.NewTask(ctx, req)
	// The runner may move the task on before Go returns.
	submitted := task.Record()

	reqID := requestctx.RequestID(ctx)
	err := d.runner.Go(func(runCtx context.Context) {
		if reqID != "" {
			runCtx = requestctx.WithRequestID(runCtx, reqID)
		}
		d.Run(runCtx, task, d.config.Provider)
	})
	if err != nil {
		task.fail(NewRunnerUnavailableError(err))
		d.save(ctx, task)
		return task.Record(), fmt.Errorf("%w: %v", ErrAsyncUnavailable, err)
	}

	d.logger.Debug("Task enqueued", zap.String("task_id", task.ID()))
	return submitted, nil
}

// GetTask returns the latest snapshot of a stored task.
func (d *Domain) GetTask(ctx context.Context, id string) (*model.GenerationTaskRecord, error) {
	task, err := d.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return task.Record(), nil
}

// WaitTask waits on a stored task.
func (d *Domain) WaitTask(ctx context.Context, id string, pollInterval, timeout time.Duration) (*model.GenerationTaskRecord, error) {
	task, err := d.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	task, err = d.Wait(ctx, task, pollInterval, timeout)
	return task.Record(), err
}

// TakeArtifact hands over the artifact of a succeeded task and releases it.
func (d *Domain) TakeArtifact(ctx context.Context, id string) (*model.Artifact, error) {
	task, err := d.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.State() != model.TaskStateSucceeded || task.Artifact() == nil {
		return nil, ErrTaskNotSucceeded
	}

	artifact := task.Artifact()
	if err := d.Release(ctx, id); err != nil {
		d.logger.Warn("Failed to release task", zap.String("task_id", id), zap.Error(err))
	}
	return artifact, nil
}

// --- Helpers ---

func (d *Domain) finishFailed(ctx context.Context, log *zap.Logger, task *Task, err *Error, start time.Time) {
	task.fail(err)
	d.save(ctx, task)
	d.record(task, string(err.Kind), start)

	log.Warn("Image generation failed",
		zap.String("kind", string(err.Kind)),
		zap.Int("status_code", err.StatusCode),
		zap.Error(err),
	)
}

func (d *Domain) poll(ctx context.Context, task *Task) {
	if d.store == nil {
		return
	}
	rec, err := d.store.Get(ctx, task.ID())
	if err != nil {
		d.logger.Warn("Failed to poll task", zap.String("task_id", task.ID()), zap.Error(err))
		return
	}
	if task.observe(rec) {
		d.logger.Debug("Task state observed",
			zap.String("task_id", task.ID()),
			zap.String("state", rec.State.String()),
		)
	}
}

func (d *Domain) save(ctx context.Context, task *Task) {
	if d.store == nil {
		return
	}
	// A cancelled request context must not lose the terminal snapshot.
	if err := d.store.Save(context.WithoutCancel(ctx), task.Record()); err != nil {
		d.logger.Warn("Failed to save task", zap.String("task_id", task.ID()), zap.Error(err))
	}
}

func (d *Domain) record(task *Task, kind string, start time.Time) {
	if d.recorder == nil {
		return
	}
	d.recorder.RecordGeneration(task.Options().Model, task.State(), kind, time.Since(start))
}

// Compile-time interface check
var _ inbound.GenerationDomain = (*Domain)(nil)
