package outbound

import (
	"context"
	"time"

	"github.com/uniedit/imagegen/internal/model"
)

// GenerationProviderPort defines a remote image-synthesis provider.
type GenerationProviderPort interface {
	// Submit issues one generation call and returns the unclassified response.
	// A non-nil error means the provider could not be reached; any HTTP status
	// is returned as a response.
	Submit(ctx context.Context, prompt string, opts model.OptionSet, apiKey, endpoint string) (*model.RawProviderResponse, error)
}

// GenerationTaskStorePort defines where task snapshots live between polls.
type GenerationTaskStorePort interface {
	// Save stores or replaces a task snapshot.
	Save(ctx context.Context, rec *model.GenerationTaskRecord) error

	// Get returns a task snapshot, or nil if it does not exist.
	Get(ctx context.Context, id string) (*model.GenerationTaskRecord, error)

	// Delete removes a task snapshot.
	Delete(ctx context.Context, id string) error
}

// ArtifactPublisherPort defines public storage for generated artifacts.
type ArtifactPublisherPort interface {
	// Publish uploads an artifact and returns its public URL.
	Publish(ctx context.Context, taskID string, artifact *model.Artifact) (string, error)
}

// GenerationRunnerPort runs generation work in the background.
type GenerationRunnerPort interface {
	// Go schedules fn. It returns an error if the runner no longer accepts work.
	Go(fn func(ctx context.Context)) error
}

// GenerationRecorderPort records generation outcomes.
type GenerationRecorderPort interface {
	// RecordGeneration records one finished task.
	RecordGeneration(modelID string, state model.TaskState, errorKind string, duration time.Duration)

	// RecordWaitTimeout records a wait that ran out of budget.
	RecordWaitTimeout()
}
