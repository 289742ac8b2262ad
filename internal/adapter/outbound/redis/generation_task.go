package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/uniedit/imagegen/internal/model"
	"github.com/uniedit/imagegen/internal/port/outbound"
)

const (
	generationTaskKeyPrefix  = "generation:task:"
	defaultGenerationTaskTTL = time.Hour
)

// GenerationTaskAdapter implements GenerationTaskStorePort.
// Snapshots expire after the TTL so abandoned tasks do not accumulate.
type GenerationTaskAdapter struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewGenerationTaskAdapter creates a new generation task store adapter.
func NewGenerationTaskAdapter(client redis.UniversalClient, ttl time.Duration) *GenerationTaskAdapter {
	if ttl <= 0 {
		ttl = defaultGenerationTaskTTL
	}
	return &GenerationTaskAdapter{client: client, ttl: ttl}
}

func (a *GenerationTaskAdapter) Save(ctx context.Context, rec *model.GenerationTaskRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := a.client.Set(ctx, generationTaskKeyPrefix+rec.ID, data, a.ttl).Err(); err != nil {
		return fmt.Errorf("set task: %w", err)
	}
	return nil
}

func (a *GenerationTaskAdapter) Get(ctx context.Context, id string) (*model.GenerationTaskRecord, error) {
	data, err := a.client.Get(ctx, generationTaskKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	var rec model.GenerationTaskRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	if !rec.State.IsValid() {
		return nil, fmt.Errorf("unmarshal task: invalid state %q", rec.State)
	}
	return &rec, nil
}

func (a *GenerationTaskAdapter) Delete(ctx context.Context, id string) error {
	if err := a.client.Del(ctx, generationTaskKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// Compile-time interface check
var _ outbound.GenerationTaskStorePort = (*GenerationTaskAdapter)(nil)
