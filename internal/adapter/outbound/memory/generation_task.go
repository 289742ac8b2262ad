package memory

import (
	"context"
	"sync"
	"time"

	"github.com/uniedit/imagegen/internal/model"
	"github.com/uniedit/imagegen/internal/port/outbound"
)

type entry struct {
	rec       *model.GenerationTaskRecord
	expiresAt time.Time
}

// GenerationTaskAdapter implements GenerationTaskStorePort in process memory.
// Expired snapshots are swept on Save at most once per TTL, so tasks that are
// never collected do not outlive their TTL by more than one period.
type GenerationTaskAdapter struct {
	mu        sync.RWMutex
	entries   map[string]entry
	ttl       time.Duration
	now       func() time.Time
	nextSweep time.Time
}

// NewGenerationTaskAdapter creates an in-memory task store.
// A non-positive ttl keeps snapshots until they are deleted.
func NewGenerationTaskAdapter(ttl time.Duration) *GenerationTaskAdapter {
	return &GenerationTaskAdapter{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (a *GenerationTaskAdapter) Save(_ context.Context, rec *model.GenerationTaskRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if a.ttl > 0 && !now.Before(a.nextSweep) {
		a.sweepLocked(now)
		a.nextSweep = now.Add(a.ttl)
	}

	e := entry{rec: cloneRecord(rec)}
	if a.ttl > 0 {
		e.expiresAt = now.Add(a.ttl)
	}
	a.entries[rec.ID] = e
	return nil
}

func (a *GenerationTaskAdapter) Get(_ context.Context, id string) (*model.GenerationTaskRecord, error) {
	a.mu.RLock()
	e, ok := a.entries[id]
	a.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if e.expired(a.now()) {
		a.mu.Lock()
		// A Save may have refreshed the entry since the read lock was dropped.
		if cur, ok := a.entries[id]; ok && cur.expired(a.now()) {
			delete(a.entries, id)
		}
		a.mu.Unlock()
		return nil, nil
	}
	return cloneRecord(e.rec), nil
}

func (a *GenerationTaskAdapter) Delete(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.entries, id)
	return nil
}

// Len returns the number of stored snapshots, expired ones included.
func (a *GenerationTaskAdapter) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

func (a *GenerationTaskAdapter) sweepLocked(now time.Time) {
	for id, e := range a.entries {
		if e.expired(now) {
			delete(a.entries, id)
		}
	}
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// cloneRecord copies the mutable parts of a record so callers cannot alias
// stored state.
func cloneRecord(rec *model.GenerationTaskRecord) *model.GenerationTaskRecord {
	if rec == nil {
		return nil
	}
	out := *rec
	if rec.Metadata != nil {
		out.Metadata = make(map[string]string, len(rec.Metadata))
		for k, v := range rec.Metadata {
			out.Metadata[k] = v
		}
	}
	if rec.Error != nil {
		e := *rec.Error
		out.Error = &e
	}
	// Artifact bytes are immutable once produced and are shared.
	return &out
}

// Compile-time interface check
var _ outbound.GenerationTaskStorePort = (*GenerationTaskAdapter)(nil)
