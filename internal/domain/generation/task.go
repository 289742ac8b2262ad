package generation

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uniedit/imagegen/internal/model"
)

// Status messages attached to a task as it moves through its lifecycle.
const (
	StatusMessageSubmitted = "submitted"
	StatusMessageRunning   = "generating image"
	StatusMessageSucceeded = "image generated"
)

// Metadata keys for the pass-through request flags.
const (
	MetadataMakeOutputPublic   = "make_output_public"
	MetadataAppendOutputToFile = "append_output_to_file"
	MetadataPublicURL          = "public_url"
)

// Task represents one generation request from submission to terminal outcome.
// Callers observe it through accessors; only the Domain mutates it.
type Task struct {
	mu sync.RWMutex

	id            string
	state         model.TaskState
	statusMessage string
	prompt        string
	options       model.OptionSet
	metadata      map[string]string
	artifact      *model.Artifact
	err           *Error
	createdAt     time.Time
	updatedAt     time.Time
}

// newTask creates a submitted task for a request.
func newTask(req *model.GenerationRequest) *Task {
	now := time.Now()
	t := &Task{
		id:            uuid.NewString(),
		state:         model.TaskStateSubmitted,
		statusMessage: StatusMessageSubmitted,
		metadata:      make(map[string]string, 2),
		createdAt:     now,
		updatedAt:     now,
	}
	if req != nil {
		t.prompt = req.Prompt()
		t.options = Normalize(req.Options)
		t.metadata[MetadataMakeOutputPublic] = boolString(req.MakeOutputPublic)
		t.metadata[MetadataAppendOutputToFile] = boolString(req.AppendOutputToFile)
	} else {
		t.options = DefaultOptionSet()
	}
	return t
}

// ReconstructTask rebuilds a task from a stored record.
func ReconstructTask(rec *model.GenerationTaskRecord) *Task {
	t := &Task{metadata: make(map[string]string)}
	t.applyRecord(rec)
	return t
}

// ID returns the task ID.
func (t *Task) ID() string { return t.id }

// Prompt returns the prompt sent to the provider.
func (t *Task) Prompt() string { return t.prompt }

// Options returns the normalized options sent to the provider.
func (t *Task) Options() model.OptionSet { return t.options }

// CreatedAt returns the creation time.
func (t *Task) CreatedAt() time.Time { return t.createdAt }

// State returns the last observed state.
func (t *Task) State() model.TaskState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// StatusMessage returns a human-readable status.
func (t *Task) StatusMessage() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.statusMessage
}

// Artifact returns the output of a succeeded task, or nil.
func (t *Task) Artifact() *model.Artifact {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.artifact
}

// Err returns the failure of a failed task, or nil.
func (t *Task) Err() *Error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// Metadata returns a copy of the pass-through metadata.
func (t *Task) Metadata() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]string, len(t.metadata))
	for k, v := range t.metadata {
		out[k] = v
	}
	return out
}

// UpdatedAt returns the time of the last state change.
func (t *Task) UpdatedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updatedAt
}

// IsTerminal returns whether the task has reached a terminal state.
func (t *Task) IsTerminal() bool {
	return t.State().IsTerminal()
}

// WantsPublicOutput reports the make_output_public flag of the request.
func (t *Task) WantsPublicOutput() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.metadata[MetadataMakeOutputPublic] == "true"
}

// Record returns a serializable snapshot of the task.
func (t *Task) Record() *model.GenerationTaskRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	meta := make(map[string]string, len(t.metadata))
	for k, v := range t.metadata {
		meta[k] = v
	}
	return &model.GenerationTaskRecord{
		ID:            t.id,
		State:         t.state,
		StatusMessage: t.statusMessage,
		Prompt:        t.prompt,
		Options:       t.options,
		Metadata:      meta,
		Artifact:      t.artifact,
		Error:         ToTaskError(t.err),
		CreatedAt:     t.createdAt,
		UpdatedAt:     t.updatedAt,
	}
}

func (t *Task) setMetadata(key, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metadata[key] = value
}

func (t *Task) start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = model.TaskStateRunning
	t.statusMessage = StatusMessageRunning
	t.updatedAt = time.Now()
}

func (t *Task) succeed(artifact *model.Artifact) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = model.TaskStateSucceeded
	t.statusMessage = StatusMessageSucceeded
	t.artifact = artifact
	t.err = nil
	t.updatedAt = time.Now()
}

func (t *Task) fail(err *Error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = model.TaskStateFailed
	t.statusMessage = err.Error()
	t.artifact = nil
	t.err = err
	t.updatedAt = time.Now()
}

// observe applies a polled record if it moves the task forward.
// Terminal tasks and stale records are left untouched.
func (t *Task) observe(rec *model.GenerationTaskRecord) bool {
	if rec == nil || rec.ID != t.id {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.IsTerminal() || !t.state.Precedes(rec.State) {
		return false
	}
	t.state = rec.State
	t.statusMessage = rec.StatusMessage
	t.artifact = rec.Artifact
	t.err = FromTaskError(rec.Error)
	t.updatedAt = rec.UpdatedAt
	for k, v := range rec.Metadata {
		t.metadata[k] = v
	}
	return true
}

func (t *Task) applyRecord(rec *model.GenerationTaskRecord) {
	if rec == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.id = rec.ID
	t.state = rec.State
	t.statusMessage = rec.StatusMessage
	t.prompt = rec.Prompt
	t.options = rec.Options
	t.metadata = make(map[string]string, len(rec.Metadata))
	for k, v := range rec.Metadata {
		t.metadata[k] = v
	}
	t.artifact = rec.Artifact
	t.err = FromTaskError(rec.Error)
	t.createdAt = rec.CreatedAt
	t.updatedAt = rec.UpdatedAt
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
