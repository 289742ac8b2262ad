package model

import (
	"net/http"
	"strings"
	"time"
)

// TaskState represents the lifecycle state of a generation task.
type TaskState string

const (
	TaskStateSubmitted TaskState = "submitted"
	TaskStateRunning   TaskState = "running"
	TaskStateSucceeded TaskState = "succeeded"
	TaskStateFailed    TaskState = "failed"
)

// String returns the string representation.
func (s TaskState) String() string {
	return string(s)
}

// IsTerminal returns true if the state is terminal.
func (s TaskState) IsTerminal() bool {
	return s == TaskStateSucceeded || s == TaskStateFailed
}

// IsValid checks if the state is valid.
func (s TaskState) IsValid() bool {
	switch s {
	case TaskStateSubmitted, TaskStateRunning, TaskStateSucceeded, TaskStateFailed:
		return true
	}
	return false
}

// rank orders states so that only forward transitions are applied.
func (s TaskState) rank() int {
	switch s {
	case TaskStateSubmitted:
		return 0
	case TaskStateRunning:
		return 1
	case TaskStateSucceeded, TaskStateFailed:
		return 2
	}
	return -1
}

// Precedes reports whether s comes strictly before other in the lifecycle.
func (s TaskState) Precedes(other TaskState) bool {
	return s.rank() < other.rank()
}

// GenerationRequest is an inbound request for one generated image.
type GenerationRequest struct {
	Texts   []string
	Options map[string]any

	// Pass-through flags for the hosting runtime.
	MakeOutputPublic   bool
	AppendOutputToFile bool
}

// NewGenerationRequest creates a request that owns copies of its inputs.
func NewGenerationRequest(texts []string, options map[string]any) *GenerationRequest {
	req := &GenerationRequest{
		Texts:   append([]string(nil), texts...),
		Options: make(map[string]any, len(options)),
	}
	for k, v := range options {
		req.Options[k] = v
	}
	return req
}

// Prompt joins the text fragments with single spaces.
func (r *GenerationRequest) Prompt() string {
	if r == nil {
		return ""
	}
	return strings.Join(r.Texts, " ")
}

// OptionSet is the normalized set of parameters sent to the provider.
type OptionSet struct {
	Model          string  `json:"model"`
	NegativePrompt string  `json:"negative_prompt"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Steps          int     `json:"steps"`
	Guidance       float64 `json:"guidance"`
	Scheduler      string  `json:"scheduler"`
	OutputFormat   string  `json:"output_format"`
}

// Artifact is a generated binary output.
type Artifact struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mime_type"`
	Public   bool   `json:"public"`
}

// Size returns the payload length in bytes.
func (a *Artifact) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Data)
}

// RawProviderResponse is an unclassified HTTP response from the provider.
type RawProviderResponse struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// ProviderConfig is the host-supplied provider configuration.
type ProviderConfig struct {
	APIKey  string `json:"-"`
	BaseURL string `json:"base_url"`
}

// TaskError describes a task failure.
type TaskError struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
	Body       string `json:"body,omitempty"`
}

// GenerationTaskRecord is a serializable snapshot of a generation task.
type GenerationTaskRecord struct {
	ID            string            `json:"id"`
	State         TaskState         `json:"state"`
	StatusMessage string            `json:"status_message"`
	Prompt        string            `json:"prompt"`
	Options       OptionSet         `json:"options"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Artifact      *Artifact         `json:"artifact,omitempty"`
	Error         *TaskError        `json:"error,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}
