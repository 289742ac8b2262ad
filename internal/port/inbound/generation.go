package inbound

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uniedit/imagegen/internal/model"
)

// --- Request/Response Types ---

// GenerationInput represents an inbound generation request.
type GenerationInput struct {
	Texts              []string       `json:"texts"`
	Options            map[string]any `json:"options,omitempty"`
	MakeOutputPublic   bool           `json:"make_output_public,omitempty"`
	AppendOutputToFile bool           `json:"append_output_to_file,omitempty"`
	Async              bool           `json:"async,omitempty"`
}

// ToRequest converts the input into a generation request.
func (in *GenerationInput) ToRequest() *model.GenerationRequest {
	req := model.NewGenerationRequest(in.Texts, in.Options)
	req.MakeOutputPublic = in.MakeOutputPublic
	req.AppendOutputToFile = in.AppendOutputToFile
	return req
}

// GenerationTaskOutput represents a task in HTTP responses.
type GenerationTaskOutput struct {
	ID            string            `json:"id"`
	State         model.TaskState   `json:"state"`
	StatusMessage string            `json:"status_message"`
	Options       model.OptionSet   `json:"options"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Artifact      *ArtifactOutput   `json:"artifact,omitempty"`
	Error         *model.TaskError  `json:"error,omitempty"`
	CreatedAt     int64             `json:"created_at"`
	UpdatedAt     int64             `json:"updated_at"`
}

// ArtifactOutput describes an artifact. Data is base64 encoded by encoding/json.
type ArtifactOutput struct {
	MimeType string `json:"mime_type"`
	Size     int    `json:"size"`
	Public   bool   `json:"public"`
	Data     []byte `json:"data,omitempty"`
}

// NewGenerationTaskOutput converts a task record. Artifact bytes are included
// only when withData is set.
func NewGenerationTaskOutput(rec *model.GenerationTaskRecord, withData bool) *GenerationTaskOutput {
	if rec == nil {
		return nil
	}
	out := &GenerationTaskOutput{
		ID:            rec.ID,
		State:         rec.State,
		StatusMessage: rec.StatusMessage,
		Options:       rec.Options,
		Metadata:      rec.Metadata,
		Error:         rec.Error,
		CreatedAt:     rec.CreatedAt.Unix(),
		UpdatedAt:     rec.UpdatedAt.Unix(),
	}
	if rec.Artifact != nil {
		out.Artifact = &ArtifactOutput{
			MimeType: rec.Artifact.MimeType,
			Size:     rec.Artifact.Size(),
			Public:   rec.Artifact.Public,
		}
		if withData {
			out.Artifact.Data = rec.Artifact.Data
		}
	}
	return out
}

// --- Domain Interface ---

// GenerationDomain defines the generation service used by the host runtime.
type GenerationDomain interface {
	// Generate submits a request and waits for its terminal state.
	// A wait timeout returns the last observed record and a timeout error.
	Generate(ctx context.Context, req *model.GenerationRequest, pollInterval, timeout time.Duration) (*model.GenerationTaskRecord, error)

	// Enqueue registers a request and runs it in the background.
	Enqueue(ctx context.Context, req *model.GenerationRequest) (*model.GenerationTaskRecord, error)

	// GetTask returns the latest snapshot of a task.
	GetTask(ctx context.Context, id string) (*model.GenerationTaskRecord, error)

	// WaitTask polls a stored task until it is terminal or the timeout elapses.
	WaitTask(ctx context.Context, id string, pollInterval, timeout time.Duration) (*model.GenerationTaskRecord, error)

	// TakeArtifact returns the artifact of a succeeded task and releases the task.
	TakeArtifact(ctx context.Context, id string) (*model.Artifact, error)
}

// --- HTTP Port Interfaces ---

// GenerationHttpPort defines generation HTTP handlers.
type GenerationHttpPort interface {
	// CreateGeneration handles generation requests.
	CreateGeneration(c *gin.Context)

	// GetGeneration handles task retrieval requests.
	GetGeneration(c *gin.Context)

	// WaitGeneration handles blocking wait requests.
	WaitGeneration(c *gin.Context)

	// GetArtifact handles artifact download requests.
	GetArtifact(c *gin.Context)
}
