package mediaprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/uniedit/imagegen/internal/model"
	"github.com/uniedit/imagegen/internal/port/outbound"
)

// maxResponseBytes bounds the provider response body.
const maxResponseBytes = 32 << 20

// ErrEmptyEndpoint is returned when no endpoint is given.
var ErrEmptyEndpoint = errors.New("empty provider endpoint")

// GetimgAdapter implements GenerationProviderPort for getimg.ai text-to-image.
type GetimgAdapter struct {
	client *http.Client
}

// NewGetimgAdapter creates a new getimg.ai adapter with the given HTTP client.
func NewGetimgAdapter(client *http.Client) *GetimgAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &GetimgAdapter{
		client: client,
	}
}

// getimgRequest represents a getimg.ai text-to-image request.
type getimgRequest struct {
	Prompt         string  `json:"prompt"`
	Model          string  `json:"model"`
	NegativePrompt string  `json:"negative_prompt"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Steps          int     `json:"steps"`
	Guidance       float64 `json:"guidance"`
	Scheduler      string  `json:"scheduler"`
	OutputFormat   string  `json:"output_format"`
}

// Submit posts one generation request. The prompt is sent as given, including
// the empty string. Any HTTP status is returned for classification.
func (a *GetimgAdapter) Submit(ctx context.Context, prompt string, opts model.OptionSet, apiKey, endpoint string) (*model.RawProviderResponse, error) {
	if endpoint == "" {
		return nil, ErrEmptyEndpoint
	}

	body, err := json.Marshal(&getimgRequest{
		Prompt:         prompt,
		Model:          opts.Model,
		NegativePrompt: opts.NegativePrompt,
		Width:          opts.Width,
		Height:         opts.Height,
		Steps:          opts.Steps,
		Guidance:       opts.Guidance,
		Scheduler:      opts.Scheduler,
		OutputFormat:   opts.OutputFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &model.RawProviderResponse{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Header:     resp.Header.Clone(),
	}, nil
}

// Compile-time interface check
var _ outbound.GenerationProviderPort = (*GetimgAdapter)(nil)
