package generation

import (
	"strings"
	"time"

	"github.com/uniedit/imagegen/internal/model"
)

// DefaultBaseURL is the provider endpoint used when none is configured.
const DefaultBaseURL = "https://api.getimg.ai/v1/stable-diffusion/text-to-image"

// Config holds generation domain configuration.
type Config struct {
	// Provider is passed to Run by the host-facing operations.
	Provider model.ProviderConfig

	// PollInterval is the default cadence of Wait.
	PollInterval time.Duration

	// WaitTimeout is the default budget of Wait.
	WaitTimeout time.Duration
}

// DefaultConfig returns default generation configuration.
func DefaultConfig() *Config {
	return &Config{
		PollInterval: time.Second,
		WaitTimeout:  2 * time.Minute,
	}
}

// Endpoint returns the configured base URL, or DefaultBaseURL when empty.
func Endpoint(cfg model.ProviderConfig) string {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return DefaultBaseURL
	}
	return cfg.BaseURL
}
