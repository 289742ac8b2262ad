package mediaprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/uniedit/imagegen/internal/model"
	"github.com/uniedit/imagegen/internal/port/outbound"
)

// errServerStatus marks a 5xx response inside the breaker.
var errServerStatus = errors.New("provider server error")

// BreakerConfig contains circuit breaker configuration.
type BreakerConfig struct {
	FailureThreshold uint32
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
}

// DefaultBreakerConfig returns the default circuit breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
	}
}

// BreakerProvider guards a provider with a circuit breaker.
// Transport errors and 5xx responses count as failures. It never retries.
type BreakerProvider struct {
	next    outbound.GenerationProviderPort
	breaker *gobreaker.CircuitBreaker[*model.RawProviderResponse]
}

// NewBreakerProvider wraps next with a circuit breaker.
func NewBreakerProvider(next outbound.GenerationProviderPort, cfg BreakerConfig, logger *zap.Logger) *BreakerProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	log := logger.Named("provider-breaker")

	settings := gobreaker.Settings{
		Name:        "getimg",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &BreakerProvider{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[*model.RawProviderResponse](settings),
	}
}

// Submit forwards to the wrapped provider unless the breaker is open.
func (p *BreakerProvider) Submit(ctx context.Context, prompt string, opts model.OptionSet, apiKey, endpoint string) (*model.RawProviderResponse, error) {
	raw, err := p.breaker.Execute(func() (*model.RawProviderResponse, error) {
		raw, err := p.next.Submit(ctx, prompt, opts, apiKey, endpoint)
		if err != nil {
			return nil, err
		}
		if raw != nil && raw.StatusCode >= http.StatusInternalServerError {
			return raw, errServerStatus
		}
		return raw, nil
	})
	if errors.Is(err, errServerStatus) {
		return raw, nil
	}
	if err != nil {
		return nil, fmt.Errorf("provider breaker: %w", err)
	}
	return raw, nil
}

// State returns the current breaker state.
func (p *BreakerProvider) State() gobreaker.State {
	return p.breaker.State()
}

// Compile-time interface check
var _ outbound.GenerationProviderPort = (*BreakerProvider)(nil)
