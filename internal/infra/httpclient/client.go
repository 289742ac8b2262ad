package httpclient

import (
	"net"
	"net/http"
	"time"

	"github.com/uniedit/imagegen/internal/infra/config"
)

// New creates a pooled HTTP client for provider calls.
// A zero ResponseTimeout falls back to fallbackTimeout.
func New(cfg config.HTTPClientConfig, fallbackTimeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: cfg.KeepAlive,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: cfg.TLSHandshakeTimeout,
		ForceAttemptHTTP2:   true,
	}

	timeout := cfg.ResponseTimeout
	if timeout <= 0 {
		timeout = fallbackTimeout
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
