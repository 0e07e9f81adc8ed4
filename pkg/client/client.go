// Package client provides the upstream museum collection API client with
// outcome classification and a bounded retry controller.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds the upstream client configuration.
type Config struct {
	// BaseURL is the upstream API root, without a trailing slash.
	BaseURL string

	// UserAgent identifies this proxy to the upstream.
	UserAgent string

	// Timeout bounds a single network call. It is distinct from and
	// should be shorter than the scheduler's per-task timeout.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "https://collectionapi.metmuseum.org",
		UserAgent: "met-collection-proxy/1.0",
		Timeout:   10 * time.Second,
	}
}

// userAgentRoundTripper injects the User-Agent header on every request.
type userAgentRoundTripper struct {
	wrapped   http.RoundTripper
	userAgent string
}

func (rt *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", rt.userAgent)
	return rt.wrapped.RoundTrip(clone)
}

// Upstream performs single HTTP calls against the collection API and
// classifies their outcomes.
type Upstream struct {
	httpClient *http.Client
	cfg        Config
	retry      RetryConfig
	logger     zerolog.Logger
}

// New creates an upstream client.
func New(cfg Config, retry RetryConfig, logger zerolog.Logger) (*Upstream, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if err := retry.Validate(); err != nil {
		return nil, fmt.Errorf("retry config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	transport := &http.Transport{
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 32,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Upstream{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &userAgentRoundTripper{
				wrapped:   transport,
				userAgent: cfg.UserAgent,
			},
		},
		cfg:    cfg,
		retry:  retry,
		logger: logger,
	}, nil
}

// Fetch performs one GET against path and classifies the outcome: the raw
// JSON body on 2xx, *HTTPError for any other status, *NetworkError for
// transport failures.
func (u *Upstream) Fetch(ctx context.Context, path string) (json.RawMessage, error) {
	endpoint := endpointLabel(path)
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		netErr := classifyNetwork(err)
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		u.logger.Warn().
			Str("endpoint", endpoint).
			Str("kind", string(netErr.Kind)).
			Err(err).
			Msg("Upstream request failed")
		return nil, netErr
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		u.logger.Debug().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Msg("Upstream non-2xx response")
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyNetwork(err)
	}

	return json.RawMessage(body), nil
}

// endpointLabel collapses paths into low-cardinality metric labels.
func endpointLabel(path string) string {
	switch {
	case strings.Contains(path, "/search"):
		return "search"
	case strings.Contains(path, "/objects/"):
		return "objects"
	case strings.Contains(path, "/departments"):
		return "departments"
	default:
		return "other"
	}
}
