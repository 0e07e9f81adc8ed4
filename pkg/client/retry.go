package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"
)

// RetryConfig holds the bounded retry policy. The 403 budget is the larger
// one: a 403 from this upstream usually means transient IP-level
// throttling, so waiting longer buys a real chance of success. Network
// failures get a smaller budget with a fixed short delay.
type RetryConfig struct {
	// Max403 is the number of additional attempts after a 403 response.
	Max403 int

	// MaxNetwork is the number of additional attempts after a network
	// error. Must not exceed Max403.
	MaxNetwork int

	// BackoffBase is the base of the exponential 403 backoff:
	// delay = BackoffBase << attempt + random(0, BackoffJitter).
	BackoffBase time.Duration

	// BackoffJitter is the upper bound of the random jitter added to
	// each 403 backoff.
	BackoffJitter time.Duration

	// NetworkDelay is the fixed wait between network-error attempts.
	NetworkDelay time.Duration
}

// DefaultRetryConfig returns the default retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Max403:        2,
		MaxNetwork:    1,
		BackoffBase:   2 * time.Second,
		BackoffJitter: 1 * time.Second,
		NetworkDelay:  500 * time.Millisecond,
	}
}

// Validate checks the retry policy for usable values.
func (c RetryConfig) Validate() error {
	if c.Max403 < 0 || c.MaxNetwork < 0 {
		return fmt.Errorf("retry budgets must be >= 0 (got 403=%d, network=%d)", c.Max403, c.MaxNetwork)
	}
	if c.MaxNetwork > c.Max403 {
		return fmt.Errorf("network budget %d must not exceed 403 budget %d", c.MaxNetwork, c.Max403)
	}
	if c.BackoffBase <= 0 {
		return fmt.Errorf("backoff base must be positive (got %v)", c.BackoffBase)
	}
	return nil
}

// backoff403 computes the wait before 403 attempt n (0-based).
func (c RetryConfig) backoff403(attempt int) time.Duration {
	delay := c.BackoffBase << attempt
	if c.BackoffJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(c.BackoffJitter)))
	}
	return delay
}

// FetchWithRetry runs the bounded retry state machine around Fetch. It is
// an explicit loop, never recursion, so the attempt bound is auditable.
// Terminal outcomes:
//   - success: the 2xx payload
//   - 403 with budget exhausted: ErrForbidden
//   - network error with budget exhausted: the last *NetworkError
//   - any other error: returned immediately
func (u *Upstream) FetchWithRetry(ctx context.Context, path string) (json.RawMessage, error) {
	var attempts403, attemptsNet int

	for {
		payload, err := u.Fetch(ctx, path)
		if err == nil {
			if attempts403 > 0 || attemptsNet > 0 {
				u.logger.Info().
					Str("path", path).
					Int("attempts_403", attempts403).
					Int("attempts_network", attemptsNet).
					Msg("Request succeeded after retry")
			}
			return payload, nil
		}

		var httpErr *HTTPError
		var netErr *NetworkError
		switch {
		case errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusForbidden:
			if attempts403 >= u.retry.Max403 {
				retryExhaustedTotal.WithLabelValues("forbidden").Inc()
				u.logger.Error().
					Str("path", path).
					Int("attempts", attempts403+1).
					Msg("403 retry budget exhausted")
				return nil, fmt.Errorf("%w after %d attempts", ErrForbidden, attempts403+1)
			}
			delay := u.retry.backoff403(attempts403)
			retriesTotal.WithLabelValues("forbidden").Inc()
			retryBackoffSeconds.WithLabelValues("forbidden").Observe(delay.Seconds())
			u.logger.Warn().
				Str("path", path).
				Int("attempt", attempts403+1).
				Dur("backoff", delay).
				Msg("Upstream 403, backing off")
			if err := u.wait(ctx, delay); err != nil {
				return nil, err
			}
			attempts403++

		case errors.As(err, &netErr):
			if attemptsNet >= u.retry.MaxNetwork {
				retryExhaustedTotal.WithLabelValues("network").Inc()
				return nil, err
			}
			retriesTotal.WithLabelValues("network").Inc()
			retryBackoffSeconds.WithLabelValues("network").Observe(u.retry.NetworkDelay.Seconds())
			u.logger.Warn().
				Str("path", path).
				Str("kind", string(netErr.Kind)).
				Int("attempt", attemptsNet+1).
				Msg("Network error, retrying")
			if err := u.wait(ctx, u.retry.NetworkDelay); err != nil {
				return nil, err
			}
			attemptsNet++

		default:
			return nil, err
		}
	}
}

// wait sleeps for delay or until ctx is cancelled.
func (u *Upstream) wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
	case <-timer.C:
		return nil
	}
}
