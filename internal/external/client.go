// Package external contains the clients for the two upstream data APIs
// (NOAA weather, EIA electricity demand). All outbound HTTP goes through the
// BaseClient, which enforces consistent resilience behavior: a circuit
// breaker, bounded retries with exponential backoff, and error mapping into
// the types.AppError taxonomy.
package external

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"gridpulse/internal/types"
)

// RetryPolicy configures the retry behavior of the BaseClient.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseWait is the backoff unit: the sleep before attempt n+1 is
	// BaseWait * 2^(n-1), so with a 1s base the schedule is 1s, 2s, 4s...
	BaseWait time.Duration
	// MaxWait caps any single backoff sleep.
	MaxWait time.Duration
}

// DefaultRetryPolicy returns the ingestion defaults: three attempts with a
// deterministic 1s/2s backoff schedule.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseWait:    1 * time.Second,
		MaxWait:     30 * time.Second,
	}
}

// BaseClient wraps an *http.Client with a circuit breaker and retry loop.
// The weather and energy clients embed a BaseClient to inherit this
// behavior.
//
// Retryable conditions: network errors, timeouts, HTTP 429, HTTP 5xx, and
// HTTP 404. The 404 case is deliberate: upstream stations intermittently
// 404 on days that have not been published yet, which behaves like a
// transient condition. HTTP 401 is terminal and returns immediately.
type BaseClient struct {
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	retryPolicy RetryPolicy
	userAgent   string
	sleepFn     func(time.Duration) // injectable for tests; defaults to time.Sleep
}

// BaseClientOption is a functional option for configuring a BaseClient.
type BaseClientOption func(*BaseClient)

// WithSleepFunc overrides the sleep function used between retries. Intended
// for tests that must not wait out real backoff delays.
func WithSleepFunc(fn func(time.Duration)) BaseClientOption {
	return func(c *BaseClient) {
		c.sleepFn = fn
	}
}

// WithBreaker replaces the default circuit breaker, for tests that need
// fine-grained control over trip thresholds.
func WithBreaker(cb *gobreaker.CircuitBreaker[*http.Response]) BaseClientOption {
	return func(c *BaseClient) {
		c.breaker = cb
	}
}

// NewBaseClient creates a BaseClient. breakerName labels the circuit breaker
// in its state-change output; each upstream gets its own breaker so one
// failing API cannot shed load from the other.
func NewBaseClient(httpClient *http.Client, breakerName string, policy RetryPolicy, userAgent string, opts ...BaseClientOption) *BaseClient {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	bc := &BaseClient{
		client:      httpClient,
		breaker:     cb,
		retryPolicy: policy,
		userAgent:   userAgent,
		sleepFn:     time.Sleep,
	}

	for _, opt := range opts {
		opt(bc)
	}

	return bc
}

// Do executes the request with retries, backoff, and circuit breaking.
//
// On a usable response (2xx/3xx, or a 4xx other than 401/404/429) the
// response is returned as-is and the caller owns the body. On 401 it
// returns an ErrCodeUpstreamAuth error without retrying. On exhausted
// retries it returns an AppError describing the final failure; on an open
// circuit breaker the returned error wraps gobreaker.ErrOpenState so
// callers can detect it via IsBreakerOpen.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	// Snapshot the body so it can be replayed on retries. Both upstream
	// APIs are GET-only, so this is normally a no-op.
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
				"reading request body for retry support", err)
		}
		req.Body.Close()
	}

	var lastResp *http.Response
	var lastErr error

	for attempt := 0; attempt < c.retryPolicy.MaxAttempts; attempt++ {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			req.ContentLength = int64(len(bodyBytes))
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			// Statuses the breaker should count as upstream failures. 404 is
			// deliberately absent: unpublished days 404 routinely, and a
			// stretch of them must not trip the breaker for healthy keys.
			switch {
			case r.StatusCode >= 500:
				return r, fmt.Errorf("upstream returned %d", r.StatusCode)
			case r.StatusCode == http.StatusTooManyRequests:
				return r, fmt.Errorf("upstream returned 429")
			}
			return r, nil
		})

		if err == nil {
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				resp.Body.Close()
				return nil, types.NewAppError(types.ErrCodeUpstreamAuth,
					"upstream rejected credentials", nil)
			case http.StatusNotFound:
				// Retried like a transient failure, but outside the breaker
				// accounting above.
				err = fmt.Errorf("upstream returned 404")
			default:
				return resp, nil
			}
		}

		lastErr = err
		if resp != nil {
			if attempt < c.retryPolicy.MaxAttempts-1 {
				resp.Body.Close()
			} else {
				lastResp = resp
			}
		}

		// An open breaker means no real attempt was made; stop immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}

		if attempt < c.retryPolicy.MaxAttempts-1 {
			c.sleepFn(c.computeBackoff(attempt))
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}

	return nil, c.mapError(lastResp, lastErr)
}

// computeBackoff returns the wait before the attempt following the given
// zero-based attempt index: BaseWait * 2^attempt, capped at MaxWait. The
// schedule is deterministic so that repeated runs behave identically.
func (c *BaseClient) computeBackoff(attempt int) time.Duration {
	wait := c.retryPolicy.BaseWait << uint(attempt)
	if wait > c.retryPolicy.MaxWait {
		wait = c.retryPolicy.MaxWait
	}
	return wait
}

// mapError translates the final failed attempt into a domain error.
func (c *BaseClient) mapError(resp *http.Response, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(types.ErrCodeUpstreamRateLimited,
			"circuit breaker is open; upstream skipped", err)
	}

	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		return types.NewAppError(types.ErrCodeUpstreamRateLimited,
			"upstream rate limit exceeded after retries", err)
	}

	if resp != nil {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("upstream returned %d after retries", resp.StatusCode), err)
	}

	return types.NewAppError(types.ErrCodeUpstreamUnavailable,
		"upstream request failed after retries", err)
}

// errorFromStatus maps a terminal non-OK status that Do passed through (a
// 4xx outside the retry and auth classes) to a domain error. Both upstreams
// answer 403 for bad credentials, so it joins 401 in the auth class.
func errorFromStatus(status int, message string) *types.AppError {
	if status == http.StatusForbidden {
		return types.NewAppError(types.ErrCodeUpstreamAuth,
			fmt.Sprintf("%s: upstream rejected credentials (status 403)", message), nil)
	}
	return types.NewAppError(types.ErrCodeUpstreamUnavailable,
		fmt.Sprintf("%s: upstream returned unexpected status %d", message, status), nil)
}

// IsBreakerOpen reports whether the error chain stems from an open circuit
// breaker rather than an exhausted retry sequence. The sweep uses this to
// avoid ledgering keys that never got a real attempt.
func IsBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
