package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"CryptoPulse/internal/logger"
)

const maxBodyBytes = 16 << 20

// ErrRateLimited is wrapped by HTTPError for 429 responses.
var ErrRateLimited = errors.New("rate limited")

// HTTPError is a non-200 response from an upstream API.
type HTTPError struct {
	URL        string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Retryable reports whether the request should be tried again.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func (e *HTTPError) Unwrap() error {
	if e.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return nil
}

// RetryPolicy bounds how often and how slowly a request is retried.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Client issues paced, retried JSON GET requests.
type Client struct {
	HTTP    *http.Client
	Limiter *rate.Limiter
	Retry   RetryPolicy
	Header  http.Header
	log     *logger.Entry
}

// NewClient builds a Client with optional proxy support. requestsPerMinute
// of zero disables client-side pacing.
func NewClient(timeout time.Duration, proxyURL string, requestsPerMinute, burst int, retry RetryPolicy, log *logger.Log) *Client {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	var limiter *rate.Limiter
	if requestsPerMinute > 0 {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), burst)
	}
	return &Client{
		HTTP: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		Limiter: limiter,
		Retry:   retry,
		Header:  http.Header{"User-Agent": []string{"CryptoPulse/1.0"}},
		log:     log.WithComponent("http_client"),
	}
}

// GetJSON fetches endpoint?query and decodes the body into out. Network
// errors, 429 and 5xx are retried with exponential backoff up to
// Retry.MaxAttempts; anything else fails immediately.
func (c *Client) GetJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	fullURL := endpoint
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	policy := newRetryBackOff(c.Retry)
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(maxInt(c.Retry.MaxAttempts, 1)-1)), ctx)

	attempts := 0
	op := func() error {
		attempts++
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		err := c.do(ctx, fullURL, out)
		var herr *HTTPError
		if errors.As(err, &herr) {
			policy.hint(herr.RetryAfter)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		c.log.WithFields(logger.Fields{
			"url":     endpoint,
			"attempt": attempts,
			"max":     c.Retry.MaxAttempts,
			"wait":    wait.String(),
		}).WithError(err).Warn("request failed, retrying")
	}

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("giving up after %d attempt(s): %w", attempts, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, fullURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range c.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		herr := &HTTPError{
			URL:        req.URL.Path,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), 200),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
		if herr.Retryable() {
			return herr
		}
		return backoff.Permanent(herr)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// retryBackOff is an exponential backoff that stretches the next wait to a
// server-provided Retry-After hint, capped at MaxDelay.
type retryBackOff struct {
	*backoff.ExponentialBackOff
	next     time.Duration
	maxDelay time.Duration
}

func newRetryBackOff(p RetryPolicy) *retryBackOff {
	exp := backoff.NewExponentialBackOff()
	if p.InitialDelay > 0 {
		exp.InitialInterval = p.InitialDelay
	}
	if p.MaxDelay > 0 {
		exp.MaxInterval = p.MaxDelay
	}
	if p.Multiplier >= 1 {
		exp.Multiplier = p.Multiplier
	}
	exp.RandomizationFactor = 0.2
	exp.MaxElapsedTime = 0
	exp.Reset()
	return &retryBackOff{ExponentialBackOff: exp, maxDelay: exp.MaxInterval}
}

func (r *retryBackOff) hint(d time.Duration) {
	if d > r.maxDelay {
		d = r.maxDelay
	}
	r.next = d
}

func (r *retryBackOff) NextBackOff() time.Duration {
	d := r.ExponentialBackOff.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	if r.next > d {
		d = r.next
	}
	r.next = 0
	return d
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
