package httpx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/glasspane/glasspane/internal/config"
	"github.com/glasspane/glasspane/internal/infrastructure/resilience"
	"github.com/glasspane/glasspane/internal/policy"
)

// Client is the outbound HTTP client for the proxied site: resty over a
// retrying transport, wrapped by the policy guard, rate limited and fronted
// by a circuit breaker.
type Client struct {
	resty   *resty.Client
	breaker *resilience.Breaker

	mu      sync.RWMutex
	limiter *rate.Limiter
}

// NewClient builds the guarded upstream client. Every request issued through
// it is classified before reaching the wire.
func NewClient(cfg config.UpstreamConfig, classifier *policy.Classifier, reporter VerdictReporter) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 15 * time.Second
	retryClient.Logger = nil

	// Classification sits above retries: a blocked request is answered
	// synthetically before the retrying transport ever sees it.
	guarded := NewGuardedTransport(&retryablehttp.RoundTripper{Client: retryClient}, classifier, reporter)

	restyClient := resty.New()
	restyClient.
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetTransport(guarded)

	breaker := resilience.New("upstream", resilience.Settings{
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			// The upstream site varies in reliability; trip only on a
			// sustained streak or a high failure rate over real volume.
			return counts.ConsecutiveFailures >= 10 ||
				(counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.7)
		},
	})

	c := &Client{
		resty:   restyClient,
		limiter: rate.NewLimiter(rate.Inf, 0),
		breaker: breaker,
	}
	c.SetRateLimit(cfg.RequestsPerSecond)
	return c
}

// SetRateLimit configures outbound requests per second; rps <= 0 removes
// the limit. Safe to call while requests are in flight.
func (c *Client) SetRateLimit(rps float64) {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}

	c.mu.Lock()
	c.limiter = limiter
	c.mu.Unlock()
}

// Request creates a new request after rate limiting, rejecting early when
// the breaker is open.
func (c *Client) Request(ctx context.Context) (*resty.Request, error) {
	if c.breaker.State() == resilience.StateOpen {
		return nil, resilience.ErrCircuitOpen
	}

	c.mu.RLock()
	limiter := c.limiter
	c.mu.RUnlock()
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	return c.resty.R().SetContext(ctx), nil
}

// Execute runs an upstream call under the circuit breaker.
func (c *Client) Execute(fn func() (*resty.Response, error)) (*resty.Response, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return fn()
	})
	if err == resilience.ErrCircuitOpen {
		return nil, fmt.Errorf("upstream unavailable: circuit breaker open")
	}
	if err != nil {
		return nil, err
	}
	return result.(*resty.Response), nil
}

// BreakerState returns the current circuit breaker state.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}
