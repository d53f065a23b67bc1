package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/p4kb/p4kb/pkg/resilience"
)

// maxFetchBytes caps a single remote document body.
const maxFetchBytes = 64 << 20

// FetcherOpts configures remote document fetching.
type FetcherOpts struct {
	// Timeout bounds one whole request.
	Timeout time.Duration
	// RatePerSec paces outbound requests; public sources throttle hard.
	RatePerSec float64
	Burst      int
}

// DefaultFetcherOpts matches the sources this engine pulls from.
var DefaultFetcherOpts = FetcherOpts{
	Timeout:    10 * time.Second,
	RatePerSec: 2,
	Burst:      2,
}

// Fetcher downloads remote documents with a bounded timeout, request
// pacing, and a circuit breaker in front of flaky hosts.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts FetcherOpts) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFetcherOpts.Timeout
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = DefaultFetcherOpts.RatePerSec
	}
	if opts.Burst <= 0 {
		opts.Burst = DefaultFetcherOpts.Burst
	}
	return &Fetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
}

// Get fetches url and returns the body. Non-2xx responses are failures.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body []byte
	err := f.breaker.Call(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
		if err != nil {
			return fmt.Errorf("fetch %s: read body: %w", url, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
