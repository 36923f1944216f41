// Package address looks up address suggestions for checkout prefill.
// Lookups are cancel-on-new-input: every query aborts the previous
// in-flight one, and stale responses are discarded instead of applied.
package address

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tresse/storefront/internal/models"
)

// Client queries the address-suggestion service. Failures degrade to empty
// results; the breaker keeps a flapping service from being hammered.
type Client struct {
	http    *http.Client
	baseURL string
	log     *zap.Logger
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]models.AddressCandidate]

	mu         sync.Mutex
	cancelPrev context.CancelFunc
	seq        int
}

// New creates a Client for the suggestion service at baseURL. httpClient
// may be nil for a default client; the service needs no authentication.
func New(httpClient *http.Client, baseURL string, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		log:     log,
		// One lookup per 300ms keeps search-as-you-type from flooding
		// the service.
		limiter: rate.NewLimiter(rate.Every(300*time.Millisecond), 1),
		breaker: gobreaker.NewCircuitBreaker[[]models.AddressCandidate](gobreaker.Settings{
			Name:    "address-suggest",
			Timeout: 30 * time.Second,
		}),
	}
}

// Suggest returns candidate addresses for the free-text query. Calling it
// again cancels the previous in-flight lookup; a response that lost the
// race returns (nil, nil) and must not be shown. All service failures
// return an error with no candidates.
func (c *Client) Suggest(ctx context.Context, query string) ([]models.AddressCandidate, error) {
	if query == "" {
		return nil, nil
	}

	c.mu.Lock()
	if c.cancelPrev != nil {
		c.cancelPrev()
	}
	lctx, cancel := context.WithCancel(ctx)
	c.cancelPrev = cancel
	c.seq++
	seq := c.seq
	c.mu.Unlock()
	defer cancel()

	if err := c.limiter.Wait(lctx); err != nil {
		return nil, nil // superseded while waiting
	}

	candidates, err := c.breaker.Execute(func() ([]models.AddressCandidate, error) {
		return c.lookup(lctx, query)
	})
	if err != nil {
		if lctx.Err() != nil {
			return nil, nil // cancelled by a newer query
		}
		c.log.Debug("address lookup failed", zap.String("query", query), zap.Error(err))
		return nil, fmt.Errorf("address lookup: %w", err)
	}

	c.mu.Lock()
	stale := seq != c.seq
	c.mu.Unlock()
	if stale {
		return nil, nil
	}
	return candidates, nil
}

func (c *Client) lookup(ctx context.Context, query string) ([]models.AddressCandidate, error) {
	u := c.baseURL + "/suggest?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("suggestion service: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var candidates []models.AddressCandidate
	if err := json.Unmarshal(data, &candidates); err != nil {
		return nil, fmt.Errorf("%w: suggestions: %v", models.ErrInvalidPayload, err)
	}
	return candidates, nil
}
