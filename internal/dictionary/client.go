package dictionary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	jishoSearchURL = "https://jisho.org/api/v1/search/words"
	jishoTimeout   = 30 * time.Second

	// consecutive failures before the breaker stops calling the provider
	breakerTripAfter = 3

	// Jisho is a free service, keep a batch import polite
	jishoRequestsPerSecond = 4
)

// ClientOptions configures the dictionary client
type ClientOptions struct {
	BaseURL    string        // Search endpoint, defaults to the Jisho API
	Timeout    time.Duration // HTTP timeout, ignored when HTTPClient is set
	HTTPClient *http.Client
	Logger     *zap.Logger

	// RequestsPerSecond caps the request rate, 0 means the default and a
	// negative value disables the limit
	RequestsPerSecond float64
}

// Lookup is an accepted dictionary result for an expression
type Lookup struct {
	Entry    Entry
	KanaOnly bool // the expression matched a reading, not a written form
}

// Client queries the Jisho word search API
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	lookups    *cache.Cache
	logger     *zap.Logger
}

// searchResponse represents the API response structure
type searchResponse struct {
	Meta struct {
		Status int `json:"status"`
	} `json:"meta"`
	Data []Entry `json:"data"`
}

// NewClient creates a new dictionary client
func NewClient(opts *ClientOptions) *Client {
	if opts == nil {
		opts = &ClientOptions{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = jishoTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = jishoSearchURL
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		breaker:    newBreaker("jisho", logger),
		limiter:    newLimiter(opts.RequestsPerSecond, jishoRequestsPerSecond),
		lookups:    cache.New(cache.NoExpiration, 0),
		logger:     logger,
	}
}

// newLimiter returns a token bucket allowing perSecond requests, falling back
// to def when perSecond is 0. A negative rate means no limit.
func newLimiter(perSecond, def float64) *rate.Limiter {
	if perSecond == 0 {
		perSecond = def
	}
	if perSecond < 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func newBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Dictionary circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// Lookup searches for expression and returns the first entry if one of its
// surface forms equals the expression exactly. A nil Lookup with a nil error
// means there is nothing usable; callers skip the expression.
func (c *Client) Lookup(ctx context.Context, expression string) (*Lookup, error) {
	if cached, ok := c.lookups.Get(expression); ok {
		return cached.(*Lookup), nil
	}

	entries, err := c.search(ctx, expression)
	if err != nil {
		return nil, err
	}

	result := accept(entries, expression)
	c.lookups.Set(expression, result, cache.NoExpiration)
	return result, nil
}

// accept applies the first-entry, first-match rule to a search result
func accept(entries []Entry, expression string) *Lookup {
	if len(entries) == 0 {
		return nil
	}

	entry := entries[0]
	switch Match(entry, expression) {
	case MatchedWritten:
		return &Lookup{Entry: entry}
	case MatchedReading:
		return &Lookup{Entry: entry, KanaOnly: true}
	default:
		return nil
	}
}

func (c *Client) search(ctx context.Context, expression string) ([]Entry, error) {
	params := url.Values{}
	params.Set("keyword", `"`+expression+`"`)
	reqURL := c.baseURL + "?" + params.Encode()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("dictionary lookup for %q: %w", expression, err)
	}

	body, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("dictionary returned status %d", resp.StatusCode)
		}

		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, fmt.Errorf("dictionary lookup for %q: %w", expression, err)
	}

	var result searchResponse
	if err := json.Unmarshal(body.([]byte), &result); err != nil {
		return nil, fmt.Errorf("failed to decode dictionary response: %w", err)
	}

	return result.Data, nil
}
