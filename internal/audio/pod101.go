package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	pod101URL     = "https://assets.languagepod101.com/dictionary/japanese/audiomp3.php"
	pod101Timeout = 30 * time.Second

	pod101RequestsPerSecond = 2
)

// Pod101Options configures the LanguagePod101 source
type Pod101Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger

	// RequestsPerSecond caps downloads, 0 means the default, negative
	// disables the limit
	RequestsPerSecond float64
}

// Pod101Source downloads native speaker recordings from LanguagePod101.
// Unknown words come back as a long "not found" announcement rather than an
// error status, which is why callers check the clip duration.
type Pod101Source struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
}

// NewPod101Source creates a new LanguagePod101 source
func NewPod101Source(opts *Pod101Options) *Pod101Source {
	if opts == nil {
		opts = &Pod101Options{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = pod101Timeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = pod101URL
	}

	return &Pod101Source{
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    newLimiter(opts.RequestsPerSecond, pod101RequestsPerSecond),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "languagepod101",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("Audio circuit breaker changed state",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
	}
}

// Fetch downloads the clip and writes it to outputFile, overwriting any
// earlier download of the same name
func (s *Pod101Source) Fetch(ctx context.Context, expression, reading, outputFile string) error {
	params := url.Values{}
	params.Set("kanji", expression)
	params.Set("kana", phoneticKey(expression, reading))
	reqURL := s.baseURL + "?" + params.Encode()

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := s.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("audio provider returned status %d", resp.StatusCode)
		}

		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return err
	}

	data := body.([]byte)
	if len(data) == 0 {
		return fmt.Errorf("no audio data received")
	}

	if dir := filepath.Dir(outputFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create media directory: %w", err)
		}
	}

	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}

	return nil
}

// newLimiter allows perSecond downloads, def when perSecond is 0 and no limit
// when it is negative
func newLimiter(perSecond, def float64) *rate.Limiter {
	switch {
	case perSecond == 0:
		perSecond = def
	case perSecond < 0:
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// Name returns the source name
func (s *Pod101Source) Name() string {
	return "languagepod101"
}
