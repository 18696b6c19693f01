package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"

	"github.com/i474232898/agri-weather-dashboard/internal/observability"
	"github.com/i474232898/agri-weather-dashboard/internal/period"
	"github.com/i474232898/agri-weather-dashboard/internal/weather"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig

	// Timeout applies to a single call whose context carries no deadline.
	Timeout time.Duration
}

// Config is shared by every provider talking to the remote API.
type Config struct {
	BaseURL  string
	HTTP     HTTPClientConfig
	Location *time.Location
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("civildate", func(fl validator.FieldLevel) bool {
		_, err := period.ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

// retryable reports whether a failed attempt may be repeated.
func retryable(err error) bool {
	return errors.Is(err, weather.ErrTransport) || errors.Is(err, errServerError) || errors.Is(err, errRateLimited)
}

// doRequestWithResilience executes the HTTP request with retries, exponential backoff,
// and a circuit breaker. Transport failures wrap weather.ErrTransport and non-2xx
// responses wrap weather.ErrUpstreamStatus.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || (cfg.Backoff.MaxRetries > 0 && cfg.Backoff.InitialInterval <= 0) {
		return nil, errInvalidConfig
	}

	var attempt int

	for {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", weather.ErrTransport, ctx.Err())
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, fmt.Errorf("%w: %w", weather.ErrTransport, execErr)
			}

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}

			// Drain so the connection can be reused.
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				return nil, fmt.Errorf("%w: %w", weather.ErrUpstreamStatus, errRateLimited)
			case resp.StatusCode >= 500:
				return nil, fmt.Errorf("%w: %w: %d", weather.ErrUpstreamStatus, errServerError, resp.StatusCode)
			}
			return nil, fmt.Errorf("%w: %d", weather.ErrUpstreamStatus, resp.StatusCode)
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w: %v", weather.ErrTransport, errCircuitOpen, err)
		}

		if attempt >= cfg.Backoff.MaxRetries || !retryable(err) {
			return nil, err
		}

		// Backoff with exponential delay.
		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %w", weather.ErrTransport, ctx.Err())
		case <-timer.C:
		}

		attempt++
	}
}

// apiClient is the JSON GET client shared by the institution providers.
type apiClient struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	loc     *time.Location
	metrics *observability.Metrics
	logger  *slog.Logger
}

func newAPIClient(name string, cfg Config) *apiClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &apiClient{
		name:    name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpCfg: cfg.HTTP,
		circuit: cb,
		loc:     loc,
		metrics: cfg.Metrics,
		logger:  logger.With("source", name),
	}
}

// getJSON issues GET baseURL+path?query and decodes the body into out.
func (c *apiClient) getJSON(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	if _, ok := ctx.Deadline(); !ok && c.httpCfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpCfg.Timeout)
		defer cancel()
	}

	buildRequest := func() (*http.Request, error) {
		u := c.baseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	start := time.Now()
	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err == nil {
		defer resp.Body.Close()
		if decErr := json.NewDecoder(resp.Body).Decode(out); decErr != nil {
			if ctx.Err() != nil {
				err = fmt.Errorf("%w: %w", weather.ErrTransport, ctx.Err())
			} else {
				err = fmt.Errorf("%w: decode %s: %v", weather.ErrInvalidPayload, endpoint, decErr)
			}
		}
	}
	c.observe(endpoint, start, err)

	if err != nil {
		c.logger.Warn("upstream request failed", "endpoint", endpoint, "error", err)
		return err
	}
	return nil
}

func (c *apiClient) observe(endpoint string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamDuration.WithLabelValues(c.name, endpoint).Observe(time.Since(start).Seconds())
	c.metrics.UpstreamRequests.WithLabelValues(c.name, endpoint, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, weather.ErrUpstreamStatus):
		return "status"
	case errors.Is(err, weather.ErrInvalidPayload):
		return "payload"
	}
	return "transport"
}

// validRows drops rows that fail validation, logging each one.
func validRows[T any](c *apiClient, endpoint string, rows []T) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if err := validate.Struct(r); err != nil {
			c.logger.Warn("dropping invalid row", "endpoint", endpoint, "error", err)
			continue
		}
		out = append(out, r)
	}
	return out
}

// pageEnvelope is the paginated response shape of range endpoints.
type pageEnvelope[T any] struct {
	Total  int `json:"total" validate:"gte=0"`
	Offset int `json:"offset" validate:"gte=0"`
	Limit  int `json:"limit" validate:"gte=0"`
	Data   []T `json:"data" validate:"required"`
}

func (e pageEnvelope[T]) check(endpoint string) error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("%w: %s envelope: %v", weather.ErrInvalidPayload, endpoint, err)
	}
	return nil
}

// parseTimestamp accepts RFC3339 or a zone-less "YYYY-MM-DDTHH:MM:SS" read in loc.
func parseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, true
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02T15:04"} {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func dateQuery(d time.Time) string {
	return period.FormatDate(d)
}
