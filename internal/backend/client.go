package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPClient is implemented by http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Auth is the buyer credential forwarded to the backend.
type Auth struct {
	Token string
}

// Client talks to the storefront backend REST API.
type Client struct {
	httpClient HTTPClient
	baseURL    string
	loc        *time.Location
	log        *slog.Logger
}

// Option applies Client options.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLocation sets the calendar zone used to read timestamp-shaped dates.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithLogger enables debug tracing of backend calls.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a backend client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		loc:     time.UTC,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) doJSON(ctx context.Context, method, path string, params url.Values, body any, auth *Auth, out any) error {
	rawURL := c.baseURL + path
	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != nil && strings.TrimSpace(auth.Token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(auth.Token))
	}

	startedAt := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		c.trace(method, rawURL, 0, startedAt, err)
		return &UpstreamRequestError{Method: method, URL: rawURL, Cause: err}
	}
	defer func() {
		_ = res.Body.Close()
	}()

	rawResponse, err := io.ReadAll(res.Body)
	if err != nil {
		upstreamErr := &UpstreamRequestError{
			Method:     method,
			URL:        rawURL,
			StatusCode: res.StatusCode,
			Cause:      fmt.Errorf("read response body: %w", err),
		}
		c.trace(method, rawURL, res.StatusCode, startedAt, upstreamErr)
		return upstreamErr
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		upstreamErr := &UpstreamRequestError{
			Method:     method,
			URL:        rawURL,
			StatusCode: res.StatusCode,
			Body:       string(rawResponse),
		}
		c.trace(method, rawURL, res.StatusCode, startedAt, upstreamErr)
		return upstreamErr
	}
	c.trace(method, rawURL, res.StatusCode, startedAt, nil)

	if out == nil || len(bytes.TrimSpace(rawResponse)) == 0 {
		return nil
	}
	if err := json.Unmarshal(rawResponse, out); err != nil {
		return &UpstreamRequestError{
			Method:     method,
			URL:        rawURL,
			StatusCode: res.StatusCode,
			Body:       string(rawResponse),
			Cause:      fmt.Errorf("decode response body: %w", err),
		}
	}
	return nil
}

func (c *Client) trace(method, rawURL string, status int, startedAt time.Time, err error) {
	attrs := []any{
		"method", method,
		"url", rawURL,
		"status", status,
		"duration_ms", time.Since(startedAt).Milliseconds(),
	}
	if err != nil {
		c.log.Debug("backend request failed", append(attrs, "error", err)...)
		return
	}
	c.log.Debug("backend request", attrs...)
}
