// Package backend issues authenticated REST requests to the Freta service,
// retrying transient network failures with exponential backoff.
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
)

// requestTimeout bounds each individual attempt, not the whole request.
const requestTimeout = 10 * time.Second

// AuthProvider supplies the Authorization header value for a request.
// An empty value means the request is sent unauthenticated.
type AuthProvider interface {
	Authorization(ctx context.Context) (string, error)
}

// Backend wraps an HTTP client with the retry/backoff behavior every
// Freta API call shares. A request is retried only while no response has
// been obtained; once the service answers, the status classification is
// final.
type Backend struct {
	endpoint   string
	auth       AuthProvider
	httpClient *http.Client
	logger     *slog.Logger

	// sleep is swapped out in tests to observe the backoff schedule
	// without waiting for it.
	sleep func(context.Context, time.Duration) error
}

// New creates a Backend for the given service endpoint.
func New(endpoint string, auth AuthProvider, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		endpoint: strings.TrimRight(endpoint, "/"),
		auth:     auth,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Request performs a single logical API call and returns the raw JSON
// payload of a 2xx response.
//
// Transient transport failures (connection errors, read timeouts) are
// retried up to 9 times with a 1.5^attempt second backoff. If no response
// is ever obtained the result is an *ExhaustedError. A received non-2xx
// response is a *ServiceError and is never retried. An empty 2xx body
// yields a nil payload.
//
// Retries cover only attempts that produced no response at all: a failure
// while reading the body of a received response is surfaced immediately.
func (b *Backend) Request(ctx context.Context, method, path string, body any, query url.Values) (json.RawMessage, error) {
	if b.endpoint == "" {
		return nil, fmt.Errorf("endpoint not configured")
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	resp, err := b.attempt(ctx, method, path, payload, query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %s %s: %w", method, path, err)
	}

	if resp.StatusCode/100 != 2 {
		return nil, &ServiceError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       respBody,
		}
	}

	if len(respBody) == 0 {
		return nil, nil
	}
	if !json.Valid(respBody) {
		return nil, fmt.Errorf("invalid JSON in response: %s %s", method, path)
	}
	return json.RawMessage(respBody), nil
}

// RequestInto performs Request and decodes the payload into out. A nil or
// empty payload leaves out untouched.
func (b *Backend) RequestInto(ctx context.Context, method, path string, body any, query url.Values, out any) error {
	raw, err := b.Request(ctx, method, path, body, query)
	if err != nil {
		return err
	}
	if raw == nil || out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %s %s: %w", method, path, err)
	}
	return nil
}

// attempt runs the retry loop until a response is obtained or the budget
// is exhausted. Only the transport can fail transiently; once a response
// exists it is returned untouched.
func (b *Backend) attempt(ctx context.Context, method, path string, payload []byte, query url.Values) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := b.newRequest(ctx, method, path, payload, query)
		if err != nil {
			return nil, err
		}

		b.logger.Debug("request", "method", method, "path", path, "attempt", attempt)

		resp, err := b.httpClient.Do(req)
		if err == nil {
			return resp, nil
		}
		if !isTransient(err) {
			return nil, fmt.Errorf("request failed: %s %s: %w", method, path, err)
		}

		lastErr = err
		b.logger.Info("transient request failure", "method", method, "path", path, "attempt", attempt, "error", err)

		if err := b.sleep(ctx, backoffDelay(attempt)); err != nil {
			return nil, err
		}
	}

	return nil, &ExhaustedError{
		Method:   method,
		Path:     path,
		Attempts: maxAttempts,
		LastErr:  lastErr,
	}
}

func (b *Backend) newRequest(ctx context.Context, method, path string, payload []byte, query url.Values) (*http.Request, error) {
	u := b.endpoint + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %s %s: %w", method, path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if b.auth != nil {
		value, err := b.auth.Authorization(ctx)
		if err != nil {
			return nil, fmt.Errorf("authorize request: %w", err)
		}
		if value != "" {
			req.Header.Set("Authorization", value)
		}
	}
	return req, nil
}

// GetURL fetches a URL directly, outside the service endpoint and without
// the Authorization header. Used for SAS URLs returned by the service.
func (b *Backend) GetURL(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	// SAS downloads can be large; the per-attempt timeout does not apply.
	client := &http.Client{Transport: b.httpClient.Transport}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read url body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, &ServiceError{
			Method:     http.MethodGet,
			Path:       rawURL,
			StatusCode: resp.StatusCode,
			Body:       data,
		}
	}
	return data, nil
}
