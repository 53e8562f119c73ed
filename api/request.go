package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPError is a non-2xx response from the API.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("tradier http error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsRetryable returns true if the error should trigger a retry.
func (e *HTTPError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// APIError is an error payload returned with a 200 status.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return "tradier api error: " + e.Message
}

// errorBody matches the {"error":{"message":...}} payload shape.
type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// doRequest performs one HTTP request for the given endpoint.
// GET and DELETE requests encode params in the query string; POST and PUT
// send them as a form body.
func (c *Client) doRequest(ctx context.Context, ep Endpoint, pathParams, params map[string]string) ([]byte, error) {
	var fullURL string
	var err error
	if c.baseURL != "" {
		var path string
		path, err = ep.FormatPath(pathParams)
		fullURL = c.baseURL + path
	} else {
		fullURL, err = ep.URL(c.cfg, pathParams)
	}
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}

	var body io.Reader
	switch ep.Method {
	case http.MethodGet, http.MethodDelete:
		if len(values) > 0 {
			fullURL += "?" + values.Encode()
		}
	default:
		body = strings.NewReader(values.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, ep.Method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, v := range c.cfg.Headers() {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if c.throttle {
		if err := c.waitRateLimit(ctx, resp.Header); err != nil {
			return nil, err
		}
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       data,
		}
	}

	// A 200 can still carry an error payload.
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err == nil && eb.Error.Message != "" {
		return nil, &APIError{Message: eb.Error.Message}
	}

	return data, nil
}

// doWithRetry performs a request with exponential backoff retry.
func (c *Client) doWithRetry(ctx context.Context, ep Endpoint, pathParams, params map[string]string) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"path", ep.Path,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		body, err := c.doRequest(ctx, ep, pathParams, params)
		if err == nil {
			return body, nil
		}

		lastErr = err

		httpErr, ok := err.(*HTTPError)
		if !ok || !httpErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Call performs a request for the given endpoint and unmarshals the JSON
// response body into result (when result is non-nil).
func (c *Client) Call(ctx context.Context, ep Endpoint, pathParams, params map[string]string, result any) error {
	body, err := c.doWithRetry(ctx, ep, pathParams, params)
	if err != nil {
		return err
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}
