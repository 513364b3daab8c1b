package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voice-companion/internal/infra"
)

// ErrMalformedResponse is returned when a response body does not have the
// shape an endpoint promises.
var ErrMalformedResponse = errors.New("malformed backend response")

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Body)
}

// HTTPStatus lets callers relay the backend's verdict without importing
// this package.
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

// Client talks to the companion backend over its JSON REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      infra.RetryConfig
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retry:      infra.DefaultRetryConfig(),
	}
}

// SetRetry replaces the backoff used for reads.
func (c *Client) SetRetry(cfg infra.RetryConfig) {
	c.retry = cfg
}

// get retries transient failures; writes go out exactly once.
func (c *Client) get(ctx context.Context, op, path string) ([]byte, error) {
	var body []byte
	err := infra.WithRetry(ctx, c.retry, func() error {
		var err error
		body, err = c.doRequest(ctx, op, http.MethodGet, path, nil)
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !infra.IsRetryableHTTPStatus(statusErr.StatusCode) {
			return infra.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) send(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: marshaling request: %w", op, err)
	}
	return c.doRequest(ctx, op, method, path, data)
}

func (c *Client) doRequest(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: sending request: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: reading response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	return respBody, nil
}
