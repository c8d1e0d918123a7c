package platform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// HTTPClient fetches documents with retry on transport errors and 5xx responses
type HTTPClient struct {
	Client  *http.Client
	Retries int
	Backoff time.Duration // base delay, doubled per attempt
}

func NewHTTPClient(retries int, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		Client: &http.Client{
			Timeout: timeout,
		},
		Retries: retries,
		Backoff: 200 * time.Millisecond,
	}
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Get downloads url, reading at most limit+1 bytes so callers can detect oversize bodies
func (c *HTTPClient) Get(ctx context.Context, url string, limit int64) ([]byte, error) {
	var lastErr error

	for i := 0; i <= c.Retries; i++ {
		body, retry, err := c.get(ctx, url, limit)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry || i == c.Retries {
			break
		}

		log.Warn().Str("url", url).Int("attempt", i+1).Err(err).Msg("HTTP request failed, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(1<<i) * c.Backoff):
		}
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", c.Retries, lastErr)
}

func (c *HTTPClient) get(ctx context.Context, url string, limit int64) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "text/plain, text/csv, */*")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode >= 500, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, true, err
	}
	return body, false, nil
}
