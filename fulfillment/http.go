package fulfillment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// apiClient wraps backend HTTP calls with bounded exponential retry.
// Network errors and 5xx responses are transient; 4xx responses are
// permanent and fail immediately.
type apiClient struct {
	baseURL         string
	client          *http.Client
	maxAttempts     uint64
	initialInterval time.Duration
}

func newApiClient(baseURL string, maxAttempts uint64, initialInterval time.Duration) *apiClient {
	return &apiClient{
		baseURL:         baseURL,
		client:          &http.Client{Timeout: 15 * time.Second},
		maxAttempts:     maxAttempts,
		initialInterval: initialInterval,
	}
}

func (c *apiClient) doJSON(ctx context.Context, method string, path string, headers map[string]string, body any, out any) error {
	var payload []byte
	var err error
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialInterval
	b := backoff.WithContext(backoff.WithMaxRetries(bo, c.maxAttempts), ctx)
	return backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		res, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.StatusCode >= 500 {
			return fmt.Errorf("backend returned %d for %s %s", res.StatusCode, method, path)
		}
		if res.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("backend rejected %s %s with %d", method, path, res.StatusCode))
		}
		if out != nil {
			if err := json.NewDecoder(res.Body).Decode(out); err != nil {
				return backoff.Permanent(err)
			}
		}
		return nil
	}, b)
}
