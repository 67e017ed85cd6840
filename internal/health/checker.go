package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Checker reports the current health of the backend.
type Checker interface {
	Check(ctx context.Context) (Payload, error)
}

// StoreChecker reads the in process store.
type StoreChecker struct {
	store *Store
}

func NewStoreChecker(store *Store) *StoreChecker {
	return &StoreChecker{store: store}
}

func (c *StoreChecker) Check(context.Context) (Payload, error) {
	return c.store.Get(), nil
}

// HTTPChecker fetches the health document of a remote service.
type HTTPChecker struct {
	url    string
	client *http.Client
}

func NewHTTPChecker(url string, timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPChecker{url: url, client: &http.Client{Timeout: timeout}}
}

func (c *HTTPChecker) Check(ctx context.Context) (Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Payload{}, fmt.Errorf("build health request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Payload{}, fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Payload{}, fmt.Errorf("health endpoint returned status %d", resp.StatusCode)
	}

	var p Payload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Payload{}, fmt.Errorf("decode health payload: %w", err)
	}
	return p, nil
}
