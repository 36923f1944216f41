// Package api is the thin JSON request helper shared by the cart, checkout
// and orders clients.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tresse/storefront/internal/models"
)

// StatusError is a non-2xx response from the backend. Detail carries the
// backend's {"detail": ...} message when present, so callers can surface it
// verbatim.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("server error: status %d", e.Status)
}

// Client performs JSON requests against the storefront API.
type Client struct {
	http    *http.Client
	baseURL string
}

// New creates a Client using httpClient (normally one built on the
// authenticated transport).
func New(httpClient *http.Client, baseURL string) *Client {
	return &Client{http: httpClient, baseURL: baseURL}
}

// Do sends a request to path with the optional JSON payload and returns the
// response body. Non-2xx statuses are returned as *StatusError.
func (c *Client) Do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: reading response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Status: resp.StatusCode, Detail: models.APIDetail(data)}
	}
	return data, nil
}
