// Package client provides read and control access to a running kiln
// gateway for CLI commands.
//
// All data shown by the CLI comes from the gateway's HTTP surface; the
// CLI never opens the incremental cache directly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pithecene-io/kiln/iox"
	"github.com/pithecene-io/kiln/metrics"
)

// DefaultTimeout bounds a single gateway request.
const DefaultTimeout = 10 * time.Second

// RevalidateResult reports the outcome of a revalidation request.
type RevalidateResult struct {
	Revalidated bool   `json:"revalidated"`
	Path        string `json:"path,omitempty"`
	Tag         string `json:"tag,omitempty"`
	Removed     int    `json:"removed,omitempty"`
}

// Client talks to a running gateway instance.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a Client for the gateway at baseURL. The token is sent as
// a bearer token on revalidation requests; it may be empty for
// read-only use.
func New(baseURL, token string) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("gateway URL is required")
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("gateway URL must be http or https: %s", baseURL)
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: DefaultTimeout},
	}, nil
}

// Metrics fetches the gateway's metrics snapshot.
func (c *Client) Metrics(ctx context.Context) (*metrics.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/-/metrics", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway unreachable: %w", err)
	}
	defer iox.DrainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFrom(resp)
	}

	var snap metrics.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode metrics response: %w", err)
	}
	return &snap, nil
}

// RevalidatePath asks the gateway to drop and regenerate the artifact
// for pathname.
func (c *Client) RevalidatePath(ctx context.Context, pathname string) (*RevalidateResult, error) {
	return c.revalidate(ctx, map[string]string{"path": pathname})
}

// RevalidateTag asks the gateway to invalidate every cache entry
// carrying the tag.
func (c *Client) RevalidateTag(ctx context.Context, tag string) (*RevalidateResult, error) {
	return c.revalidate(ctx, map[string]string{"tag": tag})
}

func (c *Client) revalidate(ctx context.Context, body map[string]string) (*RevalidateResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/-/revalidate", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway unreachable: %w", err)
	}
	defer iox.DrainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFrom(resp)
	}

	var result RevalidateResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode revalidate response: %w", err)
	}
	return &result, nil
}

// errorFrom turns a non-200 gateway response into an error, preferring
// the gateway's own error message when the body carries one.
func (c *Client) errorFrom(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("gateway returned %d", resp.StatusCode)
}
