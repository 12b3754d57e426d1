package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrDaemonUnavailable indicates the daemon's API is not reachable.
var ErrDaemonUnavailable = errors.New("daemon api unavailable")

// Client talks to a running daemon over its HTTP API.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewClient builds an API client for the given bind address.
func NewClient(bind, token string) *Client {
	base := strings.TrimSpace(bind)
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var status DaemonStatus
	err := c.get(ctx, "/api/status", nil, &status)
	return status, err
}

// Queue lists queue items, optionally filtered by status.
func (c *Client) Queue(ctx context.Context, statuses []string) (QueueResponse, error) {
	query := url.Values{}
	for _, status := range statuses {
		query.Add("status", status)
	}
	var resp QueueResponse
	err := c.get(ctx, "/api/queue", query, &resp)
	return resp, err
}

// History lists recent audit records.
func (c *Client) History(ctx context.Context, limit int) (HistoryResponse, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var resp HistoryResponse
	err := c.get(ctx, "/api/history", query, &resp)
	return resp, err
}

// Poll asks the daemon for an immediate reconciliation pass.
func (c *Client) Poll(ctx context.Context) error {
	return c.post(ctx, "/api/poll", nil, nil)
}

// PauseItem pauses a queue item's download.
func (c *Client) PauseItem(ctx context.Context, id int64) error {
	return c.post(ctx, fmt.Sprintf("/api/queue/%d/pause", id), nil, nil)
}

// ResumeItem resumes a queue item's download.
func (c *Client) ResumeItem(ctx context.Context, id int64) error {
	return c.post(ctx, fmt.Sprintf("/api/queue/%d/resume", id), nil, nil)
}

// RemoveItem removes a queue item, optionally deleting the back-end
// download and its files.
func (c *Client) RemoveItem(ctx context.Context, id int64, removeFromClient, deleteFiles bool) error {
	query := url.Values{}
	query.Set("removeFromClient", strconv.FormatBool(removeFromClient))
	query.Set("deleteFiles", strconv.FormatBool(deleteFiles))
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/queue/%d", id), query, nil)
}

// ClearFailed clears failed items older than the given age.
func (c *Client) ClearFailed(ctx context.Context, olderThan time.Duration, dryRun bool) (CountResponse, error) {
	query := url.Values{}
	query.Set("olderThan", olderThan.String())
	query.Set("dryRun", strconv.FormatBool(dryRun))
	var resp CountResponse
	err := c.post(ctx, "/api/queue/clear-failed", query, &resp)
	return resp, err
}

// CleanupOrphans runs an orphan sweep.
func (c *Client) CleanupOrphans(ctx context.Context, dryRun bool) (OrphansResponse, error) {
	query := url.Values{}
	query.Set("dryRun", strconv.FormatBool(dryRun))
	var resp OrphansResponse
	err := c.post(ctx, "/api/orphans/cleanup", query, &resp)
	return resp, err
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.request(ctx, http.MethodGet, path, query, out)
}

func (c *Client) post(ctx context.Context, path string, query url.Values, out any) error {
	return c.request(ctx, http.MethodPost, path, query, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	return c.request(ctx, method, path, query, out)
}

func (c *Client) request(ctx context.Context, method, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) || strings.Contains(err.Error(), "connection refused") {
			return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr ErrorResponse
		if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("daemon returned %d", resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
