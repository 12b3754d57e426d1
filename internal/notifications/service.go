package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"berth/internal/config"
)

const userAgent = "Berth/0.1.0"

// Service defines the notification surface the daemon components use.
type Service interface {
	NotifyGrabbed(ctx context.Context, title, clientID string) error
	NotifyImported(ctx context.Context, title, path string, sizeBytes int64) error
	NotifyImportFailed(ctx context.Context, title, reason string) error
	NotifyDownloadRemoved(ctx context.Context, title, reason string) error
	NotifyQueueDrained(ctx context.Context) error
	NotifyClientUnhealthy(ctx context.Context, clientID string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		sendImports:  cfg.Notifications.Imports,
		sendFailures: cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	sendImports  bool
	sendFailures bool
}

func (n *ntfyService) NotifyGrabbed(ctx context.Context, title, clientID string) error {
	if !n.sendImports {
		return nil
	}
	data := payload{
		title:   "Berth - Grabbed",
		message: fmt.Sprintf("Sent to %s: %s", strings.TrimSpace(clientID), strings.TrimSpace(title)),
		tags:    []string{"berth", "grab"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyImported(ctx context.Context, title, path string, sizeBytes int64) error {
	if !n.sendImports {
		return nil
	}
	message := fmt.Sprintf("Imported: %s", strings.TrimSpace(title))
	if sizeBytes > 0 {
		message = fmt.Sprintf("%s (%s)", message, humanize.IBytes(uint64(sizeBytes)))
	}
	if path = strings.TrimSpace(path); path != "" {
		message += "\n" + path
	}
	data := payload{
		title:   "Berth - Imported",
		message: message,
		tags:    []string{"berth", "import", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyImportFailed(ctx context.Context, title, reason string) error {
	if !n.sendFailures {
		return nil
	}
	data := payload{
		title:    "Berth - Import Failed",
		message:  fmt.Sprintf("Failed: %s\n%s", strings.TrimSpace(title), strings.TrimSpace(reason)),
		tags:     []string{"berth", "import", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDownloadRemoved(ctx context.Context, title, reason string) error {
	if !n.sendFailures {
		return nil
	}
	data := payload{
		title:   "Berth - Download Removed",
		message: fmt.Sprintf("Removed: %s\n%s", strings.TrimSpace(title), strings.TrimSpace(reason)),
		tags:    []string{"berth", "removed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueDrained(ctx context.Context) error {
	if !n.sendImports {
		return nil
	}
	data := payload{
		title:   "Berth - Queue Drained",
		message: "All tracked downloads are imported",
		tags:    []string{"berth", "queue", "idle"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyClientUnhealthy(ctx context.Context, clientID string) error {
	if !n.sendFailures {
		return nil
	}
	data := payload{
		title:    "Berth - Client Unreachable",
		message:  fmt.Sprintf("Download client %s is failing connectivity checks", strings.TrimSpace(clientID)),
		tags:     []string{"berth", "client", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Berth - Test",
		message:  "Notification system test",
		tags:     []string{"berth", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyGrabbed(context.Context, string, string) error          { return nil }
func (noopService) NotifyImported(context.Context, string, string, int64) error { return nil }
func (noopService) NotifyImportFailed(context.Context, string, string) error    { return nil }
func (noopService) NotifyDownloadRemoved(context.Context, string, string) error { return nil }
func (noopService) NotifyQueueDrained(context.Context) error                    { return nil }
func (noopService) NotifyClientUnhealthy(context.Context, string) error         { return nil }
func (noopService) TestNotification(context.Context) error                      { return nil }
