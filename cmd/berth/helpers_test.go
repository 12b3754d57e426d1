package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"berth/internal/api"
)

func TestParsePositiveID(t *testing.T) {
	if _, err := parsePositiveID("0"); err == nil {
		t.Fatal("expected error for zero id")
	}
	if _, err := parsePositiveID("abc"); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
	id, err := parsePositiveID(" 42 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id != 42 {
		t.Fatalf("expected 42, got %d", id)
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatSize(0); got != "-" {
		t.Fatalf("formatSize(0) = %q", got)
	}
	if got := formatSize(1024 * 1024); got != "1.0 MiB" {
		t.Fatalf("formatSize(1MiB) = %q", got)
	}
	if got := formatRate(2048); !strings.HasSuffix(got, "/s") {
		t.Fatalf("formatRate missing suffix: %q", got)
	}
	if got := formatProgress(0.425); got != "42.5%" {
		t.Fatalf("formatProgress = %q", got)
	}
	if got := formatETA(0); got != "-" {
		t.Fatalf("formatETA(0) = %q", got)
	}
	if got := formatETA(90); got != "1m30s" {
		t.Fatalf("formatETA(90) = %q", got)
	}
	if got := formatETA(7200); got != "2h00m" {
		t.Fatalf("formatETA(7200) = %q", got)
	}
}

func newRenderCommand(buf *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	return cmd
}

func TestRenderQueueEmpty(t *testing.T) {
	var buf bytes.Buffer
	renderQueue(newRenderCommand(&buf), api.QueueResponse{})
	if !strings.Contains(buf.String(), "Queue is empty") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestRenderQueueTable(t *testing.T) {
	var buf bytes.Buffer
	renderQueue(newRenderCommand(&buf), api.QueueResponse{
		Items: []api.QueueItem{{
			ID:           7,
			Title:        "Example Movie 2024",
			ClientID:     "qbit",
			Status:       "downloading",
			Progress:     0.5,
			SizeBytes:    1 << 30,
			DownloadRate: 1 << 20,
			ETASeconds:   512,
		}},
		Total: 1,
	})
	output := buf.String()
	for _, want := range []string{"Example Movie 2024", "qbit", "downloading", "50.0%", "1 item(s)"} {
		if !strings.Contains(output, want) {
			t.Fatalf("output missing %q:\n%s", want, output)
		}
	}
}

func TestRenderStatus(t *testing.T) {
	var buf bytes.Buffer
	renderStatus(newRenderCommand(&buf), api.DaemonStatus{
		Running:     true,
		PID:         1234,
		QueueTotal:  3,
		QueueCounts: map[string]int64{"downloading": 2, "failed": 1},
		Clients:     []api.ClientHealth{{ClientID: "qbit", Health: "healthy"}},
	})
	output := buf.String()
	for _, want := range []string{"yes (pid 1234)", "3 items", "downloading=2 failed=1", "qbit", "healthy"} {
		if !strings.Contains(output, want) {
			t.Fatalf("output missing %q:\n%s", want, output)
		}
	}
}

func TestRenderHistory(t *testing.T) {
	var buf bytes.Buffer
	renderHistory(newRenderCommand(&buf), api.HistoryResponse{
		Records: []api.HistoryRecord{{
			EventType:    "imported",
			Title:        "Example Movie 2024",
			ClientID:     "qbit",
			ImportedPath: "/library/movies/Example Movie (2024)/example.mkv",
			CreatedAt:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		}},
	})
	output := buf.String()
	if !strings.Contains(output, "imported") || !strings.Contains(output, "Example Movie 2024") {
		t.Fatalf("unexpected output:\n%s", output)
	}
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"status", "queue", "history", "poll", "cleanup-orphans", "config", "test-notify"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == nil || cmd.Name() != name {
			t.Fatalf("expected subcommand %q, got %v (%v)", name, cmd, err)
		}
	}
}
