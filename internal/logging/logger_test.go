package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleHandlerOrdersIdentityFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(&consoleHandler{mu: &sync.Mutex{}, writer: &buf, level: lvl})

	logger.Info("poll cycle complete",
		String("detail", "x"),
		String(FieldComponent, "reconciler"),
		Int64(FieldItemID, 42),
	)

	line := buf.String()
	componentIdx := strings.Index(line, "component=reconciler")
	itemIdx := strings.Index(line, "item_id=42")
	detailIdx := strings.Index(line, "detail=x")
	if componentIdx < 0 || itemIdx < 0 || detailIdx < 0 {
		t.Fatalf("missing fields in output: %q", line)
	}
	if !(componentIdx < itemIdx && itemIdx < detailIdx) {
		t.Fatalf("identity fields not ordered first: %q", line)
	}
}

func TestWithContextAugmentsLogger(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(&consoleHandler{mu: &sync.Mutex{}, writer: &buf, level: lvl})

	ctx := WithItemID(context.Background(), 7)
	ctx = WithClientID(ctx, "qbittorrent-main")
	WithContext(ctx, logger).Info("matched snapshot")

	line := buf.String()
	if !strings.Contains(line, "item_id=7") || !strings.Contains(line, "client_id=qbittorrent-main") {
		t.Fatalf("context fields missing: %q", line)
	}
}

func TestWithContextNilLogger(t *testing.T) {
	logger := WithContext(context.Background(), nil)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	logger.Info("should not panic")
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	for _, input := range []string{"", "verbose", "INFO"} {
		if got := parseLevel(input); got != slog.LevelInfo {
			t.Fatalf("parseLevel(%q) = %v, want info", input, got)
		}
	}
	if got := parseLevel("debug"); got != slog.LevelDebug {
		t.Fatalf("parseLevel(debug) = %v", got)
	}
}
