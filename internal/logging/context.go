package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldItemID is the standardized structured logging key for queue item identifiers.
	FieldItemID = "item_id"
	// FieldClientID is the standardized structured logging key for download client identifiers.
	FieldClientID = "client_id"
	// FieldDownloadID is the standardized structured logging key for client-native download identifiers.
	FieldDownloadID = "download_id"
	// FieldCorrelationID is the standardized structured logging key for poll/import correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType tags log lines with a machine-readable event classification.
	FieldEventType = "event_type"
	// FieldErrorHint carries a short operator-facing remediation hint.
	FieldErrorHint = "error_hint"
)

type contextKey string

const (
	ctxKeyItemID        contextKey = "item_id"
	ctxKeyClientID      contextKey = "client_id"
	ctxKeyCorrelationID contextKey = "correlation_id"
)

// WithItemID attaches a queue item identifier to the context.
func WithItemID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxKeyItemID, id)
}

// WithClientID attaches a download client identifier to the context.
func WithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyClientID, id)
}

// WithCorrelationID attaches a correlation identifier to the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyCorrelationID, id)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := ctx.Value(ctxKeyItemID).(int64); ok {
		fields = append(fields, slog.Int64(FieldItemID, id))
	}
	if id, ok := ctx.Value(ctxKeyClientID).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldClientID, id))
	}
	if id, ok := ctx.Value(ctxKeyCorrelationID).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldCorrelationID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
