package simplestorage

import (
	"context"
	"log/slog"
	"time"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) AttachmentUploaded(ctx context.Context, attachment *Attachment) error {
	return nil
}

func (n *NoopEventSink) AttachmentDropped(ctx context.Context, attachment *Attachment) error {
	return nil
}

func (n *NoopEventSink) TemporaryUploaded(ctx context.Context, temporary *Temporary) error {
	return nil
}

func (n *NoopEventSink) TemporaryDropped(ctx context.Context, temporary *Temporary) error {
	return nil
}

// LoggingEventSink writes every event to a structured logger
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates an event sink logging at info level
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger.With("component", "events")}
}

func (l *LoggingEventSink) AttachmentUploaded(ctx context.Context, a *Attachment) error {
	l.logger.InfoContext(ctx, "attachment uploaded",
		"tenant_id", a.TenantID, "id", a.ID, "entity", a.EntityName, "owner_id", a.OwnerID, "file_name", a.FileName, "file_size", a.FileSize)
	return nil
}

func (l *LoggingEventSink) AttachmentDropped(ctx context.Context, a *Attachment) error {
	l.logger.InfoContext(ctx, "attachment dropped",
		"tenant_id", a.TenantID, "id", a.ID, "entity", a.EntityName, "owner_id", a.OwnerID, "file_name", a.FileName)
	return nil
}

func (l *LoggingEventSink) TemporaryUploaded(ctx context.Context, t *Temporary) error {
	l.logger.InfoContext(ctx, "temporary uploaded",
		"tenant_id", t.TenantID, "id", t.ID, "file_name", t.FileName, "file_size", t.FileSize, "expiry_date", t.ExpiryDate)
	return nil
}

func (l *LoggingEventSink) TemporaryDropped(ctx context.Context, t *Temporary) error {
	l.logger.InfoContext(ctx, "temporary dropped", "tenant_id", t.TenantID, "id", t.ID, "file_name", t.FileName)
	return nil
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, string, time.Duration) {}
