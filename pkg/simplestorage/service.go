package simplestorage

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Service coordinates metadata records with their blob content.
type Service interface {
	// Attachment operations
	UploadAttachment(ctx context.Context, req UploadAttachmentRequest) (*Attachment, error)
	DownloadAttachment(ctx context.Context, tenantID, id uuid.UUID) (*Download, error)
	DownloadAttachmentByFileName(ctx context.Context, tenantID uuid.UUID, entity string, ownerID uuid.UUID, fileName string) (*Download, error)
	DropAttachment(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, id uuid.UUID) error
	DropAttachmentByFileName(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, entity string, ownerID uuid.UUID, fileName string) error
	AttachmentsForOwner(ctx context.Context, tenantID uuid.UUID, entity string, ownerID uuid.UUID) ([]*Attachment, error)

	// Bulk attachment drops, best effort per item
	DropAttachmentsForOwner(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, entity string, ownerID uuid.UUID) (*BulkResult, error)
	DropAttachmentsForEntity(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, entity string) (*BulkResult, error)
	DropAttachmentsForTenant(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID) (*BulkResult, error)

	// Temporary operations
	UploadTemporary(ctx context.Context, req UploadTemporaryRequest) (*Temporary, error)
	DownloadTemporary(ctx context.Context, tenantID, id uuid.UUID) (*Download, error)
	DropTemporary(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, id uuid.UUID) error

	// Expiry support, system initiated
	ExpiredTemporaries(ctx context.Context, now time.Time) ([]*Temporary, error)
	PurgeTemporary(ctx context.Context, temporary *Temporary) error
}

// UploadAttachmentRequest contains parameters for storing an attachment
type UploadAttachmentRequest struct {
	TenantID    uuid.UUID
	UserID      *uuid.UUID
	Entity      string
	OwnerID     uuid.UUID
	FileName    string
	ContentType string
	Body        io.Reader
}

// UploadTemporaryRequest contains parameters for storing a temporary.
// A nil ID creates a new temporary; a zero ExpiryDate applies the
// service's default time-to-live.
type UploadTemporaryRequest struct {
	TenantID    uuid.UUID
	UserID      *uuid.UUID
	ID          uuid.UUID
	FileName    string
	ContentType string
	ExpiryDate  time.Time
	Body        io.Reader
}

// Option configures the service
type Option func(*service) error

// WithAttachmentRepository sets the attachment metadata repository
func WithAttachmentRepository(repo AttachmentRepository) Option {
	return func(s *service) error {
		s.attachments = repo
		return nil
	}
}

// WithTemporaryRepository sets the temporary metadata repository
func WithTemporaryRepository(repo TemporaryRepository) Option {
	return func(s *service) error {
		s.temporaries = repo
		return nil
	}
}

// WithAttachmentBackend sets the attachment content backend
func WithAttachmentBackend(backend AttachmentBackend) Option {
	return func(s *service) error {
		s.attachmentBlobs = backend
		return nil
	}
}

// WithTemporaryBackend sets the temporary content backend
func WithTemporaryBackend(backend TemporaryBackend) Option {
	return func(s *service) error {
		s.temporaryBlobs = backend
		return nil
	}
}

// WithEventSink sets the event sink
func WithEventSink(sink EventSink) Option {
	return func(s *service) error {
		s.eventSink = sink
		return nil
	}
}

// WithMetrics sets the metrics observer
func WithMetrics(m Metrics) Option {
	return func(s *service) error {
		s.metrics = m
		return nil
	}
}

// WithClock overrides the clock used for expiry defaults
func WithClock(now func() time.Time) Option {
	return func(s *service) error {
		if now == nil {
			return errValidationOption("clock cannot be nil")
		}
		s.now = now
		return nil
	}
}

// WithTemporaryTTL sets the lifetime applied to temporaries uploaded without an expiry date
func WithTemporaryTTL(ttl time.Duration) Option {
	return func(s *service) error {
		if ttl <= 0 {
			return errValidationOption("temporary ttl must be positive")
		}
		s.temporaryTTL = ttl
		return nil
	}
}

func errValidationOption(problem string) error {
	return newValidationError("configure service", []string{problem})
}
