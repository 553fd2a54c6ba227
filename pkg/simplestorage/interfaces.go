package simplestorage

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence driver beneath a Repository. Implementations
// enforce the unique keys of the record kind and report violations as
// ErrConflict.
type Store[T Record] interface {
	// Get returns ErrNotFound when no record exists for (tenantID, id).
	Get(ctx context.Context, tenantID, id uuid.UUID) (T, error)
	// List returns matching records in insertion order.
	List(ctx context.Context, filter Filter) ([]T, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	// Insert assigns the surrogate Seq of value.
	Insert(ctx context.Context, value T) error
	// Update returns ErrNotFound when the record does not exist.
	Update(ctx context.Context, value T) error
	// Delete is a no-op for a missing record.
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// MetadataStore is the tenant-scoped record contract.
type MetadataStore[T Record] interface {
	All(ctx context.Context, tenantID uuid.UUID, queryName string, claims Claims) ([]T, error)
	Query(ctx context.Context, tenantID uuid.UUID, queryName string, claims Claims, params Params) ([]T, error)
	Count(ctx context.Context, tenantID uuid.UUID, queryName string, claims Claims, params Params) (int64, error)
	ByID(ctx context.Context, tenantID uuid.UUID, queryName string, claims Claims, id uuid.UUID) (T, error)
	New(ctx context.Context, tenantID uuid.UUID, queryName string, claims Claims) (T, error)
	NewWithParams(ctx context.Context, tenantID uuid.UUID, queryName string, claims Claims, params Params) (T, error)
	Save(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, queryName string, claims Claims, value T) error
	Remove(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, claims Claims, params Params) (*RemoveResult[T], error)
	Import(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, queryName string, claims Claims, r io.Reader, authorize func(T) bool) error
	Export(ctx context.Context, tenantID uuid.UUID, queryName string, claims Claims, params Params) (*ExportResult, error)
}

// AttachmentRepository adds the natural-key lookups of attachments.
type AttachmentRepository interface {
	MetadataStore[*Attachment]
	AllByEntityAndOwner(ctx context.Context, tenantID uuid.UUID, entity string, ownerID uuid.UUID) ([]*Attachment, error)
	// SingleByEntityOwnerAndFileName returns ErrNotFound when absent.
	SingleByEntityOwnerAndFileName(ctx context.Context, tenantID uuid.UUID, entity string, ownerID uuid.UUID, fileName string) (*Attachment, error)
	AllByEntity(ctx context.Context, tenantID uuid.UUID, entity string) ([]*Attachment, error)
}

// TemporaryRepository adds cross-tenant expiry discovery.
type TemporaryRepository interface {
	MetadataStore[*Temporary]
	// AllExpired returns temporaries of every tenant whose expiry date is not
	// after now, grouped by tenant.
	AllExpired(ctx context.Context, now time.Time) ([]*Temporary, error)
}

// BlobStore is a flat key/value content store.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) error
	// Get returns ErrObjectNotFound for a missing key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete is a no-op for a missing key.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// AttachmentBackend stores attachment content under derived paths.
type AttachmentBackend interface {
	Upload(ctx context.Context, tenantID uuid.UUID, entity string, ownerID uuid.UUID, fileName, contentType string, r io.Reader) (string, error)
	// Download reports found=false, without error, when the object is absent.
	Download(ctx context.Context, tenantID uuid.UUID, entity string, ownerID uuid.UUID, storagePath string) (io.ReadCloser, bool, error)
	Drop(ctx context.Context, tenantID uuid.UUID, entity string, ownerID uuid.UUID, storagePath string) error
}

// TemporaryBackend stores temporary content under derived paths.
type TemporaryBackend interface {
	Upload(ctx context.Context, tenantID, id uuid.UUID, fileName, contentType string, r io.Reader) (string, error)
	Download(ctx context.Context, tenantID uuid.UUID, storagePath string) (io.ReadCloser, bool, error)
	Drop(ctx context.Context, tenantID uuid.UUID, storagePath string) error
}

// EventSink receives lifecycle events after metadata has been committed.
type EventSink interface {
	AttachmentUploaded(ctx context.Context, attachment *Attachment) error
	AttachmentDropped(ctx context.Context, attachment *Attachment) error
	TemporaryUploaded(ctx context.Context, temporary *Temporary) error
	TemporaryDropped(ctx context.Context, temporary *Temporary) error
}

// Metrics receives operation outcomes. result is one of the Result* labels.
type Metrics interface {
	ObserveOperation(operation, result string, elapsed time.Duration)
}
