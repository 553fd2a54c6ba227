package simplestorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// AttachmentPath derives the blob key of an attachment. Re-uploading the
// same file name for the same owner yields the same key.
func AttachmentPath(tenantID uuid.UUID, entity string, ownerID uuid.UUID, fileName string) string {
	return fmt.Sprintf("%s/%s/%s/%s", tenantID, entity, ownerID, fileName)
}

// TemporaryPath derives the blob key of a temporary.
func TemporaryPath(tenantID, id uuid.UUID, fileName string) string {
	return fmt.Sprintf("%s/temporary/%s/%s", tenantID, id, fileName)
}

// checkTenantPath rejects storage paths outside the tenant's prefix.
func checkTenantPath(op string, tenantID uuid.UUID, storagePath string) error {
	var problems []string
	if storagePath == "" {
		problems = append(problems, "storage path is required")
	} else if !strings.HasPrefix(storagePath, tenantID.String()+"/") {
		problems = append(problems, fmt.Sprintf("storage path %q is outside tenant %s", storagePath, tenantID))
	} else {
		for _, segment := range strings.Split(storagePath, "/")[1:] {
			if !isPathSegment(segment) {
				problems = append(problems, fmt.Sprintf("storage path %q is not canonical", storagePath))
				break
			}
		}
	}
	return newValidationError(op, problems)
}

type attachmentBackend struct {
	name  string
	store BlobStore
}

// NewAttachmentBackend derives attachment paths on top of store. name
// identifies the backend in errors.
func NewAttachmentBackend(name string, store BlobStore) AttachmentBackend {
	return &attachmentBackend{name: name, store: store}
}

func (b *attachmentBackend) Upload(ctx context.Context, tenantID uuid.UUID, entity string, ownerID uuid.UUID, fileName, contentType string, r io.Reader) (string, error) {
	var problems []string
	if tenantID == uuid.Nil {
		problems = append(problems, "tenant id is required")
	}
	if !isPathSegment(entity) {
		problems = append(problems, fmt.Sprintf("entity %q is not a valid path segment", entity))
	}
	if ownerID == uuid.Nil {
		problems = append(problems, "owner id is required")
	}
	if !isPathSegment(fileName) {
		problems = append(problems, fmt.Sprintf("file name %q is not a valid path segment", fileName))
	}
	if err := newValidationError("upload attachment", problems); err != nil {
		return "", err
	}

	key := AttachmentPath(tenantID, entity, ownerID, fileName)
	if err := b.store.Put(ctx, key, contentType, r); err != nil {
		return "", &StorageError{Backend: b.name, Key: key, Op: "upload", Err: err}
	}
	return key, nil
}

func (b *attachmentBackend) Download(ctx context.Context, tenantID uuid.UUID, entity string, ownerID uuid.UUID, storagePath string) (io.ReadCloser, bool, error) {
	if err := checkTenantPath("download attachment", tenantID, storagePath); err != nil {
		return nil, false, err
	}
	return download(ctx, b.name, b.store, storagePath)
}

func (b *attachmentBackend) Drop(ctx context.Context, tenantID uuid.UUID, entity string, ownerID uuid.UUID, storagePath string) error {
	if err := checkTenantPath("drop attachment", tenantID, storagePath); err != nil {
		return err
	}
	return drop(ctx, b.name, b.store, storagePath)
}

type temporaryBackend struct {
	name  string
	store BlobStore
}

// NewTemporaryBackend derives temporary paths on top of store.
func NewTemporaryBackend(name string, store BlobStore) TemporaryBackend {
	return &temporaryBackend{name: name, store: store}
}

func (b *temporaryBackend) Upload(ctx context.Context, tenantID, id uuid.UUID, fileName, contentType string, r io.Reader) (string, error) {
	var problems []string
	if tenantID == uuid.Nil {
		problems = append(problems, "tenant id is required")
	}
	if id == uuid.Nil {
		problems = append(problems, "id is required")
	}
	if !isPathSegment(fileName) {
		problems = append(problems, fmt.Sprintf("file name %q is not a valid path segment", fileName))
	}
	if err := newValidationError("upload temporary", problems); err != nil {
		return "", err
	}

	key := TemporaryPath(tenantID, id, fileName)
	if err := b.store.Put(ctx, key, contentType, r); err != nil {
		return "", &StorageError{Backend: b.name, Key: key, Op: "upload", Err: err}
	}
	return key, nil
}

func (b *temporaryBackend) Download(ctx context.Context, tenantID uuid.UUID, storagePath string) (io.ReadCloser, bool, error) {
	if err := checkTenantPath("download temporary", tenantID, storagePath); err != nil {
		return nil, false, err
	}
	return download(ctx, b.name, b.store, storagePath)
}

func (b *temporaryBackend) Drop(ctx context.Context, tenantID uuid.UUID, storagePath string) error {
	if err := checkTenantPath("drop temporary", tenantID, storagePath); err != nil {
		return err
	}
	return drop(ctx, b.name, b.store, storagePath)
}

func download(ctx context.Context, name string, store BlobStore, key string) (io.ReadCloser, bool, error) {
	rc, err := store.Get(ctx, key)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StorageError{Backend: name, Key: key, Op: "download", Err: err}
	}
	return rc, true, nil
}

func drop(ctx context.Context, name string, store BlobStore, key string) error {
	if err := store.Delete(ctx, key); err != nil && !errors.Is(err, ErrObjectNotFound) {
		return &StorageError{Backend: name, Key: key, Op: "drop", Err: err}
	}
	return nil
}
