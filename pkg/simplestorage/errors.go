package simplestorage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrNotFound indicates a metadata record was not found
	ErrNotFound = errors.New("record not found")

	// ErrContentMissing indicates the record exists but its content is gone from the blob backend
	ErrContentMissing = fmt.Errorf("%w: content missing from blob backend", ErrNotFound)

	// ErrConflict indicates a uniqueness violation while saving a record
	ErrConflict = errors.New("record conflicts with an existing record")

	// ErrValidation indicates a record or request failed validation
	ErrValidation = errors.New("validation failed")

	// ErrBackendUnavailable indicates a blob backend I/O failure
	ErrBackendUnavailable = errors.New("blob backend unavailable")

	// ErrObjectNotFound is returned by BlobStore.Get for a missing key
	ErrObjectNotFound = errors.New("object not found")

	// ErrRemoveRejected indicates a hook vetoed the removal of a record
	ErrRemoveRejected = errors.New("remove rejected")
)

// RecordError represents an error related to a metadata record operation
type RecordError struct {
	Kind     string
	TenantID uuid.UUID
	ID       uuid.UUID
	Op       string
	Err      error
}

func (e *RecordError) Error() string {
	if e.ID == uuid.Nil {
		return fmt.Sprintf("%s operation %s failed in tenant %s: %v", e.Kind, e.Op, e.TenantID, e.Err)
	}
	return fmt.Sprintf("%s operation %s failed for %s in tenant %s: %v", e.Kind, e.Op, e.ID, e.TenantID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// StorageError represents a blob backend failure. It matches both
// ErrBackendUnavailable and the underlying cause.
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrBackendUnavailable, e.Err}
}

// ValidationError lists the problems found before any store or backend call.
type ValidationError struct {
	Op       string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, ErrValidation, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(op string, problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Op: op, Problems: problems}
}

// RemoveRejectedError carries the messages of a vetoed removal.
type RemoveRejectedError struct {
	ID       uuid.UUID
	Messages []string
}

func (e *RemoveRejectedError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("remove of %s rejected", e.ID)
	}
	return fmt.Sprintf("remove of %s rejected: %s", e.ID, strings.Join(e.Messages, "; "))
}

func (e *RemoveRejectedError) Unwrap() error {
	return ErrRemoveRejected
}

// IsNotFound reports whether err means the record or its content is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err is a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
