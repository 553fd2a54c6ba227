package simplestorage

import (
	"io"
	"slices"
	"time"

	"github.com/google/uuid"
)

// PrimaryQuery is the query name used by the Service for its own lookups.
const PrimaryQuery = "primary"

// ParamID is the params key carrying one id or a set of ids.
const ParamID = "id"

// Claims are the caller's identity claims, passed through to hooks and
// extensions untouched.
type Claims map[string]any

// Params are caller-supplied query or remove parameters.
type Params map[string]any

// Record is implemented by every record kind managed by a Repository.
type Record interface {
	Header() *Entity
	Validate() error
}

// Entity is the header shared by every record. Tenant and audit fields are
// owned by the repository and excluded from export payloads.
type Entity struct {
	ID              uuid.UUID  `json:"id"`
	TenantID        uuid.UUID  `json:"-"`
	Seq             int64      `json:"-"`
	CreatorID       *uuid.UUID `json:"-"`
	CreateStamp     *time.Time `json:"-"`
	LastChangerID   *uuid.UUID `json:"-"`
	LastChangeStamp *time.Time `json:"-"`
}

// Header returns the entity header itself.
func (e *Entity) Header() *Entity {
	return e
}

// Attachment is a permanent file bound to a business entity instance.
type Attachment struct {
	Entity
	EntityName  string    `json:"entity" validate:"required,pathsegment"`
	OwnerID     uuid.UUID `json:"ownerId"`
	FileName    string    `json:"fileName" validate:"required,pathsegment"`
	ContentType string    `json:"contentType" validate:"required"`
	FileSize    int64     `json:"fileSize" validate:"gte=0"`
	StoragePath string    `json:"storagePath"`
}

// Validate checks the attachment's required fields.
func (a *Attachment) Validate() error {
	problems := structProblems(a)
	if a.OwnerID == uuid.Nil {
		problems = append(problems, "OwnerID is required")
	}
	return newValidationError("validate attachment", problems)
}

// Clone returns a copy of the attachment.
func (a *Attachment) Clone() *Attachment {
	c := *a
	return &c
}

// Temporary is a time-boxed file that is purged after ExpiryDate.
type Temporary struct {
	Entity
	FileName    string    `json:"fileName" validate:"required,pathsegment"`
	ContentType string    `json:"contentType" validate:"required"`
	FileSize    int64     `json:"fileSize" validate:"gte=0"`
	StoragePath string    `json:"storagePath"`
	ExpiryDate  time.Time `json:"expiryDate"`
}

// Validate checks the temporary's required fields.
func (t *Temporary) Validate() error {
	problems := structProblems(t)
	if t.ExpiryDate.IsZero() {
		problems = append(problems, "ExpiryDate is required")
	}
	return newValidationError("validate temporary", problems)
}

// Clone returns a copy of the temporary.
func (t *Temporary) Clone() *Temporary {
	c := *t
	return &c
}

// Expired reports whether the temporary is eligible for purge at now.
func (t *Temporary) Expired(now time.Time) bool {
	return !t.ExpiryDate.After(now)
}

// Filter selects records in a Store. Zero-valued fields do not constrain the
// result. A nil TenantID matches every tenant. Entity, OwnerID and FileName
// only apply to attachments; ExpiresBefore only applies to temporaries.
type Filter struct {
	TenantID      uuid.UUID
	IDs           []uuid.UUID
	EntityName    string
	OwnerID       uuid.UUID
	FileName      string
	ExpiresBefore time.Time
}

// Matches reports whether r satisfies the filter.
func (f Filter) Matches(r Record) bool {
	h := r.Header()
	if f.TenantID != uuid.Nil && h.TenantID != f.TenantID {
		return false
	}
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, h.ID) {
		return false
	}
	switch v := r.(type) {
	case *Attachment:
		if f.EntityName != "" && v.EntityName != f.EntityName {
			return false
		}
		if f.OwnerID != uuid.Nil && v.OwnerID != f.OwnerID {
			return false
		}
		if f.FileName != "" && v.FileName != f.FileName {
			return false
		}
	case *Temporary:
		if !f.ExpiresBefore.IsZero() && !v.Expired(f.ExpiresBefore) {
			return false
		}
	}
	return true
}

// RemoveResult reports the outcome of Repository.Remove. Value is nil when
// the id did not resolve to a record.
type RemoveResult[T Record] struct {
	OK       bool
	Messages []string
	Value    T
}

// ExportResult is a serialized query result.
type ExportResult struct {
	FileName  string
	MediaType string
	Data      []byte
}

// Download is content ready for delivery. Callers must close Body.
type Download struct {
	Body        io.ReadCloser
	FileName    string
	ContentType string
	FileSize    int64
}

// BulkResult summarizes a best-effort bulk drop.
type BulkResult struct {
	Dropped int
	Failed  int
	Errors  []error
}
