package simplestorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultTemporaryTTL is applied to temporaries uploaded without an expiry date.
const DefaultTemporaryTTL = 24 * time.Hour

// DefaultContentType is used when an upload does not name one.
const DefaultContentType = "application/octet-stream"

// Operation result labels reported to Metrics.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultConflict = "conflict"
	ResultInvalid  = "invalid"
	ResultCanceled = "canceled"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// ResultLabel classifies err for metrics.
func ResultLabel(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, ErrNotFound):
		return ResultNotFound
	case errors.Is(err, ErrConflict):
		return ResultConflict
	case errors.Is(err, ErrValidation):
		return ResultInvalid
	case errors.Is(err, ErrRemoveRejected):
		return ResultRejected
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ResultCanceled
	default:
		return ResultError
	}
}

// service is the main implementation of the Service interface
type service struct {
	attachments     AttachmentRepository
	temporaries     TemporaryRepository
	attachmentBlobs AttachmentBackend
	temporaryBlobs  TemporaryBackend
	eventSink       EventSink
	metrics         Metrics
	logger          *slog.Logger
	now             func() time.Time
	temporaryTTL    time.Duration
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		eventSink:    NewNoopEventSink(),
		metrics:      noopMetrics{},
		logger:       slog.Default(),
		now:          time.Now,
		temporaryTTL: DefaultTemporaryTTL,
	}

	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(s); err != nil {
			return nil, err
		}
	}

	if s.attachments == nil {
		return nil, errors.New("attachment repository is required")
	}
	if s.temporaries == nil {
		return nil, errors.New("temporary repository is required")
	}
	if s.attachmentBlobs == nil {
		return nil, errors.New("attachment backend is required")
	}
	if s.temporaryBlobs == nil {
		return nil, errors.New("temporary backend is required")
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	s.logger = s.logger.With("component", "coordinator")

	return s, nil
}

func (s *service) observe(op string, start time.Time, err *error) {
	s.metrics.ObserveOperation(op, ResultLabel(*err), time.Since(start))
}

// emit logs event sink failures. Events follow committed metadata and never fail the operation.
func (s *service) emit(ctx context.Context, event string, err error) {
	if err != nil {
		s.logger.WarnContext(ctx, "event sink failed", "event", event, "err", err)
	}
}

// Attachment operations

func (s *service) UploadAttachment(ctx context.Context, req UploadAttachmentRequest) (att *Attachment, err error) {
	defer s.observe("upload_attachment", time.Now(), &err)

	if err = validateAttachmentUpload(req); err != nil {
		return nil, err
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	body := &countingReader{r: req.Body}
	storagePath, err := s.attachmentBlobs.Upload(ctx, req.TenantID, req.Entity, req.OwnerID, req.FileName, contentType, body)
	if err != nil {
		return nil, err
	}
	if err = ctx.Err(); err != nil {
		s.logger.WarnContext(ctx, "upload cancelled after content write, metadata not saved",
			"tenant_id", req.TenantID, "storage_path", storagePath)
		return nil, err
	}

	att, err = s.attachments.SingleByEntityOwnerAndFileName(ctx, req.TenantID, req.Entity, req.OwnerID, req.FileName)
	if IsNotFound(err) {
		att, err = s.attachments.New(ctx, req.TenantID, PrimaryQuery, nil)
	}
	if err != nil {
		return nil, err
	}

	att.EntityName = req.Entity
	att.OwnerID = req.OwnerID
	att.FileName = req.FileName
	att.ContentType = contentType
	att.FileSize = body.n
	att.StoragePath = storagePath

	if err = s.attachments.Save(ctx, req.TenantID, req.UserID, PrimaryQuery, nil, att); err != nil {
		return nil, err
	}

	s.emit(ctx, "attachment uploaded", s.eventSink.AttachmentUploaded(ctx, att))
	s.logger.InfoContext(ctx, "attachment uploaded",
		"tenant_id", att.TenantID, "id", att.ID, "entity", att.EntityName, "owner_id", att.OwnerID, "file_size", att.FileSize)
	return att, nil
}

func (s *service) DownloadAttachment(ctx context.Context, tenantID, id uuid.UUID) (d *Download, err error) {
	defer s.observe("download_attachment", time.Now(), &err)

	att, err := s.attachments.ByID(ctx, tenantID, PrimaryQuery, nil, id)
	if err != nil {
		return nil, err
	}
	return s.openAttachment(ctx, att)
}

func (s *service) DownloadAttachmentByFileName(ctx context.Context, tenantID uuid.UUID, entity string, ownerID uuid.UUID, fileName string) (d *Download, err error) {
	defer s.observe("download_attachment", time.Now(), &err)

	att, err := s.attachments.SingleByEntityOwnerAndFileName(ctx, tenantID, entity, ownerID, fileName)
	if err != nil {
		return nil, err
	}
	return s.openAttachment(ctx, att)
}

func (s *service) openAttachment(ctx context.Context, att *Attachment) (*Download, error) {
	if att.StoragePath == "" {
		return nil, &RecordError{Kind: "attachment", TenantID: att.TenantID, ID: att.ID, Op: "download", Err: ErrNotFound}
	}
	rc, found, err := s.attachmentBlobs.Download(ctx, att.TenantID, att.EntityName, att.OwnerID, att.StoragePath)
	if err != nil {
		return nil, err
	}
	if !found {
		s.logger.WarnContext(ctx, "attachment content missing",
			"tenant_id", att.TenantID, "id", att.ID, "storage_path", att.StoragePath)
		return nil, &RecordError{Kind: "attachment", TenantID: att.TenantID, ID: att.ID, Op: "download", Err: ErrContentMissing}
	}
	return &Download{Body: rc, FileName: att.FileName, ContentType: att.ContentType, FileSize: att.FileSize}, nil
}

func (s *service) DropAttachment(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, id uuid.UUID) (err error) {
	defer s.observe("drop_attachment", time.Now(), &err)

	att, err := s.attachments.ByID(ctx, tenantID, PrimaryQuery, nil, id)
	if err != nil {
		return err
	}
	return s.dropAttachment(ctx, userID, att)
}

func (s *service) DropAttachmentByFileName(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, entity string, ownerID uuid.UUID, fileName string) (err error) {
	defer s.observe("drop_attachment", time.Now(), &err)

	att, err := s.attachments.SingleByEntityOwnerAndFileName(ctx, tenantID, entity, ownerID, fileName)
	if err != nil {
		return err
	}
	return s.dropAttachment(ctx, userID, att)
}

// dropAttachment removes content before metadata.
func (s *service) dropAttachment(ctx context.Context, userID *uuid.UUID, att *Attachment) error {
	if att.StoragePath != "" {
		if err := s.attachmentBlobs.Drop(ctx, att.TenantID, att.EntityName, att.OwnerID, att.StoragePath); err != nil {
			return err
		}
	}
	res, err := s.attachments.Remove(ctx, att.TenantID, userID, nil, Params{ParamID: att.ID})
	if err != nil {
		return err
	}
	if !res.OK {
		return &RemoveRejectedError{ID: att.ID, Messages: res.Messages}
	}

	s.emit(ctx, "attachment dropped", s.eventSink.AttachmentDropped(ctx, att))
	s.logger.InfoContext(ctx, "attachment dropped", "tenant_id", att.TenantID, "id", att.ID)
	return nil
}

func (s *service) AttachmentsForOwner(ctx context.Context, tenantID uuid.UUID, entity string, ownerID uuid.UUID) ([]*Attachment, error) {
	if err := validateOwnerScope(tenantID, entity, ownerID); err != nil {
		return nil, err
	}
	return s.attachments.AllByEntityAndOwner(ctx, tenantID, entity, ownerID)
}

func (s *service) DropAttachmentsForOwner(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, entity string, ownerID uuid.UUID) (res *BulkResult, err error) {
	defer s.observe("drop_attachments_for_owner", time.Now(), &err)

	if err = validateOwnerScope(tenantID, entity, ownerID); err != nil {
		return nil, err
	}
	items, err := s.attachments.AllByEntityAndOwner(ctx, tenantID, entity, ownerID)
	if err != nil {
		return nil, err
	}
	return s.dropAttachments(ctx, "owner", userID, items)
}

func (s *service) DropAttachmentsForEntity(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, entity string) (res *BulkResult, err error) {
	defer s.observe("drop_attachments_for_entity", time.Now(), &err)

	items, err := s.attachments.AllByEntity(ctx, tenantID, entity)
	if err != nil {
		return nil, err
	}
	return s.dropAttachments(ctx, "entity", userID, items)
}

func (s *service) DropAttachmentsForTenant(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID) (res *BulkResult, err error) {
	defer s.observe("drop_attachments_for_tenant", time.Now(), &err)

	items, err := s.attachments.All(ctx, tenantID, PrimaryQuery, nil)
	if err != nil {
		return nil, err
	}
	return s.dropAttachments(ctx, "tenant", userID, items)
}

// dropAttachments applies the single drop sequence to each item. A failing
// item is recorded and the remaining items are still attempted.
func (s *service) dropAttachments(ctx context.Context, scope string, userID *uuid.UUID, items []*Attachment) (*BulkResult, error) {
	result := &BulkResult{}
	for _, att := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.dropAttachment(ctx, userID, att); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err)
			s.logger.ErrorContext(ctx, "bulk drop item failed",
				"scope", scope, "tenant_id", att.TenantID, "id", att.ID, "err", err)
			continue
		}
		result.Dropped++
	}
	return result, nil
}

// Temporary operations

func (s *service) UploadTemporary(ctx context.Context, req UploadTemporaryRequest) (tmp *Temporary, err error) {
	defer s.observe("upload_temporary", time.Now(), &err)

	if err = validateTemporaryUpload(req); err != nil {
		return nil, err
	}
	id := req.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	body := &countingReader{r: req.Body}
	storagePath, err := s.temporaryBlobs.Upload(ctx, req.TenantID, id, req.FileName, contentType, body)
	if err != nil {
		return nil, err
	}
	if err = ctx.Err(); err != nil {
		s.logger.WarnContext(ctx, "upload cancelled after content write, metadata not saved",
			"tenant_id", req.TenantID, "storage_path", storagePath)
		return nil, err
	}

	tmp, err = s.temporaries.ByID(ctx, req.TenantID, PrimaryQuery, nil, id)
	if IsNotFound(err) {
		tmp, err = s.temporaries.New(ctx, req.TenantID, PrimaryQuery, nil)
		if err == nil {
			tmp.ID = id
		}
	}
	if err != nil {
		return nil, err
	}

	previous := tmp.StoragePath
	tmp.FileName = req.FileName
	tmp.ContentType = contentType
	tmp.FileSize = body.n
	tmp.StoragePath = storagePath
	switch {
	case !req.ExpiryDate.IsZero():
		tmp.ExpiryDate = req.ExpiryDate.UTC()
	case tmp.ExpiryDate.IsZero():
		tmp.ExpiryDate = s.now().UTC().Add(s.temporaryTTL)
	}

	if err = s.temporaries.Save(ctx, req.TenantID, req.UserID, PrimaryQuery, nil, tmp); err != nil {
		return nil, err
	}

	// a re-upload under another file name leaves the old object unreferenced
	if previous != "" && previous != storagePath {
		if dropErr := s.temporaryBlobs.Drop(ctx, req.TenantID, previous); dropErr != nil {
			s.logger.WarnContext(ctx, "previous temporary content not dropped", "storage_path", previous, "err", dropErr)
		}
	}

	s.emit(ctx, "temporary uploaded", s.eventSink.TemporaryUploaded(ctx, tmp))
	s.logger.InfoContext(ctx, "temporary uploaded",
		"tenant_id", tmp.TenantID, "id", tmp.ID, "file_size", tmp.FileSize, "expiry_date", tmp.ExpiryDate)
	return tmp, nil
}

func (s *service) DownloadTemporary(ctx context.Context, tenantID, id uuid.UUID) (d *Download, err error) {
	defer s.observe("download_temporary", time.Now(), &err)

	tmp, err := s.temporaries.ByID(ctx, tenantID, PrimaryQuery, nil, id)
	if err != nil {
		return nil, err
	}
	if tmp.StoragePath == "" {
		return nil, &RecordError{Kind: "temporary", TenantID: tenantID, ID: id, Op: "download", Err: ErrNotFound}
	}
	rc, found, err := s.temporaryBlobs.Download(ctx, tenantID, tmp.StoragePath)
	if err != nil {
		return nil, err
	}
	if !found {
		s.logger.WarnContext(ctx, "temporary content missing",
			"tenant_id", tenantID, "id", id, "storage_path", tmp.StoragePath)
		return nil, &RecordError{Kind: "temporary", TenantID: tenantID, ID: id, Op: "download", Err: ErrContentMissing}
	}
	return &Download{Body: rc, FileName: tmp.FileName, ContentType: tmp.ContentType, FileSize: tmp.FileSize}, nil
}

func (s *service) DropTemporary(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, id uuid.UUID) (err error) {
	defer s.observe("drop_temporary", time.Now(), &err)

	tmp, err := s.temporaries.ByID(ctx, tenantID, PrimaryQuery, nil, id)
	if err != nil {
		return err
	}
	return s.dropTemporary(ctx, userID, tmp)
}

func (s *service) ExpiredTemporaries(ctx context.Context, now time.Time) ([]*Temporary, error) {
	return s.temporaries.AllExpired(ctx, now)
}

// PurgeTemporary drops an expired temporary on behalf of the system.
func (s *service) PurgeTemporary(ctx context.Context, tmp *Temporary) (err error) {
	defer s.observe("purge_temporary", time.Now(), &err)

	if tmp == nil {
		return newValidationError("purge temporary", []string{"temporary is required"})
	}
	return s.dropTemporary(ctx, nil, tmp)
}

func (s *service) dropTemporary(ctx context.Context, userID *uuid.UUID, tmp *Temporary) error {
	if tmp.StoragePath != "" {
		if err := s.temporaryBlobs.Drop(ctx, tmp.TenantID, tmp.StoragePath); err != nil {
			return err
		}
	}
	res, err := s.temporaries.Remove(ctx, tmp.TenantID, userID, nil, Params{ParamID: tmp.ID})
	if err != nil {
		return err
	}
	if !res.OK {
		return &RemoveRejectedError{ID: tmp.ID, Messages: res.Messages}
	}

	s.emit(ctx, "temporary dropped", s.eventSink.TemporaryDropped(ctx, tmp))
	s.logger.InfoContext(ctx, "temporary dropped", "tenant_id", tmp.TenantID, "id", tmp.ID)
	return nil
}

// Request validation, run before any backend call

func validateAttachmentUpload(req UploadAttachmentRequest) error {
	var problems []string
	if req.TenantID == uuid.Nil {
		problems = append(problems, "tenant id is required")
	}
	if !isPathSegment(req.Entity) {
		problems = append(problems, fmt.Sprintf("entity %q is not a valid path segment", req.Entity))
	}
	if req.OwnerID == uuid.Nil {
		problems = append(problems, "owner id is required")
	}
	if !isPathSegment(req.FileName) {
		problems = append(problems, fmt.Sprintf("file name %q is not a valid path segment", req.FileName))
	}
	if req.Body == nil {
		problems = append(problems, "body is required")
	}
	return newValidationError("upload attachment", problems)
}

func validateTemporaryUpload(req UploadTemporaryRequest) error {
	var problems []string
	if req.TenantID == uuid.Nil {
		problems = append(problems, "tenant id is required")
	}
	if !isPathSegment(req.FileName) {
		problems = append(problems, fmt.Sprintf("file name %q is not a valid path segment", req.FileName))
	}
	if req.Body == nil {
		problems = append(problems, "body is required")
	}
	return newValidationError("upload temporary", problems)
}

func validateOwnerScope(tenantID uuid.UUID, entity string, ownerID uuid.UUID) error {
	var problems []string
	if tenantID == uuid.Nil {
		problems = append(problems, "tenant id is required")
	}
	if entity == "" {
		problems = append(problems, "entity is required")
	}
	if ownerID == uuid.Nil {
		problems = append(problems, "owner id is required")
	}
	return newValidationError("resolve owner", problems)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
