package simplestorage_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-storage/pkg/simplestorage"
	"github.com/tendant/simple-storage/pkg/simplestorage/repo/memory"
	memorystorage "github.com/tendant/simple-storage/pkg/simplestorage/storage/memory"
)

var testNow = time.Date(2026, 4, 10, 8, 30, 0, 0, time.UTC)

type fixture struct {
	svc             simplestorage.Service
	attachments     simplestorage.AttachmentRepository
	attachmentStore *memory.Store[*simplestorage.Attachment]
	temporaries     simplestorage.TemporaryRepository
	blobs           *memorystorage.Backend
	events          *recordingSink
	metrics         *recordingMetrics
}

func newFixture(t *testing.T, blobs simplestorage.BlobStore, repoOpts ...attachmentOption) *fixture {
	t.Helper()
	f := &fixture{
		attachmentStore: memory.NewAttachmentStore(),
		blobs:           memorystorage.New(),
		events:          &recordingSink{},
		metrics:         &recordingMetrics{},
	}
	if blobs == nil {
		blobs = f.blobs
	}
	repoOpts = append(repoOpts, simplestorage.WithRepositoryClock[*simplestorage.Attachment](fixedClock(testNow)))
	f.attachments = simplestorage.NewAttachmentRepository(f.attachmentStore, repoOpts...)
	f.temporaries = simplestorage.NewTemporaryRepository(memory.NewTemporaryStore(),
		simplestorage.WithRepositoryClock[*simplestorage.Temporary](fixedClock(testNow)))

	svc, err := simplestorage.New(
		simplestorage.WithAttachmentRepository(f.attachments),
		simplestorage.WithTemporaryRepository(f.temporaries),
		simplestorage.WithAttachmentBackend(simplestorage.NewAttachmentBackend("memory", blobs)),
		simplestorage.WithTemporaryBackend(simplestorage.NewTemporaryBackend("memory", blobs)),
		simplestorage.WithEventSink(f.events),
		simplestorage.WithMetrics(f.metrics),
		simplestorage.WithClock(fixedClock(testNow)),
	)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) upload(t *testing.T, tenantID uuid.UUID, entity string, ownerID uuid.UUID, fileName, body string) *simplestorage.Attachment {
	t.Helper()
	att, err := f.svc.UploadAttachment(context.Background(), simplestorage.UploadAttachmentRequest{
		TenantID:    tenantID,
		Entity:      entity,
		OwnerID:     ownerID,
		FileName:    fileName,
		ContentType: "application/pdf",
		Body:        strings.NewReader(body),
	})
	require.NoError(t, err)
	return att
}

func readAll(t *testing.T, d *simplestorage.Download) string {
	t.Helper()
	defer d.Body.Close()
	data, err := io.ReadAll(d.Body)
	require.NoError(t, err)
	return string(data)
}

type recordingSink struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (r *recordingSink) record(event string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingSink) AttachmentUploaded(_ context.Context, a *simplestorage.Attachment) error {
	return r.record("attachment uploaded " + a.FileName)
}

func (r *recordingSink) AttachmentDropped(_ context.Context, a *simplestorage.Attachment) error {
	return r.record("attachment dropped " + a.FileName)
}

func (r *recordingSink) TemporaryUploaded(_ context.Context, t *simplestorage.Temporary) error {
	return r.record("temporary uploaded " + t.FileName)
}

func (r *recordingSink) TemporaryDropped(_ context.Context, t *simplestorage.Temporary) error {
	return r.record("temporary dropped " + t.FileName)
}

type recordingMetrics struct {
	mu      sync.Mutex
	results map[string][]string
}

func (r *recordingMetrics) ObserveOperation(operation, result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = map[string][]string{}
	}
	r.results[operation] = append(r.results[operation], result)
}

func (r *recordingMetrics) get(operation string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results[operation]
}

// faultyBlobStore fails Delete for selected keys and can cancel a context
// once a Put has completed.
type faultyBlobStore struct {
	*memorystorage.Backend
	failDelete map[string]bool
	afterPut   func()
}

func (f *faultyBlobStore) Put(ctx context.Context, key, contentType string, r io.Reader) error {
	if err := f.Backend.Put(ctx, key, contentType, r); err != nil {
		return err
	}
	if f.afterPut != nil {
		f.afterPut()
	}
	return nil
}

func (f *faultyBlobStore) Delete(ctx context.Context, key string) error {
	if f.failDelete[key] {
		return errors.New("backend offline")
	}
	return f.Backend.Delete(ctx, key)
}

func TestServiceCreation(t *testing.T) {
	attachments := simplestorage.NewAttachmentRepository(memory.NewAttachmentStore())
	temporaries := simplestorage.NewTemporaryRepository(memory.NewTemporaryStore())
	blobs := memorystorage.New()

	complete := []simplestorage.Option{
		simplestorage.WithAttachmentRepository(attachments),
		simplestorage.WithTemporaryRepository(temporaries),
		simplestorage.WithAttachmentBackend(simplestorage.NewAttachmentBackend("memory", blobs)),
		simplestorage.WithTemporaryBackend(simplestorage.NewTemporaryBackend("memory", blobs)),
	}

	tests := []struct {
		name        string
		options     []simplestorage.Option
		expectError bool
	}{
		{name: "no options should fail", options: nil, expectError: true},
		{name: "missing temporary repository should fail", options: []simplestorage.Option{complete[0], complete[2], complete[3]}, expectError: true},
		{name: "missing backends should fail", options: complete[:2], expectError: true},
		{name: "complete options should succeed", options: complete, expectError: false},
		{name: "nil clock should fail", options: append(append([]simplestorage.Option{}, complete...), simplestorage.WithClock(nil)), expectError: true},
		{name: "zero ttl should fail", options: append(append([]simplestorage.Option{}, complete...), simplestorage.WithTemporaryTTL(0)), expectError: true},
		{name: "nil options are skipped", options: append(append([]simplestorage.Option{}, complete...), nil, simplestorage.WithEventSink(nil), simplestorage.WithMetrics(nil)), expectError: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := simplestorage.New(tt.options...)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestAttachment_UploadDownloadDrop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	tenantID, ownerID := uuid.New(), uuid.New()
	userID := uuid.New()

	att, err := f.svc.UploadAttachment(ctx, simplestorage.UploadAttachmentRequest{
		TenantID:    tenantID,
		UserID:      &userID,
		Entity:      "invoice",
		OwnerID:     ownerID,
		FileName:    "a.pdf",
		ContentType: "application/pdf",
		Body:        strings.NewReader("payload"),
	})
	require.NoError(t, err)
	assert.Equal(t, tenantID.String()+"/invoice/"+ownerID.String()+"/a.pdf", att.StoragePath)
	assert.Equal(t, int64(len("payload")), att.FileSize)
	require.NotNil(t, att.CreatorID)
	assert.Equal(t, userID, *att.CreatorID)

	d, err := f.svc.DownloadAttachment(ctx, tenantID, att.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", d.FileName)
	assert.Equal(t, "application/pdf", d.ContentType)
	assert.Equal(t, "payload", readAll(t, d))

	d, err = f.svc.DownloadAttachmentByFileName(ctx, tenantID, "invoice", ownerID, "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "payload", readAll(t, d))

	require.NoError(t, f.svc.DropAttachment(ctx, tenantID, &userID, att.ID))

	_, err = f.svc.DownloadAttachment(ctx, tenantID, att.ID)
	assert.True(t, simplestorage.IsNotFound(err))
	exists, err := f.blobs.Exists(ctx, att.StoragePath)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Equal(t, []string{"attachment uploaded a.pdf", "attachment dropped a.pdf"}, f.events.events)
	assert.Equal(t, []string{simplestorage.ResultOK}, f.metrics.get("upload_attachment"))
	assert.Equal(t, []string{simplestorage.ResultOK, simplestorage.ResultOK, simplestorage.ResultNotFound}, f.metrics.get("download_attachment"))
}

func TestAttachment_ReuploadOverwrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	tenantID, ownerID := uuid.New(), uuid.New()

	first := f.upload(t, tenantID, "invoice", ownerID, "a.pdf", "short")
	second := f.upload(t, tenantID, "invoice", ownerID, "a.pdf", "a much longer payload")

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.StoragePath, second.StoragePath)
	assert.Equal(t, int64(len("a much longer payload")), second.FileSize)

	items, err := f.svc.AttachmentsForOwner(ctx, tenantID, "invoice", ownerID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, second.FileSize, items[0].FileSize)

	d, err := f.svc.DownloadAttachment(ctx, tenantID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "a much longer payload", readAll(t, d))
	assert.Equal(t, 1, f.blobs.Len())
}

func TestAttachment_DefaultContentType(t *testing.T) {
	f := newFixture(t, nil)
	att, err := f.svc.UploadAttachment(context.Background(), simplestorage.UploadAttachmentRequest{
		TenantID: uuid.New(),
		Entity:   "invoice",
		OwnerID:  uuid.New(),
		FileName: "blob",
		Body:     strings.NewReader("x"),
	})
	require.NoError(t, err)
	assert.Equal(t, simplestorage.DefaultContentType, att.ContentType)

	contentType, ok := f.blobs.ContentType(att.StoragePath)
	require.True(t, ok)
	assert.Equal(t, simplestorage.DefaultContentType, contentType)
}

func TestAttachment_ConcurrentFirstUploadConflicts(t *testing.T) {
	ctx := context.Background()
	tenantID, ownerID := uuid.New(), uuid.New()

	// a competing writer commits the same natural key between lookup and insert
	var store *memory.Store[*simplestorage.Attachment]
	raced := false
	hook := simplestorage.HookFuncs[*simplestorage.Attachment]{
		OnBeforeSave: func(ctx context.Context, tenantID uuid.UUID, _ *uuid.UUID, _ string, _ simplestorage.Claims, value *simplestorage.Attachment, insert bool) error {
			if insert && !raced {
				raced = true
				winner := value.Clone()
				winner.ID = uuid.New()
				return store.Insert(ctx, winner)
			}
			return nil
		},
	}
	f := newFixture(t, nil, simplestorage.WithHook[*simplestorage.Attachment](hook))
	store = f.attachmentStore

	_, err := f.svc.UploadAttachment(ctx, simplestorage.UploadAttachmentRequest{
		TenantID: tenantID,
		Entity:   "invoice",
		OwnerID:  ownerID,
		FileName: "a.pdf",
		Body:     strings.NewReader("loser"),
	})
	assert.True(t, simplestorage.IsConflict(err), "got %v", err)
	assert.Equal(t, []string{simplestorage.ResultConflict}, f.metrics.get("upload_attachment"))

	items, err := f.svc.AttachmentsForOwner(ctx, tenantID, "invoice", ownerID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestAttachment_UploadValidation(t *testing.T) {
	f := newFixture(t, nil)
	tenantID, ownerID := uuid.New(), uuid.New()

	tests := []struct {
		name string
		req  simplestorage.UploadAttachmentRequest
	}{
		{"missing tenant", simplestorage.UploadAttachmentRequest{Entity: "invoice", OwnerID: ownerID, FileName: "a.pdf", Body: strings.NewReader("x")}},
		{"entity with separator", simplestorage.UploadAttachmentRequest{TenantID: tenantID, Entity: "in/voice", OwnerID: ownerID, FileName: "a.pdf", Body: strings.NewReader("x")}},
		{"missing owner", simplestorage.UploadAttachmentRequest{TenantID: tenantID, Entity: "invoice", FileName: "a.pdf", Body: strings.NewReader("x")}},
		{"traversal file name", simplestorage.UploadAttachmentRequest{TenantID: tenantID, Entity: "invoice", OwnerID: ownerID, FileName: "..", Body: strings.NewReader("x")}},
		{"missing body", simplestorage.UploadAttachmentRequest{TenantID: tenantID, Entity: "invoice", OwnerID: ownerID, FileName: "a.pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UploadAttachment(context.Background(), tt.req)
			assert.True(t, simplestorage.IsValidation(err), "got %v", err)
		})
	}
	assert.Zero(t, f.blobs.Len())
}

func TestAttachment_CancelledUploadSkipsSave(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	blobs := &faultyBlobStore{Backend: memorystorage.New(), afterPut: cancel}
	f := newFixture(t, blobs)
	tenantID, ownerID := uuid.New(), uuid.New()

	_, err := f.svc.UploadAttachment(ctx, simplestorage.UploadAttachmentRequest{
		TenantID: tenantID,
		Entity:   "invoice",
		OwnerID:  ownerID,
		FileName: "a.pdf",
		Body:     strings.NewReader("payload"),
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{simplestorage.ResultCanceled}, f.metrics.get("upload_attachment"))

	items, err := f.attachments.All(context.Background(), tenantID, simplestorage.PrimaryQuery, nil)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Empty(t, f.events.events)
}

func TestAttachment_ContentMissing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	tenantID := uuid.New()
	att := f.upload(t, tenantID, "invoice", uuid.New(), "a.pdf", "payload")

	require.NoError(t, f.blobs.Delete(ctx, att.StoragePath))

	_, err := f.svc.DownloadAttachment(ctx, tenantID, att.ID)
	assert.ErrorIs(t, err, simplestorage.ErrContentMissing)
	assert.True(t, simplestorage.IsNotFound(err))

	// the blob step is idempotent so the dangling record can still be dropped
	require.NoError(t, f.svc.DropAttachment(ctx, tenantID, nil, att.ID))
	err = f.svc.DropAttachment(ctx, tenantID, nil, att.ID)
	assert.True(t, simplestorage.IsNotFound(err))
}

func TestAttachment_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	tenantID, other := uuid.New(), uuid.New()
	att := f.upload(t, tenantID, "invoice", uuid.New(), "a.pdf", "payload")

	_, err := f.svc.DownloadAttachment(ctx, other, att.ID)
	assert.True(t, simplestorage.IsNotFound(err))

	err = f.svc.DropAttachment(ctx, other, nil, att.ID)
	assert.True(t, simplestorage.IsNotFound(err))

	_, err = f.svc.DownloadAttachment(ctx, tenantID, att.ID)
	assert.NoError(t, err)
}

func TestAttachment_DropRejectedByHook(t *testing.T) {
	ctx := context.Background()
	hook := simplestorage.HookFuncs[*simplestorage.Attachment]{
		OnRemovePreliminaryCheck: func(context.Context, uuid.UUID, *uuid.UUID, simplestorage.Claims, simplestorage.Params, *simplestorage.Attachment) (bool, []string, error) {
			return false, []string{"retention hold"}, nil
		},
	}
	f := newFixture(t, nil, simplestorage.WithHook[*simplestorage.Attachment](hook))
	tenantID := uuid.New()
	att := f.upload(t, tenantID, "invoice", uuid.New(), "a.pdf", "payload")

	err := f.svc.DropAttachment(ctx, tenantID, nil, att.ID)
	assert.ErrorIs(t, err, simplestorage.ErrRemoveRejected)
	var rejected *simplestorage.RemoveRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, []string{"retention hold"}, rejected.Messages)

	_, err = f.attachments.ByID(ctx, tenantID, simplestorage.PrimaryQuery, nil, att.ID)
	assert.NoError(t, err)
	assert.Equal(t, []string{simplestorage.ResultRejected}, f.metrics.get("drop_attachment"))
}

func TestAttachment_EventSinkFailureIsLogged(t *testing.T) {
	f := newFixture(t, nil)
	f.events.err = errors.New("sink offline")

	att := f.upload(t, uuid.New(), "invoice", uuid.New(), "a.pdf", "payload")
	assert.NotEqual(t, uuid.Nil, att.ID)
	assert.Len(t, f.events.events, 1)
}

func TestAttachment_BulkDrops(t *testing.T) {
	ctx := context.Background()
	tenantID, other := uuid.New(), uuid.New()
	owner1, owner2 := uuid.New(), uuid.New()

	setup := func(t *testing.T) *fixture {
		f := newFixture(t, nil)
		f.upload(t, tenantID, "invoice", owner1, "a.pdf", "1")
		f.upload(t, tenantID, "invoice", owner1, "b.pdf", "2")
		f.upload(t, tenantID, "invoice", owner2, "a.pdf", "3")
		f.upload(t, tenantID, "order", owner1, "a.pdf", "4")
		f.upload(t, other, "invoice", owner1, "a.pdf", "5")
		return f
	}
	count := func(t *testing.T, f *fixture, tenant uuid.UUID) int {
		items, err := f.attachments.All(ctx, tenant, simplestorage.PrimaryQuery, nil)
		require.NoError(t, err)
		return len(items)
	}

	t.Run("owner", func(t *testing.T) {
		f := setup(t)
		res, err := f.svc.DropAttachmentsForOwner(ctx, tenantID, nil, "invoice", owner1)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Dropped)
		assert.Zero(t, res.Failed)
		assert.Equal(t, 2, count(t, f, tenantID))
		assert.Equal(t, 3, f.blobs.Len())
	})

	t.Run("entity", func(t *testing.T) {
		f := setup(t)
		res, err := f.svc.DropAttachmentsForEntity(ctx, tenantID, nil, "invoice")
		require.NoError(t, err)
		assert.Equal(t, 3, res.Dropped)
		assert.Equal(t, 1, count(t, f, tenantID))
		assert.Equal(t, 1, count(t, f, other))
	})

	t.Run("tenant", func(t *testing.T) {
		f := setup(t)
		res, err := f.svc.DropAttachmentsForTenant(ctx, tenantID, nil)
		require.NoError(t, err)
		assert.Equal(t, 4, res.Dropped)
		assert.Zero(t, count(t, f, tenantID))
		assert.Equal(t, 1, count(t, f, other))
		assert.Equal(t, 1, f.blobs.Len())
	})

	t.Run("validation", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.DropAttachmentsForOwner(ctx, tenantID, nil, "invoice", uuid.Nil)
		assert.True(t, simplestorage.IsValidation(err))
		_, err = f.svc.DropAttachmentsForEntity(ctx, tenantID, nil, "")
		assert.True(t, simplestorage.IsValidation(err))
		_, err = f.svc.DropAttachmentsForTenant(ctx, uuid.Nil, nil)
		assert.True(t, simplestorage.IsValidation(err))
	})
}

func TestAttachment_BulkDropContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	tenantID, ownerID := uuid.New(), uuid.New()
	blobs := &faultyBlobStore{Backend: memorystorage.New(), failDelete: map[string]bool{}}
	f := newFixture(t, blobs)

	f.upload(t, tenantID, "invoice", ownerID, "a.pdf", "1")
	stuck := f.upload(t, tenantID, "invoice", ownerID, "b.pdf", "2")
	f.upload(t, tenantID, "invoice", ownerID, "c.pdf", "3")
	blobs.failDelete[stuck.StoragePath] = true

	res, err := f.svc.DropAttachmentsForOwner(ctx, tenantID, nil, "invoice", ownerID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Dropped)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], simplestorage.ErrBackendUnavailable)

	items, err := f.svc.AttachmentsForOwner(ctx, tenantID, "invoice", ownerID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, stuck.ID, items[0].ID)
}

func TestTemporary_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	tenantID := uuid.New()

	tmp, err := f.svc.UploadTemporary(ctx, simplestorage.UploadTemporaryRequest{
		TenantID:    tenantID,
		FileName:    "report.csv",
		ContentType: "text/csv",
		Body:        strings.NewReader("a,b\n1,2\n"),
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, tmp.ID)
	assert.Equal(t, simplestorage.TemporaryPath(tenantID, tmp.ID, "report.csv"), tmp.StoragePath)
	assert.True(t, testNow.Add(simplestorage.DefaultTemporaryTTL).Equal(tmp.ExpiryDate))

	d, err := f.svc.DownloadTemporary(ctx, tenantID, tmp.ID)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", d.ContentType)
	assert.Equal(t, "a,b\n1,2\n", readAll(t, d))

	require.NoError(t, f.svc.DropTemporary(ctx, tenantID, nil, tmp.ID))
	_, err = f.svc.DownloadTemporary(ctx, tenantID, tmp.ID)
	assert.True(t, simplestorage.IsNotFound(err))
	assert.Zero(t, f.blobs.Len())
}

func TestTemporary_ReuploadReplacesContent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	tenantID := uuid.New()
	expiry := testNow.Add(2 * time.Hour)

	first, err := f.svc.UploadTemporary(ctx, simplestorage.UploadTemporaryRequest{
		TenantID:   tenantID,
		FileName:   "draft.txt",
		ExpiryDate: expiry,
		Body:       strings.NewReader("v1"),
	})
	require.NoError(t, err)

	second, err := f.svc.UploadTemporary(ctx, simplestorage.UploadTemporaryRequest{
		TenantID: tenantID,
		ID:       first.ID,
		FileName: "final.txt",
		Body:     strings.NewReader("version two"),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, expiry.Equal(second.ExpiryDate), "existing expiry is kept")
	assert.Equal(t, int64(len("version two")), second.FileSize)

	exists, err := f.blobs.Exists(ctx, first.StoragePath)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 1, f.blobs.Len())
}

func TestTemporary_ExpiredAndPurge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	tenantID := uuid.New()

	expired, err := f.svc.UploadTemporary(ctx, simplestorage.UploadTemporaryRequest{
		TenantID:   tenantID,
		FileName:   "old.bin",
		ExpiryDate: testNow.Add(-time.Minute),
		Body:       strings.NewReader("old"),
	})
	require.NoError(t, err)
	_, err = f.svc.UploadTemporary(ctx, simplestorage.UploadTemporaryRequest{
		TenantID: tenantID,
		FileName: "fresh.bin",
		Body:     strings.NewReader("fresh"),
	})
	require.NoError(t, err)

	items, err := f.svc.ExpiredTemporaries(ctx, testNow)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, expired.ID, items[0].ID)

	require.NoError(t, f.svc.PurgeTemporary(ctx, items[0]))
	// purging again is a no-op for both the blob and the record
	require.NoError(t, f.svc.PurgeTemporary(ctx, items[0]))

	items, err = f.svc.ExpiredTemporaries(ctx, testNow)
	require.NoError(t, err)
	assert.Empty(t, items)

	err = f.svc.PurgeTemporary(ctx, nil)
	assert.True(t, simplestorage.IsValidation(err))
}

func TestResultLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, simplestorage.ResultOK},
		{&simplestorage.RecordError{Err: simplestorage.ErrNotFound}, simplestorage.ResultNotFound},
		{simplestorage.ErrContentMissing, simplestorage.ResultNotFound},
		{simplestorage.ErrConflict, simplestorage.ResultConflict},
		{&simplestorage.ValidationError{Op: "x", Problems: []string{"y"}}, simplestorage.ResultInvalid},
		{&simplestorage.RemoveRejectedError{}, simplestorage.ResultRejected},
		{context.DeadlineExceeded, simplestorage.ResultCanceled},
		{&simplestorage.StorageError{Err: errors.New("io")}, simplestorage.ResultError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, simplestorage.ResultLabel(tt.err), "%v", tt.err)
	}
}
