package simplestorage_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-storage/pkg/simplestorage"
	memorystorage "github.com/tendant/simple-storage/pkg/simplestorage/storage/memory"
)

type brokenBlobStore struct {
	*memorystorage.Backend
}

func (brokenBlobStore) Put(context.Context, string, string, io.Reader) error {
	return errors.New("disk full")
}

func (brokenBlobStore) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("connection reset")
}

func TestPaths(t *testing.T) {
	tenantID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	ownerID := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	id := uuid.MustParse("33333333-3333-3333-3333-333333333333")

	assert.Equal(t,
		"11111111-1111-1111-1111-111111111111/invoice/22222222-2222-2222-2222-222222222222/a.pdf",
		simplestorage.AttachmentPath(tenantID, "invoice", ownerID, "a.pdf"))
	assert.Equal(t,
		"11111111-1111-1111-1111-111111111111/temporary/33333333-3333-3333-3333-333333333333/a.pdf",
		simplestorage.TemporaryPath(tenantID, id, "a.pdf"))
}

func TestAttachmentBackend(t *testing.T) {
	ctx := context.Background()
	blobs := memorystorage.New()
	backend := simplestorage.NewAttachmentBackend("memory", blobs)
	tenantID, ownerID := uuid.New(), uuid.New()

	path, err := backend.Upload(ctx, tenantID, "invoice", ownerID, "a.pdf", "application/pdf", strings.NewReader("payload"))
	require.NoError(t, err)
	assert.Equal(t, simplestorage.AttachmentPath(tenantID, "invoice", ownerID, "a.pdf"), path)

	rc, found, err := backend.Download(ctx, tenantID, "invoice", ownerID, path)
	require.NoError(t, err)
	require.True(t, found)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "payload", string(data))

	require.NoError(t, backend.Drop(ctx, tenantID, "invoice", ownerID, path))
	require.NoError(t, backend.Drop(ctx, tenantID, "invoice", ownerID, path))

	rc, found, err = backend.Download(ctx, tenantID, "invoice", ownerID, path)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, rc)
}

func TestAttachmentBackend_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	backend := simplestorage.NewAttachmentBackend("memory", memorystorage.New())
	tenantID, ownerID := uuid.New(), uuid.New()

	uploads := []struct {
		name     string
		tenantID uuid.UUID
		entity   string
		ownerID  uuid.UUID
		fileName string
	}{
		{"nil tenant", uuid.Nil, "invoice", ownerID, "a.pdf"},
		{"empty entity", tenantID, "", ownerID, "a.pdf"},
		{"nil owner", tenantID, "invoice", uuid.Nil, "a.pdf"},
		{"nested file name", tenantID, "invoice", ownerID, "../a.pdf"},
		{"backslash file name", tenantID, "invoice", ownerID, `a\b.pdf`},
	}
	for _, tt := range uploads {
		t.Run(tt.name, func(t *testing.T) {
			_, err := backend.Upload(ctx, tt.tenantID, tt.entity, tt.ownerID, tt.fileName, "", strings.NewReader("x"))
			assert.True(t, simplestorage.IsValidation(err), "got %v", err)
		})
	}

	other := uuid.New()
	paths := map[string]string{
		"empty":         "",
		"other tenant":  simplestorage.AttachmentPath(other, "invoice", ownerID, "a.pdf"),
		"parent escape": tenantID.String() + "/../" + other.String() + "/invoice/a.pdf",
		"empty segment": tenantID.String() + "//a.pdf",
		"bare prefix":   tenantID.String(),
	}
	for name, path := range paths {
		t.Run(name, func(t *testing.T) {
			_, _, err := backend.Download(ctx, tenantID, "invoice", ownerID, path)
			assert.True(t, simplestorage.IsValidation(err), "download %q: %v", path, err)
			err = backend.Drop(ctx, tenantID, "invoice", ownerID, path)
			assert.True(t, simplestorage.IsValidation(err), "drop %q: %v", path, err)
		})
	}
}

func TestTemporaryBackend(t *testing.T) {
	ctx := context.Background()
	backend := simplestorage.NewTemporaryBackend("memory", memorystorage.New())
	tenantID, id := uuid.New(), uuid.New()

	path, err := backend.Upload(ctx, tenantID, id, "draft.txt", "text/plain", strings.NewReader("draft"))
	require.NoError(t, err)
	assert.Equal(t, simplestorage.TemporaryPath(tenantID, id, "draft.txt"), path)

	_, _, err = backend.Download(ctx, uuid.New(), path)
	assert.True(t, simplestorage.IsValidation(err))

	rc, found, err := backend.Download(ctx, tenantID, path)
	require.NoError(t, err)
	require.True(t, found)
	require.NoError(t, rc.Close())

	require.NoError(t, backend.Drop(ctx, tenantID, path))
	_, found, err = backend.Download(ctx, tenantID, path)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = backend.Upload(ctx, tenantID, uuid.Nil, "draft.txt", "text/plain", strings.NewReader("draft"))
	assert.True(t, simplestorage.IsValidation(err))
}

func TestBackend_StorageErrors(t *testing.T) {
	ctx := context.Background()
	backend := simplestorage.NewAttachmentBackend("broken", brokenBlobStore{memorystorage.New()})
	tenantID, ownerID := uuid.New(), uuid.New()

	_, err := backend.Upload(ctx, tenantID, "invoice", ownerID, "a.pdf", "application/pdf", strings.NewReader("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, simplestorage.ErrBackendUnavailable)
	var storageErr *simplestorage.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "broken", storageErr.Backend)
	assert.Equal(t, "upload", storageErr.Op)

	_, _, err = backend.Download(ctx, tenantID, "invoice", ownerID, simplestorage.AttachmentPath(tenantID, "invoice", ownerID, "a.pdf"))
	assert.ErrorIs(t, err, simplestorage.ErrBackendUnavailable)
	assert.False(t, simplestorage.IsNotFound(err))
}
