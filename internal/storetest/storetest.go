// Package storetest holds behaviour checks shared by every
// simplestorage.Store driver.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-storage/pkg/simplestorage"
)

// stamp is truncated to the precision every driver keeps.
func stamp() *time.Time {
	t := time.Now().UTC().Truncate(time.Millisecond)
	return &t
}

// NewAttachment returns a valid attachment for tenantID.
func NewAttachment(tenantID uuid.UUID, entity string, ownerID uuid.UUID, fileName string) *simplestorage.Attachment {
	userID := uuid.New()
	return &simplestorage.Attachment{
		Entity: simplestorage.Entity{
			ID:              uuid.New(),
			TenantID:        tenantID,
			CreatorID:       &userID,
			CreateStamp:     stamp(),
			LastChangerID:   &userID,
			LastChangeStamp: stamp(),
		},
		EntityName:  entity,
		OwnerID:     ownerID,
		FileName:    fileName,
		ContentType: "application/pdf",
		FileSize:    128,
		StoragePath: simplestorage.AttachmentPath(tenantID, entity, ownerID, fileName),
	}
}

// NewTemporary returns a valid temporary for tenantID expiring at expiry.
func NewTemporary(tenantID uuid.UUID, expiry time.Time) *simplestorage.Temporary {
	id := uuid.New()
	return &simplestorage.Temporary{
		Entity: simplestorage.Entity{
			ID:          id,
			TenantID:    tenantID,
			CreateStamp: stamp(),
		},
		FileName:    "upload.bin",
		ContentType: "application/octet-stream",
		FileSize:    64,
		StoragePath: simplestorage.TemporaryPath(tenantID, id, "upload.bin"),
		ExpiryDate:  expiry.UTC().Truncate(time.Millisecond),
	}
}

// RunAttachmentStore checks an attachment store. newStore must return an
// empty store for every call.
func RunAttachmentStore(t *testing.T, newStore func(t *testing.T) simplestorage.Store[*simplestorage.Attachment]) {
	ctx := context.Background()

	t.Run("InsertGet", func(t *testing.T) {
		store := newStore(t)
		a := NewAttachment(uuid.New(), "invoice", uuid.New(), "a.pdf")

		require.NoError(t, store.Insert(ctx, a))
		assert.Positive(t, a.Seq)

		got, err := store.Get(ctx, a.TenantID, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)
		assert.Equal(t, a.TenantID, got.TenantID)
		assert.Equal(t, a.Seq, got.Seq)
		assert.Equal(t, "invoice", got.EntityName)
		assert.Equal(t, a.OwnerID, got.OwnerID)
		assert.Equal(t, "a.pdf", got.FileName)
		assert.Equal(t, "application/pdf", got.ContentType)
		assert.Equal(t, int64(128), got.FileSize)
		assert.Equal(t, a.StoragePath, got.StoragePath)
		require.NotNil(t, got.CreatorID)
		assert.Equal(t, *a.CreatorID, *got.CreatorID)
		require.NotNil(t, got.CreateStamp)
		assert.WithinDuration(t, *a.CreateStamp, *got.CreateStamp, time.Millisecond)
	})

	t.Run("GetMissing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Get(ctx, uuid.New(), uuid.New())
		assert.ErrorIs(t, err, simplestorage.ErrNotFound)
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		store := newStore(t)
		a := NewAttachment(uuid.New(), "invoice", uuid.New(), "a.pdf")
		require.NoError(t, store.Insert(ctx, a))

		_, err := store.Get(ctx, uuid.New(), a.ID)
		assert.ErrorIs(t, err, simplestorage.ErrNotFound)
	})

	t.Run("DuplicateID", func(t *testing.T) {
		store := newStore(t)
		a := NewAttachment(uuid.New(), "invoice", uuid.New(), "a.pdf")
		require.NoError(t, store.Insert(ctx, a))

		b := NewAttachment(a.TenantID, "invoice", uuid.New(), "b.pdf")
		b.ID = a.ID
		assert.ErrorIs(t, store.Insert(ctx, b), simplestorage.ErrConflict)
	})

	t.Run("DuplicateNaturalKey", func(t *testing.T) {
		store := newStore(t)
		tenantID, ownerID := uuid.New(), uuid.New()
		require.NoError(t, store.Insert(ctx, NewAttachment(tenantID, "invoice", ownerID, "a.pdf")))

		err := store.Insert(ctx, NewAttachment(tenantID, "invoice", ownerID, "a.pdf"))
		assert.ErrorIs(t, err, simplestorage.ErrConflict)

		// the same natural key in another tenant is independent
		require.NoError(t, store.Insert(ctx, NewAttachment(uuid.New(), "invoice", ownerID, "a.pdf")))

		n, err := store.Count(ctx, simplestorage.Filter{TenantID: tenantID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("Update", func(t *testing.T) {
		store := newStore(t)
		a := NewAttachment(uuid.New(), "invoice", uuid.New(), "a.pdf")
		require.NoError(t, store.Insert(ctx, a))
		seq := a.Seq

		a.FileSize = 4096
		a.ContentType = "text/plain"
		require.NoError(t, store.Update(ctx, a))
		assert.Equal(t, seq, a.Seq)

		got, err := store.Get(ctx, a.TenantID, a.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(4096), got.FileSize)
		assert.Equal(t, "text/plain", got.ContentType)
		assert.Equal(t, seq, got.Seq)
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		store := newStore(t)
		a := NewAttachment(uuid.New(), "invoice", uuid.New(), "a.pdf")
		assert.ErrorIs(t, store.Update(ctx, a), simplestorage.ErrNotFound)
	})

	t.Run("UpdateIntoTakenKey", func(t *testing.T) {
		store := newStore(t)
		tenantID, ownerID := uuid.New(), uuid.New()
		a := NewAttachment(tenantID, "invoice", ownerID, "a.pdf")
		b := NewAttachment(tenantID, "invoice", ownerID, "b.pdf")
		require.NoError(t, store.Insert(ctx, a))
		require.NoError(t, store.Insert(ctx, b))

		b.FileName = "a.pdf"
		assert.ErrorIs(t, store.Update(ctx, b), simplestorage.ErrConflict)

		got, err := store.Get(ctx, tenantID, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "b.pdf", got.FileName)
	})

	t.Run("ListFilters", func(t *testing.T) {
		store := newStore(t)
		tenantID, owner1, owner2 := uuid.New(), uuid.New(), uuid.New()
		a1 := NewAttachment(tenantID, "invoice", owner1, "a.pdf")
		a2 := NewAttachment(tenantID, "invoice", owner1, "b.pdf")
		a3 := NewAttachment(tenantID, "invoice", owner2, "a.pdf")
		a4 := NewAttachment(tenantID, "order", owner1, "a.pdf")
		other := NewAttachment(uuid.New(), "invoice", owner1, "a.pdf")
		for _, a := range []*simplestorage.Attachment{a1, a2, a3, a4, other} {
			require.NoError(t, store.Insert(ctx, a))
		}

		ids := func(items []*simplestorage.Attachment) []uuid.UUID {
			var out []uuid.UUID
			for _, item := range items {
				out = append(out, item.ID)
			}
			return out
		}

		all, err := store.List(ctx, simplestorage.Filter{TenantID: tenantID})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{a1.ID, a2.ID, a3.ID, a4.ID}, ids(all))

		byEntity, err := store.List(ctx, simplestorage.Filter{TenantID: tenantID, EntityName: "invoice"})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{a1.ID, a2.ID, a3.ID}, ids(byEntity))

		byOwner, err := store.List(ctx, simplestorage.Filter{TenantID: tenantID, EntityName: "invoice", OwnerID: owner1})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{a1.ID, a2.ID}, ids(byOwner))

		byName, err := store.List(ctx, simplestorage.Filter{TenantID: tenantID, EntityName: "invoice", OwnerID: owner1, FileName: "b.pdf"})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{a2.ID}, ids(byName))

		byIDs, err := store.List(ctx, simplestorage.Filter{TenantID: tenantID, IDs: []uuid.UUID{a3.ID, a4.ID, other.ID}})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{a3.ID, a4.ID}, ids(byIDs))

		everyTenant, err := store.List(ctx, simplestorage.Filter{})
		require.NoError(t, err)
		assert.Len(t, everyTenant, 5)

		n, err := store.Count(ctx, simplestorage.Filter{TenantID: tenantID, OwnerID: owner1})
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		store := newStore(t)
		a := NewAttachment(uuid.New(), "invoice", uuid.New(), "a.pdf")
		require.NoError(t, store.Insert(ctx, a))

		require.NoError(t, store.Delete(ctx, a.TenantID, a.ID))
		require.NoError(t, store.Delete(ctx, a.TenantID, a.ID))

		_, err := store.Get(ctx, a.TenantID, a.ID)
		assert.ErrorIs(t, err, simplestorage.ErrNotFound)

		// the natural key is free again
		again := NewAttachment(a.TenantID, a.EntityName, a.OwnerID, a.FileName)
		require.NoError(t, store.Insert(ctx, again))
	})
}

// RunTemporaryStore checks a temporary store.
func RunTemporaryStore(t *testing.T, newStore func(t *testing.T) simplestorage.Store[*simplestorage.Temporary]) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("InsertGet", func(t *testing.T) {
		store := newStore(t)
		tmp := NewTemporary(uuid.New(), now.Add(time.Hour))
		require.NoError(t, store.Insert(ctx, tmp))
		assert.Positive(t, tmp.Seq)

		got, err := store.Get(ctx, tmp.TenantID, tmp.ID)
		require.NoError(t, err)
		assert.Equal(t, tmp.ID, got.ID)
		assert.Equal(t, tmp.FileName, got.FileName)
		assert.Equal(t, tmp.StoragePath, got.StoragePath)
		assert.WithinDuration(t, tmp.ExpiryDate, got.ExpiryDate, time.Millisecond)
		assert.Nil(t, got.CreatorID)
	})

	t.Run("DuplicateID", func(t *testing.T) {
		store := newStore(t)
		tmp := NewTemporary(uuid.New(), now)
		require.NoError(t, store.Insert(ctx, tmp))

		dup := NewTemporary(tmp.TenantID, now)
		dup.ID = tmp.ID
		assert.ErrorIs(t, store.Insert(ctx, dup), simplestorage.ErrConflict)
	})

	t.Run("UpdateExpiry", func(t *testing.T) {
		store := newStore(t)
		tmp := NewTemporary(uuid.New(), now)
		require.NoError(t, store.Insert(ctx, tmp))

		tmp.ExpiryDate = now.Add(48 * time.Hour)
		require.NoError(t, store.Update(ctx, tmp))

		got, err := store.Get(ctx, tmp.TenantID, tmp.ID)
		require.NoError(t, err)
		assert.WithinDuration(t, now.Add(48*time.Hour), got.ExpiryDate, time.Millisecond)
	})

	t.Run("FarFutureExpiry", func(t *testing.T) {
		store := newStore(t)
		expiry := time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC)
		tmp := NewTemporary(uuid.New(), expiry)
		require.NoError(t, store.Insert(ctx, tmp))

		got, err := store.Get(ctx, tmp.TenantID, tmp.ID)
		require.NoError(t, err)
		assert.True(t, expiry.Equal(got.ExpiryDate), "expiry read back as %s", got.ExpiryDate)

		items, err := store.List(ctx, simplestorage.Filter{ExpiresBefore: now})
		require.NoError(t, err)
		assert.Empty(t, items)

		items, err = store.List(ctx, simplestorage.Filter{ExpiresBefore: expiry})
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("ExpiresBefore", func(t *testing.T) {
		store := newStore(t)
		var expired []uuid.UUID
		for i := 0; i < 3; i++ {
			tenantID := uuid.New()
			past := NewTemporary(tenantID, now.Add(-time.Minute))
			exact := NewTemporary(tenantID, now)
			future := NewTemporary(tenantID, now.Add(time.Minute))
			for _, tmp := range []*simplestorage.Temporary{past, exact, future} {
				require.NoError(t, store.Insert(ctx, tmp))
			}
			expired = append(expired, past.ID, exact.ID)
		}

		items, err := store.List(ctx, simplestorage.Filter{ExpiresBefore: now})
		require.NoError(t, err)
		var got []uuid.UUID
		for _, item := range items {
			got = append(got, item.ID)
		}
		assert.ElementsMatch(t, expired, got)

		n, err := store.Count(ctx, simplestorage.Filter{ExpiresBefore: now})
		require.NoError(t, err)
		assert.Equal(t, int64(6), n)
	})

	t.Run("Delete", func(t *testing.T) {
		store := newStore(t)
		tmp := NewTemporary(uuid.New(), now)
		require.NoError(t, store.Insert(ctx, tmp))
		require.NoError(t, store.Delete(ctx, tmp.TenantID, tmp.ID))
		require.NoError(t, store.Delete(ctx, tmp.TenantID, tmp.ID))

		n, err := store.Count(ctx, simplestorage.Filter{TenantID: tmp.TenantID})
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
