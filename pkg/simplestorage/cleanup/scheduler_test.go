package cleanup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-storage/pkg/simplestorage"
	"github.com/tendant/simple-storage/pkg/simplestorage/repo/memory"
	memorystorage "github.com/tendant/simple-storage/pkg/simplestorage/storage/memory"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// flakyBlobStore fails the first Delete of every key listed in failOnce.
type flakyBlobStore struct {
	simplestorage.BlobStore

	mu       sync.Mutex
	failOnce map[string]bool
}

func (f *flakyBlobStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	fail := f.failOnce[key]
	delete(f.failOnce, key)
	f.mu.Unlock()

	if fail {
		return errors.New("injected delete failure")
	}
	return f.BlobStore.Delete(ctx, key)
}

type fixture struct {
	svc   simplestorage.Service
	blobs *memorystorage.Backend
	flaky *flakyBlobStore
	repo  simplestorage.TemporaryRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	blobs := memorystorage.New()
	flaky := &flakyBlobStore{BlobStore: blobs, failOnce: map[string]bool{}}
	temporaries := simplestorage.NewTemporaryRepository(memory.NewTemporaryStore())

	svc, err := simplestorage.New(
		simplestorage.WithAttachmentRepository(simplestorage.NewAttachmentRepository(memory.NewAttachmentStore())),
		simplestorage.WithTemporaryRepository(temporaries),
		simplestorage.WithAttachmentBackend(simplestorage.NewAttachmentBackend("memory", blobs)),
		simplestorage.WithTemporaryBackend(simplestorage.NewTemporaryBackend("memory", flaky)),
		simplestorage.WithClock(func() time.Time { return testNow }),
		simplestorage.WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	return &fixture{svc: svc, blobs: blobs, flaky: flaky, repo: temporaries}
}

// seed uploads perTenant temporaries for each tenant; the first of each
// tenant is already expired.
func (f *fixture) seed(t *testing.T, tenants, perTenant int) ([]uuid.UUID, []*simplestorage.Temporary) {
	t.Helper()
	ctx := context.Background()

	var tenantIDs []uuid.UUID
	var expired []*simplestorage.Temporary
	for i := 0; i < tenants; i++ {
		tenantID := uuid.New()
		tenantIDs = append(tenantIDs, tenantID)
		for j := 0; j < perTenant; j++ {
			expiry := testNow.Add(time.Hour)
			if j == 0 {
				expiry = testNow.Add(-time.Minute)
			}
			tmp, err := f.svc.UploadTemporary(ctx, simplestorage.UploadTemporaryRequest{
				TenantID:    tenantID,
				FileName:    fmt.Sprintf("file-%d.txt", j),
				ContentType: "text/plain",
				ExpiryDate:  expiry,
				Body:        strings.NewReader(fmt.Sprintf("tenant %d item %d", i, j)),
			})
			require.NoError(t, err)
			if j == 0 {
				expired = append(expired, tmp)
			}
		}
	}
	return tenantIDs, expired
}

func (f *fixture) remaining(t *testing.T, tenantIDs []uuid.UUID) int {
	t.Helper()
	total := 0
	for _, tenantID := range tenantIDs {
		items, err := f.repo.All(context.Background(), tenantID, simplestorage.PrimaryQuery, nil)
		require.NoError(t, err)
		total += len(items)
	}
	return total
}

func TestScheduler_RunOncePurgesExactlyExpired(t *testing.T) {
	f := newFixture(t)
	tenantIDs, expired := f.seed(t, 4, 10)

	found, err := f.svc.ExpiredTemporaries(context.Background(), testNow)
	require.NoError(t, err)
	assert.Len(t, found, 4)

	s, err := New(f.svc, WithClock(func() time.Time { return testNow }), WithLogger(quietLogger()))
	require.NoError(t, err)

	result, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, result.Expired)
	assert.Equal(t, 4, result.Purged)
	assert.Equal(t, 0, result.Failed)
	assert.False(t, result.Skipped)

	assert.Equal(t, 36, f.remaining(t, tenantIDs))
	assert.Equal(t, 36, f.blobs.Len())
	for _, tmp := range expired {
		exists, err := f.blobs.Exists(context.Background(), tmp.StoragePath)
		require.NoError(t, err)
		assert.False(t, exists)
	}

	// nothing left to do
	result, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Expired)
}

func TestScheduler_ConvergesUnderInjectedFailures(t *testing.T) {
	f := newFixture(t)
	tenantIDs, expired := f.seed(t, 4, 10)

	f.flaky.failOnce[expired[1].StoragePath] = true
	f.flaky.failOnce[expired[3].StoragePath] = true

	rec := &countingRecorder{}
	s, err := New(f.svc, WithClock(func() time.Time { return testNow }), WithLogger(quietLogger()), WithRecorder(rec))
	require.NoError(t, err)

	result, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, result.Expired)
	assert.Equal(t, 2, result.Purged)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 38, f.remaining(t, tenantIDs))

	result, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Expired)
	assert.Equal(t, 2, result.Purged)
	assert.Equal(t, 0, result.Failed)

	assert.Equal(t, 36, f.remaining(t, tenantIDs))
	assert.Equal(t, 36, f.blobs.Len())
	assert.Equal(t, int64(2), rec.runs.Load())
	assert.Equal(t, int64(4), rec.purged.Load())
	assert.Equal(t, int64(2), rec.failed.Load())
}

type countingRecorder struct {
	runs, purged, failed, skipped atomic.Int64
}

func (c *countingRecorder) ObserveCleanup(purged, failed int, _ time.Duration) {
	c.runs.Add(1)
	c.purged.Add(int64(purged))
	c.failed.Add(int64(failed))
}

func (c *countingRecorder) ObserveCleanupSkipped() { c.skipped.Add(1) }

// blockingPurger holds the first purge until released.
type blockingPurger struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingPurger) ExpiredTemporaries(context.Context, time.Time) ([]*simplestorage.Temporary, error) {
	return []*simplestorage.Temporary{{Entity: simplestorage.Entity{ID: uuid.New(), TenantID: uuid.New()}}}, nil
}

func (b *blockingPurger) PurgeTemporary(ctx context.Context, _ *simplestorage.Temporary) error {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	purger := &blockingPurger{started: make(chan struct{}), release: make(chan struct{})}
	rec := &countingRecorder{}
	s, err := New(purger, WithLogger(quietLogger()), WithRecorder(rec))
	require.NoError(t, err)

	done := make(chan *Result)
	go func() {
		result, _ := s.RunOnce(context.Background())
		done <- result
	}()
	<-purger.started

	result, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, int64(1), rec.skipped.Load())

	close(purger.release)
	first := <-done
	assert.False(t, first.Skipped)
	assert.Equal(t, 1, first.Purged)
}

type failingPurger struct{}

func (failingPurger) ExpiredTemporaries(context.Context, time.Time) ([]*simplestorage.Temporary, error) {
	return nil, errors.New("database down")
}

func (failingPurger) PurgeTemporary(context.Context, *simplestorage.Temporary) error { return nil }

func TestScheduler_ListFailure(t *testing.T) {
	s, err := New(failingPurger{}, WithLogger(quietLogger()))
	require.NoError(t, err)

	result, err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database down")
	assert.Equal(t, 0, result.Purged)
}

func TestScheduler_StartStop(t *testing.T) {
	f := newFixture(t)
	tenantIDs, _ := f.seed(t, 2, 3)

	s, err := New(f.svc,
		WithInterval(time.Hour),
		WithClock(func() time.Time { return testNow }),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, s.Interval())

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))

	// the first run happens at start
	assert.Eventually(t, func() bool {
		return f.remaining(t, tenantIDs) == 4
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	s.Stop()
}

func TestNew_RequiresPurger(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}
