// Package cached provides a read-through cache in front of any
// simplestorage.Store. Only single-record lookups are cached; every write
// through the decorator invalidates the affected entry.
package cached

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/tendant/simple-storage/pkg/simplestorage"
)

// CacheObserver receives cache hits and misses.
type CacheObserver interface {
	ObserveCache(kind string, hit bool)
}

type cacheKey struct {
	tenantID uuid.UUID
	id       uuid.UUID
}

// Store decorates a simplestorage.Store with an expirable LRU.
type Store[T simplestorage.Record] struct {
	inner    simplestorage.Store[T]
	cache    *expirable.LRU[cacheKey, T]
	clone    func(T) T
	kind     string
	observer CacheObserver

	// writes counts completed writes. A read only fills the cache when no
	// write finished while it was loading from inner.
	mu     sync.Mutex
	writes uint64
}

// Option configures the cached store.
type Option[T simplestorage.Record] func(*Store[T])

// WithObserver reports hits and misses to observer.
func WithObserver[T simplestorage.Record](kind string, observer CacheObserver) Option[T] {
	return func(s *Store[T]) {
		s.kind = kind
		s.observer = observer
	}
}

// New wraps inner with a cache of at most size entries living ttl each.
// clone copies records so callers never share cached values.
func New[T simplestorage.Record](inner simplestorage.Store[T], size int, ttl time.Duration, clone func(T) T, opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		inner: inner,
		cache: expirable.NewLRU[cacheKey, T](size, nil, ttl),
		clone: clone,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewAttachmentStore wraps an attachment store.
func NewAttachmentStore(inner simplestorage.Store[*simplestorage.Attachment], size int, ttl time.Duration, observer CacheObserver) *Store[*simplestorage.Attachment] {
	return New(inner, size, ttl, (*simplestorage.Attachment).Clone, WithObserver[*simplestorage.Attachment]("attachment", observer))
}

// NewTemporaryStore wraps a temporary store.
func NewTemporaryStore(inner simplestorage.Store[*simplestorage.Temporary], size int, ttl time.Duration, observer CacheObserver) *Store[*simplestorage.Temporary] {
	return New(inner, size, ttl, (*simplestorage.Temporary).Clone, WithObserver[*simplestorage.Temporary]("temporary", observer))
}

func (s *Store[T]) observe(hit bool) {
	if s.observer != nil {
		s.observer.ObserveCache(s.kind, hit)
	}
}

func (s *Store[T]) Get(ctx context.Context, tenantID, id uuid.UUID) (T, error) {
	key := cacheKey{tenantID: tenantID, id: id}
	if value, ok := s.cache.Get(key); ok {
		s.observe(true)
		return s.clone(value), nil
	}
	s.observe(false)

	s.mu.Lock()
	seen := s.writes
	s.mu.Unlock()

	value, err := s.inner.Get(ctx, tenantID, id)
	if err != nil {
		return value, err
	}

	s.mu.Lock()
	if s.writes == seen {
		s.cache.Add(key, s.clone(value))
	}
	s.mu.Unlock()
	return value, nil
}

func (s *Store[T]) invalidate(key cacheKey) {
	s.mu.Lock()
	s.writes++
	s.cache.Remove(key)
	s.mu.Unlock()
}

func (s *Store[T]) List(ctx context.Context, filter simplestorage.Filter) ([]T, error) {
	return s.inner.List(ctx, filter)
}

func (s *Store[T]) Count(ctx context.Context, filter simplestorage.Filter) (int64, error) {
	return s.inner.Count(ctx, filter)
}

func (s *Store[T]) Insert(ctx context.Context, value T) error {
	h := value.Header()
	defer s.invalidate(cacheKey{tenantID: h.TenantID, id: h.ID})
	return s.inner.Insert(ctx, value)
}

func (s *Store[T]) Update(ctx context.Context, value T) error {
	h := value.Header()
	defer s.invalidate(cacheKey{tenantID: h.TenantID, id: h.ID})
	return s.inner.Update(ctx, value)
}

func (s *Store[T]) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	defer s.invalidate(cacheKey{tenantID: tenantID, id: id})
	return s.inner.Delete(ctx, tenantID, id)
}
