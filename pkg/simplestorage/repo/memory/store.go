package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-storage/pkg/simplestorage"
)

type recordKey struct {
	tenantID uuid.UUID
	id       uuid.UUID
}

// UniqueKey derives a natural key that must be unique within the store.
type UniqueKey[T simplestorage.Record] func(T) string

// Store implements simplestorage.Store using in-memory storage
type Store[T simplestorage.Record] struct {
	mu      sync.RWMutex
	records map[recordKey]T
	// unique key value -> owning record, one map per UniqueKey
	indexes []map[string]recordKey
	uniques []UniqueKey[T]
	clone   func(T) T
	seq     int64
}

// New creates a store holding copies made by clone.
func New[T simplestorage.Record](clone func(T) T, uniques ...UniqueKey[T]) *Store[T] {
	s := &Store[T]{
		records: make(map[recordKey]T),
		uniques: uniques,
		clone:   clone,
	}
	for range uniques {
		s.indexes = append(s.indexes, make(map[string]recordKey))
	}
	return s
}

// NewAttachmentStore creates an attachment store unique on
// (tenant, entity, owner, file name).
func NewAttachmentStore() *Store[*simplestorage.Attachment] {
	return New[*simplestorage.Attachment]((*simplestorage.Attachment).Clone, func(a *simplestorage.Attachment) string {
		return fmt.Sprintf("%s|%s|%s|%s", a.TenantID, a.EntityName, a.OwnerID, a.FileName)
	})
}

// NewTemporaryStore creates a temporary store.
func NewTemporaryStore() *Store[*simplestorage.Temporary] {
	return New[*simplestorage.Temporary]((*simplestorage.Temporary).Clone)
}

func keyOf[T simplestorage.Record](value T) recordKey {
	h := value.Header()
	return recordKey{tenantID: h.TenantID, id: h.ID}
}

func (s *Store[T]) Get(ctx context.Context, tenantID, id uuid.UUID) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.records[recordKey{tenantID: tenantID, id: id}]
	if !exists {
		return zero, simplestorage.ErrNotFound
	}
	return s.clone(value), nil
}

func (s *Store[T]) List(ctx context.Context, filter simplestorage.Filter) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []T
	for _, value := range s.records {
		if filter.Matches(value) {
			result = append(result, s.clone(value))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Header().Seq < result[j].Header().Seq
	})
	return result, nil
}

func (s *Store[T]) Count(ctx context.Context, filter simplestorage.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, value := range s.records {
		if filter.Matches(value) {
			n++
		}
	}
	return n, nil
}

func (s *Store[T]) Insert(ctx context.Context, value T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyOf(value)
	if _, exists := s.records[key]; exists {
		return fmt.Errorf("%w: id %s already exists", simplestorage.ErrConflict, key.id)
	}
	if err := s.checkUnique(key, value); err != nil {
		return err
	}

	s.seq++
	value.Header().Seq = s.seq
	stored := s.clone(value)
	s.records[key] = stored
	s.index(key, stored)
	return nil
}

func (s *Store[T]) Update(ctx context.Context, value T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyOf(value)
	current, exists := s.records[key]
	if !exists {
		return simplestorage.ErrNotFound
	}
	if err := s.checkUnique(key, value); err != nil {
		return err
	}

	value.Header().Seq = current.Header().Seq
	s.unindex(current)
	stored := s.clone(value)
	s.records[key] = stored
	s.index(key, stored)
	return nil
}

func (s *Store[T]) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{tenantID: tenantID, id: id}
	current, exists := s.records[key]
	if !exists {
		return nil
	}
	s.unindex(current)
	delete(s.records, key)
	return nil
}

// checkUnique must be called with the write lock held.
func (s *Store[T]) checkUnique(key recordKey, value T) error {
	for i, unique := range s.uniques {
		if owner, taken := s.indexes[i][unique(value)]; taken && owner != key {
			return fmt.Errorf("%w: natural key %q already taken", simplestorage.ErrConflict, unique(value))
		}
	}
	return nil
}

func (s *Store[T]) index(key recordKey, value T) {
	for i, unique := range s.uniques {
		s.indexes[i][unique(value)] = key
	}
}

func (s *Store[T]) unindex(value T) {
	for i, unique := range s.uniques {
		delete(s.indexes[i], unique(value))
	}
}
