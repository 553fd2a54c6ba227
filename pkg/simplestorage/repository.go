package simplestorage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Repository implements MetadataStore over a Store driver.
type Repository[T Record] struct {
	kind      string
	store     Store[T]
	newRecord func() T
	hooks     []RepositoryHook[T]
	ext       Extensions[T]
	now       func() time.Time
	logger    *slog.Logger
}

// RepositoryOption configures a Repository.
type RepositoryOption[T Record] func(*Repository[T])

// WithHook appends a hook to the repository's hook chain.
func WithHook[T Record](hook RepositoryHook[T]) RepositoryOption[T] {
	return func(r *Repository[T]) {
		if hook != nil {
			r.hooks = append(r.hooks, hook)
		}
	}
}

// WithExtensions sets the query and production extensions.
func WithExtensions[T Record](ext Extensions[T]) RepositoryOption[T] {
	return func(r *Repository[T]) {
		r.ext = ext
	}
}

// WithRepositoryClock overrides the clock used for audit stamps.
func WithRepositoryClock[T Record](now func() time.Time) RepositoryOption[T] {
	return func(r *Repository[T]) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRepositoryLogger sets the logger.
func WithRepositoryLogger[T Record](logger *slog.Logger) RepositoryOption[T] {
	return func(r *Repository[T]) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRepository creates a repository for records produced by newRecord.
// kind names the record kind in errors and logs.
func NewRepository[T Record](kind string, store Store[T], newRecord func() T, opts ...RepositoryOption[T]) *Repository[T] {
	r := &Repository[T]{
		kind:      kind,
		store:     store,
		newRecord: newRecord,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "repository", "kind", kind)
	return r
}

func (r *Repository[T]) fail(op string, tenantID, id uuid.UUID, err error) error {
	return &RecordError{Kind: r.kind, TenantID: tenantID, ID: id, Op: op, Err: err}
}

func (r *Repository[T]) listFilter(ctx context.Context, tenantID uuid.UUID, queryName string, claims Claims, params Params) (Filter, error) {
	if tenantID == uuid.Nil {
		return Filter{}, newValidationError("query "+r.kind, []string{"tenant id is required"})
	}
	filter := Filter{TenantID: tenantID}
	ids, _, err := idsFromParams(params)
	if err != nil {
		return Filter{}, newValidationError("query "+r.kind, []string{err.Error()})
	}
	filter.IDs = ids
	if r.ext.ListQuery != nil {
		if err := r.ext.ListQuery(ctx, &filter, queryName, claims, params); err != nil {
			return Filter{}, err
		}
	}
	// extensions may narrow but never widen the tenant scope
	filter.TenantID = tenantID
	return filter, nil
}

// All returns every record of the tenant shaped by the named query.
func (r *Repository[T]) All(ctx context.Context, tenantID uuid.UUID, queryName string, claims Claims) ([]T, error) {
	return r.Query(ctx, tenantID, queryName, claims, nil)
}

// Query returns the tenant's records matching params.
func (r *Repository[T]) Query(ctx context.Context, tenantID uuid.UUID, queryName string, claims Claims, params Params) ([]T, error) {
	filter, err := r.listFilter(ctx, tenantID, queryName, claims, params)
	if err != nil {
		return nil, err
	}
	items, err := r.store.List(ctx, filter)
	if err != nil {
		return nil, r.fail("query", tenantID, uuid.Nil, err)
	}
	return items, nil
}

// Count returns the number of records Query would return.
func (r *Repository[T]) Count(ctx context.Context, tenantID uuid.UUID, queryName string, claims Claims, params Params) (int64, error) {
	filter, err := r.listFilter(ctx, tenantID, queryName, claims, params)
	if err != nil {
		return 0, err
	}
	n, err := r.store.Count(ctx, filter)
	if err != nil {
		return 0, r.fail("count", tenantID, uuid.Nil, err)
	}
	return n, nil
}

// ByID returns the record or an error matching ErrNotFound.
func (r *Repository[T]) ByID(ctx context.Context, tenantID uuid.UUID, queryName string, claims Claims, id uuid.UUID) (T, error) {
	var zero T
	value, err := r.fetch(ctx, tenantID, queryName, claims, id)
	if err != nil {
		return zero, err
	}
	if r.ext.ExtendByID != nil {
		if err := r.ext.ExtendByID(ctx, value, queryName, claims); err != nil {
			return zero, r.fail("extend", tenantID, id, err)
		}
	}
	return value, nil
}

func (r *Repository[T]) fetch(ctx context.Context, tenantID uuid.UUID, queryName string, claims Claims, id uuid.UUID) (T, error) {
	var zero T
	if tenantID == uuid.Nil {
		return zero, newValidationError("get "+r.kind, []string{"tenant id is required"})
	}
	if r.ext.ByIDQuery == nil {
		value, err := r.store.Get(ctx, tenantID, id)
		if err != nil {
			return zero, r.fail("get", tenantID, id, err)
		}
		return value, nil
	}

	filter := Filter{TenantID: tenantID, IDs: []uuid.UUID{id}}
	if err := r.ext.ByIDQuery(ctx, &filter, queryName, claims); err != nil {
		return zero, r.fail("get", tenantID, id, err)
	}
	filter.TenantID = tenantID
	filter.IDs = []uuid.UUID{id}
	items, err := r.store.List(ctx, filter)
	if err != nil {
		return zero, r.fail("get", tenantID, id, err)
	}
	if len(items) == 0 {
		return zero, r.fail("get", tenantID, id, ErrNotFound)
	}
	return items[0], nil
}

// New produces a transient record with a fresh id. Nothing is stored.
func (r *Repository[T]) New(ctx context.Context, tenantID uuid.UUID, queryName string, claims Claims) (T, error) {
	return r.NewWithParams(ctx, tenantID, queryName, claims, nil)
}

// NewWithParams is New with parameters passed to the ProduceNew extension.
func (r *Repository[T]) NewWithParams(ctx context.Context, tenantID uuid.UUID, queryName string, claims Claims, params Params) (T, error) {
	var zero T
	if tenantID == uuid.Nil {
		return zero, newValidationError("new "+r.kind, []string{"tenant id is required"})
	}
	value := r.newRecord()
	h := value.Header()
	h.ID = uuid.New()
	h.TenantID = tenantID
	if r.ext.ProduceNew != nil {
		if err := r.ext.ProduceNew(ctx, value, queryName, claims, params); err != nil {
			return zero, r.fail("new", tenantID, h.ID, err)
		}
	}
	return value, nil
}

// Save inserts or updates value by (tenantID, value.ID) and stamps audit fields.
func (r *Repository[T]) Save(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, queryName string, claims Claims, value T) error {
	if tenantID == uuid.Nil {
		return newValidationError("save "+r.kind, []string{"tenant id is required"})
	}
	h := value.Header()
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	h.TenantID = tenantID
	if err := value.Validate(); err != nil {
		return err
	}

	existing, err := r.store.Get(ctx, tenantID, h.ID)
	insert := errors.Is(err, ErrNotFound)
	if err != nil && !insert {
		return r.fail("save", tenantID, h.ID, err)
	}

	if err := r.executeBeforeSave(ctx, tenantID, userID, queryName, claims, value, insert); err != nil {
		return r.fail("save", tenantID, h.ID, err)
	}

	now := r.now().UTC()
	changer := copyID(userID)
	if insert {
		h.Seq = 0
		h.CreatorID = changer
		h.CreateStamp = &now
	} else {
		prev := existing.Header()
		h.Seq = prev.Seq
		h.CreatorID = prev.CreatorID
		h.CreateStamp = prev.CreateStamp
	}
	h.LastChangerID = changer
	h.LastChangeStamp = &now

	if insert {
		err = r.store.Insert(ctx, value)
	} else {
		err = r.store.Update(ctx, value)
	}
	if err != nil {
		return r.fail("save", tenantID, h.ID, err)
	}

	if err := r.executeAfterSave(ctx, tenantID, userID, queryName, claims, value, insert); err != nil {
		return r.fail("save", tenantID, h.ID, err)
	}
	r.logger.Debug("record saved", "tenant_id", tenantID, "id", h.ID, "insert", insert)
	return nil
}

// Remove deletes the record named by params["id"]. An id that does not
// resolve is a successful no-op with a nil Value.
func (r *Repository[T]) Remove(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, claims Claims, params Params) (*RemoveResult[T], error) {
	if tenantID == uuid.Nil {
		return nil, newValidationError("remove "+r.kind, []string{"tenant id is required"})
	}
	id, err := singleIDFromParams(params)
	if err != nil {
		return nil, err
	}

	var value T
	found := true
	value, err = r.store.Get(ctx, tenantID, id)
	if errors.Is(err, ErrNotFound) {
		found = false
	} else if err != nil {
		return nil, r.fail("remove", tenantID, id, err)
	}

	ok, messages, err := r.executeRemovePreliminaryCheck(ctx, tenantID, userID, claims, params, value)
	if err != nil {
		return nil, r.fail("remove", tenantID, id, err)
	}
	if !ok {
		return &RemoveResult[T]{OK: false, Messages: messages, Value: value}, nil
	}

	if found {
		if err := r.executeBeforeRemove(ctx, tenantID, userID, claims, value); err != nil {
			return nil, r.fail("remove", tenantID, id, err)
		}
		if err := r.store.Delete(ctx, tenantID, id); err != nil {
			return nil, r.fail("remove", tenantID, id, err)
		}
		r.logger.Debug("record removed", "tenant_id", tenantID, "id", id)
	}
	return &RemoveResult[T]{OK: true, Messages: []string{}, Value: value}, nil
}

// Import saves every authorized item of a JSON array. Unauthorized items are
// skipped; the first failing Save stops the import.
func (r *Repository[T]) Import(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, queryName string, claims Claims, in io.Reader, authorize func(T) bool) error {
	var items []T
	if err := json.NewDecoder(in).Decode(&items); err != nil {
		return newValidationError("import "+r.kind, []string{fmt.Sprintf("decode payload: %v", err)})
	}
	for _, item := range items {
		if isNilRecord(item) || (authorize != nil && !authorize(item)) {
			continue
		}
		if err := r.Save(ctx, tenantID, userID, queryName, claims, item); err != nil {
			return err
		}
	}
	return nil
}

// Export serializes the Query result as a JSON array named after the query.
func (r *Repository[T]) Export(ctx context.Context, tenantID uuid.UUID, queryName string, claims Claims, params Params) (*ExportResult, error) {
	items, err := r.Query(ctx, tenantID, queryName, claims, params)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	if r.ext.ExtendByID != nil {
		for _, item := range items {
			if err := r.ext.ExtendByID(ctx, item, queryName, claims); err != nil {
				return nil, r.fail("export", tenantID, item.Header().ID, err)
			}
		}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, r.fail("export", tenantID, uuid.Nil, err)
	}
	return &ExportResult{
		FileName:  fmt.Sprintf("%s.json", queryName),
		MediaType: "application/json",
		Data:      data,
	}, nil
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

func isNilRecord(v Record) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
