package simplestorage

import (
	"context"

	"github.com/google/uuid"
)

// RepositoryHook intercepts a Repository at fixed points. Hooks run
// synchronously in registration order and the first error aborts the
// operation.
type RepositoryHook[T Record] interface {
	// BeforeSave runs before the record is written.
	BeforeSave(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, queryName string, claims Claims, value T, insert bool) error
	// AfterSave runs after the record is written.
	AfterSave(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, queryName string, claims Claims, value T, insert bool) error
	// RemovePreliminaryCheck may veto a removal by returning ok=false.
	// value is nil when the id does not resolve to a record.
	RemovePreliminaryCheck(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, claims Claims, params Params, value T) (ok bool, messages []string, err error)
	// BeforeRemove runs before an existing record is deleted.
	BeforeRemove(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, claims Claims, value T) error
}

// NoopHook permits every operation. Embed it to implement only some methods.
type NoopHook[T Record] struct{}

func (NoopHook[T]) BeforeSave(context.Context, uuid.UUID, *uuid.UUID, string, Claims, T, bool) error {
	return nil
}

func (NoopHook[T]) AfterSave(context.Context, uuid.UUID, *uuid.UUID, string, Claims, T, bool) error {
	return nil
}

func (NoopHook[T]) RemovePreliminaryCheck(context.Context, uuid.UUID, *uuid.UUID, Claims, Params, T) (bool, []string, error) {
	return true, nil, nil
}

func (NoopHook[T]) BeforeRemove(context.Context, uuid.UUID, *uuid.UUID, Claims, T) error {
	return nil
}

// HookFuncs adapts plain functions to RepositoryHook. Nil fields behave like
// NoopHook.
type HookFuncs[T Record] struct {
	OnBeforeSave             func(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, queryName string, claims Claims, value T, insert bool) error
	OnAfterSave              func(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, queryName string, claims Claims, value T, insert bool) error
	OnRemovePreliminaryCheck func(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, claims Claims, params Params, value T) (bool, []string, error)
	OnBeforeRemove           func(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, claims Claims, value T) error
}

func (h HookFuncs[T]) BeforeSave(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, queryName string, claims Claims, value T, insert bool) error {
	if h.OnBeforeSave == nil {
		return nil
	}
	return h.OnBeforeSave(ctx, tenantID, userID, queryName, claims, value, insert)
}

func (h HookFuncs[T]) AfterSave(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, queryName string, claims Claims, value T, insert bool) error {
	if h.OnAfterSave == nil {
		return nil
	}
	return h.OnAfterSave(ctx, tenantID, userID, queryName, claims, value, insert)
}

func (h HookFuncs[T]) RemovePreliminaryCheck(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, claims Claims, params Params, value T) (bool, []string, error) {
	if h.OnRemovePreliminaryCheck == nil {
		return true, nil, nil
	}
	return h.OnRemovePreliminaryCheck(ctx, tenantID, userID, claims, params, value)
}

func (h HookFuncs[T]) BeforeRemove(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, claims Claims, value T) error {
	if h.OnBeforeRemove == nil {
		return nil
	}
	return h.OnBeforeRemove(ctx, tenantID, userID, claims, value)
}

// Extensions customize queries and record production. All fields are optional.
type Extensions[T Record] struct {
	// ListQuery narrows the filter used by All, Query, Count and Export.
	ListQuery func(ctx context.Context, filter *Filter, queryName string, claims Claims, params Params) error
	// ByIDQuery narrows the filter used by ByID.
	ByIDQuery func(ctx context.Context, filter *Filter, queryName string, claims Claims) error
	// ProduceNew sets defaults beyond tenant and id on a new record.
	ProduceNew func(ctx context.Context, value T, queryName string, claims Claims, params Params) error
	// ExtendByID enriches a record after ByID and for every exported record.
	ExtendByID func(ctx context.Context, value T, queryName string, claims Claims) error
}

// executeBeforeSave runs all BeforeSave hooks
func (r *Repository[T]) executeBeforeSave(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, queryName string, claims Claims, value T, insert bool) error {
	for _, hook := range r.hooks {
		if err := hook.BeforeSave(ctx, tenantID, userID, queryName, claims, value, insert); err != nil {
			return err
		}
	}
	return nil
}

// executeAfterSave runs all AfterSave hooks
func (r *Repository[T]) executeAfterSave(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, queryName string, claims Claims, value T, insert bool) error {
	for _, hook := range r.hooks {
		if err := hook.AfterSave(ctx, tenantID, userID, queryName, claims, value, insert); err != nil {
			return err
		}
	}
	return nil
}

// executeRemovePreliminaryCheck stops at the first hook that vetoes.
func (r *Repository[T]) executeRemovePreliminaryCheck(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, claims Claims, params Params, value T) (bool, []string, error) {
	for _, hook := range r.hooks {
		ok, messages, err := hook.RemovePreliminaryCheck(ctx, tenantID, userID, claims, params, value)
		if err != nil {
			return false, nil, err
		}
		if !ok {
			return false, messages, nil
		}
	}
	return true, nil, nil
}

// executeBeforeRemove runs all BeforeRemove hooks
func (r *Repository[T]) executeBeforeRemove(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, claims Claims, value T) error {
	for _, hook := range r.hooks {
		if err := hook.BeforeRemove(ctx, tenantID, userID, claims, value); err != nil {
			return err
		}
	}
	return nil
}
