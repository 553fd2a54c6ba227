package simplestorage

import (
	"context"

	"github.com/google/uuid"
)

type attachmentRepository struct {
	*Repository[*Attachment]
}

// NewAttachmentRepository creates the attachment repository over store.
func NewAttachmentRepository(store Store[*Attachment], opts ...RepositoryOption[*Attachment]) AttachmentRepository {
	return &attachmentRepository{
		Repository: NewRepository("attachment", store, func() *Attachment { return &Attachment{} }, opts...),
	}
}

func (r *attachmentRepository) AllByEntityAndOwner(ctx context.Context, tenantID uuid.UUID, entity string, ownerID uuid.UUID) ([]*Attachment, error) {
	if tenantID == uuid.Nil {
		return nil, newValidationError("list attachments", []string{"tenant id is required"})
	}
	items, err := r.store.List(ctx, Filter{TenantID: tenantID, EntityName: entity, OwnerID: ownerID})
	if err != nil {
		return nil, r.fail("list by owner", tenantID, uuid.Nil, err)
	}
	return items, nil
}

func (r *attachmentRepository) SingleByEntityOwnerAndFileName(ctx context.Context, tenantID uuid.UUID, entity string, ownerID uuid.UUID, fileName string) (*Attachment, error) {
	if tenantID == uuid.Nil {
		return nil, newValidationError("get attachment", []string{"tenant id is required"})
	}
	if fileName == "" {
		return nil, newValidationError("get attachment", []string{"file name is required"})
	}
	items, err := r.store.List(ctx, Filter{TenantID: tenantID, EntityName: entity, OwnerID: ownerID, FileName: fileName})
	if err != nil {
		return nil, r.fail("get by file name", tenantID, uuid.Nil, err)
	}
	if len(items) == 0 {
		return nil, r.fail("get by file name", tenantID, uuid.Nil, ErrNotFound)
	}
	return items[0], nil
}

func (r *attachmentRepository) AllByEntity(ctx context.Context, tenantID uuid.UUID, entity string) ([]*Attachment, error) {
	if tenantID == uuid.Nil {
		return nil, newValidationError("list attachments", []string{"tenant id is required"})
	}
	if entity == "" {
		return nil, newValidationError("list attachments", []string{"entity is required"})
	}
	items, err := r.store.List(ctx, Filter{TenantID: tenantID, EntityName: entity})
	if err != nil {
		return nil, r.fail("list by entity", tenantID, uuid.Nil, err)
	}
	return items, nil
}
