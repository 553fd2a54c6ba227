package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-storage/pkg/simplestorage"
)

const attachmentColumns = auditColumns + ", entity, owner_id, file_name, content_type, file_size, storage_path"

// AttachmentStore implements simplestorage.Store for attachments using PostgreSQL
type AttachmentStore struct {
	db DBTX
}

// NewAttachmentStore creates a new PostgreSQL attachment store
func NewAttachmentStore(db DBTX) *AttachmentStore {
	return &AttachmentStore{db: db}
}

// NewAttachmentStoreWithPool creates a new PostgreSQL attachment store with connection pool
func NewAttachmentStoreWithPool(pool *pgxpool.Pool) *AttachmentStore {
	return &AttachmentStore{db: pool}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttachment(row scanner) (*simplestorage.Attachment, error) {
	a := &simplestorage.Attachment{}
	err := row.Scan(
		&a.Seq, &a.ID, &a.TenantID, &a.CreatorID, &a.CreateStamp, &a.LastChangerID, &a.LastChangeStamp,
		&a.EntityName, &a.OwnerID, &a.FileName, &a.ContentType, &a.FileSize, &a.StoragePath,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func attachmentWhere(filter simplestorage.Filter) *whereBuilder {
	w := baseWhere(filter)
	if filter.EntityName != "" {
		w.add("entity = $%d", filter.EntityName)
	}
	if filter.OwnerID != uuid.Nil {
		w.add("owner_id = $%d", filter.OwnerID)
	}
	if filter.FileName != "" {
		w.add("file_name = $%d", filter.FileName)
	}
	return w
}

func (s *AttachmentStore) Get(ctx context.Context, tenantID, id uuid.UUID) (*simplestorage.Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM attachment WHERE tenant_id = $1 AND uuid = $2`
	a, err := scanAttachment(s.db.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		return nil, handlePostgresError("get attachment", err)
	}
	return a, nil
}

func (s *AttachmentStore) List(ctx context.Context, filter simplestorage.Filter) ([]*simplestorage.Attachment, error) {
	w := attachmentWhere(filter)
	query := `SELECT ` + attachmentColumns + ` FROM attachment` + w.String() + ` ORDER BY id`

	rows, err := s.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, handlePostgresError("list attachments", err)
	}
	defer rows.Close()

	var result []*simplestorage.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, handlePostgresError("scan attachment", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list attachments", err)
	}
	return result, nil
}

func (s *AttachmentStore) Count(ctx context.Context, filter simplestorage.Filter) (int64, error) {
	w := attachmentWhere(filter)
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM attachment`+w.String(), w.args...).Scan(&n); err != nil {
		return 0, handlePostgresError("count attachments", err)
	}
	return n, nil
}

func (s *AttachmentStore) Insert(ctx context.Context, a *simplestorage.Attachment) error {
	query := `
		INSERT INTO attachment (
			uuid, tenant_id, creator_id, create_stamp, last_changer_id, last_change_stamp,
			entity, owner_id, file_name, content_type, file_size, storage_path
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`
	err := s.db.QueryRow(ctx, query,
		a.ID, a.TenantID, a.CreatorID, a.CreateStamp, a.LastChangerID, a.LastChangeStamp,
		a.EntityName, a.OwnerID, a.FileName, a.ContentType, a.FileSize, a.StoragePath,
	).Scan(&a.Seq)
	if err != nil {
		return handlePostgresError("insert attachment", err)
	}
	return nil
}

func (s *AttachmentStore) Update(ctx context.Context, a *simplestorage.Attachment) error {
	query := `
		UPDATE attachment SET
			last_changer_id = $3, last_change_stamp = $4,
			entity = $5, owner_id = $6, file_name = $7, content_type = $8, file_size = $9, storage_path = $10
		WHERE tenant_id = $1 AND uuid = $2`
	tag, err := s.db.Exec(ctx, query,
		a.TenantID, a.ID, a.LastChangerID, a.LastChangeStamp,
		a.EntityName, a.OwnerID, a.FileName, a.ContentType, a.FileSize, a.StoragePath,
	)
	if err != nil {
		return handlePostgresError("update attachment", err)
	}
	if tag.RowsAffected() == 0 {
		return simplestorage.ErrNotFound
	}
	return nil
}

func (s *AttachmentStore) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM attachment WHERE tenant_id = $1 AND uuid = $2`, tenantID, id); err != nil {
		return handlePostgresError("delete attachment", err)
	}
	return nil
}
