package sqlite

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/tendant/simple-storage/pkg/simplestorage"
)

const attachmentColumns = auditColumns + ", entity, owner_id, file_name, content_type, file_size, storage_path"

// AttachmentStore implements simplestorage.Store for attachments on SQLite.
type AttachmentStore struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttachment(row rowScanner) (*simplestorage.Attachment, error) {
	var (
		audit   auditRow
		ownerID string
		a       = &simplestorage.Attachment{}
	)
	dest := append(audit.dest(), &a.EntityName, &ownerID, &a.FileName, &a.ContentType, &a.FileSize, &a.StoragePath)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := audit.apply(&a.Entity); err != nil {
		return nil, err
	}
	var err error
	if a.OwnerID, err = uuid.Parse(ownerID); err != nil {
		return nil, err
	}
	return a, nil
}

func attachmentWhere(filter simplestorage.Filter) *whereBuilder {
	w := baseWhere(filter)
	if filter.EntityName != "" {
		w.add("entity = ?", filter.EntityName)
	}
	if filter.OwnerID != uuid.Nil {
		w.add("owner_id = ?", filter.OwnerID.String())
	}
	if filter.FileName != "" {
		w.add("file_name = ?", filter.FileName)
	}
	return w
}

func (s *AttachmentStore) Get(ctx context.Context, tenantID, id uuid.UUID) (*simplestorage.Attachment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+attachmentColumns+` FROM attachment WHERE tenant_id = ? AND uuid = ?`,
		tenantID.String(), id.String())
	a, err := scanAttachment(row)
	if err != nil {
		return nil, mapError("get attachment", err)
	}
	return a, nil
}

func (s *AttachmentStore) List(ctx context.Context, filter simplestorage.Filter) ([]*simplestorage.Attachment, error) {
	w := attachmentWhere(filter)
	rows, err := s.db.QueryContext(ctx, `SELECT `+attachmentColumns+` FROM attachment`+w.String()+` ORDER BY id`, w.args...)
	if err != nil {
		return nil, mapError("list attachments", err)
	}
	defer rows.Close()

	var result []*simplestorage.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, mapError("scan attachment", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list attachments", err)
	}
	return result, nil
}

func (s *AttachmentStore) Count(ctx context.Context, filter simplestorage.Filter) (int64, error) {
	w := attachmentWhere(filter)
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM attachment`+w.String(), w.args...).Scan(&n); err != nil {
		return 0, mapError("count attachments", err)
	}
	return n, nil
}

func (s *AttachmentStore) Insert(ctx context.Context, a *simplestorage.Attachment) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO attachment (
			uuid, tenant_id, creator_id, create_stamp, last_changer_id, last_change_stamp,
			entity, owner_id, file_name, content_type, file_size, storage_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(), a.TenantID.String(), nullID(a.CreatorID), nullStamp(a.CreateStamp),
		nullID(a.LastChangerID), nullStamp(a.LastChangeStamp),
		a.EntityName, a.OwnerID.String(), a.FileName, a.ContentType, a.FileSize, a.StoragePath,
	)
	if err != nil {
		return mapError("insert attachment", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return mapError("insert attachment", err)
	}
	a.Seq = seq
	return nil
}

func (s *AttachmentStore) Update(ctx context.Context, a *simplestorage.Attachment) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE attachment SET
			last_changer_id = ?, last_change_stamp = ?,
			entity = ?, owner_id = ?, file_name = ?, content_type = ?, file_size = ?, storage_path = ?
		WHERE tenant_id = ? AND uuid = ?`,
		nullID(a.LastChangerID), nullStamp(a.LastChangeStamp),
		a.EntityName, a.OwnerID.String(), a.FileName, a.ContentType, a.FileSize, a.StoragePath,
		a.TenantID.String(), a.ID.String(),
	)
	if err != nil {
		return mapError("update attachment", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return simplestorage.ErrNotFound
	}
	return nil
}

func (s *AttachmentStore) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM attachment WHERE tenant_id = ? AND uuid = ?`, tenantID.String(), id.String()); err != nil {
		return mapError("delete attachment", err)
	}
	return nil
}
