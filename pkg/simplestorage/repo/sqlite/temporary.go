package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-storage/pkg/simplestorage"
)

const temporaryColumns = auditColumns + ", file_name, content_type, file_size, storage_path, expiry_date"

// TemporaryStore implements simplestorage.Store for temporaries on SQLite.
type TemporaryStore struct {
	db *sql.DB
}

func scanTemporary(row rowScanner) (*simplestorage.Temporary, error) {
	var (
		audit  auditRow
		expiry int64
		t      = &simplestorage.Temporary{}
	)
	dest := append(audit.dest(), &t.FileName, &t.ContentType, &t.FileSize, &t.StoragePath, &expiry)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := audit.apply(&t.Entity); err != nil {
		return nil, err
	}
	t.ExpiryDate = time.UnixMicro(expiry).UTC()
	return t, nil
}

func temporaryWhere(filter simplestorage.Filter) *whereBuilder {
	w := baseWhere(filter)
	if !filter.ExpiresBefore.IsZero() {
		w.add("expiry_date <= ?", filter.ExpiresBefore.UnixMicro())
	}
	return w
}

func (s *TemporaryStore) Get(ctx context.Context, tenantID, id uuid.UUID) (*simplestorage.Temporary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+temporaryColumns+` FROM temporary WHERE tenant_id = ? AND uuid = ?`,
		tenantID.String(), id.String())
	t, err := scanTemporary(row)
	if err != nil {
		return nil, mapError("get temporary", err)
	}
	return t, nil
}

func (s *TemporaryStore) List(ctx context.Context, filter simplestorage.Filter) ([]*simplestorage.Temporary, error) {
	w := temporaryWhere(filter)
	rows, err := s.db.QueryContext(ctx, `SELECT `+temporaryColumns+` FROM temporary`+w.String()+` ORDER BY id`, w.args...)
	if err != nil {
		return nil, mapError("list temporaries", err)
	}
	defer rows.Close()

	var result []*simplestorage.Temporary
	for rows.Next() {
		t, err := scanTemporary(rows)
		if err != nil {
			return nil, mapError("scan temporary", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list temporaries", err)
	}
	return result, nil
}

func (s *TemporaryStore) Count(ctx context.Context, filter simplestorage.Filter) (int64, error) {
	w := temporaryWhere(filter)
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM temporary`+w.String(), w.args...).Scan(&n); err != nil {
		return 0, mapError("count temporaries", err)
	}
	return n, nil
}

func (s *TemporaryStore) Insert(ctx context.Context, t *simplestorage.Temporary) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO temporary (
			uuid, tenant_id, creator_id, create_stamp, last_changer_id, last_change_stamp,
			file_name, content_type, file_size, storage_path, expiry_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.TenantID.String(), nullID(t.CreatorID), nullStamp(t.CreateStamp),
		nullID(t.LastChangerID), nullStamp(t.LastChangeStamp),
		t.FileName, t.ContentType, t.FileSize, t.StoragePath, t.ExpiryDate.UnixMicro(),
	)
	if err != nil {
		return mapError("insert temporary", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return mapError("insert temporary", err)
	}
	t.Seq = seq
	return nil
}

func (s *TemporaryStore) Update(ctx context.Context, t *simplestorage.Temporary) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE temporary SET
			last_changer_id = ?, last_change_stamp = ?,
			file_name = ?, content_type = ?, file_size = ?, storage_path = ?, expiry_date = ?
		WHERE tenant_id = ? AND uuid = ?`,
		nullID(t.LastChangerID), nullStamp(t.LastChangeStamp),
		t.FileName, t.ContentType, t.FileSize, t.StoragePath, t.ExpiryDate.UnixMicro(),
		t.TenantID.String(), t.ID.String(),
	)
	if err != nil {
		return mapError("update temporary", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return simplestorage.ErrNotFound
	}
	return nil
}

func (s *TemporaryStore) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM temporary WHERE tenant_id = ? AND uuid = ?`, tenantID.String(), id.String()); err != nil {
		return mapError("delete temporary", err)
	}
	return nil
}
