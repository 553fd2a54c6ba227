package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-storage/pkg/simplestorage"
)

const temporaryColumns = auditColumns + ", file_name, content_type, file_size, storage_path, expiry_date"

// TemporaryStore implements simplestorage.Store for temporaries using PostgreSQL
type TemporaryStore struct {
	db DBTX
}

// NewTemporaryStore creates a new PostgreSQL temporary store
func NewTemporaryStore(db DBTX) *TemporaryStore {
	return &TemporaryStore{db: db}
}

// NewTemporaryStoreWithPool creates a new PostgreSQL temporary store with connection pool
func NewTemporaryStoreWithPool(pool *pgxpool.Pool) *TemporaryStore {
	return &TemporaryStore{db: pool}
}

func scanTemporary(row scanner) (*simplestorage.Temporary, error) {
	t := &simplestorage.Temporary{}
	err := row.Scan(
		&t.Seq, &t.ID, &t.TenantID, &t.CreatorID, &t.CreateStamp, &t.LastChangerID, &t.LastChangeStamp,
		&t.FileName, &t.ContentType, &t.FileSize, &t.StoragePath, &t.ExpiryDate,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func temporaryWhere(filter simplestorage.Filter) *whereBuilder {
	w := baseWhere(filter)
	if !filter.ExpiresBefore.IsZero() {
		w.add("expiry_date <= $%d", filter.ExpiresBefore)
	}
	return w
}

func (s *TemporaryStore) Get(ctx context.Context, tenantID, id uuid.UUID) (*simplestorage.Temporary, error) {
	query := `SELECT ` + temporaryColumns + ` FROM temporary WHERE tenant_id = $1 AND uuid = $2`
	t, err := scanTemporary(s.db.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		return nil, handlePostgresError("get temporary", err)
	}
	return t, nil
}

func (s *TemporaryStore) List(ctx context.Context, filter simplestorage.Filter) ([]*simplestorage.Temporary, error) {
	w := temporaryWhere(filter)
	query := `SELECT ` + temporaryColumns + ` FROM temporary` + w.String() + ` ORDER BY id`

	rows, err := s.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, handlePostgresError("list temporaries", err)
	}
	defer rows.Close()

	var result []*simplestorage.Temporary
	for rows.Next() {
		t, err := scanTemporary(rows)
		if err != nil {
			return nil, handlePostgresError("scan temporary", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list temporaries", err)
	}
	return result, nil
}

func (s *TemporaryStore) Count(ctx context.Context, filter simplestorage.Filter) (int64, error) {
	w := temporaryWhere(filter)
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM temporary`+w.String(), w.args...).Scan(&n); err != nil {
		return 0, handlePostgresError("count temporaries", err)
	}
	return n, nil
}

func (s *TemporaryStore) Insert(ctx context.Context, t *simplestorage.Temporary) error {
	query := `
		INSERT INTO temporary (
			uuid, tenant_id, creator_id, create_stamp, last_changer_id, last_change_stamp,
			file_name, content_type, file_size, storage_path, expiry_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	err := s.db.QueryRow(ctx, query,
		t.ID, t.TenantID, t.CreatorID, t.CreateStamp, t.LastChangerID, t.LastChangeStamp,
		t.FileName, t.ContentType, t.FileSize, t.StoragePath, t.ExpiryDate,
	).Scan(&t.Seq)
	if err != nil {
		return handlePostgresError("insert temporary", err)
	}
	return nil
}

func (s *TemporaryStore) Update(ctx context.Context, t *simplestorage.Temporary) error {
	query := `
		UPDATE temporary SET
			last_changer_id = $3, last_change_stamp = $4,
			file_name = $5, content_type = $6, file_size = $7, storage_path = $8, expiry_date = $9
		WHERE tenant_id = $1 AND uuid = $2`
	tag, err := s.db.Exec(ctx, query,
		t.TenantID, t.ID, t.LastChangerID, t.LastChangeStamp,
		t.FileName, t.ContentType, t.FileSize, t.StoragePath, t.ExpiryDate,
	)
	if err != nil {
		return handlePostgresError("update temporary", err)
	}
	if tag.RowsAffected() == 0 {
		return simplestorage.ErrNotFound
	}
	return nil
}

func (s *TemporaryStore) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM temporary WHERE tenant_id = $1 AND uuid = $2`, tenantID, id); err != nil {
		return handlePostgresError("delete temporary", err)
	}
	return nil
}
