// Package sqlite stores attachment and temporary metadata in a local SQLite
// database using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-storage/pkg/simplestorage"
	_ "modernc.org/sqlite"
)

const (
	busyTimeoutMS   = 5000
	maxOpenConns    = 1
	maxIdleConns    = 1
	connMaxLifetime = 5 * time.Minute
)

const schema = `
CREATE TABLE IF NOT EXISTS attachment (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uuid TEXT NOT NULL,
	tenant_id TEXT NOT NULL,
	creator_id TEXT,
	create_stamp INTEGER,
	last_changer_id TEXT,
	last_change_stamp INTEGER,
	entity TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	file_name TEXT NOT NULL,
	content_type TEXT NOT NULL,
	file_size INTEGER NOT NULL,
	storage_path TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS ix_attachment_tenant_id_uuid ON attachment (tenant_id, uuid);
CREATE UNIQUE INDEX IF NOT EXISTS ix_attachment_natural_key ON attachment (tenant_id, entity, owner_id, file_name);

CREATE TABLE IF NOT EXISTS temporary (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uuid TEXT NOT NULL,
	tenant_id TEXT NOT NULL,
	creator_id TEXT,
	create_stamp INTEGER,
	last_changer_id TEXT,
	last_change_stamp INTEGER,
	file_name TEXT NOT NULL,
	content_type TEXT NOT NULL,
	file_size INTEGER NOT NULL,
	storage_path TEXT NOT NULL,
	expiry_date INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS ix_temporary_tenant_id_uuid ON temporary (tenant_id, uuid);
CREATE INDEX IF NOT EXISTS ix_temporary_expiry_date ON temporary (expiry_date);
`

// DB wraps the SQLite database.
type DB struct {
	db *sql.DB
}

// Open opens the SQLite database at path and bootstraps the schema.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	db, err := sql.Open("sqlite", u.String())
	if err != nil {
		return nil, err
	}

	if err := configureDB(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Attachments returns the attachment store.
func (d *DB) Attachments() *AttachmentStore {
	return &AttachmentStore{db: d.db}
}

// Temporaries returns the temporary store.
func (d *DB) Temporaries() *TemporaryStore {
	return &TemporaryStore{db: d.db}
}

func configureDB(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMS),
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	return nil
}

func isUniqueConstraint(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func mapError(operation string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return simplestorage.ErrNotFound
	case isUniqueConstraint(err):
		return fmt.Errorf("%w: %s: %v", simplestorage.ErrConflict, operation, err)
	default:
		return fmt.Errorf("sqlite %s: %w", operation, err)
	}
}

// Column codecs
//
// Timestamps are stored as Unix microseconds, matching timestamptz precision
// and covering expiry dates far past the year 2262.

func nullID(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func nullStamp(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMicro(), Valid: true}
}

func idPtr(s sql.NullString) (*uuid.UUID, error) {
	if !s.Valid {
		return nil, nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func stampPtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.UnixMicro(n.Int64).UTC()
	return &t
}

// auditRow holds the shared header columns while scanning.
type auditRow struct {
	seq             int64
	id, tenantID    string
	creatorID       sql.NullString
	createStamp     sql.NullInt64
	lastChangerID   sql.NullString
	lastChangeStamp sql.NullInt64
}

const auditColumns = "id, uuid, tenant_id, creator_id, create_stamp, last_changer_id, last_change_stamp"

func (a *auditRow) dest() []any {
	return []any{&a.seq, &a.id, &a.tenantID, &a.creatorID, &a.createStamp, &a.lastChangerID, &a.lastChangeStamp}
}

func (a *auditRow) apply(h *simplestorage.Entity) error {
	var err error
	h.Seq = a.seq
	if h.ID, err = uuid.Parse(a.id); err != nil {
		return err
	}
	if h.TenantID, err = uuid.Parse(a.tenantID); err != nil {
		return err
	}
	if h.CreatorID, err = idPtr(a.creatorID); err != nil {
		return err
	}
	if h.LastChangerID, err = idPtr(a.lastChangerID); err != nil {
		return err
	}
	h.CreateStamp = stampPtr(a.createStamp)
	h.LastChangeStamp = stampPtr(a.lastChangeStamp)
	return nil
}

type whereBuilder struct {
	conds []string
	args  []any
}

func (w *whereBuilder) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *whereBuilder) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func baseWhere(filter simplestorage.Filter) *whereBuilder {
	w := &whereBuilder{}
	if filter.TenantID != uuid.Nil {
		w.add("tenant_id = ?", filter.TenantID.String())
	}
	if len(filter.IDs) > 0 {
		placeholders := make([]string, len(filter.IDs))
		args := make([]any, len(filter.IDs))
		for i, id := range filter.IDs {
			placeholders[i] = "?"
			args[i] = id.String()
		}
		w.add("uuid IN ("+strings.Join(placeholders, ", ")+")", args...)
	}
	return w
}
