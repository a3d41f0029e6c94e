package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"tenant-console/pkg/utils"
)

// SQLRepo stores events in console_audit_events. Rows are inserted, never updated.
type SQLRepo struct {
	db      *sql.DB
	dialect utils.Dialect
}

func NewPostgresRepo(db *sql.DB) *SQLRepo { return &SQLRepo{db: db, dialect: utils.Postgres} }

func NewSQLiteRepo(db *sql.DB) *SQLRepo { return &SQLRepo{db: db, dialect: utils.SQLite} }

func (r *SQLRepo) EnsureSchema(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS console_audit_events (
	id            TEXT PRIMARY KEY,
	type          TEXT NOT NULL,
	user_id       TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	tenant_id     TEXT NOT NULL DEFAULT '',
	invitation_id TEXT NOT NULL DEFAULT '',
	message       TEXT NOT NULL DEFAULT '',
	created_at    BIGINT NOT NULL
)`
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("audit: ensure schema: %w", err)
	}
	return nil
}

func (r *SQLRepo) Append(ctx context.Context, e Event) error {
	q := fmt.Sprintf(`
INSERT INTO console_audit_events (id, type, user_id, email, tenant_id, invitation_id, message, created_at)
VALUES (%s)`, r.dialect.BindList(1, 8))

	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Type),
		e.UserID,
		e.Email,
		e.TenantID,
		e.InvitationID,
		e.Message,
		e.CreatedAt.UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("audit: append: %w", err)
	}
	return nil
}

func (r *SQLRepo) List(ctx context.Context, f Filter) ([]Event, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, r.dialect.Bind(len(args))))
	}
	if f.UserID != "" {
		add("user_id = %s", f.UserID)
	}
	if !f.From.IsZero() {
		add("created_at >= %s", f.From.UnixMicro())
	}
	if !f.To.IsZero() {
		add("created_at < %s", f.To.UnixMicro())
	}

	q := `SELECT id, type, user_id, email, tenant_id, invitation_id, message, created_at FROM console_audit_events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		var (
			e   Event
			typ string
			at  int64
		)
		if err := rows.Scan(&e.ID, &typ, &e.UserID, &e.Email, &e.TenantID, &e.InvitationID, &e.Message, &at); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		e.Type = EventType(typ)
		e.CreatedAt = time.UnixMicro(at).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: rows: %w", err)
	}

	// Newest-first for LIMIT; callers get oldest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
