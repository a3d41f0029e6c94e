package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tenant-console/pkg/utils"
)

// SQLStore keeps credentials in the console_credentials table, one row per namespace/key.
type SQLStore struct {
	db        *sql.DB
	dialect   utils.Dialect
	namespace string
}

func NewPostgresStore(db *sql.DB, namespace string) *SQLStore {
	return newSQLStore(db, utils.Postgres, namespace)
}

func NewSQLiteStore(db *sql.DB, namespace string) *SQLStore {
	return newSQLStore(db, utils.SQLite, namespace)
}

func newSQLStore(db *sql.DB, d utils.Dialect, namespace string) *SQLStore {
	if namespace == "" {
		namespace = "console"
	}
	return &SQLStore{db: db, dialect: d, namespace: namespace}
}

// EnsureSchema creates the credentials table if it does not exist.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS console_credentials (
		namespace  TEXT NOT NULL,
		cred_key   TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (namespace, cred_key)
	)`)
	if err != nil {
		return fmt.Errorf("%s: ensure schema: %w", s.dialect.Name, err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	q := fmt.Sprintf(`SELECT value FROM console_credentials WHERE namespace = %s AND cred_key = %s`,
		s.dialect.Bind(1), s.dialect.Bind(2))

	var v string
	err := s.db.QueryRowContext(ctx, q, s.namespace, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%s: get %s: %w", s.dialect.Name, key, err)
	}
	return v, true, nil
}

func (s *SQLStore) Set(ctx context.Context, values map[string]string) error {
	q := fmt.Sprintf(`INSERT INTO console_credentials (namespace, cred_key, value, updated_at)
		VALUES (%s, %s, %s, %s)
		ON CONFLICT (namespace, cred_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.dialect.Bind(1), s.dialect.Bind(2), s.dialect.Bind(3), s.dialect.Bind(4))

	now := time.Now().Unix()
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		for k, v := range values {
			if _, err := tx.ExecContext(ctx, q, s.namespace, k, v, now); err != nil {
				return fmt.Errorf("%s: set %s: %w", s.dialect.Name, k, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	args := make([]any, 0, len(keys)+1)
	args = append(args, s.namespace)
	for _, k := range keys {
		args = append(args, k)
	}
	q := fmt.Sprintf(`DELETE FROM console_credentials WHERE namespace = %s AND cred_key IN (%s)`,
		s.dialect.Bind(1), s.dialect.BindList(2, len(keys)))

	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("%s: delete: %w", s.dialect.Name, err)
		}
		return nil
	})
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
