package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS entities (
	kind       TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (kind, key)
);

CREATE TABLE IF NOT EXISTS entity_index (
	position INTEGER PRIMARY KEY AUTOINCREMENT,
	kind     TEXT NOT NULL,
	key      TEXT NOT NULL,
	UNIQUE (kind, key)
);

CREATE INDEX IF NOT EXISTS idx_entity_index_kind ON entity_index(kind, position);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, kind, key string) (json.RawMessage, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM entities WHERE kind = ? AND key = ?`,
		kind, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get %s/%s", kind, key)
	}
	return json.RawMessage(value), nil
}

func (s *SQLiteStore) Exists(ctx context.Context, kind, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM entities WHERE kind = ? AND key = ?`,
		kind, key,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: exists %s/%s", kind, key)
	}
	return true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, kind, key string, value json.RawMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entities (kind, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (kind, key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')`,
		kind, key, string(value),
	)
	return eris.Wrapf(err, "sqlite: save %s/%s", kind, key)
}

func (s *SQLiteStore) Patch(ctx context.Context, kind, key string, partial json.RawMessage) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE entities SET value = json_patch(value, ?), updated_at = datetime('now')
		 WHERE kind = ? AND key = ?`,
		string(partial), kind, key,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: patch %s/%s", kind, key)
	}
	return checkRowsAffected(res, kind, key)
}

func (s *SQLiteStore) PatchIfAbsent(ctx context.Context, kind, key, field string, partial json.RawMessage) (bool, error) {
	path := "$." + field
	res, err := s.db.ExecContext(ctx,
		`UPDATE entities SET value = json_patch(value, ?), updated_at = datetime('now')
		 WHERE kind = ? AND key = ?
		   AND (json_extract(value, ?) IS NULL OR json_extract(value, ?) = '')`,
		string(partial), kind, key, path, path,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: guarded patch %s/%s", kind, key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: guarded patch %s/%s", kind, key)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, kind, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM entities WHERE kind = ? AND key = ?`, kind, key,
	); err != nil {
		return eris.Wrapf(err, "sqlite: delete %s/%s", kind, key)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM entity_index WHERE kind = ? AND key = ?`, kind, key,
	); err != nil {
		return eris.Wrapf(err, "sqlite: delete index %s/%s", kind, key)
	}
	return nil
}

func (s *SQLiteStore) Create(ctx context.Context, kind, key string, value json.RawMessage) error {
	if err := s.Save(ctx, kind, key, value); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO entity_index (kind, key) VALUES (?, ?)`,
		kind, key,
	)
	return eris.Wrapf(err, "sqlite: index append %s/%s", kind, key)
}

func (s *SQLiteStore) ListKeys(ctx context.Context, kind, cursor string, limit int) ([]string, string, error) {
	after := parseCursor(cursor)
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, position FROM entity_index
		 WHERE kind = ? AND position > ?
		 ORDER BY position LIMIT ?`,
		kind, after, limit,
	)
	if err != nil {
		return nil, "", eris.Wrapf(err, "sqlite: list %s", kind)
	}
	defer rows.Close()

	var (
		keys []string
		last int64
	)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key, &last); err != nil {
			return nil, "", eris.Wrapf(err, "sqlite: scan %s", kind)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, "", eris.Wrapf(err, "sqlite: list %s", kind)
	}

	next := ""
	if len(keys) == limit {
		next = strconv.FormatInt(last, 10)
	}
	return keys, next, nil
}

const defaultListLimit = 50

// parseCursor decodes a list cursor; malformed or empty cursors restart the
// listing from the beginning.
func parseCursor(cursor string) int64 {
	if cursor == "" {
		return 0
	}
	n, err := strconv.ParseInt(cursor, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// checkRowsAffected converts a zero-row update into ErrAbsent.
func checkRowsAffected(res sql.Result, kind, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected %s/%s", kind, key)
	}
	if n == 0 {
		return eris.Wrapf(ErrAbsent, "%s/%s", kind, key)
	}
	return nil
}
