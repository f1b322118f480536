package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool abstracts the pgx pool operations the store needs, so tests can
// substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS entities (
	kind       TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (kind, key)
);

CREATE TABLE IF NOT EXISTS entity_index (
	position BIGSERIAL PRIMARY KEY,
	kind     TEXT NOT NULL,
	key      TEXT NOT NULL,
	UNIQUE (kind, key)
);

CREATE INDEX IF NOT EXISTS idx_entity_index_kind ON entity_index(kind, position);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, kind, key string) (json.RawMessage, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM entities WHERE kind = $1 AND key = $2`,
		kind, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get %s/%s", kind, key)
	}
	return json.RawMessage(value), nil
}

func (s *PostgresStore) Exists(ctx context.Context, kind, key string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM entities WHERE kind = $1 AND key = $2`,
		kind, key,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: exists %s/%s", kind, key)
	}
	return true, nil
}

func (s *PostgresStore) Save(ctx context.Context, kind, key string, value json.RawMessage) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO entities (kind, key, value) VALUES ($1, $2, $3)
		 ON CONFLICT (kind, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		kind, key, []byte(value),
	)
	return eris.Wrapf(err, "postgres: save %s/%s", kind, key)
}

func (s *PostgresStore) Patch(ctx context.Context, kind, key string, partial json.RawMessage) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE entities SET value = value || $3::jsonb, updated_at = now()
		 WHERE kind = $1 AND key = $2`,
		kind, key, []byte(partial),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: patch %s/%s", kind, key)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrAbsent, "%s/%s", kind, key)
	}
	return nil
}

func (s *PostgresStore) PatchIfAbsent(ctx context.Context, kind, key, field string, partial json.RawMessage) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE entities SET value = value || $3::jsonb, updated_at = now()
		 WHERE kind = $1 AND key = $2
		   AND (value->>$4 IS NULL OR value->>$4 = '')`,
		kind, key, []byte(partial), field,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: guarded patch %s/%s", kind, key)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Delete(ctx context.Context, kind, key string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM entities WHERE kind = $1 AND key = $2`, kind, key,
	); err != nil {
		return eris.Wrapf(err, "postgres: delete %s/%s", kind, key)
	}
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM entity_index WHERE kind = $1 AND key = $2`, kind, key,
	); err != nil {
		return eris.Wrapf(err, "postgres: delete index %s/%s", kind, key)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, kind, key string, value json.RawMessage) error {
	if err := s.Save(ctx, kind, key, value); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO entity_index (kind, key) VALUES ($1, $2) ON CONFLICT (kind, key) DO NOTHING`,
		kind, key,
	)
	return eris.Wrapf(err, "postgres: index append %s/%s", kind, key)
}

func (s *PostgresStore) ListKeys(ctx context.Context, kind, cursor string, limit int) ([]string, string, error) {
	after := parseCursor(cursor)
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT key, position FROM entity_index
		 WHERE kind = $1 AND position > $2
		 ORDER BY position LIMIT $3`,
		kind, after, limit,
	)
	if err != nil {
		return nil, "", eris.Wrapf(err, "postgres: list %s", kind)
	}
	defer rows.Close()

	var (
		keys []string
		last int64
	)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key, &last); err != nil {
			return nil, "", eris.Wrapf(err, "postgres: scan %s", kind)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, "", eris.Wrapf(err, "postgres: list %s", kind)
	}

	next := ""
	if len(keys) == limit {
		next = strconv.FormatInt(last, 10)
	}
	return keys, next, nil
}
