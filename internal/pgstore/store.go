// Package pgstore is a PostgreSQL implementation of core.Store.
//
// Documents live in a single table keyed by id, with the record tree in a
// jsonb column. Numbers are unique per tenant and kind through a partial
// unique index, so concurrent inserts of the same number surface as
// core.ErrDuplicate.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/importer/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the SQLSTATE of a unique index conflict.
const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS import_documents (
	id         TEXT PRIMARY KEY,
	tenant     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	number     TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL DEFAULT '',
	voided     BOOLEAN NOT NULL DEFAULT FALSE,
	fields     JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS import_documents_number_key
	ON import_documents (tenant, kind, number) WHERE number <> '';
CREATE INDEX IF NOT EXISTS import_documents_name_idx
	ON import_documents (tenant, kind, lower(name));
`

const selectColumns = `id, tenant, kind, number, name, voided, fields, created_at, updated_at`

// PoolConfig holds the connection pool settings.
type PoolConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store persists documents in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open connects a pool with cfg and verifies the connection.
func Open(ctx context.Context, cfg PoolConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	slog.Info("connected to database", "database", poolConfig.ConnConfig.Database)
	return New(pool), nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the documents table and its indexes when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Find implements core.Store.
func (s *Store) Find(ctx context.Context, tenant string, kind core.Kind, l core.Lookup) (*core.Document, error) {
	var row pgx.Row
	switch {
	case l.Number != "":
		row = s.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM import_documents
			WHERE tenant = $1 AND kind = $2 AND number = $3
			ORDER BY created_at, id LIMIT 1`, tenant, string(kind), l.Number)
	case l.Name != "":
		row = s.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM import_documents
			WHERE tenant = $1 AND kind = $2 AND lower(name) = lower($3)
			ORDER BY created_at, id LIMIT 1`, tenant, string(kind), l.Name)
	default:
		return nil, core.ErrNotFound
	}

	doc, err := scanDocument(row)
	if err != nil {
		return nil, mapError(err)
	}
	return doc, nil
}

// Insert implements core.Store.
func (s *Store) Insert(ctx context.Context, doc *core.Document) error {
	fields, err := encodeFields(doc.Fields)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO import_documents
		(id, tenant, kind, number, name, voided, fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.ID, doc.Tenant, string(doc.Kind), doc.Number, doc.Name, doc.Voided, fields, doc.CreatedAt, doc.UpdatedAt)
	return mapError(err)
}

// Update implements core.Store.
func (s *Store) Update(ctx context.Context, doc *core.Document) error {
	fields, err := encodeFields(doc.Fields)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `UPDATE import_documents
		SET number = $4, name = $5, voided = $6, fields = $7, updated_at = $8
		WHERE id = $1 AND tenant = $2 AND kind = $3`,
		doc.ID, doc.Tenant, string(doc.Kind), doc.Number, doc.Name, doc.Voided, fields, doc.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Delete implements core.Store.
func (s *Store) Delete(ctx context.Context, tenant string, kind core.Kind, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM import_documents WHERE id = $1 AND tenant = $2 AND kind = $3`,
		id, tenant, string(kind))
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// List returns the documents of one kind for a tenant, oldest first.
func (s *Store) List(ctx context.Context, tenant string, kind core.Kind) ([]*core.Document, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+selectColumns+` FROM import_documents
		WHERE tenant = $1 AND kind = $2 ORDER BY created_at, id`, tenant, string(kind))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*core.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, mapError(rows.Err())
}

func scanDocument(row pgx.Row) (*core.Document, error) {
	var (
		doc    core.Document
		kind   string
		fields []byte
	)
	if err := row.Scan(&doc.ID, &doc.Tenant, &kind, &doc.Number, &doc.Name, &doc.Voided, &fields, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.Kind = core.Kind(kind)

	obj, err := decodeFields(fields)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	doc.Fields = obj
	return &doc, nil
}

func encodeFields(fields *core.Object) ([]byte, error) {
	if fields == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return b, nil
}

func decodeFields(b []byte) (*core.Object, error) {
	obj := core.NewObject()
	if len(b) == 0 {
		return obj, nil
	}
	if err := json.Unmarshal(b, obj); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return obj, nil
}

// mapError translates driver errors into core sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", core.ErrDuplicate, pgErr.Detail)
	}
	return err
}
