// Package postgres implements the sniff catalog on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"csvsniff/internal/storage"
)

// Repo implements storage.Repository for Postgres.
//
// field_types is a TEXT[] and report a JSONB column, so catalog rows can be
// queried without decoding in the application.
type Repo struct {
	pool  *pgxpool.Pool
	table string
}

// New creates a pool for cfg.DSN. pgxpool connects lazily; the first
// EnsureSchema surfaces connection errors.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &Repo{pool: pool, table: cfg.TableName()}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// EnsureSchema creates the schema (for qualified names), table and index.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, stmt := range buildSchemaSQL(r.table) {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure catalog %s: %w", r.table, err)
		}
	}
	return nil
}

func (r *Repo) Save(ctx context.Context, rec storage.Record) error {
	_, err := r.pool.Exec(ctx, buildInsertSQL(r.table),
		rec.ID.String(),
		rec.Source,
		rec.SniffedAt.UTC(),
		rec.Delimiter,
		rec.Quote,
		rec.NumFields,
		rec.HasHeader,
		rec.Flexible,
		rec.FieldTypes,
		string(rec.Report),
	)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", r.table, err)
	}
	return nil
}

func (r *Repo) Latest(ctx context.Context, source string) (storage.Record, bool, error) {
	var (
		rec storage.Record
		id  string
		raw string
	)
	err := r.pool.QueryRow(ctx, buildLatestSQL(r.table), source).Scan(
		&id, &rec.Source, &rec.SniffedAt, &rec.Delimiter, &rec.Quote, &rec.NumFields,
		&rec.HasHeader, &rec.Flexible, &rec.FieldTypes, &raw,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.Record{}, false, nil
	}
	if err != nil {
		return storage.Record{}, false, fmt.Errorf("select latest from %s: %w", r.table, err)
	}
	if rec.ID, err = uuid.Parse(id); err != nil {
		return storage.Record{}, false, fmt.Errorf("parse id %q: %w", id, err)
	}
	rec.SniffedAt = rec.SniffedAt.UTC()
	rec.Report = []byte(raw)
	return rec, true, nil
}

// buildSchemaSQL returns the idempotent DDL statements for table, in order.
func buildSchemaSQL(table string) []string {
	var out []string
	if schema, _, ok := strings.Cut(table, "."); ok {
		out = append(out, "CREATE SCHEMA IF NOT EXISTS "+pgIdent(schema))
	}
	out = append(out,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id UUID PRIMARY KEY,
  source TEXT NOT NULL,
  sniffed_at TIMESTAMPTZ NOT NULL,
  delimiter TEXT NOT NULL,
  quote TEXT NOT NULL,
  num_fields INTEGER NOT NULL,
  has_header BOOLEAN NOT NULL,
  flexible BOOLEAN NOT NULL,
  field_types TEXT[] NOT NULL,
  report JSONB NOT NULL
)`, pgIdent(table)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (source, sniffed_at DESC)`,
			pgIdent(indexName(table)), pgIdent(table)),
	)
	return out
}

func buildInsertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s
  (id, source, sniffed_at, delimiter, quote, num_fields, has_header, flexible, field_types, report)
VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb)`, pgIdent(table))
}

func buildLatestSQL(table string) string {
	return fmt.Sprintf(`SELECT id::text, source, sniffed_at, delimiter, quote, num_fields, has_header, flexible, field_types, report::text
FROM %s
WHERE source = $1
ORDER BY sniffed_at DESC
LIMIT 1`, pgIdent(table))
}

func indexName(table string) string {
	if _, name, ok := strings.Cut(table, "."); ok {
		table = name
	}
	return table + "_source_idx"
}

// pgIdent quotes a possibly schema-qualified identifier.
func pgIdent(s string) string {
	parts := strings.Split(s, ".")
	for i, p := range parts {
		parts[i] = pgx.Identifier{p}.Sanitize()
	}
	return strings.Join(parts, ".")
}
