// Package mssql implements the sniff catalog on Microsoft SQL Server.
//
// The package does not import a driver. The application must register the
// "sqlserver" driver, for example by importing csvsniff/internal/storage/all.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"csvsniff/internal/storage"
)

// Repo implements storage.Repository for SQL Server.
type Repo struct {
	db    dbConn
	table string
}

func init() {
	storage.Register("mssql", New)
	storage.RegisterDSN("mssql", BuildDSN)
}

// New opens cfg.DSN with the "sqlserver" driver and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	raw.SetMaxOpenConns(8)
	raw.SetMaxIdleConns(8)

	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Repo{db: &sqlDB{db: raw}, table: cfg.TableName()}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// EnsureSchema creates the table and index guarded by OBJECT_ID / sys.indexes
// checks, since SQL Server has no IF NOT EXISTS for either.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, buildCreateSQL(r.table)); err != nil {
		return fmt.Errorf("create table %s: %w", r.table, err)
	}
	if _, err := r.db.ExecContext(ctx, buildIndexSQL(r.table)); err != nil {
		return fmt.Errorf("create index on %s: %w", r.table, err)
	}
	return nil
}

func (r *Repo) Save(ctx context.Context, rec storage.Record) error {
	_, err := r.db.ExecContext(ctx, buildInsertSQL(r.table),
		rec.ID.String(),
		rec.Source,
		rec.SniffedAt.UTC(),
		rec.Delimiter,
		rec.Quote,
		rec.NumFields,
		rec.HasHeader,
		rec.Flexible,
		storage.JoinTypes(rec.FieldTypes),
		string(rec.Report),
	)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", r.table, err)
	}
	return nil
}

func (r *Repo) Latest(ctx context.Context, source string) (storage.Record, bool, error) {
	var (
		rec            storage.Record
		id, types, raw string
		at             time.Time
	)
	err := r.db.QueryRowContext(ctx, buildLatestSQL(r.table), source).Scan(
		&id, &rec.Source, &at, &rec.Delimiter, &rec.Quote, &rec.NumFields,
		&rec.HasHeader, &rec.Flexible, &types, &raw,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Record{}, false, nil
	}
	if err != nil {
		return storage.Record{}, false, fmt.Errorf("select latest from %s: %w", r.table, err)
	}
	if rec.ID, err = uuid.Parse(id); err != nil {
		return storage.Record{}, false, fmt.Errorf("parse id %q: %w", id, err)
	}
	rec.SniffedAt = at.UTC()
	rec.FieldTypes = storage.SplitTypes(types)
	rec.Report = []byte(raw)
	return rec, true, nil
}

func buildCreateSQL(table string) string {
	defs := strings.Join([]string{
		"id NVARCHAR(36) NOT NULL PRIMARY KEY",
		"source NVARCHAR(1024) NOT NULL",
		"sniffed_at DATETIME2 NOT NULL",
		"delimiter NVARCHAR(4) NOT NULL",
		"quote NVARCHAR(4) NOT NULL",
		"num_fields INT NOT NULL",
		"has_header BIT NOT NULL",
		"flexible BIT NOT NULL",
		"field_types NVARCHAR(MAX) NOT NULL",
		"report NVARCHAR(MAX) NOT NULL",
	}, ", ")
	return wrapCreateIfMissing(table, defs)
}

// wrapCreateIfMissing wraps a CREATE TABLE statement in an OBJECT_ID guard.
func wrapCreateIfMissing(tableName, innerDefs string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		tableName,
		mssqlTableIdent(tableName),
		innerDefs,
	)
}

func buildIndexSQL(table string) string {
	idx := indexName(table)
	return fmt.Sprintf(
		"IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'%s' AND object_id = OBJECT_ID(N'%s')) "+
			"BEGIN CREATE INDEX %s ON %s (source, sniffed_at DESC); END;",
		idx, table, mssqlIdent(idx), mssqlTableIdent(table),
	)
}

func buildInsertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s
  (id, source, sniffed_at, delimiter, quote, num_fields, has_header, flexible, field_types, report)
VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8, @p9, @p10)`, mssqlTableIdent(table))
}

func buildLatestSQL(table string) string {
	return fmt.Sprintf(`SELECT TOP (1) id, source, sniffed_at, delimiter, quote, num_fields, has_header, flexible, field_types, report
FROM %s
WHERE source = @p1
ORDER BY sniffed_at DESC`, mssqlTableIdent(table))
}

func indexName(table string) string {
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		table = table[i+1:]
	}
	return "ix_" + table + "_source"
}

func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns a bracket-quoted identifier for schema-qualified names.
//
//	"dbo.sniff_reports" -> [dbo].[sniff_reports]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

// dbConn is the slice of *sql.DB the repo uses, so tests can substitute it.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) rowScanner
	Close() error
}

type rowScanner interface {
	Scan(dest ...any) error
}

type sqlDB struct {
	db *sql.DB
}

func (s *sqlDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s *sqlDB) QueryRowContext(ctx context.Context, query string, args ...any) rowScanner {
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *sqlDB) Close() error { return s.db.Close() }
