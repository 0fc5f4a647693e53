// Package sqlite implements the sniff catalog on SQLite via modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"csvsniff/internal/storage"
)

// Repo implements storage.Repository for SQLite.
//
// SQLite has no timestamp type, so sniffed_at is stored as fixed-width
// RFC3339 text in UTC. Fixed width keeps lexical order equal to time order.
type Repo struct {
	db    *sql.DB
	table string
}

func init() {
	storage.Register("sqlite", New)
	storage.RegisterDSN("sqlite", BuildDSN)
}

// New opens the database at cfg.DSN and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db, table: cfg.TableName()}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

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
		formatSQLiteTime(rec.SniffedAt),
		rec.Delimiter,
		rec.Quote,
		rec.NumFields,
		boolToInt(rec.HasHeader),
		boolToInt(rec.Flexible),
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
		rec                 storage.Record
		id, at, types, raw  string
		hasHeader, flexible int
	)
	err := r.db.QueryRowContext(ctx, buildLatestSQL(r.table), source).Scan(
		&id, &rec.Source, &at, &rec.Delimiter, &rec.Quote, &rec.NumFields,
		&hasHeader, &flexible, &types, &raw,
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
	if rec.SniffedAt, err = parseSQLiteTime(at); err != nil {
		return storage.Record{}, false, err
	}
	rec.HasHeader = hasHeader != 0
	rec.Flexible = flexible != 0
	rec.FieldTypes = storage.SplitTypes(types)
	rec.Report = []byte(raw)
	return rec, true, nil
}

func buildCreateSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  sniffed_at TEXT NOT NULL,
  delimiter TEXT NOT NULL,
  quote TEXT NOT NULL,
  num_fields INTEGER NOT NULL,
  has_header INTEGER NOT NULL,
  flexible INTEGER NOT NULL,
  field_types TEXT NOT NULL,
  report TEXT NOT NULL
)`, sqlIdent(table))
}

func buildIndexSQL(table string) string {
	return fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (source, sniffed_at)`,
		sqlIdent(indexName(table)), sqlIdent(table))
}

func buildInsertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s
  (id, source, sniffed_at, delimiter, quote, num_fields, has_header, flexible, field_types, report)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, sqlIdent(table))
}

func buildLatestSQL(table string) string {
	return fmt.Sprintf(`SELECT id, source, sniffed_at, delimiter, quote, num_fields, has_header, flexible, field_types, report
FROM %s
WHERE source = ?
ORDER BY sniffed_at DESC, rowid DESC
LIMIT 1`, sqlIdent(table))
}

// indexName derives "<table>_source_idx", dropping any schema prefix.
func indexName(table string) string {
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		table = table[i+1:]
	}
	return table + "_source_idx"
}

// sqlIdent quotes a possibly schema-qualified identifier.
func sqlIdent(s string) string {
	parts := strings.Split(s, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

// parseSQLiteTime accepts what formatSQLiteTime writes plus the common
// SQLite text forms. Values without a zone are read as UTC.
func parseSQLiteTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}

	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if layout == "2006-01-02 15:04:05" {
			if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return ts.UTC(), nil
			}
			continue
		}
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", s)
}
