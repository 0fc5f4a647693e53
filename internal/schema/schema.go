// Package schema turns a sniff report into a suggested CREATE TABLE
// statement for one of the catalog backends.
package schema

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"csvsniff/internal/fieldtype"
)

// Backend kinds understood by CreateTableSQL.
const (
	Postgres = "postgres"
	MSSQL    = "mssql"
	SQLite   = "sqlite"
)

// maxIdentLen is the Postgres identifier limit, the tightest of the three.
const maxIdentLen = 63

// Column is one suggested column.
type Column struct {
	Name string
	Type fieldtype.Type
	// DateOnly marks DateTime columns whose layout carries no time of day.
	DateOnly bool
}

// NormalizeBackend maps accepted aliases to a backend kind. Unknown values
// fall back to Postgres.
func NormalizeBackend(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pg":
		return Postgres
	case "mssql", "sqlserver":
		return MSSQL
	case "sqlite", "sqlite3":
		return SQLite
	default:
		return Postgres
	}
}

// Columns pairs header names with inferred types. Names are normalized to
// lowercase identifiers; blank names become col_N (1-based) and repeated
// names get a numeric suffix. layouts may be nil.
func Columns(names []string, types []fieldtype.Type, layouts []string) []Column {
	out := make([]Column, len(types))
	seen := make(map[string]int, len(types))
	for i, t := range types {
		var name string
		if i < len(names) {
			name = NormalizeName(names[i])
		}
		if name == "" {
			name = fmt.Sprintf("col_%d", i+1)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = truncateName(fmt.Sprintf("%s_%d", name, n+1))
		}
		seen[name]++

		col := Column{Name: name, Type: t}
		if t == fieldtype.DateTime && i < len(layouts) && layouts[i] != "" {
			col.DateOnly = !strings.Contains(layouts[i], "04")
		}
		out[i] = col
	}
	return out
}

// NormalizeName converts an arbitrary header into a safe, lowercase
// identifier. Separators collapse to a single underscore and other
// characters are dropped.
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))

	lastUnderscore := false
	for _, r := range s {
		switch {
		case r == ' ' || r == '-' || r == '.' || r == '/' || r == '\\' || r == ':' || r == ';' || r == '\t':
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		}
	}

	out := strings.Trim(b.String(), "_")
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "c_" + out
	}
	return truncateName(out)
}

// truncateName cuts s to maxIdentLen bytes on a UTF-8 boundary.
func truncateName(s string) string {
	if len(s) <= maxIdentLen {
		return s
	}
	cut := maxIdentLen
	for cut > 0 && !utf8.ValidString(s[:cut]) {
		cut--
	}
	return s[:cut]
}

// QualifyTable normalizes base and adds the backend's default schema.
func QualifyTable(backend, base string) string {
	base = NormalizeName(base)
	if base == "" {
		base = "sniffed"
	}
	switch NormalizeBackend(backend) {
	case MSSQL:
		return "dbo." + base
	case SQLite:
		return base
	default:
		return "public." + base
	}
}

// SQLType returns the column type for t on backend.
func SQLType(backend string, c Column) string {
	switch NormalizeBackend(backend) {
	case MSSQL:
		switch c.Type {
		case fieldtype.Boolean:
			return "BIT"
		case fieldtype.Integer:
			return "BIGINT"
		case fieldtype.Float:
			return "FLOAT"
		case fieldtype.DateTime:
			if c.DateOnly {
				return "DATE"
			}
			return "DATETIME2"
		default:
			return "NVARCHAR(MAX)"
		}
	case SQLite:
		switch c.Type {
		case fieldtype.Boolean, fieldtype.Integer:
			return "INTEGER"
		case fieldtype.Float:
			return "REAL"
		default:
			return "TEXT"
		}
	default:
		switch c.Type {
		case fieldtype.Boolean:
			return "BOOLEAN"
		case fieldtype.Integer:
			return "BIGINT"
		case fieldtype.Float:
			return "DOUBLE PRECISION"
		case fieldtype.DateTime:
			if c.DateOnly {
				return "DATE"
			}
			return "TIMESTAMPTZ"
		default:
			return "TEXT"
		}
	}
}

// CreateTableSQL renders an idempotent CREATE TABLE for cols. table may be
// schema-qualified. All columns are nullable.
func CreateTableSQL(backend, table string, cols []Column) (string, error) {
	backend = NormalizeBackend(backend)
	if strings.TrimSpace(table) == "" {
		return "", fmt.Errorf("schema: empty table name")
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("schema: no columns for table %s", table)
	}

	defs := make([]string, len(cols))
	for i, c := range cols {
		if c.Name == "" {
			return "", fmt.Errorf("schema: column %d has no name", i)
		}
		defs[i] = fmt.Sprintf("  %s %s NULL", quoteIdent(backend, c.Name), SQLType(backend, c))
	}
	body := strings.Join(defs, ",\n")

	if backend == MSSQL {
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nCREATE TABLE %s (\n%s\n);",
			strings.ReplaceAll(table, "'", "''"), quoteTable(backend, table), body), nil
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n);", quoteTable(backend, table), body), nil
}

func quoteIdent(backend, s string) string {
	if backend == MSSQL {
		return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteTable(backend, table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = quoteIdent(backend, strings.TrimSpace(p))
	}
	return strings.Join(parts, ".")
}
