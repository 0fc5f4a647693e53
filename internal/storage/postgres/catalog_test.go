package postgres

import (
	"strings"
	"testing"
)

func TestBuildSchemaSQL_Unqualified(t *testing.T) {
	t.Parallel()

	stmts := buildSchemaSQL("sniff_reports")
	if len(stmts) != 2 {
		t.Fatalf("expected table and index statements, got %d: %q", len(stmts), stmts)
	}
	if !strings.Contains(stmts[0], `CREATE TABLE IF NOT EXISTS "sniff_reports"`) {
		t.Fatalf("missing CREATE TABLE: %q", stmts[0])
	}
	for _, col := range []string{"id UUID PRIMARY KEY", "sniffed_at TIMESTAMPTZ", "field_types TEXT[]", "report JSONB"} {
		if !strings.Contains(stmts[0], col) {
			t.Fatalf("CREATE TABLE missing %q: %q", col, stmts[0])
		}
	}
	if !strings.Contains(stmts[1], `"sniff_reports_source_idx" ON "sniff_reports"`) {
		t.Fatalf("unexpected index DDL: %q", stmts[1])
	}
}

func TestBuildSchemaSQL_QualifiedCreatesSchema(t *testing.T) {
	t.Parallel()

	stmts := buildSchemaSQL("catalog.sniff_reports")
	if len(stmts) != 3 {
		t.Fatalf("expected schema, table and index statements, got %d", len(stmts))
	}
	if stmts[0] != `CREATE SCHEMA IF NOT EXISTS "catalog"` {
		t.Fatalf("unexpected schema DDL: %q", stmts[0])
	}
	if !strings.Contains(stmts[1], `"catalog"."sniff_reports"`) {
		t.Fatalf("table DDL not qualified: %q", stmts[1])
	}
	if !strings.Contains(stmts[2], `"sniff_reports_source_idx" ON "catalog"."sniff_reports"`) {
		t.Fatalf("unexpected index DDL: %q", stmts[2])
	}
}

func TestBuildInsertAndLatestSQL(t *testing.T) {
	t.Parallel()

	ins := buildInsertSQL("sniff_reports")
	if !strings.Contains(ins, "$10::jsonb") || strings.Contains(ins, "$11") {
		t.Fatalf("insert placeholders wrong: %q", ins)
	}
	sel := buildLatestSQL("sniff_reports")
	if !strings.Contains(sel, "WHERE source = $1") || !strings.Contains(sel, "ORDER BY sniffed_at DESC") {
		t.Fatalf("latest query wrong: %q", sel)
	}
	if !strings.Contains(sel, "LIMIT 1") {
		t.Fatalf("latest query must return a single row: %q", sel)
	}
}

func TestPgIdent(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"sniff_reports":         `"sniff_reports"`,
		"catalog.sniff_reports": `"catalog"."sniff_reports"`,
		`we"ird`:                `"we""ird"`,
	}
	for in, want := range cases {
		if got := pgIdent(in); got != want {
			t.Fatalf("pgIdent(%q)=%q want %q", in, got, want)
		}
	}
}
