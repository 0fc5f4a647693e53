package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csvsniff/internal/storage"
	"csvsniff/pkg/sniffer"
)

func TestParseSQLiteTime_TableDriven(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{name: "fixed_width", in: "2026-01-27T12:17:08.120000000Z", want: time.Date(2026, 1, 27, 12, 17, 8, 120000000, time.UTC)},
		{name: "rfc3339nano", in: "2026-01-27T12:17:08.123456789Z", want: time.Date(2026, 1, 27, 12, 17, 8, 123456789, time.UTC)},
		{name: "rfc3339", in: "2026-01-27T12:17:08Z", want: time.Date(2026, 1, 27, 12, 17, 8, 0, time.UTC)},
		{name: "sqlite_space_tz", in: "2026-01-27 13:17:08+01:00", want: time.Date(2026, 1, 27, 12, 17, 8, 0, time.UTC)},
		{name: "sqlite_space_tz_nanos", in: "2026-01-27 12:17:08.000000000+00:00", want: time.Date(2026, 1, 27, 12, 17, 8, 0, time.UTC)},
		{name: "sqlite_no_tz_assume_utc", in: "2026-01-27 12:17:08", want: time.Date(2026, 1, 27, 12, 17, 8, 0, time.UTC)},
		{name: "empty", in: "  ", wantErr: true},
		{name: "invalid", in: "not-a-time", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSQLiteTime(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got=%s want=%s", got, tt.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestFormatSQLiteTime_OrdersLexically(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 27, 12, 0, 0, 0, time.UTC)
	a := formatSQLiteTime(base)
	b := formatSQLiteTime(base.Add(500 * time.Millisecond))
	assert.Less(t, a, b)
	assert.Len(t, a, len(b))

	in := time.Date(2026, 1, 27, 12, 17, 8, 123, time.FixedZone("X", 3600))
	got, err := parseSQLiteTime(formatSQLiteTime(in))
	require.NoError(t, err)
	assert.True(t, in.Equal(got))
}

func TestSQLIdent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `"sniff_reports"`, sqlIdent("sniff_reports"))
	assert.Equal(t, `"main"."sniff_reports"`, sqlIdent("main.sniff_reports"))
	assert.Equal(t, `"a""b"`, sqlIdent(`a"b`))
	assert.Equal(t, "sniff_reports_source_idx", indexName("main.sniff_reports"))
}

func TestRepo_SaveLatest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dsn := filepath.Join(t.TempDir(), "catalog.db")
	repo, err := storage.New(ctx, storage.Config{Kind: "sqlite", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	require.NoError(t, repo.EnsureSchema(ctx))
	require.NoError(t, repo.EnsureSchema(ctx), "schema creation must be idempotent")

	_, ok, err := repo.Latest(ctx, "people.csv")
	require.NoError(t, err)
	assert.False(t, ok)

	first, err := sniffer.Sniff(strings.NewReader("name,age,active\nAlice,30,true\nBob,25,false\n"), sniffer.Options{})
	require.NoError(t, err)
	second, err := sniffer.Sniff(strings.NewReader("name;age\nAlice;30\nBob;25\n"), sniffer.Options{})
	require.NoError(t, err)

	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec1, err := storage.NewRecord("people.csv", first, t0)
	require.NoError(t, err)
	rec2, err := storage.NewRecord("people.csv", second, t0.Add(time.Second))
	require.NoError(t, err)
	other, err := storage.NewRecord("other.csv", first, t0.Add(time.Hour))
	require.NoError(t, err)

	for _, rec := range []storage.Record{rec2, rec1, other} {
		require.NoError(t, repo.Save(ctx, rec))
	}

	got, ok, err := repo.Latest(ctx, "people.csv")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec2.ID, got.ID)
	assert.True(t, rec2.SniffedAt.Equal(got.SniffedAt))
	assert.Equal(t, ";", got.Delimiter)
	assert.Equal(t, 2, got.NumFields)
	assert.True(t, got.HasHeader)
	assert.False(t, got.Flexible)
	assert.Equal(t, []string{"Text", "Integer"}, got.FieldTypes)
	assert.JSONEq(t, string(rec2.Report), string(got.Report))

	assert.Error(t, repo.Save(ctx, rec2), "duplicate id must be rejected")
}
