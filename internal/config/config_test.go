package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csvsniff/internal/fieldtype"
	"csvsniff/pkg/sniffer"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, sniffer.DefaultSampleBytes, c.Sample.Bytes)
	assert.Equal(t, "text", c.Output.Format)
	assert.Equal(t, "none", c.Metrics.Backend)
	assert.Equal(t, "warn", c.Log.Level)
	assert.Equal(t, 30*time.Second, c.Source.Timeout)
	assert.Empty(t, Validate(c))
}

// Not parallel: t.Setenv.
func TestLoad_EnvAndFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "sniff.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
sample:
  bytes: 4096
types:
  candidates: [integer, text]
  date_layouts: ["02/01/2006"]
output:
  format: json
catalog:
  backend: sqlite
`), 0o600))

	t.Setenv("SNIFF_SAMPLE_BYTES", "8192")
	t.Setenv("SNIFF_DIALECT_DELIMITER", "tab")
	t.Setenv("SNIFF_LOG_LEVEL", "debug")

	v := viper.New()
	v.Set(KeyConfigFile, file)
	c, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 8192, c.Sample.Bytes, "env wins over file")
	assert.Equal(t, "tab", c.Dialect.Delimiter)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "json", c.Output.Format)
	assert.Equal(t, "sqlite", c.Catalog.Backend)
	assert.Equal(t, []string{"integer", "text"}, c.Types.Candidates)
	assert.Equal(t, []string{"02/01/2006"}, c.Types.DateLayouts)
}

func TestLoad_MissingFile(t *testing.T) {
	v := viper.New()
	v.Set(KeyConfigFile, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load(v)
	assert.ErrorContains(t, err, "read config")
}

func TestSnifferOptions(t *testing.T) {
	t.Parallel()

	c := Config{
		Sample:  SampleConfig{Bytes: 100, Lines: 5, Encoding: "latin1"},
		Dialect: DialectConfig{Delimiter: "|", Quote: "none"},
		Types: TypesConfig{
			Candidates:  []string{"integer,float", "text"},
			BoolAliases: true,
			DateLayouts: []string{"", "2006-01-02"},
		},
		Header: HeaderConfig{None: true},
	}
	opts, err := c.SnifferOptions()
	require.NoError(t, err)

	assert.Equal(t, 100, opts.SampleBytes)
	assert.Equal(t, 5, opts.SampleLines)
	assert.Equal(t, "latin1", opts.Encoding)
	assert.Equal(t, byte('|'), opts.Delimiter)
	require.NotNil(t, opts.Quote)
	assert.Equal(t, byte(0), *opts.Quote)
	assert.Equal(t, []fieldtype.Type{fieldtype.Integer, fieldtype.Float, fieldtype.Text}, opts.TypeCandidates)
	assert.True(t, opts.BoolAliases)
	assert.Equal(t, []string{"2006-01-02"}, opts.DateLayouts)
	assert.True(t, opts.NoHeader)

	opts, err = Config{}.SnifferOptions()
	require.NoError(t, err)
	assert.Zero(t, opts.Delimiter)
	assert.Nil(t, opts.Quote)
	assert.Nil(t, opts.TypeCandidates)

	_, err = Config{Dialect: DialectConfig{Delimiter: "ab"}}.SnifferOptions()
	assert.Error(t, err)
	_, err = Config{Types: TypesConfig{Candidates: []string{"uuid"}}}.SnifferOptions()
	assert.Error(t, err)
}

func TestParseByte(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    byte
		wantErr bool
	}{
		{in: ",", want: ','},
		{in: "TAB", want: '\t'},
		{in: `\t`, want: '\t'},
		{in: "pipe", want: '|'},
		{in: "none", want: 0},
		{in: "0x1f", want: 0x1f},
		{in: "'", want: '\''},
		{in: "0xzz", wantErr: true},
		{in: "ab", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseByte(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*Config)
		path     string
		severity Severity
	}{
		{"negative bytes", func(c *Config) { c.Sample.Bytes = -1 }, KeySampleBytes, SeverityError},
		{"huge bytes", func(c *Config) { c.Sample.Bytes = 1 << 30 }, KeySampleBytes, SeverityWarning},
		{"negative lines", func(c *Config) { c.Sample.Lines = -3 }, KeySampleLines, SeverityError},
		{"bad encoding", func(c *Config) { c.Sample.Encoding = "klingon" }, KeySampleEncoding, SeverityError},
		{"bad delimiter", func(c *Config) { c.Dialect.Delimiter = "::" }, KeyDelimiter, SeverityError},
		{"newline delimiter", func(c *Config) { c.Dialect.Delimiter = "\n" }, KeyDelimiter, SeverityError},
		{"none delimiter", func(c *Config) { c.Dialect.Delimiter = "none" }, KeyDelimiter, SeverityError},
		{"quote equals delimiter", func(c *Config) { c.Dialect.Delimiter = ";"; c.Dialect.Quote = ";" }, KeyQuote, SeverityError},
		{"bad type", func(c *Config) { c.Types.Candidates = []string{"decimal"} }, KeyTypeCandidates, SeverityError},
		{"empty layout", func(c *Config) { c.Types.DateLayouts = []string{" "} }, KeyDateLayouts, SeverityWarning},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }, KeyOutputFormat, SeverityError},
		{"ddl without header", func(c *Config) { c.Output.Format = "ddl"; c.Header.None = true }, KeyNoHeader, SeverityWarning},
		{"bad table", func(c *Config) { c.Output.Table = "!!" }, KeyOutputTable, SeverityError},
		{"bad ddl backend", func(c *Config) { c.Output.Backend = "db2" }, KeyOutputBackend, SeverityError},
		{"bad catalog", func(c *Config) { c.Catalog.Backend = "oracle" }, KeyCatalogBackend, SeverityError},
		{"orphan dsn", func(c *Config) { c.Catalog.DSN = "x" }, KeyCatalogBackend, SeverityWarning},
		{"bad metrics", func(c *Config) { c.Metrics.Backend = "statsd" }, KeyMetricsBackend, SeverityError},
		{"negative flush", func(c *Config) { c.Metrics.FlushEvery = -time.Second }, KeyMetricsFlush, SeverityError},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, KeyLogLevel, SeverityError},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, KeyLogFormat, SeverityError},
		{"negative timeout", func(c *Config) { c.Source.Timeout = -1 }, KeySourceTimeout, SeverityError},
		{"insecure tls", func(c *Config) { c.Source.InsecureTLS = true }, KeySourceInsecure, SeverityWarning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var c Config
			tt.mutate(&c)
			issues := Validate(c)
			require.Len(t, issues, 1, "%v", issues)
			assert.Equal(t, tt.path, issues[0].Path)
			assert.Equal(t, tt.severity, issues[0].Severity)
			assert.Equal(t, tt.severity == SeverityError, HasErrors(issues))
		})
	}
}

func TestValidate_ZeroConfigIsClean(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Validate(Config{}))
}
