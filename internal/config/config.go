// Package config loads csvsniff settings from flags, SNIFF_* environment
// variables and an optional config file, and converts them into sniffer
// options.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"csvsniff/internal/fieldtype"
	"csvsniff/pkg/sniffer"
)

// EnvPrefix is prepended to every environment key: sample.bytes is read
// from SNIFF_SAMPLE_BYTES.
const EnvPrefix = "SNIFF"

// Config keys. Flags bind to these with viper.BindPFlag.
const (
	KeySampleBytes    = "sample.bytes"
	KeySampleLines    = "sample.lines"
	KeySampleEncoding = "sample.encoding"
	KeyDelimiter      = "dialect.delimiter"
	KeyQuote          = "dialect.quote"
	KeyTypeCandidates = "types.candidates"
	KeyBoolAliases    = "types.bool_aliases"
	KeyDateLayouts    = "types.date_layouts"
	KeyNoHeader       = "header.none"
	KeyOutputFormat   = "output.format"
	KeyOutputPretty   = "output.pretty"
	KeyOutputTable    = "output.table"
	KeyOutputBackend  = "output.backend"
	KeyCatalogBackend = "catalog.backend"
	KeyCatalogDSN     = "catalog.dsn"
	KeyCatalogTable   = "catalog.table"
	KeyMetricsBackend = "metrics.backend"
	KeyMetricsTags    = "metrics.tags"
	KeyMetricsFlush   = "metrics.flush_every"
	KeyLogLevel       = "log.level"
	KeyLogFormat      = "log.format"
	KeySourceInsecure = "source.insecure_tls"
	KeySourceTimeout  = "source.timeout"
	KeyConfigFile     = "config"
)

const defaultOutputFormat = "text"

// Defaults shared with flag definitions.
const (
	DefaultMetricsFlush  = 10 * time.Second
	DefaultSourceTimeout = 30 * time.Second
)

// Config is the fully resolved CLI configuration.
type Config struct {
	Sample  SampleConfig  `mapstructure:"sample"`
	Dialect DialectConfig `mapstructure:"dialect"`
	Types   TypesConfig   `mapstructure:"types"`
	Header  HeaderConfig  `mapstructure:"header"`
	Output  OutputConfig  `mapstructure:"output"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
	Source  SourceConfig  `mapstructure:"source"`
}

type SampleConfig struct {
	Bytes    int    `mapstructure:"bytes"`
	Lines    int    `mapstructure:"lines"`
	Encoding string `mapstructure:"encoding"`
}

// DialectConfig holds optional overrides. Bytes are written literally
// (",") or by name ("tab", "pipe", "none", "\t", "0x1f").
type DialectConfig struct {
	Delimiter string `mapstructure:"delimiter"`
	Quote     string `mapstructure:"quote"`
}

type TypesConfig struct {
	Candidates  []string `mapstructure:"candidates"`
	BoolAliases bool     `mapstructure:"bool_aliases"`
	DateLayouts []string `mapstructure:"date_layouts"`
}

type HeaderConfig struct {
	None bool `mapstructure:"none"`
}

type OutputConfig struct {
	// Format is text, json or ddl.
	Format string `mapstructure:"format"`
	Pretty bool   `mapstructure:"pretty"`
	// Table names the table in ddl output. Empty derives it from the source.
	Table string `mapstructure:"table"`
	// Backend picks the ddl flavor. Empty falls back to the catalog backend,
	// then postgres.
	Backend string `mapstructure:"backend"`
}

// CatalogConfig enables persisting reports when Backend is set.
type CatalogConfig struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
	Table   string `mapstructure:"table"`
}

type MetricsConfig struct {
	// Backend is none or datadog.
	Backend    string        `mapstructure:"backend"`
	Tags       []string      `mapstructure:"tags"`
	FlushEvery time.Duration `mapstructure:"flush_every"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SourceConfig struct {
	InsecureTLS bool          `mapstructure:"insecure_tls"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// SetDefaults registers every key with its default so environment
// variables are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeySampleBytes, sniffer.DefaultSampleBytes)
	v.SetDefault(KeySampleLines, 0)
	v.SetDefault(KeySampleEncoding, "")
	v.SetDefault(KeyDelimiter, "")
	v.SetDefault(KeyQuote, "")
	v.SetDefault(KeyTypeCandidates, []string{})
	v.SetDefault(KeyBoolAliases, false)
	v.SetDefault(KeyDateLayouts, []string{})
	v.SetDefault(KeyNoHeader, false)
	v.SetDefault(KeyOutputFormat, defaultOutputFormat)
	v.SetDefault(KeyOutputPretty, false)
	v.SetDefault(KeyOutputTable, "")
	v.SetDefault(KeyOutputBackend, "")
	v.SetDefault(KeyCatalogBackend, "")
	v.SetDefault(KeyCatalogDSN, "")
	v.SetDefault(KeyCatalogTable, "")
	v.SetDefault(KeyMetricsBackend, "none")
	v.SetDefault(KeyMetricsTags, []string{})
	v.SetDefault(KeyMetricsFlush, DefaultMetricsFlush)
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeySourceInsecure, false)
	v.SetDefault(KeySourceTimeout, DefaultSourceTimeout)
}

// Load resolves v into a Config. Flags must already be bound. If the
// "config" key names a file it is read first; flags and environment
// still take precedence over it.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := v.GetString(KeyConfigFile); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

// SnifferOptions converts c into core options. Logger and Metrics are left
// for the caller. Run Validate first; this returns the first parse error.
func (c Config) SnifferOptions() (sniffer.Options, error) {
	opts := sniffer.Options{
		SampleBytes: c.Sample.Bytes,
		SampleLines: c.Sample.Lines,
		Encoding:    c.Sample.Encoding,
		BoolAliases: c.Types.BoolAliases,
		NoHeader:    c.Header.None,
	}

	if c.Dialect.Delimiter != "" {
		b, err := ParseByte(c.Dialect.Delimiter)
		if err != nil {
			return sniffer.Options{}, fmt.Errorf("%s: %w", KeyDelimiter, err)
		}
		if b == 0 {
			return sniffer.Options{}, fmt.Errorf("%s: delimiter cannot be none", KeyDelimiter)
		}
		opts.Delimiter = b
	}
	if c.Dialect.Quote != "" {
		b, err := ParseByte(c.Dialect.Quote)
		if err != nil {
			return sniffer.Options{}, fmt.Errorf("%s: %w", KeyQuote, err)
		}
		opts.Quote = &b
	}

	for _, name := range splitList(c.Types.Candidates) {
		t, err := fieldtype.ParseType(name)
		if err != nil {
			return sniffer.Options{}, fmt.Errorf("%s: %w", KeyTypeCandidates, err)
		}
		opts.TypeCandidates = append(opts.TypeCandidates, t)
	}
	if layouts := nonEmpty(c.Types.DateLayouts); len(layouts) > 0 {
		opts.DateLayouts = layouts
	}
	return opts, nil
}

var byteNames = map[string]byte{
	"none":      0,
	"comma":     ',',
	"tab":       '\t',
	`\t`:        '\t',
	"semicolon": ';',
	"pipe":      '|',
	"colon":     ':',
	"space":     ' ',
	"dquote":    '"',
	"squote":    '\'',
}

// ParseByte parses a single-byte dialect setting. "none" yields 0.
func ParseByte(s string) (byte, error) {
	if b, ok := byteNames[strings.ToLower(s)]; ok {
		return b, nil
	}
	if len(s) == 1 {
		return s[0], nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := strconv.ParseUint(s[2:], 16, 8)
		if err == nil {
			return byte(n), nil
		}
	}
	return 0, fmt.Errorf("invalid single-byte value %q", s)
}

// splitList flattens comma-separated entries so "integer,float" from an
// environment variable and ["integer", "float"] from a file agree.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
