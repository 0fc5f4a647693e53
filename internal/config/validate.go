package config

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"csvsniff/internal/fieldtype"
	"csvsniff/internal/sample"
	"csvsniff/internal/schema"
)

// Severity grades a validation Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is the config key.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// maxSampleBytes is the size above which a sample bound draws a warning.
const maxSampleBytes = 64 << 20

var catalogBackends = map[string]bool{
	"postgres": true, "postgresql": true,
	"mssql": true, "sqlserver": true,
	"sqlite": true, "sqlite3": true,
}

// Validate checks c and returns every issue found, errors and warnings
// interleaved in key order.
func Validate(c Config) []Issue {
	var out []Issue
	add := func(sev Severity, path, format string, args ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	switch {
	case c.Sample.Bytes < 0:
		add(SeverityError, KeySampleBytes, "must be >= 0, got %d", c.Sample.Bytes)
	case c.Sample.Bytes > maxSampleBytes:
		add(SeverityWarning, KeySampleBytes, "%d bytes is large; the whole sample is held in memory", c.Sample.Bytes)
	}
	if c.Sample.Lines < 0 {
		add(SeverityError, KeySampleLines, "must be >= 0, got %d", c.Sample.Lines)
	}
	if _, err := sample.NewDecodingReader(strings.NewReader(""), c.Sample.Encoding); err != nil {
		add(SeverityError, KeySampleEncoding, "%v", err)
	}

	var delim, quote byte
	var quoteSet bool
	if c.Dialect.Delimiter != "" {
		b, err := ParseByte(c.Dialect.Delimiter)
		switch {
		case err != nil:
			add(SeverityError, KeyDelimiter, "%v", err)
		case b == 0:
			add(SeverityError, KeyDelimiter, "delimiter cannot be none")
		case b == '\n' || b == '\r':
			add(SeverityError, KeyDelimiter, "delimiter cannot be a line terminator")
		default:
			delim = b
		}
	}
	if c.Dialect.Quote != "" {
		b, err := ParseByte(c.Dialect.Quote)
		if err != nil {
			add(SeverityError, KeyQuote, "%v", err)
		} else {
			quote, quoteSet = b, true
		}
	}
	if quoteSet && quote != 0 && quote == delim {
		add(SeverityError, KeyQuote, "quote and delimiter are both %q", quote)
	}

	for _, name := range splitList(c.Types.Candidates) {
		if _, err := fieldtype.ParseType(name); err != nil {
			add(SeverityError, KeyTypeCandidates, "%v", err)
		}
	}
	for i, l := range c.Types.DateLayouts {
		if strings.TrimSpace(l) == "" {
			add(SeverityWarning, KeyDateLayouts, "entry %d is empty and ignored", i)
		}
	}

	format := strings.ToLower(strings.TrimSpace(c.Output.Format))
	switch format {
	case "", "text", "json", "ddl":
	default:
		add(SeverityError, KeyOutputFormat, "unknown format %q (want text, json or ddl)", c.Output.Format)
	}
	if format == "ddl" && c.Header.None {
		add(SeverityWarning, KeyNoHeader, "ddl output without a header names columns col_1..col_N")
	}
	if c.Output.Table != "" && schema.NormalizeName(c.Output.Table) == "" {
		add(SeverityError, KeyOutputTable, "%q has no usable identifier characters", c.Output.Table)
	}

	if b := strings.ToLower(strings.TrimSpace(c.Output.Backend)); b != "" && !catalogBackends[b] {
		add(SeverityError, KeyOutputBackend, "unknown backend %q (want postgres, mssql or sqlite)", c.Output.Backend)
	}
	if b := strings.ToLower(strings.TrimSpace(c.Catalog.Backend)); b != "" && !catalogBackends[b] {
		add(SeverityError, KeyCatalogBackend, "unknown backend %q (want postgres, mssql or sqlite)", c.Catalog.Backend)
	}
	if c.Catalog.Backend == "" && (c.Catalog.DSN != "" || c.Catalog.Table != "") {
		add(SeverityWarning, KeyCatalogBackend, "catalog settings are ignored without a backend")
	}

	switch strings.ToLower(strings.TrimSpace(c.Metrics.Backend)) {
	case "", "none", "datadog":
	default:
		add(SeverityError, KeyMetricsBackend, "unknown backend %q (want none or datadog)", c.Metrics.Backend)
	}
	if c.Metrics.FlushEvery < 0 {
		add(SeverityError, KeyMetricsFlush, "must be >= 0, got %s", c.Metrics.FlushEvery)
	}

	if c.Log.Level != "" {
		if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
			add(SeverityError, KeyLogLevel, "%v", err)
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		add(SeverityError, KeyLogFormat, "unknown format %q (want text or json)", c.Log.Format)
	}

	if c.Source.Timeout < 0 {
		add(SeverityError, KeySourceTimeout, "must be >= 0, got %s", c.Source.Timeout)
	}
	if c.Source.InsecureTLS {
		add(SeverityWarning, KeySourceInsecure, "TLS certificate verification is disabled")
	}
	return out
}
