package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"csvsniff/internal/config"
	"csvsniff/internal/metrics"
	"csvsniff/internal/metrics/datadog"
	"csvsniff/internal/source"
	"csvsniff/pkg/sniffer"
)

const jobName = "csvsniff"

// usageError marks failures that exit with status 2.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// run executes the command and returns the process exit code.
func run(ctx context.Context, args []string, d deps) int {
	v := viper.New()
	cmd := newRootCmd(v, d)
	cmd.SetArgs(args)
	cmd.SetIn(d.Stdin)
	cmd.SetOut(d.Stdout)
	cmd.SetErr(d.Stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintf(d.Stderr, "sniff: %v\n", err)

	var ue *usageError
	if errors.As(err, &ue) {
		fmt.Fprint(d.Stderr, cmd.UsageString())
		return 2
	}
	return 1
}

// flagKeys maps config keys to flag names.
var flagKeys = map[string]string{
	config.KeyConfigFile:     "config",
	config.KeySampleBytes:    "bytes",
	config.KeySampleLines:    "lines",
	config.KeySampleEncoding: "encoding",
	config.KeyDelimiter:      "delimiter",
	config.KeyQuote:          "quote",
	config.KeyTypeCandidates: "types",
	config.KeyBoolAliases:    "bool-aliases",
	config.KeyDateLayouts:    "date-layout",
	config.KeyNoHeader:       "no-header",
	config.KeyOutputFormat:   "format",
	config.KeyOutputPretty:   "pretty",
	config.KeyOutputTable:    "table",
	config.KeyOutputBackend:  "ddl-backend",
	config.KeyCatalogBackend: "catalog",
	config.KeyCatalogDSN:     "dsn",
	config.KeyCatalogTable:   "catalog-table",
	config.KeyMetricsBackend: "metrics",
	config.KeyMetricsTags:    "metrics-tags",
	config.KeyMetricsFlush:   "metrics-flush",
	config.KeyLogLevel:       "log-level",
	config.KeyLogFormat:      "log-format",
	config.KeySourceInsecure: "insecure-tls",
	config.KeySourceTimeout:  "timeout",
}

func newRootCmd(v *viper.Viper, d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sniff [flags] <path|url|->",
		Short: "Infer the dialect, header and column types of a CSV file",
		Long: `sniff reads a bounded sample of a delimited text file and reports its
delimiter, quoting, field count, header row and per-column types.`,
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usagef("expected exactly one source, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSniff(cmd.Context(), v, d, args[0])
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	f := cmd.Flags()
	f.String("config", "", "Config file (yaml, json or toml)")
	f.Int("bytes", sniffer.DefaultSampleBytes, "Maximum number of bytes to sample")
	f.Int("lines", 0, "Maximum number of lines to sample (0 = no limit)")
	f.String("encoding", "", "Source encoding (utf-8, utf-16, latin1, windows-1252, or any IANA name)")
	f.StringP("delimiter", "d", "", "Force the delimiter (e.g. ',', tab, pipe, 0x1f)")
	f.StringP("quote", "q", "", "Force the quote character, or none")
	f.StringSlice("types", nil, "Restrict inferred types (boolean,integer,float,datetime,text)")
	f.Bool("bool-aliases", false, "Accept 1/0, t/f, yes/no and y/n as booleans")
	f.StringArray("date-layout", nil, "Go time layout accepted as a date (repeatable)")
	f.Bool("no-header", false, "Treat the first row as data")
	f.StringP("format", "f", "text", "Output format: text, json or ddl")
	f.Bool("pretty", false, "Indent JSON output")
	f.String("table", "", "Table name for ddl output (default: source name)")
	f.String("ddl-backend", "", "DDL flavor: postgres, mssql or sqlite (default: --catalog, then postgres)")
	f.String("catalog", "", "Store the report in a catalog: postgres, mssql or sqlite")
	f.String("dsn", "", "Catalog DSN (highest priority)")
	f.String("catalog-table", "", "Catalog table name (default sniff_reports)")
	f.String("metrics", "none", "Metrics backend: none or datadog")
	f.String("metrics-tags", "", "Extra metric tags, comma separated (env:prod,team:data)")
	f.Duration("metrics-flush", config.DefaultMetricsFlush, "Metrics flush interval")
	f.String("log-level", "warn", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text or json)")
	f.Bool("insecure-tls", false, "Skip TLS verification for https sources")
	f.Duration("timeout", config.DefaultSourceTimeout, "HTTP timeout for remote sources")

	for key, name := range flagKeys {
		if err := v.BindPFlag(key, f.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
	return cmd
}

func runSniff(ctx context.Context, v *viper.Viper, d deps, target string) error {
	c, err := config.Load(v)
	if err != nil {
		return &usageError{err: err}
	}
	issues := config.Validate(c)
	for _, iss := range issues {
		fmt.Fprintln(d.Stderr, iss)
	}
	if config.HasErrors(issues) {
		return usagef("invalid configuration")
	}

	log := newLogger(c.Log, d)

	opts, err := c.SnifferOptions()
	if err != nil {
		return &usageError{err: err}
	}
	opts.Logger = log.WithField("source", target)

	if strings.EqualFold(c.Metrics.Backend, "datadog") {
		backend, err := d.BackendFactory(ctx, jobName, metricTags(c.Metrics.Tags), c.Metrics.FlushEvery)
		if err != nil {
			return fmt.Errorf("datadog backend init failed: %w", err)
		}
		metrics.SetBackend(backend)
		defer func() {
			if err := metrics.Flush(); err != nil {
				log.WithError(err).Warn("metrics flush failed")
			}
			_ = backend.Close()
			metrics.SetBackend(nil)
		}()
	}

	rc, err := source.Open(ctx, target, source.Options{
		Timeout:     c.Source.Timeout,
		InsecureTLS: c.Source.InsecureTLS,
		Stdin:       d.Stdin,
	})
	if err != nil {
		return err
	}
	rep, err := sniffer.Sniff(rc, opts)
	_ = rc.Close()
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"source":     target,
		"num_fields": rep.NumFields,
		"has_header": rep.HasHeader,
	}).Info("sniff complete")

	if err := writeReport(d.Stdout, c, target, rep); err != nil {
		return err
	}

	if c.Catalog.Backend != "" {
		if err := saveToCatalog(ctx, c, d, log, catalogSource(target), rep); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
	}
	return nil
}

func newLogger(c config.LogConfig, d deps) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(d.Stderr)
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		level = logrus.WarnLevel
	}
	log.SetLevel(level)
	if strings.EqualFold(c.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}
	return log
}

func metricTags(raw []string) []string {
	var tags []string
	for _, s := range raw {
		tags = append(tags, datadog.ParseTagsCSV(s)...)
	}
	return append(tags, "tool:sniff")
}

// catalogSource is the key a report is stored under: an absolute path for
// local files, the URL otherwise.
func catalogSource(target string) string {
	switch {
	case target == source.Stdin:
		return "stdin"
	case strings.Contains(target, "://"):
		return target
	}
	if abs, err := filepath.Abs(target); err == nil {
		return abs
	}
	return target
}
