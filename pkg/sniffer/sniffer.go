// Package sniffer infers the dialect, shape and column types of delimited
// text from a bounded sample.
//
// Sniff reads at most Options.SampleBytes from its source and then runs a
// single deterministic pass over the sample:
//
//	extract -> dialect -> tokenize -> field counts -> header & types -> Report
//
// No stage re-reads the source. The only fan-out is per-column type
// inference. Sniff holds no state between calls and is safe for concurrent
// use.
package sniffer

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"csvsniff/internal/dialect"
	"csvsniff/internal/fieldcount"
	"csvsniff/internal/fieldtype"
	"csvsniff/internal/header"
	"csvsniff/internal/metrics"
	"csvsniff/internal/sample"
	"csvsniff/internal/tokenize"
)

// DefaultSampleBytes is the byte bound used when Options.SampleBytes is 0.
const DefaultSampleBytes = sample.DefaultMaxBytes

// Type re-exports the column type lattice.
type Type = fieldtype.Type

const (
	Boolean  = fieldtype.Boolean
	Integer  = fieldtype.Integer
	Float    = fieldtype.Float
	DateTime = fieldtype.DateTime
	Text     = fieldtype.Text
)

// Dialect re-exports the detected dialect.
type Dialect = dialect.Dialect

// QuotingStyle re-exports the quoting style enum.
type QuotingStyle = dialect.QuotingStyle

const (
	QuotingNone    = dialect.QuotingNone
	QuotingMinimal = dialect.QuotingMinimal
	QuotingAll     = dialect.QuotingAll
)

// Options tunes a single Sniff call. The zero value is ready to use.
type Options struct {
	// SampleBytes bounds the sample. 0 means DefaultSampleBytes.
	SampleBytes int
	// SampleLines optionally bounds the number of sampled lines.
	SampleLines int
	// Encoding names the source encoding; empty means UTF-8.
	Encoding string

	// Delimiter, when non-zero, skips delimiter detection.
	Delimiter byte
	// Quote, when non-nil, skips quote detection. Point it at 0 to force an
	// unquoted dialect.
	Quote *byte

	// TypeCandidates restricts the type lattice. Text is always kept.
	TypeCandidates []Type
	// BoolAliases accepts 1/0, t/f, yes/no and y/n as Boolean.
	BoolAliases bool
	// DateLayouts replaces the default DateTime layouts (Go time layouts,
	// first match wins).
	DateLayouts []string
	// NoHeader forces HasHeader to false.
	NoHeader bool

	// Logger receives per-stage debug output. nil disables logging.
	Logger logrus.FieldLogger
	// Metrics receives sniff metrics. nil uses the process-wide backend.
	Metrics metrics.Backend
}

func (o Options) validate() error {
	switch {
	case o.SampleBytes < 0:
		return fmt.Errorf("%w: sample bytes %d < 0", ErrInvalidOptions, o.SampleBytes)
	case o.SampleLines < 0:
		return fmt.Errorf("%w: sample lines %d < 0", ErrInvalidOptions, o.SampleLines)
	case o.Delimiter == '\n' || o.Delimiter == '\r':
		return fmt.Errorf("%w: delimiter cannot be a line terminator", ErrInvalidOptions)
	case o.Quote != nil && *o.Quote != 0 && *o.Quote == o.Delimiter:
		return fmt.Errorf("%w: quote and delimiter are both %q", ErrInvalidOptions, o.Delimiter)
	}
	return nil
}

var discardLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// Sniff samples r and infers its structure.
//
// Errors (all reachable with errors.As / errors.Is):
//   - *IOError if reading the source fails.
//   - *EmptySampleError (ErrEmptySample) if the sample holds no rows.
//   - *AmbiguousDialectError (ErrAmbiguousDialect) if no delimiter fits.
//   - *UnterminatedQuoteError if the sample ends inside a quoted field.
//   - ErrInvalidOptions for unusable options.
func Sniff(r io.Reader, opts Options) (report *Report, err error) {
	log := opts.Logger
	if log == nil {
		log = discardLogger
	}
	mb := opts.Metrics
	if mb == nil {
		mb = metrics.Current()
	}

	start := time.Now()
	defer func() {
		status := errorStatus(err)
		mb.IncCounter(metrics.SniffTotal, 1, metrics.Labels{"status": status})
		mb.ObserveHistogram(metrics.SniffDurationSeconds, time.Since(start).Seconds(), metrics.Labels{"status": status})
		if err != nil {
			log.WithError(err).WithField("status", status).Debug("sniff failed")
		}
	}()

	if err := opts.validate(); err != nil {
		return nil, err
	}

	maxBytes := opts.SampleBytes
	if maxBytes == 0 {
		maxBytes = DefaultSampleBytes
	}
	s, err := sample.Extract(r, sample.Limits{MaxBytes: maxBytes, MaxLines: opts.SampleLines, Encoding: opts.Encoding})
	if err != nil {
		return nil, fmt.Errorf("sniff: extract sample: %w", err)
	}
	mb.ObserveHistogram(metrics.SniffSampleBytes, float64(s.Len()), nil)
	log.WithFields(logrus.Fields{
		"bytes":     s.Len(),
		"lines":     len(s.Lines()),
		"truncated": s.Truncated(),
	}).Debug("sample extracted")

	if isBlank(s) {
		return nil, &EmptySampleError{SampleBytes: maxBytes, Truncated: s.Truncated() && s.Len() == 0}
	}

	d, err := dialect.Detect(s, dialect.Overrides{Delimiter: opts.Delimiter, Quote: opts.Quote})
	if err != nil {
		return nil, fmt.Errorf("sniff: detect dialect: %w", err)
	}
	log.WithFields(logrus.Fields{
		"delimiter": dialect.FormatByte(d.Delimiter),
		"quote":     dialect.FormatByte(d.Quote),
		"quoting":   d.Quoting.String(),
		"escape":    dialect.FormatByte(d.Escape),
	}).Debug("dialect detected")

	rows, err := tokenize.Tokenize(s.Bytes(), d.TokenizerConfig())
	if err != nil {
		return nil, fmt.Errorf("sniff: tokenize: %w", err)
	}
	if len(rows) == 0 {
		return nil, &EmptySampleError{SampleBytes: maxBytes}
	}

	prof := fieldcount.Reconcile(rows)
	bodyRows := prof.Body(rows)
	body := tokenize.Fields(bodyRows)
	log.WithFields(logrus.Fields{
		"rows":       len(rows),
		"num_fields": prof.NumFields,
		"flexible":   prof.Flexible,
		"preamble":   prof.PreambleRows,
	}).Debug("field counts reconciled")

	inf := &fieldtype.Inferencer{
		Candidates:  opts.TypeCandidates,
		BoolAliases: opts.BoolAliases,
		Layouts:     opts.DateLayouts,
	}

	hasHeader := false
	if !opts.NoHeader {
		hres := header.Detect(body, prof.NumFields, inf)
		hasHeader = hres.HasHeader
		log.WithFields(logrus.Fields{
			"has_header":  hres.HasHeader,
			"supporting":  hres.Supporting,
			"conflicting": hres.Conflicting,
		}).Debug("header detected")
	}

	dataRows := bodyRows
	var names []string
	if hasHeader {
		names = fieldNames(body[0], prof.NumFields)
		dataRows = bodyRows[1:]
	}

	bodyOffset := s.Len()
	if len(bodyRows) > 0 {
		bodyOffset = bodyRows[0].Offset
	}

	cols := prof.Columns(dataRows)
	types := inf.InferColumns(cols)
	layouts := inf.DateLayouts(cols, types)
	if !anyNonEmpty(layouts) {
		layouts = nil
	}
	log.WithField("types", types).Debug("column types inferred")

	return &Report{
		Dialect:      d,
		NumFields:    prof.NumFields,
		Flexible:     prof.Flexible,
		HasHeader:    hasHeader,
		PreambleRows: prof.PreambleRows,
		BodyOffset:   bodyOffset,
		FieldTypes:   types,
		FieldNames:   names,
		DateLayouts:  layouts,
		Encoding:     opts.Encoding,
		SampleBytes:  s.Len(),
		SampleRows:   len(rows),
		Truncated:    s.Truncated(),
	}, nil
}

// SniffBytes is Sniff over an in-memory buffer.
func SniffBytes(b []byte, opts Options) (*Report, error) {
	return Sniff(bytes.NewReader(b), opts)
}

func isBlank(s *sample.Sample) bool {
	for i := range s.Lines() {
		if len(bytes.TrimSpace(s.LineBytes(i))) > 0 {
			return false
		}
	}
	return true
}

func fieldNames(row []string, n int) []string {
	out := make([]string, n)
	for i := 0; i < n && i < len(row); i++ {
		out[i] = strings.TrimSpace(row[i])
	}
	return out
}

func anyNonEmpty(xs []string) bool {
	for _, x := range xs {
		if x != "" {
			return true
		}
	}
	return false
}
