// Package tokenize splits sampled bytes into rows of fields for a known
// dialect.
//
// The tokenizer is a single-pass finite-state machine driven by an explicit
// transition table indexed by (state, byte class). Quoted fields may contain
// delimiters, quotes (doubled or backslash-escaped) and line terminators.
//
// All functions in this package are safe for concurrent use: a Tokenizer is
// immutable after New and every Tokenize call keeps its scan state local.
package tokenize

import (
	"errors"
	"fmt"
	"strings"
)

// State is a tokenizer state.
type State uint8

const (
	FieldStart State = iota
	InUnquotedField
	InQuotedField
	AfterQuote
	// InQuotedEscape follows an escape byte inside a quoted field. It is only
	// reachable when Config.Escape is set.
	InQuotedEscape

	numStates
)

func (s State) String() string {
	switch s {
	case FieldStart:
		return "FieldStart"
	case InUnquotedField:
		return "InUnquotedField"
	case InQuotedField:
		return "InQuotedField"
	case AfterQuote:
		return "AfterQuote"
	case InQuotedEscape:
		return "InQuotedEscape"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

type byteClass uint8

const (
	classOther byteClass = iota
	classDelim
	classQuote
	classNewline
	classEscape

	numClasses
)

type action uint8

const (
	actAppend action = iota
	actSkip
	actOpenQuote
	actEndField
	actEndRow
	// actAppendQuote appends one quote byte (doubled-quote escape).
	actAppendQuote
	// actAppendQuoteAndByte treats the previous quote as literal and appends
	// it followed by the current byte.
	actAppendQuoteAndByte
)

type transition struct {
	act  action
	next State
}

type transitionTable [numStates][numClasses]transition

// baseTable is the transition table for a dialect with doubled-quote escapes.
var baseTable = transitionTable{
	FieldStart: {
		classOther:   {actAppend, InUnquotedField},
		classDelim:   {actEndField, FieldStart},
		classQuote:   {actOpenQuote, InQuotedField},
		classNewline: {actEndRow, FieldStart},
		classEscape:  {actAppend, InUnquotedField},
	},
	InUnquotedField: {
		classOther:   {actAppend, InUnquotedField},
		classDelim:   {actEndField, FieldStart},
		classQuote:   {actAppend, InUnquotedField},
		classNewline: {actEndRow, FieldStart},
		classEscape:  {actAppend, InUnquotedField},
	},
	InQuotedField: {
		classOther:   {actAppend, InQuotedField},
		classDelim:   {actAppend, InQuotedField},
		classQuote:   {actSkip, AfterQuote},
		classNewline: {actAppend, InQuotedField},
		classEscape:  {actSkip, InQuotedEscape},
	},
	AfterQuote: {
		classOther:   {actAppendQuoteAndByte, InQuotedField},
		classDelim:   {actEndField, FieldStart},
		classQuote:   {actAppendQuote, InQuotedField},
		classNewline: {actEndRow, FieldStart},
		classEscape:  {actAppendQuoteAndByte, InQuotedField},
	},
	InQuotedEscape: {
		classOther:   {actAppend, InQuotedField},
		classDelim:   {actAppend, InQuotedField},
		classQuote:   {actAppend, InQuotedField},
		classNewline: {actAppend, InQuotedField},
		classEscape:  {actAppend, InQuotedField},
	},
}

// Config is the subset of a dialect the tokenizer needs.
type Config struct {
	Delimiter byte
	// Quote is the quote byte; 0 disables quoting entirely.
	Quote byte
	// DoubleQuote enables "" as an escaped quote inside quoted fields.
	DoubleQuote bool
	// Escape is an escape byte honored inside quoted fields; 0 disables it.
	Escape byte
}

// ErrInvalidConfig is returned by New for contradictory configurations.
var ErrInvalidConfig = errors.New("tokenize: invalid config")

// UnterminatedQuoteError reports a sample that ended inside a quoted field.
type UnterminatedQuoteError struct {
	// Row is the 0-based index of the partial row among emitted rows.
	Row int
	// Line is the 1-based line on which the partial row starts.
	Line int
	// Offset is the byte offset of the opening quote.
	Offset int
}

func (e *UnterminatedQuoteError) Error() string {
	return fmt.Sprintf("tokenize: unterminated quoted field in row %d (line %d, opening quote at byte %d)",
		e.Row, e.Line, e.Offset)
}

// Row is one tokenized record.
type Row struct {
	// Fields holds unescaped field values with quotes stripped.
	Fields []string
	// Quoted[i] reports whether Fields[i] was quote-wrapped in the source.
	Quoted []bool
	// Line is the 1-based line where the row starts.
	Line int
	// Offset is the byte offset where the row starts.
	Offset int
}

// Tokenizer holds the byte classes and transition table for one Config.
type Tokenizer struct {
	cfg     Config
	classes [256]byteClass
	table   transitionTable
}

// New validates cfg and builds a Tokenizer.
func New(cfg Config) (*Tokenizer, error) {
	switch {
	case cfg.Delimiter == '\n' || cfg.Delimiter == '\r':
		return nil, fmt.Errorf("%w: delimiter cannot be a line terminator", ErrInvalidConfig)
	case cfg.Quote != 0 && cfg.Quote == cfg.Delimiter:
		return nil, fmt.Errorf("%w: quote %q equals delimiter", ErrInvalidConfig, cfg.Quote)
	case cfg.Quote == '\n' || cfg.Quote == '\r':
		return nil, fmt.Errorf("%w: quote cannot be a line terminator", ErrInvalidConfig)
	case cfg.Escape != 0 && cfg.Escape == cfg.Delimiter:
		return nil, fmt.Errorf("%w: escape %q equals delimiter", ErrInvalidConfig, cfg.Escape)
	}

	t := &Tokenizer{cfg: cfg, table: baseTable}
	t.classes[cfg.Delimiter] = classDelim
	t.classes['\n'] = classNewline
	t.classes['\r'] = classNewline
	if cfg.Quote != 0 {
		t.classes[cfg.Quote] = classQuote
		if cfg.Escape != 0 && cfg.Escape != cfg.Quote {
			t.classes[cfg.Escape] = classEscape
		}
	}
	if !cfg.DoubleQuote {
		t.table[AfterQuote][classQuote] = transition{actAppendQuoteAndByte, InQuotedField}
	}
	return t, nil
}

// Tokenize is shorthand for New(cfg) followed by Tokenize(data).
func Tokenize(data []byte, cfg Config) ([]Row, error) {
	t, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return t.Tokenize(data)
}

// Tokenize scans data into rows.
//
// Blank lines produce no row. On *UnterminatedQuoteError the rows completed
// before the partial one are returned alongside the error.
func (t *Tokenizer) Tokenize(data []byte) ([]Row, error) {
	var (
		rows   []Row
		fields []string
		quoted []bool
		field  = make([]byte, 0, 64)

		state       = FieldStart
		fieldQuoted bool
		quoteAt     int
		line        = 1
		rowLine     = 1
		rowOffset   = 0
	)

	endField := func() {
		fields = append(fields, string(field))
		quoted = append(quoted, fieldQuoted)
		field = field[:0]
		fieldQuoted = false
	}
	endRow := func(next int) {
		blank := len(fields) == 0 && len(field) == 0 && !fieldQuoted
		if !blank {
			endField()
			rows = append(rows, Row{Fields: fields, Quoted: quoted, Line: rowLine, Offset: rowOffset})
			fields, quoted = nil, nil
		}
		rowLine, rowOffset = line, next
	}

	for i, b := range data {
		if b == '\n' {
			line++
		}
		tr := t.table[state][t.classes[b]]
		switch tr.act {
		case actAppend:
			field = append(field, b)
		case actSkip:
		case actOpenQuote:
			fieldQuoted = true
			quoteAt = i
		case actEndField:
			endField()
		case actEndRow:
			endRow(i + 1)
		case actAppendQuote:
			field = append(field, t.cfg.Quote)
		case actAppendQuoteAndByte:
			field = append(field, t.cfg.Quote, b)
		}
		state = tr.next
	}

	switch state {
	case InQuotedField, InQuotedEscape:
		return rows, &UnterminatedQuoteError{Row: len(rows), Line: rowLine, Offset: quoteAt}
	case InUnquotedField, AfterQuote:
		endRow(len(data))
	case FieldStart:
		if len(fields) > 0 {
			endRow(len(data))
		}
	}
	return rows, nil
}

// Fields flattens rows to their field values.
func Fields(rows []Row) [][]string {
	out := make([][]string, len(rows))
	for i := range rows {
		out[i] = rows[i].Fields
	}
	return out
}

// QuoteField renders s the way a writer using cfg would, quoting only when
// the value contains the delimiter, the quote byte, or a line terminator.
func QuoteField(s string, cfg Config) string {
	if cfg.Quote == 0 {
		return s
	}
	special := string([]byte{cfg.Delimiter, cfg.Quote}) + "\r\n"
	if !strings.ContainsAny(s, special) {
		return s
	}

	q := string(cfg.Quote)
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteString(q)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == cfg.Quote && cfg.DoubleQuote:
			b.WriteByte(c)
		case (c == cfg.Quote || c == cfg.Escape) && cfg.Escape != 0:
			b.WriteByte(cfg.Escape)
		}
		b.WriteByte(c)
	}
	b.WriteString(q)
	return b.String()
}
