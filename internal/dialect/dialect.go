// Package dialect infers the delimiter, quote character, quoting style and
// escape convention of a delimited text sample.
//
// Detection is statistical and intentionally conservative:
//   - Delimiters are scored by how consistently they occur per line.
//   - Quotes are counted only where they can open or close a field.
//   - Quoting style is read back from a quote-aware tokenization.
//
// Every result is a best estimate; callers that know better pass Overrides.
package dialect

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"csvsniff/internal/sample"
	"csvsniff/internal/tokenize"
)

// Candidates is the default delimiter search order. Earlier entries win ties.
var Candidates = []byte{',', '\t', ';', '|', ':'}

// MinScore is the presence threshold a delimiter must clear.
const MinScore = 0.1

// ErrAmbiguous matches any *AmbiguousError via errors.Is.
var ErrAmbiguous = errors.New("dialect: ambiguous delimiter")

// QuotingStyle describes how quoting is used in the sample.
type QuotingStyle uint8

const (
	QuotingNone QuotingStyle = iota
	QuotingMinimal
	QuotingAll
)

func (q QuotingStyle) String() string {
	switch q {
	case QuotingMinimal:
		return "minimal"
	case QuotingAll:
		return "all"
	default:
		return "none"
	}
}

// Terminator is the record terminator observed in the sample.
type Terminator uint8

const (
	LF Terminator = iota
	CRLF
)

func (t Terminator) String() string {
	if t == CRLF {
		return "CRLF"
	}
	return "LF"
}

// Dialect is the detected tokenization dialect. It is a value type and is
// never mutated after detection.
type Dialect struct {
	Delimiter byte
	// Quote is the quote byte, or 0 when the sample is unquoted.
	Quote       byte
	Quoting     QuotingStyle
	DoubleQuote bool
	// Escape is the in-quote escape byte, or 0 when quotes are escaped by
	// doubling.
	Escape     byte
	Terminator Terminator
}

// HasQuote reports whether quoting is enabled.
func (d Dialect) HasQuote() bool { return d.Quote != 0 }

// TokenizerConfig returns the tokenizer configuration for d.
func (d Dialect) TokenizerConfig() tokenize.Config {
	return tokenize.Config{
		Delimiter:   d.Delimiter,
		Quote:       d.Quote,
		DoubleQuote: d.DoubleQuote,
		Escape:      d.Escape,
	}
}

// MarshalJSON renders bytes as printable strings.
func (d Dialect) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Delimiter   string `json:"delimiter"`
		Quote       string `json:"quote"`
		Quoting     string `json:"quoting"`
		DoubleQuote bool   `json:"double_quote"`
		Escape      string `json:"escape"`
		Terminator  string `json:"terminator"`
	}{
		Delimiter:   string(d.Delimiter),
		Quote:       optByte(d.Quote),
		Quoting:     d.Quoting.String(),
		DoubleQuote: d.DoubleQuote,
		Escape:      optByte(d.Escape),
		Terminator:  d.Terminator.String(),
	})
}

func optByte(b byte) string {
	if b == 0 {
		return ""
	}
	return string(b)
}

// FormatByte renders a dialect byte for humans: control characters are
// escaped and 0 prints as "none".
func FormatByte(b byte) string {
	switch b {
	case 0:
		return "none"
	case '\t':
		return `\t`
	case ' ':
		return "space"
	}
	if b < 0x20 || b >= 0x7f {
		return fmt.Sprintf("0x%02x", b)
	}
	return string(b)
}

// Overrides pins parts of the dialect instead of detecting them.
type Overrides struct {
	// Delimiter, when non-zero, skips the delimiter search.
	Delimiter byte
	// Quote, when non-nil, skips quote detection. A pointer to 0 forces an
	// unquoted dialect.
	Quote *byte
}

// Score is the evaluation of one delimiter candidate.
type Score struct {
	Delimiter   byte
	Mean        float64
	Median      float64
	Consistency float64
	Score       float64
}

// AmbiguousError reports that no delimiter candidate cleared MinScore.
type AmbiguousError struct {
	Scores []Score
}

func (e *AmbiguousError) Error() string {
	parts := make([]string, 0, len(e.Scores))
	for _, s := range e.Scores {
		parts = append(parts, fmt.Sprintf("%s=%.2f", FormatByte(s.Delimiter), s.Score))
	}
	return fmt.Sprintf("dialect: no delimiter candidate scored above %.2f (%s)", MinScore, strings.Join(parts, " "))
}

func (e *AmbiguousError) Is(target error) bool { return target == ErrAmbiguous }

// Detect infers the dialect of s.
//
// Errors:
//   - *AmbiguousError when no candidate delimiter clears MinScore.
func Detect(s *sample.Sample, ov Overrides) (Dialect, error) {
	lines := contentLines(s)

	var d Dialect
	if ov.Delimiter != 0 {
		d.Delimiter = ov.Delimiter
	} else {
		scores := ScoreDelimiters(lines, Candidates)
		best, ok := pickBest(scores)
		if !ok {
			return Dialect{}, &AmbiguousError{Scores: scores}
		}
		d.Delimiter = best.Delimiter
	}

	if ov.Quote != nil {
		d.Quote = *ov.Quote
	} else {
		d.Quote = detectQuote(lines, d.Delimiter)
	}

	d.DoubleQuote = true
	if d.Quote != 0 && detectBackslashEscape(lines, d.Delimiter, d.Quote) {
		d.Escape = '\\'
		d.DoubleQuote = false
	}
	d.Quoting = detectQuotingStyle(s.Bytes(), d)
	d.Terminator = detectTerminator(s.Lines())
	return d, nil
}

func contentLines(s *sample.Sample) [][]byte {
	out := make([][]byte, 0, len(s.Lines()))
	for i := range s.Lines() {
		if b := s.LineBytes(i); len(b) > 0 {
			out = append(out, b)
		}
	}
	return out
}

// ScoreDelimiters evaluates each candidate by naive per-line occurrence
// counts, ignoring quoting:
//
//	score = (1 - min(1, variance/mean²)) × (median > 0 ? 1 : 0)
func ScoreDelimiters(lines [][]byte, candidates []byte) []Score {
	out := make([]Score, 0, len(candidates))
	counts := make([]float64, len(lines))
	for _, c := range candidates {
		sc := Score{Delimiter: c}
		if len(lines) == 0 {
			out = append(out, sc)
			continue
		}

		var sum float64
		for i, l := range lines {
			counts[i] = float64(bytes.Count(l, []byte{c}))
			sum += counts[i]
		}
		sc.Mean = sum / float64(len(lines))

		var sq float64
		for _, n := range counts {
			sq += (n - sc.Mean) * (n - sc.Mean)
		}
		variance := sq / float64(len(lines))

		if sc.Mean > 0 {
			sc.Consistency = 1 - math.Min(1, variance/(sc.Mean*sc.Mean))
		}
		sc.Median = median(counts)
		if sc.Median > 0 {
			sc.Score = sc.Consistency
		}
		out = append(out, sc)
	}
	return out
}

func pickBest(scores []Score) (Score, bool) {
	best := -1
	for i, s := range scores {
		if s.Score <= MinScore {
			continue
		}
		if best < 0 || s.Score > scores[best].Score {
			best = i
		}
	}
	if best < 0 {
		return Score{}, false
	}
	return scores[best], true
}

func median(xs []float64) float64 {
	cp := append([]float64(nil), xs...)
	sort.Float64s(cp)
	n := len(cp)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return cp[n/2]
	}
	return (cp[n/2-1] + cp[n/2]) / 2
}

// detectQuote counts double and single quotes where they can open a field
// (line start or after the delimiter) or close one (line end or before the
// delimiter). A candidate needs at least one opening and one closing position
// and can never be the delimiter itself.
func detectQuote(lines [][]byte, delim byte) byte {
	type tally struct{ open, close int }
	var dq, sq tally

	for _, l := range lines {
		for j, c := range l {
			if (c != '"' && c != '\'') || c == delim {
				continue
			}
			t := &dq
			if c == '\'' {
				t = &sq
			}
			if j == 0 || l[j-1] == delim {
				t.open++
			}
			if j == len(l)-1 || l[j+1] == delim {
				t.close++
			}
		}
	}

	usable := func(t tally) bool { return t.open > 0 && t.close > 0 }
	switch {
	case usable(dq) && (!usable(sq) || dq.open+dq.close >= sq.open+sq.close):
		return '"'
	case usable(sq):
		return '\''
	default:
		return 0
	}
}

// detectBackslashEscape reports whether backslash-quote pairs outnumber
// doubled quotes inside fields.
func detectBackslashEscape(lines [][]byte, delim, quote byte) bool {
	var backslash, doubled int
	for _, l := range lines {
		for j := 0; j+1 < len(l); j++ {
			if l[j] == '\\' && l[j+1] == quote {
				backslash++
				j++
				continue
			}
			if l[j] == quote && l[j+1] == quote {
				// An empty quoted field ("" between delimiters) is not an escape.
				opens := j == 0 || l[j-1] == delim
				closes := j+2 == len(l) || l[j+2] == delim
				if !(opens && closes) {
					doubled++
				}
				j++
			}
		}
	}
	return backslash > doubled
}

func detectQuotingStyle(data []byte, d Dialect) QuotingStyle {
	if d.Quote == 0 {
		return QuotingNone
	}
	// A truncated sample still yields the rows before the broken one, which
	// is enough evidence for the style.
	rows, _ := tokenize.Tokenize(data, d.TokenizerConfig())
	if len(rows) == 0 {
		return QuotingNone
	}

	allQuotedRows, anyQuoted, onlyNeeded := 0, false, true
	for _, r := range rows {
		all := true
		for i, q := range r.Quoted {
			if !q {
				all = false
				continue
			}
			anyQuoted = true
			if !needsQuoting(r.Fields[i], d) {
				onlyNeeded = false
			}
		}
		if all {
			allQuotedRows++
		}
	}

	switch {
	case allQuotedRows*2 > len(rows):
		return QuotingAll
	case anyQuoted && onlyNeeded:
		return QuotingMinimal
	default:
		return QuotingNone
	}
}

// needsQuoting reports whether v could not be written without quotes.
func needsQuoting(v string, d Dialect) bool {
	for i := 0; i < len(v); i++ {
		switch v[i] {
		case d.Delimiter, d.Quote, '\r', '\n':
			return true
		}
		if d.Escape != 0 && v[i] == d.Escape {
			return true
		}
	}
	return false
}

func detectTerminator(lines []sample.Line) Terminator {
	var terminated, crlf int
	for _, l := range lines {
		if !l.Terminated {
			continue
		}
		terminated++
		if l.CRLF {
			crlf++
		}
	}
	if terminated > 0 && crlf*2 > terminated {
		return CRLF
	}
	return LF
}
