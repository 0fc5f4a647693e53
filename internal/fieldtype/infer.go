// Package fieldtype classifies sampled column values into the narrowest type
// of a fixed lattice.
//
// Inference is a fold: every non-empty value yields a Mask of the types it
// satisfies, a column's mask is the intersection of its values' masks, and
// the column type is the least element of that mask. Empty values never
// narrow or widen a column.
package fieldtype

import (
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultLayouts is the ordered DateTime pattern list. The first layout that
// parses a value is the one attributed to it.
var DefaultLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z07:00",
	time.RFC3339Nano,
	"02.01.2006 15:04:05",
}

// Inferencer holds the classification policy. The zero value uses the full
// lattice, no Boolean aliases and DefaultLayouts. An Inferencer is read-only
// during inference and safe for concurrent use.
type Inferencer struct {
	// Candidates restricts the lattice. Text is always kept.
	Candidates []Type
	// BoolAliases additionally accepts 1/0, t/f, yes/no and y/n as Boolean.
	BoolAliases bool
	// Layouts overrides DefaultLayouts when non-empty.
	Layouts []string
	// Workers bounds per-column parallelism; 0 means GOMAXPROCS.
	Workers int
}

func (in *Inferencer) allowed() Mask {
	if len(in.Candidates) == 0 {
		return MaskOf(All...)
	}
	return MaskOf(in.Candidates...) | MaskOf(Text)
}

func (in *Inferencer) layouts() []string {
	if len(in.Layouts) > 0 {
		return in.Layouts
	}
	return DefaultLayouts
}

// Mask returns every type v satisfies. Surrounding whitespace is ignored.
// The mask of an empty value is empty.
func (in *Inferencer) Mask(v string) Mask {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}

	m := MaskOf(Text)
	if _, ok := in.parseBool(v); ok {
		m |= MaskOf(Boolean)
	}
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		m |= MaskOf(Integer)
	}
	if isFloatLiteral(v) {
		m |= MaskOf(Float)
	}
	if _, ok := in.parseDateTime(v); ok {
		m |= MaskOf(DateTime)
	}
	return m & in.allowed()
}

// Classify returns the narrowest type of a single value and false for an
// empty value.
func (in *Inferencer) Classify(v string) (Type, bool) {
	m := in.Mask(v)
	if m == 0 {
		return Text, false
	}
	return m.Least(), true
}

// InferColumn returns the least type satisfied by every non-empty value. A
// column without non-empty values is Text.
func (in *Inferencer) InferColumn(values []string) Type {
	acc := in.allowed()
	seen := false
	for _, v := range values {
		m := in.Mask(v)
		if m == 0 {
			continue
		}
		seen = true
		acc &= m
		if acc == MaskOf(Text) {
			break
		}
	}
	if !seen {
		return Text
	}
	return acc.Least()
}

// InferColumns infers every column concurrently. Columns are independent, so
// results are simply written back by index.
func (in *Inferencer) InferColumns(cols [][]string) []Type {
	out := make([]Type, len(cols))

	workers := in.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range cols {
		i := i
		g.Go(func() error {
			out[i] = in.InferColumn(cols[i])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// DateLayouts reports, per column, the layout matched by most values of each
// DateTime column. Ties go to the layout listed first. Other columns get "".
func (in *Inferencer) DateLayouts(cols [][]string, types []Type) []string {
	out := make([]string, len(types))
	layouts := in.layouts()
	for i, t := range types {
		if t != DateTime || i >= len(cols) {
			continue
		}
		counts := make(map[string]int, len(layouts))
		for _, v := range cols[i] {
			if lay, ok := in.parseDateTime(strings.TrimSpace(v)); ok {
				counts[lay]++
			}
		}
		bestN := 0
		for _, lay := range layouts {
			if counts[lay] > bestN {
				out[i], bestN = lay, counts[lay]
			}
		}
	}
	return out
}

func (in *Inferencer) parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	if !in.BoolAliases {
		return false, false
	}
	switch strings.ToLower(s) {
	case "1", "t", "yes", "y":
		return true, true
	case "0", "f", "no", "n":
		return false, true
	}
	return false, false
}

func (in *Inferencer) parseDateTime(s string) (string, bool) {
	for _, lay := range in.layouts() {
		if _, err := time.Parse(lay, s); err == nil {
			return lay, true
		}
	}
	return "", false
}

// isFloatLiteral matches [+-]?(digits[.digits]|.digits)([eE][+-]?digits)?.
// Inf, NaN, hex floats and digit separators are rejected even though
// strconv.ParseFloat accepts them.
func isFloatLiteral(s string) bool {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	intDigits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		intDigits++
	}
	fracDigits := 0
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			fracDigits++
		}
	}
	if intDigits == 0 && fracDigits == 0 {
		return false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		expDigits := 0
		for i < len(s) && isDigit(s[i]) {
			i++
			expDigits++
		}
		if expDigits == 0 {
			return false
		}
	}
	return i == len(s)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
