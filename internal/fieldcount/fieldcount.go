// Package fieldcount reconciles per-row field counts into a single column
// count, a flexibility flag and a preamble length.
package fieldcount

import (
	"sort"

	"csvsniff/internal/tokenize"
)

// FlexibleRatio is the denominator of the disagreement threshold: a sample is
// flexible when more than 1/FlexibleRatio of its rows disagree with the mode.
const FlexibleRatio = 8

// Profile is the reconciled shape of a tokenized sample.
type Profile struct {
	// NumFields is the modal field count. Ties go to the larger count.
	NumFields int
	// Flexible reports that a notable share of all rows, preamble included,
	// disagree with NumFields.
	Flexible bool
	// PreambleRows is the number of leading rows that precede the first row
	// with NumFields fields.
	PreambleRows int
	// Histogram maps field count to the number of rows with that count.
	Histogram map[int]int
	// Disagreeing is the number of rows whose count differs from NumFields.
	Disagreeing int
}

// Reconcile computes the Profile of rows.
func Reconcile(rows []tokenize.Row) Profile {
	p := Profile{Histogram: make(map[int]int)}
	if len(rows) == 0 {
		return p
	}
	for _, r := range rows {
		p.Histogram[len(r.Fields)]++
	}
	p.NumFields = mode(p.Histogram)

	for _, r := range rows {
		if len(r.Fields) == p.NumFields {
			break
		}
		p.PreambleRows++
	}

	p.Disagreeing = len(rows) - p.Histogram[p.NumFields]
	p.Flexible = p.Disagreeing*FlexibleRatio > len(rows)
	return p
}

func mode(hist map[int]int) int {
	counts := make([]int, 0, len(hist))
	for n := range hist {
		counts = append(counts, n)
	}
	// Descending so the first maximum seen is the larger count.
	sort.Sort(sort.Reverse(sort.IntSlice(counts)))

	best, bestN := 0, -1
	for _, n := range counts {
		if hist[n] > bestN {
			best, bestN = n, hist[n]
		}
	}
	return best
}

// Body returns rows without the preamble.
func (p Profile) Body(rows []tokenize.Row) []tokenize.Row {
	if p.PreambleRows >= len(rows) {
		return nil
	}
	return rows[p.PreambleRows:]
}

// Columns transposes rows into p.NumFields columns. Short rows contribute
// nothing to their missing columns and extra fields are ignored.
func (p Profile) Columns(rows []tokenize.Row) [][]string {
	cols := make([][]string, p.NumFields)
	for i := range cols {
		cols[i] = make([]string, 0, len(rows))
	}
	for _, r := range rows {
		for i := 0; i < len(r.Fields) && i < p.NumFields; i++ {
			cols[i] = append(cols[i], r.Fields[i])
		}
	}
	return cols
}
