// Package header decides whether the first row of a sample names its
// columns.
package header

import (
	"strings"

	"csvsniff/internal/fieldtype"
)

// Result is the outcome of header detection.
type Result struct {
	HasHeader bool
	// Supporting counts columns where row 0 is Text over a narrower body.
	Supporting int
	// Conflicting counts columns where row 0 is narrower than the body.
	Conflicting int
}

// Detect contrasts the type of each row-0 value with the type inferred from
// rows 1..N of the same column. rows must already exclude any preamble.
//
// The first row is a header when at least one column is Text in row 0 and a
// narrower type below it, and no column is narrower in row 0 than below it.
// Columns where either side has no non-empty values carry no evidence.
// Fewer than two rows is never enough evidence.
func Detect(rows [][]string, numFields int, in *fieldtype.Inferencer) Result {
	var res Result
	if len(rows) < 2 {
		return res
	}

	first, body := rows[0], rows[1:]
	for col := 0; col < numFields && col < len(first); col++ {
		head, ok := in.Classify(first[col])
		if !ok {
			continue
		}

		values := make([]string, 0, len(body))
		for _, r := range body {
			if col < len(r) && strings.TrimSpace(r[col]) != "" {
				values = append(values, r[col])
			}
		}
		if len(values) == 0 {
			continue
		}

		rest := in.InferColumn(values)
		switch {
		case head == fieldtype.Text && rest.Narrower(fieldtype.Text):
			res.Supporting++
		case head.Narrower(rest):
			res.Conflicting++
		}
	}

	res.HasHeader = res.Supporting > 0 && res.Conflicting == 0
	return res
}
