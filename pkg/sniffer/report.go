package sniffer

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"csvsniff/internal/dialect"
	"csvsniff/internal/sample"
)

// Report is the result of a sniff. It is built once and never mutated.
type Report struct {
	Dialect   Dialect `json:"dialect"`
	NumFields int     `json:"num_fields"`
	Flexible  bool    `json:"flexible"`
	HasHeader bool    `json:"has_header"`
	// PreambleRows counts leading rows (titles, comments) that precede the
	// table proper.
	PreambleRows int `json:"preamble_rows"`
	// BodyOffset is the decoded byte offset of the first row after the
	// preamble.
	BodyOffset int    `json:"body_offset"`
	FieldTypes []Type `json:"field_types"`
	// FieldNames holds the trimmed header values when HasHeader is true.
	FieldNames []string `json:"field_names,omitempty"`
	// DateLayouts holds the majority Go time layout of each DateTime column
	// and "" elsewhere. Nil when no column is DateTime.
	DateLayouts []string `json:"date_layouts,omitempty"`
	// Encoding is the source encoding the sample was decoded from.
	Encoding string `json:"encoding,omitempty"`

	SampleBytes int  `json:"sample_bytes"`
	SampleRows  int  `json:"sample_rows"`
	Truncated   bool `json:"truncated"`
}

// String renders the report as a human-readable block.
func (r *Report) String() string {
	var b strings.Builder
	b.WriteString("Metadata\n========\n")
	b.WriteString("Dialect:\n")
	fmt.Fprintf(&b, "\tDelimiter: %s\n", dialect.FormatByte(r.Dialect.Delimiter))
	fmt.Fprintf(&b, "\tHas header row?: %t\n", r.HasHeader)
	fmt.Fprintf(&b, "\tNumber of preamble rows: %d\n", r.PreambleRows)
	fmt.Fprintf(&b, "\tQuote character: %s\n", dialect.FormatByte(r.Dialect.Quote))
	fmt.Fprintf(&b, "\tQuoting style: %s\n", r.Dialect.Quoting)
	fmt.Fprintf(&b, "\tDouble-quote escapes?: %t\n", r.Dialect.DoubleQuote)
	fmt.Fprintf(&b, "\tEscape character: %s\n", dialect.FormatByte(r.Dialect.Escape))
	fmt.Fprintf(&b, "\tTerminator: %s\n", r.Dialect.Terminator)
	fmt.Fprintf(&b, "\tFlexible: %t\n", r.Flexible)
	fmt.Fprintf(&b, "Number of fields: %d\n", r.NumFields)
	b.WriteString("Types:\n")
	for i, t := range r.FieldTypes {
		fmt.Fprintf(&b, "\t%d: %s", i, t)
		if i < len(r.FieldNames) && r.FieldNames[i] != "" {
			fmt.Fprintf(&b, " (%s)", r.FieldNames[i])
		}
		if i < len(r.DateLayouts) && r.DateLayouts[i] != "" {
			fmt.Fprintf(&b, " [%s]", r.DateLayouts[i])
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// CSVReader returns an encoding/csv reader configured from the report for
// the whole of src. src must start at the same byte as the sniffed sample.
// The first BodyOffset decoded bytes are consumed, so the header row, if
// any, is the first record.
//
// encoding/csv only understands '"' quoting. Any other detected quote or an
// escape byte is approximated with LazyQuotes.
func (r *Report) CSVReader(src io.Reader) (*csv.Reader, error) {
	d := r.Dialect
	if d.Delimiter >= 0x80 || d.Delimiter == '"' {
		return nil, fmt.Errorf("sniffer: delimiter %s not supported by encoding/csv", dialect.FormatByte(d.Delimiter))
	}

	dec, err := sample.NewDecodingReader(src, r.Encoding)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(dec)
	if r.BodyOffset > 0 {
		if _, err := br.Discard(r.BodyOffset); err != nil && err != io.EOF {
			return nil, fmt.Errorf("sniffer: skip preamble: %w", err)
		}
	}

	cr := csv.NewReader(br)
	cr.Comma = rune(d.Delimiter)
	cr.LazyQuotes = d.Quote != '"' || d.Escape != 0
	cr.FieldsPerRecord = r.NumFields
	if r.Flexible {
		cr.FieldsPerRecord = -1
	}
	return cr, nil
}
