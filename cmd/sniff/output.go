package main

import (
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"

	"csvsniff/internal/config"
	"csvsniff/internal/schema"
	"csvsniff/internal/source"
	"csvsniff/pkg/sniffer"
)

func writeReport(w io.Writer, c config.Config, target string, rep *sniffer.Report) error {
	switch strings.ToLower(strings.TrimSpace(c.Output.Format)) {
	case "json":
		var (
			b   []byte
			err error
		)
		if c.Output.Pretty {
			b, err = json.MarshalIndent(rep, "", "  ")
		} else {
			b, err = json.Marshal(rep)
		}
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	case "ddl":
		ddl, err := renderDDL(c, target, rep)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, ddl)
		return err
	default:
		_, err := io.WriteString(w, rep.String())
		return err
	}
}

// renderDDL suggests a CREATE TABLE for rep. Without a header, columns are
// named col_1..col_N.
func renderDDL(c config.Config, target string, rep *sniffer.Report) (string, error) {
	backend := c.Output.Backend
	if backend == "" {
		backend = c.Catalog.Backend
	}
	backend = schema.NormalizeBackend(backend)

	base := c.Output.Table
	if base == "" {
		base = source.Name(target)
	}
	cols := schema.Columns(rep.FieldNames, rep.FieldTypes, rep.DateLayouts)
	return schema.CreateTableSQL(backend, schema.QualifyTable(backend, base), cols)
}
