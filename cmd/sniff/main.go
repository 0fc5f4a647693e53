// Command sniff infers the dialect, header and column types of a delimited
// text file from a bounded sample and prints a report.
//
//	sniff [flags] <path|file://...|http(s)://...|->
//
// Output is a human-readable block (--format text), the JSON report
// (--format json) or a suggested CREATE TABLE statement (--format ddl).
//
// # Catalog
//
// With --catalog postgres|mssql|sqlite every report is also stored in a
// catalog table, and a warning is logged when a source's dialect or column
// types changed since its previous sniff. The DSN is resolved as:
//
//  1. --dsn (or SNIFF_CATALOG_DSN / catalog.dsn in the config file)
//  2. DSN env var
//  3. DSN_HOST / DSN_PORT / DSN_USER / DSN_PASSWORD / DSN_DB plus
//     DSN_SSLMODE, DSN_ENCRYPT, DSN_SQLITE and DSN_PARAMS
//
// Every flag has a SNIFF_* environment equivalent (sample.bytes is
// SNIFF_SAMPLE_BYTES) and may also be set from a --config file.
//
// Exit codes: 0 success, 1 runtime failure, 2 usage or configuration error.
package main

import (
	"context"
	"io"
	"os"
	"time"

	"csvsniff/internal/metrics"
	"csvsniff/internal/metrics/datadog"
	_ "csvsniff/internal/storage/all"
)

// backendCloser is a metrics backend the command owns and must close.
type backendCloser interface {
	metrics.Backend
	Close() error
}

// deps are the command's external seams.
type deps struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Getenv func(string) string
	Now    func() time.Time

	BackendFactory func(ctx context.Context, jobName string, tags []string, flushEvery time.Duration) (backendCloser, error)
}

func defaultDeps() deps {
	return deps{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Getenv: os.Getenv,
		Now:    time.Now,
		BackendFactory: func(ctx context.Context, jobName string, tags []string, flushEvery time.Duration) (backendCloser, error) {
			return datadog.NewBackend(ctx, datadog.Options{
				JobName:    jobName,
				Tags:       tags,
				FlushEvery: flushEvery,
			})
		},
	}
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], defaultDeps()))
}
