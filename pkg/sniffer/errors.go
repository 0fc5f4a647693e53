package sniffer

import (
	"errors"
	"fmt"

	"csvsniff/internal/dialect"
	"csvsniff/internal/sample"
	"csvsniff/internal/tokenize"
)

// Error kinds surfaced by Sniff. None of them is retried internally; each
// carries enough context (byte offset or row index) for the caller to enlarge
// the sample, pass overrides, or give up.
type (
	// IOError is a failed read from the source.
	IOError = sample.IOError
	// AmbiguousDialectError means no delimiter candidate cleared the presence
	// threshold. Retry with Options.Delimiter.
	AmbiguousDialectError = dialect.AmbiguousError
	// UnterminatedQuoteError means the sample ended inside a quoted field.
	// Retry with a larger Options.SampleBytes.
	UnterminatedQuoteError = tokenize.UnterminatedQuoteError
)

var (
	// ErrAmbiguousDialect matches any *AmbiguousDialectError.
	ErrAmbiguousDialect = dialect.ErrAmbiguous
	// ErrEmptySample matches any *EmptySampleError.
	ErrEmptySample = errors.New("sniffer: empty sample")
	// ErrInvalidOptions is returned for negative bounds or contradictory
	// overrides.
	ErrInvalidOptions = errors.New("sniffer: invalid options")
)

// EmptySampleError reports that no rows could be extracted.
type EmptySampleError struct {
	// SampleBytes is the number of bytes read before giving up.
	SampleBytes int
	// Truncated is true when the byte bound cut the only line, so a larger
	// sample may succeed.
	Truncated bool
}

func (e *EmptySampleError) Error() string {
	if e.Truncated {
		return fmt.Sprintf("sniffer: empty sample: first line exceeds %d bytes", e.SampleBytes)
	}
	return "sniffer: empty sample: no rows in input"
}

func (e *EmptySampleError) Is(target error) bool { return target == ErrEmptySample }

// errorStatus classifies err for metrics and logs.
func errorStatus(err error) string {
	var (
		ioErr *IOError
		uq    *UnterminatedQuoteError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ioErr):
		return "io_error"
	case errors.Is(err, ErrAmbiguousDialect):
		return "ambiguous"
	case errors.As(err, &uq):
		return "unterminated_quote"
	case errors.Is(err, ErrEmptySample):
		return "empty"
	case errors.Is(err, ErrInvalidOptions):
		return "invalid_options"
	default:
		return "error"
	}
}
