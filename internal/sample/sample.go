// Package sample extracts a bounded prefix of an input stream for sniffing.
//
// The sample package is responsible for:
//   - Reading at most Limits.MaxBytes (decoded) bytes and at most
//     Limits.MaxLines newline-terminated lines from a source.
//   - Normalizing the input encoding to UTF-8 (BOM stripping, UTF-16,
//     Latin-1 and Windows-1252 decoding).
//   - Recording logical line boundaries for the detection stages.
//
// Design constraints:
//   - The source is never read past the raw bound: MaxBytes for UTF-8 and
//     single-byte charsets, 2*MaxBytes+2 for explicit UTF-16. Decoding
//     happens in memory after the read.
//   - The read buffer is allocated once at the raw bound and never grows.
//     The number of bytes actually written is tracked separately and only
//     that prefix is ever exposed.
//   - A partial trailing line at the byte bound is excluded, not handed to
//     later stages half-read.
//   - The sample is immutable once returned.
package sample

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultMaxBytes is the byte bound used when callers do not set one.
const DefaultMaxBytes = 20000

// ErrInvalidLimits is returned when Limits.MaxBytes is not positive.
var ErrInvalidLimits = errors.New("sample: max bytes must be > 0")

// Limits bounds a single extraction.
type Limits struct {
	// MaxBytes is the hard cap on sampled (decoded) bytes. Required > 0.
	MaxBytes int
	// MaxLines optionally caps the number of terminated lines. 0 disables it.
	MaxLines int
	// Encoding names the source encoding. Empty means UTF-8 with an optional
	// BOM (a UTF-16 BOM also switches decoding to UTF-16).
	Encoding string
}

// IOError reports a failed read from the source. Offset is the number of
// decoded bytes successfully read before the failure.
type IOError struct {
	Offset int64
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("sample: read failed at byte %d: %v", e.Offset, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Line is a logical line inside a Sample. End excludes the terminator.
type Line struct {
	Start int
	End   int
	// Terminated is false only for the final line of a source that ended
	// without a trailing newline.
	Terminated bool
	// CRLF is true when the line ended with "\r\n".
	CRLF bool
}

// Sample is an immutable, fully-initialized byte prefix of a source.
type Sample struct {
	data      []byte
	lines     []Line
	truncated bool
}

// New builds a Sample directly from bytes already in memory. The input is
// copied so later mutation by the caller cannot leak into the sample.
func New(b []byte) *Sample {
	data := append([]byte(nil), b...)
	lines, cut, _ := splitLines(data, 0, false)
	return &Sample{data: data[:cut:cut], lines: lines}
}

// Extract reads a bounded sample from r.
//
// Behavior:
//   - Stops after lim.MaxBytes decoded bytes or lim.MaxLines terminated lines,
//     whichever comes first.
//   - If the byte bound was hit, any bytes after the last newline are dropped.
//   - If the source ended first, a final unterminated line is kept: it is the
//     real end of the data.
//
// Errors:
//   - ErrInvalidLimits if lim.MaxBytes <= 0.
//   - *IOError for any read failure other than EOF.
//   - An error for an unknown lim.Encoding.
func Extract(r io.Reader, lim Limits) (*Sample, error) {
	if lim.MaxBytes <= 0 {
		return nil, ErrInvalidLimits
	}
	dec, err := decoderFor(lim.Encoding)
	if err != nil {
		return nil, err
	}

	// io.ReadFull never asks r for more than len(raw) bytes.
	raw := make([]byte, dec.rawBound(lim.MaxBytes))
	n, err := io.ReadFull(r, raw)
	eof := false
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		eof = true
	default:
		return nil, &IOError{Offset: int64(n), Err: err}
	}

	// Only the written prefix survives; the full slice expression caps the
	// capacity so nothing downstream can reslice into unwritten memory.
	written, err := dec.decode(raw[:n:n])
	if err != nil {
		return nil, err
	}
	if len(written) > lim.MaxBytes {
		written = written[:lim.MaxBytes:lim.MaxBytes]
		eof = false
	}
	lines, cut, cutShort := splitLines(written, lim.MaxLines, !eof)

	return &Sample{
		data:      written[:cut:cut],
		lines:     lines,
		truncated: !eof || cutShort,
	}, nil
}

// Bytes returns the sampled bytes. The slice is shared; callers must treat it
// as read-only.
func (s *Sample) Bytes() []byte { return s.data }

// Len is the number of sampled bytes.
func (s *Sample) Len() int { return len(s.data) }

// Lines returns the logical line boundaries, in order.
func (s *Sample) Lines() []Line { return s.lines }

// LineBytes returns the content of line i without its terminator.
func (s *Sample) LineBytes(i int) []byte {
	l := s.lines[i]
	return s.data[l.Start:l.End]
}

// Truncated reports whether the sample stopped at a bound rather than at the
// end of the source.
func (s *Sample) Truncated() bool { return s.truncated }

// splitLines records line boundaries in data and returns the length of the
// prefix that should be kept.
//
// maxLines > 0 stops after that many terminated lines. When atByteBound is
// true a trailing unterminated fragment is excluded.
func splitLines(data []byte, maxLines int, atByteBound bool) (lines []Line, cut int, cutShort bool) {
	start := 0
	for start < len(data) {
		i := bytes.IndexByte(data[start:], '\n')
		if i < 0 {
			break
		}
		end := start + i
		crlf := end > start && data[end-1] == '\r'
		contentEnd := end
		if crlf {
			contentEnd--
		}
		lines = append(lines, Line{Start: start, End: contentEnd, Terminated: true, CRLF: crlf})
		start = end + 1
		if maxLines > 0 && len(lines) >= maxLines {
			return lines, start, start < len(data)
		}
	}

	if start < len(data) {
		if atByteBound {
			return lines, start, true
		}
		lines = append(lines, Line{Start: start, End: len(data)})
	}
	return lines, len(data), false
}

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}
)

// decoder turns a raw prefix into UTF-8. A nil t means the input is already
// UTF-8 and only a BOM needs handling.
type decoder struct {
	t       transform.Transformer
	twoByte bool
}

// rawBound is how many source bytes may be read for maxBytes of output.
func (d decoder) rawBound(maxBytes int) int {
	if d.twoByte {
		return 2*maxBytes + 2
	}
	return maxBytes
}

func (d decoder) decode(raw []byte) ([]byte, error) {
	if d.t == nil {
		switch {
		case bytes.HasPrefix(raw, utf8BOM):
			n := len(raw) - len(utf8BOM)
			return raw[len(utf8BOM):][:n:n], nil
		case bytes.HasPrefix(raw, utf16LEBOM), bytes.HasPrefix(raw, utf16BEBOM):
			return transformAll(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder(), raw)
		}
		return raw, nil
	}
	return transformAll(d.t, raw)
}

func transformAll(t transform.Transformer, raw []byte) ([]byte, error) {
	out, _, err := transform.Bytes(t, raw)
	if err != nil {
		return nil, fmt.Errorf("sample: decode: %w", err)
	}
	return out[:len(out):len(out)], nil
}

func decoderFor(encoding string) (decoder, error) {
	name := strings.ToLower(strings.TrimSpace(encoding))
	switch name {
	case "", "utf-8", "utf8", "utf-8-sig":
		return decoder{}, nil
	case "utf-16":
		return decoder{t: unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder(), twoByte: true}, nil
	case "utf-16le":
		return decoder{t: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder(), twoByte: true}, nil
	case "utf-16be":
		return decoder{t: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder(), twoByte: true}, nil
	case "latin1", "latin-1", "iso-8859-1":
		return decoder{t: charmap.ISO8859_1.NewDecoder()}, nil
	case "windows-1252", "cp1252":
		return decoder{t: charmap.Windows1252.NewDecoder()}, nil
	}
	enc, err := ianaindex.IANA.Encoding(encoding)
	if err != nil || enc == nil {
		return decoder{}, fmt.Errorf("sample: unsupported encoding %q", encoding)
	}
	return decoder{t: enc.NewDecoder(), twoByte: isUTF16Name(name)}, nil
}

func isUTF16Name(name string) bool {
	return strings.HasPrefix(name, "utf-16") || strings.HasPrefix(name, "utf16")
}

// NewDecodingReader wraps r so that it yields UTF-8 for the named encoding.
// Names are the ones Limits.Encoding accepts, plus any IANA name. It streams
// the whole source and is meant for full reads, not for bounded sampling.
func NewDecodingReader(r io.Reader, encoding string) (io.Reader, error) {
	d, err := decoderFor(encoding)
	if err != nil {
		return nil, err
	}
	t := d.t
	if t == nil {
		t = unicode.BOMOverride(transform.Nop)
	}
	return transform.NewReader(r, t), nil
}
