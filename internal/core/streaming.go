package core

// streaming.go provides the reader chain an upload passes through before it
// reaches the CSV parser:
//
//   - UTF-8 decoding: strips a UTF-8 BOM and replaces invalid sequences with U+FFFD
//   - QuoteSpaceTrimmer: drops blanks between a closing quote and the next
//     delimiter or line end, which encoding/csv would otherwise reject
//   - CountingReader: tracks bytes read for logging and the run ledger
//
// Use WrapForParsing to apply all of them in the correct order.

import (
	"bufio"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// QuoteSpaceTrimmer removes spaces and tabs that follow the closing quote of a
// quoted field, so `"Alice"  ,30` reads as `"Alice",30`. Blanks are only
// dropped when the delimiter, a line end or EOF comes next; `"a"  b` passes
// through unchanged so the parser still reports it as malformed.
//
// It tracks quote state across reads, so quoted fields that contain newlines,
// delimiters or escaped quotes ("") pass through untouched.
type QuoteSpaceTrimmer struct {
	r     *bufio.Reader
	comma byte

	inQuotes    bool
	afterQuoted bool // just left a quoted field
	atFieldHead bool // only blanks seen so far in the current field
	held        []byte // blanks after a closing quote, not yet emitted

	pending []byte // output that did not fit the caller's buffer
	out     [2]byte
}

// NewQuoteSpaceTrimmer wraps r. comma is the field delimiter.
func NewQuoteSpaceTrimmer(r io.Reader, comma byte) *QuoteSpaceTrimmer {
	return &QuoteSpaceTrimmer{
		r:           bufio.NewReader(r),
		comma:       comma,
		atFieldHead: true,
	}
}

// Read implements io.Reader.
func (t *QuoteSpaceTrimmer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n := copy(p, t.pending)
	t.pending = t.pending[n:]

	for n < len(p) {
		b, err := t.r.ReadByte()
		if err != nil {
			return n, err
		}

		out := t.step(b)
		c := copy(p[n:], out)
		n += c
		if c < len(out) {
			t.pending = append(t.pending, out[c:]...)
		}
	}
	return n, nil
}

// step advances the quote state by one input byte and returns the bytes to emit.
func (t *QuoteSpaceTrimmer) step(b byte) []byte {
	t.out[0] = b

	if t.inQuotes {
		if b != '"' {
			return t.out[:1]
		}
		if next, err := t.r.Peek(1); err == nil && next[0] == '"' {
			t.r.ReadByte()
			t.out[1] = '"'
			return t.out[:2]
		}
		t.inQuotes = false
		t.afterQuoted = true
		return t.out[:1]
	}

	var emit []byte
	if t.afterQuoted {
		if b == ' ' || b == '\t' {
			t.held = append(t.held, b)
			return nil
		}
		t.afterQuoted = false
		if b != t.comma && b != '\n' && b != '\r' && len(t.held) > 0 {
			emit = t.held
		}
		t.held = t.held[:0]
	}

	switch {
	case b == t.comma || b == '\n' || b == '\r':
		t.atFieldHead = true
	case b == '"' && t.atFieldHead:
		t.inQuotes = true
		t.atFieldHead = false
	case b != ' ' && b != '\t':
		t.atFieldHead = false
	}

	if emit != nil {
		return append(emit, b)
	}
	return t.out[:1]
}

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader creates a counting reader.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// NewUTF8Reader decodes r as UTF-8. A leading BOM is dropped and invalid
// byte sequences are replaced with U+FFFD.
func NewUTF8Reader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.UTF8BOM.NewDecoder())
}

// WrapForParsing chains counting, UTF-8 decoding and quote-space trimming.
//
// The order matters:
//  1. Counting sees the raw upload bytes
//  2. Decoding happens before any byte-level CSV handling
//  3. Trimming runs last, directly in front of the CSV reader
func WrapForParsing(r io.Reader) (io.Reader, *CountingReader) {
	counter := NewCountingReader(r)
	decoded := NewUTF8Reader(counter)
	return NewQuoteSpaceTrimmer(decoded, ','), counter
}
