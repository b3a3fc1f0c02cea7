package core

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestUTF8Reader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello,world")...),
			expected: "hello,world",
		},
		{
			name:     "file without BOM",
			input:    []byte("hello,world"),
			expected: "hello,world",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "invalid byte replaced",
			input:    []byte{'a', 0xFF, 'b'},
			expected: "a�b",
		},
		{
			name:     "multibyte preserved",
			input:    []byte("Zoë,東京"),
			expected: "Zoë,東京",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := io.ReadAll(NewUTF8Reader(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestQuoteSpaceTrimmer(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no quotes untouched",
			input:    "a , b ,c\n",
			expected: "a , b ,c\n",
		},
		{
			name:     "blanks after closing quote",
			input:    "\"Alice\"  ,30\n",
			expected: "\"Alice\",30\n",
		},
		{
			name:     "tab after closing quote",
			input:    "\"x\"\t\n",
			expected: "\"x\"\n",
		},
		{
			name:     "leading blanks kept",
			input:    "  \"Alice\" ,30",
			expected: "  \"Alice\",30",
		},
		{
			name:     "blanks inside quotes kept",
			input:    "\" a \" ,\" b \"",
			expected: "\" a \",\" b \"",
		},
		{
			name:     "escaped quote inside field",
			input:    "\"say \"\"hi\"\" \" ,x",
			expected: "\"say \"\"hi\"\" \",x",
		},
		{
			name:     "delimiter and newline inside quotes",
			input:    "\"a,\n\" ,b\n",
			expected: "\"a,\n\",b\n",
		},
		{
			name:     "quote in middle of unquoted field",
			input:    "ab\"c \" ,d",
			expected: "ab\"c \" ,d",
		},
		{
			name:     "empty quoted field",
			input:    "\"\"  ,x",
			expected: "\"\",x",
		},
		{
			name:     "state resets each line",
			input:    "\"a\" \nb ,c\n",
			expected: "\"a\"\nb ,c\n",
		},
		{
			name:     "blanks before stray text kept",
			input:    "\"a\"  b,1\n",
			expected: "\"a\"  b,1\n",
		},
		{
			name:     "blanks before CRLF dropped",
			input:    "\"a\" \t\r\nb\r\n",
			expected: "\"a\"\r\nb\r\n",
		},
		{
			name:     "blanks before EOF dropped",
			input:    "x,\"a\"  ",
			expected: "x,\"a\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := io.ReadAll(NewQuoteSpaceTrimmer(strings.NewReader(tt.input), ','))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestQuoteSpaceTrimmer_SmallReads(t *testing.T) {
	input := "\"say \"\"hi\"\"\"  ,\"x\" \n"
	expected := "\"say \"\"hi\"\"\",\"x\"\n"

	// OneByteReader on both sides forces the pending buffer and Peek paths.
	trimmer := NewQuoteSpaceTrimmer(iotest.OneByteReader(strings.NewReader(input)), ',')
	result, err := io.ReadAll(iotest.OneByteReader(trimmer))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != expected {
		t.Errorf("got %q, want %q", string(result), expected)
	}
}

func TestCountingReader(t *testing.T) {
	data := "hello world this is a test"
	reader := NewCountingReader(strings.NewReader(data))

	buf := make([]byte, 5)
	total := 0
	for {
		n, err := reader.Read(buf)
		total += n
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if reader.BytesRead != int64(len(data)) {
		t.Errorf("BytesRead = %d, want %d", reader.BytesRead, len(data))
	}
	if total != len(data) {
		t.Errorf("total = %d, want %d", total, len(data))
	}
}

func TestWrapForParsing(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("\"a\"  ,b\n")...)

	wrapped, counter := WrapForParsing(bytes.NewReader(input))
	result, err := io.ReadAll(wrapped)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(result) != "\"a\",b\n" {
		t.Errorf("got %q, want %q", string(result), "\"a\",b\n")
	}
	if counter.BytesRead != int64(len(input)) {
		t.Errorf("BytesRead = %d, want raw size %d", counter.BytesRead, len(input))
	}
}
