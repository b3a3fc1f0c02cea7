package core

import (
	"bufio"
	"io"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen is how many leading bytes are inspected when the client sent no
// usable content type.
const sniffLen = 512

// LooksLikeCSV reports whether an upload is plausibly CSV: the declared
// content type mentions csv or is text/plain, or the file name ends in .csv.
func LooksLikeCSV(fileName, contentType string) bool {
	return contentTypeLooksCSV(contentType) || fileNameLooksCSV(fileName)
}

func contentTypeLooksCSV(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct == "" {
		return false
	}
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mediaType
	}
	return strings.Contains(ct, "csv") || ct == "text/plain"
}

func fileNameLooksCSV(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".csv")
}

// needsSniff reports whether the declared type carries no information, so
// an upload accepted on its .csv name alone gets its content checked.
func needsSniff(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return ct == "" || strings.HasPrefix(ct, "application/octet-stream")
}

// sniffText peeks at the head of r and reports whether it is text. The
// returned reader still yields the full stream. Detection only ever rejects:
// it never makes an upload acceptable that LooksLikeCSV turned down.
func sniffText(r io.Reader) (bool, io.Reader) {
	br := bufio.NewReaderSize(r, sniffLen)
	head, _ := br.Peek(sniffLen)
	if len(head) == 0 {
		return true, br
	}
	for m := mimetype.Detect(head); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true, br
		}
	}
	return false, br
}
