package htmldoc

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// Decode converts raw page bytes to UTF-8 and names the source encoding. A
// BOM, the content type or a <meta charset> decides the encoding when present.
// Without a declaration valid UTF-8 is kept as is and anything else goes
// through statistical detection.
func Decode(content []byte, contentType string) (io.Reader, string) {
	enc, name, certain := charset.DetermineEncoding(content, contentType)
	if !certain && isGuess(name) {
		if utf8.Valid(content) {
			return bytes.NewReader(content), "utf-8"
		}
		if detected, err := chardet.NewHtmlDetector().DetectBest(content); err == nil {
			if e, canonical := charset.Lookup(detected.Charset); e != nil {
				enc, name = e, canonical
			}
		}
	}
	if enc == nil || enc == encoding.Nop {
		return bytes.NewReader(content), name
	}
	return transform.NewReader(bytes.NewReader(content), enc.NewDecoder()), name
}

// isGuess reports whether DetermineEncoding fell back to its own defaults.
// A <meta> declaring one of these two is treated the same way.
func isGuess(name string) bool {
	return name == "utf-8" || name == "windows-1252"
}

// Load decodes and parses a page
func Load(pageURL string, content []byte, contentType string, opts ...Option) (*Document, error) {
	r, _ := Decode(content, contentType)
	doc, err := NewDocument(pageURL, r, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return doc, nil
}
