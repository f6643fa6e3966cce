// Package extract turns uploaded file bytes into plain text. PDFs are read
// page by page; plain-text formats pass through unchanged.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	// ErrUnsupportedType is returned for files that are neither PDF nor text.
	ErrUnsupportedType = errors.New("extract: unsupported file type")

	// ErrEmptyFile is returned when the upload has no bytes.
	ErrEmptyFile = errors.New("extract: file is empty")

	// ErrMalformed is returned when a file of a supported type cannot be
	// parsed.
	ErrMalformed = errors.New("extract: malformed file")
)

// pdfMagic is the signature every PDF file starts with.
var pdfMagic = []byte("%PDF-")

// Extractor converts a named file's bytes into text.
type Extractor interface {
	Extract(ctx context.Context, name string, data []byte) (string, error)
}

// Kind classifies an input for extraction.
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindText Kind = "text"
	// KindUnknown is anything else.
	KindUnknown Kind = ""
)

// Detect classifies data by extension first, then by content.
func Detect(name string, data []byte) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF
	case ".txt", ".md", ".markdown", ".text":
		return KindText
	}
	if bytes.HasPrefix(data, pdfMagic) {
		return KindPDF
	}
	if utf8.Valid(data) && !bytes.ContainsRune(data, 0) {
		return KindText
	}
	return KindUnknown
}

// Dispatcher routes each file to the extractor for its kind.
type Dispatcher struct {
	pdf Extractor
}

// New returns a Dispatcher handling PDF and plain-text input.
func New() *Dispatcher {
	return &Dispatcher{pdf: PDF{}}
}

// Extract implements Extractor.
func (d *Dispatcher) Extract(ctx context.Context, name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	switch Detect(name, data) {
	case KindPDF:
		return d.pdf.Extract(ctx, name, data)
	case KindText:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrUnsupportedType, name)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, name)
	}
}
