package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDF extracts the text layer of a PDF document. Pages are joined with a
// newline; pages without text contribute an empty line.
type PDF struct{}

// Extract implements Extractor.
func (PDF) Extract(ctx context.Context, name string, data []byte) (text string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: pdf %s: %v", ErrMalformed, name, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open pdf %s: %w", ErrMalformed, name, err)
	}

	n := r.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: read page %d of %s: %w", ErrMalformed, i, name, err)
		}
		pages = append(pages, strings.TrimRight(content, "\n"))
	}
	return strings.Join(pages, "\n"), nil
}
