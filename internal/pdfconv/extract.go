package pdfconv

import (
	"bytes"
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// Page is the plain text of one PDF page. Number starts at 1.
type Page struct {
	Number int
	Text   string
}

// Pages reads a PDF and returns the text of each page in order. Pages
// without a page object are returned with empty text so len matches the
// document's page count.
func Pages(data []byte) ([]Page, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %w", ErrConvert, err)
	}
	pages := make([]Page, 0, r.NumPage())
	for n := 1; n <= r.NumPage(); n++ {
		pg := Page{Number: n}
		if p := r.Page(n); !p.V.IsNull() {
			pg.Text, err = p.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("%w: page %d: %w", ErrConvert, n, err)
			}
		}
		pages = append(pages, pg)
	}
	return pages, nil
}

// ExtractText returns the text of all pages, one page per line block.
func ExtractText(data []byte) (string, error) {
	pages, err := Pages(data)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(p.Text)
		b.WriteString("\n")
	}
	return b.String(), nil
}
