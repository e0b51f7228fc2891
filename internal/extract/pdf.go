package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pageSource yields the plain text of numbered pages (1-based).
type pageSource interface {
	NumPage() int
	PageText(n int) (string, error)
}

type pdfPages struct {
	r *pdf.Reader
}

func (p pdfPages) NumPage() int { return p.r.NumPage() }

// PageText recovers from panics in the content stream decoder; some broken
// pages make ledongthuc/pdf panic instead of returning an error.
func (p pdfPages) PageText(n int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page %d: %v", n, rec)
		}
	}()
	page := p.r.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

func extractPDF(content []byte) (string, []int, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", nil, fmt.Errorf("open PDF: %w", err)
	}
	text, empty := joinPages(pdfPages{r: r})
	return text, empty, nil
}

// joinPages concatenates page texts separated by newlines. A page that fails
// or yields only whitespace contributes an empty segment and is reported in
// the returned page list.
func joinPages(src pageSource) (string, []int) {
	var (
		buf   strings.Builder
		empty []int
	)
	n := src.NumPage()
	for i := 1; i <= n; i++ {
		text, err := src.PageText(i)
		if err != nil || strings.TrimSpace(text) == "" {
			empty = append(empty, i)
			text = ""
		}
		buf.WriteString(text)
		if i < n {
			buf.WriteByte('\n')
		}
	}
	return buf.String(), empty
}
