package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnsupportedFormat matches any *UnsupportedFormatError via errors.Is.
var ErrUnsupportedFormat = errors.New("unsupported format")

// UnsupportedFormatError is returned for extensions without a handler.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return "unsupported file type: no extension"
	}
	return "unsupported file type: " + e.Ext
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// PartialError describes pages that yielded no text. It is informational:
// the extraction that produced it still succeeded.
type PartialError struct {
	Pages []int
}

func (e *PartialError) Error() string {
	pages := make([]string, len(e.Pages))
	for i, p := range e.Pages {
		pages[i] = strconv.Itoa(p)
	}
	return fmt.Sprintf("no text extracted from page(s) %s", strings.Join(pages, ", "))
}
