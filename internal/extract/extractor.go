// Package extract converts uploaded documents into plain text.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Format identifies the handler family an extension was dispatched to.
type Format string

const (
	FormatCSV         Format = "csv"
	FormatSpreadsheet Format = "spreadsheet"
	FormatDocument    Format = "document"
	FormatPDF         Format = "pdf"
)

// Extraction is the normalized result of extracting one artifact.
type Extraction struct {
	Format Format
	Text   string
	// Table is set for tabular input (csv, spreadsheet).
	Table *Table
	// EmptyPages lists 1-based PDF pages that contributed no text.
	EmptyPages []int
}

// Partial reports the soft partial-extraction condition, or nil when every
// segment yielded text.
func (x *Extraction) Partial() error {
	if len(x.EmptyPages) == 0 {
		return nil
	}
	return &PartialError{Pages: append([]int(nil), x.EmptyPages...)}
}

// Extractor extracts plain text from document files. It holds no state
// between calls.
type Extractor struct {
	logger *zap.Logger // optional
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithLogger sets a logger used to report partially extracted documents.
func WithLogger(l *zap.Logger) ExtractorOption {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Supported reports whether ext (with leading dot, any case) has a handler.
func Supported(ext string) bool {
	_, ok := formatFor(strings.ToLower(ext))
	return ok
}

// SupportedExtensions returns every extension Extract accepts.
func SupportedExtensions() []string {
	return []string{".csv", ".xls", ".xlsx", ".xlsm", ".docx", ".odt", ".rtf", ".pdf"}
}

func formatFor(ext string) (Format, bool) {
	switch ext {
	case ".csv":
		return FormatCSV, true
	case ".xls", ".xlsx", ".xlsm":
		return FormatSpreadsheet, true
	case ".docx", ".odt", ".rtf":
		return FormatDocument, true
	case ".pdf":
		return FormatPDF, true
	}
	return "", false
}

// Extract reads the file at path and returns its text content, dispatching
// on the file extension. Unknown extensions fail with an
// *UnsupportedFormatError before the file is read.
func (e *Extractor) Extract(path string) (*Extraction, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !Supported(ext) {
		return nil, &UnsupportedFormatError{Ext: ext}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	x, err := e.ExtractBytes(content, ext)
	if err != nil {
		return nil, err
	}
	if e.logger != nil && len(x.EmptyPages) > 0 {
		e.logger.Warn("extracted document with empty pages",
			zap.String("path", path), zap.Ints("pages", x.EmptyPages))
	}
	return x, nil
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (*Extraction, error) {
	ext = strings.ToLower(ext)
	switch ext {
	case ".csv":
		table, err := readCSV(content)
		if err != nil {
			return nil, err
		}
		return &Extraction{Format: FormatCSV, Text: table.String(), Table: table}, nil
	case ".xlsx", ".xlsm":
		table, text, err := extractExcel(content)
		if err != nil {
			return nil, err
		}
		return &Extraction{Format: FormatSpreadsheet, Text: text, Table: table}, nil
	case ".xls":
		table, text, err := extractXLS(content)
		if err != nil {
			return nil, err
		}
		return &Extraction{Format: FormatSpreadsheet, Text: text, Table: table}, nil
	case ".docx":
		text, err := extractDOCX(content)
		if err != nil {
			return nil, err
		}
		return &Extraction{Format: FormatDocument, Text: text}, nil
	case ".odt", ".rtf":
		text, err := extractOffice(content, ext)
		if err != nil {
			return nil, err
		}
		return &Extraction{Format: FormatDocument, Text: text}, nil
	case ".pdf":
		text, empty, err := extractPDF(content)
		if err != nil {
			return nil, err
		}
		return &Extraction{Format: FormatPDF, Text: text, EmptyPages: empty}, nil
	default:
		return nil, &UnsupportedFormatError{Ext: ext}
	}
}
