package session

import (
	"time"

	"github.com/hyperjump/docchat/internal/extract"
	"github.com/hyperjump/docchat/pkg/utils"
)

// Provenance tags where the active context came from.
type Provenance string

const (
	ProvenanceFile Provenance = "file"
	ProvenanceWeb  Provenance = "web"
)

const (
	defaultSnippetChars = 500
	defaultHeadRows     = 5
)

// DocumentContext is the active extracted text of a session.
type DocumentContext struct {
	Text       string
	Source     Provenance
	Name       string // file base name or URL
	IngestedAt time.Time
}

// TablePreview summarizes tabular input.
type TablePreview struct {
	Rows    int
	Columns int
	Header  []string
	Head    [][]string
}

// Preview is display-only data derived from a DocumentContext.
type Preview struct {
	Source  Provenance
	Name    string
	Snippet string
	Table   *TablePreview // set for csv and spreadsheet input
	// EmptyPages lists PDF pages that produced no text.
	EmptyPages []int
}

func buildPreview(dc DocumentContext, x *extract.Extraction, snippetChars, headRows int) Preview {
	p := Preview{
		Source:  dc.Source,
		Name:    dc.Name,
		Snippet: utils.TruncateRunes(dc.Text, snippetChars),
	}
	if x == nil {
		return p
	}
	if x.Table != nil {
		head := x.Table.Head(headRows)
		p.Table = &TablePreview{
			Rows:    len(x.Table.Rows),
			Columns: x.Table.Columns(),
			Header:  append([]string(nil), x.Table.Header...),
			Head:    append([][]string(nil), head...),
		}
	}
	p.EmptyPages = append([]int(nil), x.EmptyPages...)
	return p
}
