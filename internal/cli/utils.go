// Package cli renders documents, previews and transcripts for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/hyperjump/docchat/internal/extract"
	"github.com/hyperjump/docchat/internal/pipeline"
	"github.com/hyperjump/docchat/internal/session"
	"github.com/hyperjump/docchat/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text", "json" or "" (text).
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

var (
	userStyle  = color.New(color.FgCyan, color.Bold)
	botStyle   = color.New(color.FgGreen, color.Bold)
	rawStyle   = color.New(color.FgYellow)
	errStyle   = color.New(color.FgRed)
	titleStyle = color.New(color.Bold)
	dimStyle   = color.New(color.Faint)
)

const rule = "─────────────────────────────────────────────────────────"

type jsonTable struct {
	Rows    int        `json:"rows"`
	Columns int        `json:"columns"`
	Header  []string   `json:"header"`
	Head    [][]string `json:"head"`
}

type jsonPreview struct {
	Source     string     `json:"source"`
	Name       string     `json:"name"`
	Snippet    string     `json:"snippet"`
	Table      *jsonTable `json:"table,omitempty"`
	EmptyPages []int      `json:"empty_pages,omitempty"`
}

type jsonMessage struct {
	Role string        `json:"role"`
	Text string        `json:"text,omitempty"`
	Kind pipeline.Kind `json:"kind,omitempty"`
	At   time.Time     `json:"at"`
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WritePreview writes the preview of the active document.
func WritePreview(w io.Writer, p session.Preview, format OutputFormat) error {
	if format == OutputJSON {
		out := jsonPreview{Source: string(p.Source), Name: p.Name, Snippet: p.Snippet, EmptyPages: p.EmptyPages}
		if p.Table != nil {
			out.Table = &jsonTable{Rows: p.Table.Rows, Columns: p.Table.Columns, Header: p.Table.Header, Head: p.Table.Head}
		}
		return writeJSON(w, out)
	}

	fmt.Fprintln(w, rule)
	titleStyle.Fprintf(w, "%s", p.Name)
	dimStyle.Fprintf(w, " (%s)\n", p.Source)
	if t := p.Table; t != nil {
		fmt.Fprintf(w, "Shape: %d rows x %d columns\n", t.Rows, t.Columns)
		if len(t.Header) > 0 {
			fmt.Fprintf(w, "Columns: %s\n", strings.Join(t.Header, ", "))
		}
		for _, row := range t.Head {
			fmt.Fprintf(w, "  %s\n", strings.Join(row, "\t"))
		}
	} else {
		fmt.Fprintf(w, "\n%s\n", p.Snippet)
	}
	if len(p.EmptyPages) > 0 {
		rawStyle.Fprintf(w, "No text found on page(s) %s\n", joinInts(p.EmptyPages))
	}
	fmt.Fprintln(w, rule)
	return nil
}

// WriteMessage writes one transcript entry.
func WriteMessage(w io.Writer, m session.Message, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, toJSONMessage(m))
	}
	writeMessageText(w, m)
	return nil
}

// WriteTranscript writes the whole transcript in order.
func WriteTranscript(w io.Writer, history []session.Message, format OutputFormat) error {
	if format == OutputJSON {
		out := make([]jsonMessage, 0, len(history))
		for _, m := range history {
			out = append(out, toJSONMessage(m))
		}
		return writeJSON(w, out)
	}
	if len(history) == 0 {
		dimStyle.Fprintln(w, "(no messages yet)")
		return nil
	}
	for _, m := range history {
		writeMessageText(w, m)
	}
	return nil
}

func writeMessageText(w io.Writer, m session.Message) {
	if m.Role == session.RoleUser {
		userStyle.Fprint(w, "You: ")
		fmt.Fprintln(w, m.Text)
		return
	}
	botStyle.Fprint(w, "Assistant: ")
	switch r := m.Reply.(type) {
	case pipeline.Output:
		fmt.Fprintln(w, r.Text)
	case pipeline.RawFallback:
		rawStyle.Fprint(w, "[raw] ")
		fmt.Fprintln(w, r.Text)
	case pipeline.Error:
		errStyle.Fprintf(w, "error: %s\n", r.Message)
	default:
		errStyle.Fprintln(w, "error: no response")
	}
}

func toJSONMessage(m session.Message) jsonMessage {
	out := jsonMessage{Role: string(m.Role), Text: m.Content(), At: m.At}
	if m.Reply != nil {
		out.Kind = m.Reply.Kind()
	}
	return out
}

// WriteExtraction writes the result of extracting one file. Text output is
// cut to maxChars runes (0 = all).
func WriteExtraction(w io.Writer, name string, x *extract.Extraction, maxChars int, format OutputFormat) error {
	if format == OutputJSON {
		out := map[string]interface{}{
			"name":   name,
			"format": x.Format,
			"text":   x.Text,
		}
		if x.Table != nil {
			out["rows"] = len(x.Table.Rows)
			out["columns"] = x.Table.Columns()
		}
		if len(x.EmptyPages) > 0 {
			out["empty_pages"] = x.EmptyPages
		}
		return writeJSON(w, out)
	}
	titleStyle.Fprintf(w, "%s", name)
	dimStyle.Fprintf(w, " (%s, %d chars)\n", x.Format, len([]rune(x.Text)))
	if err := x.Partial(); err != nil {
		rawStyle.Fprintf(w, "warning: %v\n", err)
	}
	fmt.Fprintln(w, Truncate(x.Text, maxChars))
	return nil
}

// WriteError writes err in the error style.
func WriteError(w io.Writer, err error) {
	errStyle.Fprintf(w, "Error: %v\n", err)
}

// Truncate truncates s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	return utils.Truncate(s, maxLen)
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
