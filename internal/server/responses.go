package server

import (
	"time"

	"github.com/hyperjump/docchat/internal/pipeline"
	"github.com/hyperjump/docchat/internal/session"
)

type tableResponse struct {
	Rows    int        `json:"rows"`
	Columns int        `json:"columns"`
	Header  []string   `json:"header"`
	Head    [][]string `json:"head"`
}

type previewResponse struct {
	Snippet    string         `json:"snippet"`
	Table      *tableResponse `json:"table,omitempty"`
	EmptyPages []int          `json:"empty_pages,omitempty"`
}

type contextResponse struct {
	Source     string          `json:"source"`
	Name       string          `json:"name"`
	Length     int             `json:"length"`
	IngestedAt time.Time       `json:"ingested_at"`
	Preview    previewResponse `json:"preview"`
}

type sessionResponse struct {
	ID       string           `json:"id"`
	Context  *contextResponse `json:"context"`
	Messages int              `json:"messages"`
}

type replyResponse struct {
	Kind pipeline.Kind `json:"kind"`
	Text string        `json:"text"`
}

type messageResponse struct {
	Role  session.Role   `json:"role"`
	Text  string         `json:"text,omitempty"`
	Reply *replyResponse `json:"reply,omitempty"`
	At    time.Time      `json:"at"`
}

func newSessionResponse(sess *session.Session) sessionResponse {
	resp := sessionResponse{ID: sess.ID(), Messages: len(sess.History())}
	dc, p, ok := sess.Snapshot()
	if !ok {
		return resp
	}
	ctx := &contextResponse{
		Source:     string(dc.Source),
		Name:       dc.Name,
		Length:     len([]rune(dc.Text)),
		IngestedAt: dc.IngestedAt,
		Preview:    previewResponse{Snippet: p.Snippet, EmptyPages: p.EmptyPages},
	}
	if p.Table != nil {
		ctx.Preview.Table = &tableResponse{
			Rows:    p.Table.Rows,
			Columns: p.Table.Columns,
			Header:  p.Table.Header,
			Head:    p.Table.Head,
		}
	}
	resp.Context = ctx
	return resp
}

func newMessageResponse(m session.Message) messageResponse {
	out := messageResponse{Role: m.Role, Text: m.Text, At: m.At}
	if m.Reply != nil {
		out.Reply = &replyResponse{Kind: m.Reply.Kind(), Text: m.Reply.Content()}
	}
	return out
}
