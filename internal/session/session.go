// Package session holds one user's active document and chat transcript and
// mediates between ingestion, the response pipeline and presentation.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/docchat/internal/extract"
	"github.com/hyperjump/docchat/internal/pipeline"
	"go.uber.org/zap"
)

var (
	// ErrNoContext is returned by Ask before anything has been ingested.
	ErrNoContext = errors.New("no document ingested")
	// ErrEmptyMessage is returned by Ask for blank input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrInvalidSource is returned by Ingest unless exactly one of Path and URL is set.
	ErrInvalidSource = errors.New("source needs exactly one of path or url")
)

// Extractor turns a local file into text.
type Extractor interface {
	Extract(path string) (*extract.Extraction, error)
}

// Fetcher turns a URL into text.
type Fetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Responder answers a prompt.
type Responder interface {
	Respond(ctx context.Context, prompt string) pipeline.Result
}

// Source is an ingestion input: a local file or a URL.
type Source struct {
	Path string
	URL  string
	// Name overrides the display name (e.g. the original upload filename).
	Name string
}

// FileSource returns a Source for a local file.
func FileSource(path string) Source { return Source{Path: path} }

// WebSource returns a Source for a URL.
func WebSource(url string) Source { return Source{URL: url} }

// BuildPrompt is the text sent to the pipeline for one user turn.
func BuildPrompt(context, message string) string {
	return "Context: " + context + "\nUser: " + message
}

// Session is safe for concurrent use; turns are processed in call order.
type Session struct {
	id        string
	extractor Extractor
	fetcher   Fetcher
	responder Responder
	logger    *zap.Logger

	snippetChars int
	headRows     int
	now          func() time.Time

	turn sync.Mutex // serializes Ask

	mu         sync.RWMutex
	doc        *DocumentContext
	preview    Preview
	transcript []Message
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets a logger for ingestion and chat events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithPreviewLimits sets the snippet length in runes and the number of table
// rows kept in the preview. Non-positive values keep the defaults.
func WithPreviewLimits(snippetChars, headRows int) Option {
	return func(s *Session) {
		if snippetChars > 0 {
			s.snippetChars = snippetChars
		}
		if headRows > 0 {
			s.headRows = headRows
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New returns an empty session.
func New(id string, extractor Extractor, fetcher Fetcher, responder Responder, opts ...Option) *Session {
	s := &Session{
		id:           id,
		extractor:    extractor,
		fetcher:      fetcher,
		responder:    responder,
		logger:       zap.NewNop(),
		snippetChars: defaultSnippetChars,
		headRows:     defaultHeadRows,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// IngestFile extracts the file at path and makes it the active context.
func (s *Session) IngestFile(ctx context.Context, path string) error {
	return s.Ingest(ctx, FileSource(path))
}

// IngestURL fetches url and makes its text the active context.
func (s *Session) IngestURL(ctx context.Context, url string) error {
	return s.Ingest(ctx, WebSource(url))
}

// Ingest replaces the document context and preview together. On error the
// previous context and preview are left as they were.
func (s *Session) Ingest(ctx context.Context, src Source) error {
	if (src.Path == "") == (src.URL == "") {
		return ErrInvalidSource
	}

	var (
		dc DocumentContext
		x  *extract.Extraction
	)
	if src.Path != "" {
		var err error
		x, err = s.extractor.Extract(src.Path)
		if err != nil {
			s.logger.Warn("ingest file failed", zap.String("session", s.id), zap.String("path", src.Path), zap.Error(err))
			return fmt.Errorf("ingest %s: %w", filepath.Base(src.Path), err)
		}
		dc = DocumentContext{Text: x.Text, Source: ProvenanceFile, Name: filepath.Base(src.Path)}
	} else {
		text, err := s.fetcher.FetchText(ctx, src.URL)
		if err != nil {
			s.logger.Warn("ingest url failed", zap.String("session", s.id), zap.String("url", src.URL), zap.Error(err))
			return fmt.Errorf("ingest %s: %w", src.URL, err)
		}
		dc = DocumentContext{Text: text, Source: ProvenanceWeb, Name: src.URL}
	}
	if src.Name != "" {
		dc.Name = src.Name
	}
	dc.IngestedAt = s.now()
	preview := buildPreview(dc, x, s.snippetChars, s.headRows)

	s.mu.Lock()
	s.doc = &dc
	s.preview = preview
	s.mu.Unlock()

	s.logger.Info("document ingested",
		zap.String("session", s.id),
		zap.String("source", string(dc.Source)),
		zap.String("name", dc.Name),
		zap.Int("text_len", len(dc.Text)))
	return nil
}

// Ask appends text as a user message, sends the full context plus text to
// the responder and appends its reply. The returned message is the reply.
// A failed model call is not an error here: it is a reply of kind Error.
func (s *Session) Ask(ctx context.Context, text string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyMessage
	}

	s.turn.Lock()
	defer s.turn.Unlock()

	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return Message{}, ErrNoContext
	}
	docText := s.doc.Text
	s.transcript = append(s.transcript, Message{Role: RoleUser, Text: text, At: s.now()})
	s.mu.Unlock()

	reply := s.responder.Respond(ctx, BuildPrompt(docText, text))
	if reply == nil {
		reply = pipeline.Error{Message: "no response"}
	}
	msg := Message{Role: RoleAssistant, Reply: reply, At: s.now()}

	s.mu.Lock()
	s.transcript = append(s.transcript, msg)
	s.mu.Unlock()

	if reply.Kind() == pipeline.KindError {
		s.logger.Warn("model call failed", zap.String("session", s.id), zap.String("error", reply.Content()))
	}
	return msg, nil
}

// History returns a copy of the transcript in insertion order.
func (s *Session) History() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.transcript...)
}

// Context returns the active document context and whether one exists.
func (s *Session) Context() (DocumentContext, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return DocumentContext{}, false
	}
	return *s.doc, true
}

// HasContext reports whether a document has been ingested.
func (s *Session) HasContext() bool {
	_, ok := s.Context()
	return ok
}

// Preview returns the preview of the active context and whether one exists.
func (s *Session) Preview() (Preview, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return Preview{}, false
	}
	return s.preview, true
}

// Snapshot returns context and preview read under one lock, so they always
// describe the same ingestion.
func (s *Session) Snapshot() (DocumentContext, Preview, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return DocumentContext{}, Preview{}, false
	}
	return *s.doc, s.preview, true
}
