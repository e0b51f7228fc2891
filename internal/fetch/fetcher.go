// Package fetch retrieves a web page and extracts its paragraph text.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "docchat/1.0"

// ErrFetchFailed matches any *FetchFailedError via errors.Is.
var ErrFetchFailed = errors.New("fetch failed")

// FetchFailedError reports a transport failure or a non-2xx response.
type FetchFailedError struct {
	URL    string
	Status int // 0 when no response was received
	Err    error
}

func (e *FetchFailedError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: server returned %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchFailedError) Unwrap() error { return e.Err }

func (e *FetchFailedError) Is(target error) bool { return target == ErrFetchFailed }

// Fetcher performs a single GET per call. No retries.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	logger       *zap.Logger // optional
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = c }
}

// WithTimeout sets a whole-request timeout. Zero means none.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.client = &http.Client{Timeout: d} }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodyBytes caps how much of the body is parsed. Zero means unlimited.
func WithMaxBodyBytes(n int64) FetcherOption {
	return func(f *Fetcher) { f.maxBodyBytes = n }
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = l }
}

// NewFetcher returns a Fetcher using http.DefaultClient unless configured.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{client: http.DefaultClient, userAgent: DefaultUserAgent}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchText fetches url and returns the visible text of its <p> elements,
// joined with single spaces. Headings, lists and tables are not included.
func (f *Fetcher) FetchText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &FetchFailedError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchFailedError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &FetchFailedError{URL: url, Status: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if f.maxBodyBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBodyBytes)
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", &FetchFailedError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	text := ParagraphText(bytes.NewReader(b))
	if f.logger != nil {
		f.logger.Debug("fetched page",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.Int("text_len", len(text)))
	}
	return text, nil
}

// ParagraphText parses markup from r and returns the text of all <p>
// elements joined with single spaces. Parse problems degrade to whatever
// text was recovered.
func ParagraphText(r io.Reader) string {
	doc, err := html.Parse(r)
	if err != nil || doc == nil {
		return ""
	}
	var paras []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			case atom.P:
				if text := strings.TrimSpace(nodeText(n)); text != "" {
					paras = append(paras, text)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(paras, " ")
}

// nodeText concatenates descendant text nodes as written.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
