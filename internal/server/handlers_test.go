package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/docchat/internal/config"
	"github.com/hyperjump/docchat/internal/extract"
	"github.com/hyperjump/docchat/internal/fetch"
	"github.com/hyperjump/docchat/internal/pipeline"
	"github.com/hyperjump/docchat/internal/session"
	"github.com/hyperjump/docchat/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubFetcher map[string]string

func (f stubFetcher) FetchText(ctx context.Context, url string) (string, error) {
	if text, ok := f[url]; ok {
		return text, nil
	}
	return "", &fetch.FetchFailedError{URL: url, Status: http.StatusNotFound}
}

type stubResponder struct {
	result pipeline.Result
}

func (r *stubResponder) Respond(ctx context.Context, prompt string) pipeline.Result {
	return r.result
}

type testEnv struct {
	handler   http.Handler
	spool     *upload.Spool
	responder *stubResponder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	spool, err := upload.NewSpool(t.TempDir(), 1<<20)
	require.NoError(t, err)
	resp := &stubResponder{result: pipeline.Output{Text: "forty-two"}}
	ext := extract.NewExtractor()
	fet := stubFetcher{"https://example.com/page": "first para second para"}
	store := session.NewStore(time.Hour, func(id string) *session.Session {
		return session.New(id, ext, fet, resp)
	})
	srv := NewServer(store, spool, &config.ServerConfig{Host: "localhost", Port: 8080}, "test-model", zap.NewNop())
	return &testEnv{handler: srv.Handler(), spool: spool, responder: resp}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func (e *testEnv) upload(t *testing.T, id, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/documents", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	require.NotEmpty(t, out.ID)
	return out.ID
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

func TestUploadCSVThenAsk(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	w := e.upload(t, id, "sales.csv", "region,sales\nnorth,10\nsouth,20\n")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sess sessionResponse
	decode(t, w, &sess)
	require.NotNil(t, sess.Context)
	assert.Equal(t, "file", sess.Context.Source)
	assert.Equal(t, "sales.csv", sess.Context.Name)
	require.NotNil(t, sess.Context.Preview.Table)
	assert.Equal(t, 2, sess.Context.Preview.Table.Rows)
	assert.Equal(t, 2, sess.Context.Preview.Table.Columns)

	usage, err := e.spool.UsageBytes()
	require.NoError(t, err)
	assert.Zero(t, usage, "spooled upload should be removed after ingest")

	w = e.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/messages", messageRequest{Text: "total?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var msg messageResponse
	decode(t, w, &msg)
	assert.Equal(t, session.RoleAssistant, msg.Role)
	require.NotNil(t, msg.Reply)
	assert.Equal(t, pipeline.KindOutput, msg.Reply.Kind)
	assert.Equal(t, "forty-two", msg.Reply.Text)

	w = e.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Messages []messageResponse `json:"messages"`
	}
	decode(t, w, &list)
	require.Len(t, list.Messages, 2)
	assert.Equal(t, session.RoleUser, list.Messages[0].Role)
	assert.Equal(t, "total?", list.Messages[0].Text)
	assert.Nil(t, list.Messages[0].Reply)
}

func TestUploadUnsupported(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)
	w := e.upload(t, id, "notes.txt", "hello")
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported file type: .txt")

	w = e.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	var sess sessionResponse
	decode(t, w, &sess)
	assert.Nil(t, sess.Context)
}

func TestUploadMissingFile(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())
	r := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/documents", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCrawl(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	w := e.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/crawl", crawlRequest{URL: "https://example.com/page"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sess sessionResponse
	decode(t, w, &sess)
	require.NotNil(t, sess.Context)
	assert.Equal(t, "web", sess.Context.Source)
	assert.Equal(t, "first para second para", sess.Context.Preview.Snippet)
	assert.Nil(t, sess.Context.Preview.Table)
}

func TestCrawlFailureKeepsContext(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)
	require.Equal(t, http.StatusCreated, e.upload(t, id, "a.csv", "x,y\n1,2\n").Code)

	w := e.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/crawl", crawlRequest{URL: "https://missing.example.com"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	var sess sessionResponse
	decode(t, w, &sess)
	require.NotNil(t, sess.Context)
	assert.Equal(t, "a.csv", sess.Context.Name)
}

func TestCrawlBadRequest(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)
	w := e.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/crawl", crawlRequest{URL: "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/crawl", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostMessageErrors(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	w := e.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/messages", messageRequest{Text: "hi"})
	assert.Equal(t, http.StatusConflict, w.Code)

	require.Equal(t, http.StatusCreated, e.upload(t, id, "a.csv", "x,y\n1,2\n").Code)
	w = e.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/messages", messageRequest{Text: "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostMessageModelFailure(t *testing.T) {
	e := newTestEnv(t)
	e.responder.result = pipeline.Error{Message: "model api error (status 503)"}
	id := e.createSession(t)
	require.Equal(t, http.StatusCreated, e.upload(t, id, "a.csv", "x,y\n1,2\n").Code)

	w := e.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/messages", messageRequest{Text: "q"})
	require.Equal(t, http.StatusOK, w.Code)
	var msg messageResponse
	decode(t, w, &msg)
	require.NotNil(t, msg.Reply)
	assert.Equal(t, pipeline.KindError, msg.Reply.Kind)
	assert.Equal(t, "model api error (status 503)", msg.Reply.Text)

	w = e.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	var sess sessionResponse
	decode(t, w, &sess)
	assert.Equal(t, 2, sess.Messages)
	assert.NotNil(t, sess.Context)
}

func TestUnknownSession(t *testing.T) {
	e := newTestEnv(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/sessions/nope"},
		{http.MethodDelete, "/api/v1/sessions/nope"},
		{http.MethodGet, "/api/v1/sessions/nope/messages"},
		{http.MethodPost, "/api/v1/sessions/nope/crawl"},
	} {
		w := e.do(t, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestDeleteSession(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)
	w := e.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = e.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionsAreIndependent(t *testing.T) {
	e := newTestEnv(t)
	a, b := e.createSession(t), e.createSession(t)
	require.Equal(t, http.StatusCreated, e.upload(t, a, "a.csv", "x\n1\n").Code)

	w := e.do(t, http.MethodGet, "/api/v1/sessions/"+b, nil)
	var sess sessionResponse
	decode(t, w, &sess)
	assert.Nil(t, sess.Context)
}

func TestStatus(t *testing.T) {
	e := newTestEnv(t)
	e.createSession(t)
	w := e.do(t, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out map[string]interface{}
	decode(t, w, &out)
	assert.Equal(t, float64(1), out["sessions"])
	assert.Equal(t, "test-model", out["model"])
	assert.Contains(t, out, "upload_usage_bytes")
}
