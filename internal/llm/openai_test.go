package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewOpenAIProvider_requiresKey(t *testing.T) {
	if _, err := NewOpenAIProvider(""); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("err = %v", err)
	}
}

func TestGenerate_success(t *testing.T) {
	var got chatRequest
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hello there"}}]}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider("k-123", WithBaseURL(srv.URL+"/"), WithModel("m1"), WithMaxTokens(64))
	if err != nil {
		t.Fatal(err)
	}
	c, err := p.Generate(context.Background(), "Say hi")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if c.Content != "Hello there" {
		t.Errorf("Content = %q", c.Content)
	}
	if auth != "Bearer k-123" {
		t.Errorf("Authorization = %q", auth)
	}
	if path != "/chat/completions" {
		t.Errorf("path = %q", path)
	}
	if got.Model != "m1" || got.MaxTokens != 64 || len(got.Messages) != 1 ||
		got.Messages[0].Role != "user" || got.Messages[0].Content != "Say hi" {
		t.Errorf("request = %+v", got)
	}
}

func TestGenerate_unexpectedShapeKeepsRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"plain answer"}`))
	}))
	defer srv.Close()

	p, _ := NewOpenAIProvider("k", WithBaseURL(srv.URL))
	c, err := p.Generate(context.Background(), "q")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if c.Content != "" || c.Raw != `{"result":"plain answer"}` {
		t.Errorf("completion = %+v", c)
	}
}

func TestGenerate_nonJSONBodyKeepsRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("just text"))
	}))
	defer srv.Close()

	p, _ := NewOpenAIProvider("k", WithBaseURL(srv.URL))
	c, err := p.Generate(context.Background(), "q")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if c.Raw != "just text" || c.Content != "" {
		t.Errorf("completion = %+v", c)
	}
}

func TestGenerate_statusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, _ := NewOpenAIProvider("k", WithBaseURL(srv.URL))
	_, err := p.Generate(context.Background(), "q")
	if err == nil || !strings.Contains(err.Error(), "status 401") {
		t.Errorf("err = %v", err)
	}
}

func TestGenerate_apiErrorObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"context length exceeded"}}`))
	}))
	defer srv.Close()

	p, _ := NewOpenAIProvider("k", WithBaseURL(srv.URL))
	_, err := p.Generate(context.Background(), "q")
	if err == nil || !strings.Contains(err.Error(), "context length exceeded") {
		t.Errorf("err = %v", err)
	}
}

func TestProviderFunc(t *testing.T) {
	p := ProviderFunc(func(ctx context.Context, prompt string) (*Completion, error) {
		return &Completion{Content: strings.ToUpper(prompt)}, nil
	})
	c, err := p.Generate(context.Background(), "abc")
	if err != nil || c.Content != "ABC" {
		t.Errorf("got %+v, %v", c, err)
	}
}
