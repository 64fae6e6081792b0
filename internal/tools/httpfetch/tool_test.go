package httpfetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestToolFetchesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello from server"))
	}))
	defer srv.Close()

	tool := NewTool(Config{})
	params, _ := json.Marshal(map[string]interface{}{"url": srv.URL})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error result: %s", result.Content)
	}
	if !strings.Contains(result.Content, "hello from server") {
		t.Fatalf("expected body in result, got %s", result.Content)
	}
}

func TestToolTruncatesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 100)))
	}))
	defer srv.Close()

	tool := NewTool(Config{MaxBodyLen: 10})
	params, _ := json.Marshal(map[string]interface{}{"url": srv.URL})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !strings.Contains(result.Content, `"truncated": true`) {
		t.Fatalf("expected truncated result, got %s", result.Content)
	}
}

func TestToolRejectsNonHTTPScheme(t *testing.T) {
	tool := NewTool(Config{})
	params, _ := json.Marshal(map[string]interface{}{"url": "ftp://example.com/file"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for non-http scheme")
	}
}

func TestToolEnforcesHostAllowlist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	tool := NewTool(Config{AllowedHost: []string{"example.com"}})
	params, _ := json.Marshal(map[string]interface{}{"url": srv.URL})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected host allowlist to reject the test server")
	}
}

func TestToolRequiresURL(t *testing.T) {
	tool := NewTool(Config{})
	params, _ := json.Marshal(map[string]interface{}{"url": ""})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for empty url")
	}
}
