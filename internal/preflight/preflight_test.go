package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"podharvest/internal/config"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()

	result := CheckDirectoryAccess("Data directory", dir)
	if !result.Passed {
		t.Fatalf("expected writable temp dir to pass, got %#v", result)
	}

	missing := CheckDirectoryAccess("Data directory", filepath.Join(dir, "nope"))
	if missing.Passed {
		t.Fatalf("expected missing directory to fail")
	}

	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	notDir := CheckDirectoryAccess("Data directory", file)
	if notDir.Passed {
		t.Fatalf("expected regular file to fail directory check")
	}
}

func TestCheckNtfy(t *testing.T) {
	var polled string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polled = r.URL.String()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := CheckNtfy(context.Background(), server.URL+"/harvest")
	if !result.Passed {
		t.Fatalf("expected reachable topic to pass, got %#v", result)
	}
	if polled != "/harvest/json?poll=1" {
		t.Fatalf("expected poll request, got %q", polled)
	}
}

func TestCheckNtfyAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	result := CheckNtfy(context.Background(), server.URL+"/harvest")
	if result.Passed {
		t.Fatalf("expected forbidden topic to fail")
	}
	if result.Detail != "auth failed (topic requires credentials)" {
		t.Fatalf("unexpected detail: %q", result.Detail)
	}
}

func TestCheckLLMMissingKey(t *testing.T) {
	result := CheckLLM(context.Background(), "Summarization LLM", config.LLMConfig{})
	if result.Passed {
		t.Fatalf("expected missing key to fail")
	}
	if result.Detail != "API key missing" {
		t.Fatalf("unexpected detail: %q", result.Detail)
	}
}

func TestCheckLLMReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"OK"}}]}`))
	}))
	defer server.Close()

	result := CheckLLM(context.Background(), "Summarization LLM", config.LLMConfig{
		APIKey:  "key",
		BaseURL: server.URL,
		Model:   "test-model",
	})
	if !result.Passed {
		t.Fatalf("expected healthy endpoint to pass, got %#v", result)
	}
}

func TestRunAllGatesOptionalChecks(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Notifications.NtfyTopic = ""
	cfg.Channels = []config.Channel{{Name: "news", URL: "https://example.com", CutoffDate: "2024-01-01"}}

	results := RunAll(context.Background(), &cfg)
	if len(results) != 2 {
		t.Fatalf("expected only directory checks, got %d results", len(results))
	}
	for _, result := range results {
		if !result.Passed {
			t.Fatalf("expected directory checks to pass, got %#v", result)
		}
	}
}
