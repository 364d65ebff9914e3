package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/citeguard/internal/model"
	"github.com/ppiankov/citeguard/internal/retry"
	"github.com/ppiankov/citeguard/internal/worker"
)

func testHTTPConfig(respectRobots bool) model.HTTPConfig {
	return model.HTTPConfig{
		Timeout:       5 * time.Second,
		UserAgent:     "citeguard-test/1.0",
		MaxBodyBytes:  1 << 20,
		RespectRobots: respectRobots,
	}
}

func TestFetch_Success(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, "<html><body>OK</body></html>")
	}))
	defer server.Close()

	fetcher := NewFetcher(testHTTPConfig(false), nil)
	result, err := fetcher.Fetch(context.Background(), server.URL+"/paper")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Content != "<html><body>OK</body></html>" || result.ContentType != "text/html" {
		t.Errorf("Unexpected result: %+v", result)
	}
	if gotUA != "citeguard-test/1.0" {
		t.Errorf("Expected User-Agent header, got %q", gotUA)
	}
}

func TestFetch_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	fetcher := NewFetcher(testHTTPConfig(false), nil)
	_, err := fetcher.Fetch(context.Background(), server.URL)

	var statusErr *retry.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Expected a 503 StatusError, got %v", err)
	}
	if retry.Classify(err) != retry.ClassOverload {
		t.Errorf("Expected 503 to be retryable, got %s", retry.Classify(err))
	}
}

func TestFetch_RobotsDisallowed(t *testing.T) {
	var pageHits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: citeguard-test\nDisallow: /private\n")
			return
		}
		pageHits++
		_, _ = fmt.Fprint(w, "page")
	}))
	defer server.Close()

	fetcher := NewFetcher(testHTTPConfig(true), worker.NewLimiter(0, 0))

	_, err := fetcher.Fetch(context.Background(), server.URL+"/private/paper")
	if !errors.Is(err, ErrDisallowed) {
		t.Errorf("Expected ErrDisallowed, got %v", err)
	}
	if pageHits != 0 {
		t.Errorf("Disallowed page must not be requested, got %d hits", pageHits)
	}

	if _, err := fetcher.Fetch(context.Background(), server.URL+"/public"); err != nil {
		t.Errorf("Expected /public to be fetched, got %v", err)
	}
}

func TestLoad_PlainTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	content := "References\n\n\n1. Vaswani et al. (2017).   Attention Is All You Need.\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := NewFetcher(testHTTPConfig(false), nil).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Text != "References\n\n1. Vaswani et al. (2017). Attention Is All You Need." {
		t.Errorf("Unexpected text %q", doc.Text)
	}
}

func TestLoad_URL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, "<html><head><title>Essay</title></head><body><p>See <a href=\"https://doi.org/10.1000/smith2020\">Smith (2020)</a>.</p><p><a href=\"/about\">About</a></p></body></html>")
	}))
	defer server.Close()

	doc, err := NewFetcher(testHTTPConfig(false), nil).Load(context.Background(), server.URL+"/essay")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Title != "Essay" || !strings.Contains(doc.Text, "See Smith (2020)") {
		t.Errorf("Unexpected document %+v", doc)
	}
	if len(doc.Links) != 2 || doc.Links[0].DOI() != "10.1000/smith2020" {
		t.Fatalf("Unexpected links %+v", doc.Links)
	}
	if doc.Links[1].URL != server.URL+"/about" {
		t.Errorf("Relative link should resolve against the fetched URL, got %q", doc.Links[1].URL)
	}
}

func TestIsURL(t *testing.T) {
	tests := map[string]bool{
		"https://example.com/a": true,
		"HTTP://EXAMPLE.COM":    true,
		"paper.txt":             false,
		"/tmp/http-notes.txt":   false,
	}
	for in, want := range tests {
		if got := IsURL(in); got != want {
			t.Errorf("IsURL(%q) = %v, want %v", in, got, want)
		}
	}
}
