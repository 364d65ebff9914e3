package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/citeguard/internal/model"
)

func TestRobotsChecker(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		hits.Add(1)
		_, _ = w.Write([]byte("User-agent: citeguard\nDisallow: /private\nCrawl-delay: 2\n\nUser-agent: *\nDisallow: /\n"))
	}))
	defer server.Close()

	checker := NewRobotsChecker("citeguard/0.1 (+https://github.com/ppiankov/citeguard)", server.Client())
	ctx := context.Background()

	allowed, delay, err := checker.CanFetch(ctx, server.URL+"/papers/1")
	if err != nil || !allowed {
		t.Errorf("expected /papers/1 to be allowed, got %v, %v", allowed, err)
	}
	if delay != 2*time.Second {
		t.Errorf("expected 2s crawl delay, got %v", delay)
	}

	if allowed, _, _ := checker.CanFetch(ctx, server.URL+"/private/x"); allowed {
		t.Error("expected /private/x to be disallowed")
	}
	if hits.Load() != 1 {
		t.Errorf("expected robots.txt to be fetched once, got %d", hits.Load())
	}

	checker.Clear()
	_, _, _ = checker.CanFetch(ctx, server.URL+"/")
	if hits.Load() != 2 {
		t.Errorf("expected refetch after Clear, got %d", hits.Load())
	}
}

func TestRobotsChecker_MissingRobots(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	checker := NewRobotsChecker("citeguard/0.1", server.Client())
	if allowed, _, err := checker.CanFetch(context.Background(), server.URL+"/anything"); !allowed || err != nil {
		t.Errorf("expected allow when robots.txt is missing, got %v, %v", allowed, err)
	}
}

func TestRobotsChecker_Unreachable(t *testing.T) {
	checker := NewRobotsChecker("citeguard/0.1", &http.Client{Timeout: 100 * time.Millisecond})
	if allowed, _, err := checker.CanFetch(context.Background(), "http://127.0.0.1:1/doc"); !allowed || err != nil {
		t.Errorf("expected allow when robots.txt is unreachable, got %v, %v", allowed, err)
	}
}

func TestNormalizeUserAgent(t *testing.T) {
	tests := map[string]string{
		"citeguard/0.1 (+https://x)": "citeguard",
		"Bot":                        "Bot",
		"":                           "",
	}
	for in, want := range tests {
		if got := NormalizeUserAgent(in); got != want {
			t.Errorf("NormalizeUserAgent(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewProxyFunc(t *testing.T) {
	fn := NewProxyFunc("http://proxy:8080", "http://secure-proxy:8443", "internal.example.com")

	httpsReq := &http.Request{URL: &url.URL{Scheme: "https", Host: "api.crossref.org"}}
	if u, err := fn(httpsReq); err != nil || u == nil || u.Host != "secure-proxy:8443" {
		t.Errorf("expected HTTPS proxy, got %v, %v", u, err)
	}

	httpReq := &http.Request{URL: &url.URL{Scheme: "http", Host: "ollama.lan:11434"}}
	if u, err := fn(httpReq); err != nil || u == nil || u.Host != "proxy:8080" {
		t.Errorf("expected HTTP proxy, got %v, %v", u, err)
	}

	bypass := &http.Request{URL: &url.URL{Scheme: "https", Host: "internal.example.com"}}
	if u, err := fn(bypass); err != nil || u != nil {
		t.Errorf("expected direct connection for no_proxy host, got %v, %v", u, err)
	}

	httpOnly := NewProxyFunc("http://proxy:8080", "", "")
	if u, err := httpOnly(httpsReq); err != nil || u == nil || u.Host != "proxy:8080" {
		t.Errorf("expected HTTPS to fall back to the HTTP proxy, got %v, %v", u, err)
	}
}

func TestNewHTTPClient_RedirectLimit(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer server.Close()

	client := NewHTTPClient(model.HTTPConfig{Timeout: 5 * time.Second})
	_, err := client.Get(server.URL + "/")
	if err == nil || !strings.Contains(err.Error(), "stopped after 3 redirects") {
		t.Errorf("expected redirect limit error, got %v", err)
	}
}

func TestReadLimited(t *testing.T) {
	data, err := ReadLimited(strings.NewReader("abcdef"), 3)
	if err != nil || string(data) != "abc" {
		t.Errorf("ReadLimited = %q, %v", data, err)
	}
}
