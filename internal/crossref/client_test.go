package crossref

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/citeguard/internal/cache"
	"github.com/ppiankov/citeguard/internal/retry"
)

const attentionWork = `{
  "status": "ok",
  "message": {
    "DOI": "10.48550/arXiv.1706.03762",
    "title": ["Attention Is All You Need"],
    "URL": "https://doi.org/10.48550/arXiv.1706.03762",
    "created": {"date-parts": [[2017, 6, 12]], "date-time": "2017-06-12T17:57:34Z"}
  }
}`

func TestLookupDOI(t *testing.T) {
	var gotPath, gotMailto, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMailto = r.URL.Query().Get("mailto")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(attentionWork))
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL, Mailto: "ops@example.com", UserAgent: "citeguard-test"})
	signal, err := client.LookupDOI(context.Background(), "10.48550/arXiv.1706.03762")
	if err != nil {
		t.Fatalf("LookupDOI failed: %v", err)
	}

	if gotPath != "/works/10.48550/arXiv.1706.03762" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotMailto != "ops@example.com" || gotUA != "citeguard-test" {
		t.Errorf("expected polite-pool parameters, got mailto=%q ua=%q", gotMailto, gotUA)
	}
	if signal == nil {
		t.Fatal("expected a signal")
	}
	if signal.Title != "Attention Is All You Need" {
		t.Errorf("unexpected title %q", signal.Title)
	}
	if signal.PublishedDate != "2017-06-12" {
		t.Errorf("unexpected date %q", signal.PublishedDate)
	}
	if signal.URL != "https://doi.org/10.48550/arXiv.1706.03762" {
		t.Errorf("unexpected URL %q", signal.URL)
	}
}

func TestLookupDOI_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Resource not found.", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL})
	signal, err := client.LookupDOI(context.Background(), "10.9999/missing")
	if err != nil {
		t.Fatalf("404 should not be an error: %v", err)
	}
	if signal != nil {
		t.Errorf("expected no signal, got %+v", signal)
	}
}

func TestSearch(t *testing.T) {
	var gotQuery, gotRows string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/works" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.Query().Get("query.bibliographic")
		gotRows = r.URL.Query().Get("rows")
		_, _ = w.Write([]byte(`{"status":"ok","message":{"items":[
			{"DOI":"10.1000/top","title":["Top Result"],"created":{"date-parts":[[2020,3]]}},
			{"DOI":"10.1000/second","title":["Second Result"]}
		]}}`))
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL})
	signal, err := client.Search(context.Background(), "Top Result Smith")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if gotQuery != "Top Result Smith" || gotRows != "1" {
		t.Errorf("unexpected query=%q rows=%q", gotQuery, gotRows)
	}
	if signal == nil || signal.DOI != "10.1000/top" {
		t.Fatalf("expected the top-ranked item, got %+v", signal)
	}
	if signal.PublishedDate != "2020-03" {
		t.Errorf("unexpected date %q", signal.PublishedDate)
	}
	if signal.URL != "" {
		t.Errorf("expected empty URL, got %q", signal.URL)
	}
}

func TestSearch_NoItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","message":{"items":[]}}`))
	}))
	defer server.Close()

	signal, err := New(Options{BaseURL: server.URL}).Search(context.Background(), "nothing")
	if err != nil || signal != nil {
		t.Errorf("expected (nil, nil), got %+v, %v", signal, err)
	}
}

func TestStatusErrors(t *testing.T) {
	for _, code := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusBadRequest} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream says no", code)
		}))

		_, err := New(Options{BaseURL: server.URL}).Search(context.Background(), "q")
		server.Close()

		var statusErr *retry.StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("status %d: expected StatusError, got %v", code, err)
		}
		if statusErr.StatusCode != code || statusErr.Service != "crossref" {
			t.Errorf("unexpected status error %+v", statusErr)
		}
	}
}

func TestMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":`))
	}))
	defer server.Close()

	if _, err := New(Options{BaseURL: server.URL}).LookupDOI(context.Background(), "10.1/x"); err == nil {
		t.Error("expected parse error")
	}
}

func TestCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/works" {
			_, _ = w.Write([]byte(`{"status":"ok","message":{"items":[]}}`))
			return
		}
		_, _ = w.Write([]byte(attentionWork))
	}))
	defer server.Close()

	client := New(Options{
		BaseURL:  server.URL,
		Cache:    cache.NewMemoryCache(time.Hour, time.Hour),
		CacheTTL: time.Hour,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if s, err := client.LookupDOI(ctx, "10.48550/arXiv.1706.03762"); err != nil || s == nil {
			t.Fatalf("lookup %d: %+v, %v", i, s, err)
		}
		// Misses are cached too
		if s, err := client.Search(ctx, "no such paper"); err != nil || s != nil {
			t.Fatalf("search %d: %+v, %v", i, s, err)
		}
	}
	if hits.Load() != 2 {
		t.Errorf("expected 2 upstream requests, got %d", hits.Load())
	}
}

func TestToSignal_UntitledWork(t *testing.T) {
	if toSignal(work{DOI: "10.1/x"}) != nil {
		t.Error("expected untitled work to be discarded")
	}
}
