package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/ppiankov/citeguard/internal/extract"
	"github.com/ppiankov/citeguard/internal/model"
	"github.com/ppiankov/citeguard/internal/retry"
	"github.com/ppiankov/citeguard/internal/util"
	"github.com/ppiankov/citeguard/internal/worker"
)

// ErrDisallowed is returned when robots.txt forbids fetching a document
var ErrDisallowed = errors.New("fetch disallowed by robots.txt")

// Fetcher loads source documents from disk or over HTTP
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker // nil when robots.txt is ignored
	limiter    *worker.Limiter
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(cfg model.HTTPConfig, limiter *worker.Limiter) *Fetcher {
	client := util.NewHTTPClient(cfg)

	f := &Fetcher{
		httpClient: client,
		userAgent:  cfg.UserAgent,
		maxBytes:   cfg.MaxBodyBytes,
		limiter:    limiter,
	}
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(cfg.UserAgent, client)
	}
	return f
}

// FetchResult contains the fetched document and metadata
type FetchResult struct {
	Content     string
	ContentType string
	StatusCode  int
	FinalURL    string
}

// Fetch retrieves a document from the given URL
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if f.robots != nil {
		allowed, crawlDelay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("robots: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
		}
		if crawlDelay > 0 && f.limiter != nil {
			_ = f.limiter.SetHostRate(rawURL, 1/crawlDelay.Seconds(), 1)
		}
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &retry.StatusError{Service: "fetch", StatusCode: resp.StatusCode}
	}

	body, err := util.ReadLimited(resp.Body, f.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &FetchResult{
		Content:     string(body),
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

// IsURL reports whether source names a remote document
func IsURL(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Load reads a source (file path or URL) and converts it to plain text
func (f *Fetcher) Load(ctx context.Context, source string) (extract.Document, error) {
	var content, contentType, baseURL string

	if IsURL(source) {
		result, err := f.Fetch(ctx, source)
		if err != nil {
			return extract.Document{}, err
		}
		content, contentType, baseURL = result.Content, result.ContentType, result.FinalURL
	} else {
		data, err := os.ReadFile(source)
		if err != nil {
			return extract.Document{}, fmt.Errorf("read %s: %w", source, err)
		}
		content = string(data)
		if strings.HasSuffix(strings.ToLower(source), ".html") || strings.HasSuffix(strings.ToLower(source), ".htm") {
			contentType = "text/html"
		}
	}

	if extract.LooksLikeHTML(content, contentType) {
		doc, err := extract.ParseHTML(content)
		if err != nil {
			return extract.Document{}, fmt.Errorf("parse HTML: %w", err)
		}
		if doc.Links, err = extract.Links(content, baseURL); err != nil {
			return extract.Document{}, fmt.Errorf("collect links: %w", err)
		}
		return doc, nil
	}
	return extract.PlainText(content), nil
}
