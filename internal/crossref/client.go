// Package crossref is a client for the Crossref REST API, the canonical
// metadata index consulted for every candidate citation.
package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/citeguard/internal/cache"
	"github.com/ppiankov/citeguard/internal/model"
	"github.com/ppiankov/citeguard/internal/retry"
	"github.com/ppiankov/citeguard/internal/util"
	"github.com/ppiankov/citeguard/internal/worker"
)

const serviceName = "crossref"

// Options configures a Client
type Options struct {
	BaseURL      string
	Mailto       string
	UserAgent    string
	MaxBodyBytes int64
	HTTPClient   *http.Client
	Limiter      *worker.Limiter
	Cache        cache.Cache
	CacheTTL     time.Duration
}

// Client looks up works by DOI or bibliographic query
type Client struct {
	baseURL    string
	mailto     string
	userAgent  string
	maxBytes   int64
	httpClient *http.Client
	limiter    *worker.Limiter
	cache      cache.Cache
	cacheTTL   time.Duration
}

// work is the subset of a Crossref work record we read
type work struct {
	DOI     string   `json:"DOI"`
	Title   []string `json:"title"`
	URL     string   `json:"URL"`
	Created struct {
		DateParts [][]int `json:"date-parts"`
		DateTime  string  `json:"date-time"`
	} `json:"created"`
}

type workResponse struct {
	Status  string `json:"status"`
	Message work   `json:"message"`
}

type searchResponse struct {
	Status  string `json:"status"`
	Message struct {
		Items []work `json:"items"`
	} `json:"message"`
}

// cachedLookup records misses as well as hits
type cachedLookup struct {
	Found  bool                  `json:"found"`
	Signal *model.MetadataSignal `json:"signal,omitempty"`
}

// New creates a Crossref client
func New(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.crossref.org"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = util.NewHTTPClient(model.HTTPConfig{})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		mailto:     opts.Mailto,
		userAgent:  opts.UserAgent,
		maxBytes:   opts.MaxBodyBytes,
		httpClient: httpClient,
		limiter:    opts.Limiter,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
	}
}

// LookupDOI fetches the work registered under doi. An unknown DOI yields
// (nil, nil); only transport and upstream failures are errors.
func (c *Client) LookupDOI(ctx context.Context, doi string) (*model.MetadataSignal, error) {
	key := cache.Key("crossref-doi", doi)
	if hit, ok := c.cached(key); ok {
		return hit, nil
	}

	endpoint := c.baseURL + "/works/" + url.PathEscape(doi)
	var resp workResponse
	found, err := c.get(ctx, endpoint, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("lookup DOI %s: %w", doi, err)
	}

	var signal *model.MetadataSignal
	if found {
		signal = toSignal(resp.Message)
	}
	c.store(key, signal)
	return signal, nil
}

// Search runs a bibliographic query and returns the top-ranked work only
func (c *Client) Search(ctx context.Context, query string) (*model.MetadataSignal, error) {
	key := cache.Key("crossref-search", query)
	if hit, ok := c.cached(key); ok {
		return hit, nil
	}

	params := url.Values{}
	params.Set("query.bibliographic", query)
	params.Set("rows", "1")

	var resp searchResponse
	if _, err := c.get(ctx, c.baseURL+"/works", params, &resp); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	var signal *model.MetadataSignal
	if len(resp.Message.Items) > 0 {
		signal = toSignal(resp.Message.Items[0])
	}
	c.store(key, signal)
	return signal, nil
}

// get issues a GET and decodes the body into out. A 404 reports found=false.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) (bool, error) {
	if c.mailto != "" {
		if params == nil {
			params = url.Values{}
		}
		params.Set("mailto", c.mailto)
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	if err := c.limiter.Wait(ctx, endpoint); err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := util.ReadLimited(resp.Body, c.maxBytes)
	if err != nil {
		return false, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, &retry.StatusError{
			Service:    serviceName,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(truncate(string(body), 200)),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("parse response: %w", err)
	}
	return true, nil
}

func (c *Client) cached(key string) (*model.MetadataSignal, bool) {
	var entry cachedLookup
	if !cache.GetJSON(c.cache, key, &entry) {
		return nil, false
	}
	if !entry.Found {
		return nil, true
	}
	return entry.Signal, true
}

func (c *Client) store(key string, signal *model.MetadataSignal) {
	_ = cache.SetJSON(c.cache, key, cachedLookup{Found: signal != nil, Signal: signal}, c.cacheTTL)
}

// toSignal coerces a work record; records without a title are unusable
func toSignal(w work) *model.MetadataSignal {
	title := ""
	if len(w.Title) > 0 {
		title = strings.TrimSpace(w.Title[0])
	}
	if title == "" {
		return nil
	}

	return &model.MetadataSignal{
		Title:         title,
		DOI:           w.DOI,
		URL:           w.URL,
		PublishedDate: createdDate(w),
	}
}

func createdDate(w work) string {
	if w.Created.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, w.Created.DateTime); err == nil {
			return t.Format("2006-01-02")
		}
		return w.Created.DateTime
	}
	if len(w.Created.DateParts) == 0 {
		return ""
	}
	parts := w.Created.DateParts[0]
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%04d", parts[0])
	case 2:
		return fmt.Sprintf("%04d-%02d", parts[0], parts[1])
	default:
		return fmt.Sprintf("%04d-%02d-%02d", parts[0], parts[1], parts[2])
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
