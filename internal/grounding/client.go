// Package grounding confirms that a cited work exists on the open web using
// Gemini's Google Search grounding.
package grounding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/citeguard/internal/cache"
	"github.com/ppiankov/citeguard/internal/model"
	"github.com/ppiankov/citeguard/internal/retry"
	"github.com/ppiankov/citeguard/internal/util"
	"github.com/ppiankov/citeguard/internal/worker"
)

const serviceName = "grounding"

// Snippet is attached to every positive grounding signal
const Snippet = "Verified via Google Search Grounding."

// Options configures a Client
type Options struct {
	BaseURL      string
	Model        string
	APIKey       string
	MaxBodyBytes int64
	HTTPClient   *http.Client
	Limiter      *worker.Limiter
	Cache        cache.Cache
	CacheTTL     time.Duration
}

// Client queries the grounding service
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	maxBytes   int64
	httpClient *http.Client
	limiter    *worker.Limiter
	cache      cache.Cache
	cacheTTL   time.Duration
}

type generateRequest struct {
	Contents []content `json:"contents"`
	Tools    []tool    `json:"tools"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text,omitempty"`
}

type tool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		GroundingMetadata *struct {
			GroundingChunks []struct {
				Web *struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// New creates a grounding client
func New(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	modelName := opts.Model
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = util.NewHTTPClient(model.HTTPConfig{})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      modelName,
		apiKey:     opts.APIKey,
		maxBytes:   opts.MaxBodyBytes,
		httpClient: httpClient,
		limiter:    opts.Limiter,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
	}
}

// Enabled reports whether an API key is configured
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Query builds the grounding prompt for a candidate
func Query(cand model.CandidateCitation) string {
	return fmt.Sprintf("Find the academic publication titled %q by %s (%s). Does it exist?",
		cand.Title, cand.Author, cand.Year)
}

// Ground asks the service about query and reports the first evidence chunk
// carrying a web URI. Without an API key it returns an unverified signal
// and makes no request.
func (c *Client) Ground(ctx context.Context, query string) (model.GroundingSignal, error) {
	if !c.Enabled() {
		return model.GroundingSignal{}, nil
	}

	key := cache.Key("grounding", c.model, query)
	var signal model.GroundingSignal
	if cache.GetJSON(c.cache, key, &signal) {
		return signal, nil
	}

	resp, err := c.generate(ctx, query)
	if err != nil {
		return model.GroundingSignal{}, err
	}

	signal = firstWebChunk(resp)
	_ = cache.SetJSON(c.cache, key, signal, c.cacheTTL)
	return signal, nil
}

func (c *Client) generate(ctx context.Context, query string) (*generateResponse, error) {
	reqBody := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: query}}}},
		Tools:    []tool{{GoogleSearch: &struct{}{}}},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	if err := c.limiter.Wait(ctx, endpoint); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("grounding request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := util.ReadLimited(resp.Body, c.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Status + ": " + apiErr.Error.Message
		}
		return nil, &retry.StatusError{Service: serviceName, StatusCode: resp.StatusCode, Message: msg}
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &out, nil
}

func firstWebChunk(resp *generateResponse) model.GroundingSignal {
	for _, cand := range resp.Candidates {
		if cand.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			return model.GroundingSignal{
				Verified: true,
				Title:    chunk.Web.Title,
				URL:      chunk.Web.URI,
				Snippet:  Snippet,
			}
		}
	}
	return model.GroundingSignal{}
}
