package util

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ppiankov/citeguard/internal/model"
)

// NewHTTPClient builds the client shared by the upstream API clients and
// the document fetcher: proxy-aware, bounded timeout and at most 3 redirects.
func NewHTTPClient(cfg model.HTTPConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}
}

// ReadLimited reads at most limit bytes of r; limit <= 0 means 5MB
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = 5_000_000
	}
	return io.ReadAll(io.LimitReader(r, limit))
}
