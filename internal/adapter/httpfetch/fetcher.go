// Package httpfetch implements port.Fetcher over net/http.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vertextoedge/image-downloader/internal/domain"
	"github.com/vertextoedge/image-downloader/internal/port"
)

// Config contains optional fetcher configuration
type Config struct {
	// Timeout bounds a whole request including the body. Zero means no
	// timeout beyond the transport defaults.
	Timeout time.Duration

	// UserAgent is sent when non-empty
	UserAgent string

	// MaxBytes limits the response body size. Zero means unlimited.
	MaxBytes int64

	// MaxConnsPerHost caps idle and active connections per host
	MaxConnsPerHost int
}

// Fetcher performs one GET per URL with a shared client
type Fetcher struct {
	client    *http.Client
	blacklist *domain.Blacklist
	userAgent string
	maxBytes  int64
}

// Ensure Fetcher implements port.Fetcher
var _ port.Fetcher = (*Fetcher)(nil)

// New creates a new Fetcher
func New(cfg *Config, blacklist *domain.Blacklist) *Fetcher {
	if cfg == nil {
		cfg = &Config{}
	}
	perHost := cfg.MaxConnsPerHost
	if perHost <= 0 {
		perHost = 8
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 100
	transport.MaxIdleConnsPerHost = perHost
	transport.IdleConnTimeout = 90 * time.Second

	return NewWithClient(&http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}, cfg, blacklist)
}

// NewWithClient creates a Fetcher around an existing client
func NewWithClient(client *http.Client, cfg *Config, blacklist *domain.Blacklist) *Fetcher {
	if cfg == nil {
		cfg = &Config{}
	}
	if blacklist == nil {
		blacklist = domain.NewBlacklist()
	}
	return &Fetcher{
		client:    client,
		blacklist: blacklist,
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBytes,
	}
}

// Fetch issues a single GET for rawURL.
// Non-200 responses and blacklisted URLs produce an empty result. The
// blacklist is checked against both the requested URL and the final URL
// after redirects.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (domain.FetchResult, error) {
	result := domain.FetchResult{URL: rawURL}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return result, fmt.Errorf("failed to create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return result, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	if resp.Request != nil && resp.Request.URL != nil {
		result.FinalURL = resp.Request.URL.String()
	}

	if resp.StatusCode != http.StatusOK {
		drain(resp.Body)
		result.Empty = true
		result.Reason = domain.ReasonStatus
		return result, nil
	}

	if f.blacklist.Contains(rawURL) || f.blacklist.Contains(result.FinalURL) {
		drain(resp.Body)
		result.Empty = true
		result.Reason = domain.ReasonBlacklisted
		return result, nil
	}

	body, err := f.readBody(resp)
	if err != nil {
		return result, err
	}
	result.Payload = body
	return result, nil
}

func (f *Fetcher) readBody(resp *http.Response) ([]byte, error) {
	if f.maxBytes <= 0 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read body: %w", err)
		}
		return body, nil
	}

	if resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("%w: content length %d > %d", domain.ErrPayloadTooLarge, resp.ContentLength, f.maxBytes)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w: limit %d", domain.ErrPayloadTooLarge, f.maxBytes)
	}
	return body, nil
}

// drain lets the transport reuse the connection for small bodies
func drain(r io.Reader) {
	io.Copy(io.Discard, io.LimitReader(r, 64*1024))
}
