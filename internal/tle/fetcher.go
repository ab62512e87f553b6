package tle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// MaxCatalogBytes bounds the size of a catalog read from the network or
// from an upload.
const MaxCatalogBytes = 10 << 20

// ErrNotModified is returned by Fetch when the source reports that the
// catalog has not changed since the previous successful fetch.
var ErrNotModified = errors.New("catalog not modified")

// Fetcher downloads catalog text from one URL. It remembers the ETag and
// Last-Modified validators of the last download and sends them as
// conditional headers, so polling an unchanged source costs a 304.
type Fetcher struct {
	sourceURL  string
	httpClient *http.Client

	mu           sync.Mutex
	etag         string
	lastModified string
}

// NewFetcher returns a Fetcher for sourceURL.
func NewFetcher(sourceURL string) *Fetcher {
	return &Fetcher{
		sourceURL:  sourceURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SourceURL returns the configured URL.
func (f *Fetcher) SourceURL() string { return f.sourceURL }

// Fetch downloads the catalog. It returns ErrNotModified on a 304 and an
// error for any other non-200 status or a body over MaxCatalogBytes.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	f.mu.Lock()
	if f.etag != "" {
		req.Header.Set("If-None-Match", f.etag)
	}
	if f.lastModified != "" {
		req.Header.Set("If-Modified-Since", f.lastModified)
	}
	f.mu.Unlock()

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", f.sourceURL, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotModified:
		return nil, ErrNotModified
	default:
		return nil, fmt.Errorf("fetching %s: status %d", f.sourceURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxCatalogBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.sourceURL, err)
	}
	if len(body) > MaxCatalogBytes {
		return nil, fmt.Errorf("catalog from %s exceeds %d bytes", f.sourceURL, MaxCatalogBytes)
	}

	f.mu.Lock()
	f.etag = resp.Header.Get("ETag")
	f.lastModified = resp.Header.Get("Last-Modified")
	f.mu.Unlock()

	return body, nil
}
