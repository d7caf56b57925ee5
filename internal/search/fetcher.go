package search

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sadewadee/dynamic-search/internal/domain"
)

// FetchResponse is what the remote search endpoint returns for one fetch.
type FetchResponse struct {
	Businesses []domain.Business `json:"businesses"`
	TotalCount int               `json:"total_count"`

	// Bytes is the observed response size, fed back into the governor's
	// usage accounting and throughput estimation.
	Bytes int64 `json:"-"`
}

// Fetcher executes the remote business search. Implementations must respect
// the context deadline; failures surface as errors, never sentinels.
type Fetcher interface {
	Fetch(ctx context.Context, criteria *domain.SearchCriteria) (*FetchResponse, error)
}

// HTTPFetcher calls a remote search endpoint over HTTP.
type HTTPFetcher struct {
	baseURL    string
	apiToken   string
	maxBytes   int64
	strategy   func() domain.BandwidthStrategy
	httpClient *http.Client
}

// NewHTTPFetcher creates a fetcher against the given base URL. maxBytes
// caps the response read; zero means no cap.
func NewHTTPFetcher(baseURL, apiToken string, maxBytes int64) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL:  baseURL,
		apiToken: apiToken,
		maxBytes: maxBytes,
		// Per-request timeouts come from the context; the client-level
		// timeout is only a safety net.
		httpClient: &http.Client{},
	}
}

// UseStrategy consults the given provider on every fetch for compression and
// the response size cap of the network profile current at that moment.
func (f *HTTPFetcher) UseStrategy(provider func() domain.BandwidthStrategy) {
	f.strategy = provider
}

// Fetch POSTs the criteria and decodes the business list.
func (f *HTTPFetcher) Fetch(ctx context.Context, criteria *domain.SearchCriteria) (*FetchResponse, error) {
	payload, err := json.Marshal(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal criteria: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiToken)
	}

	maxBytes := f.maxBytes
	if f.strategy != nil {
		strategy := f.strategy()
		if strategy.EnableCompression {
			req.Header.Set("Accept-Encoding", "gzip")
		}
		if strategy.MaxResponseBytes > 0 && (maxBytes == 0 || strategy.MaxResponseBytes < maxBytes) {
			maxBytes = strategy.MaxResponseBytes
		}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	// The cap and the usage accounting are both on wire bytes, before any
	// decompression.
	wire := &countingReader{r: resp.Body}
	var reader io.Reader = wire
	if maxBytes > 0 {
		reader = io.LimitReader(wire, maxBytes)
	}

	// Explicit Accept-Encoding disables the transport's transparent
	// decompression, so gzip is handled here.
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip response: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search endpoint returned %d", resp.StatusCode)
	}

	var out FetchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	out.Bytes = wire.n
	if out.TotalCount == 0 {
		out.TotalCount = len(out.Businesses)
	}

	return &out, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
