package origin_fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPFetcher downloads icons over HTTP. Each fetch is bounded by the
// client timeout; any non-success outcome is returned as an error for the
// caller to classify.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

func New(timeout time.Duration, maxBytes int64) *HTTPFetcher {
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("origin returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, "", fmt.Errorf("response exceeds %d bytes", f.maxBytes)
	}

	return body, contentTypeFor(resp, body), nil
}

// contentTypeFor prefers the origin's Content-Type header and falls back to
// sniffing when the header is absent or generic.
func contentTypeFor(resp *http.Response, body []byte) string {
	ct := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if ct == "" || ct == "application/octet-stream" {
		return http.DetectContentType(body)
	}
	return ct
}
