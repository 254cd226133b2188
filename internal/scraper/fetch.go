package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxFetchBytes bounds adapter response bodies. Availability feeds are a few
// hundred KB at most; anything larger is a misbehaving endpoint.
const maxFetchBytes = 8 << 20

// HTTPStatusError indicates the server responded, but with an unexpected
// HTTP status code. This is a non-network failure.
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("scraper: unexpected status %d from %s", e.StatusCode, e.URL)
}

// fetcher is the shared HTTP front end for all non-browser adapters.
type fetcher struct {
	client    *http.Client
	userAgent string
}

// get fetches the URL with optional extra headers and returns the body.
func (f *fetcher) get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("scraper: build request %s: %w", url, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scraper: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("scraper: read body %s: %w", url, err)
	}
	return body, nil
}

// getJSON fetches the URL and unmarshals the JSON body into out.
func (f *fetcher) getJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	body, err := f.get(ctx, url, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("scraper: decode %s: %w", url, err)
	}
	return nil
}
