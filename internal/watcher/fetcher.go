package watcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
)

// maxBodySize bounds how much of the detection response is read.
const maxBodySize = 256

// Fetcher returns the current public IPv4 address.
type Fetcher interface {
	Fetch(ctx context.Context) (netip.Addr, error)
}

// HTTPFetcher asks a "what is my address" web service. The service must answer
// 200 OK with a dotted-decimal IPv4 literal as the body, optionally surrounded by whitespace.
type HTTPFetcher struct {
	url    string
	client *http.Client
}

// NewHTTPFetcher returns a fetcher for url. A nil client uses http.DefaultClient.
func NewHTTPFetcher(url string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{url: url, client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) (netip.Addr, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	// Some services answer with an HTML page unless asked for plain text.
	req.Header.Set("Accept", "text/plain")

	resp, err := f.client.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("http request returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("reading response body: %w", err)
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(string(body)))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error parsing IP address from response body: %w", err)
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%s is not an IPv4 address", addr)
	}
	return addr, nil
}
