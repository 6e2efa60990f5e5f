package harvest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"listing_harvester/internal/fetcher"
)

// mockFetcher serves canned bodies by URL and records every call.
type mockFetcher struct {
	mu      sync.Mutex
	bodies  map[string]string
	fail    map[string]int // remaining failures per URL; -1 fails forever
	calls   []string
	onFetch func(url string)
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{bodies: make(map[string]string), fail: make(map[string]int)}
}

func (m *mockFetcher) Fetch(_ context.Context, rawURL string, _ ...fetcher.Option) (*fetcher.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, rawURL)
	hook := m.onFetch
	n, failing := m.fail[rawURL]
	if failing && n != 0 {
		if n > 0 {
			m.fail[rawURL] = n - 1
		}
		m.mu.Unlock()
		return nil, &fetcher.FetchError{URL: rawURL, Attempts: 1, Err: fmt.Errorf("connection refused")}
	}
	body, ok := m.bodies[rawURL]
	m.mu.Unlock()

	if hook != nil {
		hook(rawURL)
	}
	if !ok {
		resp := &fetcher.Response{URL: rawURL, StatusCode: 404}
		return resp, &fetcher.FetchError{URL: rawURL, Attempts: 1, StatusCode: 404}
	}
	return &fetcher.Response{URL: rawURL, StatusCode: 200, Body: []byte(body), Attempts: 1}, nil
}

func (m *mockFetcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

var testEndpoints = Endpoints{SearchBase: "https://search.test", APIBase: "https://api.test"}

// resultPage renders a search result page with one anchor per href.
func resultPage(hasNext bool, hrefs ...string) string {
	var sb strings.Builder
	sb.WriteString(`<html><body><div class="results">`)
	for _, h := range hrefs {
		fmt.Fprintf(&sb, `<a aria-label="business-link" href="%s">listing</a>`, h)
	}
	sb.WriteString(`</div>`)
	if hasNext {
		sb.WriteString(`<button id="nav-right-arrow">next</button>`)
	}
	sb.WriteString(`</body></html>`)
	return sb.String()
}

func detailPayload(id int, name string) string {
	return fmt.Sprintf(`{"message":"Business has been retrieved","data":{"metadata":{"id":%d,"name":%q,"user":{"name":"Owner %d","email":"owner%d@example.com"},"email":"info@example.com","phone":"+1 555 0100","mobile":null,"website":"https://example.com","address":"1 Main St","city":"Springfield","zipcode":"12345","claimed":1,"claim_verified":"0","country_code":"US","facebook":"","instagram":null,"linkedin":"","tiktok":"","twitter":"","link":"/%s"}}}`,
		id, name, id, id, strings.ToLower(strings.ReplaceAll(name, " ", "-")))
}
