package fetcher

import (
	"math/rand"
	"net/http"
	"sync"
)

// Header profiles captured from real browsers. The values are configuration,
// not derived at runtime.
var headerProfiles = map[string]map[string]string{
	"brave": {
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.6",
		"Referer":                   "https://google.com/",
		"Cache-Control":             "max-age=0",
		"Sec-Ch-Ua":                 `"Chromium";v="122", "Not(A:Brand";v="24", "Brave";v="122"`,
		"Sec-Ch-Ua-Mobile":          "?0",
		"Sec-Ch-Ua-Platform":        `"Windows"`,
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "same-origin",
		"Sec-Fetch-User":            "?1",
		"Sec-Gpc":                   "1",
		"Upgrade-Insecure-Requests": "1",
		"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	},
	"firefox": {
		"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:124.0) Gecko/20100101 Firefox/124.0",
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.5",
		"Referer":                   "https://www.google.com/",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "cross-site",
	},
	"chrome": {
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7",
		"Accept-Language":           "en-US,en;q=0.9",
		"Referer":                   "https://www.google.com/",
		"Sec-Ch-Ua":                 `"Chromium";v="122", "Not(A:Brand";v="24", "Google Chrome";v="122"`,
		"Sec-Ch-Ua-Mobile":          "?0",
		"Sec-Ch-Ua-Platform":        `"Windows"`,
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "cross-site",
		"Sec-Fetch-User":            "?1",
		"Upgrade-Insecure-Requests": "1",
		"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	},
}

var referrers = []string{
	"https://duckduckgo.com/", "https://www.google.com/", "https://www.bing.com/", "https://yandex.com/",
	"https://search.brave.com/", "https://www.ecosia.org/", "https://searx.thegpm.org/",
	"https://www.wolframalpha.com/",
}

var profileOrder = []string{"brave", "firefox", "chrome"}

// HeaderProvider yields the headers for one outgoing request.
type HeaderProvider interface {
	Headers() http.Header
}

type fixedHeaders struct {
	h http.Header
}

func (f fixedHeaders) Headers() http.Header {
	return f.h.Clone()
}

type randomHeaders struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// Headers picks a random profile and referer per request.
func (r *randomHeaders) Headers() http.Header {
	r.mu.Lock()
	name := profileOrder[r.rng.Intn(len(profileOrder))]
	referer := referrers[r.rng.Intn(len(referrers))]
	r.mu.Unlock()

	h := toHeader(headerProfiles[name])
	h.Set("Referer", referer)
	return h
}

// NewHeaderProvider returns the provider for a profile name: "brave",
// "firefox", "chrome" or "random". Unknown names fall back to "brave".
func NewHeaderProvider(profile string, seed int64) HeaderProvider {
	if profile == "random" {
		return &randomHeaders{rng: rand.New(rand.NewSource(seed))}
	}
	values, ok := headerProfiles[profile]
	if !ok {
		values = headerProfiles["brave"]
	}
	return fixedHeaders{h: toHeader(values)}
}

func toHeader(values map[string]string) http.Header {
	h := make(http.Header, len(values))
	for k, v := range values {
		h.Set(k, v)
	}
	return h
}
