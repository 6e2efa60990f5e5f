package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"listing_harvester/internal/shared/logger"
	"listing_harvester/proxypool/model"
	"listing_harvester/proxypool/storage"
)

var ipPortRe = regexp.MustCompile(`\b(\d{1,3}(?:\.\d{1,3}){3})\s*:\s*(\d{2,5})\b`)

// RemoteListSource downloads a public proxy list. Plain-text bodies are
// parsed as a delimited list; HTML bodies are scanned for ip:port pairs.
type RemoteListSource struct {
	url       string
	userAgent string
	timeout   time.Duration
}

// NewRemoteListSource creates a RemoteListSource for listURL.
func NewRemoteListSource(listURL, userAgent string) Source {
	return &RemoteListSource{
		url:       listURL,
		userAgent: userAgent,
		timeout:   20 * time.Second,
	}
}

func (s *RemoteListSource) Name() string {
	return "remote:" + s.url
}

func (s *RemoteListSource) Fetch(ctx context.Context) ([]model.ProxyCandidate, error) {
	l := logger.WithComponent("ProxyPool/Scraper")
	l.Info().Str("url", s.url).Msg("Starting proxy list download...")

	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(s.timeout)

	var proxies []model.ProxyCandidate
	var scrapeErr error

	c.OnResponse(func(r *colly.Response) {
		contentType := strings.ToLower(r.Headers.Get("Content-Type"))
		if strings.Contains(contentType, "html") {
			proxies = extractIPPorts(string(r.Body))
			return
		}
		proxies = storage.ParseCandidates(string(r.Body), "remote")
	})

	c.OnError(func(r *colly.Response, err error) {
		l.Error().Err(err).Int("status_code", r.StatusCode).Str("url", s.url).Msg("Proxy list request failed.")
		scrapeErr = err
	})

	if err := c.Visit(s.url); err != nil && scrapeErr == nil {
		scrapeErr = err
	}
	c.Wait()

	if scrapeErr != nil {
		return nil, fmt.Errorf("proxy list %s: %w", s.url, scrapeErr)
	}

	l.Info().Int("count", len(proxies)).Str("url", s.url).Msg("Proxy list download finished.")
	return proxies, nil
}

func extractIPPorts(body string) []model.ProxyCandidate {
	var out []model.ProxyCandidate
	for _, m := range ipPortRe.FindAllStringSubmatch(body, -1) {
		out = append(out, storage.ParseCandidates(m[1]+":"+m[2], "remote")...)
	}
	return out
}
