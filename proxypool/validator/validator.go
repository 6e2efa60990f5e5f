package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"listing_harvester/internal/shared/logger"
	"listing_harvester/proxypool/model"
	"listing_harvester/proxypool/transport"
)

const (
	DefaultProbeURL    = "http://httpbin.org/ip"
	DefaultTimeout     = 10 * time.Second
	DefaultConcurrency = 15
)

// echoResponse is the httpbin.org/ip body.
type echoResponse struct {
	Origin string `json:"origin"`
}

// Validator probes proxy candidates concurrently.
type Validator struct {
	probeURL    string
	timeout     time.Duration
	concurrency int
	headers     http.Header
}

// NewValidator creates a Validator. Zero values fall back to the defaults.
func NewValidator(probeURL string, timeout time.Duration, concurrency int, headers http.Header) *Validator {
	if probeURL == "" {
		probeURL = DefaultProbeURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Validator{
		probeURL:    probeURL,
		timeout:     timeout,
		concurrency: concurrency,
		headers:     headers,
	}
}

// Probe checks every candidate with one GET to the echo URL through that
// candidate. Only candidates answering 2xx within the timeout are returned,
// in input order.
func (v *Validator) Probe(ctx context.Context, candidates []model.ProxyCandidate) []model.LiveProxy {
	l := logger.WithComponent("ProxyPool/Validator")
	if len(candidates) == 0 {
		return nil
	}

	l.Info().Int("count", len(candidates)).Int("concurrency", v.concurrency).Msg("Testing live proxies...")

	var wg sync.WaitGroup
	sem := semaphore.NewWeighted(int64(v.concurrency))
	results := make([]*model.LiveProxy, len(candidates))

	for i, c := range candidates {
		if err := sem.Acquire(ctx, 1); err != nil {
			l.Warn().Err(err).Msg("Probe pass interrupted.")
			break
		}
		wg.Add(1)
		go func(idx int, cand model.ProxyCandidate) {
			defer wg.Done()
			defer sem.Release(1)

			live, err := v.probeOne(ctx, cand)
			if err != nil {
				l.Info().Str("proxy", cand.ID()).Err(err).Msg("Dead proxy.")
				return
			}
			results[idx] = live
		}(i, c)
	}
	wg.Wait()

	live := make([]model.LiveProxy, 0, len(candidates))
	for _, r := range results {
		if r != nil {
			live = append(live, *r)
		}
	}

	l.Info().Int("live", len(live)).Int("dead", len(candidates)-len(live)).Msg("Probe pass finished.")
	return live
}

func (v *Validator) probeOne(ctx context.Context, c model.ProxyCandidate) (*model.LiveProxy, error) {
	l := logger.WithComponent("ProxyPool/Validator")

	t, err := transport.New(c.URL(), v.timeout, nil)
	if err != nil {
		return nil, err
	}
	defer t.CloseIdleConnections()
	client := &http.Client{Transport: t, Timeout: v.timeout}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.probeURL, nil)
	if err != nil {
		return nil, err
	}
	for k, vals := range v.headers {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("received non-successful status code: %d", resp.StatusCode)
	}
	latency := time.Since(start)

	live := model.NewLiveProxy(c, latency, time.Now())
	var echo echoResponse
	if json.Unmarshal(body, &echo) == nil {
		live.ExitIP = echo.Origin
	}
	l.Info().Str("proxy", c.ID()).Str("exit_ip", live.ExitIP).Int64("latency_ms", latency.Milliseconds()).Msg("Alive proxy.")
	return &live, nil
}
