// Package fetcher issues the harvester's HTTP GETs: fixed browser header
// profile, optional proxy rotation, per-call timeout and a bounded retry loop.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"listing_harvester/internal/shared"
	"listing_harvester/internal/shared/logger"
	"listing_harvester/internal/shared/types"
	"listing_harvester/proxypool/model"
	"listing_harvester/proxypool/transport"
)

const (
	DefaultTimeout    = 20 * time.Second
	DefaultMaxRetries = 3

	maxBodyBytes = 8 << 20
	maxBackoff   = 10 * time.Second
)

// ProxyProvider hands out the proxy to use for the next request.
type ProxyProvider interface {
	Next() (model.LiveProxy, error)
}

// Response is a fully read HTTP response.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
	Attempts   int
	Proxy      string // redacted proxy URL, empty for direct requests
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// FetchError is returned once the retry budget is spent. Either Err (the last
// transport error) or StatusCode (the last non-success status) is set.
type FetchError struct {
	URL        string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch %s failed after %d attempts: status %d", e.URL, e.Attempts, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Config configures a Fetcher.
type Config struct {
	Timeout        time.Duration
	MaxRetries     int
	Backoff        time.Duration // base delay of the jittered exponential backoff; 0 disables sleeping
	RatePerSecond  float64
	HeaderProfile  string
	TLSFingerprint string
}

// ConfigFromConf converts the ini section into a Config.
func ConfigFromConf(c types.FetchConf) Config {
	return Config{
		Timeout:        time.Duration(c.TimeoutSeconds) * time.Second,
		MaxRetries:     c.MaxRetries,
		Backoff:        time.Duration(c.BackoffMillis) * time.Millisecond,
		RatePerSecond:  c.RatePerSecond,
		HeaderProfile:  c.HeaderProfile,
		TLSFingerprint: c.TLSFingerprint,
	}
}

// Fetcher is safe for concurrent use.
type Fetcher struct {
	cfg     Config
	headers HeaderProvider
	proxies ProxyProvider
	limiter *rate.Limiter
	direct  *http.Client
	traffic *shared.Traffic

	mu      sync.Mutex
	clients map[string]*http.Client // keyed by proxy ID
	rng     *rand.Rand
}

// New creates a Fetcher. proxies may be nil for direct fetching.
func New(cfg Config, proxies ProxyProvider) (*Fetcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	traffic := &shared.Traffic{}
	t, err := transport.New(nil, cfg.Timeout, traffic)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.TLSFingerprint) {
	case "", "none":
	case "chrome":
		t.DialTLSContext = chromeTLSDialer(&net.Dialer{Timeout: cfg.Timeout, KeepAlive: 30 * time.Second}, traffic)
	default:
		return nil, fmt.Errorf("unknown tls fingerprint %q", cfg.TLSFingerprint)
	}

	f := &Fetcher{
		cfg:     cfg,
		headers: NewHeaderProvider(cfg.HeaderProfile, time.Now().UnixNano()),
		proxies: proxies,
		direct:  &http.Client{Transport: t},
		traffic: traffic,
		clients: make(map[string]*http.Client),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if cfg.RatePerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return f, nil
}

type callOptions struct {
	timeout    time.Duration
	maxRetries int
	noProxy    bool
}

// Option adjusts a single Fetch call.
type Option func(*callOptions)

func WithTimeout(d time.Duration) Option {
	return func(o *callOptions) { o.timeout = d }
}

func WithMaxRetries(n int) Option {
	return func(o *callOptions) { o.maxRetries = n }
}

// WithoutProxy forces a direct request even when a proxy provider is set.
func WithoutProxy() Option {
	return func(o *callOptions) { o.noProxy = true }
}

// Fetch GETs rawURL, retrying up to MaxRetries times on transport errors and
// non-2xx responses. When every attempt fails the last response (if any) is
// returned together with a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts ...Option) (*Response, error) {
	l := logger.WithComponent("Fetcher")

	o := callOptions{timeout: f.cfg.Timeout, maxRetries: f.cfg.MaxRetries}
	for _, opt := range opts {
		opt(&o)
	}

	var lastResp *Response
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			l.Warn().Str("url", rawURL).Int("attempt", attempt).Int("max_retries", o.maxRetries).Msgf("Retrying %s with %d/%d time", rawURL, attempt, o.maxRetries)
			if err := f.sleep(ctx, attempt); err != nil {
				lastErr = err
				break
			}
		}
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				lastErr = err
				break
			}
		}

		attempts++
		resp, err := f.do(ctx, rawURL, o)
		if err == nil && resp.OK() {
			resp.Attempts = attempts
			return resp, nil
		}
		lastResp, lastErr = resp, err
		if err != nil {
			l.Debug().Err(err).Str("url", rawURL).Int("attempt", attempt).Msg("Request failed.")
		} else {
			l.Debug().Int("status_code", resp.StatusCode).Str("url", rawURL).Int("attempt", attempt).Msg("Received non-success status.")
		}
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
	}

	fe := &FetchError{URL: rawURL, Attempts: attempts, Err: lastErr}
	if lastResp != nil {
		lastResp.Attempts = attempts
		fe.StatusCode = lastResp.StatusCode
	}
	return lastResp, fe
}

func (f *Fetcher) do(ctx context.Context, rawURL string, o callOptions) (*Response, error) {
	l := logger.WithComponent("Fetcher")
	client := f.direct
	target := rawURL
	var proxyLabel string

	if f.proxies != nil && !o.noProxy {
		p, err := f.proxies.Next()
		if err != nil {
			return nil, err
		}
		client, err = f.clientFor(p)
		if err != nil {
			return nil, err
		}
		target = DowngradeScheme(rawURL)
		proxyLabel = p.String()
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header = f.headers.Headers()

	l.Debug().Str("url", target).Str("proxy", proxyLabel).Msg("Requesting.")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", target, err)
	}
	return &Response{
		URL:        target,
		StatusCode: resp.StatusCode,
		Body:       body,
		Proxy:      proxyLabel,
	}, nil
}

// clientFor returns the cached client routed through p.
func (f *Fetcher) clientFor(p model.LiveProxy) (*http.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[p.ID()]; ok {
		return c, nil
	}
	t, err := transport.New(p.URL, f.cfg.Timeout, f.traffic)
	if err != nil {
		return nil, err
	}
	c := &http.Client{Transport: t}
	f.clients[p.ID()] = c
	return c, nil
}

// Traffic returns the bytes sent and received on all connections so far.
func (f *Fetcher) Traffic() (uplink, downlink uint64) {
	return f.traffic.Uplink.Load(), f.traffic.Downlink.Load()
}

// sleep waits base*2^(attempt-1) with +/-50% jitter, capped at maxBackoff.
func (f *Fetcher) sleep(ctx context.Context, attempt int) error {
	if f.cfg.Backoff <= 0 {
		return ctx.Err()
	}
	d := float64(f.cfg.Backoff) * math.Pow(2, float64(attempt-1))
	f.mu.Lock()
	d *= 0.5 + f.rng.Float64()
	f.mu.Unlock()
	if d > float64(maxBackoff) {
		d = float64(maxBackoff)
	}

	timer := time.NewTimer(time.Duration(d))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// DowngradeScheme rewrites an https URL to http. The target site redirects
// encrypted requests in a way plain HTTP proxies cannot tunnel, so proxied
// requests go out unencrypted.
func DowngradeScheme(rawURL string) string {
	if strings.HasPrefix(strings.ToLower(rawURL), "https://") {
		return "http://" + rawURL[len("https://"):]
	}
	return rawURL
}
