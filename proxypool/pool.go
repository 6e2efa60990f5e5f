package proxypool

import (
	"context"
	"errors"
	"sync"

	"listing_harvester/internal/shared/logger"
	"listing_harvester/proxypool/model"
	"listing_harvester/proxypool/scraper"
	"listing_harvester/proxypool/storage"
	"listing_harvester/proxypool/validator"
)

// ErrPoolExhausted is returned when no candidate survives the probe pass, or
// when Next is called on an empty pool.
var ErrPoolExhausted = errors.New("proxy pool exhausted: no live proxies")

// Prober is the liveness check used by the pool.
type Prober interface {
	Probe(ctx context.Context, candidates []model.ProxyCandidate) []model.LiveProxy
}

var _ Prober = (*validator.Validator)(nil)

// Pool holds the live proxies of one run and hands them out round-robin.
// The live set is fixed after Probe; there is no re-probing or eviction.
type Pool struct {
	prober  Prober
	sources []scraper.Source
	report  storage.Storage

	mu    sync.Mutex
	live  []model.LiveProxy
	index int
}

// New creates a Pool. report may be nil.
func New(prober Prober, report storage.Storage, sources ...scraper.Source) *Pool {
	return &Pool{
		prober:  prober,
		sources: sources,
		report:  report,
	}
}

// AddSource registers another candidate source.
func (p *Pool) AddSource(s scraper.Source) {
	p.sources = append(p.sources, s)
}

// Load collects candidates from every source, deduplicated by host:port.
// A failing source is logged and skipped; an error is returned only when no
// source produced anything and at least one failed.
func (p *Pool) Load(ctx context.Context) ([]model.ProxyCandidate, error) {
	l := logger.WithComponent("ProxyPool")

	seen := make(map[string]struct{})
	var candidates []model.ProxyCandidate
	var firstErr error

	for _, s := range p.sources {
		found, err := s.Fetch(ctx)
		if err != nil {
			l.Warn().Err(err).Str("source", s.Name()).Msg("Proxy source failed.")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, c := range found {
			if _, dup := seen[c.ID()]; dup {
				continue
			}
			seen[c.ID()] = struct{}{}
			candidates = append(candidates, c)
		}
		l.Debug().Str("source", s.Name()).Int("count", len(found)).Msg("Proxy source loaded.")
	}

	if len(candidates) == 0 && firstErr != nil {
		return nil, firstErr
	}
	l.Info().Int("count", len(candidates)).Msg("Proxy candidates loaded.")
	return candidates, nil
}

// Probe runs the single liveness pass and installs the live set.
func (p *Pool) Probe(ctx context.Context, candidates []model.ProxyCandidate) error {
	l := logger.WithComponent("ProxyPool")

	live := p.prober.Probe(ctx, candidates)

	p.mu.Lock()
	p.live = live
	p.index = 0
	p.mu.Unlock()

	l.Info().Int("live", len(live)).Msgf("Found %d live proxies", len(live))

	if p.report != nil {
		if err := p.report.SaveReport(live); err != nil {
			l.Warn().Err(err).Msg("Failed to save live proxy report.")
		}
	}

	if len(live) == 0 {
		return ErrPoolExhausted
	}
	return nil
}

// Next returns the next live proxy, wrapping to the first after the last.
func (p *Pool) Next() (model.LiveProxy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.live) == 0 {
		return model.LiveProxy{}, ErrPoolExhausted
	}
	proxy := p.live[p.index]
	p.index = (p.index + 1) % len(p.live)
	return proxy, nil
}

// Size returns the number of live proxies.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

// Live returns a snapshot of the live set.
func (p *Pool) Live() []model.LiveProxy {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]model.LiveProxy, len(p.live))
	copy(out, p.live)
	return out
}
