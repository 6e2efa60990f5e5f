package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"listing_harvester/internal/fetcher"
	"listing_harvester/internal/harvest"
	"listing_harvester/internal/shared/config"
	"listing_harvester/internal/shared/logger"
	"listing_harvester/internal/shared/types"
	"listing_harvester/proxypool"
	"listing_harvester/proxypool/scraper"
	"listing_harvester/proxypool/storage"
	"listing_harvester/proxypool/validator"
)

// buildPool loads and probes the configured proxy candidates. It returns a
// nil pool without error when the live set is empty and the on_exhausted
// policy is "direct".
func (h *Harvester) buildPool(ctx context.Context, rc *harvest.RunContext, in *config.RunInput) (*proxypool.Pool, error) {
	l := logger.WithComponent("Harvester").With().Str("run_id", rc.ID()).Logger()
	pc := h.cfg.ProxyConf

	headers := fetcher.NewHeaderProvider(h.cfg.HeaderProfile, time.Now().UnixNano()).Headers()
	var sources []scraper.Source
	if in.ProxySource != "" {
		sources = append(sources, scraper.NewInlineSource(in.ProxySource))
	}
	if in.ProxyFile != "" {
		sources = append(sources, scraper.NewFileSource(storage.NewFileStorage(in.ProxyFile, "")))
	}
	if in.ProxyRemote != "" {
		sources = append(sources, scraper.NewRemoteListSource(in.ProxyRemote, headers.Get("User-Agent")))
	}
	if len(sources) == 0 {
		return nil, &config.ConfigError{Field: "proxy source", Reason: "proxy use requested but no proxy source configured"}
	}

	var report storage.Storage
	if pc.ReportFile != "" {
		report = storage.NewFileStorage("", pc.ReportFile)
	}
	v := validator.NewValidator(pc.ProbeURL, time.Duration(pc.ProbeTimeoutSeconds)*time.Second, h.cfg.ProbeWorkers, headers)
	pool := proxypool.New(v, report, sources...)

	rc.Report(harvest.ProgressEvent{Stage: harvest.StageProbe, Message: "Checking proxies.."})
	candidates, err := pool.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load proxy candidates: %w", err)
	}
	rc.Report(harvest.ProgressEvent{
		Stage:   harvest.StageProbe,
		Total:   len(candidates),
		Message: fmt.Sprintf("Probing %d proxies..", len(candidates)),
	})

	err = pool.Probe(ctx, candidates)
	switch {
	case errors.Is(err, proxypool.ErrPoolExhausted):
		if strings.EqualFold(pc.OnExhausted, types.OnExhaustedDirect) {
			l.Warn().Int("candidates", len(candidates)).Msg("No live proxies, continuing without proxy.")
			rc.Report(harvest.ProgressEvent{Stage: harvest.StageProbe, Total: len(candidates), Message: "No live proxies, fetching directly."})
			return nil, nil
		}
		return nil, err
	case err != nil:
		return nil, err
	}

	rc.Report(harvest.ProgressEvent{
		Stage:   harvest.StageProbe,
		Done:    pool.Size(),
		Total:   len(candidates),
		Message: fmt.Sprintf("%d/%d proxies alive.", pool.Size(), len(candidates)),
	})
	return pool, nil
}
