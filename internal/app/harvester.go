package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"listing_harvester/internal/fetcher"
	"listing_harvester/internal/harvest"
	"listing_harvester/internal/output"
	"listing_harvester/internal/shared/config"
	"listing_harvester/internal/shared/logger"
	"listing_harvester/internal/shared/types"
)

// Summary describes a finished run.
type Summary struct {
	RunID         string
	Pairs         int
	PairsWalked   int
	TotalEstimate int
	Identifiers   int
	Records       int
	FailedFetches int64
	ParseFailures int64
	LiveProxies   int
	BytesSent     uint64
	BytesReceived uint64
	Direct        bool
	Stopped       bool
	NoData        bool
	OutputPath    string
	Elapsed       time.Duration
}

// Harvester runs the whole pipeline for a validated RunInput.
type Harvester struct {
	cfg       *types.Config
	endpoints harvest.Endpoints
}

// Option customizes a Harvester.
type Option func(*Harvester)

// WithEndpoints replaces the production search and API targets.
func WithEndpoints(e harvest.Endpoints) Option {
	return func(h *Harvester) { h.endpoints = e }
}

// New creates a Harvester. A nil cfg uses types.DefaultConfig.
func New(cfg *types.Config, opts ...Option) *Harvester {
	if cfg == nil {
		cfg = types.DefaultConfig()
	}
	h := &Harvester{cfg: cfg, endpoints: harvest.DefaultEndpoints()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Run executes one harvest. Records collected before a stop request are
// still written. It returns output.ErrNoData when nothing was collected and
// an *output.OutputError when the file could not be written.
func (h *Harvester) Run(ctx context.Context, rc *harvest.RunContext, in *config.RunInput) (Summary, error) {
	start := time.Now()
	if rc == nil {
		rc = harvest.NewRunContext(NewRunID(), nil)
	}
	l := logger.WithComponent("Harvester").With().Str("run_id", rc.ID()).Logger()

	sum := Summary{RunID: rc.ID()}
	if in == nil || len(in.Pairs) == 0 {
		return sum, &config.ConfigError{Field: "keywords/locations", Reason: "no search pairs"}
	}
	sum.Pairs = len(in.Pairs)

	var proxies fetcher.ProxyProvider
	if in.UseProxy {
		pool, err := h.buildPool(ctx, rc, in)
		if err != nil {
			return sum, err
		}
		if pool != nil {
			proxies = pool
			sum.LiveProxies = pool.Size()
		}
	}
	sum.Direct = proxies == nil

	f, err := fetcher.New(fetcher.ConfigFromConf(h.cfg.FetchConf), proxies)
	if err != nil {
		return sum, fmt.Errorf("failed to create fetcher: %w", err)
	}
	walker := harvest.NewWalker(f, h.endpoints, h.cfg.PageFailureBudget)
	scheduler := harvest.NewScheduler(f, h.endpoints, h.cfg.DetailWorkers)

	for _, pair := range in.Pairs {
		if rc.Stopped() || ctx.Err() != nil {
			break
		}
		n := walker.TotalCount(ctx, pair)
		sum.TotalEstimate += n
		rc.State.AddTotalEstimate(n)
	}
	rc.Report(harvest.ProgressEvent{
		Stage:   harvest.StageCount,
		Total:   sum.TotalEstimate,
		Message: fmt.Sprintf("About %d records to collect.", sum.TotalEstimate),
	})

	sink := output.NewSink()
	for i, pair := range in.Pairs {
		if rc.Stopped() || ctx.Err() != nil {
			l.Info().Int("pair", i+1).Msg("Stop requested, skipping remaining pairs.")
			break
		}
		pl := l.With().Str("keyword", pair.Keyword).Str("location", pair.Location).Logger()
		pl.Info().Int("pair", i+1).Int("pairs", len(in.Pairs)).Msg("Harvesting pair.")

		walk := walker.Walk(ctx, rc, pair)
		sum.PairsWalked++
		sum.Identifiers += len(walk.IDs)
		if walk.Aborted {
			pl.Warn().Int("pages", walk.Pages).Int("failures", walk.Failures).Msg("Walk ended early.")
		}
		if len(walk.IDs) == 0 {
			continue
		}
		if rc.Stopped() {
			break
		}

		records := scheduler.Run(ctx, rc, walk.IDs, pair.Keyword)
		rows := make([]output.Record, len(records))
		for j := range records {
			rows[j] = records[j]
		}
		sink.Append(rows...)
		sum.Records += len(records)
		pl.Info().Int("ids", len(walk.IDs)).Int("records", len(records)).Msg("Pair done.")
	}
	sum.Stopped = rc.Stopped() || ctx.Err() != nil

	rc.Report(harvest.ProgressEvent{
		Stage:   harvest.StageOutput,
		Done:    sink.Len(),
		Total:   sink.Len(),
		Message: "Writing output..",
	})
	path, err := sink.Materialize(h.cfg.Output)
	snap := rc.State.Snapshot()
	sum.FailedFetches = snap.FailedFetches
	sum.ParseFailures = snap.ParseFailures
	sum.OutputPath = path
	sum.BytesSent, sum.BytesReceived = f.Traffic()
	sum.Elapsed = time.Since(start)

	switch {
	case errors.Is(err, output.ErrNoData):
		sum.NoData = true
		rc.Report(harvest.ProgressEvent{Stage: harvest.StageDone, Message: "No data to save!"})
		l.Warn().Int("pairs", sum.PairsWalked).Msg("No data to save!")
		return sum, err
	case err != nil:
		rc.Report(harvest.ProgressEvent{Stage: harvest.StageDone, Message: "Failed to write output."})
		l.Error().Err(err).Msg("Failed to write output.")
		return sum, err
	}

	rc.Report(harvest.ProgressEvent{
		Stage:   harvest.StageDone,
		Done:    sum.Records,
		Total:   sum.Records,
		Message: fmt.Sprintf("Data saved to %s", path),
	})
	l.Info().
		Int("pairs", sum.PairsWalked).
		Int("identifiers", sum.Identifiers).
		Int("records", sum.Records).
		Int64("failed_fetches", sum.FailedFetches).
		Int64("parse_failures", sum.ParseFailures).
		Uint64("bytes_received", sum.BytesReceived).
		Bool("stopped", sum.Stopped).
		Str("output", path).
		Dur("elapsed", sum.Elapsed).
		Msg("Run finished.")
	return sum, nil
}
