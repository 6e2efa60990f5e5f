package harvest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"listing_harvester/internal/shared/logger"
)

// DefaultDetailWorkers is the number of concurrent detail fetches.
const DefaultDetailWorkers = 10

// Scheduler fetches and parses detail records under a fixed worker budget.
type Scheduler struct {
	fetch     Fetcher
	endpoints Endpoints
	workers   int
}

// NewScheduler creates a Scheduler. A non-positive workers uses the default.
func NewScheduler(fetch Fetcher, endpoints Endpoints, workers int) *Scheduler {
	if workers <= 0 {
		workers = DefaultDetailWorkers
	}
	return &Scheduler{fetch: fetch, endpoints: endpoints, workers: workers}
}

// Run fetches one detail record per identifier and returns the records that
// parsed, in completion order. Failures are logged and skipped. Run returns
// only after every started fetch has finished; after a stop request no new
// fetches are started.
func (s *Scheduler) Run(ctx context.Context, rc *RunContext, ids []int, keyword string) []BusinessRecord {
	l := logger.WithComponent("Harvest/Scheduler")
	l.Info().Int("ids", len(ids)).Int("workers", s.workers).Str("keyword", keyword).Msg("Data scraping started.")

	var (
		mu      sync.Mutex
		records = make([]BusinessRecord, 0, len(ids))
		g       errgroup.Group
	)
	g.SetLimit(s.workers)

	for _, id := range ids {
		if rc.Stopped() || ctx.Err() != nil {
			l.Info().Msg("Stop requested, no further detail fetches are scheduled.")
			break
		}
		g.Go(func() error {
			if rc.Stopped() {
				return nil
			}
			rec, err := s.fetchOne(ctx, id, keyword)
			if err != nil {
				var pe *ParseError
				if errors.As(err, &pe) {
					rc.State.IncParseFailures()
				} else {
					rc.State.IncFailedFetches()
				}
				l.Error().Err(err).Int("business_id", id).Msg("No data.")
				return nil
			}

			mu.Lock()
			records = append(records, rec)
			done := len(records)
			mu.Unlock()

			rc.State.AddRecords(1)
			rc.Report(ProgressEvent{
				Stage:   StageDetail,
				Keyword: keyword,
				Done:    done,
				Total:   len(ids),
				Message: fmt.Sprintf("Scrapped %d/%d records..", done, len(ids)),
			})
			return nil
		})
	}
	_ = g.Wait()

	l.Info().Int("records", len(records)).Int("ids", len(ids)).Msg("Detail batch drained.")
	return records
}

func (s *Scheduler) fetchOne(ctx context.Context, id int, keyword string) (BusinessRecord, error) {
	detailURL := s.endpoints.DetailURL(id)
	resp, err := s.fetch.Fetch(ctx, detailURL)
	if err != nil {
		return BusinessRecord{}, err
	}

	rec, err := Parse(resp.Body, keyword)
	if err != nil {
		return BusinessRecord{}, fmt.Errorf("%s: %w", detailURL, err)
	}
	if rec.BusinessID != "" && rec.BusinessID != strconv.Itoa(id) {
		return BusinessRecord{}, &ParseError{Err: fmt.Errorf("%w: payload id %s does not match requested id %d", ErrMalformedPayload, rec.BusinessID, id)}
	}
	return rec, nil
}
