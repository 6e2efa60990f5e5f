package harvest

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"listing_harvester/internal/shared/config"
	"listing_harvester/internal/shared/logger"
)

const (
	listingAnchorSelector = `a[aria-label="business-link"]`
	nextPageSelector      = `#nav-right-arrow`
	totalCountSelector    = `span.font-bold`

	// DefaultPageFailureBudget is how many failed page fetches a pair
	// tolerates; the next failure ends the walk.
	DefaultPageFailureBudget = 3
)

// PageResult is what one result page yields.
type PageResult struct {
	IDs     []int
	HasNext bool
}

// WalkResult is the outcome of walking one (keyword, location) pair.
type WalkResult struct {
	Pair     config.Pair
	IDs      []int
	Pages    int
	Failures int
	Aborted  bool // failure budget spent or stop requested
}

// Walker traverses the paginated search results of one pair.
type Walker struct {
	fetch         Fetcher
	endpoints     Endpoints
	failureBudget int
}

// NewWalker creates a Walker. A non-positive failureBudget uses the default.
func NewWalker(fetch Fetcher, endpoints Endpoints, failureBudget int) *Walker {
	if failureBudget <= 0 {
		failureBudget = DefaultPageFailureBudget
	}
	return &Walker{fetch: fetch, endpoints: endpoints, failureBudget: failureBudget}
}

// Walk fetches result pages 1, 2, ... strictly in order until a page has no
// next control, the failure budget is spent or a stop is requested. The
// identifiers collected so far are always returned.
func (w *Walker) Walk(ctx context.Context, rc *RunContext, pair config.Pair) WalkResult {
	l := logger.WithComponent("Harvest/Walker").With().
		Str("keyword", pair.Keyword).Str("location", pair.Location).Logger()

	res := WalkResult{Pair: pair}
	seen := make(map[int]struct{})
	page := 1

	for {
		if rc.Stopped() || ctx.Err() != nil {
			l.Info().Int("page", page).Msg("Stop requested, ending walk.")
			res.Aborted = true
			break
		}

		pageURL := w.endpoints.SearchURL(pair.Location, pair.Keyword, page)
		resp, err := w.fetch.Fetch(ctx, pageURL)
		if err != nil {
			res.Failures++
			l.Error().Err(err).Str("url", pageURL).Int("failures", res.Failures).Msg("Page fetch failed.")
			if res.Failures > w.failureBudget {
				l.Error().Str("url", pageURL).Msg("max retries reached..")
				res.Aborted = true
				break
			}
			continue
		}

		result, err := ParsePage(resp.Body)
		if err != nil {
			res.Failures++
			l.Error().Err(err).Str("url", pageURL).Int("failures", res.Failures).Msg("Page parse failed.")
			if res.Failures > w.failureBudget {
				res.Aborted = true
				break
			}
			continue
		}

		res.Pages++
		rc.State.IncPagesWalked()
		added := 0
		for _, id := range result.IDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			res.IDs = append(res.IDs, id)
			added++
		}
		rc.State.AddIdentifiers(added)

		rc.Report(ProgressEvent{
			Stage:    StageWalk,
			Keyword:  pair.Keyword,
			Location: pair.Location,
			Page:     page,
			Done:     len(res.IDs),
			Message:  fmt.Sprintf("Scraping master page: %d", page),
		})
		l.Debug().Int("page", page).Int("ids", len(result.IDs)).Bool("has_next", result.HasNext).Msg("Page parsed.")

		if !result.HasNext {
			l.Info().Int("pages", res.Pages).Int("ids", len(res.IDs)).Msg("Reached last page.")
			break
		}
		page++
	}
	return res
}

// TotalCount reads the advisory record count shown on page 1. Any failure
// yields 0.
func (w *Walker) TotalCount(ctx context.Context, pair config.Pair) int {
	l := logger.WithComponent("Harvest/Walker")

	pageURL := w.endpoints.SearchURL(pair.Location, pair.Keyword, 1)
	resp, err := w.fetch.Fetch(ctx, pageURL)
	if err != nil {
		l.Warn().Err(err).Str("url", pageURL).Msg("Could not read total count.")
		return 0
	}
	n := ParseTotalCount(resp.Body)
	l.Debug().Str("keyword", pair.Keyword).Int("total", n).Msgf("Found %d", n)
	return n
}

// ParsePage extracts listing identifiers and the next-page flag from a result
// page. Anchors without a positive integer identifier are skipped.
func ParsePage(body []byte) (PageResult, error) {
	l := logger.WithComponent("Harvest/Walker")

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return PageResult{}, fmt.Errorf("parsing result page: %w", err)
	}

	var res PageResult
	doc.Find(listingAnchorSelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			l.Debug().Msg("business id URL is None")
			return
		}
		id, err := IdentifierFromHref(href)
		if err != nil {
			l.Debug().Str("href", href).Err(err).Msg("business id not found")
			return
		}
		res.IDs = append(res.IDs, id)
	})
	res.HasNext = doc.Find(nextPageSelector).Length() > 0
	return res, nil
}

// IdentifierFromHref takes the third "/"-separated segment of a listing
// href, e.g. "/business/12345/acme-bakery" -> 12345.
func IdentifierFromHref(href string) (int, error) {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	parts := strings.Split(href, "/")
	if len(parts) < 3 {
		return 0, fmt.Errorf("href %q has no identifier segment", href)
	}
	id, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, fmt.Errorf("identifier segment %q: %w", parts[2], err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("identifier %d is not positive", id)
	}
	return id, nil
}

// ParseTotalCount returns the first span.font-bold whose text is an integer.
func ParseTotalCount(body []byte) int {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0
	}
	total := 0
	doc.Find(totalCountSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.ReplaceAll(strings.TrimSpace(sel.Text()), ",", "")
		if n, err := strconv.Atoi(text); err == nil {
			total = n
			return false
		}
		return true
	})
	return total
}
