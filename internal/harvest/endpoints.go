package harvest

import (
	"context"
	"fmt"
	"strings"

	"listing_harvester/internal/fetcher"
)

const (
	DefaultSearchBase = "https://www.brownbook.net"
	DefaultAPIBase    = "https://api.brownbook.net"
)

// Endpoints are the two fixed HTTP targets. Tests point them at local servers.
type Endpoints struct {
	SearchBase string
	APIBase    string
}

// DefaultEndpoints returns the production targets.
func DefaultEndpoints() Endpoints {
	return Endpoints{SearchBase: DefaultSearchBase, APIBase: DefaultAPIBase}
}

// SearchURL builds the result page URL. location and keyword must already be
// path-escaped.
func (e Endpoints) SearchURL(location, keyword string, page int) string {
	return fmt.Sprintf("%s/search/worldwide/%s/%s/?page=%d", strings.TrimRight(e.SearchBase, "/"), location, keyword, page)
}

// DetailURL builds the detail API URL of one listing.
func (e Endpoints) DetailURL(id int) string {
	return fmt.Sprintf("%s/app/api/v1/business/%d/fetch", strings.TrimRight(e.APIBase, "/"), id)
}

// Fetcher is the subset of *fetcher.Fetcher the harvest stages use.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts ...fetcher.Option) (*fetcher.Response, error)
}

var _ Fetcher = (*fetcher.Fetcher)(nil)
