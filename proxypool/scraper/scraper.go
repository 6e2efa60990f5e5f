package scraper

import (
	"context"

	"listing_harvester/proxypool/model"
	"listing_harvester/proxypool/storage"
)

// Source produces proxy candidates.
type Source interface {
	// Fetch returns the candidates of this source. Implementations only load
	// and parse; liveness is checked by the validator.
	Fetch(ctx context.Context) ([]model.ProxyCandidate, error)

	// Name is used for logging.
	Name() string
}

// InlineSource parses a delimited list handed over as a plain value.
type InlineSource struct {
	list string
}

func NewInlineSource(list string) Source {
	return &InlineSource{list: list}
}

func (s *InlineSource) Name() string {
	return "inline"
}

func (s *InlineSource) Fetch(_ context.Context) ([]model.ProxyCandidate, error) {
	return storage.ParseCandidates(s.list, s.Name()), nil
}

// FileSource loads candidates through a storage.Storage.
type FileSource struct {
	store storage.Storage
}

func NewFileSource(store storage.Storage) Source {
	return &FileSource{store: store}
}

func (s *FileSource) Name() string {
	return "file"
}

func (s *FileSource) Fetch(_ context.Context) ([]model.ProxyCandidate, error) {
	return s.store.Load()
}
