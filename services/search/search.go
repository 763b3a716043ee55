package search

import (
	"context"
	"errors"

	"github.com/meghashyamc/iiifsearch/db/kvdb"
	"github.com/meghashyamc/iiifsearch/db/searchdb"
	"github.com/meghashyamc/iiifsearch/logger"
	"github.com/meghashyamc/iiifsearch/query"
)

const (
	defaultTrigramThreshold     = 0.3
	defaultTrigramWordThreshold = 0.6
)

var ErrInvalidPage = errors.New("invalid page")

// RecordReader is the read side of the record index.
type RecordReader interface {
	Search(ctx context.Context, request searchdb.SearchRequest, fn func(searchdb.Match) error) error
	Records(ctx context.Context, predicate query.Predicate) ([]searchdb.Record, error)
}

type ResourceReader interface {
	Resources(madocIDs []string) (map[string]*kvdb.Resource, error)
}

type Options struct {
	// TrigramThreshold is the similarity a record needs to match a trigram
	// search, TrigramWordThreshold the one for a trigram_word search.
	TrigramThreshold     float64
	TrigramWordThreshold float64
}

type Service struct {
	logger    logger.Logger
	records   RecordReader
	resources ResourceReader
	options   Options
}

func New(logger logger.Logger, records RecordReader, resources ResourceReader, options Options) *Service {
	if options.TrigramThreshold <= 0 {
		options.TrigramThreshold = defaultTrigramThreshold
	}
	if options.TrigramWordThreshold <= 0 {
		options.TrigramWordThreshold = defaultTrigramWordThreshold
	}
	return &Service{
		logger:    logger,
		records:   records,
		resources: resources,
		options:   options,
	}
}

type Page struct {
	Results    []Result
	Facets     Facets
	Page       int
	PageSize   int
	TotalPages int
	Total      int
}

// Search runs plan and returns one page of its results together with the
// facets of the whole result set. Pages are numbered from 1; a page past the
// last one fails with ErrInvalidPage.
func (s *Service) Search(ctx context.Context, plan *query.Plan, page int) (*Page, error) {
	matched, err := s.match(ctx, plan)
	if err != nil {
		return nil, err
	}
	resources, err := s.stored(matched)
	if err != nil {
		return nil, err
	}

	ordered, err := s.order(ctx, plan, matched)
	if err != nil {
		return nil, err
	}

	pageSize := max(plan.PageSize, 1)
	totalPages := max((len(ordered)+pageSize-1)/pageSize, 1)
	if page < 1 || page > totalPages {
		return nil, ErrInvalidPage
	}

	facets, err := s.facets(ctx, plan, matched.ids())
	if err != nil {
		return nil, err
	}

	start := (page - 1) * pageSize
	end := min(start+pageSize, len(ordered))
	results := s.results(plan, matched, resources, ordered[start:end])

	return &Page{
		Results:    results,
		Facets:     facets,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		Total:      len(ordered),
	}, nil
}

// stored drops the matches whose resource is not stored and returns the
// stored ones. Records can outlive their resource while it is deleted.
func (s *Service) stored(matched matchSet) (map[string]*kvdb.Resource, error) {
	resources, err := s.resources.Resources(matched.ids())
	if err != nil {
		s.logger.Error("failed to get resources", "err", err.Error())
		return nil, err
	}
	for id := range matched {
		if _, ok := resources[id]; !ok {
			s.logger.Warn("matched records of a missing resource", "resource_id", id)
			delete(matched, id)
		}
	}
	return resources, nil
}
