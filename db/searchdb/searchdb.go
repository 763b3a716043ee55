package searchdb

import (
	"context"
	"errors"

	"github.com/meghashyamc/iiifsearch/query"
)

var ErrInvalidQuery = errors.New("invalid query")

type DB interface {
	Replace(ctx context.Context, pairs []Pair, records []Record) error
	ReplaceWhere(ctx context.Context, predicate query.Predicate, records []Record) error
	DeleteResource(ctx context.Context, resourceID string) (int, error)
	Restamp(ctx context.Context, scope Scope) error
	Records(ctx context.Context, predicate query.Predicate) ([]Record, error)
	Search(ctx context.Context, request SearchRequest, fn func(Match) error) error
	GetDocCount() (uint64, error)
	Close() error
}

// SearchRequest selects the records that satisfy Filter and, when Text is
// set, match the text query on the same record. Only text clauses score.
type SearchRequest struct {
	Filter        query.Predicate
	Text          *query.TextQuery
	WithLocations bool
}
