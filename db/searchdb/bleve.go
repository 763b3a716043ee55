package searchdb

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/meghashyamc/iiifsearch/config"
	"github.com/meghashyamc/iiifsearch/logger"
	"github.com/meghashyamc/iiifsearch/query"
)

const (
	searchBatchSize      = 500
	defaultMaxCandidates = 10000
	sortByDocumentID     = "_id"
	sortByScore          = "-_score"
)

type BleveDB struct {
	indexPath     string
	maxCandidates int
	logger        logger.Logger
	index         bleve.Index

	// writeMu serialises read-modify-write cycles such as replacing the
	// records of a pair.
	writeMu sync.Mutex
}

func New(logger logger.Logger, cfg *config.Config) (*BleveDB, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		logger.Error("could not create index mapping", "err", err.Error())
		return nil, err
	}

	storagePath := cfg.GetStoragePath()
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		logger.Error("failed to create storage directory", "err", err.Error(), "path", storagePath)
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	indexPath := filepath.Join(storagePath, cfg.GetIndexPath())
	index, err := bleve.New(indexPath, indexMapping)
	if err != nil {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Error("could not open index", "err", err.Error(), "path", indexPath)
			return nil, err
		}
	}

	return &BleveDB{indexPath: indexPath, maxCandidates: cfg.GetMaxCandidates(), logger: logger, index: index}, nil
}

// NewInMemory returns a store that keeps its index in memory only.
func NewInMemory(logger logger.Logger, maxCandidates int) (*BleveDB, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		logger.Error("could not create index mapping", "err", err.Error())
		return nil, err
	}
	index, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		logger.Error("could not create in-memory index", "err", err.Error())
		return nil, err
	}
	return &BleveDB{maxCandidates: maxCandidates, logger: logger, index: index}, nil
}

// Replace deletes the records of every given pair and indexes records, in
// one batch. Readers see either the old or the new records, never a mix.
func (b *BleveDB) Replace(ctx context.Context, pairs []Pair, records []Record) error {
	removals := make([]blevequery.Query, 0, len(pairs))
	for _, pair := range pairs {
		removals = append(removals, termQuery(indexFieldPair, pairKey(pair)))
	}
	return b.replace(ctx, removals, records)
}

// ReplaceWhere is Replace for the records matching predicate.
func (b *BleveDB) ReplaceWhere(ctx context.Context, predicate query.Predicate, records []Record) error {
	if predicate == nil {
		return fmt.Errorf("%w: replacing needs a predicate", ErrInvalidQuery)
	}
	removal, err := translatePredicate(predicate)
	if err != nil {
		b.logger.Warn("could not translate predicate", "err", err.Error())
		return fmt.Errorf("%w: %s", ErrInvalidQuery, err.Error())
	}
	return b.replace(ctx, []blevequery.Query{removal}, records)
}

func (b *BleveDB) replace(ctx context.Context, removals []blevequery.Query, records []Record) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	batch := b.index.NewBatch()

	for _, removal := range removals {
		ids, err := b.documentIDs(ctx, removal)
		if err != nil {
			return err
		}
		for _, id := range ids {
			batch.Delete(id)
		}
	}

	for _, record := range records {
		if err := b.indexRecord(batch, record); err != nil {
			return err
		}
	}

	if batch.Size() == 0 {
		return nil
	}
	if err := b.index.Batch(batch); err != nil {
		b.logger.Error("could not replace records", "err", err.Error())
		return err
	}
	return nil
}

// DeleteResource removes every record of a resource and reports how many
// there were.
func (b *BleveDB) DeleteResource(ctx context.Context, resourceID string) (int, error) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	ids, err := b.documentIDs(ctx, termQuery(string(query.FieldResourceID), resourceID))
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		b.logger.Error("could not delete records", "err", err.Error(), "resource_id", resourceID)
		return 0, err
	}
	return len(ids), nil
}

// Restamp rewrites the resource fields copied onto every record of
// scope.ResourceID.
func (b *BleveDB) Restamp(ctx context.Context, scope Scope) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	records, err := b.Records(ctx, query.Equals(query.FieldResourceID, scope.ResourceID))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	batch := b.index.NewBatch()
	for _, record := range records {
		record.ApplyScope(scope)
		if err := b.indexRecord(batch, record); err != nil {
			return err
		}
	}
	if err := b.index.Batch(batch); err != nil {
		b.logger.Error("could not restamp records", "err", err.Error(), "resource_id", scope.ResourceID)
		return err
	}
	return nil
}

func (b *BleveDB) indexRecord(batch *bleve.Batch, record Record) error {
	doc, err := document(record)
	if err != nil {
		b.logger.Error("could not encode record", "err", err.Error(), "id", record.ID)
		return err
	}
	if err := batch.Index(record.ID, doc); err != nil {
		b.logger.Error("could not index record", "err", err.Error(), "id", record.ID)
		return err
	}
	return nil
}

// Records returns every record matching predicate.
func (b *BleveDB) Records(ctx context.Context, predicate query.Predicate) ([]Record, error) {
	var records []Record
	err := b.Search(ctx, SearchRequest{Filter: predicate}, func(match Match) error {
		records = append(records, match.Record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Search calls fn for every record matching the request, stopping after the
// configured maximum number of candidates. Text searches run best score
// first so the candidate limit drops the weakest matches; filters run in
// document id order.
func (b *BleveDB) Search(ctx context.Context, request SearchRequest, fn func(Match) error) error {
	filterQuery, err := translatePredicate(request.Filter)
	if err != nil {
		b.logger.Warn("could not translate filter", "err", err.Error())
		return fmt.Errorf("%w: %s", ErrInvalidQuery, err.Error())
	}

	searchQuery := filterQuery
	sortBy := []string{sortByDocumentID}
	textField := ""
	if request.Text != nil {
		translator := newTextTranslator(b.index.Mapping(), request.Text.Config)
		textQuery := translator.translate(request.Text.Root)
		if textQuery == nil {
			b.logger.Debug("text query has no searchable terms", "input", request.Text.Input)
			return nil
		}
		textField = translator.field
		searchQuery = bleve.NewConjunctionQuery(filterQuery, textQuery)
		sortBy = []string{sortByScore, sortByDocumentID}
	}

	return b.paginate(ctx, searchQuery, sortBy, request.WithLocations, func(hit *search.DocumentMatch) error {
		match, err := decodeHit(hit, textField)
		if err != nil {
			b.logger.Error("could not decode record", "err", err.Error(), "id", hit.ID)
			return err
		}
		return fn(match)
	})
}

func (b *BleveDB) paginate(ctx context.Context, searchQuery blevequery.Query, sortBy []string, withLocations bool, fn func(*search.DocumentMatch) error) error {
	maxCandidates := b.maxCandidates
	if maxCandidates <= 0 {
		maxCandidates = defaultMaxCandidates
	}

	for from := 0; from < maxCandidates; from += searchBatchSize {
		size := min(searchBatchSize, maxCandidates-from)
		searchRequest := bleve.NewSearchRequestOptions(searchQuery, size, from, false)
		searchRequest.SortBy(sortBy)
		searchRequest.Fields = []string{indexFieldSource}
		searchRequest.IncludeLocations = withLocations

		searchResult, err := b.index.SearchInContext(ctx, searchRequest)
		if err != nil {
			b.logger.Error("search failed", "err", err.Error())
			return fmt.Errorf("search failed: %w", err)
		}

		for _, hit := range searchResult.Hits {
			if err := fn(hit); err != nil {
				return err
			}
		}

		if len(searchResult.Hits) < size {
			return nil
		}
		if uint64(from+size) >= searchResult.Total {
			return nil
		}
	}

	b.logger.Warn("search truncated at the candidate limit", "limit", maxCandidates)
	return nil
}

func (b *BleveDB) documentIDs(ctx context.Context, searchQuery blevequery.Query) ([]string, error) {
	var ids []string
	err := b.paginate(ctx, searchQuery, []string{sortByDocumentID}, false, func(hit *search.DocumentMatch) error {
		ids = append(ids, hit.ID)
		return nil
	})
	return ids, err
}

func decodeHit(hit *search.DocumentMatch, textField string) (Match, error) {
	source, ok := hit.Fields[indexFieldSource].(string)
	if !ok {
		return Match{}, fmt.Errorf("record %s has no stored source", hit.ID)
	}

	var record Record
	if err := json.Unmarshal([]byte(source), &record); err != nil {
		return Match{}, err
	}

	score := hit.Score
	if math.IsNaN(score) || math.IsInf(score, 0) {
		score = 0
	}

	return Match{Record: record, Score: score, Spans: spans(hit.Locations, textField)}, nil
}

// spans flattens the term locations of field into byte ranges ordered by
// position.
func spans(locations search.FieldTermLocationMap, field string) []Span {
	if field == "" {
		return nil
	}
	var found []Span
	for _, termLocations := range locations[field] {
		for _, location := range termLocations {
			if location == nil {
				continue
			}
			found = append(found, Span{Start: int(location.Start), End: int(location.End)})
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].Start != found[j].Start {
			return found[i].Start < found[j].Start
		}
		return found[i].End < found[j].End
	})
	return found
}

func (b *BleveDB) GetDocCount() (uint64, error) {
	return b.index.DocCount()
}

func (b *BleveDB) Close() error {
	if b.index != nil {
		if err := b.index.Close(); err != nil {
			b.logger.Error("could not close search index", "err", err.Error())
			return err
		}
	}
	return nil
}
