package search

import (
	"cmp"
	"context"
	"crypto/md5"
	"encoding/hex"
	"slices"
	"strings"

	"github.com/meghashyamc/iiifsearch/db/searchdb"
	"github.com/meghashyamc/iiifsearch/query"
)

// order returns the ids of the matched resources in result order: by rank,
// by a record value of the resource or shuffled by a seed.
func (s *Service) order(ctx context.Context, plan *query.Plan, matched matchSet) ([]string, error) {
	ids := matched.ids()

	switch {
	case plan.Sort.ByField():
		keys, err := s.sortKeys(ctx, plan, matched)
		if err != nil {
			return nil, err
		}
		slices.SortStableFunc(ids, func(a, b string) int {
			if c := compareSortKeys(keys[a], keys[b], plan.Sort.Descending); c != 0 {
				return c
			}
			return byRank(matched, a, b)
		})
	case plan.Sort.Random:
		shuffled := make(map[string]string, len(ids))
		for _, id := range ids {
			sum := md5.Sum([]byte(id + plan.Sort.Seed))
			shuffled[id] = hex.EncodeToString(sum[:])
		}
		slices.SortStableFunc(ids, func(a, b string) int {
			return strings.Compare(shuffled[a], shuffled[b])
		})
	default:
		slices.SortStableFunc(ids, func(a, b string) int {
			return byRank(matched, a, b)
		})
	}
	return ids, nil
}

func byRank(matched matchSet, a, b string) int {
	if c := cmp.Compare(matched[b].rank, matched[a].rank); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// sortKey is the value a resource is sorted by: text for indexable,
// otherwise a number.
type sortKey struct {
	text   string
	number float64
}

// sortKeys reads the sort field from the records of the sort type and
// subtype. A resource with several such records sorts by its smallest value
// ascending and by its largest descending. Resources without one get no key.
func (s *Service) sortKeys(ctx context.Context, plan *query.Plan, matched matchSet) (map[string]*sortKey, error) {
	records, err := s.records.Records(ctx, query.AllOf(
		query.In(query.FieldResourceID, matched.ids()),
		plan.PreFilter,
		query.EqualsFold(query.FieldType, plan.Sort.Type),
		query.EqualsFold(query.FieldSubtype, plan.Sort.Subtype),
	))
	if err != nil {
		s.logger.Error("failed to read sort values", "err", err.Error())
		return nil, err
	}

	keys := make(map[string]*sortKey)
	for _, record := range records {
		if _, ok := matched[record.ResourceID]; !ok {
			continue
		}
		key, ok := recordSortKey(record, plan.Sort.Field)
		if !ok {
			continue
		}
		current := keys[record.ResourceID]
		if current == nil || compareSortKeys(&key, current, plan.Sort.Descending) < 0 {
			keys[record.ResourceID] = &key
		}
	}
	return keys, nil
}

func recordSortKey(record searchdb.Record, field query.Field) (sortKey, bool) {
	switch field {
	case query.FieldInt:
		if record.IndexableInt != nil {
			return sortKey{number: float64(*record.IndexableInt)}, true
		}
	case query.FieldFloat:
		if record.IndexableFloat != nil {
			return sortKey{number: *record.IndexableFloat}, true
		}
	case query.FieldDateStart:
		if record.DateRangeStart != nil {
			return sortKey{number: float64(record.DateRangeStart.Unix())}, true
		}
	case query.FieldDateEnd:
		if record.DateRangeEnd != nil {
			return sortKey{number: float64(record.DateRangeEnd.Unix())}, true
		}
	default:
		if record.Indexable != "" {
			return sortKey{text: strings.ToLower(record.Indexable)}, true
		}
	}
	return sortKey{}, false
}

// compareSortKeys orders a before b when it comes first in the requested
// direction. Missing keys always come last.
func compareSortKeys(a, b *sortKey, descending bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	c := cmp.Or(strings.Compare(a.text, b.text), cmp.Compare(a.number, b.number))
	if descending {
		return -c
	}
	return c
}
