package search

import (
	"context"
	"slices"
	"strings"

	"github.com/meghashyamc/iiifsearch/db/kvdb"
	"github.com/meghashyamc/iiifsearch/db/searchdb"
	"github.com/meghashyamc/iiifsearch/query"
)

const typeManifest = "manifest"

type hit struct {
	record searchdb.Record
	rank   float64
	spans  []searchdb.Span
}

// candidate is a resource with at least one matching record. Its rank is
// the best rank among those records.
type candidate struct {
	id   string
	rank float64
	hits []hit
}

type matchSet map[string]*candidate

func (m matchSet) add(resourceID string, rank float64) *candidate {
	c, ok := m[resourceID]
	if !ok {
		c = &candidate{id: resourceID, rank: rank}
		m[resourceID] = c
	}
	c.rank = max(c.rank, rank)
	return c
}

func (m matchSet) addHit(record searchdb.Record, rank float64, spans []searchdb.Span) {
	c := m.add(record.ResourceID, rank)
	c.hits = append(c.hits, hit{record: record, rank: rank, spans: spans})
}

func (m matchSet) retain(keep map[string]struct{}) {
	for id := range m {
		if _, ok := keep[id]; !ok {
			delete(m, id)
		}
	}
}

func (m matchSet) ids() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// match runs the record stages of plan (scope, filters and text) and then
// narrows the matching resources with the facet groups.
func (s *Service) match(ctx context.Context, plan *query.Plan) (matchSet, error) {
	matched, err := s.matchRecords(ctx, plan)
	if err != nil {
		return nil, err
	}
	if len(plan.FacetGroups) == 0 || len(matched) == 0 {
		return matched, nil
	}

	if plan.FacetOnManifests {
		err = s.filterByManifests(ctx, plan, matched)
	} else {
		err = s.filterByFacets(ctx, plan, matched)
	}
	if err != nil {
		return nil, err
	}
	return matched, nil
}

func (s *Service) matchRecords(ctx context.Context, plan *query.Plan) (matchSet, error) {
	filter := query.AllOf(plan.PreFilter, plan.Filter)
	switch {
	case len(plan.Substrings) > 0:
		return s.matchSubstrings(ctx, filter, plan.Substrings)
	case plan.Text != nil && plan.Text.Type.IsTrigram():
		return s.matchTrigrams(ctx, filter, plan.Text)
	case plan.Text != nil:
		return s.matchText(ctx, filter, plan.Text)
	}

	matched := matchSet{}
	records, err := s.records.Records(ctx, filter)
	if err != nil {
		s.logger.Error("failed to filter records", "err", err.Error())
		return nil, err
	}
	for _, record := range records {
		matched.add(record.ResourceID, 0)
	}
	return matched, nil
}

func (s *Service) matchText(ctx context.Context, filter query.Predicate, text *query.TextQuery) (matchSet, error) {
	matched := matchSet{}
	request := searchdb.SearchRequest{Filter: filter, Text: text, WithLocations: true}
	err := s.records.Search(ctx, request, func(match searchdb.Match) error {
		matched.addHit(match.Record, match.Score, match.Spans)
		return nil
	})
	if err != nil {
		s.logger.Error("text search failed", "err", err.Error(), "fulltext", text.Input)
		return nil, err
	}
	return matched, nil
}

// matchTrigrams ranks every filtered record by its trigram similarity to the
// query and keeps the ones that reach the threshold of the search type.
func (s *Service) matchTrigrams(ctx context.Context, filter query.Predicate, text *query.TextQuery) (matchSet, error) {
	records, err := s.records.Records(ctx, filter)
	if err != nil {
		s.logger.Error("failed to filter records", "err", err.Error())
		return nil, err
	}

	threshold := s.options.TrigramThreshold
	similarity := trigramSimilarity
	if text.Type == query.SearchTrigramWord {
		threshold = s.options.TrigramWordThreshold
		similarity = wordSimilarity
	}

	queryTrigrams := newTrigramQuery(text.Input)
	matched := matchSet{}
	for _, record := range records {
		if record.Indexable == "" {
			continue
		}
		rank := similarity(queryTrigrams, record.Indexable)
		if rank < threshold {
			continue
		}
		matched.addHit(record, rank, queryTrigrams.similarWords(record.Indexable, s.options.TrigramThreshold))
	}
	return matched, nil
}

// matchSubstrings finds records containing any of substrings, ignoring
// case, and keeps the resources whose records contain all of them.
func (s *Service) matchSubstrings(ctx context.Context, filter query.Predicate, substrings []string) (matchSet, error) {
	contains := make([]query.Predicate, 0, len(substrings))
	for _, substring := range substrings {
		contains = append(contains, query.Match{Field: query.FieldValue, Op: query.OpIContains, Value: substring})
	}

	records, err := s.records.Records(ctx, query.AllOf(filter, query.AnyOf(contains...)))
	if err != nil {
		s.logger.Error("substring search failed", "err", err.Error())
		return nil, err
	}

	queryTrigrams := newTrigramQuery(strings.Join(substrings, " "))
	found := make(map[string]map[int]struct{})
	matched := matchSet{}
	for _, record := range records {
		spans, indexes := substringSpans(record.Indexable, substrings)
		if len(indexes) == 0 {
			continue
		}
		if found[record.ResourceID] == nil {
			found[record.ResourceID] = make(map[int]struct{})
		}
		for _, i := range indexes {
			found[record.ResourceID][i] = struct{}{}
		}
		matched.addHit(record, trigramSimilarity(queryTrigrams, record.Indexable), spans)
	}

	for id := range matched {
		if len(found[id]) < len(substrings) {
			delete(matched, id)
		}
	}
	return matched, nil
}

// filterByFacets keeps the resources that have a matching record for every
// facet group. Different groups may be met by different records.
func (s *Service) filterByFacets(ctx context.Context, plan *query.Plan, matched matchSet) error {
	for _, group := range plan.FacetGroups {
		ids, err := s.resourceIDs(ctx, query.AllOf(query.In(query.FieldResourceID, matched.ids()), plan.PreFilter, group))
		if err != nil {
			return err
		}
		matched.retain(ids)
		if len(matched) == 0 {
			return nil
		}
	}
	return nil
}

// filterByManifests applies the facet groups to the manifests the matching
// resources belong to and keeps the resources of the manifests that pass.
func (s *Service) filterByManifests(ctx context.Context, plan *query.Plan, matched matchSet) error {
	resources, err := s.resources.Resources(matched.ids())
	if err != nil {
		s.logger.Error("failed to get resources", "err", err.Error())
		return err
	}

	manifests, err := s.manifestsOf(ctx, resources)
	if err != nil {
		return err
	}
	for _, group := range plan.FacetGroups {
		if len(manifests) == 0 {
			break
		}
		ids, err := s.resourceIDs(ctx, query.AllOf(query.In(query.FieldResourceID, setKeys(manifests)), group))
		if err != nil {
			return err
		}
		manifests = intersect(manifests, ids)
	}

	keep := make(map[string]struct{})
	for id, resource := range resources {
		for _, contextID := range resource.ContextIDs() {
			if _, ok := manifests[contextID]; ok {
				keep[id] = struct{}{}
				break
			}
		}
	}
	matched.retain(keep)
	return nil
}

// manifestsOf returns the madoc ids of the manifests that share a manifest
// context with any of resources. A manifest is its own context.
func (s *Service) manifestsOf(ctx context.Context, resources map[string]*kvdb.Resource) (map[string]struct{}, error) {
	contexts := make(map[string]struct{})
	for _, resource := range resources {
		for _, id := range resource.ContextIDsOfType(typeManifest) {
			contexts[id] = struct{}{}
		}
	}
	if len(contexts) == 0 {
		return map[string]struct{}{}, nil
	}

	return s.resourceIDs(ctx, query.AllOf(
		query.EqualsFold(query.FieldResourceType, typeManifest),
		query.In(query.FieldContexts, setKeys(contexts)),
	))
}

func (s *Service) resourceIDs(ctx context.Context, predicate query.Predicate) (map[string]struct{}, error) {
	records, err := s.records.Records(ctx, predicate)
	if err != nil {
		s.logger.Error("failed to filter records", "err", err.Error())
		return nil, err
	}
	ids := make(map[string]struct{}, len(records))
	for _, record := range records {
		ids[record.ResourceID] = struct{}{}
	}
	return ids, nil
}

func setKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	both := make(map[string]struct{})
	for key := range a {
		if _, ok := b[key]; ok {
			both[key] = struct{}{}
		}
	}
	return both
}
