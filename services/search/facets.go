package search

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/meghashyamc/iiifsearch/db/searchdb"
	"github.com/meghashyamc/iiifsearch/query"
	"golang.org/x/sync/errgroup"
)

type FacetValue struct {
	Value string
	Count int
}

// FacetValues encodes as a JSON object that keeps the order of its values.
type FacetValues []FacetValue

func (v FacetValues) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, value := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(value.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		count, err := json.Marshal(value.Count)
		if err != nil {
			return nil, err
		}
		buf.Write(count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Facets maps a record type to its subtypes and their most frequent values.
type Facets map[string]map[string]FacetValues

// facets counts, for every facet type of plan, how many of the given
// resources carry each value of each subtype. With facet_on_manifests the
// manifests of the resources are counted instead.
func (s *Service) facets(ctx context.Context, plan *query.Plan, ids []string) (Facets, error) {
	facets := Facets{}
	if plan.NumberOfFacets <= 0 || len(ids) == 0 {
		return facets, nil
	}

	facetable, err := s.facetable(ctx, plan, ids)
	if err != nil {
		return nil, err
	}
	if len(facetable) == 0 {
		return facets, nil
	}

	counted := make([]map[string]FacetValues, len(plan.FacetTypes))
	g, gctx := errgroup.WithContext(ctx)
	for i, facetType := range plan.FacetTypes {
		g.Go(func() error {
			values, err := s.facetType(gctx, plan, facetType, facetable)
			if err != nil {
				return err
			}
			counted[i] = values
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("failed to count facets", "err", err.Error())
		return nil, err
	}

	for i, facetType := range plan.FacetTypes {
		if len(counted[i]) > 0 {
			facets[facetType] = counted[i]
		}
	}
	return facets, nil
}

func (s *Service) facetType(ctx context.Context, plan *query.Plan, facetType string, facetable []string) (map[string]FacetValues, error) {
	var subtypes []query.Predicate
	for _, field := range plan.FacetFields {
		subtypes = append(subtypes, query.EqualsFold(query.FieldSubtype, field))
	}

	records, err := s.records.Records(ctx, query.AllOf(
		query.In(query.FieldResourceID, facetable),
		query.EqualsFold(query.FieldType, facetType),
		query.AnyOf(subtypes...),
	))
	if err != nil {
		return nil, err
	}

	// subtype -> value -> resources
	seen := make(map[string]map[string]map[string]struct{})
	for _, record := range records {
		if record.Indexable == "" || !inLanguages(record, plan.FacetLanguages) {
			continue
		}
		values, ok := seen[record.Subtype]
		if !ok {
			values = make(map[string]map[string]struct{})
			seen[record.Subtype] = values
		}
		if values[record.Indexable] == nil {
			values[record.Indexable] = make(map[string]struct{})
		}
		values[record.Indexable][record.ResourceID] = struct{}{}
	}

	counted := make(map[string]FacetValues, len(seen))
	for subtype, values := range seen {
		counted[subtype] = topValues(values, plan.NumberOfFacets)
	}
	return counted, nil
}

// topValues orders values by the number of resources, then by value, and
// keeps the first n.
func topValues(values map[string]map[string]struct{}, n int) FacetValues {
	facetValues := make(FacetValues, 0, len(values))
	for value, resources := range values {
		facetValues = append(facetValues, FacetValue{Value: value, Count: len(resources)})
	}
	slices.SortFunc(facetValues, func(a, b FacetValue) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Value, b.Value)
	})
	if len(facetValues) > n {
		facetValues = facetValues[:n]
	}
	return facetValues
}

// inLanguages reports whether the record is in one of languages. Records
// without a language are always in.
func inLanguages(record searchdb.Record, languages []string) bool {
	if len(languages) == 0 {
		return true
	}
	if record.ISO6391 == "" && record.ISO6392 == "" && record.LanguageDisplay == "" {
		return true
	}
	for _, language := range languages {
		if strings.EqualFold(language, record.ISO6391) ||
			strings.EqualFold(language, record.ISO6392) ||
			strings.EqualFold(language, record.LanguageDisplay) {
			return true
		}
	}
	return false
}

func (s *Service) facetable(ctx context.Context, plan *query.Plan, ids []string) ([]string, error) {
	if !plan.FacetOnManifests {
		return ids, nil
	}
	resources, err := s.resources.Resources(ids)
	if err != nil {
		s.logger.Error("failed to get resources", "err", err.Error())
		return nil, err
	}
	manifests, err := s.manifestsOf(ctx, resources)
	if err != nil {
		return nil, err
	}
	return setKeys(manifests), nil
}

// FacetFields lists the subtypes of every facet type of plan, sorted, among
// the resources in the scope of plan.
func (s *Service) FacetFields(ctx context.Context, plan *query.Plan) (map[string][]string, error) {
	scoped, err := s.resourceIDs(ctx, plan.PreFilter)
	if err != nil {
		return nil, err
	}

	fields := make(map[string][]string)
	if len(scoped) == 0 {
		return fields, nil
	}
	facetable, err := s.facetable(ctx, plan, setKeys(scoped))
	if err != nil {
		return nil, err
	}
	if len(facetable) == 0 {
		return fields, nil
	}

	for _, facetType := range plan.FacetTypes {
		records, err := s.records.Records(ctx, query.AllOf(
			query.In(query.FieldResourceID, facetable),
			query.EqualsFold(query.FieldType, facetType),
		))
		if err != nil {
			s.logger.Error("failed to list facet fields", "err", err.Error(), "type", facetType)
			return nil, err
		}
		subtypes := make(map[string]struct{})
		for _, record := range records {
			if record.Subtype != "" {
				subtypes[record.Subtype] = struct{}{}
			}
		}
		if len(subtypes) > 0 {
			fields[facetType] = setKeys(subtypes)
		}
	}
	return fields, nil
}
