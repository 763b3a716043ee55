package search

import (
	"context"
	"slices"
	"strings"

	"github.com/meghashyamc/iiifsearch/query"
)

const maxSuggestions = 10

type Suggestion struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Autocomplete suggests the most frequent record values that start with the
// autocomplete query, among the records of the resources plan matches.
func (s *Service) Autocomplete(ctx context.Context, plan *query.Plan) ([]Suggestion, error) {
	matched, err := s.match(ctx, plan)
	if err != nil {
		return nil, err
	}
	suggestions := []Suggestion{}
	if len(matched) == 0 {
		return suggestions, nil
	}

	conditions := []query.Predicate{query.In(query.FieldResourceID, matched.ids())}
	if plan.Autocomplete.Type != "" {
		conditions = append(conditions, query.EqualsFold(query.FieldType, plan.Autocomplete.Type))
	}
	if plan.Autocomplete.Subtype != "" {
		conditions = append(conditions, query.EqualsFold(query.FieldSubtype, plan.Autocomplete.Subtype))
	}
	if plan.Autocomplete.Query != "" {
		conditions = append(conditions, query.Match{Field: query.FieldValue, Op: query.OpIStartsWith, Value: plan.Autocomplete.Query})
	}

	records, err := s.records.Records(ctx, query.AllOf(conditions...))
	if err != nil {
		s.logger.Error("failed to read suggestions", "err", err.Error())
		return nil, err
	}

	counts := make(map[string]int)
	for _, record := range records {
		if record.Indexable != "" {
			counts[record.Indexable]++
		}
	}
	values := make([]string, 0, len(counts))
	for value := range counts {
		values = append(values, value)
	}
	slices.SortFunc(values, func(a, b string) int {
		if counts[a] != counts[b] {
			return counts[b] - counts[a]
		}
		return strings.Compare(a, b)
	})

	for _, value := range values[:min(len(values), maxSuggestions)] {
		suggestions = append(suggestions, Suggestion{ID: value, Text: value})
	}
	return suggestions, nil
}
