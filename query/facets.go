package query

// FacetQuery is one facet criterion of a search request. Criteria sharing
// a type and subtype are alternatives for the same facet field.
type FacetQuery struct {
	Type           string `json:"type"`
	Subtype        string `json:"subtype"`
	Value          any    `json:"value"`
	Indexable      any    `json:"indexable"`
	IndexableInt   any    `json:"indexable_int"`
	IndexableFloat any    `json:"indexable_float"`
	DateRangeStart any    `json:"indexable_date_range_start"`
	DateRangeEnd   any    `json:"indexable_date_range_end"`
	FieldLookup    string `json:"field_lookup"`
}

func (f FacetQuery) key() string {
	return f.Type + "|" + f.Subtype
}

// predicate is the conjunction of every condition the criterion sets. The
// conditions all apply to the same record. Values that cannot be coerced to
// their field's type are left out.
func (f FacetQuery) predicate() Predicate {
	var conditions []Predicate
	if f.Type != "" {
		conditions = append(conditions, EqualsFold(FieldType, f.Type))
	}
	if f.Subtype != "" {
		conditions = append(conditions, EqualsFold(FieldSubtype, f.Subtype))
	}

	valued := []struct {
		field Field
		value any
	}{
		{FieldValue, f.Value},
		{FieldValue, f.Indexable},
		{FieldInt, f.IndexableInt},
		{FieldFloat, f.IndexableFloat},
		{FieldDateStart, f.DateRangeStart},
		{FieldDateEnd, f.DateRangeEnd},
	}
	for _, v := range valued {
		if v.value == nil {
			continue
		}
		op := normalizeOp(v.field, Op(f.FieldLookup), facetDefaultOp(v.field))
		value, ok := matchValue(v.field, op, v.value)
		if !ok {
			continue
		}
		conditions = append(conditions, Match{Field: v.field, Op: op, Value: value})
	}

	return AllOf(conditions...)
}

// ComposeFacets groups criteria by type and subtype in the order the groups
// first appear. Each returned predicate is the OR of one group's criteria;
// a resource passes the facet filter when it satisfies every group.
func ComposeFacets(facets []FacetQuery) []Predicate {
	var order []string
	groups := make(map[string][]Predicate)
	for _, facet := range facets {
		key := facet.key()
		criterion := facet.predicate()
		if criterion == nil {
			continue
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], criterion)
	}

	composed := make([]Predicate, 0, len(order))
	for _, key := range order {
		composed = append(composed, AnyOf(groups[key]...))
	}
	return composed
}
