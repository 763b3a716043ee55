package query

import (
	"maps"
	"slices"
	"strings"

	"github.com/meghashyamc/iiifsearch/languages"
)

const (
	defaultFacetType      = "metadata"
	defaultNumberOfFacets = 10
	defaultPageSize       = 25
	rawPrefix             = "indexables__"
)

type Options struct {
	FacetOnManifests     bool
	NonLatinFulltext     bool
	SearchMultipleFields bool
	NumberOfFacets       int
	PageSize             int
	// FulltextScripts names the unicode scripts the text index can
	// tokenise. Queries in other scripts are matched by substring.
	FulltextScripts []string
}

// Parser turns decoded requests into plans. It is safe for concurrent use.
type Parser struct {
	options   Options
	languages *languages.Table
	scripts   *ScriptClassifier
}

func NewParser(options Options, table *languages.Table) *Parser {
	if options.NumberOfFacets <= 0 {
		options.NumberOfFacets = defaultNumberOfFacets
	}
	if options.PageSize <= 0 {
		options.PageSize = defaultPageSize
	}
	return &Parser{
		options:   options,
		languages: table,
		scripts:   NewScriptClassifier(options.FulltextScripts),
	}
}

// Plan is a search request broken into the stages the executor applies in
// order: PreFilter and Filter select records, FacetGroups and Substrings
// then narrow the resources those records belong to.
type Plan struct {
	// PreFilter scopes the search to resources by identity and context.
	PreFilter Predicate
	// Filter holds the record level conditions that must hold on the same
	// record as the text match.
	Filter Predicate
	// Text is nil when there is no full-text query.
	Text *TextQuery
	// Substrings are matched case-insensitively against the record text
	// when the query cannot go through the text index. Each one must be
	// found in some record of the resource.
	Substrings  []string
	FacetGroups []Predicate

	FacetOnManifests bool
	FacetTypes       []string
	FacetFields      []string
	FacetLanguages   []string
	NumberOfFacets   int

	Sort           Sort
	Autocomplete   Autocomplete
	MetadataFields map[string][]string
	PageSize       int
}

type Sort struct {
	Type       string
	Subtype    string
	Field      Field
	Descending bool
	Random     bool
	Seed       string
}

// ByField reports whether results are ordered by a record value rather than
// by rank.
func (s Sort) ByField() bool {
	return s.Type != "" && s.Subtype != ""
}

type Autocomplete struct {
	Type    string
	Subtype string
	Query   string
}

// Parse decodes body and builds its plan. siteURN, when set, limits the
// search to resources whose id starts with it.
func (p *Parser) Parse(body []byte, siteURN string) (*Plan, error) {
	request, err := DecodeRequest(body)
	if err != nil {
		return nil, err
	}
	return p.Plan(request, siteURN), nil
}

func (p *Parser) Plan(request *Request, siteURN string) *Plan {
	plan := &Plan{
		FacetOnManifests: boolOr(request.FacetOnManifests, p.options.FacetOnManifests),
		FacetTypes:       request.FacetTypes,
		FacetFields:      request.FacetFields,
		FacetLanguages:   request.FacetLanguages,
		NumberOfFacets:   p.options.NumberOfFacets,
		MetadataFields:   request.MetadataFields,
		PageSize:         p.options.PageSize,
		Autocomplete: Autocomplete{
			Type:    request.AutocompleteType,
			Subtype: request.AutocompleteSubtype,
			Query:   request.AutocompleteQuery,
		},
	}
	if len(plan.FacetTypes) == 0 {
		plan.FacetTypes = []string{defaultFacetType}
	}
	if request.NumberOfFacets != nil {
		plan.NumberOfFacets = *request.NumberOfFacets
	}
	if request.PageSize > 0 {
		plan.PageSize = request.PageSize
	}

	plan.PreFilter = p.preFilter(request, siteURN)
	filters := p.filters(request)

	if fulltext := strings.TrimSpace(request.Fulltext); fulltext != "" {
		nonLatin := boolOr(request.NonLatinFulltext, p.options.NonLatinFulltext)
		multipleFields := boolOr(request.SearchMultipleFields, p.options.SearchMultipleFields)
		if (nonLatin || p.scripts.Accepts(fulltext)) && !multipleFields {
			searchType := SearchType(request.SearchType)
			if !IsSearchType(request.SearchType) {
				searchType = SearchWeb
			}
			plan.Text = newTextQuery(fulltext, searchType, p.languages.SearchConfig(request.SearchLanguage))
		} else {
			plan.Substrings = strings.Fields(fulltext)
		}
	}

	plan.Filter = AllOf(filters...)
	plan.FacetGroups = ComposeFacets(request.Facets)
	plan.Sort = sortFor(request.Ordering)

	return plan
}

func (p *Parser) preFilter(request *Request, siteURN string) Predicate {
	var scope []Predicate
	if siteURN != "" {
		scope = append(scope, Match{Field: FieldResourceID, Op: OpStartsWith, Value: siteURN})
	}
	if len(request.Contexts) > 0 {
		scope = append(scope, In(FieldContexts, request.Contexts))
	}
	for _, context := range request.ContextsAll {
		scope = append(scope, EqualsFold(FieldContexts, context))
	}
	if len(request.MadocIdentifiers) > 0 {
		scope = append(scope, In(FieldResourceID, request.MadocIdentifiers))
	}
	if len(request.IIIFIdentifiers) > 0 {
		scope = append(scope, In(FieldSourceID, request.IIIFIdentifiers))
	}
	return AllOf(scope...)
}

func (p *Parser) filters(request *Request) []Predicate {
	var filters []Predicate

	exact := []struct {
		field Field
		value string
	}{
		{FieldType, request.Type},
		{FieldSubtype, request.Subtype},
		{FieldISO6392, request.LanguageISO6392},
		{FieldISO6391, request.LanguageISO6391},
		{FieldLanguageDisplay, request.LanguageDisplay},
		{FieldSearchConfig, request.SearchConfig},
	}
	for _, e := range exact {
		if e.value != "" {
			filters = append(filters, EqualsFold(e.field, e.value))
		}
	}

	filters = append(filters, rawFilters(request.Raw)...)
	filters = append(filters, numericFilter(FieldFloat, request.Float)...)
	filters = append(filters, numericFilter(FieldInt, request.Integer)...)
	filters = append(filters, dateFilters(request.DateStart, request.DateEnd, request.DateExact)...)

	return filters
}

// rawFilters reads "indexables__<field>[__<op>]" keys. Keys outside that
// prefix, unknown fields and values of the wrong type are ignored.
func rawFilters(raw map[string]any) []Predicate {
	var filters []Predicate
	for _, key := range slices.Sorted(maps.Keys(raw)) {
		value := raw[key]
		path, ok := strings.CutPrefix(key, rawPrefix)
		if !ok {
			continue
		}
		name, op, _ := strings.Cut(path, "__")
		field := Field(name)
		if !isRecordField(field) {
			continue
		}
		lookup := OpExact
		if op != "" {
			lookup = Op(op)
		}
		if !field.Allows(lookup) {
			continue
		}
		matched, ok := matchValue(field, lookup, value)
		if !ok {
			continue
		}
		filters = append(filters, Match{Field: field, Op: lookup, Value: matched})
	}
	return filters
}

func isRecordField(field Field) bool {
	switch field {
	case FieldType, FieldSubtype, FieldValue, FieldOriginalContent, FieldContentID,
		FieldISO6391, FieldISO6392, FieldLanguageDisplay, FieldSearchConfig,
		FieldInt, FieldFloat, FieldDateStart, FieldDateEnd:
		return true
	}
	return false
}

func numericFilter(field Field, filter *NumericFilter) []Predicate {
	if filter == nil || filter.Value == nil {
		return nil
	}
	value, ok := numberValue(filter.Value)
	if !ok {
		return nil
	}
	op := normalizeOp(field, Op(filter.Operator), OpExact)
	return []Predicate{Match{Field: field, Op: op, Value: value}}
}

// dateFilters turns the date fields of a request into range conditions:
// a range ending on or after start, a range starting on or before end, and
// a range that starts and ends exactly on exact. Unparseable dates are
// skipped.
func dateFilters(start, end, exact string) []Predicate {
	var filters []Predicate
	if start != "" {
		if date, ok := parseDate(start); ok {
			filters = append(filters, Match{Field: FieldDateEnd, Op: OpGte, Value: date})
		}
	}
	if end != "" {
		if date, ok := parseDate(end); ok {
			filters = append(filters, Match{Field: FieldDateStart, Op: OpLte, Value: date})
		}
	}
	if exact != "" {
		if date, ok := parseDate(exact); ok {
			filters = append(filters,
				Match{Field: FieldDateStart, Op: OpExact, Value: date},
				Match{Field: FieldDateEnd, Op: OpExact, Value: date},
			)
		}
	}
	return filters
}

func sortFor(ordering *Ordering) Sort {
	if ordering == nil {
		return Sort{}
	}
	if ordering.Type != "" && ordering.Subtype != "" {
		field := Field(ordering.ValueForSort)
		switch field {
		case FieldValue, FieldInt, FieldFloat, FieldDateStart, FieldDateEnd:
		default:
			field = FieldValue
		}
		return Sort{
			Type:       ordering.Type,
			Subtype:    ordering.Subtype,
			Field:      field,
			Descending: ordering.Direction == "descending",
		}
	}
	if ordering.RandomSort && ordering.RandomSeed != "" {
		return Sort{Random: true, Seed: ordering.RandomSeed}
	}
	return Sort{}
}

func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}
