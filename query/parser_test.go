package query

import (
	"errors"
	"testing"
	"time"

	"github.com/meghashyamc/iiifsearch/languages"
	"github.com/stretchr/testify/require"
)

func newTestParser() *Parser {
	return NewParser(Options{FulltextScripts: []string{"Latin"}}, languages.DefaultTable())
}

func TestParseMalformedBody(t *testing.T) {
	assert := require.New(t)

	_, err := newTestParser().Parse([]byte(`{"fulltext": `), "")
	assert.Error(err)
	assert.True(errors.Is(err, ErrParse))

	var parseErr *ParseError
	assert.True(errors.As(err, &parseErr))
}

func TestParseEmptyBody(t *testing.T) {
	assert := require.New(t)

	plan, err := newTestParser().Parse(nil, "")
	assert.NoError(err)
	assert.Nil(plan.PreFilter)
	assert.Nil(plan.Filter)
	assert.Nil(plan.Text)
	assert.Equal([]string{"metadata"}, plan.FacetTypes)
	assert.Equal(10, plan.NumberOfFacets)
	assert.Equal(25, plan.PageSize)
}

func TestParseScopes(t *testing.T) {
	assert := require.New(t)

	body := `{
		"contexts": ["urn:site:1", "urn:site:2"],
		"contexts_all": ["urn:collection:9", "urn:manifest:4"],
		"madoc_identifiers": ["urn:madoc:site:1:manifest:4"],
		"iiif_identifiers": ["https://example.org/manifest.json"]
	}`
	plan, err := newTestParser().Parse([]byte(body), "urn:madoc:site:1")
	assert.NoError(err)

	assert.Equal(And{
		Match{Field: FieldResourceID, Op: OpStartsWith, Value: "urn:madoc:site:1"},
		In(FieldContexts, []string{"urn:site:1", "urn:site:2"}),
		EqualsFold(FieldContexts, "urn:collection:9"),
		EqualsFold(FieldContexts, "urn:manifest:4"),
		In(FieldResourceID, []string{"urn:madoc:site:1:manifest:4"}),
		In(FieldSourceID, []string{"https://example.org/manifest.json"}),
	}, plan.PreFilter)
}

func TestParseFulltext(t *testing.T) {
	testCases := []struct {
		name               string
		body               string
		expectedType       SearchType
		expectedConfig     string
		expectedSubstrings []string
	}{
		{
			name:           "Latin text uses the index",
			body:           `{"fulltext": "Bundesregierung", "search_language": "german"}`,
			expectedType:   SearchWeb,
			expectedConfig: "german",
		},
		{
			name:           "Language tag resolves to a configuration",
			body:           `{"fulltext": "Bundesregierung", "search_language": "de", "search_type": "plain"}`,
			expectedType:   SearchPlain,
			expectedConfig: "german",
		},
		{
			name:         "Unknown search type falls back to websearch",
			body:         `{"fulltext": "gold", "search_type": "fuzzy"}`,
			expectedType: SearchWeb,
		},
		{
			name:               "Non Latin text is matched by substring",
			body:               `{"fulltext": "京城 [서울]"}`,
			expectedSubstrings: []string{"京城", "[서울]"},
		},
		{
			name:         "Non Latin text can be forced through the index",
			body:         `{"fulltext": "京城書籍業組合", "non_latin_fulltext": true}`,
			expectedType: SearchWeb,
		},
		{
			name:               "Searching multiple fields forces substrings",
			body:               `{"fulltext": "gold leaf", "search_multiple_fields": true}`,
			expectedSubstrings: []string{"gold", "leaf"},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)

			plan, err := newTestParser().Parse([]byte(testCase.body), "")
			assert.NoError(err)

			if testCase.expectedSubstrings != nil {
				assert.Nil(plan.Text)
				assert.Equal(testCase.expectedSubstrings, plan.Substrings)
				return
			}
			assert.NotNil(plan.Text)
			assert.Empty(plan.Substrings)
			assert.Equal(testCase.expectedType, plan.Text.Type)
			assert.Equal(testCase.expectedConfig, plan.Text.Config)
		})
	}
}

func TestParseFilters(t *testing.T) {
	assert := require.New(t)
	date := time.Date(1690, time.January, 1, 0, 0, 0, 0, time.UTC)

	body := `{
		"type": "metadata",
		"language_iso639_1": "en",
		"raw": {
			"indexables__subtype__istartswith": "auth",
			"indexables__indexable_int__gt": 3,
			"indexables__unknown": "x",
			"resource__id": "y"
		},
		"float": {"value": 2.5, "operator": "between"},
		"integer": {"value": 4, "operator": "gte"},
		"date_exact": "1690"
	}`
	plan, err := newTestParser().Parse([]byte(body), "")
	assert.NoError(err)

	assert.Equal(And{
		EqualsFold(FieldType, "metadata"),
		EqualsFold(FieldISO6391, "en"),
		Match{Field: FieldInt, Op: OpGt, Value: float64(3)},
		Match{Field: FieldSubtype, Op: OpIStartsWith, Value: "auth"},
		Match{Field: FieldFloat, Op: OpExact, Value: 2.5},
		Match{Field: FieldInt, Op: OpGte, Value: float64(4)},
		Match{Field: FieldDateStart, Op: OpExact, Value: date},
		Match{Field: FieldDateEnd, Op: OpExact, Value: date},
	}, plan.Filter)
}

func TestParseDateRanges(t *testing.T) {
	assert := require.New(t)

	plan, err := newTestParser().Parse([]byte(`{"date_start": "1600", "date_end": "1700-06-30", "date_exact": "whenever"}`), "")
	assert.NoError(err)

	assert.Equal(And{
		Match{Field: FieldDateEnd, Op: OpGte, Value: time.Date(1600, time.January, 1, 0, 0, 0, 0, time.UTC)},
		Match{Field: FieldDateStart, Op: OpLte, Value: time.Date(1700, time.June, 30, 0, 0, 0, 0, time.UTC)},
	}, plan.Filter)
}

func TestParseOrdering(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		expected Sort
	}{
		{
			name:     "Field ordering",
			body:     `{"ordering": {"type": "metadata", "subtype": "date", "value_for_sort": "indexable_date_range_start", "direction": "descending"}}`,
			expected: Sort{Type: "metadata", Subtype: "date", Field: FieldDateStart, Descending: true},
		},
		{
			name:     "Unknown sort value uses the text",
			body:     `{"ordering": {"type": "metadata", "subtype": "title", "value_for_sort": "id"}}`,
			expected: Sort{Type: "metadata", Subtype: "title", Field: FieldValue},
		},
		{
			name:     "Random ordering with a numeric seed",
			body:     `{"ordering": {"random_sort": true, "random_seed": 42}}`,
			expected: Sort{Random: true, Seed: "42"},
		},
		{
			name:     "Ordering string means rank",
			body:     `{"ordering": "-rank"}`,
			expected: Sort{},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			plan, err := newTestParser().Parse([]byte(testCase.body), "")
			assert.NoError(err)
			assert.Equal(testCase.expected, plan.Sort)
		})
	}
}

func TestParseFacetOptions(t *testing.T) {
	assert := require.New(t)

	parser := NewParser(Options{FacetOnManifests: true, NumberOfFacets: 5, PageSize: 10}, languages.DefaultTable())
	plan, err := parser.Parse([]byte(`{
		"facet_types": ["metadata", "descriptive"],
		"facet_on_manifests": false,
		"number_of_facets": 3,
		"page_size": 50,
		"facets": [{"type": "metadata", "subtype": "material", "value": "paper"}]
	}`), "")
	assert.NoError(err)

	assert.False(plan.FacetOnManifests)
	assert.Equal([]string{"metadata", "descriptive"}, plan.FacetTypes)
	assert.Equal(3, plan.NumberOfFacets)
	assert.Equal(50, plan.PageSize)
	assert.Len(plan.FacetGroups, 1)

	plan, err = parser.Parse([]byte(`{}`), "")
	assert.NoError(err)
	assert.True(plan.FacetOnManifests)
	assert.Equal(5, plan.NumberOfFacets)
	assert.Equal(10, plan.PageSize)
}
