package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var parseQuotedQueryTestCases = []struct {
	name              string
	input             string
	expectedQuoted    []string
	expectedRemaining string
}{
	{
		name:              "Simple quoted phrase",
		input:             `"hello world"`,
		expectedQuoted:    []string{"hello world"},
		expectedRemaining: "",
	},
	{
		name:              "Quoted phrase with remaining terms",
		input:             `"hello world" test golang`,
		expectedQuoted:    []string{"hello world"},
		expectedRemaining: "test golang",
	},
	{
		name:              "Multiple quoted phrases",
		input:             `"hello world" test "another phrase"`,
		expectedQuoted:    []string{"hello world", "another phrase"},
		expectedRemaining: "test",
	},
	{
		name:              "No quotes",
		input:             `hello world test`,
		expectedQuoted:    nil,
		expectedRemaining: "hello world test",
	},
	{
		name:              "Empty quoted phrase",
		input:             `"" test`,
		expectedQuoted:    nil,
		expectedRemaining: "test",
	},
	{
		name:              "Quoted phrase with extra spaces",
		input:             `"  hello world  " test`,
		expectedQuoted:    []string{"hello world"},
		expectedRemaining: "test",
	},
	{
		name:              "Multiple quoted phrases with spaces",
		input:             `  "first phrase"   test   "second phrase"  `,
		expectedQuoted:    []string{"first phrase", "second phrase"},
		expectedRemaining: "test",
	},
}

func TestParseQuotedQuery(t *testing.T) {
	assert := require.New(t)
	for _, testCase := range parseQuotedQueryTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			quoted, remaining := parseQuotedQuery(testCase.input)

			assert.Equal(quoted, testCase.expectedQuoted, "quoted phrases should match")
			assert.Equal(remaining, testCase.expectedRemaining, "remaining (not quoted) terms should match")
		})
	}
}

func TestTextQueryDialects(t *testing.T) {
	testCases := []struct {
		name       string
		input      string
		searchType SearchType
		expected   TextExpr
	}{
		{
			name:       "Websearch requires every word",
			input:      "gold leaf",
			searchType: SearchWeb,
			expected:   TextAnd{Term{Text: "gold"}, Term{Text: "leaf"}},
		},
		{
			name:       "Websearch phrase, alternative and exclusion",
			input:      `"book of hours" gold or silver -fragment`,
			searchType: SearchWeb,
			expected: TextAnd{
				Term{Text: "book of hours", Phrase: true},
				TextOr{Term{Text: "gold"}, Term{Text: "silver"}},
				TextNot{Expr: Term{Text: "fragment"}},
			},
		},
		{
			name:       "Websearch with only exclusions has no query",
			input:      "-fragment",
			searchType: SearchWeb,
			expected:   nil,
		},
		{
			name:       "Plain single word",
			input:      "  Mietzsching ",
			searchType: SearchPlain,
			expected:   Term{Text: "Mietzsching"},
		},
		{
			name:       "Phrase collapses whitespace",
			input:      "book   of hours",
			searchType: SearchPhrase,
			expected:   Term{Text: "book of hours", Phrase: true},
		},
		{
			name:       "Raw boolean syntax",
			input:      "(gold | silver) & !fragment",
			searchType: SearchRaw,
			expected: TextAnd{
				TextOr{Term{Text: "gold"}, Term{Text: "silver"}},
				TextNot{Expr: Term{Text: "fragment"}},
			},
		},
		{
			name:       "Raw adjacent words are joined with and",
			input:      "gold leaf:*",
			searchType: SearchRaw,
			expected:   TextAnd{Term{Text: "gold"}, Term{Text: "leaf"}},
		},
		{
			name:       "Trigram has no expression",
			input:      "Mietzsching",
			searchType: SearchTrigram,
			expected:   nil,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			textQuery := newTextQuery(testCase.input, testCase.searchType, "english")
			assert.Equal(testCase.expected, textQuery.Root)
			assert.Equal("english", textQuery.Config)
		})
	}
}

func TestSearchTypes(t *testing.T) {
	assert := require.New(t)

	assert.True(IsSearchType("websearch"))
	assert.True(IsSearchType("trigram_word"))
	assert.False(IsSearchType("fuzzy"))
	assert.True(SearchTrigramWord.IsTrigram())
	assert.False(SearchPhrase.IsTrigram())
}
