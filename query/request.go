package query

import (
	"bytes"
	"encoding/json"

	"github.com/mitchellh/mapstructure"
)

// Request is the body of the search, facets and autocomplete endpoints.
type Request struct {
	Fulltext             string              `json:"fulltext"`
	SearchLanguage       string              `json:"search_language"`
	SearchType           string              `json:"search_type" validate:"omitempty,valid_search_type"`
	Facets               []FacetQuery        `json:"facets"`
	FacetFields          []string            `json:"facet_fields"`
	FacetTypes           []string            `json:"facet_types"`
	FacetLanguages       []string            `json:"facet_languages"`
	FacetOnManifests     *bool               `json:"facet_on_manifests"`
	Contexts             []string            `json:"contexts"`
	ContextsAll          []string            `json:"contexts_all"`
	MadocIdentifiers     []string            `json:"madoc_identifiers"`
	IIIFIdentifiers      []string            `json:"iiif_identifiers"`
	DateStart            string              `json:"date_start"`
	DateEnd              string              `json:"date_end"`
	DateExact            string              `json:"date_exact"`
	Integer              *NumericFilter      `json:"integer"`
	Float                *NumericFilter      `json:"float"`
	Raw                  map[string]any      `json:"raw"`
	Ordering             *Ordering           `json:"ordering"`
	NumberOfFacets       *int                `json:"number_of_facets" validate:"omitempty,min=0"`
	MetadataFields       map[string][]string `json:"metadata_fields"`
	NonLatinFulltext     *bool               `json:"non_latin_fulltext"`
	SearchMultipleFields *bool               `json:"search_multiple_fields"`
	PageSize             int                 `json:"page_size" validate:"omitempty,min=1,max=1000"`

	Type            string `json:"type"`
	Subtype         string `json:"subtype"`
	LanguageISO6391 string `json:"language_iso639_1"`
	LanguageISO6392 string `json:"language_iso639_2"`
	LanguageDisplay string `json:"language_display"`
	SearchConfig    string `json:"language_pg"`

	AutocompleteType    string `json:"autocomplete_type"`
	AutocompleteSubtype string `json:"autocomplete_subtype"`
	AutocompleteQuery   string `json:"autocomplete_query"`
}

type NumericFilter struct {
	Value    any    `json:"value"`
	Operator string `json:"operator"`
}

// Ordering sorts results by the value of one indexable field of the records
// with the given type and subtype, or pseudo-randomly by seed.
type Ordering struct {
	Type         string `json:"type" mapstructure:"type"`
	Subtype      string `json:"subtype" mapstructure:"subtype"`
	ValueForSort string `json:"value_for_sort" mapstructure:"value_for_sort"`
	Direction    string `json:"direction" mapstructure:"direction" validate:"omitempty,valid_direction"`
	RandomSort   bool   `json:"random_sort" mapstructure:"random_sort"`
	RandomSeed   string `json:"random_seed" mapstructure:"random_seed"`
}

// UnmarshalJSON accepts an ordering object with loosely typed members, such
// as a numeric seed or "true" as a string. A bare string such as "-rank"
// selects the default rank ordering.
func (o *Ordering) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	members, ok := raw.(map[string]any)
	if !ok {
		*o = Ordering{}
		return nil
	}
	var ordering Ordering
	if err := mapstructure.WeakDecode(members, &ordering); err != nil {
		return err
	}
	*o = ordering
	return nil
}

// DecodeRequest reads a request body. An empty body is an empty request.
func DecodeRequest(body []byte) (*Request, error) {
	request := &Request{}
	if len(bytes.TrimSpace(body)) == 0 {
		return request, nil
	}
	if err := json.Unmarshal(body, request); err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}
	return request, nil
}
