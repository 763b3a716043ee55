package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/meghashyamc/iiifsearch/db/kvdb"
	"github.com/meghashyamc/iiifsearch/db/searchdb"
	"github.com/meghashyamc/iiifsearch/flatten"
	"github.com/meghashyamc/iiifsearch/languages"
	"github.com/meghashyamc/iiifsearch/logger"
	"github.com/meghashyamc/iiifsearch/query"
	"github.com/meghashyamc/iiifsearch/services/index"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	service *Service
	indexer *index.Service
	records *searchdb.BleveDB
	store   *kvdb.Store
	parser  *query.Parser
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	return newTestEnvWithLimit(t, 1000)
}

func newTestEnvWithLimit(t *testing.T, maxCandidates int) testEnv {
	t.Helper()
	log := logger.New()

	records, err := searchdb.NewInMemory(log, maxCandidates)
	require.NoError(t, err)
	t.Cleanup(func() { records.Close() })

	bolt, err := kvdb.Open(log, filepath.Join(t.TempDir(), "kvdb", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })
	store := kvdb.NewStore(bolt)

	table := languages.DefaultTable()
	return testEnv{
		service: New(log, records, store, Options{}),
		indexer: index.New(log, records, store, flatten.New(flatten.Config{DefaultLanguage: "en"}), table),
		records: records,
		store:   store,
		parser:  query.NewParser(query.Options{FulltextScripts: []string{"Latin"}}, table),
	}
}

func (e testEnv) ingest(t *testing.T, id string, contexts []string, resource string, cascade bool) {
	t.Helper()
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(resource), &decoded))

	refs := make([]kvdb.ContextRef, 0, len(contexts))
	for _, context := range contexts {
		refs = append(refs, kvdb.ContextRef{ID: context, Type: "Site"})
	}
	_, err := e.indexer.Ingest(context.Background(), index.IngestRequest{ID: id, Resource: decoded, Contexts: refs, Cascade: cascade})
	require.NoError(t, err)
}

// seed stores a bare resource for every resource id of records and indexes
// records as they are.
func (e testEnv) seed(t *testing.T, records ...searchdb.Record) {
	t.Helper()
	seen := make(map[string]struct{})
	for _, record := range records {
		if _, ok := seen[record.ResourceID]; ok {
			continue
		}
		seen[record.ResourceID] = struct{}{}
		require.NoError(t, e.store.CreateResource(&kvdb.Resource{MadocID: record.ResourceID, Type: record.ResourceType}))
	}
	require.NoError(t, e.records.Replace(context.Background(), nil, records))
}

func (e testEnv) search(t *testing.T, body string) *Page {
	t.Helper()
	plan, err := e.parser.Parse([]byte(body), "")
	require.NoError(t, err)
	page, err := e.service.Search(context.Background(), plan, 1)
	require.NoError(t, err)
	return page
}

func resultIDs(page *Page) []string {
	ids := make([]string, 0, len(page.Results))
	for _, result := range page.Results {
		ids = append(ids, result.ResourceID)
	}
	return ids
}

func manifest(label string, metadata ...[2]string) string {
	entries := make([]map[string]any, 0, len(metadata))
	for _, m := range metadata {
		entries = append(entries, map[string]any{
			"label": map[string]any{"en": []string{m[0]}},
			"value": map[string]any{"en": []string{m[1]}},
		})
	}
	encoded, _ := json.Marshal(map[string]any{
		"id":       "https://example.org/iiif/" + label,
		"type":     "Manifest",
		"label":    map[string]any{"en": []string{label}},
		"metadata": entries,
	})
	return string(encoded)
}

func TestSearchMetadataAuthor(t *testing.T) {
	assert := require.New(t)
	env := newTestEnv(t)

	env.ingest(t, "urn:madoc:manifest:1", []string{"urn:site:1"}, manifest("Book", [2]string{"Author", "Mietzsching, Christoph"}), false)
	env.ingest(t, "urn:madoc:manifest:2", []string{"urn:site:2"}, manifest("Other", [2]string{"Author", "Mietzsching, Christoph"}), false)

	page := env.search(t, `{"fulltext": "Mietzsching", "contexts": ["urn:site:1"]}`)
	assert.Equal(1, page.Total)
	assert.Len(page.Results, 1)

	result := page.Results[0]
	assert.Equal("urn:madoc:manifest:1", result.ResourceID)
	assert.Equal("Manifest", result.ResourceType)
	assert.Equal("https://example.org/iiif/Book", result.ID)
	assert.Greater(result.Rank, 0.0)
	assert.Len(result.Hits, 1)
	assert.Equal("author", result.Hits[0].Subtype)
	assert.Equal("en", result.Hits[0].Language)
	assert.Contains(result.Hits[0].Snippet, "Mietzsching")
	assert.Contains(result.Hits[0].Snippet, "<b>Mietzsching,</b>")

	assert.Equal(FacetValues{{Value: "Mietzsching, Christoph", Count: 1}}, page.Facets["metadata"]["author"])
}

func TestSearchMetadataFields(t *testing.T) {
	assert := require.New(t)
	env := newTestEnv(t)

	env.ingest(t, "m1", nil, manifest("Book", [2]string{"Author", "Mietzsching"}, [2]string{"Material", "paper"}), false)

	page := env.search(t, `{"fulltext": "Mietzsching", "metadata_fields": {"en": ["Author"]}}`)
	assert.Len(page.Results, 1)
	metadata, ok := page.Results[0].Metadata.([]any)
	assert.True(ok)
	assert.Len(metadata, 1)

	page = env.search(t, `{"fulltext": "Mietzsching"}`)
	metadata, ok = page.Results[0].Metadata.([]any)
	assert.True(ok)
	assert.Len(metadata, 2)
}

type fakeRecords struct {
	matches []searchdb.Match
}

func (f fakeRecords) Search(ctx context.Context, request searchdb.SearchRequest, fn func(searchdb.Match) error) error {
	for _, match := range f.matches {
		if err := fn(match); err != nil {
			return err
		}
	}
	return nil
}

func (f fakeRecords) Records(ctx context.Context, predicate query.Predicate) ([]searchdb.Record, error) {
	return nil, nil
}

type fakeResources map[string]*kvdb.Resource

func (f fakeResources) Resources(ids []string) (map[string]*kvdb.Resource, error) {
	found := make(map[string]*kvdb.Resource)
	for _, id := range ids {
		if resource, ok := f[id]; ok {
			found[id] = resource
		}
	}
	return found, nil
}

func TestSearchRanksByBestRecord(t *testing.T) {
	assert := require.New(t)

	match := func(resourceID, id string, score float64) searchdb.Match {
		return searchdb.Match{Record: searchdb.Record{ID: id, ResourceID: resourceID, Indexable: "text"}, Score: score}
	}
	records := fakeRecords{matches: []searchdb.Match{
		match("many", "m1", 0.3),
		match("many", "m2", 0.3),
		match("one", "o1", 0.9),
		match("many", "m3", 0.3),
	}}
	resources := fakeResources{"one": {MadocID: "one"}, "many": {MadocID: "many"}}
	service := New(logger.New(), records, resources, Options{})

	plan, err := query.NewParser(query.Options{}, languages.DefaultTable()).Parse([]byte(`{"fulltext": "text"}`), "")
	assert.NoError(err)
	page, err := service.Search(context.Background(), plan, 1)
	assert.NoError(err)

	assert.Equal([]string{"one", "many"}, resultIDs(page))
	assert.Equal(0.9, page.Results[0].Rank)
	assert.Equal(0.3, page.Results[1].Rank)
	assert.Len(page.Results[1].Hits, 3)
}

func metadataRecord(resourceID, subtype, value string) searchdb.Record {
	return searchdb.Record{
		ID:              fmt.Sprintf("%s-%s-%s", resourceID, subtype, value),
		ResourceID:      resourceID,
		Type:            flatten.TypeMetadata,
		Subtype:         subtype,
		Indexable:       value,
		OriginalContent: value,
		ResourceType:    "Manifest",
		Contexts:        []string{resourceID},
	}
}

func TestFacetTruncation(t *testing.T) {
	assert := require.New(t)
	env := newTestEnv(t)

	var records []searchdb.Record
	for i := 1; i <= 15; i++ {
		value := fmt.Sprintf("v%02d", i)
		records = append(records, metadataRecord(fmt.Sprintf("r%02d", i), "material", value))
		if i <= 5 {
			records = append(records, metadataRecord(fmt.Sprintf("s%02d", i), "material", value))
		}
	}
	env.seed(t, records...)

	page := env.search(t, `{}`)
	assert.Equal(20, page.Total)

	values := page.Facets["metadata"]["material"]
	assert.Len(values, 10)
	for i, value := range values {
		assert.Equal(fmt.Sprintf("v%02d", i+1), value.Value)
		if i < 5 {
			assert.Equal(2, value.Count)
		} else {
			assert.Equal(1, value.Count)
		}
	}

	page = env.search(t, `{"number_of_facets": 3}`)
	assert.Len(page.Facets["metadata"]["material"], 3)

	encoded, err := json.Marshal(page.Facets)
	assert.NoError(err)
	assert.JSONEq(`{"metadata": {"material": {"v01": 2, "v02": 2, "v03": 2}}}`, string(encoded))
	assert.Contains(string(encoded), `{"v01":2,"v02":2,"v03":2}`)
}

func TestFacetGroups(t *testing.T) {
	assert := require.New(t)
	env := newTestEnv(t)

	env.seed(t,
		metadataRecord("german-paper", "material", "paper"),
		metadataRecord("german-paper", "language", "German"),
		metadataRecord("french-paper", "material", "paper"),
		metadataRecord("french-paper", "language", "French"),
		metadataRecord("german-parchment", "material", "parchment"),
		metadataRecord("german-parchment", "language", "german"),
		metadataRecord("german-vellum", "material", "vellum"),
		metadataRecord("german-vellum", "language", "German"),
	)

	page := env.search(t, `{"facets": [
		{"type": "metadata", "subtype": "material", "value": "paper"},
		{"type": "metadata", "subtype": "material", "value": "parchment"},
		{"type": "metadata", "subtype": "language", "value": "German"}
	]}`)
	assert.ElementsMatch([]string{"german-paper", "german-parchment"}, resultIDs(page))
	assert.Zero(page.Results[0].Rank)
}

func TestSearchCountsStoredResourcesOnly(t *testing.T) {
	assert := require.New(t)
	env := newTestEnv(t)

	env.seed(t, metadataRecord("kept", "material", "paper"))
	assert.NoError(env.records.Replace(context.Background(), nil, []searchdb.Record{
		metadataRecord("orphan", "material", "paper"),
	}))

	page := env.search(t, `{}`)
	assert.Equal(1, page.Total)
	assert.Equal(1, page.TotalPages)
	assert.Equal([]string{"kept"}, resultIDs(page))
	assert.Equal(FacetValues{{Value: "paper", Count: 1}}, page.Facets["metadata"]["material"])
}

func TestFacetGroupsPastTheCandidateLimit(t *testing.T) {
	assert := require.New(t)
	env := newTestEnvWithLimit(t, 20)

	var records []searchdb.Record
	for i := 0; i < 60; i++ {
		resourceID := fmt.Sprintf("r%02d", i)
		author := "Anonymous"
		if i >= 50 {
			author = fmt.Sprintf("Zzyzx %d", 59-i)
		}
		records = append(records,
			metadataRecord(resourceID, "material", "paper"),
			metadataRecord(resourceID, "author", author),
		)
	}
	env.seed(t, records...)

	page := env.search(t, `{"fulltext": "Zzyzx"}`)
	assert.Equal(10, page.Total)

	page = env.search(t, `{
		"fulltext": "Zzyzx",
		"page_size": 10,
		"facets": [{"type": "metadata", "subtype": "material", "value": "paper"}],
		"ordering": {"type": "metadata", "subtype": "author"}
	}`)
	assert.Equal(10, page.Total)
	expected := make([]string, 0, 10)
	for i := 59; i >= 50; i-- {
		expected = append(expected, fmt.Sprintf("r%02d", i))
	}
	assert.Equal(expected, resultIDs(page))
}

func TestDateExact(t *testing.T) {
	assert := require.New(t)
	env := newTestEnv(t)

	date := func(resourceID string, start, end time.Time) searchdb.Record {
		return searchdb.Record{
			ID:             resourceID + "-navdate",
			ResourceID:     resourceID,
			Type:           flatten.TypeDescriptive,
			Subtype:        "navdate",
			DateRangeStart: &start,
			DateRangeEnd:   &end,
		}
	}
	point := time.Date(1690, 1, 1, 0, 0, 0, 0, time.UTC)
	env.seed(t,
		date("point", point, point),
		date("straddle", point.AddDate(-1, 0, 0), point.AddDate(1, 0, 0)),
	)

	page := env.search(t, `{"date_exact": "1690"}`)
	assert.Equal([]string{"point"}, resultIDs(page))

	page = env.search(t, `{"date_start": "1690-06-01"}`)
	assert.Equal([]string{"straddle"}, resultIDs(page))
}

func TestSearchTypes(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		expected []string
	}{
		{
			name:     "websearch",
			body:     `{"fulltext": "Mietzsching -Johann"}`,
			expected: []string{"m1"},
		},
		{
			name:     "trigram tolerates misspellings",
			body:     `{"fulltext": "Mietzshing", "search_type": "trigram"}`,
			expected: []string{"m1", "m2"},
		},
		{
			name:     "trigram_word compares whole words",
			body:     `{"fulltext": "Mietzshing", "search_type": "trigram_word"}`,
			expected: []string{"m1", "m2"},
		},
		{
			name:     "phrase",
			body:     `{"fulltext": "Mietzsching Christoph", "search_type": "phrase"}`,
			expected: []string{"m1"},
		},
		{
			name:     "phrase keeps word order",
			body:     `{"fulltext": "Christoph Mietzsching", "search_type": "phrase"}`,
			expected: []string{},
		},
		{
			name:     "raw",
			body:     `{"fulltext": "mietzsching & !christoph", "search_type": "raw"}`,
			expected: []string{"m2"},
		},
		{
			name:     "non latin text is matched as substrings",
			body:     `{"fulltext": "京城"}`,
			expected: []string{"m3"},
		},
		{
			name:     "every substring must be found",
			body:     `{"fulltext": "京城 서울"}`,
			expected: []string{"m3"},
		},
		{
			name:     "substrings missing from a resource",
			body:     `{"fulltext": "京城 東京"}`,
			expected: []string{},
		},
	}

	env := newTestEnv(t)
	env.ingest(t, "m1", nil, manifest("One", [2]string{"Author", "Mietzsching, Christoph"}), false)
	env.ingest(t, "m2", nil, manifest("Two", [2]string{"Author", "Mietzsching, Johann"}), false)
	env.ingest(t, "m3", nil, manifest("Three", [2]string{"Publisher", "京城書籍業組合"}, [2]string{"Place", "京城 [서울]"}), false)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := require.New(t)
			page := env.search(t, tc.body)
			assert.ElementsMatch(tc.expected, resultIDs(page))
			for _, result := range page.Results {
				assert.NotEmpty(result.Hits)
			}
		})
	}
}

func TestSubstringSnippet(t *testing.T) {
	assert := require.New(t)
	env := newTestEnv(t)
	env.ingest(t, "m3", nil, manifest("Three", [2]string{"Publisher", "京城書籍業組合"}), false)

	page := env.search(t, `{"fulltext": "書籍"}`)
	assert.Len(page.Results, 1)
	assert.Equal("<b>京城書籍業組合</b>", page.Results[0].Hits[0].Snippet)
}

func TestOrdering(t *testing.T) {
	assert := require.New(t)
	env := newTestEnv(t)

	withYear := func(resourceID string, year int64) []searchdb.Record {
		record := metadataRecord(resourceID, "year", fmt.Sprint(year))
		record.IndexableInt = &year
		return []searchdb.Record{record, metadataRecord(resourceID, "title", "Title of "+resourceID)}
	}
	var records []searchdb.Record
	records = append(records, withYear("b", 1700)...)
	records = append(records, withYear("a", 1800)...)
	records = append(records, withYear("c", 1600)...)
	records = append(records, metadataRecord("d", "title", "No year"))
	env.seed(t, records...)

	page := env.search(t, `{"ordering": {"type": "metadata", "subtype": "year", "value_for_sort": "indexable_int"}}`)
	assert.Equal([]string{"c", "b", "a", "d"}, resultIDs(page))

	page = env.search(t, `{"ordering": {"type": "metadata", "subtype": "year", "value_for_sort": "indexable_int", "direction": "descending"}}`)
	assert.Equal([]string{"a", "b", "c", "d"}, resultIDs(page))

	page = env.search(t, `{}`)
	assert.Equal([]string{"a", "b", "c", "d"}, resultIDs(page))

	first := env.search(t, `{"ordering": {"random_sort": true, "random_seed": "42"}}`)
	second := env.search(t, `{"ordering": {"random_sort": true, "random_seed": 42}}`)
	assert.Equal(resultIDs(first), resultIDs(second))
	assert.ElementsMatch([]string{"a", "b", "c", "d"}, resultIDs(first))
}

func TestPagination(t *testing.T) {
	assert := require.New(t)
	env := newTestEnv(t)

	var records []searchdb.Record
	for i := 0; i < 5; i++ {
		records = append(records, metadataRecord(fmt.Sprintf("r%d", i), "title", "Title"))
	}
	env.seed(t, records...)

	plan, err := env.parser.Parse([]byte(`{"page_size": 2}`), "")
	assert.NoError(err)

	page, err := env.service.Search(context.Background(), plan, 3)
	assert.NoError(err)
	assert.Equal(5, page.Total)
	assert.Equal(3, page.TotalPages)
	assert.Equal([]string{"r4"}, resultIDs(page))

	_, err = env.service.Search(context.Background(), plan, 4)
	assert.True(errors.Is(err, ErrInvalidPage))
	_, err = env.service.Search(context.Background(), plan, 0)
	assert.True(errors.Is(err, ErrInvalidPage))

	plan, err = env.parser.Parse([]byte(`{"fulltext": "nothing"}`), "")
	assert.NoError(err)
	page, err = env.service.Search(context.Background(), plan, 1)
	assert.NoError(err)
	assert.Zero(page.Total)
	assert.Equal(1, page.TotalPages)
	assert.Empty(page.Results)
}

func TestFacetOnManifests(t *testing.T) {
	assert := require.New(t)
	env := newTestEnv(t)

	book := func(name, material string) string {
		encoded, _ := json.Marshal(map[string]any{
			"id":    "https://example.org/iiif/" + name,
			"type":  "Manifest",
			"label": map[string]any{"en": []string{name}},
			"metadata": []any{map[string]any{
				"label": map[string]any{"en": []string{"Material"}},
				"value": map[string]any{"en": []string{material}},
			}},
			"items": []any{map[string]any{
				"id":    "https://example.org/iiif/" + name + "/p1",
				"type":  "Canvas",
				"label": map[string]any{"en": []string{"Hello page"}},
			}},
		})
		return string(encoded)
	}
	env.ingest(t, "m1", []string{"urn:site:1"}, book("One", "paper"), true)
	env.ingest(t, "m2", []string{"urn:site:1"}, book("Two", "parchment"), true)

	page := env.search(t, `{
		"fulltext": "hello",
		"facet_on_manifests": true,
		"facets": [{"type": "metadata", "subtype": "material", "value": "paper"}]
	}`)
	assert.Equal([]string{"m1:canvas:0"}, resultIDs(page))
	assert.Equal(FacetValues{{Value: "paper", Count: 1}}, page.Facets["metadata"]["material"])

	page = env.search(t, `{
		"fulltext": "hello",
		"facets": [{"type": "metadata", "subtype": "material", "value": "paper"}]
	}`)
	assert.Empty(resultIDs(page))

	page = env.search(t, `{"fulltext": "hello", "facet_on_manifests": true}`)
	assert.ElementsMatch([]string{"m1:canvas:0", "m2:canvas:0"}, resultIDs(page))
	assert.Equal(FacetValues{{Value: "paper", Count: 1}, {Value: "parchment", Count: 1}}, page.Facets["metadata"]["material"])

	// contexts_all narrows the candidates before they are rescoped to
	// their manifests.
	env.ingest(t, "m3", []string{"urn:site:2"}, book("Three", "paper"), true)
	page = env.search(t, `{
		"fulltext": "hello",
		"contexts_all": ["urn:site:1"],
		"facet_on_manifests": true,
		"facets": [{"type": "metadata", "subtype": "material", "value": "paper"}]
	}`)
	assert.Equal([]string{"m1:canvas:0"}, resultIDs(page))

	page = env.search(t, `{
		"fulltext": "hello",
		"facet_on_manifests": true,
		"facets": [{"type": "metadata", "subtype": "material", "value": "paper"}]
	}`)
	assert.ElementsMatch([]string{"m1:canvas:0", "m3:canvas:0"}, resultIDs(page))
}

func TestFacetLanguages(t *testing.T) {
	assert := require.New(t)
	env := newTestEnv(t)

	german := metadataRecord("r1", "material", "Papier")
	german.ISO6391 = "de"
	english := metadataRecord("r1", "material", "paper")
	english.ISO6391 = "en"
	unlabelled := metadataRecord("r2", "material", "vellum")
	env.seed(t, german, english, unlabelled)

	page := env.search(t, `{"facet_languages": ["en"]}`)
	assert.Equal(FacetValues{{Value: "paper", Count: 1}, {Value: "vellum", Count: 1}}, page.Facets["metadata"]["material"])
}

func TestFacetFieldsListing(t *testing.T) {
	assert := require.New(t)
	env := newTestEnv(t)

	env.ingest(t, "m1", []string{"urn:site:1"}, manifest("One", [2]string{"Author", "A"}, [2]string{"Material", "paper"}), false)
	env.ingest(t, "m2", []string{"urn:site:2"}, manifest("Two", [2]string{"Place", "Leipzig"}), false)

	plan, err := env.parser.Parse([]byte(`{"contexts": ["urn:site:1"], "facet_types": ["metadata", "descriptive"]}`), "")
	assert.NoError(err)
	fields, err := env.service.FacetFields(context.Background(), plan)
	assert.NoError(err)
	assert.Equal(map[string][]string{
		"metadata":    {"author", "material"},
		"descriptive": {"label"},
	}, fields)
}

func TestAutocomplete(t *testing.T) {
	assert := require.New(t)
	env := newTestEnv(t)

	env.ingest(t, "m1", []string{"urn:site:1"}, manifest("One", [2]string{"Author", "Mietzsching, Christoph"}), false)
	env.ingest(t, "m2", []string{"urn:site:1"}, manifest("Two", [2]string{"Author", "Mietzsching, Christoph"}), false)
	env.ingest(t, "m3", []string{"urn:site:1"}, manifest("Three", [2]string{"Author", "Miller, Anna"}, [2]string{"Place", "Minden"}), false)
	env.ingest(t, "m4", []string{"urn:site:2"}, manifest("Four", [2]string{"Author", "Mills, Jo"}), false)

	plan, err := env.parser.Parse([]byte(`{
		"contexts": ["urn:site:1"],
		"autocomplete_type": "metadata",
		"autocomplete_subtype": "author",
		"autocomplete_query": "mi"
	}`), "")
	assert.NoError(err)

	suggestions, err := env.service.Autocomplete(context.Background(), plan)
	assert.NoError(err)
	assert.Equal([]Suggestion{
		{ID: "Mietzsching, Christoph", Text: "Mietzsching, Christoph"},
		{ID: "Miller, Anna", Text: "Miller, Anna"},
	}, suggestions)
}
