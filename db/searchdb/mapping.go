package searchdb

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/lang/da"
	"github.com/blevesearch/bleve/v2/analysis/lang/de"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/lang/es"
	"github.com/blevesearch/bleve/v2/analysis/lang/fi"
	"github.com/blevesearch/bleve/v2/analysis/lang/fr"
	"github.com/blevesearch/bleve/v2/analysis/lang/hu"
	"github.com/blevesearch/bleve/v2/analysis/lang/it"
	"github.com/blevesearch/bleve/v2/analysis/lang/nl"
	"github.com/blevesearch/bleve/v2/analysis/lang/no"
	"github.com/blevesearch/bleve/v2/analysis/lang/pt"
	"github.com/blevesearch/bleve/v2/analysis/lang/ro"
	"github.com/blevesearch/bleve/v2/analysis/lang/ru"
	"github.com/blevesearch/bleve/v2/analysis/lang/sv"
	"github.com/blevesearch/bleve/v2/analysis/lang/tr"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/meghashyamc/iiifsearch/query"
)

const (
	indexFieldSource     = "source"
	indexFieldPair       = "pair"
	indexFieldText       = "text"
	indexFieldTextSimple = "text_simple"

	lowerSuffix           = "_lower"
	lowercaseKeywordName  = "lowercase_keyword"
	searchConfigTypeField = "_type"
)

// languageAnalyzers maps full-text search configurations to the bleve
// analyzer that stems and stops text in that language.
var languageAnalyzers = map[string]string{
	"danish":     da.AnalyzerName,
	"dutch":      nl.AnalyzerName,
	"english":    en.AnalyzerName,
	"finnish":    fi.AnalyzerName,
	"french":     fr.AnalyzerName,
	"german":     de.AnalyzerName,
	"hungarian":  hu.AnalyzerName,
	"italian":    it.AnalyzerName,
	"norwegian":  no.AnalyzerName,
	"portuguese": pt.AnalyzerName,
	"romanian":   ro.AnalyzerName,
	"russian":    ru.AnalyzerName,
	"spanish":    es.AnalyzerName,
	"swedish":    sv.AnalyzerName,
	"turkish":    tr.AnalyzerName,
}

// textAnalyzer returns the analyzer for a search configuration and the
// field analysed with it. Records and queries without a known configuration
// use the language neutral field.
func textAnalyzer(config string) (analyzer string, field string) {
	if name, ok := languageAnalyzers[strings.ToLower(config)]; ok {
		return name, indexFieldText
	}
	return standard.Name, indexFieldTextSimple
}

var keywordFields = []query.Field{
	query.FieldResourceID,
	query.FieldSourceID,
	query.FieldContentID,
	query.FieldResourceType,
	query.FieldContexts,
	query.FieldType,
	query.FieldSubtype,
	query.FieldValue,
	query.FieldOriginalContent,
	query.FieldISO6391,
	query.FieldISO6392,
	query.FieldLanguageDisplay,
	query.FieldSearchConfig,
}

var numericFields = []query.Field{query.FieldInt, query.FieldFloat}

var dateFields = []query.Field{query.FieldDateStart, query.FieldDateEnd}

var dateComponents = []query.Op{query.OpYear, query.OpMonth, query.OpDay, query.OpISOYear}

func componentField(field query.Field, op query.Op) string {
	return string(field) + "_" + string(op)
}

func createIndexMapping() (mapping.IndexMapping, error) {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = standard.Name
	indexMapping.TypeField = searchConfigTypeField

	err := indexMapping.AddCustomAnalyzer(lowercaseKeywordName, map[string]any{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, err
	}

	indexMapping.DefaultMapping = createDocumentMapping(standard.Name)
	for config, analyzer := range languageAnalyzers {
		indexMapping.AddDocumentMapping(config, createDocumentMapping(analyzer))
	}

	return indexMapping, nil
}

// createDocumentMapping maps one record. Only the "text" field differs
// between search configurations.
func createDocumentMapping(textAnalyzerName string) *mapping.DocumentMapping {
	docMapping := bleve.NewDocumentMapping()
	docMapping.Dynamic = false

	sourceFieldMapping := bleve.NewTextFieldMapping()
	sourceFieldMapping.Index = false
	sourceFieldMapping.Store = true
	sourceFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt(indexFieldSource, sourceFieldMapping)

	docMapping.AddFieldMappingsAt(indexFieldPair, keywordFieldMapping(keyword.Name))

	for _, field := range keywordFields {
		docMapping.AddFieldMappingsAt(string(field), keywordFieldMapping(keyword.Name))
		docMapping.AddFieldMappingsAt(string(field)+lowerSuffix, keywordFieldMapping(lowercaseKeywordName))
	}

	for _, field := range numericFields {
		docMapping.AddFieldMappingsAt(string(field), numericFieldMapping())
	}
	for _, field := range dateFields {
		docMapping.AddFieldMappingsAt(string(field), numericFieldMapping())
		for _, op := range dateComponents {
			docMapping.AddFieldMappingsAt(componentField(field, op), numericFieldMapping())
		}
	}

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = textAnalyzerName
	textFieldMapping.IncludeTermVectors = true
	textFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt(indexFieldText, textFieldMapping)

	simpleFieldMapping := bleve.NewTextFieldMapping()
	simpleFieldMapping.Analyzer = standard.Name
	simpleFieldMapping.IncludeTermVectors = true
	simpleFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt(indexFieldTextSimple, simpleFieldMapping)

	return docMapping
}

func keywordFieldMapping(analyzer string) *mapping.FieldMapping {
	fieldMapping := bleve.NewTextFieldMapping()
	fieldMapping.Analyzer = analyzer
	fieldMapping.Store = false
	fieldMapping.IncludeInAll = false
	fieldMapping.IncludeTermVectors = false
	return fieldMapping
}

func numericFieldMapping() *mapping.FieldMapping {
	fieldMapping := bleve.NewNumericFieldMapping()
	fieldMapping.Store = false
	fieldMapping.IncludeInAll = false
	return fieldMapping
}

func pairKey(pair Pair) string {
	return pair.ResourceID + "\x1f" + pair.ContentID
}

// document is the form a record is indexed in. The record itself travels
// in the stored source field.
func document(record Record) (map[string]any, error) {
	source, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}

	doc := map[string]any{
		indexFieldSource:     string(source),
		indexFieldPair:       pairKey(record.Pair()),
		indexFieldText:       record.Indexable,
		indexFieldTextSimple: record.Indexable,
	}
	if _, ok := languageAnalyzers[record.SearchConfig]; ok {
		doc[searchConfigTypeField] = record.SearchConfig
	}

	setKeyword := func(field query.Field, value string) {
		if value == "" {
			return
		}
		doc[string(field)] = value
		doc[string(field)+lowerSuffix] = value
	}
	setKeyword(query.FieldResourceID, record.ResourceID)
	setKeyword(query.FieldSourceID, record.SourceID)
	setKeyword(query.FieldContentID, record.ContentID)
	setKeyword(query.FieldResourceType, record.ResourceType)
	setKeyword(query.FieldType, record.Type)
	setKeyword(query.FieldSubtype, record.Subtype)
	setKeyword(query.FieldValue, record.Indexable)
	setKeyword(query.FieldISO6391, record.ISO6391)
	setKeyword(query.FieldISO6392, record.ISO6392)
	setKeyword(query.FieldLanguageDisplay, record.LanguageDisplay)
	setKeyword(query.FieldSearchConfig, record.SearchConfig)
	setKeyword(query.FieldOriginalContent, originalContentText(record.OriginalContent))

	if len(record.Contexts) > 0 {
		doc[string(query.FieldContexts)] = record.Contexts
		doc[string(query.FieldContexts)+lowerSuffix] = record.Contexts
	}

	if record.IndexableInt != nil {
		doc[string(query.FieldInt)] = float64(*record.IndexableInt)
	}
	if record.IndexableFloat != nil {
		doc[string(query.FieldFloat)] = *record.IndexableFloat
	}

	dates := map[query.Field]*time.Time{
		query.FieldDateStart: record.DateRangeStart,
		query.FieldDateEnd:   record.DateRangeEnd,
	}
	for field, date := range dates {
		if date == nil {
			continue
		}
		doc[string(field)] = dateValue(*date)
		isoYear, _ := date.UTC().ISOWeek()
		doc[componentField(field, query.OpYear)] = float64(date.UTC().Year())
		doc[componentField(field, query.OpMonth)] = float64(date.UTC().Month())
		doc[componentField(field, query.OpDay)] = float64(date.UTC().Day())
		doc[componentField(field, query.OpISOYear)] = float64(isoYear)
	}

	return doc, nil
}

// dateValue indexes dates as unix seconds so that dates before 1677 can be
// compared.
func dateValue(date time.Time) float64 {
	return float64(date.Unix())
}

func originalContentText(content any) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	}
	encoded, err := json.Marshal(content)
	if err != nil {
		return ""
	}
	return string(encoded)
}
