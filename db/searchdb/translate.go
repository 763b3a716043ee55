package searchdb

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/meghashyamc/iiifsearch/query"
)

// filterBoost keeps filter clauses out of the score so that only text
// clauses rank records.
const filterBoost = 0

// translatePredicate builds the bleve query for a predicate. A nil
// predicate matches every record.
func translatePredicate(predicate query.Predicate) (blevequery.Query, error) {
	switch p := predicate.(type) {
	case nil:
		return matchAll(), nil
	case query.And:
		conjuncts := make([]blevequery.Query, 0, len(p))
		for _, child := range p {
			translated, err := translatePredicate(child)
			if err != nil {
				return nil, err
			}
			conjuncts = append(conjuncts, translated)
		}
		if len(conjuncts) == 0 {
			return matchAll(), nil
		}
		return bleve.NewConjunctionQuery(conjuncts...), nil
	case query.Or:
		disjuncts := make([]blevequery.Query, 0, len(p))
		for _, child := range p {
			translated, err := translatePredicate(child)
			if err != nil {
				return nil, err
			}
			disjuncts = append(disjuncts, translated)
		}
		if len(disjuncts) == 0 {
			return bleve.NewMatchNoneQuery(), nil
		}
		return bleve.NewDisjunctionQuery(disjuncts...), nil
	case query.Match:
		return translateMatch(p)
	}
	return nil, fmt.Errorf("unsupported predicate %T", predicate)
}

func translateMatch(match query.Match) (blevequery.Query, error) {
	switch match.Field.Kind() {
	case query.KindNumber:
		value, ok := match.Value.(float64)
		if !ok {
			return nil, fmt.Errorf("field %s needs a number, got %T", match.Field, match.Value)
		}
		return numericQuery(string(match.Field), match.Op, value)
	case query.KindDate:
		if match.Op.IsDateComponent() {
			component, ok := match.Value.(int)
			if !ok {
				return nil, fmt.Errorf("field %s %s needs an integer, got %T", match.Field, match.Op, match.Value)
			}
			return numericQuery(componentField(match.Field, match.Op), query.OpExact, float64(component))
		}
		date, ok := match.Value.(time.Time)
		if !ok {
			return nil, fmt.Errorf("field %s needs a date, got %T", match.Field, match.Value)
		}
		return numericQuery(string(match.Field), match.Op, dateValue(date))
	default:
		return textMatchQuery(match)
	}
}

func textMatchQuery(match query.Match) (blevequery.Query, error) {
	field := string(match.Field)
	lower := match.Op.CaseInsensitive()
	if lower {
		field += lowerSuffix
	}
	normalize := func(value string) string {
		if lower {
			return strings.ToLower(value)
		}
		return value
	}

	if match.Op == query.OpIn {
		values, ok := match.Value.([]string)
		if !ok {
			return nil, fmt.Errorf("field %s in needs a list, got %T", match.Field, match.Value)
		}
		if len(values) == 0 {
			return bleve.NewMatchNoneQuery(), nil
		}
		disjuncts := make([]blevequery.Query, 0, len(values))
		for _, value := range values {
			disjuncts = append(disjuncts, termQuery(field, value))
		}
		return bleve.NewDisjunctionQuery(disjuncts...), nil
	}

	value, ok := match.Value.(string)
	if !ok {
		return nil, fmt.Errorf("field %s needs text, got %T", match.Field, match.Value)
	}
	value = normalize(value)

	switch match.Op {
	case query.OpExact, query.OpIExact:
		return termQuery(field, value), nil
	case query.OpStartsWith, query.OpIStartsWith:
		prefixQuery := bleve.NewPrefixQuery(value)
		prefixQuery.SetField(field)
		prefixQuery.SetBoost(filterBoost)
		return prefixQuery, nil
	case query.OpContains, query.OpIContains:
		return regexpQuery(field, "(?s).*"+regexp.QuoteMeta(value)+".*"), nil
	case query.OpEndsWith, query.OpIEndsWith:
		return regexpQuery(field, "(?s).*"+regexp.QuoteMeta(value)), nil
	}
	return nil, fmt.Errorf("operator %s is not supported on %s", match.Op, match.Field)
}

func matchAll() blevequery.Query {
	matchAllQuery := bleve.NewMatchAllQuery()
	matchAllQuery.SetBoost(filterBoost)
	return matchAllQuery
}

func termQuery(field string, value string) blevequery.Query {
	termQuery := bleve.NewTermQuery(value)
	termQuery.SetField(field)
	termQuery.SetBoost(filterBoost)
	return termQuery
}

func regexpQuery(field string, pattern string) blevequery.Query {
	regexpQuery := bleve.NewRegexpQuery(pattern)
	regexpQuery.SetField(field)
	regexpQuery.SetBoost(filterBoost)
	return regexpQuery
}

func numericQuery(field string, op query.Op, value float64) (blevequery.Query, error) {
	var minValue, maxValue *float64
	var minInclusive, maxInclusive *bool
	inclusive, exclusive := true, false

	switch op {
	case query.OpExact:
		minValue, maxValue = &value, &value
		minInclusive, maxInclusive = &inclusive, &inclusive
	case query.OpGt:
		minValue, minInclusive = &value, &exclusive
	case query.OpGte:
		minValue, minInclusive = &value, &inclusive
	case query.OpLt:
		maxValue, maxInclusive = &value, &exclusive
	case query.OpLte:
		maxValue, maxInclusive = &value, &inclusive
	default:
		return nil, fmt.Errorf("operator %s is not supported on %s", op, field)
	}

	rangeQuery := bleve.NewNumericRangeInclusiveQuery(minValue, maxValue, minInclusive, maxInclusive)
	rangeQuery.SetField(field)
	rangeQuery.SetBoost(filterBoost)
	return rangeQuery, nil
}

// textTranslator builds the scoring part of a search from a text query.
// Terms that the analyzer reduces to nothing, such as stop words, are
// dropped the way a text search engine ignores them.
type textTranslator struct {
	mapping  mapping.IndexMapping
	analyzer string
	field    string
}

func newTextTranslator(indexMapping mapping.IndexMapping, config string) *textTranslator {
	analyzer, field := textAnalyzer(config)
	return &textTranslator{mapping: indexMapping, analyzer: analyzer, field: field}
}

func (t *textTranslator) hasTokens(text string) bool {
	analyzer := t.mapping.AnalyzerNamed(t.analyzer)
	if analyzer == nil {
		return len(strings.TrimSpace(text)) > 0
	}
	return len(analyzer.Analyze([]byte(text))) > 0
}

// translate returns nil when the expression has no searchable terms.
func (t *textTranslator) translate(expr query.TextExpr) blevequery.Query {
	switch e := expr.(type) {
	case query.Term:
		if !t.hasTokens(e.Text) {
			return nil
		}
		if e.Phrase {
			phraseQuery := bleve.NewMatchPhraseQuery(e.Text)
			phraseQuery.SetField(t.field)
			phraseQuery.Analyzer = t.analyzer
			return phraseQuery
		}
		matchQuery := bleve.NewMatchQuery(e.Text)
		matchQuery.SetField(t.field)
		matchQuery.Analyzer = t.analyzer
		matchQuery.SetOperator(blevequery.MatchQueryOperatorAnd)
		return matchQuery
	case query.TextAnd:
		var must, mustNot []blevequery.Query
		for _, child := range e {
			if not, ok := child.(query.TextNot); ok {
				if translated := t.translate(not.Expr); translated != nil {
					mustNot = append(mustNot, translated)
				}
				continue
			}
			if translated := t.translate(child); translated != nil {
				must = append(must, translated)
			}
		}
		if len(must) == 0 {
			return nil
		}
		if len(mustNot) == 0 {
			if len(must) == 1 {
				return must[0]
			}
			return bleve.NewConjunctionQuery(must...)
		}
		booleanQuery := bleve.NewBooleanQuery()
		booleanQuery.AddMust(must...)
		booleanQuery.AddMustNot(mustNot...)
		return booleanQuery
	case query.TextOr:
		var should []blevequery.Query
		for _, child := range e {
			if translated := t.translate(child); translated != nil {
				should = append(should, translated)
			}
		}
		switch len(should) {
		case 0:
			return nil
		case 1:
			return should[0]
		}
		return bleve.NewDisjunctionQuery(should...)
	case query.TextNot:
		translated := t.translate(e.Expr)
		if translated == nil {
			return nil
		}
		booleanQuery := bleve.NewBooleanQuery()
		booleanQuery.AddMust(matchAll())
		booleanQuery.AddMustNot(translated)
		return booleanQuery
	}
	return nil
}
