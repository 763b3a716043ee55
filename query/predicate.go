// Package query turns search requests into filter plans made of predicates
// over indexable records.
package query

import "slices"

type Field string

const (
	FieldResourceID      Field = "resource_id"
	FieldSourceID        Field = "source_id"
	FieldContentID       Field = "content_id"
	FieldResourceType    Field = "resource_type"
	FieldContexts        Field = "contexts"
	FieldType            Field = "type"
	FieldSubtype         Field = "subtype"
	FieldValue           Field = "indexable"
	FieldOriginalContent Field = "original_content"
	FieldISO6391         Field = "language_iso639_1"
	FieldISO6392         Field = "language_iso639_2"
	FieldLanguageDisplay Field = "language_display"
	FieldSearchConfig    Field = "language_pg"
	FieldInt             Field = "indexable_int"
	FieldFloat           Field = "indexable_float"
	FieldDateStart       Field = "indexable_date_range_start"
	FieldDateEnd         Field = "indexable_date_range_end"
)

type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindDate
)

func (f Field) Kind() Kind {
	switch f {
	case FieldInt, FieldFloat:
		return KindNumber
	case FieldDateStart, FieldDateEnd:
		return KindDate
	default:
		return KindText
	}
}

type Op string

const (
	OpExact       Op = "exact"
	OpIExact      Op = "iexact"
	OpContains    Op = "contains"
	OpIContains   Op = "icontains"
	OpIn          Op = "in"
	OpStartsWith  Op = "startswith"
	OpIStartsWith Op = "istartswith"
	OpEndsWith    Op = "endswith"
	OpIEndsWith   Op = "iendswith"
	OpGt          Op = "gt"
	OpGte         Op = "gte"
	OpLt          Op = "lt"
	OpLte         Op = "lte"
	OpDay         Op = "day"
	OpMonth       Op = "month"
	OpYear        Op = "year"
	OpISOYear     Op = "iso_year"
)

var (
	textOps   = []Op{OpExact, OpIExact, OpContains, OpIContains, OpIn, OpStartsWith, OpIStartsWith, OpEndsWith, OpIEndsWith}
	numberOps = []Op{OpExact, OpGt, OpGte, OpLt, OpLte}
	dateOps   = []Op{OpExact, OpGt, OpGte, OpLt, OpLte, OpDay, OpMonth, OpYear, OpISOYear}
)

func (f Field) Allows(op Op) bool {
	switch f.Kind() {
	case KindNumber:
		return slices.Contains(numberOps, op)
	case KindDate:
		return slices.Contains(dateOps, op)
	default:
		return slices.Contains(textOps, op)
	}
}

// CaseInsensitive reports whether op compares lower-cased values.
func (op Op) CaseInsensitive() bool {
	switch op {
	case OpIExact, OpIContains, OpIStartsWith, OpIEndsWith:
		return true
	}
	return false
}

// IsDateComponent reports whether op compares one part of a date with an
// integer.
func (op Op) IsDateComponent() bool {
	switch op {
	case OpDay, OpMonth, OpYear, OpISOYear:
		return true
	}
	return false
}

// normalizeOp returns op when field allows it and fallback otherwise.
func normalizeOp(field Field, op Op, fallback Op) Op {
	if field.Allows(op) {
		return op
	}
	return fallback
}

// facetDefaultOp is iexact for text and exact for numbers and dates.
func facetDefaultOp(field Field) Op {
	if field.Kind() == KindText {
		return OpIExact
	}
	return OpExact
}

// Predicate is And, Or or Match.
type Predicate interface {
	predicate()
}

type And []Predicate

type Or []Predicate

// Match compares one field of a record with Value. Value is a string, a
// []string for OpIn, a float64 for numbers, a time.Time for dates and an int
// for date components.
type Match struct {
	Field Field
	Op    Op
	Value any
}

func (And) predicate()   {}
func (Or) predicate()    {}
func (Match) predicate() {}

// AllOf joins the non-nil predicates with And. It returns nil when none are
// given and the predicate itself when there is only one.
func AllOf(predicates ...Predicate) Predicate {
	var kept And
	for _, p := range predicates {
		switch v := p.(type) {
		case nil:
		case And:
			if len(v) > 0 {
				kept = append(kept, v...)
			}
		default:
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return kept
}

// AnyOf is AllOf for Or.
func AnyOf(predicates ...Predicate) Predicate {
	var kept Or
	for _, p := range predicates {
		switch v := p.(type) {
		case nil:
		case Or:
			if len(v) > 0 {
				kept = append(kept, v...)
			}
		default:
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return kept
}

func Equals(field Field, value string) Match {
	return Match{Field: field, Op: OpExact, Value: value}
}

func EqualsFold(field Field, value string) Match {
	return Match{Field: field, Op: OpIExact, Value: value}
}

func In(field Field, values []string) Match {
	return Match{Field: field, Op: OpIn, Value: values}
}
