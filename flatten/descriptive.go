package flatten

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/meghashyamc/iiifsearch/db/searchdb"
)

type valueKind int

const (
	valueText valueKind = iota
	valueDate
)

type descriptiveField struct {
	key        string
	recordType string
	kind       valueKind
}

var descriptiveFields = []descriptiveField{
	{key: "label", recordType: TypeDescriptive, kind: valueText},
	{key: "requiredStatement", recordType: TypeDescriptive, kind: valueText},
	{key: "summary", recordType: TypeDescriptive, kind: valueText},
	{key: "metadata", recordType: TypeMetadata, kind: valueText},
	{key: "navDate", recordType: TypeDescriptive, kind: valueDate},
}

// Descriptive flattens the label, requiredStatement, summary, metadata and
// navDate properties of a IIIF resource, one draft per language and value.
func (f *Flattener) Descriptive(resource map[string]any) []Draft {
	var drafts []Draft

	for _, field := range descriptiveFields {
		for _, instance := range fieldInstances(resource[field.key]) {
			drafts = append(drafts, f.flattenInstance(field, instance)...)
		}
	}

	return drafts
}

// fieldInstances normalises a property to a list of language maps (or
// label/value pairs). A bare string becomes a value with no language.
func fieldInstances(value any) []map[string]any {
	switch v := value.(type) {
	case map[string]any:
		if len(v) == 0 {
			return nil
		}
		return []map[string]any{v}
	case []any:
		var instances []map[string]any
		for _, item := range v {
			if instance, ok := item.(map[string]any); ok && len(instance) > 0 {
				instances = append(instances, instance)
			}
		}
		return instances
	case string:
		if len(v) == 0 {
			return nil
		}
		return []map[string]any{{languageNone: []any{v}}}
	default:
		return nil
	}
}

func (f *Flattener) flattenInstance(field descriptiveField, instance map[string]any) []Draft {
	subtype := field.key
	values := instance

	if label, ok := instance["label"].(map[string]any); ok && len(label) > 0 {
		labelText := f.preferredValue(label)
		if len(labelText) == 0 {
			return nil
		}
		subtype = labelText
		values, _ = instance["value"].(map[string]any)
	}

	var drafts []Draft
	for _, language := range sortedKeys(values) {
		tag := language
		if tag == languageNone || tag == languageAtNone {
			tag = f.config.DefaultLanguage
		}

		for _, value := range stringValues(values[language]) {
			var draft Draft
			if field.kind == valueDate {
				var ok bool
				if draft, ok = dateDraft(subtype, value); !ok {
					continue
				}
			} else {
				draft = textDraft(subtype, value, tag)
			}
			draft.Type = field.recordType
			drafts = append(drafts, draft)
		}
	}

	return drafts
}

func textDraft(subtype string, value string, language string) Draft {
	text, markup := cleanHTML(value)
	return Draft{
		Record: searchdb.Record{
			Subtype:         strings.ToLower(subtype),
			Indexable:       text,
			OriginalContent: map[string]any{subtype: markup},
		},
		Language: language,
	}
}

func dateDraft(subtype string, value string) (Draft, bool) {
	parsed, err := ParseDate(value)
	if err != nil {
		return Draft{}, false
	}
	start, end := parsed, parsed
	return Draft{
		Record: searchdb.Record{
			Subtype:         strings.ToLower(subtype),
			OriginalContent: map[string]any{subtype: value},
			DateRangeStart:  &start,
			DateRangeEnd:    &end,
		},
	}, true
}

// ParseDate reads the loose date formats found in navDate and in date
// filters ("1690", "1690-05-01", "May 1, 1690"), always in UTC.
func ParseDate(value string) (time.Time, error) {
	return dateparse.ParseIn(strings.TrimSpace(value), time.UTC)
}

// preferredValue picks the label text in the default language, then in no
// language, then in the first language by name.
func (f *Flattener) preferredValue(label map[string]any) string {
	for _, language := range []string{f.config.DefaultLanguage, languageNone, languageAtNone} {
		if values := stringValues(label[language]); len(values) > 0 {
			return values[0]
		}
	}
	for _, language := range sortedKeys(label) {
		if values := stringValues(label[language]); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

func stringValues(value any) []string {
	switch v := value.(type) {
	case string:
		if len(v) == 0 {
			return nil
		}
		return []string{v}
	case []any:
		var values []string
		for _, item := range v {
			switch s := item.(type) {
			case nil:
			case string:
				if len(s) > 0 {
					values = append(values, s)
				}
			case map[string]any, []any:
			default:
				values = append(values, fmt.Sprint(s))
			}
		}
		return values
	default:
		return nil
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
