package query

import (
	"strings"
	"unicode"
)

// ScriptClassifier decides whether text can go through the full-text index
// or has to be matched by substring. Text qualifies when every rune belongs
// to one of the configured scripts or is punctuation, a number or a
// separator. Combining marks belong to no script, so decomposed accents send
// text to substring matching.
type ScriptClassifier struct {
	scripts []*unicode.RangeTable
}

// NewScriptClassifier builds a classifier from unicode script names such as
// "Latin" or "Cyrillic". Unknown names are ignored; with no usable names the
// classifier falls back to Latin.
func NewScriptClassifier(names []string) *ScriptClassifier {
	classifier := &ScriptClassifier{}
	for _, name := range names {
		if table, ok := unicode.Scripts[strings.TrimSpace(name)]; ok {
			classifier.scripts = append(classifier.scripts, table)
		}
	}
	if len(classifier.scripts) == 0 {
		classifier.scripts = []*unicode.RangeTable{unicode.Latin}
	}
	return classifier
}

func (c *ScriptClassifier) Accepts(text string) bool {
	for _, r := range text {
		if unicode.In(r, c.scripts...) {
			continue
		}
		if unicode.In(r, unicode.P, unicode.N, unicode.Z) || unicode.IsSpace(r) {
			continue
		}
		return false
	}
	return true
}

var latin = NewScriptClassifier([]string{"Latin"})

// IsLatin reports whether text is made only of Latin letters, punctuation,
// numbers and separators.
func IsLatin(text string) bool {
	return latin.Accepts(text)
}
