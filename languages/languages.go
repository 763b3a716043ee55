// Package languages resolves language tags to ISO 639 codes, English display
// names and the full-text search configuration used to analyse text in that
// language.
package languages

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultSearchConfigs are the languages with a dedicated full-text analyzer.
var DefaultSearchConfigs = []string{
	"danish", "dutch", "english", "finnish", "french", "german", "hungarian", "italian",
	"norwegian", "portuguese", "romanian", "russian", "spanish", "swedish", "turkish",
}

type Language struct {
	ISO6391      string `json:"language_iso639_1,omitempty"`
	ISO6392      string `json:"language_iso639_2,omitempty"`
	Display      string `json:"language_display,omitempty"`
	SearchConfig string `json:"language_search_config,omitempty"`
}

type Entry struct {
	ISO6391 string
	ISO6392 string
	Display string
}

// Table is immutable once built and safe for concurrent use.
type Table struct {
	byISO6391     map[string]Entry
	byISO6392     map[string]Entry
	searchConfigs map[string]struct{}
}

func NewTable(entries []Entry, searchConfigs []string) *Table {
	table := &Table{
		byISO6391:     make(map[string]Entry, len(entries)),
		byISO6392:     make(map[string]Entry, len(entries)),
		searchConfigs: make(map[string]struct{}, len(searchConfigs)),
	}

	for _, entry := range entries {
		entry.ISO6391 = strings.ToLower(entry.ISO6391)
		entry.ISO6392 = strings.ToLower(entry.ISO6392)
		entry.Display = strings.ToLower(entry.Display)
		if len(entry.ISO6391) > 0 {
			table.byISO6391[entry.ISO6391] = entry
		}
		if len(entry.ISO6392) > 0 {
			table.byISO6392[entry.ISO6392] = entry
		}
	}

	for _, config := range searchConfigs {
		table.searchConfigs[strings.ToLower(config)] = struct{}{}
	}

	return table
}

// DefaultTable builds the table from the ISO 639 data shipped with x/text.
func DefaultTable() *Table {
	namer := display.English.Languages()

	var entries []Entry
	for first := 'a'; first <= 'z'; first++ {
		for second := 'a'; second <= 'z'; second++ {
			code := string([]rune{first, second})
			base, err := language.ParseBase(code)
			if err != nil || base.String() != code {
				continue
			}
			name := namer.Name(base)
			if len(name) == 0 {
				continue
			}
			entries = append(entries, Entry{ISO6391: code, ISO6392: base.ISO3(), Display: name})
		}
	}

	return NewTable(entries, DefaultSearchConfigs)
}

// Resolve maps a tag such as "en", "en-GB" or "ger" to its language. Region
// and script suffixes are ignored. The second return value is false when the
// tag is unknown, in which case the returned Language is empty.
func (t *Table) Resolve(tag string) (Language, bool) {
	code := strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(code, "-_"); i >= 0 {
		code = code[:i]
	}

	var entry Entry
	var ok bool
	switch len(code) {
	case 2:
		entry, ok = t.byISO6391[code]
	case 3:
		entry, ok = t.byISO6392[code]
		if !ok {
			// bibliographic codes (ger, fre) canonicalise to their two letter form
			if base, err := language.ParseBase(code); err == nil {
				entry, ok = t.byISO6391[base.String()]
			}
		}
	}
	if !ok {
		return Language{}, false
	}

	resolved := Language{
		ISO6391: entry.ISO6391,
		ISO6392: entry.ISO6392,
		Display: entry.Display,
	}
	if t.IsSearchConfig(entry.Display) {
		resolved.SearchConfig = entry.Display
	}

	return resolved, true
}

func (t *Table) IsSearchConfig(name string) bool {
	_, ok := t.searchConfigs[strings.ToLower(name)]
	return ok
}

// SearchConfig accepts either a configuration name ("english") or a language
// tag ("en") and returns the configuration to analyse queries with, or "" when
// neither resolves.
func (t *Table) SearchConfig(nameOrTag string) string {
	name := strings.ToLower(strings.TrimSpace(nameOrTag))
	if len(name) == 0 {
		return ""
	}
	if t.IsSearchConfig(name) {
		return name
	}
	resolved, _ := t.Resolve(name)
	return resolved.SearchConfig
}

func (t *Table) SearchConfigs() []string {
	configs := make([]string, 0, len(t.searchConfigs))
	for config := range t.searchConfigs {
		configs = append(configs, config)
	}
	sort.Strings(configs)
	return configs
}
