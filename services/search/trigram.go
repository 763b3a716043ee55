package search

import (
	"strings"
	"unicode"

	"github.com/meghashyamc/iiifsearch/db/searchdb"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type trigramSet map[string]struct{}

// trigramQuery holds the trigrams of a query, as a whole and per word.
type trigramQuery struct {
	all   trigramSet
	words []trigramSet
}

func newTrigramQuery(input string) *trigramQuery {
	q := &trigramQuery{all: trigramSet{}}
	for _, word := range trigramWords(input) {
		trigrams := wordTrigrams(word)
		q.words = append(q.words, trigrams)
		for trigram := range trigrams {
			q.all[trigram] = struct{}{}
		}
	}
	return q
}

// fold lower-cases text and strips its accents.
func fold(text string) string {
	unaccent := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(unaccent, text)
	if err != nil {
		folded = text
	}
	return strings.ToLower(folded)
}

// trigramWords splits text into the alphanumeric words trigrams are taken
// from.
func trigramWords(text string) []string {
	return strings.FieldsFunc(fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// wordTrigrams pads word with two spaces in front and one behind, so that
// the start of a word weighs more than its end.
func wordTrigrams(word string) trigramSet {
	padded := []rune("  " + word + " ")
	trigrams := make(trigramSet, len(padded))
	for i := 0; i+3 <= len(padded); i++ {
		trigrams[string(padded[i:i+3])] = struct{}{}
	}
	return trigrams
}

func textTrigrams(text string) trigramSet {
	trigrams := trigramSet{}
	for _, word := range trigramWords(text) {
		for trigram := range wordTrigrams(word) {
			trigrams[trigram] = struct{}{}
		}
	}
	return trigrams
}

// similarity is the share of trigrams a and b have in common.
func similarity(a, b trigramSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for trigram := range a {
		if _, ok := b[trigram]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(a)+len(b)-shared)
}

func trigramSimilarity(q *trigramQuery, text string) float64 {
	return similarity(q.all, textTrigrams(text))
}

// wordSimilarity is the best similarity between the query and a run of
// consecutive words of text no longer than the query.
func wordSimilarity(q *trigramQuery, text string) float64 {
	if len(q.words) == 0 {
		return 0
	}
	words := trigramWords(text)
	perWord := make([]trigramSet, len(words))
	for i, word := range words {
		perWord[i] = wordTrigrams(word)
	}

	best := 0.0
	for i := range perWord {
		run := trigramSet{}
		for j := i; j < len(perWord) && j-i < len(q.words); j++ {
			for trigram := range perWord[j] {
				run[trigram] = struct{}{}
			}
			best = max(best, similarity(q.all, run))
		}
	}
	return best
}

// similarWords returns the spans of the words of text that are at least
// threshold similar to one of the query words.
func (q *trigramQuery) similarWords(text string, threshold float64) []searchdb.Span {
	var spans []searchdb.Span
	for _, w := range splitWords(text) {
		trigrams := textTrigrams(text[w.Start:w.End])
		for _, queryWord := range q.words {
			if similarity(queryWord, trigrams) >= threshold {
				spans = append(spans, w)
				break
			}
		}
	}
	return spans
}
