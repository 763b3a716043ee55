package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/meghashyamc/iiifsearch/db/searchdb"
	"github.com/meghashyamc/iiifsearch/flatten"
)

const (
	snippetWords      = 25
	maxSnippetWords   = 50
	maxFragments      = 3
	wordsBeforeMatch  = 5
	highlightStart    = "<b>"
	highlightEnd      = "</b>"
	fragmentDelimiter = " ... "
)

// splitWords returns the byte ranges of the space separated words of text.
// The n-th range is the n-th word the bounding boxes of a record refer to.
func splitWords(text string) []searchdb.Span {
	var words []searchdb.Span
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				words = append(words, searchdb.Span{Start: start, End: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, searchdb.Span{Start: start, End: len(text)})
	}
	return words
}

// matchedWords returns the indexes of the words that overlap a span.
func matchedWords(words []searchdb.Span, spans []searchdb.Span) []int {
	var matched []int
	for i, word := range words {
		for _, span := range spans {
			if span.Start < word.End && span.End > word.Start {
				matched = append(matched, i)
				break
			}
		}
	}
	return matched
}

// snippet cuts up to maxFragments excerpts of text around the matched words
// and marks those words. Without matched words it is the start of the text.
func snippet(text string, words []searchdb.Span, matched []int) string {
	if len(words) == 0 {
		return ""
	}
	highlighted := make(map[int]struct{}, len(matched))
	for _, i := range matched {
		highlighted[i] = struct{}{}
	}

	render := func(from, to int) string {
		parts := make([]string, 0, to-from)
		for i := from; i < to; i++ {
			word := text[words[i].Start:words[i].End]
			if _, ok := highlighted[i]; ok {
				word = highlightStart + word + highlightEnd
			}
			parts = append(parts, word)
		}
		return strings.Join(parts, " ")
	}

	if len(matched) == 0 {
		return render(0, min(snippetWords, len(words)))
	}

	var fragments []string
	for n := 0; n < len(matched) && len(fragments) < maxFragments; {
		from := max(matched[n]-wordsBeforeMatch, 0)
		to := min(from+snippetWords, len(words))
		n++
		// grow the fragment over matches just past its end
		for n < len(matched) && matched[n] < to+wordsBeforeMatch && matched[n] < from+maxSnippetWords {
			to = max(to, min(matched[n]+wordsBeforeMatch+1, from+maxSnippetWords, len(words)))
			n++
		}
		for n < len(matched) && matched[n] < to {
			n++
		}
		fragments = append(fragments, render(from, to))
	}
	return strings.Join(fragments, fragmentDelimiter)
}

// boundingBoxes looks up the box of every matched word. Words without a box
// are skipped.
func boundingBoxes(record searchdb.Record, matched []int) []searchdb.Box {
	boxes := record.Selector[flatten.SelectorBox]
	if len(boxes) == 0 {
		return nil
	}
	var found []searchdb.Box
	for _, i := range matched {
		if i < len(boxes) && boxes[i] != nil {
			found = append(found, boxes[i])
		}
	}
	return found
}

// substringSpans finds every case-insensitive occurrence of substrings in
// text. It also returns the indexes of the substrings that occur.
func substringSpans(text string, substrings []string) ([]searchdb.Span, []int) {
	var spans []searchdb.Span
	var found []int
	for n, substring := range substrings {
		if substring == "" {
			continue
		}
		occurs := false
		for i := 0; i < len(text); {
			if length, ok := foldPrefix(text[i:], substring); ok {
				spans = append(spans, searchdb.Span{Start: i, End: i + length})
				occurs = true
				i += length
				continue
			}
			_, size := utf8.DecodeRuneInString(text[i:])
			i += size
		}
		if occurs {
			found = append(found, n)
		}
	}
	return spans, found
}

// foldPrefix reports whether s starts with prefix under case folding and
// how many bytes of s the prefix covers.
func foldPrefix(s, prefix string) (int, bool) {
	n := 0
	for _, p := range prefix {
		if n >= len(s) {
			return 0, false
		}
		r, size := utf8.DecodeRuneInString(s[n:])
		if r != p && !strings.EqualFold(string(r), string(p)) {
			return 0, false
		}
		n += size
	}
	return n, true
}
