package query

import (
	"strings"
	"unicode"
)

type SearchType string

const (
	SearchWeb         SearchType = "websearch"
	SearchPlain       SearchType = "plain"
	SearchPhrase      SearchType = "phrase"
	SearchRaw         SearchType = "raw"
	SearchTrigram     SearchType = "trigram"
	SearchTrigramWord SearchType = "trigram_word"
)

var searchTypes = []SearchType{SearchWeb, SearchPlain, SearchPhrase, SearchRaw, SearchTrigram, SearchTrigramWord}

func IsSearchType(value string) bool {
	for _, searchType := range searchTypes {
		if string(searchType) == value {
			return true
		}
	}
	return false
}

// IsTrigram reports whether results are ranked by character trigram
// similarity instead of by the text index.
func (t SearchType) IsTrigram() bool {
	return t == SearchTrigram || t == SearchTrigramWord
}

// TextExpr is Term, TextAnd, TextOr or TextNot.
type TextExpr interface {
	textExpr()
}

type Term struct {
	Text   string
	Phrase bool
}

type TextAnd []TextExpr

type TextOr []TextExpr

type TextNot struct {
	Expr TextExpr
}

func (Term) textExpr()    {}
func (TextAnd) textExpr() {}
func (TextOr) textExpr()  {}
func (TextNot) textExpr() {}

// TextQuery is a full-text query in one of the search dialects. Root is nil
// for trigram searches and for input with no usable terms.
type TextQuery struct {
	Input string
	Type  SearchType
	// Config is the language configuration used to analyse the query; empty
	// means language neutral analysis.
	Config string
	Root   TextExpr
}

func newTextQuery(input string, searchType SearchType, config string) *TextQuery {
	textQuery := &TextQuery{Input: input, Type: searchType, Config: config}

	switch searchType {
	case SearchPlain:
		textQuery.Root = parsePlain(input)
	case SearchPhrase:
		if phrase := strings.Join(strings.Fields(input), " "); len(phrase) > 0 {
			textQuery.Root = Term{Text: phrase, Phrase: true}
		}
	case SearchRaw:
		textQuery.Root = parseRaw(input)
	case SearchTrigram, SearchTrigramWord:
	default:
		textQuery.Root = parseWebsearch(input)
	}

	return textQuery
}

func parsePlain(input string) TextExpr {
	var terms TextAnd
	for _, word := range strings.Fields(input) {
		terms = append(terms, Term{Text: word})
	}
	return simplifyAnd(terms)
}

// parseWebsearch reads search engine style input: quoted phrases, "or"
// between alternatives and a leading "-" to exclude a word. Every other word
// is required.
func parseWebsearch(input string) TextExpr {
	quoted, remaining := parseQuotedQuery(input)

	var required TextAnd
	for _, phrase := range quoted {
		required = append(required, Term{Text: phrase, Phrase: true})
	}

	var groups []TextOr
	var excluded TextAnd
	joinNext := false
	for _, word := range strings.Fields(remaining) {
		if strings.EqualFold(word, "or") {
			joinNext = len(groups) > 0
			continue
		}
		if strings.HasPrefix(word, "-") {
			if text := strings.TrimLeft(word, "-"); len(text) > 0 {
				excluded = append(excluded, TextNot{Expr: Term{Text: text}})
			}
			joinNext = false
			continue
		}
		term := Term{Text: word}
		if joinNext {
			groups[len(groups)-1] = append(groups[len(groups)-1], term)
			joinNext = false
			continue
		}
		groups = append(groups, TextOr{term})
	}

	for _, group := range groups {
		if len(group) == 1 {
			required = append(required, group[0])
			continue
		}
		required = append(required, group)
	}
	if len(required) == 0 {
		return nil
	}
	return simplifyAnd(append(required, excluded...))
}

// parseQuotedQuery splits out the double quoted phrases of input. Phrases are
// trimmed and empty ones dropped; the unquoted words are returned joined by
// single spaces.
func parseQuotedQuery(input string) ([]string, string) {
	var quoted []string
	var rest strings.Builder

	for {
		start := strings.IndexByte(input, '"')
		if start < 0 {
			rest.WriteString(input)
			break
		}
		rest.WriteString(input[:start])
		rest.WriteByte(' ')

		end := strings.IndexByte(input[start+1:], '"')
		if end < 0 {
			// an unterminated quote counts as plain text
			rest.WriteString(input[start+1:])
			break
		}

		if phrase := strings.Join(strings.Fields(input[start+1:start+1+end]), " "); len(phrase) > 0 {
			quoted = append(quoted, phrase)
		}
		input = input[start+end+2:]
	}

	return quoted, strings.Join(strings.Fields(rest.String()), " ")
}

// parseRaw reads boolean query syntax: "&" (and), "|" (or), "!" (not) and
// parentheses, with "!" binding tightest and "|" loosest. Words next to each
// other without an operator are joined with "&".
func parseRaw(input string) TextExpr {
	parser := rawParser{tokens: tokenizeRaw(input)}
	return parser.parseOr()
}

type rawParser struct {
	tokens []string
	pos    int
}

func (p *rawParser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *rawParser) parseOr() TextExpr {
	var alternatives TextOr
	for {
		if expr := p.parseAnd(); expr != nil {
			alternatives = append(alternatives, expr)
		}
		if p.peek() != "|" {
			break
		}
		p.pos++
	}
	switch len(alternatives) {
	case 0:
		return nil
	case 1:
		return alternatives[0]
	}
	return alternatives
}

func (p *rawParser) parseAnd() TextExpr {
	var terms TextAnd
	for {
		token := p.peek()
		if token == "" || token == "|" || token == ")" {
			break
		}
		if token == "&" {
			p.pos++
			continue
		}
		if expr := p.parseUnary(); expr != nil {
			terms = append(terms, expr)
		}
	}
	return simplifyAnd(terms)
}

func (p *rawParser) parseUnary() TextExpr {
	token := p.peek()
	p.pos++
	switch token {
	case "!":
		switch p.peek() {
		case "", "|", "&", ")":
			return nil
		}
		if expr := p.parseUnary(); expr != nil {
			return TextNot{Expr: expr}
		}
		return nil
	case "(":
		expr := p.parseOr()
		if p.peek() == ")" {
			p.pos++
		}
		return expr
	case ")":
		return nil
	default:
		// prefix markers such as "word:*" are not supported and are dropped
		if i := strings.IndexByte(token, ':'); i >= 0 {
			token = token[:i]
		}
		if len(token) == 0 {
			return nil
		}
		return Term{Text: token}
	}
}

func tokenizeRaw(input string) []string {
	var tokens []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	for _, r := range input {
		switch {
		case unicode.IsSpace(r):
			flush()
		case r == '&' || r == '|' || r == '!' || r == '(' || r == ')':
			flush()
			tokens = append(tokens, string(r))
		default:
			word.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func simplifyAnd(terms TextAnd) TextExpr {
	switch len(terms) {
	case 0:
		return nil
	case 1:
		return terms[0]
	}
	return terms
}
