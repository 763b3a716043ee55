package flatten

import (
	"bytes"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var bodyContext = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}

// cleanHTML returns the text content of value and value re-rendered without
// scripts, styles and comments. Values with no markup are returned as is.
func cleanHTML(value string) (text string, markup string) {
	if !strings.ContainsAny(value, "<&") {
		return value, value
	}

	nodes, err := html.ParseFragment(strings.NewReader(value), bodyContext)
	if err != nil {
		return value, value
	}

	var textBuf, markupBuf bytes.Buffer
	for _, node := range nodes {
		if dropNode(node) {
			continue
		}
		removeDropped(node)
		collectText(node, &textBuf)
		if err := html.Render(&markupBuf, node); err != nil {
			return value, value
		}
	}

	return textBuf.String(), markupBuf.String()
}

func dropNode(node *html.Node) bool {
	if node.Type == html.CommentNode {
		return true
	}
	return node.Type == html.ElementNode && (node.DataAtom == atom.Script || node.DataAtom == atom.Style)
}

func removeDropped(node *html.Node) {
	for child := node.FirstChild; child != nil; {
		next := child.NextSibling
		if dropNode(child) {
			node.RemoveChild(child)
		} else {
			removeDropped(child)
		}
		child = next
	}
}

func collectText(node *html.Node, buf *bytes.Buffer) {
	if node.Type == html.TextNode {
		buf.WriteString(node.Data)
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, buf)
	}
}

var (
	slugInvalid   = regexp.MustCompile(`[^\w\s-]`)
	slugSeparator = regexp.MustCompile(`[-\s]+`)
	asciiFolding  = transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
)

// slugify lower-cases value, folds it to ASCII and joins words with hyphens:
// "Person's Name" becomes "persons-name".
func slugify(value string) string {
	folded, _, err := transform.String(asciiFolding, value)
	if err != nil {
		folded = value
	}
	folded = slugInvalid.ReplaceAllString(strings.ToLower(folded), "")
	folded = slugSeparator.ReplaceAllString(folded, "-")
	return strings.Trim(folded, "-_")
}

// subtypePath is a dot separated path in which every segment appears once,
// at the position it was first added.
type subtypePath struct {
	segments []string
}

func newSubtypePath(segments ...string) subtypePath {
	return subtypePath{}.with(segments...)
}

func (p subtypePath) with(segments ...string) subtypePath {
	next := subtypePath{segments: slices.Clone(p.segments)}
	for _, segment := range segments {
		for _, part := range strings.Split(segment, ".") {
			if len(part) == 0 || slices.Contains(next.segments, part) {
				continue
			}
			next.segments = append(next.segments, part)
		}
	}
	return next
}

func (p subtypePath) String() string {
	return strings.Join(p.segments, ".")
}
