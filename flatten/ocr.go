package flatten

import (
	"fmt"
	"strings"

	"github.com/meghashyamc/iiifsearch/db/searchdb"
)

type ocrDocument struct {
	Paragraphs []ocrParagraph `mapstructure:"paragraph"`
}

type ocrParagraph struct {
	Properties struct {
		Lines []ocrLine `mapstructure:"lines"`
	} `mapstructure:"properties"`
}

type ocrLine struct {
	Properties struct {
		Words []ocrWord `mapstructure:"text"`
	} `mapstructure:"properties"`
}

type ocrWord struct {
	Value    string `mapstructure:"value"`
	Selector any    `mapstructure:"selector"`
}

// OCR joins every word of a paragraph/line/word document into one draft.
// The draft's selector lists one box per word, in word order, with a nil box
// for a word whose selector could not be simplified.
func (f *Flattener) OCR(resource map[string]any) ([]Draft, error) {
	var document ocrDocument
	if err := weakDecode(resource, &document); err != nil {
		return nil, fmt.Errorf("could not read ocr document: %w", err)
	}

	var words []string
	var boxes []searchdb.Box
	hasBoxes := false
	for _, paragraph := range document.Paragraphs {
		for _, line := range paragraph.Properties.Lines {
			for _, word := range line.Properties.Words {
				_, box, ok := SimplifySelector(word.Selector)
				// a value holding several words repeats its box for each
				for _, piece := range strings.Fields(word.Value) {
					words = append(words, piece)
					boxes = append(boxes, box)
					hasBoxes = hasBoxes || ok
				}
			}
		}
	}

	if len(words) == 0 {
		return nil, nil
	}

	text := strings.Join(words, " ")
	draft := Draft{
		Record: searchdb.Record{
			Subtype:         SubtypeOCR,
			Indexable:       text,
			OriginalContent: text,
		},
	}
	if hasBoxes {
		draft.Selector = searchdb.Selector{SelectorBox: boxes}
	}

	return []Draft{draft}, nil
}
