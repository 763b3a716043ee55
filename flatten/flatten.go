// Package flatten turns IIIF descriptive properties, OCR documents and
// capture models into indexable records.
package flatten

import (
	"errors"
	"fmt"

	"github.com/meghashyamc/iiifsearch/db/searchdb"
)

const (
	FormatOCR          = "ocr"
	FormatCaptureModel = "capturemodel"

	TypeDescriptive = "descriptive"
	TypeMetadata    = "metadata"

	SubtypeOCR = "intermediate"

	languageNone   = "none"
	languageAtNone = "@none"
)

var ErrUnknownFormat = errors.New("unknown model format")

type Config struct {
	// DefaultLanguage replaces the "none" and "@none" language keys.
	DefaultLanguage string
}

// Draft is a record still missing its id and resolved language.
type Draft struct {
	searchdb.Record
	// Language is the tag the value was declared with, "" when the source
	// gave none.
	Language string
}

type Flattener struct {
	config Config
}

func New(config Config) *Flattener {
	return &Flattener{config: config}
}

// IdentifyFormat recognises OCR (a "paragraph" list) and capture model (a
// "document") payloads.
func IdentifyFormat(resource map[string]any) string {
	if isPresent(resource["paragraph"]) {
		return FormatOCR
	}
	if isPresent(resource["document"]) {
		return FormatCaptureModel
	}
	return ""
}

// Model flattens an OCR or capture model payload. When format is empty it is
// identified from the payload. Every draft carries format as its type.
func (f *Flattener) Model(format string, resource map[string]any) ([]Draft, error) {
	if len(format) == 0 {
		format = IdentifyFormat(resource)
	}

	var drafts []Draft
	var err error
	switch format {
	case FormatOCR:
		drafts, err = f.OCR(resource)
	case FormatCaptureModel:
		drafts, err = f.CaptureModel(resource)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}

	for i := range drafts {
		drafts[i].Type = format
	}
	return drafts, nil
}

func isPresent(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return len(v) > 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	case bool:
		return v
	default:
		return true
	}
}
