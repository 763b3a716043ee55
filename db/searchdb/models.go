package searchdb

import "time"

// Box is an x, y, width, height bounding box.
type Box []int

// Selector maps a selector kind ("box-selector") to boxes. For OCR text the
// n-th box belongs to the n-th word of the record's indexable text; a nil box
// marks a word that had no usable selector.
type Selector map[string][]Box

type Record struct {
	ID              string     `json:"id"`
	ResourceID      string     `json:"resource_id"`
	ContentID       string     `json:"content_id,omitempty"`
	Type            string     `json:"type"`
	Subtype         string     `json:"subtype"`
	Indexable       string     `json:"indexable"`
	OriginalContent any        `json:"original_content"`
	ISO6391         string     `json:"language_iso639_1,omitempty"`
	ISO6392         string     `json:"language_iso639_2,omitempty"`
	LanguageDisplay string     `json:"language_display,omitempty"`
	SearchConfig    string     `json:"language_pg,omitempty"`
	IndexableInt    *int64     `json:"indexable_int,omitempty"`
	IndexableFloat  *float64   `json:"indexable_float,omitempty"`
	DateRangeStart  *time.Time `json:"indexable_date_range_start,omitempty"`
	DateRangeEnd    *time.Time `json:"indexable_date_range_end,omitempty"`
	Selector        Selector   `json:"selector,omitempty"`

	// Copied from the owning resource so that scope predicates can be
	// answered per record.
	SourceID     string   `json:"source_id,omitempty"`
	ResourceType string   `json:"resource_type,omitempty"`
	Contexts     []string `json:"contexts,omitempty"`
}

// Scope is the part of a resource that every one of its records carries.
type Scope struct {
	ResourceID   string
	SourceID     string
	ResourceType string
	Contexts     []string
}

func (r *Record) ApplyScope(scope Scope) {
	r.ResourceID = scope.ResourceID
	r.SourceID = scope.SourceID
	r.ResourceType = scope.ResourceType
	r.Contexts = append([]string(nil), scope.Contexts...)
}

// Pair identifies the records written by one ingest of one piece of content.
type Pair struct {
	ResourceID string
	ContentID  string
}

func (r *Record) Pair() Pair {
	return Pair{ResourceID: r.ResourceID, ContentID: r.ContentID}
}

// Span is a byte range of a record's indexable text that matched a query.
type Span struct {
	Start int
	End   int
}

type Match struct {
	Record Record
	Score  float64
	Spans  []Span
}
