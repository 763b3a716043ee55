package search

import (
	"cmp"
	"slices"
	"strings"

	"github.com/meghashyamc/iiifsearch/db/kvdb"
	"github.com/meghashyamc/iiifsearch/db/searchdb"
	"github.com/meghashyamc/iiifsearch/query"
)

type Hit struct {
	Type            string         `json:"type"`
	Subtype         string         `json:"subtype"`
	Snippet         string         `json:"snippet"`
	Language        string         `json:"language"`
	Rank            float64        `json:"rank"`
	OriginalContent any            `json:"original_content"`
	BoundingBoxes   []searchdb.Box `json:"bounding_boxes,omitempty"`
}

type Result struct {
	ResourceID     string            `json:"resource_id"`
	ResourceType   string            `json:"resource_type"`
	MadocThumbnail string            `json:"madoc_thumbnail"`
	Thumbnail      any               `json:"thumbnail"`
	ID             string            `json:"id"`
	Label          any               `json:"label"`
	Metadata       any               `json:"metadata"`
	Contexts       []kvdb.ContextRef `json:"contexts"`
	Rank           float64           `json:"rank"`
	Hits           []Hit             `json:"hits"`
}

func (s *Service) results(plan *query.Plan, matched matchSet, resources map[string]*kvdb.Resource, ids []string) []Result {
	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		resource := resources[id]
		result := Result{
			ResourceID:     resource.MadocID,
			ResourceType:   resource.Type,
			MadocThumbnail: resource.MadocThumbnail,
			Thumbnail:      resource.Thumbnail,
			ID:             resource.ID,
			Label:          resource.Label,
			Metadata:       trimMetadata(resource.Metadata, plan.MetadataFields),
			Contexts:       resource.Contexts,
			Rank:           matched[id].rank,
			Hits:           hits(matched[id].hits),
		}
		if result.Contexts == nil {
			result.Contexts = []kvdb.ContextRef{}
		}
		results = append(results, result)
	}
	return results
}

// hits renders matched records best first.
func hits(matches []hit) []Hit {
	slices.SortStableFunc(matches, func(a, b hit) int {
		return cmp.Or(cmp.Compare(b.rank, a.rank), strings.Compare(a.record.ID, b.record.ID))
	})

	rendered := make([]Hit, 0, len(matches))
	for _, match := range matches {
		words := splitWords(match.record.Indexable)
		matched := matchedWords(words, match.spans)
		rendered = append(rendered, Hit{
			Type:            match.record.Type,
			Subtype:         match.record.Subtype,
			Snippet:         snippet(match.record.Indexable, words, matched),
			Language:        match.record.ISO6391,
			Rank:            match.rank,
			OriginalContent: match.record.OriginalContent,
			BoundingBoxes:   boundingBoxes(match.record, matched),
		})
	}
	return rendered
}

// trimMetadata keeps the metadata entries whose label, in one of the
// languages of fields, is one of the labels listed for that language.
func trimMetadata(metadata any, fields map[string][]string) any {
	entries, ok := metadata.([]any)
	if !ok || len(fields) == 0 {
		return metadata
	}

	kept := []any{}
	for _, entry := range entries {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		label, _ := item["label"].(map[string]any)
		if hasLabel(label, fields) {
			kept = append(kept, entry)
		}
	}
	return kept
}

func hasLabel(label map[string]any, fields map[string][]string) bool {
	for language, wanted := range fields {
		values, _ := label[language].([]any)
		for _, value := range values {
			if text, ok := value.(string); ok && slices.Contains(wanted, text) {
				return true
			}
		}
	}
	return false
}
