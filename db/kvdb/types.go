package kvdb

import (
	"strings"
	"time"
)

// ContextRef names a context a resource belongs to.
type ContextRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type Context struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Created time.Time `json:"created"`
}

func (c Context) Ref() ContextRef {
	return ContextRef{ID: c.ID, Type: c.Type}
}

// Resource is a stored IIIF resource. The descriptive blocks are kept as
// the JSON they arrived in.
type Resource struct {
	MadocID           string       `json:"madoc_id"`
	ID                string       `json:"id"`
	Type              string       `json:"type"`
	MadocThumbnail    string       `json:"madoc_thumbnail,omitempty"`
	Label             any          `json:"label,omitempty"`
	Thumbnail         any          `json:"thumbnail,omitempty"`
	Summary           any          `json:"summary,omitempty"`
	Metadata          any          `json:"metadata,omitempty"`
	RequiredStatement any          `json:"requiredStatement,omitempty"`
	Provider          any          `json:"provider,omitempty"`
	Rights            string       `json:"rights,omitempty"`
	NavDate           *time.Time   `json:"navDate,omitempty"`
	Contexts          []ContextRef `json:"contexts"`
	Created           time.Time    `json:"created"`
	Modified          time.Time    `json:"modified"`
}

func (r *Resource) ContextIDs() []string {
	ids := make([]string, 0, len(r.Contexts))
	for _, context := range r.Contexts {
		ids = append(ids, context.ID)
	}
	return ids
}

// ContextIDsOfType returns the ids of the resource's contexts whose type
// equals contextType, ignoring case.
func (r *Resource) ContextIDsOfType(contextType string) []string {
	var ids []string
	for _, context := range r.Contexts {
		if strings.EqualFold(context.Type, contextType) {
			ids = append(ids, context.ID)
		}
	}
	return ids
}
