package index

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/meghashyamc/iiifsearch/db/kvdb"
	"github.com/meghashyamc/iiifsearch/db/searchdb"
	"github.com/meghashyamc/iiifsearch/flatten"
	"github.com/meghashyamc/iiifsearch/languages"
	"github.com/meghashyamc/iiifsearch/logger"
	"github.com/meghashyamc/iiifsearch/query"
)

var (
	ErrNothingToIndex = errors.New("nothing to index")
	ErrNoValidRecords = errors.New("no valid records")
)

// RecordStore is the part of the record index the ingest paths write to.
type RecordStore interface {
	Replace(ctx context.Context, pairs []searchdb.Pair, records []searchdb.Record) error
	ReplaceWhere(ctx context.Context, predicate query.Predicate, records []searchdb.Record) error
	DeleteResource(ctx context.Context, resourceID string) (int, error)
	Restamp(ctx context.Context, scope searchdb.Scope) error
	Records(ctx context.Context, predicate query.Predicate) ([]searchdb.Record, error)
}

type ResourceStore interface {
	CreateResource(resource *kvdb.Resource) error
	SaveResource(resource *kvdb.Resource) error
	Resource(madocID string) (*kvdb.Resource, error)
	DeleteResource(madocID string) error
	GetOrCreateContext(id, contextType string) (kvdb.Context, error)
	Contexts() ([]kvdb.Context, error)
}

type Service struct {
	logger    logger.Logger
	records   RecordStore
	resources ResourceStore
	flattener *flatten.Flattener
	languages *languages.Table
}

func New(logger logger.Logger, records RecordStore, resources ResourceStore, flattener *flatten.Flattener, table *languages.Table) *Service {
	return &Service{
		logger:    logger,
		records:   records,
		resources: resources,
		flattener: flattener,
		languages: table,
	}
}

// descriptiveRecords selects the records flattened from a resource's own
// descriptive properties, as opposed to the models ingested for it.
func descriptiveRecords(madocID string) query.Predicate {
	return query.AllOf(
		query.Equals(query.FieldResourceID, madocID),
		query.In(query.FieldType, []string{flatten.TypeDescriptive, flatten.TypeMetadata}),
	)
}

func scopeOf(resource *kvdb.Resource) searchdb.Scope {
	return searchdb.Scope{
		ResourceID:   resource.MadocID,
		SourceID:     resource.ID,
		ResourceType: resource.Type,
		Contexts:     resource.ContextIDs(),
	}
}

// buildRecords gives drafts their ids, resolved languages and the scope of
// the resource they belong to.
func (s *Service) buildRecords(drafts []flatten.Draft, scope *searchdb.Scope) []searchdb.Record {
	records := make([]searchdb.Record, 0, len(drafts))
	for _, draft := range drafts {
		record := draft.Record
		record.ID = uuid.NewString()
		if draft.Language != "" {
			if language, ok := s.languages.Resolve(draft.Language); ok {
				record.ISO6391 = language.ISO6391
				record.ISO6392 = language.ISO6392
				record.LanguageDisplay = language.Display
				record.SearchConfig = language.SearchConfig
			} else {
				s.logger.Debug("could not resolve language", "language", draft.Language)
			}
		}
		if scope != nil {
			record.ApplyScope(*scope)
		}
		records = append(records, record)
	}
	return records
}

// resolveContexts gets or creates every context once, keeping the first
// occurrence of each id and type.
func (s *Service) resolveContexts(refs []kvdb.ContextRef) ([]kvdb.ContextRef, error) {
	seen := make(map[kvdb.ContextRef]struct{}, len(refs))
	resolved := make([]kvdb.ContextRef, 0, len(refs))
	for _, ref := range refs {
		if ref.ID == "" {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}

		context, err := s.resources.GetOrCreateContext(ref.ID, ref.Type)
		if err != nil {
			s.logger.Error("failed to get or create context", "err", err.Error(), "context_id", ref.ID)
			return nil, fmt.Errorf("failed to get or create context %s: %w", ref.ID, err)
		}
		resolved = append(resolved, context.Ref())
	}
	return resolved, nil
}

func (s *Service) Get(madocID string) (*kvdb.Resource, error) {
	return s.resources.Resource(madocID)
}

// Delete removes a resource and every record indexed for it.
func (s *Service) Delete(ctx context.Context, madocID string) error {
	if _, err := s.resources.Resource(madocID); err != nil {
		return err
	}

	deleted, err := s.records.DeleteResource(ctx, madocID)
	if err != nil {
		s.logger.Error("failed to delete records", "err", err.Error(), "resource_id", madocID)
		return err
	}
	if err := s.resources.DeleteResource(madocID); err != nil {
		s.logger.Error("failed to delete resource", "err", err.Error(), "resource_id", madocID)
		return err
	}

	s.logger.Info("deleted resource", "resource_id", madocID, "records", deleted)
	return nil
}

func (s *Service) Contexts() ([]kvdb.Context, error) {
	return s.resources.Contexts()
}

type RecordFilter struct {
	ResourceID string
	ContentID  string
	Type       string
	Subtype    string
}

// Records lists stored records. Empty filter fields match anything.
func (s *Service) Records(ctx context.Context, filter RecordFilter) ([]searchdb.Record, error) {
	var conditions []query.Predicate
	if filter.ResourceID != "" {
		conditions = append(conditions, query.Equals(query.FieldResourceID, filter.ResourceID))
	}
	if filter.ContentID != "" {
		conditions = append(conditions, query.Equals(query.FieldContentID, filter.ContentID))
	}
	if filter.Type != "" {
		conditions = append(conditions, query.EqualsFold(query.FieldType, filter.Type))
	}
	if filter.Subtype != "" {
		conditions = append(conditions, query.EqualsFold(query.FieldSubtype, filter.Subtype))
	}
	return s.records.Records(ctx, query.AllOf(conditions...))
}

func stringField(resource map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := resource[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// applyIIIF copies the descriptive properties of a IIIF resource onto the
// stored resource. Properties missing from iiif keep their stored value.
func applyIIIF(resource *kvdb.Resource, iiif map[string]any) {
	if id := stringField(iiif, "id", "@id"); id != "" {
		resource.ID = id
	}
	if resourceType := stringField(iiif, "type", "@type"); resourceType != "" {
		resource.Type = resourceType
	}
	blocks := map[string]*any{
		"label":             &resource.Label,
		"thumbnail":         &resource.Thumbnail,
		"summary":           &resource.Summary,
		"metadata":          &resource.Metadata,
		"requiredStatement": &resource.RequiredStatement,
		"provider":          &resource.Provider,
	}
	for key, block := range blocks {
		if value, ok := iiif[key]; ok {
			*block = value
		}
	}
	if rights := stringField(iiif, "rights"); rights != "" {
		resource.Rights = rights
	}
	if navDate := stringField(iiif, "navDate"); navDate != "" {
		if parsed, err := flatten.ParseDate(navDate); err == nil {
			resource.NavDate = &parsed
		}
	}
}

func lowerType(item map[string]any) string {
	return strings.ToLower(stringField(item, "type", "@type"))
}
