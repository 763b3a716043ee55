package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/meghashyamc/iiifsearch/db/kvdb"
	"github.com/meghashyamc/iiifsearch/db/searchdb"
)

const typeCanvas = "canvas"

type IngestRequest struct {
	ID              string            `json:"id" validate:"required,valid_identifier"`
	Thumbnail       string            `json:"thumbnail"`
	Resource        map[string]any    `json:"resource"`
	Contexts        []kvdb.ContextRef `json:"contexts"`
	Cascade         bool              `json:"cascade"`
	CascadeCanvases bool              `json:"cascade_canvases"`
}

type IngestResult struct {
	Resource        *kvdb.Resource
	FirstCanvasID   string
	FirstCanvasJSON map[string]any
	Children        int
}

// Ingest stores a new resource with its descriptive records and, when asked
// to cascade, every item of the resource as a child resource. A resource id
// that is already stored fails with kvdb.ErrAlreadyExists. Ingest stores all
// of the resources or none of them.
func (s *Service) Ingest(ctx context.Context, request IngestRequest) (*IngestResult, error) {
	contexts := append([]kvdb.ContextRef(nil), request.Contexts...)
	if resourceType := stringField(request.Resource, "type", "@type"); resourceType != "" {
		contexts = append(contexts, kvdb.ContextRef{ID: request.ID, Type: resourceType})
	}

	items := resourceItems(request.Resource)
	children := cascadeChildren(request, items)
	ids := []string{request.ID}
	for _, child := range children {
		ids = append(ids, child.id)
	}
	if err := s.checkAvailable(ids); err != nil {
		return nil, err
	}

	resource, err := s.ingestResource(ctx, request.ID, request.Thumbnail, request.Resource, contexts, nil)
	if err != nil {
		return nil, err
	}
	result := &IngestResult{Resource: resource}
	if len(items) > 0 {
		result.FirstCanvasID = stringField(items[0], "id", "@id")
		result.FirstCanvasJSON = items[0]
	}

	created := []string{request.ID}
	for _, child := range children {
		if _, err := s.ingestResource(ctx, child.id, request.Thumbnail, child.item, contexts, resource); err != nil {
			s.logger.Error("failed to ingest child resource", "err", err.Error(), "resource_id", child.id)
			s.rollback(ctx, created)
			return nil, fmt.Errorf("failed to ingest child resource %s: %w", child.id, err)
		}
		created = append(created, child.id)
		result.Children++
	}

	s.logger.Info("ingested resource", "resource_id", request.ID, "children", result.Children)
	return result, nil
}

type child struct {
	id   string
	item map[string]any
}

// cascadeChildren names the items ingested as child resources. Children are
// numbered by their position among all items.
func cascadeChildren(request IngestRequest, items []map[string]any) []child {
	if !request.Cascade && !request.CascadeCanvases {
		return nil
	}
	var children []child
	for n, item := range items {
		itemType := lowerType(item)
		if !request.Cascade && itemType != typeCanvas {
			continue
		}
		children = append(children, child{id: fmt.Sprintf("%s:%s:%d", request.ID, itemType, n), item: item})
	}
	return children
}

// checkAvailable fails with kvdb.ErrAlreadyExists for the first of madocIDs
// that is already stored.
func (s *Service) checkAvailable(madocIDs []string) error {
	for _, madocID := range madocIDs {
		_, err := s.resources.Resource(madocID)
		switch {
		case err == nil:
			s.logger.Warn("resource already exists", "resource_id", madocID)
			return &kvdb.AlreadyExistsError{Key: madocID}
		case !errors.Is(err, kvdb.ErrNotFound):
			s.logger.Error("failed to look up resource", "err", err.Error(), "resource_id", madocID)
			return err
		}
	}
	return nil
}

// rollback removes resources created by a failed ingest together with their
// records. It runs even when ctx is already cancelled.
func (s *Service) rollback(ctx context.Context, madocIDs []string) {
	ctx = context.WithoutCancel(ctx)
	for i := len(madocIDs) - 1; i >= 0; i-- {
		madocID := madocIDs[i]
		if _, err := s.records.DeleteResource(ctx, madocID); err != nil {
			s.logger.Error("failed to roll back records", "err", err.Error(), "resource_id", madocID)
		}
		if err := s.resources.DeleteResource(madocID); err != nil && !errors.Is(err, kvdb.ErrNotFound) {
			s.logger.Error("failed to roll back resource", "err", err.Error(), "resource_id", madocID)
		}
	}
}

func resourceItems(resource map[string]any) []map[string]any {
	rawItems, _ := resource["items"].([]any)
	items := make([]map[string]any, 0, len(rawItems))
	for _, rawItem := range rawItems {
		if item, ok := rawItem.(map[string]any); ok {
			items = append(items, item)
		}
	}
	return items
}

// ingestResource creates one resource. Besides contexts it belongs to its
// own madoc and IIIF ids and, for children, to those of its parent.
func (s *Service) ingestResource(ctx context.Context, madocID, thumbnail string, iiif map[string]any, contexts []kvdb.ContextRef, parent *kvdb.Resource) (*kvdb.Resource, error) {
	resource := &kvdb.Resource{MadocID: madocID, MadocThumbnail: thumbnail}
	applyIIIF(resource, iiif)

	refs := append([]kvdb.ContextRef(nil), contexts...)
	if resource.Type != "" {
		refs = append(refs,
			kvdb.ContextRef{ID: madocID, Type: resource.Type},
			kvdb.ContextRef{ID: resource.ID, Type: resource.Type},
		)
	}
	if parent != nil {
		refs = append(refs,
			kvdb.ContextRef{ID: parent.ID, Type: parent.Type},
			kvdb.ContextRef{ID: parent.MadocID, Type: parent.Type},
		)
	}

	resolved, err := s.resolveContexts(refs)
	if err != nil {
		return nil, err
	}
	resource.Contexts = resolved

	if err := s.resources.CreateResource(resource); err != nil {
		if errors.Is(err, kvdb.ErrAlreadyExists) {
			s.logger.Warn("resource already exists", "resource_id", madocID)
		} else {
			s.logger.Error("failed to create resource", "err", err.Error(), "resource_id", madocID)
		}
		return nil, err
	}

	scope := scopeOf(resource)
	records := s.buildRecords(s.flattener.Descriptive(iiif), &scope)
	if err := s.records.ReplaceWhere(ctx, descriptiveRecords(madocID), records); err != nil {
		s.logger.Error("failed to index descriptive records", "err", err.Error(), "resource_id", madocID)
		s.rollback(ctx, []string{madocID})
		return nil, err
	}

	return resource, nil
}

type UpdateRequest struct {
	MadocThumbnail *string           `json:"madoc_thumbnail"`
	Resource       map[string]any    `json:"resource"`
	Contexts       []kvdb.ContextRef `json:"contexts"`
}

// Update is the only path that changes a stored resource. A new IIIF
// resource replaces the descriptive records; new contexts replace the
// context set, which always keeps the resource's own ids.
func (s *Service) Update(ctx context.Context, madocID string, request UpdateRequest) (*kvdb.Resource, error) {
	resource, err := s.resources.Resource(madocID)
	if err != nil {
		return nil, err
	}

	if request.MadocThumbnail != nil {
		resource.MadocThumbnail = *request.MadocThumbnail
	}
	if request.Resource != nil {
		applyIIIF(resource, request.Resource)
	}
	if request.Contexts != nil {
		refs := append([]kvdb.ContextRef(nil), request.Contexts...)
		if resource.Type != "" {
			refs = append(refs,
				kvdb.ContextRef{ID: resource.MadocID, Type: resource.Type},
				kvdb.ContextRef{ID: resource.ID, Type: resource.Type},
			)
		}
		resolved, err := s.resolveContexts(refs)
		if err != nil {
			return nil, err
		}
		resource.Contexts = resolved
	}

	if err := s.resources.SaveResource(resource); err != nil {
		s.logger.Error("failed to save resource", "err", err.Error(), "resource_id", madocID)
		return nil, err
	}

	scope := scopeOf(resource)
	if request.Resource != nil {
		if drafts := s.flattener.Descriptive(request.Resource); len(drafts) > 0 {
			records := s.buildRecords(drafts, &scope)
			if err := s.records.ReplaceWhere(ctx, descriptiveRecords(madocID), records); err != nil {
				s.logger.Error("failed to replace descriptive records", "err", err.Error(), "resource_id", madocID)
				return nil, err
			}
		}
	}
	if err := s.records.Restamp(ctx, scope); err != nil {
		s.logger.Error("failed to restamp records", "err", err.Error(), "resource_id", madocID)
		return nil, err
	}

	return resource, nil
}

// Scope returns the scope records of madocID are stamped with.
func (s *Service) Scope(madocID string) (searchdb.Scope, error) {
	resource, err := s.resources.Resource(madocID)
	if err != nil {
		return searchdb.Scope{}, err
	}
	return scopeOf(resource), nil
}
