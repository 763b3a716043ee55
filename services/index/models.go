package index

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/meghashyamc/iiifsearch/db/kvdb"
	"github.com/meghashyamc/iiifsearch/db/searchdb"
)

type ModelRequest struct {
	Resource   map[string]any `json:"resource" validate:"required"`
	ResourceID string         `json:"resource_id" validate:"required,valid_identifier"`
	ContentID  string         `json:"content_id"`
	Type       string         `json:"type"`
}

type RejectedRecord struct {
	Record searchdb.Record `json:"record"`
	Reason string          `json:"reason"`
}

type ModelResult struct {
	Accepted []searchdb.Record `json:"accepted"`
	Rejected []RejectedRecord  `json:"rejected"`
}

// Partial reports whether some records were stored and some were not.
func (r *ModelResult) Partial() bool {
	return len(r.Accepted) > 0 && len(r.Rejected) > 0
}

// IngestModel flattens an OCR or capture model payload and stores the records
// that validate. Records already stored for the same resource and content
// are replaced. When no record validates nothing is written and the result
// comes back together with ErrNoValidRecords.
func (s *Service) IngestModel(ctx context.Context, request ModelRequest) (*ModelResult, error) {
	drafts, err := s.flattener.Model(request.Type, request.Resource)
	if err != nil {
		s.logger.Warn("could not flatten model", "err", err.Error(), "resource_id", request.ResourceID)
		return nil, err
	}
	if len(drafts) == 0 {
		return nil, ErrNothingToIndex
	}

	for i := range drafts {
		if drafts[i].ResourceID == "" {
			drafts[i].ResourceID = request.ResourceID
		}
		if request.ContentID != "" {
			drafts[i].ContentID = request.ContentID
		}
	}

	result := &ModelResult{}
	scopes := make(map[string]*searchdb.Scope)
	for _, record := range s.buildRecords(drafts, nil) {
		scope, err := s.scopeFor(record.ResourceID, scopes)
		if err != nil {
			return nil, err
		}
		if reason := rejectReason(record, scope); reason != "" {
			result.Rejected = append(result.Rejected, RejectedRecord{Record: record, Reason: reason})
			continue
		}
		record.ApplyScope(*scope)
		result.Accepted = append(result.Accepted, record)
	}

	if len(result.Accepted) == 0 {
		s.logger.Warn("no valid records in model", "resource_id", request.ResourceID, "rejected", len(result.Rejected))
		return result, ErrNoValidRecords
	}

	pairs := []searchdb.Pair{{ResourceID: request.ResourceID, ContentID: request.ContentID}}
	for _, record := range result.Accepted {
		pairs = append(pairs, record.Pair())
	}
	if err := s.records.Replace(ctx, pairs, result.Accepted); err != nil {
		s.logger.Error("failed to store model records", "err", err.Error(), "resource_id", request.ResourceID)
		return nil, err
	}

	s.logger.Info("ingested model", "resource_id", request.ResourceID, "accepted", len(result.Accepted), "rejected", len(result.Rejected))
	return result, nil
}

// scopeFor looks up the scope of a resource once per ingest. A resource that
// is not stored has a nil scope.
func (s *Service) scopeFor(madocID string, scopes map[string]*searchdb.Scope) (*searchdb.Scope, error) {
	if scope, ok := scopes[madocID]; ok {
		return scope, nil
	}
	resource, err := s.resources.Resource(madocID)
	switch {
	case errors.Is(err, kvdb.ErrNotFound), errors.Is(err, kvdb.ErrInvalidKey):
		scopes[madocID] = nil
		return nil, nil
	case err != nil:
		s.logger.Error("failed to get resource", "err", err.Error(), "resource_id", madocID)
		return nil, fmt.Errorf("failed to get resource %s: %w", madocID, err)
	}
	scope := scopeOf(resource)
	scopes[madocID] = &scope
	return &scope, nil
}

func rejectReason(record searchdb.Record, scope *searchdb.Scope) string {
	switch {
	case scope == nil:
		return fmt.Sprintf("resource %q does not exist", record.ResourceID)
	case record.Type == "":
		return "type is required"
	case strings.TrimSpace(record.Indexable) == "" && record.IndexableInt == nil && record.IndexableFloat == nil &&
		record.DateRangeStart == nil && record.DateRangeEnd == nil:
		return "record has nothing to index"
	}
	return ""
}
