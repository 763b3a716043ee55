package kvdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const contextKeySeparator = "\x1f"

// Store keeps resources and contexts as JSON documents in a DB.
type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

func contextKey(id, contextType string) string {
	return id + contextKeySeparator + contextType
}

// CreateResource fails with ErrAlreadyExists when a resource with the same
// madoc id is stored.
func (s *Store) CreateResource(resource *Resource) error {
	now := time.Now().UTC()
	resource.Created, resource.Modified = now, now

	encoded, err := json.Marshal(resource)
	if err != nil {
		return fmt.Errorf("failed to encode resource %s: %w", resource.MadocID, err)
	}
	return s.db.Create(BucketResources, resource.MadocID, string(encoded))
}

func (s *Store) SaveResource(resource *Resource) error {
	resource.Modified = time.Now().UTC()

	encoded, err := json.Marshal(resource)
	if err != nil {
		return fmt.Errorf("failed to encode resource %s: %w", resource.MadocID, err)
	}
	return s.db.Set(BucketResources, resource.MadocID, string(encoded))
}

func (s *Store) Resource(madocID string) (*Resource, error) {
	encoded, err := s.db.Get(BucketResources, madocID)
	if err != nil {
		return nil, err
	}

	resource := &Resource{}
	if err := json.Unmarshal([]byte(encoded), resource); err != nil {
		return nil, fmt.Errorf("failed to decode resource %s: %w", madocID, err)
	}
	return resource, nil
}

// Resources returns the stored resources among madocIDs, keyed by id.
// Unknown ids are left out.
func (s *Store) Resources(madocIDs []string) (map[string]*Resource, error) {
	resources := make(map[string]*Resource, len(madocIDs))
	for _, madocID := range madocIDs {
		resource, err := s.Resource(madocID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		resources[madocID] = resource
	}
	return resources, nil
}

func (s *Store) DeleteResource(madocID string) error {
	if _, err := s.db.Get(BucketResources, madocID); err != nil {
		return err
	}
	return s.db.Delete(BucketResources, madocID)
}

// GetOrCreateContext returns the stored context for id and type, creating
// it on first use.
func (s *Store) GetOrCreateContext(id, contextType string) (Context, error) {
	if id == "" {
		return Context{}, &InvalidKeyError{Key: id, Reason: "context id cannot be empty"}
	}

	key := contextKey(id, contextType)
	context := Context{ID: id, Type: contextType, Created: time.Now().UTC()}
	encoded, err := json.Marshal(context)
	if err != nil {
		return Context{}, err
	}

	err = s.db.Create(BucketContexts, key, string(encoded))
	if err == nil {
		return context, nil
	}
	if !errors.Is(err, ErrAlreadyExists) {
		return Context{}, err
	}

	stored, err := s.db.Get(BucketContexts, key)
	if err != nil {
		return Context{}, err
	}
	if err := json.Unmarshal([]byte(stored), &context); err != nil {
		return Context{}, fmt.Errorf("failed to decode context %s: %w", id, err)
	}
	return context, nil
}

// Contexts lists stored contexts ordered by id and type.
func (s *Store) Contexts() ([]Context, error) {
	var contexts []Context
	err := s.db.Scan(BucketContexts, "", func(_ string, value string) error {
		var context Context
		if err := json.Unmarshal([]byte(value), &context); err != nil {
			return err
		}
		contexts = append(contexts, context)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return contexts, nil
}
