package flatten

import (
	"fmt"
	"sort"
	"strings"

	"github.com/meghashyamc/iiifsearch/db/searchdb"
)

const regionProperty = "region"

type captureModel struct {
	Document *rawNode `mapstructure:"document"`
	Targets  []struct {
		ID   string `mapstructure:"id"`
		Type string `mapstructure:"type"`
	} `mapstructure:"target"`
}

type rawNode struct {
	ID         string         `mapstructure:"id"`
	Type       string         `mapstructure:"type"`
	Label      any            `mapstructure:"label"`
	Value      any            `mapstructure:"value"`
	Selector   any            `mapstructure:"selector"`
	Properties map[string]any `mapstructure:"properties"`
}

// captureNode is one of regionNode, entityNode or leafNode.
type captureNode interface {
	captureNode()
}

type regionNode struct {
	id       string
	label    string
	value    string
	selector any
}

type entityNode struct {
	nodeType   string
	properties map[string][]captureNode
}

type leafNode struct {
	id       string
	value    string
	selector any
}

func (regionNode) captureNode() {}
func (entityNode) captureNode() {}
func (leafNode) captureNode()   {}

// CaptureModel flattens a capture model document. A document with regions
// yields one draft per region; any other document is walked property by
// property and yields one draft per field that has a value.
func (f *Flattener) CaptureModel(resource map[string]any) ([]Draft, error) {
	var model captureModel
	if err := weakDecode(resource, &model); err != nil {
		return nil, fmt.Errorf("could not read capture model: %w", err)
	}
	if model.Document == nil {
		return nil, nil
	}

	var target string
	if len(model.Targets) > 0 {
		target = model.Targets[len(model.Targets)-1].ID
	}

	document, err := parseProperties(model.Document.Properties)
	if err != nil {
		return nil, err
	}

	var drafts []Draft
	if regions, ok := document[regionProperty]; ok {
		for _, node := range regions {
			region, ok := node.(regionNode)
			if !ok {
				continue
			}
			drafts = append(drafts, regionDraft(region, model.Document.Type, target))
		}
		return drafts, nil
	}

	walkProperties(document, newSubtypePath(model.Document.Type), target, &drafts)
	return drafts, nil
}

func regionDraft(region regionNode, documentType string, target string) Draft {
	subtype := strings.Join([]string{documentType, slugify(region.label)}, ".")
	draft := Draft{
		Record: searchdb.Record{
			ResourceID:      target,
			ContentID:       region.id,
			Subtype:         subtype,
			Indexable:       region.value,
			OriginalContent: region.value,
		},
	}
	if kind, box, ok := SimplifySelector(region.selector); ok {
		draft.Selector = searchdb.Selector{kind: {box}}
	}
	return draft
}

// walkProperties visits properties in key order so that the drafts come out
// in the same order for the same document.
func walkProperties(properties map[string][]captureNode, path subtypePath, target string, drafts *[]Draft) {
	for _, key := range sortedNodeKeys(properties) {
		propertyPath := path.with(slugify(key))
		for _, node := range properties[key] {
			switch n := node.(type) {
			case entityNode:
				walkProperties(n.properties, propertyPath.with(slugify(n.nodeType)), target, drafts)
			case leafNode:
				*drafts = append(*drafts, leafDraft(n, propertyPath, target))
			case regionNode:
				*drafts = append(*drafts, leafDraft(leafNode{id: n.id, value: n.value, selector: n.selector}, propertyPath, target))
			}
		}
	}
}

func leafDraft(leaf leafNode, path subtypePath, target string) Draft {
	draft := Draft{
		Record: searchdb.Record{
			ResourceID:      target,
			ContentID:       leaf.id,
			Subtype:         path.String(),
			Indexable:       leaf.value,
			OriginalContent: leaf.value,
		},
	}
	if kind, box, ok := SimplifySelector(leaf.selector); ok {
		draft.Selector = searchdb.Selector{kind: {box}}
	}
	return draft
}

func parseProperties(raw map[string]any) (map[string][]captureNode, error) {
	properties := make(map[string][]captureNode, len(raw))
	for key, value := range raw {
		var items []any
		switch v := value.(type) {
		case []any:
			items = v
		case map[string]any:
			items = []any{v}
		default:
			continue
		}

		for _, item := range items {
			node, err := parseNode(key, item)
			if err != nil {
				return nil, err
			}
			if node != nil {
				properties[key] = append(properties[key], node)
			}
		}
	}
	return properties, nil
}

// parseNode returns nil for nodes with neither a value nor properties.
func parseNode(key string, item any) (captureNode, error) {
	var raw rawNode
	if err := weakDecode(item, &raw); err != nil {
		return nil, fmt.Errorf("could not read capture model property %q: %w", key, err)
	}

	if len(raw.Properties) > 0 {
		properties, err := parseProperties(raw.Properties)
		if err != nil {
			return nil, err
		}
		return entityNode{nodeType: raw.Type, properties: properties}, nil
	}

	value := scalarString(raw.Value)
	if len(value) == 0 || len(raw.ID) == 0 {
		return nil, nil
	}
	if key == regionProperty {
		return regionNode{id: raw.ID, label: scalarString(raw.Label), value: value, selector: raw.Selector}, nil
	}
	return leafNode{id: raw.ID, value: value, selector: raw.Selector}, nil
}

// scalarString renders strings, numbers and true; false, null and
// structured values count as no value.
func scalarString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return ""
	case map[string]any, []any:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func sortedNodeKeys(m map[string][]captureNode) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
