// Package template assembles the CloudFormation template for a definition.
package template

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/Jeffail/gabs/v2"
	"gopkg.in/yaml.v3"
)

// FormatVersion is the only template format version CloudFormation accepts.
const FormatVersion = "2010-09-09"

// Output formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Template is a CloudFormation template document.
type Template struct {
	doc *gabs.Container
}

// Resource is one entry of the Resources section.
type Resource struct {
	Type                string
	Properties          map[string]any
	DependsOn           []string
	Metadata            map[string]any
	DeletionPolicy      string
	UpdateReplacePolicy string
}

// New creates an empty template.
func New(description string) *Template {
	doc := gabs.New()
	doc.Set(FormatVersion, "AWSTemplateFormatVersion")
	if description != "" {
		doc.Set(description, "Description")
	}
	return &Template{doc: doc}
}

// Parse wraps an existing template document.
func Parse(data []byte) (*Template, error) {
	doc, err := gabs.ParseJSON(data)
	if err == nil {
		return &Template{doc: doc}, nil
	}

	var raw map[string]any
	if yamlErr := yaml.Unmarshal(data, &raw); yamlErr != nil || raw == nil {
		return nil, fmt.Errorf("template is neither JSON (%v) nor YAML", err)
	}
	return &Template{doc: gabs.Wrap(raw)}, nil
}

// AddResource adds a resource under logicalID. IDs are unique per template.
func (t *Template) AddResource(logicalID string, r Resource) error {
	if t.doc.Exists("Resources", logicalID) {
		return fmt.Errorf("duplicate logical ID %s", logicalID)
	}

	entry := map[string]any{"Type": r.Type}
	if len(r.Properties) > 0 {
		entry["Properties"] = r.Properties
	}
	if len(r.DependsOn) > 0 {
		deps := make([]any, len(r.DependsOn))
		for i, d := range r.DependsOn {
			deps[i] = d
		}
		entry["DependsOn"] = deps
	}
	if len(r.Metadata) > 0 {
		entry["Metadata"] = r.Metadata
	}
	if r.DeletionPolicy != "" {
		entry["DeletionPolicy"] = r.DeletionPolicy
	}
	if r.UpdateReplacePolicy != "" {
		entry["UpdateReplacePolicy"] = r.UpdateReplacePolicy
	}

	_, err := t.doc.Set(entry, "Resources", logicalID)
	return err
}

// AddOutput exports value under name.
func (t *Template) AddOutput(name, description string, value any) error {
	output := map[string]any{"Value": value}
	if description != "" {
		output["Description"] = description
	}
	_, err := t.doc.Set(output, "Outputs", name)
	return err
}

// Doc exposes the underlying document for inspection.
func (t *Template) Doc() *gabs.Container {
	return t.doc
}

// Resources returns the resources of the given type keyed by logical ID.
func (t *Template) Resources(resourceType string) map[string]*gabs.Container {
	found := map[string]*gabs.Container{}
	for id, res := range t.doc.Search("Resources").ChildrenMap() {
		if resourceType == "" || res.Search("Type").Data() == resourceType {
			found[id] = res
		}
	}
	return found
}

// ResourceIDs returns the sorted logical IDs of resources of the given type.
func (t *Template) ResourceIDs(resourceType string) []string {
	return sortedKeys(t.Resources(resourceType))
}

// Render serializes the template. Both formats sort keys, so equal documents
// always render to equal bytes.
func (t *Template) Render(format string) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		out := t.doc.BytesIndent("", "  ")
		return append(out, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(t.doc.Data()); err != nil {
			return nil, fmt.Errorf("failed to encode template as YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode template as YAML: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported template format %q", format)
	}
}

// sortedKeys returns the keys of m in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
