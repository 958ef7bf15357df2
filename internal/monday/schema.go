package monday

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed manifest.yaml
var defaultManifest []byte

// Field is one entry of a stream's property schema. A field with children
// becomes a nested selection; a field without becomes a scalar.
type Field struct {
	Name     string
	Children FieldSchema
}

// FieldSchema keeps the manifest's property order.
type FieldSchema []Field

func (s FieldSchema) Names() []string {
	names := make([]string, 0, len(s))
	for _, f := range s {
		names = append(names, f.Name)
	}
	return names
}

func (s FieldSchema) Without(names ...string) FieldSchema {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	out := make(FieldSchema, 0, len(s))
	for _, f := range s {
		if _, ok := drop[f.Name]; ok {
			continue
		}
		out = append(out, f)
	}
	return out
}

// synthesizedFields are produced by extractors and transformations, never
// requested from the API.
var synthesizedFields = []string{"updated_at_int", "created_at_int", "pulse_id"}

type Manifest struct {
	Path    string
	schemas map[string]FieldSchema
	order   []string
}

func DefaultManifest() (*Manifest, error) {
	return ParseManifest("manifest.yaml", defaultManifest)
}

func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(path, data)
}

func ParseManifest(path string, data []byte) (*Manifest, error) {
	var doc struct {
		Schemas yaml.Node `yaml:"schemas"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	if doc.Schemas.Kind != yaml.MappingNode || len(doc.Schemas.Content) == 0 {
		return nil, fmt.Errorf("cannot find schemas in manifest %s", path)
	}

	m := &Manifest{Path: path, schemas: map[string]FieldSchema{}}
	for i := 0; i+1 < len(doc.Schemas.Content); i += 2 {
		name := doc.Schemas.Content[i].Value
		props := mappingValue(doc.Schemas.Content[i+1], "properties")
		if props == nil {
			return nil, fmt.Errorf("schema %s has no properties", name)
		}
		fields, err := parseProperties(props)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		m.schemas[name] = fields
		m.order = append(m.order, name)
	}
	return m, nil
}

func (m *Manifest) Streams() []string {
	return append([]string(nil), m.order...)
}

func (m *Manifest) Schema(stream string) (FieldSchema, bool) {
	s, ok := m.schemas[stream]
	return s, ok
}

// Properties returns the fields to request for stream, without the ones
// the connector derives itself.
func (m *Manifest) Properties(stream string) (FieldSchema, error) {
	s, ok := m.schemas[stream]
	if !ok {
		return nil, fmt.Errorf("%w: no schema for stream %q", ErrNotFound, stream)
	}
	drop := synthesizedFields
	if stream == "activity_logs" {
		drop = append(append([]string(nil), drop...), "board_id")
	}
	return s.Without(drop...), nil
}

func parseProperties(node *yaml.Node) (FieldSchema, error) {
	if node.Kind != yaml.MappingNode {
		return nil, errors.New("properties must be a mapping")
	}
	fields := make(FieldSchema, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		field := Field{Name: node.Content[i].Value}
		nested := mappingValue(node.Content[i+1], "properties")
		if nested == nil {
			nested = mappingValue(mappingValue(node.Content[i+1], "items"), "properties")
		}
		if nested != nil && len(nested.Content) > 0 {
			children, err := parseProperties(nested)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", field.Name, err)
			}
			field.Children = children
		}
		fields = append(fields, field)
	}
	return fields, nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil {
		return nil
	}
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			v := node.Content[i+1]
			if v.Kind == yaml.AliasNode {
				return v.Alias
			}
			return v
		}
	}
	return nil
}
