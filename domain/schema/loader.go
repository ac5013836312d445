package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Load parses a YAML schema definition and validates it. Mapper and table
// names are resolved here, once; any malformed element definition is fatal
// to loading the schema.
func Load(data []byte, reg MapperRegistry, tables TableSource) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if err := s.Validate(reg, tables); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate resolves and checks every element definition.
func (s *Schema) Validate(reg MapperRegistry, tables TableSource) error {
	if s.Name == "" {
		return Errorf("", "", "schema has no name")
	}
	if s.Topic == "" {
		return Errorf(s.Name, "", "schema has no topic")
	}
	seen := make(map[string]bool, len(s.Elements))
	for i := range s.Elements {
		name := s.Elements[i].Name
		if seen[name] {
			return Errorf(s.Name, name, "duplicate element")
		}
		seen[name] = true
	}
	// Index before resolving so mappers can see sibling elements.
	s.buildIndex()
	for i := range s.Elements {
		if err := s.Elements[i].Resolve(s, reg, tables); err != nil {
			return err
		}
	}
	if s.TrackingElement != "" && s.FindElement(s.TrackingElement) == nil {
		return Errorf(s.Name, "", "tracking element %q is not defined", s.TrackingElement)
	}
	return nil
}
