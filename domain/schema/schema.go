// Package schema provides the static schema model: named element sets,
// element value resolution, and the mapper contract. Schemas are immutable
// once loaded and validated.
package schema

import (
	"fmt"
	"strings"

	"github.com/artpar/reportgate/domain/lookup"
)

// Type is an element's value type.
type Type string

const (
	TypeText         Type = "TEXT"
	TypeTextOrBlank  Type = "TEXT_OR_BLANK"
	TypeNumber       Type = "NUMBER"
	TypeDate         Type = "DATE"
	TypeDatetime     Type = "DATETIME"
	TypeCode         Type = "CODE"
	TypeTable        Type = "TABLE"
	TypeTableOrBlank Type = "TABLE_OR_BLANK"
	TypePostalCode   Type = "POSTAL_CODE"
	TypeTelephone    Type = "TELEPHONE"
	TypeHD           Type = "HD"
	TypeEI           Type = "EI"
	TypeIDCLIA       Type = "ID_CLIA"
	TypeID           Type = "ID"
	TypeIDNPI        Type = "ID_NPI"
	TypeStreet       Type = "STREET"
	TypeCity         Type = "CITY"
	TypeCounty       Type = "COUNTY"
	TypeEmail        Type = "EMAIL"
	TypePersonName   Type = "PERSON_NAME"
)

// Cardinality constrains how many values an element may carry per item.
type Cardinality string

const (
	CardinalityOne       Cardinality = "ONE"
	CardinalityZeroOrOne Cardinality = "ZERO_OR_ONE"
)

// Date and datetime layouts shared by elements and mappers.
const (
	DateLayout             = "20060102"
	DatetimeLayout         = "200601021504-0700"
	ExpandedDatetimeLayout = "20060102150405.0000-0700"
)

// Schema is a named, versioned set of element definitions plus a topic
// classifying the data domain.
type Schema struct {
	Name            string    `yaml:"name"`
	Topic           string    `yaml:"topic"`
	TrackingElement string    `yaml:"trackingElement"`
	Description     string    `yaml:"description"`
	Elements        []Element `yaml:"elements"`

	index map[string]int
}

// FindElement returns the element with the given name, or nil.
func (s *Schema) FindElement(name string) *Element {
	if s == nil {
		return nil
	}
	if s.index == nil {
		s.buildIndex()
	}
	if i, ok := s.index[name]; ok {
		return &s.Elements[i]
	}
	return nil
}

func (s *Schema) buildIndex() {
	s.index = make(map[string]int, len(s.Elements))
	for i := range s.Elements {
		s.index[s.Elements[i].Name] = i
	}
}

// Error is a schema-definition error. It is raised only while loading or
// validating a schema, never during row processing.
type Error struct {
	Schema  string
	Element string
	Msg     string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("schema ")
	b.WriteString(e.Schema)
	if e.Element != "" {
		b.WriteString(", element ")
		b.WriteString(e.Element)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	return b.String()
}

// Errorf builds a schema-definition error.
func Errorf(schemaName, elementName, format string, args ...any) *Error {
	return &Error{Schema: schemaName, Element: elementName, Msg: fmt.Sprintf(format, args...)}
}

// MapperRegistry resolves mapper names to mapper implementations. It is
// consulted once, at schema-load time.
type MapperRegistry interface {
	Find(name string) (Mapper, bool)
}

// TableSource resolves lookup table names at schema-load time.
type TableSource interface {
	Table(name string) (*lookup.Table, bool)
}
