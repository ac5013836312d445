// Package sender provides sending-client settings. Mappers read sender
// fields by name through an explicit accessor map rather than reflection,
// so an unknown field is a typed miss instead of a runtime surprise.
package sender

import (
	"fmt"
	"strings"

	"github.com/artpar/reportgate/domain/report"
)

// Sender is the settings record for one sending client (immutable value
// type).
type Sender struct {
	Name             string        `yaml:"name"`
	OrganizationName string        `yaml:"organization"`
	Topic            string        `yaml:"topic"`
	SchemaName       string        `yaml:"schemaName"`
	Format           report.Format `yaml:"format"`
	CustomerStatus   string        `yaml:"customerStatus"`
}

// FullName returns the organization-qualified sender name.
func (s *Sender) FullName() string {
	return s.OrganizationName + "." + s.Name
}

// fields maps every field name a schema may reference to its extractor.
var fields = map[string]func(*Sender) string{
	"name":             func(s *Sender) string { return s.Name },
	"organizationName": func(s *Sender) string { return s.OrganizationName },
	"fullName":         func(s *Sender) string { return s.FullName() },
	"topic":            func(s *Sender) string { return s.Topic },
	"schemaName":       func(s *Sender) string { return s.SchemaName },
	"format":           func(s *Sender) string { return string(s.Format) },
	"customerStatus":   func(s *Sender) string { return s.CustomerStatus },
}

// Field returns the string form of the named settings field. ok is false
// when the name is not a known field.
func (s *Sender) Field(name string) (string, bool) {
	extract, ok := fields[name]
	if !ok {
		return "", false
	}
	return extract(s), true
}

// ParseFullName splits an "organization.client" name.
func ParseFullName(fullName string) (org, client string, err error) {
	org, client, found := strings.Cut(fullName, ".")
	if !found || org == "" || client == "" {
		return "", "", fmt.Errorf("sender name %q is not organization.client", fullName)
	}
	return org, client, nil
}

// Validate checks the sender definition.
func (s *Sender) Validate() error {
	if s.Name == "" || s.OrganizationName == "" {
		return fmt.Errorf("sender %q needs both an organization and a client name", s.FullName())
	}
	if s.Topic == "" {
		return fmt.Errorf("sender %s has no topic", s.FullName())
	}
	return nil
}
