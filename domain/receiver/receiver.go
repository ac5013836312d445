// Package receiver provides delivery-target definitions: which schema and
// format a downstream organization receives, which items it accepts, and
// when its deliveries go out.
package receiver

import (
	"fmt"
	"regexp"

	"github.com/artpar/reportgate/domain/report"
)

// Filter is one receiver predicate: an item survives when the named
// element's value matches the pattern.
type Filter struct {
	Element string `yaml:"element"`
	Pattern string `yaml:"pattern"`
}

// Receiver is one delivery target (immutable value type).
type Receiver struct {
	Name             string        `yaml:"name"`
	OrganizationName string        `yaml:"organization"`
	Topic            string        `yaml:"topic"`
	SchemaName       string        `yaml:"schemaName"`
	Format           report.Format `yaml:"format"`
	Timing           *Timing       `yaml:"timing"`
	Filters          []Filter      `yaml:"filters"`
}

// FullName returns the organization-qualified receiver name.
func (r *Receiver) FullName() string {
	return r.OrganizationName + "." + r.Name
}

// AcceptsItem applies every filter predicate to one item. An item with no
// value for a filtered element is rejected.
func (r *Receiver) AcceptsItem(item report.Item) (bool, error) {
	for _, f := range r.Filters {
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return false, fmt.Errorf("receiver %s: filter on %s: %w", r.FullName(), f.Element, err)
		}
		if !re.MatchString(item[f.Element]) {
			return false, nil
		}
	}
	return true, nil
}

// Validate checks the receiver definition.
func (r *Receiver) Validate() error {
	if r.Name == "" || r.OrganizationName == "" {
		return fmt.Errorf("receiver %q needs both an organization and a service name", r.FullName())
	}
	if r.Topic == "" {
		return fmt.Errorf("receiver %s has no topic", r.FullName())
	}
	if r.SchemaName == "" {
		return fmt.Errorf("receiver %s has no target schema", r.FullName())
	}
	for _, f := range r.Filters {
		if _, err := regexp.Compile(f.Pattern); err != nil {
			return fmt.Errorf("receiver %s: filter on %s: %w", r.FullName(), f.Element, err)
		}
	}
	if r.Timing != nil {
		if err := r.Timing.Validate(); err != nil {
			return fmt.Errorf("receiver %s: %w", r.FullName(), err)
		}
	}
	return nil
}
