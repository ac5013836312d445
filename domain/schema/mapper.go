package schema

import (
	"regexp"
	"strings"
)

// Mapper is a stateless strategy that computes an element's value from the
// values of sibling elements. A mapper is configured on an element as
// `mapper: name(arg1, arg2)`. ValueNames declares which sibling elements the
// mapper needs; it is called during schema validation and its arity errors
// are schema-definition errors. Apply is called once per item with the
// resolved dependency values and must be pure given those values and the
// optional read-only sender context.
type Mapper interface {
	Name() string
	ValueNames(e *Element, args []string) ([]string, error)
	Apply(e *Element, args []string, values []ElementAndValue, sender SenderContext) ElementResult
}

// ElementAndValue pairs a dependency element with its resolved value for the
// current item.
type ElementAndValue struct {
	Element *Element
	Value   string
}

// SenderContext exposes named settings of the submitting sender to mappers.
// Field returns the string form of the named setting, or ok=false when the
// name is not a known sender field.
type SenderContext interface {
	Field(name string) (string, bool)
}

// DetailKind classifies a per-item message.
type DetailKind string

const (
	KindError   DetailKind = "error"
	KindWarning DetailKind = "warning"
)

// Detail is one per-item error or warning message.
type Detail struct {
	Kind    DetailKind
	Message string
}

// ElementResult is the outcome of resolving one element's value for one
// item: the computed value plus any errors and warnings accumulated while
// computing it. It is mutated only during a single resolution pass.
type ElementResult struct {
	Value    string
	Errors   []Detail
	Warnings []Detail
}

// Result builds an ElementResult carrying just a value.
func Result(value string) ElementResult {
	return ElementResult{Value: value}
}

// Error appends an error message to the result.
func (r *ElementResult) Error(msg string) {
	r.Errors = append(r.Errors, Detail{Kind: KindError, Message: msg})
}

// Warning appends a warning message to the result.
func (r *ElementResult) Warning(msg string) {
	r.Warnings = append(r.Warnings, Detail{Kind: KindWarning, Message: msg})
}

// DowngradeErrors converts all errors on the result into warnings. Used when
// the element's cardinality tolerates a blank outcome.
func (r *ElementResult) DowngradeErrors() {
	for _, d := range r.Errors {
		r.Warnings = append(r.Warnings, Detail{Kind: KindWarning, Message: d.Message})
	}
	r.Errors = nil
}

var mapperFieldRe = regexp.MustCompile(`^([a-zA-Z0-9]+)\(([a-z, ._\-A-Z0-9?&$*:^]*)\)$`)

// ParseMapperField splits a schema mapper declaration such as
// "concat(a, b)" into its mapper name and argument list.
func ParseMapperField(field string) (string, []string, error) {
	m := mapperFieldRe.FindStringSubmatch(strings.TrimSpace(field))
	if m == nil {
		return "", nil, Errorf("", "", "mapper field %q does not parse", field)
	}
	if m[2] == "" {
		return m[1], nil, nil
	}
	parts := strings.Split(m[2], ",")
	args := make([]string, len(parts))
	for i, p := range parts {
		args[i] = strings.TrimSpace(p)
	}
	return m[1], args, nil
}
