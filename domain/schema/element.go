package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/reportgate/domain/lookup"
)

// Element is one field definition within a schema (immutable value type
// once resolved). An element's value for an item is computed by ProcessValue
// using a fixed precedence: raw value, then mapper, then default.
type Element struct {
	Name                  string            `yaml:"name"`
	Type                  Type              `yaml:"type"`
	Cardinality           Cardinality       `yaml:"cardinality"`
	Mapper                string            `yaml:"mapper"`
	MapperOverridesValue  bool              `yaml:"mapperOverridesValue"`
	Default               *string           `yaml:"default"`
	DefaultOverridesValue bool              `yaml:"defaultOverridesValue"`
	Table                 string            `yaml:"table"`
	TableColumn           string            `yaml:"tableColumn"`
	Delimiter             string            `yaml:"delimiter"`
	AltValues             map[string]string `yaml:"altValues"`
	MaxLength             int               `yaml:"maxLength"`
	Documentation         string            `yaml:"documentation"`

	// Resolved at schema-load time, never per row.
	mapperRef        Mapper
	mapperArgs       []string
	mapperValueNames []string
	tableRef         *lookup.Table
}

// Special mapper argument tokens, substituted before dependency lookup.
const (
	tokenIndex        = "$index"
	tokenCurrentDate  = "$currentDate"
	tokenModePrefix   = "$mode:"
	tokenStringPrefix = "$string:"
)

// MapperRef returns the mapper resolved for this element, or nil.
func (e *Element) MapperRef() Mapper { return e.mapperRef }

// MapperArgs returns the parsed mapper arguments.
func (e *Element) MapperArgs() []string { return e.mapperArgs }

// TableRef returns the lookup table resolved for this element, or nil.
func (e *Element) TableRef() *lookup.Table { return e.tableRef }

// SetMapperRef wires a resolved mapper onto the element. Intended for
// schema loading and tests.
func (e *Element) SetMapperRef(m Mapper, args, valueNames []string) {
	e.mapperRef = m
	e.mapperArgs = args
	e.mapperValueNames = valueNames
}

// SetTableRef wires a resolved lookup table onto the element.
func (e *Element) SetTableRef(t *lookup.Table) { e.tableRef = t }

// Resolve validates the element definition and wires its mapper and lookup
// table references. All malformed-configuration problems surface here as
// schema-definition errors; they are never raised per row.
func (e *Element) Resolve(s *Schema, reg MapperRegistry, tables TableSource) error {
	if e.Name == "" {
		return Errorf(s.Name, "", "element with empty name")
	}
	if e.Cardinality == "" {
		e.Cardinality = CardinalityZeroOrOne
	}
	if e.Cardinality != CardinalityOne && e.Cardinality != CardinalityZeroOrOne {
		return Errorf(s.Name, e.Name, "unknown cardinality %q", e.Cardinality)
	}

	if e.Mapper != "" {
		name, args, err := ParseMapperField(e.Mapper)
		if err != nil {
			return Errorf(s.Name, e.Name, "invalid mapper %q: %v", e.Mapper, err)
		}
		ref, ok := reg.Find(name)
		if !ok {
			return Errorf(s.Name, e.Name, "unknown mapper %q", name)
		}
		valueNames, err := ref.ValueNames(e, args)
		if err != nil {
			return Errorf(s.Name, e.Name, "mapper %s: %v", name, err)
		}
		e.mapperRef = ref
		e.mapperArgs = args
		e.mapperValueNames = valueNames
	}

	needsTable := e.Type == TypeTable || e.Type == TypeTableOrBlank || e.Table != ""
	if needsTable {
		if e.Table == "" {
			return Errorf(s.Name, e.Name, "element of type %s requires a table", e.Type)
		}
		t, ok := tables.Table(e.Table)
		if !ok {
			return Errorf(s.Name, e.Name, "unknown table %q", e.Table)
		}
		if e.TableColumn != "" && !t.HasColumn(e.TableColumn) {
			return Errorf(s.Name, e.Name, "table %q has no column %q", e.Table, e.TableColumn)
		}
		e.tableRef = t
	}

	if e.DefaultOverridesValue && e.Default == nil && !e.permitsBlank() {
		return Errorf(s.Name, e.Name, "defaultOverridesValue without a default on non-blank type %s", e.Type)
	}
	return nil
}

func (e *Element) permitsBlank() bool {
	return e.Type == TypeTextOrBlank || e.Type == TypeTableOrBlank || e.Cardinality != CardinalityOne
}

// ProcessValue resolves the element's value for one item.
//
// Precedence, in fixed order: a raw value wins unless the mapper is flagged
// mapperOverridesValue; otherwise the mapper runs on its declared dependency
// values; a blank outcome falls back to the default (which also wins
// outright under defaultOverridesValue). Finally cardinality is enforced: a
// blank value on a ONE element is an error, and mapper errors are downgraded
// to warnings whenever cardinality is not ONE.
//
// values holds all raw values of the current item keyed by element name,
// overrides holds caller-supplied per-element default overrides, and index
// is the 1-based item index used by the $index token.
func (e *Element) ProcessValue(
	values map[string]string,
	s *Schema,
	overrides map[string]string,
	index int,
	sender SenderContext,
) ElementResult {
	raw := strings.TrimSpace(values[e.Name])
	result := Result(raw)

	if (raw == "" || e.MapperOverridesValue) && e.mapperRef != nil {
		deps := e.resolveDependencies(values, s, overrides, index)
		mapped := e.mapperRef.Apply(e, e.mapperArgs, deps, sender)
		result.Errors = append(result.Errors, mapped.Errors...)
		result.Warnings = append(result.Warnings, mapped.Warnings...)
		result.Value = strings.TrimSpace(mapped.Value)
	}

	if deflt, ok := e.defaultFor(overrides); ok && (result.Value == "" || e.DefaultOverridesValue) {
		result.Value = deflt
	}

	if e.Cardinality != CardinalityOne {
		result.DowngradeErrors()
	}
	if e.Cardinality == CardinalityOne && result.Value == "" {
		result.Error(fmt.Sprintf("required element %s has no value", e.Name))
	}
	return result
}

// resolveDependencies collects the mapper's dependency values for one item.
// Token arguments produce synthetic values; sibling elements contribute
// their raw value, an override, or their own default, in that order. Blank
// dependencies are omitted entirely.
func (e *Element) resolveDependencies(
	values map[string]string,
	s *Schema,
	overrides map[string]string,
	index int,
) []ElementAndValue {
	var deps []ElementAndValue
	for _, name := range e.mapperValueNames {
		if ev, ok := tokenValue(name, index); ok {
			deps = append(deps, ev)
			continue
		}
		dep := s.FindElement(name)
		if dep == nil {
			dep = &Element{Name: name, Type: TypeText}
		}
		value := strings.TrimSpace(values[name])
		if value == "" {
			if ov, ok := overrides[name]; ok {
				value = ov
			} else if dep.Default != nil {
				value = *dep.Default
			}
		}
		if value != "" {
			deps = append(deps, ElementAndValue{Element: dep, Value: value})
		}
	}
	return deps
}

// tokenValue substitutes the special mapper argument tokens.
func tokenValue(name string, index int) (ElementAndValue, bool) {
	var value string
	switch {
	case name == tokenIndex:
		value = strconv.Itoa(index)
	case name == tokenCurrentDate:
		value = time.Now().Format(DateLayout)
	case strings.HasPrefix(name, tokenModePrefix), strings.HasPrefix(name, tokenStringPrefix):
		value = name[strings.Index(name, ":")+1:]
	default:
		return ElementAndValue{}, false
	}
	return ElementAndValue{Element: &Element{Name: name, Type: TypeText}, Value: value}, true
}

func (e *Element) defaultFor(overrides map[string]string) (string, bool) {
	if ov, ok := overrides[e.Name]; ok {
		return ov, true
	}
	if e.Default != nil {
		return *e.Default, true
	}
	return "", false
}

// NormalizeCode maps an alternate display value of a CODE element to its
// canonical code. Unrecognized values pass through unchanged.
func (e *Element) NormalizeCode(value string) string {
	for alt, code := range e.AltValues {
		if strings.EqualFold(alt, value) {
			return code
		}
	}
	return value
}

// TruncateValue applies the element's maxLength policy. Identifier types
// such as CLIA and NPI are never truncated: a cut identifier is worse than
// an overlong one.
func (e *Element) TruncateValue(value string) string {
	if e.MaxLength <= 0 || len(value) <= e.MaxLength {
		return value
	}
	switch e.Type {
	case TypeIDCLIA, TypeIDNPI, TypeID:
		return value
	}
	return value[:e.MaxLength]
}
