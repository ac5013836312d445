// Package mapper provides the library of stateless value-computation
// strategies available to schema elements, plus the name registry used to
// resolve them at schema-load time.
//
// Every mapper is pure given its declared dependency values and the optional
// read-only sender context. Malformed mapper configuration (wrong arity,
// non-numeric parameters) is reported from ValueNames during schema
// validation; per-item failures surface only as errors or warnings on the
// ElementResult.
package mapper

import (
	"errors"

	"github.com/artpar/reportgate/domain/schema"
)

// Registry maps mapper names to their implementations. It is built once and
// consulted only while loading schemas.
type Registry map[string]schema.Mapper

// NewRegistry returns a registry holding every built-in mapper.
func NewRegistry() Registry {
	builtins := []schema.Mapper{
		MiddleInitial{},
		Use{},
		UseSenderSetting{},
		Concatenate{},
		Coalesce{},
		IfPresent{},
		IfNotPresent{},
		IfNPI{},
		Lookup{},
		LookupSenderValuesets{},
		NPILookup{},
		Obx8{},
		Timestamp{},
		OffsetDateTime{},
		Hash{},
		TrimBlanks{},
		StripPhoneFormatting{},
		StripNonNumeric{},
		StripNumeric{},
		Split{},
		SplitByComma{},
		ZipCodeToCounty{},
		Country{},
		Null{},
	}
	reg := make(Registry, len(builtins))
	for _, m := range builtins {
		reg[m.Name()] = m
	}
	return reg
}

// Find resolves a mapper by name.
func (r Registry) Find(name string) (schema.Mapper, bool) {
	m, ok := r[name]
	return m, ok
}

// Register adds a custom mapper. Registering over an existing name is an
// error: the built-in set is a fixed contract.
func (r Registry) Register(m schema.Mapper) error {
	if _, ok := r[m.Name()]; ok {
		return errors.New("mapper " + m.Name() + " is already registered")
	}
	r[m.Name()] = m
	return nil
}

var _ schema.MapperRegistry = Registry(nil)
