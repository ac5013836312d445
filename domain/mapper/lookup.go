package mapper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/artpar/reportgate/domain/schema"
)

// Lookup filters the element's table by case-insensitive equality on one or
// two index columns (each taken from the dependency element's tableColumn)
// and returns the unique match's value in the element's own tableColumn.
// Zero or more-than-one matching rows yield blank.
type Lookup struct{}

func (Lookup) Name() string { return "lookup" }

func (Lookup) ValueNames(e *schema.Element, args []string) ([]string, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, errors.New("lookup expects one or two element names")
	}
	return args, nil
}

func (Lookup) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	if len(values) != len(args) {
		return schema.Result("")
	}
	table := e.TableRef()
	if table == nil {
		result := schema.Result("")
		result.Error(fmt.Sprintf("lookup: element %s has no table", e.Name))
		return result
	}
	if e.TableColumn == "" {
		result := schema.Result("")
		result.Error(fmt.Sprintf("lookup: element %s has no tableColumn", e.Name))
		return result
	}
	filter := table.Filter()
	for _, v := range values {
		if v.Element.TableColumn == "" {
			result := schema.Result("")
			result.Error(fmt.Sprintf("lookup: index element %s has no tableColumn", v.Element.Name))
			return result
		}
		filter.EqualsIgnoreCase(v.Element.TableColumn, v.Value)
	}
	value, _ := filter.FindSingleResult(e.TableColumn)
	return schema.Result(value)
}

// LookupSenderValuesets resolves free-text answers against the sender
// value-set table on a (lookup column value, element name, answer) triple.
type LookupSenderValuesets struct{}

func (LookupSenderValuesets) Name() string { return "lookupSenderValuesets" }

func (LookupSenderValuesets) ValueNames(e *schema.Element, args []string) ([]string, error) {
	if len(args) != 2 {
		return nil, errors.New("lookupSenderValuesets expects a lookup element and a question element")
	}
	return args, nil
}

func (LookupSenderValuesets) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	if len(values) != len(args) {
		return schema.Result("")
	}
	table := e.TableRef()
	if table == nil {
		result := schema.Result("")
		result.Error(fmt.Sprintf("lookupSenderValuesets: element %s has no table", e.Name))
		return result
	}
	lookupValue := valueOf(values, args[0])
	answer := valueOf(values, args[1])
	if lookupValue == "" || answer == "" {
		return schema.Result("")
	}
	value, _ := table.Filter().
		EqualsIgnoreCase(args[0], lookupValue).
		EqualsIgnoreCase("element_name", e.Name).
		EqualsIgnoreCase("free_text_substring", answer).
		FindSingleResult("result")
	return schema.Result(value)
}

// NPILookup resolves the element's table column either by NPI alone or, when
// the NPI dependency is blank, by (facility CLIA, sender id, default=true).
type NPILookup struct{}

func (NPILookup) Name() string { return "npiLookup" }

func (NPILookup) ValueNames(e *schema.Element, args []string) ([]string, error) {
	if len(args) != 3 {
		return nil, errors.New("npiLookup expects npi, facility clia, and sender id element names")
	}
	return args, nil
}

func (NPILookup) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	table := e.TableRef()
	if table == nil {
		result := schema.Result("")
		result.Error(fmt.Sprintf("npiLookup: element %s has no table", e.Name))
		return result
	}
	if e.TableColumn == "" {
		result := schema.Result("")
		result.Error(fmt.Sprintf("npiLookup: element %s has no tableColumn", e.Name))
		return result
	}
	npiColumn, cliaColumn, senderColumn := args[0], args[1], args[2]
	npi := strings.TrimSpace(valueOf(values, npiColumn))

	var value string
	if npi == "" {
		value, _ = table.Filter().
			EqualsIgnoreCase(cliaColumn, valueOf(values, cliaColumn)).
			EqualsIgnoreCase(senderColumn, valueOf(values, senderColumn)).
			EqualsIgnoreCase("default", "true").
			FindSingleResult(e.TableColumn)
	} else {
		value, _ = table.Filter().
			EqualsIgnoreCase(npiColumn, npi).
			FindSingleResult(e.TableColumn)
	}
	return schema.Result(value)
}

// ZipCodeToCounty resolves a county name from the element's zip code table.
// A zip+4 value is reduced to its five-digit prefix first.
type ZipCodeToCounty struct{}

func (ZipCodeToCounty) Name() string { return "zipCodeToCounty" }

func (ZipCodeToCounty) ValueNames(e *schema.Element, args []string) ([]string, error) {
	if len(args) != 1 {
		return nil, errors.New("zipCodeToCounty expects a zip code element name")
	}
	return args, nil
}

func (ZipCodeToCounty) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	table := e.TableRef()
	if table == nil {
		result := schema.Result("")
		result.Error(fmt.Sprintf("zipCodeToCounty: element %s has no table", e.Name))
		return result
	}
	if len(values) == 0 {
		return schema.Result("")
	}
	zip, _, _ := strings.Cut(values[0].Value, "-")
	value, _ := table.Filter().
		EqualsIgnoreCase("zipcode", zip).
		FindSingleResult("county")
	return schema.Result(value)
}

// Obx8 maps a closed set of SNOMED result codes onto the abnormal-flag
// vocabulary: "A" (abnormal) or "N" (normal). Unknown codes yield blank.
type Obx8 struct{}

var obx8Codes = map[string]string{
	"260373001":       "A", // Detected
	"260415000":       "N", // Not detected
	"720735008":       "A", // Presumptive positive
	"42425007":        "N", // Equivocal
	"260385009":       "N", // Negative
	"10828004":        "A", // Positive
	"895231008":       "N", // Not detected in pooled specimen
	"462371000124108": "A", // Detected in pooled specimen
	"419984006":       "N", // Inconclusive
	"125154007":       "N", // Specimen unsatisfactory for evaluation
	"455371000124106": "N", // Invalid result
	"840539006":       "A", // Disease caused by SARS-CoV-2 (disorder)
	"840544004":       "A", // Disease caused by SARS-CoV-2 (situation)
	"840546002":       "A", // Exposure to SARS-CoV-2 (event)
	"840533007":       "A", // SARS-CoV-2 (organism)
	"840536004":       "A", // Antigen of SARS-CoV-2 (substance)
	"840535000":       "A", // Antibody to SARS-CoV-2 (substance)
	"840534001":       "A", // SARS-CoV-2 vaccination (procedure)
	"373121007":       "N", // Test not done
	"82334004":        "N", // Indeterminate
}

func (Obx8) Name() string { return "obx8" }

func (Obx8) ValueNames(e *schema.Element, args []string) ([]string, error) {
	return []string{"test_result"}, nil
}

func (Obx8) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	if len(values) != 1 {
		return schema.Result("")
	}
	return schema.Result(obx8Codes[values[0].Value])
}
