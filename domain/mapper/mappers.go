package mapper

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/artpar/reportgate/domain/schema"
)

var (
	nonDigitRe = regexp.MustCompile(`\D`)
	digitRe    = regexp.MustCompile(`\d`)
)

// MiddleInitial returns the upper-cased first character of its single
// dependency value.
type MiddleInitial struct{}

func (MiddleInitial) Name() string { return "middleInitial" }

func (MiddleInitial) ValueNames(e *schema.Element, args []string) ([]string, error) {
	if len(args) != 1 {
		return nil, errors.New("middleInitial expects a single element name")
	}
	return args, nil
}

func (MiddleInitial) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	if len(values) == 0 {
		return schema.Result("")
	}
	if len(values) != 1 {
		result := schema.Result("")
		result.Error(fmt.Sprintf("middleInitial got %d values, expecting 1", len(values)))
		return result
	}
	runes := []rune(values[0].Value)
	if len(runes) == 0 {
		return schema.Result("")
	}
	return schema.Result(strings.ToUpper(string(runes[0])))
}

// Use returns the first dependency (in argument order) that has a value.
// A DATETIME source feeding a DATE element is narrowed by reformatting;
// everything else passes through verbatim.
type Use struct{}

func (Use) Name() string { return "use" }

func (Use) ValueNames(e *schema.Element, args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, errors.New("use expects one or more element names")
	}
	return args, nil
}

func (Use) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	if len(values) == 0 {
		return schema.Result("")
	}
	from := values[0]
	if e.Type == schema.TypeDate && from.Element.Type == schema.TypeDatetime {
		narrowed, err := narrowDatetimeToDate(from.Value)
		if err != nil {
			result := schema.Result("")
			result.Error(fmt.Sprintf("use: %v", err))
			return result
		}
		return schema.Result(narrowed)
	}
	return schema.Result(from.Value)
}

// UseSenderSetting reads a named field off the sender settings rather than a
// row value. The accessor map behind SenderContext.Field replaces any
// by-name reflection: an unknown field name is a typed error result.
type UseSenderSetting struct{}

func (UseSenderSetting) Name() string { return "useSenderSetting" }

func (UseSenderSetting) ValueNames(e *schema.Element, args []string) ([]string, error) {
	if len(args) != 1 {
		return nil, errors.New("useSenderSetting expects a single sender field name")
	}
	// The arg names a sender settings field, not a data element.
	return nil, nil
}

func (UseSenderSetting) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	if sender == nil {
		return schema.Result("")
	}
	value, ok := sender.Field(args[0])
	if !ok {
		result := schema.Result("")
		result.Error(fmt.Sprintf("useSenderSetting: %q is not a sender setting field", args[0]))
		return result
	}
	return schema.Result(value)
}

// Concatenate joins its dependency values with the element's delimiter.
type Concatenate struct{}

func (Concatenate) Name() string { return "concat" }

func (Concatenate) ValueNames(e *schema.Element, args []string) ([]string, error) {
	if len(args) < 2 {
		return nil, errors.New("concat expects two or more element names")
	}
	return args, nil
}

func (Concatenate) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	if len(values) == 0 {
		return schema.Result("")
	}
	delimiter := e.Delimiter
	if delimiter == "" {
		delimiter = ", "
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.Value
	}
	return schema.Result(strings.Join(parts, delimiter))
}

// Coalesce returns the first non-empty dependency value in argument order.
type Coalesce struct{}

func (Coalesce) Name() string { return "coalesce" }

func (Coalesce) ValueNames(e *schema.Element, args []string) ([]string, error) {
	return args, nil
}

func (Coalesce) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	for _, v := range values {
		if v.Value != "" {
			return schema.Result(v.Value)
		}
	}
	return schema.Result("")
}

// IfPresent returns its literal second argument when the first dependency
// element has any value.
type IfPresent struct{}

func (IfPresent) Name() string { return "ifPresent" }

func (IfPresent) ValueNames(e *schema.Element, args []string) ([]string, error) {
	if len(args) != 2 {
		return nil, errors.New("ifPresent expects an element name and a value")
	}
	return args[:1], nil
}

func (IfPresent) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	if len(values) == 1 {
		return schema.Result(args[1])
	}
	return schema.Result("")
}

// IfNotPresent substitutes a value only when every condition element is
// blank. In literal mode the substitute is the given string; in lookup mode
// it is the value of the named element.
//
//	ifNotPresent($mode:literal, $string:NO ADDRESS, patient_zip_code, patient_state)
//	ifNotPresent($mode:lookup, ordering_provider_city, patient_zip_code)
type IfNotPresent struct{}

func (IfNotPresent) Name() string { return "ifNotPresent" }

func (IfNotPresent) ValueNames(e *schema.Element, args []string) ([]string, error) {
	if len(args) < 3 {
		return nil, errors.New("ifNotPresent expects a mode, a value, and one or more condition elements")
	}
	if !strings.HasPrefix(args[0], "$mode:") {
		return nil, fmt.Errorf("ifNotPresent first argument %q is not a $mode token", args[0])
	}
	return args, nil
}

func (IfNotPresent) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	mode := args[0][strings.Index(args[0], ":")+1:]
	operator := args[1]
	if i := strings.Index(operator, ":"); i >= 0 {
		operator = operator[i+1:]
	}
	for _, condition := range args[2:] {
		if strings.TrimSpace(valueOf(values, condition)) != "" {
			return schema.Result("")
		}
	}
	switch mode {
	case "literal":
		return schema.Result(operator)
	case "lookup":
		return schema.Result(valueOf(values, operator))
	default:
		return schema.Result("")
	}
}

// Hash returns the lower-cased hex SHA-256 of the concatenation of all
// dependency values, with no separator.
type Hash struct{}

func (Hash) Name() string { return "hash" }

func (Hash) ValueNames(e *schema.Element, args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, errors.New("hash expects one or more element names")
	}
	return args, nil
}

func (Hash) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	if len(values) == 0 {
		return schema.Result("")
	}
	var b strings.Builder
	for _, v := range values {
		b.WriteString(v.Value)
	}
	if b.Len() == 0 {
		return schema.Result("")
	}
	digest := sha256.Sum256([]byte(b.String()))
	return schema.Result(hex.EncodeToString(digest[:]))
}

// TrimBlanks trims surrounding whitespace from its single dependency value.
type TrimBlanks struct{}

func (TrimBlanks) Name() string { return "trimBlanks" }

func (TrimBlanks) ValueNames(e *schema.Element, args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, errors.New("trimBlanks expects an element name")
	}
	return args[:1], nil
}

func (TrimBlanks) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	if len(values) == 0 {
		return schema.Result("")
	}
	return schema.Result(strings.TrimSpace(values[0].Value))
}

// StripPhoneFormatting reduces a phone value to its digits shaped as
// <national-digits>:1: when no country code is detected.
type StripPhoneFormatting struct{}

func (StripPhoneFormatting) Name() string { return "stripPhoneFormatting" }

func (StripPhoneFormatting) ValueNames(e *schema.Element, args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, errors.New("stripPhoneFormatting expects an element name")
	}
	return args[:1], nil
}

func (StripPhoneFormatting) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	if len(values) == 0 {
		return schema.Result("")
	}
	digits := nonDigitRe.ReplaceAllString(values[0].Value, "")
	return schema.Result(digits + ":1:")
}

// StripNonNumeric removes everything but digits.
type StripNonNumeric struct{}

func (StripNonNumeric) Name() string { return "stripNonNumeric" }

func (StripNonNumeric) ValueNames(e *schema.Element, args []string) ([]string, error) {
	return args, nil
}

func (StripNonNumeric) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	if len(values) == 0 {
		return schema.Result("")
	}
	return schema.Result(strings.TrimSpace(nonDigitRe.ReplaceAllString(values[0].Value, "")))
}

// StripNumeric removes all digits.
type StripNumeric struct{}

func (StripNumeric) Name() string { return "stripNumeric" }

func (StripNumeric) ValueNames(e *schema.Element, args []string) ([]string, error) {
	return args, nil
}

func (StripNumeric) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	if len(values) == 0 {
		return schema.Result("")
	}
	return schema.Result(strings.TrimSpace(digitRe.ReplaceAllString(values[0].Value, "")))
}

// Split splits its dependency value on a delimiter (default space) and
// returns the trimmed piece at the given index. Out-of-range yields blank.
type Split struct{}

func (Split) Name() string { return "split" }

func (Split) ValueNames(e *schema.Element, args []string) ([]string, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, errors.New("split expects an element name, an index, and an optional delimiter")
	}
	if _, err := strconv.Atoi(args[1]); err != nil {
		return nil, fmt.Errorf("split index %q is not a number", args[1])
	}
	return args[:1], nil
}

func (Split) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	if len(values) == 0 {
		return schema.Result("")
	}
	delimiter := " "
	if len(args) > 2 {
		delimiter = args[2]
	}
	return schema.Result(pieceAt(values[0].Value, delimiter, args[1]))
}

// SplitByComma is Split with a fixed comma delimiter.
type SplitByComma struct{}

func (SplitByComma) Name() string { return "splitByComma" }

func (SplitByComma) ValueNames(e *schema.Element, args []string) ([]string, error) {
	if len(args) != 2 {
		return nil, errors.New("splitByComma expects an element name and an index")
	}
	if _, err := strconv.Atoi(args[1]); err != nil {
		return nil, fmt.Errorf("splitByComma index %q is not a number", args[1])
	}
	return args[:1], nil
}

func (SplitByComma) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	if len(values) == 0 {
		return schema.Result("")
	}
	return schema.Result(pieceAt(values[0].Value, ",", args[1]))
}

// Country passes an explicit country value through unchanged; with no
// country it infers CAN from a Canadian-shaped postal code and defaults to
// USA otherwise.
type Country struct{}

// Canadian postal codes follow A9A 9A9, with the space often stripped by
// the time values reach us.
var canadianPostalCodeRe = regexp.MustCompile(`(?i)^[A-Z][0-9][A-Z]\s?[0-9][A-Z][0-9]$`)

func (Country) Name() string { return "countryMapper" }

func (Country) ValueNames(e *schema.Element, args []string) ([]string, error) {
	return args, nil
}

func (Country) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	country := valueOf(values, e.Name)
	if country != "" {
		return schema.Result(country)
	}
	postalCode := valueOf(values, "patient_zip_code")
	if postalCode != "" && canadianPostalCodeRe.MatchString(postalCode) {
		return schema.Result("CAN")
	}
	return schema.Result("USA")
}

// Null always returns blank. It exists to suppress a mapper inherited from
// a parent schema.
type Null struct{}

func (Null) Name() string { return "none" }

func (Null) ValueNames(e *schema.Element, args []string) ([]string, error) {
	if len(args) != 0 {
		return nil, errors.New("none expects no arguments")
	}
	return nil, nil
}

func (Null) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	return schema.Result("")
}

// valueOf finds the value of the named dependency element, or blank.
func valueOf(values []schema.ElementAndValue, name string) string {
	for _, v := range values {
		if v.Element.Name == name {
			return v.Value
		}
	}
	return ""
}

func pieceAt(value, delimiter, indexArg string) string {
	index, err := strconv.Atoi(indexArg)
	if err != nil || index < 0 {
		return ""
	}
	pieces := strings.Split(value, delimiter)
	if index >= len(pieces) {
		return ""
	}
	return strings.TrimFunc(pieces[index], unicode.IsSpace)
}
