package mapper

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/reportgate/domain/schema"
)

// Timestamp formats the current time using the supplied layout, defaulting
// to the expanded datetime layout. A layout that formats to itself or cannot
// round-trip its own output falls back to a plain second-resolution stamp.
type Timestamp struct{}

func (Timestamp) Name() string { return "timestamp" }

func (Timestamp) ValueNames(e *schema.Element, args []string) ([]string, error) {
	if len(args) > 1 {
		return nil, errors.New("timestamp expects at most one layout argument")
	}
	return nil, nil
}

func (Timestamp) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	layout := schema.ExpandedDatetimeLayout
	if len(args) == 1 && args[0] != "" {
		layout = args[0]
	}
	now := time.Now()
	formatted := now.Format(layout)
	// A layout with no reference-time tokens formats to itself; that and a
	// failed round trip both mean the layout is unusable.
	if formatted == layout {
		formatted = now.Format("20060102150405")
	} else if _, err := time.Parse(layout, formatted); err != nil {
		formatted = now.Format("20060102150405")
	}
	return schema.Result(formatted)
}

// OffsetDateTime parses a datetime dependency (ISO first, then the two
// schema layouts in order), shifts it by the configured amount, and
// re-renders it in the expanded layout.
//
//	offsetDateTime(specimen_collection_date, minutes, -30)
type OffsetDateTime struct{}

func (OffsetDateTime) Name() string { return "offsetDateTime" }

func (OffsetDateTime) ValueNames(e *schema.Element, args []string) ([]string, error) {
	if len(args) != 3 {
		return nil, errors.New("offsetDateTime expects an element name, a unit, and an offset")
	}
	switch strings.ToLower(args[1]) {
	case "second", "seconds", "minute", "minutes", "day", "days", "month", "months", "year", "years":
	default:
		return nil, fmt.Errorf("offsetDateTime unit %q is not valid", args[1])
	}
	if _, err := strconv.ParseInt(args[2], 10, 64); err != nil {
		return nil, fmt.Errorf("offsetDateTime offset %q is not a number", args[2])
	}
	return args[:1], nil
}

func (OffsetDateTime) Apply(
	e *schema.Element, args []string, values []schema.ElementAndValue, sender schema.SenderContext,
) schema.ElementResult {
	if len(values) != 1 || strings.TrimSpace(values[0].Value) == "" {
		return schema.Result("")
	}
	parsed, err := parseDatetime(values[0].Value)
	if err != nil {
		result := schema.Result("")
		result.Error(fmt.Sprintf("invalid date %q for element %s", values[0].Value, e.Name))
		return result
	}
	offset, _ := strconv.ParseInt(args[2], 10, 64)
	n := int(offset)
	var shifted time.Time
	switch strings.ToLower(args[1]) {
	case "second", "seconds":
		shifted = parsed.Add(time.Duration(offset) * time.Second)
	case "minute", "minutes":
		shifted = parsed.Add(time.Duration(offset) * time.Minute)
	case "day", "days":
		shifted = parsed.AddDate(0, 0, n)
	case "month", "months":
		shifted = parsed.AddDate(0, n, 0)
	case "year", "years":
		shifted = parsed.AddDate(n, 0, 0)
	}
	return schema.Result(shifted.Format(schema.ExpandedDatetimeLayout))
}

func parseDatetime(value string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339,
		schema.DatetimeLayout,
		schema.ExpandedDatetimeLayout,
	} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable datetime %q", value)
}

func narrowDatetimeToDate(value string) (string, error) {
	t, err := parseDatetime(value)
	if err != nil {
		return "", err
	}
	return t.Format(schema.DateLayout), nil
}
