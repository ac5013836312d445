// Package report provides the report, lineage, and action-history data
// model. A Report is one ingested or derived unit of items; its persisted
// projections (ReportFile, ItemLineage, ReportLineage, ActionLog) are
// immutable history rows owned by exactly one Action.
package report

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/reportgate/domain/schema"
)

// ID identifies a report.
type ID = uuid.UUID

// Format is a report body storage or transmission format.
type Format string

const (
	// FormatInternal is the canonical internal storage format. Batched
	// reports are always stored in it.
	FormatInternal Format = "INTERNAL"
	FormatCSV      Format = "CSV"
	FormatHL7      Format = "HL7"
)

// SingleItemPerTransmission reports whether the format requires every item
// to go out as its own transmission.
func (f Format) SingleItemPerTransmission() bool {
	return f == FormatHL7
}

// Item is one row of element name to value.
type Item map[string]string

// Source records where a report came from.
type Source interface {
	Describe() string
}

// ClientSource is a report submitted directly by a sending client.
type ClientSource struct {
	Organization string
	Client       string
}

func (s ClientSource) Describe() string { return s.Organization + "." + s.Client }

// ReportSource is a report derived from another report by an action.
type ReportSource struct {
	ParentID ID
	Action   string
}

func (s ReportSource) Describe() string { return s.Action + " of " + s.ParentID.String() }

// Report is one unit of schema-bound data. Item order is semantically
// significant: the index is the correlation key between parent and child
// items. A report is never mutated after its item lineage is attached;
// format changes go through Copy, which produces a new in-memory Report
// sharing the same id.
type Report struct {
	ID           ID
	Schema       *schema.Schema
	Items        []Item
	BodyFormat   Format
	Sources      []Source
	ItemLineages []ItemLineage
	CreatedAt    time.Time
}

// New creates a report over the given items.
func New(id ID, s *schema.Schema, items []Item, format Format, sources ...Source) *Report {
	return &Report{
		ID:         id,
		Schema:     s,
		Items:      items,
		BodyFormat: format,
		Sources:    sources,
		CreatedAt:  time.Now().UTC(),
	}
}

// ItemCount returns the number of items.
func (r *Report) ItemCount() int { return len(r.Items) }

// TrackingID returns the item's value of the schema's tracking element.
func (r *Report) TrackingID(index int) string {
	if r.Schema == nil || r.Schema.TrackingElement == "" {
		return ""
	}
	if index < 0 || index >= len(r.Items) {
		return ""
	}
	return r.Items[index][r.Schema.TrackingElement]
}

// Copy returns a new in-memory report sharing this report's id and items
// but carrying a different body format.
func (r *Report) Copy(format Format) *Report {
	out := *r
	out.BodyFormat = format
	return &out
}

// Split breaks the report into one single-item report per item, each with a
// fresh id from ids. When this report already carries item lineage, each
// child chains through it so the child's parent is the original upstream
// report, not this intermediate one. Child report order follows the
// original item order.
func (r *Report) Split(ids func() ID) []*Report {
	out := make([]*Report, 0, len(r.Items))
	for i, item := range r.Items {
		child := &Report{
			ID:         ids(),
			Schema:     r.Schema,
			Items:      []Item{item},
			BodyFormat: r.BodyFormat,
			Sources:    []Source{ReportSource{ParentID: r.ID, Action: "split"}},
			CreatedAt:  time.Now().UTC(),
		}
		lineage := ItemLineage{
			ParentReportID: r.ID,
			ParentIndex:    i,
			ChildReportID:  child.ID,
			ChildIndex:     0,
			TrackingID:     r.TrackingID(i),
		}
		if i < len(r.ItemLineages) {
			up := r.ItemLineages[i]
			lineage.ParentReportID = up.ParentReportID
			lineage.ParentIndex = up.ParentIndex
			if up.TrackingID != "" {
				lineage.TrackingID = up.TrackingID
			}
		}
		child.ItemLineages = []ItemLineage{lineage}
		out = append(out, child)
	}
	return out
}

// SingleClientSource returns the report's one client source. External
// submissions must carry exactly one.
func (r *Report) SingleClientSource() (ClientSource, error) {
	if len(r.Sources) != 1 {
		return ClientSource{}, errors.New("report must have exactly one source")
	}
	cs, ok := r.Sources[0].(ClientSource)
	if !ok {
		return ClientSource{}, errors.New("report source is not a client source")
	}
	return cs, nil
}
