// Package codec reads and writes report bodies. Submissions arrive as CSV
// keyed by schema element names; outputs are written as CSV (also the
// internal storage format) or as per-item HL7 v2 messages.
package codec

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/artpar/reportgate/domain/report"
	"github.com/artpar/reportgate/domain/schema"
	"github.com/artpar/reportgate/ports"
)

// Codec implements ports.Codec.
type Codec struct{}

// New creates a codec.
func New() *Codec {
	return &Codec{}
}

// Read decodes a CSV payload against the schema. The header row maps
// columns to element names; unknown columns produce a warning and are
// ignored. Every element of the schema is resolved per row, so mappers and
// defaults fill columns the sender did not supply. Rows whose resolution
// produced an error are dropped from the report and reported as error logs
// keyed by the 1-based row number.
func (c *Codec) Read(
	s *schema.Schema,
	data []byte,
	id report.ID,
	source report.ClientSource,
	defaults map[string]string,
	snd schema.SenderContext,
) (*report.Report, []report.ActionLog, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("payload has no header row")
	}

	var logs []report.ActionLog
	header := records[0]
	columns := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if s.FindElement(name) == nil {
			logs = append(logs, report.ActionLog{
				ReportID: id,
				Level:    report.LogWarning,
				Detail:   fmt.Sprintf("unexpected column %q ignored", name),
			})
			continue
		}
		columns[i] = name
	}

	var items []report.Item
	for rowNum, record := range records[1:] {
		raw := make(map[string]string, len(columns))
		for i, name := range columns {
			if name == "" || i >= len(record) {
				continue
			}
			raw[name] = record[i]
		}

		item, rowLogs := resolveRow(s, raw, defaults, rowNum+1, id, snd)
		logs = append(logs, rowLogs...)
		if item != nil {
			items = append(items, item)
		}
	}

	r := report.New(id, s, items, report.FormatCSV, source)
	return r, logs, nil
}

// resolveRow resolves every schema element for one row. A nil item means
// the row had at least one error and must not appear in the report.
func resolveRow(
	s *schema.Schema,
	raw map[string]string,
	defaults map[string]string,
	rowNum int,
	id report.ID,
	snd schema.SenderContext,
) (report.Item, []report.ActionLog) {
	item := make(report.Item, len(s.Elements))
	var logs []report.ActionLog
	failed := false

	for i := range s.Elements {
		el := &s.Elements[i]
		res := el.ProcessValue(raw, s, defaults, rowNum, snd)
		for _, d := range res.Errors {
			failed = true
			logs = append(logs, report.ActionLog{
				ReportID:  id,
				ItemIndex: rowNum,
				Level:     report.LogError,
				Detail:    fmt.Sprintf("%s: %s", el.Name, d.Message),
			})
		}
		for _, d := range res.Warnings {
			logs = append(logs, report.ActionLog{
				ReportID:  id,
				ItemIndex: rowNum,
				Level:     report.LogWarning,
				Detail:    fmt.Sprintf("%s: %s", el.Name, d.Message),
			})
		}
		item[el.Name] = el.TruncateValue(res.Value)
	}

	if failed {
		return nil, logs
	}
	return item, logs
}

// Write renders a report body. CSV and the internal format share one
// layout: a header of element names followed by one row per item, columns
// in schema element order. HL7 renders one message per item.
func (c *Codec) Write(r *report.Report, format report.Format) ([]byte, error) {
	switch format {
	case report.FormatCSV, report.FormatInternal:
		return writeCSV(r)
	case report.FormatHL7:
		return writeHL7(r)
	default:
		return nil, fmt.Errorf("unsupported body format %q", format)
	}
}

func writeCSV(r *report.Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, len(r.Schema.Elements))
	for i := range r.Schema.Elements {
		header[i] = r.Schema.Elements[i].Name
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, len(header))
	for _, item := range r.Items {
		for i, name := range header {
			row[i] = item[name]
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Ensure interface compliance.
var _ ports.Codec = (*Codec)(nil)
