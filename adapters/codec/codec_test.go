package codec_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/reportgate/adapters/codec"
	"github.com/artpar/reportgate/domain/lookup"
	"github.com/artpar/reportgate/domain/report"
	"github.com/artpar/reportgate/domain/schema"
)

func strptr(s string) *string { return &s }

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s := &schema.Schema{
		Name:            "test/covid-19",
		Topic:           "covid-19",
		TrackingElement: "specimen_id",
		Elements: []schema.Element{
			{Name: "specimen_id", Cardinality: schema.CardinalityOne},
			{Name: "patient_state"},
			{Name: "processing_mode_code", Default: strptr("P")},
		},
	}
	if err := s.Validate(noMappers{}, noTables{}); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return s
}

type noMappers struct{}

func (noMappers) Find(name string) (schema.Mapper, bool) { return nil, false }

type noTables struct{}

func (noTables) Table(name string) (*lookup.Table, bool) { return nil, false }

func clientSource() report.ClientSource {
	return report.ClientSource{Organization: "strac", Client: "default"}
}

func TestRead(t *testing.T) {
	s := testSchema(t)
	payload := "specimen_id,patient_state\n" +
		"s-1,AZ\n" +
		"s-2,CO\n"

	id := uuid.New()
	c := codec.New()
	r, logs, err := c.Read(s, []byte(payload), id, clientSource(), nil, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if r.ItemCount() != 2 {
		t.Fatalf("item count = %d, want 2", r.ItemCount())
	}
	if len(logs) != 0 {
		t.Errorf("unexpected logs: %v", logs)
	}
	if got := r.Items[0]["specimen_id"]; got != "s-1" {
		t.Errorf("specimen_id = %q", got)
	}
	// Columns the sender did not supply are filled from the schema.
	if got := r.Items[1]["processing_mode_code"]; got != "P" {
		t.Errorf("processing_mode_code = %q, want P", got)
	}
	if r.BodyFormat != report.FormatCSV || r.ID != id {
		t.Errorf("report = %+v", r)
	}
}

func TestRead_UnknownColumnWarns(t *testing.T) {
	s := testSchema(t)
	payload := "specimen_id,frobnicator\ns-1,x\n"

	_, logs, err := codec.New().Read(s, []byte(payload), uuid.New(), clientSource(), nil, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(logs) != 1 || logs[0].Level != report.LogWarning {
		t.Fatalf("logs = %v, want one warning", logs)
	}
	if !strings.Contains(logs[0].Detail, "frobnicator") {
		t.Errorf("warning detail = %q", logs[0].Detail)
	}
}

func TestRead_DropsErroredRows(t *testing.T) {
	s := testSchema(t)
	payload := "specimen_id,patient_state\n" +
		"s-1,AZ\n" +
		",CO\n"

	r, logs, err := codec.New().Read(s, []byte(payload), uuid.New(), clientSource(), nil, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if r.ItemCount() != 1 {
		t.Errorf("item count = %d, want 1", r.ItemCount())
	}
	var errs []report.ActionLog
	for _, l := range logs {
		if l.Level == report.LogError {
			errs = append(errs, l)
		}
	}
	if len(errs) != 1 {
		t.Fatalf("error logs = %v, want 1", errs)
	}
	if errs[0].ItemIndex != 2 {
		t.Errorf("error row = %d, want the 1-based row number", errs[0].ItemIndex)
	}
}

func TestRead_NoHeader(t *testing.T) {
	if _, _, err := codec.New().Read(testSchema(t), nil, uuid.New(), clientSource(), nil, nil); err == nil {
		t.Error("expected error for empty payload")
	}
}

func TestWriteCSV(t *testing.T) {
	s := testSchema(t)
	r := report.New(uuid.New(), s, []report.Item{
		{"specimen_id": "s-1", "patient_state": "AZ", "processing_mode_code": "P"},
	}, report.FormatCSV, clientSource())

	for _, format := range []report.Format{report.FormatCSV, report.FormatInternal} {
		body, err := codec.New().Write(r, format)
		if err != nil {
			t.Fatalf("Write %s: %v", format, err)
		}
		want := "specimen_id,patient_state,processing_mode_code\ns-1,AZ,P\n"
		if string(body) != want {
			t.Errorf("Write %s = %q, want %q", format, body, want)
		}
	}
}

func TestWriteHL7(t *testing.T) {
	s := testSchema(t)
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	r := report.New(id, s, []report.Item{
		{"specimen_id": "s-1", "patient_state": "AZ"},
	}, report.FormatHL7, clientSource())
	r.CreatedAt = time.Date(2021, 3, 10, 9, 0, 0, 0, time.UTC)

	body, err := codec.New().Write(r, report.FormatHL7)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	segments := strings.Split(strings.TrimSuffix(string(body), "\r"), "\r")
	if len(segments) != 3 {
		t.Fatalf("got %d segments, want MSH + 2 OBX: %q", len(segments), body)
	}
	wantMSH := "MSH|^~\\&|reportgate|covid-19|||20210310090000||ORU^R01^ORU_R01|" +
		"11111111-2222-3333-4444-555555555555|P|2.5.1"
	if segments[0] != wantMSH {
		t.Errorf("MSH = %q, want %q", segments[0], wantMSH)
	}
	if segments[1] != "OBX|1|ST|specimen_id||s-1||||||F" {
		t.Errorf("OBX 1 = %q", segments[1])
	}
	if segments[2] != "OBX|2|ST|patient_state||AZ||||||F" {
		t.Errorf("OBX 2 = %q", segments[2])
	}
}

func TestWriteHL7_EscapesAndNumbersMessages(t *testing.T) {
	s := testSchema(t)
	r := report.New(uuid.New(), s, []report.Item{
		{"specimen_id": "a|b"},
		{"specimen_id": "c^d"},
	}, report.FormatHL7, clientSource())

	body, err := codec.New().Write(r, report.FormatHL7)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := string(body)
	if !strings.Contains(out, `a\F\b`) || !strings.Contains(out, `c\S\d`) {
		t.Errorf("separators not escaped: %q", out)
	}
	// Multi-item reports suffix the control id per message.
	if !strings.Contains(out, r.ID.String()+"-1|") || !strings.Contains(out, r.ID.String()+"-2|") {
		t.Errorf("control ids not numbered: %q", out)
	}
}

func TestWrite_UnsupportedFormat(t *testing.T) {
	r := report.New(uuid.New(), testSchema(t), nil, report.FormatCSV, clientSource())
	if _, err := codec.New().Write(r, report.Format("PDF")); err == nil {
		t.Error("expected error for unsupported format")
	}
}
