package report_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/reportgate/domain/report"
	"github.com/artpar/reportgate/domain/schema"
)

func testSchema() *schema.Schema {
	return &schema.Schema{
		Name:            "test/covid-19",
		Topic:           "covid-19",
		TrackingElement: "specimen_id",
		Elements: []schema.Element{
			{Name: "specimen_id"},
			{Name: "patient_state"},
		},
	}
}

func TestTrackingID(t *testing.T) {
	r := report.New(uuid.New(), testSchema(), []report.Item{
		{"specimen_id": "s-1", "patient_state": "AZ"},
		{"specimen_id": "s-2", "patient_state": "CO"},
	}, report.FormatCSV)

	if got := r.TrackingID(1); got != "s-2" {
		t.Errorf("TrackingID(1) = %q, want s-2", got)
	}
	if got := r.TrackingID(5); got != "" {
		t.Errorf("TrackingID out of range = %q, want empty", got)
	}
}

func TestCopy(t *testing.T) {
	r := report.New(uuid.New(), testSchema(), []report.Item{{"specimen_id": "s-1"}}, report.FormatCSV)
	c := r.Copy(report.FormatInternal)
	if c.ID != r.ID {
		t.Error("copy must share the original id")
	}
	if c.BodyFormat != report.FormatInternal {
		t.Errorf("copy format = %s, want INTERNAL", c.BodyFormat)
	}
	if r.BodyFormat != report.FormatCSV {
		t.Error("original format changed by Copy")
	}
}

func TestSplit(t *testing.T) {
	parent := report.New(uuid.New(), testSchema(), []report.Item{
		{"specimen_id": "s-1"},
		{"specimen_id": "s-2"},
		{"specimen_id": "s-3"},
	}, report.FormatHL7)

	n := 0
	children := parent.Split(func() report.ID {
		n++
		id := report.ID{}
		id[15] = byte(n)
		return id
	})

	if len(children) != 3 {
		t.Fatalf("Split produced %d children, want 3", len(children))
	}
	for i, child := range children {
		if child.ItemCount() != 1 {
			t.Errorf("child %d has %d items", i, child.ItemCount())
		}
		if len(child.ItemLineages) != 1 {
			t.Fatalf("child %d has %d lineages", i, len(child.ItemLineages))
		}
		l := child.ItemLineages[0]
		if l.ParentReportID != parent.ID || l.ParentIndex != i {
			t.Errorf("child %d lineage parent = %s[%d]", i, l.ParentReportID, l.ParentIndex)
		}
		if l.ChildReportID != child.ID || l.ChildIndex != 0 {
			t.Errorf("child %d lineage child = %s[%d]", i, l.ChildReportID, l.ChildIndex)
		}
		if want := "s-" + string(rune('1'+i)); l.TrackingID != want {
			t.Errorf("child %d tracking id = %q, want %q", i, l.TrackingID, want)
		}
	}
}

func TestSplit_ChainsThroughExistingLineage(t *testing.T) {
	upstream := uuid.New()
	mid := report.New(uuid.New(), testSchema(), []report.Item{
		{"specimen_id": "s-1"},
		{"specimen_id": "s-2"},
	}, report.FormatHL7)
	mid.ItemLineages = []report.ItemLineage{
		{ParentReportID: upstream, ParentIndex: 4, ChildReportID: mid.ID, ChildIndex: 0, TrackingID: "up-1"},
		{ParentReportID: upstream, ParentIndex: 7, ChildReportID: mid.ID, ChildIndex: 1, TrackingID: "up-2"},
	}

	children := mid.Split(uuid.New)
	if got := children[0].ItemLineages[0]; got.ParentReportID != upstream || got.ParentIndex != 4 {
		t.Errorf("child 0 parent = %s[%d], want upstream[4]", got.ParentReportID, got.ParentIndex)
	}
	if got := children[1].ItemLineages[0]; got.ParentReportID != upstream || got.ParentIndex != 7 {
		t.Errorf("child 1 parent = %s[%d], want upstream[7]", got.ParentReportID, got.ParentIndex)
	}
	if got := children[1].ItemLineages[0].TrackingID; got != "up-2" {
		t.Errorf("child 1 tracking id = %q, want up-2", got)
	}
}

func TestSingleClientSource(t *testing.T) {
	r := report.New(uuid.New(), testSchema(), nil, report.FormatCSV,
		report.ClientSource{Organization: "strac", Client: "default"})
	cs, err := r.SingleClientSource()
	if err != nil {
		t.Fatalf("SingleClientSource: %v", err)
	}
	if cs.Describe() != "strac.default" {
		t.Errorf("source = %s", cs.Describe())
	}

	derived := report.New(uuid.New(), testSchema(), nil, report.FormatCSV,
		report.ReportSource{ParentID: r.ID, Action: "translate"})
	if _, err := derived.SingleClientSource(); err == nil {
		t.Error("expected error for non-client source")
	}
}

func TestDeidentify(t *testing.T) {
	r := report.New(uuid.New(), testSchema(), []report.Item{
		{"test_result": "260373001", "patient_state": "az", "patient_county": "Maricopa"},
		{"test_result": "260415000", "patient_state": "co", "patient_county": "Denver"},
	}, report.FormatCSV)

	rows := report.Deidentify(r)
	if len(rows) != 2 {
		t.Fatalf("Deidentify produced %d rows", len(rows))
	}
	if rows[0].ReportIndex != 1 || rows[1].ReportIndex != 2 {
		t.Error("report index must be 1-based")
	}
	if rows[0].PatientState != "AZ" {
		t.Errorf("patient state = %q, want AZ", rows[0].PatientState)
	}
	if rows[1].TestResult != "260415000" || rows[1].PatientCounty != "Denver" {
		t.Errorf("row 1 = %+v", rows[1])
	}
}

func TestAppendParamsBounded(t *testing.T) {
	var a report.Action
	a.AppendParams("option=SkipSend")
	a.AppendParams("routeTo=az-phd.elr")
	if a.Params != "option=SkipSend, routeTo=az-phd.elr" {
		t.Errorf("Params = %q", a.Params)
	}

	a.Params = strings.Repeat("x", report.MaxActionParams)
	a.AppendParams("overflow")
	if len(a.Params) != report.MaxActionParams {
		t.Errorf("Params length = %d, want %d", len(a.Params), report.MaxActionParams)
	}
	if !strings.HasPrefix(a.Params, "xxxx") {
		t.Error("truncation must keep the oldest content")
	}
}

func TestEventQueueMessage(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	at := time.Date(2021, 3, 10, 9, 0, 0, 0, time.UTC)

	e := report.Event{Action: report.EventBatch, ReportID: id, ReceiverName: "az-phd.elr", At: at}
	want := "report&batch&11111111-2222-3333-4444-555555555555&az-phd.elr&2021-03-10T09:00:00Z"
	if got := e.QueueMessage(); got != want {
		t.Errorf("QueueMessage = %q, want %q", got, want)
	}

	bare := report.Event{Action: report.EventSend, ReportID: id}
	if got := bare.QueueMessage(); got != "report&send&11111111-2222-3333-4444-555555555555" {
		t.Errorf("QueueMessage = %q", got)
	}
}

func TestEventActionToActionKind(t *testing.T) {
	if report.EventBatch.ToActionKind() != report.ActionBatch {
		t.Error("batch event must schedule a batch action")
	}
	if report.EventSend.ToActionKind() != report.ActionSend {
		t.Error("send event must schedule a send action")
	}
	if report.EventNone.ToActionKind() != report.ActionNone {
		t.Error("none event must schedule no action")
	}
}
