package report

import (
	"strings"
	"time"
)

// ActionKind is one kind of pipeline invocation.
type ActionKind string

const (
	ActionReceive   ActionKind = "receive"
	ActionTranslate ActionKind = "translate"
	ActionBatch     ActionKind = "batch"
	ActionSend      ActionKind = "send"
	ActionDownload  ActionKind = "download"
	ActionNone      ActionKind = "none"
)

// Size bounds for the free-form action text columns. Overflow keeps the
// oldest content.
const (
	MaxActionParams = 2048
	MaxActionResult = 2048
)

// Action is one invocation of the processing pipeline and the unit of
// atomic persistence. Its id is generated by the store on insert.
type Action struct {
	ID            int64
	Kind          ActionKind
	CreatedAt     time.Time
	Username      string
	SendingOrg    string
	SendingClient string
	ExternalName  string
	Params        string
	Result        string
}

// AppendParams appends to the action's parameter text, truncating at the
// size bound while preserving the oldest content.
func (a *Action) AppendParams(params string) {
	a.Params = appendBounded(a.Params, params, MaxActionParams)
}

// AppendResult appends to the action's result text, truncating at the size
// bound while preserving the oldest content.
func (a *Action) AppendResult(result string) {
	a.Result = appendBounded(a.Result, result, MaxActionResult)
}

func appendBounded(existing, addition string, max int) string {
	if addition == "" {
		return existing
	}
	combined := addition
	if existing != "" {
		combined = existing + ", " + addition
	}
	if len(combined) > max {
		combined = combined[:max]
	}
	return combined
}

// ReportFile is the persisted projection of a report's metadata for one
// action. Exactly one row exists per report id per action that touches it.
type ReportFile struct {
	ReportID        ID
	ActionID        int64
	SchemaName      string
	SchemaTopic     string
	SendingOrg      string
	SendingClient   string
	ReceivingOrg    string
	ReceivingSvc    string
	BodyURL         string
	BodyFormat      Format
	BlobDigest      string
	ItemCount       int
	NextAction      ActionKind
	NextActionAt    time.Time
	ExternalName    string
	TransportParams string
	TransportResult string
	DownloadedBy    string
	CreatedAt       time.Time
}

// ItemLineage records that the item at ParentIndex in the parent report
// produced the item at ChildIndex in the child report. Item order within a
// report is fixed and index-addressable; the index pair is the only
// reliable correlation key.
type ItemLineage struct {
	ParentReportID ID
	ParentIndex    int
	ChildReportID  ID
	ChildIndex     int
	TrackingID     string
}

// ReportLineage is a report-level parent to child edge. It is derived from
// item lineage at persist time, never hand-authored, except for the
// degenerate single-report batch/send case.
type ReportLineage struct {
	ActionID       int64
	ParentReportID ID
	ChildReportID  ID
}

// LogLevel classifies an action log entry.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
	LogFilter  LogLevel = "filter"
)

// ActionLog is one event recorded against an action.
type ActionLog struct {
	ActionID   int64
	ReportID   ID
	ItemIndex  int
	TrackingID string
	Level      LogLevel
	Detail     string
}

// ResultMetadata is a de-identified per-item projection staged for reports
// whose topic matches the de-identification policy.
type ResultMetadata struct {
	ReportID      ID
	ReportIndex   int
	TestResult    string
	PatientState  string
	PatientCounty string
}

// Deidentify builds the de-identified metadata rows for a report. Only
// coarse geography and the coded result survive.
func Deidentify(r *Report) []ResultMetadata {
	out := make([]ResultMetadata, 0, len(r.Items))
	for i, item := range r.Items {
		out = append(out, ResultMetadata{
			ReportID:      r.ID,
			ReportIndex:   i + 1,
			TestResult:    item["test_result"],
			PatientState:  strings.ToUpper(item["patient_state"]),
			PatientCounty: item["patient_county"],
		})
	}
	return out
}

// DeidentifyTopic is the topic whose external submissions stage
// de-identified result metadata.
const DeidentifyTopic = "covid-19"
