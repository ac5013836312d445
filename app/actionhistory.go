// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/artpar/reportgate/domain/receiver"
	"github.com/artpar/reportgate/domain/report"
	"github.com/artpar/reportgate/ports"
)

// ConsistencyError signals a lineage invariant violation or double-tracking.
// It always indicates a caller bug, never an expected runtime condition, and
// aborts the whole action.
type ConsistencyError struct {
	msg string
}

func (e *ConsistencyError) Error() string { return "consistency error: " + e.msg }

func consistencyf(format string, args ...any) error {
	return &ConsistencyError{msg: fmt.Sprintf(format, args...)}
}

// ActionHistory accumulates everything touched by exactly one action: the
// reports that went in, the reports that came out, their lineage, logs, and
// the dispatch events to release after commit. Call the track methods while
// the action progresses, SaveToStore inside the owning transaction, and
// QueueEvents only after that transaction has committed.
type ActionHistory struct {
	action report.Action

	// Four disjoint maps keyed by report id. A report id may appear in at
	// most one of them per action.
	reportsIn       map[report.ID]*report.ReportFile
	reportsReceived map[report.ID]*report.ReportFile
	reportsOut      map[report.ID]*report.ReportFile
	filteredOut     map[report.ID]*report.ReportFile

	resultMetadata []report.ResultMetadata
	logs           []report.ActionLog

	itemLineages map[report.ItemLineage]struct{}
	lineageOrder []report.ItemLineage

	reportLineages []report.ReportLineage
	events         []report.Event

	generatingEmptyReport bool
	saved                 bool

	logger zerolog.Logger
}

// NewActionHistory starts tracking one action of the given kind.
func NewActionHistory(kind report.ActionKind, clock ports.Clock, logger zerolog.Logger) *ActionHistory {
	return &ActionHistory{
		action:          report.Action{Kind: kind, CreatedAt: clock.Now().UTC()},
		reportsIn:       make(map[report.ID]*report.ReportFile),
		reportsReceived: make(map[report.ID]*report.ReportFile),
		reportsOut:      make(map[report.ID]*report.ReportFile),
		filteredOut:     make(map[report.ID]*report.ReportFile),
		itemLineages:    make(map[report.ItemLineage]struct{}),
		logger:          logger,
	}
}

// NewEmptyBatchActionHistory starts tracking an action that generates an
// empty batch file for a receiver that requested one.
func NewEmptyBatchActionHistory(kind report.ActionKind, clock ports.Clock, logger zerolog.Logger) *ActionHistory {
	h := NewActionHistory(kind, clock, logger)
	h.generatingEmptyReport = true
	return h
}

// Action exposes the action row being accumulated.
func (h *ActionHistory) Action() *report.Action { return &h.action }

// Events exposes the staged dispatch events, in staging order.
func (h *ActionHistory) Events() []report.Event { return h.events }

// TrackUsername records who triggered the action.
func (h *ActionHistory) TrackUsername(username string) {
	h.action.Username = username
}

// TrackSenderInfo records the submitting client and the optional
// user-supplied payload name on the action.
func (h *ActionHistory) TrackSenderInfo(org, client, payloadName string) {
	h.action.SendingOrg = org
	h.action.SendingClient = client
	h.action.ExternalName = payloadName
}

// TrackActionParams appends to the action's parameter text.
func (h *ActionHistory) TrackActionParams(params string) {
	h.action.AppendParams(params)
}

// TrackActionResult appends to the action's result text.
func (h *ActionHistory) TrackActionResult(result string) {
	h.action.AppendResult(result)
}

// TrackLogs stages log entries against the action.
func (h *ActionHistory) TrackLogs(logs ...report.ActionLog) {
	h.logs = append(h.logs, logs...)
}

// TrackEvent stages a dispatch event for release after the action commits.
// Callers scheduling batch slots use this to stage the batch event alongside
// the report tracked by TrackCreatedReport.
func (h *ActionHistory) TrackEvent(e report.Event) {
	h.trackEvent(e)
}

func (h *ActionHistory) trackEvent(e report.Event) {
	h.events = append(h.events, e)
}

func (h *ActionHistory) isTracked(id report.ID) bool {
	if _, ok := h.reportsIn[id]; ok {
		return true
	}
	if _, ok := h.reportsReceived[id]; ok {
		return true
	}
	if _, ok := h.reportsOut[id]; ok {
		return true
	}
	if _, ok := h.filteredOut[id]; ok {
		return true
	}
	return false
}

func (h *ActionHistory) checkTrackable(id report.ID) error {
	if h.saved {
		return consistencyf("attempt to track report %s after the action was persisted", id)
	}
	if h.isTracked(id) {
		return consistencyf("report %s is already tracked by this action", id)
	}
	return nil
}

// TrackExistingInputReport records a bare reference to an already-persisted
// report, needed only as a lineage parent.
func (h *ActionHistory) TrackExistingInputReport(id report.ID) error {
	if err := h.checkTrackable(id); err != nil {
		return err
	}
	h.reportsIn[id] = &report.ReportFile{ReportID: id}
	return nil
}

// TrackExternalInputReport records a newly received external report. The
// report must carry exactly one client source and no item lineage; a report
// whose topic matches the de-identification policy stages de-identified
// metadata rows for separate storage.
func (h *ActionHistory) TrackExternalInputReport(r *report.Report, blob ports.BlobInfo, payloadName string) error {
	if err := h.checkTrackable(r.ID); err != nil {
		return err
	}
	source, err := r.SingleClientSource()
	if err != nil {
		return consistencyf("external report %s: %v", r.ID, err)
	}
	if r.ItemLineages != nil {
		return consistencyf("externally submitted report %s must not carry item lineage", r.ID)
	}

	rf := &report.ReportFile{
		ReportID:      r.ID,
		SchemaName:    r.Schema.Name,
		SchemaTopic:   r.Schema.Topic,
		SendingOrg:    source.Organization,
		SendingClient: source.Client,
		BodyURL:       blob.URL,
		BodyFormat:    blob.Format,
		BlobDigest:    blob.Digest,
		ItemCount:     r.ItemCount(),
		NextAction:    report.ActionTranslate,
		ExternalName:  payloadName,
		CreatedAt:     r.CreatedAt,
	}
	h.action.ExternalName = payloadName
	h.reportsReceived[r.ID] = rf

	if r.Schema.Topic == report.DeidentifyTopic {
		h.resultMetadata = append(h.resultMetadata, report.Deidentify(r)...)
	}
	return nil
}

// TrackGeneratedEmptyReport records a newly generated empty report for a
// receiver that has requested empty batches. The event is staged unless it
// is a batch event; batch events are injected by the batching decision, not
// here.
func (h *ActionHistory) TrackGeneratedEmptyReport(
	e report.Event, r *report.Report, rcvr *receiver.Receiver, blob ports.BlobInfo,
) error {
	if err := h.checkTrackable(r.ID); err != nil {
		return err
	}
	rf := &report.ReportFile{
		ReportID:     r.ID,
		SchemaName:   r.Schema.Name,
		SchemaTopic:  r.Schema.Topic,
		ReceivingOrg: rcvr.OrganizationName,
		ReceivingSvc: rcvr.Name,
		BodyURL:      blob.URL,
		BodyFormat:   blob.Format,
		BlobDigest:   blob.Digest,
		ItemCount:    r.ItemCount(),
		NextAction:   report.ActionSend,
		CreatedAt:    r.CreatedAt,
	}
	h.reportsReceived[r.ID] = rf

	if e.Action == report.EventSend {
		h.trackEvent(e)
	}
	return nil
}

// TrackCreatedReport records a newly produced output report, optionally
// bound for a receiver. The report's item lineage must be present and match
// its item count exactly. Only send events are staged here: batch events are
// staged by the caller at the scheduled slot, and none events exist solely
// to mark the report file's next action.
func (h *ActionHistory) TrackCreatedReport(
	e report.Event, r *report.Report, rcvr *receiver.Receiver, blob ports.BlobInfo,
) error {
	if err := h.checkTrackable(r.ID); err != nil {
		return err
	}
	if len(r.ItemLineages) != r.ItemCount() {
		return consistencyf("report %s has %d items but %d lineage rows",
			r.ID, r.ItemCount(), len(r.ItemLineages))
	}

	rf := &report.ReportFile{
		ReportID:     r.ID,
		SchemaName:   r.Schema.Name,
		SchemaTopic:  r.Schema.Topic,
		BodyURL:      blob.URL,
		BodyFormat:   blob.Format,
		BlobDigest:   blob.Digest,
		ItemCount:    r.ItemCount(),
		NextAction:   e.Action.ToActionKind(),
		NextActionAt: e.At,
		CreatedAt:    r.CreatedAt,
	}
	if rcvr != nil {
		rf.ReceivingOrg = rcvr.OrganizationName
		rf.ReceivingSvc = rcvr.Name
	}
	h.reportsOut[r.ID] = rf
	h.trackItemLineages(r.ItemLineages)

	if e.Action == report.EventSend {
		h.trackEvent(e)
	}
	return nil
}

// TrackFilteredReport records an output report fully removed by quality
// filtering. No items survive, so the report-level lineage edge is created
// directly instead of being derived from item lineage.
func (h *ActionHistory) TrackFilteredReport(input, output *report.Report, rcvr *receiver.Receiver) error {
	if err := h.checkTrackable(output.ID); err != nil {
		return err
	}
	rf := &report.ReportFile{
		ReportID:     output.ID,
		SchemaName:   output.Schema.Name,
		SchemaTopic:  output.Schema.Topic,
		ReceivingOrg: rcvr.OrganizationName,
		ReceivingSvc: rcvr.Name,
		BodyFormat:   output.BodyFormat,
		ItemCount:    output.ItemCount(),
		CreatedAt:    output.CreatedAt,
	}
	h.filteredOut[output.ID] = rf
	h.reportLineages = append(h.reportLineages, report.ReportLineage{
		ParentReportID: input.ID,
		ChildReportID:  output.ID,
	})
	h.TrackLogs(report.ActionLog{
		ReportID: output.ID,
		Level:    report.LogFilter,
		Detail:   fmt.Sprintf("all items filtered out for receiver %s", rcvr.FullName()),
	})
	return nil
}

// TrackSentReport records an externally delivered copy of a report. The
// copy has no blob of its own; only transport bookkeeping is stored.
func (h *ActionHistory) TrackSentReport(
	rcvr *receiver.Receiver, sentReportID report.ID, filename, params, result string, itemCount int,
) error {
	if err := h.checkTrackable(sentReportID); err != nil {
		return err
	}
	h.action.ExternalName = filename
	h.reportsOut[sentReportID] = &report.ReportFile{
		ReportID:        sentReportID,
		SchemaName:      rcvr.SchemaName,
		SchemaTopic:     rcvr.Topic,
		ReceivingOrg:    rcvr.OrganizationName,
		ReceivingSvc:    rcvr.Name,
		BodyFormat:      rcvr.Format,
		ItemCount:       itemCount,
		ExternalName:    filename,
		TransportParams: params,
		TransportResult: result,
	}
	return nil
}

// TrackDownloadedReport records a pull-delivery copy. The new report id
// artificially represents the copy that is now outside our custody; the
// parent is implicitly tracked as an existing input.
func (h *ActionHistory) TrackDownloadedReport(
	parent *report.ReportFile, filename string, newReportID report.ID, downloadedBy string,
) error {
	if err := h.TrackExistingInputReport(parent.ReportID); err != nil {
		return err
	}
	if err := h.checkTrackable(newReportID); err != nil {
		return err
	}
	h.action.ExternalName = filename
	h.TrackUsername(downloadedBy)
	h.reportsOut[newReportID] = &report.ReportFile{
		ReportID:        newReportID,
		SchemaName:      parent.SchemaName,
		SchemaTopic:     parent.SchemaTopic,
		ReceivingOrg:    parent.ReceivingOrg,
		ReceivingSvc:    parent.ReceivingSvc,
		BodyFormat:      parent.BodyFormat,
		ItemCount:       parent.ItemCount,
		ExternalName:    filename,
		TransportParams: fmt.Sprintf(`{"reportRequested":%q}`, parent.ReportID),
		TransportResult: fmt.Sprintf(`{"downloadedBy":%q}`, downloadedBy),
		DownloadedBy:    downloadedBy,
	}
	return nil
}

// TrackItemLineages stages item lineage rows directly. Used by flows such
// as send, which produce output copies whose lineage is computed outside a
// Report object.
func (h *ActionHistory) TrackItemLineages(lineages []report.ItemLineage) {
	h.trackItemLineages(lineages)
}

func (h *ActionHistory) trackItemLineages(lineages []report.ItemLineage) {
	for _, l := range lineages {
		if _, ok := h.itemLineages[l]; ok {
			continue
		}
		h.itemLineages[l] = struct{}{}
		h.lineageOrder = append(h.lineageOrder, l)
	}
}

// SaveToStore persists everything this action tracked. It must be called
// inside one transaction: the action row goes in first to obtain its id,
// report files and metadata follow, report lineage is derived from item
// lineage and validated, and finally lineage and log rows are inserted. Any
// error aborts the whole persist.
func (h *ActionHistory) SaveToStore(ctx context.Context, tx ports.HistoryTx) error {
	if h.saved {
		return consistencyf("action history already persisted")
	}

	actionID, err := tx.InsertAction(ctx, &h.action)
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	h.action.ID = actionID
	h.logger.Debug().Int64("action_id", actionID).Str("kind", string(h.action.Kind)).
		Msg("saved action")

	for _, group := range []map[report.ID]*report.ReportFile{h.reportsReceived, h.reportsOut, h.filteredOut} {
		for _, rf := range group {
			rf.ActionID = actionID
			if err := tx.InsertReportFile(ctx, rf); err != nil {
				return fmt.Errorf("insert report file %s: %w", rf.ReportID, err)
			}
		}
	}

	if len(h.resultMetadata) > 0 {
		if err := tx.InsertResultMetadata(ctx, h.resultMetadata); err != nil {
			return fmt.Errorf("insert result metadata: %w", err)
		}
	}

	if err := h.deriveReportLineages(); err != nil {
		return err
	}
	for i := range h.reportLineages {
		h.reportLineages[i].ActionID = actionID
		if err := tx.InsertReportLineage(ctx, &h.reportLineages[i]); err != nil {
			return fmt.Errorf("insert report lineage: %w", err)
		}
	}
	if len(h.lineageOrder) > 0 {
		if err := tx.BatchInsertItemLineages(ctx, h.lineageOrder); err != nil {
			return fmt.Errorf("insert item lineages: %w", err)
		}
	}

	for i := range h.logs {
		h.logs[i].ActionID = actionID
		if err := tx.InsertActionLog(ctx, &h.logs[i]); err != nil {
			return fmt.Errorf("insert action log: %w", err)
		}
	}

	h.saved = true
	return nil
}

// deriveReportLineages turns the distinct (parent, child) pairs of the item
// lineage set into report-level edges and asserts that they agree exactly
// with the tracked report maps.
func (h *ActionHistory) deriveReportLineages() error {
	if h.generatingEmptyReport {
		// Generating an empty report for the send step has one report in
		// and one out with no items to derive from; the batch step has no
		// lineage at all.
		if len(h.reportsIn) == 1 && len(h.reportsOut) == 1 {
			var parentID, childID report.ID
			for id := range h.reportsIn {
				parentID = id
			}
			for id := range h.reportsOut {
				childID = id
			}
			h.reportLineages = append(h.reportLineages, report.ReportLineage{
				ParentReportID: parentID,
				ChildReportID:  childID,
			})
		}
		return nil
	}

	type pair struct{ parent, child report.ID }
	seen := make(map[pair]bool)
	parents := make(map[report.ID]bool)
	children := make(map[report.ID]bool)
	for _, l := range h.lineageOrder {
		parents[l.ParentReportID] = true
		children[l.ChildReportID] = true
		p := pair{l.ParentReportID, l.ChildReportID}
		if seen[p] {
			continue
		}
		seen[p] = true
		h.reportLineages = append(h.reportLineages, report.ReportLineage{
			ParentReportID: p.parent,
			ChildReportID:  p.child,
		})
	}

	if len(h.reportsOut) == 0 && len(seen) == 0 {
		return nil
	}
	if len(h.reportsOut) > 0 && len(seen) == 0 {
		return consistencyf("there are child reports but no item lineage")
	}
	if len(h.reportsOut) == 0 && len(seen) > 0 {
		return consistencyf("there is item lineage but no child reports")
	}

	for id := range parents {
		if _, ok := h.reportsReceived[id]; ok {
			continue
		}
		if _, ok := h.reportsIn[id]; ok {
			continue
		}
		return consistencyf("item lineage names parent %s that is not a tracked input", id)
	}
	for id := range h.reportsReceived {
		if _, ok := h.reportsIn[id]; ok {
			return consistencyf("report %s tracked as both received and existing input", id)
		}
	}
	if len(parents) != len(h.reportsReceived)+len(h.reportsIn) {
		return consistencyf("parent reports from item lineage do not match tracked inputs")
	}
	for id := range children {
		if _, ok := h.reportsOut[id]; !ok {
			return consistencyf("item lineage names child %s that is not a tracked output", id)
		}
	}
	if len(children) != len(h.reportsOut) {
		return consistencyf("child reports from item lineage do not match tracked outputs")
	}
	return nil
}

// QueueEvents releases the staged dispatch events to the delivery queue, in
// the order they were staged. Call only after the transaction that
// persisted this action has committed: events must never reference
// uncommitted rows.
func (h *ActionHistory) QueueEvents(ctx context.Context, queue ports.DeliveryQueue) error {
	if !h.saved {
		return consistencyf("events queued before the action was persisted")
	}
	for _, e := range h.events {
		if err := queue.Send(ctx, e); err != nil {
			return fmt.Errorf("queue event %s: %w", e, err)
		}
		h.logger.Debug().Str("event", e.QueueMessage()).Msg("queued event")
	}
	return nil
}
