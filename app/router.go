package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/reportgate/domain/receiver"
	"github.com/artpar/reportgate/domain/report"
	"github.com/artpar/reportgate/domain/sender"
	"github.com/artpar/reportgate/ports"
)

// SubmissionResult is what a sending client gets back for one upload.
type SubmissionResult struct {
	ReportID     report.ID
	ItemCount    int
	Destinations []string
	Warnings     []report.ActionLog
	Errors       []report.ActionLog
}

// Router accepts raw submissions, decodes them against the sender's schema,
// routes the resulting report to every matching receiver, and records the
// whole action atomically. Delivery events are staged in the action history
// and released to the queue only after the store transaction has committed.
type Router struct {
	store      ports.HistoryStore
	queue      ports.DeliveryQueue
	blob       ports.BlobStore
	codec      ports.Codec
	metadata   *Metadata
	translator *Translator
	clock      ports.Clock
	ids        ports.IDGenerator
	logger     zerolog.Logger
	observer   ports.SubmissionObserver
}

// NewRouter creates a router over the given ports.
func NewRouter(
	store ports.HistoryStore,
	queue ports.DeliveryQueue,
	blob ports.BlobStore,
	codec ports.Codec,
	metadata *Metadata,
	translator *Translator,
	clock ports.Clock,
	ids ports.IDGenerator,
	logger zerolog.Logger,
) *Router {
	return &Router{
		store:      store,
		queue:      queue,
		blob:       blob,
		codec:      codec,
		metadata:   metadata,
		translator: translator,
		clock:      clock,
		ids:        ids,
		logger:     logger.With().Str("component", "router").Logger(),
	}
}

// Submission outcome labels reported to the observer.
const (
	outcomeRouted    = "routed"
	outcomeValidated = "validated"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

// SetObserver attaches an outcome observer. A nil observer disables
// observation; the router never requires one.
func (s *Router) SetObserver(obs ports.SubmissionObserver) {
	s.observer = obs
}

func (s *Router) observeSubmission(snd *sender.Sender, outcome string, items int, start time.Time) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveSubmission(snd.FullName(), outcome, items, s.clock.Now().Sub(start).Seconds())
}

// Submit runs the full receive pipeline for one upload: decode, persist the
// external input, route to receivers, and stage delivery. With
// OptionValidatePayload nothing is persisted; the result carries only the
// decode outcome. A payload with item errors is rejected unless
// OptionSkipInvalidItems was given, in which case the surviving items are
// routed and the errors come back as warnings.
func (s *Router) Submit(
	ctx context.Context,
	snd *sender.Sender,
	content []byte,
	option Option,
	defaults map[string]string,
	routeTo []string,
	payloadName string,
) (*SubmissionResult, error) {
	start := s.clock.Now()
	sch := s.metadata.FindSchema(snd.SchemaName)
	if sch == nil {
		s.observeSubmission(snd, outcomeFailed, 0, start)
		return nil, fmt.Errorf("sender %s references unknown schema %q", snd.FullName(), snd.SchemaName)
	}

	id := s.ids.NewReportID()
	source := report.ClientSource{Organization: snd.OrganizationName, Client: snd.Name}
	r, logs, err := s.codec.Read(sch, content, id, source, defaults, snd)
	if err != nil {
		s.observeSubmission(snd, outcomeFailed, 0, start)
		return nil, fmt.Errorf("read %s payload: %w", snd.Format, err)
	}

	result := &SubmissionResult{ReportID: id}
	for _, l := range logs {
		if l.Level == report.LogError {
			result.Errors = append(result.Errors, l)
		} else {
			result.Warnings = append(result.Warnings, l)
		}
	}
	if len(result.Errors) > 0 && option != OptionSkipInvalidItems {
		s.observeSubmission(snd, outcomeRejected, 0, start)
		return result, fmt.Errorf("payload rejected: %d item errors", len(result.Errors))
	}
	result.ItemCount = r.ItemCount()
	if option == OptionValidatePayload {
		s.observeSubmission(snd, outcomeValidated, result.ItemCount, start)
		return result, nil
	}

	history := NewActionHistory(report.ActionReceive, s.clock, s.logger)
	history.TrackSenderInfo(snd.OrganizationName, snd.Name, payloadName)
	if option != OptionNone {
		history.TrackActionParams("option=" + string(option))
	}
	history.TrackLogs(logs...)

	info, err := s.blob.Upload(ctx, snd.Format, blobName(snd.FullName(), id), content)
	if err != nil {
		s.observeSubmission(snd, outcomeFailed, 0, start)
		return result, fmt.Errorf("store submission body: %w", err)
	}
	if err := history.TrackExternalInputReport(r, info, payloadName); err != nil {
		s.observeSubmission(snd, outcomeFailed, 0, start)
		return result, err
	}

	destinations, err := s.RouteReport(ctx, r, option, defaults, routeTo, snd, history)
	if err != nil {
		s.observeSubmission(snd, outcomeFailed, 0, start)
		return result, err
	}
	result.Destinations = destinations
	s.observeSubmission(snd, outcomeRouted, result.ItemCount, start)
	result.Warnings = append(result.Warnings, logsAtLevel(history, report.LogWarning, report.LogFilter)...)
	return result, nil
}

// RouteReport translates r for every matching receiver, persists the action
// history in one transaction, and then releases the staged delivery events.
// It returns the full names of the receivers that got a report, filtered
// destinations included.
func (s *Router) RouteReport(
	ctx context.Context,
	r *report.Report,
	option Option,
	defaults map[string]string,
	routeTo []string,
	snd *sender.Sender,
	history *ActionHistory,
) ([]string, error) {
	var (
		destinations []string
		routed       []RoutedReport
		filtered     []FilteredReport
	)
	err := s.store.Transact(ctx, func(tx ports.HistoryTx) error {
		var warnings []report.ActionLog
		var err error
		routed, filtered, warnings, err = s.translator.FilterAndTranslateByReceiver(r, defaults, routeTo, snd)
		if err != nil {
			return err
		}
		history.TrackLogs(warnings...)

		for _, f := range filtered {
			if err := history.TrackFilteredReport(f.Input, f.Output, f.Receiver); err != nil {
				return err
			}
			destinations = append(destinations, f.Receiver.FullName())
		}
		for _, rr := range routed {
			if err := s.sendToDestination(ctx, rr.Report, rr.Receiver, option, history); err != nil {
				return err
			}
			destinations = append(destinations, rr.Receiver.FullName())
		}
		history.TrackActionResult(routeResult(r, routed, filtered))
		return history.SaveToStore(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	if s.observer != nil {
		for _, rr := range routed {
			s.observer.ObserveRouted(rr.Receiver.FullName())
			if removed := r.ItemCount() - rr.Report.ItemCount(); removed > 0 {
				s.observer.ObserveFiltered(rr.Receiver.FullName(), removed)
			}
		}
		for _, f := range filtered {
			s.observer.ObserveFiltered(f.Receiver.FullName(), f.Input.ItemCount())
		}
	}

	if err := history.QueueEvents(ctx, s.queue); err != nil {
		return destinations, fmt.Errorf("queue delivery events: %w", err)
	}
	return destinations, nil
}

// sendToDestination decides how one receiver-bound report leaves the
// pipeline. SkipSend stores the report with no event at all. A receiver
// with a timing policy gets the report batched in the internal format at
// the policy's next trigger, unless the submission demanded immediate
// delivery. Formats that carry one item per transmission are split before
// sending.
func (s *Router) sendToDestination(
	ctx context.Context,
	child *report.Report,
	rcvr *receiver.Receiver,
	option Option,
	history *ActionHistory,
) error {
	switch {
	case option == OptionSkipSend:
		event := report.Event{Action: report.EventNone, ReportID: child.ID}
		return s.dispatchReport(ctx, event, child, rcvr, history)

	case rcvr.Timing != nil && option != OptionSendImmediately:
		batch := child.Copy(report.FormatInternal)
		event := report.Event{
			Action:       report.EventBatch,
			ReportID:     batch.ID,
			ReceiverName: rcvr.FullName(),
			At:           rcvr.Timing.NextTime(s.clock.Now()),
		}
		if err := s.dispatchReport(ctx, event, batch, rcvr, history); err != nil {
			return err
		}
		history.TrackEvent(event)
		return nil

	case child.BodyFormat.SingleItemPerTransmission():
		for _, piece := range child.Split(s.ids.NewReportID) {
			event := report.Event{
				Action:       report.EventSend,
				ReportID:     piece.ID,
				ReceiverName: rcvr.FullName(),
			}
			if err := s.dispatchReport(ctx, event, piece, rcvr, history); err != nil {
				return err
			}
		}
		return nil

	default:
		event := report.Event{
			Action:       report.EventSend,
			ReportID:     child.ID,
			ReceiverName: rcvr.FullName(),
		}
		return s.dispatchReport(ctx, event, child, rcvr, history)
	}
}

// dispatchReport writes the report body to blob storage and records the
// output report with its staged event.
func (s *Router) dispatchReport(
	ctx context.Context,
	event report.Event,
	r *report.Report,
	rcvr *receiver.Receiver,
	history *ActionHistory,
) error {
	body, err := s.codec.Write(r, r.BodyFormat)
	if err != nil {
		return fmt.Errorf("write body for %s: %w", rcvr.FullName(), err)
	}
	info, err := s.blob.Upload(ctx, r.BodyFormat, blobName(rcvr.FullName(), r.ID), body)
	if err != nil {
		return fmt.Errorf("store body for %s: %w", rcvr.FullName(), err)
	}
	return history.TrackCreatedReport(event, r, rcvr, info)
}

func blobName(owner string, id report.ID) string {
	return owner + "/" + id.String()
}

func routeResult(r *report.Report, routed []RoutedReport, filtered []FilteredReport) string {
	names := make([]string, 0, len(routed)+len(filtered))
	for _, rr := range routed {
		names = append(names, rr.Receiver.FullName())
	}
	for _, f := range filtered {
		names = append(names, f.Receiver.FullName()+" (filtered)")
	}
	if len(names) == 0 {
		return fmt.Sprintf("%d items routed to no receivers", r.ItemCount())
	}
	return fmt.Sprintf("%d items routed to %s", r.ItemCount(), strings.Join(names, ", "))
}

func logsAtLevel(h *ActionHistory, levels ...report.LogLevel) []report.ActionLog {
	var out []report.ActionLog
	for _, l := range h.logs {
		for _, lv := range levels {
			if l.Level == lv {
				out = append(out, l)
				break
			}
		}
	}
	return out
}
