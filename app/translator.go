package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/artpar/reportgate/domain/receiver"
	"github.com/artpar/reportgate/domain/report"
	"github.com/artpar/reportgate/domain/schema"
	"github.com/artpar/reportgate/ports"
)

// RoutedReport is one child report bound for a receiver.
type RoutedReport struct {
	Report   *report.Report
	Receiver *receiver.Receiver
}

// FilteredReport is a receiver-bound output whose items were all removed by
// filtering.
type FilteredReport struct {
	Input    *report.Report
	Output   *report.Report
	Receiver *receiver.Receiver
}

// Translator turns one accepted report into receiver-bound child reports:
// it resolves the receiver set, applies each receiver's filters, and
// re-resolves every element value in the receiver's target schema.
type Translator struct {
	metadata  *Metadata
	receivers ports.ReceiverRegistry
	ids       ports.IDGenerator
	logger    zerolog.Logger
}

// NewTranslator creates a translator.
func NewTranslator(metadata *Metadata, receivers ports.ReceiverRegistry, ids ports.IDGenerator, logger zerolog.Logger) *Translator {
	return &Translator{metadata: metadata, receivers: receivers, ids: ids, logger: logger}
}

// FilterAndTranslateByReceiver routes one report. routeTo, when non-empty,
// is an explicit allow-list validated against known receivers; otherwise
// every receiver subscribed to the report's topic is considered. A failure
// in one receiver's filter or translation step becomes a warning and does
// not prevent the other receivers from being processed.
func (t *Translator) FilterAndTranslateByReceiver(
	r *report.Report,
	defaults map[string]string,
	routeTo []string,
	snd schema.SenderContext,
) (routed []RoutedReport, filtered []FilteredReport, warnings []report.ActionLog, err error) {
	targets, err := t.resolveReceivers(r, routeTo)
	if err != nil {
		return nil, nil, nil, err
	}

	for _, rcvr := range targets {
		child, childWarnings, translateErr := t.translateForReceiver(r, rcvr, defaults, snd)
		warnings = append(warnings, childWarnings...)
		if translateErr != nil {
			warnings = append(warnings, report.ActionLog{
				ReportID: r.ID,
				Level:    report.LogWarning,
				Detail:   fmt.Sprintf("receiver %s skipped: %v", rcvr.FullName(), translateErr),
			})
			t.logger.Warn().Err(translateErr).Str("receiver", rcvr.FullName()).
				Msg("receiver translation failed")
			continue
		}
		if child.ItemCount() == 0 {
			filtered = append(filtered, FilteredReport{Input: r, Output: child, Receiver: rcvr})
			continue
		}
		routed = append(routed, RoutedReport{Report: child, Receiver: rcvr})
	}
	return routed, filtered, warnings, nil
}

func (t *Translator) resolveReceivers(r *report.Report, routeTo []string) ([]*receiver.Receiver, error) {
	if len(routeTo) == 0 {
		return t.receivers.ReceiversForTopic(r.Schema.Topic), nil
	}
	out := make([]*receiver.Receiver, 0, len(routeTo))
	for _, name := range routeTo {
		rcvr, ok := t.receivers.FindReceiver(name)
		if !ok {
			return nil, fmt.Errorf("unknown receiver %q", name)
		}
		out = append(out, rcvr)
	}
	return out, nil
}

// translateForReceiver builds the receiver's child report: filter first,
// then per-element value resolution in the target schema. Items whose
// required elements cannot be resolved are dropped with a warning; the
// survivors keep their original relative order, which is what the item
// lineage indexes are built from.
func (t *Translator) translateForReceiver(
	input *report.Report,
	rcvr *receiver.Receiver,
	defaults map[string]string,
	snd schema.SenderContext,
) (*report.Report, []report.ActionLog, error) {
	target := t.metadata.FindSchema(rcvr.SchemaName)
	if target == nil {
		return nil, nil, fmt.Errorf("receiver schema %q is not loaded", rcvr.SchemaName)
	}

	childID := t.ids.NewReportID()
	var warnings []report.ActionLog
	var items []report.Item
	var lineages []report.ItemLineage

	for i, item := range input.Items {
		accepted, err := rcvr.AcceptsItem(item)
		if err != nil {
			return nil, warnings, err
		}
		if !accepted {
			warnings = append(warnings, report.ActionLog{
				ReportID:   input.ID,
				ItemIndex:  i,
				TrackingID: input.TrackingID(i),
				Level:      report.LogFilter,
				Detail:     fmt.Sprintf("item filtered for receiver %s", rcvr.FullName()),
			})
			continue
		}

		out, itemWarnings, ok := t.translateItem(item, target, defaults, i+1, snd)
		for _, w := range itemWarnings {
			w.ReportID = input.ID
			w.ItemIndex = i
			w.TrackingID = input.TrackingID(i)
			warnings = append(warnings, w)
		}
		if !ok {
			continue
		}
		lineages = append(lineages, report.ItemLineage{
			ParentReportID: input.ID,
			ParentIndex:    i,
			ChildReportID:  childID,
			ChildIndex:     len(items),
			TrackingID:     input.TrackingID(i),
		})
		items = append(items, out)
	}

	child := report.New(childID, target, items, rcvr.Format,
		report.ReportSource{ParentID: input.ID, Action: string(report.ActionTranslate)})
	child.ItemLineages = lineages
	return child, warnings, nil
}

// translateItem resolves every target element for one item. ok is false
// when a fatal element error rejects the item.
func (t *Translator) translateItem(
	item report.Item,
	target *schema.Schema,
	defaults map[string]string,
	index int,
	snd schema.SenderContext,
) (report.Item, []report.ActionLog, bool) {
	out := make(report.Item, len(target.Elements))
	var warnings []report.ActionLog
	ok := true

	for i := range target.Elements {
		e := &target.Elements[i]
		result := e.ProcessValue(item, target, defaults, index, snd)
		for _, w := range result.Warnings {
			warnings = append(warnings, report.ActionLog{Level: report.LogWarning, Detail: w.Message})
		}
		if len(result.Errors) > 0 {
			for _, d := range result.Errors {
				warnings = append(warnings, report.ActionLog{Level: report.LogWarning, Detail: d.Message})
			}
			ok = false
			continue
		}
		value := result.Value
		if e.Type == schema.TypeCode {
			value = e.NormalizeCode(value)
		}
		out[e.Name] = e.TruncateValue(value)
	}
	if !ok {
		return nil, warnings, false
	}
	return out, warnings, true
}
