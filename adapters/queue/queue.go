// Package queue provides delivery queue implementations.
package queue

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/artpar/reportgate/domain/report"
	"github.com/artpar/reportgate/ports"
)

// LogQueue records every delivery event in the log. It stands in for an
// external delivery subsystem when none is attached.
type LogQueue struct {
	logger zerolog.Logger
}

// NewLogQueue creates a log-backed queue.
func NewLogQueue(logger zerolog.Logger) *LogQueue {
	return &LogQueue{logger: logger.With().Str("component", "queue").Logger()}
}

// Send logs the event's queue message.
func (q *LogQueue) Send(ctx context.Context, e report.Event) error {
	evt := q.logger.Info().
		Str("action", string(e.Action)).
		Str("report_id", e.ReportID.String()).
		Str("message", e.QueueMessage())
	if e.ReceiverName != "" {
		evt = evt.Str("receiver", e.ReceiverName)
	}
	if !e.At.IsZero() {
		evt = evt.Time("at", e.At)
	}
	evt.Msg("delivery event queued")
	return nil
}

// Ensure interface compliance.
var _ ports.DeliveryQueue = (*LogQueue)(nil)
