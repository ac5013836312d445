package report

import (
	"fmt"
	"strings"
	"time"
)

// EventAction is what the delivery subsystem should do with a report.
type EventAction string

const (
	EventBatch EventAction = "batch"
	EventSend  EventAction = "send"
	EventNone  EventAction = "none"
)

// ToActionKind maps an event action onto the pipeline action it schedules.
func (a EventAction) ToActionKind() ActionKind {
	switch a {
	case EventBatch:
		return ActionBatch
	case EventSend:
		return ActionSend
	default:
		return ActionNone
	}
}

// Event is one staged dispatch decision: deliver (or batch, or do nothing
// with) a report at a given time. Events are staged in memory during an
// action and released to the delivery queue only after the owning
// transaction commits.
type Event struct {
	Action       EventAction
	ReportID     ID
	ReceiverName string
	At           time.Time
}

// QueueMessage renders the event in the wire form handed to the delivery
// queue.
func (e Event) QueueMessage() string {
	parts := []string{"report", string(e.Action), e.ReportID.String()}
	if e.ReceiverName != "" {
		parts = append(parts, e.ReceiverName)
	}
	if !e.At.IsZero() {
		parts = append(parts, e.At.UTC().Format(time.RFC3339))
	}
	return strings.Join(parts, "&")
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Action, e.ReportID)
}
