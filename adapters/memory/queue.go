package memory

import (
	"context"
	"sync"

	"github.com/artpar/reportgate/domain/report"
	"github.com/artpar/reportgate/ports"
)

// Queue is an in-memory implementation of ports.DeliveryQueue. Events are
// collected in send order for inspection by tests.
type Queue struct {
	mu     sync.Mutex
	events []report.Event
}

// NewQueue creates a new in-memory delivery queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Send records the event.
func (q *Queue) Send(ctx context.Context, e report.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, e)
	return nil
}

// Events returns a copy of everything sent so far.
func (q *Queue) Events() []report.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]report.Event, len(q.events))
	copy(out, q.events)
	return out
}

// Ensure interface compliance.
var _ ports.DeliveryQueue = (*Queue)(nil)
