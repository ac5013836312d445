// Package idgen provides report ID generation implementations.
package idgen

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/artpar/reportgate/domain/report"
	"github.com/artpar/reportgate/ports"
)

// UUID generates random report ids.
type UUID struct{}

// NewReportID generates a new UUID v4 report id.
func (UUID) NewReportID() report.ID {
	return report.ID(uuid.New())
}

// Ensure interface compliance.
var _ ports.IDGenerator = UUID{}

// Sequential generates deterministic report ids (for testing). The counter
// is embedded in the last eight bytes of the id, so ids sort in generation
// order.
type Sequential struct {
	counter uint64
}

// NewSequential creates a sequential id generator.
func NewSequential() *Sequential {
	return &Sequential{}
}

// NewReportID generates the next sequential report id.
func (s *Sequential) NewReportID() report.ID {
	n := atomic.AddUint64(&s.counter, 1)
	var id report.ID
	binary.BigEndian.PutUint64(id[8:], n)
	return id
}

// Reset resets the counter (for testing).
func (s *Sequential) Reset() {
	atomic.StoreUint64(&s.counter, 0)
}

// Ensure interface compliance.
var _ ports.IDGenerator = (*Sequential)(nil)
