// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/artpar/reportgate/domain/receiver"
	"github.com/artpar/reportgate/domain/report"
	"github.com/artpar/reportgate/domain/schema"
	"github.com/artpar/reportgate/domain/sender"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates report identifiers.
type IDGenerator interface {
	NewReportID() report.ID
}

// -----------------------------------------------------------------------------
// History Store Ports
// -----------------------------------------------------------------------------

// HistoryTx is one open transaction against the history store. Every insert
// either commits with the whole transaction or not at all.
type HistoryTx interface {
	// InsertAction stores the action row and returns its generated id.
	InsertAction(ctx context.Context, a *report.Action) (int64, error)

	InsertReportFile(ctx context.Context, rf *report.ReportFile) error

	InsertReportLineage(ctx context.Context, rl *report.ReportLineage) error

	// BatchInsertItemLineages stores item lineage rows in one batch.
	BatchInsertItemLineages(ctx context.Context, lineages []report.ItemLineage) error

	InsertActionLog(ctx context.Context, l *report.ActionLog) error

	InsertResultMetadata(ctx context.Context, rows []report.ResultMetadata) error
}

// HistoryStore persists action history atomically.
type HistoryStore interface {
	// Transact runs fn inside one transaction; any error rolls back every
	// row written by fn.
	Transact(ctx context.Context, fn func(tx HistoryTx) error) error
}

// -----------------------------------------------------------------------------
// Delivery Ports
// -----------------------------------------------------------------------------

// DeliveryQueue hands dispatch events to the external delivery subsystem.
// Events must only be sent after the owning transaction has committed.
type DeliveryQueue interface {
	Send(ctx context.Context, e report.Event) error
}

// BlobInfo describes a stored report body.
type BlobInfo struct {
	URL    string
	Format report.Format
	Digest string
}

// BlobStore stores report bodies outside the row store.
type BlobStore interface {
	Upload(ctx context.Context, format report.Format, name string, data []byte) (BlobInfo, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// -----------------------------------------------------------------------------
// Settings Ports
// -----------------------------------------------------------------------------

// ReceiverRegistry resolves delivery targets.
type ReceiverRegistry interface {
	FindReceiver(fullName string) (*receiver.Receiver, bool)
	ReceiversForTopic(topic string) []*receiver.Receiver
}

// SenderRegistry resolves sending clients.
type SenderRegistry interface {
	FindSender(fullName string) (*sender.Sender, bool)
}

// -----------------------------------------------------------------------------
// Observability Ports
// -----------------------------------------------------------------------------

// SubmissionObserver is notified of pipeline outcomes after they are known.
// Implementations must be cheap and must not fail; the router calls them
// inline on the submission path.
type SubmissionObserver interface {
	ObserveSubmission(sender, outcome string, items int, seconds float64)
	ObserveRouted(receiver string)
	ObserveFiltered(receiver string, items int)
}

// -----------------------------------------------------------------------------
// Codec Ports
// -----------------------------------------------------------------------------

// Codec reads raw bytes into a report and writes a report back out in a
// receiver's format. One implementation exists per wire format; per-item
// problems come back as action logs, fatal problems as an error.
type Codec interface {
	Read(
		s *schema.Schema,
		data []byte,
		id report.ID,
		source report.ClientSource,
		defaults map[string]string,
		snd schema.SenderContext,
	) (*report.Report, []report.ActionLog, error)

	Write(r *report.Report, format report.Format) ([]byte, error)
}
