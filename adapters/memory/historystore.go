// Package memory provides in-memory implementations for testing.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/artpar/reportgate/domain/report"
	"github.com/artpar/reportgate/ports"
)

// HistoryStore is an in-memory implementation of ports.HistoryStore. Rows
// written inside a transaction are staged and merged into the store only
// when the transaction function returns nil.
type HistoryStore struct {
	mu     sync.RWMutex
	nextID int64

	Actions        []report.Action
	ReportFiles    map[report.ID]report.ReportFile
	ReportLineages []report.ReportLineage
	ItemLineages   []report.ItemLineage
	Logs           []report.ActionLog
	Metadata       []report.ResultMetadata
}

// NewHistoryStore creates a new in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		ReportFiles: make(map[report.ID]report.ReportFile),
	}
}

// Transact runs fn against a staging area, merging the staged rows on
// success and discarding them on error.
func (s *HistoryStore) Transact(ctx context.Context, fn func(tx ports.HistoryTx) error) error {
	tx := &historyTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Actions = append(s.Actions, tx.actions...)
	for _, rf := range tx.reportFiles {
		s.ReportFiles[rf.ReportID] = rf
	}
	s.ReportLineages = append(s.ReportLineages, tx.reportLineages...)
	s.ItemLineages = append(s.ItemLineages, tx.itemLineages...)
	s.Logs = append(s.Logs, tx.logs...)
	s.Metadata = append(s.Metadata, tx.metadata...)
	return nil
}

// ReportFile returns the stored projection for a report id.
func (s *HistoryStore) ReportFile(id report.ID) (report.ReportFile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rf, ok := s.ReportFiles[id]
	return rf, ok
}

type historyTx struct {
	store *HistoryStore

	actions        []report.Action
	reportFiles    []report.ReportFile
	reportLineages []report.ReportLineage
	itemLineages   []report.ItemLineage
	logs           []report.ActionLog
	metadata       []report.ResultMetadata
}

func (t *historyTx) InsertAction(ctx context.Context, a *report.Action) (int64, error) {
	a.ID = atomic.AddInt64(&t.store.nextID, 1)
	t.actions = append(t.actions, *a)
	return a.ID, nil
}

func (t *historyTx) InsertReportFile(ctx context.Context, rf *report.ReportFile) error {
	t.reportFiles = append(t.reportFiles, *rf)
	return nil
}

func (t *historyTx) InsertReportLineage(ctx context.Context, rl *report.ReportLineage) error {
	t.reportLineages = append(t.reportLineages, *rl)
	return nil
}

func (t *historyTx) BatchInsertItemLineages(ctx context.Context, lineages []report.ItemLineage) error {
	t.itemLineages = append(t.itemLineages, lineages...)
	return nil
}

func (t *historyTx) InsertActionLog(ctx context.Context, l *report.ActionLog) error {
	t.logs = append(t.logs, *l)
	return nil
}

func (t *historyTx) InsertResultMetadata(ctx context.Context, rows []report.ResultMetadata) error {
	t.metadata = append(t.metadata, rows...)
	return nil
}

// Ensure interface compliance.
var _ ports.HistoryStore = (*HistoryStore)(nil)
var _ ports.HistoryTx = (*historyTx)(nil)
