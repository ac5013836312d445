package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/artpar/reportgate/domain/report"
	"github.com/artpar/reportgate/ports"
)

// HistoryStore implements ports.HistoryStore using SQLite.
type HistoryStore struct {
	db *DB
}

// NewHistoryStore creates a new SQLite history store.
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Transact runs fn inside one database transaction.
func (s *HistoryStore) Transact(ctx context.Context, fn func(tx ports.HistoryTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&historyTx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type historyTx struct {
	tx *sql.Tx
}

func (t *historyTx) InsertAction(ctx context.Context, a *report.Action) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO action (action_name, username, sending_org, sending_org_client,
			external_name, action_params, action_result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.Kind, a.Username, a.SendingOrg, a.SendingClient,
		a.ExternalName, a.Params, a.Result, a.CreatedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("insert action: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("action id: %w", err)
	}
	a.ID = id
	return id, nil
}

func (t *historyTx) InsertReportFile(ctx context.Context, rf *report.ReportFile) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO report_file (report_id, action_id, schema_name, schema_topic,
			sending_org, sending_org_client, receiving_org, receiving_org_svc,
			body_url, body_format, blob_digest, item_count,
			next_action, next_action_at, external_name,
			transport_params, transport_result, downloaded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rf.ReportID.String(), rf.ActionID, rf.SchemaName, rf.SchemaTopic,
		rf.SendingOrg, rf.SendingClient, rf.ReceivingOrg, rf.ReceivingSvc,
		rf.BodyURL, rf.BodyFormat, rf.BlobDigest, rf.ItemCount,
		rf.NextAction, nullableTime(rf.NextActionAt), rf.ExternalName,
		rf.TransportParams, rf.TransportResult, rf.DownloadedBy, rf.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert report_file %s: %w", rf.ReportID, err)
	}
	return nil
}

func (t *historyTx) InsertReportLineage(ctx context.Context, rl *report.ReportLineage) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO report_lineage (action_id, parent_report_id, child_report_id)
		VALUES (?, ?, ?)
	`, rl.ActionID, rl.ParentReportID.String(), rl.ChildReportID.String())
	if err != nil {
		return fmt.Errorf("insert report_lineage %s -> %s: %w",
			rl.ParentReportID, rl.ChildReportID, err)
	}
	return nil
}

func (t *historyTx) BatchInsertItemLineages(ctx context.Context, lineages []report.ItemLineage) error {
	if len(lineages) == 0 {
		return nil
	}
	stmt, err := t.tx.PrepareContext(ctx, `
		INSERT INTO item_lineage (parent_report_id, parent_index,
			child_report_id, child_index, tracking_id)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare item_lineage insert: %w", err)
	}
	defer stmt.Close()
	for _, l := range lineages {
		if _, err := stmt.ExecContext(ctx,
			l.ParentReportID.String(), l.ParentIndex,
			l.ChildReportID.String(), l.ChildIndex, l.TrackingID); err != nil {
			return fmt.Errorf("insert item_lineage %s[%d] -> %s[%d]: %w",
				l.ParentReportID, l.ParentIndex, l.ChildReportID, l.ChildIndex, err)
		}
	}
	return nil
}

func (t *historyTx) InsertActionLog(ctx context.Context, l *report.ActionLog) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO action_log (action_id, report_id, item_index, tracking_id, log_level, detail)
		VALUES (?, ?, ?, ?, ?, ?)
	`, l.ActionID, reportIDOrEmpty(l.ReportID), l.ItemIndex, l.TrackingID, l.Level, l.Detail)
	if err != nil {
		return fmt.Errorf("insert action_log: %w", err)
	}
	return nil
}

func (t *historyTx) InsertResultMetadata(ctx context.Context, rows []report.ResultMetadata) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := t.tx.PrepareContext(ctx, `
		INSERT INTO result_metadata (report_id, report_index,
			test_result, patient_state, patient_county)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare result_metadata insert: %w", err)
	}
	defer stmt.Close()
	for _, m := range rows {
		if _, err := stmt.ExecContext(ctx, m.ReportID.String(), m.ReportIndex,
			m.TestResult, m.PatientState, m.PatientCounty); err != nil {
			return fmt.Errorf("insert result_metadata for %s: %w", m.ReportID, err)
		}
	}
	return nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func reportIDOrEmpty(id report.ID) string {
	var zero report.ID
	if id == zero {
		return ""
	}
	return id.String()
}

// Ensure interface compliance.
var _ ports.HistoryStore = (*HistoryStore)(nil)
var _ ports.HistoryTx = (*historyTx)(nil)
