package sqlite_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/reportgate/adapters/sqlite"
	"github.com/artpar/reportgate/domain/report"
	"github.com/artpar/reportgate/ports"
)

func setupTestDB(t *testing.T) (*sqlite.DB, func()) {
	t.Helper()

	// Create temp file for test database
	f, err := os.CreateTemp("", "reportgate-test-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	path := f.Name()
	f.Close()

	db, err := sqlite.Open(path)
	if err != nil {
		os.Remove(path)
		t.Fatalf("open database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		os.Remove(path)
		t.Fatalf("migrate: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.Remove(path)
	}

	return db, cleanup
}

func countRows(t *testing.T, db *sqlite.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestMigrate_Idempotent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if err := db.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestHistoryStore_Transact(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewHistoryStore(db)
	ctx := context.Background()

	parentID := uuid.New()
	childID := uuid.New()
	createdAt := time.Date(2021, 3, 10, 8, 0, 0, 0, time.UTC)

	var actionID int64
	err := store.Transact(ctx, func(tx ports.HistoryTx) error {
		a := &report.Action{
			Kind:          report.ActionReceive,
			CreatedAt:     createdAt,
			SendingOrg:    "simple_report",
			SendingClient: "default",
			Params:        "option=SkipSend",
			Result:        "2 items routed to az-phd.elr",
		}
		id, err := tx.InsertAction(ctx, a)
		if err != nil {
			return err
		}
		actionID = id

		if err := tx.InsertReportFile(ctx, &report.ReportFile{
			ReportID:      parentID,
			ActionID:      id,
			SchemaName:    "primedatainput/pdi-covid-19",
			SchemaTopic:   "covid-19",
			SendingOrg:    "simple_report",
			SendingClient: "default",
			BodyURL:       "file:///tmp/x.csv",
			BodyFormat:    report.FormatCSV,
			BlobDigest:    "abc",
			ItemCount:     2,
			NextAction:    report.ActionTranslate,
			CreatedAt:     createdAt,
		}); err != nil {
			return err
		}
		if err := tx.InsertReportFile(ctx, &report.ReportFile{
			ReportID:     childID,
			ActionID:     id,
			SchemaName:   "az/az-covid-19",
			SchemaTopic:  "covid-19",
			ReceivingOrg: "az-phd",
			ReceivingSvc: "elr",
			BodyFormat:   report.FormatCSV,
			ItemCount:    2,
			NextAction:   report.ActionBatch,
			NextActionAt: createdAt.Add(time.Hour),
			CreatedAt:    createdAt,
		}); err != nil {
			return err
		}

		if err := tx.InsertReportLineage(ctx, &report.ReportLineage{
			ActionID:       id,
			ParentReportID: parentID,
			ChildReportID:  childID,
		}); err != nil {
			return err
		}
		if err := tx.BatchInsertItemLineages(ctx, []report.ItemLineage{
			{ParentReportID: parentID, ParentIndex: 0, ChildReportID: childID, ChildIndex: 0, TrackingID: "s-1"},
			{ParentReportID: parentID, ParentIndex: 1, ChildReportID: childID, ChildIndex: 1, TrackingID: "s-2"},
		}); err != nil {
			return err
		}
		if err := tx.InsertActionLog(ctx, &report.ActionLog{
			ActionID: id,
			ReportID: parentID,
			Level:    report.LogWarning,
			Detail:   `unexpected column "frobnicator" ignored`,
		}); err != nil {
			return err
		}
		return tx.InsertResultMetadata(ctx, []report.ResultMetadata{
			{ReportID: parentID, ReportIndex: 1, TestResult: "260373001", PatientState: "AZ", PatientCounty: "Maricopa"},
		})
	})
	if err != nil {
		t.Fatalf("Transact: %v", err)
	}
	if actionID == 0 {
		t.Fatal("action id not generated")
	}

	if got := countRows(t, db, "report_file"); got != 2 {
		t.Errorf("report_file rows = %d, want 2", got)
	}
	if got := countRows(t, db, "report_lineage"); got != 1 {
		t.Errorf("report_lineage rows = %d, want 1", got)
	}
	if got := countRows(t, db, "item_lineage"); got != 2 {
		t.Errorf("item_lineage rows = %d, want 2", got)
	}
	if got := countRows(t, db, "action_log"); got != 1 {
		t.Errorf("action_log rows = %d, want 1", got)
	}
	if got := countRows(t, db, "result_metadata"); got != 1 {
		t.Errorf("result_metadata rows = %d, want 1", got)
	}

	var nextAction string
	var itemCount int
	err = db.QueryRow(
		"SELECT next_action, item_count FROM report_file WHERE report_id = ?",
		childID.String(),
	).Scan(&nextAction, &itemCount)
	if err != nil {
		t.Fatalf("query child report: %v", err)
	}
	if nextAction != "batch" || itemCount != 2 {
		t.Errorf("child row = %s/%d", nextAction, itemCount)
	}
}

func TestHistoryStore_RollbackOnError(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewHistoryStore(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.Transact(ctx, func(tx ports.HistoryTx) error {
		if _, err := tx.InsertAction(ctx, &report.Action{
			Kind: report.ActionReceive, CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transact error = %v, want the fn error", err)
	}

	if got := countRows(t, db, "action"); got != 0 {
		t.Errorf("action rows after rollback = %d, want 0", got)
	}
}

func TestHistoryStore_DuplicateItemLineageRejected(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewHistoryStore(db)
	ctx := context.Background()
	parentID, childID := uuid.New(), uuid.New()

	l := report.ItemLineage{ParentReportID: parentID, ChildReportID: childID}
	err := store.Transact(ctx, func(tx ports.HistoryTx) error {
		return tx.BatchInsertItemLineages(ctx, []report.ItemLineage{l, l})
	})
	if err == nil {
		t.Error("expected unique constraint violation for duplicate lineage")
	}
	if got := countRows(t, db, "item_lineage"); got != 0 {
		t.Errorf("item_lineage rows = %d, want 0", got)
	}
}
