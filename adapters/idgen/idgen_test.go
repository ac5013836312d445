package idgen_test

import (
	"bytes"
	"testing"

	"github.com/google/uuid"

	"github.com/artpar/reportgate/adapters/idgen"
	"github.com/artpar/reportgate/domain/report"
)

func TestUUID_NewReportID(t *testing.T) {
	g := idgen.UUID{}

	id := g.NewReportID()
	if id == (report.ID{}) {
		t.Error("expected non-zero id")
	}
	if uuid.UUID(id).Version() != 4 {
		t.Errorf("id version = %d, want 4", uuid.UUID(id).Version())
	}
}

func TestUUID_NewReportID_Unique(t *testing.T) {
	g := idgen.UUID{}

	seen := make(map[report.ID]bool)
	for i := 0; i < 1000; i++ {
		id := g.NewReportID()
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}

func TestSequential_NewReportID(t *testing.T) {
	g := idgen.NewSequential()

	first := g.NewReportID()
	second := g.NewReportID()
	if first == second {
		t.Fatal("sequential ids must differ")
	}
	// Ids sort in generation order.
	if bytes.Compare(first[:], second[:]) >= 0 {
		t.Errorf("ids out of order: %s then %s", first, second)
	}
}

func TestSequential_Reset(t *testing.T) {
	g := idgen.NewSequential()

	first := g.NewReportID()
	g.NewReportID()
	g.Reset()

	if got := g.NewReportID(); got != first {
		t.Errorf("after reset got %s, want %s", got, first)
	}
}

func TestSequential_ConcurrentAccess(t *testing.T) {
	g := idgen.NewSequential()

	done := make(chan bool)
	ids := make(chan report.ID, 1000)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				ids <- g.NewReportID()
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	close(ids)

	seen := make(map[report.ID]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate id: %s", id)
		}
		seen[id] = true
	}
	if len(seen) != 1000 {
		t.Errorf("expected 1000 unique ids, got %d", len(seen))
	}
}
