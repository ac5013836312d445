package lookup_test

import (
	"strings"
	"testing"

	"github.com/artpar/reportgate/domain/lookup"
)

func TestLoad(t *testing.T) {
	csv := "fips,county,state\n04013,Maricopa,AZ\n04005,Coconino,AZ\n"

	table, err := lookup.Load("fips-county", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if table.Name() != "fips-county" {
		t.Errorf("Name = %s, want fips-county", table.Name())
	}
	if table.RowCount() != 2 {
		t.Errorf("RowCount = %d, want 2", table.RowCount())
	}
	if !table.HasColumn("county") {
		t.Error("HasColumn(county) = false")
	}
	if table.HasColumn("zip") {
		t.Error("HasColumn(zip) = true")
	}
}

func TestLoad_Empty(t *testing.T) {
	if _, err := lookup.Load("empty", strings.NewReader("")); err == nil {
		t.Error("expected error for empty table")
	}
}

func TestFilter_FindSingleResult(t *testing.T) {
	table := lookup.New("fips-county", []string{"fips", "county", "state"}, [][]string{
		{"04013", "Maricopa", "AZ"},
		{"04005", "Coconino", "AZ"},
		{"08031", "Denver", "CO"},
	})

	got, ok := table.Filter().
		EqualsIgnoreCase("state", "az").
		EqualsIgnoreCase("county", "MARICOPA").
		FindSingleResult("fips")
	if !ok || got != "04013" {
		t.Errorf("FindSingleResult = %q, %v, want 04013, true", got, ok)
	}
}

func TestFilter_FindSingleResult_NoMatch(t *testing.T) {
	table := lookup.New("t", []string{"a", "b"}, [][]string{{"1", "x"}})

	if _, ok := table.Filter().EqualsIgnoreCase("a", "2").FindSingleResult("b"); ok {
		t.Error("expected ok=false for no match")
	}
}

func TestFilter_FindSingleResult_Ambiguous(t *testing.T) {
	table := lookup.New("t", []string{"a", "b"}, [][]string{
		{"1", "x"},
		{"1", "y"},
	})

	if _, ok := table.Filter().EqualsIgnoreCase("a", "1").FindSingleResult("b"); ok {
		t.Error("expected ok=false for ambiguous match")
	}
}

func TestFilter_UnknownColumn(t *testing.T) {
	table := lookup.New("t", []string{"a"}, [][]string{{"1"}})

	if _, ok := table.Filter().EqualsIgnoreCase("missing", "1").FindSingleResult("a"); ok {
		t.Error("expected ok=false for unknown filter column")
	}
}
