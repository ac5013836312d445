package app_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/artpar/reportgate/app"
)

const senderSchemaYAML = `
name: primedatainput/pdi-covid-19
topic: covid-19
trackingElement: specimen_id
elements:
  - name: specimen_id
    cardinality: ONE
  - name: patient_state
  - name: test_result
  - name: patient_county
`

const targetSchemaYAML = `
name: az/az-covid-19
topic: covid-19
trackingElement: specimen_id
elements:
  - name: specimen_id
    cardinality: ONE
  - name: patient_state
  - name: test_result
  - name: processing_mode_code
    default: P
`

const organizationsYAML = `
senders:
  - name: default
    organization: simple_report
    topic: covid-19
    schemaName: primedatainput/pdi-covid-19
    format: CSV
receivers:
  - name: elr
    organization: az-phd
    topic: covid-19
    schemaName: az/az-covid-19
    format: CSV
    filters:
      - element: patient_state
        pattern: AZ
  - name: elr-hl7
    organization: co-phd
    topic: covid-19
    schemaName: az/az-covid-19
    format: HL7
    filters:
      - element: patient_state
        pattern: CO
  - name: elr-batch
    organization: tx-phd
    topic: covid-19
    schemaName: az/az-covid-19
    format: CSV
    timing:
      numberPerDay: 1
      initialTime: "09:00"
      timeZone: UTC
    filters:
      - element: patient_state
        pattern: TX
`

// writeMetadataDir lays out a complete metadata directory for tests.
func writeMetadataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	write := func(rel, content string) {
		t.Helper()
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("tables/fips-county.csv", "FIPS,County,State\n04013,Maricopa,AZ\n08031,Denver,CO\n")
	write("schemas/pdi-covid-19.yml", senderSchemaYAML)
	write("schemas/az-covid-19.yml", targetSchemaYAML)
	write("organizations.yml", organizationsYAML)
	return dir
}

func newMetadata(t *testing.T) *app.Metadata {
	t.Helper()
	m, err := app.NewMetadata(writeMetadataDir(t), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewMetadata: %v", err)
	}
	return m
}

func TestMetadata_Load(t *testing.T) {
	m := newMetadata(t)

	if m.FindSchema("primedatainput/pdi-covid-19") == nil {
		t.Error("sender schema not loaded")
	}
	if m.FindSchema("az/az-covid-19") == nil {
		t.Error("target schema not loaded")
	}
	if _, ok := m.Table("fips-county"); !ok {
		t.Error("lookup table not loaded")
	}
	if _, ok := m.FindSender("simple_report.default"); !ok {
		t.Error("sender not loaded")
	}
	if _, ok := m.FindReceiver("az-phd.elr"); !ok {
		t.Error("receiver not loaded")
	}
}

func TestMetadata_ReceiversForTopic(t *testing.T) {
	m := newMetadata(t)

	receivers := m.ReceiversForTopic("covid-19")
	if len(receivers) != 3 {
		t.Fatalf("got %d receivers, want 3", len(receivers))
	}
	want := []string{"az-phd.elr", "co-phd.elr-hl7", "tx-phd.elr-batch"}
	for i, r := range receivers {
		if r.FullName() != want[i] {
			t.Errorf("receiver %d = %s, want %s", i, r.FullName(), want[i])
		}
	}

	if got := m.ReceiversForTopic("monkeypox"); len(got) != 0 {
		t.Errorf("unexpected receivers for unknown topic: %d", len(got))
	}
}

func TestMetadata_ReloadFailureKeepsOldSet(t *testing.T) {
	dir := writeMetadataDir(t)
	m, err := app.NewMetadata(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewMetadata: %v", err)
	}

	broken := filepath.Join(dir, "schemas", "broken.yml")
	if err := os.WriteFile(broken, []byte("name: broken\nelements: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := m.Reload(); err == nil {
		t.Fatal("expected reload error for schema without topic")
	}
	if m.FindSchema("az/az-covid-19") == nil {
		t.Error("failed reload must keep the previous set")
	}
}

func TestMetadata_OnReload(t *testing.T) {
	m := newMetadata(t)

	calls := 0
	m.OnReload(func() { calls++ })
	if err := m.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if calls != 1 {
		t.Errorf("reload callback ran %d times, want 1", calls)
	}
}

func TestMetadata_OnReloadError(t *testing.T) {
	dir := writeMetadataDir(t)
	m, err := app.NewMetadata(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewMetadata: %v", err)
	}

	ok, failed := 0, 0
	m.OnReload(func() { ok++ })
	m.OnReloadError(func() { failed++ })

	broken := filepath.Join(dir, "schemas", "broken.yml")
	if err := os.WriteFile(broken, []byte("name: broken\nelements: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := m.Reload(); err == nil {
		t.Fatal("expected reload error for schema without topic")
	}
	if failed != 1 || ok != 0 {
		t.Errorf("callbacks = %d ok, %d failed, want 0 ok, 1 failed", ok, failed)
	}
}

func TestMetadata_ReceiverWithUnknownSchema(t *testing.T) {
	dir := t.TempDir()
	orgs := `
receivers:
  - name: elr
    organization: az-phd
    topic: covid-19
    schemaName: no/such-schema
    format: CSV
`
	if err := os.WriteFile(filepath.Join(dir, "organizations.yml"), []byte(orgs), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := app.NewMetadata(dir, zerolog.Nop()); err == nil {
		t.Error("expected error for receiver with unknown schema")
	}
}
