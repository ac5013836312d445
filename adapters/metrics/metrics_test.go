package metrics_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/artpar/reportgate/adapters/memory"
	"github.com/artpar/reportgate/adapters/metrics"
	"github.com/artpar/reportgate/domain/report"
)

func TestNewWithRegistry(t *testing.T) {
	// Use a new registry to avoid conflicts with other tests
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	if m == nil {
		t.Fatal("NewWithRegistry returned nil")
	}

	if m.SubmissionsTotal == nil {
		t.Error("SubmissionsTotal is nil")
	}
	if m.SubmissionItems == nil {
		t.Error("SubmissionItems is nil")
	}
	if m.SubmissionSeconds == nil {
		t.Error("SubmissionSeconds is nil")
	}
	if m.ReportsRouted == nil {
		t.Error("ReportsRouted is nil")
	}
	if m.ItemsFiltered == nil {
		t.Error("ItemsFiltered is nil")
	}
	if m.EventsQueued == nil {
		t.Error("EventsQueued is nil")
	}
	if m.QueueSendErrors == nil {
		t.Error("QueueSendErrors is nil")
	}
	if m.MetadataReloads == nil {
		t.Error("MetadataReloads is nil")
	}
	if m.MetadataReloadErrors == nil {
		t.Error("MetadataReloadErrors is nil")
	}
	if m.MetadataLastReload == nil {
		t.Error("MetadataLastReload is nil")
	}
}

func TestSubmissionCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.SubmissionsTotal.WithLabelValues("simple_report.default", "accepted").Inc()
	m.SubmissionsTotal.WithLabelValues("simple_report.default", "rejected").Add(2)
	m.SubmissionItems.WithLabelValues("simple_report.default").Add(25)

	if got := testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues("simple_report.default", "rejected")); got != 2 {
		t.Errorf("rejected submissions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SubmissionItems.WithLabelValues("simple_report.default")); got != 25 {
		t.Errorf("submission items = %v, want 25", got)
	}
}

func TestCollectorObserverMethods(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.ObserveSubmission("simple_report.default", "routed", 3, 0.02)
	m.ObserveSubmission("simple_report.default", "rejected", 0, 0.01)
	m.ObserveRouted("az-phd.elr")
	m.ObserveRouted("az-phd.elr")
	m.ObserveFiltered("co-phd.elr-hl7", 2)

	if got := testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues("simple_report.default", "routed")); got != 1 {
		t.Errorf("routed submissions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SubmissionItems.WithLabelValues("simple_report.default")); got != 3 {
		t.Errorf("submission items = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.ReportsRouted.WithLabelValues("az-phd.elr")); got != 2 {
		t.Errorf("reports routed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ItemsFiltered.WithLabelValues("co-phd.elr-hl7")); got != 2 {
		t.Errorf("items filtered = %v, want 2", got)
	}
}

func TestInstrumentedQueue(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	inner := memory.NewQueue()
	q := metrics.NewInstrumentedQueue(inner, m)

	e := report.Event{Action: report.EventSend, ReceiverName: "az-phd.elr"}
	if err := q.Send(context.Background(), e); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := q.Send(context.Background(), report.Event{Action: report.EventBatch}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got := testutil.ToFloat64(m.EventsQueued.WithLabelValues("send")); got != 1 {
		t.Errorf("send events = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.EventsQueued.WithLabelValues("batch")); got != 1 {
		t.Errorf("batch events = %v, want 1", got)
	}
	if len(inner.Events()) != 2 {
		t.Errorf("inner queue got %d events", len(inner.Events()))
	}
}

type failingQueue struct{}

func (failingQueue) Send(ctx context.Context, e report.Event) error {
	return errors.New("queue down")
}

func TestInstrumentedQueue_SendError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	q := metrics.NewInstrumentedQueue(failingQueue{}, m)

	if err := q.Send(context.Background(), report.Event{Action: report.EventSend}); err == nil {
		t.Fatal("expected error from inner queue")
	}
	if got := testutil.ToFloat64(m.QueueSendErrors); got != 1 {
		t.Errorf("queue send errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.EventsQueued.WithLabelValues("send")); got != 0 {
		t.Errorf("failed sends must not count as queued, got %v", got)
	}
}
