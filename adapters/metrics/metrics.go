// Package metrics provides Prometheus metrics collection for the report
// pipeline.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/artpar/reportgate/domain/report"
	"github.com/artpar/reportgate/ports"
)

// Collector holds all Prometheus metrics for the pipeline.
type Collector struct {
	// Submission metrics
	SubmissionsTotal  *prometheus.CounterVec
	SubmissionItems   *prometheus.CounterVec
	SubmissionSeconds *prometheus.HistogramVec

	// Routing metrics
	ReportsRouted   *prometheus.CounterVec
	ItemsFiltered   *prometheus.CounterVec
	EventsQueued    *prometheus.CounterVec
	QueueSendErrors prometheus.Counter

	// Metadata metrics
	MetadataReloads      prometheus.Counter
	MetadataReloadErrors prometheus.Counter
	MetadataLastReload   prometheus.Gauge
}

// New creates a new metrics collector registered on the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		SubmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "reportgate",
				Name:      "submissions_total",
				Help:      "Total number of report submissions processed",
			},
			[]string{"sender", "outcome"},
		),
		SubmissionItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "reportgate",
				Name:      "submission_items_total",
				Help:      "Total number of items accepted from submissions",
			},
			[]string{"sender"},
		),
		SubmissionSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "reportgate",
				Name:      "submission_duration_seconds",
				Help:      "Submission processing duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"sender"},
		),
		ReportsRouted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "reportgate",
				Name:      "reports_routed_total",
				Help:      "Total number of receiver-bound reports created",
			},
			[]string{"receiver"},
		),
		ItemsFiltered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "reportgate",
				Name:      "items_filtered_total",
				Help:      "Total number of items removed by receiver filters",
			},
			[]string{"receiver"},
		),
		EventsQueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "reportgate",
				Name:      "events_queued_total",
				Help:      "Total number of delivery events queued",
			},
			[]string{"action"},
		),
		QueueSendErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "reportgate",
				Name:      "queue_send_errors_total",
				Help:      "Total number of delivery queue send failures",
			},
		),
		MetadataReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "reportgate",
				Name:      "metadata_reloads_total",
				Help:      "Total number of successful metadata reloads",
			},
		),
		MetadataReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "reportgate",
				Name:      "metadata_reload_errors_total",
				Help:      "Total number of metadata reload errors",
			},
		),
		MetadataLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "reportgate",
				Name:      "metadata_last_reload_timestamp",
				Help:      "Unix timestamp of last successful metadata reload",
			},
		),
	}
}

// ObserveSubmission records one processed submission with its outcome.
func (c *Collector) ObserveSubmission(sender, outcome string, items int, seconds float64) {
	c.SubmissionsTotal.WithLabelValues(sender, outcome).Inc()
	if items > 0 {
		c.SubmissionItems.WithLabelValues(sender).Add(float64(items))
	}
	c.SubmissionSeconds.WithLabelValues(sender).Observe(seconds)
}

// ObserveRouted records one receiver-bound report created by routing.
func (c *Collector) ObserveRouted(receiver string) {
	c.ReportsRouted.WithLabelValues(receiver).Inc()
}

// ObserveFiltered records items removed by a receiver's quality filters.
func (c *Collector) ObserveFiltered(receiver string, items int) {
	c.ItemsFiltered.WithLabelValues(receiver).Add(float64(items))
}

var _ ports.SubmissionObserver = (*Collector)(nil)

// InstrumentedQueue wraps a delivery queue, counting every event handed to
// it by action kind.
type InstrumentedQueue struct {
	next      ports.DeliveryQueue
	collector *Collector
}

// NewInstrumentedQueue wraps next with event counters.
func NewInstrumentedQueue(next ports.DeliveryQueue, collector *Collector) *InstrumentedQueue {
	return &InstrumentedQueue{next: next, collector: collector}
}

// Send forwards the event and records the outcome.
func (q *InstrumentedQueue) Send(ctx context.Context, e report.Event) error {
	if err := q.next.Send(ctx, e); err != nil {
		q.collector.QueueSendErrors.Inc()
		return err
	}
	q.collector.EventsQueued.WithLabelValues(string(e.Action)).Inc()
	return nil
}

// Ensure interface compliance.
var _ ports.DeliveryQueue = (*InstrumentedQueue)(nil)
