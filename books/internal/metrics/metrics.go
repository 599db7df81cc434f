// Package metrics exposes Prometheus counters for the book service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "books"

const (
	OutcomeAccepted  = "accepted"
	OutcomeDuplicate = "duplicate"
	OutcomeInvalid   = "invalid"
	OutcomeNotFound  = "not_found"
	OutcomeError     = "error"
)

type Metrics struct {
	gatherer prometheus.Gatherer

	// RatingsTotal counts rating submissions by outcome.
	RatingsTotal *prometheus.CounterVec
	// BooksTotal counts catalogue mutations by operation.
	BooksTotal *prometheus.CounterVec
	// ImageReleaseFailures counts images left behind after update or delete.
	ImageReleaseFailures prometheus.Counter
	// EventPublishFailures counts events that could not be enqueued.
	EventPublishFailures prometheus.Counter
}

// New registers the collectors on reg. A nil reg gets a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		RatingsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratings_total",
			Help:      "Total number of rating submissions",
		}, []string{"outcome"}),
		BooksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Total number of book create, update and delete operations",
		}, []string{"op"}),
		ImageReleaseFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_release_failures_total",
			Help:      "Total number of images that could not be released",
		}),
		EventPublishFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Total number of domain events that could not be published",
		}),
	}
}

// NewDefault is New with the Go runtime and process collectors added.
func NewDefault() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
