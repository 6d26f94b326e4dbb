// Package metrics exports operation, store and loader counters on a private
// Prometheus registry fed from the event bus.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hanpama/membergraph/internal/eventbus"
	"github.com/hanpama/membergraph/internal/events"
)

const namespace = "membergraph"

// Operation outcomes.
const (
	outcomeOK       = "ok"
	outcomePartial  = "partial"
	outcomeRejected = "rejected"
)

// Metrics holds every collector of the process.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	DepthRejections   prometheus.Counter

	StoreCallsTotal   *prometheus.CounterVec
	StoreCallDuration *prometheus.HistogramVec

	LoaderDispatchesTotal *prometheus.CounterVec
	LoaderBatchSize       *prometheus.HistogramVec
}

// New registers all collectors with a fresh registry, together with the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status.",
		}, []string{"method", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		OperationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graphql_operations_total",
			Help:      "GraphQL operations by type and outcome (ok, partial, rejected).",
		}, []string{"type", "outcome"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graphql_operation_duration_seconds",
			Help:      "GraphQL operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		DepthRejections: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graphql_depth_rejections_total",
			Help:      "Operations rejected for nesting deeper than the limit.",
		}),
		StoreCallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_calls_total",
			Help:      "Store adapter calls by entity, operation and status.",
		}, []string{"entity", "op", "status"}),
		StoreCallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_call_duration_seconds",
			Help:      "Store adapter call latency.",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"entity", "op"}),
		LoaderDispatchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loader_dispatches_total",
			Help:      "Batched loader dispatches by loader and status.",
		}, []string{"loader", "status"}),
		LoaderBatchSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "loader_batch_size",
			Help:      "Keys sent per loader dispatch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"loader"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Subscribe feeds the collectors from the global bus.
func (m *Metrics) Subscribe() (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(_ context.Context, e events.HTTPFinish) {
			m.HTTPRequestsTotal.WithLabelValues(e.Request.Method, strconv.Itoa(e.Status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(e.Request.Method).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(_ context.Context, e events.GraphQLFinish) {
			m.OperationsTotal.WithLabelValues(operationType(e.OperationType), outcome(e)).Inc()
			m.OperationDuration.WithLabelValues(operationType(e.OperationType)).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(_ context.Context, _ events.DepthRejected) {
			m.DepthRejections.Inc()
		}),
		eventbus.Subscribe(func(_ context.Context, e events.StoreCall) {
			m.StoreCallsTotal.WithLabelValues(e.Entity, e.Op, status(e.Err)).Inc()
			m.StoreCallDuration.WithLabelValues(e.Entity, e.Op).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(_ context.Context, e events.LoaderDispatch) {
			m.LoaderDispatchesTotal.WithLabelValues(e.Loader, status(e.Err)).Inc()
			m.LoaderBatchSize.WithLabelValues(e.Loader).Observe(float64(e.Keys))
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func outcome(e events.GraphQLFinish) string {
	switch {
	case e.Rejected:
		return outcomeRejected
	case len(e.Errors) > 0:
		return outcomePartial
	default:
		return outcomeOK
	}
}

func operationType(t string) string {
	if t == "" {
		return "unknown"
	}
	return t
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
