// Registers:
//
//	#entsoeflow_fetch_total
//	#entsoeflow_fetch_duration_seconds
//	#entsoeflow_cache_lookups_total
//	#entsoeflow_http_requests_total
//	#entsoeflow_http_request_duration_seconds
//	#entsoeflow_batches_total
//	#entsoeflow_publish_total
//	#entsoeflow_component_metric
//	#entsoeflow_events_total
//	#go_* and process_* system metrics
//
// The API server exposes them on /metrics.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once            sync.Once
	fetchTotal      *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	batchesTotal    *prometheus.CounterVec
	publishTotal    *prometheus.CounterVec
	componentMetric *prometheus.GaugeVec
	eventsTotal     *prometheus.CounterVec
)

// Init registers the collectors with the default registry. It is safe to
// call more than once.
func Init() {
	once.Do(func() {
		fetchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entsoeflow_fetch_total",
				Help: "ENTSO-E requests by dataset and outcome code",
			},
			[]string{"dataset", "outcome"},
		)
		fetchDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "entsoeflow_fetch_duration_seconds",
				Help:    "ENTSO-E request latency including retries",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"dataset"},
		)
		cacheLookups = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entsoeflow_cache_lookups_total",
				Help: "Response cache lookups by result",
			},
			[]string{"result"},
		)
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entsoeflow_http_requests_total",
				Help: "API requests by route and status",
			},
			[]string{"method", "route", "status"},
		)
		httpDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "entsoeflow_http_request_duration_seconds",
				Help:    "API request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		)
		batchesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entsoeflow_batches_total",
				Help: "Normalized row batches by dataset",
			},
			[]string{"dataset"},
		)
		publishTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entsoeflow_publish_total",
				Help: "Messages handed to sinks by sink and outcome",
			},
			[]string{"sink", "outcome"},
		)
		componentMetric = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "entsoeflow_component_metric",
				Help: "Last value of metrics emitted through EmitMetric",
			},
			[]string{"component", "metric"},
		)
		eventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entsoeflow_events_total",
				Help: "Counter events by component, dataset and bidding zone",
			},
			[]string{"component", "event", "dataset", "zone"},
		)

		_ = prometheus.Register(fetchTotal)
		_ = prometheus.Register(fetchDuration)
		_ = prometheus.Register(cacheLookups)
		_ = prometheus.Register(httpRequests)
		_ = prometheus.Register(httpDuration)
		_ = prometheus.Register(batchesTotal)
		_ = prometheus.Register(publishTotal)
		_ = prometheus.Register(componentMetric)
		_ = prometheus.Register(eventsTotal)
		_ = prometheus.Register(collectors.NewGoCollector())
		_ = prometheus.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveFetch records one upstream call. outcome is "ok" or an error code.
func ObserveFetch(dataset, outcome string, duration time.Duration) {
	if fetchTotal == nil {
		return
	}
	fetchTotal.WithLabelValues(dataset, outcome).Inc()
	fetchDuration.WithLabelValues(dataset).Observe(duration.Seconds())
}

func ObserveCache(hit bool) {
	if cacheLookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(result).Inc()
}

func ObserveHTTP(method, route, status string, duration time.Duration) {
	if httpRequests == nil {
		return
	}
	httpRequests.WithLabelValues(method, route, status).Inc()
	httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func IncrementBatch(dataset string) {
	if batchesTotal != nil {
		batchesTotal.WithLabelValues(dataset).Inc()
	}
}

func ObservePublish(sink string, err error) {
	if publishTotal == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	publishTotal.WithLabelValues(sink, outcome).Inc()
}

// observeEvent keeps the last value of every emitted metric and adds
// counter events to the dataset/zone breakdown.
func observeEvent(m Metric, v float64) {
	if componentMetric == nil {
		return
	}
	componentMetric.WithLabelValues(m.Component, m.Name).Set(v)
	if m.Type == "counter" && (m.Dataset != "" || m.Zone != "") {
		eventsTotal.WithLabelValues(m.Component, m.Name, m.Dataset, m.Zone).Add(v)
	}
}
