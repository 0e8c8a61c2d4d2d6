package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "algofi_rpc"

type rpcMetrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	durations   *prometheus.HistogramVec
	submissions *prometheus.CounterVec
}

func newRpcMetrics(pendingGroups func() int) *rpcMetrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "requests_total",
		Help:      "Total HTTP requests processed.",
	}, []string{"route", "method", "status"})
	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "submissions_total",
		Help:      "Transaction groups forwarded to the node by result.",
	}, []string{"result"})
	pending := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "prepared_groups",
		Help:      "Prepared groups waiting for a signed submission.",
	}, func() float64 { return float64(pendingGroups()) })

	registry.MustRegister(
		requests,
		durations,
		submissions,
		pending,
		collectors.NewGoCollector(),
	)

	return &rpcMetrics{
		registry:    registry,
		requests:    requests,
		durations:   durations,
		submissions: submissions,
	}
}

func (m *rpcMetrics) observe(route, method string, status int, duration time.Duration) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.durations.WithLabelValues(route, method).Observe(duration.Seconds())
}

func (m *rpcMetrics) submitted(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.submissions.WithLabelValues(result).Inc()
}

func (m *rpcMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
