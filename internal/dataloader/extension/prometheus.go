package extension

import (
	"context"
	"slices"

	"github.com/hanpama/pagegraph/internal/dataloader"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	Success  = "success"
	NotFound = "notfound"
	Error    = "error"
)

// LoaderMetrics is the collection of prometheus metrics shared by all loaders
type LoaderMetrics struct {
	AdditionalLabels   []string
	LoadTimeHistogram  *prometheus.HistogramVec
	LoadBatchHistogram *prometheus.HistogramVec
	KeysCounter        *prometheus.CounterVec
}

// NewLoaderMetrics creates unregistered loader metrics.
// additionalLabels is a list of additional labels used for metric partitioning
func NewLoaderMetrics(additionalLabels ...string) *LoaderMetrics {
	c := &LoaderMetrics{}
	c.AdditionalLabels = slices.Clone(additionalLabels)
	// each vec owns its label names
	labelNames := func(names ...string) []string { return slices.Concat(c.AdditionalLabels, names) }
	c.LoadTimeHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pagegraph",
		Subsystem: "loader",
		Name:      "batch_time_seconds",
		Help:      "The time a batch function takes to resolve a window",
	}, labelNames("loader", "status"))
	c.LoadBatchHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pagegraph",
		Subsystem: "loader",
		Name:      "batch_size",
		Help:      "The number of distinct keys in each window",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
	}, labelNames("loader"))
	c.KeysCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pagegraph",
		Subsystem: "loader",
		Name:      "keys_total",
		Help:      "The number of keys resolved, by outcome",
	}, labelNames("loader", "status"))
	return c
}

// MustRegister registers every collector with reg.
func (c *LoaderMetrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(c.LoadTimeHistogram, c.LoadBatchHistogram, c.KeysCounter)
}

// PrometheusMetrics is a hook for loader instrumentation
type PrometheusMetrics struct {
	metrics     *LoaderMetrics
	labelValues []string
}

// NewPrometheusMetrics creates a hook recording into metrics.
// labelValues fills the metrics' additional labels
func NewPrometheusMetrics(metrics *LoaderMetrics, labelValues ...string) *PrometheusMetrics {
	return &PrometheusMetrics{metrics: metrics, labelValues: labelValues}
}

func (e *PrometheusMetrics) labels(values ...string) []string {
	return append(append([]string(nil), e.labelValues...), values...)
}

func (e *PrometheusMetrics) BeforeBatch(_ context.Context, info dataloader.BatchInfo) {
	e.metrics.LoadBatchHistogram.WithLabelValues(e.labels(info.Loader)...).Observe(float64(info.Keys))
}

func (e *PrometheusMetrics) AfterBatch(_ context.Context, info dataloader.BatchInfo) {
	status := Success
	if info.Err != nil {
		status = Error
	}
	e.metrics.LoadTimeHistogram.WithLabelValues(e.labels(info.Loader, status)...).Observe(info.Duration.Seconds())

	if info.Err != nil {
		e.metrics.KeysCounter.WithLabelValues(e.labels(info.Loader, Error)...).Add(float64(info.Keys))
		return
	}
	e.metrics.KeysCounter.WithLabelValues(e.labels(info.Loader, Success)...).Add(float64(info.Keys - info.NotFound))
	e.metrics.KeysCounter.WithLabelValues(e.labels(info.Loader, NotFound)...).Add(float64(info.NotFound))
}
