package extension

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/hanpama/pagegraph/internal/dataloader"
	"github.com/hanpama/pagegraph/internal/eventbus"
	"github.com/hanpama/pagegraph/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fetchOdd(_ context.Context, keys []int) (map[int]string, error) {
	out := map[int]string{}
	for _, k := range keys {
		if k%2 == 1 {
			out[k] = "odd"
		}
	}
	return out, nil
}

func TestPrometheusMetrics(t *testing.T) {
	metrics := NewLoaderMetrics("service")
	reg := prometheus.NewPedanticRegistry()
	metrics.MustRegister(reg)

	l := dataloader.New(fetchOdd, dataloader.Config[int, string]{
		Name:  "numbers",
		Hooks: []dataloader.Hook{NewPrometheusMetrics(metrics, "test")},
	})
	_, _ = l.LoadMany(context.Background(), []int{1, 2, 3})

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.KeysCounter.WithLabelValues("test", "numbers", Success)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.KeysCounter.WithLabelValues("test", "numbers", NotFound)))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.LoadBatchHistogram))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.LoadTimeHistogram))
}

func TestNewLoaderMetrics_KeepsCallerLabels(t *testing.T) {
	backing := []string{"service", "region", "zone", "tier"}
	metrics := NewLoaderMetrics(backing[:2]...)

	assert.Equal(t, []string{"service", "region", "zone", "tier"}, backing)
	assert.Equal(t, []string{"service", "region"}, metrics.AdditionalLabels)

	reg := prometheus.NewPedanticRegistry()
	metrics.MustRegister(reg)
	metrics.LoadBatchHistogram.WithLabelValues("pages", "eu", "numbers").Observe(1)
	metrics.KeysCounter.WithLabelValues("pages", "eu", "numbers", Success).Inc()
	metrics.LoadTimeHistogram.WithLabelValues("pages", "eu", "numbers", Error).Observe(0.1)

	families, err := reg.Gather()
	require.NoError(t, err)
	labels := map[string][]string{}
	for _, f := range families {
		for _, l := range f.GetMetric()[0].GetLabel() {
			labels[f.GetName()] = append(labels[f.GetName()], l.GetName())
		}
	}
	assert.Equal(t, map[string][]string{
		"pagegraph_loader_batch_size":         {"loader", "region", "service"},
		"pagegraph_loader_keys_total":         {"loader", "region", "service", "status"},
		"pagegraph_loader_batch_time_seconds": {"loader", "region", "service", "status"},
	}, labels)
}

func TestPrometheusMetrics_BatchError(t *testing.T) {
	metrics := NewLoaderMetrics()
	l := dataloader.New(func(context.Context, []int) (map[int]string, error) {
		return nil, errors.New("down")
	}, dataloader.Config[int, string]{Name: "numbers", Hooks: []dataloader.Hook{NewPrometheusMetrics(metrics)}})

	_, _ = l.LoadMany(context.Background(), []int{1, 2})

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.KeysCounter.WithLabelValues("numbers", Error)))
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	l := dataloader.New(fetchOdd, dataloader.Config[int, string]{
		Name:  "numbers",
		Hooks: []dataloader.Hook{NewLogger(log)},
	})
	_, _ = l.LoadMany(context.Background(), []int{1, 2})

	out := buf.String()
	assert.Contains(t, out, `"message":"loading start"`)
	assert.Contains(t, out, `"message":"loading finish"`)
	assert.Contains(t, out, `"loader":"numbers"`)
	assert.Contains(t, out, `"notfound":1`)
}

func TestEvents(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	var starts []events.LoaderBatchStart
	var finishes []events.LoaderBatchFinish
	eventbus.Subscribe(func(_ context.Context, e events.LoaderBatchStart) { starts = append(starts, e) })
	eventbus.Subscribe(func(_ context.Context, e events.LoaderBatchFinish) { finishes = append(finishes, e) })

	l := dataloader.New(fetchOdd, dataloader.Config[int, string]{Name: "numbers", Hooks: []dataloader.Hook{Events{}}})
	_, _ = l.LoadMany(context.Background(), []int{1, 2, 3})

	require.Len(t, starts, 1)
	require.Len(t, finishes, 1)
	assert.Equal(t, starts[0].BatchID, finishes[0].BatchID)
	assert.Equal(t, 3, finishes[0].Keys)
	assert.Equal(t, 1, finishes[0].NotFound)
	assert.NoError(t, finishes[0].Err)
}
