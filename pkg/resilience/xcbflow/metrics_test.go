package xcbflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/omeyang/xcircuit/pkg/resilience/xcircuit"
)

func newReader(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestNewMetrics_NilProvider(t *testing.T) {
	m, err := NewMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	// nil 收集器上的记录是空操作
	m.RecordTransition(context.Background(), "errorCount", xcircuit.StatusClose, xcircuit.StatusOpen)
	m.RecordCheck(context.Background(), "errorCount", false, time.Millisecond)
}

func TestMetrics_Record(t *testing.T) {
	reader, provider := newReader(t)
	m, err := NewMetrics(provider)
	require.NoError(t, err)

	m.RecordTransition(context.Background(), "errorCount", xcircuit.StatusClose, xcircuit.StatusOpen)
	m.RecordTransition(context.Background(), "errorCount", xcircuit.StatusClose, xcircuit.StatusOpen)
	m.RecordCheck(context.Background(), "errorCount", false, 2*time.Millisecond)

	got := collect(t, reader)
	sum, ok := got[metricNameTransitionsTotal].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	dp := sum.DataPoints[0]
	assert.Equal(t, int64(2), dp.Value)
	to, ok := dp.Attributes.Value("to")
	require.True(t, ok)
	assert.Equal(t, "open", to.AsString())

	hist, ok := got[metricNameCheckDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestFlow_RecordsMetrics(t *testing.T) {
	reader, provider := newReader(t)
	fx := newFixture(t, WithMeterProvider(provider))

	fx.report(t, xcircuit.RetFail, 3)
	require.NoError(t, fx.flow.Check(t.Context()))
	fx.clock.Advance(10 * time.Second)
	require.NoError(t, fx.flow.Check(t.Context()))

	got := collect(t, reader)
	sum, ok := got[metricNameTransitionsTotal].Data.(metricdata.Sum[int64])
	require.True(t, ok)

	byTo := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		to, _ := dp.Attributes.Value("to")
		byTo[to.AsString()] += dp.Value
	}
	assert.Equal(t, map[string]int64{"open": 1, "half_open": 1}, byTo)

	hist, ok := got[metricNameCheckDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var checks uint64
	for _, dp := range hist.DataPoints {
		checks += dp.Count
	}
	assert.Equal(t, uint64(2), checks)
}
