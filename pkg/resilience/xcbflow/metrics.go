package xcbflow

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/omeyang/xcircuit/pkg/resilience/xcircuit"
)

// 指标名称常量
const (
	// metricNameTransitionsTotal 状态迁移计数器
	metricNameTransitionsTotal = "xcircuit.transitions.total"
	// metricNameCheckDuration 单个熔断器一次评估的耗时直方图
	metricNameCheckDuration = "xcircuit.check.duration"
)

// Metrics 熔断指标收集器
type Metrics struct {
	transitionsTotal metric.Int64Counter
	checkDuration    metric.Float64Histogram
}

// NewMetrics 创建指标收集器
// 如果 meterProvider 为 nil，返回 nil（不收集指标）
func NewMetrics(meterProvider metric.MeterProvider) (*Metrics, error) {
	if meterProvider == nil {
		return nil, nil
	}

	meter := meterProvider.Meter("xcircuit",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	transitionsTotal, err := meter.Int64Counter(
		metricNameTransitionsTotal,
		metric.WithDescription("熔断状态迁移次数"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	checkDuration, err := meter.Float64Histogram(
		metricNameCheckDuration,
		metric.WithDescription("熔断评估耗时"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0,
		),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		transitionsTotal: transitionsTotal,
		checkDuration:    checkDuration,
	}, nil
}

// RecordTransition 记录一次状态迁移
func (m *Metrics) RecordTransition(ctx context.Context, breaker string, from, to xcircuit.Status) {
	if m == nil {
		return
	}

	m.transitionsTotal.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(
		attribute.String("breaker", breaker),
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
}

// RecordCheck 记录一次评估的耗时与结果
func (m *Metrics) RecordCheck(ctx context.Context, breaker string, failed bool, duration time.Duration) {
	if m == nil {
		return
	}

	m.checkDuration.Record(context.WithoutCancel(ctx), duration.Seconds(), metric.WithAttributes(
		attribute.String("breaker", breaker),
		attribute.Bool("failed", failed),
	))
}
