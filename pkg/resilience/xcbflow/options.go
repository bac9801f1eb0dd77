package xcbflow

import (
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/omeyang/xcircuit/pkg/observability/xlog"
)

// DefaultInterval 默认评估间隔。
const DefaultInterval = time.Minute

type options struct {
	logger        xlog.Logger
	meterProvider metric.MeterProvider
	clock         func() time.Time
	interval      time.Duration
}

func defaultOptions() *options {
	return &options{
		logger:   xlog.Nop(),
		clock:    time.Now,
		interval: DefaultInterval,
	}
}

// Option 配置选项函数
type Option func(*options)

// WithLogger 设置日志记录器，nil 时忽略。
func WithLogger(logger xlog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMeterProvider 设置 OpenTelemetry MeterProvider，未设置时不收集指标。
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// WithClock 设置时钟，用于测试。
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithInterval 设置周期评估间隔。
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		o.interval = d
	}
}
