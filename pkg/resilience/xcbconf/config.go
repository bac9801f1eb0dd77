package xcbconf

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/omeyang/xcircuit/pkg/observability/xlog"
	"github.com/omeyang/xcircuit/pkg/resilience/xbreaker"
	"github.com/omeyang/xcircuit/pkg/resilience/xcircuit"
)

// 默认值。
const (
	DefaultCheckPeriod               = time.Minute
	DefaultSleepWindow               = 30 * time.Second
	DefaultRequestCountAfterHalfOpen = 10
	DefaultSuccessCountAfterHalfOpen = 8
	DefaultContinuousErrorThreshold  = 10
	DefaultErrorRateThreshold        = 0.5
	DefaultErrorRateMinRequests      = 10
	DefaultMetricWindow              = time.Minute
)

// DefaultChain 默认启用的策略。
var DefaultChain = []string{string(xbreaker.ErrorCountID), string(xbreaker.ErrorRateID)}

// Config 熔断的进程级配置。
type Config struct {
	// Enable 是否启用熔断，未配置时启用。
	Enable *bool `koanf:"enable"`

	// CheckPeriod 周期评估间隔。
	CheckPeriod time.Duration `koanf:"check_period"`

	// Chain 启用的策略插件标识。
	Chain []string `koanf:"chain"`

	// SleepWindow OPEN 状态持续多久后进入 HALF_OPEN。
	SleepWindow time.Duration `koanf:"sleep_window"`

	// RequestCountAfterHalfOpen 半开期间允许的探测请求数。
	RequestCountAfterHalfOpen int `koanf:"request_count_after_half_open"`

	// SuccessCountAfterHalfOpen 半开期间恢复所需的成功数。
	SuccessCountAfterHalfOpen int `koanf:"success_count_after_half_open"`

	// WhenToDetect 何时使用主动探测结果。
	WhenToDetect xcircuit.WhenToDetect `koanf:"when_to_detect"`

	ErrorCount ErrorCountConfig `koanf:"error_count"`
	ErrorRate  ErrorRateConfig  `koanf:"error_rate"`

	// RegexCacheSize 规则正则缓存容量。
	RegexCacheSize int `koanf:"regex_cache_size"`

	Log LogConfig `koanf:"log"`
}

// ErrorCountConfig errorCount 策略的默认参数。
type ErrorCountConfig struct {
	ContinuousErrorThreshold int `koanf:"continuous_error_threshold"`
}

// ErrorRateConfig errorRate 策略的默认参数。
type ErrorRateConfig struct {
	// Threshold 错误率阈值 (0.0 - 1.0]。
	Threshold float64 `koanf:"threshold"`

	// MinRequests 计算错误率的最小请求数。
	MinRequests int `koanf:"min_requests"`

	// MetricWindow 统计窗口。
	MetricWindow time.Duration `koanf:"metric_window"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
}

// Enabled 报告是否启用熔断。
func (c *Config) Enabled() bool {
	return c.Enable == nil || *c.Enable
}

// SetDefault 填充零值字段。
func (c *Config) SetDefault() {
	if c.CheckPeriod == 0 {
		c.CheckPeriod = DefaultCheckPeriod
	}
	if len(c.Chain) == 0 {
		c.Chain = append([]string(nil), DefaultChain...)
	}
	if c.SleepWindow == 0 {
		c.SleepWindow = DefaultSleepWindow
	}
	if c.RequestCountAfterHalfOpen == 0 {
		c.RequestCountAfterHalfOpen = DefaultRequestCountAfterHalfOpen
	}
	if c.SuccessCountAfterHalfOpen == 0 {
		c.SuccessCountAfterHalfOpen = DefaultSuccessCountAfterHalfOpen
	}
	if c.WhenToDetect == "" {
		c.WhenToDetect = xcircuit.DetectOnRecover
	}
	if c.ErrorCount.ContinuousErrorThreshold == 0 {
		c.ErrorCount.ContinuousErrorThreshold = DefaultContinuousErrorThreshold
	}
	if c.ErrorRate.Threshold == 0 {
		c.ErrorRate.Threshold = DefaultErrorRateThreshold
	}
	if c.ErrorRate.MinRequests == 0 {
		c.ErrorRate.MinRequests = DefaultErrorRateMinRequests
	}
	if c.ErrorRate.MetricWindow == 0 {
		c.ErrorRate.MetricWindow = DefaultMetricWindow
	}
	if c.RegexCacheSize == 0 {
		c.RegexCacheSize = xcircuit.DefaultRegexCacheSize
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate 校验配置，应在 SetDefault 之后调用。
func (c *Config) Validate() error {
	chain := make([]any, 0, len(xbreaker.PolicyIDs()))
	for _, id := range xbreaker.PolicyIDs() {
		chain = append(chain, string(id))
	}

	err := validation.ValidateStruct(c,
		validation.Field(&c.CheckPeriod, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Chain, validation.Required, validation.Each(validation.In(chain...))),
		validation.Field(&c.SleepWindow, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.RequestCountAfterHalfOpen, validation.Required, validation.Min(1)),
		validation.Field(&c.SuccessCountAfterHalfOpen, validation.Required, validation.Min(1)),
		validation.Field(&c.WhenToDetect, validation.Required,
			validation.In(xcircuit.DetectNever, xcircuit.DetectOnRecover, xcircuit.DetectAlways)),
		validation.Field(&c.ErrorCount),
		validation.Field(&c.ErrorRate),
		validation.Field(&c.RegexCacheSize, validation.Required, validation.Min(1)),
		validation.Field(&c.Log),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Validate 实现 validation.Validatable。
func (c ErrorCountConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ContinuousErrorThreshold, validation.Required, validation.Min(1)),
	)
}

// Validate 实现 validation.Validatable。
func (c ErrorRateConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Threshold, validation.Required, validation.Min(0.0).Exclusive(), validation.Max(1.0)),
		validation.Field(&c.MinRequests, validation.Min(0)),
		validation.Field(&c.MetricWindow, validation.Required, validation.Min(time.Second)),
	)
}

// Validate 实现 validation.Validatable。
func (c LogConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.By(func(v any) error {
			_, err := xlog.ParseLevel(v.(string))
			return err
		})),
		validation.Field(&c.Format, validation.In("text", "json")),
		validation.Field(&c.MaxSizeMB, validation.Min(0)),
		validation.Field(&c.MaxBackups, validation.Min(0)),
	)
}

// Logger 按日志配置构建 Logger，返回的 cleanup 关闭日志文件。
func (c LogConfig) Logger(component string) (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().
		SetLevelString(c.Level).
		SetFormat(c.Format).
		SetComponent(component)
	if c.File != "" {
		b = b.SetFile(c.File, c.MaxSizeMB, c.MaxBackups)
	}
	return b.Build()
}

// DefaultConfigSet 构造未命中规则时使用的配置：SERVICE 级别。
func (c *Config) DefaultConfigSet() xcircuit.ConfigSet {
	return xcircuit.ConfigSet{
		Level:      xcircuit.LevelService,
		UseDefault: true,
		HalfOpen: xcircuit.NewHalfOpenConfig(
			c.RequestCountAfterHalfOpen,
			c.SuccessCountAfterHalfOpen,
			c.SleepWindow,
			c.WhenToDetect,
		),
		Policy: xcircuit.PolicyConfig{
			ConsecutiveErrors: c.ErrorCount.ContinuousErrorThreshold,
			ErrorRate:         c.ErrorRate.Threshold,
			MinRequests:       c.ErrorRate.MinRequests,
			MetricWindow:      c.ErrorRate.MetricWindow,
		},
	}
}

// Policies 按 Chain 创建策略。
func (c *Config) Policies() ([]xcircuit.Policy, error) {
	policies := make([]xcircuit.Policy, 0, len(c.Chain))
	for _, id := range c.Chain {
		p, err := xbreaker.NewPolicy(xcircuit.PluginID(id))
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, nil
}

// Load 从文件加载配置，格式由扩展名决定。
func Load(path string) (*Config, error) {
	data, format, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return LoadBytes(data, format)
}

// LoadBytes 从字节数据加载配置，填充默认值并校验。空数据得到默认配置。
func LoadBytes(data []byte, format Format) (*Config, error) {
	var c Config
	if err := decode(data, format, &c); err != nil {
		return nil, err
	}
	c.SetDefault()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
