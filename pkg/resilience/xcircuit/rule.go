package xcircuit

import (
	"fmt"
	"time"
)

// MatchType 字符串匹配方式。
type MatchType string

const (
	// MatchExact 精确匹配，空类型等同于 EXACT。
	MatchExact MatchType = "EXACT"
	// MatchRegex 正则匹配。
	MatchRegex MatchType = "REGEX"
)

// MatchAll 通配值。
const MatchAll = "*"

// MatchString 字符串匹配器。
type MatchString struct {
	Type  MatchType `json:"type,omitempty" yaml:"type,omitempty" koanf:"type"`
	Value string    `json:"value" yaml:"value" koanf:"value"`
}

// matchesAll 未声明或值为 "*"/空 时匹配所有方法。
func (m *MatchString) matchesAll() bool {
	return m == nil || m.Value == "" || m.Value == MatchAll
}

// Validate 校验匹配类型。
func (m *MatchString) Validate() error {
	if m == nil {
		return nil
	}
	switch m.Type {
	case "", MatchExact, MatchRegex:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedMatchType, m.Type)
	}
}

// SourceMatcher 调用方匹配条件，字段为 "*" 时匹配任意值。
type SourceMatcher struct {
	Namespace string `json:"namespace" yaml:"namespace" koanf:"namespace"`
	Service   string `json:"service" yaml:"service" koanf:"service"`
}

func (s SourceMatcher) matchAll() bool {
	return s.Namespace == MatchAll && s.Service == MatchAll
}

// RecoverConfig 熔断恢复配置，零值字段使用默认配置。
type RecoverConfig struct {
	// SleepWindow OPEN 状态持续多久后进入 HALF_OPEN。
	SleepWindow time.Duration `json:"sleep_window,omitempty" yaml:"sleep_window,omitempty" koanf:"sleep_window"`

	// MaxRequestsAfterHalfOpen 半开期间允许的探测请求数。
	MaxRequestsAfterHalfOpen int `json:"max_requests_after_half_open,omitempty" yaml:"max_requests_after_half_open,omitempty" koanf:"max_requests_after_half_open"`

	// SuccessCountAfterHalfOpen 半开期间恢复所需的成功数。
	SuccessCountAfterHalfOpen int `json:"success_count_after_half_open,omitempty" yaml:"success_count_after_half_open,omitempty" koanf:"success_count_after_half_open"`

	// WhenToDetect 何时使用主动探测结果加速恢复。
	WhenToDetect WhenToDetect `json:"when_to_detect,omitempty" yaml:"when_to_detect,omitempty" koanf:"when_to_detect"`
}

// PolicyConfig 熔断策略参数，由具体策略解释。零值字段使用默认配置。
type PolicyConfig struct {
	// ConsecutiveErrors 连续错误数阈值。
	ConsecutiveErrors int `json:"consecutive_errors,omitempty" yaml:"consecutive_errors,omitempty" koanf:"consecutive_errors"`

	// ErrorRate 错误率阈值 (0.0 - 1.0)。
	ErrorRate float64 `json:"error_rate,omitempty" yaml:"error_rate,omitempty" koanf:"error_rate"`

	// MinRequests 计算错误率的最小请求数。
	MinRequests int `json:"min_requests,omitempty" yaml:"min_requests,omitempty" koanf:"min_requests"`

	// MetricWindow 错误率统计窗口。
	MetricWindow time.Duration `json:"metric_window,omitempty" yaml:"metric_window,omitempty" koanf:"metric_window"`
}

// withDefaults 用 def 填充零值字段。
func (p PolicyConfig) withDefaults(def PolicyConfig) PolicyConfig {
	if p.ConsecutiveErrors == 0 {
		p.ConsecutiveErrors = def.ConsecutiveErrors
	}
	if p.ErrorRate == 0 {
		p.ErrorRate = def.ErrorRate
	}
	if p.MinRequests == 0 {
		p.MinRequests = def.MinRequests
	}
	if p.MetricWindow == 0 {
		p.MetricWindow = def.MetricWindow
	}
	return p
}

// DestinationSet 被调方匹配条件及其熔断配置。
type DestinationSet struct {
	Namespace string        `json:"namespace" yaml:"namespace" koanf:"namespace"`
	Service   string        `json:"service" yaml:"service" koanf:"service"`
	Method    *MatchString  `json:"method,omitempty" yaml:"method,omitempty" koanf:"method"`
	Policy    PolicyConfig  `json:"policy,omitempty" yaml:"policy,omitempty" koanf:"policy"`
	Recover   RecoverConfig `json:"recover,omitempty" yaml:"recover,omitempty" koanf:"recover"`
}

// Rule 熔断规则。
type Rule struct {
	Name         string           `json:"name" yaml:"name" koanf:"name"`
	Sources      []SourceMatcher  `json:"sources,omitempty" yaml:"sources,omitempty" koanf:"sources"`
	Destinations []DestinationSet `json:"destinations" yaml:"destinations" koanf:"destinations"`
}

// Validate 校验规则中的匹配器与恢复配置。
func (r Rule) Validate() error {
	for i := range r.Destinations {
		dst := &r.Destinations[i]
		if err := dst.Method.Validate(); err != nil {
			return fmt.Errorf("rule %q destinations[%d]: %w", r.Name, i, err)
		}
		if dst.Recover.WhenToDetect != "" && !dst.Recover.WhenToDetect.IsValid() {
			return fmt.Errorf("rule %q destinations[%d]: invalid when_to_detect %q", r.Name, i, dst.Recover.WhenToDetect)
		}
	}
	return nil
}

// RuleSet 一个服务的熔断规则：作为被调方的入向规则与作为调用方的出向规则。
type RuleSet struct {
	Namespace string `json:"namespace" yaml:"namespace" koanf:"namespace"`
	Service   string `json:"service" yaml:"service" koanf:"service"`
	Inbounds  []Rule `json:"inbounds,omitempty" yaml:"inbounds,omitempty" koanf:"inbounds"`
	Outbounds []Rule `json:"outbounds,omitempty" yaml:"outbounds,omitempty" koanf:"outbounds"`
}

// Key 返回服务标识。
func (s RuleSet) Key() ServiceKey {
	return ServiceKey{Namespace: s.Namespace, Service: s.Service}
}

// Validate 校验所有规则。
func (s RuleSet) Validate() error {
	for _, r := range s.Inbounds {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%s inbounds: %w", s.Key(), err)
		}
	}
	for _, r := range s.Outbounds {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%s outbounds: %w", s.Key(), err)
		}
	}
	return nil
}
