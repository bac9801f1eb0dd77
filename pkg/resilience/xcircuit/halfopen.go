package xcircuit

import (
	"sync"
	"sync/atomic"
	"time"
)

// WhenToDetect 何时让主动探测结果加速 OPEN → HALF_OPEN。
type WhenToDetect string

const (
	// DetectNever 忽略探测结果，只等待睡眠窗口。
	DetectNever WhenToDetect = "never"
	// DetectOnRecover 仅在熔断恢复阶段使用探测结果。
	DetectOnRecover WhenToDetect = "on_recover"
	// DetectAlways 始终使用探测结果。
	DetectAlways WhenToDetect = "always"
)

// IsValid 检查取值是否有效。
func (w WhenToDetect) IsValid() bool {
	switch w {
	case DetectNever, DetectOnRecover, DetectAlways:
		return true
	default:
		return false
	}
}

// HalfOpenConfig 半开探测阈值。
//
// 由原始配置推导：
//
//	SuccessCount = min(configuredSuccess, MaxRequests)
//	FailCount    = min(MaxRequests, MaxRequests - SuccessCount + 1)
//
// 保证两个阈值不会在探测预算内同时达到，
// 且即使先出现成功，失败阈值仍能在 MaxRequests 次内达到。
type HalfOpenConfig struct {
	MaxRequests  int
	SuccessCount int
	FailCount    int
	SleepWindow  time.Duration
	WhenToDetect WhenToDetect
}

// NewHalfOpenConfig 推导半开阈值。maxRequests 与 successCount 小于 1 时按 1 处理。
func NewHalfOpenConfig(maxRequests, successCount int, sleepWindow time.Duration, when WhenToDetect) HalfOpenConfig {
	maxRequests = max(maxRequests, 1)
	success := min(max(successCount, 1), maxRequests)
	return HalfOpenConfig{
		MaxRequests:  maxRequests,
		SuccessCount: success,
		FailCount:    min(maxRequests, maxRequests-success+1),
		SleepWindow:  sleepWindow,
		WhenToDetect: when,
	}
}

type halfOpenCounts struct {
	success atomic.Int32
	fail    atomic.Int32
}

// HalfOpenCounter 每个策略、每个实例一份的半开计数，按维度统计。
//
// 具体策略的状态类型嵌入它并实现 ResetCounter，
// 以便同时清理策略自己的统计结构。
type HalfOpenCounter struct {
	counts sync.Map // StatusDimension -> *halfOpenCounts
}

// NewHalfOpenCounter 创建半开计数器。
func NewHalfOpenCounter() *HalfOpenCounter {
	return &HalfOpenCounter{}
}

// HalfOpen 返回自身，使嵌入者满足 PolicyState.HalfOpen。
func (c *HalfOpenCounter) HalfOpen() *HalfOpenCounter {
	return c
}

func (c *HalfOpenCounter) load(dim StatusDimension) *halfOpenCounts {
	if v, ok := c.counts.Load(dim); ok {
		return v.(*halfOpenCounts)
	}
	v, _ := c.counts.LoadOrStore(dim, &halfOpenCounts{})
	return v.(*halfOpenCounts)
}

// TriggerHalfOpenConversion 记录一次半开探测结果。
//
// 失败/超时累加失败计数，成功累加成功计数；其余结果不计数并返回 false。
// 仅当自增后的值恰好等于对应阈值时返回 true，
// 同一探测窗口内只有一次调用会得到 true。
// 自增是原子的，所有自增全序，恰好有一个调用观察到阈值本身；
// 调用方需立即据此触发状态迁移。
func (c *HalfOpenCounter) TriggerHalfOpenConversion(dim StatusDimension, ret RetStatus, cfg HalfOpenConfig) bool {
	switch ret {
	case RetFail, RetTimeout:
		return c.load(dim).fail.Add(1) == int32(cfg.FailCount)
	case RetSuccess:
		return c.load(dim).success.Add(1) == int32(cfg.SuccessCount)
	default:
		return false
	}
}

// ResetHalfOpen 清零维度的半开计数，在维度刚进入 HALF_OPEN 时调用。
func (c *HalfOpenCounter) ResetHalfOpen(dim StatusDimension) {
	if v, ok := c.counts.Load(dim); ok {
		h := v.(*halfOpenCounts)
		h.success.Store(0)
		h.fail.Store(0)
	}
}

// Counts 返回维度的半开成功/失败计数。
func (c *HalfOpenCounter) Counts(dim StatusDimension) (success, fail int) {
	v, ok := c.counts.Load(dim)
	if !ok {
		return 0, 0
	}
	h := v.(*halfOpenCounts)
	return int(h.success.Load()), int(h.fail.Load())
}

// Dimensions 返回有半开计数记录的维度。
func (c *HalfOpenCounter) Dimensions() []StatusDimension {
	var dims []StatusDimension
	c.counts.Range(func(k, _ any) bool {
		dims = append(dims, k.(StatusDimension))
		return true
	})
	return dims
}
