package xbreaker

import (
	"fmt"
	"time"

	"github.com/omeyang/xcircuit/pkg/resilience/xcircuit"
)

// 内置策略标识。
const (
	ErrorCountID xcircuit.PluginID = "errorCount"
	ErrorRateID  xcircuit.PluginID = "errorRate"
)

// ErrorCountPolicy 连续错误数熔断。
//
// 阈值取自 PolicyConfig.ConsecutiveErrors，计数不随时间滚动，
// 一次成功即清零连续失败数。
type ErrorCountPolicy struct{}

// NewErrorCountPolicy 创建连续错误数策略。
func NewErrorCountPolicy() *ErrorCountPolicy {
	return &ErrorCountPolicy{}
}

// ID 实现 xcircuit.Policy。
func (p *ErrorCountPolicy) ID() xcircuit.PluginID { return ErrorCountID }

// NewState 实现 xcircuit.Policy。
func (p *ErrorCountPolicy) NewState() xcircuit.PolicyState { return newCountsState() }

// Report 实现 xcircuit.Policy。
func (p *ErrorCountPolicy) Report(state xcircuit.PolicyState, dim xcircuit.StatusDimension, ret xcircuit.RetStatus, _ *xcircuit.ConfigSet, now time.Time) {
	if s, ok := state.(*countsState); ok {
		s.window(dim).record(ret, now, 0)
	}
}

// CloseToOpen 实现 xcircuit.Policy。
func (p *ErrorCountPolicy) CloseToOpen(_ xcircuit.Instance, state xcircuit.PolicyState, dim xcircuit.StatusDimension, cfg *xcircuit.ConfigSet, now time.Time) bool {
	s, ok := state.(*countsState)
	if !ok || cfg == nil || cfg.Policy.ConsecutiveErrors <= 0 {
		return false
	}
	trip := NewConsecutiveFailures(uint32(cfg.Policy.ConsecutiveErrors))
	return trip.ReadyToTrip(s.windowCounts(dim, now, 0))
}

// ErrorRatePolicy 错误率熔断。
//
// 按 PolicyConfig.MetricWindow 滚动统计，窗口内请求数达到 MinRequests
// 且失败率不低于 ErrorRate 时打开。窗口过期后计数从零开始。
type ErrorRatePolicy struct{}

// NewErrorRatePolicy 创建错误率策略。
func NewErrorRatePolicy() *ErrorRatePolicy {
	return &ErrorRatePolicy{}
}

// ID 实现 xcircuit.Policy。
func (p *ErrorRatePolicy) ID() xcircuit.PluginID { return ErrorRateID }

// NewState 实现 xcircuit.Policy。
func (p *ErrorRatePolicy) NewState() xcircuit.PolicyState { return newCountsState() }

// Report 实现 xcircuit.Policy。
func (p *ErrorRatePolicy) Report(state xcircuit.PolicyState, dim xcircuit.StatusDimension, ret xcircuit.RetStatus, cfg *xcircuit.ConfigSet, now time.Time) {
	s, ok := state.(*countsState)
	if !ok {
		return
	}
	s.window(dim).record(ret, now, metricWindow(cfg))
}

// CloseToOpen 实现 xcircuit.Policy。
func (p *ErrorRatePolicy) CloseToOpen(_ xcircuit.Instance, state xcircuit.PolicyState, dim xcircuit.StatusDimension, cfg *xcircuit.ConfigSet, now time.Time) bool {
	s, ok := state.(*countsState)
	if !ok || cfg == nil || cfg.Policy.ErrorRate <= 0 {
		return false
	}
	trip := NewFailureRatio(cfg.Policy.ErrorRate, uint32(max(cfg.Policy.MinRequests, 0)))
	return trip.ReadyToTrip(s.windowCounts(dim, now, metricWindow(cfg)))
}

func metricWindow(cfg *xcircuit.ConfigSet) time.Duration {
	if cfg == nil {
		return 0
	}
	return cfg.Policy.MetricWindow
}

// NewPolicy 按标识创建内置策略。
func NewPolicy(id xcircuit.PluginID) (xcircuit.Policy, error) {
	switch id {
	case ErrorCountID:
		return NewErrorCountPolicy(), nil
	case ErrorRateID:
		return NewErrorRatePolicy(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, id)
	}
}

// PolicyIDs 返回所有内置策略标识。
func PolicyIDs() []xcircuit.PluginID {
	return []xcircuit.PluginID{ErrorCountID, ErrorRateID}
}

var (
	_ xcircuit.Policy = (*ErrorCountPolicy)(nil)
	_ xcircuit.Policy = (*ErrorRatePolicy)(nil)
)
