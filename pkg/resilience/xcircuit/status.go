package xcircuit

import (
	"strconv"
	"time"
)

// Status 熔断状态。
type Status int

const (
	// StatusClose 关闭（正常放行）。
	StatusClose Status = iota
	// StatusHalfOpen 半开（有限探测）。
	StatusHalfOpen
	// StatusOpen 打开（熔断）。
	StatusOpen
)

// String 返回状态名称。
func (s Status) String() string {
	switch s {
	case StatusClose:
		return "close"
	case StatusHalfOpen:
		return "half_open"
	case StatusOpen:
		return "open"
	default:
		return "Status(" + strconv.Itoa(int(s)) + ")"
	}
}

// CircuitBreakerStatus 某个 (实例, 维度) 上的熔断状态。
//
// 值类型，每次状态变化整体替换，不原地修改。
// 只有调用方在收到迁移决策后才会写入新值。
type CircuitBreakerStatus struct {
	// Name 产生该状态的熔断器（策略插件）名称。
	Name string

	// Status 当前状态。
	Status Status

	// StartTime 进入当前状态的时间。
	StartTime time.Time
}

// DetectResult 主动探测（outlier detection）的最新结果。
type DetectResult struct {
	Success    bool
	DetectTime time.Time
}

// RetStatus 单次调用结果。
type RetStatus int

const (
	// RetSuccess 调用成功。
	RetSuccess RetStatus = iota
	// RetFail 调用失败。
	RetFail
	// RetTimeout 调用超时，按失败统计。
	RetTimeout
	// RetReject 被限流/熔断拒绝，不参与统计。
	RetReject
)

// String 返回结果名称。
func (r RetStatus) String() string {
	switch r {
	case RetSuccess:
		return "success"
	case RetFail:
		return "fail"
	case RetTimeout:
		return "timeout"
	case RetReject:
		return "reject"
	default:
		return "RetStatus(" + strconv.Itoa(int(r)) + ")"
	}
}

// IsFailure 报告结果是否计为失败。
func (r RetStatus) IsFailure() bool {
	return r == RetFail || r == RetTimeout
}
