package xlog

import (
	"fmt"
	"log/slog"
	"time"
)

// 常用属性 Key
const (
	KeyError      = "error"
	KeyDuration   = "duration"
	KeyCount      = "count"
	KeyComponent  = "component"
	KeyBreaker    = "breaker"
	KeyInstance   = "instance"
	KeyDimension  = "dimension"
	KeyFrom       = "from"
	KeyTo         = "to"
	KeyRevision   = "revision"
	KeyTransition = "transition"
)

// Err 创建错误属性，err 为 nil 时返回空属性（会被 slog 忽略）
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建耗时属性
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Count 创建计数属性
func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}

// Component 创建组件名属性
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Breaker 创建熔断器名称属性
func Breaker(name string) slog.Attr {
	return slog.String(KeyBreaker, name)
}

// Instance 创建实例标识属性
func Instance(id string) slog.Attr {
	return slog.String(KeyInstance, id)
}

// Dimension 创建状态维度属性
func Dimension(d fmt.Stringer) slog.Attr {
	return slog.String(KeyDimension, d.String())
}

// Transition 创建状态迁移分组属性
func Transition(from, to fmt.Stringer) slog.Attr {
	return slog.Group(KeyTransition,
		slog.String(KeyFrom, from.String()),
		slog.String(KeyTo, to.String()),
	)
}

// Revision 创建规则版本号属性
func Revision(rev uint64) slog.Attr {
	return slog.Uint64(KeyRevision, rev)
}
