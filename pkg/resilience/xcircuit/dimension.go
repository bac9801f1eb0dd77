package xcircuit

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ServiceKey 服务标识。
type ServiceKey struct {
	Namespace string
	Service   string
}

// IsZero 报告是否为空标识。
func (k ServiceKey) IsZero() bool {
	return k.Namespace == "" && k.Service == ""
}

// String 返回 "namespace/service"，空标识返回空字符串。
func (k ServiceKey) String() string {
	if k.IsZero() {
		return ""
	}
	return k.Namespace + "/" + k.Service
}

// MatchLevel 规则匹配级别，决定状态维度的粒度。
type MatchLevel int

const (
	// LevelService 整个服务共享一个维度。
	LevelService MatchLevel = iota
	// LevelAllMethod 忽略方法，只按调用方区分。
	LevelAllMethod
	// LevelAllCaller 忽略调用方，只按方法区分。
	LevelAllCaller
	// LevelCallerMethod 按调用方 + 方法区分。
	LevelCallerMethod
)

// String 返回级别名称。
func (l MatchLevel) String() string {
	switch l {
	case LevelService:
		return "SERVICE"
	case LevelAllMethod:
		return "ALL_METHOD"
	case LevelAllCaller:
		return "ALL_CALLER"
	case LevelCallerMethod:
		return "CALLER_METHOD"
	default:
		return "MatchLevel(" + strconv.Itoa(int(l)) + ")"
	}
}

// LevelOf 由匹配结果推导级别。
func LevelOf(matchAllSource, matchAllMethod bool) MatchLevel {
	switch {
	case matchAllSource && matchAllMethod:
		return LevelService
	case matchAllMethod:
		return LevelAllMethod
	case matchAllSource:
		return LevelAllCaller
	default:
		return LevelCallerMethod
	}
}

// StatusDimension 熔断状态的跟踪维度。
//
// 可比较，直接用作 map key。一个实例上可以同时存在多个维度的熔断状态。
type StatusDimension struct {
	Method string
	Caller ServiceKey
}

// NewStatusDimension 按匹配级别投影调用上下文，得到状态维度。
func NewStatusDimension(level MatchLevel, method string, caller ServiceKey) StatusDimension {
	switch level {
	case LevelAllMethod:
		return StatusDimension{Caller: caller}
	case LevelAllCaller:
		return StatusDimension{Method: method}
	case LevelCallerMethod:
		return StatusDimension{Method: method, Caller: caller}
	default:
		return StatusDimension{}
	}
}

// IsService 报告是否为整服务维度。
func (d StatusDimension) IsService() bool {
	return d.Method == "" && d.Caller.IsZero()
}

// ruleIdentifier 以维度保留的字段构造规则查找标识。
func (d StatusDimension) ruleIdentifier(namespace, service string) RuleIdentifier {
	return RuleIdentifier{Namespace: namespace, Service: service, Caller: d.Caller, Method: d.Method}
}

// String 返回便于日志输出的表示。
func (d StatusDimension) String() string {
	if d.IsService() {
		return "service"
	}
	var b strings.Builder
	if d.Method != "" {
		b.WriteString("method=")
		b.WriteString(d.Method)
	}
	if !d.Caller.IsZero() {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString("caller=")
		b.WriteString(d.Caller.String())
	}
	return b.String()
}

// hashDimension 用于分片选择。
func hashDimension(d StatusDimension) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(d.Method)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(d.Caller.Namespace)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(d.Caller.Service)
	return h.Sum64()
}

// RuleIdentifier 规则/配置缓存的查找键。
type RuleIdentifier struct {
	Namespace string
	Service   string
	Caller    ServiceKey
	Method    string
}

// Destination 返回被调服务标识。
func (id RuleIdentifier) Destination() ServiceKey {
	return ServiceKey{Namespace: id.Namespace, Service: id.Service}
}

// String 返回便于日志输出的表示。
func (id RuleIdentifier) String() string {
	return strings.Join([]string{id.Namespace, id.Service, id.Caller.Namespace, id.Caller.Service, id.Method}, "|")
}

// flightKey 用作 singleflight key，\x00 分隔避免字段内容造成碰撞。
func (id RuleIdentifier) flightKey() string {
	return strings.Join([]string{id.Namespace, id.Service, id.Caller.Namespace, id.Caller.Service, id.Method}, "\x00")
}
