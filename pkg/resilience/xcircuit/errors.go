package xcircuit

import "errors"

// 规则匹配错误。
var (
	// ErrUnsupportedMatchType 规则中的 MatchString 类型无法识别。
	// 属于数据契约错误，本次评估直接失败，不重试。
	ErrUnsupportedMatchType = errors.New("xcircuit: unsupported match type")

	// ErrInvalidPattern 正则表达式编译失败。
	ErrInvalidPattern = errors.New("xcircuit: invalid regex pattern")
)

// 构造参数错误。
var (
	ErrNilRuleSource    = errors.New("xcircuit: rule source cannot be nil")
	ErrNilResolver      = errors.New("xcircuit: rule resolver cannot be nil")
	ErrNilPolicy        = errors.New("xcircuit: policy cannot be nil")
	ErrNilConfigGroup   = errors.New("xcircuit: config group cannot be nil")
	ErrNilMachine       = errors.New("xcircuit: machine cannot be nil")
	ErrInvalidCacheSize = errors.New("xcircuit: regex cache size must be greater than 0")
)
