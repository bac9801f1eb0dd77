package xcbflow

import "errors"

var (
	// ErrNilSource 未提供实例来源。
	ErrNilSource = errors.New("xcbflow: instance source cannot be nil")

	// ErrNoMachines 未提供任何熔断器。
	ErrNoMachines = errors.New("xcbflow: at least one machine is required")

	// ErrDuplicateBreaker 两个熔断器使用了相同名称。
	ErrDuplicateBreaker = errors.New("xcbflow: duplicate breaker name")

	// ErrInvalidInterval 评估间隔必须大于 0。
	ErrInvalidInterval = errors.New("xcbflow: check interval must be positive")

	// ErrNilConfig 未提供配置。
	ErrNilConfig = errors.New("xcbflow: config cannot be nil")

	// ErrDisabled 配置关闭了熔断。
	ErrDisabled = errors.New("xcbflow: circuit breaking is disabled")

	// ErrAlreadyStarted Start 被重复调用。
	ErrAlreadyStarted = errors.New("xcbflow: already started")
)
