package xbreaker

import "errors"

// ErrUnknownPolicy 策略标识未注册。
var ErrUnknownPolicy = errors.New("xbreaker: unknown policy")
