package xcbconf

import "errors"

// 配置加载和解析相关错误。
var (
	// ErrEmptyPath 表示文件路径为空。
	ErrEmptyPath = errors.New("xcbconf: empty path")

	// ErrUnsupportedFormat 表示不支持的文件格式。
	ErrUnsupportedFormat = errors.New("xcbconf: unsupported format")

	// ErrLoadFailed 表示文件读取失败。
	ErrLoadFailed = errors.New("xcbconf: failed to load")

	// ErrParseFailed 表示内容解析失败。
	ErrParseFailed = errors.New("xcbconf: failed to parse")

	// ErrUnmarshalFailed 表示反序列化失败。
	ErrUnmarshalFailed = errors.New("xcbconf: failed to unmarshal")

	// ErrInvalidConfig 表示配置校验失败。
	ErrInvalidConfig = errors.New("xcbconf: invalid config")

	// ErrInvalidRules 表示规则校验失败。
	ErrInvalidRules = errors.New("xcbconf: invalid rules")
)
