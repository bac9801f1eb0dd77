package xlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Builder 日志配置构建器
type Builder struct {
	output    io.Writer
	levelVar  *slog.LevelVar
	format    string
	addSource bool
	component string
	file      *lumberjack.Logger
	err       error
}

// New 创建配置构建器，默认输出到 stderr、Info 级别、text 格式
func New() *Builder {
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)
	return &Builder{
		output:   os.Stderr,
		levelVar: levelVar,
		format:   "text",
	}
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// SetOutput 设置日志输出目标
func (b *Builder) SetOutput(w io.Writer) *Builder {
	if w == nil {
		return b.fail(fmt.Errorf("xlog: output cannot be nil"))
	}
	b.output = w
	return b
}

// SetLevel 设置日志级别
func (b *Builder) SetLevel(level Level) *Builder {
	b.levelVar.Set(slog.Level(level))
	return b
}

// SetLevelString 通过字符串设置日志级别
func (b *Builder) SetLevelString(s string) *Builder {
	level, err := ParseLevel(s)
	if err != nil {
		return b.fail(err)
	}
	return b.SetLevel(level)
}

// SetFormat 设置输出格式：text 或 json，空值使用 text
func (b *Builder) SetFormat(format string) *Builder {
	normalized := strings.ToLower(strings.TrimSpace(format))
	switch normalized {
	case "":
		b.format = "text"
	case "text", "json":
		b.format = normalized
	default:
		return b.fail(fmt.Errorf("xlog: unknown format %q", format))
	}
	return b
}

// SetAddSource 是否在日志中添加源码位置
func (b *Builder) SetAddSource(enable bool) *Builder {
	b.addSource = enable
	return b
}

// SetComponent 设置组件名，作为固定属性写入每条日志
func (b *Builder) SetComponent(name string) *Builder {
	b.component = name
	return b
}

// SetFile 输出到文件并按大小轮转
//
// maxSizeMB 单个文件上限（MB），maxBackups 保留的旧文件数，
// 取 0 时使用 lumberjack 的默认值。
func (b *Builder) SetFile(filename string, maxSizeMB, maxBackups int) *Builder {
	if strings.TrimSpace(filename) == "" {
		return b.fail(fmt.Errorf("xlog: file name cannot be empty"))
	}
	if maxSizeMB < 0 || maxBackups < 0 {
		return b.fail(fmt.Errorf("xlog: invalid rotation size=%d backups=%d", maxSizeMB, maxBackups))
	}
	b.file = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
	b.output = b.file
	return b
}

// Build 构建 Logger 实例
//
// 返回值：
//   - LoggerWithLevel: 日志实例，同时支持动态级别控制
//   - func() error: 清理函数，关闭日志文件，可重复调用
//   - error: 配置错误
func (b *Builder) Build() (LoggerWithLevel, func() error, error) {
	if b.err != nil {
		return nil, nil, b.err
	}

	opts := &slog.HandlerOptions{
		Level:     b.levelVar,
		AddSource: b.addSource,
	}

	var handler slog.Handler
	switch b.format {
	case "json":
		handler = slog.NewJSONHandler(b.output, opts)
	default:
		handler = slog.NewTextHandler(b.output, opts)
	}
	if b.component != "" {
		handler = handler.WithAttrs([]slog.Attr{Component(b.component)})
	}

	logger := &xlogger{
		handler:  handler,
		levelVar: b.levelVar,
	}
	return logger, b.createCleanup(), nil
}

func (b *Builder) createCleanup() func() error {
	var once sync.Once
	file := b.file
	return func() error {
		var err error
		once.Do(func() {
			if file != nil {
				err = file.Close()
			}
		})
		return err
	}
}
