// Package xlog 基于 log/slog 的结构化日志。
//
// # 核心功能
//
//   - Builder 模式配置（输出目标、级别、格式、文件轮转）
//   - 动态级别调整（运行时热更新）
//   - 组件固定属性
//   - 熔断相关的便捷属性
//
// # 创建 Logger
//
// 使用 Builder 模式（first-error-wins：遇到第一个配置错误后，后续错误被忽略）：
//
//	logger, cleanup, err := xlog.New().
//		SetLevelString("debug").
//		SetFormat("json").
//		SetFile("/var/log/xcircuit.log", 100, 3).
//		Build()
//	if err != nil {
//		return err
//	}
//	defer cleanup()
//
// 文件输出由 lumberjack 负责按大小轮转，cleanup 关闭文件。
//
// 库代码在调用方未提供 Logger 时使用 [Nop]。
//
// # 便捷属性
//
// [Err]、[Duration]、[Component]、[Count]、[Breaker]、[Instance]、
// [Dimension]、[Transition]、[Revision]。
package xlog
