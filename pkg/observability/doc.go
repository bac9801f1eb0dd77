// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，支持按大小轮转的日志文件
//
// 指标直接使用 OpenTelemetry metric API，由使用方注入 MeterProvider。
package observability
