// Package xbreaker 提供 xcircuit 的内置熔断策略。
//
// # 设计理念
//
// 每个维度的计数窗口是一个 [sony/gobreaker/v2] TwoStepCircuitBreaker，
// 以 NeverTrip 作为 ReadyToTrip，只用它累积 Counts。
// 打开判定由 TripPolicy 对窗口计数完成，本包把它适配为 xcircuit.Policy。
// OPEN/HALF_OPEN 相关迁移由 xcircuit.Machine 统一处理。
//
// # 内置策略
//
//   - ErrorCountPolicy（errorCount）：连续失败 N 次后熔断
//   - ErrorRatePolicy（errorRate）：统计窗口内失败率超过阈值后熔断
//
// 判定原语（TripPolicy）：
//   - ConsecutiveFailuresPolicy：连续失败 N 次
//   - FailureRatioPolicy：失败率超过阈值
//   - NeverTripPolicy：永不打开，用作窗口计数器的 ReadyToTrip
//
// [sony/gobreaker/v2]: https://github.com/sony/gobreaker
package xbreaker
