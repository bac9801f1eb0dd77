// Package xcircuit 提供服务治理 SDK 中客户端熔断的决策内核。
//
// # 组成
//
//   - RuleResolver：按 (namespace, service, caller, method) 解析适用的熔断规则及匹配级别
//   - ConfigGroup：缓存每个 RuleIdentifier 解析得到的 ConfigSet，未命中规则时回退到默认配置
//   - HalfOpenCounter：半开期间按维度统计成功/失败次数
//   - Machine：CLOSE → OPEN → HALF_OPEN → CLOSE 状态迁移骨架，CLOSE→OPEN 判定由注入的 Policy 决定
//   - BuildResult：批量评估实例 × 维度，按固定优先级收集需要迁移状态的实例
//
// # 职责边界
//
// 本包只做决策，不写入熔断状态：BuildResult 返回的 Result 由调用方（见 xcbflow）
// 落地为新的 CircuitBreakerStatus。半开计数的重置是评估本身的副作用，
// 与调用方写入状态解耦。
//
// # 匹配级别
//
// 规则匹配的精确程度决定状态跟踪的粒度：
//
//	matchAllSource && matchAllMethod → SERVICE        （整个服务一个维度）
//	matchAllMethod                   → ALL_METHOD     （只按调用方区分）
//	matchAllSource                   → ALL_CALLER     （只按方法区分）
//	其余                             → CALLER_METHOD  （调用方 + 方法）
//
// # 并发
//
// 所有操作在调用方 goroutine 上同步执行，不阻塞。半开计数使用原子整数，
// 规则缓存与正则缓存支持并发填充。
package xcircuit
