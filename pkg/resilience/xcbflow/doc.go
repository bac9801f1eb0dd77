// Package xcbflow 驱动 xcircuit 熔断决策：接收调用结果、周期评估并落地状态迁移。
//
// xcircuit 只产生迁移决策，不写状态。Flow 是它的调用方：
//
//   - Report 在请求完成时把结果交给各策略统计；维度处于本熔断器的
//     HALF_OPEN 状态且半开计数恰好达到阈值时，立即对该实例评估一次
//   - Check 对 Registry 快照做一次完整评估，写入新的 CircuitBreakerStatus，
//     记录日志与 OpenTelemetry 指标
//   - Start/Stop 通过 robfig/cron 周期执行 Check
//
// Registry 维护端点到实例的映射。同一端点的实例被替换时，
// 旧实例的 LocalValue 会转移给新实例，计数不会因为服务列表刷新而丢失。
//
// 用法：
//
//	reg := xcbflow.NewRegistry()
//	flow, err := xcbflow.NewFromConfig(cfg, rules, reg)
//	if errors.Is(err, xcbflow.ErrDisabled) {
//	    return
//	}
//	_ = flow.Start()
//	defer func() { <-flow.Stop().Done() }()
package xcbflow
