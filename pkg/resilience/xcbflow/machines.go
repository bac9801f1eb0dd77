package xcbflow

import (
	"github.com/omeyang/xcircuit/pkg/resilience/xcbconf"
	"github.com/omeyang/xcircuit/pkg/resilience/xcircuit"
)

// NewFromConfig 按进程级配置创建 Flow：策略链来自 cfg.Chain，
// 评估间隔来自 cfg.CheckPeriod（opts 中的 WithInterval 优先）。
// 配置关闭熔断时返回 ErrDisabled。
func NewFromConfig(cfg *xcbconf.Config, rules xcircuit.RuleSource, source InstanceSource, opts ...Option) (*Flow, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	machines, err := NewMachines(cfg, rules)
	if err != nil {
		return nil, err
	}
	return New(source, machines, append([]Option{WithInterval(cfg.CheckPeriod)}, opts...)...)
}

// NewMachines 按配置的策略链为每个策略创建熔断器。
// 所有熔断器共享同一个规则解析器，各自持有独立的配置组。
func NewMachines(cfg *xcbconf.Config, rules xcircuit.RuleSource) ([]*xcircuit.Machine, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	resolver, err := xcircuit.NewRuleResolver(rules, xcircuit.WithRegexCacheSize(cfg.RegexCacheSize))
	if err != nil {
		return nil, err
	}
	policies, err := cfg.Policies()
	if err != nil {
		return nil, err
	}

	machines := make([]*xcircuit.Machine, 0, len(policies))
	for _, p := range policies {
		group, err := xcircuit.NewConfigGroup(cfg.DefaultConfigSet(), resolver)
		if err != nil {
			return nil, err
		}
		m, err := xcircuit.NewMachine(p, group)
		if err != nil {
			return nil, err
		}
		machines = append(machines, m)
	}
	return machines, nil
}
