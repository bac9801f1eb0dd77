package xcircuit

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// ConfigSet 某个 RuleIdentifier 解析得到的熔断配置。
type ConfigSet struct {
	// Level 匹配级别，决定状态维度。
	Level MatchLevel

	// UseDefault 为 true 表示没有命中规则，使用进程级默认配置。
	UseDefault bool

	HalfOpen HalfOpenConfig
	Policy   PolicyConfig

	// RuleName 命中的规则名，默认配置为空。
	RuleName string
}

type cachedConfig struct {
	revision uint64
	set      *ConfigSet
}

// ConfigGroup 每个策略插件一份，持有默认配置与按 RuleIdentifier 缓存的配置。
//
// 缓存条目记录规则源版本号，版本变化后首次访问重新解析，
// 其余情况下每个 RuleIdentifier 只解析一次。缓存不淘汰，
// 条目数受实际出现过的 (服务, 调用方, 方法) 组合数约束。
type ConfigGroup struct {
	local    *ConfigSet
	resolver *RuleResolver
	cache    sync.Map // RuleIdentifier -> *cachedConfig
	group    singleflight.Group
}

// NewConfigGroup 创建配置组。local 作为未命中规则时的默认配置。
func NewConfigGroup(local ConfigSet, resolver *RuleResolver) (*ConfigGroup, error) {
	if resolver == nil {
		return nil, ErrNilResolver
	}
	local.UseDefault = true
	local.RuleName = ""
	return &ConfigGroup{local: &local, resolver: resolver}, nil
}

// LocalConfig 返回默认配置。
func (g *ConfigGroup) LocalConfig() *ConfigSet {
	return g.local
}

// Resolver 返回规则解析器。
func (g *ConfigGroup) Resolver() *RuleResolver {
	return g.resolver
}

// ServiceConfig 返回 id 适用的配置，命中默认配置时透明替换为 LocalConfig。
// 只有规则数据契约错误（如未知匹配类型、非法正则）才返回 error。
func (g *ConfigGroup) ServiceConfig(id RuleIdentifier) (*ConfigSet, error) {
	rev := g.resolver.Source().Revision()
	if v, ok := g.cache.Load(id); ok {
		if c := v.(*cachedConfig); c.revision == rev {
			return g.effective(c.set), nil
		}
	}

	v, err, _ := g.group.Do(id.flightKey(), func() (any, error) {
		if v, ok := g.cache.Load(id); ok {
			if c := v.(*cachedConfig); c.revision == rev {
				return c.set, nil
			}
		}
		set, err := g.build(id)
		if err != nil {
			return nil, err
		}
		g.cache.Store(id, &cachedConfig{revision: rev, set: set})
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return g.effective(v.(*ConfigSet)), nil
}

func (g *ConfigGroup) effective(set *ConfigSet) *ConfigSet {
	if set.UseDefault {
		return g.local
	}
	return set
}

func (g *ConfigGroup) build(id RuleIdentifier) (*ConfigSet, error) {
	m, ok, err := g.resolver.Resolve(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &ConfigSet{UseDefault: true}, nil
	}

	def := g.local.HalfOpen
	rec := m.Destination.Recover
	sleep := rec.SleepWindow
	if sleep <= 0 {
		sleep = def.SleepWindow
	}
	maxReq := rec.MaxRequestsAfterHalfOpen
	if maxReq <= 0 {
		maxReq = def.MaxRequests
	}
	success := rec.SuccessCountAfterHalfOpen
	if success <= 0 {
		success = def.SuccessCount
	}
	when := rec.WhenToDetect
	if when == "" {
		when = def.WhenToDetect
	}

	return &ConfigSet{
		Level:    m.Level(),
		HalfOpen: NewHalfOpenConfig(maxReq, success, sleep, when),
		Policy:   m.Destination.Policy.withDefaults(g.local.Policy),
		RuleName: m.Rule.Name,
	}, nil
}

// cached 返回缓存条目数，用于测试。
func (g *ConfigGroup) cached() int {
	n := 0
	g.cache.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
