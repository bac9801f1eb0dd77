package xcircuit

import "time"

// Parameter 一次状态迁移判定的参数。
type Parameter struct {
	// BreakerName 发起判定的熔断器名称，只处理本熔断器写入的状态。
	BreakerName string
	// Now 判定时刻。
	Now time.Time
}

// PolicyState 策略在单个实例上的统计状态，存放在 LocalValue 中。
type PolicyState interface {
	// HalfOpen 返回半开计数器。
	HalfOpen() *HalfOpenCounter

	// Dimensions 返回有统计记录的维度。
	Dimensions() []StatusDimension

	// ResetCounter 熔断关闭时完全重置维度的统计，包括半开计数。
	ResetCounter(dim StatusDimension)
}

// Policy 熔断策略：唯一的策略相关判定是"现在是否应该打开"。
//
// OPEN/HALF_OPEN 相关迁移由 Machine 统一实现。
type Policy interface {
	// ID 策略插件标识，同时作为熔断器名称。
	ID() PluginID

	// NewState 创建实例上的统计状态。
	NewState() PolicyState

	// Report 记录一次调用结果。
	Report(state PolicyState, dim StatusDimension, ret RetStatus, cfg *ConfigSet, now time.Time)

	// CloseToOpen 判断累积的错误统计是否应当打开熔断。
	CloseToOpen(inst Instance, state PolicyState, dim StatusDimension, cfg *ConfigSet, now time.Time) bool
}

// Machine 熔断状态迁移引擎，每个策略一个。
type Machine struct {
	policy  Policy
	configs *ConfigGroup
}

// NewMachine 创建状态迁移引擎。
func NewMachine(policy Policy, configs *ConfigGroup) (*Machine, error) {
	if policy == nil {
		return nil, ErrNilPolicy
	}
	if configs == nil {
		return nil, ErrNilConfigGroup
	}
	return &Machine{policy: policy, configs: configs}, nil
}

// Name 返回熔断器名称。
func (m *Machine) Name() string {
	return string(m.policy.ID())
}

// Policy 返回策略。
func (m *Machine) Policy() Policy {
	return m.policy
}

// Configs 返回配置组。
func (m *Machine) Configs() *ConfigGroup {
	return m.configs
}

// Parameter 返回以本熔断器名称构造的判定参数。
func (m *Machine) Parameter(now time.Time) Parameter {
	return Parameter{BreakerName: m.Name(), Now: now}
}

// State 返回实例上的策略状态，不存在时创建。实例未实现 HasLocalValue 时返回 false。
func (m *Machine) State(inst Instance) (PolicyState, bool) {
	_, st, ok := m.local(inst)
	return st, ok
}

func (m *Machine) local(inst Instance) (*LocalValue, PolicyState, bool) {
	lv, ok := LocalValueOf(inst)
	if !ok {
		return nil, nil, false
	}
	return lv, lv.PluginValue(m.policy.ID(), m.policy.NewState), true
}

// Dimension 按 id 命中规则的匹配级别得到状态维度，并返回该维度的配置。
//
// 返回的配置与评估时 Config(inst, dim) 得到的一致：维度丢弃了调用方时，
// 调用方的出向规则不再适用，回退到默认配置。
func (m *Machine) Dimension(id RuleIdentifier) (StatusDimension, *ConfigSet, error) {
	matched, err := m.configs.ServiceConfig(id)
	if err != nil {
		return StatusDimension{}, nil, err
	}
	dim := NewStatusDimension(matched.Level, id.Method, id.Caller)
	cfg, err := m.configs.ServiceConfig(dim.ruleIdentifier(id.Namespace, id.Service))
	if err != nil {
		return StatusDimension{}, nil, err
	}
	return dim, cfg, nil
}

// Config 返回实例某维度的配置。
func (m *Machine) Config(inst Instance, dim StatusDimension) (*ConfigSet, error) {
	return m.configs.ServiceConfig(dim.ruleIdentifier(inst.Namespace(), inst.Service()))
}

// StatusDimensions 返回需要评估的维度：策略有统计记录的维度，
// 加上本熔断器写入过状态的维度。
func (m *Machine) StatusDimensions(inst Instance) []StatusDimension {
	lv, st, ok := m.local(inst)
	if !ok {
		return nil
	}
	dims := st.Dimensions()
	seen := make(map[StatusDimension]struct{}, len(dims))
	for _, d := range dims {
		seen[d] = struct{}{}
	}
	for _, d := range lv.StatusDimensions() {
		if _, ok := seen[d]; ok {
			continue
		}
		if s, ok := lv.Status(d); ok && s.Name == m.Name() {
			seen[d] = struct{}{}
			dims = append(dims, d)
		}
	}
	return dims
}

// CloseToOpen 维度处于 CLOSE（或尚无状态）时，交由策略判断是否打开。
func (m *Machine) CloseToOpen(inst Instance, dim StatusDimension, p Parameter) (bool, error) {
	lv, st, ok := m.local(inst)
	if !ok {
		return false, nil
	}
	if s, ok := lv.Status(dim); ok && s.Status != StatusClose {
		return false, nil
	}
	cfg, err := m.Config(inst, dim)
	if err != nil {
		return false, err
	}
	return m.policy.CloseToOpen(inst, st, dim, cfg, p.Now), nil
}

// OpenToHalfOpen 本熔断器的 OPEN 状态满足以下任一条件时进入 HALF_OPEN：
// 主动探测成功且允许使用探测结果；或已持续至少一个睡眠窗口。
// 迁移时清零半开计数。
func (m *Machine) OpenToHalfOpen(inst Instance, dim StatusDimension, p Parameter) (bool, error) {
	lv, st, ok := m.local(inst)
	if !ok {
		return false, nil
	}
	s, ok := lv.Status(dim)
	if !ok || s.Status != StatusOpen || s.Name != p.BreakerName {
		return false, nil
	}
	cfg, err := m.Config(inst, dim)
	if err != nil {
		return false, err
	}

	detect, ok := lv.DetectResult()
	detectSuccess := ok && detect.Success
	if (detectSuccess && cfg.HalfOpen.WhenToDetect != DetectNever) ||
		p.Now.Sub(s.StartTime) >= cfg.HalfOpen.SleepWindow {
		st.HalfOpen().ResetHalfOpen(dim)
		return true, nil
	}
	return false, nil
}

// HalfOpenToOpen 半开失败数达到阈值时重新打开。不重置计数，
// 下一次 OpenToHalfOpen 会清零。
func (m *Machine) HalfOpenToOpen(inst Instance, dim StatusDimension, p Parameter) (bool, error) {
	st, cfg, ok, err := m.halfOpen(inst, dim, p)
	if !ok || err != nil {
		return false, err
	}
	_, fail := st.HalfOpen().Counts(dim)
	return fail >= cfg.HalfOpen.FailCount, nil
}

// HalfOpenToClose 半开成功数达到阈值时关闭，并完全重置统计。
func (m *Machine) HalfOpenToClose(inst Instance, dim StatusDimension, p Parameter) (bool, error) {
	st, cfg, ok, err := m.halfOpen(inst, dim, p)
	if !ok || err != nil {
		return false, err
	}
	success, _ := st.HalfOpen().Counts(dim)
	if success >= cfg.HalfOpen.SuccessCount {
		st.ResetCounter(dim)
		return true, nil
	}
	return false, nil
}

func (m *Machine) halfOpen(inst Instance, dim StatusDimension, p Parameter) (PolicyState, *ConfigSet, bool, error) {
	lv, st, ok := m.local(inst)
	if !ok {
		return nil, nil, false, nil
	}
	s, ok := lv.Status(dim)
	if !ok || s.Status != StatusHalfOpen || s.Name != p.BreakerName {
		return nil, nil, false, nil
	}
	cfg, err := m.Config(inst, dim)
	if err != nil {
		return nil, nil, false, err
	}
	return st, cfg, true, nil
}
