package xcircuit

import "fmt"

// InstanceDimension 结果桶的键。
type InstanceDimension struct {
	InstanceID string
	Dimension  StatusDimension
}

// Result 一次批量评估的结果，按目标状态分桶。
type Result struct {
	ToOpen     map[InstanceDimension]Instance
	ToHalfOpen map[InstanceDimension]Instance
	ToClose    map[InstanceDimension]Instance
}

func newResult() *Result {
	return &Result{
		ToOpen:     make(map[InstanceDimension]Instance),
		ToHalfOpen: make(map[InstanceDimension]Instance),
		ToClose:    make(map[InstanceDimension]Instance),
	}
}

// Len 返回迁移总数。
func (r *Result) Len() int {
	return len(r.ToOpen) + len(r.ToHalfOpen) + len(r.ToClose)
}

// Empty 报告是否没有任何迁移。
func (r *Result) Empty() bool {
	return r.Len() == 0
}

type transitionFunc func(Instance, StatusDimension, Parameter) (bool, error)

// BuildResult 对实例快照做一次评估。
//
// 每个维度按固定优先级依次检查 CloseToOpen、OpenToHalfOpen、HalfOpenToOpen、
// HalfOpenToClose，第一个成立的迁移生效，其余不再检查。
// 未实现 HasLocalValue 的实例被跳过。
// 规则数据契约错误会中止本次评估并返回错误。
func BuildResult(m *Machine, instances []Instance, p Parameter) (*Result, error) {
	if m == nil {
		return nil, ErrNilMachine
	}
	res := newResult()
	checks := [...]struct {
		fn     transitionFunc
		bucket map[InstanceDimension]Instance
	}{
		{m.CloseToOpen, res.ToOpen},
		{m.OpenToHalfOpen, res.ToHalfOpen},
		{m.HalfOpenToOpen, res.ToOpen},
		{m.HalfOpenToClose, res.ToClose},
	}

	for _, inst := range instances {
		if _, ok := LocalValueOf(inst); !ok {
			continue
		}
		id := InstanceID(inst)
		for _, dim := range m.StatusDimensions(inst) {
			for _, c := range checks {
				fired, err := c.fn(inst, dim, p)
				if err != nil {
					return nil, fmt.Errorf("xcircuit: evaluate %s [%s]: %w", id, dim, err)
				}
				if fired {
					c.bucket[InstanceDimension{InstanceID: id, Dimension: dim}] = inst
					break
				}
			}
		}
	}
	return res, nil
}
