package xcircuit

import (
	"sync"
	"sync/atomic"
)

// RuleSource 规则获取接口。
//
// 实现方负责缓存与一致性，本包只消费"当前已知的最新规则或空"，
// 从不阻塞等待更新的数据。
type RuleSource interface {
	// Rules 返回服务的熔断规则，未知服务返回 (nil, false)。
	Rules(namespace, service string) (*RuleSet, bool)

	// Revision 规则版本号，任何规则变化都会使其变化。
	Revision() uint64
}

// StaticRuleSource 内存规则源，并发安全。
type StaticRuleSource struct {
	mu       sync.RWMutex
	sets     map[ServiceKey]*RuleSet
	revision atomic.Uint64
}

// NewStaticRuleSource 创建内存规则源。
func NewStaticRuleSource(sets ...RuleSet) *StaticRuleSource {
	s := &StaticRuleSource{sets: make(map[ServiceKey]*RuleSet, len(sets))}
	for i := range sets {
		set := sets[i]
		s.sets[set.Key()] = &set
	}
	return s
}

// Rules 实现 RuleSource。
func (s *StaticRuleSource) Rules(namespace, service string) (*RuleSet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[ServiceKey{Namespace: namespace, Service: service}]
	return set, ok
}

// Revision 实现 RuleSource。
func (s *StaticRuleSource) Revision() uint64 {
	return s.revision.Load()
}

// Put 写入或替换服务规则。
func (s *StaticRuleSource) Put(set RuleSet) {
	s.mu.Lock()
	s.sets[set.Key()] = &set
	s.mu.Unlock()
	s.revision.Add(1)
}

// Delete 删除服务规则。
func (s *StaticRuleSource) Delete(namespace, service string) {
	s.mu.Lock()
	delete(s.sets, ServiceKey{Namespace: namespace, Service: service})
	s.mu.Unlock()
	s.revision.Add(1)
}

var _ RuleSource = (*StaticRuleSource)(nil)
