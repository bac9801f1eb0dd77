package shardmap

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultShards 默认分片数。
const DefaultShards = 16

// HashFunc 计算 key 的 64 位哈希。
type HashFunc[K comparable] func(K) uint64

// Map 分片并发 map。零值不可用，使用 [New] 创建。
type Map[K comparable, V any] struct {
	shards []shard[K, V]
	mask   uint64
	hash   HashFunc[K]
}

type shard[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

// New 创建分片 map。
// count 会向上取整为 2 的幂，<= 0 时使用 DefaultShards。
func New[K comparable, V any](count int, hash HashFunc[K]) *Map[K, V] {
	if count <= 0 {
		count = DefaultShards
	}
	n := 1
	for n < count {
		n <<= 1
	}
	shards := make([]shard[K, V], n)
	for i := range shards {
		shards[i].entries = make(map[K]V)
	}
	return &Map[K, V]{
		shards: shards,
		mask:   uint64(n - 1),
		hash:   hash,
	}
}

// StringHash 使用 xxhash 计算字符串哈希。
func StringHash(s string) uint64 {
	return xxhash.Sum64String(s)
}

func (m *Map[K, V]) shardFor(key K) *shard[K, V] {
	return &m.shards[m.hash(key)&m.mask]
}

// Load 读取 key 对应的值。
func (m *Map[K, V]) Load(key K) (V, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	v, ok := s.entries[key]
	s.mu.RUnlock()
	return v, ok
}

// Store 写入 key 对应的值，覆盖旧值。
func (m *Map[K, V]) Store(key K, value V) {
	s := m.shardFor(key)
	s.mu.Lock()
	s.entries[key] = value
	s.mu.Unlock()
}

// LoadOrCompute 返回已存在的值；不存在时调用 fn 生成并写入。
// fn 在分片锁内执行，同一 key 只会被计算一次。fn 不能访问同一个 Map。
func (m *Map[K, V]) LoadOrCompute(key K, fn func() V) (actual V, loaded bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	v, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		return v, true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok = s.entries[key]; ok {
		return v, true
	}
	v = fn()
	s.entries[key] = v
	return v, false
}

// Delete 删除 key，返回 key 是否存在。
func (m *Map[K, V]) Delete(key K) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	s.mu.Unlock()
	return ok
}

// Len 返回条目总数。并发写入时结果是近似值。
func (m *Map[K, V]) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// Keys 返回所有 key 的快照，顺序不确定。
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.Len())
	m.Range(func(k K, _ V) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Range 逐个分片遍历，fn 返回 false 时停止。
// 遍历期间持有当前分片读锁，fn 内不得写入同一个 Map。
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		for k, v := range s.entries {
			if !fn(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}
