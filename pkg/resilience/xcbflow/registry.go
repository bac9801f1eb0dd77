package xcbflow

import (
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/omeyang/xcircuit/internal/shardmap"
	"github.com/omeyang/xcircuit/pkg/resilience/xcircuit"
)

// InstanceSource 提供参与评估的实例快照。
type InstanceSource interface {
	Snapshot() []xcircuit.Instance
}

type endpoint struct {
	namespace string
	service   string
	host      string
	port      uint32
}

func endpointOf(inst xcircuit.Instance) endpoint {
	return endpoint{
		namespace: inst.Namespace(),
		service:   inst.Service(),
		host:      inst.Host(),
		port:      inst.Port(),
	}
}

func hashEndpoint(e endpoint) uint64 {
	return shardmap.StringHash(e.namespace + "/" + e.service + "/" + e.host + ":" + strconv.FormatUint(uint64(e.port), 10))
}

// Registry 按端点 (namespace, service, host, port) 索引的实例集合。
//
// 替换同一端点的实例时沿用旧实例的 LocalValue；
// 实例被移除后其 LocalValue 随之丢弃。
// 写操作由 mu 串行化，读操作只走分片读锁。
type Registry struct {
	mu        sync.Mutex
	instances *shardmap.Map[endpoint, *xcircuit.BasicInstance]
}

// NewRegistry 创建空注册表。
func NewRegistry() *Registry {
	return &Registry{instances: shardmap.New[endpoint, *xcircuit.BasicInstance](shardmap.DefaultShards, hashEndpoint)}
}

// Upsert 加入或替换实例，返回实际存储的实例。
func (r *Registry) Upsert(inst *xcircuit.BasicInstance) *xcircuit.BasicInstance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upsertLocked(inst)
}

func (r *Registry) upsertLocked(inst *xcircuit.BasicInstance) *xcircuit.BasicInstance {
	key := endpointOf(inst)
	if old, ok := r.instances.Load(key); ok && old.LocalValue() != nil {
		inst = inst.WithLocalValue(old.LocalValue())
	} else if inst.LocalValue() == nil {
		inst = inst.WithLocalValue(xcircuit.NewLocalValue())
	}
	r.instances.Store(key, inst)
	return inst
}

// Replace 用 instances 整体替换某个服务的实例列表，对应一次服务发现刷新。
// 仍然存在的端点沿用原有 LocalValue，不再存在的端点被移除。
// instances 中的 nil 以及不属于该服务的实例被忽略。
func (r *Registry) Replace(service xcircuit.ServiceKey, instances []*xcircuit.BasicInstance) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keep := make(map[endpoint]struct{}, len(instances))
	for _, inst := range instances {
		if inst == nil || inst.Namespace() != service.Namespace || inst.Service() != service.Service {
			continue
		}
		r.upsertLocked(inst)
		keep[endpointOf(inst)] = struct{}{}
	}

	var stale []endpoint
	r.instances.Range(func(key endpoint, _ *xcircuit.BasicInstance) bool {
		if key.namespace != service.Namespace || key.service != service.Service {
			return true
		}
		if _, ok := keep[key]; !ok {
			stale = append(stale, key)
		}
		return true
	})
	for _, key := range stale {
		r.instances.Delete(key)
	}
}

// Get 按端点查找实例。
func (r *Registry) Get(namespace, service, host string, port uint32) (*xcircuit.BasicInstance, bool) {
	return r.instances.Load(endpoint{namespace: namespace, service: service, host: host, port: port})
}

// Remove 移除实例，返回是否存在。
func (r *Registry) Remove(inst xcircuit.Instance) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instances.Delete(endpointOf(inst))
}

// Len 返回实例数。
func (r *Registry) Len() int {
	return r.instances.Len()
}

// Snapshot 实现 InstanceSource，按实例标识排序。
func (r *Registry) Snapshot() []xcircuit.Instance {
	out := make([]xcircuit.Instance, 0, r.instances.Len())
	r.instances.Range(func(_ endpoint, inst *xcircuit.BasicInstance) bool {
		out = append(out, inst)
		return true
	})

	slices.SortFunc(out, func(a, b xcircuit.Instance) int {
		return strings.Compare(xcircuit.InstanceID(a), xcircuit.InstanceID(b))
	})
	return out
}

var _ InstanceSource = (*Registry)(nil)
