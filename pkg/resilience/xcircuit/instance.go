package xcircuit

import (
	"net"
	"strconv"
	"sync/atomic"

	"github.com/omeyang/xcircuit/internal/shardmap"
)

// PluginID 熔断策略插件标识，在策略注册时分配，同时作为熔断器名称。
type PluginID string

// Instance 下游服务实例（只读）。
type Instance interface {
	Namespace() string
	Service() string
	Host() string
	Port() uint32
	// ID 实例唯一标识，为空时使用 namespace/service/host:port。
	ID() string
}

// HasLocalValue 能够提供实例本地状态的实例。
//
// 任何实例表示都可以实现此接口接入熔断，
// 未实现的实例不参与熔断统计与评估。
type HasLocalValue interface {
	LocalValue() *LocalValue
}

// InstanceID 返回实例标识。
func InstanceID(inst Instance) string {
	if id := inst.ID(); id != "" {
		return id
	}
	return inst.Namespace() + "/" + inst.Service() + "/" +
		net.JoinHostPort(inst.Host(), strconv.FormatUint(uint64(inst.Port()), 10))
}

// LocalValueOf 取出实例本地状态。
func LocalValueOf(inst Instance) (*LocalValue, bool) {
	if inst == nil {
		return nil, false
	}
	h, ok := inst.(HasLocalValue)
	if !ok {
		return nil, false
	}
	lv := h.LocalValue()
	return lv, lv != nil
}

// 插件数通常只有个位数。
const pluginShards = 4

func hashPluginID(id PluginID) uint64 {
	return shardmap.StringHash(string(id))
}

// LocalValue 实例独占的本地状态。
//
// 实例首次加载时创建，实例从注册表移除时销毁。
// 同一端点的实例被替换时必须沿用旧的 LocalValue，否则计数会丢失。
type LocalValue struct {
	statuses *shardmap.Map[StatusDimension, CircuitBreakerStatus]
	detect   atomic.Pointer[DetectResult]
	plugins  *shardmap.Map[PluginID, PolicyState]
}

// NewLocalValue 创建实例本地状态。
func NewLocalValue() *LocalValue {
	return &LocalValue{
		statuses: shardmap.New[StatusDimension, CircuitBreakerStatus](shardmap.DefaultShards, hashDimension),
		plugins:  shardmap.New[PluginID, PolicyState](pluginShards, hashPluginID),
	}
}

// Status 返回维度上的熔断状态。
func (v *LocalValue) Status(dim StatusDimension) (CircuitBreakerStatus, bool) {
	return v.statuses.Load(dim)
}

// SetStatus 替换维度上的熔断状态。
func (v *LocalValue) SetStatus(dim StatusDimension, status CircuitBreakerStatus) {
	v.statuses.Store(dim, status)
}

// StatusDimensions 返回所有记录过状态的维度。
func (v *LocalValue) StatusDimensions() []StatusDimension {
	return v.statuses.Keys()
}

// DetectResult 返回最新的主动探测结果。
func (v *LocalValue) DetectResult() (DetectResult, bool) {
	r := v.detect.Load()
	if r == nil {
		return DetectResult{}, false
	}
	return *r, true
}

// SetDetectResult 记录主动探测结果。
func (v *LocalValue) SetDetectResult(r DetectResult) {
	v.detect.Store(&r)
}

// PluginValue 返回策略插件的状态，不存在时调用 create 创建。
// 同一插件只创建一次，状态在实例生命周期内不会被移除。
func (v *LocalValue) PluginValue(id PluginID, create func() PolicyState) PolicyState {
	st, _ := v.plugins.LoadOrCompute(id, create)
	return st
}

// BasicInstance Instance 与 HasLocalValue 的基础实现。
type BasicInstance struct {
	namespace string
	service   string
	host      string
	port      uint32
	id        string
	local     *LocalValue
}

// NewInstance 创建实例并分配新的 LocalValue。
func NewInstance(namespace, service, host string, port uint32) *BasicInstance {
	return &BasicInstance{
		namespace: namespace,
		service:   service,
		host:      host,
		port:      port,
		local:     NewLocalValue(),
	}
}

// WithID 返回指定 ID 的副本。
func (i *BasicInstance) WithID(id string) *BasicInstance {
	c := *i
	c.id = id
	return &c
}

// WithLocalValue 返回使用指定 LocalValue 的副本，用于实例替换时沿用状态。
func (i *BasicInstance) WithLocalValue(lv *LocalValue) *BasicInstance {
	c := *i
	c.local = lv
	return &c
}

func (i *BasicInstance) Namespace() string       { return i.namespace }
func (i *BasicInstance) Service() string         { return i.service }
func (i *BasicInstance) Host() string            { return i.host }
func (i *BasicInstance) Port() uint32            { return i.port }
func (i *BasicInstance) ID() string              { return i.id }
func (i *BasicInstance) LocalValue() *LocalValue { return i.local }

var (
	_ Instance      = (*BasicInstance)(nil)
	_ HasLocalValue = (*BasicInstance)(nil)
)
