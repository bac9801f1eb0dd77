package xbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/xcircuit/pkg/resilience/xcircuit"
)

// Counts 统计计数，用于熔断判定。
type Counts = gobreaker.Counts

// errCallFailed 上报给 gobreaker 的失败标记。
var errCallFailed = errors.New("xbreaker: call failed")

// newCounter 创建只计数、永不打开的 gobreaker。
//
// Interval 为 0 时 gobreaker 在关闭态不清零计数，
// 窗口滚动由 window 按注入的时钟控制。
func newCounter() *gobreaker.TwoStepCircuitBreaker[struct{}] {
	return gobreaker.NewTwoStepCircuitBreaker[struct{}](gobreaker.Settings{
		ReadyToTrip: NewNeverTrip().ReadyToTrip,
	})
}

// window 单个维度的计数窗口。span 为 0 表示不滚动。
type window struct {
	mu    sync.Mutex
	cb    *gobreaker.TwoStepCircuitBreaker[struct{}]
	start time.Time
}

func (w *window) expired(now time.Time, span time.Duration) bool {
	return span > 0 && !w.start.IsZero() && now.Sub(w.start) >= span
}

// record 记录一次调用结果，窗口过期时先换一个新计数器。被拒绝的调用不计数。
func (w *window) record(ret xcircuit.RetStatus, now time.Time, span time.Duration) {
	if ret == xcircuit.RetReject {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cb == nil || w.expired(now, span) {
		w.cb = newCounter()
		w.start = now
	}
	done, err := w.cb.Allow()
	if err != nil {
		// NeverTrip 下不会出现
		return
	}
	if ret.IsFailure() {
		done(errCallFailed)
		return
	}
	done(nil)
}

// snapshot 返回当前窗口的计数，窗口已过期时返回零值。
func (w *window) snapshot(now time.Time, span time.Duration) Counts {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cb == nil || w.expired(now, span) {
		return Counts{}
	}
	return w.cb.Counts()
}

func (w *window) clear() {
	w.mu.Lock()
	w.cb = nil
	w.start = time.Time{}
	w.mu.Unlock()
}

// countsState 实例上的策略状态：按维度的计数窗口加半开计数。
type countsState struct {
	*xcircuit.HalfOpenCounter

	windows sync.Map // xcircuit.StatusDimension -> *window
}

func newCountsState() *countsState {
	return &countsState{HalfOpenCounter: xcircuit.NewHalfOpenCounter()}
}

func (s *countsState) window(dim xcircuit.StatusDimension) *window {
	if v, ok := s.windows.Load(dim); ok {
		return v.(*window)
	}
	v, _ := s.windows.LoadOrStore(dim, &window{})
	return v.(*window)
}

// windowCounts 返回维度当前窗口的计数。
func (s *countsState) windowCounts(dim xcircuit.StatusDimension, now time.Time, span time.Duration) Counts {
	v, ok := s.windows.Load(dim)
	if !ok {
		return Counts{}
	}
	return v.(*window).snapshot(now, span)
}

// Dimensions 实现 xcircuit.PolicyState。
func (s *countsState) Dimensions() []xcircuit.StatusDimension {
	var dims []xcircuit.StatusDimension
	s.windows.Range(func(k, _ any) bool {
		dims = append(dims, k.(xcircuit.StatusDimension))
		return true
	})
	return dims
}

// ResetCounter 实现 xcircuit.PolicyState，清空窗口与半开计数。
func (s *countsState) ResetCounter(dim xcircuit.StatusDimension) {
	if v, ok := s.windows.Load(dim); ok {
		v.(*window).clear()
	}
	s.ResetHalfOpen(dim)
}

var _ xcircuit.PolicyState = (*countsState)(nil)
