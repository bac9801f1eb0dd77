package xcbflow

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/xcircuit/pkg/resilience/xcbconf"
	"github.com/omeyang/xcircuit/pkg/resilience/xcircuit"
)

// TestMain 在所有测试完成后检测 goroutine 泄漏（Start 会启动 cron 调度 goroutine）。
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// testConfig 连续 3 次失败熔断；半开 3 次探测，2 次成功恢复、2 次失败重新熔断。
func testConfig(t *testing.T) *xcbconf.Config {
	t.Helper()
	cfg, err := xcbconf.LoadBytes([]byte(`
chain: [errorCount]
sleep_window: 10s
request_count_after_half_open: 3
success_count_after_half_open: 2
error_count: {continuous_error_threshold: 3}
`), xcbconf.FormatYAML)
	require.NoError(t, err)
	return cfg
}

type fixture struct {
	flow  *Flow
	reg   *Registry
	clock *fakeClock
	rules *xcircuit.StaticRuleSource
	inst  *xcircuit.BasicInstance
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	rules := xcircuit.NewStaticRuleSource()
	machines, err := NewMachines(testConfig(t), rules)
	require.NoError(t, err)

	clock := newFakeClock()
	reg := NewRegistry()
	inst := reg.Upsert(xcircuit.NewInstance("prod", "payment", "10.0.0.1", 8080))

	flow, err := New(reg, machines, append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	return &fixture{flow: flow, reg: reg, clock: clock, rules: rules, inst: inst}
}

func (fx *fixture) report(t *testing.T, ret xcircuit.RetStatus, n int) {
	t.Helper()
	for range n {
		require.NoError(t, fx.flow.Report(t.Context(), fx.inst, Call{Method: "/pay", Ret: ret}))
	}
}

// status 返回 SERVICE 级别维度上的状态。
func (fx *fixture) status() (xcircuit.CircuitBreakerStatus, bool) {
	return fx.inst.LocalValue().Status(xcircuit.StatusDimension{})
}
