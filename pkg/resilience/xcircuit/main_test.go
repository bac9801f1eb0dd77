package xcircuit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestMain 在所有测试完成后检测 goroutine 泄漏。
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testPlugin PluginID = "stub"

// stubState 测试用策略状态：记录每个维度的失败数与是否已 reset。
type stubState struct {
	*HalfOpenCounter

	mu     sync.Mutex
	fails  map[StatusDimension]int
	resets map[StatusDimension]int
}

func newStubState() *stubState {
	return &stubState{
		HalfOpenCounter: NewHalfOpenCounter(),
		fails:           make(map[StatusDimension]int),
		resets:          make(map[StatusDimension]int),
	}
}

func (s *stubState) Dimensions() []StatusDimension {
	s.mu.Lock()
	defer s.mu.Unlock()
	dims := make([]StatusDimension, 0, len(s.fails))
	for d := range s.fails {
		dims = append(dims, d)
	}
	return dims
}

func (s *stubState) ResetCounter(dim StatusDimension) {
	s.mu.Lock()
	s.fails[dim] = 0
	s.resets[dim]++
	s.mu.Unlock()
	s.ResetHalfOpen(dim)
}

func (s *stubState) failCount(dim StatusDimension) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fails[dim]
}

func (s *stubState) resetCount(dim StatusDimension) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets[dim]
}

// stubPolicy 连续失败数达到 PolicyConfig.ConsecutiveErrors 时打开。
type stubPolicy struct{}

func (stubPolicy) ID() PluginID          { return testPlugin }
func (stubPolicy) NewState() PolicyState { return newStubState() }

func (stubPolicy) Report(state PolicyState, dim StatusDimension, ret RetStatus, _ *ConfigSet, _ time.Time) {
	s := state.(*stubState)
	s.mu.Lock()
	defer s.mu.Unlock()
	if ret.IsFailure() {
		s.fails[dim]++
		return
	}
	s.fails[dim] = 0
}

func (stubPolicy) CloseToOpen(_ Instance, state PolicyState, dim StatusDimension, cfg *ConfigSet, _ time.Time) bool {
	return state.(*stubState).failCount(dim) >= cfg.Policy.ConsecutiveErrors
}

var _ Policy = stubPolicy{}

func defaultTestConfig() ConfigSet {
	return ConfigSet{
		Level:    LevelService,
		HalfOpen: NewHalfOpenConfig(3, 2, 5*time.Second, DetectOnRecover),
		Policy:   PolicyConfig{ConsecutiveErrors: 3},
	}
}

func newTestMachine(t *testing.T, sets ...RuleSet) *Machine {
	t.Helper()
	resolver, err := NewRuleResolver(NewStaticRuleSource(sets...))
	require.NoError(t, err)
	group, err := NewConfigGroup(defaultTestConfig(), resolver)
	require.NoError(t, err)
	m, err := NewMachine(stubPolicy{}, group)
	require.NoError(t, err)
	return m
}

func stateOf(t *testing.T, m *Machine, inst Instance) *stubState {
	t.Helper()
	st, ok := m.State(inst)
	require.True(t, ok)
	return st.(*stubState)
}
