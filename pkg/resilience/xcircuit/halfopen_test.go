package xcircuit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewHalfOpenConfig(t *testing.T) {
	tests := []struct {
		name        string
		maxRequests int
		success     int
		wantMax     int
		wantSuccess int
		wantFail    int
	}{
		{"normal", 10, 3, 10, 3, 8},
		{"success over budget", 5, 7, 5, 5, 1},
		{"success equals budget", 4, 4, 4, 4, 1},
		{"single probe", 1, 1, 1, 1, 1},
		{"zero values clamp to one", 0, 0, 1, 1, 1},
		{"negative success", 3, -1, 3, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewHalfOpenConfig(tt.maxRequests, tt.success, time.Second, DetectNever)
			assert.Equal(t, tt.wantMax, cfg.MaxRequests)
			assert.Equal(t, tt.wantSuccess, cfg.SuccessCount)
			assert.Equal(t, tt.wantFail, cfg.FailCount)
			assert.Equal(t, time.Second, cfg.SleepWindow)
			assert.Equal(t, DetectNever, cfg.WhenToDetect)
			// 两个阈值不能在探测预算内同时达到
			assert.Greater(t, cfg.SuccessCount+cfg.FailCount, cfg.MaxRequests)
		})
	}
}

func TestWhenToDetect_IsValid(t *testing.T) {
	assert.True(t, DetectNever.IsValid())
	assert.True(t, DetectOnRecover.IsValid())
	assert.True(t, DetectAlways.IsValid())
	assert.False(t, WhenToDetect("sometimes").IsValid())
	assert.False(t, WhenToDetect("").IsValid())
}

func TestHalfOpenCounter_TriggerExactlyOnce(t *testing.T) {
	cfg := NewHalfOpenConfig(10, 3, time.Second, DetectNever)
	c := NewHalfOpenCounter()
	dim := StatusDimension{Method: "/pay"}

	var fired []int
	for i := 1; i <= cfg.FailCount+5; i++ {
		if c.TriggerHalfOpenConversion(dim, RetFail, cfg) {
			fired = append(fired, i)
		}
	}
	assert.Equal(t, []int{cfg.FailCount}, fired)

	_, fail := c.Counts(dim)
	assert.Equal(t, cfg.FailCount+5, fail)
}

func TestHalfOpenCounter_TimeoutCountsAsFailure(t *testing.T) {
	cfg := NewHalfOpenConfig(2, 2, time.Second, DetectNever)
	c := NewHalfOpenCounter()
	dim := StatusDimension{}

	assert.True(t, c.TriggerHalfOpenConversion(dim, RetTimeout, cfg))
	success, fail := c.Counts(dim)
	assert.Zero(t, success)
	assert.Equal(t, 1, fail)
}

func TestHalfOpenCounter_SuccessThreshold(t *testing.T) {
	cfg := NewHalfOpenConfig(5, 2, time.Second, DetectNever)
	c := NewHalfOpenCounter()
	dim := StatusDimension{Method: "/a"}

	assert.False(t, c.TriggerHalfOpenConversion(dim, RetSuccess, cfg))
	assert.True(t, c.TriggerHalfOpenConversion(dim, RetSuccess, cfg))
	assert.False(t, c.TriggerHalfOpenConversion(dim, RetSuccess, cfg))
}

func TestHalfOpenCounter_IgnoresOtherOutcomes(t *testing.T) {
	cfg := NewHalfOpenConfig(1, 1, time.Second, DetectNever)
	c := NewHalfOpenCounter()
	dim := StatusDimension{}

	assert.False(t, c.TriggerHalfOpenConversion(dim, RetReject, cfg))
	success, fail := c.Counts(dim)
	assert.Zero(t, success)
	assert.Zero(t, fail)
	assert.Empty(t, c.Dimensions())
}

func TestHalfOpenCounter_ConcurrentTriggerFiresOnce(t *testing.T) {
	cfg := NewHalfOpenConfig(100, 1, time.Second, DetectNever)
	c := NewHalfOpenCounter()
	dim := StatusDimension{Method: "/hot"}

	var (
		wg    sync.WaitGroup
		fired atomic.Int32
	)
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				if c.TriggerHalfOpenConversion(dim, RetFail, cfg) {
					fired.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fired.Load())
	_, fail := c.Counts(dim)
	assert.Equal(t, 640, fail)
}

func TestHalfOpenCounter_ResetHalfOpen(t *testing.T) {
	cfg := NewHalfOpenConfig(3, 1, time.Second, DetectNever)
	c := NewHalfOpenCounter()
	dim := StatusDimension{Method: "/a"}

	c.TriggerHalfOpenConversion(dim, RetFail, cfg)
	c.TriggerHalfOpenConversion(dim, RetSuccess, cfg)
	c.ResetHalfOpen(dim)

	success, fail := c.Counts(dim)
	assert.Zero(t, success)
	assert.Zero(t, fail)

	// 重置后阈值可以再次触发
	c.TriggerHalfOpenConversion(dim, RetFail, cfg)
	c.TriggerHalfOpenConversion(dim, RetFail, cfg)
	assert.True(t, c.TriggerHalfOpenConversion(dim, RetFail, cfg))

	// 未记录过的维度重置是空操作
	c.ResetHalfOpen(StatusDimension{Method: "/other"})
	assert.Len(t, c.Dimensions(), 1)
}

func TestHalfOpenCounter_DimensionsIndependent(t *testing.T) {
	cfg := NewHalfOpenConfig(2, 2, time.Second, DetectNever)
	c := NewHalfOpenCounter()
	a := StatusDimension{Method: "/a"}
	b := StatusDimension{Method: "/b"}

	c.TriggerHalfOpenConversion(a, RetFail, cfg)
	assert.True(t, c.TriggerHalfOpenConversion(b, RetFail, cfg))
	assert.ElementsMatch(t, []StatusDimension{a, b}, c.Dimensions())
	assert.Same(t, c, c.HalfOpen())
}
