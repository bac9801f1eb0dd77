package xcircuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	payment = ServiceKey{Namespace: "prod", Service: "payment"}
	order   = ServiceKey{Namespace: "prod", Service: "order"}
)

func newTestResolver(t *testing.T, sets ...RuleSet) *RuleResolver {
	t.Helper()
	r, err := NewRuleResolver(NewStaticRuleSource(sets...))
	require.NoError(t, err)
	return r
}

func TestNewRuleResolver_Errors(t *testing.T) {
	_, err := NewRuleResolver(nil)
	assert.ErrorIs(t, err, ErrNilRuleSource)

	_, err = NewRuleResolver(NewStaticRuleSource(), WithRegexCacheSize(0))
	assert.ErrorIs(t, err, ErrInvalidCacheSize)

	r, err := NewRuleResolver(NewStaticRuleSource(), nil, WithRegexCacheSize(8))
	require.NoError(t, err)
	assert.NotNil(t, r.Source())
}

func TestRuleResolver_MatchLevels(t *testing.T) {
	tests := []struct {
		name       string
		rule       Rule
		id         RuleIdentifier
		wantOK     bool
		wantLevel  MatchLevel
		wantSource bool
		wantMethod bool
	}{
		{
			name: "no sources with exact method",
			rule: Rule{
				Name: "pay",
				Destinations: []DestinationSet{{
					Namespace: "*", Service: "*",
					Method: &MatchString{Value: "/pay"},
				}},
			},
			id:         RuleIdentifier{Namespace: "prod", Service: "payment", Method: "/pay"},
			wantOK:     true,
			wantLevel:  LevelAllCaller,
			wantSource: true,
		},
		{
			name: "everything wildcard",
			rule: Rule{
				Name:         "all",
				Sources:      []SourceMatcher{{Namespace: "*", Service: "*"}},
				Destinations: []DestinationSet{{Namespace: "*", Service: "*", Method: &MatchString{Value: "*"}}},
			},
			id:         RuleIdentifier{Namespace: "prod", Service: "payment", Caller: order, Method: "/x"},
			wantOK:     true,
			wantLevel:  LevelService,
			wantSource: true,
			wantMethod: true,
		},
		{
			name: "specific caller any method",
			rule: Rule{
				Name:         "from-order",
				Sources:      []SourceMatcher{{Namespace: "prod", Service: "order"}},
				Destinations: []DestinationSet{{Namespace: "prod", Service: "payment"}},
			},
			id:         RuleIdentifier{Namespace: "prod", Service: "payment", Caller: order, Method: "/x"},
			wantOK:     true,
			wantLevel:  LevelAllMethod,
			wantMethod: true,
		},
		{
			name: "caller and method",
			rule: Rule{
				Name:         "order-pay",
				Sources:      []SourceMatcher{{Namespace: "*", Service: "order"}},
				Destinations: []DestinationSet{{Namespace: "prod", Service: "payment", Method: &MatchString{Type: MatchExact, Value: "/pay"}}},
			},
			id:        RuleIdentifier{Namespace: "prod", Service: "payment", Caller: order, Method: "/pay"},
			wantOK:    true,
			wantLevel: LevelCallerMethod,
		},
		{
			name: "caller mismatch",
			rule: Rule{
				Name:         "from-user",
				Sources:      []SourceMatcher{{Namespace: "prod", Service: "user"}},
				Destinations: []DestinationSet{{Namespace: "*", Service: "*"}},
			},
			id: RuleIdentifier{Namespace: "prod", Service: "payment", Caller: order},
		},
		{
			name: "method mismatch",
			rule: Rule{
				Name:         "pay",
				Destinations: []DestinationSet{{Namespace: "*", Service: "*", Method: &MatchString{Value: "/pay"}}},
			},
			id: RuleIdentifier{Namespace: "prod", Service: "payment", Method: "/refund"},
		},
		{
			name: "regex method",
			rule: Rule{
				Name:         "v1",
				Destinations: []DestinationSet{{Namespace: "prod", Service: "*", Method: &MatchString{Type: MatchRegex, Value: "^/v1/.*"}}},
			},
			id:         RuleIdentifier{Namespace: "prod", Service: "payment", Method: "/v1/charge"},
			wantOK:     true,
			wantLevel:  LevelAllCaller,
			wantSource: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(t, RuleSet{Namespace: "prod", Service: "payment", Inbounds: []Rule{tt.rule}})
			m, ok, err := r.Resolve(tt.id)
			require.NoError(t, err)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.rule.Name, m.Rule.Name)
			assert.Equal(t, tt.wantSource, m.MatchAllSource)
			assert.Equal(t, tt.wantMethod, m.MatchAllMethod)
			assert.Equal(t, tt.wantLevel, m.Level())
		})
	}
}

func TestRuleResolver_FirstMatchingRuleWins(t *testing.T) {
	r := newTestResolver(t, RuleSet{
		Namespace: "prod", Service: "payment",
		Inbounds: []Rule{
			{Name: "skip", Sources: []SourceMatcher{{Namespace: "test", Service: "*"}}, Destinations: []DestinationSet{{Namespace: "*", Service: "*"}}},
			{Name: "first", Destinations: []DestinationSet{{Namespace: "*", Service: "*", Method: &MatchString{Value: "/pay"}}}},
			{Name: "second", Destinations: []DestinationSet{{Namespace: "*", Service: "*"}}},
		},
	})

	m, ok, err := r.Resolve(RuleIdentifier{Namespace: "prod", Service: "payment", Caller: order, Method: "/pay"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", m.Rule.Name)

	m, ok, err = r.Resolve(RuleIdentifier{Namespace: "prod", Service: "payment", Caller: order, Method: "/refund"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", m.Rule.Name)
}

func TestRuleResolver_DestinationInboundsTakePrecedence(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockRuleSource(ctrl)

	src.EXPECT().Rules("prod", "payment").Return(&RuleSet{
		Namespace: "prod", Service: "payment",
		Inbounds: []Rule{{Name: "inbound", Destinations: []DestinationSet{{Namespace: "*", Service: "*"}}}},
	}, true)
	// 被调方规则非空时不应查询调用方
	src.EXPECT().Rules("prod", "order").Times(0)

	r, err := NewRuleResolver(src)
	require.NoError(t, err)

	m, ok, err := r.Resolve(RuleIdentifier{Namespace: "prod", Service: "payment", Caller: order})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "inbound", m.Rule.Name)
}

func TestRuleResolver_FallbackToCallerOutbounds(t *testing.T) {
	r := newTestResolver(t,
		RuleSet{Namespace: "prod", Service: "payment"},
		RuleSet{
			Namespace: "prod", Service: "order",
			Outbounds: []Rule{{Name: "outbound", Destinations: []DestinationSet{{Namespace: "prod", Service: "payment"}}}},
		},
	)

	m, ok, err := r.Resolve(RuleIdentifier{Namespace: "prod", Service: "payment", Caller: order})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "outbound", m.Rule.Name)

	// 没有调用方时无法回退
	_, ok, err = r.Resolve(RuleIdentifier{Namespace: "prod", Service: "payment"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRuleResolver_UnknownServices(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockRuleSource(ctrl)
	src.EXPECT().Rules(gomock.Any(), gomock.Any()).Return(nil, false).Times(2)

	r, err := NewRuleResolver(src)
	require.NoError(t, err)

	_, ok, err := r.Resolve(RuleIdentifier{Namespace: "prod", Service: "payment", Caller: order})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRuleResolver_UnsupportedMatchType(t *testing.T) {
	r := newTestResolver(t, RuleSet{
		Namespace: "prod", Service: "payment",
		Inbounds: []Rule{{
			Name:         "bad",
			Destinations: []DestinationSet{{Namespace: "*", Service: "*", Method: &MatchString{Type: "PREFIX", Value: "/p"}}},
		}},
	})

	_, _, err := r.Resolve(RuleIdentifier{Namespace: "prod", Service: "payment", Method: "/pay"})
	assert.ErrorIs(t, err, ErrUnsupportedMatchType)
}

func TestRuleResolver_RegexMatchesWholeMethod(t *testing.T) {
	r := newTestResolver(t, RuleSet{
		Namespace: "prod", Service: "payment",
		Inbounds: []Rule{{
			Name:         "pay",
			Destinations: []DestinationSet{{Namespace: "*", Service: "*", Method: &MatchString{Type: MatchRegex, Value: "/pay"}}},
		}},
	})

	tests := []struct {
		method string
		want   bool
	}{
		{"/pay", true},
		{"/payment", false},
		{"/api/payment/refund", false},
		{"/api/pay", false},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			_, ok, err := r.Resolve(RuleIdentifier{Namespace: "prod", Service: "payment", Method: tt.method})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestRuleResolver_UnsupportedMatchTypeWithWildcard(t *testing.T) {
	r := newTestResolver(t, RuleSet{
		Namespace: "prod", Service: "payment",
		Inbounds: []Rule{{
			Name:         "bad",
			Destinations: []DestinationSet{{Namespace: "*", Service: "*", Method: &MatchString{Type: "IN", Value: "*"}}},
		}},
	})

	_, ok, err := r.Resolve(RuleIdentifier{Namespace: "prod", Service: "payment", Method: "/pay"})
	assert.ErrorIs(t, err, ErrUnsupportedMatchType)
	assert.False(t, ok)
}

func TestRuleResolver_InvalidPattern(t *testing.T) {
	r := newTestResolver(t, RuleSet{
		Namespace: "prod", Service: "payment",
		Inbounds: []Rule{{
			Name:         "bad",
			Destinations: []DestinationSet{{Namespace: "*", Service: "*", Method: &MatchString{Type: MatchRegex, Value: "("}}},
		}},
	})

	_, _, err := r.Resolve(RuleIdentifier{Namespace: "prod", Service: "payment", Method: "/pay"})
	assert.ErrorIs(t, err, ErrInvalidPattern)
	assert.Zero(t, r.regexps.len())
}

func TestRegexCache_ConcurrentCompileOnce(t *testing.T) {
	c, err := newRegexCache(4)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			re, err := c.get(`/v\d+/.*`)
			assert.NoError(t, err)
			assert.True(t, re.MatchString("/v2/x"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, c.len())
	a, _ := c.get(`/v\d+/.*`)
	b, _ := c.get(`/v\d+/.*`)
	assert.Same(t, a, b)
}

func TestRegexCache_Eviction(t *testing.T) {
	c, err := newRegexCache(2)
	require.NoError(t, err)

	for _, p := range []string{"a", "b", "c"} {
		_, err := c.get(p)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.len())

	re, err := c.get("a")
	require.NoError(t, err)
	assert.True(t, re.MatchString("a"))
}

func TestMatchString_Validate(t *testing.T) {
	var nilMatch *MatchString
	assert.NoError(t, nilMatch.Validate())
	assert.NoError(t, (&MatchString{Value: "/a"}).Validate())
	assert.NoError(t, (&MatchString{Type: MatchRegex, Value: ".*"}).Validate())
	assert.ErrorIs(t, (&MatchString{Type: "GLOB"}).Validate(), ErrUnsupportedMatchType)
}

func TestRuleSet_Validate(t *testing.T) {
	good := RuleSet{
		Namespace: "prod", Service: "payment",
		Inbounds: []Rule{{Name: "ok", Destinations: []DestinationSet{{
			Namespace: "*", Service: "*",
			Recover: RecoverConfig{WhenToDetect: DetectAlways},
		}}}},
	}
	assert.NoError(t, good.Validate())

	badDetect := good
	badDetect.Outbounds = []Rule{{Name: "bad", Destinations: []DestinationSet{{Recover: RecoverConfig{WhenToDetect: "later"}}}}}
	assert.Error(t, badDetect.Validate())

	badType := RuleSet{Inbounds: []Rule{{Name: "bad", Destinations: []DestinationSet{{Method: &MatchString{Type: "X"}}}}}}
	assert.ErrorIs(t, badType.Validate(), ErrUnsupportedMatchType)
}
