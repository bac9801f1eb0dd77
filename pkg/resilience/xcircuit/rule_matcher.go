package xcircuit

import (
	"fmt"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultRegexCacheSize 正则缓存默认容量。
const DefaultRegexCacheSize = 1024

// Match 规则匹配结果。
type Match struct {
	Rule           *Rule
	Destination    *DestinationSet
	MatchAllSource bool
	MatchAllMethod bool
}

// Level 返回匹配级别。
func (m Match) Level() MatchLevel {
	return LevelOf(m.MatchAllSource, m.MatchAllMethod)
}

// ResolverOption 解析器配置选项。
type ResolverOption func(*resolverOptions)

type resolverOptions struct {
	regexCacheSize int
}

// WithRegexCacheSize 设置正则缓存容量。
//
// 缓存按 LRU 淘汰，淘汰只会导致重新编译，不影响匹配结果。
func WithRegexCacheSize(n int) ResolverOption {
	return func(o *resolverOptions) {
		o.regexCacheSize = n
	}
}

// RuleResolver 熔断规则解析器。
type RuleResolver struct {
	source  RuleSource
	regexps *regexCache
}

// NewRuleResolver 创建规则解析器。
func NewRuleResolver(source RuleSource, opts ...ResolverOption) (*RuleResolver, error) {
	if source == nil {
		return nil, ErrNilRuleSource
	}
	o := &resolverOptions{regexCacheSize: DefaultRegexCacheSize}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	cache, err := newRegexCache(o.regexCacheSize)
	if err != nil {
		return nil, err
	}
	return &RuleResolver{source: source, regexps: cache}, nil
}

// Source 返回规则源。
func (r *RuleResolver) Source() RuleSource {
	return r.source
}

// Resolve 为 id 查找第一条同时满足调用方与被调方匹配的规则。
//
// 优先使用被调服务的入向规则，为空时回退到调用服务的出向规则。
// 无匹配时返回 (Match{}, false, nil)，调用方应使用默认配置。
// 规则中出现无法识别的匹配类型时返回 ErrUnsupportedMatchType。
func (r *RuleResolver) Resolve(id RuleIdentifier) (Match, bool, error) {
	rules := r.candidates(id)
	for i := range rules {
		rule := &rules[i]
		allSource, ok := matchSource(rule.Sources, id.Caller)
		if !ok {
			continue
		}
		dst, allMethod, ok, err := r.matchDestination(rule.Destinations, id)
		if err != nil {
			return Match{}, false, fmt.Errorf("rule %q: %w", rule.Name, err)
		}
		if !ok {
			continue
		}
		return Match{
			Rule:           rule,
			Destination:    dst,
			MatchAllSource: allSource,
			MatchAllMethod: allMethod,
		}, true, nil
	}
	return Match{}, false, nil
}

func (r *RuleResolver) candidates(id RuleIdentifier) []Rule {
	if set, ok := r.source.Rules(id.Namespace, id.Service); ok && set != nil && len(set.Inbounds) > 0 {
		return set.Inbounds
	}
	if id.Caller.IsZero() {
		return nil
	}
	if set, ok := r.source.Rules(id.Caller.Namespace, id.Caller.Service); ok && set != nil {
		return set.Outbounds
	}
	return nil
}

// matchSource 未声明调用方条件时匹配所有调用方。
// 返回值 all 表示命中的是全通配条件。
func matchSource(sources []SourceMatcher, caller ServiceKey) (all, ok bool) {
	if len(sources) == 0 {
		return true, true
	}
	for _, s := range sources {
		if s.matchAll() {
			return true, true
		}
		if matchField(s.Namespace, caller.Namespace) && matchField(s.Service, caller.Service) {
			return false, true
		}
	}
	return false, false
}

func (r *RuleResolver) matchDestination(dsts []DestinationSet, id RuleIdentifier) (*DestinationSet, bool, bool, error) {
	for i := range dsts {
		dst := &dsts[i]
		if !matchField(dst.Namespace, id.Namespace) || !matchField(dst.Service, id.Service) {
			continue
		}
		// 类型先于通配检查，未知类型即使值为 "*" 也报错
		if err := dst.Method.Validate(); err != nil {
			return nil, false, false, err
		}
		if dst.Method.matchesAll() {
			return dst, true, true, nil
		}
		ok, err := r.matchMethod(dst.Method, id.Method)
		if err != nil {
			return nil, false, false, err
		}
		if ok {
			return dst, false, true, nil
		}
	}
	return nil, false, false, nil
}

func (r *RuleResolver) matchMethod(m *MatchString, method string) (bool, error) {
	switch m.Type {
	case "", MatchExact:
		return m.Value == method, nil
	case MatchRegex:
		re, err := r.regexps.get(m.Value)
		if err != nil {
			return false, err
		}
		return re.MatchString(method), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnsupportedMatchType, m.Type)
	}
}

func matchField(pattern, value string) bool {
	return pattern == MatchAll || pattern == value
}

// regexCache 按模式串缓存编译结果，未命中时同一模式只编译一次。
//
// 模式按整串匹配编译，"/pay" 不会命中 "/payment"。
type regexCache struct {
	cache *lru.Cache[string, *regexp.Regexp]
	group singleflight.Group
}

func newRegexCache(size int) (*regexCache, error) {
	if size <= 0 {
		return nil, ErrInvalidCacheSize
	}
	c, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		return nil, fmt.Errorf("xcircuit: create regex cache: %w", err)
	}
	return &regexCache{cache: c}, nil
}

func (c *regexCache) get(pattern string) (*regexp.Regexp, error) {
	if re, ok := c.cache.Get(pattern); ok {
		return re, nil
	}
	v, err, _ := c.group.Do(pattern, func() (any, error) {
		if re, ok := c.cache.Get(pattern); ok {
			return re, nil
		}
		re, err := regexp.Compile(`^(?:` + pattern + `)$`)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPattern, pattern, err)
		}
		c.cache.Add(pattern, re)
		return re, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*regexp.Regexp), nil
}

func (c *regexCache) len() int {
	return c.cache.Len()
}
