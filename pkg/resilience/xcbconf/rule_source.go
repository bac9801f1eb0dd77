package xcbconf

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"

	"github.com/omeyang/xcircuit/pkg/resilience/xcircuit"
)

// DefaultDebounce 文件变化的默认防抖时间。
const DefaultDebounce = 100 * time.Millisecond

// ruleFile 规则文件结构。
type ruleFile struct {
	Services []xcircuit.RuleSet `koanf:"services"`
}

type ruleSnapshot struct {
	sets   map[xcircuit.ServiceKey]*xcircuit.RuleSet
	digest uint64
}

// FileRuleSource 从 YAML/JSON 文件加载熔断规则，实现 xcircuit.RuleSource。
//
// 读取无锁：规则以不可变快照形式整体替换。
// 内容没有变化的重载不会推进版本号。
type FileRuleSource struct {
	path     string
	format   Format
	snap     atomic.Pointer[ruleSnapshot]
	revision atomic.Uint64
	reloadMu sync.Mutex
}

// NewFileRuleSource 创建文件规则源，首次加载失败时返回错误。
func NewFileRuleSource(path string) (*FileRuleSource, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	s := &FileRuleSource{path: path, format: format}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseRules 解析规则数据并校验。
func ParseRules(data []byte, format Format) ([]xcircuit.RuleSet, error) {
	var f ruleFile
	if err := decode(data, format, &f); err != nil {
		return nil, err
	}
	seen := make(map[xcircuit.ServiceKey]struct{}, len(f.Services))
	for _, set := range f.Services {
		if _, dup := seen[set.Key()]; dup {
			return nil, fmt.Errorf("%w: duplicate service %s", ErrInvalidRules, set.Key())
		}
		seen[set.Key()] = struct{}{}
		if err := set.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRules, err)
		}
	}
	return f.Services, nil
}

// Path 返回规则文件路径。
func (s *FileRuleSource) Path() string {
	return s.path
}

// Rules 实现 xcircuit.RuleSource。
func (s *FileRuleSource) Rules(namespace, service string) (*xcircuit.RuleSet, bool) {
	snap := s.snap.Load()
	if snap == nil {
		return nil, false
	}
	set, ok := snap.sets[xcircuit.ServiceKey{Namespace: namespace, Service: service}]
	return set, ok
}

// Revision 实现 xcircuit.RuleSource。
func (s *FileRuleSource) Revision() uint64 {
	return s.revision.Load()
}

// Services 返回当前已加载的服务。
func (s *FileRuleSource) Services() []xcircuit.ServiceKey {
	snap := s.snap.Load()
	if snap == nil {
		return nil
	}
	keys := make([]xcircuit.ServiceKey, 0, len(snap.sets))
	for k := range snap.sets {
		keys = append(keys, k)
	}
	return keys
}

// Reload 重新读取规则文件。失败时保留当前规则并返回错误。
func (s *FileRuleSource) Reload() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	data, _, err := readFile(s.path)
	if err != nil {
		return err
	}
	digest := xxhash.Sum64(data)
	if cur := s.snap.Load(); cur != nil && cur.digest == digest {
		return nil
	}

	sets, err := ParseRules(data, s.format)
	if err != nil {
		return err
	}
	snap := &ruleSnapshot{
		sets:   make(map[xcircuit.ServiceKey]*xcircuit.RuleSet, len(sets)),
		digest: digest,
	}
	for i := range sets {
		snap.sets[sets[i].Key()] = &sets[i]
	}
	s.snap.Store(snap)
	s.revision.Add(1)
	return nil
}

// WatchOption 监听配置选项。
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
}

// WithDebounce 设置防抖时间，窗口内的多次变化只触发一次重载。
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// Watch 监听规则文件变化并自动重载，阻塞直到 ctx 结束。
//
// 监听的是文件所在目录，编辑器先删除再创建或 rename 覆盖的写法同样生效。
// 每次重载（含失败）后调用 onReload，err 非 nil 时规则保持不变。
func (s *FileRuleSource) Watch(ctx context.Context, onReload func(revision uint64, err error), opts ...WatchOption) error {
	o := &watchOptions{debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(o)
	}
	notify := func(err error) {
		if onReload != nil {
			onReload(s.Revision(), err)
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("xcbconf: create watcher: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return errors.Join(fmt.Errorf("xcbconf: watch directory %s: %w", dir, err), w.Close())
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
		name  = filepath.Base(s.path)
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return w.Close()

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name ||
				!event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(o.debounce)
			} else {
				timer.Reset(o.debounce)
			}
			fire = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			notify(fmt.Errorf("xcbconf: watch error: %w", err))

		case <-fire:
			fire = nil
			notify(s.Reload())
		}
	}
}

var _ xcircuit.RuleSource = (*FileRuleSource)(nil)
