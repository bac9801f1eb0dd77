package xcbflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/omeyang/xcircuit/pkg/observability/xlog"
	"github.com/omeyang/xcircuit/pkg/resilience/xcircuit"
)

// Call 一次调用的结果。
type Call struct {
	// Method 被调方法。
	Method string
	// Caller 调用方服务，未知时为零值。
	Caller xcircuit.ServiceKey
	// Ret 调用结果。
	Ret xcircuit.RetStatus
}

// Flow 熔断决策的执行者。
//
// 同一时刻只有一个评估在写状态：周期评估与 Report 触发的即时评估互斥。
type Flow struct {
	source   InstanceSource
	machines []*xcircuit.Machine
	logger   xlog.Logger
	metrics  *Metrics
	clock    func() time.Time
	interval time.Duration

	applyMu sync.Mutex

	cron    *cron.Cron
	runMu   sync.Mutex
	started bool
	cancel  context.CancelFunc
}

// New 创建 Flow。machines 中的熔断器名称必须唯一。
func New(source InstanceSource, machines []*xcircuit.Machine, opts ...Option) (*Flow, error) {
	if source == nil {
		return nil, ErrNilSource
	}
	if len(machines) == 0 {
		return nil, ErrNoMachines
	}
	seen := make(map[string]struct{}, len(machines))
	for _, m := range machines {
		if m == nil {
			return nil, xcircuit.ErrNilMachine
		}
		if _, dup := seen[m.Name()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBreaker, m.Name())
		}
		seen[m.Name()] = struct{}{}
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.interval <= 0 {
		return nil, ErrInvalidInterval
	}
	metrics, err := NewMetrics(o.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("xcbflow: create metrics: %w", err)
	}

	logger := o.logger.With(xlog.Component("xcbflow"))
	cl := cronLogger{logger: logger}
	return &Flow{
		source:   source,
		machines: append([]*xcircuit.Machine(nil), machines...),
		logger:   logger,
		metrics:  metrics,
		clock:    o.clock,
		interval: o.interval,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}, nil
}

// Machines 返回熔断器列表。
func (f *Flow) Machines() []*xcircuit.Machine {
	return f.machines
}

// Report 上报一次调用结果。
//
// 对每个熔断器：解析配置与状态维度，把结果交给策略统计；
// 若该维度处于本熔断器的 HALF_OPEN 状态且半开计数恰好达到阈值，
// 立即对该实例评估一次；评估锁被周期评估占用时不等待，
// 由下一次周期评估按 >= 阈值完成迁移。
// 未实现 HasLocalValue 的实例被忽略。
func (f *Flow) Report(ctx context.Context, inst xcircuit.Instance, call Call) error {
	lv, ok := xcircuit.LocalValueOf(inst)
	if !ok {
		return nil
	}
	id := xcircuit.RuleIdentifier{
		Namespace: inst.Namespace(),
		Service:   inst.Service(),
		Caller:    call.Caller,
		Method:    call.Method,
	}
	now := f.clock()

	var errs []error
	for _, m := range f.machines {
		if err := f.report(ctx, m, inst, lv, id, call.Ret, now); err != nil {
			errs = append(errs, fmt.Errorf("xcbflow: %s report %s: %w", m.Name(), id, err))
		}
	}
	return errors.Join(errs...)
}

func (f *Flow) report(ctx context.Context, m *xcircuit.Machine, inst xcircuit.Instance, lv *xcircuit.LocalValue,
	id xcircuit.RuleIdentifier, ret xcircuit.RetStatus, now time.Time) error {
	// cfg 与评估时 m.Config(inst, dim) 一致
	dim, cfg, err := m.Dimension(id)
	if err != nil {
		return err
	}
	st, ok := m.State(inst)
	if !ok {
		return nil
	}
	m.Policy().Report(st, dim, ret, cfg, now)

	s, ok := lv.Status(dim)
	if !ok || s.Status != xcircuit.StatusHalfOpen || s.Name != m.Name() {
		return nil
	}
	if !st.HalfOpen().TriggerHalfOpenConversion(dim, ret, cfg.HalfOpen) {
		return nil
	}
	// 请求线程不等待评估锁，被占用时迁移留给下一次周期评估
	if !f.applyMu.TryLock() {
		f.logger.Debug(ctx, "evaluation in progress, half-open transition deferred",
			xlog.Breaker(m.Name()), xlog.Instance(xcircuit.InstanceID(inst)), xlog.Dimension(dim))
		return nil
	}
	defer f.applyMu.Unlock()
	return f.evaluate(ctx, m, []xcircuit.Instance{inst})
}

// ReportDetect 记录实例的主动探测结果。
func (f *Flow) ReportDetect(inst xcircuit.Instance, success bool) {
	if lv, ok := xcircuit.LocalValueOf(inst); ok {
		lv.SetDetectResult(xcircuit.DetectResult{Success: success, DetectTime: f.clock()})
	}
}

// Check 对实例来源的当前快照做一次完整评估。
// 某个熔断器评估失败不影响其他熔断器，所有错误合并返回。
func (f *Flow) Check(ctx context.Context) error {
	return f.CheckInstances(ctx, f.source.Snapshot())
}

// CheckInstances 对指定实例做一次完整评估。
func (f *Flow) CheckInstances(ctx context.Context, instances []xcircuit.Instance) error {
	var errs []error
	for _, m := range f.machines {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := f.pass(ctx, m, instances); err != nil {
			errs = append(errs, fmt.Errorf("xcbflow: %s: %w", m.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (f *Flow) pass(ctx context.Context, m *xcircuit.Machine, instances []xcircuit.Instance) error {
	f.applyMu.Lock()
	defer f.applyMu.Unlock()
	return f.evaluate(ctx, m, instances)
}

// evaluate 调用方持有 applyMu。
func (f *Flow) evaluate(ctx context.Context, m *xcircuit.Machine, instances []xcircuit.Instance) error {
	begin := time.Now()
	now := f.clock()
	res, err := xcircuit.BuildResult(m, instances, m.Parameter(now))
	if err != nil {
		f.metrics.RecordCheck(ctx, m.Name(), true, time.Since(begin))
		f.logger.Error(ctx, "circuit breaker evaluation failed", xlog.Breaker(m.Name()), xlog.Err(err))
		return err
	}
	f.apply(ctx, m, res, now)
	f.metrics.RecordCheck(ctx, m.Name(), false, time.Since(begin))
	return nil
}

// apply 落地评估结果：整体替换维度上的 CircuitBreakerStatus。
func (f *Flow) apply(ctx context.Context, m *xcircuit.Machine, res *xcircuit.Result, now time.Time) {
	buckets := [...]struct {
		to  xcircuit.Status
		set map[xcircuit.InstanceDimension]xcircuit.Instance
	}{
		{xcircuit.StatusOpen, res.ToOpen},
		{xcircuit.StatusHalfOpen, res.ToHalfOpen},
		{xcircuit.StatusClose, res.ToClose},
	}
	for _, b := range buckets {
		for key, inst := range b.set {
			lv, ok := xcircuit.LocalValueOf(inst)
			if !ok {
				continue
			}
			from := xcircuit.StatusClose
			if s, ok := lv.Status(key.Dimension); ok {
				from = s.Status
			}
			lv.SetStatus(key.Dimension, xcircuit.CircuitBreakerStatus{
				Name:      m.Name(),
				Status:    b.to,
				StartTime: now,
			})
			f.metrics.RecordTransition(ctx, m.Name(), from, b.to)

			log := f.logger.Info
			if b.to == xcircuit.StatusOpen {
				log = f.logger.Warn
			}
			log(ctx, "circuit breaker status changed",
				xlog.Breaker(m.Name()),
				xlog.Instance(key.InstanceID),
				xlog.Dimension(key.Dimension),
				xlog.Transition(from, b.to),
			)
		}
	}
}

// Start 按评估间隔启动周期评估（非阻塞）。
func (f *Flow) Start() error {
	f.runMu.Lock()
	defer f.runMu.Unlock()
	if f.started {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	_, err := f.cron.AddFunc("@every "+f.interval.String(), func() {
		// 失败已在 pass 中记录
		_ = f.Check(ctx)
	})
	if err != nil {
		cancel()
		return fmt.Errorf("xcbflow: schedule check: %w", err)
	}
	f.cancel = cancel
	f.started = true
	f.cron.Start()
	f.logger.Info(ctx, "periodic check started", xlog.Duration(f.interval), xlog.Count(len(f.machines)))
	return nil
}

// Stop 停止周期评估。
//
// 返回的 context 在正在执行的评估结束后 Done。
func (f *Flow) Stop() context.Context {
	f.runMu.Lock()
	defer f.runMu.Unlock()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	return f.cron.Stop()
}

// cronLogger 把 cron 的日志接入 xlog。cron 的常规日志降为 Debug。
type cronLogger struct {
	logger xlog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(context.Background(), "cron: "+msg, kvAttrs(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(context.Background(), "cron: "+msg, append(kvAttrs(keysAndValues), xlog.Err(err))...)
}

func kvAttrs(kv []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, slog.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return attrs
}

var _ cron.Logger = cronLogger{}
