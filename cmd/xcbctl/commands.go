package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xcircuit/pkg/observability/xlog"
	"github.com/omeyang/xcircuit/pkg/resilience/xcbconf"
	"github.com/omeyang/xcircuit/pkg/resilience/xcbflow"
	"github.com/omeyang/xcircuit/pkg/resilience/xcircuit"
)

// usageError 参数错误，退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func newUsageError(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// 创建所有子命令。
func createCommands() []*cli.Command {
	return []*cli.Command{
		createValidateCommand(),
		createResolveCommand(),
		createWatchCommand(),
	}
}

// createValidateCommand 创建 validate 子命令。
func createValidateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "校验配置或规则文件",
		Commands: []*cli.Command{
			{
				Name:      "config",
				Usage:     "校验进程级熔断配置",
				ArgsUsage: "<file>",
				Action: func(_ context.Context, cmd *cli.Command) error {
					path := cmd.Args().First()
					if path == "" {
						return newUsageError("缺少配置文件路径")
					}
					return cmdValidateConfig(cmd.Root().Writer, path)
				},
			},
			{
				Name:      "rules",
				Usage:     "校验熔断规则文件",
				ArgsUsage: "<file>",
				Action: func(_ context.Context, cmd *cli.Command) error {
					path := cmd.Args().First()
					if path == "" {
						return newUsageError("缺少规则文件路径")
					}
					return cmdValidateRules(cmd.Root().Writer, path)
				},
			},
		},
	}
}

// createResolveCommand 创建 resolve 子命令。
func createResolveCommand() *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "解析一次调用命中的规则、状态维度与生效配置",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "rules", Aliases: []string{"r"}, Usage: "规则文件", Required: true},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "进程级配置文件，未指定时使用默认配置"},
			&cli.StringFlag{Name: "namespace", Usage: "被调服务命名空间", Value: "default"},
			&cli.StringFlag{Name: "service", Usage: "被调服务", Required: true},
			&cli.StringFlag{Name: "caller-namespace", Usage: "调用方命名空间"},
			&cli.StringFlag{Name: "caller-service", Usage: "调用方服务"},
			&cli.StringFlag{Name: "method", Aliases: []string{"m"}, Usage: "被调方法"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			id := xcircuit.RuleIdentifier{
				Namespace: cmd.String("namespace"),
				Service:   cmd.String("service"),
				Caller: xcircuit.ServiceKey{
					Namespace: cmd.String("caller-namespace"),
					Service:   cmd.String("caller-service"),
				},
				Method: cmd.String("method"),
			}
			if id.Caller.Service != "" && id.Caller.Namespace == "" {
				id.Caller.Namespace = id.Namespace
			}
			return cmdResolve(cmd.Root().Writer, cmd.String("config"), cmd.String("rules"), id)
		},
	}
}

// createWatchCommand 创建 watch 子命令。
func createWatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "监听规则文件变化并输出重载结果",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "rules", Aliases: []string{"r"}, Usage: "规则文件", Required: true},
			&cli.DurationFlag{Name: "debounce", Usage: "防抖时间", Value: xcbconf.DefaultDebounce},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger, cleanup, err := xlog.New().
				SetOutput(cmd.Root().Writer).
				SetLevelString(cmd.Root().String("log-level")).
				SetComponent("xcbctl").
				Build()
			if err != nil {
				return newUsageError("%v", err)
			}
			defer func() { _ = cleanup() }()
			return cmdWatch(ctx, logger, cmd.String("rules"), cmd.Duration("debounce"))
		},
	}
}

// loadConfig 加载配置文件，path 为空时返回默认配置。
func loadConfig(path string) (*xcbconf.Config, error) {
	if path == "" {
		return xcbconf.LoadBytes(nil, xcbconf.FormatYAML)
	}
	return xcbconf.Load(path)
}

func cmdValidateConfig(w io.Writer, path string) error {
	cfg, err := xcbconf.Load(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "配置有效: %s\n", path)
	fmt.Fprintf(w, "  enabled:      %t\n", cfg.Enabled())
	fmt.Fprintf(w, "  chain:        %s\n", strings.Join(cfg.Chain, ","))
	fmt.Fprintf(w, "  check_period: %s\n", cfg.CheckPeriod)
	printHalfOpen(w, cfg.DefaultConfigSet().HalfOpen)
	return nil
}

func cmdValidateRules(w io.Writer, path string) error {
	src, err := xcbconf.NewFileRuleSource(path)
	if err != nil {
		return err
	}
	services := src.Services()
	fmt.Fprintf(w, "规则有效: %s (%d 个服务)\n", path, len(services))
	for _, key := range sortedKeys(services) {
		set, _ := src.Rules(key.Namespace, key.Service)
		fmt.Fprintf(w, "  %s: inbounds=%d outbounds=%d\n", key, len(set.Inbounds), len(set.Outbounds))
	}
	return nil
}

func cmdResolve(w io.Writer, configPath, rulesPath string, id xcircuit.RuleIdentifier) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	src, err := xcbconf.NewFileRuleSource(rulesPath)
	if err != nil {
		return err
	}
	machines, err := xcbflow.NewMachines(cfg, src)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "调用: %s\n", id)
	for _, m := range machines {
		matched, err := m.Configs().ServiceConfig(id)
		if err != nil {
			return fmt.Errorf("%s: %w", m.Name(), err)
		}
		dim, set, err := m.Dimension(id)
		if err != nil {
			return fmt.Errorf("%s: %w", m.Name(), err)
		}
		fmt.Fprintf(w, "[%s]\n", m.Name())
		fmt.Fprintf(w, "  matched:   %s\n", ruleName(matched))
		fmt.Fprintf(w, "  rule:      %s\n", ruleName(set))
		fmt.Fprintf(w, "  level:     %s\n", matched.Level)
		fmt.Fprintf(w, "  dimension: %s\n", dim)
		fmt.Fprintf(w, "  policy:    consecutive_errors=%d error_rate=%g min_requests=%d metric_window=%s\n",
			set.Policy.ConsecutiveErrors, set.Policy.ErrorRate, set.Policy.MinRequests, set.Policy.MetricWindow)
		printHalfOpen(w, set.HalfOpen)
	}
	return nil
}

// ruleName 未命中规则时返回 "<default>"。
func ruleName(set *xcircuit.ConfigSet) string {
	if set.UseDefault {
		return "<default>"
	}
	return set.RuleName
}

func printHalfOpen(w io.Writer, h xcircuit.HalfOpenConfig) {
	fmt.Fprintf(w, "  half_open:  sleep_window=%s max_requests=%d success=%d fail=%d when_to_detect=%s\n",
		h.SleepWindow, h.MaxRequests, h.SuccessCount, h.FailCount, h.WhenToDetect)
}

func cmdWatch(ctx context.Context, logger xlog.Logger, path string, debounce time.Duration) error {
	src, err := xcbconf.NewFileRuleSource(path)
	if err != nil {
		return err
	}
	logger.Info(ctx, "watching rules", slog.String("path", path), xlog.Revision(src.Revision()))
	return src.Watch(ctx, func(rev uint64, err error) {
		if err != nil {
			logger.Warn(ctx, "rules reload failed, keeping previous rules", xlog.Revision(rev), xlog.Err(err))
			return
		}
		logger.Info(ctx, "rules reloaded", xlog.Revision(rev), xlog.Count(len(src.Services())))
	}, xcbconf.WithDebounce(debounce))
}

func sortedKeys(keys []xcircuit.ServiceKey) []xcircuit.ServiceKey {
	slices.SortFunc(keys, func(a, b xcircuit.ServiceKey) int {
		return strings.Compare(a.String(), b.String())
	})
	return keys
}
