// xcbctl 是熔断配置与规则的命令行工具。
//
// 用法:
//
//	xcbctl [全局选项] <命令> [命令参数]
//
// 命令:
//
//	validate config <file>   校验进程级熔断配置
//	validate rules <file>    校验熔断规则文件
//	resolve                  解析一次调用命中的规则、状态维度与生效配置
//	watch                    监听规则文件变化并输出重载结果
//
// 退出码:
//
//	0: 命令执行成功
//	1: 校验或解析失败
//	2: 参数错误（缺少必需参数、未知命令等）
//
// 示例:
//
//	xcbctl validate rules ./rules.yaml
//	xcbctl resolve --rules ./rules.yaml --service payment --caller-service order --method /pay
//	xcbctl watch --rules ./rules.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"
)

// 版本信息（可通过 -ldflags 注入）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run(os.Args))
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "xcbctl",
		Usage:   "熔断配置与规则工具",
		Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "日志级别 (debug/info/warn/error)",
				Value: "info",
			},
		},
		Commands: createCommands(),
		// 由 run() 统一处理退出码
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
	}
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := createApp().Run(ctx, args); err != nil {
		return exitCode(err)
	}
	return 0
}

func exitCode(err error) int {
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(os.Stderr, "参数错误: %v\n", usageErr)
		return 2
	}
	if isCLIUsageError(err) {
		return 2
	}
	fmt.Fprintf(os.Stderr, "错误: %v\n", err)
	return 1
}

// isCLIUsageError 识别 urfave/cli 产生的参数错误。
func isCLIUsageError(err error) bool {
	msg := err.Error()
	for _, p := range []string{"flag provided but not defined", "Required flag", "No help topic for", "invalid value"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
