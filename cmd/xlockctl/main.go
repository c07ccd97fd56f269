// xlockctl 是 xlockable 资源池的命令行工具。
//
// 用法:
//
//	xlockctl <命令> [命令参数]
//
// 命令:
//
//	check          校验配置并列出声明的资源池
//	simulate       按场景文件并发运行加锁作业，打印授权时间线
//	snapshot show  读取已持久化的分配器状态
//
// 退出码:
//
//	0: 成功
//	1: 运行错误（加载失败、作业失败、快照不存在等）
//	2: 参数错误（缺少必需参数、未知命令、配置不合法等）
//
// 示例:
//
//	xlockctl check -c pool.yaml
//	xlockctl simulate -c pool.yaml -s scenario.yaml --metrics
//	xlockctl simulate -c pool.yaml -s scenario.yaml --watch --stats 1s
//	xlockctl snapshot show -c pool.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

// 版本信息，通过 -ldflags 注入:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}

// createApp 创建 CLI 应用。
func createApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "xlockctl",
		Usage:     "xlockable 资源池命令行工具",
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Writer:    stdout,
		ErrWriter: stderr,
		Commands:  createCommands(),
		// 由 run 统一映射退出码，禁止框架直接 os.Exit
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			var coder cli.ExitCoder
			if errors.As(err, &coder) && err.Error() != "" {
				fmt.Fprintln(stderr, err)
			}
		},
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := createApp(stdout, stderr)
	err := app.Run(ctx, args)
	return exitCode(err, stderr)
}

// exitCode 把错误映射为退出码并输出错误信息。
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(stderr, "参数错误: %v\n", usageErr)
		return 2
	}
	if isCLIUsageError(err) {
		fmt.Fprintf(stderr, "参数错误: %v\n", err)
		return 2
	}
	fmt.Fprintf(stderr, "错误: %v\n", err)
	return 1
}
