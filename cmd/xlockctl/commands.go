package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"
)

// configFlag 是各命令共用的 --config 参数。
func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "config",
		Aliases:  []string{"c"},
		Usage:    "资源池配置文件（.yaml/.yml/.json）",
		Required: true,
	}
}

// 创建所有子命令。
func createCommands() []*cli.Command {
	return []*cli.Command{
		createCheckCommand(),
		createSimulateCommand(),
		createSnapshotCommand(),
	}
}

// createCheckCommand 创建 check 子命令。
func createCheckCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "校验配置并列出资源池",
		Flags: []cli.Flag{configFlag()},
		Action: func(_ context.Context, cmd *cli.Command) error {
			return cmdCheck(cmd.Root().Writer, cmd.String("config"))
		},
	}
}

// createSimulateCommand 创建 simulate 子命令。
func createSimulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "按场景并发运行加锁作业并打印授权时间线",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:     "scenario",
				Aliases:  []string{"s"},
				Usage:    "场景文件（.yaml/.yml/.json）",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "运行期间监听配置文件并热加载资源池",
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "结束时打印分配器指标",
			},
			&cli.DurationFlag{
				Name:  "stats",
				Usage: "周期打印分配器摘要，0 表示不打印",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "场景最长运行时间，0 表示不限",
				Value: 5 * time.Minute,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cmdSimulate(ctx, simulateParams{
				configPath:   cmd.String("config"),
				scenarioPath: cmd.String("scenario"),
				watch:        cmd.Bool("watch"),
				metrics:      cmd.Bool("metrics"),
				stats:        cmd.Duration("stats"),
				timeout:      cmd.Duration("timeout"),
				stdout:       cmd.Root().Writer,
				stderr:       cmd.Root().ErrWriter,
			})
		},
	}
}

// createSnapshotCommand 创建 snapshot 子命令组。
func createSnapshotCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "查看持久化的分配器状态",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "读取快照并打印资源、授权与等待队列",
				Flags: []cli.Flag{configFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return cmdSnapshotShow(ctx, cmd.Root().Writer, cmd.Root().ErrWriter, cmd.String("config"))
				},
			},
		},
	}
}
