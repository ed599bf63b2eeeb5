package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/adcore-sdk/mediation/pkg/config/xmedconf"
	"github.com/adcore-sdk/mediation/pkg/distributed/xcron"
	"github.com/adcore-sdk/mediation/pkg/lifecycle/xrun"
)

// createConfigWatchCommand 启动一个常驻进程：周期性重新加载本地配置文件并
// 打印每次 Refresh 的结果，直到收到 SIGINT/SIGTERM。用于在没有真实远程
// 网关的情况下，本地验证 MANAGED 模式下"xcron 定时触发 + xrun 信号驱动
// 优雅退出"这条关闭路径是否按预期工作。
func createConfigWatchCommand() *cli.Command {
	var cronSpec string
	return &cli.Command{
		Name:      "watch",
		Usage:     "按 cron 表达式周期性重新加载配置文件，直到收到退出信号",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "every",
				Usage:       "robfig/cron 表达式，例如 \"@every 30s\"",
				Value:       "@every 30s",
				Destination: &cronSpec,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return &exitError{code: 2}
			}

			gate := xmedconf.New(fileFetcher{path: path}, xmedconf.WithTestMode(true))
			if _, err := gate.Load(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "初始加载失败: %v\n", classifyConfigError(err))
				return &exitError{code: 1}
			}

			sched := xcron.New()
			if _, err := xmedconf.ScheduleRefresh(sched, gate, cronSpec); err != nil {
				fmt.Fprintf(os.Stderr, "调度刷新任务失败: %v\n", err)
				return &exitError{code: 1}
			}

			err := xrun.Run(ctx, func(ctx context.Context) error {
				sched.Start()
				fmt.Fprintf(os.Stderr, "watch 已启动，刷新周期=%s，按 Ctrl+C 退出\n", cronSpec)
				<-ctx.Done()
				<-sched.Stop().Done()
				return ctx.Err()
			})

			var sigErr *xrun.SignalError
			if errors.As(err, &sigErr) {
				fmt.Fprintf(os.Stderr, "收到信号 %s，已优雅退出\n", sigErr.Signal)
				return nil
			}
			return err
		},
	}
}
