// mediationctl 是聚合核心的运维命令行工具：离线校验远程配置文件、
// 驱动 Validation Mode 检查凭据可达性、以及在不发起任何真实网络请求的
// 前提下模拟一次竞价的胜者选择逻辑。
//
// 用法:
//
//	mediationctl <命令> [子命令参数]
//
// 命令:
//
//	config hash <file>                打印配置文件的规范化哈希
//	config validate <file>             校验 schema 与签名，打印失败分类
//	config watch <file> [--every]      周期性重新加载配置，直到收到退出信号
//	validate credentials <file>        驱动 Validation Mode 检查凭据文件
//	auction simulate <file>            基于脚本化适配器模拟一次竞价
//	deploy [--default]                 打印当前进程的部署类型（LOCAL/SAAS）
//
// 退出码:
//
//	0: 命令执行成功
//	1: 命令执行失败（校验不通过、文件不可读等）
//	2: 参数错误
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run())
}

func createApp() *cli.Command {
	return &cli.Command{
		Name:    "mediationctl",
		Usage:   "聚合核心运维命令行工具",
		Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Commands: []*cli.Command{
			createConfigCommand(),
			createValidateCommand(),
			createAuctionCommand(),
			createDeployCommand(),
		},
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
	}
}

// exitError 表示命令已完成输出、只需把退出码向上传递的场景。
type exitError struct{ code int }

func (e *exitError) Error() string { return "" }

func run() int {
	app := createApp()
	ctx := context.Background()

	if err := app.Run(ctx, os.Args); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		if isCLIUsageError(err) {
			return 2
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}

func isCLIUsageError(err error) bool {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		return exitCoder.ExitCode() == 2 //nolint:mnd // urfave/cli 用法错误固定码
	}
	return false
}
