package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/adcore-sdk/mediation/pkg/context/xenv"
)

// createDeployCommand 诊断宿主进程的部署类型（LOCAL/SAAS）。mediationctl 自身
// 不依赖部署类型做任何决策，但运维排查 MANAGED 模式下 xmedconf.Gate 行为差异
// 时，第一步通常是确认当前进程看到的 DEPLOYMENT_TYPE 到底是什么——这条命令
// 让这一步不必再翻宿主的启动脚本。
func createDeployCommand() *cli.Command {
	var fallback string
	return &cli.Command{
		Name:  "deploy",
		Usage: "打印当前进程的部署类型（读取 DEPLOYMENT_TYPE 环境变量）",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "default",
				Usage:       "DEPLOYMENT_TYPE 未设置时使用的回退值（LOCAL/SAAS），留空则报错退出",
				Destination: &fallback,
			},
		},
		Action: func(_ context.Context, _ *cli.Command) error {
			err := xenv.Init()
			switch {
			case err == nil:
				// 已从环境变量初始化。
			case errors.Is(err, xenv.ErrMissingEnv), errors.Is(err, xenv.ErrEmptyEnv):
				if fallback == "" {
					fmt.Fprintln(os.Stderr, "DEPLOYMENT_TYPE 未设置，且未提供 --default")
					return &exitError{code: 1}
				}
				if initErr := xenv.InitWith(mustParseDeployType(fallback)); initErr != nil {
					fmt.Fprintf(os.Stderr, "回退部署类型非法: %v\n", initErr)
					return &exitError{code: 1}
				}
			default:
				fmt.Fprintf(os.Stderr, "解析 DEPLOYMENT_TYPE 失败: %v\n", err)
				return &exitError{code: 1}
			}
			fmt.Printf("deployment_type=%s is_local=%t is_saas=%t\n", xenv.Type(), xenv.IsLocal(), xenv.IsSaaS())
			return nil
		},
	}
}

// mustParseDeployType 把 CLI 传入的回退值解析为部署类型；解析失败时返回
// 一个明显非法的值，交由 xenv.InitWith 的校验路径统一报错。
func mustParseDeployType(s string) xenv.DeployType {
	dt, err := xenv.Parse(s)
	if err != nil {
		return ""
	}
	return dt
}
